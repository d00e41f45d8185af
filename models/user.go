package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a staff member of the business (owner or team member)
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Auth0ID   string         `gorm:"uniqueIndex;not null" json:"auth0_id"` // Auth0 user ID (from 'sub' claim)
	Name      string         `gorm:"not null" json:"name"`
	Email     string         `gorm:"uniqueIndex;not null" json:"email"`
	Role      string         `gorm:"not null;default:'staff'" json:"role"` // "owner" or "staff"
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// Actor identifies who performed a state transition. It is attached to
// timeline and activity rows for audit.
type Actor struct {
	ID   *uint  `json:"id,omitempty"`
	Name string `json:"name"`
}

// SystemActor is used for transitions not initiated by a person.
var SystemActor = Actor{Name: "system"}

// ActorFromUser builds an Actor for a persisted user.
func ActorFromUser(u User) Actor {
	id := u.ID
	return Actor{ID: &id, Name: u.Name}
}
