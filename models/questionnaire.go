package models

import "time"

// FieldType is the input kind of a questionnaire field.
type FieldType string

const (
	FieldText     FieldType = "TEXT"
	FieldTextarea FieldType = "TEXTAREA"
	FieldNumber   FieldType = "NUMBER"
	FieldDate     FieldType = "DATE"
	FieldSelect   FieldType = "SELECT"
	FieldCheckbox FieldType = "CHECKBOX"
)

type Questionnaire struct {
	ID          uint                 `gorm:"primaryKey" json:"id"`
	Name        string               `gorm:"not null" json:"name"`
	Description string               `gorm:"type:text" json:"description,omitempty"`
	Fields      []QuestionnaireField `gorm:"foreignKey:QuestionnaireID" json:"fields,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

func (Questionnaire) TableName() string {
	return "questionnaires"
}

// QuestionnaireField is a question. Name and Order are each unique within
// the questionnaire.
type QuestionnaireField struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	QuestionnaireID uint      `gorm:"not null;uniqueIndex:idx_field_position;uniqueIndex:idx_field_name" json:"questionnaire_id"`
	Name            string    `gorm:"not null;uniqueIndex:idx_field_name" json:"name"`
	Label           string    `gorm:"not null" json:"label"`
	FieldType       FieldType `gorm:"not null;default:'TEXT'" json:"field_type"`
	Required        bool      `gorm:"not null;default:false" json:"required"`
	Options         string    `gorm:"type:text" json:"options,omitempty"`
	Order           int       `gorm:"column:position;not null;uniqueIndex:idx_field_position" json:"order"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (QuestionnaireField) TableName() string {
	return "questionnaire_fields"
}
