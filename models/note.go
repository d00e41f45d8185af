package models

import "time"

// NoteTargetKind enumerates the entities a note can be attached to.
type NoteTargetKind string

const (
	NoteTargetEvent    NoteTargetKind = "EVENT"
	NoteTargetClient   NoteTargetKind = "CLIENT"
	NoteTargetQuote    NoteTargetKind = "QUOTE"
	NoteTargetInvoice  NoteTargetKind = "INVOICE"
	NoteTargetContract NoteTargetKind = "CONTRACT"
)

// Model returns a zero value of the model a target kind refers to, or nil
// for an unknown kind.
func (k NoteTargetKind) Model() interface{} {
	switch k {
	case NoteTargetEvent:
		return &Event{}
	case NoteTargetClient:
		return &Client{}
	case NoteTargetQuote:
		return &EventQuote{}
	case NoteTargetInvoice:
		return &Invoice{}
	case NoteTargetContract:
		return &EventContract{}
	}
	return nil
}

// Note is free text attached to one entity identified by (TargetKind, TargetID).
type Note struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	TargetKind NoteTargetKind `gorm:"not null;index:idx_note_target" json:"target_kind"`
	TargetID   uint           `gorm:"not null;index:idx_note_target" json:"target_id"`
	Body       string         `gorm:"type:text;not null" json:"body"`
	AuthorID   *uint          `json:"author_id,omitempty"`
	AuthorName string         `json:"author_name"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (Note) TableName() string {
	return "notes"
}
