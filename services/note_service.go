package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/kendall-kelly/eventflow-api/models"
)

// NoteService attaches free-text notes to events, clients, quotes, invoices
// and contracts.
type NoteService struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewNoteService(db *gorm.DB, log zerolog.Logger) *NoteService {
	return &NoteService{db: db, log: log}
}

// checkTarget verifies that the entity a note points at exists.
func checkTarget(tx *gorm.DB, kind models.NoteTargetKind, id uint) error {
	model := kind.Model()
	if model == nil {
		return Validation(CodeValidation, "unknown note target %q", kind)
	}
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check note target: %w", err)
	}
	if count == 0 {
		return NotFound(strings.ToLower(string(kind)), id)
	}
	return nil
}

func (s *NoteService) CreateNote(ctx context.Context, kind models.NoteTargetKind, targetID uint, body string, actor models.Actor) (*models.Note, error) {
	if strings.TrimSpace(body) == "" {
		return nil, Validation(CodeValidation, "note body is required")
	}
	note := models.Note{
		TargetKind: kind,
		TargetID:   targetID,
		Body:       body,
		AuthorID:   actor.ID,
		AuthorName: actor.Name,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkTarget(tx, kind, targetID); err != nil {
			return err
		}
		return tx.Create(&note).Error
	})
	if err != nil {
		return nil, err
	}
	return &note, nil
}

func (s *NoteService) GetNote(ctx context.Context, id uint) (*models.Note, error) {
	var note models.Note
	if err := s.db.WithContext(ctx).First(&note, id).Error; err != nil {
		return nil, notFoundOr(err, "note", id)
	}
	return &note, nil
}

// ListNotes returns the notes of one target, newest first.
func (s *NoteService) ListNotes(ctx context.Context, kind models.NoteTargetKind, targetID uint) ([]models.Note, error) {
	if kind.Model() == nil {
		return nil, Validation(CodeValidation, "unknown note target %q", kind)
	}
	var notes []models.Note
	err := s.db.WithContext(ctx).
		Where("target_kind = ? AND target_id = ?", kind, targetID).
		Order("created_at DESC, id DESC").
		Find(&notes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

func (s *NoteService) UpdateNote(ctx context.Context, id uint, body string) (*models.Note, error) {
	if strings.TrimSpace(body) == "" {
		return nil, Validation(CodeValidation, "note body is required")
	}
	var note models.Note
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&note, id).Error; err != nil {
			return notFoundOr(err, "note", id)
		}
		if err := tx.Model(&models.Note{}).Where("id = ?", id).Update("body", body).Error; err != nil {
			return fmt.Errorf("failed to update note: %w", err)
		}
		return tx.First(&note, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &note, nil
}

func (s *NoteService) DeleteNote(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Note{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete note: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return NotFound("note", id)
	}
	return nil
}
