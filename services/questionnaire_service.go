package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/kendall-kelly/eventflow-api/models"
)

// QuestionnaireService manages questionnaires and their ordered fields.
type QuestionnaireService struct {
	db  *gorm.DB
	seq *Sequencer
	log zerolog.Logger
}

func NewQuestionnaireService(db *gorm.DB, seq *Sequencer, log zerolog.Logger) *QuestionnaireService {
	return &QuestionnaireService{db: db, seq: seq, log: log}
}

func fieldScope(questionnaireID uint) OrderScope {
	return OrderScope{
		Table: "questionnaire_fields",
		Conds: map[string]interface{}{"questionnaire_id": questionnaireID},
	}
}

func (s *QuestionnaireService) CreateQuestionnaire(ctx context.Context, name, description string) (*models.Questionnaire, error) {
	if strings.TrimSpace(name) == "" {
		return nil, Validation(CodeValidation, "questionnaire name is required")
	}
	q := models.Questionnaire{Name: name, Description: description}
	if err := s.db.WithContext(ctx).Create(&q).Error; err != nil {
		return nil, fmt.Errorf("failed to create questionnaire: %w", err)
	}
	return &q, nil
}

// GetQuestionnaire loads a questionnaire with its fields in order.
func (s *QuestionnaireService) GetQuestionnaire(ctx context.Context, id uint) (*models.Questionnaire, error) {
	var q models.Questionnaire
	err := s.db.WithContext(ctx).
		Preload("Fields", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&q, id).Error
	if err != nil {
		return nil, notFoundOr(err, "questionnaire", id)
	}
	return &q, nil
}

func (s *QuestionnaireService) ListQuestionnaires(ctx context.Context) ([]models.Questionnaire, error) {
	var qs []models.Questionnaire
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&qs).Error; err != nil {
		return nil, fmt.Errorf("failed to list questionnaires: %w", err)
	}
	return qs, nil
}

func (s *QuestionnaireService) DeleteQuestionnaire(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var q models.Questionnaire
		if err := tx.First(&q, id).Error; err != nil {
			return notFoundOr(err, "questionnaire", id)
		}
		if err := tx.Where("questionnaire_id = ?", id).Delete(&models.QuestionnaireField{}).Error; err != nil {
			return fmt.Errorf("failed to delete fields: %w", err)
		}
		return tx.Delete(&q).Error
	})
}

// FieldInput describes a field to create. A nil Order appends the field.
type FieldInput struct {
	Name      string
	Label     string
	FieldType models.FieldType
	Required  bool
	Options   string
	Order     *int
}

func (s *QuestionnaireService) CreateField(ctx context.Context, questionnaireID uint, in FieldInput) (*models.QuestionnaireField, error) {
	if in.Name == "" || in.Label == "" {
		return nil, Validation(CodeValidation, "field name and label are required")
	}
	if in.Order != nil && *in.Order < 1 {
		return nil, Validation(CodeValidation, "order must be at least 1")
	}
	if in.FieldType == "" {
		in.FieldType = models.FieldText
	}

	var field models.QuestionnaireField
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var q models.Questionnaire
		if err := tx.First(&q, questionnaireID).Error; err != nil {
			return notFoundOr(err, "questionnaire", questionnaireID)
		}
		if err := s.checkFieldName(tx, questionnaireID, in.Name, 0); err != nil {
			return err
		}

		scope := fieldScope(questionnaireID)
		next, err := s.seq.NextPosition(tx, scope)
		if err != nil {
			return err
		}
		field = models.QuestionnaireField{
			QuestionnaireID: questionnaireID,
			Name:            in.Name,
			Label:           in.Label,
			FieldType:       in.FieldType,
			Required:        in.Required,
			Options:         in.Options,
			Order:           next,
		}
		if err := tx.Create(&field).Error; err != nil {
			return fmt.Errorf("failed to create field: %w", err)
		}
		if in.Order != nil && *in.Order < next {
			if err := s.seq.MoveTo(tx, scope, field.ID, *in.Order); err != nil {
				return err
			}
		}
		return tx.First(&field, field.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &field, nil
}

func (s *QuestionnaireService) checkFieldName(tx *gorm.DB, questionnaireID uint, name string, exceptID uint) error {
	var count int64
	q := tx.Model(&models.QuestionnaireField{}).Where("questionnaire_id = ? AND name = ?", questionnaireID, name)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check field name: %w", err)
	}
	if count > 0 {
		return ConstraintViolation(CodeDuplicateFieldName, "questionnaire %d already has a field named %q", questionnaireID, name)
	}
	return nil
}

// UpdateFieldRequest lists the mutable fields of a questionnaire field.
type UpdateFieldRequest struct {
	Name      *string
	Label     *string
	FieldType *models.FieldType
	Required  *bool
	Options   *string
	Order     *int
}

func (s *QuestionnaireService) UpdateField(ctx context.Context, id uint, req UpdateFieldRequest) (*models.QuestionnaireField, error) {
	if req.Order != nil && *req.Order < 1 {
		return nil, Validation(CodeValidation, "order must be at least 1")
	}

	var field models.QuestionnaireField
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&field, id).Error; err != nil {
			return notFoundOr(err, "questionnaire field", id)
		}

		updates := map[string]interface{}{}
		if req.Name != nil && *req.Name != field.Name {
			if *req.Name == "" {
				return Validation(CodeValidation, "field name is required")
			}
			if err := s.checkFieldName(tx, field.QuestionnaireID, *req.Name, field.ID); err != nil {
				return err
			}
			updates["name"] = *req.Name
		}
		if req.Label != nil {
			updates["label"] = *req.Label
		}
		if req.FieldType != nil {
			updates["field_type"] = *req.FieldType
		}
		if req.Required != nil {
			updates["required"] = *req.Required
		}
		if req.Options != nil {
			updates["options"] = *req.Options
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.QuestionnaireField{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update field: %w", err)
			}
		}
		if req.Order != nil && *req.Order != field.Order {
			if err := s.seq.MoveTo(tx, fieldScope(field.QuestionnaireID), field.ID, *req.Order); err != nil {
				return err
			}
		}
		return tx.First(&field, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &field, nil
}

// DeleteField removes a field and shifts the fields after it up by one.
func (s *QuestionnaireService) DeleteField(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var field models.QuestionnaireField
		if err := tx.First(&field, id).Error; err != nil {
			return notFoundOr(err, "questionnaire field", id)
		}
		if err := tx.Delete(&field).Error; err != nil {
			return fmt.Errorf("failed to delete field: %w", err)
		}
		return s.seq.Compact(tx, fieldScope(field.QuestionnaireID), field.Order)
	})
}

// MoveField moves a field to target, clamped to the field count.
func (s *QuestionnaireService) MoveField(ctx context.Context, id uint, target int) (*models.QuestionnaireField, error) {
	return s.UpdateField(ctx, id, UpdateFieldRequest{Order: &target})
}

// ReorderFields applies a partial field id -> order mapping and returns the
// fields in their new order.
func (s *QuestionnaireService) ReorderFields(ctx context.Context, questionnaireID uint, mapping map[uint]int) ([]models.QuestionnaireField, error) {
	var fields []models.QuestionnaireField
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var q models.Questionnaire
		if err := tx.First(&q, questionnaireID).Error; err != nil {
			return notFoundOr(err, "questionnaire", questionnaireID)
		}
		if err := s.seq.Reorder(tx, fieldScope(questionnaireID), mapping); err != nil {
			return err
		}
		return tx.Where("questionnaire_id = ?", questionnaireID).Order("position ASC").Find(&fields).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Uint("questionnaire_id", questionnaireID).Int("moved", len(mapping)).Msg("questionnaire fields reordered")
	return fields, nil
}
