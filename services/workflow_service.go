package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/kendall-kelly/eventflow-api/models"
)

// Built-in advancement criteria.
const (
	CriterionNone        = ""
	CriterionBalancePaid = "BALANCE_PAID"
)

// AdvancementCriterion decides whether an event may enter a stage.
type AdvancementCriterion func(tx *gorm.DB, event *models.Event) (bool, error)

// WorkflowService manages workflow templates, their ordered stages and the
// stage an event is in.
type WorkflowService struct {
	db       *gorm.DB
	seq      *Sequencer
	criteria map[string]AdvancementCriterion
	log      zerolog.Logger
}

func NewWorkflowService(db *gorm.DB, seq *Sequencer, log zerolog.Logger) *WorkflowService {
	s := &WorkflowService{
		db:       db,
		seq:      seq,
		criteria: make(map[string]AdvancementCriterion),
		log:      log,
	}
	s.RegisterCriterion(CriterionNone, func(*gorm.DB, *models.Event) (bool, error) {
		return true, nil
	})
	s.RegisterCriterion(CriterionBalancePaid, func(_ *gorm.DB, event *models.Event) (bool, error) {
		return event.PaymentStatus == models.EventPaymentPaid, nil
	})
	return s
}

// RegisterCriterion adds or replaces a named advancement criterion.
func (s *WorkflowService) RegisterCriterion(name string, fn AdvancementCriterion) {
	s.criteria[name] = fn
}

func stageScope(templateID uint, stage models.StageType) OrderScope {
	return OrderScope{
		Table: "workflow_stages",
		Conds: map[string]interface{}{
			"workflow_template_id": templateID,
			"stage":                string(stage),
		},
	}
}

// CreateTemplateRequest is the input for a new workflow template.
type CreateTemplateRequest struct {
	Name        string
	Description string
}

func (s *WorkflowService) CreateTemplate(ctx context.Context, req CreateTemplateRequest) (*models.WorkflowTemplate, error) {
	if req.Name == "" {
		return nil, Validation(CodeValidation, "template name is required")
	}
	tpl := models.WorkflowTemplate{Name: req.Name, Description: req.Description}
	if err := s.db.WithContext(ctx).Create(&tpl).Error; err != nil {
		return nil, fmt.Errorf("failed to create workflow template: %w", err)
	}
	return &tpl, nil
}

// GetTemplate loads a template with its stages grouped by stage type and
// ordered within each group.
func (s *WorkflowService) GetTemplate(ctx context.Context, id uint) (*models.WorkflowTemplate, error) {
	var tpl models.WorkflowTemplate
	if err := s.db.WithContext(ctx).First(&tpl, id).Error; err != nil {
		return nil, notFoundOr(err, "workflow template", id)
	}
	stages, err := s.stagesOf(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	tpl.Stages = stages
	return &tpl, nil
}

func (s *WorkflowService) ListTemplates(ctx context.Context) ([]models.WorkflowTemplate, error) {
	var tpls []models.WorkflowTemplate
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&tpls).Error; err != nil {
		return nil, fmt.Errorf("failed to list workflow templates: %w", err)
	}
	return tpls, nil
}

// DeleteTemplate removes a template and its stages. Events bound to it are
// detached.
func (s *WorkflowService) DeleteTemplate(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tpl models.WorkflowTemplate
		if err := tx.First(&tpl, id).Error; err != nil {
			return notFoundOr(err, "workflow template", id)
		}
		if err := tx.Model(&models.Event{}).Where("workflow_template_id = ?", id).
			Updates(map[string]interface{}{"workflow_template_id": nil, "current_stage_id": nil}).Error; err != nil {
			return fmt.Errorf("failed to detach events: %w", err)
		}
		if err := tx.Where("workflow_template_id = ?", id).Delete(&models.WorkflowStage{}).Error; err != nil {
			return fmt.Errorf("failed to delete stages: %w", err)
		}
		return tx.Delete(&tpl).Error
	})
}

// stagesOf returns the stages of a template sorted by (stage type, order).
func (s *WorkflowService) stagesOf(tx *gorm.DB, templateID uint) ([]models.WorkflowStage, error) {
	var stages []models.WorkflowStage
	if err := tx.Where("workflow_template_id = ?", templateID).Find(&stages).Error; err != nil {
		return nil, fmt.Errorf("failed to load stages of template %d: %w", templateID, err)
	}
	sort.SliceStable(stages, func(i, j int) bool {
		ri, rj := stages[i].Stage.Rank(), stages[j].Stage.Rank()
		if ri != rj {
			return ri < rj
		}
		return stages[i].Order < stages[j].Order
	})
	return stages, nil
}

// StageInput describes a stage to create. A nil Order appends the stage.
type StageInput struct {
	Stage                    models.StageType
	Name                     string
	Description              string
	Order                    *int
	TriggerOnPaymentReceived bool
	AdvancementCriteria      string
}

func (s *WorkflowService) CreateStage(ctx context.Context, templateID uint, in StageInput) (*models.WorkflowStage, error) {
	if !in.Stage.Valid() {
		return nil, Validation(CodeValidation, "unknown stage type %q", in.Stage)
	}
	if in.Name == "" {
		return nil, Validation(CodeValidation, "stage name is required")
	}
	if in.Order != nil && *in.Order < 1 {
		return nil, Validation(CodeValidation, "order must be at least 1")
	}
	if _, ok := s.criteria[in.AdvancementCriteria]; !ok {
		return nil, Validation(CodeValidation, "unknown advancement criteria %q", in.AdvancementCriteria)
	}

	var stage models.WorkflowStage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tpl models.WorkflowTemplate
		if err := tx.First(&tpl, templateID).Error; err != nil {
			return notFoundOr(err, "workflow template", templateID)
		}

		scope := stageScope(templateID, in.Stage)
		next, err := s.seq.NextPosition(tx, scope)
		if err != nil {
			return err
		}
		stage = models.WorkflowStage{
			WorkflowTemplateID:       templateID,
			Stage:                    in.Stage,
			Order:                    next,
			Name:                     in.Name,
			Description:              in.Description,
			TriggerOnPaymentReceived: in.TriggerOnPaymentReceived,
			AdvancementCriteria:      in.AdvancementCriteria,
		}
		if err := tx.Create(&stage).Error; err != nil {
			return fmt.Errorf("failed to create stage: %w", err)
		}
		if in.Order != nil && *in.Order < next {
			if err := s.seq.MoveTo(tx, scope, stage.ID, *in.Order); err != nil {
				return err
			}
		}
		return tx.First(&stage, stage.ID).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Uint("template_id", templateID).Uint("stage_id", stage.ID).Str("stage", string(stage.Stage)).Int("order", stage.Order).Msg("workflow stage created")
	return &stage, nil
}

// UpdateStageRequest lists the mutable fields of a stage. Changing Stage
// moves the stage into the other partition, at Order or last.
type UpdateStageRequest struct {
	Name                     *string
	Description              *string
	Stage                    *models.StageType
	Order                    *int
	TriggerOnPaymentReceived *bool
	AdvancementCriteria      *string
}

func (s *WorkflowService) UpdateStage(ctx context.Context, id uint, req UpdateStageRequest) (*models.WorkflowStage, error) {
	if req.Stage != nil && !req.Stage.Valid() {
		return nil, Validation(CodeValidation, "unknown stage type %q", *req.Stage)
	}
	if req.Order != nil && *req.Order < 1 {
		return nil, Validation(CodeValidation, "order must be at least 1")
	}
	if req.AdvancementCriteria != nil {
		if _, ok := s.criteria[*req.AdvancementCriteria]; !ok {
			return nil, Validation(CodeValidation, "unknown advancement criteria %q", *req.AdvancementCriteria)
		}
	}

	var stage models.WorkflowStage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&stage, id).Error; err != nil {
			return notFoundOr(err, "workflow stage", id)
		}

		from := stageScope(stage.WorkflowTemplateID, stage.Stage)
		switch {
		case req.Stage != nil && *req.Stage != stage.Stage:
			to := stageScope(stage.WorkflowTemplateID, *req.Stage)
			target := int(^uint(0) >> 1)
			if req.Order != nil {
				target = *req.Order
			}
			if err := s.seq.MoveAcross(tx, from, to, stage.ID, target, map[string]interface{}{"stage": string(*req.Stage)}); err != nil {
				return err
			}
		case req.Order != nil && *req.Order != stage.Order:
			if err := s.seq.MoveTo(tx, from, stage.ID, *req.Order); err != nil {
				return err
			}
		}

		updates := map[string]interface{}{}
		if req.Name != nil {
			if *req.Name == "" {
				return Validation(CodeValidation, "stage name is required")
			}
			updates["name"] = *req.Name
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.TriggerOnPaymentReceived != nil {
			updates["trigger_on_payment_received"] = *req.TriggerOnPaymentReceived
		}
		if req.AdvancementCriteria != nil {
			updates["advancement_criteria"] = *req.AdvancementCriteria
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.WorkflowStage{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update stage: %w", err)
			}
		}
		return tx.First(&stage, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

// DeleteStage removes a stage and closes the gap it leaves. Events currently
// in the stage are left without a current stage.
func (s *WorkflowService) DeleteStage(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stage models.WorkflowStage
		if err := tx.First(&stage, id).Error; err != nil {
			return notFoundOr(err, "workflow stage", id)
		}
		if err := tx.Model(&models.Event{}).Where("current_stage_id = ?", id).
			Update("current_stage_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach events from stage: %w", err)
		}
		if err := tx.Delete(&stage).Error; err != nil {
			return fmt.Errorf("failed to delete stage: %w", err)
		}
		return s.seq.Compact(tx, stageScope(stage.WorkflowTemplateID, stage.Stage), stage.Order)
	})
}

// MoveStage moves a stage to target within its partition.
func (s *WorkflowService) MoveStage(ctx context.Context, id uint, target int) (*models.WorkflowStage, error) {
	return s.UpdateStage(ctx, id, UpdateStageRequest{Order: &target})
}

// ReorderStages applies a partial stage id -> order mapping within one
// partition of a template.
func (s *WorkflowService) ReorderStages(ctx context.Context, templateID uint, stage models.StageType, mapping map[uint]int) ([]models.WorkflowStage, error) {
	if !stage.Valid() {
		return nil, Validation(CodeValidation, "unknown stage type %q", stage)
	}
	var stages []models.WorkflowStage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tpl models.WorkflowTemplate
		if err := tx.First(&tpl, templateID).Error; err != nil {
			return notFoundOr(err, "workflow template", templateID)
		}
		if err := s.seq.Reorder(tx, stageScope(templateID, stage), mapping); err != nil {
			return err
		}
		return tx.Where("workflow_template_id = ? AND stage = ?", templateID, stage).
			Order("position ASC").Find(&stages).Error
	})
	if err != nil {
		return nil, err
	}
	return stages, nil
}

// FirstStage returns the stage an event starts in: the lowest ordered stage
// of the earliest stage type, or nil for a template without stages.
func (s *WorkflowService) FirstStage(tx *gorm.DB, templateID uint) (*models.WorkflowStage, error) {
	stages, err := s.stagesOf(tx, templateID)
	if err != nil {
		return nil, err
	}
	if len(stages) == 0 {
		return nil, nil
	}
	return &stages[0], nil
}

// ApplyStage manually moves an event to a stage of its workflow template.
func (s *WorkflowService) ApplyStage(ctx context.Context, eventID, stageID uint, actor models.Actor) (*models.Event, error) {
	var event *models.Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		event, err = lockEvent(tx, eventID)
		if err != nil {
			return err
		}
		var stage models.WorkflowStage
		if err := tx.First(&stage, stageID).Error; err != nil {
			return notFoundOr(err, "workflow stage", stageID)
		}
		if event.WorkflowTemplateID == nil || *event.WorkflowTemplateID != stage.WorkflowTemplateID {
			return Validation(CodeStageNotInWorkflow, "stage %d does not belong to the workflow of event %d", stageID, eventID)
		}
		_, err = s.applyStage(tx, event, &stage, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// applyStage sets the event's current stage and records the change. It
// reports false when the event is already in the stage.
func (s *WorkflowService) applyStage(tx *gorm.DB, event *models.Event, stage *models.WorkflowStage, actor models.Actor) (bool, error) {
	if event.CurrentStageID != nil && *event.CurrentStageID == stage.ID {
		return false, nil
	}

	fromName := ""
	if event.CurrentStageID != nil {
		var current models.WorkflowStage
		if err := tx.Select("name").First(&current, *event.CurrentStageID).Error; err == nil {
			fromName = current.Name
		}
	}

	if err := tx.Model(&models.Event{}).Where("id = ?", event.ID).
		Update("current_stage_id", stage.ID).Error; err != nil {
		return false, fmt.Errorf("failed to set stage of event %d: %w", event.ID, err)
	}
	id := stage.ID
	event.CurrentStageID = &id

	if err := addStageTimeline(tx, event.ID, fromName, stage.Name, actor); err != nil {
		return false, err
	}
	s.log.Info().Uint("event_id", event.ID).Str("from", fromName).Str("to", stage.Name).Msg("event stage changed")
	return true, nil
}

// AdvanceOnPayment runs inside a payment completion. It picks the first
// stage of the event's template flagged to trigger on payment, ordered by
// (stage type, order), and applies it when its criterion holds.
func (s *WorkflowService) AdvanceOnPayment(tx *gorm.DB, event *models.Event, actor models.Actor) (bool, error) {
	if event.WorkflowTemplateID == nil {
		return false, nil
	}
	stages, err := s.stagesOf(tx, *event.WorkflowTemplateID)
	if err != nil {
		return false, err
	}

	var candidate *models.WorkflowStage
	for i := range stages {
		if stages[i].TriggerOnPaymentReceived {
			candidate = &stages[i]
			break
		}
	}
	if candidate == nil {
		return false, nil
	}

	criterion, ok := s.criteria[candidate.AdvancementCriteria]
	if !ok {
		s.log.Warn().Uint("stage_id", candidate.ID).Str("criteria", candidate.AdvancementCriteria).Msg("unknown advancement criteria, not advancing")
		return false, nil
	}
	met, err := criterion(tx, event)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate criteria %q: %w", candidate.AdvancementCriteria, err)
	}
	if !met {
		return false, nil
	}
	return s.applyStage(tx, event, candidate, actor)
}
