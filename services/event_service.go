package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/kendall-kelly/eventflow-api/models"
)

// EventService manages events and their history.
type EventService struct {
	db        *gorm.DB
	workflows *WorkflowService
	log       zerolog.Logger
}

func NewEventService(db *gorm.DB, workflows *WorkflowService, log zerolog.Logger) *EventService {
	return &EventService{db: db, workflows: workflows, log: log}
}

// CreateEventRequest is the input for a new event. When a workflow template
// is given the event starts in its first stage.
type CreateEventRequest struct {
	Name               string
	ClientID           *uint
	EventDate          *time.Time
	WorkflowTemplateID *uint
}

func (s *EventService) CreateEvent(ctx context.Context, req CreateEventRequest, actor models.Actor) (*models.Event, error) {
	if req.Name == "" {
		return nil, Validation(CodeValidation, "event name is required")
	}

	event := models.Event{
		Name:          req.Name,
		ClientID:      req.ClientID,
		EventDate:     req.EventDate,
		Status:        models.EventStatusInquiry,
		PaymentStatus: models.EventPaymentUnpaid,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.ClientID != nil {
			var client models.Client
			if err := tx.First(&client, *req.ClientID).Error; err != nil {
				return notFoundOr(err, "client", *req.ClientID)
			}
		}
		if req.WorkflowTemplateID != nil {
			var tpl models.WorkflowTemplate
			if err := tx.First(&tpl, *req.WorkflowTemplateID).Error; err != nil {
				return notFoundOr(err, "workflow template", *req.WorkflowTemplateID)
			}
			event.WorkflowTemplateID = req.WorkflowTemplateID
		}
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("failed to create event: %w", err)
		}
		if err := addActivity(tx, &event.ID, "event", event.ID, "created", event.Name, actor); err != nil {
			return err
		}

		if event.WorkflowTemplateID == nil {
			return nil
		}
		first, err := s.workflows.FirstStage(tx, *event.WorkflowTemplateID)
		if err != nil || first == nil {
			return err
		}
		_, err = s.workflows.applyStage(tx, &event, first, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (s *EventService) GetEvent(ctx context.Context, id uint) (*models.Event, error) {
	var event models.Event
	if err := s.db.WithContext(ctx).Preload("Client").Preload("CurrentStage").First(&event, id).Error; err != nil {
		return nil, notFoundOr(err, "event", id)
	}
	return &event, nil
}

func (s *EventService) ListEvents(ctx context.Context, status models.EventStatus) ([]models.Event, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var events []models.Event
	if err := q.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

var eventTransitions = map[models.EventStatus][]models.EventStatus{
	models.EventStatusInquiry:   {models.EventStatusConfirmed, models.EventStatusCancelled},
	models.EventStatusConfirmed: {models.EventStatusCompleted, models.EventStatusCancelled},
}

// SetStatus moves an event along INQUIRY -> CONFIRMED -> COMPLETED, with
// CANCELLED reachable from either open state.
func (s *EventService) SetStatus(ctx context.Context, id uint, status models.EventStatus, actor models.Actor) (*models.Event, error) {
	var event *models.Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		event, err = lockEvent(tx, id)
		if err != nil {
			return err
		}
		allowed := false
		for _, next := range eventTransitions[event.Status] {
			if next == status {
				allowed = true
			}
		}
		if !allowed {
			return InvalidTransition("INVALID_EVENT_STATUS", "event", event.Status, status)
		}
		from := event.Status
		if err := tx.Model(event).Update("status", status).Error; err != nil {
			return fmt.Errorf("failed to update event status: %w", err)
		}
		event.Status = status
		return addActivity(tx, &event.ID, "event", event.ID, "status_changed",
			fmt.Sprintf("%s -> %s", from, status), actor)
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// Timeline returns the history of an event, oldest first.
func (s *EventService) Timeline(ctx context.Context, eventID uint) ([]models.EventTimeline, error) {
	var entries []models.EventTimeline
	if err := s.db.WithContext(ctx).Where("event_id = ?", eventID).
		Order("created_at ASC, id ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load timeline: %w", err)
	}
	return entries, nil
}

// Activities returns the audit records of an event, newest first.
func (s *EventService) Activities(ctx context.Context, eventID uint) ([]models.Activity, error) {
	var entries []models.Activity
	if err := s.db.WithContext(ctx).Where("event_id = ?", eventID).
		Order("created_at DESC, id DESC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load activities: %w", err)
	}
	return entries, nil
}
