package services

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/kendall-kelly/eventflow-api/models"
)

func addTimeline(tx *gorm.DB, eventID uint, kind, description string, actor models.Actor) error {
	entry := models.EventTimeline{
		EventID:     eventID,
		Kind:        kind,
		Description: description,
		ActorID:     actor.ID,
		ActorName:   actor.Name,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to add timeline entry: %w", err)
	}
	return nil
}

func addStageTimeline(tx *gorm.DB, eventID uint, from, to string, actor models.Actor) error {
	desc := fmt.Sprintf("Stage changed to %s", to)
	if from != "" {
		desc = fmt.Sprintf("Stage changed from %s to %s", from, to)
	}
	entry := models.EventTimeline{
		EventID:     eventID,
		Kind:        models.TimelineStageChanged,
		Description: desc,
		FromStage:   from,
		ToStage:     to,
		ActorID:     actor.ID,
		ActorName:   actor.Name,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("failed to add stage timeline entry: %w", err)
	}
	return nil
}

func addActivity(tx *gorm.DB, eventID *uint, entityType string, entityID uint, action, details string, actor models.Actor) error {
	a := models.Activity{
		EventID:    eventID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Details:    details,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
	}
	if err := tx.Create(&a).Error; err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// lockEvent loads an event with a row lock held for the transaction.
func lockEvent(tx *gorm.DB, id uint) (*models.Event, error) {
	var event models.Event
	if err := tx.Clauses(lockingClause()).First(&event, id).Error; err != nil {
		return nil, notFoundOr(err, "event", id)
	}
	return &event, nil
}
