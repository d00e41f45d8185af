package models

import (
	"time"

	"gorm.io/datatypes"
)

// Timeline entry kinds.
const (
	TimelineQuoteSent       = "QUOTE_SENT"
	TimelineQuoteAccepted   = "QUOTE_ACCEPTED"
	TimelineQuoteRejected   = "QUOTE_REJECTED"
	TimelineInvoiceIssued   = "INVOICE_ISSUED"
	TimelineInvoicePaid     = "INVOICE_PAID"
	TimelinePaymentReceived = "PAYMENT_RECEIVED"
	TimelinePaymentRefunded = "PAYMENT_REFUNDED"
	TimelineContractSigned  = "CONTRACT_SIGNED"
	TimelineStageChanged    = "STAGE_CHANGED"
)

// EventTimeline is an append-only history entry on an event.
type EventTimeline struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	EventID     uint      `gorm:"not null;index" json:"event_id"`
	Kind        string    `gorm:"not null" json:"kind"`
	Description string    `gorm:"type:text" json:"description"`
	FromStage   string    `json:"from_stage,omitempty"`
	ToStage     string    `json:"to_stage,omitempty"`
	ActorID     *uint     `json:"actor_id,omitempty"`
	ActorName   string    `json:"actor_name"`
	CreatedAt   time.Time `json:"created_at"`
}

func (EventTimeline) TableName() string {
	return "event_timeline"
}

// Activity is a CRM audit record for an action on any entity.
type Activity struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	EventID    *uint     `gorm:"index" json:"event_id,omitempty"`
	EntityType string    `gorm:"not null" json:"entity_type"`
	EntityID   uint      `gorm:"not null" json:"entity_id"`
	Action     string    `gorm:"not null" json:"action"`
	Details    string    `gorm:"type:text" json:"details,omitempty"`
	ActorID    *uint     `json:"actor_id,omitempty"`
	ActorName  string    `json:"actor_name"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Activity) TableName() string {
	return "activities"
}

// Notification records an outbound notification and whether the email
// provider accepted it.
type Notification struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	EventID   *uint             `gorm:"index" json:"event_id,omitempty"`
	Kind      string            `gorm:"not null" json:"kind"`
	Template  string            `gorm:"not null" json:"template"`
	Recipient string            `gorm:"not null" json:"recipient"`
	Context   datatypes.JSONMap `json:"context"`
	Delivered bool              `gorm:"not null;default:false" json:"delivered"`
	CreatedAt time.Time         `json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

// FollowUpReminder is a scheduled nudge for a quote the client has not
// answered yet.
type FollowUpReminder struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	QuoteID   uint       `gorm:"not null;index" json:"quote_id"`
	EventID   uint       `gorm:"not null;index" json:"event_id"`
	DueAt     time.Time  `gorm:"not null" json:"due_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (FollowUpReminder) TableName() string {
	return "follow_up_reminders"
}

// Workflow trigger types.
const (
	TriggerPaymentReceived = "PAYMENT_RECEIVED"
)

// WorkflowTrigger records that something happened to an event that workflow
// automation may react to.
type WorkflowTrigger struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	EventID     uint              `gorm:"not null;index" json:"event_id"`
	TriggerType string            `gorm:"not null" json:"trigger_type"`
	Payload     datatypes.JSONMap `json:"payload"`
	CreatedAt   time.Time         `json:"created_at"`
}

func (WorkflowTrigger) TableName() string {
	return "workflow_triggers"
}
