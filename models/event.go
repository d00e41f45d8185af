package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// EventStatus is the booking status of an event.
type EventStatus string

const (
	EventStatusInquiry   EventStatus = "INQUIRY"
	EventStatusConfirmed EventStatus = "CONFIRMED"
	EventStatusCompleted EventStatus = "COMPLETED"
	EventStatusCancelled EventStatus = "CANCELLED"
)

// EventPaymentStatus aggregates the payments received for an event.
type EventPaymentStatus string

const (
	EventPaymentUnpaid        EventPaymentStatus = "UNPAID"
	EventPaymentPartiallyPaid EventPaymentStatus = "PARTIALLY_PAID"
	EventPaymentPaid          EventPaymentStatus = "PAID"
)

// Event is a booked (or inquired) event for a client.
type Event struct {
	ID                 uint               `gorm:"primaryKey" json:"id"`
	Name               string             `gorm:"not null" json:"name"`
	ClientID           *uint              `gorm:"index" json:"client_id"`
	Client             *Client            `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	EventDate          *time.Time         `json:"event_date,omitempty"`
	Status             EventStatus        `gorm:"not null;default:'INQUIRY'" json:"status"`
	PaymentStatus      EventPaymentStatus `gorm:"not null;default:'UNPAID'" json:"payment_status"`
	TotalAmount        decimal.Decimal    `gorm:"type:decimal(12,2);not null;default:0" json:"total_amount"`
	AmountPaid         decimal.Decimal    `gorm:"type:decimal(12,2);not null;default:0" json:"amount_paid"`
	WorkflowTemplateID *uint              `gorm:"index" json:"workflow_template_id"`
	CurrentStageID     *uint              `json:"current_stage_id"`
	CurrentStage       *WorkflowStage     `gorm:"foreignKey:CurrentStageID" json:"current_stage,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
	DeletedAt          gorm.DeletedAt     `gorm:"index" json:"-"`
}

func (Event) TableName() string {
	return "events"
}

// PaymentStatusFor derives the aggregate payment status from the amount due
// and the net amount received.
func PaymentStatusFor(due, paid decimal.Decimal) EventPaymentStatus {
	switch {
	case !paid.IsPositive():
		return EventPaymentUnpaid
	case paid.GreaterThanOrEqual(due):
		return EventPaymentPaid
	default:
		return EventPaymentPartiallyPaid
	}
}
