package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteStatus is the lifecycle state of an EventQuote.
type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "DRAFT"
	QuoteStatusSent     QuoteStatus = "SENT"
	QuoteStatusAccepted QuoteStatus = "ACCEPTED"
	QuoteStatusRejected QuoteStatus = "REJECTED"
	QuoteStatusExpired  QuoteStatus = "EXPIRED"
)

var quoteTransitions = map[QuoteStatus][]QuoteStatus{
	QuoteStatusDraft: {QuoteStatusSent},
	QuoteStatusSent:  {QuoteStatusAccepted, QuoteStatusRejected, QuoteStatusExpired},
}

// CanTransitionQuote reports whether from -> to is an allowed quote transition.
func CanTransitionQuote(from, to QuoteStatus) bool {
	for _, s := range quoteTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// EventQuote is one version of a priced proposal for an event.
type EventQuote struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	EventID         uint            `gorm:"not null;uniqueIndex:idx_quote_event_version" json:"event_id"`
	Event           *Event          `gorm:"foreignKey:EventID" json:"-"`
	Version         int             `gorm:"not null;uniqueIndex:idx_quote_event_version" json:"version"`
	Status          QuoteStatus     `gorm:"not null;default:'DRAFT'" json:"status"`
	Title           string          `json:"title"`
	Terms           string          `gorm:"type:text" json:"terms,omitempty"`
	ValidUntil      *time.Time      `json:"valid_until,omitempty"`
	DiscountCodeID  *uint           `json:"discount_code_id,omitempty"`
	DiscountCode    *DiscountCode   `gorm:"foreignKey:DiscountCodeID" json:"discount_code,omitempty"`
	TaxRate         decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"tax_rate"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`
	DiscountAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount_amount"`
	TaxAmount       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"tax_amount"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_amount"`
	SentAt          *time.Time      `json:"sent_at,omitempty"`
	AcceptedAt      *time.Time      `json:"accepted_at,omitempty"`
	RejectedAt      *time.Time      `json:"rejected_at,omitempty"`
	ExpiredAt       *time.Time      `json:"expired_at,omitempty"`
	RejectionReason string          `gorm:"type:text" json:"rejection_reason,omitempty"`
	LineItems       []QuoteLineItem `gorm:"foreignKey:QuoteID" json:"line_items,omitempty"`
	Options         []QuoteOption   `gorm:"foreignKey:QuoteID" json:"options,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (EventQuote) TableName() string {
	return "event_quotes"
}

// CalculateTotals recomputes the derived money fields from LineItems. The
// DiscountCode association must be loaded when DiscountCodeID is set.
func (q *EventQuote) CalculateTotals() {
	lines := make([]decimal.Decimal, 0, len(q.LineItems))
	for _, li := range q.LineItems {
		lines = append(lines, li.Total)
	}
	t := ComputeTotals(lines, q.DiscountCode, q.TaxRate)
	q.Subtotal = t.Subtotal
	q.DiscountAmount = t.DiscountAmount
	q.TaxAmount = t.TaxAmount
	q.TotalAmount = t.TotalAmount
}

// QuoteLineItem is a priced line on a quote.
type QuoteLineItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	QuoteID     uint            `gorm:"not null;index" json:"quote_id"`
	ProductID   *uint           `json:"product_id,omitempty"`
	Description string          `gorm:"not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Total       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (QuoteLineItem) TableName() string {
	return "quote_line_items"
}

// QuoteOption is one alternative on a multi-option quote.
type QuoteOption struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	QuoteID     uint              `gorm:"not null;index" json:"quote_id"`
	Name        string            `gorm:"not null" json:"name"`
	Description string            `gorm:"type:text" json:"description,omitempty"`
	IsSelected  bool              `gorm:"not null;default:false" json:"is_selected"`
	Items       []QuoteOptionItem `gorm:"foreignKey:OptionID" json:"items,omitempty"`
}

func (QuoteOption) TableName() string {
	return "quote_options"
}

type QuoteOptionItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	OptionID    uint            `gorm:"not null;index" json:"option_id"`
	ProductID   *uint           `json:"product_id,omitempty"`
	Description string          `gorm:"not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Total       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
}

func (QuoteOptionItem) TableName() string {
	return "quote_option_items"
}
