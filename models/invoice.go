package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusIssued    InvoiceStatus = "ISSUED"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusVoid      InvoiceStatus = "VOID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:  {InvoiceStatusIssued, InvoiceStatusVoid, InvoiceStatusCancelled},
	InvoiceStatusIssued: {InvoiceStatusPaid},
}

// CanTransitionInvoice reports whether from -> to is an allowed invoice transition.
func CanTransitionInvoice(from, to InvoiceStatus) bool {
	for _, s := range invoiceTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusVoid || s == InvoiceStatusCancelled
}

// Invoice bills an event, optionally derived from an accepted quote.
type Invoice struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	EventID     uint              `gorm:"not null;index" json:"event_id"`
	QuoteID     *uint             `gorm:"index" json:"quote_id,omitempty"`
	Number      string            `gorm:"size:50;uniqueIndex;not null" json:"number"`
	Status      InvoiceStatus     `gorm:"not null;default:'DRAFT'" json:"status"`
	IssueDate   *time.Time        `json:"issue_date,omitempty"`
	DueDate     *time.Time        `json:"due_date,omitempty"`
	PaidAt      *time.Time        `json:"paid_at,omitempty"`
	VoidedAt    *time.Time        `json:"voided_at,omitempty"`
	CancelledAt *time.Time        `json:"cancelled_at,omitempty"`
	TaxRate     decimal.Decimal   `gorm:"type:decimal(5,2);not null;default:0" json:"tax_rate"`
	Subtotal    decimal.Decimal   `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`
	TaxAmount   decimal.Decimal   `gorm:"type:decimal(12,2);not null;default:0" json:"tax_amount"`
	TotalAmount decimal.Decimal   `gorm:"type:decimal(12,2);not null;default:0" json:"total_amount"`
	Notes       string            `gorm:"type:text" json:"notes,omitempty"`
	LineItems   []InvoiceLineItem `gorm:"foreignKey:InvoiceID" json:"line_items,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (Invoice) TableName() string {
	return "invoices"
}

// CalculateTotals recomputes Subtotal, TaxAmount and TotalAmount from LineItems.
func (inv *Invoice) CalculateTotals() {
	lines := make([]decimal.Decimal, 0, len(inv.LineItems))
	for _, li := range inv.LineItems {
		lines = append(lines, li.Total)
	}
	t := ComputeTotals(lines, nil, inv.TaxRate)
	inv.Subtotal = t.Subtotal
	inv.TaxAmount = t.TaxAmount
	inv.TotalAmount = t.TotalAmount
}

type InvoiceLineItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	InvoiceID   uint            `gorm:"not null;index" json:"invoice_id"`
	Description string          `gorm:"not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	Total       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
}

func (InvoiceLineItem) TableName() string {
	return "invoice_line_items"
}
