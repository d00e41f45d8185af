package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// Payment is money expected from or received for an event.
type Payment struct {
	ID               uint                `gorm:"primaryKey" json:"id"`
	EventID          uint                `gorm:"not null;index" json:"event_id"`
	QuoteID          *uint               `gorm:"index" json:"quote_id,omitempty"`
	InvoiceID        *uint               `gorm:"index" json:"invoice_id,omitempty"`
	InstallmentID    *uint               `gorm:"index" json:"installment_id,omitempty"`
	Installment      *PaymentInstallment `gorm:"foreignKey:InstallmentID" json:"-"`
	Amount           decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status           PaymentStatus       `gorm:"not null;default:'PENDING'" json:"status"`
	Method           string              `json:"method,omitempty"`
	DueDate          *time.Time          `json:"due_date,omitempty"`
	PaidOn           *time.Time          `json:"paid_on,omitempty"`
	ReceiptNumber    *string             `gorm:"uniqueIndex" json:"receipt_number,omitempty"`
	ReceiptSent      bool                `gorm:"not null;default:false" json:"receipt_sent"`
	GatewayReference string              `json:"gateway_reference,omitempty"`
	FailureReason    string              `gorm:"type:text" json:"failure_reason,omitempty"`
	Notes            string              `gorm:"type:text" json:"notes,omitempty"`
	Refunds          []PaymentRefund     `gorm:"foreignKey:PaymentID" json:"refunds,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// RefundedAmount sums the loaded refunds.
func (p *Payment) RefundedAmount() decimal.Decimal {
	total := decimal.Zero
	for _, r := range p.Refunds {
		total = total.Add(r.Amount)
	}
	return total
}

// PaymentRefund returns part or all of a completed payment.
type PaymentRefund struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	PaymentID uint            `gorm:"not null;index" json:"payment_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Reason    string          `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (PaymentRefund) TableName() string {
	return "payment_refunds"
}
