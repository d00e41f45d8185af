package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlanFrequency is the spacing between installments.
type PlanFrequency string

const (
	FrequencyWeekly    PlanFrequency = "WEEKLY"
	FrequencyBiweekly  PlanFrequency = "BIWEEKLY"
	FrequencyMonthly   PlanFrequency = "MONTHLY"
	FrequencyQuarterly PlanFrequency = "QUARTERLY"
)

// IntervalDays returns the number of days between installments, or 0 for an
// unknown frequency.
func (f PlanFrequency) IntervalDays() int {
	switch f {
	case FrequencyWeekly:
		return 7
	case FrequencyBiweekly:
		return 14
	case FrequencyMonthly:
		return 30
	case FrequencyQuarterly:
		return 90
	}
	return 0
}

type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "PENDING"
	InstallmentPaid    InstallmentStatus = "PAID"
)

// PaymentPlan splits an amount into a down payment and equal installments.
type PaymentPlan struct {
	ID                   uint                 `gorm:"primaryKey" json:"id"`
	EventID              uint                 `gorm:"not null;index" json:"event_id"`
	TotalAmount          decimal.Decimal      `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	DownPaymentAmount    decimal.Decimal      `gorm:"type:decimal(12,2);not null;default:0" json:"down_payment_amount"`
	NumberOfInstallments int                  `gorm:"not null" json:"number_of_installments"`
	Frequency            PlanFrequency        `gorm:"not null" json:"frequency"`
	StartDate            time.Time            `gorm:"not null" json:"start_date"`
	Installments         []PaymentInstallment `gorm:"foreignKey:PlanID" json:"installments,omitempty"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

func (PaymentPlan) TableName() string {
	return "payment_plans"
}

// PaymentInstallment is one scheduled amount of a plan. Number 0 is the down
// payment.
type PaymentInstallment struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	PlanID    uint              `gorm:"not null;uniqueIndex:idx_installment_number" json:"plan_id"`
	Number    int               `gorm:"not null;uniqueIndex:idx_installment_number" json:"number"`
	Amount    decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"amount"`
	DueDate   time.Time         `gorm:"not null" json:"due_date"`
	Status    InstallmentStatus `gorm:"not null;default:'PENDING'" json:"status"`
	PaidAt    *time.Time        `json:"paid_at,omitempty"`
}

func (PaymentInstallment) TableName() string {
	return "payment_installments"
}
