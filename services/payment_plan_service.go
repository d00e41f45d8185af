package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kendall-kelly/eventflow-api/models"
)

// PaymentPlanService splits an event's amount into scheduled installments.
type PaymentPlanService struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewPaymentPlanService(db *gorm.DB, log zerolog.Logger) *PaymentPlanService {
	return &PaymentPlanService{db: db, log: log}
}

// CreatePlanRequest is the input for a new plan. With CreatePayments set a
// pending payment is created for every installment.
type CreatePlanRequest struct {
	EventID              uint
	TotalAmount          decimal.Decimal
	DownPaymentAmount    decimal.Decimal
	NumberOfInstallments int
	Frequency            models.PlanFrequency
	StartDate            time.Time
	CreatePayments       bool
}

func (r CreatePlanRequest) validate() error {
	if !r.TotalAmount.IsPositive() {
		return Validation(CodeValidation, "total amount must be positive")
	}
	if r.DownPaymentAmount.IsNegative() {
		return Validation(CodeValidation, "down payment must not be negative")
	}
	if r.DownPaymentAmount.GreaterThanOrEqual(r.TotalAmount) {
		return Validation(CodeValidation, "down payment must be less than the total amount")
	}
	if r.NumberOfInstallments < 1 {
		return Validation(CodeValidation, "number of installments must be at least 1")
	}
	if r.Frequency.IntervalDays() == 0 {
		return Validation(CodeValidation, "unknown frequency %q", r.Frequency)
	}
	if r.StartDate.IsZero() {
		return Validation(CodeValidation, "start date is required")
	}
	return nil
}

// BuildInstallments generates the schedule of a plan. Installment 0 is the
// down payment, due on the start date, and only exists when the down payment
// is positive. Installments 1..n split the remainder evenly, rounded to
// cents with any remainder added to the last, and are due every interval
// after the start date.
func BuildInstallments(total, down decimal.Decimal, n int, freq models.PlanFrequency, start time.Time) []models.PaymentInstallment {
	var out []models.PaymentInstallment
	if down.IsPositive() {
		out = append(out, models.PaymentInstallment{
			Number:  0,
			Amount:  models.Money(down),
			DueDate: start,
			Status:  models.InstallmentPending,
		})
	}

	remaining := models.Money(total.Sub(down))
	each := remaining.Div(decimal.NewFromInt(int64(n))).RoundDown(2)
	interval := freq.IntervalDays()
	allocated := decimal.Zero
	for i := 1; i <= n; i++ {
		amount := each
		if i == n {
			amount = remaining.Sub(allocated)
		}
		allocated = allocated.Add(amount)
		out = append(out, models.PaymentInstallment{
			Number:  i,
			Amount:  amount,
			DueDate: start.AddDate(0, 0, i*interval),
			Status:  models.InstallmentPending,
		})
	}
	return out
}

func (s *PaymentPlanService) CreatePlan(ctx context.Context, req CreatePlanRequest, actor models.Actor) (*models.PaymentPlan, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	plan := models.PaymentPlan{
		EventID:              req.EventID,
		TotalAmount:          models.Money(req.TotalAmount),
		DownPaymentAmount:    models.Money(req.DownPaymentAmount),
		NumberOfInstallments: req.NumberOfInstallments,
		Frequency:            req.Frequency,
		StartDate:            req.StartDate,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockEvent(tx, req.EventID); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&plan).Error; err != nil {
			return fmt.Errorf("failed to create payment plan: %w", err)
		}

		installments := BuildInstallments(plan.TotalAmount, plan.DownPaymentAmount, plan.NumberOfInstallments, plan.Frequency, plan.StartDate)
		for i := range installments {
			installments[i].PlanID = plan.ID
			if err := tx.Create(&installments[i]).Error; err != nil {
				return fmt.Errorf("failed to create installment %d: %w", installments[i].Number, err)
			}
			if !req.CreatePayments {
				continue
			}
			instID := installments[i].ID
			due := installments[i].DueDate
			payment := models.Payment{
				EventID:       plan.EventID,
				InstallmentID: &instID,
				Amount:        installments[i].Amount,
				Status:        models.PaymentStatusPending,
				DueDate:       &due,
			}
			if err := tx.Omit(clause.Associations).Create(&payment).Error; err != nil {
				return fmt.Errorf("failed to create installment payment: %w", err)
			}
		}
		plan.Installments = installments
		return addActivity(tx, &plan.EventID, "payment_plan", plan.ID, "created",
			fmt.Sprintf("%d installments, %s", len(installments), plan.Frequency), actor)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Uint("plan_id", plan.ID).Uint("event_id", plan.EventID).Int("installments", len(plan.Installments)).Msg("payment plan created")
	return &plan, nil
}

func (s *PaymentPlanService) GetPlan(ctx context.Context, id uint) (*models.PaymentPlan, error) {
	var plan models.PaymentPlan
	err := s.db.WithContext(ctx).
		Preload("Installments", func(db *gorm.DB) *gorm.DB { return db.Order("number ASC") }).
		First(&plan, id).Error
	if err != nil {
		return nil, notFoundOr(err, "payment plan", id)
	}
	return &plan, nil
}

// PlanSummary reports how much of a plan has been paid.
type PlanSummary struct {
	PlanID            uint                       `json:"plan_id"`
	TotalAmount       decimal.Decimal            `json:"total_amount"`
	PaidAmount        decimal.Decimal            `json:"paid_amount"`
	OutstandingAmount decimal.Decimal            `json:"outstanding_amount"`
	PaidCount         int                        `json:"paid_count"`
	NextDue           *models.PaymentInstallment `json:"next_due,omitempty"`
}

func (s *PaymentPlanService) Summary(ctx context.Context, id uint) (*PlanSummary, error) {
	plan, err := s.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	sum := &PlanSummary{PlanID: plan.ID, TotalAmount: plan.TotalAmount, PaidAmount: decimal.Zero}
	for i := range plan.Installments {
		inst := &plan.Installments[i]
		if inst.Status == models.InstallmentPaid {
			sum.PaidAmount = sum.PaidAmount.Add(inst.Amount)
			sum.PaidCount++
			continue
		}
		if sum.NextDue == nil {
			sum.NextDue = inst
		}
	}
	sum.OutstandingAmount = plan.TotalAmount.Sub(sum.PaidAmount)
	return sum, nil
}
