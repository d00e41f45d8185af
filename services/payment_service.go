package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kendall-kelly/eventflow-api/models"
)

// PaymentService records payments and runs the cascade that follows a
// completed payment.
type PaymentService struct {
	db        *gorm.DB
	notifier  *Notifier
	invoices  *InvoiceService
	workflows *WorkflowService
	gateway   PaymentGateway
	now       func() time.Time
	log       zerolog.Logger
}

func NewPaymentService(db *gorm.DB, notifier *Notifier, invoices *InvoiceService, workflows *WorkflowService, gateway PaymentGateway, log zerolog.Logger) *PaymentService {
	return &PaymentService{
		db:        db,
		notifier:  notifier,
		invoices:  invoices,
		workflows: workflows,
		gateway:   gateway,
		now:       time.Now,
		log:       log,
	}
}

// CreatePaymentRequest is the input for a new pending payment.
type CreatePaymentRequest struct {
	EventID       uint
	QuoteID       *uint
	InvoiceID     *uint
	InstallmentID *uint
	Amount        decimal.Decimal
	Method        string
	DueDate       *time.Time
	Notes         string
}

// UpdatePaymentRequest lists the mutable fields of a payment. Once a
// payment is completed only Notes may change.
type UpdatePaymentRequest struct {
	Amount  *decimal.Decimal
	Method  *string
	DueDate *time.Time
	Notes   *string
}

func (r UpdatePaymentRequest) notesOnly() bool {
	return r.Amount == nil && r.Method == nil && r.DueDate == nil
}

// CompletePaymentRequest carries the details of a received payment.
type CompletePaymentRequest struct {
	PaidOn           *time.Time
	Method           string
	ReceiptNumber    string
	GatewayReference string
}

func newReceiptNumber() string {
	return "RCPT-" + strings.ToUpper(uuid.NewString()[:8])
}

func (s *PaymentService) CreatePayment(ctx context.Context, req CreatePaymentRequest, actor models.Actor) (*models.Payment, error) {
	if !req.Amount.IsPositive() {
		return nil, Validation(CodeValidation, "payment amount must be positive")
	}

	payment := models.Payment{
		EventID:       req.EventID,
		QuoteID:       req.QuoteID,
		InvoiceID:     req.InvoiceID,
		InstallmentID: req.InstallmentID,
		Amount:        models.Money(req.Amount),
		Status:        models.PaymentStatusPending,
		Method:        req.Method,
		DueDate:       req.DueDate,
		Notes:         req.Notes,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockEvent(tx, req.EventID); err != nil {
			return err
		}
		if err := checkPaymentLinks(tx, &payment); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&payment).Error; err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		return addActivity(tx, &payment.EventID, "payment", payment.ID, "created", payment.Amount.StringFixed(2), actor)
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// checkPaymentLinks verifies that the quote, invoice and installment a
// payment points at exist and belong to its event.
func checkPaymentLinks(tx *gorm.DB, p *models.Payment) error {
	if p.QuoteID != nil {
		var quote models.EventQuote
		if err := tx.First(&quote, *p.QuoteID).Error; err != nil {
			return notFoundOr(err, "quote", *p.QuoteID)
		}
		if quote.EventID != p.EventID {
			return Validation(CodeValidation, "quote %d belongs to another event", *p.QuoteID)
		}
	}
	if p.InvoiceID != nil {
		var inv models.Invoice
		if err := tx.First(&inv, *p.InvoiceID).Error; err != nil {
			return notFoundOr(err, "invoice", *p.InvoiceID)
		}
		if inv.EventID != p.EventID {
			return Validation(CodeValidation, "invoice %d belongs to another event", *p.InvoiceID)
		}
	}
	if p.InstallmentID != nil {
		var inst models.PaymentInstallment
		if err := tx.First(&inst, *p.InstallmentID).Error; err != nil {
			return notFoundOr(err, "installment", *p.InstallmentID)
		}
		var plan models.PaymentPlan
		if err := tx.First(&plan, inst.PlanID).Error; err != nil {
			return notFoundOr(err, "payment plan", inst.PlanID)
		}
		if plan.EventID != p.EventID {
			return Validation(CodeValidation, "installment %d belongs to another event", *p.InstallmentID)
		}
	}
	return nil
}

func (s *PaymentService) GetPayment(ctx context.Context, id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).Preload("Refunds").First(&payment, id).Error; err != nil {
		return nil, notFoundOr(err, "payment", id)
	}
	return &payment, nil
}

func (s *PaymentService) ListPayments(ctx context.Context, eventID uint) ([]models.Payment, error) {
	var payments []models.Payment
	if err := s.db.WithContext(ctx).Preload("Refunds").Where("event_id = ?", eventID).
		Order("created_at ASC").Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

func lockPayment(tx *gorm.DB, id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := tx.Clauses(lockingClause()).First(&payment, id).Error; err != nil {
		return nil, notFoundOr(err, "payment", id)
	}
	return &payment, nil
}

func (s *PaymentService) UpdatePayment(ctx context.Context, id uint, req UpdatePaymentRequest) (*models.Payment, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := lockPayment(tx, id)
		if err != nil {
			return err
		}
		switch payment.Status {
		case models.PaymentStatusCompleted:
			if !req.notesOnly() {
				return &Error{
					Kind:    KindInvalidTransition,
					Code:    CodePaymentAlreadyCompleted,
					Message: fmt.Sprintf("payment %d is completed, only notes can be changed", id),
				}
			}
		case models.PaymentStatusFailed:
			if !req.notesOnly() {
				return &Error{
					Kind:    KindInvalidTransition,
					Code:    CodeInvalidPaymentStatus,
					Message: fmt.Sprintf("payment %d has failed, only notes can be changed", id),
				}
			}
		}

		updates := map[string]interface{}{}
		if req.Amount != nil {
			if !req.Amount.IsPositive() {
				return Validation(CodeValidation, "payment amount must be positive")
			}
			updates["amount"] = models.Money(*req.Amount)
		}
		if req.Method != nil {
			updates["method"] = *req.Method
		}
		if req.DueDate != nil {
			updates["due_date"] = *req.DueDate
		}
		if req.Notes != nil {
			updates["notes"] = *req.Notes
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&models.Payment{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetPayment(ctx, id)
}

// CompletePayment marks a pending payment as received. In the same
// transaction it issues a receipt, settles the linked installment, updates
// the event's payment status, settles a fully covered invoice and lets the
// event's workflow react to the payment.
func (s *PaymentService) CompletePayment(ctx context.Context, id uint, req CompletePaymentRequest, actor models.Actor) (*models.Payment, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.complete(ctx, tx, id, req, actor)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Uint("payment_id", id).Msg("payment completed")
	return s.GetPayment(ctx, id)
}

func (s *PaymentService) complete(ctx context.Context, tx *gorm.DB, id uint, req CompletePaymentRequest, actor models.Actor) error {
	payment, err := lockPayment(tx, id)
	if err != nil {
		return err
	}
	if payment.Status != models.PaymentStatusPending {
		code := CodeInvalidPaymentStatus
		if payment.Status == models.PaymentStatusCompleted {
			code = CodePaymentAlreadyCompleted
		}
		return InvalidTransition(code, "payment", payment.Status, models.PaymentStatusCompleted)
	}

	paidOn := s.now()
	if req.PaidOn != nil {
		paidOn = *req.PaidOn
	}
	receipt := req.ReceiptNumber
	if payment.ReceiptNumber != nil && *payment.ReceiptNumber != "" {
		receipt = *payment.ReceiptNumber
	}
	if receipt == "" {
		receipt = newReceiptNumber()
	}

	updates := map[string]interface{}{
		"status":         models.PaymentStatusCompleted,
		"paid_on":        paidOn,
		"receipt_number": receipt,
	}
	if req.Method != "" {
		updates["method"] = req.Method
	}
	if req.GatewayReference != "" {
		updates["gateway_reference"] = req.GatewayReference
	}
	if err := tx.Model(&models.Payment{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to complete payment: %w", err)
	}

	if err := addTimeline(tx, payment.EventID, models.TimelinePaymentReceived,
		fmt.Sprintf("Payment of %s received (%s)", payment.Amount.StringFixed(2), receipt), actor); err != nil {
		return err
	}

	if payment.InstallmentID != nil {
		if err := tx.Model(&models.PaymentInstallment{}).Where("id = ?", *payment.InstallmentID).
			Updates(map[string]interface{}{"status": models.InstallmentPaid, "paid_at": paidOn}).Error; err != nil {
			return fmt.Errorf("failed to settle installment: %w", err)
		}
	}

	event, err := refreshEventPaymentStatus(tx, payment.EventID)
	if err != nil {
		return err
	}

	delivered, err := s.notifier.Notify(ctx, tx, Message{
		EventID:   &payment.EventID,
		Kind:      models.TimelinePaymentReceived,
		Template:  TemplatePaymentReceipt,
		Recipient: clientEmail(tx, event),
		Context: map[string]interface{}{
			"payment_id":     payment.ID,
			"receipt_number": receipt,
			"amount":         payment.Amount.StringFixed(2),
			"paid_on":        paidOn.Format("2006-01-02"),
		},
	})
	if err != nil {
		return err
	}
	if delivered {
		if err := tx.Model(&models.Payment{}).Where("id = ?", id).Update("receipt_sent", true).Error; err != nil {
			return fmt.Errorf("failed to flag receipt: %w", err)
		}
	}

	if payment.InvoiceID != nil {
		settled, err := s.invoices.settleIfCovered(tx, *payment.InvoiceID, actor)
		if err != nil {
			return err
		}
		if settled {
			if event, err = lockEvent(tx, payment.EventID); err != nil {
				return err
			}
		}
	}

	if event.WorkflowTemplateID == nil {
		return nil
	}
	trigger := models.WorkflowTrigger{
		EventID:     event.ID,
		TriggerType: models.TriggerPaymentReceived,
		Payload: datatypes.JSONMap{
			"payment_id": payment.ID,
			"amount":     payment.Amount.StringFixed(2),
		},
	}
	if err := tx.Create(&trigger).Error; err != nil {
		return fmt.Errorf("failed to record workflow trigger: %w", err)
	}
	_, err = s.workflows.AdvanceOnPayment(tx, event, actor)
	return err
}

func (s *PaymentService) FailPayment(ctx context.Context, id uint, reason string, actor models.Actor) (*models.Payment, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.fail(tx, id, reason, actor)
	})
	if err != nil {
		return nil, err
	}
	return s.GetPayment(ctx, id)
}

func (s *PaymentService) fail(tx *gorm.DB, id uint, reason string, actor models.Actor) error {
	payment, err := lockPayment(tx, id)
	if err != nil {
		return err
	}
	if payment.Status != models.PaymentStatusPending {
		code := CodeInvalidPaymentStatus
		if payment.Status == models.PaymentStatusCompleted {
			code = CodePaymentAlreadyCompleted
		}
		return InvalidTransition(code, "payment", payment.Status, models.PaymentStatusFailed)
	}
	if err := tx.Model(&models.Payment{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":         models.PaymentStatusFailed,
		"failure_reason": reason,
	}).Error; err != nil {
		return fmt.Errorf("failed to fail payment: %w", err)
	}
	return addActivity(tx, &payment.EventID, "payment", payment.ID, "failed", reason, actor)
}

// RefundPayment returns part of a completed payment. The total refunded
// never exceeds the payment amount.
func (s *PaymentService) RefundPayment(ctx context.Context, id uint, amount decimal.Decimal, reason string, actor models.Actor) (*models.Payment, error) {
	if !amount.IsPositive() {
		return nil, Validation(CodeValidation, "refund amount must be positive")
	}
	amount = models.Money(amount)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := lockPayment(tx, id)
		if err != nil {
			return err
		}
		if payment.Status != models.PaymentStatusCompleted {
			return &Error{
				Kind:    KindInvalidTransition,
				Code:    CodeInvalidPaymentStatus,
				Message: fmt.Sprintf("only completed payments can be refunded, payment %d is %s", id, payment.Status),
			}
		}
		if err := tx.Where("payment_id = ?", id).Find(&payment.Refunds).Error; err != nil {
			return fmt.Errorf("failed to load refunds: %w", err)
		}
		remaining := payment.Amount.Sub(payment.RefundedAmount())
		if amount.GreaterThan(remaining) {
			return Validation(CodeRefundExceedsPayment, "refund of %s exceeds the refundable %s", amount.StringFixed(2), remaining.StringFixed(2))
		}

		refund := models.PaymentRefund{PaymentID: id, Amount: amount, Reason: reason}
		if err := tx.Create(&refund).Error; err != nil {
			return fmt.Errorf("failed to record refund: %w", err)
		}
		if err := addTimeline(tx, payment.EventID, models.TimelinePaymentRefunded,
			fmt.Sprintf("Refund of %s issued", amount.StringFixed(2)), actor); err != nil {
			return err
		}
		_, err = refreshEventPaymentStatus(tx, payment.EventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetPayment(ctx, id)
}

// ChargeOnlineRequest carries a tokenized card for a gateway charge.
type ChargeOnlineRequest struct {
	Token           string
	PaymentMethodID string
	Installments    int
	PayerEmail      string
}

// ChargeOnline charges a pending payment through the payment gateway. An
// approved charge completes the payment, a rejected one fails it and any
// other status leaves it pending with the gateway reference stored.
func (s *PaymentService) ChargeOnline(ctx context.Context, id uint, req ChargeOnlineRequest, actor models.Actor) (*models.Payment, error) {
	if req.Token == "" || req.PaymentMethodID == "" {
		return nil, Validation(CodeValidation, "card token and payment method are required")
	}
	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusPending {
		return nil, InvalidTransition(CodeInvalidPaymentStatus, "payment", payment.Status, models.PaymentStatusCompleted)
	}

	result, err := s.gateway.Charge(ctx, ChargeRequest{
		Amount:            payment.Amount,
		Description:       fmt.Sprintf("Event %d payment %d", payment.EventID, payment.ID),
		PaymentMethodID:   req.PaymentMethodID,
		Token:             req.Token,
		Installments:      req.Installments,
		PayerEmail:        req.PayerEmail,
		ExternalReference: fmt.Sprintf("payment-%d", payment.ID),
	})
	if err != nil {
		return nil, ExternalDependency(CodePaymentGatewayFailed, err, "payment gateway could not process the charge")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch {
		case result.Approved():
			return s.complete(ctx, tx, id, CompletePaymentRequest{
				Method:           "card:" + req.PaymentMethodID,
				GatewayReference: result.ProviderID,
			}, actor)
		case result.Status == "rejected" || result.Status == "cancelled":
			if err := tx.Model(&models.Payment{}).Where("id = ?", id).
				Update("gateway_reference", result.ProviderID).Error; err != nil {
				return err
			}
			return s.fail(tx, id, result.Detail, actor)
		default:
			return tx.Model(&models.Payment{}).Where("id = ?", id).
				Update("gateway_reference", result.ProviderID).Error
		}
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Uint("payment_id", id).Str("gateway_status", result.Status).Msg("online charge processed")
	return s.GetPayment(ctx, id)
}
