package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kendall-kelly/eventflow-api/models"
)

// DefaultPaymentTerms is the due date offset used when an invoice is issued
// without one.
const DefaultPaymentTerms = 30 * 24 * time.Hour

// InvoiceService manages invoices through DRAFT -> ISSUED -> PAID, with VOID
// and CANCELLED reachable from DRAFT.
type InvoiceService struct {
	db             *gorm.DB
	notifier       *Notifier
	defaultTaxRate decimal.Decimal
	now            func() time.Time
	log            zerolog.Logger
}

func NewInvoiceService(db *gorm.DB, notifier *Notifier, defaultTaxRate decimal.Decimal, log zerolog.Logger) *InvoiceService {
	return &InvoiceService{
		db:             db,
		notifier:       notifier,
		defaultTaxRate: defaultTaxRate,
		now:            time.Now,
		log:            log,
	}
}

// CreateInvoiceRequest is the input for a new draft invoice.
type CreateInvoiceRequest struct {
	QuoteID *uint
	DueDate *time.Time
	Notes   string
	TaxRate *decimal.Decimal
}

func newInvoiceNumber(now time.Time) string {
	return fmt.Sprintf("INV-%s-%s", now.Format("20060102"), strings.ToUpper(uuid.NewString()[:8]))
}

func (s *InvoiceService) CreateInvoice(ctx context.Context, eventID uint, req CreateInvoiceRequest, actor models.Actor) (*models.Invoice, error) {
	rate := s.defaultTaxRate
	if req.TaxRate != nil {
		rate = *req.TaxRate
	}
	if err := validateTaxRate(rate); err != nil {
		return nil, err
	}

	var inv models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockEvent(tx, eventID); err != nil {
			return err
		}
		if req.QuoteID != nil {
			var quote models.EventQuote
			if err := tx.First(&quote, *req.QuoteID).Error; err != nil {
				return notFoundOr(err, "quote", *req.QuoteID)
			}
			if quote.EventID != eventID {
				return Validation(CodeValidation, "quote %d belongs to another event", *req.QuoteID)
			}
		}
		inv = models.Invoice{
			EventID: eventID,
			QuoteID: req.QuoteID,
			Number:  newInvoiceNumber(s.now()),
			Status:  models.InvoiceStatusDraft,
			DueDate: req.DueDate,
			TaxRate: rate,
			Notes:   req.Notes,
		}
		if err := tx.Omit(clause.Associations).Create(&inv).Error; err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}
		return addActivity(tx, &eventID, "invoice", inv.ID, "created", inv.Number, actor)
	})
	if err != nil {
		return nil, err
	}
	return s.GetInvoice(ctx, inv.ID)
}

// CreateFromQuote drafts an invoice billing an accepted quote. The quote's
// discount becomes a negative line so the invoice total matches the quote.
func (s *InvoiceService) CreateFromQuote(ctx context.Context, quoteID uint, actor models.Actor) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quote, err := loadQuote(tx, quoteID)
		if err != nil {
			return err
		}
		if quote.Status != models.QuoteStatusAccepted {
			return &Error{
				Kind:    KindInvalidTransition,
				Code:    CodeInvalidQuoteStatus,
				Message: fmt.Sprintf("only accepted quotes can be invoiced, quote %d is %s", quoteID, quote.Status),
			}
		}
		if _, err := lockEvent(tx, quote.EventID); err != nil {
			return err
		}

		id := quote.ID
		inv = models.Invoice{
			EventID: quote.EventID,
			QuoteID: &id,
			Number:  newInvoiceNumber(s.now()),
			Status:  models.InvoiceStatusDraft,
			TaxRate: quote.TaxRate,
			Notes:   quote.Terms,
		}
		for _, li := range quote.LineItems {
			inv.LineItems = append(inv.LineItems, models.InvoiceLineItem{
				Description: li.Description,
				Quantity:    li.Quantity,
				UnitPrice:   li.UnitPrice,
				Total:       li.Total,
			})
		}
		if quote.DiscountAmount.IsPositive() {
			label := "Discount"
			if quote.DiscountCode != nil {
				label = fmt.Sprintf("Discount (%s)", quote.DiscountCode.Code)
			}
			inv.LineItems = append(inv.LineItems, models.InvoiceLineItem{
				Description: label,
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   quote.DiscountAmount.Neg(),
				Total:       quote.DiscountAmount.Neg(),
			})
		}
		inv.CalculateTotals()
		if err := tx.Create(&inv).Error; err != nil {
			return fmt.Errorf("failed to create invoice from quote: %w", err)
		}
		return addActivity(tx, &inv.EventID, "invoice", inv.ID, "created",
			fmt.Sprintf("%s from quote v%d", inv.Number, quote.Version), actor)
	})
	if err != nil {
		return nil, err
	}
	return s.GetInvoice(ctx, inv.ID)
}

func loadInvoice(tx *gorm.DB, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := tx.Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).First(&inv, id).Error
	if err != nil {
		return nil, notFoundOr(err, "invoice", id)
	}
	return &inv, nil
}

func (s *InvoiceService) GetInvoice(ctx context.Context, id uint) (*models.Invoice, error) {
	return loadInvoice(s.db.WithContext(ctx), id)
}

func (s *InvoiceService) ListInvoices(ctx context.Context, eventID uint) ([]models.Invoice, error) {
	var invoices []models.Invoice
	if err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Order("created_at ASC").Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}

func draftInvoice(tx *gorm.DB, id uint) (*models.Invoice, error) {
	inv, err := loadInvoice(tx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status != models.InvoiceStatusDraft {
		return nil, &Error{
			Kind:    KindInvalidTransition,
			Code:    CodeInvalidInvoiceStatus,
			Message: fmt.Sprintf("invoice %s is %s and can no longer be edited", inv.Number, inv.Status),
		}
	}
	return inv, nil
}

func recalculateInvoice(tx *gorm.DB, id uint) (*models.Invoice, error) {
	inv, err := loadInvoice(tx, id)
	if err != nil {
		return nil, err
	}
	inv.CalculateTotals()
	if err := tx.Model(&models.Invoice{}).Where("id = ?", id).Updates(map[string]interface{}{
		"subtotal":     inv.Subtotal,
		"tax_amount":   inv.TaxAmount,
		"total_amount": inv.TotalAmount,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to store invoice totals: %w", err)
	}
	return inv, nil
}

func (s *InvoiceService) AddLineItem(ctx context.Context, invoiceID uint, in LineItemInput) (*models.Invoice, error) {
	var inv *models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := draftInvoice(tx, invoiceID); err != nil {
			return err
		}
		desc, price, err := resolveLine(tx, in)
		if err != nil {
			return err
		}
		item := models.InvoiceLineItem{
			InvoiceID:   invoiceID,
			Description: desc,
			Quantity:    in.Quantity,
			UnitPrice:   price,
			Total:       models.LineTotal(in.Quantity, price),
		}
		if err := tx.Create(&item).Error; err != nil {
			return fmt.Errorf("failed to add invoice line: %w", err)
		}
		inv, err = recalculateInvoice(tx, invoiceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *InvoiceService) UpdateLineItem(ctx context.Context, itemID uint, req UpdateLineItemRequest) (*models.Invoice, error) {
	var inv *models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.InvoiceLineItem
		if err := tx.First(&item, itemID).Error; err != nil {
			return notFoundOr(err, "invoice line item", itemID)
		}
		if _, err := draftInvoice(tx, item.InvoiceID); err != nil {
			return err
		}
		if req.Description != nil {
			if *req.Description == "" {
				return Validation(CodeValidation, "description is required")
			}
			item.Description = *req.Description
		}
		if req.Quantity != nil {
			if !req.Quantity.IsPositive() {
				return Validation(CodeValidation, "quantity must be positive")
			}
			item.Quantity = *req.Quantity
		}
		if req.UnitPrice != nil {
			if req.UnitPrice.IsNegative() {
				return Validation(CodeValidation, "unit price must not be negative")
			}
			item.UnitPrice = models.Money(*req.UnitPrice)
		}
		item.Total = models.LineTotal(item.Quantity, item.UnitPrice)
		if err := tx.Save(&item).Error; err != nil {
			return fmt.Errorf("failed to update invoice line: %w", err)
		}
		var err error
		inv, err = recalculateInvoice(tx, item.InvoiceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *InvoiceService) DeleteLineItem(ctx context.Context, itemID uint) (*models.Invoice, error) {
	var inv *models.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.InvoiceLineItem
		if err := tx.First(&item, itemID).Error; err != nil {
			return notFoundOr(err, "invoice line item", itemID)
		}
		if _, err := draftInvoice(tx, item.InvoiceID); err != nil {
			return err
		}
		if err := tx.Delete(&item).Error; err != nil {
			return fmt.Errorf("failed to delete invoice line: %w", err)
		}
		var err error
		inv, err = recalculateInvoice(tx, item.InvoiceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// transition runs a status change with the invoice locked.
func (s *InvoiceService) transition(ctx context.Context, id uint, to models.InvoiceStatus, apply func(tx *gorm.DB, inv *models.Invoice, updates map[string]interface{}) error) (*models.Invoice, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return transitionInvoice(tx, id, to, apply)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Uint("invoice_id", id).Str("status", string(to)).Msg("invoice status changed")
	return s.GetInvoice(ctx, id)
}

func transitionInvoice(tx *gorm.DB, id uint, to models.InvoiceStatus, apply func(tx *gorm.DB, inv *models.Invoice, updates map[string]interface{}) error) error {
	var inv models.Invoice
	if err := tx.Clauses(lockingClause()).First(&inv, id).Error; err != nil {
		return notFoundOr(err, "invoice", id)
	}
	if !models.CanTransitionInvoice(inv.Status, to) {
		return InvalidTransition(CodeInvalidInvoiceStatus, "invoice", inv.Status, to)
	}
	updates := map[string]interface{}{"status": to}
	if apply != nil {
		if err := apply(tx, &inv, updates); err != nil {
			return err
		}
	}
	if err := tx.Model(&models.Invoice{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	return nil
}

// IssueInvoice stamps the issue date, notifies the client and records the
// event on the timeline.
func (s *InvoiceService) IssueInvoice(ctx context.Context, id uint, actor models.Actor) (*models.Invoice, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var eventID uint
		err := transitionInvoice(tx, id, models.InvoiceStatusIssued, func(tx *gorm.DB, inv *models.Invoice, updates map[string]interface{}) error {
			eventID = inv.EventID
			now := s.now()
			updates["issue_date"] = now
			due := inv.DueDate
			if due == nil {
				d := now.Add(DefaultPaymentTerms)
				due = &d
				updates["due_date"] = d
			}

			if err := addTimeline(tx, inv.EventID, models.TimelineInvoiceIssued,
				fmt.Sprintf("Invoice %s issued (%s)", inv.Number, inv.TotalAmount.StringFixed(2)), actor); err != nil {
				return err
			}
			if err := addActivity(tx, &inv.EventID, "invoice", inv.ID, "issued", inv.Number, actor); err != nil {
				return err
			}

			event, err := lockEvent(tx, inv.EventID)
			if err != nil {
				return err
			}
			_, err = s.notifier.Notify(ctx, tx, Message{
				EventID:   &inv.EventID,
				Kind:      models.TimelineInvoiceIssued,
				Template:  TemplateInvoiceIssued,
				Recipient: clientEmail(tx, event),
				Context: map[string]interface{}{
					"invoice_id":   inv.ID,
					"number":       inv.Number,
					"total_amount": inv.TotalAmount.StringFixed(2),
					"due_date":     due.Format("2006-01-02"),
				},
			})
			return err
		})
		if err != nil {
			return err
		}
		_, err = refreshEventPaymentStatus(tx, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Uint("invoice_id", id).Msg("invoice issued")
	return s.GetInvoice(ctx, id)
}

// MarkPaid settles an issued invoice.
func (s *InvoiceService) MarkPaid(ctx context.Context, id uint, actor models.Actor) (*models.Invoice, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.markPaid(tx, id, actor)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Uint("invoice_id", id).Msg("invoice paid")
	return s.GetInvoice(ctx, id)
}

func (s *InvoiceService) markPaid(tx *gorm.DB, id uint, actor models.Actor) error {
	var eventID uint
	err := transitionInvoice(tx, id, models.InvoiceStatusPaid, func(tx *gorm.DB, inv *models.Invoice, updates map[string]interface{}) error {
		eventID = inv.EventID
		updates["paid_at"] = s.now()
		return addTimeline(tx, inv.EventID, models.TimelineInvoicePaid,
			fmt.Sprintf("Invoice %s paid", inv.Number), actor)
	})
	if err != nil {
		return err
	}
	_, err = refreshEventPaymentStatus(tx, eventID)
	return err
}

func (s *InvoiceService) VoidInvoice(ctx context.Context, id uint, actor models.Actor) (*models.Invoice, error) {
	return s.transition(ctx, id, models.InvoiceStatusVoid, func(tx *gorm.DB, inv *models.Invoice, updates map[string]interface{}) error {
		updates["voided_at"] = s.now()
		return addActivity(tx, &inv.EventID, "invoice", inv.ID, "voided", inv.Number, actor)
	})
}

func (s *InvoiceService) CancelInvoice(ctx context.Context, id uint, actor models.Actor) (*models.Invoice, error) {
	return s.transition(ctx, id, models.InvoiceStatusCancelled, func(tx *gorm.DB, inv *models.Invoice, updates map[string]interface{}) error {
		updates["cancelled_at"] = s.now()
		return addActivity(tx, &inv.EventID, "invoice", inv.ID, "cancelled", inv.Number, actor)
	})
}

// settleIfCovered marks an issued invoice paid once its completed payments,
// net of refunds, cover its total.
func (s *InvoiceService) settleIfCovered(tx *gorm.DB, invoiceID uint, actor models.Actor) (bool, error) {
	var inv models.Invoice
	if err := tx.First(&inv, invoiceID).Error; err != nil {
		return false, notFoundOr(err, "invoice", invoiceID)
	}
	if inv.Status != models.InvoiceStatusIssued {
		return false, nil
	}
	var payments []models.Payment
	if err := tx.Preload("Refunds").
		Where("invoice_id = ? AND status = ?", invoiceID, models.PaymentStatusCompleted).
		Find(&payments).Error; err != nil {
		return false, fmt.Errorf("failed to load invoice payments: %w", err)
	}
	covered := decimal.Zero
	for i := range payments {
		covered = covered.Add(payments[i].Amount).Sub(payments[i].RefundedAmount())
	}
	if covered.LessThan(inv.TotalAmount) {
		return false, nil
	}
	return true, s.markPaid(tx, invoiceID, actor)
}
