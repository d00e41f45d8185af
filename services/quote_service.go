package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kendall-kelly/eventflow-api/models"
)

// FollowUpDelay is how long after sending a quote the client is reminded.
const FollowUpDelay = 3 * 24 * time.Hour

// QuoteService manages quotes through DRAFT -> SENT -> ACCEPTED | REJECTED | EXPIRED.
type QuoteService struct {
	db             *gorm.DB
	notifier       *Notifier
	defaultTaxRate decimal.Decimal
	now            func() time.Time
	log            zerolog.Logger
}

func NewQuoteService(db *gorm.DB, notifier *Notifier, defaultTaxRate decimal.Decimal, log zerolog.Logger) *QuoteService {
	return &QuoteService{
		db:             db,
		notifier:       notifier,
		defaultTaxRate: defaultTaxRate,
		now:            time.Now,
		log:            log,
	}
}

// CreateQuoteRequest is the input for a new draft quote. A nil TaxRate uses
// the configured default.
type CreateQuoteRequest struct {
	Title      string
	Terms      string
	ValidUntil *time.Time
	TaxRate    *decimal.Decimal
}

// LineItemInput describes a quote or invoice line. When ProductID is set, a
// missing description or unit price is taken from the product.
type LineItemInput struct {
	ProductID   *uint
	Description string
	Quantity    decimal.Decimal
	UnitPrice   *decimal.Decimal
}

// UpdateLineItemRequest lists the mutable fields of a line item.
type UpdateLineItemRequest struct {
	Description *string
	Quantity    *decimal.Decimal
	UnitPrice   *decimal.Decimal
}

func validateTaxRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return Validation(CodeValidation, "tax rate must be between 0 and 100, got %s", rate)
	}
	return nil
}

// nextQuoteVersion returns max(version)+1 for an event. The event row must be
// locked by the caller.
func nextQuoteVersion(tx *gorm.DB, eventID uint) (int, error) {
	var max sql.NullInt64
	if err := tx.Model(&models.EventQuote{}).Where("event_id = ?", eventID).
		Select("MAX(version)").Row().Scan(&max); err != nil {
		return 0, fmt.Errorf("failed to compute quote version: %w", err)
	}
	return int(max.Int64) + 1, nil
}

func (s *QuoteService) CreateQuote(ctx context.Context, eventID uint, req CreateQuoteRequest, actor models.Actor) (*models.EventQuote, error) {
	rate := s.defaultTaxRate
	if req.TaxRate != nil {
		rate = *req.TaxRate
	}
	if err := validateTaxRate(rate); err != nil {
		return nil, err
	}

	var quote models.EventQuote
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockEvent(tx, eventID); err != nil {
			return err
		}
		version, err := nextQuoteVersion(tx, eventID)
		if err != nil {
			return err
		}
		quote = models.EventQuote{
			EventID:    eventID,
			Version:    version,
			Status:     models.QuoteStatusDraft,
			Title:      req.Title,
			Terms:      req.Terms,
			ValidUntil: req.ValidUntil,
			TaxRate:    rate,
		}
		if err := tx.Omit(clause.Associations).Create(&quote).Error; err != nil {
			return fmt.Errorf("failed to create quote: %w", err)
		}
		return addActivity(tx, &eventID, "quote", quote.ID, "created", fmt.Sprintf("version %d", version), actor)
	})
	if err != nil {
		return nil, err
	}
	return s.GetQuote(ctx, quote.ID)
}

func loadQuote(tx *gorm.DB, id uint) (*models.EventQuote, error) {
	var quote models.EventQuote
	err := tx.Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Options.Items").
		Preload("DiscountCode", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		First(&quote, id).Error
	if err != nil {
		return nil, notFoundOr(err, "quote", id)
	}
	return &quote, nil
}

func (s *QuoteService) GetQuote(ctx context.Context, id uint) (*models.EventQuote, error) {
	return loadQuote(s.db.WithContext(ctx), id)
}

func (s *QuoteService) ListQuotes(ctx context.Context, eventID uint) ([]models.EventQuote, error) {
	var quotes []models.EventQuote
	if err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Order("version ASC").Find(&quotes).Error; err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}
	return quotes, nil
}

// DeleteQuote removes a quote that has not been sent.
func (s *QuoteService) DeleteQuote(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quote, err := loadQuote(tx, id)
		if err != nil {
			return err
		}
		if quote.Status != models.QuoteStatusDraft {
			return &Error{
				Kind:    KindInvalidTransition,
				Code:    CodeInvalidQuoteStatus,
				Message: fmt.Sprintf("only draft quotes can be deleted, quote %d is %s", id, quote.Status),
			}
		}
		for _, opt := range quote.Options {
			if err := tx.Where("option_id = ?", opt.ID).Delete(&models.QuoteOptionItem{}).Error; err != nil {
				return err
			}
		}
		for _, model := range []interface{}{&models.QuoteOption{}, &models.QuoteLineItem{}, &models.FollowUpReminder{}} {
			if err := tx.Where("quote_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.EventQuote{}, id).Error
	})
}

// editableQuote loads a quote for a line item change. Only drafts can be
// edited.
func editableQuote(tx *gorm.DB, id uint) (*models.EventQuote, error) {
	quote, err := loadQuote(tx, id)
	if err != nil {
		return nil, err
	}
	if quote.Status != models.QuoteStatusDraft {
		return nil, &Error{
			Kind:    KindInvalidTransition,
			Code:    CodeInvalidQuoteStatus,
			Message: fmt.Sprintf("quote %d is %s and can no longer be edited", id, quote.Status),
		}
	}
	return quote, nil
}

// recalculateQuote reloads the line items and discount of a quote and
// stores the derived money fields.
func recalculateQuote(tx *gorm.DB, id uint) (*models.EventQuote, error) {
	quote, err := loadQuote(tx, id)
	if err != nil {
		return nil, err
	}
	quote.CalculateTotals()
	if err := tx.Model(&models.EventQuote{}).Where("id = ?", id).Updates(map[string]interface{}{
		"subtotal":        quote.Subtotal,
		"discount_amount": quote.DiscountAmount,
		"tax_amount":      quote.TaxAmount,
		"total_amount":    quote.TotalAmount,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to store quote totals: %w", err)
	}
	return quote, nil
}

// resolveLine fills description and unit price from the product when they
// are not given.
func resolveLine(tx *gorm.DB, in LineItemInput) (string, decimal.Decimal, error) {
	if !in.Quantity.IsPositive() {
		return "", decimal.Zero, Validation(CodeValidation, "quantity must be positive")
	}
	desc := in.Description
	var price decimal.Decimal
	if in.UnitPrice != nil {
		price = *in.UnitPrice
	}
	if in.ProductID != nil {
		var product models.Product
		if err := tx.First(&product, *in.ProductID).Error; err != nil {
			return "", decimal.Zero, notFoundOr(err, "product", *in.ProductID)
		}
		if desc == "" {
			desc = product.Name
		}
		if in.UnitPrice == nil {
			price = product.BasePrice
		}
	} else if in.UnitPrice == nil {
		return "", decimal.Zero, Validation(CodeValidation, "unit price is required without a product")
	}
	if desc == "" {
		return "", decimal.Zero, Validation(CodeValidation, "description is required")
	}
	if price.IsNegative() {
		return "", decimal.Zero, Validation(CodeValidation, "unit price must not be negative")
	}
	return desc, models.Money(price), nil
}

func (s *QuoteService) AddLineItem(ctx context.Context, quoteID uint, in LineItemInput) (*models.EventQuote, error) {
	var quote *models.EventQuote
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := editableQuote(tx, quoteID); err != nil {
			return err
		}
		desc, price, err := resolveLine(tx, in)
		if err != nil {
			return err
		}
		item := models.QuoteLineItem{
			QuoteID:     quoteID,
			ProductID:   in.ProductID,
			Description: desc,
			Quantity:    in.Quantity,
			UnitPrice:   price,
			Total:       models.LineTotal(in.Quantity, price),
		}
		if err := tx.Create(&item).Error; err != nil {
			return fmt.Errorf("failed to add line item: %w", err)
		}
		quote, err = recalculateQuote(tx, quoteID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

func (s *QuoteService) UpdateLineItem(ctx context.Context, itemID uint, req UpdateLineItemRequest) (*models.EventQuote, error) {
	var quote *models.EventQuote
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.QuoteLineItem
		if err := tx.First(&item, itemID).Error; err != nil {
			return notFoundOr(err, "quote line item", itemID)
		}
		if _, err := editableQuote(tx, item.QuoteID); err != nil {
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
			return fmt.Errorf("failed to update line item: %w", err)
		}
		var err error
		quote, err = recalculateQuote(tx, item.QuoteID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

func (s *QuoteService) DeleteLineItem(ctx context.Context, itemID uint) (*models.EventQuote, error) {
	var quote *models.EventQuote
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.QuoteLineItem
		if err := tx.First(&item, itemID).Error; err != nil {
			return notFoundOr(err, "quote line item", itemID)
		}
		if _, err := editableQuote(tx, item.QuoteID); err != nil {
			return err
		}
		if err := tx.Delete(&item).Error; err != nil {
			return fmt.Errorf("failed to delete line item: %w", err)
		}
		var err error
		quote, err = recalculateQuote(tx, item.QuoteID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

// ApplyDiscountCode attaches an active discount code to a draft quote.
func (s *QuoteService) ApplyDiscountCode(ctx context.Context, quoteID uint, code string) (*models.EventQuote, error) {
	var quote *models.EventQuote
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := editableQuote(tx, quoteID); err != nil {
			return err
		}
		code = normalizeCode(code)
		var discount models.DiscountCode
		if err := tx.Where("code = ?", code).First(&discount).Error; err != nil {
			return notFoundOr(err, "discount code", code)
		}
		if !discount.IsValidAt(s.now()) {
			return Validation(CodeDiscountNotApplicable, "discount code %s is not active", code)
		}
		if err := tx.Model(&models.EventQuote{}).Where("id = ?", quoteID).
			Update("discount_code_id", discount.ID).Error; err != nil {
			return fmt.Errorf("failed to apply discount: %w", err)
		}
		var err error
		quote, err = recalculateQuote(tx, quoteID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

func (s *QuoteService) RemoveDiscount(ctx context.Context, quoteID uint) (*models.EventQuote, error) {
	var quote *models.EventQuote
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := editableQuote(tx, quoteID); err != nil {
			return err
		}
		if err := tx.Model(&models.EventQuote{}).Where("id = ?", quoteID).
			Update("discount_code_id", nil).Error; err != nil {
			return fmt.Errorf("failed to remove discount: %w", err)
		}
		var err error
		quote, err = recalculateQuote(tx, quoteID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return quote, nil
}

// transition runs a status change with the quote locked. apply sets the
// extra columns and side effects of the transition.
func (s *QuoteService) transition(ctx context.Context, id uint, to models.QuoteStatus, apply func(tx *gorm.DB, quote *models.EventQuote, updates map[string]interface{}) error) (*models.EventQuote, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var quote models.EventQuote
		if err := tx.Clauses(lockingClause()).First(&quote, id).Error; err != nil {
			return notFoundOr(err, "quote", id)
		}
		if !models.CanTransitionQuote(quote.Status, to) {
			return InvalidTransition(CodeInvalidQuoteStatus, "quote", quote.Status, to)
		}
		updates := map[string]interface{}{"status": to}
		if err := apply(tx, &quote, updates); err != nil {
			return err
		}
		if err := tx.Model(&models.EventQuote{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update quote: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Uint("quote_id", id).Str("status", string(to)).Msg("quote status changed")
	return s.GetQuote(ctx, id)
}

// SendQuote marks a draft as sent, schedules a follow-up reminder when the
// quote stays valid past the follow-up delay and emails the client.
func (s *QuoteService) SendQuote(ctx context.Context, id uint, actor models.Actor) (*models.EventQuote, error) {
	return s.transition(ctx, id, models.QuoteStatusSent, func(tx *gorm.DB, quote *models.EventQuote, updates map[string]interface{}) error {
		now := s.now()
		updates["sent_at"] = now

		followUp := now.Add(FollowUpDelay)
		if quote.ValidUntil != nil && quote.ValidUntil.After(followUp) {
			reminder := models.FollowUpReminder{QuoteID: quote.ID, EventID: quote.EventID, DueAt: followUp}
			if err := tx.Create(&reminder).Error; err != nil {
				return fmt.Errorf("failed to schedule follow-up: %w", err)
			}
		}

		if err := addActivity(tx, &quote.EventID, "quote", quote.ID, "sent", fmt.Sprintf("version %d", quote.Version), actor); err != nil {
			return err
		}
		if err := addTimeline(tx, quote.EventID, models.TimelineQuoteSent,
			fmt.Sprintf("Quote v%d sent (%s)", quote.Version, quote.TotalAmount.StringFixed(2)), actor); err != nil {
			return err
		}

		event, err := lockEvent(tx, quote.EventID)
		if err != nil {
			return err
		}
		_, err = s.notifier.Notify(ctx, tx, Message{
			EventID:   &quote.EventID,
			Kind:      models.TimelineQuoteSent,
			Template:  TemplateQuoteSent,
			Recipient: clientEmail(tx, event),
			Context: map[string]interface{}{
				"quote_id":     quote.ID,
				"version":      quote.Version,
				"total_amount": quote.TotalAmount.StringFixed(2),
			},
		})
		return err
	})
}

// AcceptQuote accepts a sent quote and confirms its event at the quote's
// total.
func (s *QuoteService) AcceptQuote(ctx context.Context, id uint, actor models.Actor) (*models.EventQuote, error) {
	return s.transition(ctx, id, models.QuoteStatusAccepted, func(tx *gorm.DB, quote *models.EventQuote, updates map[string]interface{}) error {
		updates["accepted_at"] = s.now()

		if _, err := lockEvent(tx, quote.EventID); err != nil {
			return err
		}
		if err := tx.Model(&models.Event{}).Where("id = ?", quote.EventID).Updates(map[string]interface{}{
			"status":       models.EventStatusConfirmed,
			"total_amount": quote.TotalAmount,
		}).Error; err != nil {
			return fmt.Errorf("failed to confirm event: %w", err)
		}
		if err := tx.Where("quote_id = ? AND sent_at IS NULL", quote.ID).Delete(&models.FollowUpReminder{}).Error; err != nil {
			return fmt.Errorf("failed to clear follow-ups: %w", err)
		}
		if _, err := refreshEventPaymentStatus(tx, quote.EventID); err != nil {
			return err
		}

		if err := addActivity(tx, &quote.EventID, "quote", quote.ID, "accepted", fmt.Sprintf("version %d", quote.Version), actor); err != nil {
			return err
		}
		return addTimeline(tx, quote.EventID, models.TimelineQuoteAccepted,
			fmt.Sprintf("Quote v%d accepted (%s)", quote.Version, quote.TotalAmount.StringFixed(2)), actor)
	})
}

func (s *QuoteService) RejectQuote(ctx context.Context, id uint, reason string, actor models.Actor) (*models.EventQuote, error) {
	return s.transition(ctx, id, models.QuoteStatusRejected, func(tx *gorm.DB, quote *models.EventQuote, updates map[string]interface{}) error {
		updates["rejected_at"] = s.now()
		updates["rejection_reason"] = reason

		if err := tx.Where("quote_id = ? AND sent_at IS NULL", quote.ID).Delete(&models.FollowUpReminder{}).Error; err != nil {
			return fmt.Errorf("failed to clear follow-ups: %w", err)
		}
		if err := addActivity(tx, &quote.EventID, "quote", quote.ID, "rejected", reason, actor); err != nil {
			return err
		}
		return addTimeline(tx, quote.EventID, models.TimelineQuoteRejected,
			fmt.Sprintf("Quote v%d rejected", quote.Version), actor)
	})
}

// ExpireQuote closes a sent quote the client never answered.
func (s *QuoteService) ExpireQuote(ctx context.Context, id uint, actor models.Actor) (*models.EventQuote, error) {
	return s.transition(ctx, id, models.QuoteStatusExpired, func(tx *gorm.DB, quote *models.EventQuote, updates map[string]interface{}) error {
		updates["expired_at"] = s.now()
		if err := tx.Where("quote_id = ? AND sent_at IS NULL", quote.ID).Delete(&models.FollowUpReminder{}).Error; err != nil {
			return fmt.Errorf("failed to clear follow-ups: %w", err)
		}
		return addActivity(tx, &quote.EventID, "quote", quote.ID, "expired", "", actor)
	})
}

// CreateNextVersion clones a quote into a new draft with the next version
// number of its event.
func (s *QuoteService) CreateNextVersion(ctx context.Context, id uint, actor models.Actor) (*models.EventQuote, error) {
	var next models.EventQuote
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		source, err := loadQuote(tx, id)
		if err != nil {
			return err
		}
		if _, err := lockEvent(tx, source.EventID); err != nil {
			return err
		}
		version, err := nextQuoteVersion(tx, source.EventID)
		if err != nil {
			return err
		}

		next = models.EventQuote{
			EventID:        source.EventID,
			Version:        version,
			Status:         models.QuoteStatusDraft,
			Title:          source.Title,
			Terms:          source.Terms,
			ValidUntil:     source.ValidUntil,
			DiscountCodeID: source.DiscountCodeID,
			TaxRate:        source.TaxRate,
			Subtotal:       source.Subtotal,
			DiscountAmount: source.DiscountAmount,
			TaxAmount:      source.TaxAmount,
			TotalAmount:    source.TotalAmount,
		}
		if err := tx.Omit(clause.Associations).Create(&next).Error; err != nil {
			return fmt.Errorf("failed to create quote version: %w", err)
		}

		for _, li := range source.LineItems {
			clone := models.QuoteLineItem{
				QuoteID:     next.ID,
				ProductID:   li.ProductID,
				Description: li.Description,
				Quantity:    li.Quantity,
				UnitPrice:   li.UnitPrice,
				Total:       li.Total,
			}
			if err := tx.Create(&clone).Error; err != nil {
				return fmt.Errorf("failed to clone line item: %w", err)
			}
		}
		for _, opt := range source.Options {
			optClone := models.QuoteOption{
				QuoteID:     next.ID,
				Name:        opt.Name,
				Description: opt.Description,
				IsSelected:  opt.IsSelected,
			}
			if err := tx.Omit(clause.Associations).Create(&optClone).Error; err != nil {
				return fmt.Errorf("failed to clone option: %w", err)
			}
			for _, it := range opt.Items {
				itClone := models.QuoteOptionItem{
					OptionID:    optClone.ID,
					ProductID:   it.ProductID,
					Description: it.Description,
					Quantity:    it.Quantity,
					UnitPrice:   it.UnitPrice,
					Total:       it.Total,
				}
				if err := tx.Create(&itClone).Error; err != nil {
					return fmt.Errorf("failed to clone option item: %w", err)
				}
			}
		}
		return addActivity(tx, &source.EventID, "quote", next.ID, "versioned",
			fmt.Sprintf("version %d from version %d", version, source.Version), actor)
	})
	if err != nil {
		return nil, err
	}
	return s.GetQuote(ctx, next.ID)
}

// AddOption adds an alternative to a draft quote.
func (s *QuoteService) AddOption(ctx context.Context, quoteID uint, name, description string) (*models.QuoteOption, error) {
	if name == "" {
		return nil, Validation(CodeValidation, "option name is required")
	}
	opt := models.QuoteOption{QuoteID: quoteID, Name: name, Description: description}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := editableQuote(tx, quoteID); err != nil {
			return err
		}
		return tx.Create(&opt).Error
	})
	if err != nil {
		return nil, err
	}
	return &opt, nil
}

func (s *QuoteService) AddOptionItem(ctx context.Context, optionID uint, in LineItemInput) (*models.QuoteOption, error) {
	var opt models.QuoteOption
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&opt, optionID).Error; err != nil {
			return notFoundOr(err, "quote option", optionID)
		}
		if _, err := editableQuote(tx, opt.QuoteID); err != nil {
			return err
		}
		desc, price, err := resolveLine(tx, in)
		if err != nil {
			return err
		}
		item := models.QuoteOptionItem{
			OptionID:    optionID,
			ProductID:   in.ProductID,
			Description: desc,
			Quantity:    in.Quantity,
			UnitPrice:   price,
			Total:       models.LineTotal(in.Quantity, price),
		}
		if err := tx.Create(&item).Error; err != nil {
			return fmt.Errorf("failed to add option item: %w", err)
		}
		return tx.Preload("Items").First(&opt, optionID).Error
	})
	if err != nil {
		return nil, err
	}
	return &opt, nil
}

// SelectOption marks one option of a quote as the client's choice.
func (s *QuoteService) SelectOption(ctx context.Context, optionID uint) (*models.EventQuote, error) {
	var quoteID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var opt models.QuoteOption
		if err := tx.First(&opt, optionID).Error; err != nil {
			return notFoundOr(err, "quote option", optionID)
		}
		quoteID = opt.QuoteID
		if err := tx.Model(&models.QuoteOption{}).Where("quote_id = ?", opt.QuoteID).
			Update("is_selected", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.QuoteOption{}).Where("id = ?", optionID).Update("is_selected", true).Error
	})
	if err != nil {
		return nil, err
	}
	return s.GetQuote(ctx, quoteID)
}
