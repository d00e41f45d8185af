package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kendall-kelly/eventflow-api/models"
)

// QuoteTemplateService manages reusable quote templates and turns them into
// draft quotes.
type QuoteTemplateService struct {
	db             *gorm.DB
	seq            *Sequencer
	defaultTaxRate decimal.Decimal
	now            func() time.Time
	log            zerolog.Logger
}

func NewQuoteTemplateService(db *gorm.DB, seq *Sequencer, defaultTaxRate decimal.Decimal, log zerolog.Logger) *QuoteTemplateService {
	return &QuoteTemplateService{db: db, seq: seq, defaultTaxRate: defaultTaxRate, now: time.Now, log: log}
}

func templateProductScope(templateID uint) OrderScope {
	return OrderScope{
		Table: "quote_template_products",
		Conds: map[string]interface{}{"quote_template_id": templateID},
	}
}

// TemplateProductInput is one product line of a template. A nil UnitPrice
// uses the product's base price when the template is applied.
type TemplateProductInput struct {
	ProductID uint
	Quantity  decimal.Decimal
	UnitPrice *decimal.Decimal
	Order     *int
}

type CreateQuoteTemplateRequest struct {
	Name         string
	Title        string
	Terms        string
	TaxRate      *decimal.Decimal
	ValidityDays int
	Products     []TemplateProductInput
}

func (s *QuoteTemplateService) CreateTemplate(ctx context.Context, req CreateQuoteTemplateRequest) (*models.QuoteTemplate, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, Validation(CodeValidation, "template name is required")
	}
	if req.ValidityDays < 0 {
		return nil, Validation(CodeValidation, "validity days must not be negative")
	}
	if req.ValidityDays == 0 {
		req.ValidityDays = 30
	}
	tpl := models.QuoteTemplate{
		Name:         req.Name,
		Title:        req.Title,
		Terms:        req.Terms,
		ValidityDays: req.ValidityDays,
	}
	if req.TaxRate != nil {
		if err := validateTaxRate(*req.TaxRate); err != nil {
			return nil, err
		}
		tpl.TaxRate = decimal.NullDecimal{Decimal: *req.TaxRate, Valid: true}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&tpl).Error; err != nil {
			return fmt.Errorf("failed to create quote template: %w", err)
		}
		for _, in := range req.Products {
			if _, err := s.addProduct(tx, tpl.ID, in); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetTemplate(ctx, tpl.ID)
}

func (s *QuoteTemplateService) addProduct(tx *gorm.DB, templateID uint, in TemplateProductInput) (*models.QuoteTemplateProduct, error) {
	if !in.Quantity.IsPositive() {
		return nil, Validation(CodeValidation, "quantity must be positive")
	}
	if in.UnitPrice != nil && in.UnitPrice.IsNegative() {
		return nil, Validation(CodeValidation, "unit price must not be negative")
	}
	if in.Order != nil && *in.Order < 1 {
		return nil, Validation(CodeValidation, "order must be at least 1")
	}
	var product models.Product
	if err := tx.First(&product, in.ProductID).Error; err != nil {
		return nil, notFoundOr(err, "product", in.ProductID)
	}

	scope := templateProductScope(templateID)
	next, err := s.seq.NextPosition(tx, scope)
	if err != nil {
		return nil, err
	}
	line := models.QuoteTemplateProduct{
		QuoteTemplateID: templateID,
		ProductID:       product.ID,
		Quantity:        in.Quantity,
		Order:           next,
	}
	if in.UnitPrice != nil {
		line.UnitPrice = decimal.NullDecimal{Decimal: models.Money(*in.UnitPrice), Valid: true}
	}
	if err := tx.Omit(clause.Associations).Create(&line).Error; err != nil {
		return nil, fmt.Errorf("failed to add template product: %w", err)
	}
	if in.Order != nil && *in.Order < next {
		if err := s.seq.MoveTo(tx, scope, line.ID, *in.Order); err != nil {
			return nil, err
		}
	}
	return &line, nil
}

// GetTemplate loads a template with its products in order.
func (s *QuoteTemplateService) GetTemplate(ctx context.Context, id uint) (*models.QuoteTemplate, error) {
	return loadQuoteTemplate(s.db.WithContext(ctx), id)
}

func loadQuoteTemplate(tx *gorm.DB, id uint) (*models.QuoteTemplate, error) {
	var tpl models.QuoteTemplate
	err := tx.
		Preload("Products", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Products.Product").
		First(&tpl, id).Error
	if err != nil {
		return nil, notFoundOr(err, "quote template", id)
	}
	return &tpl, nil
}

func (s *QuoteTemplateService) ListTemplates(ctx context.Context) ([]models.QuoteTemplate, error) {
	var tpls []models.QuoteTemplate
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&tpls).Error; err != nil {
		return nil, fmt.Errorf("failed to list quote templates: %w", err)
	}
	return tpls, nil
}

func (s *QuoteTemplateService) DeleteTemplate(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tpl models.QuoteTemplate
		if err := tx.First(&tpl, id).Error; err != nil {
			return notFoundOr(err, "quote template", id)
		}
		if err := tx.Where("quote_template_id = ?", id).Delete(&models.QuoteTemplateProduct{}).Error; err != nil {
			return fmt.Errorf("failed to delete template products: %w", err)
		}
		return tx.Delete(&tpl).Error
	})
}

// AddProduct appends a product line, or inserts it at Order.
func (s *QuoteTemplateService) AddProduct(ctx context.Context, templateID uint, in TemplateProductInput) (*models.QuoteTemplate, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tpl models.QuoteTemplate
		if err := tx.First(&tpl, templateID).Error; err != nil {
			return notFoundOr(err, "quote template", templateID)
		}
		_, err := s.addProduct(tx, templateID, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetTemplate(ctx, templateID)
}

func (s *QuoteTemplateService) RemoveProduct(ctx context.Context, lineID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var line models.QuoteTemplateProduct
		if err := tx.First(&line, lineID).Error; err != nil {
			return notFoundOr(err, "quote template product", lineID)
		}
		if err := tx.Delete(&line).Error; err != nil {
			return fmt.Errorf("failed to remove template product: %w", err)
		}
		return s.seq.Compact(tx, templateProductScope(line.QuoteTemplateID), line.Order)
	})
}

func (s *QuoteTemplateService) MoveProduct(ctx context.Context, lineID uint, target int) (*models.QuoteTemplate, error) {
	if target < 1 {
		return nil, Validation(CodeValidation, "order must be at least 1")
	}
	var templateID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var line models.QuoteTemplateProduct
		if err := tx.First(&line, lineID).Error; err != nil {
			return notFoundOr(err, "quote template product", lineID)
		}
		templateID = line.QuoteTemplateID
		return s.seq.MoveTo(tx, templateProductScope(templateID), line.ID, target)
	})
	if err != nil {
		return nil, err
	}
	return s.GetTemplate(ctx, templateID)
}

func (s *QuoteTemplateService) ReorderProducts(ctx context.Context, templateID uint, mapping map[uint]int) (*models.QuoteTemplate, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tpl models.QuoteTemplate
		if err := tx.First(&tpl, templateID).Error; err != nil {
			return notFoundOr(err, "quote template", templateID)
		}
		return s.seq.Reorder(tx, templateProductScope(templateID), mapping)
	})
	if err != nil {
		return nil, err
	}
	return s.GetTemplate(ctx, templateID)
}

// ApplyToEvent creates the next draft quote version of an event from a
// template. Lines without a price override use the product's base price.
func (s *QuoteTemplateService) ApplyToEvent(ctx context.Context, templateID, eventID uint, actor models.Actor) (*models.EventQuote, error) {
	var quote *models.EventQuote
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockEvent(tx, eventID); err != nil {
			return err
		}
		tpl, err := loadQuoteTemplate(tx, templateID)
		if err != nil {
			return err
		}
		version, err := nextQuoteVersion(tx, eventID)
		if err != nil {
			return err
		}

		rate := s.defaultTaxRate
		if tpl.TaxRate.Valid {
			rate = tpl.TaxRate.Decimal
		}
		y, m, d := s.now().Date()
		validUntil := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, tpl.ValidityDays)
		title := tpl.Title
		if title == "" {
			title = tpl.Name
		}
		q := models.EventQuote{
			EventID:    eventID,
			Version:    version,
			Status:     models.QuoteStatusDraft,
			Title:      title,
			Terms:      tpl.Terms,
			ValidUntil: &validUntil,
			TaxRate:    rate,
		}
		if err := tx.Omit(clause.Associations).Create(&q).Error; err != nil {
			return fmt.Errorf("failed to create quote: %w", err)
		}

		for _, p := range tpl.Products {
			if p.Product == nil {
				return NotFound("product", p.ProductID)
			}
			price := p.Product.BasePrice
			if p.UnitPrice.Valid {
				price = p.UnitPrice.Decimal
			}
			productID := p.ProductID
			line := models.QuoteLineItem{
				QuoteID:     q.ID,
				ProductID:   &productID,
				Description: p.Product.Name,
				Quantity:    p.Quantity,
				UnitPrice:   models.Money(price),
				Total:       models.LineTotal(p.Quantity, price),
			}
			if err := tx.Create(&line).Error; err != nil {
				return fmt.Errorf("failed to add quote line: %w", err)
			}
		}

		quote, err = recalculateQuote(tx, q.ID)
		if err != nil {
			return err
		}
		return addActivity(tx, &eventID, "quote", q.ID, "created",
			fmt.Sprintf("version %d from template %s", version, tpl.Name), actor)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Uint("template_id", templateID).Uint("event_id", eventID).Uint("quote_id", quote.ID).Msg("quote template applied")
	return quote, nil
}
