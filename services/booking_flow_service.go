package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kendall-kelly/eventflow-api/models"
)

// BookingFlowService builds booking flows and manages the products offered
// on their package and addon steps.
type BookingFlowService struct {
	db  *gorm.DB
	seq *Sequencer
	log zerolog.Logger
}

func NewBookingFlowService(db *gorm.DB, seq *Sequencer, log zerolog.Logger) *BookingFlowService {
	return &BookingFlowService{db: db, seq: seq, log: log}
}

func bookingItemScope(kind models.BookingItemKind, configID uint) OrderScope {
	return OrderScope{
		Table: "booking_flow_items",
		Conds: map[string]interface{}{
			"config_kind": string(kind),
			"config_id":   configID,
		},
	}
}

// Step overrides. A nil field keeps the default.
type (
	IntroOverrides struct {
		Title    *string `json:"title,omitempty"`
		Message  *string `json:"message,omitempty"`
		ShowLogo *bool   `json:"show_logo,omitempty"`
	}
	DateOverrides struct {
		Title              *string `json:"title,omitempty"`
		MinLeadDays        *int    `json:"min_lead_days,omitempty"`
		MaxAdvanceDays     *int    `json:"max_advance_days,omitempty"`
		AllowTimeSelection *bool   `json:"allow_time_selection,omitempty"`
	}
	QuestionnaireOverrides struct {
		Title           *string `json:"title,omitempty"`
		QuestionnaireID *uint   `json:"questionnaire_id,omitempty"`
		Required        *bool   `json:"required,omitempty"`
	}
	PackageOverrides struct {
		Title         *string `json:"title,omitempty"`
		AllowMultiple *bool   `json:"allow_multiple,omitempty"`
	}
	AddonOverrides struct {
		Title   *string `json:"title,omitempty"`
		Enabled *bool   `json:"enabled,omitempty"`
	}
	SummaryOverrides struct {
		Title      *string `json:"title,omitempty"`
		ShowPrices *bool   `json:"show_prices,omitempty"`
	}
	PaymentOverrides struct {
		Title          *string          `json:"title,omitempty"`
		RequireDeposit *bool            `json:"require_deposit,omitempty"`
		DepositPercent *decimal.Decimal `json:"deposit_percent,omitempty"`
		AcceptOnline   *bool            `json:"accept_online,omitempty"`
	}
	ConfirmationOverrides struct {
		Title       *string `json:"title,omitempty"`
		Message     *string `json:"message,omitempty"`
		RedirectURL *string `json:"redirect_url,omitempty"`
	}
)

// CreateBookingFlowRequest is the input for a new flow. Every step config is
// created, from the overrides where given and defaults otherwise.
type CreateBookingFlowRequest struct {
	Name          string                 `json:"name"`
	Settings      map[string]interface{} `json:"settings,omitempty"`
	Intro         IntroOverrides         `json:"intro,omitempty"`
	Date          DateOverrides          `json:"date,omitempty"`
	Questionnaire QuestionnaireOverrides `json:"questionnaire,omitempty"`
	Package       PackageOverrides       `json:"package,omitempty"`
	Addon         AddonOverrides         `json:"addon,omitempty"`
	Summary       SummaryOverrides       `json:"summary,omitempty"`
	Payment       PaymentOverrides       `json:"payment,omitempty"`
	Confirmation  ConfirmationOverrides  `json:"confirmation,omitempty"`
}

func str(v *string, def string) string {
	if v != nil {
		return *v
	}
	return def
}

func boolean(v *bool, def bool) bool {
	if v != nil {
		return *v
	}
	return def
}

func integer(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}

// CreateFlow deep-creates a flow and its eight step configs in one
// transaction.
func (s *BookingFlowService) CreateFlow(ctx context.Context, req CreateBookingFlowRequest) (*models.BookingFlow, error) {
	if req.Name == "" {
		return nil, Validation(CodeValidation, "booking flow name is required")
	}
	deposit := decimal.NewFromInt(25)
	if req.Payment.DepositPercent != nil {
		deposit = *req.Payment.DepositPercent
	}
	if deposit.IsNegative() || deposit.GreaterThan(decimal.NewFromInt(100)) {
		return nil, Validation(CodeValidation, "deposit percent must be between 0 and 100")
	}
	minLead := integer(req.Date.MinLeadDays, 7)
	maxAdvance := integer(req.Date.MaxAdvanceDays, 365)
	if minLead < 0 || maxAdvance < minLead {
		return nil, Validation(CodeInvalidDateRange, "date window %d..%d days is invalid", minLead, maxAdvance)
	}

	var flowID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		flow := models.BookingFlow{
			Name:     req.Name,
			IsActive: true,
			Settings: datatypes.JSONMap(req.Settings),
		}
		if err := tx.Omit(clause.Associations).Create(&flow).Error; err != nil {
			return fmt.Errorf("failed to create booking flow: %w", err)
		}
		flowID = flow.ID

		if req.Questionnaire.QuestionnaireID != nil {
			var q models.Questionnaire
			if err := tx.First(&q, *req.Questionnaire.QuestionnaireID).Error; err != nil {
				return notFoundOr(err, "questionnaire", *req.Questionnaire.QuestionnaireID)
			}
		}

		steps := []interface{}{
			&models.BookingIntroConfig{
				FlowID:   flow.ID,
				Title:    str(req.Intro.Title, "Welcome"),
				Message:  str(req.Intro.Message, "Let's plan your event together."),
				ShowLogo: boolean(req.Intro.ShowLogo, true),
			},
			&models.BookingDateConfig{
				FlowID:             flow.ID,
				Title:              str(req.Date.Title, "Choose a date"),
				MinLeadDays:        minLead,
				MaxAdvanceDays:     maxAdvance,
				AllowTimeSelection: boolean(req.Date.AllowTimeSelection, false),
			},
			&models.BookingQuestionnaireConfig{
				FlowID:          flow.ID,
				Title:           str(req.Questionnaire.Title, "Tell us about your event"),
				QuestionnaireID: req.Questionnaire.QuestionnaireID,
				Required:        boolean(req.Questionnaire.Required, true),
			},
			&models.BookingPackageConfig{
				FlowID:        flow.ID,
				Title:         str(req.Package.Title, "Choose a package"),
				AllowMultiple: boolean(req.Package.AllowMultiple, false),
			},
			&models.BookingAddonConfig{
				FlowID:  flow.ID,
				Title:   str(req.Addon.Title, "Add extras"),
				Enabled: boolean(req.Addon.Enabled, true),
			},
			&models.BookingSummaryConfig{
				FlowID:     flow.ID,
				Title:      str(req.Summary.Title, "Review your booking"),
				ShowPrices: boolean(req.Summary.ShowPrices, true),
			},
			&models.BookingPaymentConfig{
				FlowID:         flow.ID,
				Title:          str(req.Payment.Title, "Payment"),
				RequireDeposit: boolean(req.Payment.RequireDeposit, true),
				DepositPercent: deposit,
				AcceptOnline:   boolean(req.Payment.AcceptOnline, true),
			},
			&models.BookingConfirmationConfig{
				FlowID:      flow.ID,
				Title:       str(req.Confirmation.Title, "You're booked!"),
				Message:     str(req.Confirmation.Message, "We'll be in touch shortly."),
				RedirectURL: str(req.Confirmation.RedirectURL, ""),
			},
		}
		for _, step := range steps {
			if err := tx.Create(step).Error; err != nil {
				return fmt.Errorf("failed to create booking step config: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Uint("flow_id", flowID).Str("name", req.Name).Msg("booking flow created")
	return s.GetFlow(ctx, flowID)
}

// GetFlow loads a flow with every step config and the ordered items of the
// package and addon steps.
func (s *BookingFlowService) GetFlow(ctx context.Context, id uint) (*models.BookingFlow, error) {
	db := s.db.WithContext(ctx)
	var flow models.BookingFlow
	err := db.Preload("IntroConfig").Preload("DateConfig").Preload("QuestionnaireConfig").
		Preload("PackageConfig").Preload("AddonConfig").Preload("SummaryConfig").
		Preload("PaymentConfig").Preload("ConfirmationConfig").
		First(&flow, id).Error
	if err != nil {
		return nil, notFoundOr(err, "booking flow", id)
	}

	if flow.PackageConfig != nil {
		items, err := s.items(db, models.BookingItemPackage, flow.PackageConfig.ID)
		if err != nil {
			return nil, err
		}
		flow.PackageConfig.Items = items
	}
	if flow.AddonConfig != nil {
		items, err := s.items(db, models.BookingItemAddon, flow.AddonConfig.ID)
		if err != nil {
			return nil, err
		}
		flow.AddonConfig.Items = items
	}
	return &flow, nil
}

func (s *BookingFlowService) ListFlows(ctx context.Context) ([]models.BookingFlow, error) {
	var flows []models.BookingFlow
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&flows).Error; err != nil {
		return nil, fmt.Errorf("failed to list booking flows: %w", err)
	}
	return flows, nil
}

func (s *BookingFlowService) items(db *gorm.DB, kind models.BookingItemKind, configID uint) ([]models.BookingFlowItem, error) {
	var items []models.BookingFlowItem
	err := db.Preload("Product").
		Where("config_kind = ? AND config_id = ?", kind, configID).
		Order("position ASC").Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load booking items: %w", err)
	}
	return items, nil
}

// DeleteFlow removes a flow, its step configs and items.
func (s *BookingFlowService) DeleteFlow(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var flow models.BookingFlow
		if err := tx.Preload("PackageConfig").Preload("AddonConfig").First(&flow, id).Error; err != nil {
			return notFoundOr(err, "booking flow", id)
		}
		if flow.PackageConfig != nil {
			if err := tx.Where("config_kind = ? AND config_id = ?", models.BookingItemPackage, flow.PackageConfig.ID).
				Delete(&models.BookingFlowItem{}).Error; err != nil {
				return err
			}
		}
		if flow.AddonConfig != nil {
			if err := tx.Where("config_kind = ? AND config_id = ?", models.BookingItemAddon, flow.AddonConfig.ID).
				Delete(&models.BookingFlowItem{}).Error; err != nil {
				return err
			}
		}
		for _, step := range []interface{}{
			&models.BookingIntroConfig{}, &models.BookingDateConfig{}, &models.BookingQuestionnaireConfig{},
			&models.BookingPackageConfig{}, &models.BookingAddonConfig{}, &models.BookingSummaryConfig{},
			&models.BookingPaymentConfig{}, &models.BookingConfirmationConfig{},
		} {
			if err := tx.Where("flow_id = ?", id).Delete(step).Error; err != nil {
				return fmt.Errorf("failed to delete step config: %w", err)
			}
		}
		return tx.Delete(&models.BookingFlow{}, id).Error
	})
}

// configFor resolves the package or addon config of a flow.
func (s *BookingFlowService) configFor(tx *gorm.DB, flowID uint, kind models.BookingItemKind) (uint, error) {
	switch kind {
	case models.BookingItemPackage:
		var cfg models.BookingPackageConfig
		if err := tx.Where("flow_id = ?", flowID).First(&cfg).Error; err != nil {
			return 0, notFoundOr(err, "booking flow", flowID)
		}
		return cfg.ID, nil
	case models.BookingItemAddon:
		var cfg models.BookingAddonConfig
		if err := tx.Where("flow_id = ?", flowID).First(&cfg).Error; err != nil {
			return 0, notFoundOr(err, "booking flow", flowID)
		}
		return cfg.ID, nil
	}
	return 0, Validation(CodeValidation, "unknown booking item kind %q", kind)
}

// AddItem offers a product on the package or addon step of a flow. A nil
// order appends it.
func (s *BookingFlowService) AddItem(ctx context.Context, flowID uint, kind models.BookingItemKind, productID uint, order *int) (*models.BookingFlowItem, error) {
	if order != nil && *order < 1 {
		return nil, Validation(CodeValidation, "order must be at least 1")
	}
	var item models.BookingFlowItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		configID, err := s.configFor(tx, flowID, kind)
		if err != nil {
			return err
		}
		var product models.Product
		if err := tx.First(&product, productID).Error; err != nil {
			return notFoundOr(err, "product", productID)
		}

		scope := bookingItemScope(kind, configID)
		next, err := s.seq.NextPosition(tx, scope)
		if err != nil {
			return err
		}
		item = models.BookingFlowItem{ConfigKind: kind, ConfigID: configID, ProductID: productID, Order: next}
		if err := tx.Omit(clause.Associations).Create(&item).Error; err != nil {
			return fmt.Errorf("failed to add booking item: %w", err)
		}
		if order != nil && *order < next {
			if err := s.seq.MoveTo(tx, scope, item.ID, *order); err != nil {
				return err
			}
		}
		return tx.Preload("Product").First(&item, item.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// RemoveItem deletes an item and compacts the remaining ones.
func (s *BookingFlowService) RemoveItem(ctx context.Context, itemID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.BookingFlowItem
		if err := tx.First(&item, itemID).Error; err != nil {
			return notFoundOr(err, "booking item", itemID)
		}
		if err := tx.Delete(&item).Error; err != nil {
			return fmt.Errorf("failed to remove booking item: %w", err)
		}
		return s.seq.Compact(tx, bookingItemScope(item.ConfigKind, item.ConfigID), item.Order)
	})
}

func (s *BookingFlowService) MoveItem(ctx context.Context, itemID uint, target int) (*models.BookingFlowItem, error) {
	var item models.BookingFlowItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, itemID).Error; err != nil {
			return notFoundOr(err, "booking item", itemID)
		}
		if err := s.seq.MoveTo(tx, bookingItemScope(item.ConfigKind, item.ConfigID), item.ID, target); err != nil {
			return err
		}
		return tx.First(&item, itemID).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ReorderItems applies a partial item id -> order mapping to one step.
func (s *BookingFlowService) ReorderItems(ctx context.Context, flowID uint, kind models.BookingItemKind, mapping map[uint]int) ([]models.BookingFlowItem, error) {
	var items []models.BookingFlowItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		configID, err := s.configFor(tx, flowID, kind)
		if err != nil {
			return err
		}
		if err := s.seq.Reorder(tx, bookingItemScope(kind, configID), mapping); err != nil {
			return err
		}
		items, err = s.items(tx, kind, configID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}
