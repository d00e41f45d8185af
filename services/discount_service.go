package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kendall-kelly/eventflow-api/models"
)

// DiscountService manages promotional discount codes.
type DiscountService struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewDiscountService(db *gorm.DB, log zerolog.Logger) *DiscountService {
	return &DiscountService{db: db, log: log}
}

type DiscountInput struct {
	Code       string
	Type       models.DiscountType
	Value      decimal.Decimal
	ValidFrom  *time.Time
	ValidUntil *time.Time
	IsActive   *bool
}

// normalizeCode trims and upper-cases a code so lookups are case-insensitive.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func validateDiscount(typ models.DiscountType, value decimal.Decimal, from, until *time.Time) error {
	switch typ {
	case models.DiscountPercentage:
		if !value.IsPositive() || value.GreaterThan(decimal.NewFromInt(100)) {
			return Validation(CodeInvalidDiscountValue, "percentage discount must be greater than 0 and at most 100")
		}
	case models.DiscountFixed:
		if !value.IsPositive() {
			return Validation(CodeInvalidDiscountValue, "fixed discount must be greater than 0")
		}
	default:
		return Validation(CodeValidation, "unknown discount type %q", typ)
	}
	if from != nil && until != nil && until.Before(*from) {
		return Validation(CodeInvalidDateRange, "valid_until must not be before valid_from")
	}
	return nil
}

// checkDiscountCode includes soft-deleted codes, which still hold their
// value in the unique index.
func checkDiscountCode(tx *gorm.DB, code string, exceptID uint) error {
	var existing models.DiscountCode
	q := tx.Unscoped().Where("code = ?", code)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check discount code: %w", err)
	}
	if existing.DeletedAt.Valid {
		return ConstraintViolation(CodeDuplicateDiscountCode, "discount code %s belongs to a deleted code and cannot be reused", code)
	}
	return ConstraintViolation(CodeDuplicateDiscountCode, "discount code %s already exists", code)
}

func (s *DiscountService) CreateDiscount(ctx context.Context, in DiscountInput) (*models.DiscountCode, error) {
	code := normalizeCode(in.Code)
	if code == "" {
		return nil, Validation(CodeValidation, "discount code is required")
	}
	if err := validateDiscount(in.Type, in.Value, in.ValidFrom, in.ValidUntil); err != nil {
		return nil, err
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	d := models.DiscountCode{
		Code:       code,
		Type:       in.Type,
		Value:      in.Value,
		ValidFrom:  in.ValidFrom,
		ValidUntil: in.ValidUntil,
		IsActive:   active,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkDiscountCode(tx, code, 0); err != nil {
			return err
		}
		if err := tx.Create(&d).Error; err != nil {
			return fmt.Errorf("failed to create discount code: %w", err)
		}
		// A zero bool is replaced by the column default on insert.
		if !active {
			d.IsActive = false
			return tx.Model(&models.DiscountCode{}).Where("id = ?", d.ID).Update("is_active", false).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("code", d.Code).Msg("discount code created")
	return &d, nil
}

func (s *DiscountService) GetDiscount(ctx context.Context, id uint) (*models.DiscountCode, error) {
	var d models.DiscountCode
	if err := s.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, notFoundOr(err, "discount code", id)
	}
	return &d, nil
}

func (s *DiscountService) ListDiscounts(ctx context.Context, activeOnly bool) ([]models.DiscountCode, error) {
	var ds []models.DiscountCode
	q := s.db.WithContext(ctx).Order("code ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&ds).Error; err != nil {
		return nil, fmt.Errorf("failed to list discount codes: %w", err)
	}
	return ds, nil
}

// UpdateDiscount applies the set fields of in. Code, type and value are
// validated together against the stored values.
func (s *DiscountService) UpdateDiscount(ctx context.Context, id uint, in DiscountInput) (*models.DiscountCode, error) {
	var d models.DiscountCode
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&d, id).Error; err != nil {
			return notFoundOr(err, "discount code", id)
		}
		updates := map[string]interface{}{}
		if code := normalizeCode(in.Code); code != "" && code != d.Code {
			if err := checkDiscountCode(tx, code, id); err != nil {
				return err
			}
			updates["code"] = code
		}
		typ, value := d.Type, d.Value
		if in.Type != "" {
			typ = in.Type
			updates["type"] = typ
		}
		if !in.Value.IsZero() {
			value = in.Value
			updates["value"] = value
		}
		from, until := d.ValidFrom, d.ValidUntil
		if in.ValidFrom != nil {
			from = in.ValidFrom
			updates["valid_from"] = *in.ValidFrom
		}
		if in.ValidUntil != nil {
			until = in.ValidUntil
			updates["valid_until"] = *in.ValidUntil
		}
		if err := validateDiscount(typ, value, from, until); err != nil {
			return err
		}
		if in.IsActive != nil {
			updates["is_active"] = *in.IsActive
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&models.DiscountCode{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update discount code: %w", err)
		}
		return tx.First(&d, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *DiscountService) DeleteDiscount(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.DiscountCode{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete discount code: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return NotFound("discount code", id)
	}
	return nil
}

// Lookup finds an active code valid now, by its case-insensitive code.
func (s *DiscountService) Lookup(ctx context.Context, code string) (*models.DiscountCode, error) {
	var d models.DiscountCode
	if err := s.db.WithContext(ctx).Where("code = ?", normalizeCode(code)).First(&d).Error; err != nil {
		return nil, notFoundOr(err, "discount code", normalizeCode(code))
	}
	if !d.IsValidAt(time.Now()) {
		return nil, Validation(CodeDiscountNotApplicable, "discount code %s is not currently valid", d.Code)
	}
	return &d, nil
}
