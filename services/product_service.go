package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kendall-kelly/eventflow-api/models"
)

// ProductService manages the catalog of packages, services and add-ons.
type ProductService struct {
	db  *gorm.DB
	log zerolog.Logger
}

func NewProductService(db *gorm.DB, log zerolog.Logger) *ProductService {
	return &ProductService{db: db, log: log}
}

type ProductInput struct {
	Name        *string
	Description *string
	BasePrice   *decimal.Decimal
	IsActive    *bool
}

func (s *ProductService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, Validation(CodeValidation, "product name is required")
	}
	if in.BasePrice == nil || in.BasePrice.IsNegative() {
		return nil, Validation(CodeValidation, "base price must not be negative")
	}
	p := models.Product{Name: *in.Name, BasePrice: models.Money(*in.BasePrice), IsActive: true}
	if in.Description != nil {
		p.Description = *in.Description
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&p).Error; err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}
		// A zero bool is replaced by the column default on insert.
		if in.IsActive != nil && !*in.IsActive {
			p.IsActive = false
			return tx.Model(&models.Product{}).Where("id = ?", p.ID).Update("is_active", false).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFoundOr(err, "product", id)
	}
	return &p, nil
}

func (s *ProductService) ListProducts(ctx context.Context, activeOnly bool) ([]models.Product, error) {
	var ps []models.Product
	q := s.db.WithContext(ctx).Order("name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&ps).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return ps, nil
}

func (s *ProductService) UpdateProduct(ctx context.Context, id uint, in ProductInput) (*models.Product, error) {
	updates := map[string]interface{}{}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, Validation(CodeValidation, "product name is required")
		}
		updates["name"] = *in.Name
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.BasePrice != nil {
		if in.BasePrice.IsNegative() {
			return nil, Validation(CodeValidation, "base price must not be negative")
		}
		updates["base_price"] = models.Money(*in.BasePrice)
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}

	var p models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, id).Error; err != nil {
			return notFoundOr(err, "product", id)
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&models.Product{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update product: %w", err)
		}
		return tx.First(&p, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProduct soft-deletes a product. Existing quote and invoice lines
// keep their copied description and price.
func (s *ProductService) DeleteProduct(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Product{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete product: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return NotFound("product", id)
	}
	return nil
}
