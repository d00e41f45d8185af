package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteTemplate pre-fills quotes with products, terms and a tax rate.
type QuoteTemplate struct {
	ID           uint                   `gorm:"primaryKey" json:"id"`
	Name         string                 `gorm:"not null" json:"name"`
	Title        string                 `json:"title"`
	Terms        string                 `gorm:"type:text" json:"terms,omitempty"`
	TaxRate      decimal.NullDecimal    `gorm:"type:decimal(5,2)" json:"tax_rate"`
	ValidityDays int                    `gorm:"not null;default:30" json:"validity_days"`
	Products     []QuoteTemplateProduct `gorm:"foreignKey:QuoteTemplateID" json:"products,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

func (QuoteTemplate) TableName() string {
	return "quote_templates"
}

// QuoteTemplateProduct is an ordered product line of a template. UnitPrice
// overrides the product's base price when set.
type QuoteTemplateProduct struct {
	ID              uint                `gorm:"primaryKey" json:"id"`
	QuoteTemplateID uint                `gorm:"not null;uniqueIndex:idx_template_product_position" json:"quote_template_id"`
	ProductID       uint                `gorm:"not null" json:"product_id"`
	Product         *Product            `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Quantity        decimal.Decimal     `gorm:"type:decimal(10,2);not null" json:"quantity"`
	UnitPrice       decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"unit_price"`
	Order           int                 `gorm:"column:position;not null;uniqueIndex:idx_template_product_position" json:"order"`
}

func (QuoteTemplateProduct) TableName() string {
	return "quote_template_products"
}
