package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// ProductModel is the persistence model for the catalog product read view.
type ProductModel struct {
	BaseModel
	Name     string                `gorm:"type:varchar(200);not null"`
	Slug     string                `gorm:"type:varchar(200);index"`
	Images   JSON[[]string]        `gorm:"type:jsonb"`
	Active   bool                  `gorm:"not null"`
	Currency valueobject.Currency  `gorm:"type:varchar(3);not null;default:'XOF'"`
	Variants []ProductVariantModel `gorm:"foreignKey:ProductID;references:ID"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product.
func (m *ProductModel) ToDomain() *catalog.Product {
	p := &catalog.Product{
		ID:       m.ID,
		Name:     m.Name,
		Slug:     m.Slug,
		Images:   m.Images.Data,
		Active:   m.Active,
		Currency: m.Currency,
		Variants: make([]catalog.Variant, len(m.Variants)),
	}
	for i := range m.Variants {
		p.Variants[i] = *m.Variants[i].ToDomain()
	}
	return p
}

// ProductModelFromDomain creates a persistence model from a domain Product.
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	now := time.Now()
	m := &ProductModel{
		BaseModel: BaseModel{ID: p.ID, CreatedAt: now, UpdatedAt: now},
		Name:      p.Name,
		Slug:      p.Slug,
		Images:    NewJSON(p.Images),
		Active:    p.Active,
		Currency:  p.Currency,
		Variants:  make([]ProductVariantModel, len(p.Variants)),
	}
	for i := range p.Variants {
		v := p.Variants[i]
		v.ProductID = p.ID
		m.Variants[i] = *ProductVariantModelFromDomain(&v)
	}
	return m
}

// ProductVariantModel is the persistence model for a product variant.
// quantity_on_hand is only changed through conditional updates.
type ProductVariantModel struct {
	BaseModel
	ProductID      uuid.UUID        `gorm:"type:uuid;not null;index"`
	Size           string           `gorm:"type:varchar(20);not null"`
	Color          string           `gorm:"type:varchar(50);not null"`
	SKU            string           `gorm:"column:sku;type:varchar(64);index"`
	UnitPrice      decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	PromoPrice     *decimal.Decimal `gorm:"type:decimal(18,4)"`
	QuantityOnHand int              `gorm:"not null;default:0;check:quantity_on_hand >= 0"`
	Active         bool             `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductVariantModel) TableName() string {
	return "product_variants"
}

// ToDomain converts the persistence model to a domain Variant.
func (m *ProductVariantModel) ToDomain() *catalog.Variant {
	return &catalog.Variant{
		ID:             m.ID,
		ProductID:      m.ProductID,
		Size:           m.Size,
		Color:          m.Color,
		SKU:            m.SKU,
		UnitPrice:      m.UnitPrice,
		PromoPrice:     m.PromoPrice,
		QuantityOnHand: m.QuantityOnHand,
		Active:         m.Active,
	}
}

// ProductVariantModelFromDomain creates a persistence model from a domain Variant.
func ProductVariantModelFromDomain(v *catalog.Variant) *ProductVariantModel {
	now := time.Now()
	return &ProductVariantModel{
		BaseModel:      BaseModel{ID: v.ID, CreatedAt: now, UpdatedAt: now},
		ProductID:      v.ProductID,
		Size:           v.Size,
		Color:          v.Color,
		SKU:            v.SKU,
		UnitPrice:      v.UnitPrice,
		PromoPrice:     v.PromoPrice,
		QuantityOnHand: v.QuantityOnHand,
		Active:         v.Active,
	}
}
