package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// CartModel is the persistence model for the Cart aggregate root.
// Lines are stored inline as JSON; the cart is always loaded whole.
type CartModel struct {
	AggregateModel
	UserID       uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex"`
	Lines        JSON[[]CartLineRecord] `gorm:"type:jsonb;not null"`
	PromoCode    string                 `gorm:"type:varchar(50)"`
	PromoPercent decimal.Decimal        `gorm:"type:decimal(5,2);not null;default:0"`
	Discount     decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	Currency     valueobject.Currency   `gorm:"type:varchar(3);not null"`
}

// TableName returns the table name for GORM
func (CartModel) TableName() string {
	return "carts"
}

// CartLineRecord is the JSON shape of one cart line
type CartLineRecord struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	VariantID uuid.UUID       `json:"variant_id"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	SKU       string          `json:"sku"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	AddedAt   time.Time       `json:"added_at"`
}

// ToDomain converts the persistence model to a domain Cart.
func (m *CartModel) ToDomain() *cart.Cart {
	c := &cart.Cart{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		UserID:            m.UserID,
		Lines:             make([]cart.Line, len(m.Lines.Data)),
		PromoCode:         m.PromoCode,
		PromoPercent:      m.PromoPercent,
		Discount:          m.Discount,
		Currency:          m.Currency,
	}
	for i, l := range m.Lines.Data {
		c.Lines[i] = cart.Line{
			ID:        l.ID,
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			Size:      l.Size,
			Color:     l.Color,
			SKU:       l.SKU,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			AddedAt:   l.AddedAt,
		}
	}
	return c
}

// FromDomain populates the persistence model from a domain Cart.
func (m *CartModel) FromDomain(c *cart.Cart) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.UserID = c.UserID
	m.PromoCode = c.PromoCode
	m.PromoPercent = c.PromoPercent
	m.Discount = c.Discount
	m.Currency = c.Currency
	lines := make([]CartLineRecord, len(c.Lines))
	for i, l := range c.Lines {
		lines[i] = CartLineRecord{
			ID:        l.ID,
			ProductID: l.ProductID,
			VariantID: l.VariantID,
			Size:      l.Size,
			Color:     l.Color,
			SKU:       l.SKU,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			AddedAt:   l.AddedAt,
		}
	}
	m.Lines = NewJSON(lines)
}

// CartModelFromDomain creates a new persistence model from a domain Cart.
func CartModelFromDomain(c *cart.Cart) *CartModel {
	m := &CartModel{}
	m.FromDomain(c)
	return m
}
