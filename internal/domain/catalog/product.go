package catalog

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// Product is the read view of a catalog product. The catalog component owns
// every field except the per-variant stock counters.
type Product struct {
	ID       uuid.UUID
	Name     string
	Slug     string
	Images   []string
	Active   bool
	Currency valueobject.Currency
	Variants []Variant
}

// Variant is a size/color/SKU combination with its own price and stock
type Variant struct {
	ID             uuid.UUID
	ProductID      uuid.UUID
	Size           string
	Color          string
	SKU            string
	UnitPrice      decimal.Decimal
	PromoPrice     *decimal.Decimal
	QuantityOnHand int
	Active         bool
}

// PrimaryImage returns the first product image, or an empty string
func (p *Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// FindVariant returns the active variant matching size and color
func (p *Product) FindVariant(size, color string) (*Variant, bool) {
	for i := range p.Variants {
		v := &p.Variants[i]
		if v.Active && v.Matches(size, color) {
			return v, true
		}
	}
	return nil, false
}

// FindAnyVariant returns the variant matching size and color, active or not.
// Restocking must still reach variants deactivated after an order was placed.
func (p *Product) FindAnyVariant(size, color string) (*Variant, bool) {
	for i := range p.Variants {
		if p.Variants[i].Matches(size, color) {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// Matches compares size and color case-insensitively
func (v *Variant) Matches(size, color string) bool {
	return strings.EqualFold(v.Size, size) && strings.EqualFold(v.Color, color)
}

// EffectivePrice is the promo price when set, the list price otherwise
func (v *Variant) EffectivePrice() decimal.Decimal {
	if v.PromoPrice != nil && v.PromoPrice.IsPositive() {
		return *v.PromoPrice
	}
	return v.UnitPrice
}

// Label identifies the variant in user-facing messages
func (v *Variant) Label() string {
	return fmt.Sprintf("%s/%s", v.Size, v.Color)
}

// Validate checks the variant invariants
func (v *Variant) Validate() error {
	if v.UnitPrice.IsNegative() {
		return shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
	}
	if v.PromoPrice != nil && v.PromoPrice.GreaterThan(v.UnitPrice) {
		return shared.NewDomainError("INVALID_PRICE", "Promo price cannot exceed unit price")
	}
	if v.QuantityOnHand < 0 {
		return shared.NewDomainError("INVALID_QUANTITY", "Quantity on hand cannot be negative")
	}
	return nil
}

// HasStock reports whether qty units can be taken from the variant
func (v *Variant) HasStock(qty int) bool {
	return v.QuantityOnHand >= qty
}
