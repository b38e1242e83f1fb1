package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// Line quantity bounds
const (
	MinLineQuantity = 1
	MaxLineQuantity = 100
)

// Line is one product variant in a cart, priced at the moment it was added
type Line struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	VariantID uuid.UUID
	Size      string
	Color     string
	SKU       string
	Quantity  int
	UnitPrice decimal.Decimal
	AddedAt   time.Time
}

// Subtotal returns UnitPrice x Quantity
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the per-user shopping cart aggregate
type Cart struct {
	shared.BaseAggregateRoot
	UserID       uuid.UUID
	Lines        []Line
	PromoCode    string
	PromoPercent decimal.Decimal
	Discount     decimal.Decimal
	Currency     valueobject.Currency
}

// New creates an empty cart for a user
func New(userID uuid.UUID, currency valueobject.Currency) *Cart {
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	return &Cart{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		UserID:            userID,
		Lines:             make([]Line, 0),
		Discount:          decimal.Zero,
		PromoPercent:      decimal.Zero,
		Currency:          currency,
	}
}

// AddLine adds qty units of a variant. A line for the same product, size and
// color is merged instead of duplicated, capped at MaxLineQuantity.
func (c *Cart) AddLine(product *catalog.Product, variant *catalog.Variant, qty int) (*Line, error) {
	if qty < MinLineQuantity {
		return nil, ErrInvalidQuantity
	}
	if product.Currency != "" && product.Currency != c.Currency {
		return nil, ErrCurrencyMismatch(product.Currency, c.Currency)
	}

	for i := range c.Lines {
		line := &c.Lines[i]
		if line.ProductID == product.ID && variant.Matches(line.Size, line.Color) {
			line.Quantity = clampQuantity(line.Quantity + qty)
			c.changed()
			return line, nil
		}
	}

	c.Lines = append(c.Lines, Line{
		ID:        uuid.New(),
		ProductID: product.ID,
		VariantID: variant.ID,
		Size:      variant.Size,
		Color:     variant.Color,
		SKU:       variant.SKU,
		Quantity:  clampQuantity(qty),
		UnitPrice: variant.EffectivePrice(),
		AddedAt:   time.Now(),
	})
	c.changed()
	return &c.Lines[len(c.Lines)-1], nil
}

// UpdateQuantity sets a line quantity, clamped to MaxLineQuantity.
// A quantity below one removes the line.
func (c *Cart) UpdateQuantity(lineID uuid.UUID, qty int) error {
	if qty < MinLineQuantity {
		return c.RemoveLine(lineID)
	}
	idx := c.indexOf(lineID)
	if idx < 0 {
		return ErrLineNotFound
	}
	c.Lines[idx].Quantity = clampQuantity(qty)
	c.changed()
	return nil
}

// RemoveLine deletes a line
func (c *Cart) RemoveLine(lineID uuid.UUID) error {
	idx := c.indexOf(lineID)
	if idx < 0 {
		return ErrLineNotFound
	}
	c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
	c.changed()
	return nil
}

// Clear empties the cart and drops any promo code
func (c *Cart) Clear() {
	c.Lines = make([]Line, 0)
	c.PromoCode = ""
	c.PromoPercent = decimal.Zero
	c.Discount = decimal.Zero
	c.Touch()
}

// ApplyPromoCode applies a percentage discount looked up in promos
func (c *Cart) ApplyPromoCode(code string, promos PromoCatalog) error {
	if c.IsEmpty() {
		return ErrEmptyCart
	}
	normalized, percent, ok := promos.Lookup(code)
	if !ok {
		return ErrInvalidPromoCode
	}
	c.PromoCode = normalized
	c.PromoPercent = percent
	c.changed()
	return nil
}

// RemovePromoCode drops the applied promo code and its discount
func (c *Cart) RemovePromoCode() {
	c.PromoCode = ""
	c.PromoPercent = decimal.Zero
	c.Discount = decimal.Zero
	c.Touch()
}

// FindLine returns the line with the given id
func (c *Cart) FindLine(lineID uuid.UUID) (*Line, bool) {
	idx := c.indexOf(lineID)
	if idx < 0 {
		return nil, false
	}
	return &c.Lines[idx], true
}

// Subtotal is the sum of all line subtotals
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.Lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// Total is Subtotal minus Discount, never negative
func (c *Cart) Total() decimal.Decimal {
	total := c.Subtotal().Sub(c.Discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// ItemCount is the total number of units across lines
func (c *Cart) ItemCount() int {
	n := 0
	for _, line := range c.Lines {
		n += line.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no lines
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c *Cart) indexOf(lineID uuid.UUID) int {
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			return i
		}
	}
	return -1
}

// changed recomputes the discount against the new subtotal
func (c *Cart) changed() {
	if c.PromoCode != "" && c.PromoPercent.IsPositive() {
		subtotal := valueobject.MustNewMoney(c.Subtotal(), c.Currency)
		c.Discount = subtotal.CalculatePercentage(c.PromoPercent).Amount()
	} else {
		c.Discount = decimal.Zero
	}
	if c.IsEmpty() {
		c.PromoCode = ""
		c.PromoPercent = decimal.Zero
		c.Discount = decimal.Zero
	}
	c.Touch()
}

func clampQuantity(qty int) int {
	if qty > MaxLineQuantity {
		return MaxLineQuantity
	}
	if qty < MinLineQuantity {
		return MinLineQuantity
	}
	return qty
}
