package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/catalog"
)

// AddItemRequest represents a request to add a product variant to the cart
type AddItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Size      string    `json:"size" binding:"required,max=20"`
	Color     string    `json:"color" binding:"required,max=50"`
	Quantity  int       `json:"quantity" binding:"required,min=1,max=100"`
}

// UpdateItemRequest represents a request to change a line quantity
type UpdateItemRequest struct {
	Quantity int `json:"quantity" binding:"min=0,max=100"`
}

// ApplyPromoRequest represents a request to apply a promo code
type ApplyPromoRequest struct {
	Code string `json:"code" binding:"required,max=50"`
}

// CartLineResponse is a cart line annotated with advisory availability
type CartLineResponse struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	VariantID   uuid.UUID       `json:"variant_id"`
	ProductName string          `json:"product_name"`
	Image       string          `json:"image,omitempty"`
	Size        string          `json:"size"`
	Color       string          `json:"color"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Available   bool            `json:"available"`
	InStock     int             `json:"in_stock"`
	Message     string          `json:"message,omitempty"`
	AddedAt     time.Time       `json:"added_at"`
}

// CartResponse represents a cart in API responses
type CartResponse struct {
	ID        uuid.UUID          `json:"id"`
	UserID    uuid.UUID          `json:"user_id"`
	Lines     []CartLineResponse `json:"lines"`
	ItemCount int                `json:"item_count"`
	Subtotal  decimal.Decimal    `json:"subtotal"`
	PromoCode string             `json:"promo_code,omitempty"`
	Discount  decimal.Decimal    `json:"discount"`
	Total     decimal.Decimal    `json:"total"`
	Currency  string             `json:"currency"`
	Version   int                `json:"version"`
	UpdatedAt time.Time          `json:"updated_at"`
}

const (
	msgUnavailable       = "Product unavailable"
	msgInsufficientStock = "Insufficient stock"
)

// ToCartResponse converts a cart to its response, annotating each line
// against products. Missing products mark the line unavailable.
func ToCartResponse(c *cart.Cart, products map[uuid.UUID]*catalog.Product) CartResponse {
	lines := make([]CartLineResponse, 0, len(c.Lines))
	for _, line := range c.Lines {
		lines = append(lines, toLineResponse(line, products[line.ProductID]))
	}
	return CartResponse{
		ID:        c.ID,
		UserID:    c.UserID,
		Lines:     lines,
		ItemCount: c.ItemCount(),
		Subtotal:  c.Subtotal(),
		PromoCode: c.PromoCode,
		Discount:  c.Discount,
		Total:     c.Total(),
		Currency:  string(c.Currency),
		Version:   c.Version,
		UpdatedAt: c.UpdatedAt,
	}
}

func toLineResponse(line cart.Line, product *catalog.Product) CartLineResponse {
	resp := CartLineResponse{
		ID:        line.ID,
		ProductID: line.ProductID,
		VariantID: line.VariantID,
		Size:      line.Size,
		Color:     line.Color,
		SKU:       line.SKU,
		Quantity:  line.Quantity,
		UnitPrice: line.UnitPrice,
		Subtotal:  line.Subtotal(),
		AddedAt:   line.AddedAt,
		Message:   msgUnavailable,
	}
	if product == nil {
		return resp
	}
	resp.ProductName = product.Name
	resp.Image = product.PrimaryImage()
	if !product.Active {
		return resp
	}
	variant, ok := product.FindVariant(line.Size, line.Color)
	if !ok {
		return resp
	}
	resp.InStock = variant.QuantityOnHand
	resp.Available = variant.HasStock(line.Quantity)
	if resp.Available {
		resp.Message = ""
	} else {
		resp.Message = msgInsufficientStock
	}
	return resp
}
