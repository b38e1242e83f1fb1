package trade

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
	"github.com/storefront/backend/internal/domain/trade"
)

// ==================== Requests ====================

// AddressInput is a postal address in requests
type AddressInput struct {
	FullName   string `json:"full_name" binding:"required,max=100"`
	Street     string `json:"street" binding:"required,max=200"`
	City       string `json:"city" binding:"required,max=100"`
	PostalCode string `json:"postal_code" binding:"required,max=20"`
	Country    string `json:"country" binding:"max=100"`
	Phone      string `json:"phone" binding:"max=30"`
}

// ToAddress trims the input into an address, defaulting the country
func (a AddressInput) ToAddress() (valueobject.Address, error) {
	return valueobject.NewAddress(a.FullName, a.Street, a.City, a.PostalCode, a.Country, a.Phone)
}

// CheckoutRequest represents a request to turn the cart into an order
type CheckoutRequest struct {
	ShippingAddress AddressInput        `json:"shipping_address" binding:"required"`
	BillingAddress  *AddressInput       `json:"billing_address"`
	PaymentMethod   trade.PaymentMethod `json:"payment_method" binding:"required,oneof=credit_card paypal stripe bank_transfer cash"`
	Express         bool                `json:"express"`
	CustomerNote    string              `json:"customer_note" binding:"max=500"`
}

// CancelOrderRequest represents a request to cancel an order
type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// UpdateStatusRequest represents an admin status change
type UpdateStatusRequest struct {
	Status            trade.OrderStatus `json:"status" binding:"required,oneof=pending confirmed preparing shipped delivered cancelled refunded"`
	Carrier           string            `json:"carrier" binding:"max=100"`
	TrackingNumber    string            `json:"tracking_number" binding:"max=100"`
	TrackingURL       string            `json:"tracking_url" binding:"omitempty,url,max=500"`
	EstimatedDelivery *time.Time        `json:"estimated_delivery"`
	Reason            string            `json:"reason" binding:"max=500"`
}

// OrderListFilter holds list query parameters
type OrderListFilter struct {
	Page     int        `form:"page" binding:"omitempty,min=1"`
	PageSize int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	Status   string     `form:"status" binding:"omitempty,oneof=pending confirmed preparing shipped delivered cancelled refunded"`
	From     *time.Time `form:"from" time_format:"2006-01-02"`
	To       *time.Time `form:"to" time_format:"2006-01-02"`
	OrderBy  string     `form:"order_by" binding:"omitempty,oneof=created_at updated_at order_number status total paid_at"`
	OrderDir string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// StatisticsFilter bounds the statistics period
type StatisticsFilter struct {
	From     *time.Time `form:"from" time_format:"2006-01-02"`
	To       *time.Time `form:"to" time_format:"2006-01-02"`
}

// ==================== Responses ====================

// OrderLineResponse represents a frozen order line
type OrderLineResponse struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"product_id"`
	VariantID   uuid.UUID       `json:"variant_id"`
	ProductName string          `json:"product_name"`
	Image       string          `json:"image,omitempty"`
	Size        string          `json:"size"`
	Color       string          `json:"color"`
	SKU         string          `json:"sku"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// OrderResponse represents an order in API responses
type OrderResponse struct {
	ID               uuid.UUID                       `json:"id"`
	OrderNumber      string                          `json:"order_number"`
	UserID           uuid.UUID                       `json:"user_id"`
	Lines            []OrderLineResponse             `json:"lines"`
	ItemCount        int                             `json:"item_count"`
	ShippingAddress  valueobject.Address             `json:"shipping_address"`
	BillingAddress   valueobject.Address             `json:"billing_address"`
	Subtotal         decimal.Decimal                 `json:"subtotal"`
	ShippingFee      decimal.Decimal                 `json:"shipping_fee"`
	Discount         decimal.Decimal                 `json:"discount"`
	Total            decimal.Decimal                 `json:"total"`
	Currency         string                          `json:"currency"`
	Status           string                          `json:"status"`
	PaymentStatus    string                          `json:"payment_status"`
	PaymentMethod    string                          `json:"payment_method"`
	PaymentIntentID  string                          `json:"payment_intent_id,omitempty"`
	PaidAt           *time.Time                      `json:"paid_at,omitempty"`
	PromoCode        string                          `json:"promo_code,omitempty"`
	CustomerNote     string                          `json:"customer_note,omitempty"`
	Express          bool                            `json:"express"`
	DeliveryDays     int                             `json:"delivery_days"`
	Tracking         trade.Tracking                  `json:"tracking"`
	StatusTimestamps map[trade.OrderStatus]time.Time `json:"status_timestamps"`
	CancelReason     string                          `json:"cancel_reason,omitempty"`
	Version          int                             `json:"version"`
	CreatedAt        time.Time                       `json:"created_at"`
	UpdatedAt        time.Time                       `json:"updated_at"`
}

// OrderListItemResponse is the summary shown in order lists
type OrderListItemResponse struct {
	ID            uuid.UUID       `json:"id"`
	OrderNumber   string          `json:"order_number"`
	UserID        uuid.UUID       `json:"user_id"`
	ItemCount     int             `json:"item_count"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	Image         string          `json:"image,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// TrackingResponse is the customer-facing delivery view of an order
type TrackingResponse struct {
	OrderNumber       string              `json:"order_number"`
	Status            string              `json:"status"`
	StatusLabel       string              `json:"status_label"`
	History           []trade.StatusEntry `json:"history"`
	Carrier           string              `json:"carrier,omitempty"`
	TrackingNumber    string              `json:"tracking_number,omitempty"`
	TrackingURL       string              `json:"tracking_url,omitempty"`
	ShippedAt         *time.Time          `json:"shipped_at,omitempty"`
	EstimatedDelivery *time.Time          `json:"estimated_delivery,omitempty"`
	DeliveryDays      int                 `json:"delivery_days"`
	Express           bool                `json:"express"`
}

// ToOrderResponse converts a domain Order to OrderResponse
func ToOrderResponse(o *trade.Order) OrderResponse {
	lines := make([]OrderLineResponse, len(o.Lines))
	for i, line := range o.Lines {
		lines[i] = OrderLineResponse{
			ID:          line.ID,
			ProductID:   line.ProductID,
			VariantID:   line.VariantID,
			ProductName: line.ProductName,
			Image:       line.Image,
			Size:        line.Size,
			Color:       line.Color,
			SKU:         line.SKU,
			UnitPrice:   line.UnitPrice,
			Quantity:    line.Quantity,
			Subtotal:    line.Subtotal,
		}
	}
	return OrderResponse{
		ID:               o.ID,
		OrderNumber:      o.OrderNumber,
		UserID:           o.UserID,
		Lines:            lines,
		ItemCount:        o.ItemCount(),
		ShippingAddress:  o.ShippingAddress,
		BillingAddress:   o.BillingAddress,
		Subtotal:         o.Subtotal,
		ShippingFee:      o.ShippingFee,
		Discount:         o.Discount,
		Total:            o.Total,
		Currency:         string(o.Currency),
		Status:           string(o.Status),
		PaymentStatus:    string(o.PaymentStatus),
		PaymentMethod:    string(o.PaymentMethod),
		PaymentIntentID:  o.PaymentIntentID,
		PaidAt:           o.PaidAt,
		PromoCode:        o.PromoCode,
		CustomerNote:     o.CustomerNote,
		Express:          o.Express,
		DeliveryDays:     o.DeliveryDays,
		Tracking:         o.Tracking,
		StatusTimestamps: o.StatusTimestamps,
		CancelReason:     o.CancelReason,
		Version:          o.Version,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
}

// ToOrderListItemResponse converts a domain Order to its list summary
func ToOrderListItemResponse(o *trade.Order) OrderListItemResponse {
	item := OrderListItemResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		ItemCount:     o.ItemCount(),
		Total:         o.Total,
		Currency:      string(o.Currency),
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		CreatedAt:     o.CreatedAt,
	}
	if len(o.Lines) > 0 {
		item.Image = o.Lines[0].Image
	}
	return item
}

// ToTrackingResponse builds the delivery view of an order
func ToTrackingResponse(o *trade.Order) TrackingResponse {
	return TrackingResponse{
		OrderNumber:       o.OrderNumber,
		Status:            string(o.Status),
		StatusLabel:       o.Status.Description(),
		History:           o.StatusHistory(),
		Carrier:           o.Tracking.Carrier,
		TrackingNumber:    o.Tracking.TrackingNumber,
		TrackingURL:       o.Tracking.TrackingURL,
		ShippedAt:         o.Tracking.ShippedAt,
		EstimatedDelivery: o.Tracking.EstimatedDelivery,
		DeliveryDays:      o.DeliveryDays,
		Express:           o.Express,
	}
}

func (f OrderListFilter) toDomain() shared.Filter {
	filter := shared.Filter{
		Page:     f.Page,
		PageSize: f.PageSize,
		Status:   f.Status,
		From:     f.From,
		To:       f.To,
		OrderBy:  f.OrderBy,
		OrderDir: f.OrderDir,
	}
	filter.Normalize()
	return filter
}
