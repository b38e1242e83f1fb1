package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
	"github.com/storefront/backend/internal/domain/trade"
)

// OrderModel is the persistence model for the Order aggregate root.
type OrderModel struct {
	AggregateModel
	OrderNumber       string               `gorm:"type:varchar(50);not null;uniqueIndex"`
	UserID            uuid.UUID            `gorm:"type:uuid;not null;index"`
	Lines             []OrderLineModel     `gorm:"foreignKey:OrderID;references:ID"`
	ShippingAddress   valueobject.Address  `gorm:"type:jsonb;not null"`
	BillingAddress    valueobject.Address  `gorm:"type:jsonb;not null"`
	Subtotal          decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	ShippingFee       decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	Discount          decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	Total             decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	Currency          valueobject.Currency `gorm:"type:varchar(3);not null"`
	Status            trade.OrderStatus    `gorm:"type:varchar(20);not null;index"`
	PaymentStatus     trade.PaymentStatus  `gorm:"type:varchar(20);not null"`
	PaymentMethod     trade.PaymentMethod  `gorm:"type:varchar(20);not null"`
	PaymentIntentID   string               `gorm:"type:varchar(255);index"`
	PaidAt            *time.Time
	PromoCode         string `gorm:"type:varchar(50)"`
	CustomerNote      string `gorm:"type:text"`
	Express           bool   `gorm:"not null"`
	DeliveryDays      int    `gorm:"not null"`
	Carrier           string `gorm:"type:varchar(100)"`
	TrackingNumber    string `gorm:"type:varchar(100)"`
	TrackingURL       string `gorm:"column:tracking_url;type:varchar(500)"`
	ShippedAt         *time.Time
	EstimatedDelivery *time.Time
	StatusTimestamps  JSON[map[trade.OrderStatus]time.Time] `gorm:"type:jsonb;not null"`
	CancelReason      string                                `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order.
func (m *OrderModel) ToDomain() *trade.Order {
	o := &trade.Order{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		OrderNumber:       m.OrderNumber,
		UserID:            m.UserID,
		Lines:             make([]trade.OrderLine, len(m.Lines)),
		ShippingAddress:   m.ShippingAddress,
		BillingAddress:    m.BillingAddress,
		Subtotal:          m.Subtotal,
		ShippingFee:       m.ShippingFee,
		Discount:          m.Discount,
		Total:             m.Total,
		Currency:          m.Currency,
		Status:            m.Status,
		PaymentStatus:     m.PaymentStatus,
		PaymentMethod:     m.PaymentMethod,
		PaymentIntentID:   m.PaymentIntentID,
		PaidAt:            m.PaidAt,
		PromoCode:         m.PromoCode,
		CustomerNote:      m.CustomerNote,
		Express:           m.Express,
		DeliveryDays:      m.DeliveryDays,
		Tracking: trade.Tracking{
			Carrier:           m.Carrier,
			TrackingNumber:    m.TrackingNumber,
			TrackingURL:       m.TrackingURL,
			ShippedAt:         m.ShippedAt,
			EstimatedDelivery: m.EstimatedDelivery,
		},
		StatusTimestamps: m.StatusTimestamps.Data,
		CancelReason:     m.CancelReason,
	}
	if o.StatusTimestamps == nil {
		o.StatusTimestamps = make(map[trade.OrderStatus]time.Time)
	}
	for i := range m.Lines {
		o.Lines[i] = m.Lines[i].ToDomain()
	}
	return o
}

// FromDomain populates the persistence model from a domain Order.
func (m *OrderModel) FromDomain(o *trade.Order) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.OrderNumber = o.OrderNumber
	m.UserID = o.UserID
	m.ShippingAddress = o.ShippingAddress
	m.BillingAddress = o.BillingAddress
	m.Subtotal = o.Subtotal
	m.ShippingFee = o.ShippingFee
	m.Discount = o.Discount
	m.Total = o.Total
	m.Currency = o.Currency
	m.Status = o.Status
	m.PaymentStatus = o.PaymentStatus
	m.PaymentMethod = o.PaymentMethod
	m.PaymentIntentID = o.PaymentIntentID
	m.PaidAt = o.PaidAt
	m.PromoCode = o.PromoCode
	m.CustomerNote = o.CustomerNote
	m.Express = o.Express
	m.DeliveryDays = o.DeliveryDays
	m.Carrier = o.Tracking.Carrier
	m.TrackingNumber = o.Tracking.TrackingNumber
	m.TrackingURL = o.Tracking.TrackingURL
	m.ShippedAt = o.Tracking.ShippedAt
	m.EstimatedDelivery = o.Tracking.EstimatedDelivery
	m.StatusTimestamps = NewJSON(o.StatusTimestamps)
	m.CancelReason = o.CancelReason
	m.Lines = make([]OrderLineModel, len(o.Lines))
	for i := range o.Lines {
		m.Lines[i] = OrderLineModelFromDomain(o.ID, o.CreatedAt, &o.Lines[i])
	}
}

// OrderModelFromDomain creates a new persistence model from a domain Order.
func OrderModelFromDomain(o *trade.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

// OrderLineModel is the persistence model for a frozen order line.
// Rows are written once at checkout and never updated.
type OrderLineModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null"`
	VariantID   uuid.UUID       `gorm:"type:uuid;not null"`
	ProductName string          `gorm:"type:varchar(200);not null"`
	Image       string          `gorm:"type:varchar(500)"`
	Size        string          `gorm:"type:varchar(20)"`
	Color       string          `gorm:"type:varchar(50)"`
	SKU         string          `gorm:"column:sku;type:varchar(64)"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Quantity    int             `gorm:"not null"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CreatedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderLineModel) TableName() string {
	return "order_lines"
}

// ToDomain converts the persistence model to a domain OrderLine.
func (m *OrderLineModel) ToDomain() trade.OrderLine {
	return trade.OrderLine{
		ID:          m.ID,
		ProductID:   m.ProductID,
		VariantID:   m.VariantID,
		ProductName: m.ProductName,
		Image:       m.Image,
		Size:        m.Size,
		Color:       m.Color,
		SKU:         m.SKU,
		UnitPrice:   m.UnitPrice,
		Quantity:    m.Quantity,
		Subtotal:    m.Subtotal,
	}
}

// OrderLineModelFromDomain creates a persistence model from a domain OrderLine.
func OrderLineModelFromDomain(orderID uuid.UUID, createdAt time.Time, l *trade.OrderLine) OrderLineModel {
	return OrderLineModel{
		ID:          l.ID,
		OrderID:     orderID,
		ProductID:   l.ProductID,
		VariantID:   l.VariantID,
		ProductName: l.ProductName,
		Image:       l.Image,
		Size:        l.Size,
		Color:       l.Color,
		SKU:         l.SKU,
		UnitPrice:   l.UnitPrice,
		Quantity:    l.Quantity,
		Subtotal:    l.Subtotal,
		CreatedAt:   createdAt,
	}
}

// OrderSequenceModel holds the order number counter of one prefix and day.
type OrderSequenceModel struct {
	Prefix string `gorm:"type:varchar(20);primary_key"`
	Day    string `gorm:"type:varchar(8);primary_key"`
	Value  int64  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderSequenceModel) TableName() string {
	return "order_sequences"
}
