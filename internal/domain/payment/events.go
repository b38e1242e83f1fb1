package payment

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// Aggregate type constant
const AggregateTypePayment = "Payment"

// Event type constants
const (
	EventTypePaymentSucceeded = "PaymentSucceeded"
	EventTypePaymentFailed    = "PaymentFailed"
	EventTypePaymentRefunded  = "PaymentRefunded"
)

// PaymentSucceededEvent is raised once when a payment first succeeds
type PaymentSucceededEvent struct {
	shared.BaseDomainEvent
	PaymentID   uuid.UUID            `json:"payment_id"`
	OrderID     uuid.UUID            `json:"order_id"`
	OrderNumber string               `json:"order_number"`
	IntentID    string               `json:"intent_id"`
	Amount      decimal.Decimal      `json:"amount"`
	Currency    valueobject.Currency `json:"currency"`
}

// NewPaymentSucceededEvent creates a new PaymentSucceededEvent
func NewPaymentSucceededEvent(p *Payment) *PaymentSucceededEvent {
	return &PaymentSucceededEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentSucceeded, AggregateTypePayment, p.ID, p.UserID),
		PaymentID:       p.ID,
		OrderID:         p.OrderID,
		OrderNumber:     p.OrderNumber,
		IntentID:        p.IntentID,
		Amount:          p.Amount,
		Currency:        p.Currency,
	}
}

// PaymentFailedEvent is raised for each distinct failed attempt
type PaymentFailedEvent struct {
	shared.BaseDomainEvent
	PaymentID   uuid.UUID `json:"payment_id"`
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	IntentID    string    `json:"intent_id"`
	Attempts    int       `json:"attempts"`
	Reason      string    `json:"reason,omitempty"`
}

// NewPaymentFailedEvent creates a new PaymentFailedEvent
func NewPaymentFailedEvent(p *Payment) *PaymentFailedEvent {
	e := &PaymentFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentFailed, AggregateTypePayment, p.ID, p.UserID),
		PaymentID:       p.ID,
		OrderID:         p.OrderID,
		OrderNumber:     p.OrderNumber,
		IntentID:        p.IntentID,
		Attempts:        p.Attempts,
	}
	if p.LastError != nil {
		e.Reason = p.LastError.Message
	}
	return e
}

// PaymentRefundedEvent is raised for every refund increment
type PaymentRefundedEvent struct {
	shared.BaseDomainEvent
	PaymentID     uuid.UUID            `json:"payment_id"`
	OrderID       uuid.UUID            `json:"order_id"`
	OrderNumber   string               `json:"order_number"`
	Refunded      decimal.Decimal      `json:"refunded"`
	TotalRefunded decimal.Decimal      `json:"total_refunded"`
	Currency      valueobject.Currency `json:"currency"`
	FullyRefunded bool                 `json:"fully_refunded"`
}

// NewPaymentRefundedEvent creates a new PaymentRefundedEvent
func NewPaymentRefundedEvent(p *Payment, refunded decimal.Decimal) *PaymentRefundedEvent {
	return &PaymentRefundedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRefunded, AggregateTypePayment, p.ID, p.UserID),
		PaymentID:       p.ID,
		OrderID:         p.OrderID,
		OrderNumber:     p.OrderNumber,
		Refunded:        refunded,
		TotalRefunded:   p.RefundedAmount,
		Currency:        p.Currency,
		FullyRefunded:   p.IsFullyRefunded(),
	}
}
