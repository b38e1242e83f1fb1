// Package notification turns committed order and payment events into
// customer notifications.
package notification

import (
	"context"
	"fmt"

	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/trade"
	"go.uber.org/zap"
)

// Kind identifies a customer notification
type Kind string

const (
	KindOrderPlaced      Kind = "order_placed"
	KindOrderCancelled   Kind = "order_cancelled"
	KindPaymentSucceeded Kind = "payment_succeeded"
	KindPaymentFailed    Kind = "payment_failed"
	KindPaymentRefunded  Kind = "payment_refunded"
)

// Notification is one message for a customer
type Notification struct {
	Kind        Kind   `json:"kind"`
	UserID      string `json:"user_id"`
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Amount      string `json:"amount,omitempty"`
	Currency    string `json:"currency,omitempty"`
	Message     string `json:"message"`
}

// Notifier delivers notifications. Delivery channels (email, SMS) live
// outside this service.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Handler subscribes to order and payment events and notifies the customer
type Handler struct {
	logger   *zap.Logger
	notifier Notifier
}

// NewHandler creates a new notification handler
func NewHandler(logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{logger: logger}
}

// WithNotifier sets the notifier for sending notifications
func (h *Handler) WithNotifier(notifier Notifier) *Handler {
	h.notifier = notifier
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *Handler) EventTypes() []string {
	return []string{
		trade.EventTypeOrderPlaced,
		trade.EventTypeOrderCancelled,
		payment.EventTypePaymentSucceeded,
		payment.EventTypePaymentFailed,
		payment.EventTypePaymentRefunded,
	}
}

// Handle builds the notification for an event and sends it. Delivery
// failures are logged and never returned.
func (h *Handler) Handle(ctx context.Context, event shared.DomainEvent) error {
	n, err := build(event)
	if err != nil {
		h.logger.Error("unexpected event type",
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
		return err
	}
	if h.notifier == nil {
		return nil
	}

	if err := h.notifier.Notify(ctx, n); err != nil {
		h.logger.Error("failed to send notification",
			zap.String("kind", string(n.Kind)),
			zap.String("order_number", n.OrderNumber),
			zap.Error(err),
		)
		return nil
	}
	h.logger.Debug("notification sent",
		zap.String("kind", string(n.Kind)),
		zap.String("order_number", n.OrderNumber),
	)
	return nil
}

func build(event shared.DomainEvent) (Notification, error) {
	n := Notification{UserID: event.UserID().String()}
	switch e := event.(type) {
	case *trade.OrderPlacedEvent:
		n.Kind = KindOrderPlaced
		n.OrderID = e.OrderID.String()
		n.OrderNumber = e.OrderNumber
		n.Amount = e.Total.String()
		n.Currency = string(e.Currency)
		n.Message = fmt.Sprintf("Votre commande %s a bien été enregistrée", e.OrderNumber)
	case *trade.OrderCancelledEvent:
		n.Kind = KindOrderCancelled
		n.OrderID = e.OrderID.String()
		n.OrderNumber = e.OrderNumber
		n.Message = fmt.Sprintf("Votre commande %s a été annulée", e.OrderNumber)
	case *payment.PaymentSucceededEvent:
		n.Kind = KindPaymentSucceeded
		n.OrderID = e.OrderID.String()
		n.OrderNumber = e.OrderNumber
		n.Amount = e.Amount.String()
		n.Currency = string(e.Currency)
		n.Message = fmt.Sprintf("Paiement reçu pour la commande %s", e.OrderNumber)
	case *payment.PaymentFailedEvent:
		n.Kind = KindPaymentFailed
		n.OrderID = e.OrderID.String()
		n.OrderNumber = e.OrderNumber
		n.Message = fmt.Sprintf("Le paiement de la commande %s a échoué", e.OrderNumber)
	case *payment.PaymentRefundedEvent:
		n.Kind = KindPaymentRefunded
		n.OrderID = e.OrderID.String()
		n.OrderNumber = e.OrderNumber
		n.Amount = e.Refunded.String()
		n.Currency = string(e.Currency)
		n.Message = fmt.Sprintf("Remboursement effectué pour la commande %s", e.OrderNumber)
	default:
		return Notification{}, fmt.Errorf("unexpected event type: %s", event.EventType())
	}
	return n, nil
}

// Ensure Handler implements shared.EventHandler
var _ shared.EventHandler = (*Handler)(nil)

// LoggingNotifier writes notifications to the log
type LoggingNotifier struct {
	logger *zap.Logger
}

// NewLoggingNotifier creates a new logging notifier
func NewLoggingNotifier(logger *zap.Logger) *LoggingNotifier {
	return &LoggingNotifier{logger: logger}
}

// Notify logs the notification
func (n *LoggingNotifier) Notify(_ context.Context, notification Notification) error {
	n.logger.Info("customer notification",
		zap.String("kind", string(notification.Kind)),
		zap.String("user_id", notification.UserID),
		zap.String("order_number", notification.OrderNumber),
		zap.String("amount", notification.Amount),
		zap.String("currency", notification.Currency),
		zap.String("message", notification.Message),
	)
	return nil
}

var _ Notifier = (*LoggingNotifier)(nil)
