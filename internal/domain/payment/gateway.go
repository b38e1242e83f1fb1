package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
)

// IntentStatus is the processor-side status of a payment intent
type IntentStatus string

const (
	IntentRequiresPaymentMethod IntentStatus = "requires_payment_method"
	IntentRequiresConfirmation  IntentStatus = "requires_confirmation"
	IntentRequiresAction        IntentStatus = "requires_action"
	IntentProcessing            IntentStatus = "processing"
	IntentRequiresCapture       IntentStatus = "requires_capture"
	IntentSucceeded             IntentStatus = "succeeded"
	IntentCanceled              IntentStatus = "canceled"
)

// Intent is the adapter's view of a processor payment intent
type Intent struct {
	ID           string
	ClientSecret string
	Amount       valueobject.Money
	Status       IntentStatus
	LastError    *LastError
}

// CreateIntentRequest carries what the processor needs to start a payment
type CreateIntentRequest struct {
	Amount      valueobject.Money
	OrderID     uuid.UUID
	OrderNumber string
	UserID      uuid.UUID
	Email       string
	Method      string
}

// ConfirmOutcome is the result of a confirmation call
type ConfirmOutcome string

const (
	ConfirmSucceeded      ConfirmOutcome = "succeeded"
	ConfirmRequiresAction ConfirmOutcome = "requires_action"
)

// ConfirmResult is returned by Gateway.ConfirmIntent
type ConfirmResult struct {
	Outcome      ConfirmOutcome
	ClientSecret string
	Intent       *Intent
}

// RefundReason is why money is returned to the customer
type RefundReason string

const (
	RefundReasonCustomerRequest RefundReason = "customer_request"
	RefundReasonDuplicate       RefundReason = "duplicate"
	RefundReasonFraudulent      RefundReason = "fraudulent"
)

// RefundRequest asks the processor to refund part or all of an intent
type RefundRequest struct {
	IntentID string
	Amount   valueobject.Money
	Reason   RefundReason
	Note     string
}

// RefundResult is returned by Gateway.Refund
type RefundResult struct {
	RefundID string
	Status   string
	Amount   valueobject.Money
}

// EventKind names the processor notifications the service reacts to
type EventKind string

const (
	EventIntentSucceeded EventKind = "payment_intent.succeeded"
	EventIntentFailed    EventKind = "payment_intent.payment_failed"
	EventChargeRefunded  EventKind = "charge.refunded"
)

// WebhookEvent is a verified, decoded processor notification
type WebhookEvent struct {
	ID        string
	Kind      EventKind
	IntentID  string
	Created   time.Time
	LastError *LastError
	// AmountRefunded is the cumulative refunded amount of the charge
	AmountRefunded valueobject.Money
}

// Gateway is the port to the external payment processor. Implementations
// must wrap every processor failure into *GatewayError.
type Gateway interface {
	CreateIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (*Intent, error)
	ConfirmIntent(ctx context.Context, intentID string) (*ConfirmResult, error)
	CancelIntent(ctx context.Context, intentID string) error
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	VerifyWebhook(payload []byte, signatureHeader string) (*WebhookEvent, error)
}
