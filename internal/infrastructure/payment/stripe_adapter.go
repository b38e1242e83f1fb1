package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

// StripeAdapter implements payment.Gateway on top of Stripe payment intents
type StripeAdapter struct {
	config  *StripeConfig
	client  *client.API
	breaker *gobreaker.CircuitBreaker[any]
	logger  *zap.Logger
}

// NewStripeAdapter creates an adapter talking to the live Stripe API
func NewStripeAdapter(config *StripeConfig, logger *zap.Logger) (*StripeAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: config.Timeout},
		MaxNetworkRetries: stripe.Int64(config.MaxNetworkRetries),
		LeveledLogger:     logger.Sugar(),
	})
	return NewStripeAdapterWithBackend(config, backend, logger)
}

// NewStripeAdapterWithBackend creates an adapter over a caller-supplied backend
func NewStripeAdapterWithBackend(config *StripeConfig, backend stripe.Backend, logger *zap.Logger) (*StripeAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.applyDefaults()

	sc := &client.API{}
	sc.Init(config.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})

	return &StripeAdapter{
		config:  config,
		client:  sc,
		breaker: newStripeBreaker(config, logger),
		logger:  logger,
	}, nil
}

func newStripeBreaker(config *StripeConfig, logger *zap.Logger) *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "stripe",
		MaxRequests: 1,
		Timeout:     config.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.BreakerMaxFailures
		},
		// declines and invalid requests say nothing about Stripe's health
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var se *stripe.Error
			if errors.As(err, &se) {
				return se.HTTPStatusCode > 0 && se.HTTPStatusCode < 500 && se.HTTPStatusCode != http.StatusTooManyRequests
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Payment processor circuit breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// execute runs fn through the breaker and maps every failure to *payment.GatewayError
func execute[T any](a *StripeAdapter, op string, fn func() (T, error)) (T, error) {
	var zero T
	res, err := a.breaker.Execute(func() (any, error) {
		v, err := fn()
		return v, err
	})
	if err != nil {
		gerr := toGatewayError(err)
		a.logger.Error("Stripe call failed",
			zap.String("operation", op),
			zap.String("code", gerr.Code),
			zap.String("type", gerr.Type),
			zap.Bool("temporary", gerr.Temporary),
			zap.Error(err))
		return zero, gerr
	}
	return res.(T), nil
}

// toGatewayError converts any processor or transport failure into the uniform error shape
func toGatewayError(err error) *payment.GatewayError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &payment.GatewayError{
			Code:      "processor_unavailable",
			Message:   "Payment processor is temporarily unavailable",
			Type:      "api_error",
			Temporary: true,
		}
	}
	var se *stripe.Error
	if errors.As(err, &se) {
		code := string(se.Code)
		if code == "" {
			code = string(se.Type)
		}
		msg := se.Msg
		if se.DeclineCode != "" {
			code = string(se.DeclineCode)
		}
		return &payment.GatewayError{
			Code:      code,
			Message:   msg,
			Type:      string(se.Type),
			Temporary: se.HTTPStatusCode >= 500 || se.HTTPStatusCode == http.StatusTooManyRequests,
		}
	}
	if errors.Is(err, context.Canceled) {
		return &payment.GatewayError{Code: "canceled", Message: err.Error(), Type: "api_connection_error", Temporary: true}
	}
	return &payment.GatewayError{
		Code:      "network_error",
		Message:   err.Error(),
		Type:      "api_connection_error",
		Temporary: true,
	}
}

// CreateIntent creates a payment intent for the order amount
func (a *StripeAdapter) CreateIntent(ctx context.Context, req payment.CreateIntentRequest) (*payment.Intent, error) {
	minor := req.Amount.ToMinorUnits()
	if minor < a.config.MinimumAmount {
		return nil, payment.ErrAmountTooSmall.
			WithDetail("amount", minor).
			WithDetail("minimum", a.config.MinimumAmount)
	}

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(minor),
		Currency:    stripe.String(req.Amount.Currency().Lower()),
		Description: stripe.String(fmt.Sprintf("Order %s", req.OrderNumber)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Email != "" {
		params.ReceiptEmail = stripe.String(req.Email)
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID.String())
	params.AddMetadata("order_number", req.OrderNumber)
	params.AddMetadata("user_id", req.UserID.String())
	if req.Email != "" {
		params.AddMetadata("email", req.Email)
	}
	if req.Method != "" {
		params.AddMetadata("method", req.Method)
	}

	pi, err := execute(a, "create_intent", func() (*stripe.PaymentIntent, error) {
		return a.client.PaymentIntents.New(params)
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("Created payment intent",
		zap.String("intent_id", pi.ID),
		zap.String("order_number", req.OrderNumber),
		zap.Int64("amount", pi.Amount),
		zap.String("currency", string(pi.Currency)))
	return a.toIntent(pi), nil
}

// RetrieveIntent fetches the current state of an intent
func (a *StripeAdapter) RetrieveIntent(ctx context.Context, intentID string) (*payment.Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := execute(a, "retrieve_intent", func() (*stripe.PaymentIntent, error) {
		return a.client.PaymentIntents.Get(intentID, params)
	})
	if err != nil {
		return nil, err
	}
	return a.toIntent(pi), nil
}

// ConfirmIntent drives an intent towards success. An intent that still
// needs confirmation is confirmed; one that needs customer action returns
// its client secret.
func (a *StripeAdapter) ConfirmIntent(ctx context.Context, intentID string) (*payment.ConfirmResult, error) {
	intent, err := a.RetrieveIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}

	if intent.Status == payment.IntentRequiresConfirmation {
		params := &stripe.PaymentIntentConfirmParams{}
		params.Context = ctx
		pi, err := execute(a, "confirm_intent", func() (*stripe.PaymentIntent, error) {
			return a.client.PaymentIntents.Confirm(intentID, params)
		})
		if err != nil {
			return nil, err
		}
		intent = a.toIntent(pi)
	}

	switch intent.Status {
	case payment.IntentSucceeded:
		return &payment.ConfirmResult{Outcome: payment.ConfirmSucceeded, Intent: intent}, nil
	case payment.IntentRequiresAction:
		return &payment.ConfirmResult{
			Outcome:      payment.ConfirmRequiresAction,
			ClientSecret: intent.ClientSecret,
			Intent:       intent,
		}, nil
	case payment.IntentRequiresPaymentMethod:
		// a declined attempt leaves the intent waiting for a new method
		if intent.LastError != nil {
			return nil, &payment.GatewayError{
				Code:    intent.LastError.Code,
				Message: intent.LastError.Message,
				Type:    intent.LastError.Type,
			}
		}
	}
	return nil, payment.ErrUnhandledStatus(intent.Status)
}

// CancelIntent cancels an intent that can no longer be paid
func (a *StripeAdapter) CancelIntent(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String("abandoned"),
	}
	params.Context = ctx
	_, err := execute(a, "cancel_intent", func() (*stripe.PaymentIntent, error) {
		return a.client.PaymentIntents.Cancel(intentID, params)
	})
	return err
}

// Refund returns part or all of a captured intent
func (a *StripeAdapter) Refund(ctx context.Context, req payment.RefundRequest) (*payment.RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.IntentID),
		Amount:        stripe.Int64(req.Amount.ToMinorUnits()),
	}
	if reason := processorRefundReason(req.Reason); reason != "" {
		params.Reason = stripe.String(reason)
	}
	params.Context = ctx
	params.AddMetadata("reason", string(req.Reason))
	if req.Note != "" {
		params.AddMetadata("note", req.Note)
	}

	r, err := execute(a, "refund", func() (*stripe.Refund, error) {
		return a.client.Refunds.New(params)
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("Created refund",
		zap.String("refund_id", r.ID),
		zap.String("intent_id", req.IntentID),
		zap.Int64("amount", r.Amount))
	return &payment.RefundResult{
		RefundID: r.ID,
		Status:   string(r.Status),
		Amount:   valueobject.FromMinorUnits(r.Amount, a.currencyOf(string(r.Currency))),
	}, nil
}

func processorRefundReason(reason payment.RefundReason) string {
	switch reason {
	case payment.RefundReasonCustomerRequest:
		return "requested_by_customer"
	case payment.RefundReasonDuplicate:
		return "duplicate"
	case payment.RefundReasonFraudulent:
		return "fraudulent"
	}
	return ""
}

// VerifyWebhook checks the Stripe-Signature header and decodes the event
func (a *StripeAdapter) VerifyWebhook(payload []byte, signatureHeader string) (*payment.WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, a.config.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: a.config.IgnoreAPIVersionMismatch})
	if err != nil {
		a.logger.Warn("Rejected webhook", zap.Error(err))
		return nil, payment.ErrSignatureInvalid
	}

	out := &payment.WebhookEvent{
		ID:      event.ID,
		Kind:    payment.EventKind(event.Type),
		Created: time.Unix(event.Created, 0),
	}
	if event.Data == nil {
		return out, nil
	}

	switch out.Kind {
	case payment.EventIntentSucceeded, payment.EventIntentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, &payment.GatewayError{Code: "invalid_payload", Message: err.Error(), Type: "invalid_request_error"}
		}
		out.IntentID = pi.ID
		out.LastError = lastErrorOf(pi.LastPaymentError)
	case payment.EventChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, &payment.GatewayError{Code: "invalid_payload", Message: err.Error(), Type: "invalid_request_error"}
		}
		if ch.PaymentIntent != nil {
			out.IntentID = ch.PaymentIntent.ID
		}
		out.AmountRefunded = valueobject.FromMinorUnits(ch.AmountRefunded, a.currencyOf(string(ch.Currency)))
	}
	return out, nil
}

func (a *StripeAdapter) toIntent(pi *stripe.PaymentIntent) *payment.Intent {
	return &payment.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       valueobject.FromMinorUnits(pi.Amount, a.currencyOf(string(pi.Currency))),
		Status:       payment.IntentStatus(pi.Status),
		LastError:    lastErrorOf(pi.LastPaymentError),
	}
}

// currencyOf maps a processor currency code, falling back to EUR
func (a *StripeAdapter) currencyOf(code string) valueobject.Currency {
	currency, err := valueobject.ParseCurrency(code)
	if err != nil {
		a.logger.Warn("Unknown processor currency, assuming EUR", zap.String("currency", code))
		return valueobject.EUR
	}
	return currency
}

func lastErrorOf(se *stripe.Error) *payment.LastError {
	if se == nil {
		return nil
	}
	code := string(se.Code)
	if se.DeclineCode != "" {
		code = string(se.DeclineCode)
	}
	return &payment.LastError{Code: code, Message: se.Msg, Type: string(se.Type)}
}

var _ payment.Gateway = (*StripeAdapter)(nil)
