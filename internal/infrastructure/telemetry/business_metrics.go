package telemetry

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BusinessMetrics tracks checkout, payment, refund and webhook activity.
// A nil *BusinessMetrics is valid and records nothing.
type BusinessMetrics struct {
	logger *zap.Logger

	checkoutTotal          *Counter
	orderAmountTotal       *Counter
	orderCancelledTotal    *Counter
	paymentTotal           *Counter
	paymentAttemptsMaxed   *Counter
	refundTotal            *Counter
	refundAmountTotal      *Counter
	webhookEventTotal      *Counter
	gatewayRequestDuration *Histogram
}

// BusinessMetricsConfig holds configuration for business metrics.
type BusinessMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// Outcome labels
const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
	OutcomeAction    = "requires_action"
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
)

// NewBusinessMetrics creates the storefront business instruments.
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	bm := &BusinessMetrics{logger: logger}

	counters := []struct {
		dst         **Counter
		name        string
		description string
		unit        string
	}{
		{&bm.checkoutTotal, "storefront_checkout_total", "Checkout attempts by outcome", "{checkouts}"},
		{&bm.orderAmountTotal, "storefront_order_amount_total", "Order totals in minor units", "{minor_units}"},
		{&bm.orderCancelledTotal, "storefront_order_cancelled_total", "Orders cancelled", "{orders}"},
		{&bm.paymentTotal, "storefront_payment_total", "Payment confirmations by outcome", "{payments}"},
		{&bm.paymentAttemptsMaxed, "storefront_payment_attempts_exhausted_total", "Payments that reached the attempt cap", "{payments}"},
		{&bm.refundTotal, "storefront_refund_total", "Refunds issued", "{refunds}"},
		{&bm.refundAmountTotal, "storefront_refund_amount_total", "Refunded amounts in minor units", "{minor_units}"},
		{&bm.webhookEventTotal, "storefront_webhook_event_total", "Processor webhook events by kind and outcome", "{events}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(cfg.Meter, c.name, c.description, c.unit)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	var err error
	bm.gatewayRequestDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "storefront_gateway_request_duration_seconds",
		Description: "Payment processor call latency",
		Unit:        "s",
		Boundaries:  GatewayDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// RecordCheckout records a checkout outcome. errorCode is empty on success.
func (bm *BusinessMetrics) RecordCheckout(ctx context.Context, currency string, total decimal.Decimal, errorCode string) {
	if bm == nil {
		return
	}
	if errorCode != "" {
		bm.checkoutTotal.Inc(ctx, AttrOutcome.String(OutcomeRejected), AttrErrorCode.String(errorCode))
		return
	}
	bm.checkoutTotal.Inc(ctx, AttrOutcome.String(OutcomeSuccess), AttrCurrency.String(currency))
	bm.orderAmountTotal.Add(ctx, total.Round(0).IntPart(), AttrCurrency.String(currency))
}

// RecordOrderCancelled records an order cancellation.
func (bm *BusinessMetrics) RecordOrderCancelled(ctx context.Context) {
	if bm == nil {
		return
	}
	bm.orderCancelledTotal.Inc(ctx)
}

// RecordPayment records the outcome of a payment confirmation.
func (bm *BusinessMetrics) RecordPayment(ctx context.Context, method, outcome string) {
	if bm == nil {
		return
	}
	bm.paymentTotal.Inc(ctx, AttrPaymentMethod.String(method), AttrOutcome.String(outcome))
}

// RecordAttemptsExhausted records a payment that reached the attempt cap.
func (bm *BusinessMetrics) RecordAttemptsExhausted(ctx context.Context, method string) {
	if bm == nil {
		return
	}
	bm.paymentAttemptsMaxed.Inc(ctx, AttrPaymentMethod.String(method))
	bm.logger.Warn("PAYMENT_ATTEMPTS_EXHAUSTED", zap.String("payment_method", method))
}

// RecordRefund records a refund in the currency's minor units.
func (bm *BusinessMetrics) RecordRefund(ctx context.Context, currency string, minorUnits int64, full bool) {
	if bm == nil {
		return
	}
	kind := "partial"
	if full {
		kind = "full"
	}
	bm.refundTotal.Inc(ctx, AttrCurrency.String(currency), AttrRefundKind.String(kind))
	bm.refundAmountTotal.Add(ctx, minorUnits, AttrCurrency.String(currency))
}

// RecordWebhookEvent records a processed webhook event.
func (bm *BusinessMetrics) RecordWebhookEvent(ctx context.Context, kind, outcome string) {
	if bm == nil {
		return
	}
	bm.webhookEventTotal.Inc(ctx, AttrEventKind.String(kind), AttrOutcome.String(outcome))
}

// RecordGatewayCall records a processor round trip.
func (bm *BusinessMetrics) RecordGatewayCall(ctx context.Context, operation string, d time.Duration, err error) {
	if bm == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailed
	}
	bm.gatewayRequestDuration.RecordDuration(ctx, d,
		AttrOutcome.String(outcome),
		AttrOperation.String(operation),
	)
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
