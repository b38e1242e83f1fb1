package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
	"github.com/storefront/backend/internal/domain/trade"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// deliver registers a verified event for payload and hands it to the service
func (f *paymentFixture) deliver(t *testing.T, payload string, event *payment.WebhookEvent) (string, error) {
	t.Helper()
	f.gateway.On("VerifyWebhook", []byte(payload), "t=1,v1=sig").Return(event, nil)
	return f.webhooks.Handle(context.Background(), []byte(payload), "t=1,v1=sig")
}

func TestWebhookService_BadSignature(t *testing.T) {
	f := newPaymentFixture(t)

	f.gateway.On("VerifyWebhook", mock.Anything, "forged").
		Return(nil, errors.New("signature mismatch")).Once()

	outcome, err := f.webhooks.Handle(context.Background(), []byte(`{}`), "forged")
	assert.ErrorIs(t, err, payment.ErrSignatureInvalid)
	assert.Empty(t, outcome)
}

func TestWebhookService_Succeeded(t *testing.T) {
	f := newPaymentFixture(t)
	f.openSession(t)
	f.events.Reset()

	event := &payment.WebhookEvent{
		ID:       "evt_succeeded",
		Kind:     payment.EventIntentSucceeded,
		IntentID: "pi_test",
		Created:  time.Now().Add(-time.Minute),
	}
	outcome, err := f.deliver(t, "evt_succeeded", event)
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, outcome)

	order := f.storedOrder(t)
	assert.Equal(t, trade.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, trade.OrderStatusConfirmed, order.Status)
	assert.Equal(t, payment.StatusSucceeded, f.storedPayment(t).Status)
	assert.Equal(t, 2, f.events.HandledCount())

	t.Run("redelivery is a duplicate", func(t *testing.T) {
		outcome, err := f.webhooks.Handle(context.Background(), []byte("evt_succeeded"), "t=1,v1=sig")
		require.NoError(t, err)
		assert.Equal(t, WebhookDuplicate, outcome)
	})

	t.Run("a second event for the same intent changes nothing", func(t *testing.T) {
		outcome, err := f.deliver(t, "evt_succeeded_again", &payment.WebhookEvent{
			ID:       "evt_succeeded_again",
			Kind:     payment.EventIntentSucceeded,
			IntentID: "pi_test",
		})
		require.NoError(t, err)
		assert.Equal(t, WebhookIgnored, outcome)
		assert.Equal(t, 2, f.events.HandledCount())
	})

	t.Run("a late failure does not downgrade the payment", func(t *testing.T) {
		outcome, err := f.deliver(t, "evt_late_failure", &payment.WebhookEvent{
			ID:       "evt_late_failure",
			Kind:     payment.EventIntentFailed,
			IntentID: "pi_test",
		})
		require.NoError(t, err)
		assert.Equal(t, WebhookIgnored, outcome)
		assert.Equal(t, payment.StatusSucceeded, f.storedPayment(t).Status)
	})
}

func TestWebhookService_Failed(t *testing.T) {
	f := newPaymentFixture(t)
	f.openSession(t)

	outcome, err := f.deliver(t, "evt_failed", &payment.WebhookEvent{
		ID:        "evt_failed",
		Kind:      payment.EventIntentFailed,
		IntentID:  "pi_test",
		LastError: &payment.LastError{Code: "insufficient_funds", Message: "Your card has insufficient funds.", Type: "card_error"},
	})
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, outcome)

	stored := f.storedPayment(t)
	assert.Equal(t, payment.StatusFailed, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.Equal(t, "insufficient_funds", stored.LastError.Code)
	assert.Equal(t, trade.PaymentStatusFailed, f.storedOrder(t).PaymentStatus)

	t.Run("without processor details", func(t *testing.T) {
		outcome, err := f.deliver(t, "evt_failed_bare", &payment.WebhookEvent{
			ID:       "evt_failed_bare",
			Kind:     payment.EventIntentFailed,
			IntentID: "pi_test",
		})
		require.NoError(t, err)
		assert.Equal(t, WebhookProcessed, outcome)

		stored := f.storedPayment(t)
		assert.Equal(t, 2, stored.Attempts)
		assert.Equal(t, "Payment failed", stored.LastError.Message)
	})

	t.Run("a late success still wins", func(t *testing.T) {
		outcome, err := f.deliver(t, "evt_recovered", &payment.WebhookEvent{
			ID:       "evt_recovered",
			Kind:     payment.EventIntentSucceeded,
			IntentID: "pi_test",
		})
		require.NoError(t, err)
		assert.Equal(t, WebhookProcessed, outcome)
		assert.Equal(t, payment.StatusSucceeded, f.storedPayment(t).Status)
	})
}

func TestWebhookService_Refunded(t *testing.T) {
	f := newPaymentFixture(t)
	f.openSession(t)

	_, err := f.deliver(t, "evt_paid", &payment.WebhookEvent{
		ID:       "evt_paid",
		Kind:     payment.EventIntentSucceeded,
		IntentID: "pi_test",
	})
	require.NoError(t, err)

	refunded := func(id string, amount int64) *payment.WebhookEvent {
		return &payment.WebhookEvent{
			ID:             id,
			Kind:           payment.EventChargeRefunded,
			IntentID:       "pi_test",
			AmountRefunded: valueobject.MustNewMoney(decimal.NewFromInt(amount), valueobject.XOF),
		}
	}

	outcome, err := f.deliver(t, "evt_refund_1", refunded("evt_refund_1", 5000))
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, outcome)
	assert.True(t, f.storedPayment(t).RefundedAmount.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, trade.PaymentStatusPartiallyRefunded, f.storedOrder(t).PaymentStatus)

	t.Run("same cumulative total is ignored", func(t *testing.T) {
		outcome, err := f.deliver(t, "evt_refund_1b", refunded("evt_refund_1b", 5000))
		require.NoError(t, err)
		assert.Equal(t, WebhookIgnored, outcome)
	})

	t.Run("total above the amount is capped", func(t *testing.T) {
		outcome, err := f.deliver(t, "evt_refund_2", refunded("evt_refund_2", 1_000_000))
		require.NoError(t, err)
		assert.Equal(t, WebhookProcessed, outcome)

		stored := f.storedPayment(t)
		assert.True(t, stored.RefundedAmount.Equal(stored.Amount))
		assert.Equal(t, payment.StatusRefunded, stored.Status)

		order := f.storedOrder(t)
		assert.Equal(t, trade.PaymentStatusRefunded, order.PaymentStatus)
		assert.Equal(t, trade.OrderStatusRefunded, order.Status)
	})
}

func TestWebhookService_RefundBeforeSucceeded(t *testing.T) {
	f := newPaymentFixture(t)
	f.openSession(t)
	f.events.Reset()

	refund := &payment.WebhookEvent{
		ID:             "evt_refund_early",
		Kind:           payment.EventChargeRefunded,
		IntentID:       "pi_test",
		AmountRefunded: f.orderTotal(),
	}
	outcome, err := f.deliver(t, "evt_refund_early", refund)
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, outcome)

	stored := f.storedPayment(t)
	assert.Equal(t, payment.StatusRefunded, stored.Status)
	assert.True(t, stored.RefundedAmount.Equal(stored.Amount))
	assert.NotNil(t, stored.SucceededAt)

	order := f.storedOrder(t)
	assert.Equal(t, trade.PaymentStatusRefunded, order.PaymentStatus)
	assert.Equal(t, trade.OrderStatusRefunded, order.Status)
	assert.Contains(t, order.StatusTimestamps, trade.OrderStatusConfirmed)
	assert.Contains(t, f.events.Types(), payment.EventTypePaymentSucceeded)
	assert.Contains(t, f.events.Types(), payment.EventTypePaymentRefunded)

	t.Run("the late success changes nothing", func(t *testing.T) {
		outcome, err := f.deliver(t, "evt_succeeded_late", &payment.WebhookEvent{
			ID:       "evt_succeeded_late",
			Kind:     payment.EventIntentSucceeded,
			IntentID: "pi_test",
		})
		require.NoError(t, err)
		assert.Equal(t, WebhookIgnored, outcome)

		order := f.storedOrder(t)
		assert.Equal(t, trade.PaymentStatusRefunded, order.PaymentStatus)
		assert.Equal(t, trade.OrderStatusRefunded, order.Status)
		assert.Equal(t, payment.StatusRefunded, f.storedPayment(t).Status)
	})

	t.Run("redelivery is a duplicate", func(t *testing.T) {
		outcome, err := f.webhooks.Handle(context.Background(), []byte("evt_refund_early"), "t=1,v1=sig")
		require.NoError(t, err)
		assert.Equal(t, WebhookDuplicate, outcome)
	})
}

func TestWebhookService_PartialRefundBeforeSucceeded(t *testing.T) {
	f := newPaymentFixture(t)
	f.openSession(t)

	outcome, err := f.deliver(t, "evt_refund_part", &payment.WebhookEvent{
		ID:             "evt_refund_part",
		Kind:           payment.EventChargeRefunded,
		IntentID:       "pi_test",
		AmountRefunded: valueobject.MustNewMoney(decimal.NewFromInt(5000), valueobject.XOF),
	})
	require.NoError(t, err)
	assert.Equal(t, WebhookProcessed, outcome)

	stored := f.storedPayment(t)
	assert.Equal(t, payment.StatusSucceeded, stored.Status)
	assert.True(t, stored.RefundedAmount.Equal(decimal.NewFromInt(5000)))

	order := f.storedOrder(t)
	assert.Equal(t, trade.PaymentStatusPartiallyRefunded, order.PaymentStatus)
	assert.Equal(t, trade.OrderStatusConfirmed, order.Status)
}

func TestWebhookService_Ignored(t *testing.T) {
	f := newPaymentFixture(t)

	t.Run("unknown intent", func(t *testing.T) {
		outcome, err := f.deliver(t, "evt_unknown_intent", &payment.WebhookEvent{
			ID:       "evt_unknown_intent",
			Kind:     payment.EventIntentSucceeded,
			IntentID: "pi_does_not_exist",
		})
		require.NoError(t, err)
		assert.Equal(t, WebhookIgnored, outcome)
	})

	t.Run("unhandled event type", func(t *testing.T) {
		outcome, err := f.deliver(t, "evt_customer", &payment.WebhookEvent{
			ID:   "evt_customer",
			Kind: payment.EventKind("customer.created"),
		})
		require.NoError(t, err)
		assert.Equal(t, WebhookIgnored, outcome)
	})
}
