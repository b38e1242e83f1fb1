package payment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPayment(t *testing.T, amount int64) *Payment {
	p, err := NewPayment(uuid.New(), uuid.New(), "NODY-20240601-00001", &Intent{
		ID:           "pi_test",
		ClientSecret: "pi_test_secret",
		Amount:       valueobject.MustNewMoney(decimal.NewFromInt(amount), valueobject.XOF),
		Status:       IntentRequiresPaymentMethod,
	}, "card")
	require.NoError(t, err)
	return p
}

func TestNewPayment(t *testing.T) {
	p := newTestPayment(t, 15000)
	assert.Equal(t, StatusPending, p.Status)
	assert.Equal(t, "pi_test", p.IntentID)
	assert.True(t, p.RefundedAmount.IsZero())

	_, err := NewPayment(uuid.New(), uuid.New(), "X", &Intent{Amount: valueobject.Zero(valueobject.XOF)}, "card")
	assert.Error(t, err)
}

func TestPayment_MarkSucceeded_Idempotent(t *testing.T) {
	p := newTestPayment(t, 15000)
	at := time.Now()

	assert.True(t, p.MarkSucceeded(at))
	assert.False(t, p.MarkSucceeded(at.Add(time.Hour)))

	assert.Equal(t, StatusSucceeded, p.Status)
	assert.Equal(t, at, *p.SucceededAt)
	assert.Len(t, p.GetDomainEvents(), 1)
}

func TestPayment_RecordFailure(t *testing.T) {
	p := newTestPayment(t, 15000)
	declined := LastError{Code: "card_declined", Message: "Your card was declined.", Type: "card_error"}

	assert.True(t, p.RecordFailure(declined, time.Now()))
	assert.False(t, p.RecordFailure(declined, time.Now()), "same failure counts once")
	assert.Equal(t, 1, p.Attempts)

	assert.True(t, p.RecordFailure(LastError{Code: "expired_card"}, time.Now()))
	assert.True(t, p.RecordFailure(LastError{Code: "insufficient_funds"}, time.Now()))
	assert.True(t, p.RecordFailure(LastError{Code: "card_declined"}, time.Now()))
	assert.Equal(t, MaxAttempts, p.Attempts, "attempts are capped")
	assert.True(t, p.AttemptsExhausted())
}

func TestPayment_RecordFailure_NeverDowngradesSuccess(t *testing.T) {
	p := newTestPayment(t, 15000)
	p.MarkSucceeded(time.Now())

	assert.False(t, p.RecordFailure(LastError{Code: "card_declined"}, time.Now()))
	assert.Equal(t, StatusSucceeded, p.Status)
}

func TestPayment_MarkRequiresAction(t *testing.T) {
	p := newTestPayment(t, 15000)
	assert.True(t, p.MarkRequiresAction("new_secret"))
	assert.Equal(t, "new_secret", p.ClientSecret)
	assert.False(t, p.MarkRequiresAction(""))
	assert.Equal(t, StatusRequiresAction, p.Status)
}

func TestPayment_Refunds(t *testing.T) {
	t.Run("refund requires a succeeded payment", func(t *testing.T) {
		p := newTestPayment(t, 15000)
		assert.ErrorIs(t, p.ValidateRefund(decimal.NewFromInt(100)), ErrRefundNotAllowed)
	})

	t.Run("partial refunds accumulate and are capped", func(t *testing.T) {
		p := newTestPayment(t, 15000)
		p.MarkSucceeded(time.Now())

		require.NoError(t, p.ValidateRefund(decimal.NewFromInt(5000)))
		assert.True(t, p.ApplyRefund(decimal.NewFromInt(5000), "customer_request", time.Now()))
		assert.Equal(t, StatusSucceeded, p.Status)
		assert.True(t, p.RemainingRefundable().Equal(decimal.NewFromInt(10000)))

		assert.ErrorIs(t, p.ValidateRefund(decimal.NewFromInt(10001)), ErrRefundNotAllowed)

		assert.True(t, p.ApplyRefund(decimal.NewFromInt(20000), "", time.Now()))
		assert.True(t, p.RefundedAmount.Equal(decimal.NewFromInt(15000)))
		assert.Equal(t, StatusRefunded, p.Status)
		assert.Equal(t, "customer_request", p.RefundReason)

		assert.False(t, p.ApplyRefund(decimal.NewFromInt(1), "", time.Now()))
		assert.False(t, p.CanBeRefunded())
	})

	t.Run("cumulative totals from the processor are applied once", func(t *testing.T) {
		p := newTestPayment(t, 15000)
		p.MarkSucceeded(time.Now())
		p.ClearDomainEvents()

		assert.True(t, p.ApplyRefundTotal(decimal.NewFromInt(15000), "", time.Now()))
		assert.False(t, p.ApplyRefundTotal(decimal.NewFromInt(15000), "", time.Now()))
		assert.Equal(t, StatusRefunded, p.Status)

		events := p.GetDomainEvents()
		require.Len(t, events, 1)
		refunded := events[0].(*PaymentRefundedEvent)
		assert.True(t, refunded.FullyRefunded)
		assert.True(t, refunded.Refunded.Equal(decimal.NewFromInt(15000)))
	})
}

func TestPayment_Cancel(t *testing.T) {
	p := newTestPayment(t, 15000)
	assert.True(t, p.Cancel())
	assert.Equal(t, StatusCanceled, p.Status)
	assert.False(t, p.Cancel())
}

func TestGatewayError(t *testing.T) {
	ge := &GatewayError{Code: "card_declined", Message: "Your card was declined.", Type: "card_error"}
	var err error = ge

	got, ok := AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, "card_declined", got.LastError().Code)

	de := ge.DomainError()
	assert.Equal(t, CodeGatewayError, de.Code)
	assert.Equal(t, "Your card was declined.", de.Message)

	apiErr := &GatewayError{Code: "resource_missing", Message: "No such payment_intent", Type: "invalid_request_error"}
	assert.Equal(t, "Payment could not be completed", apiErr.DomainError().Message)
}
