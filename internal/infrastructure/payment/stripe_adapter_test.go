package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/form"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

// mockBackend implements stripe.Backend for testing
type mockBackend struct {
	calls   int
	handler func(method, path string, params stripe.ParamsContainer) ([]byte, error)
}

func (m *mockBackend) Call(method, path, key string, params stripe.ParamsContainer, v stripe.LastResponseSetter) error {
	m.calls++
	data, err := m.handler(method, path, params)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (m *mockBackend) CallStreaming(method, path, key string, params stripe.ParamsContainer, v stripe.StreamingLastResponseSetter) error {
	return nil
}

func (m *mockBackend) CallRaw(method, path, key string, body *form.Values, params *stripe.Params, v stripe.LastResponseSetter) error {
	return nil
}

func (m *mockBackend) CallMultipart(method, path, key, boundary string, body *bytes.Buffer, params *stripe.Params, v stripe.LastResponseSetter) error {
	return nil
}

func (m *mockBackend) SetMaxNetworkRetries(maxNetworkRetries int64) {}

const testWebhookSecret = "whsec_test_123456789"

func testConfig() *StripeConfig {
	return &StripeConfig{
		SecretKey:          "sk_test_123456789",
		WebhookSecret:      testWebhookSecret,
		BreakerMaxFailures: 3,
	}
}

func newTestAdapter(t *testing.T, handler func(method, path string, params stripe.ParamsContainer) ([]byte, error)) (*StripeAdapter, *mockBackend) {
	t.Helper()
	backend := &mockBackend{handler: handler}
	adapter, err := NewStripeAdapterWithBackend(testConfig(), backend, zap.NewNop())
	require.NoError(t, err)
	return adapter, backend
}

func intentJSON(t *testing.T, pi *stripe.PaymentIntent) []byte {
	t.Helper()
	data, err := json.Marshal(pi)
	require.NoError(t, err)
	return data
}

func TestStripeConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  StripeConfig
		wantErr error
	}{
		{"missing secret key", StripeConfig{WebhookSecret: "whsec_x"}, ErrStripeMissingSecretKey},
		{"malformed secret key", StripeConfig{SecretKey: "pk_test_x", WebhookSecret: "whsec_x"}, ErrStripeInvalidSecretKey},
		{"missing webhook secret", StripeConfig{SecretKey: "sk_test_x"}, ErrStripeMissingWebhookSecret},
		{"valid", StripeConfig{SecretKey: "sk_test_x", WebhookSecret: "whsec_x"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.True(t, testConfig().IsTestMode())
}

func TestCreateIntent(t *testing.T) {
	t.Run("sends minor units for two-decimal currencies", func(t *testing.T) {
		var sent *stripe.PaymentIntentParams
		adapter, _ := newTestAdapter(t, func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
			require.Equal(t, http.MethodPost, method)
			require.Equal(t, "/v1/payment_intents", path)
			sent = params.(*stripe.PaymentIntentParams)
			return intentJSON(t, &stripe.PaymentIntent{
				ID:           "pi_123",
				ClientSecret: "pi_123_secret_abc",
				Amount:       *sent.Amount,
				Currency:     stripe.Currency(*sent.Currency),
				Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
			}), nil
		})

		orderID := uuid.New()
		intent, err := adapter.CreateIntent(context.Background(), payment.CreateIntentRequest{
			Amount:      valueobject.MustNewMoney(decimal.RequireFromString("19.80"), valueobject.EUR),
			OrderID:     orderID,
			OrderNumber: "NODY-20240601-00001",
			UserID:      uuid.New(),
			Email:       "awa@example.com",
		})
		require.NoError(t, err)

		assert.Equal(t, int64(1980), *sent.Amount)
		assert.Equal(t, "eur", *sent.Currency)
		assert.Equal(t, orderID.String(), sent.Metadata["order_id"])
		assert.Equal(t, "NODY-20240601-00001", sent.Metadata["order_number"])
		assert.Equal(t, "awa@example.com", *sent.ReceiptEmail)

		assert.Equal(t, "pi_123", intent.ID)
		assert.Equal(t, "pi_123_secret_abc", intent.ClientSecret)
		assert.Equal(t, "19.80 EUR", intent.Amount.String())
		assert.Equal(t, payment.IntentRequiresPaymentMethod, intent.Status)
	})

	t.Run("sends zero-decimal currencies as-is", func(t *testing.T) {
		var sent *stripe.PaymentIntentParams
		adapter, _ := newTestAdapter(t, func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
			sent = params.(*stripe.PaymentIntentParams)
			return intentJSON(t, &stripe.PaymentIntent{ID: "pi_xof", Amount: *sent.Amount, Currency: "xof"}), nil
		})

		intent, err := adapter.CreateIntent(context.Background(), payment.CreateIntentRequest{
			Amount: valueobject.MustNewMoney(decimal.RequireFromString("13200"), valueobject.XOF),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(13200), *sent.Amount)
		assert.Equal(t, "xof", *sent.Currency)
		assert.Equal(t, valueobject.XOF, intent.Amount.Currency())
	})

	t.Run("rejects amounts below the processor minimum", func(t *testing.T) {
		adapter, backend := newTestAdapter(t, func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
			return nil, fmt.Errorf("unexpected call: %s %s", method, path)
		})

		_, err := adapter.CreateIntent(context.Background(), payment.CreateIntentRequest{
			Amount: valueobject.MustNewMoney(decimal.RequireFromString("0.49"), valueobject.EUR),
		})
		assert.ErrorIs(t, err, payment.ErrAmountTooSmall)
		assert.Zero(t, backend.calls)
	})

	t.Run("unknown processor currency falls back to EUR", func(t *testing.T) {
		adapter, _ := newTestAdapter(t, func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
			return intentJSON(t, &stripe.PaymentIntent{ID: "pi_gbp", Amount: 500, Currency: "gbp"}), nil
		})

		intent, err := adapter.CreateIntent(context.Background(), payment.CreateIntentRequest{
			Amount: valueobject.MustNewMoney(decimal.RequireFromString("5"), valueobject.EUR),
		})
		require.NoError(t, err)
		assert.Equal(t, valueobject.EUR, intent.Amount.Currency())
	})

	t.Run("wraps processor errors", func(t *testing.T) {
		adapter, _ := newTestAdapter(t, func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
			return nil, &stripe.Error{
				Code:           stripe.ErrorCodeCardDeclined,
				Msg:            "Your card was declined.",
				Type:           stripe.ErrorTypeCard,
				HTTPStatusCode: http.StatusPaymentRequired,
			}
		})

		_, err := adapter.CreateIntent(context.Background(), payment.CreateIntentRequest{
			Amount: valueobject.MustNewMoney(decimal.RequireFromString("10"), valueobject.EUR),
		})
		gerr, ok := payment.AsGatewayError(err)
		require.True(t, ok)
		assert.Equal(t, "card_declined", gerr.Code)
		assert.Equal(t, "card_error", gerr.Type)
		assert.False(t, gerr.Temporary)

		var se *stripe.Error
		assert.False(t, errors.As(err, &se), "raw processor errors never escape")
	})

	t.Run("transport failures are temporary", func(t *testing.T) {
		adapter, _ := newTestAdapter(t, func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
			return nil, errors.New("dial tcp: i/o timeout")
		})

		_, err := adapter.CreateIntent(context.Background(), payment.CreateIntentRequest{
			Amount: valueobject.MustNewMoney(decimal.RequireFromString("10"), valueobject.EUR),
		})
		gerr, ok := payment.AsGatewayError(err)
		require.True(t, ok)
		assert.True(t, gerr.Temporary)
		assert.Equal(t, "network_error", gerr.Code)
	})
}

func TestConfirmIntent(t *testing.T) {
	t.Run("succeeded intent is returned as-is", func(t *testing.T) {
		adapter, backend := newTestAdapter(t, func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
			require.Equal(t, http.MethodGet, method)
			return intentJSON(t, &stripe.PaymentIntent{ID: "pi_ok", Amount: 13200, Currency: "xof", Status: stripe.PaymentIntentStatusSucceeded}), nil
		})

		res, err := adapter.ConfirmIntent(context.Background(), "pi_ok")
		require.NoError(t, err)
		assert.Equal(t, payment.ConfirmSucceeded, res.Outcome)
		assert.Equal(t, 1, backend.calls)
	})

	t.Run("requires_confirmation is confirmed", func(t *testing.T) {
		adapter, backend := newTestAdapter(t, func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
			switch {
			case method == http.MethodGet && path == "/v1/payment_intents/pi_conf":
				return intentJSON(t, &stripe.PaymentIntent{ID: "pi_conf", Amount: 1000, Currency: "eur", Status: stripe.PaymentIntentStatusRequiresConfirmation}), nil
			case method == http.MethodPost && path == "/v1/payment_intents/pi_conf/confirm":
				return intentJSON(t, &stripe.PaymentIntent{ID: "pi_conf", Amount: 1000, Currency: "eur", Status: stripe.PaymentIntentStatusSucceeded}), nil
			}
			return nil, fmt.Errorf("unexpected call: %s %s", method, path)
		})

		res, err := adapter.ConfirmIntent(context.Background(), "pi_conf")
		require.NoError(t, err)
		assert.Equal(t, payment.ConfirmSucceeded, res.Outcome)
		assert.Equal(t, 2, backend.calls)
	})

	t.Run("requires_action surfaces the client secret", func(t *testing.T) {
		adapter, _ := newTestAdapter(t, func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
			return intentJSON(t, &stripe.PaymentIntent{ID: "pi_3ds", ClientSecret: "pi_3ds_secret", Amount: 1000, Currency: "eur", Status: stripe.PaymentIntentStatusRequiresAction}), nil
		})

		res, err := adapter.ConfirmIntent(context.Background(), "pi_3ds")
		require.NoError(t, err)
		assert.Equal(t, payment.ConfirmRequiresAction, res.Outcome)
		assert.Equal(t, "pi_3ds_secret", res.ClientSecret)
	})

	t.Run("declined attempt becomes a gateway error", func(t *testing.T) {
		adapter, _ := newTestAdapter(t, func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
			return intentJSON(t, &stripe.PaymentIntent{
				ID:       "pi_dec",
				Amount:   1000,
				Currency: "eur",
				Status:   stripe.PaymentIntentStatusRequiresPaymentMethod,
				LastPaymentError: &stripe.Error{
					Code:        stripe.ErrorCodeCardDeclined,
					DeclineCode: "insufficient_funds",
					Msg:         "Your card has insufficient funds.",
					Type:        stripe.ErrorTypeCard,
				},
			}), nil
		})

		_, err := adapter.ConfirmIntent(context.Background(), "pi_dec")
		gerr, ok := payment.AsGatewayError(err)
		require.True(t, ok)
		assert.Equal(t, "insufficient_funds", gerr.Code)
		assert.False(t, gerr.Temporary)
	})

	t.Run("other statuses are unhandled", func(t *testing.T) {
		adapter, _ := newTestAdapter(t, func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
			return intentJSON(t, &stripe.PaymentIntent{ID: "pi_proc", Amount: 1000, Currency: "eur", Status: stripe.PaymentIntentStatusProcessing}), nil
		})

		_, err := adapter.ConfirmIntent(context.Background(), "pi_proc")
		de, ok := shared.AsDomainError(err)
		require.True(t, ok)
		assert.Equal(t, "UNHANDLED_PAYMENT_STATUS", de.Code)
		assert.Equal(t, "processing", de.Details["status"])
	})
}

func TestRefund(t *testing.T) {
	tests := []struct {
		reason     payment.RefundReason
		wantReason string
	}{
		{payment.RefundReasonCustomerRequest, "requested_by_customer"},
		{payment.RefundReasonDuplicate, "duplicate"},
		{payment.RefundReasonFraudulent, "fraudulent"},
		{payment.RefundReason("damaged_item"), ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			var sent *stripe.RefundParams
			adapter, _ := newTestAdapter(t, func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
				require.Equal(t, "/v1/refunds", path)
				sent = params.(*stripe.RefundParams)
				return json.Marshal(&stripe.Refund{ID: "re_1", Amount: *sent.Amount, Currency: "eur", Status: stripe.RefundStatusSucceeded})
			})

			res, err := adapter.Refund(context.Background(), payment.RefundRequest{
				IntentID: "pi_123",
				Amount:   valueobject.MustNewMoney(decimal.RequireFromString("5.50"), valueobject.EUR),
				Reason:   tt.reason,
			})
			require.NoError(t, err)

			assert.Equal(t, int64(550), *sent.Amount)
			assert.Equal(t, "pi_123", *sent.PaymentIntent)
			assert.Equal(t, string(tt.reason), sent.Metadata["reason"])
			if tt.wantReason == "" {
				assert.Nil(t, sent.Reason)
			} else {
				require.NotNil(t, sent.Reason)
				assert.Equal(t, tt.wantReason, *sent.Reason)
			}
			assert.Equal(t, "re_1", res.RefundID)
			assert.Equal(t, "succeeded", res.Status)
			assert.Equal(t, "5.50 EUR", res.Amount.String())
		})
	}
}

func TestCancelIntent(t *testing.T) {
	adapter, backend := newTestAdapter(t, func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
		require.Equal(t, "/v1/payment_intents/pi_c/cancel", path)
		return intentJSON(t, &stripe.PaymentIntent{ID: "pi_c", Status: stripe.PaymentIntentStatusCanceled}), nil
	})

	require.NoError(t, adapter.CancelIntent(context.Background(), "pi_c"))
	assert.Equal(t, 1, backend.calls)
}

func TestCircuitBreaker(t *testing.T) {
	adapter, backend := newTestAdapter(t, func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
		return nil, errors.New("connection refused")
	})

	for i := 0; i < 3; i++ {
		_, err := adapter.RetrieveIntent(context.Background(), "pi_x")
		require.Error(t, err)
	}
	require.Equal(t, 3, backend.calls)

	_, err := adapter.RetrieveIntent(context.Background(), "pi_x")
	gerr, ok := payment.AsGatewayError(err)
	require.True(t, ok)
	assert.Equal(t, "processor_unavailable", gerr.Code)
	assert.True(t, gerr.Temporary)
	assert.Equal(t, 3, backend.calls, "open breaker short-circuits the call")
}

func TestCircuitBreaker_IgnoresDeclines(t *testing.T) {
	adapter, backend := newTestAdapter(t, func(method, path string, params stripe.ParamsContainer) ([]byte, error) {
		return nil, &stripe.Error{Code: stripe.ErrorCodeCardDeclined, Type: stripe.ErrorTypeCard, HTTPStatusCode: http.StatusPaymentRequired}
	})

	for i := 0; i < 5; i++ {
		_, _ = adapter.RetrieveIntent(context.Background(), "pi_x")
	}
	assert.Equal(t, 5, backend.calls)
}

func signedPayload(t *testing.T, body string) ([]byte, string) {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(body),
		Secret:  testWebhookSecret,
	})
	return signed.Payload, signed.Header
}

func TestVerifyWebhook(t *testing.T) {
	adapter, _ := newTestAdapter(t, nil)

	t.Run("payment_intent.succeeded", func(t *testing.T) {
		body := fmt.Sprintf(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","api_version":%q,"created":1700000000,
			"data":{"object":{"id":"pi_123","object":"payment_intent","amount":13200,"currency":"xof","status":"succeeded"}}}`, stripe.APIVersion)
		payload, header := signedPayload(t, body)

		event, err := adapter.VerifyWebhook(payload, header)
		require.NoError(t, err)
		assert.Equal(t, "evt_1", event.ID)
		assert.Equal(t, payment.EventIntentSucceeded, event.Kind)
		assert.Equal(t, "pi_123", event.IntentID)
		assert.Equal(t, int64(1700000000), event.Created.Unix())
	})

	t.Run("payment_intent.payment_failed carries the last error", func(t *testing.T) {
		body := fmt.Sprintf(`{"id":"evt_2","object":"event","type":"payment_intent.payment_failed","api_version":%q,"created":1700000000,
			"data":{"object":{"id":"pi_456","object":"payment_intent","status":"requires_payment_method",
			"last_payment_error":{"code":"card_declined","message":"Your card was declined.","type":"card_error"}}}}`, stripe.APIVersion)
		payload, header := signedPayload(t, body)

		event, err := adapter.VerifyWebhook(payload, header)
		require.NoError(t, err)
		assert.Equal(t, payment.EventIntentFailed, event.Kind)
		require.NotNil(t, event.LastError)
		assert.Equal(t, "card_declined", event.LastError.Code)
		assert.Equal(t, "Your card was declined.", event.LastError.Message)
	})

	t.Run("charge.refunded carries the cumulative refunded amount", func(t *testing.T) {
		body := fmt.Sprintf(`{"id":"evt_3","object":"event","type":"charge.refunded","api_version":%q,"created":1700000000,
			"data":{"object":{"id":"ch_1","object":"charge","payment_intent":"pi_789","amount":2000,"amount_refunded":750,"currency":"eur"}}}`, stripe.APIVersion)
		payload, header := signedPayload(t, body)

		event, err := adapter.VerifyWebhook(payload, header)
		require.NoError(t, err)
		assert.Equal(t, payment.EventChargeRefunded, event.Kind)
		assert.Equal(t, "pi_789", event.IntentID)
		assert.Equal(t, "7.50 EUR", event.AmountRefunded.String())
	})

	t.Run("bad signature", func(t *testing.T) {
		payload, _ := signedPayload(t, `{"id":"evt_4","object":"event","type":"payment_intent.succeeded"}`)

		_, err := adapter.VerifyWebhook(payload, "t=1700000000,v1=deadbeef")
		assert.ErrorIs(t, err, payment.ErrSignatureInvalid)
	})

	t.Run("tampered payload", func(t *testing.T) {
		body := fmt.Sprintf(`{"id":"evt_5","object":"event","type":"payment_intent.succeeded","api_version":%q,"data":{"object":{"id":"pi_1"}}}`, stripe.APIVersion)
		_, header := signedPayload(t, body)

		_, err := adapter.VerifyWebhook([]byte(body+" "), header)
		assert.ErrorIs(t, err, payment.ErrSignatureInvalid)
	})
}
