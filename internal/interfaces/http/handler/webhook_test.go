package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/trade"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookPath = "/api/v1/webhooks/stripe"

func (f *apiFixture) postWebhook(payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, webhookPath, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(StripeSignatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeWebhook(t *testing.T, rec *httptest.ResponseRecorder) WebhookResponse {
	t.Helper()
	var resp WebhookResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestWebhookHandler_MissingSignature(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.postWebhook([]byte(`{"id":"evt_1"}`), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, dto.ErrCodeSignatureInvalid, errorCode(t, rec))
	f.gateway.AssertNotCalled(t, "VerifyWebhook")
}

func TestWebhookHandler_BadSignature(t *testing.T) {
	f := newAPIFixture(t)
	payload := []byte(`{"id":"evt_1"}`)
	f.gateway.On("VerifyWebhook", payload, "t=1,v1=forged").Return(nil, payment.ErrSignatureInvalid).Once()

	rec := f.postWebhook(payload, "t=1,v1=forged")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, dto.ErrCodeSignatureInvalid, errorCode(t, rec))
}

func TestWebhookHandler_PaymentSucceeded(t *testing.T) {
	f := newAPIFixture(t)
	orderID, _ := f.customer(t).openSession(t)

	payload := []byte(`{"id":"evt_ok","type":"payment_intent.succeeded"}`)
	f.gateway.On("VerifyWebhook", payload, "t=1,v1=good").Return(&payment.WebhookEvent{
		ID:       "evt_ok",
		Kind:     payment.EventIntentSucceeded,
		IntentID: "pi_test",
	}, nil).Twice()

	rec := f.postWebhook(payload, "t=1,v1=good")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeWebhook(t, rec)
	assert.True(t, resp.Received)
	assert.Equal(t, "processed", resp.Outcome)

	order := f.storedOrder(t, orderID)
	assert.Equal(t, trade.OrderStatusConfirmed, order.Status)
	assert.Equal(t, trade.PaymentStatusPaid, order.PaymentStatus)

	t.Run("redelivery is acknowledged once", func(t *testing.T) {
		rec := f.postWebhook(payload, "t=1,v1=good")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "duplicate", decodeWebhook(t, rec).Outcome)
	})
}

func TestWebhookHandler_UnknownEventKind(t *testing.T) {
	f := newAPIFixture(t)
	payload := []byte(`{"id":"evt_2","type":"customer.created"}`)
	f.gateway.On("VerifyWebhook", payload, "t=1,v1=good").Return(&payment.WebhookEvent{
		ID:   "evt_2",
		Kind: payment.EventKind("customer.created"),
	}, nil).Once()

	rec := f.postWebhook(payload, "t=1,v1=good")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ignored", decodeWebhook(t, rec).Outcome)
}

func TestWebhookHandler_UnknownIntent(t *testing.T) {
	f := newAPIFixture(t)
	payload := []byte(`{"id":"evt_3"}`)
	f.gateway.On("VerifyWebhook", payload, "t=1,v1=good").Return(&payment.WebhookEvent{
		ID:       "evt_3",
		Kind:     payment.EventIntentFailed,
		IntentID: "pi_elsewhere",
	}, nil).Once()

	rec := f.postWebhook(payload, "t=1,v1=good")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ignored", decodeWebhook(t, rec).Outcome)
}

func TestWebhookHandler_PayloadTooLarge(t *testing.T) {
	f := newAPIFixture(t)
	payload := []byte(`{"pad":"` + strings.Repeat("x", int(middleware.WebhookMaxBodyBytes)) + `"}`)

	rec := f.postWebhook(payload, "t=1,v1=good")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, dto.ErrCodeTooLarge, errorCode(t, rec))
	f.gateway.AssertNotCalled(t, "VerifyWebhook")
}
