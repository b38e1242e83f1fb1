package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	paymentapp "github.com/storefront/backend/internal/application/payment"
	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/interfaces/http/dto"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
)

// StripeSignatureHeader carries the webhook signature
const StripeSignatureHeader = "Stripe-Signature"

// WebhookHandler receives payment processor notifications. The endpoint is
// public; authenticity comes from the signature.
type WebhookHandler struct {
	BaseHandler
	webhookService *paymentapp.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(webhookService *paymentapp.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
	}
}

// WebhookResponse acknowledges a notification
//
//	@Description	Stripe webhook acknowledgement
type WebhookResponse struct {
	Received bool   `json:"received" example:"true"`
	Outcome  string `json:"outcome,omitempty" example:"processed"`
}

// HandleStripeWebhook godoc
//
//	@ID				handleStripeWebhook
//	@Summary		Handle Stripe webhook
//	@Description	Applies payment_intent.succeeded, payment_intent.payment_failed and charge.refunded.
//	@Description	Other event types, unknown intents and repeated deliveries are acknowledged without effect.
//	@Tags			webhooks
//	@Accept			json
//	@Produce		json
//	@Param			Stripe-Signature	header		string			true	"Stripe webhook signature"
//	@Success		200					{object}	WebhookResponse
//	@Failure		400					{object}	ErrorResponse	"Invalid signature"
//	@Failure		413					{object}	ErrorResponse	"Payload too large"
//	@Failure		500					{object}	ErrorResponse	"Event could not be applied; Stripe retries"
//	@Router			/webhooks/stripe [post]
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	// the raw body is needed for signature verification
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, middleware.WebhookMaxBodyBytes+1))
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || int64(len(payload)) > middleware.WebhookMaxBodyBytes {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeTooLarge, "Payload too large")
		return
	}
	if err != nil {
		h.BadRequest(c, "Failed to read request body")
		return
	}

	signature := c.GetHeader(StripeSignatureHeader)
	if signature == "" {
		h.ErrorWithCode(c, dto.ErrCodeSignatureInvalid, "Missing Stripe-Signature header")
		return
	}

	outcome, err := h.webhookService.Handle(c.Request.Context(), payload, signature)
	if err != nil {
		if errors.Is(err, payment.ErrSignatureInvalid) {
			h.ErrorWithCode(c, dto.ErrCodeSignatureInvalid, "Webhook signature verification failed")
			return
		}
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, WebhookResponse{Received: true, Outcome: outcome})
}
