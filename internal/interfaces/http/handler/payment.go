package handler

import (
	"github.com/gin-gonic/gin"
	paymentapp "github.com/storefront/backend/internal/application/payment"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
)

// PaymentHandler handles the customer's payment endpoints
type PaymentHandler struct {
	BaseHandler
	reconciliation *paymentapp.ReconciliationService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(reconciliation *paymentapp.ReconciliationService) *PaymentHandler {
	return &PaymentHandler{
		reconciliation: reconciliation,
	}
}

// CreateSession godoc
//
//	@ID				createPaymentSession
//	@Summary		Start paying an order
//	@Description	Creates a payment intent for a pending order and returns its client secret
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			request	body		paymentapp.CreateSessionRequest	true	"Order to pay"
//	@Success		201		{object}	APIResponse[paymentapp.SessionResponse]
//	@Failure		400		{object}	ErrorResponse	"Amount below the processor minimum"
//	@Failure		402		{object}	ErrorResponse	"Processor refused the payment"
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse	"Order not payable"
//	@Security		BearerAuth
//	@Router			/payments/session [post]
func (h *PaymentHandler) CreateSession(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	var req paymentapp.CreateSessionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	email := c.GetString(middleware.JWTEmailKey)

	session, err := h.reconciliation.CreateSession(c.Request.Context(), userID, email, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, session)
}

// Confirm godoc
//
//	@ID				confirmPayment
//	@Summary		Confirm a payment intent
//	@Description	Asks the processor for the outcome and records it on the payment and the order.
//	@Description	A status of requiert_action carries the client secret for the authentication step.
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			request	body		paymentapp.ConfirmRequest	true	"Payment intent"
//	@Success		200		{object}	APIResponse[paymentapp.ConfirmResponse]
//	@Failure		402		{object}	ErrorResponse	"Payment declined"
//	@Failure		404		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse	"Unexpected processor status"
//	@Security		BearerAuth
//	@Router			/payments/confirm [post]
func (h *PaymentHandler) Confirm(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	var req paymentapp.ConfirmRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.reconciliation.Confirm(c.Request.Context(), userID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// GetPayment godoc
//
//	@ID				getMyPayment
//	@Summary		Get one of my payments
//	@Tags			payments
//	@Produce		json
//	@Param			id	path		string	true	"Payment ID"	format(uuid)
//	@Success		200	{object}	APIResponse[paymentapp.PaymentResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/payments/{id} [get]
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	paymentID, ok := h.parseIDParam(c, "id", "payment")
	if !ok {
		return
	}
	p, err := h.reconciliation.Get(c.Request.Context(), userID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, p)
}

// ListPayments godoc
//
//	@ID				listMyPayments
//	@Summary		List my payments
//	@Tags			payments
//	@Produce		json
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Page size"		default(10)	maximum(100)
//	@Param			status		query		string	false	"Payment status"
//	@Success		200			{object}	APIResponse[[]paymentapp.PaymentResponse]
//	@Security		BearerAuth
//	@Router			/payments [get]
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	var filter paymentapp.PaymentListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)

	payments, total, err := h.reconciliation.List(c.Request.Context(), userID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, payments, total, filter.Page, filter.PageSize)
}
