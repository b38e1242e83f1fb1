package handler

import (
	"github.com/gin-gonic/gin"
	paymentapp "github.com/storefront/backend/internal/application/payment"
	tradeapp "github.com/storefront/backend/internal/application/trade"
)

// AdminHandler handles the back-office order and payment endpoints.
// Routes are mounted behind RequireAdmin.
type AdminHandler struct {
	BaseHandler
	checkoutService *tradeapp.CheckoutService
	orderService    *tradeapp.OrderService
	reconciliation  *paymentapp.ReconciliationService
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	checkoutService *tradeapp.CheckoutService,
	orderService *tradeapp.OrderService,
	reconciliation *paymentapp.ReconciliationService,
) *AdminHandler {
	return &AdminHandler{
		checkoutService: checkoutService,
		orderService:    orderService,
		reconciliation:  reconciliation,
	}
}

// AdminCancelRequest represents a back-office cancellation
//
//	@Description	Request body for cancelling any order
type AdminCancelRequest struct {
	Reason string `json:"reason" binding:"max=500" example:"Out of stock at the warehouse"`
}

// ListOrders godoc
//
//	@ID				adminListOrders
//	@Summary		List all orders
//	@Tags			admin
//	@Produce		json
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Page size"		default(10)	maximum(100)
//	@Param			status		query		string	false	"Order status"
//	@Param			from		query		string	false	"Created on or after (YYYY-MM-DD)"
//	@Param			to			query		string	false	"Created before the end of (YYYY-MM-DD)"
//	@Success		200			{object}	APIResponse[[]tradeapp.OrderListItemResponse]
//	@Failure		403			{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/admin/orders [get]
func (h *AdminHandler) ListOrders(c *gin.Context) {
	var filter tradeapp.OrderListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)

	orders, total, err := h.orderService.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, orders, total, filter.Page, filter.PageSize)
}

// GetOrder godoc
//
//	@ID				adminGetOrder
//	@Summary		Get any order
//	@Tags			admin
//	@Produce		json
//	@Param			id	path		string	true	"Order ID"	format(uuid)
//	@Success		200	{object}	APIResponse[tradeapp.OrderResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/admin/orders/{id} [get]
func (h *AdminHandler) GetOrder(c *gin.Context) {
	orderID, ok := h.parseIDParam(c, "id", "order")
	if !ok {
		return
	}
	order, err := h.orderService.GetByID(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// UpdateStatus godoc
//
//	@ID				adminUpdateOrderStatus
//	@Summary		Move an order to a new status
//	@Description	Shipping records carrier and tracking details; cancelling returns the stock
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Order ID"	format(uuid)
//	@Param			request	body		tradeapp.UpdateStatusRequest	true	"Target status"
//	@Success		200		{object}	APIResponse[tradeapp.OrderResponse]
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse	"Transition not allowed"
//	@Security		BearerAuth
//	@Router			/admin/orders/{id}/status [put]
func (h *AdminHandler) UpdateStatus(c *gin.Context) {
	orderID, ok := h.parseIDParam(c, "id", "order")
	if !ok {
		return
	}
	var req tradeapp.UpdateStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	order, err := h.orderService.UpdateStatus(c.Request.Context(), orderID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// CancelOrder godoc
//
//	@ID				adminCancelOrder
//	@Summary		Cancel any order
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Order ID"	format(uuid)
//	@Param			request	body		AdminCancelRequest	false	"Cancellation reason"
//	@Success		200		{object}	APIResponse[tradeapp.OrderResponse]
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse	"Order not cancellable"
//	@Security		BearerAuth
//	@Router			/admin/orders/{id}/cancel [post]
func (h *AdminHandler) CancelOrder(c *gin.Context) {
	orderID, ok := h.parseIDParam(c, "id", "order")
	if !ok {
		return
	}
	var req AdminCancelRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}
	order, err := h.checkoutService.CancelAsAdmin(c.Request.Context(), orderID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Statistics godoc
//
//	@ID				adminOrderStatistics
//	@Summary		Order statistics
//	@Description	Order counts by status and revenue of paid orders
//	@Tags			admin
//	@Produce		json
//	@Param			from	query		string	false	"Created on or after (YYYY-MM-DD)"
//	@Param			to		query		string	false	"Created before the end of (YYYY-MM-DD)"
//	@Success		200		{object}	APIResponse[trade.OrderStatistics]
//	@Security		BearerAuth
//	@Router			/admin/orders/statistics [get]
func (h *AdminHandler) Statistics(c *gin.Context) {
	var filter tradeapp.StatisticsFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	stats, err := h.orderService.Statistics(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

// RefundPayment godoc
//
//	@ID				adminRefundPayment
//	@Summary		Refund a payment
//	@Description	Without an amount the remaining refundable amount is refunded
//	@Tags			admin
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Payment ID"	format(uuid)
//	@Param			request	body		paymentapp.RefundRequest	false	"Amount and reason"
//	@Success		200		{object}	APIResponse[paymentapp.PaymentResponse]
//	@Failure		402		{object}	ErrorResponse	"Processor refused the refund"
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse	"Refund not allowed"
//	@Security		BearerAuth
//	@Router			/admin/payments/{id}/refund [post]
func (h *AdminHandler) RefundPayment(c *gin.Context) {
	paymentID, ok := h.parseIDParam(c, "id", "payment")
	if !ok {
		return
	}
	var req paymentapp.RefundRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}
	p, err := h.reconciliation.Refund(c.Request.Context(), paymentID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, p)
}
