package handler

import (
	"github.com/gin-gonic/gin"
	tradeapp "github.com/storefront/backend/internal/application/trade"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
)

// maxIdempotencyKeyLength bounds the Idempotency-Key header
const maxIdempotencyKeyLength = 255

// OrderHandler handles checkout and the customer's order endpoints
type OrderHandler struct {
	BaseHandler
	checkoutService *tradeapp.CheckoutService
	orderService    *tradeapp.OrderService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(checkoutService *tradeapp.CheckoutService, orderService *tradeapp.OrderService) *OrderHandler {
	return &OrderHandler{
		checkoutService: checkoutService,
		orderService:    orderService,
	}
}

// Checkout godoc
//
//	@ID				checkout
//	@Summary		Place an order from the cart
//	@Description	Decrements stock for every line atomically and empties the cart.
//	@Description	A repeated Idempotency-Key is answered with 409 DUPLICATE_REQUEST.
//	@Tags			orders
//	@Accept			json
//	@Produce		json
//	@Param			Idempotency-Key	header		string						false	"Client-chosen key for safe retries"
//	@Param			request			body		tradeapp.CheckoutRequest	true	"Addresses and payment method"
//	@Success		201				{object}	APIResponse[tradeapp.OrderResponse]
//	@Failure		400				{object}	ErrorResponse
//	@Failure		409				{object}	ErrorResponse	"Insufficient stock, unavailable product or duplicate request"
//	@Failure		422				{object}	ErrorResponse	"Empty cart"
//	@Security		BearerAuth
//	@Router			/checkout [post]
func (h *OrderHandler) Checkout(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	key := c.GetHeader(middleware.IdempotencyKeyHeader)
	if len(key) > maxIdempotencyKeyLength {
		h.BadRequest(c, "Idempotency-Key header is too long")
		return
	}
	var req tradeapp.CheckoutRequest
	if !h.BindJSON(c, &req) {
		return
	}

	order, err := h.checkoutService.Checkout(c.Request.Context(), userID, req, key)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, order)
}

// ListOrders godoc
//
//	@ID				listMyOrders
//	@Summary		List my orders
//	@Tags			orders
//	@Produce		json
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Page size"		default(10)	maximum(100)
//	@Param			status		query		string	false	"Order status"
//	@Success		200			{object}	APIResponse[[]tradeapp.OrderListItemResponse]
//	@Security		BearerAuth
//	@Router			/orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	var filter tradeapp.OrderListFilter
	if !h.BindQuery(c, &filter) {
		return
	}
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)

	orders, total, err := h.orderService.ListMine(c.Request.Context(), userID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, orders, total, filter.Page, filter.PageSize)
}

// GetOrder godoc
//
//	@ID				getMyOrder
//	@Summary		Get one of my orders
//	@Tags			orders
//	@Produce		json
//	@Param			id	path		string	true	"Order ID"	format(uuid)
//	@Success		200	{object}	APIResponse[tradeapp.OrderResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	orderID, ok := h.parseIDParam(c, "id", "order")
	if !ok {
		return
	}
	order, err := h.orderService.GetMine(c.Request.Context(), userID, orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Tracking godoc
//
//	@ID				trackMyOrder
//	@Summary		Track one of my orders
//	@Description	Status history with descriptions, carrier details and delivery delay
//	@Tags			orders
//	@Produce		json
//	@Param			id	path		string	true	"Order ID"	format(uuid)
//	@Success		200	{object}	APIResponse[tradeapp.TrackingResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/orders/{id}/tracking [get]
func (h *OrderHandler) Tracking(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	orderID, ok := h.parseIDParam(c, "id", "order")
	if !ok {
		return
	}
	tracking, err := h.orderService.Tracking(c.Request.Context(), userID, orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tracking)
}

// CancelOrder godoc
//
//	@ID				cancelMyOrder
//	@Summary		Cancel one of my orders
//	@Description	Allowed while pending, confirmed or preparing; stock is returned
//	@Tags			orders
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Order ID"	format(uuid)
//	@Param			request	body		tradeapp.CancelOrderRequest	false	"Cancellation reason"
//	@Success		200		{object}	APIResponse[tradeapp.OrderResponse]
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse	"Order not cancellable"
//	@Security		BearerAuth
//	@Router			/orders/{id}/cancel [post]
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	orderID, ok := h.parseIDParam(c, "id", "order")
	if !ok {
		return
	}
	var req tradeapp.CancelOrderRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}

	order, err := h.checkoutService.Cancel(c.Request.Context(), userID, orderID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// normalizePage applies the repository paging defaults so the response meta
// matches the page that was actually read
func normalizePage(page, pageSize int) (int, int) {
	f := shared.Filter{Page: page, PageSize: pageSize}
	f.Normalize()
	return f.Page, f.PageSize
}
