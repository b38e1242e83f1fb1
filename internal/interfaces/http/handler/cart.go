package handler

import (
	"github.com/gin-gonic/gin"
	cartapp "github.com/storefront/backend/internal/application/cart"
)

// CartHandler handles the shopping cart endpoints of the signed-in user
type CartHandler struct {
	BaseHandler
	cartService *cartapp.Service
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(cartService *cartapp.Service) *CartHandler {
	return &CartHandler{
		cartService: cartService,
	}
}

// GetCart godoc
//
//	@ID				getCart
//	@Summary		Get the cart
//	@Description	Returns the caller's cart with stock availability per line
//	@Tags			cart
//	@Produce		json
//	@Success		200	{object}	APIResponse[cartapp.CartResponse]
//	@Failure		401	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/cart [get]
func (h *CartHandler) GetCart(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	cart, err := h.cartService.GetCart(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cart)
}

// AddItem godoc
//
//	@ID				addCartItem
//	@Summary		Add a product variant to the cart
//	@Description	Adds quantity to the line of the same variant or creates a new line
//	@Tags			cart
//	@Accept			json
//	@Produce		json
//	@Param			request	body		cartapp.AddItemRequest	true	"Variant and quantity"
//	@Success		200		{object}	APIResponse[cartapp.CartResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse	"Product unavailable or insufficient stock"
//	@Security		BearerAuth
//	@Router			/cart/items [post]
func (h *CartHandler) AddItem(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	var req cartapp.AddItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cart, err := h.cartService.AddItem(c.Request.Context(), userID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cart)
}

// UpdateItem godoc
//
//	@ID				updateCartItem
//	@Summary		Change a line quantity
//	@Description	A quantity of zero removes the line
//	@Tags			cart
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Cart line ID"	format(uuid)
//	@Param			request	body		cartapp.UpdateItemRequest	true	"New quantity"
//	@Success		200		{object}	APIResponse[cartapp.CartResponse]
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/cart/items/{id} [put]
func (h *CartHandler) UpdateItem(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	lineID, ok := h.parseIDParam(c, "id", "cart line")
	if !ok {
		return
	}
	var req cartapp.UpdateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cart, err := h.cartService.UpdateItem(c.Request.Context(), userID, lineID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cart)
}

// RemoveItem godoc
//
//	@ID				removeCartItem
//	@Summary		Remove a cart line
//	@Tags			cart
//	@Produce		json
//	@Param			id	path		string	true	"Cart line ID"	format(uuid)
//	@Success		200	{object}	APIResponse[cartapp.CartResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Security		BearerAuth
//	@Router			/cart/items/{id} [delete]
func (h *CartHandler) RemoveItem(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	lineID, ok := h.parseIDParam(c, "id", "cart line")
	if !ok {
		return
	}
	cart, err := h.cartService.RemoveItem(c.Request.Context(), userID, lineID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cart)
}

// Clear godoc
//
//	@ID				clearCart
//	@Summary		Empty the cart
//	@Tags			cart
//	@Produce		json
//	@Success		200	{object}	APIResponse[cartapp.CartResponse]
//	@Security		BearerAuth
//	@Router			/cart [delete]
func (h *CartHandler) Clear(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	cart, err := h.cartService.Clear(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cart)
}

// ApplyPromoCode godoc
//
//	@ID				applyPromoCode
//	@Summary		Apply a promo code
//	@Description	Codes are case-insensitive; the discount is a percentage of the subtotal
//	@Tags			cart
//	@Accept			json
//	@Produce		json
//	@Param			request	body		cartapp.ApplyPromoRequest	true	"Promo code"
//	@Success		200		{object}	APIResponse[cartapp.CartResponse]
//	@Failure		422		{object}	ErrorResponse	"Unknown code or empty cart"
//	@Security		BearerAuth
//	@Router			/cart/promo [post]
func (h *CartHandler) ApplyPromoCode(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	var req cartapp.ApplyPromoRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cart, err := h.cartService.ApplyPromoCode(c.Request.Context(), userID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cart)
}

// RemovePromoCode godoc
//
//	@ID				removePromoCode
//	@Summary		Remove the promo code
//	@Tags			cart
//	@Produce		json
//	@Success		200	{object}	APIResponse[cartapp.CartResponse]
//	@Security		BearerAuth
//	@Router			/cart/promo [delete]
func (h *CartHandler) RemovePromoCode(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}
	cart, err := h.cartService.RemovePromoCode(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cart)
}
