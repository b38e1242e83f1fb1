package router

import (
	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/interfaces/http/handler"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
)

// Handlers are the storefront handlers served under the API group
type Handlers struct {
	Cart    *handler.CartHandler
	Order   *handler.OrderHandler
	Payment *handler.PaymentHandler
	Admin   *handler.AdminHandler
	Webhook *handler.WebhookHandler
}

// StorefrontGroups builds the storefront route groups. The guard handlers
// run in front of the endpoints that move money or stock (checkout, payment
// sessions and confirmations, webhooks), typically a rate limiter.
//
// Webhook routes carry no authentication of their own; the JWT middleware on
// the API group must skip WebhookPath.
func StorefrontGroups(h Handlers, guard ...gin.HandlerFunc) []RouteRegistrar {
	guarded := func(fn gin.HandlerFunc) []gin.HandlerFunc {
		return append(append(make([]gin.HandlerFunc, 0, len(guard)+1), guard...), fn)
	}

	cart := NewDomainGroup("cart", "/cart")
	cart.GET("", h.Cart.GetCart).
		DELETE("", h.Cart.Clear).
		POST("/items", h.Cart.AddItem).
		PUT("/items/:id", h.Cart.UpdateItem).
		DELETE("/items/:id", h.Cart.RemoveItem).
		POST("/promo", h.Cart.ApplyPromoCode).
		DELETE("/promo", h.Cart.RemovePromoCode)

	checkout := NewDomainGroup("checkout", "/checkout")
	checkout.POST("", guarded(h.Order.Checkout)...)

	orders := NewDomainGroup("orders", "/orders")
	orders.GET("", h.Order.ListOrders).
		GET("/:id", h.Order.GetOrder).
		GET("/:id/tracking", h.Order.Tracking).
		POST("/:id/cancel", h.Order.CancelOrder)

	payments := NewDomainGroup("payments", "/payments")
	payments.POST("/session", guarded(h.Payment.CreateSession)...).
		POST("/confirm", guarded(h.Payment.Confirm)...).
		GET("", h.Payment.ListPayments).
		GET("/:id", h.Payment.GetPayment)

	admin := NewDomainGroup("admin", "/admin").Use(middleware.RequireAdmin())
	admin.Group("admin-orders", "/orders").
		GET("", h.Admin.ListOrders).
		GET("/statistics", h.Admin.Statistics).
		GET("/:id", h.Admin.GetOrder).
		PUT("/:id/status", h.Admin.UpdateStatus).
		POST("/:id/cancel", h.Admin.CancelOrder)
	admin.Group("admin-payments", "/payments").
		POST("/:id/refund", h.Admin.RefundPayment)

	webhooks := NewDomainGroup("webhooks", "/webhooks")
	webhooks.POST("/stripe", guarded(h.Webhook.HandleStripeWebhook)...)

	return []RouteRegistrar{cart, checkout, orders, payments, admin, webhooks}
}

// WebhookPath is the public processor notification endpoint
const WebhookPath = "/api/v1/webhooks/stripe"
