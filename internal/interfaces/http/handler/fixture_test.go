package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	cartapp "github.com/storefront/backend/internal/application/cart"
	paymentapp "github.com/storefront/backend/internal/application/payment"
	tradeapp "github.com/storefront/backend/internal/application/trade"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
	"github.com/storefront/backend/internal/domain/trade"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/infrastructure/cache"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/event"
	"github.com/storefront/backend/internal/infrastructure/persistence"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"github.com/storefront/backend/tests/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// apiFixture serves the handlers over real services backed by an in-memory
// sqlite database and a mocked payment gateway
type apiFixture struct {
	router  *gin.Engine
	db      *persistence.Database
	gateway *testutil.MockGateway
	jwt     *auth.JWTService
	product *catalog.Product
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	middleware.SetupValidator()

	db := testutil.NewSQLiteDatabase(t)
	product := testutil.SeedProduct(t, db, "Robe Bazin",
		testutil.VariantSeed{Size: "M", Color: "Or", Price: 25000, Stock: 3},
		testutil.VariantSeed{Size: "L", Color: "Or", Price: 25000, Stock: 1},
	)

	scope := persistence.NewGormTransactionScope(db.DB, trade.DefaultOrderNumberPrefix)
	orders := persistence.NewGormOrderRepository(db.DB)
	bus := event.NewInMemoryEventBus(zap.NewNop())
	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	gateway := new(testutil.MockGateway)

	cartService := cartapp.NewService(cartapp.ServiceConfig{
		Carts:    persistence.NewGormCartRepository(db.DB),
		Products: persistence.NewGormProductRepository(db.DB),
		Promos:   cart.NewStaticPromoCatalog(cart.DefaultPromoCodes),
		Currency: valueobject.XOF,
	})
	checkoutService := tradeapp.NewCheckoutService(tradeapp.CheckoutServiceConfig{
		Scope:       scope,
		Gateway:     gateway,
		Idempotency: store,
		Publisher:   bus,
	})
	orderService := tradeapp.NewOrderService(tradeapp.OrderServiceConfig{
		Orders:    orders,
		Scope:     scope,
		Checkout:  checkoutService,
		Publisher: bus,
	})
	recon := paymentapp.NewReconciliationService(paymentapp.ReconciliationServiceConfig{
		Scope:     scope,
		Payments:  persistence.NewGormPaymentRepository(db.DB),
		Orders:    orders,
		Gateway:   gateway,
		Publisher: bus,
	})
	webhooks := paymentapp.NewWebhookService(paymentapp.WebhookServiceConfig{
		Gateway:        gateway,
		Reconciliation: recon,
		Idempotency:    store,
	})

	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars",
		AccessTokenExpiration: 15 * time.Minute,
		Issuer:                "test-issuer",
	})

	cartHandler := NewCartHandler(cartService)
	orderHandler := NewOrderHandler(checkoutService, orderService)
	paymentHandler := NewPaymentHandler(recon)
	adminHandler := NewAdminHandler(checkoutService, orderService, recon)
	webhookHandler := NewWebhookHandler(webhooks)

	router := gin.New()
	router.POST("/api/v1/webhooks/stripe", webhookHandler.HandleStripeWebhook)

	api := router.Group("/api/v1", middleware.JWTAuthMiddleware(jwtService))
	api.GET("/cart", cartHandler.GetCart)
	api.DELETE("/cart", cartHandler.Clear)
	api.POST("/cart/items", cartHandler.AddItem)
	api.PUT("/cart/items/:id", cartHandler.UpdateItem)
	api.DELETE("/cart/items/:id", cartHandler.RemoveItem)
	api.POST("/cart/promo", cartHandler.ApplyPromoCode)
	api.DELETE("/cart/promo", cartHandler.RemovePromoCode)
	api.POST("/checkout", orderHandler.Checkout)
	api.GET("/orders", orderHandler.ListOrders)
	api.GET("/orders/:id", orderHandler.GetOrder)
	api.GET("/orders/:id/tracking", orderHandler.Tracking)
	api.POST("/orders/:id/cancel", orderHandler.CancelOrder)
	api.POST("/payments/session", paymentHandler.CreateSession)
	api.POST("/payments/confirm", paymentHandler.Confirm)
	api.GET("/payments", paymentHandler.ListPayments)
	api.GET("/payments/:id", paymentHandler.GetPayment)

	admin := api.Group("/admin", middleware.RequireAdmin())
	admin.GET("/orders", adminHandler.ListOrders)
	admin.GET("/orders/statistics", adminHandler.Statistics)
	admin.GET("/orders/:id", adminHandler.GetOrder)
	admin.PUT("/orders/:id/status", adminHandler.UpdateStatus)
	admin.POST("/orders/:id/cancel", adminHandler.CancelOrder)
	admin.POST("/payments/:id/refund", adminHandler.RefundPayment)

	return &apiFixture{
		router:  router,
		db:      db,
		gateway: gateway,
		jwt:     jwtService,
		product: product,
	}
}

// client is a signed-in caller of the fixture
type client struct {
	f      *apiFixture
	userID uuid.UUID
	token  string
}

func (f *apiFixture) customer(t *testing.T) *client {
	return f.newClient(t, auth.RoleCustomer)
}

func (f *apiFixture) admin(t *testing.T) *client {
	return f.newClient(t, auth.RoleAdmin)
}

func (f *apiFixture) newClient(t *testing.T, role auth.Role) *client {
	t.Helper()
	userID := uuid.New()
	token, _, err := f.jwt.GenerateAccessToken(auth.GenerateTokenInput{
		UserID: userID,
		Email:  "client@example.com",
		Role:   role,
	})
	require.NoError(t, err)
	return &client{f: f, userID: userID, token: token}
}

func (c *client) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	return c.f.request(t, c.token, method, path, body, headers...)
}

// request sends a JSON request; an empty token sends it anonymously
func (f *apiFixture) request(t *testing.T, token, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(middleware.AuthHeaderKey, middleware.BearerPrefix+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// addToCart puts quantity units of the variant in the caller's cart
func (c *client) addToCart(t *testing.T, size string, quantity int) {
	t.Helper()
	rec := c.do(t, http.MethodPost, "/api/v1/cart/items", map[string]any{
		"product_id": c.f.product.ID,
		"size":       size,
		"color":      "Or",
		"quantity":   quantity,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func checkoutBody() map[string]any {
	addr := testutil.TestAddress()
	return map[string]any{
		"shipping_address": map[string]any{
			"full_name":   addr.FullName,
			"street":      addr.Street,
			"city":        addr.City,
			"postal_code": addr.PostalCode,
			"country":     addr.Country,
			"phone":       addr.Phone,
		},
		"payment_method": "stripe",
	}
}

// placeOrder checks the cart out and returns the order id
func (c *client) placeOrder(t *testing.T) uuid.UUID {
	t.Helper()
	rec := c.do(t, http.MethodPost, "/api/v1/checkout", checkoutBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var order tradeapp.OrderResponse
	decodeData(t, rec, &order)
	return order.ID
}

// decodeData unmarshals the data field of a success envelope into out
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

// errorCode returns the error code of an error envelope
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error, rec.Body.String())
	return resp.Error.Code
}

func (f *apiFixture) stockOf(t *testing.T, size string) int {
	t.Helper()
	for _, v := range f.product.Variants {
		if v.Size == size {
			return testutil.StockOf(t, f.db, v.ID)
		}
	}
	t.Fatalf("no variant of size %s", size)
	return 0
}

func (f *apiFixture) storedOrder(t *testing.T, id uuid.UUID) *trade.Order {
	t.Helper()
	order, err := persistence.NewGormOrderRepository(f.db.DB).FindByID(context.Background(), id)
	require.NoError(t, err)
	return order
}
