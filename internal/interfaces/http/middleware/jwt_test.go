package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars",
		AccessTokenExpiration: 15 * time.Minute,
		Issuer:                "test-issuer",
	})
}

func newTestToken(t *testing.T, svc *auth.JWTService, role auth.Role) (string, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	token, _, err := svc.GenerateAccessToken(auth.GenerateTokenInput{
		UserID: userID,
		Email:  "client@example.com",
		Role:   role,
	})
	require.NoError(t, err)
	return token, userID
}

func serveWithToken(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(AuthHeaderKey, BearerPrefix+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthMiddleware_ValidToken(t *testing.T) {
	svc := newTestJWTService()
	token, userID := newTestToken(t, svc, auth.RoleCustomer)

	router := gin.New()
	router.Use(JWTAuthMiddleware(svc))
	router.GET("/test", func(c *gin.Context) {
		claims := GetJWTClaims(c)
		require.NotNil(t, claims)
		assert.Equal(t, userID.String(), GetJWTUserID(c))
		assert.Equal(t, auth.RoleCustomer, GetJWTRole(c))
		assert.Equal(t, "client@example.com", c.GetString(JWTEmailKey))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	rec := serveWithToken(router, "/test", token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestJWTAuthMiddleware_Rejections(t *testing.T) {
	svc := newTestJWTService()
	router := gin.New()
	router.Use(JWTAuthMiddleware(svc))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("missing header", func(t *testing.T) {
		rec := serveWithToken(router, "/test", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_TOKEN")
	})

	t.Run("wrong scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(AuthHeaderKey, "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := serveWithToken(router, "/test", "not-a-token")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_TOKEN")
	})

	t.Run("expired token", func(t *testing.T) {
		expired := auth.NewJWTService(config.JWTConfig{
			Secret:                "test-secret-key-at-least-32-chars",
			AccessTokenExpiration: -time.Minute,
			Issuer:                "test-issuer",
		})
		token, _ := newTestToken(t, expired, auth.RoleCustomer)

		rec := serveWithToken(router, "/test", token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "TOKEN_EXPIRED")
	})
}

func TestJWTAuthMiddleware_SkipPaths(t *testing.T) {
	svc := newTestJWTService()
	cfg := DefaultJWTConfig(svc)
	cfg.SkipPathPrefixes = []string{"/public"}

	router := gin.New()
	router.Use(JWTAuthMiddlewareWithConfig(cfg))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/api/v1/webhooks/stripe", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/public/catalog", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serveWithToken(router, "/health", "").Code)
	assert.Equal(t, http.StatusOK, serveWithToken(router, "/public/catalog", "").Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type failingRevocations struct{}

func (failingRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func (failingRevocations) IsRevokedForUser(context.Context, string, time.Time) (bool, error) {
	return false, errors.New("redis down")
}

func TestJWTAuthMiddleware_Revocations(t *testing.T) {
	svc := newTestJWTService()
	revocations := auth.NewInMemoryRevocationList()

	cfg := DefaultJWTConfig(svc)
	cfg.Revocations = revocations
	router := gin.New()
	router.Use(JWTAuthMiddlewareWithConfig(cfg))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	t.Run("revoked token id", func(t *testing.T) {
		token, _ := newTestToken(t, svc, auth.RoleCustomer)
		claims, err := svc.ValidateAccessToken(token)
		require.NoError(t, err)
		require.NoError(t, revocations.Revoke(context.Background(), claims.ID, time.Hour))

		rec := serveWithToken(router, "/test", token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "TOKEN_REVOKED")
	})

	t.Run("user sessions revoked", func(t *testing.T) {
		token, userID := newTestToken(t, svc, auth.RoleCustomer)
		require.NoError(t, revocations.RevokeUser(context.Background(), userID.String()))

		rec := serveWithToken(router, "/test", token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("lookup failure accepts the token", func(t *testing.T) {
		failing := DefaultJWTConfig(svc)
		failing.Revocations = failingRevocations{}
		r := gin.New()
		r.Use(JWTAuthMiddlewareWithConfig(failing))
		r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

		token, _ := newTestToken(t, svc, auth.RoleCustomer)
		assert.Equal(t, http.StatusOK, serveWithToken(r, "/test", token).Code)
	})
}

func TestJWTAuthMiddleware_OnError(t *testing.T) {
	cfg := DefaultJWTConfig(newTestJWTService())
	cfg.OnError = func(c *gin.Context, err error) {
		c.AbortWithStatusJSON(http.StatusTeapot, gin.H{"error": err.Error()})
	}
	router := gin.New()
	router.Use(JWTAuthMiddlewareWithConfig(cfg))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := serveWithToken(router, "/test", "")
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	svc := newTestJWTService()
	router := gin.New()
	admin := router.Group("/admin", JWTAuthMiddleware(svc), RequireAdmin())
	admin.GET("/orders", func(c *gin.Context) { c.Status(http.StatusOK) })

	customerToken, _ := newTestToken(t, svc, auth.RoleCustomer)
	adminToken, _ := newTestToken(t, svc, auth.RoleAdmin)

	assert.Equal(t, http.StatusForbidden, serveWithToken(router, "/admin/orders", customerToken).Code)
	assert.Equal(t, http.StatusOK, serveWithToken(router, "/admin/orders", adminToken).Code)

	t.Run("without authentication", func(t *testing.T) {
		bare := gin.New()
		bare.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })
		assert.Equal(t, http.StatusUnauthorized, serveWithToken(bare, "/admin", "").Code)
	})
}

func TestOptionalJWTAuthMiddleware(t *testing.T) {
	svc := newTestJWTService()
	router := gin.New()
	router.Use(OptionalJWTAuthMiddleware(svc))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetJWTUserID(c))
	})

	rec := serveWithToken(router, "/test", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = serveWithToken(router, "/test", "broken")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	token, userID := newTestToken(t, svc, auth.RoleCustomer)
	rec = serveWithToken(router, "/test", token)
	assert.Equal(t, userID.String(), rec.Body.String())
}
