package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRevocationList_Revoke(t *testing.T) {
	list := auth.NewInMemoryRevocationList()
	ctx := context.Background()

	require.NoError(t, list.Revoke(ctx, "jti-1", time.Hour))

	revoked, err := list.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = list.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestInMemoryRevocationList_Expiry(t *testing.T) {
	list := auth.NewInMemoryRevocationList()
	ctx := context.Background()

	require.NoError(t, list.Revoke(ctx, "jti-short", time.Millisecond))
	time.Sleep(10 * time.Millisecond)

	revoked, err := list.IsRevoked(ctx, "jti-short")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestInMemoryRevocationList_RevokeUser(t *testing.T) {
	list := auth.NewInMemoryRevocationList()
	ctx := context.Background()
	issuedBefore := time.Now().Add(-time.Hour)

	revoked, err := list.IsRevokedForUser(ctx, "user-1", issuedBefore)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, list.RevokeUser(ctx, "user-1"))

	revoked, err = list.IsRevokedForUser(ctx, "user-1", issuedBefore)
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = list.IsRevokedForUser(ctx, "user-1", time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, revoked, "tokens issued after the revocation stay valid")

	revoked, err = list.IsRevokedForUser(ctx, "user-2", issuedBefore)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisRevocationList_WrapsClientErrors(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	list := auth.NewRedisRevocationList(client, "")
	ctx := context.Background()

	_, err := list.IsRevoked(ctx, "jti")
	assert.ErrorContains(t, err, "failed to check token revocation")

	_, err = list.IsRevokedForUser(ctx, "user", time.Now())
	assert.ErrorContains(t, err, "failed to check user revocation")

	assert.ErrorContains(t, list.Revoke(ctx, "jti", time.Minute), "failed to revoke token")
}
