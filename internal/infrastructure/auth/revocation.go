package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRevocationPrefix is the Redis namespace shared with the
// authentication service, which writes the entries on logout
const DefaultRevocationPrefix = "auth:revoked:"

// RevocationList answers whether a still unexpired token was revoked
type RevocationList interface {
	// IsRevoked reports whether the token id was revoked (single logout)
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// IsRevokedForUser reports whether every token of the user issued at or
	// before issuedAt was revoked (logout everywhere)
	IsRevokedForUser(ctx context.Context, userID string, issuedAt time.Time) (bool, error)
}

// RedisRevocationList reads revocations from Redis
type RedisRevocationList struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisRevocationList creates a revocation list over an existing client
func NewRedisRevocationList(client redis.UniversalClient, keyPrefix string) *RedisRevocationList {
	if keyPrefix == "" {
		keyPrefix = DefaultRevocationPrefix
	}
	return &RedisRevocationList{client: client, keyPrefix: keyPrefix}
}

func (l *RedisRevocationList) jtiKey(jti string) string {
	return l.keyPrefix + "jti:" + jti
}

func (l *RedisRevocationList) userKey(userID string) string {
	return l.keyPrefix + "user:" + userID
}

// IsRevoked checks the token id entry
func (l *RedisRevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	exists, err := l.client.Exists(ctx, l.jtiKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return exists > 0, nil
}

// IsRevokedForUser compares the token issue time with the user's
// revocation timestamp (unix seconds)
func (l *RedisRevocationList) IsRevokedForUser(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	raw, err := l.client.Get(ctx, l.userKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check user revocation: %w", err)
	}
	revokedAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("failed to parse revocation timestamp: %w", err)
	}
	return issuedAt.Unix() <= revokedAt, nil
}

// Revoke records a token revocation; used by tests and local tooling
func (l *RedisRevocationList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if err := l.client.Set(ctx, l.jtiKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

var _ RevocationList = (*RedisRevocationList)(nil)

// InMemoryRevocationList keeps revocations in process memory. Only suitable
// for a single instance.
type InMemoryRevocationList struct {
	mu    sync.RWMutex
	jtis  map[string]time.Time // jti -> expiry
	users map[string]time.Time // user id -> revoked at
}

// NewInMemoryRevocationList creates an empty revocation list
func NewInMemoryRevocationList() *InMemoryRevocationList {
	return &InMemoryRevocationList{
		jtis:  make(map[string]time.Time),
		users: make(map[string]time.Time),
	}
}

// Revoke revokes one token until ttl elapses
func (l *InMemoryRevocationList) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jtis[jti] = time.Now().Add(ttl)
	return nil
}

// RevokeUser revokes every token of the user issued up to now
func (l *InMemoryRevocationList) RevokeUser(_ context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users[userID] = time.Now()
	return nil
}

// IsRevoked checks the token id, dropping expired entries
func (l *InMemoryRevocationList) IsRevoked(_ context.Context, jti string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	expiry, ok := l.jtis[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(l.jtis, jti)
		return false, nil
	}
	return true, nil
}

// IsRevokedForUser compares with the user's revocation time
func (l *InMemoryRevocationList) IsRevokedForUser(_ context.Context, userID string, issuedAt time.Time) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	revokedAt, ok := l.users[userID]
	if !ok {
		return false, nil
	}
	return !issuedAt.After(revokedAt), nil
}

var _ RevocationList = (*InMemoryRevocationList)(nil)
