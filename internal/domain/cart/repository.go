package cart

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists carts, one per user
type Repository interface {
	// FindByUser returns the user's cart or shared.ErrNotFound
	FindByUser(ctx context.Context, userID uuid.UUID) (*Cart, error)

	// Save inserts a new cart or updates an existing one. Updates fail with
	// shared.ErrConcurrencyConflict when the stored version moved on.
	Save(ctx context.Context, cart *Cart) error
}
