package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
)

// Repository defines the interface for payment persistence
type Repository interface {
	// FindByID finds a payment by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// FindByIntentID finds a payment by its unique processor intent id
	FindByIntentID(ctx context.Context, intentID string) (*Payment, error)

	// FindOpenByOrder finds the latest payment of an order that can still succeed
	FindOpenByOrder(ctx context.Context, orderID uuid.UUID) (*Payment, error)

	// FindByUser lists a user's payments, newest first. filter.Status is
	// matched against the payment status.
	FindByUser(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]Payment, int64, error)

	// FindStale lists pending and requires_action payments not updated since
	// before, oldest first
	FindStale(ctx context.Context, before time.Time, limit int) ([]Payment, error)

	// Create inserts a new payment
	Create(ctx context.Context, p *Payment) error

	// SaveWithLock updates a payment with a version check
	SaveWithLock(ctx context.Context, p *Payment) error
}
