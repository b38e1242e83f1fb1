package trade

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/domain/shared"
)

// OrderRepository defines the interface for order persistence
type OrderRepository interface {
	// FindByID finds an order by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// FindByIDForUser finds an order only if it belongs to the user
	FindByIDForUser(ctx context.Context, userID, id uuid.UUID) (*Order, error)

	// FindByNumber finds an order by its order number
	FindByNumber(ctx context.Context, orderNumber string) (*Order, error)

	// FindByPaymentIntent finds the order linked to a processor intent
	FindByPaymentIntent(ctx context.Context, intentID string) (*Order, error)

	// FindByUser lists a user's orders, newest first
	FindByUser(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]Order, int64, error)

	// FindAll lists every order, newest first
	FindAll(ctx context.Context, filter shared.Filter) ([]Order, int64, error)

	// Create inserts a new order with its lines
	Create(ctx context.Context, order *Order) error

	// SaveWithLock updates status, payment and tracking fields. It fails with
	// shared.ErrConcurrencyConflict when the stored version moved on.
	SaveWithLock(ctx context.Context, order *Order) error

	// Statistics aggregates order counts and revenue over a period
	Statistics(ctx context.Context, from, to *time.Time) (*OrderStatistics, error)
}

// OrderStatistics summarizes orders for the admin dashboard
type OrderStatistics struct {
	TotalOrders    int64                 `json:"total_orders"`
	ByStatus       map[OrderStatus]int64 `json:"by_status"`
	PaidOrders     int64                 `json:"paid_orders"`
	Revenue        decimal.Decimal       `json:"revenue"`
	AverageBasket  decimal.Decimal       `json:"average_basket"`
	RevenueByMonth []MonthlyRevenue      `json:"revenue_by_month"`
}

// MonthlyRevenue is the paid revenue for one calendar month
type MonthlyRevenue struct {
	Month   string          `json:"month"`
	Orders  int64           `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
}
