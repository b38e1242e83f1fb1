package trade

import (
	"context"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/application/transaction"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/trade"
	"go.uber.org/zap"
)

// OrderService serves order reads for customers and the admin back office
type OrderService struct {
	orders    trade.OrderRepository
	scope     transaction.Scope
	checkout  *CheckoutService
	publisher shared.EventPublisher
	logger    *zap.Logger
}

// OrderServiceConfig holds the collaborators of the order service
type OrderServiceConfig struct {
	Orders trade.OrderRepository
	Scope  transaction.Scope
	// Checkout performs admin cancellations so stock is returned
	Checkout  *CheckoutService
	Publisher shared.EventPublisher
	Logger    *zap.Logger
}

// NewOrderService creates a new OrderService
func NewOrderService(cfg OrderServiceConfig) *OrderService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		orders:    cfg.Orders,
		scope:     cfg.Scope,
		checkout:  cfg.Checkout,
		publisher: cfg.Publisher,
		logger:    logger,
	}
}

// ListMine lists the user's orders, newest first
func (s *OrderService) ListMine(ctx context.Context, userID uuid.UUID, filter OrderListFilter) ([]OrderListItemResponse, int64, error) {
	orders, total, err := s.orders.FindByUser(ctx, userID, filter.toDomain())
	if err != nil {
		return nil, 0, err
	}
	return toListItems(orders), total, nil
}

// GetMine returns one of the user's orders
func (s *OrderService) GetMine(ctx context.Context, userID, orderID uuid.UUID) (*OrderResponse, error) {
	order, err := s.orders.FindByIDForUser(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	resp := ToOrderResponse(order)
	return &resp, nil
}

// Tracking returns the delivery view of one of the user's orders
func (s *OrderService) Tracking(ctx context.Context, userID, orderID uuid.UUID) (*TrackingResponse, error) {
	order, err := s.orders.FindByIDForUser(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	resp := ToTrackingResponse(order)
	return &resp, nil
}

// List lists every order for the admin back office
func (s *OrderService) List(ctx context.Context, filter OrderListFilter) ([]OrderListItemResponse, int64, error) {
	orders, total, err := s.orders.FindAll(ctx, filter.toDomain())
	if err != nil {
		return nil, 0, err
	}
	return toListItems(orders), total, nil
}

// GetByID returns any order
func (s *OrderService) GetByID(ctx context.Context, orderID uuid.UUID) (*OrderResponse, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	resp := ToOrderResponse(order)
	return &resp, nil
}

// UpdateStatus moves an order through the state machine. Shipping records
// the carrier details; cancelling returns the stock like a customer
// cancellation. Repeating the current status only updates tracking fields.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, req UpdateStatusRequest) (*OrderResponse, error) {
	if req.Status == trade.OrderStatusCancelled && s.checkout != nil {
		return s.checkout.CancelAsAdmin(ctx, orderID, req.Reason)
	}

	tracking := trade.Tracking{
		Carrier:           req.Carrier,
		TrackingNumber:    req.TrackingNumber,
		TrackingURL:       req.TrackingURL,
		EstimatedDelivery: req.EstimatedDelivery,
	}

	var order *trade.Order
	err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		var err error
		order, err = repos.Orders().FindByID(ctx, orderID)
		if err != nil {
			return err
		}

		switch {
		case req.Status == order.Status:
			order.ApplyTracking(tracking)
			order.Touch()
		case req.Status == trade.OrderStatusShipped:
			if err := order.Ship(tracking); err != nil {
				return err
			}
		case req.Status == trade.OrderStatusCancelled:
			if err := order.Cancel(req.Reason); err != nil {
				return err
			}
		default:
			if err := order.TransitionTo(req.Status); err != nil {
				return err
			}
		}
		return repos.Orders().SaveWithLock(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("status", string(order.Status)),
	)
	events := order.GetDomainEvents()
	order.ClearDomainEvents()
	publishEvents(ctx, s.publisher, s.logger, events)

	resp := ToOrderResponse(order)
	return &resp, nil
}

// Statistics summarizes orders over an optional period
func (s *OrderService) Statistics(ctx context.Context, filter StatisticsFilter) (*trade.OrderStatistics, error) {
	return s.orders.Statistics(ctx, filter.From, filter.To)
}

func toListItems(orders []trade.Order) []OrderListItemResponse {
	items := make([]OrderListItemResponse, len(orders))
	for i := range orders {
		items[i] = ToOrderListItemResponse(&orders[i])
	}
	return items
}
