// Package trade holds the order use cases: checkout, cancellation, order
// queries and the admin back office.
package trade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/storefront/backend/internal/application/transaction"
	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
	"github.com/storefront/backend/internal/domain/trade"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// CheckoutService turns carts into orders and cancels them. Stock is taken
// and given back in the same transaction as the order write.
type CheckoutService struct {
	scope          transaction.Scope
	shipping       trade.ShippingFeePolicy
	gateway        payment.Gateway
	idempotency    shared.IdempotencyStore
	idempotencyTTL time.Duration
	publisher      shared.EventPublisher
	metrics        *telemetry.BusinessMetrics
	logger         *zap.Logger
}

// CheckoutServiceConfig holds the collaborators of the checkout service
type CheckoutServiceConfig struct {
	Scope    transaction.Scope
	Shipping trade.ShippingFeePolicy
	// Gateway cancels open payment intents of cancelled orders; optional
	Gateway payment.Gateway
	// Idempotency claims client-supplied checkout keys; optional
	Idempotency    shared.IdempotencyStore
	IdempotencyTTL time.Duration
	Publisher      shared.EventPublisher
	Metrics        *telemetry.BusinessMetrics
	Logger         *zap.Logger
}

// NewCheckoutService creates a new CheckoutService
func NewCheckoutService(cfg CheckoutServiceConfig) *CheckoutService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	shipping := cfg.Shipping
	if shipping == nil {
		shipping = trade.DefaultShippingPolicy(nil)
	}
	ttl := cfg.IdempotencyTTL
	if ttl <= 0 {
		ttl = shared.DefaultIdempotencyConfig().TTL
	}
	return &CheckoutService{
		scope:          cfg.Scope,
		shipping:       shipping,
		gateway:        cfg.Gateway,
		idempotency:    cfg.Idempotency,
		idempotencyTTL: ttl,
		publisher:      cfg.Publisher,
		metrics:        cfg.Metrics,
		logger:         logger,
	}
}

// Checkout creates an order from the user's cart. Every line's stock is
// decremented conditionally; the first line that cannot be served aborts the
// whole checkout and nothing is written.
//
// When idempotencyKey is set it is claimed for the user first, and a key
// that was already used returns shared.ErrDuplicateRequest.
func (s *CheckoutService) Checkout(ctx context.Context, userID uuid.UUID, req CheckoutRequest, idempotencyKey string) (*OrderResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "checkout", "place_order",
		telemetry.WithAttribute(telemetry.SpanAttrUserID, userID.String()),
	)
	defer span.End()

	order, err := s.checkout(ctx, userID, req, idempotencyKey)
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordCheckout(ctx, "", decimal.Zero, errorCode(err))
		s.logFailure("Checkout failed", err, zap.String("user_id", userID.String()))
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrderID, order.ID.String(),
		telemetry.SpanAttrOrderNumber, order.OrderNumber,
		telemetry.SpanAttrLineCount, len(order.Lines),
		telemetry.SpanAttrAmount, order.Total.String(),
		telemetry.SpanAttrCurrency, string(order.Currency),
	)
	s.metrics.RecordCheckout(ctx, string(order.Currency), order.Total, "")
	s.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", userID.String()),
		zap.String("total", order.Total.String()),
		zap.String("currency", string(order.Currency)),
	)
	s.publish(ctx, order)

	resp := ToOrderResponse(order)
	return &resp, nil
}

func (s *CheckoutService) checkout(ctx context.Context, userID uuid.UUID, req CheckoutRequest, idempotencyKey string) (order *trade.Order, err error) {
	if idempotencyKey != "" && s.idempotency != nil {
		key := fmt.Sprintf("checkout:%s:%s", userID, idempotencyKey)
		claimed, claimErr := s.idempotency.MarkProcessed(ctx, key, s.idempotencyTTL)
		if claimErr != nil {
			return nil, fmt.Errorf("failed to claim idempotency key: %w", claimErr)
		}
		if !claimed {
			return nil, shared.ErrDuplicateRequest
		}
		defer func() {
			if err != nil {
				if releaseErr := s.idempotency.Release(context.WithoutCancel(ctx), key); releaseErr != nil {
					s.logger.Warn("Failed to release checkout key", zap.String("key", key), zap.Error(releaseErr))
				}
			}
		}()
	}

	shippingAddress, err := req.ShippingAddress.ToAddress()
	if err != nil {
		return nil, shared.NewDomainError("INVALID_ADDRESS", err.Error())
	}
	var billingAddress *valueobject.Address
	if req.BillingAddress != nil {
		billing, err := req.BillingAddress.ToAddress()
		if err != nil {
			return nil, shared.NewDomainError("INVALID_ADDRESS", err.Error())
		}
		billingAddress = &billing
	}

	err = s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		c, err := repos.Carts().FindByUser(ctx, userID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return cart.ErrEmptyCart
			}
			return err
		}
		if c.IsEmpty() {
			return cart.ErrEmptyCart
		}

		lines, err := reserveLines(ctx, repos, c)
		if err != nil {
			return err
		}

		subtotal := decimal.Zero
		for _, line := range lines {
			subtotal = subtotal.Add(line.Subtotal)
		}
		subtotalMoney, err := valueobject.NewMoney(subtotal, c.Currency)
		if err != nil {
			return err
		}
		quote, err := s.shipping.Quote(subtotalMoney, req.Express)
		if err != nil {
			return err
		}
		discount := c.Discount
		if c.PromoCode != "" && c.PromoPercent.IsPositive() {
			// lines are repriced at checkout, so is the promo
			discount = subtotalMoney.CalculatePercentage(c.PromoPercent).Amount()
		}

		number, err := repos.OrderNumbers().Next(ctx, time.Now())
		if err != nil {
			return err
		}
		order, err = trade.NewOrder(trade.NewOrderParams{
			OrderNumber:     number,
			UserID:          userID,
			Lines:           lines,
			ShippingAddress: shippingAddress,
			BillingAddress:  billingAddress,
			ShippingFee:     quote.Fee.Amount(),
			Discount:        discount,
			Currency:        c.Currency,
			PaymentMethod:   req.PaymentMethod,
			PromoCode:       c.PromoCode,
			CustomerNote:    req.CustomerNote,
			Express:         req.Express,
			DeliveryDays:    quote.DeliveryDays,
		})
		if err != nil {
			return err
		}
		if err := repos.Orders().Create(ctx, order); err != nil {
			return err
		}

		c.Clear()
		return repos.Carts().Save(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// reserveLines re-reads every product, takes stock for each cart line and
// snapshots the order lines at the live price
func reserveLines(ctx context.Context, repos transaction.Repositories, c *cart.Cart) ([]trade.OrderLine, error) {
	ids := make([]uuid.UUID, 0, len(c.Lines))
	for _, line := range c.Lines {
		ids = append(ids, line.ProductID)
	}
	products, err := repos.Products().FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]trade.OrderLine, 0, len(c.Lines))
	for _, line := range c.Lines {
		product, ok := products[line.ProductID]
		if !ok {
			return nil, catalog.ErrProductUnavailable(line.SKU, "")
		}
		if !product.Active {
			return nil, catalog.ErrProductUnavailable(product.Name, "")
		}
		variant, ok := product.FindVariant(line.Size, line.Color)
		if !ok {
			return nil, catalog.ErrProductUnavailable(product.Name, line.Size+"/"+line.Color)
		}

		taken, err := repos.Inventory().Decrement(ctx, variant.ID, line.Quantity)
		if err != nil {
			return nil, err
		}
		if !taken {
			available, err := repos.Inventory().Available(ctx, variant.ID)
			if err != nil {
				return nil, err
			}
			return nil, catalog.ErrInsufficientStock(product.Name, available)
		}
		lines = append(lines, trade.SnapshotLine(product, variant, line))
	}
	return lines, nil
}

// Cancel cancels one of the user's orders and puts its stock back
func (s *CheckoutService) Cancel(ctx context.Context, userID, orderID uuid.UUID, req CancelOrderRequest) (*OrderResponse, error) {
	return s.cancel(ctx, &userID, orderID, req.Reason)
}

// CancelAsAdmin cancels any order and puts its stock back
func (s *CheckoutService) CancelAsAdmin(ctx context.Context, orderID uuid.UUID, reason string) (*OrderResponse, error) {
	return s.cancel(ctx, nil, orderID, reason)
}

func (s *CheckoutService) cancel(ctx context.Context, userID *uuid.UUID, orderID uuid.UUID, reason string) (*OrderResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "checkout", "cancel_order",
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, orderID.String()),
	)
	defer span.End()

	var (
		order       *trade.Order
		openPayment *payment.Payment
	)
	err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		var err error
		if userID != nil {
			order, err = repos.Orders().FindByIDForUser(ctx, *userID, orderID)
		} else {
			order, err = repos.Orders().FindByID(ctx, orderID)
		}
		if err != nil {
			return err
		}
		if !order.CanBeCancelled() {
			return trade.ErrOrderNotCancellable.WithDetail("status", string(order.Status))
		}
		if err := s.restock(ctx, repos, order); err != nil {
			return err
		}
		if err := order.Cancel(reason); err != nil {
			return err
		}
		if err := repos.Orders().SaveWithLock(ctx, order); err != nil {
			return err
		}

		openPayment, err = repos.Payments().FindOpenByOrder(ctx, order.ID)
		if err != nil {
			if errors.Is(err, payment.ErrPaymentNotFound) {
				openPayment = nil
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logFailure("Order cancellation failed", err, zap.String("order_id", orderID.String()))
		return nil, err
	}

	s.metrics.RecordOrderCancelled(ctx)
	s.logger.Info("Order cancelled",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("reason", order.CancelReason),
	)
	s.publish(ctx, order)

	if openPayment != nil {
		s.cancelIntent(ctx, openPayment)
	}

	resp := ToOrderResponse(order)
	return &resp, nil
}

// restock returns every line's quantity to its variant. Lines whose product
// or variant no longer exists are skipped.
func (s *CheckoutService) restock(ctx context.Context, repos transaction.Repositories, order *trade.Order) error {
	ids := make([]uuid.UUID, 0, len(order.Lines))
	for _, line := range order.Lines {
		ids = append(ids, line.ProductID)
	}
	products, err := repos.Products().FindByIDs(ctx, ids)
	if err != nil {
		return err
	}

	for _, line := range order.Lines {
		product, ok := products[line.ProductID]
		if !ok {
			s.logger.Warn("Skipping restock of deleted product",
				zap.String("order_id", order.ID.String()),
				zap.String("product_id", line.ProductID.String()),
			)
			continue
		}
		variant, ok := product.FindAnyVariant(line.Size, line.Color)
		if !ok {
			s.logger.Warn("Skipping restock of deleted variant",
				zap.String("order_id", order.ID.String()),
				zap.String("sku", line.SKU),
			)
			continue
		}
		if err := repos.Inventory().Restock(ctx, variant.ID, line.Quantity); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				continue
			}
			return err
		}
	}
	return nil
}

// cancelIntent cancels the processor intent of a cancelled order's open
// payment. Failures are logged; the order stays cancelled.
func (s *CheckoutService) cancelIntent(ctx context.Context, p *payment.Payment) {
	if s.gateway == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	log := s.logger.With(
		zap.String("payment_id", p.ID.String()),
		zap.String("payment_intent_id", p.IntentID),
		zap.String("order_id", p.OrderID.String()),
	)

	if err := s.gateway.CancelIntent(ctx, p.IntentID); err != nil {
		log.Warn("Failed to cancel payment intent of cancelled order", zap.Error(err))
		return
	}
	err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		current, err := repos.Payments().FindByID(ctx, p.ID)
		if err != nil {
			return err
		}
		if !current.Cancel() {
			return nil
		}
		return repos.Payments().SaveWithLock(ctx, current)
	})
	if err != nil {
		log.Warn("Failed to mark payment canceled", zap.Error(err))
		return
	}
	log.Info("Payment intent canceled")
}

func (s *CheckoutService) publish(ctx context.Context, order *trade.Order) {
	events := order.GetDomainEvents()
	order.ClearDomainEvents()
	publishEvents(ctx, s.publisher, s.logger, events)
}

func (s *CheckoutService) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if _, ok := shared.AsDomainError(err); ok {
		s.logger.Info(msg, fields...)
		return
	}
	s.logger.Error(msg, fields...)
}

// publishEvents hands committed events to the publisher. A failing
// subscriber never fails the operation that raised the events.
func publishEvents(ctx context.Context, publisher shared.EventPublisher, logger *zap.Logger, events []shared.DomainEvent) {
	if publisher == nil || len(events) == 0 {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		logger.Warn("Failed to publish domain events", zap.Int("count", len(events)), zap.Error(err))
	}
}

// errorCode returns the domain code of err, or INTERNAL
func errorCode(err error) string {
	if de, ok := shared.AsDomainError(err); ok {
		return de.Code
	}
	return "INTERNAL"
}
