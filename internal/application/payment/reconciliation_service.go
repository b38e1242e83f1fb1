// Package payment reconciles local payments and orders with the payment
// processor: session creation, synchronous confirmation, refunds and
// processor webhooks.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	tradeapp "github.com/storefront/backend/internal/application/trade"
	"github.com/storefront/backend/internal/application/transaction"
	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/shared/valueobject"
	"github.com/storefront/backend/internal/domain/trade"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ReconciliationService drives the payment of an order. Processor calls are
// made outside any transaction; the local outcome is written in one.
type ReconciliationService struct {
	scope     transaction.Scope
	payments  payment.Repository
	orders    trade.OrderRepository
	gateway   payment.Gateway
	publisher shared.EventPublisher
	metrics   *telemetry.BusinessMetrics
	logger    *zap.Logger
	now       func() time.Time
}

// ReconciliationServiceConfig holds the collaborators of the service
type ReconciliationServiceConfig struct {
	Scope     transaction.Scope
	Payments  payment.Repository
	Orders    trade.OrderRepository
	Gateway   payment.Gateway
	Publisher shared.EventPublisher
	Metrics   *telemetry.BusinessMetrics
	Logger    *zap.Logger
}

// NewReconciliationService creates a new ReconciliationService
func NewReconciliationService(cfg ReconciliationServiceConfig) *ReconciliationService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationService{
		scope:     cfg.Scope,
		payments:  cfg.Payments,
		orders:    cfg.Orders,
		gateway:   cfg.Gateway,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateSession starts a payment for a pending, unpaid order of the user.
// An open session of the order is returned as is instead of creating a
// second intent. A failed session is superseded: its payment is canceled
// and its intent canceled at the processor.
func (s *ReconciliationService) CreateSession(ctx context.Context, userID uuid.UUID, email string, req CreateSessionRequest) (*SessionResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "create_session",
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, req.OrderID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrUserID, userID.String()),
	)
	defer span.End()

	order, err := s.orders.FindByIDForUser(ctx, userID, req.OrderID)
	if err != nil {
		return nil, err
	}
	order.ReopenPayment()
	if !order.IsPayable() {
		return nil, trade.ErrOrderNotPayable.WithDetail("payment_status", string(order.PaymentStatus))
	}

	open, err := s.payments.FindOpenByOrder(ctx, order.ID)
	switch {
	case err == nil && (open.Status == payment.StatusPending || open.Status == payment.StatusRequiresAction):
		resp := ToSessionResponse(open)
		return &resp, nil
	case err != nil && !errors.Is(err, payment.ErrPaymentNotFound):
		return nil, err
	}

	intent, err := callGateway(ctx, s.metrics, "create_intent", func() (*payment.Intent, error) {
		return s.gateway.CreateIntent(ctx, payment.CreateIntentRequest{
			Amount:      order.TotalMoney(),
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      userID,
			Email:       email,
			Method:      string(order.PaymentMethod),
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.gatewayFailure("Payment session creation failed", err,
			zap.String("order_id", order.ID.String()))
	}

	var p, superseded *payment.Payment
	err = s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		superseded = nil
		current, err := repos.Orders().FindByIDForUser(ctx, userID, order.ID)
		if err != nil {
			return err
		}
		reopened := current.PaymentStatus == trade.PaymentStatusFailed
		current.ReopenPayment()
		if !current.IsPayable() {
			return trade.ErrOrderNotPayable.WithDetail("payment_status", string(current.PaymentStatus))
		}
		if reopened {
			if err := repos.Orders().SaveWithLock(ctx, current); err != nil {
				return err
			}
		}
		previous, err := repos.Payments().FindOpenByOrder(ctx, current.ID)
		switch {
		case err == nil:
			if previous.Cancel() {
				if err := repos.Payments().SaveWithLock(ctx, previous); err != nil {
					return err
				}
				superseded = previous
			}
		case !errors.Is(err, payment.ErrPaymentNotFound):
			return err
		}
		p, err = payment.NewPayment(current.ID, userID, current.OrderNumber, intent, string(current.PaymentMethod))
		if err != nil {
			return err
		}
		return repos.Payments().Create(ctx, p)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.abandonIntent(ctx, intent.ID)
		return nil, err
	}
	if superseded != nil {
		s.abandonIntent(ctx, superseded.IntentID)
		s.logger.Info("Failed payment session superseded",
			zap.String("payment_id", superseded.ID.String()),
			zap.String("payment_intent_id", superseded.IntentID))
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrPaymentID, p.ID.String(),
		telemetry.SpanAttrIntentID, p.IntentID,
		telemetry.SpanAttrAmount, p.Amount.String(),
		telemetry.SpanAttrCurrency, string(p.Currency),
	)
	s.logger.Info("Payment session created",
		zap.String("payment_id", p.ID.String()),
		zap.String("payment_intent_id", p.IntentID),
		zap.String("order_number", p.OrderNumber),
	)
	resp := ToSessionResponse(p)
	return &resp, nil
}

// Confirm confirms the user's payment intent with the processor and records
// the outcome. A declined attempt is recorded as a failure; a timeout or
// transport failure leaves the payment untouched.
func (s *ReconciliationService) Confirm(ctx context.Context, userID uuid.UUID, req ConfirmRequest) (*ConfirmResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "confirm",
		telemetry.WithAttribute(telemetry.SpanAttrIntentID, req.PaymentIntentID),
		telemetry.WithAttribute(telemetry.SpanAttrUserID, userID.String()),
	)
	defer span.End()

	p, err := s.payments.FindByIntentID(ctx, req.PaymentIntentID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, payment.ErrPaymentNotFound
	}
	if p.Status == payment.StatusSucceeded || p.Status == payment.StatusRefunded {
		return s.confirmed(ctx, p.OrderID)
	}
	if p.Status == payment.StatusCanceled {
		return nil, shared.ErrInvalidState.WithDetail("payment_status", string(p.Status))
	}

	result, err := callGateway(ctx, s.metrics, "confirm_intent", func() (*payment.ConfirmResult, error) {
		return s.gateway.ConfirmIntent(ctx, p.IntentID)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.confirmFailed(ctx, p, err)
	}

	switch result.Outcome {
	case payment.ConfirmSucceeded:
		if err := s.recordSuccess(ctx, p.IntentID, s.now()); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		s.metrics.RecordPayment(ctx, p.Method, telemetry.OutcomeSuccess)
		s.logger.Info("Payment confirmed",
			zap.String("payment_intent_id", p.IntentID),
			zap.String("order_number", p.OrderNumber),
		)
		return s.confirmed(ctx, p.OrderID)

	case payment.ConfirmRequiresAction:
		var current *payment.Payment
		err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
			var err error
			current, err = repos.Payments().FindByIntentID(ctx, p.IntentID)
			if err != nil {
				return err
			}
			if !current.MarkRequiresAction(result.ClientSecret) {
				return nil
			}
			return repos.Payments().SaveWithLock(ctx, current)
		})
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		s.metrics.RecordPayment(ctx, p.Method, telemetry.OutcomeAction)
		order, err := s.orders.FindByID(ctx, p.OrderID)
		if err != nil {
			return nil, err
		}
		orderResp := tradeapp.ToOrderResponse(order)
		return &ConfirmResponse{
			Status:       ConfirmStatusRequiresAction,
			ClientSecret: current.ClientSecret,
			Order:        &orderResp,
		}, nil
	}

	err = payment.ErrUnhandledStatus(payment.IntentStatus(result.Outcome))
	telemetry.RecordError(span, err)
	return nil, err
}

// confirmFailed records a declined attempt. Failures whose outcome at the
// processor is unknown are only logged.
func (s *ReconciliationService) confirmFailed(ctx context.Context, p *payment.Payment, err error) error {
	ge, ok := payment.AsGatewayError(err)
	if !ok {
		if _, domain := shared.AsDomainError(err); domain {
			return err
		}
		s.logger.Error("Payment confirmation failed",
			zap.String("payment_intent_id", p.IntentID),
			zap.Error(err))
		return fmt.Errorf("failed to confirm payment: %w", err)
	}
	if ge.Temporary {
		s.logger.Warn("Payment confirmation outcome unknown, payment left pending",
			zap.String("payment_intent_id", p.IntentID),
			zap.String("order_number", p.OrderNumber),
			zap.Error(err))
		return ge.DomainError()
	}

	if recordErr := s.recordFailure(ctx, p.IntentID, ge.LastError(), s.now()); recordErr != nil {
		s.logger.Error("Failed to record payment failure",
			zap.String("payment_intent_id", p.IntentID),
			zap.Error(recordErr))
		return recordErr
	}
	s.metrics.RecordPayment(ctx, p.Method, telemetry.OutcomeFailed)
	return ge.DomainError()
}

func (s *ReconciliationService) confirmed(ctx context.Context, orderID uuid.UUID) (*ConfirmResponse, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	orderResp := tradeapp.ToOrderResponse(order)
	return &ConfirmResponse{Status: ConfirmStatusSucceeded, Order: &orderResp}, nil
}

// executeSettling runs fn in a transaction and runs it once more when a
// concurrent writer moved the payment or order version on. fn re-reads
// both, so a change the other writer already made is a no-op.
func (s *ReconciliationService) executeSettling(ctx context.Context, intentID string, fn func(repos transaction.Repositories) error) error {
	err := s.scope.Execute(ctx, fn)
	if errors.Is(err, shared.ErrConcurrencyConflict) {
		s.logger.Debug("Payment changed concurrently, retrying",
			zap.String("payment_intent_id", intentID))
		err = s.scope.Execute(ctx, fn)
	}
	return err
}

// recordSuccess marks the payment succeeded and its order paid. Repeated
// calls change nothing.
func (s *ReconciliationService) recordSuccess(ctx context.Context, intentID string, at time.Time) error {
	var events []shared.DomainEvent
	err := s.executeSettling(ctx, intentID, func(repos transaction.Repositories) error {
		events = nil
		p, err := repos.Payments().FindByIntentID(ctx, intentID)
		if err != nil {
			return err
		}
		if p.MarkSucceeded(at) {
			if err := repos.Payments().SaveWithLock(ctx, p); err != nil {
				return err
			}
		}

		order, err := repos.Orders().FindByID(ctx, p.OrderID)
		if err != nil {
			return err
		}
		changed, err := s.markOrderPaid(order, intentID, at)
		if err != nil {
			return err
		}
		if changed {
			if err := repos.Orders().SaveWithLock(ctx, order); err != nil {
				return err
			}
		}
		events = append(p.GetDomainEvents(), order.GetDomainEvents()...)
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events)
	return nil
}

func (s *ReconciliationService) markOrderPaid(order *trade.Order, intentID string, at time.Time) (bool, error) {
	changed, err := order.MarkPaid(intentID, at)
	if err != nil {
		return false, err
	}
	if changed && order.Status == trade.OrderStatusCancelled {
		s.logger.Warn("Payment succeeded for a cancelled order",
			zap.String("payment_intent_id", intentID),
			zap.String("order_number", order.OrderNumber))
	}
	return changed, nil
}

// recordFailure records a failed attempt on the payment and its order.
// Reaching the attempt cap is reported, never retried.
func (s *ReconciliationService) recordFailure(ctx context.Context, intentID string, lastErr payment.LastError, at time.Time) error {
	var (
		events    []shared.DomainEvent
		exhausted bool
		p         *payment.Payment
	)
	err := s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		var err error
		p, err = repos.Payments().FindByIntentID(ctx, intentID)
		if err != nil {
			return err
		}
		if !p.RecordFailure(lastErr, at) {
			return nil
		}
		if err := repos.Payments().SaveWithLock(ctx, p); err != nil {
			return err
		}
		exhausted = p.AttemptsExhausted()

		order, err := repos.Orders().FindByID(ctx, p.OrderID)
		if err != nil {
			return err
		}
		if order.MarkPaymentFailed() {
			if err := repos.Orders().SaveWithLock(ctx, order); err != nil {
				return err
			}
		}
		events = p.GetDomainEvents()
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Payment attempt failed",
		zap.String("payment_intent_id", intentID),
		zap.Int("attempts", p.Attempts),
		zap.String("code", lastErr.Code),
		zap.String("message", lastErr.Message))
	if exhausted {
		s.metrics.RecordAttemptsExhausted(ctx, p.Method)
		s.logger.Warn("PAYMENT_ATTEMPTS_EXHAUSTED",
			zap.String("payment_id", p.ID.String()),
			zap.String("payment_intent_id", intentID),
			zap.String("order_number", p.OrderNumber),
			zap.Int("attempts", p.Attempts))
	}
	s.publish(ctx, events)
	return nil
}

// recordRefundTotal applies the cumulative refunded amount to the payment
// and its order. A refund reported for a payment still open locally means
// the charge succeeded, so the success is recorded first in the same
// transaction. It returns false when nothing changed.
func (s *ReconciliationService) recordRefundTotal(ctx context.Context, intentID string, total decimal.Decimal, reason string, at time.Time) (*payment.Payment, bool, error) {
	var (
		events    []shared.DomainEvent
		p         *payment.Payment
		changed   bool
		refunded  bool
		succeeded bool
	)
	err := s.executeSettling(ctx, intentID, func(repos transaction.Repositories) error {
		events, changed, refunded, succeeded = nil, false, false, false
		var err error
		p, err = repos.Payments().FindByIntentID(ctx, intentID)
		if err != nil {
			return err
		}
		if p.Status.IsOpen() && total.IsPositive() {
			succeeded = p.MarkSucceeded(at)
		}
		refunded = p.ApplyRefundTotal(total, reason, at)
		if !succeeded && !refunded {
			return nil
		}
		changed = true
		if err := repos.Payments().SaveWithLock(ctx, p); err != nil {
			return err
		}

		order, err := repos.Orders().FindByID(ctx, p.OrderID)
		if err != nil {
			return err
		}
		orderChanged := false
		if succeeded {
			if orderChanged, err = s.markOrderPaid(order, intentID, at); err != nil {
				return err
			}
		}
		if refunded {
			refundChanged, err := order.ApplyRefund(p.IsFullyRefunded())
			if err != nil {
				return err
			}
			orderChanged = orderChanged || refundChanged
		}
		if orderChanged {
			if err := repos.Orders().SaveWithLock(ctx, order); err != nil {
				return err
			}
		}
		events = append(p.GetDomainEvents(), order.GetDomainEvents()...)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if succeeded {
		s.metrics.RecordPayment(ctx, p.Method, telemetry.OutcomeSuccess)
		s.logger.Info("Payment success inferred from refund",
			zap.String("payment_intent_id", intentID))
	}
	if refunded {
		s.metrics.RecordRefund(ctx, string(p.Currency),
			valueobject.MustNewMoney(p.RefundedAmount, p.Currency).ToMinorUnits(), p.IsFullyRefunded())
		s.logger.Info("Payment refunded",
			zap.String("payment_intent_id", intentID),
			zap.String("refunded_amount", p.RefundedAmount.String()),
			zap.Bool("fully_refunded", p.IsFullyRefunded()))
	}
	s.publish(ctx, events)
	return p, changed, nil
}

// Refund returns money for a succeeded payment. Without an amount the
// remaining balance is refunded.
func (s *ReconciliationService) Refund(ctx context.Context, paymentID uuid.UUID, req RefundRequest) (*PaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "refund",
		telemetry.WithAttribute(telemetry.SpanAttrPaymentID, paymentID.String()),
	)
	defer span.End()

	p, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	amount := p.RemainingRefundable()
	if req.Amount != nil {
		amount = *req.Amount
	}
	if err := p.ValidateRefund(amount); err != nil {
		return nil, err
	}
	reason := req.Reason
	if reason == "" {
		reason = payment.RefundReasonCustomerRequest
	}
	refundMoney, err := valueobject.NewMoney(amount, p.Currency)
	if err != nil {
		return nil, err
	}

	_, err = callGateway(ctx, s.metrics, "refund", func() (*payment.RefundResult, error) {
		return s.gateway.Refund(ctx, payment.RefundRequest{
			IntentID: p.IntentID,
			Amount:   refundMoney,
			Reason:   reason,
			Note:     req.Note,
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, s.gatewayFailure("Refund failed", err,
			zap.String("payment_intent_id", p.IntentID))
	}

	updated, _, err := s.recordRefundTotal(ctx, p.IntentID, p.RefundedAmount.Add(amount), string(reason), s.now())
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("Refund issued but not recorded",
			zap.String("payment_intent_id", p.IntentID),
			zap.String("amount", amount.String()),
			zap.Error(err))
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrAmount, amount.String())
	resp := ToPaymentResponse(updated)
	return &resp, nil
}

// Get returns one of the user's payments
func (s *ReconciliationService) Get(ctx context.Context, userID, paymentID uuid.UUID) (*PaymentResponse, error) {
	p, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, payment.ErrPaymentNotFound
	}
	resp := ToPaymentResponse(p)
	return &resp, nil
}

// List returns the user's payment history, newest first
func (s *ReconciliationService) List(ctx context.Context, userID uuid.UUID, filter PaymentListFilter) ([]PaymentResponse, int64, error) {
	payments, total, err := s.payments.FindByUser(ctx, userID, filter.toDomain())
	if err != nil {
		return nil, 0, err
	}
	items := make([]PaymentResponse, len(payments))
	for i := range payments {
		items[i] = ToPaymentResponse(&payments[i])
	}
	return items, total, nil
}

// abandonIntent cancels an intent that no local payment will complete
func (s *ReconciliationService) abandonIntent(ctx context.Context, intentID string) {
	if err := s.gateway.CancelIntent(context.WithoutCancel(ctx), intentID); err != nil {
		s.logger.Warn("Failed to cancel orphaned payment intent",
			zap.String("payment_intent_id", intentID),
			zap.Error(err))
	}
}

// gatewayFailure logs a processor failure and returns its customer-safe form
func (s *ReconciliationService) gatewayFailure(msg string, err error, fields ...zap.Field) error {
	fields = append(fields, zap.Error(err))
	if ge, ok := payment.AsGatewayError(err); ok {
		s.logger.Warn(msg, fields...)
		return ge.DomainError()
	}
	if _, ok := shared.AsDomainError(err); ok {
		s.logger.Info(msg, fields...)
		return err
	}
	s.logger.Error(msg, fields...)
	return err
}

func (s *ReconciliationService) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish domain events", zap.Int("count", len(events)), zap.Error(err))
	}
}

// callGateway times one processor call for the gateway metrics
func callGateway[T any](ctx context.Context, metrics *telemetry.BusinessMetrics, op string, fn func() (T, error)) (T, error) {
	start := time.Now()
	out, err := fn()
	metrics.RecordGatewayCall(ctx, op, time.Since(start), err)
	return out, err
}
