package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Webhook outcomes
const (
	WebhookProcessed = "processed"
	WebhookIgnored   = "ignored"
	WebhookDuplicate = "duplicate"
)

// webhookHandler applies one kind of processor notification. It returns
// false when the notification changed nothing.
type webhookHandler func(ctx context.Context, event *payment.WebhookEvent) (bool, error)

// WebhookService verifies processor notifications and applies them through
// the reconciliation service. Every handler is idempotent; event ids are
// additionally deduplicated when an idempotency store is configured.
type WebhookService struct {
	gateway     payment.Gateway
	recon       *ReconciliationService
	idempotency shared.IdempotencyStore
	ttl         time.Duration
	metrics     *telemetry.BusinessMetrics
	logger      *zap.Logger
	handlers    map[payment.EventKind]webhookHandler
}

// WebhookServiceConfig holds the collaborators of the webhook service
type WebhookServiceConfig struct {
	Gateway        payment.Gateway
	Reconciliation *ReconciliationService
	Idempotency    shared.IdempotencyStore
	IdempotencyTTL time.Duration
	Metrics        *telemetry.BusinessMetrics
	Logger         *zap.Logger
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(cfg WebhookServiceConfig) *WebhookService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.IdempotencyTTL
	if ttl <= 0 {
		ttl = shared.DefaultIdempotencyConfig().TTL
	}
	s := &WebhookService{
		gateway:     cfg.Gateway,
		recon:       cfg.Reconciliation,
		idempotency: cfg.Idempotency,
		ttl:         ttl,
		metrics:     cfg.Metrics,
		logger:      logger,
	}
	s.handlers = map[payment.EventKind]webhookHandler{
		payment.EventIntentSucceeded: s.handleSucceeded,
		payment.EventIntentFailed:    s.handleFailed,
		payment.EventChargeRefunded:  s.handleRefunded,
	}
	return s
}

// Handle verifies and applies one notification and returns its outcome.
// Only a bad signature or a failure to apply the event returns an error;
// unknown kinds and unknown intents are acknowledged and dropped.
func (s *WebhookService) Handle(ctx context.Context, payload []byte, signature string) (outcome string, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "webhook")
	defer span.End()

	event, err := s.gateway.VerifyWebhook(payload, signature)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Warn("Webhook rejected", zap.Error(err))
		if errors.Is(err, payment.ErrSignatureInvalid) {
			return "", err
		}
		return "", payment.ErrSignatureInvalid
	}
	kind := string(event.Kind)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrWebhookEvent, kind,
		telemetry.SpanAttrIntentID, event.IntentID,
	)
	log := s.logger.With(
		zap.String("event_id", event.ID),
		zap.String("event_type", kind),
		zap.String("payment_intent_id", event.IntentID),
	)
	defer func() {
		switch {
		case err != nil:
			s.metrics.RecordWebhookEvent(ctx, kind, telemetry.OutcomeFailed)
		case outcome == WebhookDuplicate:
			s.metrics.RecordWebhookEvent(ctx, kind, telemetry.OutcomeDuplicate)
		case outcome == WebhookIgnored:
			s.metrics.RecordWebhookEvent(ctx, kind, telemetry.OutcomeIgnored)
		default:
			s.metrics.RecordWebhookEvent(ctx, kind, telemetry.OutcomeSuccess)
		}
	}()

	handler, ok := s.handlers[event.Kind]
	if !ok {
		log.Debug("Webhook event type not handled")
		return WebhookIgnored, nil
	}

	if s.idempotency != nil && event.ID != "" {
		key := fmt.Sprintf("webhook:%s", event.ID)
		claimed, claimErr := s.idempotency.MarkProcessed(ctx, key, s.ttl)
		if claimErr != nil {
			// handlers are idempotent; proceed without dedupe
			log.Warn("Webhook dedupe unavailable", zap.Error(claimErr))
		} else if !claimed {
			log.Debug("Duplicate webhook event")
			return WebhookDuplicate, nil
		} else {
			defer func() {
				if err != nil {
					if releaseErr := s.idempotency.Release(context.WithoutCancel(ctx), key); releaseErr != nil {
						log.Warn("Failed to release webhook event id", zap.Error(releaseErr))
					}
				}
			}()
		}
	}

	changed, err := handler(ctx, event)
	if err != nil {
		if errors.Is(err, payment.ErrPaymentNotFound) {
			log.Warn("Webhook for unknown payment intent dropped")
			return WebhookIgnored, nil
		}
		telemetry.RecordError(span, err)
		log.Error("Failed to apply webhook event", zap.Error(err))
		return "", err
	}
	if !changed {
		log.Debug("Webhook event already applied")
		return WebhookIgnored, nil
	}
	log.Info("Webhook event applied")
	return WebhookProcessed, nil
}

func (s *WebhookService) handleSucceeded(ctx context.Context, event *payment.WebhookEvent) (bool, error) {
	p, err := s.recon.payments.FindByIntentID(ctx, event.IntentID)
	if err != nil {
		return false, err
	}
	if p.Status == payment.StatusSucceeded || p.Status == payment.StatusRefunded {
		return false, nil
	}
	if err := s.recon.recordSuccess(ctx, event.IntentID, eventTime(event)); err != nil {
		return false, err
	}
	s.metrics.RecordPayment(ctx, p.Method, telemetry.OutcomeSuccess)
	return true, nil
}

func (s *WebhookService) handleFailed(ctx context.Context, event *payment.WebhookEvent) (bool, error) {
	p, err := s.recon.payments.FindByIntentID(ctx, event.IntentID)
	if err != nil {
		return false, err
	}
	if !p.Status.IsOpen() {
		return false, nil
	}
	lastErr := payment.LastError{Message: "Payment failed"}
	if event.LastError != nil {
		lastErr = *event.LastError
	}
	if p.Status == payment.StatusFailed && p.LastError != nil && *p.LastError == lastErr {
		return false, nil
	}
	if err := s.recon.recordFailure(ctx, event.IntentID, lastErr, eventTime(event)); err != nil {
		return false, err
	}
	s.metrics.RecordPayment(ctx, p.Method, telemetry.OutcomeFailed)
	return true, nil
}

func (s *WebhookService) handleRefunded(ctx context.Context, event *payment.WebhookEvent) (bool, error) {
	_, changed, err := s.recon.recordRefundTotal(ctx, event.IntentID, event.AmountRefunded.Amount(),
		string(payment.RefundReasonCustomerRequest), eventTime(event))
	return changed, err
}

func eventTime(event *payment.WebhookEvent) time.Time {
	if event.Created.IsZero() {
		return time.Now()
	}
	return event.Created
}
