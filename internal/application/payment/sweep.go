package payment

import (
	"context"
	"time"

	"github.com/storefront/backend/internal/application/transaction"
	"github.com/storefront/backend/internal/domain/payment"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// SweepResult counts what one sweep did
type SweepResult struct {
	Checked   int `json:"checked"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Canceled  int `json:"canceled"`
	Errors    int `json:"errors"`
}

// SweepPending settles payments whose outcome never reached us. Payments
// left pending or requiring action for longer than olderThan are looked up
// at the processor and the final state is recorded the same way a webhook
// would record it. Intents still in progress are left alone.
func (s *ReconciliationService) SweepPending(ctx context.Context, olderThan time.Duration, limit int) (SweepResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "sweep_pending")
	defer span.End()

	var result SweepResult
	stale, err := s.payments.FindStale(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		telemetry.RecordError(span, err)
		return result, err
	}

	for i := range stale {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		p := &stale[i]
		result.Checked++

		intent, err := callGateway(ctx, s.metrics, "retrieve_intent", func() (*payment.Intent, error) {
			return s.gateway.RetrieveIntent(ctx, p.IntentID)
		})
		if err != nil {
			result.Errors++
			s.logger.Warn("Failed to retrieve payment intent during sweep",
				zap.String("payment_intent_id", p.IntentID),
				zap.Error(err))
			continue
		}

		switch {
		case intent.Status == payment.IntentSucceeded:
			err = s.recordSuccess(ctx, p.IntentID, s.now())
			if err == nil {
				result.Succeeded++
				s.metrics.RecordPayment(ctx, p.Method, telemetry.OutcomeSuccess)
			}
		case intent.Status == payment.IntentCanceled:
			err = s.recordCanceled(ctx, p.IntentID)
			if err == nil {
				result.Canceled++
			}
		case intent.Status == payment.IntentRequiresPaymentMethod && intent.LastError != nil:
			err = s.recordFailure(ctx, p.IntentID, *intent.LastError, s.now())
			if err == nil {
				result.Failed++
				s.metrics.RecordPayment(ctx, p.Method, telemetry.OutcomeFailed)
			}
		}
		if err != nil {
			result.Errors++
			s.logger.Error("Failed to settle stale payment",
				zap.String("payment_intent_id", p.IntentID),
				zap.String("intent_status", string(intent.Status)),
				zap.Error(err))
		}
	}

	if result.Checked > 0 {
		s.logger.Info("Pending payments swept",
			zap.Int("checked", result.Checked),
			zap.Int("succeeded", result.Succeeded),
			zap.Int("failed", result.Failed),
			zap.Int("canceled", result.Canceled),
			zap.Int("errors", result.Errors))
	}
	return result, nil
}

// recordCanceled closes a payment whose intent was canceled at the processor
func (s *ReconciliationService) recordCanceled(ctx context.Context, intentID string) error {
	return s.scope.Execute(ctx, func(repos transaction.Repositories) error {
		p, err := repos.Payments().FindByIntentID(ctx, intentID)
		if err != nil {
			return err
		}
		if !p.Cancel() {
			return nil
		}
		return repos.Payments().SaveWithLock(ctx, p)
	})
}
