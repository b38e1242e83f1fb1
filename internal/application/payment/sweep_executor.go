package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/storefront/backend/internal/infrastructure/scheduler"
	"go.uber.org/zap"
)

// SweepExecutor runs payment sweep jobs for the scheduler
type SweepExecutor struct {
	recon     *ReconciliationService
	minAge    time.Duration
	batchSize int
	logger    *zap.Logger
}

// NewSweepExecutor creates a SweepExecutor that settles payments idle for at
// least minAge, batchSize at a time
func NewSweepExecutor(recon *ReconciliationService, minAge time.Duration, batchSize int, logger *zap.Logger) *SweepExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweepExecutor{recon: recon, minAge: minAge, batchSize: batchSize, logger: logger}
}

// Execute implements scheduler.JobExecutor
func (e *SweepExecutor) Execute(ctx context.Context, job *scheduler.Job) error {
	if job.Kind != scheduler.JobKindPaymentSweep {
		return fmt.Errorf("%w: %s", scheduler.ErrUnknownJobKind, job.Kind)
	}
	result, err := e.recon.SweepPending(ctx, e.minAge, e.batchSize)
	if err != nil {
		return fmt.Errorf("failed to sweep pending payments: %w", err)
	}
	e.logger.Debug("Payment sweep finished",
		zap.String("job_id", job.ID.String()),
		zap.Int("checked", result.Checked),
		zap.Int("errors", result.Errors))
	return nil
}

var _ scheduler.JobExecutor = (*SweepExecutor)(nil)
