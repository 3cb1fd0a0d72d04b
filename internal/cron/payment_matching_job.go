package cron

import (
	"context"
	"fmt"

	"github.com/tallyhq/tallycrm-backend/internal/payments"
	"github.com/tallyhq/tallycrm-backend/pkg/logger"
)

type paymentSweeper interface {
	SweepUnmatched(ctx context.Context) (payments.SweepResult, error)
}

// PaymentMatchingJobParams configure the reconciliation sweep.
type PaymentMatchingJobParams struct {
	Logger   *logger.Logger
	Payments paymentSweeper
}

// NewPaymentMatchingJob builds the cron job that retries reconciliation of
// every unmatched payment. Payments that arrived before their invoice was
// sent get picked up here.
func NewPaymentMatchingJob(params PaymentMatchingJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment sweeper required")
	}
	return &paymentMatchingJob{logg: params.Logger, payments: params.Payments}, nil
}

type paymentMatchingJob struct {
	logg     *logger.Logger
	payments paymentSweeper
}

func (j *paymentMatchingJob) Name() string { return "payment-matching" }

func (j *paymentMatchingJob) Run(ctx context.Context) error {
	result, err := j.payments.SweepUnmatched(ctx)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned": result.Scanned,
		"matched": result.Matched,
	})
	if err != nil {
		// Partial completion: counts above reflect what did go through.
		return fmt.Errorf("sweep unmatched payments: %w", err)
	}
	j.logg.Info(logCtx, "payment matching sweep complete")
	return nil
}
