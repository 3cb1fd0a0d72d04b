package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/tallyhq/tallycrm-backend/pkg/logger"
)

type overdueMarker interface {
	MarkOverdue(ctx context.Context, asOf time.Time) (int, error)
}

// OverdueInvoicesJobParams configure the overdue sweep.
type OverdueInvoicesJobParams struct {
	Logger   *logger.Logger
	Invoices overdueMarker
}

// NewOverdueInvoicesJob builds the cron job that flags sent and partially
// paid invoices whose due date has passed.
func NewOverdueInvoicesJob(params OverdueInvoicesJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Invoices == nil {
		return nil, fmt.Errorf("overdue marker required")
	}
	return &overdueInvoicesJob{logg: params.Logger, invoices: params.Invoices, now: time.Now}, nil
}

type overdueInvoicesJob struct {
	logg     *logger.Logger
	invoices overdueMarker
	now      func() time.Time
}

func (j *overdueInvoicesJob) Name() string { return "overdue-invoices" }

func (j *overdueInvoicesJob) Run(ctx context.Context) error {
	count, err := j.invoices.MarkOverdue(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("mark overdue invoices: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "count", count), "overdue invoice sweep complete")
	return nil
}
