package cron

import (
	"context"
	"fmt"

	"github.com/tallyhq/tallycrm-backend/pkg/logger"
)

type quotaResetter interface {
	ResetDueQuotas(ctx context.Context) (int, error)
}

// QuotaResetJobParams configure the monthly quota roll.
type QuotaResetJobParams struct {
	Logger        *logger.Logger
	Subscriptions quotaResetter
}

// NewQuotaResetJob builds the cron job that rolls AI usage counters for
// subscriptions whose reset date has passed. Request-time lazy resets cover
// active tenants; this sweep covers the quiet ones.
func NewQuotaResetJob(params QuotaResetJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("quota resetter required")
	}
	return &quotaResetJob{logg: params.Logger, subscriptions: params.Subscriptions}, nil
}

type quotaResetJob struct {
	logg          *logger.Logger
	subscriptions quotaResetter
}

func (j *quotaResetJob) Name() string { return "quota-reset" }

func (j *quotaResetJob) Run(ctx context.Context) error {
	count, err := j.subscriptions.ResetDueQuotas(ctx)
	if err != nil {
		return fmt.Errorf("reset due quotas: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "count", count), "quota reset sweep complete")
	return nil
}
