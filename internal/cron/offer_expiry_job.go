package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/tallyhq/tallycrm-backend/pkg/logger"
)

type offerExpirer interface {
	ExpireOffers(ctx context.Context, asOf time.Time) (int, error)
}

// OfferExpiryJobParams configure the offer expiry sweep.
type OfferExpiryJobParams struct {
	Logger *logger.Logger
	Offers offerExpirer
}

// NewOfferExpiryJob builds the cron job that expires sent offers whose
// validity window has closed.
func NewOfferExpiryJob(params OfferExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Offers == nil {
		return nil, fmt.Errorf("offer expirer required")
	}
	return &offerExpiryJob{logg: params.Logger, offers: params.Offers, now: time.Now}, nil
}

type offerExpiryJob struct {
	logg   *logger.Logger
	offers offerExpirer
	now    func() time.Time
}

func (j *offerExpiryJob) Name() string { return "offer-expiry" }

func (j *offerExpiryJob) Run(ctx context.Context) error {
	count, err := j.offers.ExpireOffers(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("expire offers: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "count", count), "offer expiry sweep complete")
	return nil
}
