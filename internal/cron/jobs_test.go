package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tallyhq/tallycrm-backend/internal/payments"
)

type fakeSweeper struct {
	result payments.SweepResult
	err    error
	calls  int
}

func (f *fakeSweeper) SweepUnmatched(ctx context.Context) (payments.SweepResult, error) {
	f.calls++
	return f.result, f.err
}

func TestPaymentMatchingJobRunsSweep(t *testing.T) {
	sweeper := &fakeSweeper{result: payments.SweepResult{Scanned: 5, Matched: 2}}
	job, err := NewPaymentMatchingJob(PaymentMatchingJobParams{Logger: testLogger(), Payments: sweeper})
	if err != nil {
		t.Fatalf("NewPaymentMatchingJob: %v", err)
	}
	if job.Name() != "payment-matching" {
		t.Fatalf("name = %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.calls != 1 {
		t.Fatalf("sweep calls = %d", sweeper.calls)
	}
}

func TestPaymentMatchingJobPropagatesError(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("db down")}
	job, _ := NewPaymentMatchingJob(PaymentMatchingJobParams{Logger: testLogger(), Payments: sweeper})
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type fakeMarker struct {
	count int
	asOf  time.Time
	err   error
}

func (f *fakeMarker) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) {
	f.asOf = asOf
	return f.count, f.err
}

func TestOverdueInvoicesJob(t *testing.T) {
	now := time.Date(2025, 7, 10, 6, 0, 0, 0, time.UTC)
	marker := &fakeMarker{count: 3}
	jobIface, err := NewOverdueInvoicesJob(OverdueInvoicesJobParams{Logger: testLogger(), Invoices: marker})
	if err != nil {
		t.Fatalf("NewOverdueInvoicesJob: %v", err)
	}
	job := jobIface.(*overdueInvoicesJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !marker.asOf.Equal(now) {
		t.Fatalf("asOf = %v", marker.asOf)
	}
}

type fakeExpirer struct {
	count int
	asOf  time.Time
}

func (f *fakeExpirer) ExpireOffers(ctx context.Context, asOf time.Time) (int, error) {
	f.asOf = asOf
	return f.count, nil
}

func TestOfferExpiryJob(t *testing.T) {
	now := time.Date(2025, 7, 10, 6, 0, 0, 0, time.UTC)
	expirer := &fakeExpirer{count: 1}
	jobIface, err := NewOfferExpiryJob(OfferExpiryJobParams{Logger: testLogger(), Offers: expirer})
	if err != nil {
		t.Fatalf("NewOfferExpiryJob: %v", err)
	}
	job := jobIface.(*offerExpiryJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !expirer.asOf.Equal(now) {
		t.Fatalf("asOf = %v", expirer.asOf)
	}
}

type fakeResetter struct {
	count int
	calls int
}

func (f *fakeResetter) ResetDueQuotas(ctx context.Context) (int, error) {
	f.calls++
	return f.count, nil
}

func TestQuotaResetJob(t *testing.T) {
	resetter := &fakeResetter{count: 4}
	job, err := NewQuotaResetJob(QuotaResetJobParams{Logger: testLogger(), Subscriptions: resetter})
	if err != nil {
		t.Fatalf("NewQuotaResetJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resetter.calls != 1 {
		t.Fatalf("calls = %d", resetter.calls)
	}
}
