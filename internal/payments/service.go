package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	"github.com/tallyhq/tallycrm-backend/pkg/enums"
	pkgerrors "github.com/tallyhq/tallycrm-backend/pkg/errors"
	"github.com/tallyhq/tallycrm-backend/pkg/logger"
	"github.com/tallyhq/tallycrm-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the payments service.
type ServiceParams struct {
	Repo              Repository
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service records payments and reconciles them against open invoices.
type Service struct {
	repo     Repository
	txRunner txRunner
	logg     *logger.Logger
}

// NewService builds a payments service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.TransactionRunner == nil {
		return nil, errors.New("transaction runner is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		repo:     params.Repo,
		txRunner: params.TransactionRunner,
		logg:     params.Logger,
	}, nil
}

// RecordPaymentInput carries the request to record an incoming payment.
type RecordPaymentInput struct {
	OwnerID     uuid.UUID
	PaymentDate time.Time
	Amount      decimal.Decimal
	Currency    enums.Currency
	Method      enums.PaymentMethod
	Reference   *string
	Notes       *string

	StripePaymentIntentID *string
	StripeChargeID        *string
}

// RecordPayment stores a payment and immediately attempts to reconcile it.
// A payment that finds no exact-balance invoice stays unmatched; the sweep
// retries it later.
func (s *Service) RecordPayment(ctx context.Context, input RecordPaymentInput) (*models.Payment, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	if !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	payment := &models.Payment{
		OwnerID:               input.OwnerID,
		PaymentDate:           input.PaymentDate,
		Amount:                input.Amount,
		Currency:              input.Currency,
		Method:                input.Method,
		Reference:             input.Reference,
		Notes:                 input.Notes,
		StripePaymentIntentID: input.StripePaymentIntentID,
		StripeChargeID:        input.StripeChargeID,
	}

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if txErr := repo.CreatePayment(ctx, payment); txErr != nil {
			return txErr
		}
		_, txErr := reconcile(ctx, repo, payment)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *Service) GetPayment(ctx context.Context, ownerID, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.FindPaymentByID(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, err
	}
	return payment, nil
}

func (s *Service) ListPayments(ctx context.Context, params ListPaymentsQuery) ([]models.Payment, *pagination.Cursor, error) {
	if params.OwnerID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	return s.repo.ListPayments(ctx, params)
}

// DeletePayment removes an unmatched payment. Matched payments must be
// unmatched first so the invoice balance stays consistent.
func (s *Service) DeletePayment(ctx context.Context, ownerID, id uuid.UUID) error {
	payment, err := s.GetPayment(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if payment.IsMatched {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "matched payments cannot be deleted")
	}
	if err := s.repo.DeletePayment(ctx, ownerID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return err
	}
	return nil
}

// MatchPayment runs reconciliation for one payment. Reports whether an
// invoice was settled; an already matched payment is a no-op success.
func (s *Service) MatchPayment(ctx context.Context, ownerID, id uuid.UUID) (bool, error) {
	payment, err := s.GetPayment(ctx, ownerID, id)
	if err != nil {
		return false, err
	}
	if payment.IsMatched {
		return true, nil
	}

	matched := false
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		matched, txErr = reconcile(ctx, s.repo.WithTx(tx), payment)
		return txErr
	})
	return matched, err
}

// UnmatchPayment detaches a payment from its invoice and rolls the paid
// amount back. The invoice returns to sent or partially paid; the overdue
// sweep re-flags it if the due date has passed.
func (s *Service) UnmatchPayment(ctx context.Context, ownerID, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.GetPayment(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if !payment.IsMatched || payment.InvoiceID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not matched")
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		invoice, txErr := repo.FindInvoiceByID(ctx, ownerID, *payment.InvoiceID)
		if txErr != nil {
			return txErr
		}
		invoice.PaidAmount = invoice.PaidAmount.Sub(payment.Amount)
		if invoice.PaidAmount.IsNegative() {
			invoice.PaidAmount = decimal.Zero
		}
		if invoice.PaidAmount.IsZero() {
			invoice.Status = enums.InvoiceStatusSent
		} else {
			invoice.Status = enums.InvoiceStatusPartiallyPaid
		}
		if txErr := repo.UpdateInvoice(ctx, invoice); txErr != nil {
			return txErr
		}
		payment.InvoiceID = nil
		payment.IsMatched = false
		return repo.UpdatePayment(ctx, payment)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// SweepResult summarizes one reconciliation pass.
type SweepResult struct {
	Scanned int
	Matched int
}

// SweepUnmatched reconciles every unmatched payment. Each payment runs in
// its own transaction so one failure does not roll back the rest; failures
// are collected and the sweep continues.
func (s *Service) SweepUnmatched(ctx context.Context) (SweepResult, error) {
	payments, err := s.repo.ListUnmatchedPayments(ctx)
	if err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{Scanned: len(payments)}
	var errs error
	for i := range payments {
		payment := payments[i]
		err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
			matched, txErr := reconcile(ctx, s.repo.WithTx(tx), &payment)
			if matched {
				result.Matched++
			}
			return txErr
		})
		if err != nil {
			s.logg.Error(s.logg.WithField(ctx, "payment_id", payment.ID.String()), "reconcile payment", err)
			errs = multierr.Append(errs, err)
		}
	}
	return result, errs
}

// reconcile applies the exact-balance rule: the payment settles the first
// invoice, ordered by due date then number, whose balance due equals the
// payment amount. No candidate is not an error.
func reconcile(ctx context.Context, repo Repository, payment *models.Payment) (bool, error) {
	if payment.IsMatched {
		return true, nil
	}

	candidates, err := repo.ListMatchableInvoices(ctx, payment.OwnerID, payment.Currency)
	if err != nil {
		return false, err
	}

	for i := range candidates {
		invoice := &candidates[i]
		if !invoice.BalanceDue().Equal(payment.Amount) {
			continue
		}
		invoice.PaidAmount = invoice.PaidAmount.Add(payment.Amount)
		if invoice.IsPaid() {
			invoice.Status = enums.InvoiceStatusPaid
		} else {
			invoice.Status = enums.InvoiceStatusPartiallyPaid
		}
		if err := repo.UpdateInvoice(ctx, invoice); err != nil {
			return false, err
		}
		payment.InvoiceID = &invoice.ID
		payment.IsMatched = true
		if err := repo.UpdatePayment(ctx, payment); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}
