package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	"github.com/tallyhq/tallycrm-backend/pkg/enums"
	pkgerrors "github.com/tallyhq/tallycrm-backend/pkg/errors"
)

// CheckoutCompletedInput carries the fields extracted from a completed
// Stripe checkout session.
type CheckoutCompletedInput struct {
	OwnerID              uuid.UUID
	StripeSubscriptionID string
	StripeCustomerID     string
	StripePriceID        string
	// PlanName comes from checkout metadata when no price is on the event.
	PlanName string
}

// ApplyCheckoutCompleted activates the purchased plan and records the
// transition.
func (s *Service) ApplyCheckoutCompleted(ctx context.Context, input CheckoutCompletedInput) error {
	if input.OwnerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sub, err := repo.FindByOwnerID(ctx, input.OwnerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
			}
			return err
		}

		plan := sub.Plan
		if name, ok := s.prices.PlanForPrice(input.StripePriceID); ok {
			if parsed, parseErr := enums.ParseSubscriptionPlan(name); parseErr == nil {
				plan = parsed
			}
		} else if parsed, parseErr := enums.ParseSubscriptionPlan(input.PlanName); parseErr == nil {
			plan = parsed
		}
		if plan != sub.Plan {
			if err := appendHistory(ctx, repo, sub, plan, "checkout_completed"); err != nil {
				return err
			}
		}

		sub.Plan = plan
		sub.Status = enums.SubscriptionStatusActive
		sub.CancelAtPeriodEnd = false
		if input.StripeSubscriptionID != "" {
			sub.StripeSubscriptionID = &input.StripeSubscriptionID
		}
		if input.StripeCustomerID != "" {
			sub.StripeCustomerID = &input.StripeCustomerID
		}
		if input.StripePriceID != "" {
			sub.StripePriceID = &input.StripePriceID
		}
		return repo.UpdateSubscription(ctx, sub)
	})
}

// StripeInvoiceInput mirrors the fields of a Stripe invoice worth keeping.
type StripeInvoiceInput struct {
	StripeInvoiceID  string
	AmountDue        decimal.Decimal
	AmountPaid       decimal.Decimal
	Currency         enums.Currency
	Status           string
	InvoicePDF       *string
	HostedInvoiceURL *string
	PeriodStart      *time.Time
	PeriodEnd        *time.Time
}

// ApplyInvoicePaid marks the subscription active and mirrors the provider
// invoice. Unknown subscription identifiers are ignored; Stripe retries and
// out-of-order delivery make them routine.
func (s *Service) ApplyInvoicePaid(ctx context.Context, stripeSubscriptionID string, invoice StripeInvoiceInput) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sub, err := repo.FindByStripeSubscriptionID(ctx, stripeSubscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return nil
		}

		sub.Status = enums.SubscriptionStatusActive
		if err := repo.UpdateSubscription(ctx, sub); err != nil {
			return err
		}

		if invoice.StripeInvoiceID == "" {
			return nil
		}
		existing, err := repo.FindSubscriptionInvoiceByStripeID(ctx, invoice.StripeInvoiceID)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}
		return repo.CreateSubscriptionInvoice(ctx, &models.SubscriptionInvoice{
			SubscriptionID:   sub.ID,
			StripeInvoiceID:  invoice.StripeInvoiceID,
			AmountDue:        invoice.AmountDue,
			AmountPaid:       invoice.AmountPaid,
			Currency:         invoice.Currency,
			Status:           invoice.Status,
			InvoicePDF:       invoice.InvoicePDF,
			HostedInvoiceURL: invoice.HostedInvoiceURL,
			PeriodStart:      invoice.PeriodStart,
			PeriodEnd:        invoice.PeriodEnd,
		})
	})
}

// ApplyPaymentFailed flags the subscription past due. Unknown identifiers
// are ignored.
func (s *Service) ApplyPaymentFailed(ctx context.Context, stripeSubscriptionID string) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sub, err := repo.FindByStripeSubscriptionID(ctx, stripeSubscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return nil
		}
		sub.Status = enums.SubscriptionStatusPastDue
		return repo.UpdateSubscription(ctx, sub)
	})
}

// SubscriptionUpdateInput carries the subscription fields Stripe reports on
// customer.subscription.updated.
type SubscriptionUpdateInput struct {
	Status             string
	StripePriceID      string
	CancelAtPeriodEnd  bool
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
}

// ApplySubscriptionUpdated syncs status, period and plan from the provider.
// Unknown identifiers are ignored.
func (s *Service) ApplySubscriptionUpdated(ctx context.Context, stripeSubscriptionID string, input SubscriptionUpdateInput) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sub, err := repo.FindByStripeSubscriptionID(ctx, stripeSubscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return nil
		}

		if input.StripePriceID != "" {
			if name, ok := s.prices.PlanForPrice(input.StripePriceID); ok {
				if plan, parseErr := enums.ParseSubscriptionPlan(name); parseErr == nil && plan != sub.Plan {
					if err := appendHistory(ctx, repo, sub, plan, "stripe_subscription_updated"); err != nil {
						return err
					}
					sub.Plan = plan
				}
			}
			sub.StripePriceID = &input.StripePriceID
		}

		sub.Status = statusFromStripe(input.Status)
		sub.CancelAtPeriodEnd = input.CancelAtPeriodEnd
		if input.CurrentPeriodStart != nil {
			sub.CurrentPeriodStart = input.CurrentPeriodStart
		}
		if input.CurrentPeriodEnd != nil {
			sub.CurrentPeriodEnd = input.CurrentPeriodEnd
		}
		return repo.UpdateSubscription(ctx, sub)
	})
}

// ApplySubscriptionDeleted drops the account to the free plan and records
// the transition. Unknown identifiers are ignored.
func (s *Service) ApplySubscriptionDeleted(ctx context.Context, stripeSubscriptionID string) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sub, err := repo.FindByStripeSubscriptionID(ctx, stripeSubscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return nil
		}

		if sub.Plan != enums.PlanFree {
			if err := appendHistory(ctx, repo, sub, enums.PlanFree, "stripe_subscription_deleted"); err != nil {
				return err
			}
		}
		sub.Plan = enums.PlanFree
		sub.Status = enums.SubscriptionStatusCancelled
		sub.StripeSubscriptionID = nil
		sub.StripePriceID = nil
		sub.CancelAtPeriodEnd = false
		sub.CurrentPeriodStart = nil
		sub.CurrentPeriodEnd = nil
		return repo.UpdateSubscription(ctx, sub)
	})
}

// statusFromStripe maps Stripe subscription statuses onto the local enum.
func statusFromStripe(status string) enums.SubscriptionStatus {
	switch status {
	case "active", "trialing":
		return enums.SubscriptionStatusActive
	case "past_due", "unpaid", "incomplete":
		return enums.SubscriptionStatusPastDue
	case "canceled":
		return enums.SubscriptionStatusCancelled
	case "incomplete_expired":
		return enums.SubscriptionStatusExpired
	default:
		return enums.SubscriptionStatusActive
	}
}
