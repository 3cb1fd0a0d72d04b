package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	"github.com/tallyhq/tallycrm-backend/pkg/enums"
	pkgerrors "github.com/tallyhq/tallycrm-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type priceResolver interface {
	PriceID(plan string) (string, bool)
	PlanForPrice(priceID string) (string, bool)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo              Repository
	TransactionRunner txRunner
	Stripe            StripeBillingClient
	Prices            priceResolver
	SuccessURL        string
	CancelURL         string
}

// Service tracks plan, status and AI usage for each account and drives
// Stripe checkout and cancellation.
type Service struct {
	repo       Repository
	txRunner   txRunner
	stripeAPI  StripeBillingClient
	prices     priceResolver
	successURL string
	cancelURL  string
	now        func() time.Time
}

// NewService builds a subscription service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.TransactionRunner == nil {
		return nil, errors.New("transaction runner is required")
	}
	if params.Stripe == nil {
		return nil, errors.New("stripe client is required")
	}
	if params.Prices == nil {
		return nil, errors.New("price resolver is required")
	}
	return &Service{
		repo:       params.Repo,
		txRunner:   params.TransactionRunner,
		stripeAPI:  params.Stripe,
		prices:     params.Prices,
		successURL: params.SuccessURL,
		cancelURL:  params.CancelURL,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// BootstrapTenant seeds the free subscription for a freshly registered
// account. Runs inside the registration transaction.
func (s *Service) BootstrapTenant(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) error {
	if ownerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	reset := firstOfNextMonth(s.now())
	sub := &models.Subscription{
		OwnerID:             ownerID,
		Plan:                enums.PlanFree,
		Status:              enums.SubscriptionStatusActive,
		AIRequestsResetDate: &reset,
	}
	return s.repo.WithTx(tx).CreateSubscription(ctx, sub)
}

func (s *Service) GetSubscription(ctx context.Context, ownerID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.repo.FindByOwnerID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil, err
	}
	return sub, nil
}

// effectivePlan is the plan whose limits apply right now. Accounts whose
// subscription lapsed fall back to the free tier.
func effectivePlan(sub *models.Subscription) enums.SubscriptionPlan {
	switch sub.Status {
	case enums.SubscriptionStatusActive, enums.SubscriptionStatusPastDue:
		return sub.Plan
	default:
		return enums.PlanFree
	}
}

// ContactLimit reports how many contacts the owner's plan allows.
// Unlimited is the -1 sentinel.
func (s *Service) ContactLimit(ctx context.Context, ownerID uuid.UUID) (int, error) {
	sub, err := s.GetSubscription(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	return LimitsFor(effectivePlan(sub)).ContactLimit, nil
}

// checkAndResetQuota lazily resets the monthly counter once the reset date
// has passed. Reports whether the row changed. A missing reset date counts
// as due.
func checkAndResetQuota(sub *models.Subscription, now time.Time) bool {
	if sub.AIRequestsResetDate != nil && now.Before(*sub.AIRequestsResetDate) {
		return false
	}
	reset := firstOfNextMonth(now)
	sub.AIRequestsUsed = 0
	sub.AIRequestsResetDate = &reset
	return true
}

// CanUseAI resets the monthly counter if due, then reports whether another
// AI request fits the plan quota.
func (s *Service) CanUseAI(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	allowed := false
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sub, txErr := repo.FindByOwnerID(ctx, ownerID)
		if txErr != nil {
			if errors.Is(txErr, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
			}
			return txErr
		}
		if checkAndResetQuota(sub, s.now()) {
			if txErr := repo.UpdateSubscription(ctx, sub); txErr != nil {
				return txErr
			}
		}
		limit := LimitsFor(effectivePlan(sub)).AIRequestLimit
		allowed = limit == Unlimited || sub.AIRequestsUsed < limit
		return nil
	})
	return allowed, err
}

// IncrementAIUsage bumps the usage counter. Call after a successful quota
// check and a successful AI request.
func (s *Service) IncrementAIUsage(ctx context.Context, ownerID uuid.UUID) error {
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sub, err := repo.FindByOwnerID(ctx, ownerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
			}
			return err
		}
		sub.AIRequestsUsed++
		return repo.UpdateSubscription(ctx, sub)
	})
}

// ResetDueQuotas rolls the monthly counter for every subscription whose
// reset date has passed, so quotas stay fresh even for accounts with no
// traffic. Returns the number of rows reset.
func (s *Service) ResetDueQuotas(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.repo.ListQuotaResetDue(ctx, now)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list quota reset candidates")
	}
	reset := 0
	for i := range due {
		sub := &due[i]
		if !checkAndResetQuota(sub, now) {
			continue
		}
		if err := s.repo.UpdateSubscription(ctx, sub); err != nil {
			return reset, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist quota reset")
		}
		reset++
	}
	return reset, nil
}

// Usage reports the current AI counter and the plan limit.
func (s *Service) Usage(ctx context.Context, ownerID uuid.UUID) (used, limit int, err error) {
	sub, err := s.GetSubscription(ctx, ownerID)
	if err != nil {
		return 0, 0, err
	}
	if checkAndResetQuota(sub, s.now()) {
		if err := s.repo.UpdateSubscription(ctx, sub); err != nil {
			return 0, 0, err
		}
	}
	return sub.AIRequestsUsed, LimitsFor(effectivePlan(sub)).AIRequestLimit, nil
}

// ChangePlan moves the owner to a new plan and appends a history row.
// Same-plan changes are a no-op.
func (s *Service) ChangePlan(ctx context.Context, ownerID uuid.UUID, plan enums.SubscriptionPlan, reason string) (*models.Subscription, error) {
	if !plan.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid plan")
	}
	var out *models.Subscription
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sub, txErr := repo.FindByOwnerID(ctx, ownerID)
		if txErr != nil {
			if errors.Is(txErr, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
			}
			return txErr
		}
		if sub.Plan == plan {
			out = sub
			return nil
		}
		if txErr := appendHistory(ctx, repo, sub, plan, reason); txErr != nil {
			return txErr
		}
		sub.Plan = plan
		if txErr := repo.UpdateSubscription(ctx, sub); txErr != nil {
			return txErr
		}
		out = sub
		return nil
	})
	return out, err
}

func appendHistory(ctx context.Context, repo Repository, sub *models.Subscription, to enums.SubscriptionPlan, reason string) error {
	entry := &models.SubscriptionHistory{
		OwnerID:        sub.OwnerID,
		SubscriptionID: sub.ID,
		FromPlan:       sub.Plan,
		ToPlan:         to,
	}
	if reason != "" {
		entry.Reason = &reason
	}
	return repo.CreateHistory(ctx, entry)
}

// StartCheckout creates a Stripe checkout session for a paid plan and
// returns its hosted URL.
func (s *Service) StartCheckout(ctx context.Context, ownerID uuid.UUID, plan enums.SubscriptionPlan) (string, error) {
	if !plan.IsValid() || plan == enums.PlanFree {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "checkout requires a paid plan")
	}
	sub, err := s.GetSubscription(ctx, ownerID)
	if err != nil {
		return "", err
	}
	priceID, ok := s.prices.PriceID(plan.String())
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "no price configured for plan")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(ownerID.String()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		Metadata: map[string]string{
			"owner_id": ownerID.String(),
			"plan":     plan.String(),
		},
	}
	if sub.StripeCustomerID != nil {
		params.Customer = sub.StripeCustomerID
	}

	session, err := s.stripeAPI.CreateCheckoutSession(ctx, params)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	return session.URL, nil
}

// CancelSubscription schedules the Stripe subscription to lapse at period
// end. Accounts without a Stripe subscription drop to the free plan at once.
func (s *Service) CancelSubscription(ctx context.Context, ownerID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.GetSubscription(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if sub.StripeSubscriptionID == nil || *sub.StripeSubscriptionID == "" {
		if sub.Plan == enums.PlanFree {
			return sub, nil
		}
		return s.ChangePlan(ctx, ownerID, enums.PlanFree, "cancelled")
	}

	if _, err := s.stripeAPI.SetCancelAtPeriodEnd(ctx, *sub.StripeSubscriptionID, true); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel stripe subscription")
	}
	sub.CancelAtPeriodEnd = true
	if err := s.repo.UpdateSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) ListHistory(ctx context.Context, ownerID uuid.UUID) ([]models.SubscriptionHistory, error) {
	return s.repo.ListHistory(ctx, ownerID)
}

func (s *Service) ListInvoices(ctx context.Context, ownerID uuid.UUID) ([]models.SubscriptionInvoice, error) {
	sub, err := s.GetSubscription(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSubscriptionInvoices(ctx, sub.ID)
}

func firstOfNextMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}
