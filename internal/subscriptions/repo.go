package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
)

// Repository persists subscriptions, their history and mirrored invoices.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateSubscription(ctx context.Context, sub *models.Subscription) error
	FindByOwnerID(ctx context.Context, ownerID uuid.UUID) (*models.Subscription, error)
	FindByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
	UpdateSubscription(ctx context.Context, sub *models.Subscription) error
	ListQuotaResetDue(ctx context.Context, asOf time.Time) ([]models.Subscription, error)

	CreateHistory(ctx context.Context, entry *models.SubscriptionHistory) error
	ListHistory(ctx context.Context, ownerID uuid.UUID) ([]models.SubscriptionHistory, error)

	CreateSubscriptionInvoice(ctx context.Context, invoice *models.SubscriptionInvoice) error
	FindSubscriptionInvoiceByStripeID(ctx context.Context, stripeInvoiceID string) (*models.SubscriptionInvoice, error)
	ListSubscriptionInvoices(ctx context.Context, subscriptionID uuid.UUID) ([]models.SubscriptionInvoice, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) FindByOwnerID(ctx context.Context, ownerID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// FindByStripeSubscriptionID returns nil, nil when no row carries the
// Stripe identifier; webhook handlers treat that as an ignorable event.
func (r *repository) FindByStripeSubscriptionID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) UpdateSubscription(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

// ListQuotaResetDue returns subscriptions whose monthly counter should roll,
// including rows that never had a reset date set.
func (r *repository) ListQuotaResetDue(ctx context.Context, asOf time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("ai_requests_reset_date IS NULL OR ai_requests_reset_date <= ?", asOf).
		Order("owner_id ASC").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) CreateHistory(ctx context.Context, entry *models.SubscriptionHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListHistory(ctx context.Context, ownerID uuid.UUID) ([]models.SubscriptionHistory, error) {
	var entries []models.SubscriptionHistory
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) CreateSubscriptionInvoice(ctx context.Context, invoice *models.SubscriptionInvoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) FindSubscriptionInvoiceByStripeID(ctx context.Context, stripeInvoiceID string) (*models.SubscriptionInvoice, error) {
	var invoice models.SubscriptionInvoice
	err := r.db.WithContext(ctx).
		Where("stripe_invoice_id = ?", stripeInvoiceID).
		First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) ListSubscriptionInvoices(ctx context.Context, subscriptionID uuid.UUID) ([]models.SubscriptionInvoice, error) {
	var invoices []models.SubscriptionInvoice
	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at DESC").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}
