package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tallycrm-backend/pkg/enums"
)

// Subscription holds the billing state for one account, one row per owner.
type Subscription struct {
	ID      uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID uuid.UUID `gorm:"column:owner_id;type:uuid;not null;uniqueIndex"`

	Plan   enums.SubscriptionPlan   `gorm:"column:plan;not null;default:'free'"`
	Status enums.SubscriptionStatus `gorm:"column:status;not null;default:'active'"`

	StripeSubscriptionID *string `gorm:"column:stripe_subscription_id;index"`
	StripeCustomerID     *string `gorm:"column:stripe_customer_id"`
	StripePriceID        *string `gorm:"column:stripe_price_id"`

	CurrentPeriodStart *time.Time `gorm:"column:current_period_start"`
	CurrentPeriodEnd   *time.Time `gorm:"column:current_period_end"`
	CancelAtPeriodEnd  bool       `gorm:"column:cancel_at_period_end;not null;default:false"`

	// Monthly AI usage counter; reset whenever the reset date has passed.
	AIRequestsUsed      int        `gorm:"column:ai_requests_used;not null;default:0"`
	AIRequestsResetDate *time.Time `gorm:"column:ai_requests_reset_date;type:date"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// SubscriptionHistory is an append-only record of plan transitions.
type SubscriptionHistory struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID        uuid.UUID `gorm:"column:owner_id;type:uuid;not null;index"`
	SubscriptionID uuid.UUID `gorm:"column:subscription_id;type:uuid;not null;index"`

	FromPlan enums.SubscriptionPlan `gorm:"column:from_plan;not null"`
	ToPlan   enums.SubscriptionPlan `gorm:"column:to_plan;not null"`
	Reason   *string                `gorm:"column:reason"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// SubscriptionInvoice mirrors a billing-provider invoice for display.
type SubscriptionInvoice struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SubscriptionID uuid.UUID `gorm:"column:subscription_id;type:uuid;not null;index"`

	StripeInvoiceID string `gorm:"column:stripe_invoice_id;not null;unique"`

	AmountDue  decimal.Decimal `gorm:"column:amount_due;type:numeric(10,2);not null"`
	AmountPaid decimal.Decimal `gorm:"column:amount_paid;type:numeric(10,2);not null"`
	Currency   enums.Currency  `gorm:"column:currency;not null;default:'EUR'"`

	Status string `gorm:"column:status;not null"`

	InvoicePDF       *string `gorm:"column:invoice_pdf"`
	HostedInvoiceURL *string `gorm:"column:hosted_invoice_url"`

	PeriodStart *time.Time `gorm:"column:period_start"`
	PeriodEnd   *time.Time `gorm:"column:period_end"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
