package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tallycrm-backend/pkg/enums"
)

// Payment records money received, matched to at most one invoice.
//
// Invariant: IsMatched implies InvoiceID is set. A matched payment is
// immutable apart from the match link itself.
type Payment struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID   uuid.UUID  `gorm:"column:owner_id;type:uuid;not null;index"`
	InvoiceID *uuid.UUID `gorm:"column:invoice_id;type:uuid;index"`

	PaymentDate time.Time       `gorm:"column:payment_date;type:date;not null"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(15,2);not null"`
	Currency    enums.Currency  `gorm:"column:currency;not null;default:'EUR'"`

	Method enums.PaymentMethod `gorm:"column:method;not null"`

	StripePaymentIntentID *string `gorm:"column:stripe_payment_intent_id"`
	StripeChargeID        *string `gorm:"column:stripe_charge_id"`

	Reference *string `gorm:"column:reference"`
	Notes     *string `gorm:"column:notes"`

	IsMatched bool `gorm:"column:is_matched;not null;default:false;index"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
