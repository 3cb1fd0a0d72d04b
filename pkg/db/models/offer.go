package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tallycrm-backend/pkg/enums"
)

// Offer is a quote that can be converted into an invoice once accepted.
type Offer struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID   uuid.UUID  `gorm:"column:owner_id;type:uuid;not null;index;uniqueIndex:idx_offers_owner_number"`
	ContactID *uuid.UUID `gorm:"column:contact_id;type:uuid"`
	CompanyID *uuid.UUID `gorm:"column:company_id;type:uuid"`

	Number     string    `gorm:"column:number;not null;uniqueIndex:idx_offers_owner_number"`
	OfferDate  time.Time `gorm:"column:offer_date;type:date;not null"`
	ValidUntil time.Time `gorm:"column:valid_until;type:date;not null"`

	ClientName    string  `gorm:"column:client_name;not null"`
	ClientEmail   *string `gorm:"column:client_email"`
	ClientAddress *string `gorm:"column:client_address"`

	Currency  enums.Currency  `gorm:"column:currency;not null;default:'EUR'"`
	Subtotal  decimal.Decimal `gorm:"column:subtotal;type:numeric(15,2);not null"`
	TaxRate   decimal.Decimal `gorm:"column:tax_rate;type:numeric(5,2);not null"`
	TaxAmount decimal.Decimal `gorm:"column:tax_amount;type:numeric(15,2);not null"`
	Total     decimal.Decimal `gorm:"column:total_amount;type:numeric(15,2);not null"`

	Status enums.OfferStatus `gorm:"column:status;not null;default:'draft';index"`

	Notes *string `gorm:"column:notes"`
	Terms *string `gorm:"column:terms"`

	TemplateID *uuid.UUID `gorm:"column:template_id;type:uuid"`

	// Set once the offer has been converted; conversion is one-way.
	ConvertedInvoiceID *uuid.UUID `gorm:"column:converted_invoice_id;type:uuid"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// OfferItem is a single offer line; total is quantity times unit price.
type OfferItem struct {
	ID      uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OfferID uuid.UUID `gorm:"column:offer_id;type:uuid;not null;index"`

	Description string          `gorm:"column:description;not null"`
	Quantity    decimal.Decimal `gorm:"column:quantity;type:numeric(10,2);not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(15,2);not null"`
	Total       decimal.Decimal `gorm:"column:total;type:numeric(15,2);not null"`

	Position int `gorm:"column:position;not null;default:0"`
}
