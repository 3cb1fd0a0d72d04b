package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tallycrm-backend/pkg/enums"
)

// Invoice is a billable document with line items and a payment lifecycle.
//
// Status and paid amount are kept in lockstep: status is "paid" exactly
// when paid_amount covers total_amount.
type Invoice struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID   uuid.UUID  `gorm:"column:owner_id;type:uuid;not null;index;uniqueIndex:idx_invoices_owner_number"`
	ContactID *uuid.UUID `gorm:"column:contact_id;type:uuid"`
	CompanyID *uuid.UUID `gorm:"column:company_id;type:uuid"`

	Number      string    `gorm:"column:number;not null;uniqueIndex:idx_invoices_owner_number"`
	InvoiceDate time.Time `gorm:"column:invoice_date;type:date;not null"`
	DueDate     time.Time `gorm:"column:due_date;type:date;not null"`

	// Client snapshot, kept for record keeping even if the contact changes.
	ClientName      string  `gorm:"column:client_name;not null"`
	ClientEmail     *string `gorm:"column:client_email"`
	ClientAddress   *string `gorm:"column:client_address"`
	ClientVATNumber *string `gorm:"column:client_vat_number"`

	Currency   enums.Currency  `gorm:"column:currency;not null;default:'EUR'"`
	Subtotal   decimal.Decimal `gorm:"column:subtotal;type:numeric(15,2);not null"`
	TaxRate    decimal.Decimal `gorm:"column:tax_rate;type:numeric(5,2);not null"`
	TaxAmount  decimal.Decimal `gorm:"column:tax_amount;type:numeric(15,2);not null"`
	Total      decimal.Decimal `gorm:"column:total_amount;type:numeric(15,2);not null"`
	PaidAmount decimal.Decimal `gorm:"column:paid_amount;type:numeric(15,2);not null"`

	Status enums.InvoiceStatus `gorm:"column:status;not null;default:'draft';index"`

	PaymentURL *string `gorm:"column:payment_url"`
	Notes      *string `gorm:"column:notes"`
	Terms      *string `gorm:"column:terms"`

	TemplateID *uuid.UUID `gorm:"column:template_id;type:uuid"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// BalanceDue is the amount still outstanding.
func (i *Invoice) BalanceDue() decimal.Decimal {
	return i.Total.Sub(i.PaidAmount)
}

// IsPaid reports whether the paid amount covers the total.
func (i *Invoice) IsPaid() bool {
	return i.PaidAmount.GreaterThanOrEqual(i.Total)
}

// InvoiceItem is a single invoice line; total is quantity times unit price.
type InvoiceItem struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID uuid.UUID `gorm:"column:invoice_id;type:uuid;not null;index"`

	Description string          `gorm:"column:description;not null"`
	Quantity    decimal.Decimal `gorm:"column:quantity;type:numeric(10,2);not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(15,2);not null"`
	Total       decimal.Decimal `gorm:"column:total;type:numeric(15,2);not null"`

	Position int `gorm:"column:position;not null;default:0"`
}
