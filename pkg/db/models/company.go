package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Company is an organization record in the CRM.
type Company struct {
	ID      uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID uuid.UUID `gorm:"column:owner_id;type:uuid;not null;index"`

	Name          string           `gorm:"column:name;not null"`
	Website       *string          `gorm:"column:website"`
	Industry      *string          `gorm:"column:industry"`
	Employees     *int             `gorm:"column:employees"`
	AnnualRevenue *decimal.Decimal `gorm:"column:annual_revenue;type:numeric(15,2)"`

	Phone *string `gorm:"column:phone"`
	Email *string `gorm:"column:email"`

	Address    *string `gorm:"column:address"`
	City       *string `gorm:"column:city"`
	Country    *string `gorm:"column:country"`
	PostalCode *string `gorm:"column:postal_code"`

	VATNumber *string `gorm:"column:vat_number"`

	Notes *string `gorm:"column:notes"`
	Tags  *string `gorm:"column:tags"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
