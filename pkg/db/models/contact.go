package models

import (
	"time"

	"github.com/google/uuid"
)

// Contact is a person record, optionally linked to a company.
type Contact struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID   uuid.UUID  `gorm:"column:owner_id;type:uuid;not null;index"`
	CompanyID *uuid.UUID `gorm:"column:company_id;type:uuid;index"`

	FirstName string  `gorm:"column:first_name;not null"`
	LastName  string  `gorm:"column:last_name;not null"`
	Position  *string `gorm:"column:position"`

	Email  *string `gorm:"column:email"`
	Phone  *string `gorm:"column:phone"`
	Mobile *string `gorm:"column:mobile"`

	Address    *string `gorm:"column:address"`
	City       *string `gorm:"column:city"`
	Country    *string `gorm:"column:country"`
	PostalCode *string `gorm:"column:postal_code"`

	Birthday *time.Time `gorm:"column:birthday;type:date"`

	Notes *string `gorm:"column:notes"`
	Tags  *string `gorm:"column:tags"`

	LinkedIn *string `gorm:"column:linkedin"`
	Twitter  *string `gorm:"column:twitter"`

	IsActive bool `gorm:"column:is_active;not null;default:true"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// FullName joins the contact's name parts.
func (c *Contact) FullName() string {
	if c.FirstName == "" {
		return c.LastName
	}
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}
