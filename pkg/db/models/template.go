package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tallyhq/tallycrm-backend/pkg/enums"
)

// DocumentTemplate carries per-tenant branding for invoice and offer documents.
type DocumentTemplate struct {
	ID      uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID uuid.UUID `gorm:"column:owner_id;type:uuid;not null;index"`

	Name string             `gorm:"column:name;not null"`
	Kind enums.TemplateKind `gorm:"column:kind;not null"`

	CompanyName    *string `gorm:"column:company_name"`
	CompanyAddress *string `gorm:"column:company_address"`
	CompanyEmail   *string `gorm:"column:company_email"`
	CompanyPhone   *string `gorm:"column:company_phone"`
	TaxID          *string `gorm:"column:tax_id"`
	LogoURL        *string `gorm:"column:logo_url"`
	AccentColor    *string `gorm:"column:accent_color"`
	FooterText     *string `gorm:"column:footer_text"`

	IsDefault bool `gorm:"column:is_default;not null;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// EmailTemplate is a reusable message body with {{placeholder}} slots.
type EmailTemplate struct {
	ID      uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID uuid.UUID `gorm:"column:owner_id;type:uuid;not null;index"`

	Name    string `gorm:"column:name;not null"`
	Subject string `gorm:"column:subject;not null"`
	Body    string `gorm:"column:body;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
