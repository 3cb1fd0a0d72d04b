package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account holder; every CRM row is scoped to one user (tenant).
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string    `gorm:"column:email;not null;unique"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	FirstName    string    `gorm:"column:first_name;not null"`
	LastName     string    `gorm:"column:last_name;not null"`
	CompanyName  *string   `gorm:"column:company_name"`

	// Per-tenant Resend credentials; global config is the fallback.
	ResendAPIKey    *string `gorm:"column:resend_api_key"`
	ResendFromEmail *string `gorm:"column:resend_from_email"`
	ResendFromName  *string `gorm:"column:resend_from_name"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// FullName joins the user's name parts for display and email headers.
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// HasResendConfigured reports whether tenant-level email credentials exist.
func (u *User) HasResendConfigured() bool {
	return u.ResendAPIKey != nil && *u.ResendAPIKey != "" &&
		u.ResendFromEmail != nil && *u.ResendFromEmail != ""
}
