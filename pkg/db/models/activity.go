package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tallyhq/tallycrm-backend/pkg/enums"
)

// Activity is an append-only log entry attached to CRM records.
type Activity struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID   uuid.UUID  `gorm:"column:owner_id;type:uuid;not null;index"`
	ContactID *uuid.UUID `gorm:"column:contact_id;type:uuid"`
	CompanyID *uuid.UUID `gorm:"column:company_id;type:uuid"`
	DealID    *uuid.UUID `gorm:"column:deal_id;type:uuid"`

	Type        enums.ActivityType `gorm:"column:type;not null"`
	Title       string             `gorm:"column:title;not null"`
	Description *string            `gorm:"column:description"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
