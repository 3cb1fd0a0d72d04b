package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tallycrm-backend/pkg/enums"
)

// Deal is a sales opportunity tied to a pipeline stage.
type Deal struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID   uuid.UUID  `gorm:"column:owner_id;type:uuid;not null;index"`
	ContactID *uuid.UUID `gorm:"column:contact_id;type:uuid"`
	CompanyID *uuid.UUID `gorm:"column:company_id;type:uuid"`

	Name        string  `gorm:"column:name;not null"`
	Description *string `gorm:"column:description"`

	Value    decimal.Decimal `gorm:"column:value;type:numeric(15,2);not null"`
	Currency enums.Currency  `gorm:"column:currency;not null;default:'EUR'"`

	PipelineID *uuid.UUID `gorm:"column:pipeline_id;type:uuid"`
	StageID    *uuid.UUID `gorm:"column:stage_id;type:uuid"`

	Status      enums.DealStatus `gorm:"column:status;not null;default:'open'"`
	Probability int              `gorm:"column:probability;not null;default:0"`

	ExpectedCloseDate *time.Time `gorm:"column:expected_close_date;type:date"`
	ActualCloseDate   *time.Time `gorm:"column:actual_close_date;type:date"`
	LostReason        *string    `gorm:"column:lost_reason"`

	Notes *string `gorm:"column:notes"`
	Tags  *string `gorm:"column:tags"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
