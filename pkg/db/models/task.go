package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tallyhq/tallycrm-backend/pkg/enums"
)

// Task is a scheduled to-do linked to CRM records.
type Task struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID   uuid.UUID  `gorm:"column:owner_id;type:uuid;not null;index"`
	ContactID *uuid.UUID `gorm:"column:contact_id;type:uuid"`
	CompanyID *uuid.UUID `gorm:"column:company_id;type:uuid"`
	DealID    *uuid.UUID `gorm:"column:deal_id;type:uuid"`

	Title       string  `gorm:"column:title;not null"`
	Description *string `gorm:"column:description"`

	Type     enums.TaskType     `gorm:"column:type;not null;default:'todo'"`
	Priority enums.TaskPriority `gorm:"column:priority;not null;default:'medium'"`

	DueDate     *time.Time `gorm:"column:due_date"`
	Completed   bool       `gorm:"column:completed;not null;default:false"`
	CompletedAt *time.Time `gorm:"column:completed_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
