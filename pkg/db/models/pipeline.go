package models

import (
	"time"

	"github.com/google/uuid"
)

// Pipeline groups the stages a deal moves through.
type Pipeline struct {
	ID      uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID uuid.UUID `gorm:"column:owner_id;type:uuid;not null;index"`

	Name        string  `gorm:"column:name;not null"`
	Description *string `gorm:"column:description"`
	IsDefault   bool    `gorm:"column:is_default;not null;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Stage is one step in a pipeline with a win probability.
type Stage struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PipelineID uuid.UUID `gorm:"column:pipeline_id;type:uuid;not null;index"`

	Name        string `gorm:"column:name;not null"`
	Probability int    `gorm:"column:probability;not null;default:0"`
	Position    int    `gorm:"column:position;not null;default:0"`
}
