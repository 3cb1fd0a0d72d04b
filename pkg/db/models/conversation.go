package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tallyhq/tallycrm-backend/pkg/enums"
)

// Conversation is an assistant chat thread scoped to one account.
type Conversation struct {
	ID      uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID uuid.UUID `gorm:"column:owner_id;type:uuid;not null;index"`

	Title string `gorm:"column:title;not null;default:''"`

	Messages []Message `gorm:"foreignKey:ConversationID"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ConversationID uuid.UUID `gorm:"column:conversation_id;type:uuid;not null;index"`

	Role    enums.MessageRole `gorm:"column:role;not null"`
	Content string            `gorm:"column:content;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
