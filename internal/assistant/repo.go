package assistant

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
)

// ContextCounts is a snapshot of the tenant's CRM footprint, included in the
// system prompt so the model can answer questions about the account.
type ContextCounts struct {
	Contacts  int64
	Companies int64
	Deals     int64
	OpenTasks int64
	Invoices  int64
}

// Repository persists assistant conversations and reads CRM context.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateConversation(ctx context.Context, conversation *models.Conversation) error
	FindConversationByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Conversation, error)
	ListConversations(ctx context.Context, ownerID uuid.UUID) ([]models.Conversation, error)
	DeleteConversation(ctx context.Context, ownerID, id uuid.UUID) error
	TouchConversation(ctx context.Context, id uuid.UUID) error

	CreateMessage(ctx context.Context, message *models.Message) error
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)

	ContextCounts(ctx context.Context, ownerID uuid.UUID) (ContextCounts, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateConversation(ctx context.Context, conversation *models.Conversation) error {
	return r.db.WithContext(ctx).Create(conversation).Error
}

func (r *repository) FindConversationByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		First(&conversation).Error
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (r *repository) ListConversations(ctx context.Context, ownerID uuid.UUID) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("updated_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

func (r *repository) DeleteConversation(ctx context.Context, ownerID, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("owner_id = ? AND id = ?", ownerID, id).
			Delete(&models.Conversation{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("conversation_id = ?", id).Delete(&models.Message{}).Error
	})
}

func (r *repository) TouchConversation(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", gorm.Expr("CURRENT_TIMESTAMP")).Error
}

func (r *repository) CreateMessage(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *repository) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *repository) ContextCounts(ctx context.Context, ownerID uuid.UUID) (ContextCounts, error) {
	var counts ContextCounts
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.Contact{}).Where("owner_id = ?", ownerID).Count(&counts.Contacts).Error; err != nil {
		return counts, err
	}
	if err := db.Model(&models.Company{}).Where("owner_id = ?", ownerID).Count(&counts.Companies).Error; err != nil {
		return counts, err
	}
	if err := db.Model(&models.Deal{}).Where("owner_id = ?", ownerID).Count(&counts.Deals).Error; err != nil {
		return counts, err
	}
	if err := db.Model(&models.Task{}).Where("owner_id = ? AND completed = ?", ownerID, false).Count(&counts.OpenTasks).Error; err != nil {
		return counts, err
	}
	if err := db.Model(&models.Invoice{}).Where("owner_id = ?", ownerID).Count(&counts.Invoices).Error; err != nil {
		return counts, err
	}
	return counts, nil
}
