package templates

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	"github.com/tallyhq/tallycrm-backend/pkg/enums"
)

// Repository persists document and email templates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateDocumentTemplate(ctx context.Context, tpl *models.DocumentTemplate) error
	FindDocumentTemplateByID(ctx context.Context, ownerID, id uuid.UUID) (*models.DocumentTemplate, error)
	ListDocumentTemplates(ctx context.Context, ownerID uuid.UUID, kind *enums.TemplateKind) ([]models.DocumentTemplate, error)
	UpdateDocumentTemplate(ctx context.Context, tpl *models.DocumentTemplate) error
	DeleteDocumentTemplate(ctx context.Context, ownerID, id uuid.UUID) error
	ClearDefault(ctx context.Context, ownerID uuid.UUID, kind enums.TemplateKind) error

	CreateEmailTemplate(ctx context.Context, tpl *models.EmailTemplate) error
	FindEmailTemplateByID(ctx context.Context, ownerID, id uuid.UUID) (*models.EmailTemplate, error)
	ListEmailTemplates(ctx context.Context, ownerID uuid.UUID) ([]models.EmailTemplate, error)
	UpdateEmailTemplate(ctx context.Context, tpl *models.EmailTemplate) error
	DeleteEmailTemplate(ctx context.Context, ownerID, id uuid.UUID) error
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

func (r *repository) CreateDocumentTemplate(ctx context.Context, tpl *models.DocumentTemplate) error {
	return r.db.WithContext(ctx).Create(tpl).Error
}

func (r *repository) FindDocumentTemplateByID(ctx context.Context, ownerID, id uuid.UUID) (*models.DocumentTemplate, error) {
	var tpl models.DocumentTemplate
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		First(&tpl).Error
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *repository) ListDocumentTemplates(ctx context.Context, ownerID uuid.UUID, kind *enums.TemplateKind) ([]models.DocumentTemplate, error) {
	query := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if kind != nil {
		query = query.Where("kind = ?", *kind)
	}
	var tpls []models.DocumentTemplate
	if err := query.Order("created_at DESC").Find(&tpls).Error; err != nil {
		return nil, err
	}
	return tpls, nil
}

func (r *repository) UpdateDocumentTemplate(ctx context.Context, tpl *models.DocumentTemplate) error {
	return r.db.WithContext(ctx).Save(tpl).Error
}

func (r *repository) DeleteDocumentTemplate(ctx context.Context, ownerID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		Delete(&models.DocumentTemplate{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ClearDefault drops the default flag from every template of the kind so a
// new default can be set.
func (r *repository) ClearDefault(ctx context.Context, ownerID uuid.UUID, kind enums.TemplateKind) error {
	return r.db.WithContext(ctx).
		Model(&models.DocumentTemplate{}).
		Where("owner_id = ? AND kind = ?", ownerID, kind).
		Update("is_default", false).Error
}

func (r *repository) CreateEmailTemplate(ctx context.Context, tpl *models.EmailTemplate) error {
	return r.db.WithContext(ctx).Create(tpl).Error
}

func (r *repository) FindEmailTemplateByID(ctx context.Context, ownerID, id uuid.UUID) (*models.EmailTemplate, error) {
	var tpl models.EmailTemplate
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		First(&tpl).Error
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *repository) ListEmailTemplates(ctx context.Context, ownerID uuid.UUID) ([]models.EmailTemplate, error) {
	var tpls []models.EmailTemplate
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&tpls).Error
	if err != nil {
		return nil, err
	}
	return tpls, nil
}

func (r *repository) UpdateEmailTemplate(ctx context.Context, tpl *models.EmailTemplate) error {
	return r.db.WithContext(ctx).Save(tpl).Error
}

func (r *repository) DeleteEmailTemplate(ctx context.Context, ownerID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		Delete(&models.EmailTemplate{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
