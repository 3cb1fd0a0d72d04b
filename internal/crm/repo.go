package crm

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	"github.com/tallyhq/tallycrm-backend/pkg/enums"
	"github.com/tallyhq/tallycrm-backend/pkg/pagination"
)

// Repository exposes persistence for contacts, companies, pipelines,
// deals, tasks and activities. Every query is scoped by owner.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateContact(ctx context.Context, contact *models.Contact) error
	FindContactByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Contact, error)
	ListContacts(ctx context.Context, params ListContactsQuery) ([]models.Contact, *pagination.Cursor, error)
	UpdateContact(ctx context.Context, contact *models.Contact) error
	DeleteContact(ctx context.Context, ownerID, id uuid.UUID) error
	CountContacts(ctx context.Context, ownerID uuid.UUID) (int64, error)

	CreateCompany(ctx context.Context, company *models.Company) error
	FindCompanyByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Company, error)
	ListCompanies(ctx context.Context, params ListCompaniesQuery) ([]models.Company, *pagination.Cursor, error)
	UpdateCompany(ctx context.Context, company *models.Company) error
	DeleteCompany(ctx context.Context, ownerID, id uuid.UUID) error

	CreatePipeline(ctx context.Context, pipeline *models.Pipeline) error
	CreateStages(ctx context.Context, stages []models.Stage) error
	FindPipelineByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Pipeline, error)
	ListPipelines(ctx context.Context, ownerID uuid.UUID) ([]models.Pipeline, error)
	ListStagesByPipeline(ctx context.Context, pipelineID uuid.UUID) ([]models.Stage, error)
	FindStageByID(ctx context.Context, id uuid.UUID) (*models.Stage, error)

	CreateDeal(ctx context.Context, deal *models.Deal) error
	FindDealByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Deal, error)
	ListDeals(ctx context.Context, params ListDealsQuery) ([]models.Deal, *pagination.Cursor, error)
	UpdateDeal(ctx context.Context, deal *models.Deal) error
	DeleteDeal(ctx context.Context, ownerID, id uuid.UUID) error

	CreateTask(ctx context.Context, task *models.Task) error
	FindTaskByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Task, error)
	ListTasks(ctx context.Context, params ListTasksQuery) ([]models.Task, *pagination.Cursor, error)
	UpdateTask(ctx context.Context, task *models.Task) error
	DeleteTask(ctx context.Context, ownerID, id uuid.UUID) error

	CreateActivity(ctx context.Context, activity *models.Activity) error
	ListActivities(ctx context.Context, params ListActivitiesQuery) ([]models.Activity, *pagination.Cursor, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a CRM repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// ListContactsQuery configures contact list queries.
type ListContactsQuery struct {
	OwnerID   uuid.UUID
	Limit     int
	Cursor    *pagination.Cursor
	CompanyID *uuid.UUID
	Search    string
}

func (r *repository) CreateContact(ctx context.Context, contact *models.Contact) error {
	return r.db.WithContext(ctx).Create(contact).Error
}

func (r *repository) FindContactByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Contact, error) {
	var contact models.Contact
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		First(&contact).Error
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

func (r *repository) ListContacts(ctx context.Context, params ListContactsQuery) ([]models.Contact, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Contact{}).Where("owner_id = ?", params.OwnerID)
	if params.CompanyID != nil {
		query = query.Where("company_id = ?", *params.CompanyID)
	}
	if params.Search != "" {
		like := "%" + strings.ToLower(params.Search) + "%"
		query = query.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var contacts []models.Contact
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&contacts).Error; err != nil {
		return nil, nil, err
	}

	if len(contacts) > limit {
		next := contacts[limit]
		contacts = contacts[:limit]
		return contacts, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return contacts, nil, nil
}

func (r *repository) UpdateContact(ctx context.Context, contact *models.Contact) error {
	return r.db.WithContext(ctx).Save(contact).Error
}

func (r *repository) DeleteContact(ctx context.Context, ownerID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		Delete(&models.Contact{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) CountContacts(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Contact{}).
		Where("owner_id = ?", ownerID).
		Count(&count).Error
	return count, err
}

// ListCompaniesQuery configures company list queries.
type ListCompaniesQuery struct {
	OwnerID uuid.UUID
	Limit   int
	Cursor  *pagination.Cursor
	Search  string
}

func (r *repository) CreateCompany(ctx context.Context, company *models.Company) error {
	return r.db.WithContext(ctx).Create(company).Error
}

func (r *repository) FindCompanyByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Company, error) {
	var company models.Company
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		First(&company).Error
	if err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *repository) ListCompanies(ctx context.Context, params ListCompaniesQuery) ([]models.Company, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Company{}).Where("owner_id = ?", params.OwnerID)
	if params.Search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(params.Search)+"%")
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var companies []models.Company
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&companies).Error; err != nil {
		return nil, nil, err
	}

	if len(companies) > limit {
		next := companies[limit]
		companies = companies[:limit]
		return companies, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return companies, nil, nil
}

func (r *repository) UpdateCompany(ctx context.Context, company *models.Company) error {
	return r.db.WithContext(ctx).Save(company).Error
}

func (r *repository) DeleteCompany(ctx context.Context, ownerID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		Delete(&models.Company{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) CreatePipeline(ctx context.Context, pipeline *models.Pipeline) error {
	return r.db.WithContext(ctx).Create(pipeline).Error
}

func (r *repository) CreateStages(ctx context.Context, stages []models.Stage) error {
	if len(stages) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&stages).Error
}

func (r *repository) FindPipelineByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Pipeline, error) {
	var pipeline models.Pipeline
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		First(&pipeline).Error
	if err != nil {
		return nil, err
	}
	return &pipeline, nil
}

func (r *repository) ListPipelines(ctx context.Context, ownerID uuid.UUID) ([]models.Pipeline, error) {
	var pipelines []models.Pipeline
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&pipelines).Error
	if err != nil {
		return nil, err
	}
	return pipelines, nil
}

func (r *repository) ListStagesByPipeline(ctx context.Context, pipelineID uuid.UUID) ([]models.Stage, error) {
	var stages []models.Stage
	err := r.db.WithContext(ctx).
		Where("pipeline_id = ?", pipelineID).
		Order("position ASC").
		Find(&stages).Error
	if err != nil {
		return nil, err
	}
	return stages, nil
}

func (r *repository) FindStageByID(ctx context.Context, id uuid.UUID) (*models.Stage, error) {
	var stage models.Stage
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&stage).Error
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

// ListDealsQuery configures deal list queries.
type ListDealsQuery struct {
	OwnerID    uuid.UUID
	Limit      int
	Cursor     *pagination.Cursor
	Status     *enums.DealStatus
	PipelineID *uuid.UUID
	StageID    *uuid.UUID
}

func (r *repository) CreateDeal(ctx context.Context, deal *models.Deal) error {
	return r.db.WithContext(ctx).Create(deal).Error
}

func (r *repository) FindDealByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Deal, error) {
	var deal models.Deal
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		First(&deal).Error
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

func (r *repository) ListDeals(ctx context.Context, params ListDealsQuery) ([]models.Deal, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Deal{}).Where("owner_id = ?", params.OwnerID)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.PipelineID != nil {
		query = query.Where("pipeline_id = ?", *params.PipelineID)
	}
	if params.StageID != nil {
		query = query.Where("stage_id = ?", *params.StageID)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var deals []models.Deal
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&deals).Error; err != nil {
		return nil, nil, err
	}

	if len(deals) > limit {
		next := deals[limit]
		deals = deals[:limit]
		return deals, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return deals, nil, nil
}

func (r *repository) UpdateDeal(ctx context.Context, deal *models.Deal) error {
	return r.db.WithContext(ctx).Save(deal).Error
}

func (r *repository) DeleteDeal(ctx context.Context, ownerID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		Delete(&models.Deal{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListTasksQuery configures task list queries.
type ListTasksQuery struct {
	OwnerID   uuid.UUID
	Limit     int
	Cursor    *pagination.Cursor
	Completed *bool
	DealID    *uuid.UUID
	ContactID *uuid.UUID
}

func (r *repository) CreateTask(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *repository) FindTaskByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Task, error) {
	var task models.Task
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *repository) ListTasks(ctx context.Context, params ListTasksQuery) ([]models.Task, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Task{}).Where("owner_id = ?", params.OwnerID)
	if params.Completed != nil {
		query = query.Where("completed = ?", *params.Completed)
	}
	if params.DealID != nil {
		query = query.Where("deal_id = ?", *params.DealID)
	}
	if params.ContactID != nil {
		query = query.Where("contact_id = ?", *params.ContactID)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var tasks []models.Task
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&tasks).Error; err != nil {
		return nil, nil, err
	}

	if len(tasks) > limit {
		next := tasks[limit]
		tasks = tasks[:limit]
		return tasks, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return tasks, nil, nil
}

func (r *repository) UpdateTask(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Save(task).Error
}

func (r *repository) DeleteTask(ctx context.Context, ownerID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		Delete(&models.Task{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListActivitiesQuery configures activity list queries.
type ListActivitiesQuery struct {
	OwnerID   uuid.UUID
	Limit     int
	Cursor    *pagination.Cursor
	ContactID *uuid.UUID
	CompanyID *uuid.UUID
	DealID    *uuid.UUID
}

func (r *repository) CreateActivity(ctx context.Context, activity *models.Activity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}

func (r *repository) ListActivities(ctx context.Context, params ListActivitiesQuery) ([]models.Activity, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Activity{}).Where("owner_id = ?", params.OwnerID)
	if params.ContactID != nil {
		query = query.Where("contact_id = ?", *params.ContactID)
	}
	if params.CompanyID != nil {
		query = query.Where("company_id = ?", *params.CompanyID)
	}
	if params.DealID != nil {
		query = query.Where("deal_id = ?", *params.DealID)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var activities []models.Activity
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&activities).Error; err != nil {
		return nil, nil, err
	}

	if len(activities) > limit {
		next := activities[limit]
		activities = activities[:limit]
		return activities, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return activities, nil, nil
}
