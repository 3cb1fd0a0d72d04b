package crm

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	"github.com/tallyhq/tallycrm-backend/pkg/enums"
	pkgerrors "github.com/tallyhq/tallycrm-backend/pkg/errors"
	"github.com/tallyhq/tallycrm-backend/pkg/pagination"
)

// contactLimiter reports the plan's contact ceiling for an account.
// A limit of -1 means unlimited.
type contactLimiter interface {
	ContactLimit(ctx context.Context, ownerID uuid.UUID) (int, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the CRM service.
type ServiceParams struct {
	Repo              Repository
	Limiter           contactLimiter
	TransactionRunner txRunner
}

// Service orchestrates CRM record management.
type Service struct {
	repo     Repository
	limiter  contactLimiter
	txRunner txRunner
}

// NewService builds a CRM service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Limiter == nil {
		return nil, errors.New("contact limiter is required")
	}
	if params.TransactionRunner == nil {
		return nil, errors.New("transaction runner is required")
	}
	return &Service{
		repo:     params.Repo,
		limiter:  params.Limiter,
		txRunner: params.TransactionRunner,
	}, nil
}

// CreateContact inserts a contact after enforcing the plan's contact cap.
func (s *Service) CreateContact(ctx context.Context, contact *models.Contact) error {
	if contact == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "contact is required")
	}
	if contact.OwnerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if contact.FirstName == "" && contact.LastName == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "contact name is required")
	}

	limit, err := s.limiter.ContactLimit(ctx, contact.OwnerID)
	if err != nil {
		return err
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if limit >= 0 {
			count, countErr := repo.CountContacts(ctx, contact.OwnerID)
			if countErr != nil {
				return countErr
			}
			if count >= int64(limit) {
				return pkgerrors.New(pkgerrors.CodeQuotaExceeded, "contact limit reached for current plan")
			}
		}
		return repo.CreateContact(ctx, contact)
	})
}

func (s *Service) GetContact(ctx context.Context, ownerID, id uuid.UUID) (*models.Contact, error) {
	contact, err := s.repo.FindContactByID(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "contact not found")
		}
		return nil, err
	}
	return contact, nil
}

func (s *Service) ListContacts(ctx context.Context, params ListContactsQuery) ([]models.Contact, *pagination.Cursor, error) {
	if params.OwnerID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	return s.repo.ListContacts(ctx, params)
}

func (s *Service) UpdateContact(ctx context.Context, contact *models.Contact) error {
	if contact == nil || contact.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "contact id is required")
	}
	if _, err := s.GetContact(ctx, contact.OwnerID, contact.ID); err != nil {
		return err
	}
	return s.repo.UpdateContact(ctx, contact)
}

func (s *Service) DeleteContact(ctx context.Context, ownerID, id uuid.UUID) error {
	err := s.repo.DeleteContact(ctx, ownerID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "contact not found")
	}
	return err
}

func (s *Service) CreateCompany(ctx context.Context, company *models.Company) error {
	if company == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "company is required")
	}
	if company.OwnerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if company.Name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "company name is required")
	}
	return s.repo.CreateCompany(ctx, company)
}

func (s *Service) GetCompany(ctx context.Context, ownerID, id uuid.UUID) (*models.Company, error) {
	company, err := s.repo.FindCompanyByID(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "company not found")
		}
		return nil, err
	}
	return company, nil
}

func (s *Service) ListCompanies(ctx context.Context, params ListCompaniesQuery) ([]models.Company, *pagination.Cursor, error) {
	if params.OwnerID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	return s.repo.ListCompanies(ctx, params)
}

func (s *Service) UpdateCompany(ctx context.Context, company *models.Company) error {
	if company == nil || company.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "company id is required")
	}
	if _, err := s.GetCompany(ctx, company.OwnerID, company.ID); err != nil {
		return err
	}
	return s.repo.UpdateCompany(ctx, company)
}

func (s *Service) DeleteCompany(ctx context.Context, ownerID, id uuid.UUID) error {
	err := s.repo.DeleteCompany(ctx, ownerID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "company not found")
	}
	return err
}

// LogActivity appends to the activity feed. The feed is append-only.
func (s *Service) LogActivity(ctx context.Context, activity *models.Activity) error {
	if activity == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "activity is required")
	}
	if activity.OwnerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if !activity.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid activity type")
	}
	if activity.Title == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "activity title is required")
	}
	return s.repo.CreateActivity(ctx, activity)
}

func (s *Service) ListActivities(ctx context.Context, params ListActivitiesQuery) ([]models.Activity, *pagination.Cursor, error) {
	if params.OwnerID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	return s.repo.ListActivities(ctx, params)
}

func (s *Service) logDealActivity(ctx context.Context, repo Repository, deal *models.Deal, kind enums.ActivityType, title string) error {
	activity := &models.Activity{
		OwnerID:   deal.OwnerID,
		ContactID: deal.ContactID,
		CompanyID: deal.CompanyID,
		DealID:    &deal.ID,
		Type:      kind,
		Title:     title,
	}
	return repo.CreateActivity(ctx, activity)
}
