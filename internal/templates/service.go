package templates

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	"github.com/tallyhq/tallycrm-backend/pkg/enums"
	pkgerrors "github.com/tallyhq/tallycrm-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the templates service.
type ServiceParams struct {
	Repo              Repository
	TransactionRunner txRunner
}

// Service manages per-tenant document branding and email templates.
type Service struct {
	repo     Repository
	txRunner txRunner
}

// NewService builds a templates service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.TransactionRunner == nil {
		return nil, errors.New("transaction runner is required")
	}
	return &Service{repo: params.Repo, txRunner: params.TransactionRunner}, nil
}

// DocumentTemplateInput carries the writable fields of a document template.
type DocumentTemplateInput struct {
	Name           string
	Kind           string
	CompanyName    *string
	CompanyAddress *string
	CompanyEmail   *string
	CompanyPhone   *string
	TaxID          *string
	LogoURL        *string
	AccentColor    *string
	FooterText     *string
	IsDefault      bool
}

func (s *Service) CreateDocumentTemplate(ctx context.Context, ownerID uuid.UUID, input DocumentTemplateInput) (*models.DocumentTemplate, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "template name is required")
	}
	kind, err := enums.ParseTemplateKind(input.Kind)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid template kind")
	}

	tpl := &models.DocumentTemplate{
		OwnerID:        ownerID,
		Name:           strings.TrimSpace(input.Name),
		Kind:           kind,
		CompanyName:    input.CompanyName,
		CompanyAddress: input.CompanyAddress,
		CompanyEmail:   input.CompanyEmail,
		CompanyPhone:   input.CompanyPhone,
		TaxID:          input.TaxID,
		LogoURL:        input.LogoURL,
		AccentColor:    input.AccentColor,
		FooterText:     input.FooterText,
		IsDefault:      input.IsDefault,
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if tpl.IsDefault {
			if err := repo.ClearDefault(ctx, ownerID, kind); err != nil {
				return err
			}
		}
		return repo.CreateDocumentTemplate(ctx, tpl)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create document template")
	}
	return tpl, nil
}

func (s *Service) GetDocumentTemplate(ctx context.Context, ownerID, id uuid.UUID) (*models.DocumentTemplate, error) {
	tpl, err := s.repo.FindDocumentTemplateByID(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document template not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find document template")
	}
	return tpl, nil
}

func (s *Service) ListDocumentTemplates(ctx context.Context, ownerID uuid.UUID, kind string) ([]models.DocumentTemplate, error) {
	var kindFilter *enums.TemplateKind
	if kind != "" {
		parsed, err := enums.ParseTemplateKind(kind)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid template kind")
		}
		kindFilter = &parsed
	}
	tpls, err := s.repo.ListDocumentTemplates(ctx, ownerID, kindFilter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list document templates")
	}
	return tpls, nil
}

func (s *Service) UpdateDocumentTemplate(ctx context.Context, ownerID, id uuid.UUID, input DocumentTemplateInput) (*models.DocumentTemplate, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "template name is required")
	}
	kind, err := enums.ParseTemplateKind(input.Kind)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid template kind")
	}

	var updated *models.DocumentTemplate
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		tpl, err := repo.FindDocumentTemplateByID(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if input.IsDefault && !tpl.IsDefault {
			if err := repo.ClearDefault(ctx, ownerID, kind); err != nil {
				return err
			}
		}
		tpl.Name = strings.TrimSpace(input.Name)
		tpl.Kind = kind
		tpl.CompanyName = input.CompanyName
		tpl.CompanyAddress = input.CompanyAddress
		tpl.CompanyEmail = input.CompanyEmail
		tpl.CompanyPhone = input.CompanyPhone
		tpl.TaxID = input.TaxID
		tpl.LogoURL = input.LogoURL
		tpl.AccentColor = input.AccentColor
		tpl.FooterText = input.FooterText
		tpl.IsDefault = input.IsDefault
		if err := repo.UpdateDocumentTemplate(ctx, tpl); err != nil {
			return err
		}
		updated = tpl
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "document template not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update document template")
	}
	return updated, nil
}

func (s *Service) DeleteDocumentTemplate(ctx context.Context, ownerID, id uuid.UUID) error {
	err := s.repo.DeleteDocumentTemplate(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "document template not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete document template")
	}
	return nil
}

// EmailTemplateInput carries the writable fields of an email template.
type EmailTemplateInput struct {
	Name    string
	Subject string
	Body    string
}

func (s *Service) CreateEmailTemplate(ctx context.Context, ownerID uuid.UUID, input EmailTemplateInput) (*models.EmailTemplate, error) {
	if err := validateEmailTemplateInput(input); err != nil {
		return nil, err
	}
	tpl := &models.EmailTemplate{
		OwnerID: ownerID,
		Name:    strings.TrimSpace(input.Name),
		Subject: input.Subject,
		Body:    input.Body,
	}
	if err := s.repo.CreateEmailTemplate(ctx, tpl); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create email template")
	}
	return tpl, nil
}

func (s *Service) GetEmailTemplate(ctx context.Context, ownerID, id uuid.UUID) (*models.EmailTemplate, error) {
	tpl, err := s.repo.FindEmailTemplateByID(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "email template not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find email template")
	}
	return tpl, nil
}

func (s *Service) ListEmailTemplates(ctx context.Context, ownerID uuid.UUID) ([]models.EmailTemplate, error) {
	tpls, err := s.repo.ListEmailTemplates(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list email templates")
	}
	return tpls, nil
}

func (s *Service) UpdateEmailTemplate(ctx context.Context, ownerID, id uuid.UUID, input EmailTemplateInput) (*models.EmailTemplate, error) {
	if err := validateEmailTemplateInput(input); err != nil {
		return nil, err
	}
	tpl, err := s.repo.FindEmailTemplateByID(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "email template not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find email template")
	}
	tpl.Name = strings.TrimSpace(input.Name)
	tpl.Subject = input.Subject
	tpl.Body = input.Body
	if err := s.repo.UpdateEmailTemplate(ctx, tpl); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update email template")
	}
	return tpl, nil
}

func (s *Service) DeleteEmailTemplate(ctx context.Context, ownerID, id uuid.UUID) error {
	err := s.repo.DeleteEmailTemplate(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "email template not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete email template")
	}
	return nil
}

// RenderEmailTemplate substitutes {{placeholder}} slots in the subject and
// body. Unknown placeholders are left verbatim so missing data is visible.
func (s *Service) RenderEmailTemplate(ctx context.Context, ownerID, id uuid.UUID, data map[string]string) (subject, body string, err error) {
	tpl, err := s.GetEmailTemplate(ctx, ownerID, id)
	if err != nil {
		return "", "", err
	}
	return Render(tpl.Subject, data), Render(tpl.Body, data), nil
}

// Render replaces every {{key}} slot in text with its value from data.
func Render(text string, data map[string]string) string {
	for key, value := range data {
		text = strings.ReplaceAll(text, "{{"+key+"}}", value)
	}
	return text
}

func validateEmailTemplateInput(input EmailTemplateInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "template name is required")
	}
	if strings.TrimSpace(input.Subject) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "template subject is required")
	}
	if strings.TrimSpace(input.Body) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "template body is required")
	}
	return nil
}
