package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tallyhq/tallycrm-backend/api/middleware"
	"github.com/tallyhq/tallycrm-backend/api/responses"
	"github.com/tallyhq/tallycrm-backend/api/validators"
	templatesvc "github.com/tallyhq/tallycrm-backend/internal/templates"
	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	pkgerrors "github.com/tallyhq/tallycrm-backend/pkg/errors"
	"github.com/tallyhq/tallycrm-backend/pkg/logger"
)

type documentTemplateRequest struct {
	Name           string  `json:"name" validate:"required"`
	Kind           string  `json:"kind" validate:"required"`
	CompanyName    *string `json:"company_name"`
	CompanyAddress *string `json:"company_address"`
	CompanyEmail   *string `json:"company_email,omitempty" validate:"omitempty,email"`
	CompanyPhone   *string `json:"company_phone"`
	TaxID          *string `json:"tax_id"`
	LogoURL        *string `json:"logo_url"`
	AccentColor    *string `json:"accent_color"`
	FooterText     *string `json:"footer_text"`
	IsDefault      bool    `json:"is_default"`
}

type documentTemplateResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Kind           string    `json:"kind"`
	CompanyName    *string   `json:"company_name,omitempty"`
	CompanyAddress *string   `json:"company_address,omitempty"`
	CompanyEmail   *string   `json:"company_email,omitempty"`
	CompanyPhone   *string   `json:"company_phone,omitempty"`
	TaxID          *string   `json:"tax_id,omitempty"`
	LogoURL        *string   `json:"logo_url,omitempty"`
	AccentColor    *string   `json:"accent_color,omitempty"`
	FooterText     *string   `json:"footer_text,omitempty"`
	IsDefault      bool      `json:"is_default"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type emailTemplateRequest struct {
	Name    string `json:"name" validate:"required"`
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body" validate:"required"`
}

type emailTemplateResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newDocumentTemplateResponse(tpl *models.DocumentTemplate) documentTemplateResponse {
	return documentTemplateResponse{
		ID:             tpl.ID,
		Name:           tpl.Name,
		Kind:           string(tpl.Kind),
		CompanyName:    tpl.CompanyName,
		CompanyAddress: tpl.CompanyAddress,
		CompanyEmail:   tpl.CompanyEmail,
		CompanyPhone:   tpl.CompanyPhone,
		TaxID:          tpl.TaxID,
		LogoURL:        tpl.LogoURL,
		AccentColor:    tpl.AccentColor,
		FooterText:     tpl.FooterText,
		IsDefault:      tpl.IsDefault,
		CreatedAt:      tpl.CreatedAt,
		UpdatedAt:      tpl.UpdatedAt,
	}
}

func newEmailTemplateResponse(tpl *models.EmailTemplate) emailTemplateResponse {
	return emailTemplateResponse{
		ID:        tpl.ID,
		Name:      tpl.Name,
		Subject:   tpl.Subject,
		Body:      tpl.Body,
		CreatedAt: tpl.CreatedAt,
		UpdatedAt: tpl.UpdatedAt,
	}
}

func (p documentTemplateRequest) toInput() templatesvc.DocumentTemplateInput {
	return templatesvc.DocumentTemplateInput{
		Name:           p.Name,
		Kind:           p.Kind,
		CompanyName:    p.CompanyName,
		CompanyAddress: p.CompanyAddress,
		CompanyEmail:   p.CompanyEmail,
		CompanyPhone:   p.CompanyPhone,
		TaxID:          p.TaxID,
		LogoURL:        p.LogoURL,
		AccentColor:    p.AccentColor,
		FooterText:     p.FooterText,
		IsDefault:      p.IsDefault,
	}
}

func DocumentTemplateCreate(svc *templatesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "templates service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body documentTemplateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tpl, err := svc.CreateDocumentTemplate(r.Context(), ownerID, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newDocumentTemplateResponse(tpl))
	}
}

func DocumentTemplateDetail(svc *templatesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "templates service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseIDParam(r, "templateId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tpl, err := svc.GetDocumentTemplate(r.Context(), ownerID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newDocumentTemplateResponse(tpl))
	}
}

func DocumentTemplateList(svc *templatesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "templates service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		templates, err := svc.ListDocumentTemplates(r.Context(), ownerID, r.URL.Query().Get("kind"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]documentTemplateResponse, 0, len(templates))
		for i := range templates {
			items = append(items, newDocumentTemplateResponse(&templates[i]))
		}
		responses.WriteSuccess(w, items)
	}
}

func DocumentTemplateUpdate(svc *templatesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "templates service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseIDParam(r, "templateId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body documentTemplateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tpl, err := svc.UpdateDocumentTemplate(r.Context(), ownerID, id, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newDocumentTemplateResponse(tpl))
	}
}

func DocumentTemplateDelete(svc *templatesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "templates service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseIDParam(r, "templateId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteDocumentTemplate(r.Context(), ownerID, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func EmailTemplateCreate(svc *templatesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "templates service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body emailTemplateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tpl, err := svc.CreateEmailTemplate(r.Context(), ownerID, templatesvc.EmailTemplateInput{
			Name:    body.Name,
			Subject: body.Subject,
			Body:    body.Body,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newEmailTemplateResponse(tpl))
	}
}

func EmailTemplateDetail(svc *templatesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "templates service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseIDParam(r, "templateId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tpl, err := svc.GetEmailTemplate(r.Context(), ownerID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newEmailTemplateResponse(tpl))
	}
}

func EmailTemplateList(svc *templatesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "templates service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		templates, err := svc.ListEmailTemplates(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]emailTemplateResponse, 0, len(templates))
		for i := range templates {
			items = append(items, newEmailTemplateResponse(&templates[i]))
		}
		responses.WriteSuccess(w, items)
	}
}

func EmailTemplateUpdate(svc *templatesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "templates service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseIDParam(r, "templateId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body emailTemplateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tpl, err := svc.UpdateEmailTemplate(r.Context(), ownerID, id, templatesvc.EmailTemplateInput{
			Name:    body.Name,
			Subject: body.Subject,
			Body:    body.Body,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newEmailTemplateResponse(tpl))
	}
}

func EmailTemplateDelete(svc *templatesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "templates service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseIDParam(r, "templateId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteEmailTemplate(r.Context(), ownerID, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
