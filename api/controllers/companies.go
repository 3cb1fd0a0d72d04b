package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tallycrm-backend/api/middleware"
	"github.com/tallyhq/tallycrm-backend/api/responses"
	"github.com/tallyhq/tallycrm-backend/api/validators"
	crmsvc "github.com/tallyhq/tallycrm-backend/internal/crm"
	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	pkgerrors "github.com/tallyhq/tallycrm-backend/pkg/errors"
	"github.com/tallyhq/tallycrm-backend/pkg/logger"
)

type companyRequest struct {
	Name          string           `json:"name" validate:"required"`
	Website       *string          `json:"website"`
	Industry      *string          `json:"industry"`
	Employees     *int             `json:"employees"`
	AnnualRevenue *decimal.Decimal `json:"annual_revenue"`
	Phone         *string          `json:"phone"`
	Email         *string          `json:"email,omitempty" validate:"omitempty,email"`
	Address       *string          `json:"address"`
	City          *string          `json:"city"`
	Country       *string          `json:"country"`
	PostalCode    *string          `json:"postal_code"`
	VATNumber     *string          `json:"vat_number"`
	Notes         *string          `json:"notes"`
	Tags          *string          `json:"tags"`
}

type companyResponse struct {
	ID            uuid.UUID        `json:"id"`
	Name          string           `json:"name"`
	Website       *string          `json:"website,omitempty"`
	Industry      *string          `json:"industry,omitempty"`
	Employees     *int             `json:"employees,omitempty"`
	AnnualRevenue *decimal.Decimal `json:"annual_revenue,omitempty"`
	Phone         *string          `json:"phone,omitempty"`
	Email         *string          `json:"email,omitempty"`
	Address       *string          `json:"address,omitempty"`
	City          *string          `json:"city,omitempty"`
	Country       *string          `json:"country,omitempty"`
	PostalCode    *string          `json:"postal_code,omitempty"`
	VATNumber     *string          `json:"vat_number,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
	Tags          *string          `json:"tags,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

type companyListResponse struct {
	Items      []companyResponse `json:"items"`
	NextCursor *string           `json:"next_cursor,omitempty"`
}

func newCompanyResponse(company *models.Company) companyResponse {
	return companyResponse{
		ID:            company.ID,
		Name:          company.Name,
		Website:       company.Website,
		Industry:      company.Industry,
		Employees:     company.Employees,
		AnnualRevenue: company.AnnualRevenue,
		Phone:         company.Phone,
		Email:         company.Email,
		Address:       company.Address,
		City:          company.City,
		Country:       company.Country,
		PostalCode:    company.PostalCode,
		VATNumber:     company.VATNumber,
		Notes:         company.Notes,
		Tags:          company.Tags,
		CreatedAt:     company.CreatedAt,
		UpdatedAt:     company.UpdatedAt,
	}
}

func (p companyRequest) apply(company *models.Company) {
	company.Name = p.Name
	company.Website = p.Website
	company.Industry = p.Industry
	company.Employees = p.Employees
	company.AnnualRevenue = p.AnnualRevenue
	company.Phone = p.Phone
	company.Email = p.Email
	company.Address = p.Address
	company.City = p.City
	company.Country = p.Country
	company.PostalCode = p.PostalCode
	company.VATNumber = p.VATNumber
	company.Notes = p.Notes
	company.Tags = p.Tags
}

func CompanyCreate(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "crm service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body companyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		company := &models.Company{OwnerID: ownerID}
		body.apply(company)

		if err := svc.CreateCompany(r.Context(), company); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCompanyResponse(company))
	}
}

func CompanyDetail(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "crm service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseIDParam(r, "companyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		company, err := svc.GetCompany(r.Context(), ownerID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCompanyResponse(company))
	}
}

func CompanyList(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "crm service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, cursor, err := parseListQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		companies, next, err := svc.ListCompanies(r.Context(), crmsvc.ListCompaniesQuery{
			OwnerID: ownerID,
			Limit:   limit,
			Cursor:  cursor,
			Search:  r.URL.Query().Get("search"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]companyResponse, 0, len(companies))
		for i := range companies {
			items = append(items, newCompanyResponse(&companies[i]))
		}
		responses.WriteSuccess(w, companyListResponse{Items: items, NextCursor: encodeNextCursor(next)})
	}
}

func CompanyUpdate(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "crm service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseIDParam(r, "companyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body companyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		company, err := svc.GetCompany(r.Context(), ownerID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		body.apply(company)

		if err := svc.UpdateCompany(r.Context(), company); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCompanyResponse(company))
	}
}

func CompanyDelete(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "crm service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseIDParam(r, "companyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteCompany(r.Context(), ownerID, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
