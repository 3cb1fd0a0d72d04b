package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tallyhq/tallycrm-backend/api/middleware"
	"github.com/tallyhq/tallycrm-backend/api/responses"
	"github.com/tallyhq/tallycrm-backend/api/validators"
	crmsvc "github.com/tallyhq/tallycrm-backend/internal/crm"
	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	pkgerrors "github.com/tallyhq/tallycrm-backend/pkg/errors"
	"github.com/tallyhq/tallycrm-backend/pkg/logger"
)

type contactRequest struct {
	CompanyID  *uuid.UUID `json:"company_id"`
	FirstName  string     `json:"first_name" validate:"required"`
	LastName   string     `json:"last_name" validate:"required"`
	Position   *string    `json:"position"`
	Email      *string    `json:"email,omitempty" validate:"omitempty,email"`
	Phone      *string    `json:"phone"`
	Mobile     *string    `json:"mobile"`
	Address    *string    `json:"address"`
	City       *string    `json:"city"`
	Country    *string    `json:"country"`
	PostalCode *string    `json:"postal_code"`
	Birthday   *time.Time `json:"birthday"`
	Notes      *string    `json:"notes"`
	Tags       *string    `json:"tags"`
	LinkedIn   *string    `json:"linkedin"`
	Twitter    *string    `json:"twitter"`
}

type contactResponse struct {
	ID         uuid.UUID  `json:"id"`
	CompanyID  *uuid.UUID `json:"company_id,omitempty"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	FullName   string     `json:"full_name"`
	Position   *string    `json:"position,omitempty"`
	Email      *string    `json:"email,omitempty"`
	Phone      *string    `json:"phone,omitempty"`
	Mobile     *string    `json:"mobile,omitempty"`
	Address    *string    `json:"address,omitempty"`
	City       *string    `json:"city,omitempty"`
	Country    *string    `json:"country,omitempty"`
	PostalCode *string    `json:"postal_code,omitempty"`
	Birthday   *time.Time `json:"birthday,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
	Tags       *string    `json:"tags,omitempty"`
	LinkedIn   *string    `json:"linkedin,omitempty"`
	Twitter    *string    `json:"twitter,omitempty"`
	IsActive   bool       `json:"is_active"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type contactListResponse struct {
	Items      []contactResponse `json:"items"`
	NextCursor *string           `json:"next_cursor,omitempty"`
}

func newContactResponse(contact *models.Contact) contactResponse {
	return contactResponse{
		ID:         contact.ID,
		CompanyID:  contact.CompanyID,
		FirstName:  contact.FirstName,
		LastName:   contact.LastName,
		FullName:   contact.FullName(),
		Position:   contact.Position,
		Email:      contact.Email,
		Phone:      contact.Phone,
		Mobile:     contact.Mobile,
		Address:    contact.Address,
		City:       contact.City,
		Country:    contact.Country,
		PostalCode: contact.PostalCode,
		Birthday:   contact.Birthday,
		Notes:      contact.Notes,
		Tags:       contact.Tags,
		LinkedIn:   contact.LinkedIn,
		Twitter:    contact.Twitter,
		IsActive:   contact.IsActive,
		CreatedAt:  contact.CreatedAt,
		UpdatedAt:  contact.UpdatedAt,
	}
}

func (p contactRequest) apply(contact *models.Contact) {
	contact.CompanyID = p.CompanyID
	contact.FirstName = p.FirstName
	contact.LastName = p.LastName
	contact.Position = p.Position
	contact.Email = p.Email
	contact.Phone = p.Phone
	contact.Mobile = p.Mobile
	contact.Address = p.Address
	contact.City = p.City
	contact.Country = p.Country
	contact.PostalCode = p.PostalCode
	contact.Birthday = p.Birthday
	contact.Notes = p.Notes
	contact.Tags = p.Tags
	contact.LinkedIn = p.LinkedIn
	contact.Twitter = p.Twitter
}

// ContactCreate stores a new contact, subject to the plan's contact limit.
func ContactCreate(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var body contactRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contact := &models.Contact{OwnerID: ownerID, IsActive: true}
		body.apply(contact)

		if err := svc.CreateContact(r.Context(), contact); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newContactResponse(contact))
	}
}

func ContactDetail(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		id, err := parseIDParam(r, "contactId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contact, err := svc.GetContact(r.Context(), ownerID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newContactResponse(contact))
	}
}

func ContactList(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		companyID, err := validators.ParseQueryUUID(r, "company_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contacts, next, err := svc.ListContacts(r.Context(), crmsvc.ListContactsQuery{
			OwnerID:   ownerID,
			Limit:     limit,
			Cursor:    cursor,
			CompanyID: companyID,
			Search:    r.URL.Query().Get("search"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]contactResponse, 0, len(contacts))
		for i := range contacts {
			items = append(items, newContactResponse(&contacts[i]))
		}
		responses.WriteSuccess(w, contactListResponse{Items: items, NextCursor: encodeNextCursor(next)})
	}
}

func ContactUpdate(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		id, err := parseIDParam(r, "contactId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body contactRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		contact, err := svc.GetContact(r.Context(), ownerID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		body.apply(contact)

		if err := svc.UpdateContact(r.Context(), contact); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newContactResponse(contact))
	}
}

func ContactDelete(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		id, err := parseIDParam(r, "contactId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteContact(r.Context(), ownerID, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
