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
	"github.com/tallyhq/tallycrm-backend/pkg/enums"
	pkgerrors "github.com/tallyhq/tallycrm-backend/pkg/errors"
	"github.com/tallyhq/tallycrm-backend/pkg/logger"
)

type logActivityRequest struct {
	ContactID   *uuid.UUID `json:"contact_id"`
	CompanyID   *uuid.UUID `json:"company_id"`
	DealID      *uuid.UUID `json:"deal_id"`
	Type        string     `json:"type" validate:"required"`
	Title       string     `json:"title" validate:"required"`
	Description *string    `json:"description"`
}

type activityResponse struct {
	ID          uuid.UUID  `json:"id"`
	ContactID   *uuid.UUID `json:"contact_id,omitempty"`
	CompanyID   *uuid.UUID `json:"company_id,omitempty"`
	DealID      *uuid.UUID `json:"deal_id,omitempty"`
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type activityListResponse struct {
	Items      []activityResponse `json:"items"`
	NextCursor *string            `json:"next_cursor,omitempty"`
}

func newActivityResponse(activity *models.Activity) activityResponse {
	return activityResponse{
		ID:          activity.ID,
		ContactID:   activity.ContactID,
		CompanyID:   activity.CompanyID,
		DealID:      activity.DealID,
		Type:        string(activity.Type),
		Title:       activity.Title,
		Description: activity.Description,
		CreatedAt:   activity.CreatedAt,
	}
}

// ActivityLog appends a manual entry to the activity log.
func ActivityLog(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var body logActivityRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		activityType, err := enums.ParseActivityType(body.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid activity type"))
			return
		}

		activity := &models.Activity{
			OwnerID:     ownerID,
			ContactID:   body.ContactID,
			CompanyID:   body.CompanyID,
			DealID:      body.DealID,
			Type:        activityType,
			Title:       body.Title,
			Description: body.Description,
		}

		if err := svc.LogActivity(r.Context(), activity); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newActivityResponse(activity))
	}
}

func ActivityList(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		params := crmsvc.ListActivitiesQuery{
			OwnerID: ownerID,
			Limit:   limit,
			Cursor:  cursor,
		}

		if params.ContactID, err = validators.ParseQueryUUID(r, "contact_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.CompanyID, err = validators.ParseQueryUUID(r, "company_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.DealID, err = validators.ParseQueryUUID(r, "deal_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		activities, next, err := svc.ListActivities(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]activityResponse, 0, len(activities))
		for i := range activities {
			items = append(items, newActivityResponse(&activities[i]))
		}
		responses.WriteSuccess(w, activityListResponse{Items: items, NextCursor: encodeNextCursor(next)})
	}
}
