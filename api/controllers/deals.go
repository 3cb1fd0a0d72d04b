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
	"github.com/tallyhq/tallycrm-backend/pkg/enums"
	pkgerrors "github.com/tallyhq/tallycrm-backend/pkg/errors"
	"github.com/tallyhq/tallycrm-backend/pkg/logger"
)

type dealRequest struct {
	ContactID         *uuid.UUID      `json:"contact_id"`
	CompanyID         *uuid.UUID      `json:"company_id"`
	Name              string          `json:"name" validate:"required"`
	Description       *string         `json:"description"`
	Value             decimal.Decimal `json:"value"`
	Currency          string          `json:"currency"`
	PipelineID        *uuid.UUID      `json:"pipeline_id"`
	StageID           *uuid.UUID      `json:"stage_id"`
	Probability       *int            `json:"probability" validate:"omitempty,min=0,max=100"`
	ExpectedCloseDate *time.Time      `json:"expected_close_date"`
	Notes             *string         `json:"notes"`
	Tags              *string         `json:"tags"`
}

type dealResponse struct {
	ID                uuid.UUID       `json:"id"`
	ContactID         *uuid.UUID      `json:"contact_id,omitempty"`
	CompanyID         *uuid.UUID      `json:"company_id,omitempty"`
	Name              string          `json:"name"`
	Description       *string         `json:"description,omitempty"`
	Value             decimal.Decimal `json:"value"`
	Currency          string          `json:"currency"`
	PipelineID        *uuid.UUID      `json:"pipeline_id,omitempty"`
	StageID           *uuid.UUID      `json:"stage_id,omitempty"`
	Status            string          `json:"status"`
	Probability       int             `json:"probability"`
	ExpectedCloseDate *time.Time      `json:"expected_close_date,omitempty"`
	ActualCloseDate   *time.Time      `json:"actual_close_date,omitempty"`
	LostReason        *string         `json:"lost_reason,omitempty"`
	Notes             *string         `json:"notes,omitempty"`
	Tags              *string         `json:"tags,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type dealListResponse struct {
	Items      []dealResponse `json:"items"`
	NextCursor *string        `json:"next_cursor,omitempty"`
}

func newDealResponse(deal *models.Deal) dealResponse {
	return dealResponse{
		ID:                deal.ID,
		ContactID:         deal.ContactID,
		CompanyID:         deal.CompanyID,
		Name:              deal.Name,
		Description:       deal.Description,
		Value:             deal.Value,
		Currency:          string(deal.Currency),
		PipelineID:        deal.PipelineID,
		StageID:           deal.StageID,
		Status:            string(deal.Status),
		Probability:       deal.Probability,
		ExpectedCloseDate: deal.ExpectedCloseDate,
		ActualCloseDate:   deal.ActualCloseDate,
		LostReason:        deal.LostReason,
		Notes:             deal.Notes,
		Tags:              deal.Tags,
		CreatedAt:         deal.CreatedAt,
		UpdatedAt:         deal.UpdatedAt,
	}
}

func (p dealRequest) apply(deal *models.Deal) error {
	deal.ContactID = p.ContactID
	deal.CompanyID = p.CompanyID
	deal.Name = p.Name
	deal.Description = p.Description
	deal.Value = p.Value
	deal.PipelineID = p.PipelineID
	deal.StageID = p.StageID
	deal.ExpectedCloseDate = p.ExpectedCloseDate
	deal.Notes = p.Notes
	deal.Tags = p.Tags

	if p.Currency != "" {
		currency, err := enums.ParseCurrency(p.Currency)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency")
		}
		deal.Currency = currency
	} else if deal.Currency == "" {
		deal.Currency = enums.CurrencyEUR
	}
	if p.Probability != nil {
		deal.Probability = *p.Probability
	}
	return nil
}

func DealCreate(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var body dealRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deal := &models.Deal{OwnerID: ownerID, Status: enums.DealStatusOpen}
		if err := body.apply(deal); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.CreateDeal(r.Context(), deal); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newDealResponse(deal))
	}
}

func DealDetail(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		id, err := parseIDParam(r, "dealId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deal, err := svc.GetDeal(r.Context(), ownerID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newDealResponse(deal))
	}
}

func DealList(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		params := crmsvc.ListDealsQuery{
			OwnerID: ownerID,
			Limit:   limit,
			Cursor:  cursor,
		}

		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := enums.ParseDealStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			params.Status = &status
		}

		if params.PipelineID, err = validators.ParseQueryUUID(r, "pipeline_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.StageID, err = validators.ParseQueryUUID(r, "stage_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deals, next, err := svc.ListDeals(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]dealResponse, 0, len(deals))
		for i := range deals {
			items = append(items, newDealResponse(&deals[i]))
		}
		responses.WriteSuccess(w, dealListResponse{Items: items, NextCursor: encodeNextCursor(next)})
	}
}

func DealUpdate(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		id, err := parseIDParam(r, "dealId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body dealRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deal, err := svc.GetDeal(r.Context(), ownerID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := body.apply(deal); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.UpdateDeal(r.Context(), deal); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newDealResponse(deal))
	}
}

type moveDealRequest struct {
	StageID uuid.UUID `json:"stage_id" validate:"required"`
}

// DealMove advances a deal to another stage of its pipeline.
func DealMove(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		id, err := parseIDParam(r, "dealId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body moveDealRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deal, err := svc.MoveDealToStage(r.Context(), ownerID, id, body.StageID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newDealResponse(deal))
	}
}

type closeDealRequest struct {
	Won        bool    `json:"won"`
	LostReason *string `json:"lost_reason"`
}

func DealClose(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		id, err := parseIDParam(r, "dealId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body closeDealRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		deal, err := svc.CloseDeal(r.Context(), ownerID, id, body.Won, body.LostReason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newDealResponse(deal))
	}
}

func DealDelete(svc *crmsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		id, err := parseIDParam(r, "dealId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteDeal(r.Context(), ownerID, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
