package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tallycrm-backend/api/middleware"
	"github.com/tallyhq/tallycrm-backend/api/responses"
	"github.com/tallyhq/tallycrm-backend/api/validators"
	invoicesvc "github.com/tallyhq/tallycrm-backend/internal/invoices"
	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	"github.com/tallyhq/tallycrm-backend/pkg/enums"
	pkgerrors "github.com/tallyhq/tallycrm-backend/pkg/errors"
	"github.com/tallyhq/tallycrm-backend/pkg/logger"
)

type createOfferRequest struct {
	ContactID     *uuid.UUID      `json:"contact_id"`
	CompanyID     *uuid.UUID      `json:"company_id"`
	OfferDate     time.Time       `json:"offer_date" validate:"required"`
	ValidUntil    time.Time       `json:"valid_until" validate:"required"`
	ClientName    string          `json:"client_name" validate:"required"`
	ClientEmail   *string         `json:"client_email,omitempty" validate:"omitempty,email"`
	ClientAddress *string         `json:"client_address"`
	Currency      string          `json:"currency"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	Lines         []linePayload   `json:"lines" validate:"required,min=1,dive"`
	Notes         *string         `json:"notes"`
	Terms         *string         `json:"terms"`
	TemplateID    *uuid.UUID      `json:"template_id"`
}

type updateOfferRequest struct {
	ValidUntil    *time.Time       `json:"valid_until"`
	ClientName    *string          `json:"client_name"`
	ClientEmail   *string          `json:"client_email,omitempty" validate:"omitempty,email"`
	ClientAddress *string          `json:"client_address"`
	TaxRate       *decimal.Decimal `json:"tax_rate"`
	Lines         []linePayload    `json:"lines" validate:"omitempty,min=1,dive"`
	Notes         *string          `json:"notes"`
	Terms         *string          `json:"terms"`
	TemplateID    *uuid.UUID       `json:"template_id"`
}

type convertOfferRequest struct {
	InvoiceDate time.Time `json:"invoice_date" validate:"required"`
	DueDate     time.Time `json:"due_date" validate:"required"`
}

type offerItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
	Position    int             `json:"position"`
}

type offerResponse struct {
	ID                 uuid.UUID           `json:"id"`
	ContactID          *uuid.UUID          `json:"contact_id,omitempty"`
	CompanyID          *uuid.UUID          `json:"company_id,omitempty"`
	Number             string              `json:"number"`
	OfferDate          time.Time           `json:"offer_date"`
	ValidUntil         time.Time           `json:"valid_until"`
	ClientName         string              `json:"client_name"`
	ClientEmail        *string             `json:"client_email,omitempty"`
	ClientAddress      *string             `json:"client_address,omitempty"`
	Currency           string              `json:"currency"`
	Subtotal           decimal.Decimal     `json:"subtotal"`
	TaxRate            decimal.Decimal     `json:"tax_rate"`
	TaxAmount          decimal.Decimal     `json:"tax_amount"`
	Total              decimal.Decimal     `json:"total"`
	Status             string              `json:"status"`
	Notes              *string             `json:"notes,omitempty"`
	Terms              *string             `json:"terms,omitempty"`
	TemplateID         *uuid.UUID          `json:"template_id,omitempty"`
	ConvertedInvoiceID *uuid.UUID          `json:"converted_invoice_id,omitempty"`
	Items              []offerItemResponse `json:"items,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

type offerListResponse struct {
	Items      []offerResponse `json:"items"`
	NextCursor *string         `json:"next_cursor,omitempty"`
}

func newOfferResponse(offer *models.Offer, items []models.OfferItem) offerResponse {
	resp := offerResponse{
		ID:                 offer.ID,
		ContactID:          offer.ContactID,
		CompanyID:          offer.CompanyID,
		Number:             offer.Number,
		OfferDate:          offer.OfferDate,
		ValidUntil:         offer.ValidUntil,
		ClientName:         offer.ClientName,
		ClientEmail:        offer.ClientEmail,
		ClientAddress:      offer.ClientAddress,
		Currency:           string(offer.Currency),
		Subtotal:           offer.Subtotal,
		TaxRate:            offer.TaxRate,
		TaxAmount:          offer.TaxAmount,
		Total:              offer.Total,
		Status:             string(offer.Status),
		Notes:              offer.Notes,
		Terms:              offer.Terms,
		TemplateID:         offer.TemplateID,
		ConvertedInvoiceID: offer.ConvertedInvoiceID,
		CreatedAt:          offer.CreatedAt,
		UpdatedAt:          offer.UpdatedAt,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, offerItemResponse{
			ID:          item.ID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Total:       item.Total,
			Position:    item.Position,
		})
	}
	return resp
}

func OfferCreate(svc *invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoices service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createOfferRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		currency := enums.CurrencyEUR
		if body.Currency != "" {
			if currency, err = enums.ParseCurrency(body.Currency); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency"))
				return
			}
		}

		offer, err := svc.CreateOffer(r.Context(), invoicesvc.CreateOfferInput{
			OwnerID:       ownerID,
			ContactID:     body.ContactID,
			CompanyID:     body.CompanyID,
			OfferDate:     body.OfferDate,
			ValidUntil:    body.ValidUntil,
			ClientName:    body.ClientName,
			ClientEmail:   body.ClientEmail,
			ClientAddress: body.ClientAddress,
			Currency:      currency,
			TaxRate:       body.TaxRate,
			Lines:         lineInputs(body.Lines),
			Notes:         body.Notes,
			Terms:         body.Terms,
			TemplateID:    body.TemplateID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOfferResponse(offer, nil))
	}
}

func OfferDetail(svc *invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoices service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseIDParam(r, "offerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offer, items, err := svc.GetOffer(r.Context(), ownerID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOfferResponse(offer, items))
	}
}

func OfferList(svc *invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoices service unavailable"))
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

		params := invoicesvc.ListOffersQuery{
			OwnerID: ownerID,
			Limit:   limit,
			Cursor:  cursor,
		}

		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := enums.ParseOfferStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			params.Status = &status
		}

		offers, next, err := svc.ListOffers(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]offerResponse, 0, len(offers))
		for i := range offers {
			items = append(items, newOfferResponse(&offers[i], nil))
		}
		responses.WriteSuccess(w, offerListResponse{Items: items, NextCursor: encodeNextCursor(next)})
	}
}

func OfferUpdate(svc *invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoices service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseIDParam(r, "offerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateOfferRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := invoicesvc.UpdateOfferInput{
			ValidUntil:    body.ValidUntil,
			ClientName:    body.ClientName,
			ClientEmail:   body.ClientEmail,
			ClientAddress: body.ClientAddress,
			TaxRate:       body.TaxRate,
			Notes:         body.Notes,
			Terms:         body.Terms,
			TemplateID:    body.TemplateID,
		}
		if body.Lines != nil {
			input.Lines = lineInputs(body.Lines)
		}

		offer, err := svc.UpdateOffer(r.Context(), ownerID, id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOfferResponse(offer, nil))
	}
}

func OfferSend(svc *invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return offerTransition(svc, logg, func(r *http.Request, ownerID, id uuid.UUID) (*models.Offer, error) {
		return svc.SendOffer(r.Context(), ownerID, id)
	})
}

func OfferAccept(svc *invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return offerTransition(svc, logg, func(r *http.Request, ownerID, id uuid.UUID) (*models.Offer, error) {
		return svc.AcceptOffer(r.Context(), ownerID, id)
	})
}

func OfferReject(svc *invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return offerTransition(svc, logg, func(r *http.Request, ownerID, id uuid.UUID) (*models.Offer, error) {
		return svc.RejectOffer(r.Context(), ownerID, id)
	})
}

func offerTransition(svc *invoicesvc.Service, logg *logger.Logger, fn func(r *http.Request, ownerID, id uuid.UUID) (*models.Offer, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoices service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseIDParam(r, "offerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offer, err := fn(r, ownerID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOfferResponse(offer, nil))
	}
}

// OfferConvert turns an accepted offer into a draft invoice.
func OfferConvert(svc *invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoices service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := parseIDParam(r, "offerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body convertOfferRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.ConvertOffer(r.Context(), ownerID, id, body.InvoiceDate, body.DueDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newInvoiceResponse(invoice, nil))
	}
}
