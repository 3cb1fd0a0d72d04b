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

type linePayload struct {
	Description string          `json:"description" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity" validate:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func lineInputs(lines []linePayload) []invoicesvc.LineInput {
	inputs := make([]invoicesvc.LineInput, len(lines))
	for i, line := range lines {
		inputs[i] = invoicesvc.LineInput{
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		}
	}
	return inputs
}

type createInvoiceRequest struct {
	ContactID       *uuid.UUID      `json:"contact_id"`
	CompanyID       *uuid.UUID      `json:"company_id"`
	InvoiceDate     time.Time       `json:"invoice_date" validate:"required"`
	DueDate         time.Time       `json:"due_date" validate:"required"`
	ClientName      string          `json:"client_name" validate:"required"`
	ClientEmail     *string         `json:"client_email,omitempty" validate:"omitempty,email"`
	ClientAddress   *string         `json:"client_address"`
	ClientVATNumber *string         `json:"client_vat_number"`
	Currency        string          `json:"currency"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	Lines           []linePayload   `json:"lines" validate:"required,min=1,dive"`
	Notes           *string         `json:"notes"`
	Terms           *string         `json:"terms"`
	TemplateID      *uuid.UUID      `json:"template_id"`
}

type updateInvoiceRequest struct {
	DueDate       *time.Time       `json:"due_date"`
	ClientName    *string          `json:"client_name"`
	ClientEmail   *string          `json:"client_email,omitempty" validate:"omitempty,email"`
	ClientAddress *string          `json:"client_address"`
	TaxRate       *decimal.Decimal `json:"tax_rate"`
	Lines         []linePayload    `json:"lines" validate:"omitempty,min=1,dive"`
	Notes         *string          `json:"notes"`
	Terms         *string          `json:"terms"`
	TemplateID    *uuid.UUID       `json:"template_id"`
}

type invoiceItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
	Position    int             `json:"position"`
}

type invoiceResponse struct {
	ID              uuid.UUID             `json:"id"`
	ContactID       *uuid.UUID            `json:"contact_id,omitempty"`
	CompanyID       *uuid.UUID            `json:"company_id,omitempty"`
	Number          string                `json:"number"`
	InvoiceDate     time.Time             `json:"invoice_date"`
	DueDate         time.Time             `json:"due_date"`
	ClientName      string                `json:"client_name"`
	ClientEmail     *string               `json:"client_email,omitempty"`
	ClientAddress   *string               `json:"client_address,omitempty"`
	ClientVATNumber *string               `json:"client_vat_number,omitempty"`
	Currency        string                `json:"currency"`
	Subtotal        decimal.Decimal       `json:"subtotal"`
	TaxRate         decimal.Decimal       `json:"tax_rate"`
	TaxAmount       decimal.Decimal       `json:"tax_amount"`
	Total           decimal.Decimal       `json:"total"`
	PaidAmount      decimal.Decimal       `json:"paid_amount"`
	BalanceDue      decimal.Decimal       `json:"balance_due"`
	Status          string                `json:"status"`
	PaymentURL      *string               `json:"payment_url,omitempty"`
	Notes           *string               `json:"notes,omitempty"`
	Terms           *string               `json:"terms,omitempty"`
	TemplateID      *uuid.UUID            `json:"template_id,omitempty"`
	Items           []invoiceItemResponse `json:"items,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

type invoiceListResponse struct {
	Items      []invoiceResponse `json:"items"`
	NextCursor *string           `json:"next_cursor,omitempty"`
}

func newInvoiceResponse(invoice *models.Invoice, items []models.InvoiceItem) invoiceResponse {
	resp := invoiceResponse{
		ID:              invoice.ID,
		ContactID:       invoice.ContactID,
		CompanyID:       invoice.CompanyID,
		Number:          invoice.Number,
		InvoiceDate:     invoice.InvoiceDate,
		DueDate:         invoice.DueDate,
		ClientName:      invoice.ClientName,
		ClientEmail:     invoice.ClientEmail,
		ClientAddress:   invoice.ClientAddress,
		ClientVATNumber: invoice.ClientVATNumber,
		Currency:        string(invoice.Currency),
		Subtotal:        invoice.Subtotal,
		TaxRate:         invoice.TaxRate,
		TaxAmount:       invoice.TaxAmount,
		Total:           invoice.Total,
		PaidAmount:      invoice.PaidAmount,
		BalanceDue:      invoice.BalanceDue(),
		Status:          string(invoice.Status),
		PaymentURL:      invoice.PaymentURL,
		Notes:           invoice.Notes,
		Terms:           invoice.Terms,
		TemplateID:      invoice.TemplateID,
		CreatedAt:       invoice.CreatedAt,
		UpdatedAt:       invoice.UpdatedAt,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, invoiceItemResponse{
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

func InvoiceCreate(svc *invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var body createInvoiceRequest
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

		invoice, err := svc.CreateInvoice(r.Context(), invoicesvc.CreateInvoiceInput{
			OwnerID:         ownerID,
			ContactID:       body.ContactID,
			CompanyID:       body.CompanyID,
			InvoiceDate:     body.InvoiceDate,
			DueDate:         body.DueDate,
			ClientName:      body.ClientName,
			ClientEmail:     body.ClientEmail,
			ClientAddress:   body.ClientAddress,
			ClientVATNumber: body.ClientVATNumber,
			Currency:        currency,
			TaxRate:         body.TaxRate,
			Lines:           lineInputs(body.Lines),
			Notes:           body.Notes,
			Terms:           body.Terms,
			TemplateID:      body.TemplateID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newInvoiceResponse(invoice, nil))
	}
}

func InvoiceDetail(svc *invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		id, err := parseIDParam(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, items, err := svc.GetInvoice(r.Context(), ownerID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newInvoiceResponse(invoice, items))
	}
}

func InvoiceList(svc *invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		params := invoicesvc.ListInvoicesQuery{
			OwnerID: ownerID,
			Limit:   limit,
			Cursor:  cursor,
		}

		if raw := r.URL.Query().Get("status"); raw != "" {
			status, err := enums.ParseInvoiceStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			params.Status = &status
		}

		invoices, next, err := svc.ListInvoices(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]invoiceResponse, 0, len(invoices))
		for i := range invoices {
			items = append(items, newInvoiceResponse(&invoices[i], nil))
		}
		responses.WriteSuccess(w, invoiceListResponse{Items: items, NextCursor: encodeNextCursor(next)})
	}
}

func InvoiceUpdate(svc *invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		id, err := parseIDParam(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateInvoiceRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := invoicesvc.UpdateInvoiceInput{
			DueDate:       body.DueDate,
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

		invoice, err := svc.UpdateInvoice(r.Context(), ownerID, id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newInvoiceResponse(invoice, nil))
	}
}

// InvoiceSend marks the invoice sent and emails it to the client.
func InvoiceSend(svc *invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		id, err := parseIDParam(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.SendInvoice(r.Context(), ownerID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newInvoiceResponse(invoice, nil))
	}
}

func InvoiceCancel(svc *invoicesvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		id, err := parseIDParam(r, "invoiceId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoice, err := svc.CancelInvoice(r.Context(), ownerID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newInvoiceResponse(invoice, nil))
	}
}
