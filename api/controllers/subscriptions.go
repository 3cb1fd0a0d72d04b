package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tallycrm-backend/api/middleware"
	"github.com/tallyhq/tallycrm-backend/api/responses"
	"github.com/tallyhq/tallycrm-backend/api/validators"
	subsvc "github.com/tallyhq/tallycrm-backend/internal/subscriptions"
	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	"github.com/tallyhq/tallycrm-backend/pkg/enums"
	pkgerrors "github.com/tallyhq/tallycrm-backend/pkg/errors"
	"github.com/tallyhq/tallycrm-backend/pkg/logger"
)

type subscriptionResponse struct {
	ID                 uuid.UUID  `json:"id"`
	Plan               string     `json:"plan"`
	Status             string     `json:"status"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	AIRequestsUsed     int        `json:"ai_requests_used"`
	CreatedAt          time.Time  `json:"created_at"`
}

type usageResponse struct {
	AIRequestsUsed  int `json:"ai_requests_used"`
	AIRequestsLimit int `json:"ai_requests_limit"`
}

type checkoutRequest struct {
	Plan string `json:"plan" validate:"required"`
}

type checkoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

type subscriptionHistoryResponse struct {
	ID        uuid.UUID `json:"id"`
	FromPlan  string    `json:"from_plan"`
	ToPlan    string    `json:"to_plan"`
	Reason    *string   `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type subscriptionInvoiceResponse struct {
	ID               uuid.UUID       `json:"id"`
	StripeInvoiceID  string          `json:"stripe_invoice_id"`
	AmountDue        decimal.Decimal `json:"amount_due"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	Currency         string          `json:"currency"`
	Status           string          `json:"status"`
	InvoicePDF       *string         `json:"invoice_pdf,omitempty"`
	HostedInvoiceURL *string         `json:"hosted_invoice_url,omitempty"`
	PeriodStart      *time.Time      `json:"period_start,omitempty"`
	PeriodEnd        *time.Time      `json:"period_end,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

func newSubscriptionResponse(sub *models.Subscription) subscriptionResponse {
	return subscriptionResponse{
		ID:                 sub.ID,
		Plan:               string(sub.Plan),
		Status:             string(sub.Status),
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		AIRequestsUsed:     sub.AIRequestsUsed,
		CreatedAt:          sub.CreatedAt,
	}
}

type planResponse struct {
	Plan           string `json:"plan"`
	ContactLimit   int    `json:"contact_limit"`
	AIRequestLimit int    `json:"ai_request_limit"`
}

// SubscriptionPlans lists the purchasable tiers and their allowances.
func SubscriptionPlans() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		infos := subsvc.Plans()
		items := make([]planResponse, 0, len(infos))
		for _, info := range infos {
			items = append(items, planResponse{
				Plan:           string(info.Plan),
				ContactLimit:   info.Limits.ContactLimit,
				AIRequestLimit: info.Limits.AIRequestLimit,
			})
		}
		responses.WriteSuccess(w, items)
	}
}

func SubscriptionFetch(svc *subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscriptions service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.GetSubscription(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

// SubscriptionUsage reports the AI request counter against the plan limit.
func SubscriptionUsage(svc *subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscriptions service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		used, limit, err := svc.Usage(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, usageResponse{AIRequestsUsed: used, AIRequestsLimit: limit})
	}
}

// SubscriptionCheckout starts a hosted checkout session for a paid plan.
func SubscriptionCheckout(svc *subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscriptions service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		plan, err := enums.ParseSubscriptionPlan(body.Plan)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan"))
			return
		}

		url, err := svc.StartCheckout(r.Context(), ownerID, plan)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, checkoutResponse{CheckoutURL: url})
	}
}

// SubscriptionCancel flags the subscription to lapse at period end.
func SubscriptionCancel(svc *subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscriptions service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sub, err := svc.CancelSubscription(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSubscriptionResponse(sub))
	}
}

func SubscriptionHistory(svc *subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscriptions service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		history, err := svc.ListHistory(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]subscriptionHistoryResponse, 0, len(history))
		for _, entry := range history {
			items = append(items, subscriptionHistoryResponse{
				ID:        entry.ID,
				FromPlan:  string(entry.FromPlan),
				ToPlan:    string(entry.ToPlan),
				Reason:    entry.Reason,
				CreatedAt: entry.CreatedAt,
			})
		}
		responses.WriteSuccess(w, items)
	}
}

func SubscriptionInvoices(svc *subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscriptions service unavailable"))
			return
		}

		ownerID, err := middleware.UserIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		invoices, err := svc.ListInvoices(r.Context(), ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]subscriptionInvoiceResponse, 0, len(invoices))
		for _, invoice := range invoices {
			items = append(items, subscriptionInvoiceResponse{
				ID:               invoice.ID,
				StripeInvoiceID:  invoice.StripeInvoiceID,
				AmountDue:        invoice.AmountDue,
				AmountPaid:       invoice.AmountPaid,
				Currency:         string(invoice.Currency),
				Status:           invoice.Status,
				InvoicePDF:       invoice.InvoicePDF,
				HostedInvoiceURL: invoice.HostedInvoiceURL,
				PeriodStart:      invoice.PeriodStart,
				PeriodEnd:        invoice.PeriodEnd,
				CreatedAt:        invoice.CreatedAt,
			})
		}
		responses.WriteSuccess(w, items)
	}
}
