package stripewebhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/tallyhq/tallycrm-backend/internal/subscriptions"
	"github.com/tallyhq/tallycrm-backend/pkg/enums"
	pkgerrors "github.com/tallyhq/tallycrm-backend/pkg/errors"
	"github.com/tallyhq/tallycrm-backend/pkg/logger"
)

type subscriptionEvents interface {
	ApplyCheckoutCompleted(ctx context.Context, input subscriptions.CheckoutCompletedInput) error
	ApplyInvoicePaid(ctx context.Context, stripeSubscriptionID string, invoice subscriptions.StripeInvoiceInput) error
	ApplyPaymentFailed(ctx context.Context, stripeSubscriptionID string) error
	ApplySubscriptionUpdated(ctx context.Context, stripeSubscriptionID string, input subscriptions.SubscriptionUpdateInput) error
	ApplySubscriptionDeleted(ctx context.Context, stripeSubscriptionID string) error
}

// ServiceParams groups dependencies for the webhook dispatcher.
type ServiceParams struct {
	Subscriptions subscriptionEvents
	Logger        *logger.Logger
}

// Service maps verified Stripe events onto subscription state transitions.
type Service struct {
	subs subscriptionEvents
	logg *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscriptions service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		subs: params.Subscriptions,
		logg: params.Logger,
	}, nil
}

// HandleEvent dispatches on the event type. Unhandled types are
// acknowledged without action.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithField(ctx, "stripe_event", string(event.Type))

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		return s.handleCheckoutCompleted(ctx, event)
	case stripe.EventTypeInvoicePaid:
		return s.handleInvoicePaid(ctx, event)
	case stripe.EventTypeInvoicePaymentFailed:
		return s.handleInvoiceFailed(ctx, event)
	case stripe.EventTypeCustomerSubscriptionUpdated:
		return s.handleSubscriptionUpdated(ctx, event)
	case stripe.EventTypeCustomerSubscriptionDeleted:
		return s.handleSubscriptionDeleted(ctx, event)
	default:
		s.logg.Debug(ctx, "ignoring unhandled stripe event")
		return nil
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
	}

	ownerRaw := session.ClientReferenceID
	if ownerRaw == "" {
		ownerRaw = session.Metadata["owner_id"]
	}
	ownerID, err := uuid.Parse(ownerRaw)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "checkout session owner reference")
	}

	input := subscriptions.CheckoutCompletedInput{
		OwnerID:  ownerID,
		PlanName: session.Metadata["plan"],
	}
	if session.Subscription != nil {
		input.StripeSubscriptionID = session.Subscription.ID
	}
	if session.Customer != nil {
		input.StripeCustomerID = session.Customer.ID
	}
	return s.subs.ApplyCheckoutCompleted(ctx, input)
}

func (s *Service) handleInvoicePaid(ctx context.Context, event *stripe.Event) error {
	subscriptionID := event.GetObjectValue("subscription")
	if subscriptionID == "" {
		s.logg.Debug(ctx, "invoice event without subscription, ignoring")
		return nil
	}

	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode invoice")
	}

	currency, err := enums.ParseCurrency(string(invoice.Currency))
	if err != nil {
		currency = enums.CurrencyEUR
	}
	input := subscriptions.StripeInvoiceInput{
		StripeInvoiceID: invoice.ID,
		AmountDue:       decimal.New(invoice.AmountDue, -2),
		AmountPaid:      decimal.New(invoice.AmountPaid, -2),
		Currency:        currency,
		Status:          string(invoice.Status),
		PeriodStart:     unixPtr(invoice.PeriodStart),
		PeriodEnd:       unixPtr(invoice.PeriodEnd),
	}
	if invoice.InvoicePDF != "" {
		pdf := invoice.InvoicePDF
		input.InvoicePDF = &pdf
	}
	if invoice.HostedInvoiceURL != "" {
		url := invoice.HostedInvoiceURL
		input.HostedInvoiceURL = &url
	}
	return s.subs.ApplyInvoicePaid(ctx, subscriptionID, input)
}

func (s *Service) handleInvoiceFailed(ctx context.Context, event *stripe.Event) error {
	subscriptionID := event.GetObjectValue("subscription")
	if subscriptionID == "" {
		s.logg.Debug(ctx, "invoice event without subscription, ignoring")
		return nil
	}
	return s.subs.ApplyPaymentFailed(ctx, subscriptionID)
}

func (s *Service) handleSubscriptionUpdated(ctx context.Context, event *stripe.Event) error {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription")
	}

	input := subscriptions.SubscriptionUpdateInput{
		Status:            string(stripeSub.Status),
		StripePriceID:     priceIDFromItems(&stripeSub),
		CancelAtPeriodEnd: stripeSub.CancelAtPeriodEnd,
	}
	if start, end := periodFromItems(&stripeSub); start != 0 {
		input.CurrentPeriodStart = unixPtr(start)
		input.CurrentPeriodEnd = unixPtr(end)
	}
	return s.subs.ApplySubscriptionUpdated(ctx, stripeSub.ID, input)
}

func (s *Service) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event) error {
	var stripeSub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription")
	}
	return s.subs.ApplySubscriptionDeleted(ctx, stripeSub.ID)
}

func priceIDFromItems(sub *stripe.Subscription) string {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return ""
	}
	if sub.Items.Data[0].Price != nil {
		return sub.Items.Data[0].Price.ID
	}
	return ""
}

func periodFromItems(sub *stripe.Subscription) (int64, int64) {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return 0, 0
	}
	item := sub.Items.Data[0]
	return item.CurrentPeriodStart, item.CurrentPeriodEnd
}

func unixPtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
