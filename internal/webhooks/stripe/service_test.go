package stripewebhook

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/tallyhq/tallycrm-backend/internal/subscriptions"
	"github.com/tallyhq/tallycrm-backend/pkg/logger"
)

type recordingSubs struct {
	checkouts []subscriptions.CheckoutCompletedInput
	paid      []string
	failed    []string
	updated   []string
	deleted   []string
	lastInput subscriptions.SubscriptionUpdateInput
}

func (r *recordingSubs) ApplyCheckoutCompleted(ctx context.Context, input subscriptions.CheckoutCompletedInput) error {
	r.checkouts = append(r.checkouts, input)
	return nil
}

func (r *recordingSubs) ApplyInvoicePaid(ctx context.Context, id string, invoice subscriptions.StripeInvoiceInput) error {
	r.paid = append(r.paid, id)
	return nil
}

func (r *recordingSubs) ApplyPaymentFailed(ctx context.Context, id string) error {
	r.failed = append(r.failed, id)
	return nil
}

func (r *recordingSubs) ApplySubscriptionUpdated(ctx context.Context, id string, input subscriptions.SubscriptionUpdateInput) error {
	r.updated = append(r.updated, id)
	r.lastInput = input
	return nil
}

func (r *recordingSubs) ApplySubscriptionDeleted(ctx context.Context, id string) error {
	r.deleted = append(r.deleted, id)
	return nil
}

func newTestService(t *testing.T) (*Service, *recordingSubs) {
	t.Helper()
	subs := &recordingSubs{}
	svc, err := NewService(ServiceParams{
		Subscriptions: subs,
		Logger:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, subs
}

func TestHandleCheckoutSessionCompleted(t *testing.T) {
	svc, subs := newTestService(t)
	ownerID := uuid.New()

	session := &stripe.CheckoutSession{
		ClientReferenceID: ownerID.String(),
		Subscription:      &stripe.Subscription{ID: "sub_new"},
		Customer:          &stripe.Customer{ID: "cus_new"},
		Metadata:          map[string]string{"plan": "pro"},
	}
	raw, _ := json.Marshal(session)
	event := &stripe.Event{
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: raw},
	}

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(subs.checkouts) != 1 {
		t.Fatalf("checkout applications = %d", len(subs.checkouts))
	}
	got := subs.checkouts[0]
	if got.OwnerID != ownerID || got.StripeSubscriptionID != "sub_new" || got.StripeCustomerID != "cus_new" || got.PlanName != "pro" {
		t.Fatalf("input = %+v", got)
	}
}

func TestHandleInvoicePaid(t *testing.T) {
	svc, subs := newTestService(t)

	invoice := &stripe.Invoice{ID: "in_1", AmountDue: 2900, AmountPaid: 2900, Currency: stripe.CurrencyEUR, Status: stripe.InvoiceStatusPaid}
	raw, _ := json.Marshal(invoice)
	event := &stripe.Event{
		Type: stripe.EventTypeInvoicePaid,
		Data: &stripe.EventData{
			Raw:    raw,
			Object: map[string]interface{}{"subscription": "sub_inv"},
		},
	}

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(subs.paid) != 1 || subs.paid[0] != "sub_inv" {
		t.Fatalf("paid = %v", subs.paid)
	}
}

func TestHandleInvoicePaymentFailed(t *testing.T) {
	svc, subs := newTestService(t)

	event := &stripe.Event{
		Type: stripe.EventTypeInvoicePaymentFailed,
		Data: &stripe.EventData{
			Raw:    json.RawMessage(`{"id":"in_2"}`),
			Object: map[string]interface{}{"subscription": "sub_pd"},
		},
	}

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(subs.failed) != 1 || subs.failed[0] != "sub_pd" {
		t.Fatalf("failed = %v", subs.failed)
	}
}

func TestHandleSubscriptionUpdated(t *testing.T) {
	svc, subs := newTestService(t)

	stripeSub := &stripe.Subscription{
		ID:                "sub_upd",
		Status:            stripe.SubscriptionStatusPastDue,
		CancelAtPeriodEnd: true,
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{
				CurrentPeriodStart: 1735689600,
				CurrentPeriodEnd:   1738368000,
				Price:              &stripe.Price{ID: "price_pro"},
			}},
		},
	}
	raw, _ := json.Marshal(stripeSub)
	event := &stripe.Event{
		Type: stripe.EventTypeCustomerSubscriptionUpdated,
		Data: &stripe.EventData{Raw: raw},
	}

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(subs.updated) != 1 || subs.updated[0] != "sub_upd" {
		t.Fatalf("updated = %v", subs.updated)
	}
	if subs.lastInput.Status != "past_due" || !subs.lastInput.CancelAtPeriodEnd || subs.lastInput.StripePriceID != "price_pro" {
		t.Fatalf("input = %+v", subs.lastInput)
	}
	if subs.lastInput.CurrentPeriodStart == nil || subs.lastInput.CurrentPeriodEnd == nil {
		t.Fatalf("period not extracted")
	}
}

func TestHandleSubscriptionDeleted(t *testing.T) {
	svc, subs := newTestService(t)

	event := &stripe.Event{
		Type: stripe.EventTypeCustomerSubscriptionDeleted,
		Data: &stripe.EventData{Raw: json.RawMessage(`{"id":"sub_gone"}`)},
	}

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(subs.deleted) != 1 || subs.deleted[0] != "sub_gone" {
		t.Fatalf("deleted = %v", subs.deleted)
	}
}

func TestHandleUnknownEventTypeIgnored(t *testing.T) {
	svc, subs := newTestService(t)

	event := &stripe.Event{
		Type: stripe.EventType("charge.refunded"),
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	}

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(subs.checkouts)+len(subs.paid)+len(subs.failed)+len(subs.updated)+len(subs.deleted) != 0 {
		t.Fatalf("unknown event mutated state")
	}
}
