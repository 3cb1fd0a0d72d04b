package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/tallyhq/tallycrm-backend/pkg/logger"
)

const testSigningSecret = "whsec_test_secret"

type stubWebhookService struct {
	handleFn func(ctx context.Context, event *stripe.Event) error
	calls    int
}

func (s *stubWebhookService) HandleEvent(ctx context.Context, event *stripe.Event) error {
	s.calls++
	if s.handleFn != nil {
		return s.handleFn(ctx, event)
	}
	return nil
}

type stubGuard struct {
	seen    bool
	deleted []string
}

func (g *stubGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	return g.seen, nil
}

func (g *stubGuard) Delete(ctx context.Context, eventID string) error {
	g.deleted = append(g.deleted, eventID)
	return nil
}

type stubStripeClient struct{}

func (stubStripeClient) SigningSecret() string { return testSigningSecret }

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func eventPayload(id string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","api_version":%q,"type":"customer.subscription.updated","data":{"object":{}}}`, id, stripe.APIVersion))
}

func signPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestStripeWebhookSuccess(t *testing.T) {
	svc := &stubWebhookService{}
	guard := &stubGuard{}
	payload := eventPayload("evt_1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", signPayload(payload, testSigningSecret))
	resp := httptest.NewRecorder()
	StripeWebhook(svc, stubStripeClient{}, guard, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.calls != 1 {
		t.Fatalf("expected one handler call, got %d", svc.calls)
	}
	if len(guard.deleted) != 0 {
		t.Fatalf("unexpected guard delete %v", guard.deleted)
	}
}

func TestStripeWebhookMissingSignature(t *testing.T) {
	svc := &stubWebhookService{}
	payload := eventPayload("evt_1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(string(payload)))
	resp := httptest.NewRecorder()
	StripeWebhook(svc, stubStripeClient{}, &stubGuard{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.calls != 0 {
		t.Fatal("handler must not run without a signature")
	}
}

func TestStripeWebhookBadSignature(t *testing.T) {
	svc := &stubWebhookService{}
	payload := eventPayload("evt_1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", signPayload(payload, "whsec_other_secret"))
	resp := httptest.NewRecorder()
	StripeWebhook(svc, stubStripeClient{}, &stubGuard{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.calls != 0 {
		t.Fatal("handler must not run on a bad signature")
	}
}

func TestStripeWebhookReplayIsIdempotent(t *testing.T) {
	svc := &stubWebhookService{}
	guard := &stubGuard{seen: true}
	payload := eventPayload("evt_1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", signPayload(payload, testSigningSecret))
	resp := httptest.NewRecorder()
	StripeWebhook(svc, stubStripeClient{}, guard, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.calls != 0 {
		t.Fatal("handler must not run twice for the same event")
	}
}

func TestStripeWebhookHandlerErrorReleasesClaim(t *testing.T) {
	svc := &stubWebhookService{
		handleFn: func(ctx context.Context, event *stripe.Event) error {
			return errors.New("downstream unavailable")
		},
	}
	guard := &stubGuard{}
	payload := eventPayload("evt_2")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(string(payload)))
	req.Header.Set("Stripe-Signature", signPayload(payload, testSigningSecret))
	resp := httptest.NewRecorder()
	StripeWebhook(svc, stubStripeClient{}, guard, testLogger())(resp, req)

	if resp.Code == http.StatusOK {
		t.Fatal("expected error status")
	}
	if len(guard.deleted) != 1 || guard.deleted[0] != "evt_2" {
		t.Fatalf("expected claim released for evt_2, got %v", guard.deleted)
	}
}
