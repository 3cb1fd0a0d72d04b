package templates

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	"github.com/tallyhq/tallycrm-backend/pkg/enums"
	pkgerrors "github.com/tallyhq/tallycrm-backend/pkg/errors"
)

type stubRepo struct {
	documents map[uuid.UUID]*models.DocumentTemplate
	emails    map[uuid.UUID]*models.EmailTemplate
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		documents: make(map[uuid.UUID]*models.DocumentTemplate),
		emails:    make(map[uuid.UUID]*models.EmailTemplate),
	}
}

func (r *stubRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *stubRepo) CreateDocumentTemplate(ctx context.Context, tpl *models.DocumentTemplate) error {
	tpl.ID = uuid.New()
	copied := *tpl
	r.documents[tpl.ID] = &copied
	return nil
}

func (r *stubRepo) FindDocumentTemplateByID(ctx context.Context, ownerID, id uuid.UUID) (*models.DocumentTemplate, error) {
	tpl, ok := r.documents[id]
	if !ok || tpl.OwnerID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *tpl
	return &copied, nil
}

func (r *stubRepo) ListDocumentTemplates(ctx context.Context, ownerID uuid.UUID, kind *enums.TemplateKind) ([]models.DocumentTemplate, error) {
	var out []models.DocumentTemplate
	for _, tpl := range r.documents {
		if tpl.OwnerID != ownerID {
			continue
		}
		if kind != nil && tpl.Kind != *kind {
			continue
		}
		out = append(out, *tpl)
	}
	return out, nil
}

func (r *stubRepo) UpdateDocumentTemplate(ctx context.Context, tpl *models.DocumentTemplate) error {
	copied := *tpl
	r.documents[tpl.ID] = &copied
	return nil
}

func (r *stubRepo) DeleteDocumentTemplate(ctx context.Context, ownerID, id uuid.UUID) error {
	tpl, ok := r.documents[id]
	if !ok || tpl.OwnerID != ownerID {
		return gorm.ErrRecordNotFound
	}
	delete(r.documents, id)
	return nil
}

func (r *stubRepo) ClearDefault(ctx context.Context, ownerID uuid.UUID, kind enums.TemplateKind) error {
	for _, tpl := range r.documents {
		if tpl.OwnerID == ownerID && tpl.Kind == kind {
			tpl.IsDefault = false
		}
	}
	return nil
}

func (r *stubRepo) CreateEmailTemplate(ctx context.Context, tpl *models.EmailTemplate) error {
	tpl.ID = uuid.New()
	copied := *tpl
	r.emails[tpl.ID] = &copied
	return nil
}

func (r *stubRepo) FindEmailTemplateByID(ctx context.Context, ownerID, id uuid.UUID) (*models.EmailTemplate, error) {
	tpl, ok := r.emails[id]
	if !ok || tpl.OwnerID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *tpl
	return &copied, nil
}

func (r *stubRepo) ListEmailTemplates(ctx context.Context, ownerID uuid.UUID) ([]models.EmailTemplate, error) {
	var out []models.EmailTemplate
	for _, tpl := range r.emails {
		if tpl.OwnerID == ownerID {
			out = append(out, *tpl)
		}
	}
	return out, nil
}

func (r *stubRepo) UpdateEmailTemplate(ctx context.Context, tpl *models.EmailTemplate) error {
	copied := *tpl
	r.emails[tpl.ID] = &copied
	return nil
}

func (r *stubRepo) DeleteEmailTemplate(ctx context.Context, ownerID, id uuid.UUID) error {
	tpl, ok := r.emails[id]
	if !ok || tpl.OwnerID != ownerID {
		return gorm.ErrRecordNotFound
	}
	delete(r.emails, id)
	return nil
}

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestService(t *testing.T, repo *stubRepo) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: repo, TransactionRunner: passthroughTx{}})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func strPtr(s string) *string { return &s }

func TestCreateDocumentTemplateValidation(t *testing.T) {
	svc := newTestService(t, newStubRepo())
	ownerID := uuid.New()

	_, err := svc.CreateDocumentTemplate(context.Background(), ownerID, DocumentTemplateInput{Kind: "invoice"})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty name, got %v", err)
	}

	_, err = svc.CreateDocumentTemplate(context.Background(), ownerID, DocumentTemplateInput{Name: "Branded", Kind: "receipt"})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for bad kind, got %v", err)
	}
}

func TestSetDefaultClearsPreviousDefaultOfSameKind(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo)
	ownerID := uuid.New()

	first, err := svc.CreateDocumentTemplate(context.Background(), ownerID, DocumentTemplateInput{
		Name: "Classic", Kind: "invoice", IsDefault: true,
	})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	offerTpl, err := svc.CreateDocumentTemplate(context.Background(), ownerID, DocumentTemplateInput{
		Name: "Offer default", Kind: "offer", IsDefault: true,
	})
	if err != nil {
		t.Fatalf("create offer template: %v", err)
	}

	second, err := svc.CreateDocumentTemplate(context.Background(), ownerID, DocumentTemplateInput{
		Name: "Modern", Kind: "invoice", IsDefault: true,
	})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	if !repo.documents[second.ID].IsDefault {
		t.Fatal("new template should be the default")
	}
	if repo.documents[first.ID].IsDefault {
		t.Fatal("previous invoice default should be cleared")
	}
	if !repo.documents[offerTpl.ID].IsDefault {
		t.Fatal("offer default must not be affected by an invoice default change")
	}
}

func TestUpdateDocumentTemplatePromoteToDefault(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo)
	ownerID := uuid.New()

	first, _ := svc.CreateDocumentTemplate(context.Background(), ownerID, DocumentTemplateInput{
		Name: "Classic", Kind: "invoice", IsDefault: true,
	})
	second, _ := svc.CreateDocumentTemplate(context.Background(), ownerID, DocumentTemplateInput{
		Name: "Modern", Kind: "invoice",
	})

	updated, err := svc.UpdateDocumentTemplate(context.Background(), ownerID, second.ID, DocumentTemplateInput{
		Name: "Modern", Kind: "invoice", IsDefault: true,
		FooterText: strPtr("Thank you for your business"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.IsDefault {
		t.Fatal("updated template should be default")
	}
	if updated.FooterText == nil || *updated.FooterText != "Thank you for your business" {
		t.Fatalf("footer text not applied: %v", updated.FooterText)
	}
	if repo.documents[first.ID].IsDefault {
		t.Fatal("previous default should be cleared")
	}
}

func TestDocumentTemplateTenantIsolation(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo)

	tpl, _ := svc.CreateDocumentTemplate(context.Background(), uuid.New(), DocumentTemplateInput{
		Name: "Classic", Kind: "invoice",
	})

	_, err := svc.GetDocumentTemplate(context.Background(), uuid.New(), tpl.ID)
	if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for foreign owner, got %v", err)
	}
	if err := svc.DeleteDocumentTemplate(context.Background(), uuid.New(), tpl.ID); !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found on foreign delete, got %v", err)
	}
}

func TestListDocumentTemplatesKindFilter(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo)
	ownerID := uuid.New()

	svc.CreateDocumentTemplate(context.Background(), ownerID, DocumentTemplateInput{Name: "Inv", Kind: "invoice"})
	svc.CreateDocumentTemplate(context.Background(), ownerID, DocumentTemplateInput{Name: "Off", Kind: "offer"})

	tpls, err := svc.ListDocumentTemplates(context.Background(), ownerID, "offer")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tpls) != 1 || tpls[0].Name != "Off" {
		t.Fatalf("expected only the offer template, got %+v", tpls)
	}

	if _, err := svc.ListDocumentTemplates(context.Background(), ownerID, "receipt"); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for bad kind filter, got %v", err)
	}
}

func TestEmailTemplateLifecycle(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo)
	ownerID := uuid.New()

	tpl, err := svc.CreateEmailTemplate(context.Background(), ownerID, EmailTemplateInput{
		Name:    "Invoice notice",
		Subject: "Invoice {{number}} from {{company}}",
		Body:    "<p>Hello {{client}}, invoice {{number}} totals {{total}}.</p>",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.UpdateEmailTemplate(context.Background(), ownerID, tpl.ID, EmailTemplateInput{
		Name:    "Invoice notice",
		Subject: "Your invoice {{number}}",
		Body:    tpl.Body,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Subject != "Your invoice {{number}}" {
		t.Fatalf("subject not updated: %q", updated.Subject)
	}

	if err := svc.DeleteEmailTemplate(context.Background(), ownerID, tpl.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetEmailTemplate(context.Background(), ownerID, tpl.ID); !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestEmailTemplateValidation(t *testing.T) {
	svc := newTestService(t, newStubRepo())
	ownerID := uuid.New()

	cases := []EmailTemplateInput{
		{Subject: "s", Body: "b"},
		{Name: "n", Body: "b"},
		{Name: "n", Subject: "s"},
	}
	for _, input := range cases {
		if _, err := svc.CreateEmailTemplate(context.Background(), ownerID, input); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error for %+v, got %v", input, err)
		}
	}
}

func TestRenderEmailTemplate(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo)
	ownerID := uuid.New()

	tpl, _ := svc.CreateEmailTemplate(context.Background(), ownerID, EmailTemplateInput{
		Name:    "Invoice notice",
		Subject: "Invoice {{number}}",
		Body:    "Hello {{client}}, invoice {{number}} totals {{total}}. {{unknown}} stays.",
	})

	subject, body, err := svc.RenderEmailTemplate(context.Background(), ownerID, tpl.ID, map[string]string{
		"number": "INV-2025-0001",
		"client": "Acme GmbH",
		"total":  "1154.90 EUR",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if subject != "Invoice INV-2025-0001" {
		t.Fatalf("subject = %q", subject)
	}
	want := "Hello Acme GmbH, invoice INV-2025-0001 totals 1154.90 EUR. {{unknown}} stays."
	if body != want {
		t.Fatalf("body = %q", body)
	}
}

func TestRenderLeavesTextWithoutPlaceholders(t *testing.T) {
	if got := Render("no slots here", map[string]string{"a": "b"}); got != "no slots here" {
		t.Fatalf("got %q", got)
	}
	if got := Render("{{a}}{{a}}", map[string]string{"a": "x"}); got != "xx" {
		t.Fatalf("got %q", got)
	}
}
