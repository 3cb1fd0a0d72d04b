package invoices

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	"github.com/tallyhq/tallycrm-backend/pkg/email"
	"github.com/tallyhq/tallycrm-backend/pkg/enums"
	pkgerrors "github.com/tallyhq/tallycrm-backend/pkg/errors"
	"github.com/tallyhq/tallycrm-backend/pkg/pagination"
)

type stubRepo struct {
	invoices     map[uuid.UUID]*models.Invoice
	invoiceItems map[uuid.UUID][]models.InvoiceItem
	offers       map[uuid.UUID]*models.Offer
	offerItems   map[uuid.UUID][]models.OfferItem
	numbers      map[string]int
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		invoices:     map[uuid.UUID]*models.Invoice{},
		invoiceItems: map[uuid.UUID][]models.InvoiceItem{},
		offers:       map[uuid.UUID]*models.Offer{},
		offerItems:   map[uuid.UUID][]models.OfferItem{},
		numbers:      map[string]int{},
	}
}

func (r *stubRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *stubRepo) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	invoice.CreatedAt = time.Now()
	r.invoices[invoice.ID] = invoice
	return nil
}

func (r *stubRepo) CreateInvoiceItems(ctx context.Context, items []models.InvoiceItem) error {
	for i := range items {
		items[i].ID = uuid.New()
		r.invoiceItems[items[i].InvoiceID] = append(r.invoiceItems[items[i].InvoiceID], items[i])
	}
	return nil
}

func (r *stubRepo) FindInvoiceByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Invoice, error) {
	invoice, ok := r.invoices[id]
	if !ok || invoice.OwnerID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *invoice
	return &copied, nil
}

func (r *stubRepo) ListInvoices(ctx context.Context, params ListInvoicesQuery) ([]models.Invoice, *pagination.Cursor, error) {
	var out []models.Invoice
	for _, invoice := range r.invoices {
		if invoice.OwnerID == params.OwnerID {
			out = append(out, *invoice)
		}
	}
	return out, nil, nil
}

func (r *stubRepo) ListInvoiceItems(ctx context.Context, invoiceID uuid.UUID) ([]models.InvoiceItem, error) {
	return r.invoiceItems[invoiceID], nil
}

func (r *stubRepo) UpdateInvoice(ctx context.Context, invoice *models.Invoice) error {
	copied := *invoice
	r.invoices[invoice.ID] = &copied
	return nil
}

func (r *stubRepo) DeleteInvoiceItems(ctx context.Context, invoiceID uuid.UUID) error {
	delete(r.invoiceItems, invoiceID)
	return nil
}

func (r *stubRepo) NextDocumentNumber(ctx context.Context, ownerID uuid.UUID, prefix string, year int) (string, error) {
	key := fmt.Sprintf("%s:%s:%d", ownerID, prefix, year)
	r.numbers[key]++
	return fmt.Sprintf("%s-%d-%04d", prefix, year, r.numbers[key]), nil
}

func (r *stubRepo) ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]models.Invoice, error) {
	var out []models.Invoice
	for _, invoice := range r.invoices {
		switch invoice.Status {
		case enums.InvoiceStatusSent, enums.InvoiceStatusPartiallyPaid:
			if invoice.DueDate.Before(asOf) {
				out = append(out, *invoice)
			}
		}
	}
	return out, nil
}

func (r *stubRepo) CreateOffer(ctx context.Context, offer *models.Offer) error {
	if offer.ID == uuid.Nil {
		offer.ID = uuid.New()
	}
	offer.CreatedAt = time.Now()
	r.offers[offer.ID] = offer
	return nil
}

func (r *stubRepo) CreateOfferItems(ctx context.Context, items []models.OfferItem) error {
	for i := range items {
		items[i].ID = uuid.New()
		r.offerItems[items[i].OfferID] = append(r.offerItems[items[i].OfferID], items[i])
	}
	return nil
}

func (r *stubRepo) FindOfferByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Offer, error) {
	offer, ok := r.offers[id]
	if !ok || offer.OwnerID != ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *offer
	return &copied, nil
}

func (r *stubRepo) ListOffers(ctx context.Context, params ListOffersQuery) ([]models.Offer, *pagination.Cursor, error) {
	var out []models.Offer
	for _, offer := range r.offers {
		if offer.OwnerID == params.OwnerID {
			out = append(out, *offer)
		}
	}
	return out, nil, nil
}

func (r *stubRepo) ListOfferItems(ctx context.Context, offerID uuid.UUID) ([]models.OfferItem, error) {
	return r.offerItems[offerID], nil
}

func (r *stubRepo) UpdateOffer(ctx context.Context, offer *models.Offer) error {
	copied := *offer
	r.offers[offer.ID] = &copied
	return nil
}

func (r *stubRepo) DeleteOfferItems(ctx context.Context, offerID uuid.UUID) error {
	delete(r.offerItems, offerID)
	return nil
}

func (r *stubRepo) ListExpiredOfferCandidates(ctx context.Context, asOf time.Time) ([]models.Offer, error) {
	var out []models.Offer
	for _, offer := range r.offers {
		if offer.Status == enums.OfferStatusSent && offer.ValidUntil.Before(asOf) {
			out = append(out, *offer)
		}
	}
	return out, nil
}

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type recordingSender struct {
	messages []email.Message
	creds    []email.Credentials
}

func (s *recordingSender) Send(ctx context.Context, msg email.Message) (string, error) {
	s.messages = append(s.messages, msg)
	s.creds = append(s.creds, email.Credentials{})
	return "msg_global", nil
}

func (s *recordingSender) SendAs(ctx context.Context, creds email.Credentials, msg email.Message) (string, error) {
	s.messages = append(s.messages, msg)
	s.creds = append(s.creds, creds)
	return "msg_tenant", nil
}

type stubUsers struct {
	user *models.User
}

func (s *stubUsers) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func newTestService(t *testing.T) (*Service, *stubRepo, *recordingSender, *models.User) {
	t.Helper()
	repo := newStubRepo()
	sender := &recordingSender{}
	owner := &models.User{ID: uuid.New(), Email: "owner@example.com", FirstName: "Nina", LastName: "Keller"}
	svc, err := NewService(ServiceParams{
		Repo:              repo,
		TransactionRunner: passthroughTx{},
		Sender:            sender,
		Users:             &stubUsers{user: owner},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, repo, sender, owner
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func baseInvoiceInput(ownerID uuid.UUID) CreateInvoiceInput {
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	clientEmail := "client@example.com"
	return CreateInvoiceInput{
		OwnerID:     ownerID,
		InvoiceDate: date,
		DueDate:     date.AddDate(0, 0, 14),
		ClientName:  "Acme GmbH",
		ClientEmail: &clientEmail,
		Currency:    enums.CurrencyEUR,
		TaxRate:     dec("19"),
		Lines: []LineInput{
			{Description: "Consulting", Quantity: dec("10"), UnitPrice: dec("85.00")},
			{Description: "Travel", Quantity: dec("1"), UnitPrice: dec("120.50")},
		},
	}
}

func TestCreateInvoiceComputesTotalsAndNumber(t *testing.T) {
	svc, repo, _, owner := newTestService(t)

	invoice, err := svc.CreateInvoice(context.Background(), baseInvoiceInput(owner.ID))
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	if invoice.Number != "INV-2025-0001" {
		t.Fatalf("number = %s", invoice.Number)
	}
	if !invoice.Subtotal.Equal(dec("970.50")) {
		t.Fatalf("subtotal = %s", invoice.Subtotal)
	}
	if !invoice.TaxAmount.Equal(dec("184.40")) {
		t.Fatalf("tax = %s", invoice.TaxAmount)
	}
	if !invoice.Total.Equal(dec("1154.90")) {
		t.Fatalf("total = %s", invoice.Total)
	}
	if invoice.Status != enums.InvoiceStatusDraft {
		t.Fatalf("status = %s", invoice.Status)
	}
	items := repo.invoiceItems[invoice.ID]
	if len(items) != 2 {
		t.Fatalf("items = %d", len(items))
	}
	if items[0].Position != 0 || items[1].Position != 1 {
		t.Fatalf("item positions not preserved")
	}

	second, err := svc.CreateInvoice(context.Background(), baseInvoiceInput(owner.ID))
	if err != nil {
		t.Fatalf("CreateInvoice second: %v", err)
	}
	if second.Number != "INV-2025-0002" {
		t.Fatalf("second number = %s", second.Number)
	}
}

func TestCreateInvoiceValidation(t *testing.T) {
	svc, _, _, owner := newTestService(t)

	input := baseInvoiceInput(owner.ID)
	input.Lines = nil
	if _, err := svc.CreateInvoice(context.Background(), input); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("empty lines: %v", err)
	}

	input = baseInvoiceInput(owner.ID)
	input.Lines[0].Quantity = dec("0")
	if _, err := svc.CreateInvoice(context.Background(), input); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("zero quantity: %v", err)
	}

	input = baseInvoiceInput(owner.ID)
	input.DueDate = input.InvoiceDate.AddDate(0, 0, -1)
	if _, err := svc.CreateInvoice(context.Background(), input); !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("due before invoice date: %v", err)
	}
}

func TestSendInvoiceEmailsClientOnce(t *testing.T) {
	svc, _, sender, owner := newTestService(t)

	invoice, err := svc.CreateInvoice(context.Background(), baseInvoiceInput(owner.ID))
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	sent, err := svc.SendInvoice(context.Background(), owner.ID, invoice.ID)
	if err != nil {
		t.Fatalf("SendInvoice: %v", err)
	}
	if sent.Status != enums.InvoiceStatusSent {
		t.Fatalf("status = %s", sent.Status)
	}
	if len(sender.messages) != 1 {
		t.Fatalf("emails sent = %d", len(sender.messages))
	}
	if sender.messages[0].To != "client@example.com" {
		t.Fatalf("recipient = %s", sender.messages[0].To)
	}

	if _, err := svc.SendInvoice(context.Background(), owner.ID, invoice.ID); !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("second send: %v", err)
	}
}

func TestSendInvoiceUsesTenantCredentials(t *testing.T) {
	svc, _, sender, owner := newTestService(t)
	key, from := "re_tenant_key", "billing@tenant.example"
	owner.ResendAPIKey = &key
	owner.ResendFromEmail = &from

	invoice, err := svc.CreateInvoice(context.Background(), baseInvoiceInput(owner.ID))
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if _, err := svc.SendInvoice(context.Background(), owner.ID, invoice.ID); err != nil {
		t.Fatalf("SendInvoice: %v", err)
	}
	if sender.creds[0].APIKey != key || sender.creds[0].FromEmail != from {
		t.Fatalf("tenant credentials not passed: %+v", sender.creds[0])
	}
}

func TestUpdateInvoiceDraftOnly(t *testing.T) {
	svc, repo, _, owner := newTestService(t)

	invoice, err := svc.CreateInvoice(context.Background(), baseInvoiceInput(owner.ID))
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	updated, err := svc.UpdateInvoice(context.Background(), owner.ID, invoice.ID, UpdateInvoiceInput{
		Lines: []LineInput{{Description: "Retainer", Quantity: dec("1"), UnitPrice: dec("500.00")}},
	})
	if err != nil {
		t.Fatalf("UpdateInvoice: %v", err)
	}
	if !updated.Subtotal.Equal(dec("500.00")) || !updated.Total.Equal(dec("595.00")) {
		t.Fatalf("recalc: subtotal=%s total=%s", updated.Subtotal, updated.Total)
	}
	if len(repo.invoiceItems[invoice.ID]) != 1 {
		t.Fatalf("items not replaced")
	}

	if _, err := svc.SendInvoice(context.Background(), owner.ID, invoice.ID); err != nil {
		t.Fatalf("SendInvoice: %v", err)
	}
	_, err = svc.UpdateInvoice(context.Background(), owner.ID, invoice.ID, UpdateInvoiceInput{})
	if !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("edit after send: %v", err)
	}
}

func TestCancelInvoice(t *testing.T) {
	svc, repo, _, owner := newTestService(t)

	invoice, err := svc.CreateInvoice(context.Background(), baseInvoiceInput(owner.ID))
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	cancelled, err := svc.CancelInvoice(context.Background(), owner.ID, invoice.ID)
	if err != nil {
		t.Fatalf("CancelInvoice: %v", err)
	}
	if cancelled.Status != enums.InvoiceStatusCancelled {
		t.Fatalf("status = %s", cancelled.Status)
	}

	paid := *repo.invoices[invoice.ID]
	paid.Status = enums.InvoiceStatusPaid
	paid.PaidAmount = paid.Total
	repo.invoices[invoice.ID] = &paid
	if _, err := svc.CancelInvoice(context.Background(), owner.ID, invoice.ID); !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("cancel paid: %v", err)
	}
}

func TestMarkOverdue(t *testing.T) {
	svc, repo, _, owner := newTestService(t)

	invoice, err := svc.CreateInvoice(context.Background(), baseInvoiceInput(owner.ID))
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if _, err := svc.SendInvoice(context.Background(), owner.ID, invoice.ID); err != nil {
		t.Fatalf("SendInvoice: %v", err)
	}

	asOf := invoice.DueDate.AddDate(0, 0, 1)
	count, err := svc.MarkOverdue(context.Background(), asOf)
	if err != nil {
		t.Fatalf("MarkOverdue: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d", count)
	}
	if repo.invoices[invoice.ID].Status != enums.InvoiceStatusOverdue {
		t.Fatalf("status = %s", repo.invoices[invoice.ID].Status)
	}
}

func baseOfferInput(ownerID uuid.UUID) CreateOfferInput {
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	clientEmail := "client@example.com"
	return CreateOfferInput{
		OwnerID:     ownerID,
		OfferDate:   date,
		ValidUntil:  date.AddDate(0, 1, 0),
		ClientName:  "Acme GmbH",
		ClientEmail: &clientEmail,
		Currency:    enums.CurrencyEUR,
		TaxRate:     dec("19"),
		Lines: []LineInput{
			{Description: "Consulting", Quantity: dec("10"), UnitPrice: dec("85.00")},
		},
	}
}

func TestOfferLifecycle(t *testing.T) {
	svc, _, _, owner := newTestService(t)
	ctx := context.Background()

	offer, err := svc.CreateOffer(ctx, baseOfferInput(owner.ID))
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if offer.Number != "OFF-2025-0001" {
		t.Fatalf("number = %s", offer.Number)
	}

	if _, err := svc.AcceptOffer(ctx, owner.ID, offer.ID); !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("accept before send: %v", err)
	}

	if _, err := svc.SendOffer(ctx, owner.ID, offer.ID); err != nil {
		t.Fatalf("SendOffer: %v", err)
	}
	accepted, err := svc.AcceptOffer(ctx, owner.ID, offer.ID)
	if err != nil {
		t.Fatalf("AcceptOffer: %v", err)
	}
	if accepted.Status != enums.OfferStatusAccepted {
		t.Fatalf("status = %s", accepted.Status)
	}
	if _, err := svc.RejectOffer(ctx, owner.ID, offer.ID); !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("reject after accept: %v", err)
	}
}

func TestConvertOffer(t *testing.T) {
	svc, repo, _, owner := newTestService(t)
	ctx := context.Background()

	offer, err := svc.CreateOffer(ctx, baseOfferInput(owner.ID))
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if _, err := svc.SendOffer(ctx, owner.ID, offer.ID); err != nil {
		t.Fatalf("SendOffer: %v", err)
	}
	if _, err := svc.AcceptOffer(ctx, owner.ID, offer.ID); err != nil {
		t.Fatalf("AcceptOffer: %v", err)
	}

	invoiceDate := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	invoice, err := svc.ConvertOffer(ctx, owner.ID, offer.ID, invoiceDate, invoiceDate.AddDate(0, 0, 14))
	if err != nil {
		t.Fatalf("ConvertOffer: %v", err)
	}
	if invoice.Number != "INV-2025-0001" {
		t.Fatalf("invoice number = %s", invoice.Number)
	}
	if !invoice.Total.Equal(offer.Total) {
		t.Fatalf("total mismatch: %s vs %s", invoice.Total, offer.Total)
	}
	if len(repo.invoiceItems[invoice.ID]) != 1 {
		t.Fatalf("items not copied")
	}
	converted := repo.offers[offer.ID]
	if converted.ConvertedInvoiceID == nil || *converted.ConvertedInvoiceID != invoice.ID {
		t.Fatalf("converted invoice id not set")
	}

	if _, err := svc.ConvertOffer(ctx, owner.ID, offer.ID, invoiceDate, invoiceDate.AddDate(0, 0, 14)); !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("second conversion: %v", err)
	}
}

func TestExpireOffers(t *testing.T) {
	svc, repo, _, owner := newTestService(t)
	ctx := context.Background()

	offer, err := svc.CreateOffer(ctx, baseOfferInput(owner.ID))
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if _, err := svc.SendOffer(ctx, owner.ID, offer.ID); err != nil {
		t.Fatalf("SendOffer: %v", err)
	}

	count, err := svc.ExpireOffers(ctx, offer.ValidUntil.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("ExpireOffers: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d", count)
	}
	if repo.offers[offer.ID].Status != enums.OfferStatusExpired {
		t.Fatalf("status = %s", repo.offers[offer.ID].Status)
	}
}
