package invoices

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	"github.com/tallyhq/tallycrm-backend/pkg/enums"
)

func setupInvoicesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	invoices := `
CREATE TABLE IF NOT EXISTS invoices (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  contact_id TEXT,
  company_id TEXT,
  number TEXT NOT NULL,
  invoice_date DATE NOT NULL,
  due_date DATE NOT NULL,
  client_name TEXT NOT NULL,
  client_email TEXT,
  client_address TEXT,
  client_vat_number TEXT,
  currency TEXT NOT NULL DEFAULT 'EUR',
  subtotal NUMERIC NOT NULL,
  tax_rate NUMERIC NOT NULL,
  tax_amount NUMERIC NOT NULL,
  total_amount NUMERIC NOT NULL,
  paid_amount NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'draft',
  payment_url TEXT,
  notes TEXT,
  terms TEXT,
  template_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	invoiceItems := `
CREATE TABLE IF NOT EXISTS invoice_items (
  id TEXT PRIMARY KEY,
  invoice_id TEXT NOT NULL,
  description TEXT NOT NULL,
  quantity NUMERIC NOT NULL,
  unit_price NUMERIC NOT NULL,
  total NUMERIC NOT NULL,
  position INTEGER NOT NULL DEFAULT 0
);`
	offers := `
CREATE TABLE IF NOT EXISTS offers (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  contact_id TEXT,
  company_id TEXT,
  number TEXT NOT NULL,
  offer_date DATE NOT NULL,
  valid_until DATE NOT NULL,
  client_name TEXT NOT NULL,
  client_email TEXT,
  client_address TEXT,
  currency TEXT NOT NULL DEFAULT 'EUR',
  subtotal NUMERIC NOT NULL,
  tax_rate NUMERIC NOT NULL,
  tax_amount NUMERIC NOT NULL,
  total_amount NUMERIC NOT NULL,
  status TEXT NOT NULL DEFAULT 'draft',
  notes TEXT,
  terms TEXT,
  template_id TEXT,
  converted_invoice_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	offerItems := `
CREATE TABLE IF NOT EXISTS offer_items (
  id TEXT PRIMARY KEY,
  offer_id TEXT NOT NULL,
  description TEXT NOT NULL,
  quantity NUMERIC NOT NULL,
  unit_price NUMERIC NOT NULL,
  total NUMERIC NOT NULL,
  position INTEGER NOT NULL DEFAULT 0
);`
	require.NoError(t, db.Exec(invoices).Error)
	require.NoError(t, db.Exec(invoiceItems).Error)
	require.NoError(t, db.Exec(offers).Error)
	require.NoError(t, db.Exec(offerItems).Error)
	for _, table := range []string{"invoices", "invoice_items", "offers", "offer_items"} {
		require.NoError(t, db.Exec("DELETE FROM "+table).Error)
	}
	return db
}

func createTestInvoice(t *testing.T, repo Repository, ownerID uuid.UUID, number string, status enums.InvoiceStatus, dueDate, created time.Time) *models.Invoice {
	t.Helper()

	total := decimal.NewFromInt(100)
	invoice := &models.Invoice{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Number:      number,
		InvoiceDate: dueDate.AddDate(0, 0, -14),
		DueDate:     dueDate,
		ClientName:  "Acme GmbH",
		Currency:    enums.CurrencyEUR,
		Subtotal:    total,
		TaxRate:     decimal.Zero,
		TaxAmount:   decimal.Zero,
		Total:       total,
		PaidAmount:  decimal.Zero,
		Status:      status,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	require.NoError(t, repo.CreateInvoice(context.Background(), invoice))
	return invoice
}

func TestRepositoryNextDocumentNumber(t *testing.T) {
	db := setupInvoicesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	ownerA := uuid.New()
	ownerB := uuid.New()
	now := time.Now().UTC()

	first, err := repo.NextDocumentNumber(ctx, ownerA, "INV", 2025)
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-0001", first)

	createTestInvoice(t, repo, ownerA, "INV-2025-0007", enums.InvoiceStatusDraft, now, now)

	next, err := repo.NextDocumentNumber(ctx, ownerA, "INV", 2025)
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-0008", next)

	otherOwner, err := repo.NextDocumentNumber(ctx, ownerB, "INV", 2025)
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-0001", otherOwner)

	otherYear, err := repo.NextDocumentNumber(ctx, ownerA, "INV", 2026)
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-0001", otherYear)

	offer, err := repo.NextDocumentNumber(ctx, ownerA, "OFF", 2025)
	require.NoError(t, err)
	assert.Equal(t, "OFF-2025-0001", offer)
}

func TestRepositoryListInvoices_paginationAndStatus(t *testing.T) {
	db := setupInvoicesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	owner := uuid.New()
	now := time.Now().UTC()
	older := createTestInvoice(t, repo, owner, "INV-2025-0101", enums.InvoiceStatusSent, now, now.Add(-time.Hour))
	newer := createTestInvoice(t, repo, owner, "INV-2025-0102", enums.InvoiceStatusDraft, now, now)
	createTestInvoice(t, repo, uuid.New(), "INV-2025-0101", enums.InvoiceStatusDraft, now, now)

	page, cursor, err := repo.ListInvoices(ctx, ListInvoicesQuery{OwnerID: owner, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, newer.ID, page[0].ID)
	require.NotNil(t, cursor)

	second, cursor, err := repo.ListInvoices(ctx, ListInvoicesQuery{OwnerID: owner, Limit: 1, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, older.ID, second[0].ID)
	assert.Nil(t, cursor)

	sent := enums.InvoiceStatusSent
	filtered, _, err := repo.ListInvoices(ctx, ListInvoicesQuery{OwnerID: owner, Limit: 10, Status: &sent})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, older.ID, filtered[0].ID)
}

func TestRepositoryInvoiceItems_replace(t *testing.T) {
	db := setupInvoicesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	invoice := createTestInvoice(t, repo, uuid.New(), "INV-2025-0201", enums.InvoiceStatusDraft, now, now)

	items := []models.InvoiceItem{
		{ID: uuid.New(), InvoiceID: invoice.ID, Description: "Second", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(50), Total: decimal.NewFromInt(50), Position: 1},
		{ID: uuid.New(), InvoiceID: invoice.ID, Description: "First", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(25), Total: decimal.NewFromInt(50), Position: 0},
	}
	require.NoError(t, repo.CreateInvoiceItems(ctx, items))

	listed, err := repo.ListInvoiceItems(ctx, invoice.ID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "First", listed[0].Description)
	assert.Equal(t, "Second", listed[1].Description)

	require.NoError(t, repo.DeleteInvoiceItems(ctx, invoice.ID))
	listed, err = repo.ListInvoiceItems(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestRepositoryListOverdueCandidates(t *testing.T) {
	db := setupInvoicesTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	now := time.Now().UTC()
	pastDue := createTestInvoice(t, repo, uuid.New(), "INV-2025-0301", enums.InvoiceStatusSent, now.AddDate(0, 0, -5), now)
	createTestInvoice(t, repo, uuid.New(), "INV-2025-0302", enums.InvoiceStatusSent, now.AddDate(0, 0, 5), now)
	createTestInvoice(t, repo, uuid.New(), "INV-2025-0303", enums.InvoiceStatusDraft, now.AddDate(0, 0, -5), now)
	partiallyPaid := createTestInvoice(t, repo, uuid.New(), "INV-2025-0304", enums.InvoiceStatusPartiallyPaid, now.AddDate(0, 0, -2), now)

	candidates, err := repo.ListOverdueCandidates(ctx, now)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, pastDue.ID, candidates[0].ID)
	assert.Equal(t, partiallyPaid.ID, candidates[1].ID)
}
