package invoices

import (
	"context"
	"errors"
	"fmt"
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

const (
	invoicePrefix = "INV"
	offerPrefix   = "OFF"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// ServiceParams groups dependencies for the invoices service.
type ServiceParams struct {
	Repo              Repository
	TransactionRunner txRunner
	Sender            email.Sender
	Users             userLoader
}

// Service orchestrates invoice and offer lifecycles.
type Service struct {
	repo     Repository
	txRunner txRunner
	sender   email.Sender
	users    userLoader
}

// NewService builds an invoices service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.TransactionRunner == nil {
		return nil, errors.New("transaction runner is required")
	}
	if params.Sender == nil {
		return nil, errors.New("email sender is required")
	}
	if params.Users == nil {
		return nil, errors.New("user loader is required")
	}
	return &Service{
		repo:     params.Repo,
		txRunner: params.TransactionRunner,
		sender:   params.Sender,
		users:    params.Users,
	}, nil
}

// LineInput is one requested document line.
type LineInput struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

// Totals holds the computed money fields for a document.
type Totals struct {
	Subtotal  decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
}

// ComputeTotals derives line totals, subtotal, tax and total. Each money
// value is rounded to cents.
func ComputeTotals(lines []LineInput, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.Quantity.Mul(line.UnitPrice).Round(2))
	}
	taxAmount := subtotal.Mul(taxRate).Div(decimal.NewFromInt(100)).Round(2)
	return Totals{
		Subtotal:  subtotal,
		TaxAmount: taxAmount,
		Total:     subtotal.Add(taxAmount),
	}
}

func validateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one line item is required")
	}
	for _, line := range lines {
		if line.Description == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "line description is required")
		}
		if !line.Quantity.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
		}
		if line.UnitPrice.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "line unit price cannot be negative")
		}
	}
	return nil
}

// CreateInvoiceInput carries the request to create an invoice.
type CreateInvoiceInput struct {
	OwnerID     uuid.UUID
	ContactID   *uuid.UUID
	CompanyID   *uuid.UUID
	InvoiceDate time.Time
	DueDate     time.Time
	ClientName  string
	ClientEmail *string
	ClientAddress   *string
	ClientVATNumber *string
	Currency    enums.Currency
	TaxRate     decimal.Decimal
	Lines       []LineInput
	Notes       *string
	Terms       *string
	TemplateID  *uuid.UUID
}

// CreateInvoice numbers and persists a draft invoice with its items.
func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (*models.Invoice, error) {
	if input.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if input.ClientName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client name is required")
	}
	if !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}
	if input.TaxRate.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tax rate cannot be negative")
	}
	if input.DueDate.Before(input.InvoiceDate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "due date cannot precede invoice date")
	}
	if err := validateLines(input.Lines); err != nil {
		return nil, err
	}

	totals := ComputeTotals(input.Lines, input.TaxRate)
	invoice := &models.Invoice{
		OwnerID:         input.OwnerID,
		ContactID:       input.ContactID,
		CompanyID:       input.CompanyID,
		InvoiceDate:     input.InvoiceDate,
		DueDate:         input.DueDate,
		ClientName:      input.ClientName,
		ClientEmail:     input.ClientEmail,
		ClientAddress:   input.ClientAddress,
		ClientVATNumber: input.ClientVATNumber,
		Currency:        input.Currency,
		Subtotal:        totals.Subtotal,
		TaxRate:         input.TaxRate,
		TaxAmount:       totals.TaxAmount,
		Total:           totals.Total,
		PaidAmount:      decimal.Zero,
		Status:          enums.InvoiceStatusDraft,
		Notes:           input.Notes,
		Terms:           input.Terms,
		TemplateID:      input.TemplateID,
	}

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		number, numErr := repo.NextDocumentNumber(ctx, input.OwnerID, invoicePrefix, input.InvoiceDate.Year())
		if numErr != nil {
			return numErr
		}
		invoice.Number = number
		if txErr := repo.CreateInvoice(ctx, invoice); txErr != nil {
			return txErr
		}
		return repo.CreateInvoiceItems(ctx, buildInvoiceItems(invoice.ID, input.Lines))
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func buildInvoiceItems(invoiceID uuid.UUID, lines []LineInput) []models.InvoiceItem {
	items := make([]models.InvoiceItem, 0, len(lines))
	for i, line := range lines {
		items = append(items, models.InvoiceItem{
			InvoiceID:   invoiceID,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Total:       line.Quantity.Mul(line.UnitPrice).Round(2),
			Position:    i,
		})
	}
	return items
}

func (s *Service) GetInvoice(ctx context.Context, ownerID, id uuid.UUID) (*models.Invoice, []models.InvoiceItem, error) {
	invoice, err := s.repo.FindInvoiceByID(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "invoice not found")
		}
		return nil, nil, err
	}
	items, err := s.repo.ListInvoiceItems(ctx, invoice.ID)
	if err != nil {
		return nil, nil, err
	}
	return invoice, items, nil
}

func (s *Service) ListInvoices(ctx context.Context, params ListInvoicesQuery) ([]models.Invoice, *pagination.Cursor, error) {
	if params.OwnerID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	return s.repo.ListInvoices(ctx, params)
}

// UpdateInvoiceInput carries editable draft fields; lines replace in full.
type UpdateInvoiceInput struct {
	DueDate     *time.Time
	ClientName  *string
	ClientEmail *string
	ClientAddress *string
	TaxRate     *decimal.Decimal
	Lines       []LineInput
	Notes       *string
	Terms       *string
	TemplateID  *uuid.UUID
}

// UpdateInvoice edits a draft. Non-draft invoices are immutable apart from
// their status lifecycle.
func (s *Service) UpdateInvoice(ctx context.Context, ownerID, id uuid.UUID, input UpdateInvoiceInput) (*models.Invoice, error) {
	invoice, _, err := s.GetInvoice(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status != enums.InvoiceStatusDraft {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only draft invoices can be edited")
	}

	if input.DueDate != nil {
		if input.DueDate.Before(invoice.InvoiceDate) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "due date cannot precede invoice date")
		}
		invoice.DueDate = *input.DueDate
	}
	if input.ClientName != nil {
		if *input.ClientName == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "client name is required")
		}
		invoice.ClientName = *input.ClientName
	}
	if input.ClientEmail != nil {
		invoice.ClientEmail = input.ClientEmail
	}
	if input.ClientAddress != nil {
		invoice.ClientAddress = input.ClientAddress
	}
	if input.TaxRate != nil {
		if input.TaxRate.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "tax rate cannot be negative")
		}
		invoice.TaxRate = *input.TaxRate
	}
	if input.Notes != nil {
		invoice.Notes = input.Notes
	}
	if input.Terms != nil {
		invoice.Terms = input.Terms
	}
	if input.TemplateID != nil {
		invoice.TemplateID = input.TemplateID
	}

	replaceLines := input.Lines != nil
	if replaceLines {
		if err := validateLines(input.Lines); err != nil {
			return nil, err
		}
		totals := ComputeTotals(input.Lines, invoice.TaxRate)
		invoice.Subtotal = totals.Subtotal
		invoice.TaxAmount = totals.TaxAmount
		invoice.Total = totals.Total
	} else if input.TaxRate != nil {
		invoice.TaxAmount = invoice.Subtotal.Mul(invoice.TaxRate).Div(decimal.NewFromInt(100)).Round(2)
		invoice.Total = invoice.Subtotal.Add(invoice.TaxAmount)
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if txErr := repo.UpdateInvoice(ctx, invoice); txErr != nil {
			return txErr
		}
		if !replaceLines {
			return nil
		}
		if txErr := repo.DeleteInvoiceItems(ctx, invoice.ID); txErr != nil {
			return txErr
		}
		return repo.CreateInvoiceItems(ctx, buildInvoiceItems(invoice.ID, input.Lines))
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// SendInvoice transitions a draft to sent and emails the client. The status
// change sticks even when the email bounces so the number is never reused.
func (s *Service) SendInvoice(ctx context.Context, ownerID, id uuid.UUID) (*models.Invoice, error) {
	invoice, items, err := s.GetInvoice(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if invoice.Status != enums.InvoiceStatusDraft {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invoice has already been sent")
	}

	invoice.Status = enums.InvoiceStatusSent
	if err := s.repo.UpdateInvoice(ctx, invoice); err != nil {
		return nil, err
	}

	if invoice.ClientEmail == nil || *invoice.ClientEmail == "" {
		return invoice, nil
	}

	owner, err := s.users.FindByID(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sender account")
	}

	msg := email.Message{
		To:      *invoice.ClientEmail,
		Subject: fmt.Sprintf("Invoice %s", invoice.Number),
		HTML:    renderInvoiceEmail(owner, invoice, items),
		Tags:    []string{"invoice_sent"},
	}
	if _, sendErr := s.sender.SendAs(ctx, tenantCredentials(owner), msg); sendErr != nil {
		return invoice, pkgerrors.Wrap(pkgerrors.CodeDependency, sendErr, "send invoice email")
	}
	return invoice, nil
}

// CancelInvoice voids an unpaid invoice.
func (s *Service) CancelInvoice(ctx context.Context, ownerID, id uuid.UUID) (*models.Invoice, error) {
	invoice, _, err := s.GetInvoice(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	switch invoice.Status {
	case enums.InvoiceStatusPaid:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "paid invoices cannot be cancelled")
	case enums.InvoiceStatusCancelled:
		return invoice, nil
	}
	if invoice.PaidAmount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invoices with recorded payments cannot be cancelled")
	}
	invoice.Status = enums.InvoiceStatusCancelled
	if err := s.repo.UpdateInvoice(ctx, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

// MarkOverdue sweeps past-due sent invoices into overdue state. Returns the
// number of invoices transitioned.
func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time) (int, error) {
	candidates, err := s.repo.ListOverdueCandidates(ctx, asOf)
	if err != nil {
		return 0, err
	}
	updated := 0
	for i := range candidates {
		invoice := &candidates[i]
		invoice.Status = enums.InvoiceStatusOverdue
		if err := s.repo.UpdateInvoice(ctx, invoice); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

func tenantCredentials(owner *models.User) email.Credentials {
	creds := email.Credentials{}
	if owner == nil {
		return creds
	}
	if owner.ResendAPIKey != nil {
		creds.APIKey = *owner.ResendAPIKey
	}
	if owner.ResendFromEmail != nil {
		creds.FromEmail = *owner.ResendFromEmail
	}
	if owner.ResendFromName != nil {
		creds.FromName = *owner.ResendFromName
	} else {
		creds.FromName = owner.FullName()
	}
	return creds
}

func renderInvoiceEmail(owner *models.User, invoice *models.Invoice, items []models.InvoiceItem) string {
	var rows string
	for _, item := range items {
		rows += fmt.Sprintf("<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
			item.Description, item.Quantity.String(), item.UnitPrice.StringFixed(2), item.Total.StringFixed(2))
	}
	sender := ""
	if owner != nil {
		sender = owner.FullName()
	}
	return fmt.Sprintf(
		`<h2>Invoice %s</h2><p>From: %s</p><p>Due: %s</p><table>%s</table><p>Total: %s %s</p>`,
		invoice.Number, sender, invoice.DueDate.Format("2006-01-02"), rows,
		invoice.Total.StringFixed(2), invoice.Currency,
	)
}
