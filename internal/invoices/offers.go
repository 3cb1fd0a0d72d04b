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

// CreateOfferInput carries the request to create an offer.
type CreateOfferInput struct {
	OwnerID       uuid.UUID
	ContactID     *uuid.UUID
	CompanyID     *uuid.UUID
	OfferDate     time.Time
	ValidUntil    time.Time
	ClientName    string
	ClientEmail   *string
	ClientAddress *string
	Currency      enums.Currency
	TaxRate       decimal.Decimal
	Lines         []LineInput
	Notes         *string
	Terms         *string
	TemplateID    *uuid.UUID
}

// CreateOffer numbers and persists a draft offer with its items.
func (s *Service) CreateOffer(ctx context.Context, input CreateOfferInput) (*models.Offer, error) {
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
	if input.ValidUntil.Before(input.OfferDate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "valid until cannot precede offer date")
	}
	if err := validateLines(input.Lines); err != nil {
		return nil, err
	}

	totals := ComputeTotals(input.Lines, input.TaxRate)
	offer := &models.Offer{
		OwnerID:       input.OwnerID,
		ContactID:     input.ContactID,
		CompanyID:     input.CompanyID,
		OfferDate:     input.OfferDate,
		ValidUntil:    input.ValidUntil,
		ClientName:    input.ClientName,
		ClientEmail:   input.ClientEmail,
		ClientAddress: input.ClientAddress,
		Currency:      input.Currency,
		Subtotal:      totals.Subtotal,
		TaxRate:       input.TaxRate,
		TaxAmount:     totals.TaxAmount,
		Total:         totals.Total,
		Status:        enums.OfferStatusDraft,
		Notes:         input.Notes,
		Terms:         input.Terms,
		TemplateID:    input.TemplateID,
	}

	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		number, numErr := repo.NextDocumentNumber(ctx, input.OwnerID, offerPrefix, input.OfferDate.Year())
		if numErr != nil {
			return numErr
		}
		offer.Number = number
		if txErr := repo.CreateOffer(ctx, offer); txErr != nil {
			return txErr
		}
		return repo.CreateOfferItems(ctx, buildOfferItems(offer.ID, input.Lines))
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

func buildOfferItems(offerID uuid.UUID, lines []LineInput) []models.OfferItem {
	items := make([]models.OfferItem, 0, len(lines))
	for i, line := range lines {
		items = append(items, models.OfferItem{
			OfferID:     offerID,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Total:       line.Quantity.Mul(line.UnitPrice).Round(2),
			Position:    i,
		})
	}
	return items
}

func (s *Service) GetOffer(ctx context.Context, ownerID, id uuid.UUID) (*models.Offer, []models.OfferItem, error) {
	offer, err := s.repo.FindOfferByID(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return nil, nil, err
	}
	items, err := s.repo.ListOfferItems(ctx, offer.ID)
	if err != nil {
		return nil, nil, err
	}
	return offer, items, nil
}

func (s *Service) ListOffers(ctx context.Context, params ListOffersQuery) ([]models.Offer, *pagination.Cursor, error) {
	if params.OwnerID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	return s.repo.ListOffers(ctx, params)
}

// UpdateOfferInput carries editable draft fields; lines replace in full.
type UpdateOfferInput struct {
	ValidUntil    *time.Time
	ClientName    *string
	ClientEmail   *string
	ClientAddress *string
	TaxRate       *decimal.Decimal
	Lines         []LineInput
	Notes         *string
	Terms         *string
	TemplateID    *uuid.UUID
}

// UpdateOffer edits a draft offer.
func (s *Service) UpdateOffer(ctx context.Context, ownerID, id uuid.UUID, input UpdateOfferInput) (*models.Offer, error) {
	offer, _, err := s.GetOffer(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if offer.Status != enums.OfferStatusDraft {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only draft offers can be edited")
	}

	if input.ValidUntil != nil {
		if input.ValidUntil.Before(offer.OfferDate) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "valid until cannot precede offer date")
		}
		offer.ValidUntil = *input.ValidUntil
	}
	if input.ClientName != nil {
		if *input.ClientName == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "client name is required")
		}
		offer.ClientName = *input.ClientName
	}
	if input.ClientEmail != nil {
		offer.ClientEmail = input.ClientEmail
	}
	if input.ClientAddress != nil {
		offer.ClientAddress = input.ClientAddress
	}
	if input.TaxRate != nil {
		if input.TaxRate.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "tax rate cannot be negative")
		}
		offer.TaxRate = *input.TaxRate
	}
	if input.Notes != nil {
		offer.Notes = input.Notes
	}
	if input.Terms != nil {
		offer.Terms = input.Terms
	}
	if input.TemplateID != nil {
		offer.TemplateID = input.TemplateID
	}

	replaceLines := input.Lines != nil
	if replaceLines {
		if err := validateLines(input.Lines); err != nil {
			return nil, err
		}
		totals := ComputeTotals(input.Lines, offer.TaxRate)
		offer.Subtotal = totals.Subtotal
		offer.TaxAmount = totals.TaxAmount
		offer.Total = totals.Total
	} else if input.TaxRate != nil {
		offer.TaxAmount = offer.Subtotal.Mul(offer.TaxRate).Div(decimal.NewFromInt(100)).Round(2)
		offer.Total = offer.Subtotal.Add(offer.TaxAmount)
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if txErr := repo.UpdateOffer(ctx, offer); txErr != nil {
			return txErr
		}
		if !replaceLines {
			return nil
		}
		if txErr := repo.DeleteOfferItems(ctx, offer.ID); txErr != nil {
			return txErr
		}
		return repo.CreateOfferItems(ctx, buildOfferItems(offer.ID, input.Lines))
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

// SendOffer transitions a draft to sent and emails the client.
func (s *Service) SendOffer(ctx context.Context, ownerID, id uuid.UUID) (*models.Offer, error) {
	offer, items, err := s.GetOffer(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if offer.Status != enums.OfferStatusDraft {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "offer has already been sent")
	}

	offer.Status = enums.OfferStatusSent
	if err := s.repo.UpdateOffer(ctx, offer); err != nil {
		return nil, err
	}

	if offer.ClientEmail == nil || *offer.ClientEmail == "" {
		return offer, nil
	}

	owner, err := s.users.FindByID(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sender account")
	}

	msg := email.Message{
		To:      *offer.ClientEmail,
		Subject: fmt.Sprintf("Offer %s", offer.Number),
		HTML:    renderOfferEmail(owner, offer, items),
		Tags:    []string{"offer_sent"},
	}
	if _, sendErr := s.sender.SendAs(ctx, tenantCredentials(owner), msg); sendErr != nil {
		return offer, pkgerrors.Wrap(pkgerrors.CodeDependency, sendErr, "send offer email")
	}
	return offer, nil
}

// AcceptOffer marks a sent offer as accepted.
func (s *Service) AcceptOffer(ctx context.Context, ownerID, id uuid.UUID) (*models.Offer, error) {
	return s.resolveOffer(ctx, ownerID, id, enums.OfferStatusAccepted)
}

// RejectOffer marks a sent offer as rejected.
func (s *Service) RejectOffer(ctx context.Context, ownerID, id uuid.UUID) (*models.Offer, error) {
	return s.resolveOffer(ctx, ownerID, id, enums.OfferStatusRejected)
}

func (s *Service) resolveOffer(ctx context.Context, ownerID, id uuid.UUID, to enums.OfferStatus) (*models.Offer, error) {
	offer, _, err := s.GetOffer(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if offer.Status != enums.OfferStatusSent {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only sent offers can be accepted or rejected")
	}
	offer.Status = to
	if err := s.repo.UpdateOffer(ctx, offer); err != nil {
		return nil, err
	}
	return offer, nil
}

// ExpireOffers sweeps sent offers whose validity window has passed. Returns
// the number of offers transitioned.
func (s *Service) ExpireOffers(ctx context.Context, asOf time.Time) (int, error) {
	candidates, err := s.repo.ListExpiredOfferCandidates(ctx, asOf)
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range candidates {
		offer := &candidates[i]
		offer.Status = enums.OfferStatusExpired
		if err := s.repo.UpdateOffer(ctx, offer); err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

// ConvertOffer turns an accepted offer into a draft invoice, copying the
// client snapshot and line items. Conversion is one-way and once only.
func (s *Service) ConvertOffer(ctx context.Context, ownerID, id uuid.UUID, invoiceDate, dueDate time.Time) (*models.Invoice, error) {
	offer, items, err := s.GetOffer(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if offer.ConvertedInvoiceID != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "offer has already been converted")
	}
	if offer.Status != enums.OfferStatusAccepted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only accepted offers can be converted")
	}
	if dueDate.Before(invoiceDate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "due date cannot precede invoice date")
	}

	invoice := &models.Invoice{
		OwnerID:       offer.OwnerID,
		ContactID:     offer.ContactID,
		CompanyID:     offer.CompanyID,
		InvoiceDate:   invoiceDate,
		DueDate:       dueDate,
		ClientName:    offer.ClientName,
		ClientEmail:   offer.ClientEmail,
		ClientAddress: offer.ClientAddress,
		Currency:      offer.Currency,
		Subtotal:      offer.Subtotal,
		TaxRate:       offer.TaxRate,
		TaxAmount:     offer.TaxAmount,
		Total:         offer.Total,
		PaidAmount:    decimal.Zero,
		Status:        enums.InvoiceStatusDraft,
		Notes:         offer.Notes,
		Terms:         offer.Terms,
		TemplateID:    offer.TemplateID,
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		number, numErr := repo.NextDocumentNumber(ctx, ownerID, invoicePrefix, invoiceDate.Year())
		if numErr != nil {
			return numErr
		}
		invoice.Number = number
		if txErr := repo.CreateInvoice(ctx, invoice); txErr != nil {
			return txErr
		}
		invoiceItems := make([]models.InvoiceItem, 0, len(items))
		for _, item := range items {
			invoiceItems = append(invoiceItems, models.InvoiceItem{
				InvoiceID:   invoice.ID,
				Description: item.Description,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				Total:       item.Total,
				Position:    item.Position,
			})
		}
		if txErr := repo.CreateInvoiceItems(ctx, invoiceItems); txErr != nil {
			return txErr
		}
		offer.ConvertedInvoiceID = &invoice.ID
		return repo.UpdateOffer(ctx, offer)
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

func renderOfferEmail(owner *models.User, offer *models.Offer, items []models.OfferItem) string {
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
		`<h2>Offer %s</h2><p>From: %s</p><p>Valid until: %s</p><table>%s</table><p>Total: %s %s</p>`,
		offer.Number, sender, offer.ValidUntil.Format("2006-01-02"), rows,
		offer.Total.StringFixed(2), offer.Currency,
	)
}
