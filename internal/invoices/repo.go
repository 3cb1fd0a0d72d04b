package invoices

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	"github.com/tallyhq/tallycrm-backend/pkg/enums"
	"github.com/tallyhq/tallycrm-backend/pkg/pagination"
)

// Repository exposes persistence for invoices and offers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
	CreateInvoiceItems(ctx context.Context, items []models.InvoiceItem) error
	FindInvoiceByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Invoice, error)
	ListInvoices(ctx context.Context, params ListInvoicesQuery) ([]models.Invoice, *pagination.Cursor, error)
	ListInvoiceItems(ctx context.Context, invoiceID uuid.UUID) ([]models.InvoiceItem, error)
	UpdateInvoice(ctx context.Context, invoice *models.Invoice) error
	DeleteInvoiceItems(ctx context.Context, invoiceID uuid.UUID) error
	NextDocumentNumber(ctx context.Context, ownerID uuid.UUID, prefix string, year int) (string, error)
	ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]models.Invoice, error)

	CreateOffer(ctx context.Context, offer *models.Offer) error
	CreateOfferItems(ctx context.Context, items []models.OfferItem) error
	FindOfferByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Offer, error)
	ListOffers(ctx context.Context, params ListOffersQuery) ([]models.Offer, *pagination.Cursor, error)
	ListOfferItems(ctx context.Context, offerID uuid.UUID) ([]models.OfferItem, error)
	UpdateOffer(ctx context.Context, offer *models.Offer) error
	DeleteOfferItems(ctx context.Context, offerID uuid.UUID) error
	ListExpiredOfferCandidates(ctx context.Context, asOf time.Time) ([]models.Offer, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an invoices repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// ListInvoicesQuery configures invoice list queries.
type ListInvoicesQuery struct {
	OwnerID uuid.UUID
	Limit   int
	Cursor  *pagination.Cursor
	Status  *enums.InvoiceStatus
}

func (r *repository) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *repository) CreateInvoiceItems(ctx context.Context, items []models.InvoiceItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindInvoiceByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) ListInvoices(ctx context.Context, params ListInvoicesQuery) ([]models.Invoice, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Invoice{}).Where("owner_id = ?", params.OwnerID)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var invoices []models.Invoice
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&invoices).Error; err != nil {
		return nil, nil, err
	}

	if len(invoices) > limit {
		next := invoices[limit]
		invoices = invoices[:limit]
		return invoices, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return invoices, nil, nil
}

func (r *repository) ListInvoiceItems(ctx context.Context, invoiceID uuid.UUID) ([]models.InvoiceItem, error) {
	var items []models.InvoiceItem
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("position ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) UpdateInvoice(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Save(invoice).Error
}

func (r *repository) DeleteInvoiceItems(ctx context.Context, invoiceID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Delete(&models.InvoiceItem{}).Error
}

// NextDocumentNumber produces the next sequential number for the owner and
// year, e.g. INV-2025-0007. The caller must hold a transaction spanning the
// read and the subsequent insert.
func (r *repository) NextDocumentNumber(ctx context.Context, ownerID uuid.UUID, prefix string, year int) (string, error) {
	pattern := fmt.Sprintf("%s-%d-%%", prefix, year)

	var last string
	var table string
	switch prefix {
	case "INV":
		table = "invoices"
	case "OFF":
		table = "offers"
	default:
		return "", fmt.Errorf("unknown document prefix %q", prefix)
	}

	err := r.db.WithContext(ctx).
		Table(table).
		Select("number").
		Where("owner_id = ? AND number LIKE ?", ownerID, pattern).
		Order("number DESC").
		Limit(1).
		Scan(&last).Error
	if err != nil {
		return "", err
	}

	seq := 1
	if last != "" {
		parts := strings.Split(last, "-")
		if n, parseErr := strconv.Atoi(parts[len(parts)-1]); parseErr == nil {
			seq = n + 1
		}
	}
	return fmt.Sprintf("%s-%d-%04d", prefix, year, seq), nil
}

// ListOverdueCandidates returns sent or partially paid invoices whose due
// date has passed.
func (r *repository) ListOverdueCandidates(ctx context.Context, asOf time.Time) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).
		Where("status IN ?", []enums.InvoiceStatus{enums.InvoiceStatusSent, enums.InvoiceStatusPartiallyPaid}).
		Where("due_date < ?", asOf).
		Order("due_date ASC").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
}

// ListOffersQuery configures offer list queries.
type ListOffersQuery struct {
	OwnerID uuid.UUID
	Limit   int
	Cursor  *pagination.Cursor
	Status  *enums.OfferStatus
}

func (r *repository) CreateOffer(ctx context.Context, offer *models.Offer) error {
	return r.db.WithContext(ctx).Create(offer).Error
}

func (r *repository) CreateOfferItems(ctx context.Context, items []models.OfferItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindOfferByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		First(&offer).Error
	if err != nil {
		return nil, err
	}
	return &offer, nil
}

func (r *repository) ListOffers(ctx context.Context, params ListOffersQuery) ([]models.Offer, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Offer{}).Where("owner_id = ?", params.OwnerID)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var offers []models.Offer
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&offers).Error; err != nil {
		return nil, nil, err
	}

	if len(offers) > limit {
		next := offers[limit]
		offers = offers[:limit]
		return offers, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return offers, nil, nil
}

func (r *repository) ListOfferItems(ctx context.Context, offerID uuid.UUID) ([]models.OfferItem, error) {
	var items []models.OfferItem
	err := r.db.WithContext(ctx).
		Where("offer_id = ?", offerID).
		Order("position ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) UpdateOffer(ctx context.Context, offer *models.Offer) error {
	return r.db.WithContext(ctx).Save(offer).Error
}

func (r *repository) DeleteOfferItems(ctx context.Context, offerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("offer_id = ?", offerID).
		Delete(&models.OfferItem{}).Error
}

// ListExpiredOfferCandidates returns sent offers whose validity window has
// passed.
func (r *repository) ListExpiredOfferCandidates(ctx context.Context, asOf time.Time) ([]models.Offer, error) {
	var offers []models.Offer
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.OfferStatusSent).
		Where("valid_until < ?", asOf).
		Order("valid_until ASC").
		Find(&offers).Error
	if err != nil {
		return nil, err
	}
	return offers, nil
}
