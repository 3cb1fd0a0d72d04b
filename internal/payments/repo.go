package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tallyhq/tallycrm-backend/pkg/db/models"
	"github.com/tallyhq/tallycrm-backend/pkg/enums"
	"github.com/tallyhq/tallycrm-backend/pkg/pagination"
)

// MatchableInvoiceStatuses are the invoice states a payment can settle.
var MatchableInvoiceStatuses = []enums.InvoiceStatus{
	enums.InvoiceStatusSent,
	enums.InvoiceStatusPartiallyPaid,
	enums.InvoiceStatusOverdue,
}

// Repository persists payments and the invoice rows reconciliation touches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreatePayment(ctx context.Context, payment *models.Payment) error
	FindPaymentByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Payment, error)
	ListPayments(ctx context.Context, params ListPaymentsQuery) ([]models.Payment, *pagination.Cursor, error)
	ListUnmatchedPayments(ctx context.Context) ([]models.Payment, error)
	UpdatePayment(ctx context.Context, payment *models.Payment) error
	DeletePayment(ctx context.Context, ownerID, id uuid.UUID) error

	ListMatchableInvoices(ctx context.Context, ownerID uuid.UUID, currency enums.Currency) ([]models.Invoice, error)
	FindInvoiceByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Invoice, error)
	UpdateInvoice(ctx context.Context, invoice *models.Invoice) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// ListPaymentsQuery configures payment list queries.
type ListPaymentsQuery struct {
	OwnerID uuid.UUID
	Limit   int
	Cursor  *pagination.Cursor
	Matched *bool
	Method  *enums.PaymentMethod
	Since   *time.Time
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindPaymentByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) ListPayments(ctx context.Context, params ListPaymentsQuery) ([]models.Payment, *pagination.Cursor, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Payment{}).Where("owner_id = ?", params.OwnerID)
	if params.Matched != nil {
		query = query.Where("is_matched = ?", *params.Matched)
	}
	if params.Method != nil {
		query = query.Where("method = ?", *params.Method)
	}
	if params.Since != nil {
		query = query.Where("payment_date >= ?", *params.Since)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var payments []models.Payment
	if err := query.Order("created_at DESC, id DESC").Limit(pagination.LimitWithBuffer(limit)).Find(&payments).Error; err != nil {
		return nil, nil, err
	}

	if len(payments) > limit {
		next := payments[limit]
		payments = payments[:limit]
		return payments, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return payments, nil, nil
}

// ListUnmatchedPayments returns every unmatched payment across all owners,
// oldest first, for the reconciliation sweep.
func (r *repository) ListUnmatchedPayments(ctx context.Context) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("is_matched = ?", false).
		Order("created_at ASC, id ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

func (r *repository) DeletePayment(ctx context.Context, ownerID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		Delete(&models.Payment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListMatchableInvoices returns the owner's settleable invoices in a fixed
// order: earliest due date first, then invoice number.
func (r *repository) ListMatchableInvoices(ctx context.Context, ownerID uuid.UUID, currency enums.Currency) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND currency = ?", ownerID, currency).
		Where("status IN ?", MatchableInvoiceStatuses).
		Order("due_date ASC, number ASC").
		Find(&invoices).Error
	if err != nil {
		return nil, err
	}
	return invoices, nil
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

func (r *repository) UpdateInvoice(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Save(invoice).Error
}
