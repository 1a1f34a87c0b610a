package persistence

import (
	"context"

	"github.com/erp/distribution/internal/domain/finance"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	receivableResource = "Receivable"
	paymentResource    = "Payment"
)

// GormReceivableRepository implements finance.ReceivableRepository using GORM
type GormReceivableRepository struct {
	db *gorm.DB
}

// NewGormReceivableRepository creates a new GormReceivableRepository
func NewGormReceivableRepository(db *gorm.DB) *GormReceivableRepository {
	return &GormReceivableRepository{db: db}
}

// FindByIDForTenant finds a receivable by ID within a tenant
func (r *GormReceivableRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*finance.Receivable, error) {
	var receivable finance.Receivable
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&receivable).Error; err != nil {
		return nil, translate(err, receivableResource)
	}
	return &receivable, nil
}

// FindByDelivery finds the receivable billing a delivery
func (r *GormReceivableRepository) FindByDelivery(ctx context.Context, tenantID, deliveryID uuid.UUID) (*finance.Receivable, error) {
	var receivable finance.Receivable
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND delivery_id = ?", tenantID, deliveryID).
		First(&receivable).Error; err != nil {
		return nil, translate(err, receivableResource)
	}
	return &receivable, nil
}

// FindAllForTenant lists receivables by due date
func (r *GormReceivableRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter finance.ReceivableFilter) ([]finance.Receivable, error) {
	query := r.db.WithContext(ctx).Model(&finance.Receivable{}).Where("tenant_id = ?", tenantID)
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}

	var receivables []finance.Receivable
	if err := paginate(query.Order("due_date ASC").Order("created_at ASC"), filter.Page, filter.PageSize).
		Find(&receivables).Error; err != nil {
		return nil, translate(err, receivableResource)
	}
	return receivables, nil
}

// Save inserts a new receivable
func (r *GormReceivableRepository) Save(ctx context.Context, receivable *finance.Receivable) error {
	if err := r.db.WithContext(ctx).Create(receivable).Error; err != nil {
		return translate(err, receivableResource)
	}
	receivable.MarkPersisted()
	return nil
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormReceivableRepository) SaveWithLock(ctx context.Context, receivable *finance.Receivable) error {
	result := r.db.WithContext(ctx).
		Model(&finance.Receivable{}).
		Where("id = ? AND tenant_id = ? AND version = ?", receivable.ID, receivable.TenantID, receivable.LoadedVersion()).
		Updates(map[string]interface{}{
			"paid_amount":       receivable.PaidAmount,
			"remaining_amount":  receivable.RemainingAmount,
			"status":            receivable.Status,
			"last_payment_date": receivable.LastPaymentDate,
			"notes":             receivable.Notes,
			"write_off_reason":  receivable.WriteOffReason,
			"written_off_at":    receivable.WrittenOffAt,
			"version":           receivable.Version,
			"updated_at":        receivable.UpdatedAt,
		})
	if err := lockResult(result, receivableResource); err != nil {
		return err
	}
	receivable.MarkPersisted()
	return nil
}

var _ finance.ReceivableRepository = (*GormReceivableRepository)(nil)

// GormPaymentRepository implements finance.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// Create inserts a payment row
func (r *GormPaymentRepository) Create(ctx context.Context, payment *finance.Payment) error {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return translate(err, paymentResource)
	}
	return nil
}

// FindByReference finds a payment by its idempotency reference
func (r *GormPaymentRepository) FindByReference(ctx context.Context, tenantID, receivableID uuid.UUID, reference string) (*finance.Payment, error) {
	var payment finance.Payment
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND receivable_id = ? AND reference = ?", tenantID, receivableID, reference).
		First(&payment).Error; err != nil {
		return nil, translate(err, paymentResource)
	}
	return &payment, nil
}

// FindByReceivable lists payments oldest first
func (r *GormPaymentRepository) FindByReceivable(ctx context.Context, tenantID, receivableID uuid.UUID) ([]finance.Payment, error) {
	var payments []finance.Payment
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND receivable_id = ?", tenantID, receivableID).
		Order("payment_date ASC").
		Order("created_at ASC").
		Find(&payments).Error; err != nil {
		return nil, translate(err, paymentResource)
	}
	return payments, nil
}

var _ finance.PaymentRepository = (*GormPaymentRepository)(nil)
