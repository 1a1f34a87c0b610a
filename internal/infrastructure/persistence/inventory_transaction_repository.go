package persistence

import (
	"context"

	"github.com/erp/distribution/internal/domain/inventory"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const stockTransactionResource = "Inventory transaction"

// GormInventoryTransactionRepository implements inventory.TransactionRepository.
// It only ever inserts and reads.
type GormInventoryTransactionRepository struct {
	db *gorm.DB
}

// NewGormInventoryTransactionRepository creates a new GormInventoryTransactionRepository
func NewGormInventoryTransactionRepository(db *gorm.DB) *GormInventoryTransactionRepository {
	return &GormInventoryTransactionRepository{db: db}
}

// Create appends a transaction row
func (r *GormInventoryTransactionRepository) Create(ctx context.Context, tx *inventory.InventoryTransaction) error {
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		return translate(err, stockTransactionResource)
	}
	return nil
}

// FindAllForTenant lists transactions newest first
func (r *GormInventoryTransactionRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter inventory.TransactionFilter) ([]inventory.InventoryTransaction, error) {
	var txs []inventory.InventoryTransaction
	query := r.applyFilter(r.db.WithContext(ctx).Model(&inventory.InventoryTransaction{}), tenantID, filter).
		Order("created_at DESC").
		Order("balance_version DESC")
	if err := paginate(query, filter.Page, filter.PageSize).Find(&txs).Error; err != nil {
		return nil, translate(err, stockTransactionResource)
	}
	return txs, nil
}

// CountForTenant counts transactions matching the filter, ignoring pagination
func (r *GormInventoryTransactionRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter inventory.TransactionFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.db.WithContext(ctx).Model(&inventory.InventoryTransaction{}), tenantID, filter).
		Count(&count).Error; err != nil {
		return 0, translate(err, stockTransactionResource)
	}
	return count, nil
}

// FindByKey returns a key's rows in posting order
func (r *GormInventoryTransactionRepository) FindByKey(ctx context.Context, tenantID, productID, warehouseID uuid.UUID) ([]inventory.InventoryTransaction, error) {
	var txs []inventory.InventoryTransaction
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND warehouse_id = ?", tenantID, productID, warehouseID).
		Order("balance_version ASC").
		Order("created_at ASC").
		Find(&txs).Error; err != nil {
		return nil, translate(err, stockTransactionResource)
	}
	return txs, nil
}

// FindByTransferID returns both legs of a transfer
func (r *GormInventoryTransactionRepository) FindByTransferID(ctx context.Context, tenantID, transferID uuid.UUID) ([]inventory.InventoryTransaction, error) {
	var txs []inventory.InventoryTransaction
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND transfer_id = ?", tenantID, transferID).
		Order("created_at ASC").
		Find(&txs).Error; err != nil {
		return nil, translate(err, stockTransactionResource)
	}
	return txs, nil
}

// FindByIdempotencyKey returns the row a retry key produced. For a transfer
// that is the outgoing leg.
func (r *GormInventoryTransactionRepository) FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*inventory.InventoryTransaction, error) {
	var tx inventory.InventoryTransaction
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND idempotency_key = ?", tenantID, key).
		First(&tx).Error; err != nil {
		return nil, translate(err, stockTransactionResource)
	}
	return &tx, nil
}

func (r *GormInventoryTransactionRepository) applyFilter(query *gorm.DB, tenantID uuid.UUID, filter inventory.TransactionFilter) *gorm.DB {
	query = query.Where("tenant_id = ?", tenantID)
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.WarehouseID != nil {
		query = query.Where("warehouse_id = ?", *filter.WarehouseID)
	}
	if filter.Type != "" {
		query = query.Where("transaction_type = ?", filter.Type)
	}
	if filter.ReferenceType != "" {
		query = query.Where("reference_type = ?", filter.ReferenceType)
	}
	if filter.ReferenceID != "" {
		query = query.Where("reference_id = ?", filter.ReferenceID)
	}
	if filter.IdempotencyKey != "" {
		query = query.Where("idempotency_key = ?", filter.IdempotencyKey)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}
	return query
}

var _ inventory.TransactionRepository = (*GormInventoryTransactionRepository)(nil)
