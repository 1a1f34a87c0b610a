package persistence

import (
	"context"

	"github.com/erp/distribution/internal/domain/inventory"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const balanceResource = "Inventory balance"

// GormBalanceRepository implements inventory.BalanceRepository using GORM
type GormBalanceRepository struct {
	db *gorm.DB
}

// NewGormBalanceRepository creates a new GormBalanceRepository
func NewGormBalanceRepository(db *gorm.DB) *GormBalanceRepository {
	return &GormBalanceRepository{db: db}
}

// FindByKey finds the balance for a (product, warehouse) key
func (r *GormBalanceRepository) FindByKey(ctx context.Context, tenantID, productID, warehouseID uuid.UUID) (*inventory.InventoryBalance, error) {
	var balance inventory.InventoryBalance
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND warehouse_id = ?", tenantID, productID, warehouseID).
		First(&balance).Error; err != nil {
		return nil, translate(err, balanceResource)
	}
	return &balance, nil
}

// FindByProduct finds a product's balances across all locations
func (r *GormBalanceRepository) FindByProduct(ctx context.Context, tenantID, productID uuid.UUID) ([]inventory.InventoryBalance, error) {
	var balances []inventory.InventoryBalance
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ?", tenantID, productID).
		Order("warehouse_id").
		Find(&balances).Error; err != nil {
		return nil, translate(err, balanceResource)
	}
	return balances, nil
}

// FindAllForTenant lists balances matching the filter
func (r *GormBalanceRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter inventory.BalanceFilter) ([]inventory.InventoryBalance, error) {
	query := r.db.WithContext(ctx).Model(&inventory.InventoryBalance{}).Where("tenant_id = ?", tenantID)
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.WarehouseID != nil {
		query = query.Where("warehouse_id = ?", *filter.WarehouseID)
	}
	if filter.LowStock {
		query = query.Where("quantity <= reorder_point")
	}

	var balances []inventory.InventoryBalance
	if err := paginate(query.Order("product_id, warehouse_id"), filter.Page, filter.PageSize).
		Find(&balances).Error; err != nil {
		return nil, translate(err, balanceResource)
	}
	return balances, nil
}

// FindLowStock finds balances at or below their reorder point
func (r *GormBalanceRepository) FindLowStock(ctx context.Context, tenantID uuid.UUID) ([]inventory.InventoryBalance, error) {
	var balances []inventory.InventoryBalance
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND quantity <= reorder_point", tenantID).
		Order("quantity ASC").
		Find(&balances).Error; err != nil {
		return nil, translate(err, balanceResource)
	}
	return balances, nil
}

// Create inserts a new balance row. The unique key turns a racing insert
// into a ConcurrencyConflict.
func (r *GormBalanceRepository) Create(ctx context.Context, balance *inventory.InventoryBalance) error {
	if err := r.db.WithContext(ctx).Create(balance).Error; err != nil {
		return translate(err, balanceResource)
	}
	balance.MarkPersisted()
	return nil
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormBalanceRepository) SaveWithLock(ctx context.Context, balance *inventory.InventoryBalance) error {
	result := r.db.WithContext(ctx).
		Model(&inventory.InventoryBalance{}).
		Where("id = ? AND version = ?", balance.ID, balance.LoadedVersion()).
		Updates(map[string]interface{}{
			"quantity":      balance.Quantity,
			"reorder_point": balance.ReorderPoint,
			"min_quantity":  balance.MinQuantity,
			"max_quantity":  balance.MaxQuantity,
			"location":      balance.Location,
			"version":       balance.Version,
			"updated_at":    balance.UpdatedAt,
		})
	if err := lockResult(result, balanceResource); err != nil {
		return err
	}
	balance.MarkPersisted()
	return nil
}

var _ inventory.BalanceRepository = (*GormBalanceRepository)(nil)
