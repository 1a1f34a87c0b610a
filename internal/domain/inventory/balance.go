package inventory

import (
	"time"

	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultReorderPoint is used when a balance row is created implicitly by a movement
var DefaultReorderPoint = decimal.NewFromInt(10)

// InventoryBalance is the on-hand quantity of one product at one location.
// The key is (TenantID, ProductID, WarehouseID); uuid.Nil as WarehouseID is the
// tenant's default location. Quantity must always equal the fold of the
// transaction log for the key, so it is only changed through the Ledger.
type InventoryBalance struct {
	shared.BaseAggregateRoot
	TenantID     uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_balance_key,priority:1"`
	ProductID    uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_balance_key,priority:2"`
	WarehouseID  uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex:idx_inventory_balance_key,priority:3"`
	Quantity     decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	ReorderPoint decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:10"`
	MinQuantity  decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	MaxQuantity  *decimal.Decimal `gorm:"type:decimal(18,4)"`
	Location     string           `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (InventoryBalance) TableName() string {
	return "inventory_balances"
}

// NewInventoryBalance creates an empty balance for a product/location key
func NewInventoryBalance(tenantID, productID, warehouseID uuid.UUID, reorderPoint decimal.Decimal) (*InventoryBalance, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	if productID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if reorderPoint.IsNegative() {
		return nil, shared.NewValidationError("INVALID_REORDER_POINT", "Reorder point cannot be negative")
	}

	return &InventoryBalance{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		TenantID:          tenantID,
		ProductID:         productID,
		WarehouseID:       warehouseID,
		Quantity:          decimal.Zero,
		ReorderPoint:      reorderPoint,
		MinQuantity:       decimal.Zero,
	}, nil
}

// BelongsTo returns ErrTenantMismatch when the row is owned by another tenant
func (b *InventoryBalance) BelongsTo(tenantID uuid.UUID) error {
	return shared.CheckTenant(b.TenantID, tenantID)
}

// Increase adds stock and returns the quantities before and after
func (b *InventoryBalance) Increase(quantity decimal.Decimal) (before, after decimal.Decimal, err error) {
	if !quantity.IsPositive() {
		return b.Quantity, b.Quantity, shared.NewValidationError("INVALID_QUANTITY", "Quantity must be positive")
	}
	return b.set(b.Quantity.Add(quantity))
}

// Decrease removes stock. It fails with InsufficientStock, leaving the
// balance untouched, when the result would be negative.
func (b *InventoryBalance) Decrease(quantity decimal.Decimal) (before, after decimal.Decimal, err error) {
	if !quantity.IsPositive() {
		return b.Quantity, b.Quantity, shared.NewValidationError("INVALID_QUANTITY", "Quantity must be positive")
	}
	next := b.Quantity.Sub(quantity)
	if next.IsNegative() {
		return b.Quantity, b.Quantity, shared.NewInsufficientStockError(
			"Insufficient stock: available " + b.Quantity.String() + ", requested " + quantity.String())
	}
	return b.set(next)
}

// SetTo overwrites the quantity with a counted value
func (b *InventoryBalance) SetTo(quantity decimal.Decimal) (before, after decimal.Decimal, err error) {
	if quantity.IsNegative() {
		return b.Quantity, b.Quantity, shared.NewValidationError("INVALID_QUANTITY", "Counted quantity cannot be negative")
	}
	return b.set(quantity)
}

func (b *InventoryBalance) set(next decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	before := b.Quantity
	wasLow := b.IsLowStock()

	b.Quantity = next
	b.UpdatedAt = time.Now()
	b.IncrementVersion()

	if !wasLow && b.IsLowStock() {
		b.AddDomainEvent(NewStockBelowReorderPointEvent(b))
	}
	return before, next, nil
}

// SetThresholds updates reorder point and min/max levels without touching Quantity
func (b *InventoryBalance) SetThresholds(reorderPoint, minQuantity decimal.Decimal, maxQuantity *decimal.Decimal) error {
	if reorderPoint.IsNegative() || minQuantity.IsNegative() {
		return shared.NewValidationError("INVALID_THRESHOLD", "Thresholds cannot be negative")
	}
	if maxQuantity != nil && maxQuantity.LessThan(minQuantity) {
		return shared.NewValidationError("INVALID_THRESHOLD", "Maximum quantity cannot be less than minimum quantity")
	}
	b.ReorderPoint = reorderPoint
	b.MinQuantity = minQuantity
	b.MaxQuantity = maxQuantity
	b.UpdatedAt = time.Now()
	b.IncrementVersion()
	return nil
}

// IsLowStock reports whether the quantity is at or below the reorder point
func (b *InventoryBalance) IsLowStock() bool {
	return b.Quantity.LessThanOrEqual(b.ReorderPoint)
}

// IsOutOfStock reports whether nothing is on hand
func (b *InventoryBalance) IsOutOfStock() bool {
	return !b.Quantity.IsPositive()
}
