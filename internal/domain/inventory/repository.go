package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BalanceFilter narrows balance listings
type BalanceFilter struct {
	ProductID   *uuid.UUID
	WarehouseID *uuid.UUID
	LowStock    bool
	Page        int
	PageSize    int
}

// TransactionFilter narrows transaction listings
type TransactionFilter struct {
	ProductID      *uuid.UUID
	WarehouseID    *uuid.UUID
	Type           TransactionType
	ReferenceType  string
	ReferenceID    string
	IdempotencyKey string
	From           *time.Time
	To             *time.Time
	Page           int
	PageSize       int
}

// BalanceRepository persists InventoryBalance rows
type BalanceRepository interface {
	// FindByKey returns shared.ErrNotFound when no row exists for the key
	FindByKey(ctx context.Context, tenantID, productID, warehouseID uuid.UUID) (*InventoryBalance, error)

	FindByProduct(ctx context.Context, tenantID, productID uuid.UUID) ([]InventoryBalance, error)

	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter BalanceFilter) ([]InventoryBalance, error)

	// FindLowStock returns rows where quantity <= reorder_point
	FindLowStock(ctx context.Context, tenantID uuid.UUID) ([]InventoryBalance, error)

	// Create inserts a new row; a concurrent insert of the same key is a
	// ConcurrencyConflict
	Create(ctx context.Context, balance *InventoryBalance) error

	// SaveWithLock updates the row only if the stored version is still LoadedVersion
	SaveWithLock(ctx context.Context, balance *InventoryBalance) error
}

// TransactionRepository is append-only: there is no update or delete
type TransactionRepository interface {
	Create(ctx context.Context, tx *InventoryTransaction) error

	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter TransactionFilter) ([]InventoryTransaction, error)

	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter TransactionFilter) (int64, error)

	// FindByKey returns a key's rows in posting order
	FindByKey(ctx context.Context, tenantID, productID, warehouseID uuid.UUID) ([]InventoryTransaction, error)

	FindByTransferID(ctx context.Context, tenantID, transferID uuid.UUID) ([]InventoryTransaction, error)

	// FindByIdempotencyKey returns shared.ErrNotFound for an unused key
	FindByIdempotencyKey(ctx context.Context, tenantID uuid.UUID, key string) (*InventoryTransaction, error)
}
