package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/distribution/internal/application/txscope"
	"github.com/erp/distribution/internal/domain/inventory"
	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func post(t *testing.T, scope *GormTransactionScope, entries ...inventory.Entry) error {
	t.Helper()
	return scope.Execute(context.Background(), func(repos txscope.Repositories) error {
		ledger := inventory.NewLedger(repos.Balances(), repos.StockTransactions(), inventory.DefaultReorderPoint)
		for _, e := range entries {
			if _, err := ledger.Post(context.Background(), e); err != nil {
				return err
			}
		}
		return nil
	})
}

func TestLedger_InThenOutChainsTransactions(t *testing.T) {
	db := setupTestDB(t)
	scope := NewGormTransactionScope(db)
	ctx := context.Background()
	tenantID, productID, warehouseID := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, post(t, scope, inventory.Entry{
		TenantID: tenantID, ProductID: productID, WarehouseID: warehouseID,
		Type: inventory.TransactionTypeIn, Quantity: dec(50), Reason: "receipt",
	}))
	require.NoError(t, post(t, scope, inventory.Entry{
		TenantID: tenantID, ProductID: productID, WarehouseID: warehouseID,
		Type: inventory.TransactionTypeOut, Quantity: dec(20), Reason: "issue",
	}))

	balance, err := NewGormBalanceRepository(db).FindByKey(ctx, tenantID, productID, warehouseID)
	require.NoError(t, err)
	assert.True(t, balance.Quantity.Equal(dec(30)), "got %s", balance.Quantity)

	rows, err := NewGormInventoryTransactionRepository(db).FindByKey(ctx, tenantID, productID, warehouseID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.NoError(t, inventory.VerifyChain(rows))
	assert.True(t, inventory.FoldTransactions(rows).Equal(balance.Quantity))
	assert.True(t, rows[0].QuantityAfter.Equal(rows[1].QuantityBefore))
}

func TestLedger_FailedTransferChangesNothing(t *testing.T) {
	db := setupTestDB(t)
	scope := NewGormTransactionScope(db)
	ctx := context.Background()
	tenantID, productID := uuid.New(), uuid.New()
	from, to := uuid.New(), uuid.New()

	require.NoError(t, post(t, scope, inventory.Entry{
		TenantID: tenantID, ProductID: productID, WarehouseID: from,
		Type: inventory.TransactionTypeIn, Quantity: dec(5),
	}))

	transferID := uuid.New()
	// credit first so that a rollback has something to undo
	err := post(t, scope,
		inventory.Entry{
			TenantID: tenantID, ProductID: productID, WarehouseID: to,
			Type: inventory.TransactionTypeTransfer, Quantity: dec(8),
			TransferID: transferID, TransferLeg: inventory.TransferLegIn,
		},
		inventory.Entry{
			TenantID: tenantID, ProductID: productID, WarehouseID: from,
			Type: inventory.TransactionTypeTransfer, Quantity: dec(8),
			TransferID: transferID, TransferLeg: inventory.TransferLegOut,
		},
	)
	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindInsufficientStock))

	balances := NewGormBalanceRepository(db)
	src, err := balances.FindByKey(ctx, tenantID, productID, from)
	require.NoError(t, err)
	assert.True(t, src.Quantity.Equal(dec(5)))

	_, err = balances.FindByKey(ctx, tenantID, productID, to)
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	legs, err := NewGormInventoryTransactionRepository(db).FindByTransferID(ctx, tenantID, transferID)
	require.NoError(t, err)
	assert.Empty(t, legs)
}

func TestLedger_TransferConservesTotal(t *testing.T) {
	db := setupTestDB(t)
	scope := NewGormTransactionScope(db)
	ctx := context.Background()
	tenantID, productID := uuid.New(), uuid.New()
	from, to := uuid.New(), uuid.New()

	require.NoError(t, post(t, scope,
		inventory.Entry{TenantID: tenantID, ProductID: productID, WarehouseID: from, Type: inventory.TransactionTypeIn, Quantity: dec(40)},
		inventory.Entry{TenantID: tenantID, ProductID: productID, WarehouseID: to, Type: inventory.TransactionTypeIn, Quantity: dec(2)},
	))

	transferID := uuid.New()
	require.NoError(t, post(t, scope,
		inventory.Entry{TenantID: tenantID, ProductID: productID, WarehouseID: from, Type: inventory.TransactionTypeTransfer,
			Quantity: dec(15), TransferID: transferID, TransferLeg: inventory.TransferLegOut},
		inventory.Entry{TenantID: tenantID, ProductID: productID, WarehouseID: to, Type: inventory.TransactionTypeTransfer,
			Quantity: dec(15), TransferID: transferID, TransferLeg: inventory.TransferLegIn},
	))

	all, err := NewGormBalanceRepository(db).FindByProduct(ctx, tenantID, productID)
	require.NoError(t, err)
	total := decimal.Zero
	for _, b := range all {
		total = total.Add(b.Quantity)
	}
	assert.True(t, total.Equal(dec(42)))

	legs, err := NewGormInventoryTransactionRepository(db).FindByTransferID(ctx, tenantID, transferID)
	require.NoError(t, err)
	require.Len(t, legs, 2)
	for _, leg := range legs {
		assert.Equal(t, inventory.TransactionTypeTransfer, leg.Type)
		require.NotNil(t, leg.TransferID)
		assert.Equal(t, transferID, *leg.TransferID)
	}
}

func TestGormBalanceRepository_SaveWithLockDetectsStaleVersion(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormBalanceRepository(db)
	ctx := context.Background()

	balance, err := inventory.NewInventoryBalance(uuid.New(), uuid.New(), uuid.New(), dec(10))
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, balance))

	first, err := repo.FindByKey(ctx, balance.TenantID, balance.ProductID, balance.WarehouseID)
	require.NoError(t, err)
	second, err := repo.FindByKey(ctx, balance.TenantID, balance.ProductID, balance.WarehouseID)
	require.NoError(t, err)

	_, _, err = first.Increase(dec(3))
	require.NoError(t, err)
	require.NoError(t, repo.SaveWithLock(ctx, first))

	_, _, err = second.Increase(dec(7))
	require.NoError(t, err)
	err = repo.SaveWithLock(ctx, second)
	assert.True(t, shared.IsKind(err, shared.KindConcurrencyConflict))

	stored, err := repo.FindByKey(ctx, balance.TenantID, balance.ProductID, balance.WarehouseID)
	require.NoError(t, err)
	assert.True(t, stored.Quantity.Equal(dec(3)))
}

func TestGormBalanceRepository_DuplicateKeyIsConflict(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormBalanceRepository(db)
	ctx := context.Background()
	tenantID, productID, warehouseID := uuid.New(), uuid.New(), uuid.New()

	a, err := inventory.NewInventoryBalance(tenantID, productID, warehouseID, dec(10))
	require.NoError(t, err)
	b, err := inventory.NewInventoryBalance(tenantID, productID, warehouseID, dec(10))
	require.NoError(t, err)

	require.NoError(t, repo.Create(ctx, a))
	err = repo.Create(ctx, b)
	assert.True(t, shared.IsKind(err, shared.KindConcurrencyConflict))
}

func TestGormBalanceRepository_FindLowStock(t *testing.T) {
	db := setupTestDB(t)
	scope := NewGormTransactionScope(db)
	tenantID := uuid.New()
	low, ok := uuid.New(), uuid.New()

	require.NoError(t, post(t, scope,
		inventory.Entry{TenantID: tenantID, ProductID: low, Type: inventory.TransactionTypeIn, Quantity: dec(4)},
		inventory.Entry{TenantID: tenantID, ProductID: ok, Type: inventory.TransactionTypeIn, Quantity: dec(400)},
	))

	rows, err := NewGormBalanceRepository(db).FindLowStock(context.Background(), tenantID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, low, rows[0].ProductID)
	assert.Equal(t, uuid.Nil, rows[0].WarehouseID)

	other, err := NewGormBalanceRepository(db).FindLowStock(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestGormInventoryTransactionRepository_FilterAndCount(t *testing.T) {
	db := setupTestDB(t)
	scope := NewGormTransactionScope(db)
	tenantID, productID := uuid.New(), uuid.New()

	require.NoError(t, post(t, scope,
		inventory.Entry{TenantID: tenantID, ProductID: productID, Type: inventory.TransactionTypeIn, Quantity: dec(10)},
		inventory.Entry{TenantID: tenantID, ProductID: productID, Type: inventory.TransactionTypeIn, Quantity: dec(10)},
		inventory.Entry{TenantID: tenantID, ProductID: productID, Type: inventory.TransactionTypeOut, Quantity: dec(5)},
	))

	repo := NewGormInventoryTransactionRepository(db)
	ctx := context.Background()

	count, err := repo.CountForTenant(ctx, tenantID, inventory.TransactionFilter{Type: inventory.TransactionTypeIn})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	page, err := repo.FindAllForTenant(ctx, tenantID, inventory.TransactionFilter{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	none, err := repo.CountForTenant(ctx, uuid.New(), inventory.TransactionFilter{})
	require.NoError(t, err)
	assert.Zero(t, none)
}

func newMockBalanceRepository(t *testing.T) (*GormBalanceRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, GormConfig())
	require.NoError(t, err)

	return NewGormBalanceRepository(gormDB), mock, mockDB
}

func TestGormBalanceRepository_SaveWithLockSQL(t *testing.T) {
	t.Run("guards the update with the loaded version", func(t *testing.T) {
		repo, mock, mockDB := newMockBalanceRepository(t)
		defer mockDB.Close()

		balance, err := inventory.NewInventoryBalance(uuid.New(), uuid.New(), uuid.New(), dec(10))
		require.NoError(t, err)
		_, _, err = balance.Increase(dec(5))
		require.NoError(t, err)

		mock.ExpectExec(`UPDATE "inventory_balances" SET .* WHERE id = \$\d+ AND version = \$\d+`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.SaveWithLock(context.Background(), balance))
		assert.Equal(t, balance.Version, balance.LoadedVersion())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero rows affected is a concurrency conflict", func(t *testing.T) {
		repo, mock, mockDB := newMockBalanceRepository(t)
		defer mockDB.Close()

		balance, err := inventory.NewInventoryBalance(uuid.New(), uuid.New(), uuid.New(), dec(10))
		require.NoError(t, err)
		_, _, err = balance.Increase(dec(5))
		require.NoError(t, err)

		mock.ExpectExec(`UPDATE "inventory_balances" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = repo.SaveWithLock(context.Background(), balance)
		assert.True(t, shared.IsKind(err, shared.KindConcurrencyConflict))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("driver failure is upstream unavailable", func(t *testing.T) {
		repo, mock, mockDB := newMockBalanceRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "inventory_balances"`).
			WillReturnError(sql.ErrConnDone)

		_, err := repo.FindByKey(context.Background(), uuid.New(), uuid.New(), uuid.New())
		assert.True(t, shared.IsRetryable(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedger_IdempotencyKeyIsUniquePerTenant(t *testing.T) {
	db := setupTestDB(t)
	scope := NewGormTransactionScope(db)
	repo := NewGormInventoryTransactionRepository(db)
	ctx := context.Background()
	tenantID, productID, warehouseID := uuid.New(), uuid.New(), uuid.New()
	receipt := inventory.Entry{
		TenantID: tenantID, ProductID: productID, WarehouseID: warehouseID,
		Type: inventory.TransactionTypeIn, Quantity: dec(12),
		ReferenceType: "purchase", ReferenceID: "PO-77", IdempotencyKey: "GRN-77",
	}

	require.NoError(t, post(t, scope, receipt))
	err := post(t, scope, receipt)
	assert.True(t, shared.IsKind(err, shared.KindConcurrencyConflict), "%v", err)

	balance, err := NewGormBalanceRepository(db).FindByKey(ctx, tenantID, productID, warehouseID)
	require.NoError(t, err)
	assert.True(t, balance.Quantity.Equal(dec(12)), "the duplicate rolled back its balance change")

	other := receipt
	other.TenantID = uuid.New()
	require.NoError(t, post(t, scope, other), "another tenant may reuse the key")
	require.NoError(t, post(t, scope, inventory.Entry{
		TenantID: tenantID, ProductID: productID, WarehouseID: warehouseID,
		Type: inventory.TransactionTypeOut, Quantity: dec(2),
	}), "rows without a key never collide")

	stored, err := repo.FindByIdempotencyKey(ctx, tenantID, "GRN-77")
	require.NoError(t, err)
	assert.Equal(t, "PO-77", stored.ReferenceID)
	_, err = repo.FindByIdempotencyKey(ctx, tenantID, "GRN-78")
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	byRef, err := repo.FindAllForTenant(ctx, tenantID, inventory.TransactionFilter{ReferenceType: "purchase", ReferenceID: "PO-77"})
	require.NoError(t, err)
	require.Len(t, byRef, 1)
	count, err := repo.CountForTenant(ctx, tenantID, inventory.TransactionFilter{IdempotencyKey: "GRN-77"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
