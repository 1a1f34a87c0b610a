//go:build integration

package integration

import (
	"context"
	"os"
	"sync"
	"testing"

	catalogapp "github.com/erp/distribution/internal/application/catalog"
	financeapp "github.com/erp/distribution/internal/application/finance"
	inventoryapp "github.com/erp/distribution/internal/application/inventory"
	partnerapp "github.com/erp/distribution/internal/application/partner"
	"github.com/erp/distribution/internal/bootstrap"
	"github.com/erp/distribution/internal/domain/finance"
	"github.com/erp/distribution/internal/domain/shared"
	"github.com/erp/distribution/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	code := m.Run()
	CleanupSharedContainer()
	os.Exit(code)
}

func newApp(t *testing.T, redis *config.RedisConfig) *bootstrap.App {
	t.Helper()
	cfg := config.Default()
	if redis != nil {
		cfg.Redis = *redis
	}
	app, err := bootstrap.New(context.Background(), cfg,
		bootstrap.WithDB(NewSharedTestDB(t).DB),
		bootstrap.WithLogger(zaptest.NewLogger(t)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return app
}

type stockSetup struct {
	tenantID    uuid.UUID
	actorID     uuid.UUID
	productID   uuid.UUID
	warehouseID uuid.UUID
}

func seedStock(t *testing.T, app *bootstrap.App, qty int64) stockSetup {
	t.Helper()
	ctx := context.Background()
	s := stockSetup{tenantID: uuid.New(), actorID: uuid.New()}

	product, err := app.Products.Create(ctx, s.tenantID, catalogapp.CreateProductRequest{
		SKU: "GAO-ST25", Name: "Gạo ST25", Unit: "bao", BasePrice: decimal.NewFromInt(350_000),
	})
	require.NoError(t, err)
	warehouse, err := app.Warehouses.Create(ctx, s.tenantID, partnerapp.CreateWarehouseRequest{Name: "Kho Bình Tân"})
	require.NoError(t, err)
	s.productID, s.warehouseID = product.ID, warehouse.ID

	_, err = app.Inventory.Adjust(ctx, s.tenantID, s.actorID, inventoryapp.AdjustRequest{
		ProductID: s.productID, WarehouseID: s.warehouseID, Type: "in", Quantity: decimal.NewFromInt(qty), Reason: "opening stock",
	})
	require.NoError(t, err)
	return s
}

// retry repeats fn while it loses an optimistic lock
func retry(fn func() error) error {
	for {
		err := fn()
		if !shared.IsKind(err, shared.KindConcurrencyConflict) {
			return err
		}
	}
}

func TestConcurrentStockOut_NeverOversells(t *testing.T) {
	app := newApp(t, nil)
	ctx := context.Background()
	s := seedStock(t, app, 10)

	const workers = 20
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		shipped      int
		insufficient int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := retry(func() error {
				_, err := app.Inventory.Adjust(ctx, s.tenantID, s.actorID, inventoryapp.AdjustRequest{
					ProductID: s.productID, WarehouseID: s.warehouseID, Type: "out", Quantity: decimal.NewFromInt(1), Reason: "picking",
				})
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				shipped++
			case shared.IsKind(err, shared.KindInsufficientStock):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, shipped)
	assert.Equal(t, workers-10, insufficient)

	onHand, err := app.Inventory.GetBalance(ctx, s.tenantID, s.productID, s.warehouseID)
	require.NoError(t, err)
	assert.True(t, onHand.IsZero(), onHand.String())

	txs, total, err := app.Inventory.ListTransactions(ctx, s.tenantID, inventoryapp.TransactionListFilter{ProductID: &s.productID})
	require.NoError(t, err)
	assert.Equal(t, int64(11), total)
	for _, tx := range txs {
		assert.False(t, tx.QuantityAfter.IsNegative(), tx.TransactionNumber)
	}
}

func TestTransfer_IsAtomic(t *testing.T) {
	app := newApp(t, nil)
	ctx := context.Background()
	s := seedStock(t, app, 5)
	other, err := app.Warehouses.Create(ctx, s.tenantID, partnerapp.CreateWarehouseRequest{Name: "Kho Thủ Đức"})
	require.NoError(t, err)

	_, err = app.Inventory.Transfer(ctx, s.tenantID, s.actorID, inventoryapp.TransferRequest{
		ProductID: s.productID, FromWarehouseID: s.warehouseID, ToWarehouseID: other.ID, Quantity: decimal.NewFromInt(6),
	})
	assert.True(t, shared.IsKind(err, shared.KindInsufficientStock))

	dest, err := app.Inventory.GetBalance(ctx, s.tenantID, s.productID, other.ID)
	require.NoError(t, err)
	assert.True(t, dest.IsZero(), "a rejected transfer leaves the destination untouched")

	_, err = app.Inventory.Transfer(ctx, s.tenantID, s.actorID, inventoryapp.TransferRequest{
		ProductID: s.productID, FromWarehouseID: s.warehouseID, ToWarehouseID: other.ID, Quantity: decimal.NewFromInt(5),
	})
	require.NoError(t, err)
	dest, err = app.Inventory.GetBalance(ctx, s.tenantID, s.productID, other.ID)
	require.NoError(t, err)
	assert.True(t, dest.Equal(decimal.NewFromInt(5)))
}

func TestConcurrentPayments_SameReferenceRecordedOnce(t *testing.T) {
	redis := NewTestRedis(t)
	app := newApp(t, &redis)
	require.True(t, app.Cache.Distributed())
	ctx := context.Background()
	tenantID := uuid.New()

	customer, err := app.Customers.Create(ctx, tenantID, partnerapp.CreateCustomerRequest{Code: "KH900", Name: "Đại lý Hòa Bình"})
	require.NoError(t, err)
	r, err := app.Receivables.Create(ctx, tenantID, financeapp.CreateReceivableRequest{
		CustomerID: customer.ID, Amount: decimal.NewFromInt(1_000_000),
	})
	require.NoError(t, err)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		recorded int
		replayed int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var res *financeapp.PaymentResult
			err := retry(func() error {
				var err error
				res, err = app.Receivables.RecordPayment(ctx, tenantID, uuid.New(), r.ID, financeapp.RecordPaymentRequest{
					Amount: decimal.NewFromInt(400_000), Method: "bank_transfer", Reference: "VCB-20260504-01",
				})
				return err
			})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.Replayed {
				replayed++
			} else {
				recorded++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, recorded)
	assert.Equal(t, workers-1, replayed)

	payments, err := app.Receivables.ListPayments(ctx, tenantID, r.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)

	stored, err := app.Receivables.GetByID(ctx, tenantID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.ReceivableStatusPartial, stored.Status)
	assert.True(t, stored.RemainingAmount.Equal(decimal.NewFromInt(600_000)))
}

func TestTenantIsolation(t *testing.T) {
	app := newApp(t, nil)
	ctx := context.Background()
	s := seedStock(t, app, 3)
	intruder := uuid.New()

	_, err := app.Products.GetByID(ctx, intruder, s.productID)
	assert.True(t, shared.IsKind(err, shared.KindNotFound))

	qty, err := app.Inventory.GetBalance(ctx, intruder, s.productID, s.warehouseID)
	require.NoError(t, err)
	assert.True(t, qty.IsZero())

	_, err = app.Inventory.Adjust(ctx, intruder, uuid.New(), inventoryapp.AdjustRequest{
		ProductID: s.productID, WarehouseID: s.warehouseID, Type: "out", Quantity: decimal.NewFromInt(1),
	})
	assert.Error(t, err)

	own, err := app.Inventory.GetBalance(ctx, s.tenantID, s.productID, s.warehouseID)
	require.NoError(t, err)
	assert.True(t, own.Equal(decimal.NewFromInt(3)))
}
