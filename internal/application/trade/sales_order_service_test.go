package trade

import (
	"context"
	"fmt"
	"testing"
	"time"

	catalogapp "github.com/erp/distribution/internal/application/catalog"
	partnerapp "github.com/erp/distribution/internal/application/partner"
	"github.com/erp/distribution/internal/domain/shared"
	"github.com/erp/distribution/internal/domain/trade"
	"github.com/erp/distribution/internal/infrastructure/persistence"
	"github.com/erp/distribution/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type orderFixture struct {
	svc        *SalesOrderService
	db         *gorm.DB
	publisher  *testutil.RecordingPublisher
	products   *catalogapp.ProductService
	customers  *partnerapp.CustomerService
	tenantID   uuid.UUID
	actorID    uuid.UUID
	customerID uuid.UUID
	coffeeID   uuid.UUID
	teaID      uuid.UUID
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	logger := zaptest.NewLogger(t)
	ctx := context.Background()
	tenantID := testutil.TestTenantID()

	products := catalogapp.NewProductService(
		persistence.NewGormProductRepository(db),
		persistence.NewGormCategoryRepository(db),
		logger,
	)
	customers := partnerapp.NewCustomerService(persistence.NewGormCustomerRepository(db), logger)

	coffee, err := products.Create(ctx, tenantID, catalogapp.CreateProductRequest{
		SKU: "CF-001", Name: "Cà phê rang xay", Unit: "kg", BasePrice: decimal.NewFromInt(100_000),
	})
	require.NoError(t, err)
	tea, err := products.Create(ctx, tenantID, catalogapp.CreateProductRequest{
		SKU: "TR-001", Name: "Trà xanh", Unit: "hop", BasePrice: decimal.NewFromInt(50_000),
	})
	require.NoError(t, err)
	customer, err := customers.Create(ctx, tenantID, partnerapp.CreateCustomerRequest{
		Code: "KH001", Name: "Tạp hóa Minh Anh", Address: "12 Lê Lợi",
	})
	require.NoError(t, err)

	svc := NewSalesOrderService(
		persistence.NewGormTransactionScope(db),
		persistence.NewGormSalesOrderRepository(db),
		products,
		customers,
		"SO",
		logger,
	)
	publisher := &testutil.RecordingPublisher{}
	svc.SetEventPublisher(publisher)

	return &orderFixture{
		svc:        svc,
		db:         db,
		publisher:  publisher,
		products:   products,
		customers:  customers,
		tenantID:   tenantID,
		actorID:    testutil.TestUserID(),
		customerID: customer.ID,
		coffeeID:   coffee.ID,
		teaID:      tea.ID,
	}
}

func (f *orderFixture) createOrder(t *testing.T) *OrderResponse {
	t.Helper()
	tax := decimal.NewFromInt(23_000)
	order, err := f.svc.Create(context.Background(), f.tenantID, f.actorID, CreateOrderRequest{
		CustomerID: f.customerID,
		Lines: []OrderLineRequest{
			{ProductID: f.coffeeID, Quantity: decimal.NewFromInt(2), DiscountPercent: decimal.NewFromInt(10)},
			{ProductID: f.teaID, Quantity: decimal.NewFromInt(1)},
		},
		TaxTotal: &tax,
	})
	require.NoError(t, err)
	return order
}

func (f *orderFixture) advanceTo(t *testing.T, orderID uuid.UUID, target trade.OrderStatus) {
	t.Helper()
	ctx := context.Background()
	steps := []struct {
		status trade.OrderStatus
		run    func() (*OrderResponse, error)
	}{
		{trade.OrderStatusPending, func() (*OrderResponse, error) { return f.svc.Submit(ctx, f.tenantID, orderID) }},
		{trade.OrderStatusApproved, func() (*OrderResponse, error) { return f.svc.Approve(ctx, f.tenantID, orderID, f.actorID) }},
		{trade.OrderStatusProcessing, func() (*OrderResponse, error) { return f.svc.StartProcessing(ctx, f.tenantID, orderID) }},
		{trade.OrderStatusShipped, func() (*OrderResponse, error) { return f.svc.MarkShipped(ctx, f.tenantID, orderID) }},
		{trade.OrderStatusDelivered, func() (*OrderResponse, error) { return f.svc.MarkDelivered(ctx, f.tenantID, orderID) }},
	}
	for _, step := range steps {
		resp, err := step.run()
		require.NoError(t, err)
		require.Equal(t, step.status, resp.Status)
		if step.status == target {
			return
		}
	}
}

func TestSalesOrderService_Create(t *testing.T) {
	f := newOrderFixture(t)

	order := f.createOrder(t)

	year := time.Now().Year()
	assert.Equal(t, fmt.Sprintf("SO%d000001", year), order.OrderNumber)
	assert.Equal(t, trade.OrderStatusDraft, order.Status)
	assert.Equal(t, "KH001", order.CustomerCode)
	assert.Equal(t, "Tạp hóa Minh Anh", order.CustomerName)
	require.Len(t, order.Lines, 2)
	assert.Equal(t, "CF-001", order.Lines[0].ProductSKU)
	assert.Equal(t, "kg", order.Lines[0].Unit)
	assert.True(t, order.Lines[0].UnitPrice.Equal(decimal.NewFromInt(100_000)))
	assert.True(t, order.Subtotal.Equal(decimal.NewFromInt(250_000)))
	assert.True(t, order.DiscountTotal.Equal(decimal.NewFromInt(20_000)))
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(253_000)), order.TotalAmount.String())
	assert.Equal(t, 2, order.ItemCount)
	assert.Equal(t, []string{trade.EventTypeSalesOrderCreated}, f.publisher.Types())

	second := f.createOrder(t)
	assert.Equal(t, fmt.Sprintf("SO%d000002", year), second.OrderNumber)

	stored, err := f.svc.GetByID(context.Background(), f.tenantID, order.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 2)
	assert.True(t, stored.TotalAmount.Equal(order.TotalAmount))
}

func TestSalesOrderService_LinesKeepSnapshotAfterMasterDataEdits(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.createOrder(t)

	name, unit := "Cà phê hạt Arabica", "bao"
	price := decimal.NewFromInt(180_000)
	_, err := f.products.Update(ctx, f.tenantID, f.coffeeID, catalogapp.UpdateProductRequest{
		Name: &name, Unit: &unit, BasePrice: &price,
	})
	require.NoError(t, err)
	customerName := "Siêu thị Minh Anh"
	_, err = f.customers.Update(ctx, f.tenantID, f.customerID, partnerapp.UpdateCustomerRequest{Name: &customerName})
	require.NoError(t, err)

	stored, err := f.svc.GetByID(ctx, f.tenantID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tạp hóa Minh Anh", stored.CustomerName)
	require.Len(t, stored.Lines, 2)
	coffee := stored.Lines[0]
	assert.Equal(t, f.coffeeID, coffee.ProductID)
	assert.Equal(t, "Cà phê rang xay", coffee.ProductName)
	assert.Equal(t, "CF-001", coffee.ProductSKU)
	assert.Equal(t, "kg", coffee.Unit)
	assert.True(t, coffee.UnitPrice.Equal(decimal.NewFromInt(100_000)), coffee.UnitPrice.String())
	assert.True(t, stored.TotalAmount.Equal(order.TotalAmount))

	fresh, err := f.svc.Create(ctx, f.tenantID, f.actorID, CreateOrderRequest{
		CustomerID: f.customerID,
		Lines:      []OrderLineRequest{{ProductID: f.coffeeID, Quantity: decimal.NewFromInt(1)}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Siêu thị Minh Anh", fresh.CustomerName)
	assert.Equal(t, name, fresh.Lines[0].ProductName)
	assert.Equal(t, "bao", fresh.Lines[0].Unit)
	assert.True(t, fresh.Lines[0].UnitPrice.Equal(price))
}

func TestSalesOrderService_Create_Rejections(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	t.Run("no lines", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.tenantID, f.actorID, CreateOrderRequest{CustomerID: f.customerID})
		assert.True(t, shared.IsKind(err, shared.KindValidation))
	})

	t.Run("zero quantity", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.tenantID, f.actorID, CreateOrderRequest{
			CustomerID: f.customerID,
			Lines:      []OrderLineRequest{{ProductID: f.coffeeID, Quantity: decimal.Zero}},
		})
		assert.True(t, shared.IsKind(err, shared.KindValidation))
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.tenantID, f.actorID, CreateOrderRequest{
			CustomerID: f.customerID,
			Lines:      []OrderLineRequest{{ProductID: uuid.New(), Quantity: decimal.NewFromInt(1)}},
		})
		assert.True(t, shared.IsKind(err, shared.KindNotFound))
	})

	t.Run("inactive product", func(t *testing.T) {
		_, err := f.products.Deactivate(ctx, f.tenantID, f.teaID)
		require.NoError(t, err)
		_, err = f.svc.Create(ctx, f.tenantID, f.actorID, CreateOrderRequest{
			CustomerID: f.customerID,
			Lines:      []OrderLineRequest{{ProductID: f.teaID, Quantity: decimal.NewFromInt(1)}},
		})
		assert.True(t, shared.IsKind(err, shared.KindValidation))
	})

	t.Run("blocked customer", func(t *testing.T) {
		_, err := f.customers.Block(ctx, f.tenantID, f.customerID)
		require.NoError(t, err)
		_, err = f.svc.Create(ctx, f.tenantID, f.actorID, CreateOrderRequest{
			CustomerID: f.customerID,
			Lines:      []OrderLineRequest{{ProductID: f.coffeeID, Quantity: decimal.NewFromInt(1)}},
		})
		assert.True(t, shared.IsKind(err, shared.KindValidation))
	})

	t.Run("customer of another tenant", func(t *testing.T) {
		_, err := f.svc.Create(ctx, testutil.OtherTenantID(), f.actorID, CreateOrderRequest{
			CustomerID: f.customerID,
			Lines:      []OrderLineRequest{{ProductID: f.coffeeID, Quantity: decimal.NewFromInt(1)}},
		})
		assert.True(t, shared.IsKind(err, shared.KindNotFound))
	})

	t.Run("missing tenant", func(t *testing.T) {
		_, err := f.svc.Create(ctx, uuid.Nil, f.actorID, CreateOrderRequest{})
		assert.True(t, shared.IsKind(err, shared.KindValidation))
	})

	var count int64
	require.NoError(t, f.db.Model(&trade.SalesOrder{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSalesOrderService_UpdateItems(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.createOrder(t)

	updated, err := f.svc.UpdateItems(ctx, f.tenantID, order.ID, UpdateItemsRequest{
		Lines: []OrderLineRequest{{ProductID: f.teaID, Quantity: decimal.NewFromInt(4)}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.ItemCount)
	assert.True(t, updated.TotalAmount.Equal(decimal.NewFromInt(223_000)), updated.TotalAmount.String())
	assert.Greater(t, updated.Version, order.Version)

	stored, err := f.svc.GetByID(ctx, f.tenantID, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 1)
	assert.Equal(t, f.teaID, stored.Lines[0].ProductID)

	t.Run("pending still editable", func(t *testing.T) {
		_, err := f.svc.Submit(ctx, f.tenantID, order.ID)
		require.NoError(t, err)
		_, err = f.svc.UpdateItems(ctx, f.tenantID, order.ID, UpdateItemsRequest{
			Lines: []OrderLineRequest{{ProductID: f.coffeeID, Quantity: decimal.NewFromInt(1)}},
		})
		assert.NoError(t, err)
	})

	t.Run("approved rejected", func(t *testing.T) {
		_, err := f.svc.Approve(ctx, f.tenantID, order.ID, f.actorID)
		require.NoError(t, err)
		_, err = f.svc.UpdateItems(ctx, f.tenantID, order.ID, UpdateItemsRequest{
			Lines: []OrderLineRequest{{ProductID: f.coffeeID, Quantity: decimal.NewFromInt(9)}},
		})
		assert.True(t, shared.IsKind(err, shared.KindInvalidStateTransition))

		stored, err := f.svc.GetByID(ctx, f.tenantID, order.ID)
		require.NoError(t, err)
		assert.True(t, stored.Lines[0].Quantity.Equal(decimal.NewFromInt(1)))
	})
}

func TestSalesOrderService_Lifecycle(t *testing.T) {
	f := newOrderFixture(t)
	order := f.createOrder(t)

	f.advanceTo(t, order.ID, trade.OrderStatusDelivered)

	stored, err := f.svc.GetByID(context.Background(), f.tenantID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, trade.OrderStatusDelivered, stored.Status)
	require.NotNil(t, stored.ApprovedBy)
	assert.Equal(t, f.actorID, *stored.ApprovedBy)
	assert.NotNil(t, stored.ApprovedAt)
	assert.Contains(t, f.publisher.Types(), trade.EventTypeSalesOrderApproved)
}

func TestSalesOrderService_IllegalTransitions(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.createOrder(t)

	_, err := f.svc.Approve(ctx, f.tenantID, order.ID, f.actorID)
	assert.True(t, shared.IsKind(err, shared.KindInvalidStateTransition))

	_, err = f.svc.MarkShipped(ctx, f.tenantID, order.ID)
	assert.True(t, shared.IsKind(err, shared.KindInvalidStateTransition))

	stored, err := f.svc.GetByID(ctx, f.tenantID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, trade.OrderStatusDraft, stored.Status)
	assert.Equal(t, order.Version, stored.Version)
}

func TestSalesOrderService_Cancel(t *testing.T) {
	ctx := context.Background()

	for _, from := range []trade.OrderStatus{
		trade.OrderStatusDraft,
		trade.OrderStatusPending,
		trade.OrderStatusApproved,
		trade.OrderStatusProcessing,
		trade.OrderStatusShipped,
	} {
		t.Run(from.String(), func(t *testing.T) {
			f := newOrderFixture(t)
			order := f.createOrder(t)
			if from != trade.OrderStatusDraft {
				f.advanceTo(t, order.ID, from)
			}

			cancelled, err := f.svc.Cancel(ctx, f.tenantID, order.ID, "customer changed mind")
			require.NoError(t, err)
			assert.Equal(t, trade.OrderStatusCancelled, cancelled.Status)
			assert.Equal(t, "customer changed mind", cancelled.CancelReason)

			again, err := f.svc.Cancel(ctx, f.tenantID, order.ID, "twice")
			require.NoError(t, err)
			assert.Equal(t, cancelled.Version, again.Version)
			assert.Equal(t, "customer changed mind", again.CancelReason)
		})
	}

	t.Run("delivered rejected", func(t *testing.T) {
		f := newOrderFixture(t)
		order := f.createOrder(t)
		f.advanceTo(t, order.ID, trade.OrderStatusDelivered)

		_, err := f.svc.Cancel(ctx, f.tenantID, order.ID, "too late")
		assert.True(t, shared.IsKind(err, shared.KindInvalidStateTransition))
	})
}

func TestSalesOrderService_StaleWriteConflicts(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.createOrder(t)
	repo := persistence.NewGormSalesOrderRepository(f.db)

	first, err := repo.FindByIDForTenant(ctx, f.tenantID, order.ID)
	require.NoError(t, err)
	second, err := repo.FindByIDForTenant(ctx, f.tenantID, order.ID)
	require.NoError(t, err)

	require.NoError(t, first.Submit())
	require.NoError(t, repo.SaveWithLock(ctx, first))

	require.NoError(t, second.Cancel("stale"))
	err = repo.SaveWithLock(ctx, second)
	assert.True(t, shared.IsKind(err, shared.KindConcurrencyConflict))

	stored, err := f.svc.GetByID(ctx, f.tenantID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, trade.OrderStatusPending, stored.Status)
}

func TestSalesOrderService_ListAndStats(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	a := f.createOrder(t)
	b := f.createOrder(t)
	c := f.createOrder(t)
	f.advanceTo(t, b.ID, trade.OrderStatusApproved)
	_, err := f.svc.Cancel(ctx, f.tenantID, c.ID, "dup")
	require.NoError(t, err)

	rows, total, err := f.svc.List(ctx, f.tenantID, OrderListFilter{Status: "draft"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
	assert.Equal(t, a.ID, rows[0].ID)

	rows, total, err = f.svc.List(ctx, f.tenantID, OrderListFilter{Search: b.OrderNumber})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, b.ID, rows[0].ID)

	_, total, err = f.svc.List(ctx, f.tenantID, OrderListFilter{PageSize: 2, Page: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	_, _, err = f.svc.List(ctx, f.tenantID, OrderListFilter{Status: "lost"})
	assert.True(t, shared.IsKind(err, shared.KindValidation))

	stats, err := f.svc.GetStats(ctx, f.tenantID, shared.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[trade.OrderStatusDraft])
	assert.Equal(t, 1, stats.ByStatus[trade.OrderStatusApproved])
	assert.Equal(t, 1, stats.ByStatus[trade.OrderStatusCancelled])
	assert.Equal(t, 0, stats.ByStatus[trade.OrderStatusDelivered])
	assert.True(t, stats.TotalRevenue.Equal(decimal.NewFromInt(506_000)), stats.TotalRevenue.String())
	assert.True(t, stats.AverageOrderValue.Equal(decimal.NewFromInt(253_000)))

	future := time.Now().Add(24 * time.Hour)
	empty, err := f.svc.GetStats(ctx, f.tenantID, shared.DateRange{From: &future})
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.True(t, empty.AverageOrderValue.IsZero())
}
