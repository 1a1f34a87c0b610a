package trade

import (
	"context"
	"testing"

	"github.com/erp/distribution/internal/domain/logistics"
	"github.com/erp/distribution/internal/domain/shared"
	"github.com/erp/distribution/internal/domain/trade"
	"github.com/erp/distribution/internal/infrastructure/persistence"
	"github.com/erp/distribution/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func startedEvent(tenantID, orderID uuid.UUID) *logistics.DeliveryStartedEvent {
	deliveryID := uuid.New()
	return &logistics.DeliveryStartedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(logistics.EventTypeDeliveryStarted, logistics.AggregateTypeDelivery, deliveryID, tenantID),
		DeliveryID:      deliveryID,
		OrderID:         orderID,
	}
}

func completedEvent(tenantID, orderID uuid.UUID) *logistics.DeliveryCompletedEvent {
	deliveryID := uuid.New()
	return &logistics.DeliveryCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(logistics.EventTypeDeliveryCompleted, logistics.AggregateTypeDelivery, deliveryID, tenantID),
		DeliveryID:      deliveryID,
		OrderID:         orderID,
	}
}

// deliverAll books every ordered unit as handed over, the way completed
// deliveries would
func (f *orderFixture) deliverAll(t *testing.T, orderID uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	repo := persistence.NewGormSalesOrderRepository(f.db)
	order, err := repo.FindByIDForTenant(ctx, f.tenantID, orderID)
	require.NoError(t, err)
	_, err = order.Allocate()
	require.NoError(t, err)
	for i := range order.Lines {
		l := &order.Lines[i]
		_, err := order.ValueDelivered(l.ID, l.Quantity, l.Quantity)
		require.NoError(t, err)
	}
	require.NoError(t, repo.SaveWithLock(ctx, order))
}

func TestDeliveryStartedHandler(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	h := NewDeliveryStartedHandler(f.svc, zaptest.NewLogger(t))
	assert.Equal(t, []string{logistics.EventTypeDeliveryStarted}, h.EventTypes())

	order := f.createOrder(t)
	f.advanceTo(t, order.ID, trade.OrderStatusProcessing)

	require.NoError(t, h.Handle(ctx, startedEvent(f.tenantID, order.ID)))
	stored, err := f.svc.GetByID(ctx, f.tenantID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, trade.OrderStatusShipped, stored.Status)

	t.Run("redelivery is a no-op", func(t *testing.T) {
		require.NoError(t, h.Handle(ctx, startedEvent(f.tenantID, order.ID)))
		again, err := f.svc.GetByID(ctx, f.tenantID, order.ID)
		require.NoError(t, err)
		assert.Equal(t, stored.Version, again.Version)
	})

	t.Run("cancelled order left alone", func(t *testing.T) {
		other := f.createOrder(t)
		_, err := f.svc.Cancel(ctx, f.tenantID, other.ID, "gone")
		require.NoError(t, err)
		assert.NoError(t, h.Handle(ctx, startedEvent(f.tenantID, other.ID)))
	})

	t.Run("unknown order", func(t *testing.T) {
		err := h.Handle(ctx, startedEvent(f.tenantID, uuid.New()))
		assert.True(t, shared.IsKind(err, shared.KindNotFound))
	})

	t.Run("wrong event type", func(t *testing.T) {
		err := h.Handle(ctx, testutil.NewTestEvent("SomethingElse", f.tenantID))
		assert.Error(t, err)
	})
}

func TestDeliveryCompletedHandler(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	h := NewDeliveryCompletedHandler(f.svc, nil)

	t.Run("shipped order delivered", func(t *testing.T) {
		order := f.createOrder(t)
		f.advanceTo(t, order.ID, trade.OrderStatusShipped)
		f.deliverAll(t, order.ID)

		require.NoError(t, h.Handle(ctx, completedEvent(f.tenantID, order.ID)))
		stored, err := f.svc.GetByID(ctx, f.tenantID, order.ID)
		require.NoError(t, err)
		assert.Equal(t, trade.OrderStatusDelivered, stored.Status)
	})

	t.Run("processing order passes through shipped", func(t *testing.T) {
		order := f.createOrder(t)
		f.advanceTo(t, order.ID, trade.OrderStatusProcessing)
		f.deliverAll(t, order.ID)

		require.NoError(t, h.Handle(ctx, completedEvent(f.tenantID, order.ID)))
		stored, err := f.svc.GetByID(ctx, f.tenantID, order.ID)
		require.NoError(t, err)
		assert.Equal(t, trade.OrderStatusDelivered, stored.Status)
		assert.True(t, stored.FullyDelivered)
		assert.True(t, stored.BilledAmount.Equal(stored.TotalAmount), "tax included: %s", stored.BilledAmount)
	})

	t.Run("partially delivered order stays shipped", func(t *testing.T) {
		order := f.createOrder(t)
		f.advanceTo(t, order.ID, trade.OrderStatusProcessing)

		require.NoError(t, h.Handle(ctx, completedEvent(f.tenantID, order.ID)))
		stored, err := f.svc.GetByID(ctx, f.tenantID, order.ID)
		require.NoError(t, err)
		assert.Equal(t, trade.OrderStatusShipped, stored.Status)
		assert.False(t, stored.FullyDelivered)
	})

	t.Run("draft order rejected", func(t *testing.T) {
		order := f.createOrder(t)
		err := h.Handle(ctx, completedEvent(f.tenantID, order.ID))
		assert.True(t, shared.IsKind(err, shared.KindInvalidStateTransition))
	})
}
