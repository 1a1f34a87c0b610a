package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/distribution/internal/domain/inventory"
	"github.com/erp/distribution/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingNotifier struct {
	alerts []StockAlert
	err    error
}

func (n *recordingNotifier) SendAlert(_ context.Context, alert StockAlert) error {
	n.alerts = append(n.alerts, alert)
	return n.err
}

func lowStockEvent(t *testing.T, qty int64) *inventory.StockBelowReorderPointEvent {
	t.Helper()
	b, err := inventory.NewInventoryBalance(uuid.New(), uuid.New(), uuid.New(), decimal.NewFromInt(10))
	require.NoError(t, err)
	b.Quantity = decimal.NewFromInt(qty)
	return inventory.NewStockBelowReorderPointEvent(b)
}

func TestStockBelowReorderPointHandler_Handle(t *testing.T) {
	notifier := &recordingNotifier{}
	handler := NewStockBelowReorderPointHandler(zaptest.NewLogger(t)).WithNotifier(notifier)

	assert.Equal(t, []string{inventory.EventTypeStockBelowReorderPoint}, handler.EventTypes())

	require.NoError(t, handler.Handle(context.Background(), lowStockEvent(t, 4)))
	require.NoError(t, handler.Handle(context.Background(), lowStockEvent(t, 0)))

	require.Len(t, notifier.alerts, 2)
	assert.Equal(t, AlertTypeLowStock, notifier.alerts[0].AlertType)
	assert.Equal(t, "4", notifier.alerts[0].Quantity)
	assert.Equal(t, "10", notifier.alerts[0].ReorderPoint)
	assert.Equal(t, AlertTypeOutOfStock, notifier.alerts[1].AlertType)
}

func TestStockBelowReorderPointHandler_NotifierFailureIsSwallowed(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	handler := NewStockBelowReorderPointHandler(zaptest.NewLogger(t)).WithNotifier(notifier)

	assert.NoError(t, handler.Handle(context.Background(), lowStockEvent(t, 1)))
	assert.Len(t, notifier.alerts, 1)
}

func TestStockBelowReorderPointHandler_WrongEvent(t *testing.T) {
	handler := NewStockBelowReorderPointHandler(nil)

	err := handler.Handle(context.Background(), testutil.NewTestEvent(inventory.EventTypeStockBelowReorderPoint, uuid.New()))

	assert.Error(t, err)
}

func TestLoggingStockAlertNotifier(t *testing.T) {
	n := NewLoggingStockAlertNotifier(zaptest.NewLogger(t))
	assert.NoError(t, n.SendAlert(context.Background(), StockAlert{AlertType: AlertTypeLowStock}))
}
