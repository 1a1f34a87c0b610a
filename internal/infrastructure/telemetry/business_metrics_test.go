package telemetry

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMeterProvider(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return provider, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func int64Sum(t *testing.T, rm metricdata.ResourceMetrics, name string, match ...attribute.KeyValue) int64 {
	t.Helper()
	m := findMetric(rm, name)
	require.NotNil(t, m, "metric %s not collected", name)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is %T", name, m.Data)
	var total int64
	for _, dp := range sum.DataPoints {
		if hasAll(dp.Attributes, match) {
			total += dp.Value
		}
	}
	return total
}

func float64Sum(t *testing.T, rm metricdata.ResourceMetrics, name string) float64 {
	t.Helper()
	m := findMetric(rm, name)
	require.NotNil(t, m, "metric %s not collected", name)
	sum, ok := m.Data.(metricdata.Sum[float64])
	require.True(t, ok, "metric %s is %T", name, m.Data)
	var total float64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func hasAll(set attribute.Set, match []attribute.KeyValue) bool {
	for _, kv := range match {
		v, ok := set.Value(kv.Key)
		if !ok || v != kv.Value {
			return false
		}
	}
	return true
}

func TestNewBusinessMetrics_NilMeter(t *testing.T) {
	bm, err := NewBusinessMetrics(nil)
	assert.ErrorIs(t, err, ErrMeterNil)
	assert.Nil(t, bm)
}

func TestBusinessMetrics_NilReceiver(t *testing.T) {
	var bm *BusinessMetrics
	ctx := context.Background()
	tenantID := uuid.New()
	assert.NotPanics(t, func() {
		bm.RecordOrderCreated(ctx, tenantID, decimal.NewFromInt(10))
		bm.RecordOrderTransition(ctx, tenantID, "approved")
		bm.RecordStockMovement(ctx, tenantID, "adjustment", decimal.NewFromInt(1))
		bm.RecordStockRejected(ctx, tenantID, "sale")
		bm.RecordLowStock(ctx, tenantID, 2)
		bm.RecordDeliveryOutcome(ctx, tenantID, "completed")
		bm.RecordPayment(ctx, tenantID, "cash", PaymentRecorded, decimal.NewFromInt(5))
		bm.RecordOutstanding(ctx, tenantID, decimal.NewFromInt(5))
		bm.RecordLockConflict(ctx, tenantID, "SalesOrder")
	})
}

func TestBusinessMetrics_Orders(t *testing.T) {
	provider, reader := newTestMeterProvider(t)
	bm, err := NewBusinessMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	tenantID := uuid.New()
	bm.RecordOrderCreated(ctx, tenantID, decimal.RequireFromString("120.50"))
	bm.RecordOrderCreated(ctx, tenantID, decimal.RequireFromString("79.50"))
	bm.RecordOrderTransition(ctx, tenantID, "approved")
	bm.RecordOrderTransition(ctx, tenantID, "approved")
	bm.RecordOrderTransition(ctx, tenantID, "cancelled")

	rm := collect(t, reader)
	assert.Equal(t, int64(2), int64Sum(t, rm, "erp_order_created_total", AttrTenantID.String(tenantID.String())))
	assert.InDelta(t, 200.0, float64Sum(t, rm, "erp_order_amount_total"), 0.001)
	assert.Equal(t, int64(2), int64Sum(t, rm, "erp_order_transition_total", AttrOrderStatus.String("approved")))
	assert.Equal(t, int64(1), int64Sum(t, rm, "erp_order_transition_total", AttrOrderStatus.String("cancelled")))
}

func TestBusinessMetrics_StockMovementUsesAbsoluteQuantity(t *testing.T) {
	provider, reader := newTestMeterProvider(t)
	bm, err := NewBusinessMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	tenantID := uuid.New()
	bm.RecordStockMovement(ctx, tenantID, "transfer_out", decimal.NewFromInt(-4))
	bm.RecordStockMovement(ctx, tenantID, "transfer_in", decimal.NewFromInt(4))
	bm.RecordStockRejected(ctx, tenantID, "sale")

	rm := collect(t, reader)
	assert.InDelta(t, 8.0, float64Sum(t, rm, "erp_stock_movement_quantity_total"), 0.001)
	assert.Equal(t, int64(1), int64Sum(t, rm, "erp_stock_rejected_total", AttrMovementType.String("sale")))
}

func TestBusinessMetrics_PaymentAmountOnlyWhenRecorded(t *testing.T) {
	provider, reader := newTestMeterProvider(t)
	bm, err := NewBusinessMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	tenantID := uuid.New()
	bm.RecordPayment(ctx, tenantID, "bank_transfer", PaymentRecorded, decimal.NewFromInt(300))
	bm.RecordPayment(ctx, tenantID, "bank_transfer", PaymentReplayed, decimal.NewFromInt(300))
	bm.RecordPayment(ctx, tenantID, "cash", PaymentRejected, decimal.NewFromInt(999))

	rm := collect(t, reader)
	assert.Equal(t, int64(3), int64Sum(t, rm, "erp_payment_total"))
	assert.Equal(t, int64(1), int64Sum(t, rm, "erp_payment_total", AttrOutcome.String(PaymentReplayed)))
	assert.InDelta(t, 300.0, float64Sum(t, rm, "erp_payment_amount_total"), 0.001)
}

func TestBusinessMetrics_Gauges(t *testing.T) {
	provider, reader := newTestMeterProvider(t)
	bm, err := NewBusinessMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	tenantID := uuid.New()
	bm.RecordLowStock(ctx, tenantID, 3)
	bm.RecordLowStock(ctx, tenantID, 5)

	rm := collect(t, reader)
	m := findMetric(rm, "erp_inventory_low_stock_count")
	require.NotNil(t, m)
	gauge, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(5), gauge.DataPoints[0].Value)
}
