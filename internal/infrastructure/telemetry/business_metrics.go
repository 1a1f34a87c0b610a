package telemetry

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when NewBusinessMetrics gets no meter
var ErrMeterNil = errors.New("telemetry: meter is nil")

// BusinessMetrics records order-to-cash activity. All methods are safe on a
// nil receiver, which records nothing.
type BusinessMetrics struct {
	orderCreated      *Counter
	orderTransitions  *Counter
	orderAmount       metric.Float64Counter
	stockMovements    metric.Float64Counter
	stockRejections   *Counter
	deliveryOutcomes  *Counter
	payments          *Counter
	paymentAmount     metric.Float64Counter
	lockConflicts     *Counter
	lowStockItems     metric.Int64Gauge
	outstandingAmount metric.Float64Gauge
}

// NewBusinessMetrics creates the instruments on meter
func NewBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	bm := &BusinessMetrics{}
	var errs []error
	counter := func(name, desc, unit string) *Counter {
		c, err := NewCounter(meter, name, desc, unit)
		errs = append(errs, err)
		return c
	}
	floatCounter := func(name, desc, unit string) metric.Float64Counter {
		c, err := meter.Float64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		errs = append(errs, err)
		return c
	}

	bm.orderCreated = counter("erp_order_created_total", "Sales orders created", "{order}")
	bm.orderTransitions = counter("erp_order_transition_total", "Sales order status changes by target status", "{transition}")
	bm.orderAmount = floatCounter("erp_order_amount_total", "Grand total of created sales orders", "{currency}")
	bm.stockMovements = floatCounter("erp_stock_movement_quantity_total", "Quantity moved through the ledger by movement type", "{unit}")
	bm.stockRejections = counter("erp_stock_rejected_total", "Ledger postings rejected for insufficient stock", "{posting}")
	bm.deliveryOutcomes = counter("erp_delivery_outcome_total", "Deliveries reaching a terminal status", "{delivery}")
	bm.payments = counter("erp_payment_total", "Payment attempts by method and outcome", "{payment}")
	bm.paymentAmount = floatCounter("erp_payment_amount_total", "Amount applied to receivables", "{currency}")
	bm.lockConflicts = counter("erp_optimistic_lock_conflict_total", "Writes rejected by optimistic locking", "{conflict}")

	gauge, err := meter.Int64Gauge("erp_inventory_low_stock_count",
		metric.WithDescription("Balances at or below their reorder point"), metric.WithUnit("{balance}"))
	errs = append(errs, err)
	bm.lowStockItems = gauge
	fgauge, err := meter.Float64Gauge("erp_receivable_outstanding_amount",
		metric.WithDescription("Outstanding receivable amount of the last queried customer"), metric.WithUnit("{currency}"))
	errs = append(errs, err)
	bm.outstandingAmount = fgauge

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return bm, nil
}

func tenantAttr(tenantID uuid.UUID) attribute.KeyValue {
	return AttrTenantID.String(tenantID.String())
}

// RecordOrderCreated counts a new order and its grand total
func (bm *BusinessMetrics) RecordOrderCreated(ctx context.Context, tenantID uuid.UUID, total decimal.Decimal) {
	if bm == nil {
		return
	}
	bm.orderCreated.Inc(ctx, tenantAttr(tenantID))
	bm.orderAmount.Add(ctx, total.InexactFloat64(), metric.WithAttributes(tenantAttr(tenantID)))
}

// RecordOrderTransition counts an order reaching status
func (bm *BusinessMetrics) RecordOrderTransition(ctx context.Context, tenantID uuid.UUID, status string) {
	if bm == nil {
		return
	}
	bm.orderTransitions.Inc(ctx, tenantAttr(tenantID), AttrOrderStatus.String(status))
}

// RecordStockMovement adds |quantity| under the movement type
func (bm *BusinessMetrics) RecordStockMovement(ctx context.Context, tenantID uuid.UUID, movementType string, quantity decimal.Decimal) {
	if bm == nil {
		return
	}
	bm.stockMovements.Add(ctx, quantity.Abs().InexactFloat64(),
		metric.WithAttributes(tenantAttr(tenantID), AttrMovementType.String(movementType)))
}

// RecordStockRejected counts a posting refused for insufficient stock
func (bm *BusinessMetrics) RecordStockRejected(ctx context.Context, tenantID uuid.UUID, movementType string) {
	if bm == nil {
		return
	}
	bm.stockRejections.Inc(ctx, tenantAttr(tenantID), AttrMovementType.String(movementType))
}

// RecordLowStock records the low-stock count found by a query
func (bm *BusinessMetrics) RecordLowStock(ctx context.Context, tenantID uuid.UUID, count int) {
	if bm == nil {
		return
	}
	bm.lowStockItems.Record(ctx, int64(count), metric.WithAttributes(tenantAttr(tenantID)))
}

// RecordDeliveryOutcome counts a delivery reaching a terminal status
func (bm *BusinessMetrics) RecordDeliveryOutcome(ctx context.Context, tenantID uuid.UUID, status string) {
	if bm == nil {
		return
	}
	bm.deliveryOutcomes.Inc(ctx, tenantAttr(tenantID), AttrDeliveryStatus.String(status))
}

// Payment outcomes
const (
	PaymentRecorded = "recorded"
	PaymentReplayed = "replayed"
	PaymentRejected = "rejected"
)

// RecordPayment counts a payment attempt; amount is added only when recorded
func (bm *BusinessMetrics) RecordPayment(ctx context.Context, tenantID uuid.UUID, method, outcome string, amount decimal.Decimal) {
	if bm == nil {
		return
	}
	attrs := []attribute.KeyValue{tenantAttr(tenantID), AttrPaymentMethod.String(method)}
	bm.payments.Inc(ctx, append(attrs, AttrOutcome.String(outcome))...)
	if outcome == PaymentRecorded {
		bm.paymentAmount.Add(ctx, amount.InexactFloat64(), metric.WithAttributes(attrs...))
	}
}

// RecordOutstanding records a customer's open balance
func (bm *BusinessMetrics) RecordOutstanding(ctx context.Context, tenantID uuid.UUID, amount decimal.Decimal) {
	if bm == nil {
		return
	}
	bm.outstandingAmount.Record(ctx, amount.InexactFloat64(), metric.WithAttributes(tenantAttr(tenantID)))
}

// RecordLockConflict counts an optimistic-lock rejection on aggregate
func (bm *BusinessMetrics) RecordLockConflict(ctx context.Context, tenantID uuid.UUID, aggregate string) {
	if bm == nil {
		return
	}
	bm.lockConflicts.Inc(ctx, tenantAttr(tenantID), attribute.String("aggregate", aggregate))
}
