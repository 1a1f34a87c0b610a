package inventory

import (
	"context"
	"fmt"

	"github.com/erp/distribution/internal/domain/inventory"
	"github.com/erp/distribution/internal/domain/shared"
	"go.uber.org/zap"
)

// Alert types
const (
	AlertTypeLowStock   = "low_stock"
	AlertTypeOutOfStock = "out_of_stock"
)

// StockAlert represents a stock level alert
type StockAlert struct {
	TenantID     string `json:"tenant_id"`
	BalanceID    string `json:"balance_id"`
	ProductID    string `json:"product_id"`
	WarehouseID  string `json:"warehouse_id"`
	Quantity     string `json:"quantity"`
	ReorderPoint string `json:"reorder_point"`
	AlertType    string `json:"alert_type"`
}

// StockAlertNotifier delivers stock alerts
type StockAlertNotifier interface {
	SendAlert(ctx context.Context, alert StockAlert) error
}

// StockBelowReorderPointHandler turns StockBelowReorderPoint events into alerts
type StockBelowReorderPointHandler struct {
	logger   *zap.Logger
	notifier StockAlertNotifier
}

// NewStockBelowReorderPointHandler creates a new handler
func NewStockBelowReorderPointHandler(logger *zap.Logger) *StockBelowReorderPointHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockBelowReorderPointHandler{logger: logger}
}

// WithNotifier sets the notifier for sending alerts
func (h *StockBelowReorderPointHandler) WithNotifier(notifier StockAlertNotifier) *StockBelowReorderPointHandler {
	h.notifier = notifier
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *StockBelowReorderPointHandler) EventTypes() []string {
	return []string{inventory.EventTypeStockBelowReorderPoint}
}

// Handle processes a StockBelowReorderPointEvent. Notification failures are
// logged and do not fail the event.
func (h *StockBelowReorderPointHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	e, ok := event.(*inventory.StockBelowReorderPointEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			inventory.EventTypeStockBelowReorderPoint, event.EventType())
	}

	alertType := AlertTypeLowStock
	if !e.Quantity.IsPositive() {
		alertType = AlertTypeOutOfStock
	}
	alert := StockAlert{
		TenantID:     e.TenantID().String(),
		BalanceID:    e.AggregateID().String(),
		ProductID:    e.ProductID.String(),
		WarehouseID:  e.WarehouseID.String(),
		Quantity:     e.Quantity.String(),
		ReorderPoint: e.ReorderPoint.String(),
		AlertType:    alertType,
	}

	h.logger.Warn("stock below reorder point",
		zap.String("tenant_id", alert.TenantID),
		zap.String("product_id", alert.ProductID),
		zap.String("warehouse_id", alert.WarehouseID),
		zap.String("quantity", alert.Quantity),
		zap.String("reorder_point", alert.ReorderPoint),
	)

	if h.notifier == nil {
		return nil
	}
	if err := h.notifier.SendAlert(ctx, alert); err != nil {
		h.logger.Error("failed to send stock alert", zap.String("balance_id", alert.BalanceID), zap.Error(err))
	}
	return nil
}

var _ shared.EventHandler = (*StockBelowReorderPointHandler)(nil)

// LoggingStockAlertNotifier writes alerts to the log
type LoggingStockAlertNotifier struct {
	logger *zap.Logger
}

// NewLoggingStockAlertNotifier creates a new logging notifier
func NewLoggingStockAlertNotifier(logger *zap.Logger) *LoggingStockAlertNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingStockAlertNotifier{logger: logger}
}

// SendAlert logs the stock alert
func (n *LoggingStockAlertNotifier) SendAlert(_ context.Context, alert StockAlert) error {
	n.logger.Warn("STOCK ALERT",
		zap.String("type", alert.AlertType),
		zap.String("tenant_id", alert.TenantID),
		zap.String("product_id", alert.ProductID),
		zap.String("warehouse_id", alert.WarehouseID),
		zap.String("quantity", alert.Quantity),
	)
	return nil
}
