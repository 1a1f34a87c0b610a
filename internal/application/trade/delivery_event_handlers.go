package trade

import (
	"context"
	"fmt"

	"github.com/erp/distribution/internal/domain/logistics"
	"github.com/erp/distribution/internal/domain/shared"
	"github.com/erp/distribution/internal/domain/trade"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeliveryStartedHandler handles DeliveryStartedEvent
// and marks the delivery's order as shipped
type DeliveryStartedHandler struct {
	orderService *SalesOrderService
	logger       *zap.Logger
}

// NewDeliveryStartedHandler creates a new handler for delivery started events
func NewDeliveryStartedHandler(orderService *SalesOrderService, logger *zap.Logger) *DeliveryStartedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryStartedHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *DeliveryStartedHandler) EventTypes() []string {
	return []string{logistics.EventTypeDeliveryStarted}
}

// Handle processes a DeliveryStartedEvent
func (h *DeliveryStartedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	started, ok := event.(*logistics.DeliveryStartedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", logistics.EventTypeDeliveryStarted),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			logistics.EventTypeDeliveryStarted, event.EventType())
	}

	h.logger.Info("processing delivery started event",
		zap.String("tenant_id", started.TenantID().String()),
		zap.String("delivery_id", started.DeliveryID.String()),
		zap.String("order_id", started.OrderID.String()),
	)
	return advanceOrder(ctx, h.orderService, h.logger, started.TenantID(), started.OrderID,
		trade.OrderStatusShipped, h.orderService.MarkShipped)
}

// DeliveryCompletedHandler handles DeliveryCompletedEvent. The order is
// marked delivered once every ordered unit has been handed over; a partial
// delivery leaves it shipped.
type DeliveryCompletedHandler struct {
	orderService *SalesOrderService
	logger       *zap.Logger
}

// NewDeliveryCompletedHandler creates a new handler for delivery completed events
func NewDeliveryCompletedHandler(orderService *SalesOrderService, logger *zap.Logger) *DeliveryCompletedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryCompletedHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *DeliveryCompletedHandler) EventTypes() []string {
	return []string{logistics.EventTypeDeliveryCompleted}
}

// Handle processes a DeliveryCompletedEvent
func (h *DeliveryCompletedHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	completed, ok := event.(*logistics.DeliveryCompletedEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", logistics.EventTypeDeliveryCompleted),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			logistics.EventTypeDeliveryCompleted, event.EventType())
	}

	h.logger.Info("processing delivery completed event",
		zap.String("tenant_id", completed.TenantID().String()),
		zap.String("delivery_id", completed.DeliveryID.String()),
		zap.String("order_id", completed.OrderID.String()),
		zap.Int("lines", len(completed.Lines)),
	)
	order, err := h.orderService.GetByID(ctx, completed.TenantID(), completed.OrderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", completed.OrderID, err)
	}
	if !order.FullyDelivered {
		return advanceOrder(ctx, h.orderService, h.logger, completed.TenantID(), completed.OrderID,
			trade.OrderStatusShipped, h.orderService.MarkShipped)
	}
	return advanceOrder(ctx, h.orderService, h.logger, completed.TenantID(), completed.OrderID,
		trade.OrderStatusDelivered, h.orderService.MarkDelivered)
}

// advanceOrder moves the order to target. An order already at or past
// target, or cancelled meanwhile, is left alone.
func advanceOrder(
	ctx context.Context,
	svc *SalesOrderService,
	logger *zap.Logger,
	tenantID, orderID uuid.UUID,
	target trade.OrderStatus,
	move func(context.Context, uuid.UUID, uuid.UUID) (*OrderResponse, error),
) error {
	order, err := svc.GetByID(ctx, tenantID, orderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", orderID, err)
	}
	if order.Status == target || order.Status.IsTerminal() {
		logger.Debug("order already past target status",
			zap.String("order_id", orderID.String()),
			zap.String("status", order.Status.String()),
			zap.String("target", target.String()),
		)
		return nil
	}

	// a completed delivery may arrive before the started event was handled
	if target == trade.OrderStatusDelivered && order.Status == trade.OrderStatusProcessing {
		if _, err := svc.MarkShipped(ctx, tenantID, orderID); err != nil {
			return err
		}
	}
	if _, err := move(ctx, tenantID, orderID); err != nil {
		logger.Error("failed to advance order",
			zap.String("order_id", orderID.String()),
			zap.String("target", target.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}
