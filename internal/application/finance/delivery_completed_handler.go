package finance

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/distribution/internal/domain/logistics"
	"github.com/erp/distribution/internal/domain/shared"
	"go.uber.org/zap"
)

// DeliveryCompletedHandler handles DeliveryCompletedEvent
// and bills the customer for what was handed over
type DeliveryCompletedHandler struct {
	receivableService *ReceivableService
	logger            *zap.Logger
}

// NewDeliveryCompletedHandler creates a new handler for delivery completed events
func NewDeliveryCompletedHandler(receivableService *ReceivableService, logger *zap.Logger) *DeliveryCompletedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryCompletedHandler{
		receivableService: receivableService,
		logger:            logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *DeliveryCompletedHandler) EventTypes() []string {
	return []string{logistics.EventTypeDeliveryCompleted}
}

// Handle processes a DeliveryCompletedEvent. A delivery that already has a
// receivable, or delivered nothing billable, is skipped.
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

	tenantID := completed.TenantID()
	log := h.logger.With(
		zap.String("tenant_id", tenantID.String()),
		zap.String("delivery_id", completed.DeliveryID.String()),
		zap.String("delivery_number", completed.DeliveryNumber),
	)
	log.Info("processing delivery completed event",
		zap.String("delivered_amount", completed.DeliveredAmount.String()),
	)

	if !completed.DeliveredAmount.IsPositive() {
		log.Info("nothing delivered, no receivable created")
		return nil
	}

	existing, err := h.receivableService.receivableRepo.FindByDelivery(ctx, tenantID, completed.DeliveryID)
	switch {
	case err == nil:
		log.Info("delivery already billed, skipping",
			zap.String("receivable_number", existing.ReceivableNumber),
		)
		return nil
	case !errors.Is(err, shared.ErrNotFound):
		return fmt.Errorf("look up receivable for delivery %s: %w", completed.DeliveryID, err)
	}

	orderID, deliveryID := completed.OrderID, completed.DeliveryID
	receivable, err := h.receivableService.Create(ctx, tenantID, CreateReceivableRequest{
		CustomerID: completed.CustomerID,
		OrderID:    &orderID,
		DeliveryID: &deliveryID,
		Amount:     completed.DeliveredAmount,
		Notes:      "Delivery " + completed.DeliveryNumber,
	})
	if err != nil {
		if IsDuplicateDelivery(err) {
			log.Info("delivery billed concurrently, skipping")
			return nil
		}
		log.Error("failed to create receivable", zap.Error(err))
		return fmt.Errorf("create receivable for delivery %s: %w", completed.DeliveryID, err)
	}

	log.Info("receivable created for delivery",
		zap.String("receivable_id", receivable.ID.String()),
		zap.String("receivable_number", receivable.ReceivableNumber),
	)
	return nil
}
