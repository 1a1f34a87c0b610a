package logistics

import (
	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeDelivery is the aggregate type for delivery events
const AggregateTypeDelivery = "Delivery"

// Event type constants
const (
	EventTypeDeliveryCreated   = "DeliveryCreated"
	EventTypeDeliveryAssigned  = "DeliveryAssigned"
	EventTypeDeliveryStarted   = "DeliveryStarted"
	EventTypeDeliveryCompleted = "DeliveryCompleted"
	EventTypeDeliveryClosed    = "DeliveryClosed"
)

// DeliveryCreatedEvent is raised when a delivery is created from an order
type DeliveryCreatedEvent struct {
	shared.BaseDomainEvent
	DeliveryID     uuid.UUID `json:"delivery_id"`
	DeliveryNumber string    `json:"delivery_number"`
	OrderID        uuid.UUID `json:"order_id"`
}

// NewDeliveryCreatedEvent creates a new DeliveryCreatedEvent
func NewDeliveryCreatedEvent(d *Delivery) *DeliveryCreatedEvent {
	return &DeliveryCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDeliveryCreated, AggregateTypeDelivery, d.ID, d.TenantID),
		DeliveryID:      d.ID,
		DeliveryNumber:  d.DeliveryNumber,
		OrderID:         d.OrderID,
	}
}

// DeliveryAssignedEvent is raised when a driver is (re)assigned
type DeliveryAssignedEvent struct {
	shared.BaseDomainEvent
	DeliveryID uuid.UUID `json:"delivery_id"`
	DriverID   uuid.UUID `json:"driver_id"`
}

// NewDeliveryAssignedEvent creates a new DeliveryAssignedEvent
func NewDeliveryAssignedEvent(d *Delivery) *DeliveryAssignedEvent {
	return &DeliveryAssignedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDeliveryAssigned, AggregateTypeDelivery, d.ID, d.TenantID),
		DeliveryID:      d.ID,
		DriverID:        *d.DriverID,
	}
}

// DeliveryStartedEvent is raised when the delivery goes in transit
type DeliveryStartedEvent struct {
	shared.BaseDomainEvent
	DeliveryID uuid.UUID `json:"delivery_id"`
	OrderID    uuid.UUID `json:"order_id"`
}

// NewDeliveryStartedEvent creates a new DeliveryStartedEvent
func NewDeliveryStartedEvent(d *Delivery) *DeliveryStartedEvent {
	return &DeliveryStartedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDeliveryStarted, AggregateTypeDelivery, d.ID, d.TenantID),
		DeliveryID:      d.ID,
		OrderID:         d.OrderID,
	}
}

// DeliveredLine summarises one delivered line for downstream handlers
type DeliveredLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Amount    decimal.Decimal `json:"amount"`
}

// DeliveryCompletedEvent is raised after a delivery and its stock postings commit
type DeliveryCompletedEvent struct {
	shared.BaseDomainEvent
	DeliveryID      uuid.UUID       `json:"delivery_id"`
	DeliveryNumber  string          `json:"delivery_number"`
	OrderID         uuid.UUID       `json:"order_id"`
	CustomerID      uuid.UUID       `json:"customer_id"`
	WarehouseID     uuid.UUID       `json:"warehouse_id"`
	DeliveredAmount decimal.Decimal `json:"delivered_amount"`
	Lines           []DeliveredLine `json:"lines"`
}

// NewDeliveryCompletedEvent creates a new DeliveryCompletedEvent
func NewDeliveryCompletedEvent(d *Delivery) *DeliveryCompletedEvent {
	lines := make([]DeliveredLine, 0, len(d.Lines))
	for _, l := range d.Lines {
		if !l.DeliveredQuantity.IsPositive() {
			continue
		}
		lines = append(lines, DeliveredLine{
			ProductID: l.ProductID,
			Quantity:  l.DeliveredQuantity,
			UnitPrice: l.UnitPrice,
			Amount:    l.Amount,
		})
	}
	return &DeliveryCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDeliveryCompleted, AggregateTypeDelivery, d.ID, d.TenantID),
		DeliveryID:      d.ID,
		DeliveryNumber:  d.DeliveryNumber,
		OrderID:         d.OrderID,
		CustomerID:      d.CustomerID,
		WarehouseID:     d.WarehouseID,
		DeliveredAmount: d.DeliveredAmount(),
		Lines:           lines,
	}
}

// DeliveryClosedEvent is raised when a delivery fails or is returned
type DeliveryClosedEvent struct {
	shared.BaseDomainEvent
	DeliveryID uuid.UUID      `json:"delivery_id"`
	OrderID    uuid.UUID      `json:"order_id"`
	Status     DeliveryStatus `json:"status"`
	Reason     string         `json:"reason"`
}

// NewDeliveryClosedEvent creates a new DeliveryClosedEvent
func NewDeliveryClosedEvent(d *Delivery) *DeliveryClosedEvent {
	return &DeliveryClosedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDeliveryClosed, AggregateTypeDelivery, d.ID, d.TenantID),
		DeliveryID:      d.ID,
		OrderID:         d.OrderID,
		Status:          d.Status,
		Reason:          d.FailureReason,
	}
}
