package trade

import (
	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeSalesOrder is the aggregate type for sales order events
const AggregateTypeSalesOrder = "SalesOrder"

// Event type constants
const (
	EventTypeSalesOrderCreated       = "SalesOrderCreated"
	EventTypeSalesOrderItemsUpdated  = "SalesOrderItemsUpdated"
	EventTypeSalesOrderApproved      = "SalesOrderApproved"
	EventTypeSalesOrderStatusChanged = "SalesOrderStatusChanged"
	EventTypeSalesOrderCancelled     = "SalesOrderCancelled"
)

// SalesOrderCreatedEvent is raised when a new order is created
type SalesOrderCreatedEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
}

// NewSalesOrderCreatedEvent creates a new SalesOrderCreatedEvent
func NewSalesOrderCreatedEvent(o *SalesOrder) *SalesOrderCreatedEvent {
	return &SalesOrderCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSalesOrderCreated, AggregateTypeSalesOrder, o.ID, o.TenantID),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		CustomerID:      o.CustomerID,
		TotalAmount:     o.TotalAmount,
		ItemCount:       o.ItemCount,
	}
}

// SalesOrderItemsUpdatedEvent is raised when lines are replaced
type SalesOrderItemsUpdatedEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID       `json:"order_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ItemCount   int             `json:"item_count"`
}

// NewSalesOrderItemsUpdatedEvent creates a new SalesOrderItemsUpdatedEvent
func NewSalesOrderItemsUpdatedEvent(o *SalesOrder) *SalesOrderItemsUpdatedEvent {
	return &SalesOrderItemsUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSalesOrderItemsUpdated, AggregateTypeSalesOrder, o.ID, o.TenantID),
		OrderID:         o.ID,
		TotalAmount:     o.TotalAmount,
		ItemCount:       o.ItemCount,
	}
}

// SalesOrderApprovedEvent is raised when an order is approved
type SalesOrderApprovedEvent struct {
	shared.BaseDomainEvent
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	ApprovedBy  uuid.UUID       `json:"approved_by"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// NewSalesOrderApprovedEvent creates a new SalesOrderApprovedEvent
func NewSalesOrderApprovedEvent(o *SalesOrder) *SalesOrderApprovedEvent {
	var approver uuid.UUID
	if o.ApprovedBy != nil {
		approver = *o.ApprovedBy
	}
	return &SalesOrderApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSalesOrderApproved, AggregateTypeSalesOrder, o.ID, o.TenantID),
		OrderID:         o.ID,
		OrderNumber:     o.OrderNumber,
		ApprovedBy:      approver,
		TotalAmount:     o.TotalAmount,
	}
}

// SalesOrderStatusChangedEvent is raised on fulfillment transitions
type SalesOrderStatusChangedEvent struct {
	shared.BaseDomainEvent
	OrderID    uuid.UUID   `json:"order_id"`
	FromStatus OrderStatus `json:"from_status"`
	ToStatus   OrderStatus `json:"to_status"`
}

// NewSalesOrderStatusChangedEvent creates a new SalesOrderStatusChangedEvent
func NewSalesOrderStatusChangedEvent(o *SalesOrder, from OrderStatus) *SalesOrderStatusChangedEvent {
	return &SalesOrderStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSalesOrderStatusChanged, AggregateTypeSalesOrder, o.ID, o.TenantID),
		OrderID:         o.ID,
		FromStatus:      from,
		ToStatus:        o.Status,
	}
}

// SalesOrderCancelledEvent is raised when an order is cancelled
type SalesOrderCancelledEvent struct {
	shared.BaseDomainEvent
	OrderID    uuid.UUID   `json:"order_id"`
	FromStatus OrderStatus `json:"from_status"`
	Reason     string      `json:"reason"`
}

// NewSalesOrderCancelledEvent creates a new SalesOrderCancelledEvent
func NewSalesOrderCancelledEvent(o *SalesOrder, from OrderStatus) *SalesOrderCancelledEvent {
	return &SalesOrderCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSalesOrderCancelled, AggregateTypeSalesOrder, o.ID, o.TenantID),
		OrderID:         o.ID,
		FromStatus:      from,
		Reason:          o.CancelReason,
	}
}
