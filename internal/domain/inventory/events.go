package inventory

import (
	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constants
const (
	AggregateTypeInventoryBalance = "InventoryBalance"
	AggregateTypeStockTransfer    = "StockTransfer"
)

// Event type constants
const (
	EventTypeStockBelowReorderPoint = "StockBelowReorderPoint"
	EventTypeStockAdjusted          = "StockAdjusted"
	EventTypeStockTransferred       = "StockTransferred"
)

// StockBelowReorderPointEvent is raised when a balance crosses its reorder point
type StockBelowReorderPointEvent struct {
	shared.BaseDomainEvent
	ProductID    uuid.UUID       `json:"product_id"`
	WarehouseID  uuid.UUID       `json:"warehouse_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	ReorderPoint decimal.Decimal `json:"reorder_point"`
}

// NewStockBelowReorderPointEvent creates a new StockBelowReorderPointEvent
func NewStockBelowReorderPointEvent(b *InventoryBalance) *StockBelowReorderPointEvent {
	return &StockBelowReorderPointEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockBelowReorderPoint, AggregateTypeInventoryBalance, b.ID, b.TenantID),
		ProductID:       b.ProductID,
		WarehouseID:     b.WarehouseID,
		Quantity:        b.Quantity,
		ReorderPoint:    b.ReorderPoint,
	}
}

// StockAdjustedEvent is published after a posting commits
type StockAdjustedEvent struct {
	shared.BaseDomainEvent
	TransactionID  uuid.UUID       `json:"transaction_id"`
	ProductID      uuid.UUID       `json:"product_id"`
	WarehouseID    uuid.UUID       `json:"warehouse_id"`
	Type           TransactionType `json:"type"`
	Quantity       decimal.Decimal `json:"quantity"`
	QuantityBefore decimal.Decimal `json:"quantity_before"`
	QuantityAfter  decimal.Decimal `json:"quantity_after"`
	ReferenceType  string          `json:"reference_type,omitempty"`
	ReferenceID    string          `json:"reference_id,omitempty"`
}

// NewStockAdjustedEvent creates a new StockAdjustedEvent
func NewStockAdjustedEvent(p *Posting) *StockAdjustedEvent {
	tx := p.Transaction
	return &StockAdjustedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockAdjusted, AggregateTypeInventoryBalance, p.Balance.ID, tx.TenantID),
		TransactionID:   tx.ID,
		ProductID:       tx.ProductID,
		WarehouseID:     tx.WarehouseID,
		Type:            tx.Type,
		Quantity:        tx.Quantity,
		QuantityBefore:  tx.QuantityBefore,
		QuantityAfter:   tx.QuantityAfter,
		ReferenceType:   tx.ReferenceType,
		ReferenceID:     tx.ReferenceID,
	}
}

// StockTransferredEvent is published after both legs of a transfer commit
type StockTransferredEvent struct {
	shared.BaseDomainEvent
	TransferID      uuid.UUID       `json:"transfer_id"`
	ProductID       uuid.UUID       `json:"product_id"`
	FromWarehouseID uuid.UUID       `json:"from_warehouse_id"`
	ToWarehouseID   uuid.UUID       `json:"to_warehouse_id"`
	Quantity        decimal.Decimal `json:"quantity"`
}

// NewStockTransferredEvent creates a new StockTransferredEvent
func NewStockTransferredEvent(tenantID, transferID, productID, from, to uuid.UUID, qty decimal.Decimal) *StockTransferredEvent {
	return &StockTransferredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeStockTransferred, AggregateTypeStockTransfer, transferID, tenantID),
		TransferID:      transferID,
		ProductID:       productID,
		FromWarehouseID: from,
		ToWarehouseID:   to,
		Quantity:        qty,
	}
}
