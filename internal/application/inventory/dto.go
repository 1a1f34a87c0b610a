package inventory

import (
	"time"

	"github.com/erp/distribution/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceResponse represents a stock balance in API responses
type BalanceResponse struct {
	ID           uuid.UUID        `json:"id"`
	TenantID     uuid.UUID        `json:"tenant_id"`
	ProductID    uuid.UUID        `json:"product_id"`
	WarehouseID  uuid.UUID        `json:"warehouse_id"`
	Quantity     decimal.Decimal  `json:"quantity"`
	ReorderPoint decimal.Decimal  `json:"reorder_point"`
	MinQuantity  decimal.Decimal  `json:"min_quantity"`
	MaxQuantity  *decimal.Decimal `json:"max_quantity,omitempty"`
	IsLowStock   bool             `json:"is_low_stock"`
	IsOutOfStock bool             `json:"is_out_of_stock"`
	UpdatedAt    time.Time        `json:"updated_at"`
	Version      int              `json:"version"`
}

// TransactionResponse represents a ledger row in API responses
type TransactionResponse struct {
	ID                uuid.UUID                 `json:"id"`
	TransactionNumber string                    `json:"transaction_number"`
	ProductID         uuid.UUID                 `json:"product_id"`
	WarehouseID       uuid.UUID                 `json:"warehouse_id"`
	Type              inventory.TransactionType `json:"type"`
	Quantity          decimal.Decimal           `json:"quantity"`
	QuantityBefore    decimal.Decimal           `json:"quantity_before"`
	QuantityAfter     decimal.Decimal           `json:"quantity_after"`
	Reason            string                    `json:"reason,omitempty"`
	ReferenceType     string                    `json:"reference_type,omitempty"`
	ReferenceID       string                    `json:"reference_id,omitempty"`
	TransferID        *uuid.UUID                `json:"transfer_id,omitempty"`
	Notes             string                    `json:"notes,omitempty"`
	IdempotencyKey    string                    `json:"idempotency_key,omitempty"`
	CreatedBy         *uuid.UUID                `json:"created_by,omitempty"`
	CreatedAt         time.Time                 `json:"created_at"`
	Replayed          bool                      `json:"replayed,omitempty"`
}

// TransferResponse holds both legs of a transfer
type TransferResponse struct {
	TransferID uuid.UUID           `json:"transfer_id"`
	Debit      TransactionResponse `json:"debit"`
	Credit     TransactionResponse `json:"credit"`
	Replayed   bool                `json:"replayed,omitempty"`
}

// BalanceVerification reports whether a balance row agrees with its log
type BalanceVerification struct {
	ProductID    uuid.UUID       `json:"product_id"`
	WarehouseID  uuid.UUID       `json:"warehouse_id"`
	Recorded     decimal.Decimal `json:"recorded"`
	Replayed     decimal.Decimal `json:"replayed"`
	Transactions int             `json:"transactions"`
	Consistent   bool            `json:"consistent"`
	Problem      string          `json:"problem,omitempty"`
}

// AdjustRequest posts one manual movement. Quantity must be positive for in
// and out; adjustment sets the counted quantity and may be zero.
type AdjustRequest struct {
	ProductID     uuid.UUID       `json:"product_id" validate:"required"`
	WarehouseID   uuid.UUID       `json:"warehouse_id"`
	Type          string          `json:"type" validate:"required,oneof=in out adjustment"`
	Quantity      decimal.Decimal `json:"quantity" validate:"gte=0"`
	Reason        string          `json:"reason" validate:"max=500"`
	ReferenceType string          `json:"reference_type" validate:"omitempty,max=30"`
	ReferenceID   string          `json:"reference_id" validate:"omitempty,max=50"`
	Notes         string          `json:"notes"`

	// IdempotencyKey makes retries safe: a key already used by the tenant
	// returns the original movement instead of posting again
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=100"`
}

// TransferRequest moves stock between two locations
type TransferRequest struct {
	ProductID       uuid.UUID       `json:"product_id" validate:"required"`
	FromWarehouseID uuid.UUID       `json:"from_warehouse_id"`
	ToWarehouseID   uuid.UUID       `json:"to_warehouse_id"`
	Quantity        decimal.Decimal `json:"quantity" validate:"gt=0"`
	Reason          string          `json:"reason" validate:"max=500"`
	Notes           string          `json:"notes"`
	IdempotencyKey  string          `json:"idempotency_key" validate:"omitempty,max=100"`
}

// SetThresholdsRequest updates reorder and min/max levels of a balance
type SetThresholdsRequest struct {
	ProductID    uuid.UUID        `json:"product_id" validate:"required"`
	WarehouseID  uuid.UUID        `json:"warehouse_id"`
	ReorderPoint decimal.Decimal  `json:"reorder_point" validate:"gte=0"`
	MinQuantity  decimal.Decimal  `json:"min_quantity" validate:"gte=0"`
	MaxQuantity  *decimal.Decimal `json:"max_quantity"`
}

// TransactionListFilter represents filter options for the transaction log
type TransactionListFilter struct {
	ProductID      *uuid.UUID `json:"product_id"`
	WarehouseID    *uuid.UUID `json:"warehouse_id"`
	Type           string     `json:"type" validate:"omitempty,oneof=in out adjustment transfer"`
	ReferenceType  string     `json:"reference_type" validate:"omitempty,max=30"`
	ReferenceID    string     `json:"reference_id" validate:"omitempty,max=50"`
	IdempotencyKey string     `json:"idempotency_key" validate:"omitempty,max=100"`
	From           *time.Time `json:"from"`
	To             *time.Time `json:"to"`
	Page           int        `json:"page" validate:"gte=0"`
	PageSize       int        `json:"page_size" validate:"gte=0,lte=100"`
}

// InventoryStats summarises the tenant's stock
type InventoryStats struct {
	TotalProducts   int             `json:"total_products"`
	TotalQuantity   decimal.Decimal `json:"total_quantity"`
	TotalValue      decimal.Decimal `json:"total_value"`
	LowStockCount   int             `json:"low_stock_count"`
	OutOfStockCount int             `json:"out_of_stock_count"`
}

// ToBalanceResponse converts a domain balance to a response
func ToBalanceResponse(b *inventory.InventoryBalance) BalanceResponse {
	return BalanceResponse{
		ID:           b.ID,
		TenantID:     b.TenantID,
		ProductID:    b.ProductID,
		WarehouseID:  b.WarehouseID,
		Quantity:     b.Quantity,
		ReorderPoint: b.ReorderPoint,
		MinQuantity:  b.MinQuantity,
		MaxQuantity:  b.MaxQuantity,
		IsLowStock:   b.IsLowStock(),
		IsOutOfStock: b.IsOutOfStock(),
		UpdatedAt:    b.UpdatedAt,
		Version:      b.Version,
	}
}

// ToTransactionResponse converts a domain transaction to a response
func ToTransactionResponse(tx *inventory.InventoryTransaction) TransactionResponse {
	return TransactionResponse{
		ID:                tx.ID,
		TransactionNumber: tx.TransactionNumber,
		ProductID:         tx.ProductID,
		WarehouseID:       tx.WarehouseID,
		Type:              tx.Type,
		Quantity:          tx.Quantity,
		QuantityBefore:    tx.QuantityBefore,
		QuantityAfter:     tx.QuantityAfter,
		Reason:            tx.Reason,
		ReferenceType:     tx.ReferenceType,
		ReferenceID:       tx.ReferenceID,
		TransferID:        tx.TransferID,
		Notes:             tx.Notes,
		IdempotencyKey:    valueOrEmpty(tx.IdempotencyKey),
		CreatedBy:         tx.CreatedBy,
		CreatedAt:         tx.CreatedAt,
	}
}

// ToBalanceResponses converts a slice of balances
func ToBalanceResponses(balances []inventory.InventoryBalance) []BalanceResponse {
	out := make([]BalanceResponse, len(balances))
	for i := range balances {
		out[i] = ToBalanceResponse(&balances[i])
	}
	return out
}

func valueOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
