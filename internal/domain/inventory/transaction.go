package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of stock movement
type TransactionType string

const (
	TransactionTypeIn         TransactionType = "in"
	TransactionTypeOut        TransactionType = "out"
	TransactionTypeAdjustment TransactionType = "adjustment" // absolute set from a count
	TransactionTypeTransfer   TransactionType = "transfer"   // one leg of a warehouse move
)

// String returns the string representation of TransactionType
func (t TransactionType) String() string {
	return string(t)
}

// IsValid returns true if the transaction type is valid
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeIn, TransactionTypeOut, TransactionTypeAdjustment, TransactionTypeTransfer:
		return true
	}
	return false
}

// IsManual reports whether callers may post this type directly through adjust
func (t TransactionType) IsManual() bool {
	return t == TransactionTypeIn || t == TransactionTypeOut || t == TransactionTypeAdjustment
}

// Reference types recorded on transactions
const (
	ReferenceTypeManual   = "manual"
	ReferenceTypeTransfer = "transfer"
	ReferenceTypeDelivery = "delivery"
)

// InventoryTransaction is an immutable record of one quantity change.
// Corrections are made with new transactions, never by editing rows.
type InventoryTransaction struct {
	shared.BaseEntity
	TenantID          uuid.UUID       `gorm:"type:uuid;not null;index:idx_inv_tx_tenant_key,priority:1"`
	ProductID         uuid.UUID       `gorm:"type:uuid;not null;index:idx_inv_tx_tenant_key,priority:2"`
	WarehouseID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_inv_tx_tenant_key,priority:3"`
	TransactionNumber string          `gorm:"type:varchar(40);not null;uniqueIndex"`
	Type              TransactionType `gorm:"column:transaction_type;type:varchar(20);not null;index"`
	Quantity          decimal.Decimal `gorm:"type:decimal(18,4);not null"` // always non-negative; direction comes from before/after
	QuantityBefore    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	QuantityAfter     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Reason            string          `gorm:"type:varchar(500)"`
	ReferenceType     string          `gorm:"type:varchar(30);index:idx_inv_tx_reference,priority:1"`
	ReferenceID       string          `gorm:"type:varchar(50);index:idx_inv_tx_reference,priority:2"`
	TransferID        *uuid.UUID      `gorm:"type:uuid;index"`
	Notes             string          `gorm:"type:text"`
	CreatedBy         *uuid.UUID      `gorm:"type:uuid"`
	IdempotencyKey    *string         `gorm:"type:varchar(100)"` // unique per tenant; set by callers that retry
	BalanceVersion    int             `gorm:"not null;default:0"` // version of the balance row this posting produced; orders rows of one key
}

// TableName returns the table name for GORM
func (InventoryTransaction) TableName() string {
	return "inventory_transactions"
}

// NewInventoryTransaction builds a transaction row and checks its arithmetic
func NewInventoryTransaction(
	tenantID, productID, warehouseID uuid.UUID,
	txType TransactionType,
	quantity, before, after decimal.Decimal,
	reason string,
) (*InventoryTransaction, error) {
	if !txType.IsValid() {
		return nil, shared.NewValidationError("INVALID_TRANSACTION_TYPE", fmt.Sprintf("Unknown transaction type %q", txType))
	}
	tx := &InventoryTransaction{
		BaseEntity:        shared.NewBaseEntity(),
		TenantID:          tenantID,
		ProductID:         productID,
		WarehouseID:       warehouseID,
		TransactionNumber: newTransactionNumber(time.Now()),
		Type:              txType,
		Quantity:          quantity,
		QuantityBefore:    before,
		QuantityAfter:     after,
		Reason:            reason,
	}
	if err := tx.Verify(); err != nil {
		return nil, err
	}
	return tx, nil
}

// WithReference sets the source document
func (t *InventoryTransaction) WithReference(refType, refID string) *InventoryTransaction {
	t.ReferenceType = refType
	t.ReferenceID = refID
	return t
}

// WithTransfer links the row to a transfer
func (t *InventoryTransaction) WithTransfer(transferID uuid.UUID) *InventoryTransaction {
	t.TransferID = &transferID
	return t
}

// WithNotes sets free-form notes
func (t *InventoryTransaction) WithNotes(notes string) *InventoryTransaction {
	t.Notes = notes
	return t
}

// WithIdempotencyKey records the caller's retry key. Empty keys are ignored.
func (t *InventoryTransaction) WithIdempotencyKey(key string) *InventoryTransaction {
	if key != "" {
		t.IdempotencyKey = &key
	}
	return t
}

// Repeats reports whether a retried entry asks for the movement this row
// already records
func (t *InventoryTransaction) Repeats(entry Entry) bool {
	return t.ProductID == entry.ProductID &&
		t.WarehouseID == entry.WarehouseID &&
		t.Type == entry.Type &&
		t.Quantity.Equal(entry.Quantity)
}

// WithCreatedBy sets the acting user
func (t *InventoryTransaction) WithCreatedBy(userID uuid.UUID) *InventoryTransaction {
	if userID != uuid.Nil {
		t.CreatedBy = &userID
	}
	return t
}

// SignedDelta returns after minus before
func (t *InventoryTransaction) SignedDelta() decimal.Decimal {
	return t.QuantityAfter.Sub(t.QuantityBefore)
}

// IsDebit reports whether the row removed stock
func (t *InventoryTransaction) IsDebit() bool {
	return t.SignedDelta().IsNegative()
}

// Verify checks quantity_before + signed delta == quantity_after for the row's type
func (t *InventoryTransaction) Verify() error {
	if t.Quantity.IsNegative() || t.QuantityAfter.IsNegative() {
		return shared.NewValidationError("INVALID_TRANSACTION", "Transaction quantities cannot be negative")
	}
	var ok bool
	switch t.Type {
	case TransactionTypeIn:
		ok = t.QuantityBefore.Add(t.Quantity).Equal(t.QuantityAfter)
	case TransactionTypeOut:
		ok = t.QuantityBefore.Sub(t.Quantity).Equal(t.QuantityAfter)
	case TransactionTypeAdjustment:
		ok = t.Quantity.Equal(t.QuantityAfter)
	case TransactionTypeTransfer:
		ok = t.SignedDelta().Abs().Equal(t.Quantity)
	}
	if !ok {
		return shared.NewValidationError("INVALID_TRANSACTION",
			fmt.Sprintf("Transaction %s does not balance: %s %s %s -> %s",
				t.TransactionNumber, t.QuantityBefore, t.Type, t.Quantity, t.QuantityAfter))
	}
	return nil
}

// VerifyChain checks every row and that consecutive rows of one key link:
// rows[i].QuantityAfter == rows[i+1].QuantityBefore. Rows must be in posting order.
func VerifyChain(rows []InventoryTransaction) error {
	for i := range rows {
		if err := rows[i].Verify(); err != nil {
			return err
		}
		if i > 0 && !rows[i-1].QuantityAfter.Equal(rows[i].QuantityBefore) {
			return shared.NewValidationError("BROKEN_CHAIN",
				fmt.Sprintf("Transaction %s starts at %s but previous ended at %s",
					rows[i].TransactionNumber, rows[i].QuantityBefore, rows[i-1].QuantityAfter))
		}
	}
	return nil
}

// newTransactionNumber returns TX<yyyymmdd>-<8 random hex>
func newTransactionNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("TX%s-%s", now.Format("20060102"), suffix)
}
