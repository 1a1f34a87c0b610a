package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransferLeg says which side of a transfer an entry posts
type TransferLeg string

const (
	TransferLegOut TransferLeg = "out"
	TransferLegIn  TransferLeg = "in"
)

// Entry is one requested stock movement
type Entry struct {
	TenantID      uuid.UUID
	ProductID     uuid.UUID
	WarehouseID   uuid.UUID
	Type          TransactionType
	Quantity      decimal.Decimal
	Reason        string
	ReferenceType string
	ReferenceID   string
	Notes         string
	ActorID       uuid.UUID

	// IdempotencyKey, when set, is stored on the row; a second row with the
	// same key for the tenant is a ConcurrencyConflict
	IdempotencyKey string

	// Set only for TransactionTypeTransfer
	TransferID  uuid.UUID
	TransferLeg TransferLeg
}

// Posting is the result of applying an Entry
type Posting struct {
	Transaction *InventoryTransaction
	Balance     *InventoryBalance
}

// Ledger applies entries to balances and appends the matching transaction.
// It must run inside a database transaction supplied by the caller so the
// balance write and the log append commit or roll back together.
type Ledger struct {
	balances            BalanceRepository
	transactions        TransactionRepository
	defaultReorderPoint decimal.Decimal
}

// NewLedger creates a Ledger over transaction-bound repositories
func NewLedger(balances BalanceRepository, transactions TransactionRepository, defaultReorderPoint decimal.Decimal) *Ledger {
	return &Ledger{
		balances:            balances,
		transactions:        transactions,
		defaultReorderPoint: defaultReorderPoint,
	}
}

// Post applies one entry. Any error leaves both the balance row and the
// log untouched once the surrounding transaction rolls back.
func (l *Ledger) Post(ctx context.Context, entry Entry) (*Posting, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	balance, isNew, err := l.loadOrInit(ctx, entry)
	if err != nil {
		return nil, err
	}

	var before, after decimal.Decimal
	switch {
	case entry.Type == TransactionTypeIn,
		entry.Type == TransactionTypeTransfer && entry.TransferLeg == TransferLegIn:
		before, after, err = balance.Increase(entry.Quantity)
	case entry.Type == TransactionTypeOut,
		entry.Type == TransactionTypeTransfer && entry.TransferLeg == TransferLegOut:
		before, after, err = balance.Decrease(entry.Quantity)
	case entry.Type == TransactionTypeAdjustment:
		before, after, err = balance.SetTo(entry.Quantity)
	}
	if err != nil {
		return nil, err
	}

	if isNew {
		err = l.balances.Create(ctx, balance)
	} else {
		err = l.balances.SaveWithLock(ctx, balance)
	}
	if err != nil {
		return nil, err
	}

	tx, err := NewInventoryTransaction(
		entry.TenantID, entry.ProductID, entry.WarehouseID,
		entry.Type, entry.Quantity, before, after, entry.Reason,
	)
	if err != nil {
		return nil, err
	}
	tx.WithReference(entry.ReferenceType, entry.ReferenceID).
		WithNotes(entry.Notes).
		WithCreatedBy(entry.ActorID).
		WithIdempotencyKey(entry.IdempotencyKey)
	if entry.Type == TransactionTypeTransfer {
		tx.WithTransfer(entry.TransferID)
	}
	tx.BalanceVersion = balance.Version

	if err := l.transactions.Create(ctx, tx); err != nil {
		return nil, err
	}

	return &Posting{Transaction: tx, Balance: balance}, nil
}

func (l *Ledger) loadOrInit(ctx context.Context, entry Entry) (*InventoryBalance, bool, error) {
	balance, err := l.balances.FindByKey(ctx, entry.TenantID, entry.ProductID, entry.WarehouseID)
	if err == nil {
		return balance, false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, false, err
	}
	if entry.Type == TransactionTypeOut || entry.TransferLeg == TransferLegOut {
		return nil, false, shared.NewInsufficientStockError("Insufficient stock: no inventory recorded for product at this location")
	}
	balance, err = NewInventoryBalance(entry.TenantID, entry.ProductID, entry.WarehouseID, l.defaultReorderPoint)
	if err != nil {
		return nil, false, err
	}
	return balance, true, nil
}

func validateEntry(entry Entry) error {
	if err := shared.RequireTenant(entry.TenantID); err != nil {
		return err
	}
	if entry.ProductID == uuid.Nil {
		return shared.NewValidationError("INVALID_PRODUCT", "Product ID is required")
	}
	if !entry.Type.IsValid() {
		return shared.NewValidationError("INVALID_TRANSACTION_TYPE", "Transaction type must be in, out, adjustment or transfer")
	}
	if entry.Type == TransactionTypeTransfer {
		if entry.TransferID == uuid.Nil {
			return shared.NewValidationError("INVALID_TRANSFER", "Transfer ID is required for transfer legs")
		}
		if entry.TransferLeg != TransferLegIn && entry.TransferLeg != TransferLegOut {
			return shared.NewValidationError("INVALID_TRANSFER", "Transfer leg must be in or out")
		}
	}
	if entry.Type == TransactionTypeAdjustment {
		if entry.Quantity.IsNegative() {
			return shared.NewValidationError("INVALID_QUANTITY", "Counted quantity cannot be negative")
		}
	} else if !entry.Quantity.IsPositive() {
		return shared.NewValidationError("INVALID_QUANTITY", "Quantity must be greater than zero")
	}
	return nil
}

// FoldTransactions replays a key's transactions from zero and returns the
// resulting quantity. Rows must be in posting order.
func FoldTransactions(rows []InventoryTransaction) decimal.Decimal {
	qty := decimal.Zero
	for _, row := range rows {
		switch row.Type {
		case TransactionTypeIn:
			qty = qty.Add(row.Quantity)
		case TransactionTypeOut:
			qty = qty.Sub(row.Quantity)
		case TransactionTypeAdjustment:
			qty = row.Quantity
		case TransactionTypeTransfer:
			if row.IsDebit() {
				qty = qty.Sub(row.Quantity)
			} else {
				qty = qty.Add(row.Quantity)
			}
		}
	}
	return qty
}

// Reconciliation compares a balance row with the quantity its log replays to
type Reconciliation struct {
	Recorded     decimal.Decimal
	Replayed     decimal.Decimal
	Transactions int
}

// Reconcile checks that a key's rows link up and fold to the recorded
// quantity. Rows must be in posting order. The error names the first
// discrepancy found.
func Reconcile(recorded decimal.Decimal, rows []InventoryTransaction) (Reconciliation, error) {
	r := Reconciliation{
		Recorded:     recorded,
		Replayed:     FoldTransactions(rows),
		Transactions: len(rows),
	}
	if err := VerifyChain(rows); err != nil {
		return r, err
	}
	if !r.Recorded.Equal(r.Replayed) {
		return r, shared.NewValidationError("BALANCE_DRIFT",
			fmt.Sprintf("Balance records %s but its %d transactions replay to %s", r.Recorded, r.Transactions, r.Replayed))
	}
	return r, nil
}
