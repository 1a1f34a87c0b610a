package inventory

import (
	"testing"

	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestNewInventoryTransaction(t *testing.T) {
	tenantID, productID := uuid.New(), uuid.New()

	tests := []struct {
		name    string
		txType  TransactionType
		qty     int64
		before  int64
		after   int64
		wantErr bool
	}{
		{"in adds", TransactionTypeIn, 50, 0, 50, false},
		{"out subtracts", TransactionTypeOut, 20, 50, 30, false},
		{"adjustment sets", TransactionTypeAdjustment, 12, 30, 12, false},
		{"transfer debit", TransactionTypeTransfer, 5, 12, 7, false},
		{"transfer credit", TransactionTypeTransfer, 5, 0, 5, false},
		{"in that does not add up", TransactionTypeIn, 5, 10, 14, true},
		{"out that does not add up", TransactionTypeOut, 5, 10, 6, true},
		{"adjustment mismatch", TransactionTypeAdjustment, 5, 10, 6, true},
		{"unknown type", TransactionType("gift"), 5, 0, 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := NewInventoryTransaction(tenantID, productID, uuid.Nil, tt.txType, d(tt.qty), d(tt.before), d(tt.after), "test")
			if tt.wantErr {
				assert.True(t, shared.IsKind(err, shared.KindValidation))
				return
			}
			require.NoError(t, err)
			assert.Regexp(t, `^TX\d{8}-[0-9A-F]{8}$`, tx.TransactionNumber)
		})
	}
}

func TestInventoryTransaction_Fluent(t *testing.T) {
	tx, err := NewInventoryTransaction(uuid.New(), uuid.New(), uuid.Nil, TransactionTypeTransfer, d(5), d(10), d(5), "move")
	require.NoError(t, err)

	transferID, actor := uuid.New(), uuid.New()
	tx.WithReference(ReferenceTypeTransfer, transferID.String()).WithTransfer(transferID).WithCreatedBy(actor).WithNotes("shelf B")

	require.NotNil(t, tx.TransferID)
	assert.Equal(t, transferID, *tx.TransferID)
	assert.Equal(t, actor, *tx.CreatedBy)
	assert.True(t, tx.IsDebit())
	assert.True(t, tx.SignedDelta().Equal(d(-5)))
}

func TestVerifyChain(t *testing.T) {
	mk := func(txType TransactionType, q, before, after int64) InventoryTransaction {
		tx, err := NewInventoryTransaction(uuid.New(), uuid.New(), uuid.Nil, txType, d(q), d(before), d(after), "")
		require.NoError(t, err)
		return *tx
	}

	rows := []InventoryTransaction{
		mk(TransactionTypeIn, 50, 0, 50),
		mk(TransactionTypeOut, 20, 50, 30),
		mk(TransactionTypeAdjustment, 28, 30, 28),
		mk(TransactionTypeTransfer, 8, 28, 20),
	}
	assert.NoError(t, VerifyChain(rows))
	assert.True(t, FoldTransactions(rows).Equal(d(20)))

	broken := append([]InventoryTransaction{}, rows...)
	broken[2] = mk(TransactionTypeAdjustment, 28, 31, 28)
	err := VerifyChain(broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "previous ended at 30")
}
