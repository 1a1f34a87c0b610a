package inventory

import (
	"context"
	"testing"

	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type balanceKey struct{ tenant, product, warehouse uuid.UUID }

type memBalances struct {
	rows map[balanceKey]InventoryBalance
}

func (m *memBalances) FindByKey(_ context.Context, tenantID, productID, warehouseID uuid.UUID) (*InventoryBalance, error) {
	b, ok := m.rows[balanceKey{tenantID, productID, warehouseID}]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &b, nil
}

func (m *memBalances) FindByProduct(context.Context, uuid.UUID, uuid.UUID) ([]InventoryBalance, error) {
	return nil, nil
}

func (m *memBalances) FindAllForTenant(context.Context, uuid.UUID, BalanceFilter) ([]InventoryBalance, error) {
	return nil, nil
}

func (m *memBalances) FindLowStock(context.Context, uuid.UUID) ([]InventoryBalance, error) {
	return nil, nil
}

func (m *memBalances) Create(_ context.Context, b *InventoryBalance) error {
	k := balanceKey{b.TenantID, b.ProductID, b.WarehouseID}
	if _, ok := m.rows[k]; ok {
		return shared.NewConcurrencyConflictError("Inventory balance")
	}
	b.MarkPersisted()
	m.rows[k] = *b
	return nil
}

func (m *memBalances) SaveWithLock(_ context.Context, b *InventoryBalance) error {
	k := balanceKey{b.TenantID, b.ProductID, b.WarehouseID}
	stored, ok := m.rows[k]
	if !ok || stored.Version != b.LoadedVersion() {
		return shared.NewConcurrencyConflictError("Inventory balance")
	}
	b.MarkPersisted()
	m.rows[k] = *b
	return nil
}

type memTransactions struct {
	rows []InventoryTransaction
}

func (m *memTransactions) Create(_ context.Context, tx *InventoryTransaction) error {
	if tx.IdempotencyKey != nil {
		for _, r := range m.rows {
			if r.TenantID == tx.TenantID && r.IdempotencyKey != nil && *r.IdempotencyKey == *tx.IdempotencyKey {
				return shared.NewConcurrencyConflictError("Inventory transaction")
			}
		}
	}
	m.rows = append(m.rows, *tx)
	return nil
}

func (m *memTransactions) FindByIdempotencyKey(_ context.Context, tenantID uuid.UUID, key string) (*InventoryTransaction, error) {
	for i := range m.rows {
		r := &m.rows[i]
		if r.TenantID == tenantID && r.IdempotencyKey != nil && *r.IdempotencyKey == key {
			return r, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memTransactions) FindAllForTenant(context.Context, uuid.UUID, TransactionFilter) ([]InventoryTransaction, error) {
	return m.rows, nil
}

func (m *memTransactions) CountForTenant(context.Context, uuid.UUID, TransactionFilter) (int64, error) {
	return int64(len(m.rows)), nil
}

func (m *memTransactions) FindByKey(_ context.Context, tenantID, productID, warehouseID uuid.UUID) ([]InventoryTransaction, error) {
	var out []InventoryTransaction
	for _, r := range m.rows {
		if r.TenantID == tenantID && r.ProductID == productID && r.WarehouseID == warehouseID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memTransactions) FindByTransferID(_ context.Context, _ uuid.UUID, transferID uuid.UUID) ([]InventoryTransaction, error) {
	var out []InventoryTransaction
	for _, r := range m.rows {
		if r.TransferID != nil && *r.TransferID == transferID {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestLedger() (*Ledger, *memBalances, *memTransactions) {
	balances := &memBalances{rows: map[balanceKey]InventoryBalance{}}
	txs := &memTransactions{}
	return NewLedger(balances, txs, DefaultReorderPoint), balances, txs
}

func TestLedger_InThenOut(t *testing.T) {
	ctx := context.Background()
	ledger, _, txs := newTestLedger()
	tenantID, productID := uuid.New(), uuid.New()

	_, err := ledger.Post(ctx, Entry{TenantID: tenantID, ProductID: productID, Type: TransactionTypeIn, Quantity: d(50), Reason: "receipt"})
	require.NoError(t, err)
	posting, err := ledger.Post(ctx, Entry{TenantID: tenantID, ProductID: productID, Type: TransactionTypeOut, Quantity: d(20), Reason: "sale"})
	require.NoError(t, err)

	assert.True(t, posting.Balance.Quantity.Equal(d(30)))
	require.Len(t, txs.rows, 2)
	assert.True(t, txs.rows[0].QuantityAfter.Equal(txs.rows[1].QuantityBefore))
	assert.Less(t, txs.rows[0].BalanceVersion, txs.rows[1].BalanceVersion)
	assert.NoError(t, VerifyChain(txs.rows))
	assert.True(t, FoldTransactions(txs.rows).Equal(posting.Balance.Quantity))
}

func TestLedger_OutWithoutBalance(t *testing.T) {
	ledger, balances, txs := newTestLedger()

	_, err := ledger.Post(context.Background(), Entry{TenantID: uuid.New(), ProductID: uuid.New(), Type: TransactionTypeOut, Quantity: d(1)})
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	assert.Empty(t, balances.rows)
	assert.Empty(t, txs.rows)
}

func TestLedger_InsufficientLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	ledger, balances, txs := newTestLedger()
	tenantID, productID := uuid.New(), uuid.New()

	_, err := ledger.Post(ctx, Entry{TenantID: tenantID, ProductID: productID, Type: TransactionTypeIn, Quantity: d(10)})
	require.NoError(t, err)

	_, err = ledger.Post(ctx, Entry{TenantID: tenantID, ProductID: productID, Type: TransactionTypeOut, Quantity: d(11)})
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)

	stored := balances.rows[balanceKey{tenantID, productID, uuid.Nil}]
	assert.True(t, stored.Quantity.Equal(d(10)))
	assert.Len(t, txs.rows, 1)
}

func TestLedger_Adjustment(t *testing.T) {
	ctx := context.Background()
	ledger, _, txs := newTestLedger()
	tenantID, productID := uuid.New(), uuid.New()

	posting, err := ledger.Post(ctx, Entry{TenantID: tenantID, ProductID: productID, Type: TransactionTypeAdjustment, Quantity: d(7), Reason: "count"})
	require.NoError(t, err)
	assert.True(t, posting.Balance.Quantity.Equal(d(7)))

	posting, err = ledger.Post(ctx, Entry{TenantID: tenantID, ProductID: productID, Type: TransactionTypeAdjustment, Quantity: d(0), Reason: "count"})
	require.NoError(t, err)
	assert.True(t, posting.Balance.Quantity.IsZero())
	assert.NoError(t, VerifyChain(txs.rows))
}

func TestLedger_TransferLegs(t *testing.T) {
	ctx := context.Background()
	ledger, _, txs := newTestLedger()
	tenantID, productID := uuid.New(), uuid.New()
	from, to := uuid.New(), uuid.New()
	transferID := uuid.New()

	_, err := ledger.Post(ctx, Entry{TenantID: tenantID, ProductID: productID, WarehouseID: from, Type: TransactionTypeIn, Quantity: d(30)})
	require.NoError(t, err)

	out, err := ledger.Post(ctx, Entry{TenantID: tenantID, ProductID: productID, WarehouseID: from, Type: TransactionTypeTransfer,
		TransferID: transferID, TransferLeg: TransferLegOut, Quantity: d(12)})
	require.NoError(t, err)
	in, err := ledger.Post(ctx, Entry{TenantID: tenantID, ProductID: productID, WarehouseID: to, Type: TransactionTypeTransfer,
		TransferID: transferID, TransferLeg: TransferLegIn, Quantity: d(12)})
	require.NoError(t, err)

	assert.True(t, out.Balance.Quantity.Add(in.Balance.Quantity).Equal(d(30)))
	legs, err := txs.FindByTransferID(ctx, tenantID, transferID)
	require.NoError(t, err)
	assert.Len(t, legs, 2)
}

func TestLedger_ValidatesEntry(t *testing.T) {
	ledger, _, _ := newTestLedger()
	ctx := context.Background()

	cases := map[string]Entry{
		"missing tenant":       {ProductID: uuid.New(), Type: TransactionTypeIn, Quantity: d(1)},
		"missing product":      {TenantID: uuid.New(), Type: TransactionTypeIn, Quantity: d(1)},
		"zero quantity":        {TenantID: uuid.New(), ProductID: uuid.New(), Type: TransactionTypeIn, Quantity: d(0)},
		"negative adjustment":  {TenantID: uuid.New(), ProductID: uuid.New(), Type: TransactionTypeAdjustment, Quantity: d(-1)},
		"transfer without id":  {TenantID: uuid.New(), ProductID: uuid.New(), Type: TransactionTypeTransfer, TransferLeg: TransferLegIn, Quantity: d(1)},
		"transfer without leg": {TenantID: uuid.New(), ProductID: uuid.New(), Type: TransactionTypeTransfer, TransferID: uuid.New(), Quantity: d(1)},
	}
	for name, entry := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ledger.Post(ctx, entry)
			assert.True(t, shared.IsKind(err, shared.KindValidation), "got %v", err)
		})
	}
}

func TestLedger_IdempotencyKey(t *testing.T) {
	ctx := context.Background()
	ledger, _, txs := newTestLedger()
	tenantID, productID := uuid.New(), uuid.New()
	entry := Entry{TenantID: tenantID, ProductID: productID, Type: TransactionTypeIn, Quantity: d(10), IdempotencyKey: "GRN-0042"}

	posting, err := ledger.Post(ctx, entry)
	require.NoError(t, err)
	require.NotNil(t, posting.Transaction.IdempotencyKey)

	stored, err := txs.FindByIdempotencyKey(ctx, tenantID, "GRN-0042")
	require.NoError(t, err)
	assert.Equal(t, posting.Transaction.ID, stored.ID)
	assert.True(t, stored.Repeats(entry))
	assert.False(t, stored.Repeats(Entry{ProductID: productID, Type: TransactionTypeIn, Quantity: d(11)}))

	_, err = ledger.Post(ctx, entry)
	assert.True(t, shared.IsKind(err, shared.KindConcurrencyConflict))

	_, err = txs.FindByIdempotencyKey(ctx, uuid.New(), "GRN-0042")
	assert.ErrorIs(t, err, shared.ErrNotFound, "keys are per tenant")
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	ledger, _, txs := newTestLedger()
	tenantID, productID := uuid.New(), uuid.New()

	_, err := ledger.Post(ctx, Entry{TenantID: tenantID, ProductID: productID, Type: TransactionTypeIn, Quantity: d(40)})
	require.NoError(t, err)
	posting, err := ledger.Post(ctx, Entry{TenantID: tenantID, ProductID: productID, Type: TransactionTypeOut, Quantity: d(15)})
	require.NoError(t, err)

	r, err := Reconcile(posting.Balance.Quantity, txs.rows)
	require.NoError(t, err)
	assert.True(t, r.Replayed.Equal(d(25)))
	assert.Equal(t, 2, r.Transactions)

	r, err = Reconcile(d(26), txs.rows)
	assert.True(t, shared.IsKind(err, shared.KindValidation))
	assert.Contains(t, err.Error(), "replay to 25")
	assert.True(t, r.Recorded.Equal(d(26)))

	_, err = Reconcile(decimal.Zero, nil)
	assert.NoError(t, err, "an empty log matches an untouched balance")
}
