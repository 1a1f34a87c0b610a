package finance

import (
	"testing"
	"time"

	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func money(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newTestReceivable(t *testing.T, amount int64, due time.Time) *Receivable {
	t.Helper()
	r, err := NewReceivable(uuid.New(), "CN2026000001", uuid.New(), money(amount), due)
	require.NoError(t, err)
	r.ClearDomainEvents()
	return r
}

func TestNewReceivable(t *testing.T) {
	r := newTestReceivable(t, 1000000, time.Now().AddDate(0, 0, 30))
	assert.Equal(t, ReceivableStatusPending, r.Status)
	assert.True(t, r.RemainingAmount.Equal(money(1000000)))

	_, err := NewReceivable(uuid.New(), "CN1", uuid.New(), decimal.Zero, time.Now())
	assert.True(t, shared.IsKind(err, shared.KindValidation))
	_, err = NewReceivable(uuid.New(), "CN1", uuid.Nil, money(1), time.Now())
	assert.True(t, shared.IsKind(err, shared.KindValidation))
}

func TestReceivable_PartialThenPaid(t *testing.T) {
	r := newTestReceivable(t, 1000000, time.Now().AddDate(0, 0, 30))

	require.NoError(t, r.ApplyPayment(money(400000), time.Now()))
	assert.Equal(t, ReceivableStatusPartial, r.Status)
	assert.True(t, r.PaidAmount.Equal(money(400000)))
	assert.True(t, r.RemainingAmount.Equal(money(600000)))
	assert.NotNil(t, r.LastPaymentDate)

	require.NoError(t, r.ApplyPayment(money(600000), time.Now()))
	assert.Equal(t, ReceivableStatusPaid, r.Status)
	assert.True(t, r.RemainingAmount.IsZero())
	assert.True(t, r.RemainingAmount.Equal(r.Amount.Sub(r.PaidAmount)))

	err := r.ApplyPayment(money(1), time.Now())
	assert.True(t, shared.IsKind(err, shared.KindInvalidStateTransition))
}

func TestReceivable_Overpayment(t *testing.T) {
	r := newTestReceivable(t, 500, time.Now())
	require.NoError(t, r.ApplyPayment(money(200), time.Now()))
	version := r.GetVersion()

	err := r.ApplyPayment(money(301), time.Now())
	require.Error(t, err)
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "EXCEEDS_OUTSTANDING", de.Code)

	assert.True(t, r.PaidAmount.Equal(money(200)))
	assert.True(t, r.RemainingAmount.Equal(money(300)))
	assert.Equal(t, ReceivableStatusPartial, r.Status)
	assert.Equal(t, version, r.GetVersion())
}

func TestReceivable_WriteOff(t *testing.T) {
	r := newTestReceivable(t, 500, time.Now())
	require.NoError(t, r.ApplyPayment(money(100), time.Now()))

	assert.True(t, shared.IsKind(r.WriteOff(""), shared.KindValidation))
	require.NoError(t, r.WriteOff("customer bankrupt"))
	assert.Equal(t, ReceivableStatusWrittenOff, r.Status)
	assert.True(t, r.RemainingAmount.Equal(money(400)))

	assert.True(t, shared.IsKind(r.WriteOff("again"), shared.KindInvalidStateTransition))
}

func TestReceivable_DaysPastDue(t *testing.T) {
	now := time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC)
	r := newTestReceivable(t, 1, time.Date(2026, 5, 19, 17, 0, 0, 0, time.UTC))
	assert.Equal(t, 1, r.DaysPastDue(now))
	assert.True(t, r.IsOverdue(now))

	r.DueDate = time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, r.DaysPastDue(now))
	assert.False(t, r.IsOverdue(now))
}

func TestNewPayment(t *testing.T) {
	p, err := NewPayment(uuid.New(), "TT2026000001", uuid.New(), money(100), PaymentMethodCash, time.Time{})
	require.NoError(t, err)
	assert.False(t, p.PaymentDate.IsZero())

	p.WithReference("  ").WithCollector(uuid.Nil, nil, nil)
	assert.Nil(t, p.Reference)
	assert.Nil(t, p.CollectedBy)
	p.WithReference("UNC-778")
	assert.Equal(t, "UNC-778", *p.Reference)

	_, err = NewPayment(uuid.New(), "TT1", uuid.New(), money(100), PaymentMethod("crypto"), time.Now())
	assert.True(t, shared.IsKind(err, shared.KindValidation))
	_, err = NewPayment(uuid.New(), "TT1", uuid.New(), money(-5), PaymentMethodCash, time.Now())
	assert.True(t, shared.IsKind(err, shared.KindValidation))
}
