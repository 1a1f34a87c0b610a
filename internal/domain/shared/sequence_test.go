package shared

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterSeq map[string]int64

func (c counterSeq) Next(_ context.Context, tenantID uuid.UUID, prefix string, year int) (int64, error) {
	key := tenantID.String() + prefix + time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006")
	c[key]++
	return c[key], nil
}

func TestFormatDocumentNumber(t *testing.T) {
	assert.Equal(t, "SO2024000123", FormatDocumentNumber("so", 2024, 123))
	assert.Equal(t, "DL20251234567", FormatDocumentNumber("DL", 2025, 1234567))
}

func TestNextDocumentNumber(t *testing.T) {
	seqs := counterSeq{}
	tenant := uuid.New()
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	first, err := NextDocumentNumber(context.Background(), seqs, tenant, "SO", at)
	require.NoError(t, err)
	second, err := NextDocumentNumber(context.Background(), seqs, tenant, "SO", at)
	require.NoError(t, err)
	other, err := NextDocumentNumber(context.Background(), seqs, uuid.New(), "SO", at)
	require.NoError(t, err)

	assert.Equal(t, "SO2024000001", first)
	assert.Equal(t, "SO2024000002", second)
	assert.Equal(t, "SO2024000001", other)

	_, err = NextDocumentNumber(context.Background(), seqs, uuid.Nil, "SO", at)
	assert.True(t, IsKind(err, KindValidation))
	_, err = NextDocumentNumber(context.Background(), seqs, tenant, " ", at)
	assert.True(t, IsKind(err, KindValidation))
}
