package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/distribution/internal/domain/logistics"
	"github.com/erp/distribution/internal/domain/shared"
	"github.com/erp/distribution/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDelivery(t *testing.T, tenantID uuid.UUID, number string, expected time.Time) *logistics.Delivery {
	t.Helper()
	d, err := logistics.NewDelivery(tenantID, number, uuid.New(), uuid.New(), uuid.New(), "12 Lê Lợi", expected,
		[]logistics.LineSource{
			{OrderLineID: uuid.New(), ProductID: uuid.New(), ProductName: "Gạo", Unit: "bao", UnitPrice: dec(300000), Quantity: dec(3)},
			{OrderLineID: uuid.New(), ProductID: uuid.New(), ProductName: "Mắm", Unit: "thùng", UnitPrice: dec(500000), Quantity: dec(2)},
		})
	require.NoError(t, err)
	return d
}

// flatValuer bills every delivered unit at one price
type flatValuer struct{ price decimal.Decimal }

func (v flatValuer) ValueDelivered(_ uuid.UUID, _, delivered decimal.Decimal) (decimal.Decimal, error) {
	return delivered.Mul(v.price), nil
}

func TestGormDeliveryRepository_Lifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormDeliveryRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()
	driverID := uuid.New()

	d := newTestDelivery(t, tenantID, "DL2024000001", time.Now())
	require.NoError(t, repo.Save(ctx, d))

	loaded, err := repo.FindByIDForTenant(ctx, tenantID, d.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Lines, 2)

	require.NoError(t, loaded.AssignDriver(driverID, "29C-123.45"))
	start, err := valueobject.NewGeoPoint(21.0278, 105.8342)
	require.NoError(t, err)
	require.NoError(t, loaded.Start(&start))
	require.NoError(t, repo.SaveWithLock(ctx, loaded))

	require.NoError(t, loaded.Complete([]logistics.CompletedItem{
		{LineID: loaded.Lines[0].ID, Quantity: dec(3)},
	}, logistics.ProofOfDelivery{SignatureURL: "sig.png"}, flatValuer{price: dec(300000)}))
	require.NoError(t, repo.SaveWithLock(ctx, loaded))

	final, err := repo.FindByIDForTenant(ctx, tenantID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, logistics.DeliveryStatusDelivered, final.Status)
	assert.Equal(t, logistics.LineStatusDelivered, final.Lines[0].Status)
	assert.True(t, final.Lines[0].DeliveredQuantity.Equal(dec(3)))
	assert.True(t, final.Lines[0].Amount.Equal(dec(900000)), final.Lines[0].Amount.String())
	assert.True(t, final.DeliveredAmount().Equal(dec(900000)))
	assert.Equal(t, logistics.LineStatusFailed, final.Lines[1].Status)
	require.NotNil(t, final.StartLatitude)
	assert.InDelta(t, 21.0278, *final.StartLatitude, 1e-9)

	// stale copy
	d.IncrementVersion()
	err = repo.SaveWithLock(ctx, d)
	assert.True(t, shared.IsKind(err, shared.KindConcurrencyConflict))
}

func TestGormDeliveryRepository_FindByDriver(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormDeliveryRepository(db)
	ctx := context.Background()
	tenantID, driverID := uuid.New(), uuid.New()

	today := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	for i, day := range []time.Time{today, today.Add(5 * time.Hour), today.AddDate(0, 0, 1)} {
		d := newTestDelivery(t, tenantID, shared.FormatDocumentNumber("DL", 2024, int64(i+1)), day)
		require.NoError(t, d.AssignDriver(driverID, ""))
		require.NoError(t, repo.Save(ctx, d))
	}

	onDay, err := repo.FindByDriver(ctx, tenantID, driverID, &today)
	require.NoError(t, err)
	assert.Len(t, onDay, 2)

	all, err := repo.FindByDriver(ctx, tenantID, driverID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	listed, total, err := repo.FindAllForTenant(ctx, tenantID, logistics.DeliveryFilter{DriverID: &driverID, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, listed, 1)
}

func TestGormTrackingRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormTrackingRepository(db)
	ctx := context.Background()
	tenantID, deliveryID := uuid.New(), uuid.New()
	base := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

	for i := 2; i >= 0; i-- {
		p, err := valueobject.NewGeoPoint(10.77+float64(i)/100, 106.70, valueobject.WithRecordedAt(base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
		require.NoError(t, repo.Append(ctx, logistics.NewGpsTrackPoint(tenantID, deliveryID, p)))
	}

	points, err := repo.FindByDelivery(ctx, tenantID, deliveryID)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.True(t, points[0].RecordedAt.Before(points[2].RecordedAt))
	assert.Greater(t, logistics.TrackDistance(points), 0.0)
}
