package logistics

import (
	"time"

	"github.com/erp/distribution/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// GpsTrackPoint is one recorded position of an in-transit delivery. Points
// are append-only.
type GpsTrackPoint struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	TenantID   uuid.UUID `gorm:"type:uuid;not null;index"`
	DeliveryID uuid.UUID `gorm:"type:uuid;not null;index:idx_gps_track_delivery,priority:1"`
	Latitude   float64   `gorm:"not null"`
	Longitude  float64   `gorm:"not null"`
	Accuracy   *float64
	RecordedAt time.Time `gorm:"not null;index:idx_gps_track_delivery,priority:2"`
	CreatedAt  time.Time
}

// TableName returns the table name for GORM
func (GpsTrackPoint) TableName() string {
	return "gps_track_points"
}

// NewGpsTrackPoint creates a track point from a validated position
func NewGpsTrackPoint(tenantID, deliveryID uuid.UUID, p valueobject.GeoPoint) *GpsTrackPoint {
	return &GpsTrackPoint{
		ID:         uuid.New(),
		TenantID:   tenantID,
		DeliveryID: deliveryID,
		Latitude:   p.Latitude(),
		Longitude:  p.Longitude(),
		Accuracy:   p.Accuracy(),
		RecordedAt: p.RecordedAt(),
		CreatedAt:  time.Now(),
	}
}

// GeoPoint converts the row back to a value object
func (p *GpsTrackPoint) GeoPoint() (valueobject.GeoPoint, error) {
	opts := []valueobject.GeoOption{valueobject.WithRecordedAt(p.RecordedAt)}
	if p.Accuracy != nil {
		opts = append(opts, valueobject.WithAccuracy(*p.Accuracy))
	}
	return valueobject.NewGeoPoint(p.Latitude, p.Longitude, opts...)
}

// TrackDistance sums the great-circle distance in meters along the points
func TrackDistance(points []GpsTrackPoint) float64 {
	var total float64
	var prev *valueobject.GeoPoint
	for i := range points {
		gp, err := points[i].GeoPoint()
		if err != nil {
			continue
		}
		if prev != nil {
			total += prev.DistanceTo(gp)
		}
		prev = &gp
	}
	return total
}
