package valueobject

import (
	"fmt"
	"math"
	"time"
)

// GeoPoint is an immutable GPS fix reported by a driver or collector device
type GeoPoint struct {
	latitude   float64
	longitude  float64
	accuracy   *float64
	recordedAt time.Time
}

// GeoOption is a functional option for configuring GeoPoint
type GeoOption func(*GeoPoint)

// WithAccuracy sets the horizontal accuracy in meters
func WithAccuracy(meters float64) GeoOption {
	return func(p *GeoPoint) {
		p.accuracy = &meters
	}
}

// WithRecordedAt sets the device timestamp of the fix
func WithRecordedAt(t time.Time) GeoOption {
	return func(p *GeoPoint) {
		if !t.IsZero() {
			p.recordedAt = t
		}
	}
}

// NewGeoPoint creates a validated GeoPoint; the timestamp defaults to now
func NewGeoPoint(latitude, longitude float64, opts ...GeoOption) (GeoPoint, error) {
	if math.IsNaN(latitude) || latitude < -90 || latitude > 90 {
		return GeoPoint{}, fmt.Errorf("latitude %v out of range [-90, 90]", latitude)
	}
	if math.IsNaN(longitude) || longitude < -180 || longitude > 180 {
		return GeoPoint{}, fmt.Errorf("longitude %v out of range [-180, 180]", longitude)
	}

	p := GeoPoint{
		latitude:   latitude,
		longitude:  longitude,
		recordedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(&p)
	}
	if p.accuracy != nil && *p.accuracy < 0 {
		return GeoPoint{}, fmt.Errorf("accuracy cannot be negative")
	}
	return p, nil
}

// Latitude returns the latitude in degrees
func (p GeoPoint) Latitude() float64 { return p.latitude }

// Longitude returns the longitude in degrees
func (p GeoPoint) Longitude() float64 { return p.longitude }

// Accuracy returns the accuracy in meters, if reported
func (p GeoPoint) Accuracy() *float64 { return p.accuracy }

// RecordedAt returns when the fix was taken
func (p GeoPoint) RecordedAt() time.Time { return p.recordedAt }

// IsZero reports whether the point was never set
func (p GeoPoint) IsZero() bool {
	return p.recordedAt.IsZero()
}

// String returns "lat,lng"
func (p GeoPoint) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.latitude, p.longitude)
}

// DistanceTo returns the great-circle distance in meters
func (p GeoPoint) DistanceTo(other GeoPoint) float64 {
	const earthRadius = 6371000.0
	lat1 := p.latitude * math.Pi / 180
	lat2 := other.latitude * math.Pi / 180
	dLat := (other.latitude - p.latitude) * math.Pi / 180
	dLng := (other.longitude - p.longitude) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadius * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
