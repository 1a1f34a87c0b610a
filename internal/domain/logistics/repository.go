package logistics

import (
	"context"
	"time"

	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
)

// DeliveryFilter narrows delivery listings
type DeliveryFilter struct {
	OrderID   *uuid.UUID
	DriverID  *uuid.UUID
	Status    DeliveryStatus
	DateRange shared.DateRange // on ExpectedDate
	OrderBy   string
	OrderDir  string
	Page      int
	PageSize  int
}

// DeliveryRepository persists Delivery aggregates with their lines
type DeliveryRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Delivery, error)

	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter DeliveryFilter) ([]Delivery, int64, error)

	// FindByDriver returns the driver's deliveries expected on the given day, or all when day is nil
	FindByDriver(ctx context.Context, tenantID, driverID uuid.UUID, day *time.Time) ([]Delivery, error)

	Save(ctx context.Context, delivery *Delivery) error

	// SaveWithLock updates header and line outcomes if the stored version is still LoadedVersion
	SaveWithLock(ctx context.Context, delivery *Delivery) error
}

// TrackingRepository is the append-only GPS log
type TrackingRepository interface {
	Append(ctx context.Context, point *GpsTrackPoint) error

	// FindByDelivery returns points ordered by RecordedAt
	FindByDelivery(ctx context.Context, tenantID, deliveryID uuid.UUID) ([]GpsTrackPoint, error)
}
