package persistence

import (
	"context"
	"time"

	"github.com/erp/distribution/internal/domain/logistics"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const deliveryResource = "Delivery"

// GormDeliveryRepository implements logistics.DeliveryRepository using GORM
type GormDeliveryRepository struct {
	db *gorm.DB
}

// NewGormDeliveryRepository creates a new GormDeliveryRepository
func NewGormDeliveryRepository(db *gorm.DB) *GormDeliveryRepository {
	return &GormDeliveryRepository{db: db}
}

func orderedLines(db *gorm.DB) *gorm.DB {
	return db.Order("line_number ASC")
}

// FindByIDForTenant loads a delivery with its lines
func (r *GormDeliveryRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*logistics.Delivery, error) {
	var delivery logistics.Delivery
	if err := r.db.WithContext(ctx).
		Preload("Lines", orderedLines).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&delivery).Error; err != nil {
		return nil, translate(err, deliveryResource)
	}
	return &delivery, nil
}

// FindAllForTenant lists deliveries and the unpaginated total
func (r *GormDeliveryRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter logistics.DeliveryFilter) ([]logistics.Delivery, int64, error) {
	query := r.db.WithContext(ctx).Model(&logistics.Delivery{}).Where("tenant_id = ?", tenantID)
	if filter.OrderID != nil {
		query = query.Where("order_id = ?", *filter.OrderID)
	}
	if filter.DriverID != nil {
		query = query.Where("driver_id = ?", *filter.DriverID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	query = applyDateRange(query, "expected_date", filter.DateRange)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err, deliveryResource)
	}

	sortField := ValidateSortField(filter.OrderBy, DeliverySortFields, "created_at")
	sortDir := ValidateSortOrder(filter.OrderDir)

	var deliveries []logistics.Delivery
	if err := paginate(query.Preload("Lines", orderedLines).Order(sortField+" "+sortDir), filter.Page, filter.PageSize).
		Find(&deliveries).Error; err != nil {
		return nil, 0, translate(err, deliveryResource)
	}
	return deliveries, total, nil
}

// FindByDriver returns a driver's deliveries, limited to one expected day when day is set
func (r *GormDeliveryRepository) FindByDriver(ctx context.Context, tenantID, driverID uuid.UUID, day *time.Time) ([]logistics.Delivery, error) {
	query := r.db.WithContext(ctx).
		Preload("Lines", orderedLines).
		Where("tenant_id = ? AND driver_id = ?", tenantID, driverID)
	if day != nil {
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
		query = query.Where("expected_date >= ? AND expected_date < ?", start, start.AddDate(0, 0, 1))
	}

	var deliveries []logistics.Delivery
	if err := query.Order("expected_date ASC").Find(&deliveries).Error; err != nil {
		return nil, translate(err, deliveryResource)
	}
	return deliveries, nil
}

// Save inserts a new delivery with its lines
func (r *GormDeliveryRepository) Save(ctx context.Context, delivery *logistics.Delivery) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(delivery).Error; err != nil {
			return err
		}
		if len(delivery.Lines) > 0 {
			return tx.Create(&delivery.Lines).Error
		}
		return nil
	})
	if err != nil {
		return translate(err, deliveryResource)
	}
	delivery.MarkPersisted()
	return nil
}

// SaveWithLock updates the header and per-line outcomes with optimistic locking
func (r *GormDeliveryRepository) SaveWithLock(ctx context.Context, delivery *logistics.Delivery) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&logistics.Delivery{}).
			Where("id = ? AND tenant_id = ? AND version = ?", delivery.ID, delivery.TenantID, delivery.LoadedVersion()).
			Updates(map[string]interface{}{
				"status":              delivery.Status,
				"driver_id":           delivery.DriverID,
				"vehicle_info":        delivery.VehicleInfo,
				"started_at":          delivery.StartedAt,
				"completed_at":        delivery.CompletedAt,
				"start_latitude":      delivery.StartLatitude,
				"start_longitude":     delivery.StartLongitude,
				"end_latitude":        delivery.EndLatitude,
				"end_longitude":       delivery.EndLongitude,
				"current_latitude":    delivery.CurrentLatitude,
				"current_longitude":   delivery.CurrentLongitude,
				"location_updated_at": delivery.LocationUpdatedAt,
				"failure_reason":      delivery.FailureReason,
				"signature_url":       delivery.SignatureURL,
				"photo_urls":          delivery.PhotoURLs,
				"notes":               delivery.Notes,
				"version":             delivery.Version,
				"updated_at":          delivery.UpdatedAt,
			})
		if err := lockResult(result, deliveryResource); err != nil {
			return err
		}
		for i := range delivery.Lines {
			line := &delivery.Lines[i]
			if err := tx.Model(&logistics.DeliveryLine{}).
				Where("id = ? AND delivery_id = ?", line.ID, delivery.ID).
				Updates(map[string]interface{}{
					"delivered_quantity": line.DeliveredQuantity,
					"amount":             line.Amount,
					"status":             line.Status,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return translate(err, deliveryResource)
	}
	delivery.MarkPersisted()
	return nil
}

var _ logistics.DeliveryRepository = (*GormDeliveryRepository)(nil)

// GormTrackingRepository implements logistics.TrackingRepository using GORM
type GormTrackingRepository struct {
	db *gorm.DB
}

// NewGormTrackingRepository creates a new GormTrackingRepository
func NewGormTrackingRepository(db *gorm.DB) *GormTrackingRepository {
	return &GormTrackingRepository{db: db}
}

// Append inserts a GPS point
func (r *GormTrackingRepository) Append(ctx context.Context, point *logistics.GpsTrackPoint) error {
	if err := r.db.WithContext(ctx).Create(point).Error; err != nil {
		return translate(err, "GPS track point")
	}
	return nil
}

// FindByDelivery returns a delivery's points in recording order
func (r *GormTrackingRepository) FindByDelivery(ctx context.Context, tenantID, deliveryID uuid.UUID) ([]logistics.GpsTrackPoint, error) {
	var points []logistics.GpsTrackPoint
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND delivery_id = ?", tenantID, deliveryID).
		Order("recorded_at ASC").
		Find(&points).Error; err != nil {
		return nil, translate(err, "GPS track point")
	}
	return points, nil
}

var _ logistics.TrackingRepository = (*GormTrackingRepository)(nil)
