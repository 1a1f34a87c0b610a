package logistics

import (
	"time"

	"github.com/erp/distribution/internal/domain/logistics"
	"github.com/erp/distribution/internal/domain/shared"
	"github.com/erp/distribution/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LocationRequest is a GPS fix reported by a driver's device
type LocationRequest struct {
	Latitude   float64    `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude  float64    `json:"longitude" validate:"gte=-180,lte=180"`
	Accuracy   *float64   `json:"accuracy" validate:"omitempty,gte=0"`
	RecordedAt *time.Time `json:"recorded_at"`
}

// GeoPoint converts the request to a validated value object
func (r LocationRequest) GeoPoint() (valueobject.GeoPoint, error) {
	var opts []valueobject.GeoOption
	if r.Accuracy != nil {
		opts = append(opts, valueobject.WithAccuracy(*r.Accuracy))
	}
	if r.RecordedAt != nil {
		opts = append(opts, valueobject.WithRecordedAt(*r.RecordedAt))
	}
	p, err := valueobject.NewGeoPoint(r.Latitude, r.Longitude, opts...)
	if err != nil {
		return valueobject.GeoPoint{}, shared.NewValidationError("INVALID_LOCATION", err.Error())
	}
	return p, nil
}

// CreateDeliveryRequest represents a request to ship an order. Empty
// address and expected date fall back to the order's.
type CreateDeliveryRequest struct {
	OrderID         uuid.UUID  `json:"order_id" validate:"required"`
	CustomerID      uuid.UUID  `json:"customer_id" validate:"required"`
	WarehouseID     uuid.UUID  `json:"warehouse_id" validate:"required"`
	ShippingAddress string     `json:"shipping_address" validate:"max=500"`
	ExpectedDate    *time.Time `json:"expected_date"`
	DriverID        *uuid.UUID `json:"driver_id"`
	VehicleInfo     string     `json:"vehicle_info" validate:"max=200"`
	Notes           string     `json:"notes"`
}

// AssignDriverRequest assigns or reassigns a driver
type AssignDriverRequest struct {
	DriverID    uuid.UUID `json:"driver_id" validate:"required"`
	VehicleInfo string    `json:"vehicle_info" validate:"max=200"`
}

// CompletedItemRequest is the quantity handed over for one line
type CompletedItemRequest struct {
	LineID   uuid.UUID       `json:"line_id" validate:"required"`
	Quantity decimal.Decimal `json:"quantity" validate:"gte=0"`
}

// CompleteDeliveryRequest closes an in-transit delivery
type CompleteDeliveryRequest struct {
	Items        []CompletedItemRequest `json:"items" validate:"required,min=1,dive"`
	Location     *LocationRequest       `json:"location"`
	SignatureURL string                 `json:"signature_url" validate:"omitempty,url"`
	PhotoURLs    []string               `json:"photo_urls" validate:"dive,url"`
}

// CloseDeliveryRequest fails or returns a delivery
type CloseDeliveryRequest struct {
	Reason   string           `json:"reason" validate:"required,max=500"`
	Location *LocationRequest `json:"location"`
}

// DeliveryListFilter represents filter options for delivery list
type DeliveryListFilter struct {
	OrderID  *uuid.UUID `json:"order_id"`
	DriverID *uuid.UUID `json:"driver_id"`
	Status   string     `json:"status" validate:"omitempty,oneof=pending assigned in_transit delivered failed returned"`
	From     *time.Time `json:"from"`
	To       *time.Time `json:"to"`
	OrderBy  string     `json:"order_by"`
	OrderDir string     `json:"order_dir" validate:"omitempty,oneof=asc desc"`
	Page     int        `json:"page" validate:"gte=0"`
	PageSize int        `json:"page_size" validate:"gte=0,lte=100"`
}

// DeliveryLineResponse represents a delivery line in API responses
type DeliveryLineResponse struct {
	ID                uuid.UUID            `json:"id"`
	LineNumber        int                  `json:"line_number"`
	OrderLineID       uuid.UUID            `json:"order_line_id"`
	ProductID         uuid.UUID            `json:"product_id"`
	ProductName       string               `json:"product_name"`
	ProductSKU        string               `json:"product_sku"`
	Unit              string               `json:"unit"`
	UnitPrice         decimal.Decimal      `json:"unit_price"`
	OrderedQuantity   decimal.Decimal      `json:"ordered_quantity"`
	DeliveredQuantity decimal.Decimal      `json:"delivered_quantity"`
	Amount            decimal.Decimal      `json:"amount"`
	Status            logistics.LineStatus `json:"status"`
}

// DeliveryResponse represents a delivery in API responses
type DeliveryResponse struct {
	ID               uuid.UUID                `json:"id"`
	TenantID         uuid.UUID                `json:"tenant_id"`
	DeliveryNumber   string                   `json:"delivery_number"`
	OrderID          uuid.UUID                `json:"order_id"`
	CustomerID       uuid.UUID                `json:"customer_id"`
	WarehouseID      uuid.UUID                `json:"warehouse_id"`
	Status           logistics.DeliveryStatus `json:"status"`
	DriverID         *uuid.UUID               `json:"driver_id,omitempty"`
	VehicleInfo      string                   `json:"vehicle_info,omitempty"`
	ShippingAddress  string                   `json:"shipping_address"`
	ExpectedDate     time.Time                `json:"expected_date"`
	StartedAt        *time.Time               `json:"started_at,omitempty"`
	CompletedAt      *time.Time               `json:"completed_at,omitempty"`
	CurrentLatitude  *float64                 `json:"current_latitude,omitempty"`
	CurrentLongitude *float64                 `json:"current_longitude,omitempty"`
	FailureReason    string                   `json:"failure_reason,omitempty"`
	SignatureURL     string                   `json:"signature_url,omitempty"`
	PhotoURLs        []string                 `json:"photo_urls,omitempty"`
	Notes            string                   `json:"notes,omitempty"`
	DeliveredAmount  decimal.Decimal          `json:"delivered_amount"`
	Lines            []DeliveryLineResponse   `json:"lines"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
	Version          int                      `json:"version"`
}

// TrackPointResponse is one recorded position
type TrackPointResponse struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   *float64  `json:"accuracy,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// TrackingHistoryResponse is a delivery's GPS trail
type TrackingHistoryResponse struct {
	DeliveryID     uuid.UUID            `json:"delivery_id"`
	Points         []TrackPointResponse `json:"points"`
	DistanceMeters float64              `json:"distance_meters"`
}

// DeliveryStats counts deliveries expected within a date range. OnTimeRate
// is the percentage of delivered ones completed by their expected day.
type DeliveryStats struct {
	Total      int             `json:"total"`
	Pending    int             `json:"pending"`
	Assigned   int             `json:"assigned"`
	InTransit  int             `json:"in_transit"`
	Delivered  int             `json:"delivered"`
	Failed     int             `json:"failed"`
	Returned   int             `json:"returned"`
	OnTimeRate decimal.Decimal `json:"on_time_rate"`
}

// ToDeliveryResponse converts a domain delivery to a response
func ToDeliveryResponse(d *logistics.Delivery) DeliveryResponse {
	resp := DeliveryResponse{
		ID:               d.ID,
		TenantID:         d.TenantID,
		DeliveryNumber:   d.DeliveryNumber,
		OrderID:          d.OrderID,
		CustomerID:       d.CustomerID,
		WarehouseID:      d.WarehouseID,
		Status:           d.Status,
		DriverID:         d.DriverID,
		VehicleInfo:      d.VehicleInfo,
		ShippingAddress:  d.ShippingAddress,
		ExpectedDate:     d.ExpectedDate,
		StartedAt:        d.StartedAt,
		CompletedAt:      d.CompletedAt,
		CurrentLatitude:  d.CurrentLatitude,
		CurrentLongitude: d.CurrentLongitude,
		FailureReason:    d.FailureReason,
		SignatureURL:     d.SignatureURL,
		PhotoURLs:        d.Photos(),
		Notes:            d.Notes,
		DeliveredAmount:  d.DeliveredAmount(),
		Lines:            make([]DeliveryLineResponse, len(d.Lines)),
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
		Version:          d.Version,
	}
	for i, l := range d.Lines {
		resp.Lines[i] = DeliveryLineResponse{
			ID:                l.ID,
			LineNumber:        l.LineNumber,
			OrderLineID:       l.OrderLineID,
			ProductID:         l.ProductID,
			ProductName:       l.ProductName,
			ProductSKU:        l.ProductSKU,
			Unit:              l.Unit,
			UnitPrice:         l.UnitPrice,
			OrderedQuantity:   l.OrderedQuantity,
			DeliveredQuantity: l.DeliveredQuantity,
			Amount:            l.Amount,
			Status:            l.Status,
		}
	}
	return resp
}

// ToDeliveryResponses converts a slice of deliveries
func ToDeliveryResponses(deliveries []logistics.Delivery) []DeliveryResponse {
	out := make([]DeliveryResponse, len(deliveries))
	for i := range deliveries {
		out[i] = ToDeliveryResponse(&deliveries[i])
	}
	return out
}
