package logistics

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/distribution/internal/domain/shared"
	"github.com/erp/distribution/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeliveryStatus represents the status of a delivery
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusAssigned  DeliveryStatus = "assigned"
	DeliveryStatusInTransit DeliveryStatus = "in_transit"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
	DeliveryStatusReturned  DeliveryStatus = "returned"
)

// String returns the string representation of DeliveryStatus
func (s DeliveryStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid DeliveryStatus
func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryStatusPending, DeliveryStatusAssigned, DeliveryStatusInTransit,
		DeliveryStatusDelivered, DeliveryStatusFailed, DeliveryStatusReturned:
		return true
	}
	return false
}

// IsTerminal reports whether the delivery is finished
func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusDelivered || s == DeliveryStatusFailed || s == DeliveryStatusReturned
}

// CanTransitionTo checks if the status can transition to the target status
func (s DeliveryStatus) CanTransitionTo(target DeliveryStatus) bool {
	switch s {
	case DeliveryStatusPending:
		return target == DeliveryStatusAssigned
	case DeliveryStatusAssigned:
		// reassigning a driver keeps the status
		return target == DeliveryStatusAssigned || target == DeliveryStatusInTransit || target == DeliveryStatusFailed
	case DeliveryStatusInTransit:
		return target == DeliveryStatusDelivered || target == DeliveryStatusFailed || target == DeliveryStatusReturned
	}
	return false
}

// LineStatus is the per-line outcome of a delivery
type LineStatus string

const (
	LineStatusPending   LineStatus = "pending"
	LineStatusDelivered LineStatus = "delivered"
	LineStatusFailed    LineStatus = "failed"
)

// DeliveryLine is a copy of an order line plus what was actually handed over
type DeliveryLine struct {
	shared.BaseEntity
	DeliveryID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineNumber        int             `gorm:"not null"`
	OrderLineID       uuid.UUID       `gorm:"type:uuid"`
	ProductID         uuid.UUID       `gorm:"type:uuid;not null"`
	ProductName       string          `gorm:"type:varchar(200);not null"`
	ProductSKU        string          `gorm:"column:product_sku;type:varchar(50)"`
	Unit              string          `gorm:"type:varchar(20)"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	OrderedQuantity   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DeliveredQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Amount            decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"` // billed at completion, tax included
	Status            LineStatus      `gorm:"type:varchar(20);not null;default:'pending'"`
}

// TableName returns the table name for GORM
func (DeliveryLine) TableName() string {
	return "delivery_lines"
}


// LineSource is the order line data a delivery copies
type LineSource struct {
	OrderLineID uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	ProductSKU  string
	Unit        string
	UnitPrice   decimal.Decimal
	Quantity    decimal.Decimal
}

// Delivery is the aggregate root for shipping one order
type Delivery struct {
	shared.TenantAggregateRoot
	DeliveryNumber    string         `gorm:"type:varchar(50);not null;index"`
	OrderID           uuid.UUID      `gorm:"type:uuid;not null;index"`
	CustomerID        uuid.UUID      `gorm:"type:uuid;not null;index"`
	WarehouseID       uuid.UUID      `gorm:"type:uuid;not null"`
	Status            DeliveryStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	DriverID          *uuid.UUID     `gorm:"type:uuid;index"`
	VehicleInfo       string         `gorm:"type:varchar(200)"`
	ShippingAddress   string         `gorm:"type:varchar(500)"`
	ExpectedDate      time.Time      `gorm:"not null;index"`
	StartedAt         *time.Time
	CompletedAt       *time.Time
	StartLatitude     *float64
	StartLongitude    *float64
	EndLatitude       *float64
	EndLongitude      *float64
	CurrentLatitude   *float64
	CurrentLongitude  *float64
	LocationUpdatedAt *time.Time
	FailureReason     string         `gorm:"type:varchar(500)"`
	SignatureURL      string         `gorm:"type:varchar(500)"`
	PhotoURLs         string         `gorm:"type:text"` // newline separated
	Notes             string         `gorm:"type:text"`
	Lines             []DeliveryLine `gorm:"foreignKey:DeliveryID;references:ID"`
}

// TableName returns the table name for GORM
func (Delivery) TableName() string {
	return "deliveries"
}

// NewDelivery creates a delivery copying the given order lines. With a driver
// the delivery starts assigned, otherwise pending.
func NewDelivery(
	tenantID uuid.UUID,
	deliveryNumber string,
	orderID, customerID, warehouseID uuid.UUID,
	shippingAddress string,
	expectedDate time.Time,
	lines []LineSource,
) (*Delivery, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	if deliveryNumber == "" {
		return nil, shared.NewValidationError("INVALID_DELIVERY_NUMBER", "Delivery number cannot be empty")
	}
	if orderID == uuid.Nil || customerID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_ORDER", "Order and customer are required")
	}
	if expectedDate.IsZero() {
		return nil, shared.NewValidationError("INVALID_EXPECTED_DATE", "Expected date is required")
	}
	if len(lines) == 0 {
		return nil, shared.NewValidationError("NO_ITEMS", "Delivery must have at least one item")
	}

	d := &Delivery{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		DeliveryNumber:      deliveryNumber,
		OrderID:             orderID,
		CustomerID:          customerID,
		WarehouseID:         warehouseID,
		Status:              DeliveryStatusPending,
		ShippingAddress:     shippingAddress,
		ExpectedDate:        expectedDate,
	}
	for i, src := range lines {
		if !src.Quantity.IsPositive() {
			return nil, shared.NewValidationError("INVALID_QUANTITY", "Delivery line quantity must be positive")
		}
		d.Lines = append(d.Lines, DeliveryLine{
			BaseEntity:        shared.NewBaseEntity(),
			DeliveryID:        d.ID,
			LineNumber:        i + 1,
			OrderLineID:       src.OrderLineID,
			ProductID:         src.ProductID,
			ProductName:       src.ProductName,
			ProductSKU:        src.ProductSKU,
			Unit:              src.Unit,
			UnitPrice:         src.UnitPrice,
			OrderedQuantity:   src.Quantity,
			DeliveredQuantity: decimal.Zero,
			Amount:            decimal.Zero,
			Status:            LineStatusPending,
		})
	}

	d.AddDomainEvent(NewDeliveryCreatedEvent(d))
	return d, nil
}

// AssignDriver sets the driver; allowed while pending or assigned
func (d *Delivery) AssignDriver(driverID uuid.UUID, vehicleInfo string) error {
	if driverID == uuid.Nil {
		return shared.NewValidationError("INVALID_DRIVER", "Driver ID is required")
	}
	if err := d.checkTransition(DeliveryStatusAssigned); err != nil {
		return err
	}
	d.Status = DeliveryStatusAssigned
	d.DriverID = &driverID
	if vehicleInfo != "" {
		d.VehicleInfo = vehicleInfo
	}
	d.touch()

	d.AddDomainEvent(NewDeliveryAssignedEvent(d))
	return nil
}

// Start puts the delivery in transit
func (d *Delivery) Start(location *valueobject.GeoPoint) error {
	if err := d.checkTransition(DeliveryStatusInTransit); err != nil {
		return err
	}
	now := time.Now()
	d.Status = DeliveryStatusInTransit
	d.StartedAt = &now
	if location != nil {
		d.StartLatitude, d.StartLongitude = coords(*location)
		d.setCurrent(*location)
	}
	d.touch()

	d.AddDomainEvent(NewDeliveryStartedEvent(d))
	return nil
}

// CompletedItem is the quantity handed over for one delivery line
type CompletedItem struct {
	LineID   uuid.UUID
	Quantity decimal.Decimal
}

// ProofOfDelivery is optional evidence captured at completion
type ProofOfDelivery struct {
	Location     *valueobject.GeoPoint
	SignatureURL string
	PhotoURLs    []string
}

// LineValuer prices delivered quantities against the order the delivery
// ships. It is asked once per line, undelivered lines included, so it can
// take back what was not handed over.
type LineValuer interface {
	ValueDelivered(orderLineID uuid.UUID, shipped, delivered decimal.Decimal) (decimal.Decimal, error)
}

// Complete records delivered quantities and closes the delivery. Lines not
// listed are treated as not delivered. A delivered quantity may not exceed
// the ordered quantity. The valuer fixes each line's billed amount; if it
// refuses, the delivery is left unchanged.
func (d *Delivery) Complete(items []CompletedItem, proof ProofOfDelivery, valuer LineValuer) error {
	if err := d.checkTransition(DeliveryStatusDelivered); err != nil {
		return err
	}

	delivered := make(map[uuid.UUID]decimal.Decimal, len(items))
	for _, item := range items {
		line := d.GetLine(item.LineID)
		if line == nil {
			return shared.NewValidationError("INVALID_LINE", fmt.Sprintf("Delivery line %s not found", item.LineID))
		}
		if _, dup := delivered[item.LineID]; dup {
			return shared.NewValidationError("DUPLICATE_LINE", fmt.Sprintf("Delivery line %s listed twice", item.LineID))
		}
		if item.Quantity.IsNegative() {
			return shared.NewValidationError("INVALID_QUANTITY", "Delivered quantity cannot be negative")
		}
		if item.Quantity.GreaterThan(line.OrderedQuantity) {
			return shared.NewValidationError("EXCEEDS_ORDERED",
				fmt.Sprintf("Delivered quantity %s exceeds ordered %s for %s", item.Quantity, line.OrderedQuantity, line.ProductName))
		}
		delivered[item.LineID] = item.Quantity
	}

	hasDelivered := false
	for _, q := range delivered {
		if q.IsPositive() {
			hasDelivered = true
			break
		}
	}
	if !hasDelivered {
		return shared.NewValidationError("NOTHING_DELIVERED", "At least one line must have a delivered quantity; use fail instead")
	}

	amounts := make([]decimal.Decimal, len(d.Lines))
	for i := range d.Lines {
		l := &d.Lines[i]
		amount, err := valuer.ValueDelivered(l.OrderLineID, l.OrderedQuantity, delivered[l.ID])
		if err != nil {
			return err
		}
		amounts[i] = amount
	}

	for i := range d.Lines {
		q := delivered[d.Lines[i].ID]
		d.Lines[i].DeliveredQuantity = q
		d.Lines[i].Amount = amounts[i]
		if q.IsPositive() {
			d.Lines[i].Status = LineStatusDelivered
		} else {
			d.Lines[i].Status = LineStatusFailed
		}
	}

	now := time.Now()
	d.Status = DeliveryStatusDelivered
	d.CompletedAt = &now
	if proof.Location != nil {
		d.EndLatitude, d.EndLongitude = coords(*proof.Location)
		d.setCurrent(*proof.Location)
	}
	d.SignatureURL = proof.SignatureURL
	d.PhotoURLs = strings.Join(proof.PhotoURLs, "\n")
	d.touch()

	d.AddDomainEvent(NewDeliveryCompletedEvent(d))
	return nil
}

// Fail closes the delivery without handing anything over
func (d *Delivery) Fail(reason string, location *valueobject.GeoPoint) error {
	return d.close(DeliveryStatusFailed, reason, location)
}

// Return closes an in-transit delivery whose goods came back
func (d *Delivery) Return(reason string, location *valueobject.GeoPoint) error {
	return d.close(DeliveryStatusReturned, reason, location)
}

func (d *Delivery) close(target DeliveryStatus, reason string, location *valueobject.GeoPoint) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.NewValidationError("REASON_REQUIRED", "A reason is required")
	}
	if err := d.checkTransition(target); err != nil {
		return err
	}
	d.Status = target
	d.FailureReason = reason
	if location != nil {
		d.EndLatitude, d.EndLongitude = coords(*location)
		d.setCurrent(*location)
	}
	for i := range d.Lines {
		d.Lines[i].Status = LineStatusFailed
	}
	d.touch()

	d.AddDomainEvent(NewDeliveryClosedEvent(d))
	return nil
}

// UpdateLocation records a GPS fix; only allowed while in transit
func (d *Delivery) UpdateLocation(location valueobject.GeoPoint) (*GpsTrackPoint, error) {
	if d.Status != DeliveryStatusInTransit {
		return nil, shared.NewInvalidStateError(fmt.Sprintf("Cannot track a delivery in %s status", d.Status))
	}
	point := NewGpsTrackPoint(d.TenantID, d.ID, location)
	d.setCurrent(location)
	d.touch()
	return point, nil
}

// GetLine returns the line with the given ID, or nil
func (d *Delivery) GetLine(lineID uuid.UUID) *DeliveryLine {
	for i := range d.Lines {
		if d.Lines[i].ID == lineID {
			return &d.Lines[i]
		}
	}
	return nil
}

// DeliveredAmount returns the billed value of everything delivered
func (d *Delivery) DeliveredAmount() decimal.Decimal {
	total := decimal.Zero
	for i := range d.Lines {
		total = total.Add(d.Lines[i].Amount)
	}
	return total
}

// Photos splits the stored photo URLs
func (d *Delivery) Photos() []string {
	if d.PhotoURLs == "" {
		return nil
	}
	return strings.Split(d.PhotoURLs, "\n")
}

// IsOnTime reports whether the delivery completed by the end of its expected day
func (d *Delivery) IsOnTime() bool {
	if d.CompletedAt == nil {
		return false
	}
	y, m, day := d.ExpectedDate.Date()
	deadline := time.Date(y, m, day, 23, 59, 59, 0, d.ExpectedDate.Location())
	return !d.CompletedAt.After(deadline)
}

func (d *Delivery) checkTransition(target DeliveryStatus) error {
	if !d.Status.CanTransitionTo(target) {
		return shared.NewInvalidTransitionError("delivery", d.Status, target)
	}
	return nil
}

func (d *Delivery) setCurrent(p valueobject.GeoPoint) {
	d.CurrentLatitude, d.CurrentLongitude = coords(p)
	at := p.RecordedAt()
	d.LocationUpdatedAt = &at
}

func (d *Delivery) touch() {
	d.UpdatedAt = time.Now()
	d.IncrementVersion()
}

func coords(p valueobject.GeoPoint) (*float64, *float64) {
	lat, lng := p.Latitude(), p.Longitude()
	return &lat, &lng
}
