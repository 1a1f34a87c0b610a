package logistics

import (
	"context"
	"strings"
	"time"

	"github.com/erp/distribution/internal/application/txscope"
	"github.com/erp/distribution/internal/application/validate"
	"github.com/erp/distribution/internal/domain/inventory"
	"github.com/erp/distribution/internal/domain/logistics"
	"github.com/erp/distribution/internal/domain/partner"
	"github.com/erp/distribution/internal/domain/shared"
	"github.com/erp/distribution/internal/domain/shared/valueobject"
	"github.com/erp/distribution/internal/domain/trade"
	"github.com/erp/distribution/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const serviceName = "delivery"

// DeliveryService ships orders. Completing a delivery posts the stock
// movements, books the delivered quantities on the order and stages the
// completion event, all in the transaction that updates the delivery.
type DeliveryService struct {
	scope               txscope.Scope
	deliveryRepo        logistics.DeliveryRepository
	trackingRepo        logistics.TrackingRepository
	warehouseRepo       partner.WarehouseRepository
	deliveryPrefix      string
	defaultReorderPoint decimal.Decimal
	eventPublisher      shared.EventPublisher
	outbox              shared.OutboxRelay
	metrics             *telemetry.BusinessMetrics
	logger              *zap.Logger
}

// NewDeliveryService creates a new DeliveryService
func NewDeliveryService(
	scope txscope.Scope,
	deliveryRepo logistics.DeliveryRepository,
	trackingRepo logistics.TrackingRepository,
	warehouseRepo partner.WarehouseRepository,
	deliveryPrefix string,
	defaultReorderPoint decimal.Decimal,
	logger *zap.Logger,
) *DeliveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deliveryPrefix == "" {
		deliveryPrefix = "DL"
	}
	return &DeliveryService{
		scope:               scope,
		deliveryRepo:        deliveryRepo,
		trackingRepo:        trackingRepo,
		warehouseRepo:       warehouseRepo,
		deliveryPrefix:      deliveryPrefix,
		defaultReorderPoint: defaultReorderPoint,
		logger:              logger.Named("delivery_service"),
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *DeliveryService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetOutbox routes completion events through the outbox. Without one they
// are published directly after commit.
func (s *DeliveryService) SetOutbox(outbox shared.OutboxRelay) {
	s.outbox = outbox
}

// SetMetrics sets the business metrics recorder
func (s *DeliveryService) SetMetrics(metrics *telemetry.BusinessMetrics) {
	s.metrics = metrics
}

// Create ships whatever part of the order no other delivery has claimed and
// moves an approved order to processing, both in one transaction. An order
// with nothing left to ship is rejected.
func (s *DeliveryService) Create(ctx context.Context, tenantID uuid.UUID, req CreateDeliveryRequest) (resp *DeliveryResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "create", tenantID,
		telemetry.WithAttribute("order_id", req.OrderID),
	)
	defer func() { telemetry.End(span, err) }()

	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if s.warehouseRepo != nil {
		warehouse, err := s.warehouseRepo.FindByIDForTenant(ctx, tenantID, req.WarehouseID)
		if err != nil {
			return nil, err
		}
		if !warehouse.Active {
			return nil, shared.NewValidationError("WAREHOUSE_INACTIVE", "Warehouse "+warehouse.Code+" is not active")
		}
	}

	var (
		delivery *logistics.Delivery
		order    *trade.SalesOrder
	)
	err = s.scope.Execute(ctx, func(repos txscope.Repositories) error {
		var err error
		order, err = repos.Orders().FindByIDForTenant(ctx, tenantID, req.OrderID)
		if err != nil {
			return err
		}
		if err := order.BelongsTo(tenantID); err != nil {
			return err
		}
		allocations, err := order.Allocate()
		if err != nil {
			return err
		}
		if order.CustomerID != req.CustomerID {
			return shared.NewValidationError("CUSTOMER_MISMATCH", "Order "+order.OrderNumber+" belongs to another customer")
		}

		address := strings.TrimSpace(req.ShippingAddress)
		if address == "" {
			address = order.ShippingAddress
		}
		var expected time.Time
		switch {
		case req.ExpectedDate != nil:
			expected = *req.ExpectedDate
		case order.ExpectedDeliveryDate != nil:
			expected = *order.ExpectedDeliveryDate
		}

		number, err := shared.NextDocumentNumber(ctx, repos.Sequences(), tenantID, s.deliveryPrefix, time.Now())
		if err != nil {
			return err
		}
		delivery, err = logistics.NewDelivery(tenantID, number, order.ID, order.CustomerID, req.WarehouseID,
			address, expected, lineSources(allocations))
		if err != nil {
			return err
		}
		delivery.Notes = req.Notes
		if req.DriverID != nil {
			if err := delivery.AssignDriver(*req.DriverID, req.VehicleInfo); err != nil {
				return err
			}
		}
		if err := repos.Deliveries().Save(ctx, delivery); err != nil {
			return err
		}

		if order.Status == trade.OrderStatusApproved {
			if err := order.StartProcessing(); err != nil {
				return err
			}
		}
		return repos.Orders().SaveWithLock(ctx, order)
	})
	if err != nil {
		if shared.IsKind(err, shared.KindConcurrencyConflict) {
			s.metrics.RecordLockConflict(ctx, tenantID, trade.AggregateTypeSalesOrder)
		}
		s.logger.Warn("delivery creation rejected",
			zap.String("tenant_id", tenantID.String()),
			zap.String("order_id", req.OrderID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.RecordOrderTransition(ctx, tenantID, order.Status.String())
	s.logger.Info("delivery created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("delivery_id", delivery.ID.String()),
		zap.String("delivery_number", delivery.DeliveryNumber),
		zap.String("order_id", order.ID.String()),
		zap.String("status", delivery.Status.String()),
	)
	s.publish(ctx, delivery)
	if err := shared.PublishAndClear(ctx, s.eventPublisher, order); err != nil {
		s.logger.Warn("publish order events", zap.String("order_id", order.ID.String()), zap.Error(err))
	}

	out := ToDeliveryResponse(delivery)
	return &out, nil
}

// lineSources copies the allocated order lines. The unit price is the
// discounted one, for the delivery note; billing goes through the order.
func lineSources(allocations []trade.Allocation) []logistics.LineSource {
	sources := make([]logistics.LineSource, 0, len(allocations))
	for _, a := range allocations {
		l := a.Line
		sources = append(sources, logistics.LineSource{
			OrderLineID: l.ID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			ProductSKU:  l.ProductSKU,
			Unit:        l.Unit,
			UnitPrice:   l.NetUnitPrice(),
			Quantity:    a.Quantity,
		})
	}
	return sources
}

// GetByID retrieves a delivery with its lines
func (s *DeliveryService) GetByID(ctx context.Context, tenantID, deliveryID uuid.UUID) (*DeliveryResponse, error) {
	delivery, err := s.load(ctx, tenantID, deliveryID)
	if err != nil {
		return nil, err
	}
	out := ToDeliveryResponse(delivery)
	return &out, nil
}

// List returns a page of deliveries and the total matching count
func (s *DeliveryService) List(ctx context.Context, tenantID uuid.UUID, filter DeliveryListFilter) ([]DeliveryResponse, int64, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, 0, err
	}
	if err := validate.Struct(filter); err != nil {
		return nil, 0, err
	}
	deliveries, total, err := s.deliveryRepo.FindAllForTenant(ctx, tenantID, logistics.DeliveryFilter{
		OrderID:   filter.OrderID,
		DriverID:  filter.DriverID,
		Status:    logistics.DeliveryStatus(filter.Status),
		DateRange: shared.DateRange{From: filter.From, To: filter.To},
		OrderBy:   filter.OrderBy,
		OrderDir:  filter.OrderDir,
		Page:      filter.Page,
		PageSize:  filter.PageSize,
	})
	if err != nil {
		return nil, 0, err
	}
	return ToDeliveryResponses(deliveries), total, nil
}

// AssignDriver assigns or reassigns the driver of a pending or assigned delivery
func (s *DeliveryService) AssignDriver(ctx context.Context, tenantID, deliveryID uuid.UUID, req AssignDriverRequest) (*DeliveryResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, tenantID, deliveryID, "assign_driver", func(d *logistics.Delivery) error {
		return d.AssignDriver(req.DriverID, req.VehicleInfo)
	})
}

// Start puts an assigned delivery in transit
func (s *DeliveryService) Start(ctx context.Context, tenantID, deliveryID uuid.UUID, location *LocationRequest) (*DeliveryResponse, error) {
	point, err := optionalPoint(location)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, tenantID, deliveryID, "start", func(d *logistics.Delivery) error {
		return d.Start(point)
	})
}

// Fail closes an assigned or in-transit delivery as failed
func (s *DeliveryService) Fail(ctx context.Context, tenantID, deliveryID uuid.UUID, req CloseDeliveryRequest) (*DeliveryResponse, error) {
	return s.close(ctx, tenantID, deliveryID, "fail", req, (*logistics.Delivery).Fail)
}

// Return closes an in-transit delivery whose goods came back
func (s *DeliveryService) Return(ctx context.Context, tenantID, deliveryID uuid.UUID, req CloseDeliveryRequest) (*DeliveryResponse, error) {
	return s.close(ctx, tenantID, deliveryID, "return", req, (*logistics.Delivery).Return)
}

// close fails or returns a delivery and hands its quantities back to the
// order so a later delivery can ship them
func (s *DeliveryService) close(
	ctx context.Context,
	tenantID, deliveryID uuid.UUID,
	op string,
	req CloseDeliveryRequest,
	apply func(*logistics.Delivery, string, *valueobject.GeoPoint) error,
) (resp *DeliveryResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, op, tenantID,
		telemetry.WithAttribute("delivery_id", deliveryID),
	)
	defer func() { telemetry.End(span, err) }()

	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	point, err := optionalPoint(req.Location)
	if err != nil {
		return nil, err
	}
	delivery, err := s.load(ctx, tenantID, deliveryID)
	if err != nil {
		return nil, err
	}
	from := delivery.Status
	if err := apply(delivery, req.Reason, point); err != nil {
		return nil, err
	}

	var staged []uuid.UUID
	err = s.scope.Execute(ctx, func(repos txscope.Repositories) error {
		order, err := repos.Orders().FindByIDForTenant(ctx, tenantID, delivery.OrderID)
		if err != nil {
			return err
		}
		for i := range delivery.Lines {
			line := &delivery.Lines[i]
			if err := order.Release(line.OrderLineID, line.OrderedQuantity); err != nil {
				return err
			}
		}
		if err := repos.Orders().SaveWithLock(ctx, order); err != nil {
			return err
		}
		if err := repos.Deliveries().SaveWithLock(ctx, delivery); err != nil {
			return err
		}
		staged, err = s.stage(ctx, repos, delivery)
		return err
	})
	if err != nil {
		if shared.IsKind(err, shared.KindConcurrencyConflict) {
			s.metrics.RecordLockConflict(ctx, tenantID, logistics.AggregateTypeDelivery)
		}
		return nil, err
	}

	s.metrics.RecordDeliveryOutcome(ctx, tenantID, delivery.Status.String())
	s.logger.Info("delivery closed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("delivery_id", deliveryID.String()),
		zap.String("operation", op),
		zap.String("from", from.String()),
		zap.String("to", delivery.Status.String()),
		zap.String("reason", delivery.FailureReason),
	)
	s.dispatch(ctx, delivery, staged)

	out := ToDeliveryResponse(delivery)
	return &out, nil
}

// Complete records delivered quantities and posts one stock out per
// delivered line against the delivery's warehouse. The order prices each
// line and takes back whatever was not delivered. If any step fails,
// nothing is written and the delivery stays in transit; a cancelled order
// refuses its deliveries.
func (s *DeliveryService) Complete(ctx context.Context, tenantID, actorID, deliveryID uuid.UUID, req CompleteDeliveryRequest) (resp *DeliveryResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "complete", tenantID,
		telemetry.WithAttribute("delivery_id", deliveryID),
	)
	defer func() { telemetry.End(span, err) }()

	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	point, err := optionalPoint(req.Location)
	if err != nil {
		return nil, err
	}
	delivery, err := s.load(ctx, tenantID, deliveryID)
	if err != nil {
		return nil, err
	}

	items := make([]logistics.CompletedItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = logistics.CompletedItem{LineID: item.LineID, Quantity: item.Quantity}
	}
	proof := logistics.ProofOfDelivery{
		Location:     point,
		SignatureURL: req.SignatureURL,
		PhotoURLs:    req.PhotoURLs,
	}

	var (
		postings []*inventory.Posting
		staged   []uuid.UUID
	)
	err = s.scope.Execute(ctx, func(repos txscope.Repositories) error {
		order, err := repos.Orders().FindByIDForTenant(ctx, tenantID, delivery.OrderID)
		if err != nil {
			return err
		}
		if err := delivery.Complete(items, proof, order); err != nil {
			return err
		}

		ledger := inventory.NewLedger(repos.Balances(), repos.StockTransactions(), s.defaultReorderPoint)
		for i := range delivery.Lines {
			line := &delivery.Lines[i]
			if !line.DeliveredQuantity.IsPositive() {
				continue
			}
			posting, err := ledger.Post(ctx, inventory.Entry{
				TenantID:      tenantID,
				ProductID:     line.ProductID,
				WarehouseID:   delivery.WarehouseID,
				Type:          inventory.TransactionTypeOut,
				Quantity:      line.DeliveredQuantity,
				Reason:        "Delivery " + delivery.DeliveryNumber,
				ReferenceType: inventory.ReferenceTypeDelivery,
				ReferenceID:   delivery.ID.String(),
				ActorID:       actorID,
			})
			if err != nil {
				return err
			}
			postings = append(postings, posting)
		}
		if err := repos.Orders().SaveWithLock(ctx, order); err != nil {
			return err
		}
		if err := repos.Deliveries().SaveWithLock(ctx, delivery); err != nil {
			return err
		}
		staged, err = s.stage(ctx, repos, delivery)
		return err
	})
	if err != nil {
		switch shared.KindOf(err) {
		case shared.KindInsufficientStock:
			s.metrics.RecordStockRejected(ctx, tenantID, string(inventory.TransactionTypeOut))
		case shared.KindConcurrencyConflict:
			s.metrics.RecordLockConflict(ctx, tenantID, logistics.AggregateTypeDelivery)
		}
		s.logger.Warn("delivery completion rejected",
			zap.String("tenant_id", tenantID.String()),
			zap.String("delivery_id", deliveryID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.RecordDeliveryOutcome(ctx, tenantID, delivery.Status.String())
	for _, p := range postings {
		s.metrics.RecordStockMovement(ctx, tenantID, string(inventory.TransactionTypeOut), p.Transaction.SignedDelta())
	}
	s.logger.Info("delivery completed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("delivery_id", deliveryID.String()),
		zap.String("delivery_number", delivery.DeliveryNumber),
		zap.Int("stock_postings", len(postings)),
		zap.String("delivered_amount", delivery.DeliveredAmount().String()),
	)
	for _, p := range postings {
		if err := shared.PublishAndClear(ctx, s.eventPublisher, p.Balance); err != nil {
			s.logger.Warn("publish balance events", zap.String("balance_id", p.Balance.ID.String()), zap.Error(err))
		}
	}
	s.dispatch(ctx, delivery, staged)

	out := ToDeliveryResponse(delivery)
	return &out, nil
}

// UpdateLocation appends a GPS point to an in-transit delivery and caches
// it as the current position
func (s *DeliveryService) UpdateLocation(ctx context.Context, tenantID, deliveryID uuid.UUID, req LocationRequest) (*TrackPointResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	geo, err := req.GeoPoint()
	if err != nil {
		return nil, err
	}
	delivery, err := s.load(ctx, tenantID, deliveryID)
	if err != nil {
		return nil, err
	}
	point, err := delivery.UpdateLocation(geo)
	if err != nil {
		return nil, err
	}

	err = s.scope.Execute(ctx, func(repos txscope.Repositories) error {
		if err := repos.Tracking().Append(ctx, point); err != nil {
			return err
		}
		return repos.Deliveries().SaveWithLock(ctx, delivery)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("delivery location updated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("delivery_id", deliveryID.String()),
		zap.Float64("latitude", point.Latitude),
		zap.Float64("longitude", point.Longitude),
	)
	out := toTrackPointResponse(point)
	return &out, nil
}

// GetTrackingHistory returns the delivery's GPS trail in recording order
func (s *DeliveryService) GetTrackingHistory(ctx context.Context, tenantID, deliveryID uuid.UUID) (*TrackingHistoryResponse, error) {
	if _, err := s.load(ctx, tenantID, deliveryID); err != nil {
		return nil, err
	}
	points, err := s.trackingRepo.FindByDelivery(ctx, tenantID, deliveryID)
	if err != nil {
		return nil, err
	}
	resp := &TrackingHistoryResponse{
		DeliveryID:     deliveryID,
		Points:         make([]TrackPointResponse, len(points)),
		DistanceMeters: logistics.TrackDistance(points),
	}
	for i := range points {
		resp.Points[i] = toTrackPointResponse(&points[i])
	}
	return resp, nil
}

// GetDriverDeliveries returns a driver's deliveries, limited to one
// expected day when day is set
func (s *DeliveryService) GetDriverDeliveries(ctx context.Context, tenantID, driverID uuid.UUID, day *time.Time) ([]DeliveryResponse, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	deliveries, err := s.deliveryRepo.FindByDriver(ctx, tenantID, driverID, day)
	if err != nil {
		return nil, err
	}
	return ToDeliveryResponses(deliveries), nil
}

// GetStats counts deliveries expected within dateRange by status
func (s *DeliveryService) GetStats(ctx context.Context, tenantID uuid.UUID, dateRange shared.DateRange) (*DeliveryStats, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	deliveries, _, err := s.deliveryRepo.FindAllForTenant(ctx, tenantID, logistics.DeliveryFilter{DateRange: dateRange})
	if err != nil {
		return nil, err
	}

	stats := &DeliveryStats{Total: len(deliveries), OnTimeRate: decimal.Zero}
	onTime := 0
	for i := range deliveries {
		d := &deliveries[i]
		switch d.Status {
		case logistics.DeliveryStatusPending:
			stats.Pending++
		case logistics.DeliveryStatusAssigned:
			stats.Assigned++
		case logistics.DeliveryStatusInTransit:
			stats.InTransit++
		case logistics.DeliveryStatusDelivered:
			stats.Delivered++
			if d.IsOnTime() {
				onTime++
			}
		case logistics.DeliveryStatusFailed:
			stats.Failed++
		case logistics.DeliveryStatusReturned:
			stats.Returned++
		}
	}
	if stats.Delivered > 0 {
		stats.OnTimeRate = decimal.NewFromInt(int64(onTime * 100)).
			Div(decimal.NewFromInt(int64(stats.Delivered))).
			Round(2)
	}
	return stats, nil
}

// mutate loads a delivery, applies change and saves it with the version check
func (s *DeliveryService) mutate(
	ctx context.Context,
	tenantID, deliveryID uuid.UUID,
	op string,
	change func(*logistics.Delivery) error,
) (resp *DeliveryResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, op, tenantID,
		telemetry.WithAttribute("delivery_id", deliveryID),
	)
	defer func() { telemetry.End(span, err) }()

	delivery, err := s.load(ctx, tenantID, deliveryID)
	if err != nil {
		return nil, err
	}
	from := delivery.Status
	if err := change(delivery); err != nil {
		return nil, err
	}
	if err := s.deliveryRepo.SaveWithLock(ctx, delivery); err != nil {
		if shared.IsKind(err, shared.KindConcurrencyConflict) {
			s.metrics.RecordLockConflict(ctx, tenantID, logistics.AggregateTypeDelivery)
		}
		return nil, err
	}

	s.logger.Info("delivery updated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("delivery_id", deliveryID.String()),
		zap.String("operation", op),
		zap.String("from", from.String()),
		zap.String("to", delivery.Status.String()),
	)
	s.publish(ctx, delivery)

	out := ToDeliveryResponse(delivery)
	return &out, nil
}

func (s *DeliveryService) load(ctx context.Context, tenantID, deliveryID uuid.UUID) (*logistics.Delivery, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	delivery, err := s.deliveryRepo.FindByIDForTenant(ctx, tenantID, deliveryID)
	if err != nil {
		return nil, err
	}
	if err := delivery.BelongsTo(tenantID); err != nil {
		return nil, err
	}
	return delivery, nil
}

// stage moves the delivery's pending events into the outbox inside the
// caller's transaction and returns the staged entry IDs
func (s *DeliveryService) stage(ctx context.Context, repos txscope.Repositories, delivery *logistics.Delivery) ([]uuid.UUID, error) {
	events := delivery.GetDomainEvents()
	if s.outbox == nil || len(events) == 0 {
		return nil, nil
	}
	entries := make([]*shared.OutboxEntry, 0, len(events))
	ids := make([]uuid.UUID, 0, len(events))
	for _, ev := range events {
		entry, err := s.outbox.Stage(ev)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
		ids = append(ids, entry.ID)
	}
	if err := repos.Outbox().Save(ctx, entries...); err != nil {
		return nil, err
	}
	delivery.ClearDomainEvents()
	return ids, nil
}

// dispatch runs after commit: staged entries go through the outbox, any
// other pending events straight to the publisher
func (s *DeliveryService) dispatch(ctx context.Context, delivery *logistics.Delivery, staged []uuid.UUID) {
	s.publish(ctx, delivery)
	if len(staged) > 0 {
		s.outbox.Relay(ctx, staged...)
	}
}

func (s *DeliveryService) publish(ctx context.Context, delivery *logistics.Delivery) {
	if err := shared.PublishAndClear(ctx, s.eventPublisher, delivery); err != nil {
		s.logger.Warn("publish delivery events", zap.String("delivery_id", delivery.ID.String()), zap.Error(err))
	}
}

func optionalPoint(req *LocationRequest) (*valueobject.GeoPoint, error) {
	if req == nil {
		return nil, nil
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	p, err := req.GeoPoint()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func toTrackPointResponse(p *logistics.GpsTrackPoint) TrackPointResponse {
	return TrackPointResponse{
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		Accuracy:   p.Accuracy,
		RecordedAt: p.RecordedAt,
	}
}
