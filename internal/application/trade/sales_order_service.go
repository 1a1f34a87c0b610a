package trade

import (
	"context"
	"time"

	"github.com/erp/distribution/internal/application/txscope"
	"github.com/erp/distribution/internal/application/validate"
	"github.com/erp/distribution/internal/domain/shared"
	"github.com/erp/distribution/internal/domain/trade"
	"github.com/erp/distribution/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const serviceName = "sales_order"

// SalesOrderService handles sales order business operations
type SalesOrderService struct {
	scope          txscope.Scope
	orderRepo      trade.SalesOrderRepository
	catalog        trade.CatalogReader
	customers      trade.CustomerReader
	orderPrefix    string
	eventPublisher shared.EventPublisher
	metrics        *telemetry.BusinessMetrics
	logger         *zap.Logger
}

// NewSalesOrderService creates a new SalesOrderService
func NewSalesOrderService(
	scope txscope.Scope,
	orderRepo trade.SalesOrderRepository,
	catalog trade.CatalogReader,
	customers trade.CustomerReader,
	orderPrefix string,
	logger *zap.Logger,
) *SalesOrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if orderPrefix == "" {
		orderPrefix = "SO"
	}
	return &SalesOrderService{
		scope:       scope,
		orderRepo:   orderRepo,
		catalog:     catalog,
		customers:   customers,
		orderPrefix: orderPrefix,
		logger:      logger.Named("sales_order_service"),
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *SalesOrderService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the business metrics recorder
func (s *SalesOrderService) SetMetrics(metrics *telemetry.BusinessMetrics) {
	s.metrics = metrics
}

// Create creates a draft order. The order number is drawn in the same
// transaction that inserts the order.
func (s *SalesOrderService) Create(ctx context.Context, tenantID, actorID uuid.UUID, req CreateOrderRequest) (resp *OrderResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "create", tenantID,
		telemetry.WithAttribute("customer_id", req.CustomerID),
	)
	defer func() { telemetry.End(span, err) }()

	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	customer, err := s.customers.GetCustomer(ctx, tenantID, req.CustomerID)
	if err != nil {
		return nil, err
	}
	if !customer.CanOrder() {
		return nil, shared.NewValidationError("CUSTOMER_NOT_ACTIVE", "Customer "+customer.Code+" cannot place orders")
	}
	lines, err := s.resolveLines(ctx, tenantID, req.Lines)
	if err != nil {
		return nil, err
	}

	var order *trade.SalesOrder
	err = s.scope.Execute(ctx, func(repos txscope.Repositories) error {
		number, err := shared.NextDocumentNumber(ctx, repos.Sequences(), tenantID, s.orderPrefix, time.Now())
		if err != nil {
			return err
		}
		order, err = trade.NewSalesOrder(tenantID, number, trade.CustomerSnapshot{
			ID:   customer.ID,
			Code: customer.Code,
			Name: customer.Name,
		}, lines)
		if err != nil {
			return err
		}
		order.SetDeliveryDetails(req.ExpectedDeliveryDate, req.ShippingAddress, req.Notes)
		if req.TaxTotal != nil {
			if err := order.SetTaxTotal(*req.TaxTotal); err != nil {
				return err
			}
		}
		return repos.Orders().Save(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordOrderCreated(ctx, tenantID, order.TotalAmount)
	s.logger.Info("sales order created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("actor_id", actorID.String()),
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("total_amount", order.TotalAmount.String()),
	)
	s.publish(ctx, order)

	out := ToOrderResponse(order)
	return &out, nil
}

// GetByID retrieves an order with its lines
func (s *SalesOrderService) GetByID(ctx context.Context, tenantID, orderID uuid.UUID) (*OrderResponse, error) {
	order, err := s.load(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	out := ToOrderResponse(order)
	return &out, nil
}

// List returns a page of order headers and the total matching count
func (s *SalesOrderService) List(ctx context.Context, tenantID uuid.UUID, filter OrderListFilter) ([]OrderResponse, int64, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, 0, err
	}
	if err := validate.Struct(filter); err != nil {
		return nil, 0, err
	}

	orders, total, err := s.orderRepo.FindAllForTenant(ctx, tenantID, trade.OrderFilter{
		CustomerID: filter.CustomerID,
		Status:     trade.OrderStatus(filter.Status),
		DateRange:  shared.DateRange{From: filter.From, To: filter.To},
		Search:     filter.Search,
		OrderBy:    filter.OrderBy,
		OrderDir:   filter.OrderDir,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
	})
	if err != nil {
		return nil, 0, err
	}

	out := make([]OrderResponse, len(orders))
	for i := range orders {
		out[i] = ToOrderResponse(&orders[i])
	}
	return out, total, nil
}

// UpdateItems replaces all lines of a draft or pending order. Header and
// lines are written in one transaction.
func (s *SalesOrderService) UpdateItems(ctx context.Context, tenantID, orderID uuid.UUID, req UpdateItemsRequest) (resp *OrderResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "update_items", tenantID,
		telemetry.WithAttribute("order_id", orderID),
	)
	defer func() { telemetry.End(span, err) }()

	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	order, err := s.load(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	// check status before resolving products so a shipped order fails fast
	if !order.Status.AllowsLineChanges() {
		return nil, shared.NewInvalidStateError("Cannot modify items of an order in " + order.Status.String() + " status")
	}
	lines, err := s.resolveLines(ctx, tenantID, req.Lines)
	if err != nil {
		return nil, err
	}
	if err := order.ReplaceLines(lines); err != nil {
		return nil, err
	}
	if req.TaxTotal != nil {
		if err := order.SetTaxTotal(*req.TaxTotal); err != nil {
			return nil, err
		}
	}

	err = s.scope.Execute(ctx, func(repos txscope.Repositories) error {
		if err := repos.Orders().SaveWithLock(ctx, order); err != nil {
			return err
		}
		return repos.Orders().ReplaceLines(ctx, order)
	})
	if err != nil {
		s.recordFailure(ctx, tenantID, err)
		return nil, err
	}

	s.logger.Info("sales order items updated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("order_id", orderID.String()),
		zap.Int("item_count", order.ItemCount),
		zap.String("total_amount", order.TotalAmount.String()),
	)
	s.publish(ctx, order)

	out := ToOrderResponse(order)
	return &out, nil
}

// Submit moves a draft order to pending
func (s *SalesOrderService) Submit(ctx context.Context, tenantID, orderID uuid.UUID) (*OrderResponse, error) {
	return s.transition(ctx, tenantID, orderID, "submit", (*trade.SalesOrder).Submit)
}

// Approve moves a pending order to approved
func (s *SalesOrderService) Approve(ctx context.Context, tenantID, orderID, approverID uuid.UUID) (*OrderResponse, error) {
	return s.transition(ctx, tenantID, orderID, "approve", func(o *trade.SalesOrder) error {
		return o.Approve(approverID)
	})
}

// StartProcessing moves an approved order to processing
func (s *SalesOrderService) StartProcessing(ctx context.Context, tenantID, orderID uuid.UUID) (*OrderResponse, error) {
	return s.transition(ctx, tenantID, orderID, "start_processing", (*trade.SalesOrder).StartProcessing)
}

// MarkShipped moves a processing order to shipped
func (s *SalesOrderService) MarkShipped(ctx context.Context, tenantID, orderID uuid.UUID) (*OrderResponse, error) {
	return s.transition(ctx, tenantID, orderID, "mark_shipped", (*trade.SalesOrder).MarkShipped)
}

// MarkDelivered moves a shipped order to delivered
func (s *SalesOrderService) MarkDelivered(ctx context.Context, tenantID, orderID uuid.UUID) (*OrderResponse, error) {
	return s.transition(ctx, tenantID, orderID, "mark_delivered", (*trade.SalesOrder).MarkDelivered)
}

// Cancel cancels a non-terminal order. Cancelling a cancelled order returns
// it unchanged.
func (s *SalesOrderService) Cancel(ctx context.Context, tenantID, orderID uuid.UUID, reason string) (*OrderResponse, error) {
	return s.transition(ctx, tenantID, orderID, "cancel", func(o *trade.SalesOrder) error {
		return o.Cancel(reason)
	})
}

func (s *SalesOrderService) transition(
	ctx context.Context,
	tenantID, orderID uuid.UUID,
	op string,
	apply func(*trade.SalesOrder) error,
) (resp *OrderResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, op, tenantID,
		telemetry.WithAttribute("order_id", orderID),
	)
	defer func() { telemetry.End(span, err) }()

	order, err := s.load(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	from := order.Status
	if err := apply(order); err != nil {
		s.logger.Warn("sales order transition rejected",
			zap.String("tenant_id", tenantID.String()),
			zap.String("order_id", orderID.String()),
			zap.String("operation", op),
			zap.String("status", from.String()),
			zap.Error(err),
		)
		return nil, err
	}
	if order.Status == from {
		out := ToOrderResponse(order)
		return &out, nil
	}

	if err := s.orderRepo.SaveWithLock(ctx, order); err != nil {
		s.recordFailure(ctx, tenantID, err)
		return nil, err
	}

	s.metrics.RecordOrderTransition(ctx, tenantID, order.Status.String())
	s.logger.Info("sales order status changed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("order_id", orderID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("from", from.String()),
		zap.String("to", order.Status.String()),
	)
	s.publish(ctx, order)

	out := ToOrderResponse(order)
	return &out, nil
}

// GetStats counts orders per status within dateRange. Revenue and the
// average order value exclude cancelled orders.
func (s *SalesOrderService) GetStats(ctx context.Context, tenantID uuid.UUID, dateRange shared.DateRange) (*OrderStats, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	orders, err := s.orderRepo.FindForStats(ctx, tenantID, dateRange)
	if err != nil {
		return nil, err
	}

	stats := &OrderStats{
		Total:             len(orders),
		ByStatus:          make(map[trade.OrderStatus]int, len(trade.AllOrderStatuses)),
		TotalRevenue:      decimal.Zero,
		AverageOrderValue: decimal.Zero,
	}
	for _, status := range trade.AllOrderStatuses {
		stats.ByStatus[status] = 0
	}
	counted := 0
	for _, o := range orders {
		stats.ByStatus[o.Status]++
		if o.IsCancelled() {
			continue
		}
		stats.TotalRevenue = stats.TotalRevenue.Add(o.TotalAmount)
		counted++
	}
	if counted > 0 {
		stats.AverageOrderValue = stats.TotalRevenue.Div(decimal.NewFromInt(int64(counted))).Round(2)
	}
	return stats, nil
}

func (s *SalesOrderService) load(ctx context.Context, tenantID, orderID uuid.UUID) (*trade.SalesOrder, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	order, err := s.orderRepo.FindByIDForTenant(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if err := order.BelongsTo(tenantID); err != nil {
		return nil, err
	}
	return order, nil
}

// resolveLines snapshots product name, SKU and unit. A missing unit price
// falls back to the product's base price.
func (s *SalesOrderService) resolveLines(ctx context.Context, tenantID uuid.UUID, reqs []OrderLineRequest) ([]trade.LineInput, error) {
	lines := make([]trade.LineInput, 0, len(reqs))
	for _, r := range reqs {
		product, err := s.catalog.GetProduct(ctx, tenantID, r.ProductID)
		if err != nil {
			return nil, err
		}
		if !product.Active {
			return nil, shared.NewValidationError("PRODUCT_INACTIVE", "Product "+product.SKU+" is not active")
		}
		price := product.BasePrice
		if r.UnitPrice != nil {
			price = *r.UnitPrice
		}
		lines = append(lines, trade.LineInput{
			ProductID:       product.ID,
			ProductName:     product.Name,
			ProductSKU:      product.SKU,
			Unit:            product.Unit,
			Quantity:        r.Quantity,
			UnitPrice:       price,
			DiscountPercent: r.DiscountPercent,
			Notes:           r.Notes,
		})
	}
	return lines, nil
}

func (s *SalesOrderService) recordFailure(ctx context.Context, tenantID uuid.UUID, err error) {
	if shared.IsKind(err, shared.KindConcurrencyConflict) {
		s.metrics.RecordLockConflict(ctx, tenantID, trade.AggregateTypeSalesOrder)
	}
}

func (s *SalesOrderService) publish(ctx context.Context, order *trade.SalesOrder) {
	if err := shared.PublishAndClear(ctx, s.eventPublisher, order); err != nil {
		s.logger.Warn("publish sales order events", zap.String("order_id", order.ID.String()), zap.Error(err))
	}
}
