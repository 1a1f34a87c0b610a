package persistence

import (
	"context"
	"strings"

	"github.com/erp/distribution/internal/domain/shared"
	"github.com/erp/distribution/internal/domain/trade"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const orderResource = "Sales order"

// GormSalesOrderRepository implements trade.SalesOrderRepository using GORM
type GormSalesOrderRepository struct {
	db *gorm.DB
}

// NewGormSalesOrderRepository creates a new GormSalesOrderRepository
func NewGormSalesOrderRepository(db *gorm.DB) *GormSalesOrderRepository {
	return &GormSalesOrderRepository{db: db}
}

// FindByIDForTenant finds a sales order by ID within a tenant, with lines
func (r *GormSalesOrderRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*trade.SalesOrder, error) {
	var order trade.SalesOrder
	if err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("line_number ASC")
		}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&order).Error; err != nil {
		return nil, translate(err, orderResource)
	}
	return &order, nil
}

// FindAllForTenant lists order headers and the unpaginated total
func (r *GormSalesOrderRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter trade.OrderFilter) ([]trade.SalesOrder, int64, error) {
	query := r.db.WithContext(ctx).Model(&trade.SalesOrder{}).Where("tenant_id = ?", tenantID)
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	query = applyDateRange(query, "order_date", filter.DateRange)
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + strings.ToLower(s) + "%"
		query = query.Where("LOWER(order_number) LIKE ? OR LOWER(customer_name) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err, orderResource)
	}

	sortField := ValidateSortField(filter.OrderBy, OrderSortFields, "created_at")
	sortDir := ValidateSortOrder(filter.OrderDir)

	var orders []trade.SalesOrder
	if err := paginate(query.Order(sortField+" "+sortDir), filter.Page, filter.PageSize).
		Find(&orders).Error; err != nil {
		return nil, 0, translate(err, orderResource)
	}
	return orders, total, nil
}

// FindForStats returns the status and totals of orders placed within the range
func (r *GormSalesOrderRepository) FindForStats(ctx context.Context, tenantID uuid.UUID, dateRange shared.DateRange) ([]trade.SalesOrder, error) {
	query := r.db.WithContext(ctx).
		Model(&trade.SalesOrder{}).
		Select("id", "tenant_id", "status", "total_amount", "paid_amount", "order_date").
		Where("tenant_id = ?", tenantID)
	query = applyDateRange(query, "order_date", dateRange)

	var orders []trade.SalesOrder
	if err := query.Find(&orders).Error; err != nil {
		return nil, translate(err, orderResource)
	}
	return orders, nil
}

// Save inserts a new order with its lines
func (r *GormSalesOrderRepository) Save(ctx context.Context, order *trade.SalesOrder) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
			return err
		}
		if len(order.Lines) > 0 {
			return tx.Create(&order.Lines).Error
		}
		return nil
	})
	if err != nil {
		return translate(err, orderResource)
	}
	order.MarkPersisted()
	return nil
}

// SaveWithLock saves the header and line fulfilment with optimistic locking
func (r *GormSalesOrderRepository) SaveWithLock(ctx context.Context, order *trade.SalesOrder) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&trade.SalesOrder{}).
			Where("id = ? AND tenant_id = ? AND version = ?", order.ID, order.TenantID, order.LoadedVersion()).
			Updates(map[string]interface{}{
				"status":                 order.Status,
				"expected_delivery_date": order.ExpectedDeliveryDate,
				"shipping_address":       order.ShippingAddress,
				"notes":                  order.Notes,
				"subtotal":               order.Subtotal,
				"discount_total":         order.DiscountTotal,
				"tax_total":              order.TaxTotal,
				"total_amount":           order.TotalAmount,
				"paid_amount":            order.PaidAmount,
				"item_count":             order.ItemCount,
				"approved_by":            order.ApprovedBy,
				"approved_at":            order.ApprovedAt,
				"cancel_reason":          order.CancelReason,
				"cancelled_at":           order.CancelledAt,
				"version":                order.Version,
				"updated_at":             order.UpdatedAt,
			})
		if err := lockResult(result, orderResource); err != nil {
			return err
		}
		// fulfilment moves under the header's version check
		for i := range order.Lines {
			line := &order.Lines[i]
			if err := tx.Model(&trade.SalesOrderLine{}).
				Where("id = ? AND order_id = ?", line.ID, order.ID).
				Updates(map[string]interface{}{
					"allocated_quantity": line.AllocatedQuantity,
					"delivered_quantity": line.DeliveredQuantity,
					"billed_amount":      line.BilledAmount,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return translate(err, orderResource)
	}
	order.MarkPersisted()
	return nil
}

// ReplaceLines swaps the stored lines for order.Lines. Call together with
// SaveWithLock in one transaction so header totals and lines stay in step.
func (r *GormSalesOrderRepository) ReplaceLines(ctx context.Context, order *trade.SalesOrder) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", order.ID).Delete(&trade.SalesOrderLine{}).Error; err != nil {
			return err
		}
		if len(order.Lines) > 0 {
			return tx.Create(&order.Lines).Error
		}
		return nil
	})
	return translate(err, orderResource)
}

func applyDateRange(query *gorm.DB, column string, dr shared.DateRange) *gorm.DB {
	if dr.From != nil {
		query = query.Where(column+" >= ?", *dr.From)
	}
	if dr.To != nil {
		query = query.Where(column+" <= ?", *dr.To)
	}
	return query
}

var _ trade.SalesOrderRepository = (*GormSalesOrderRepository)(nil)
