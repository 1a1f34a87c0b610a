package persistence

import (
	"fmt"
	"time"

	"github.com/erp/distribution/internal/domain/catalog"
	"github.com/erp/distribution/internal/domain/finance"
	"github.com/erp/distribution/internal/domain/inventory"
	"github.com/erp/distribution/internal/domain/logistics"
	"github.com/erp/distribution/internal/domain/partner"
	"github.com/erp/distribution/internal/domain/shared"
	"github.com/erp/distribution/internal/domain/trade"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentSequence is the counter behind SO/DL/CN/TT document numbers
type DocumentSequence struct {
	TenantID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Prefix    string    `gorm:"type:varchar(10);primaryKey"`
	Year      int       `gorm:"primaryKey;autoIncrement:false"`
	LastValue int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// TableName returns the table name for GORM
func (DocumentSequence) TableName() string {
	return "document_sequences"
}

// Models lists every persisted type in dependency order
func Models() []any {
	return []any{
		&catalog.Category{},
		&catalog.Product{},
		&partner.Customer{},
		&partner.Warehouse{},
		&inventory.InventoryBalance{},
		&inventory.InventoryTransaction{},
		&trade.SalesOrder{},
		&trade.SalesOrderLine{},
		&logistics.Delivery{},
		&logistics.DeliveryLine{},
		&logistics.GpsTrackPoint{},
		&finance.Receivable{},
		&finance.Payment{},
		&DocumentSequence{},
		&shared.OutboxEntry{},
	}
}

// tenantUniqueIndexes are the (tenant_id, ...) unique constraints. They live
// here rather than in struct tags because TenantID sits on an embedded struct
// shared by every aggregate. Both PostgreSQL and SQLite accept this syntax.
var tenantUniqueIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_products_tenant_sku ON products (tenant_id, sku)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_warehouses_tenant_code ON warehouses (tenant_id, code)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_customers_tenant_code ON customers (tenant_id, code)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_sales_orders_tenant_number ON sales_orders (tenant_id, order_number)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_deliveries_tenant_number ON deliveries (tenant_id, delivery_number)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_inv_tx_tenant_idempotency_key ON inventory_transactions (tenant_id, idempotency_key) WHERE idempotency_key IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_receivables_tenant_number ON receivables (tenant_id, receivable_number)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_receivables_tenant_delivery ON receivables (tenant_id, delivery_id) WHERE delivery_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_payments_tenant_number ON payments (tenant_id, payment_number)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_payments_receivable_reference ON payments (tenant_id, receivable_id, reference) WHERE reference IS NOT NULL`,
}

// AutoMigrate creates or updates the schema from the domain models. Production
// deployments use the SQL migrations; this is for tests and local runs.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	for _, stmt := range tenantUniqueIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}
