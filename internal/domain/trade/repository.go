package trade

import (
	"context"

	"github.com/erp/distribution/internal/domain/catalog"
	"github.com/erp/distribution/internal/domain/partner"
	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
)

// OrderFilter narrows order listings
type OrderFilter struct {
	CustomerID *uuid.UUID
	Status     OrderStatus
	DateRange  shared.DateRange
	Search     string
	OrderBy    string
	OrderDir   string
	Page       int
	PageSize   int
}

// SalesOrderRepository persists SalesOrder aggregates with their lines
type SalesOrderRepository interface {
	// FindByIDForTenant loads the order with lines
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*SalesOrder, error)

	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter OrderFilter) ([]SalesOrder, int64, error)

	// FindForStats returns status and total of every order placed within the range
	FindForStats(ctx context.Context, tenantID uuid.UUID, dateRange shared.DateRange) ([]SalesOrder, error)

	// Save inserts a new order with its lines
	Save(ctx context.Context, order *SalesOrder) error

	// SaveWithLock updates the header only if the stored version is still LoadedVersion
	SaveWithLock(ctx context.Context, order *SalesOrder) error

	// ReplaceLines deletes stored lines and inserts order.Lines
	ReplaceLines(ctx context.Context, order *SalesOrder) error
}

// CatalogReader resolves products for line snapshots
type CatalogReader interface {
	GetProduct(ctx context.Context, tenantID, productID uuid.UUID) (*catalog.Product, error)
}

// CustomerReader resolves the ordering customer
type CustomerReader interface {
	GetCustomer(ctx context.Context, tenantID, customerID uuid.UUID) (*partner.Customer, error)
}
