package partner

import (
	"context"

	"github.com/google/uuid"
)

// CustomerFilter narrows customer listings. Search matches code, name,
// phone or email ignoring case and diacritics.
type CustomerFilter struct {
	Status   CustomerStatus
	Type     CustomerType
	Search   string
	Page     int
	PageSize int
}

// CustomerRepository defines the interface for customer persistence
type CustomerRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Customer, error)
	FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*Customer, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter CustomerFilter) ([]Customer, error)
	// CountForTenant counts the customers matching filter, ignoring paging
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter CustomerFilter) (int64, error)
	Save(ctx context.Context, customer *Customer) error
	SaveWithLock(ctx context.Context, customer *Customer) error
}

// WarehouseRepository defines the interface for warehouse persistence
type WarehouseRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Warehouse, error)
	FindActive(ctx context.Context, tenantID uuid.UUID) ([]Warehouse, error)
	Save(ctx context.Context, warehouse *Warehouse) error
}
