package catalog

import (
	"context"

	"github.com/google/uuid"
)

// ProductFilter narrows product listings. Search matches name, SKU or
// barcode ignoring case and diacritics.
type ProductFilter struct {
	Search     string
	CategoryID *uuid.UUID
	ActiveOnly bool
	Page       int
	PageSize   int
}

// ProductRepository defines the interface for product persistence
type ProductRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Product, error)
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]Product, error)
	FindByBarcode(ctx context.Context, tenantID uuid.UUID, barcode string) (*Product, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter ProductFilter) ([]Product, error)
	// CountForTenant counts the products matching filter, ignoring paging
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter ProductFilter) (int64, error)
	Save(ctx context.Context, product *Product) error
	SaveWithLock(ctx context.Context, product *Product) error
}

// CategoryRepository defines the interface for category persistence
type CategoryRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Category, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]Category, error)
	Save(ctx context.Context, category *Category) error
	SaveWithLock(ctx context.Context, category *Category) error
}
