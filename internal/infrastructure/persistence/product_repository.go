package persistence

import (
	"context"

	"github.com/erp/distribution/internal/domain/catalog"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const productResource = "Product"

// GormProductRepository implements catalog.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByIDForTenant finds a product by ID within a tenant
func (r *GormProductRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*catalog.Product, error) {
	var product catalog.Product
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&product).Error; err != nil {
		return nil, translate(err, productResource)
	}
	return &product, nil
}

// FindByIDs finds multiple products by their IDs
func (r *GormProductRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]catalog.Product, error) {
	if len(ids) == 0 {
		return []catalog.Product{}, nil
	}
	var products []catalog.Product
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&products).Error; err != nil {
		return nil, translate(err, productResource)
	}
	return products, nil
}

// FindByBarcode finds a product by its barcode within a tenant
func (r *GormProductRepository) FindByBarcode(ctx context.Context, tenantID uuid.UUID, barcode string) (*catalog.Product, error) {
	var product catalog.Product
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND barcode = ?", tenantID, barcode).
		First(&product).Error; err != nil {
		return nil, translate(err, productResource)
	}
	return &product, nil
}

// FindAllForTenant lists products by name
func (r *GormProductRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter catalog.ProductFilter) ([]catalog.Product, error) {
	var products []catalog.Product
	query := r.filtered(ctx, tenantID, filter).Order("name ASC")
	if err := paginate(query, filter.Page, filter.PageSize).Find(&products).Error; err != nil {
		return nil, translate(err, productResource)
	}
	return products, nil
}

// CountForTenant counts the products matching filter
func (r *GormProductRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter catalog.ProductFilter) (int64, error) {
	var total int64
	if err := r.filtered(ctx, tenantID, filter).Count(&total).Error; err != nil {
		return 0, translate(err, productResource)
	}
	return total, nil
}

func (r *GormProductRepository) filtered(ctx context.Context, tenantID uuid.UUID, filter catalog.ProductFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&catalog.Product{}).Where("tenant_id = ?", tenantID)
	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.ActiveOnly {
		query = query.Where("active = ?", true)
	}
	return whereFolded(query, filter.Search)
}

// Save creates or updates a product
func (r *GormProductRepository) Save(ctx context.Context, product *catalog.Product) error {
	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		return translate(err, productResource)
	}
	product.MarkPersisted()
	return nil
}

// SaveWithLock saves with optimistic locking (checks version)
func (r *GormProductRepository) SaveWithLock(ctx context.Context, product *catalog.Product) error {
	result := r.db.WithContext(ctx).
		Model(&catalog.Product{}).
		Where("id = ? AND tenant_id = ? AND version = ?", product.ID, product.TenantID, product.LoadedVersion()).
		Updates(map[string]interface{}{
			"barcode":     product.Barcode,
			"name":        product.Name,
			"unit":        product.Unit,
			"base_price":  product.BasePrice,
			"category_id": product.CategoryID,
			"active":      product.Active,
			"search_text": product.SearchText,
			"version":     product.Version,
			"updated_at":  product.UpdatedAt,
		})
	if err := lockResult(result, productResource); err != nil {
		return err
	}
	product.MarkPersisted()
	return nil
}

var _ catalog.ProductRepository = (*GormProductRepository)(nil)
