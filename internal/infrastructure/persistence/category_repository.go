package persistence

import (
	"context"

	"github.com/erp/distribution/internal/domain/catalog"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCategoryRepository implements catalog.CategoryRepository using GORM
type GormCategoryRepository struct {
	db *gorm.DB
}

// NewGormCategoryRepository creates a new GormCategoryRepository
func NewGormCategoryRepository(db *gorm.DB) *GormCategoryRepository {
	return &GormCategoryRepository{db: db}
}

// FindByIDForTenant finds a category by ID within a tenant
func (r *GormCategoryRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*catalog.Category, error) {
	var category catalog.Category
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&category).Error; err != nil {
		return nil, translate(err, "Category")
	}
	return &category, nil
}

// FindAllForTenant lists a tenant's categories by name
func (r *GormCategoryRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]catalog.Category, error) {
	var categories []catalog.Category
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name ASC").
		Find(&categories).Error; err != nil {
		return nil, translate(err, "Category")
	}
	return categories, nil
}

// Save creates or updates a category
func (r *GormCategoryRepository) Save(ctx context.Context, category *catalog.Category) error {
	if err := r.db.WithContext(ctx).Save(category).Error; err != nil {
		return translate(err, "Category")
	}
	category.MarkPersisted()
	return nil
}

// SaveWithLock saves a category with optimistic locking (version check)
func (r *GormCategoryRepository) SaveWithLock(ctx context.Context, category *catalog.Category) error {
	result := r.db.WithContext(ctx).
		Model(&catalog.Category{}).
		Where("id = ? AND tenant_id = ? AND version = ?", category.ID, category.TenantID, category.LoadedVersion()).
		Updates(map[string]interface{}{
			"name":        category.Name,
			"description": category.Description,
			"parent_id":   category.ParentID,
			"version":     category.Version,
			"updated_at":  category.UpdatedAt,
		})
	if err := lockResult(result, "Category"); err != nil {
		return err
	}
	category.MarkPersisted()
	return nil
}

var _ catalog.CategoryRepository = (*GormCategoryRepository)(nil)
