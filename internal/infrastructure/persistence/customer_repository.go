package persistence

import (
	"context"
	"strings"

	"github.com/erp/distribution/internal/domain/partner"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const customerResource = "Customer"

// GormCustomerRepository implements partner.CustomerRepository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByIDForTenant finds a customer by ID within a tenant
func (r *GormCustomerRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*partner.Customer, error) {
	var customer partner.Customer
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&customer).Error; err != nil {
		return nil, translate(err, customerResource)
	}
	return &customer, nil
}

// FindByCode finds a customer by its code within a tenant
func (r *GormCustomerRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*partner.Customer, error) {
	var customer partner.Customer
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND code = ?", tenantID, strings.TrimSpace(code)).
		First(&customer).Error; err != nil {
		return nil, translate(err, customerResource)
	}
	return &customer, nil
}

// FindAllForTenant lists customers by name
func (r *GormCustomerRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter partner.CustomerFilter) ([]partner.Customer, error) {
	var customers []partner.Customer
	query := r.filtered(ctx, tenantID, filter).Order("name ASC")
	if err := paginate(query, filter.Page, filter.PageSize).Find(&customers).Error; err != nil {
		return nil, translate(err, customerResource)
	}
	return customers, nil
}

// CountForTenant counts the customers matching filter
func (r *GormCustomerRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter partner.CustomerFilter) (int64, error) {
	var total int64
	if err := r.filtered(ctx, tenantID, filter).Count(&total).Error; err != nil {
		return 0, translate(err, customerResource)
	}
	return total, nil
}

func (r *GormCustomerRepository) filtered(ctx context.Context, tenantID uuid.UUID, filter partner.CustomerFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&partner.Customer{}).Where("tenant_id = ?", tenantID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	return whereFolded(query, filter.Search)
}

// Save creates or updates a customer
func (r *GormCustomerRepository) Save(ctx context.Context, customer *partner.Customer) error {
	if err := r.db.WithContext(ctx).Save(customer).Error; err != nil {
		return translate(err, customerResource)
	}
	customer.MarkPersisted()
	return nil
}

// SaveWithLock saves a customer with optimistic locking (version check)
func (r *GormCustomerRepository) SaveWithLock(ctx context.Context, customer *partner.Customer) error {
	result := r.db.WithContext(ctx).
		Model(&partner.Customer{}).
		Where("id = ? AND tenant_id = ? AND version = ?", customer.ID, customer.TenantID, customer.LoadedVersion()).
		Updates(map[string]interface{}{
			"name":              customer.Name,
			"type":              customer.Type,
			"status":            customer.Status,
			"phone":             customer.Phone,
			"email":             customer.Email,
			"address":           customer.Address,
			"province":          customer.Province,
			"tax_id":            customer.TaxID,
			"credit_limit":      customer.CreditLimit,
			"payment_term_days": customer.PaymentTermDays,
			"search_text":       customer.SearchText,
			"version":           customer.Version,
			"updated_at":        customer.UpdatedAt,
		})
	if err := lockResult(result, customerResource); err != nil {
		return err
	}
	customer.MarkPersisted()
	return nil
}

var _ partner.CustomerRepository = (*GormCustomerRepository)(nil)
