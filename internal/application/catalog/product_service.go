package catalog

import (
	"context"

	"github.com/erp/distribution/internal/application/validate"
	"github.com/erp/distribution/internal/domain/catalog"
	"github.com/erp/distribution/internal/domain/shared"
	"github.com/erp/distribution/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProductService handles product and category operations. It is also the
// catalog reader orders use for line snapshots.
type ProductService struct {
	productRepo    catalog.ProductRepository
	categoryRepo   catalog.CategoryRepository
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewProductService creates a new ProductService
func NewProductService(productRepo catalog.ProductRepository, categoryRepo catalog.CategoryRepository, logger *zap.Logger) *ProductService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		logger:       logger.Named("product_service"),
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *ProductService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Create creates a new product
func (s *ProductService) Create(ctx context.Context, tenantID uuid.UUID, req CreateProductRequest) (resp *ProductResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "product", "create", tenantID)
	defer func() { telemetry.End(span, err) }()

	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	product, err := catalog.NewProduct(tenantID, req.SKU, req.Name, req.Unit, req.BasePrice)
	if err != nil {
		return nil, err
	}
	if req.Barcode != "" {
		if err := product.SetBarcode(req.Barcode); err != nil {
			return nil, err
		}
	}
	if req.CategoryID != nil {
		if _, err := s.categoryRepo.FindByIDForTenant(ctx, tenantID, *req.CategoryID); err != nil {
			return nil, err
		}
		product.SetCategory(req.CategoryID)
	}

	if err := s.productRepo.Save(ctx, product); err != nil {
		if shared.IsKind(err, shared.KindConcurrencyConflict) {
			return nil, shared.NewValidationError("DUPLICATE_SKU", "Product with SKU "+product.SKU+" already exists").WithCause(err)
		}
		return nil, err
	}
	product.MarkPersisted()

	s.logger.Info("product created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("product_id", product.ID.String()),
		zap.String("sku", product.SKU),
	)
	if err := shared.PublishAndClear(ctx, s.eventPublisher, product); err != nil {
		s.logger.Warn("publish product events", zap.Error(err))
	}

	out := ToProductResponse(product)
	return &out, nil
}

// GetByID retrieves a product by ID
func (s *ProductService) GetByID(ctx context.Context, tenantID, productID uuid.UUID) (*ProductResponse, error) {
	product, err := s.GetProduct(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	out := ToProductResponse(product)
	return &out, nil
}

// GetProduct returns the domain product, checked against tenantID
func (s *ProductService) GetProduct(ctx context.Context, tenantID, productID uuid.UUID) (*catalog.Product, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	product, err := s.productRepo.FindByIDForTenant(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	if err := product.BelongsTo(tenantID); err != nil {
		return nil, err
	}
	return product, nil
}

// GetByBarcode retrieves a product by barcode
func (s *ProductService) GetByBarcode(ctx context.Context, tenantID uuid.UUID, barcode string) (*ProductResponse, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	if barcode == "" {
		return nil, shared.NewValidationError("INVALID_BARCODE", "Barcode is required")
	}
	product, err := s.productRepo.FindByBarcode(ctx, tenantID, barcode)
	if err != nil {
		return nil, err
	}
	out := ToProductResponse(product)
	return &out, nil
}

// List returns a page of products and the total matching count. Search
// matches name, SKU or barcode ignoring case and diacritics.
func (s *ProductService) List(ctx context.Context, tenantID uuid.UUID, filter ProductListFilter) ([]ProductResponse, int64, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, 0, err
	}
	if err := validate.Struct(filter); err != nil {
		return nil, 0, err
	}

	query := catalog.ProductFilter{
		Search:     filter.Search,
		CategoryID: filter.CategoryID,
		ActiveOnly: filter.ActiveOnly,
		Page:       filter.Page,
		PageSize:   filter.PageSize,
	}
	products, err := s.productRepo.FindAllForTenant(ctx, tenantID, query)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.productRepo.CountForTenant(ctx, tenantID, query)
	if err != nil {
		return nil, 0, err
	}

	out := make([]ProductResponse, len(products))
	for i := range products {
		out[i] = ToProductResponse(&products[i])
	}
	return out, total, nil
}

// Update edits a product. Existing order lines keep the name, SKU, unit and
// price they were created with; only new orders see the change.
func (s *ProductService) Update(ctx context.Context, tenantID, productID uuid.UUID, req UpdateProductRequest) (resp *ProductResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "product", "update", tenantID)
	defer func() { telemetry.End(span, err) }()

	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	product, err := s.GetProduct(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil || req.Unit != nil {
		name, unit := product.Name, product.Unit
		if req.Name != nil {
			name = *req.Name
		}
		if req.Unit != nil {
			unit = *req.Unit
		}
		if err := product.UpdateDetails(name, unit); err != nil {
			return nil, err
		}
	}
	if req.Barcode != nil {
		if err := product.SetBarcode(*req.Barcode); err != nil {
			return nil, err
		}
	}
	if req.BasePrice != nil {
		if err := product.SetBasePrice(*req.BasePrice); err != nil {
			return nil, err
		}
	}
	switch {
	case req.ClearCategory:
		product.SetCategory(nil)
	case req.CategoryID != nil:
		if _, err := s.categoryRepo.FindByIDForTenant(ctx, tenantID, *req.CategoryID); err != nil {
			return nil, err
		}
		product.SetCategory(req.CategoryID)
	}

	if err := s.productRepo.SaveWithLock(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("product updated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("product_id", productID.String()),
		zap.Int("version", product.Version),
	)
	if err := shared.PublishAndClear(ctx, s.eventPublisher, product); err != nil {
		s.logger.Warn("publish product events", zap.Error(err))
	}

	out := ToProductResponse(product)
	return &out, nil
}

// Deactivate hides a product from new orders
func (s *ProductService) Deactivate(ctx context.Context, tenantID, productID uuid.UUID) (*ProductResponse, error) {
	return s.setActive(ctx, tenantID, productID, false)
}

// Activate makes a product orderable again
func (s *ProductService) Activate(ctx context.Context, tenantID, productID uuid.UUID) (*ProductResponse, error) {
	return s.setActive(ctx, tenantID, productID, true)
}

func (s *ProductService) setActive(ctx context.Context, tenantID, productID uuid.UUID, active bool) (*ProductResponse, error) {
	product, err := s.GetProduct(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	if active {
		err = product.Activate()
	} else {
		err = product.Deactivate()
	}
	if err != nil {
		return nil, err
	}
	if err := s.productRepo.SaveWithLock(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("product status changed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("product_id", productID.String()),
		zap.Bool("active", active),
	)
	out := ToProductResponse(product)
	return &out, nil
}

// GetStats counts the tenant's products
func (s *ProductService) GetStats(ctx context.Context, tenantID uuid.UUID) (*ProductStats, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	products, err := s.productRepo.FindAllForTenant(ctx, tenantID, catalog.ProductFilter{})
	if err != nil {
		return nil, err
	}

	stats := &ProductStats{Total: len(products), ByCategory: make(map[uuid.UUID]int)}
	for _, p := range products {
		if p.Active {
			stats.Active++
		} else {
			stats.Inactive++
		}
		category := uuid.Nil
		if p.CategoryID != nil {
			category = *p.CategoryID
		}
		stats.ByCategory[category]++
	}
	return stats, nil
}

// CreateCategory creates a category, checking the parent when given
func (s *ProductService) CreateCategory(ctx context.Context, tenantID uuid.UUID, req CreateCategoryRequest) (*CategoryResponse, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if req.ParentID != nil {
		if _, err := s.categoryRepo.FindByIDForTenant(ctx, tenantID, *req.ParentID); err != nil {
			return nil, err
		}
	}

	category, err := catalog.NewCategory(tenantID, req.Name, req.Description, req.ParentID)
	if err != nil {
		return nil, err
	}
	if err := s.categoryRepo.Save(ctx, category); err != nil {
		return nil, err
	}

	s.logger.Info("category created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("category_id", category.ID.String()),
	)
	out := ToCategoryResponse(category)
	return &out, nil
}

// UpdateCategory renames a category or moves it under another parent.
// Moving a category below one of its own descendants is rejected.
func (s *ProductService) UpdateCategory(ctx context.Context, tenantID, categoryID uuid.UUID, req UpdateCategoryRequest) (*CategoryResponse, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	category, err := s.categoryRepo.FindByIDForTenant(ctx, tenantID, categoryID)
	if err != nil {
		return nil, err
	}
	if req.ParentID != nil {
		if err := s.checkParent(ctx, tenantID, categoryID, *req.ParentID); err != nil {
			return nil, err
		}
	}

	if err := category.Update(req.Name, req.Description, req.ParentID); err != nil {
		return nil, err
	}
	if err := s.categoryRepo.SaveWithLock(ctx, category); err != nil {
		return nil, err
	}

	s.logger.Info("category updated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("category_id", categoryID.String()),
	)
	out := ToCategoryResponse(category)
	return &out, nil
}

// checkParent walks up from parentID and fails if it reaches categoryID
func (s *ProductService) checkParent(ctx context.Context, tenantID, categoryID, parentID uuid.UUID) error {
	seen := map[uuid.UUID]bool{}
	for id := &parentID; id != nil; {
		if *id == categoryID {
			return shared.NewValidationError("CATEGORY_CYCLE", "Category cannot be moved under its own descendant")
		}
		if seen[*id] {
			break
		}
		seen[*id] = true
		ancestor, err := s.categoryRepo.FindByIDForTenant(ctx, tenantID, *id)
		if err != nil {
			return err
		}
		id = ancestor.ParentID
	}
	return nil
}

// ListCategories returns every category of the tenant
func (s *ProductService) ListCategories(ctx context.Context, tenantID uuid.UUID) ([]CategoryResponse, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	categories, err := s.categoryRepo.FindAllForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]CategoryResponse, len(categories))
	for i := range categories {
		out[i] = ToCategoryResponse(&categories[i])
	}
	return out, nil
}
