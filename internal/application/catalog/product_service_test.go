package catalog

import (
	"context"
	"testing"

	"github.com/erp/distribution/internal/domain/catalog"
	"github.com/erp/distribution/internal/domain/shared"
	"github.com/erp/distribution/internal/infrastructure/persistence"
	"github.com/erp/distribution/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newProductService(t *testing.T) (*ProductService, *testutil.RecordingPublisher) {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	svc := NewProductService(
		persistence.NewGormProductRepository(db),
		persistence.NewGormCategoryRepository(db),
		zaptest.NewLogger(t),
	)
	publisher := &testutil.RecordingPublisher{}
	svc.SetEventPublisher(publisher)
	return svc, publisher
}

func createProduct(t *testing.T, svc *ProductService, sku, name string, categoryID *uuid.UUID) *ProductResponse {
	t.Helper()
	resp, err := svc.Create(context.Background(), testutil.TestTenantID(), CreateProductRequest{
		SKU:        sku,
		Name:       name,
		Unit:       "thùng",
		BasePrice:  decimal.NewFromInt(120000),
		CategoryID: categoryID,
	})
	require.NoError(t, err)
	return resp
}

func TestProductService_Create(t *testing.T) {
	svc, publisher := newProductService(t)
	tenantID := testutil.TestTenantID()

	resp, err := svc.Create(context.Background(), tenantID, CreateProductRequest{
		SKU:       "sua-001",
		Name:      "Sữa tươi Vinamilk",
		Unit:      "hộp",
		BasePrice: decimal.NewFromInt(8000),
		Barcode:   "8934673000017",
	})
	require.NoError(t, err)
	assert.Equal(t, "SUA-001", resp.SKU)
	assert.True(t, resp.Active)
	assert.Equal(t, []string{catalog.EventTypeProductCreated}, publisher.Types())

	found, err := svc.GetByBarcode(context.Background(), tenantID, "8934673000017")
	require.NoError(t, err)
	assert.Equal(t, resp.ID, found.ID)

	t.Run("duplicate SKU", func(t *testing.T) {
		_, err := svc.Create(context.Background(), tenantID, CreateProductRequest{
			SKU: "SUA-001", Name: "Other", Unit: "hộp",
		})
		require.Error(t, err)
		assert.True(t, shared.IsKind(err, shared.KindValidation))
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.Create(context.Background(), tenantID, CreateProductRequest{Name: "No SKU"})
		require.Error(t, err)
		assert.True(t, shared.IsKind(err, shared.KindValidation))
		assert.Contains(t, err.Error(), "sku")
	})

	t.Run("unknown category", func(t *testing.T) {
		missing := uuid.New()
		_, err := svc.Create(context.Background(), tenantID, CreateProductRequest{
			SKU: "X-1", Name: "X", Unit: "pcs", CategoryID: &missing,
		})
		assert.True(t, shared.IsKind(err, shared.KindNotFound))
	})
}

func TestProductService_GetByID_OtherTenant(t *testing.T) {
	svc, _ := newProductService(t)
	p := createProduct(t, svc, "P-1", "Nước mắm", nil)

	_, err := svc.GetByID(context.Background(), testutil.OtherTenantID(), p.ID)

	assert.True(t, shared.IsKind(err, shared.KindNotFound))
}

func TestProductService_List_FoldedSearch(t *testing.T) {
	svc, _ := newProductService(t)
	ctx := context.Background()
	tenantID := testutil.TestTenantID()

	createProduct(t, svc, "CF-01", "Cà phê sữa đá", nil)
	createProduct(t, svc, "CF-02", "Cà phê đen", nil)
	createProduct(t, svc, "TR-01", "Trà đào", nil)

	rows, total, err := svc.List(ctx, tenantID, ProductListFilter{Search: "ca phe"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, rows, 2)

	rows, total, err = svc.List(ctx, tenantID, ProductListFilter{Search: "DAO"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "TR-01", rows[0].SKU)

	rows, total, err = svc.List(ctx, tenantID, ProductListFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, rows, 1)
}

func TestProductService_DeactivateAndStats(t *testing.T) {
	svc, _ := newProductService(t)
	ctx := context.Background()
	tenantID := testutil.TestTenantID()

	category, err := svc.CreateCategory(ctx, tenantID, CreateCategoryRequest{Name: "Đồ uống"})
	require.NoError(t, err)

	a := createProduct(t, svc, "A", "Alpha", &category.ID)
	createProduct(t, svc, "B", "Beta", &category.ID)
	createProduct(t, svc, "C", "Gamma", nil)

	resp, err := svc.Deactivate(ctx, tenantID, a.ID)
	require.NoError(t, err)
	assert.False(t, resp.Active)

	_, err = svc.Deactivate(ctx, tenantID, a.ID)
	assert.True(t, shared.IsKind(err, shared.KindInvalidStateTransition))

	rows, _, err := svc.List(ctx, tenantID, ProductListFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	stats, err := svc.GetStats(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 1, stats.Inactive)
	assert.Equal(t, 2, stats.ByCategory[category.ID])
	assert.Equal(t, 1, stats.ByCategory[uuid.Nil])

	categories, err := svc.ListCategories(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "Đồ uống", categories[0].Name)
}

func TestProductService_List_SearchIsLiteral(t *testing.T) {
	svc, _ := newProductService(t)
	ctx := context.Background()
	tenantID := testutil.TestTenantID()

	createProduct(t, svc, "SALE_50", "Bánh quy giảm 50%", nil)
	createProduct(t, svc, "SALE50", "Bánh quy thường", nil)

	rows, total, err := svc.List(ctx, tenantID, ProductListFilter{Search: "50%"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
	assert.Equal(t, "SALE_50", rows[0].SKU)

	rows, _, err = svc.List(ctx, tenantID, ProductListFilter{Search: "sale_"})
	require.NoError(t, err)
	require.Len(t, rows, 1, "underscore is not a wildcard")
	assert.Equal(t, "SALE_50", rows[0].SKU)

	_, total, err = svc.List(ctx, testutil.OtherTenantID(), ProductListFilter{Search: "banh"})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestProductService_Update(t *testing.T) {
	svc, publisher := newProductService(t)
	ctx := context.Background()
	tenantID := testutil.TestTenantID()

	category, err := svc.CreateCategory(ctx, tenantID, CreateCategoryRequest{Name: "Cà phê"})
	require.NoError(t, err)
	p := createProduct(t, svc, "CF-01", "Cà phê rang", nil)

	name, unit, barcode := "Cà phê hạt Buôn Ma Thuột", "bao", "8930001"
	price := decimal.NewFromInt(150000)
	updated, err := svc.Update(ctx, tenantID, p.ID, UpdateProductRequest{
		Name:       &name,
		Unit:       &unit,
		Barcode:    &barcode,
		BasePrice:  &price,
		CategoryID: &category.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "CF-01", updated.SKU)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, "bao", updated.Unit)
	assert.True(t, updated.BasePrice.Equal(price))
	assert.Equal(t, &category.ID, updated.CategoryID)
	assert.Greater(t, updated.Version, p.Version)
	assert.Equal(t, []string{
		catalog.EventTypeProductCreated,
		catalog.EventTypeProductUpdated,
		catalog.EventTypeProductPriceChanged,
	}, publisher.Types())

	stored, err := svc.GetByID(ctx, tenantID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, name, stored.Name)
	assert.Equal(t, "8930001", stored.Barcode)

	t.Run("search follows the new name", func(t *testing.T) {
		rows, _, err := svc.List(ctx, tenantID, ProductListFilter{Search: "buon ma thuot"})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, p.ID, rows[0].ID)

		rows, _, err = svc.List(ctx, tenantID, ProductListFilter{Search: "rang"})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("partial update leaves other fields", func(t *testing.T) {
		unit := "thùng"
		resp, err := svc.Update(ctx, tenantID, p.ID, UpdateProductRequest{Unit: &unit, ClearCategory: true})
		require.NoError(t, err)
		assert.Equal(t, name, resp.Name)
		assert.Equal(t, "thùng", resp.Unit)
		assert.Nil(t, resp.CategoryID)
	})

	t.Run("rejects invalid edits", func(t *testing.T) {
		empty := ""
		_, err := svc.Update(ctx, tenantID, p.ID, UpdateProductRequest{Name: &empty})
		assert.True(t, shared.IsKind(err, shared.KindValidation))

		negative := decimal.NewFromInt(-1)
		_, err = svc.Update(ctx, tenantID, p.ID, UpdateProductRequest{BasePrice: &negative})
		assert.True(t, shared.IsKind(err, shared.KindValidation))

		missing := uuid.New()
		_, err = svc.Update(ctx, tenantID, p.ID, UpdateProductRequest{CategoryID: &missing})
		assert.True(t, shared.IsKind(err, shared.KindNotFound))
	})

	t.Run("other tenant", func(t *testing.T) {
		_, err := svc.Update(ctx, testutil.OtherTenantID(), p.ID, UpdateProductRequest{Name: &name})
		assert.True(t, shared.IsKind(err, shared.KindNotFound))
	})
}

func TestProductService_UpdateCategory(t *testing.T) {
	svc, _ := newProductService(t)
	ctx := context.Background()
	tenantID := testutil.TestTenantID()

	drinks, err := svc.CreateCategory(ctx, tenantID, CreateCategoryRequest{Name: "Đồ uống"})
	require.NoError(t, err)
	coffee, err := svc.CreateCategory(ctx, tenantID, CreateCategoryRequest{Name: "Cà phê", ParentID: &drinks.ID})
	require.NoError(t, err)
	instant, err := svc.CreateCategory(ctx, tenantID, CreateCategoryRequest{Name: "Hòa tan", ParentID: &coffee.ID})
	require.NoError(t, err)

	resp, err := svc.UpdateCategory(ctx, tenantID, coffee.ID, UpdateCategoryRequest{
		Name:        "Cà phê & trà",
		Description: "hạt, bột, túi lọc",
	})
	require.NoError(t, err)
	assert.Equal(t, "Cà phê & trà", resp.Name)
	assert.Nil(t, resp.ParentID)

	categories, err := svc.ListCategories(ctx, tenantID)
	require.NoError(t, err)
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	assert.Contains(t, names, "Cà phê & trà")

	t.Run("cannot move under a descendant", func(t *testing.T) {
		_, err := svc.UpdateCategory(ctx, tenantID, coffee.ID, UpdateCategoryRequest{Name: "Cà phê", ParentID: &instant.ID})
		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "CATEGORY_CYCLE", de.Code)
	})

	t.Run("cannot be its own parent", func(t *testing.T) {
		_, err := svc.UpdateCategory(ctx, tenantID, drinks.ID, UpdateCategoryRequest{Name: "Đồ uống", ParentID: &drinks.ID})
		assert.True(t, shared.IsKind(err, shared.KindValidation))
	})

	t.Run("moves under a sibling tree", func(t *testing.T) {
		resp, err := svc.UpdateCategory(ctx, tenantID, instant.ID, UpdateCategoryRequest{Name: "Hòa tan", ParentID: &drinks.ID})
		require.NoError(t, err)
		assert.Equal(t, &drinks.ID, resp.ParentID)
	})

	t.Run("unknown category", func(t *testing.T) {
		_, err := svc.UpdateCategory(ctx, tenantID, uuid.New(), UpdateCategoryRequest{Name: "X"})
		assert.True(t, shared.IsKind(err, shared.KindNotFound))
	})
}
