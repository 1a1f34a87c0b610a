package catalog

import (
	"time"

	"github.com/erp/distribution/internal/domain/catalog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateProductRequest represents a request to create a product
type CreateProductRequest struct {
	SKU        string          `json:"sku" validate:"required,max=50"`
	Name       string          `json:"name" validate:"required,max=200"`
	Unit       string          `json:"unit" validate:"required,max=20"`
	BasePrice  decimal.Decimal `json:"base_price" validate:"gte=0"`
	Barcode    string          `json:"barcode" validate:"max=50"`
	CategoryID *uuid.UUID      `json:"category_id"`
}

// UpdateProductRequest changes the fields that are set. SKU is immutable.
type UpdateProductRequest struct {
	Name          *string          `json:"name" validate:"omitempty,max=200"`
	Unit          *string          `json:"unit" validate:"omitempty,max=20"`
	Barcode       *string          `json:"barcode" validate:"omitempty,max=50"`
	BasePrice     *decimal.Decimal `json:"base_price"`
	CategoryID    *uuid.UUID       `json:"category_id"`
	ClearCategory bool             `json:"clear_category"`
}

// ProductListFilter represents filter options for product list
type ProductListFilter struct {
	Search     string     `json:"search"`
	CategoryID *uuid.UUID `json:"category_id"`
	ActiveOnly bool       `json:"active_only"`
	Page       int        `json:"page" validate:"gte=0"`
	PageSize   int        `json:"page_size" validate:"gte=0,lte=100"`
}

// ProductResponse represents a product in API responses
type ProductResponse struct {
	ID         uuid.UUID       `json:"id"`
	TenantID   uuid.UUID       `json:"tenant_id"`
	SKU        string          `json:"sku"`
	Barcode    string          `json:"barcode,omitempty"`
	Name       string          `json:"name"`
	Unit       string          `json:"unit"`
	BasePrice  decimal.Decimal `json:"base_price"`
	CategoryID *uuid.UUID      `json:"category_id,omitempty"`
	Active     bool            `json:"active"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Version    int             `json:"version"`
}

// ProductStats counts products by state and category. Uncategorised
// products are counted under uuid.Nil.
type ProductStats struct {
	Total      int               `json:"total"`
	Active     int               `json:"active"`
	Inactive   int               `json:"inactive"`
	ByCategory map[uuid.UUID]int `json:"by_category"`
}

// CreateCategoryRequest represents a request to create a category
type CreateCategoryRequest struct {
	Name        string     `json:"name" validate:"required,max=100"`
	Description string     `json:"description"`
	ParentID    *uuid.UUID `json:"parent_id"`
}

// UpdateCategoryRequest replaces a category's name, description and parent
type UpdateCategoryRequest struct {
	Name        string     `json:"name" validate:"required,max=100"`
	Description string     `json:"description"`
	ParentID    *uuid.UUID `json:"parent_id"`
}

// CategoryResponse represents a category in API responses
type CategoryResponse struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ToProductResponse converts a domain product to a response
func ToProductResponse(p *catalog.Product) ProductResponse {
	return ProductResponse{
		ID:         p.ID,
		TenantID:   p.TenantID,
		SKU:        p.SKU,
		Barcode:    p.Barcode,
		Name:       p.Name,
		Unit:       p.Unit,
		BasePrice:  p.BasePrice,
		CategoryID: p.CategoryID,
		Active:     p.Active,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
		Version:    p.Version,
	}
}

// ToCategoryResponse converts a domain category to a response
func ToCategoryResponse(c *catalog.Category) CategoryResponse {
	return CategoryResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		ParentID:    c.ParentID,
		CreatedAt:   c.CreatedAt,
	}
}
