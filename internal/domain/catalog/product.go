package catalog

import (
	"strings"
	"time"

	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a sellable SKU in the catalog.
// Orders copy name, SKU and unit at creation time, so edits here never
// rewrite historical order lines.
type Product struct {
	shared.TenantAggregateRoot
	SKU        string          `gorm:"column:sku;type:varchar(50);not null;index"`
	Barcode    string          `gorm:"type:varchar(50);index"`
	Name       string          `gorm:"type:varchar(200);not null"`
	Unit       string          `gorm:"type:varchar(20);not null"`
	BasePrice  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	CategoryID *uuid.UUID      `gorm:"type:uuid;index"`
	Active     bool            `gorm:"not null;default:true"`
	// SearchText is the folded name, SKU and barcode behind List search
	SearchText string `gorm:"type:varchar(400);not null;default:''"`
}

// TableName returns the table name for GORM
func (Product) TableName() string {
	return "products"
}

// NewProduct creates a new active product
func NewProduct(tenantID uuid.UUID, sku, name, unit string, basePrice decimal.Decimal) (*Product, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	if err := validateSKU(sku); err != nil {
		return nil, err
	}
	if err := validateProductName(name); err != nil {
		return nil, err
	}
	if strings.TrimSpace(unit) == "" {
		return nil, shared.NewValidationError("INVALID_UNIT", "Unit cannot be empty")
	}
	if basePrice.IsNegative() {
		return nil, shared.NewValidationError("INVALID_PRICE", "Base price cannot be negative")
	}

	product := &Product{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		SKU:                 strings.ToUpper(strings.TrimSpace(sku)),
		Name:                strings.TrimSpace(name),
		Unit:                strings.TrimSpace(unit),
		BasePrice:           basePrice,
		Active:              true,
	}
	product.refreshSearchText()

	product.AddDomainEvent(NewProductCreatedEvent(product))

	return product, nil
}

// UpdateDetails renames the product and changes its selling unit. Order
// lines keep the name and unit they were created with.
func (p *Product) UpdateDetails(name, unit string) error {
	if err := validateProductName(name); err != nil {
		return err
	}
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return shared.NewValidationError("INVALID_UNIT", "Unit cannot be empty")
	}
	if len(unit) > 20 {
		return shared.NewValidationError("INVALID_UNIT", "Unit cannot exceed 20 characters")
	}
	name = strings.TrimSpace(name)
	if name == p.Name && unit == p.Unit {
		return nil
	}
	p.Name = name
	p.Unit = unit
	p.touch()
	p.AddDomainEvent(NewProductUpdatedEvent(p))
	return nil
}

// SetBarcode sets the product barcode
func (p *Product) SetBarcode(barcode string) error {
	if len(barcode) > 50 {
		return shared.NewValidationError("INVALID_BARCODE", "Barcode cannot exceed 50 characters")
	}
	p.Barcode = strings.TrimSpace(barcode)
	p.touch()
	return nil
}

// SetCategory assigns the product to a category, nil clears it
func (p *Product) SetCategory(categoryID *uuid.UUID) {
	p.CategoryID = categoryID
	p.touch()
}

// SetBasePrice changes the list price
func (p *Product) SetBasePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return shared.NewValidationError("INVALID_PRICE", "Base price cannot be negative")
	}
	if price.Equal(p.BasePrice) {
		return nil
	}
	old := p.BasePrice
	p.BasePrice = price
	p.touch()
	p.AddDomainEvent(NewProductPriceChangedEvent(p, old))
	return nil
}

// Deactivate hides the product from new orders
func (p *Product) Deactivate() error {
	if !p.Active {
		return shared.NewInvalidStateError("Product is already inactive")
	}
	p.Active = false
	p.touch()
	return nil
}

// Activate makes the product orderable again
func (p *Product) Activate() error {
	if p.Active {
		return shared.NewInvalidStateError("Product is already active")
	}
	p.Active = true
	p.touch()
	return nil
}

func (p *Product) touch() {
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
	p.refreshSearchText()
}

func (p *Product) refreshSearchText() {
	p.SearchText = shared.SearchKey(p.Name, p.SKU, p.Barcode)
}

func validateSKU(sku string) error {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return shared.NewValidationError("INVALID_SKU", "Product SKU cannot be empty")
	}
	if len(sku) > 50 {
		return shared.NewValidationError("INVALID_SKU", "Product SKU cannot exceed 50 characters")
	}
	return nil
}

func validateProductName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewValidationError("INVALID_NAME", "Product name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewValidationError("INVALID_NAME", "Product name cannot exceed 200 characters")
	}
	return nil
}
