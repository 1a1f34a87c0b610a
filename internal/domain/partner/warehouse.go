package partner

import (
	"strings"

	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
)

// Warehouse is a stock location; balances are keyed by (product, warehouse)
type Warehouse struct {
	shared.TenantAggregateRoot
	Code    string `gorm:"type:varchar(50);not null;index"`
	Name    string `gorm:"type:varchar(100);not null"`
	Address string `gorm:"type:text"`
	Active  bool   `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (Warehouse) TableName() string {
	return "warehouses"
}

// NewWarehouse creates an active warehouse. An empty code is derived from
// the first ten characters of the name.
func NewWarehouse(tenantID uuid.UUID, name, code, address string) (*Warehouse, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 100 {
		return nil, shared.NewValidationError("INVALID_NAME", "Warehouse name must be 1-100 characters")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		runes := []rune(name)
		if len(runes) > 10 {
			runes = runes[:10]
		}
		code = strings.TrimSpace(string(runes))
	}

	return &Warehouse{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Code:                strings.ToUpper(code),
		Name:                name,
		Address:             address,
		Active:              true,
	}, nil
}
