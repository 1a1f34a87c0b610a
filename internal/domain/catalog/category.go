package catalog

import (
	"strings"
	"time"

	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
)

// Category groups products for browsing and stats
type Category struct {
	shared.TenantAggregateRoot
	Name        string     `gorm:"type:varchar(100);not null"`
	Description string     `gorm:"type:text"`
	ParentID    *uuid.UUID `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (Category) TableName() string {
	return "product_categories"
}

// NewCategory creates a category, optionally under a parent
func NewCategory(tenantID uuid.UUID, name, description string, parentID *uuid.UUID) (*Category, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	if err := validateCategoryName(name); err != nil {
		return nil, err
	}

	return &Category{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                strings.TrimSpace(name),
		Description:         description,
		ParentID:            parentID,
	}, nil
}

// Update renames the category and moves it under parentID, nil makes it a
// root. Deeper cycles are checked by the caller, which can walk the tree.
func (c *Category) Update(name, description string, parentID *uuid.UUID) error {
	if err := validateCategoryName(name); err != nil {
		return err
	}
	if parentID != nil && *parentID == c.ID {
		return shared.NewValidationError("CATEGORY_CYCLE", "Category cannot be its own parent")
	}
	c.Name = strings.TrimSpace(name)
	c.Description = description
	c.ParentID = parentID
	c.UpdatedAt = time.Now()
	c.IncrementVersion()
	return nil
}

func validateCategoryName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewValidationError("INVALID_NAME", "Category name cannot be empty")
	}
	if len(name) > 100 {
		return shared.NewValidationError("INVALID_NAME", "Category name cannot exceed 100 characters")
	}
	return nil
}
