package shared

import (
	"github.com/google/uuid"
)

// AggregateRoot is the base interface for all aggregate roots
type AggregateRoot interface {
	Entity
	GetVersion() int
	IncrementVersion()
	LoadedVersion() int
	MarkPersisted()
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot provides common fields for aggregate roots.
// Version backs optimistic locking: a save succeeds only when the stored
// version still equals LoadedVersion.
type BaseAggregateRoot struct {
	BaseEntity
	Version       int           `gorm:"not null;default:1"`
	loadedVersion int           `gorm:"-"`
	dirty         bool          `gorm:"-"`
	domainEvents  []DomainEvent `gorm:"-"`
}

// GetVersion returns the aggregate version for optimistic locking
func (a *BaseAggregateRoot) GetVersion() int {
	return a.Version
}

// IncrementVersion increments the version number, remembering the version
// the aggregate had before its first unsaved change
func (a *BaseAggregateRoot) IncrementVersion() {
	if !a.dirty {
		a.loadedVersion = a.Version
		a.dirty = true
	}
	a.Version++
}

// LoadedVersion is the version expected in storage when saving
func (a *BaseAggregateRoot) LoadedVersion() int {
	if a.dirty {
		return a.loadedVersion
	}
	return a.Version
}

// MarkPersisted records that Version is now the stored version
func (a *BaseAggregateRoot) MarkPersisted() {
	a.dirty = false
	a.loadedVersion = a.Version
}

// AddDomainEvent adds a domain event to be published
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns all pending domain events
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents clears the pending domain events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// NewBaseAggregateRoot creates a new base aggregate root
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity:   NewBaseEntity(),
		Version:      1,
		domainEvents: make([]DomainEvent, 0),
	}
}

// TenantAggregateRoot extends BaseAggregateRoot with multi-tenant support
type TenantAggregateRoot struct {
	BaseAggregateRoot
	TenantID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	CreatedBy *uuid.UUID `gorm:"type:uuid"`
}

// NewTenantAggregateRoot creates a new tenant-scoped aggregate root
func NewTenantAggregateRoot(tenantID uuid.UUID) TenantAggregateRoot {
	return TenantAggregateRoot{
		BaseAggregateRoot: NewBaseAggregateRoot(),
		TenantID:          tenantID,
	}
}

// SetCreatedBy sets the acting user
func (t *TenantAggregateRoot) SetCreatedBy(userID uuid.UUID) {
	if userID == uuid.Nil {
		return
	}
	t.CreatedBy = &userID
}

// BelongsTo returns ErrTenantMismatch when the aggregate is owned by another tenant
func (t *TenantAggregateRoot) BelongsTo(tenantID uuid.UUID) error {
	return CheckTenant(t.TenantID, tenantID)
}

// CheckTenant compares an owner tenant against the requested one
func CheckTenant(owner, requested uuid.UUID) error {
	if err := RequireTenant(requested); err != nil {
		return err
	}
	if owner != requested {
		return ErrTenantMismatch
	}
	return nil
}

// RequireTenant validates an explicit tenant parameter
func RequireTenant(tenantID uuid.UUID) error {
	if tenantID == uuid.Nil {
		return NewValidationError("TENANT_REQUIRED", "Tenant ID is required")
	}
	return nil
}
