package finance

import (
	"context"

	"github.com/google/uuid"
)

// ReceivableFilter narrows receivable listings
type ReceivableFilter struct {
	CustomerID *uuid.UUID
	Statuses   []ReceivableStatus
	Page       int
	PageSize   int
}

// ReceivableRepository persists Receivable aggregates
type ReceivableRepository interface {
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Receivable, error)

	// FindByDelivery returns shared.ErrNotFound when the delivery has not been billed
	FindByDelivery(ctx context.Context, tenantID, deliveryID uuid.UUID) (*Receivable, error)

	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter ReceivableFilter) ([]Receivable, error)

	// Save inserts a new receivable; a second receivable for the same delivery
	// is a ConcurrencyConflict
	Save(ctx context.Context, receivable *Receivable) error

	SaveWithLock(ctx context.Context, receivable *Receivable) error
}

// PaymentRepository is append-only
type PaymentRepository interface {
	// Create inserts a payment; a duplicate (receivable, reference) is a ConcurrencyConflict
	Create(ctx context.Context, payment *Payment) error

	// FindByReference returns shared.ErrNotFound when no payment carries the reference
	FindByReference(ctx context.Context, tenantID, receivableID uuid.UUID, reference string) (*Payment, error)

	FindByReceivable(ctx context.Context, tenantID, receivableID uuid.UUID) ([]Payment, error)
}
