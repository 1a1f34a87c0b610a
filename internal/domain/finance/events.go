package finance

import (
	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeReceivable is the aggregate type for receivable events
const AggregateTypeReceivable = "Receivable"

// Event type constants
const (
	EventTypeReceivableCreated        = "ReceivableCreated"
	EventTypeReceivablePaymentApplied = "ReceivablePaymentApplied"
	EventTypeReceivableWrittenOff     = "ReceivableWrittenOff"
)

// ReceivableCreatedEvent is raised when a receivable is created
type ReceivableCreatedEvent struct {
	shared.BaseDomainEvent
	ReceivableID     uuid.UUID       `json:"receivable_id"`
	ReceivableNumber string          `json:"receivable_number"`
	CustomerID       uuid.UUID       `json:"customer_id"`
	Amount           decimal.Decimal `json:"amount"`
}

// NewReceivableCreatedEvent creates a new ReceivableCreatedEvent
func NewReceivableCreatedEvent(r *Receivable) *ReceivableCreatedEvent {
	return &ReceivableCreatedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeReceivableCreated, AggregateTypeReceivable, r.ID, r.TenantID),
		ReceivableID:     r.ID,
		ReceivableNumber: r.ReceivableNumber,
		CustomerID:       r.CustomerID,
		Amount:           r.Amount,
	}
}

// ReceivablePaymentAppliedEvent is raised after a payment mutates a receivable
type ReceivablePaymentAppliedEvent struct {
	shared.BaseDomainEvent
	ReceivableID    uuid.UUID        `json:"receivable_id"`
	CustomerID      uuid.UUID        `json:"customer_id"`
	Amount          decimal.Decimal  `json:"amount"`
	RemainingAmount decimal.Decimal  `json:"remaining_amount"`
	FromStatus      ReceivableStatus `json:"from_status"`
	ToStatus        ReceivableStatus `json:"to_status"`
}

// NewReceivablePaymentAppliedEvent creates a new ReceivablePaymentAppliedEvent
func NewReceivablePaymentAppliedEvent(r *Receivable, amount decimal.Decimal, from ReceivableStatus) *ReceivablePaymentAppliedEvent {
	return &ReceivablePaymentAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReceivablePaymentApplied, AggregateTypeReceivable, r.ID, r.TenantID),
		ReceivableID:    r.ID,
		CustomerID:      r.CustomerID,
		Amount:          amount,
		RemainingAmount: r.RemainingAmount,
		FromStatus:      from,
		ToStatus:        r.Status,
	}
}

// ReceivableWrittenOffEvent is raised when a receivable is written off
type ReceivableWrittenOffEvent struct {
	shared.BaseDomainEvent
	ReceivableID    uuid.UUID       `json:"receivable_id"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	Reason          string          `json:"reason"`
}

// NewReceivableWrittenOffEvent creates a new ReceivableWrittenOffEvent
func NewReceivableWrittenOffEvent(r *Receivable) *ReceivableWrittenOffEvent {
	return &ReceivableWrittenOffEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReceivableWrittenOff, AggregateTypeReceivable, r.ID, r.TenantID),
		ReceivableID:    r.ID,
		RemainingAmount: r.RemainingAmount,
		Reason:          r.WriteOffReason,
	}
}
