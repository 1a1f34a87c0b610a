package finance

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReceivableStatus represents the status of a receivable
type ReceivableStatus string

const (
	ReceivableStatusPending    ReceivableStatus = "pending"
	ReceivableStatusPartial    ReceivableStatus = "partial"
	ReceivableStatusPaid       ReceivableStatus = "paid"
	ReceivableStatusWrittenOff ReceivableStatus = "written_off"
)

// String returns the string representation of ReceivableStatus
func (s ReceivableStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a valid ReceivableStatus
func (s ReceivableStatus) IsValid() bool {
	switch s {
	case ReceivableStatusPending, ReceivableStatusPartial, ReceivableStatusPaid, ReceivableStatusWrittenOff:
		return true
	}
	return false
}

// IsOpen reports whether money is still expected
func (s ReceivableStatus) IsOpen() bool {
	return s == ReceivableStatusPending || s == ReceivableStatusPartial
}

// OpenReceivableStatuses lists the statuses that still accept payments
var OpenReceivableStatuses = []ReceivableStatus{ReceivableStatusPending, ReceivableStatusPartial}

// Receivable is money a customer owes for an order or delivery.
// RemainingAmount always equals Amount - PaidAmount.
type Receivable struct {
	shared.TenantAggregateRoot
	ReceivableNumber string           `gorm:"type:varchar(50);not null;index"`
	CustomerID       uuid.UUID        `gorm:"type:uuid;not null;index"`
	OrderID          *uuid.UUID       `gorm:"type:uuid;index"`
	DeliveryID       *uuid.UUID       `gorm:"type:uuid"`
	Amount           decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	PaidAmount       decimal.Decimal  `gorm:"type:decimal(18,4);not null;default:0"`
	RemainingAmount  decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	DueDate          time.Time        `gorm:"not null;index"`
	Status           ReceivableStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	LastPaymentDate  *time.Time
	Notes            string `gorm:"type:text"`
	WriteOffReason   string `gorm:"type:varchar(500)"`
	WrittenOffAt     *time.Time
}

// TableName returns the table name for GORM
func (Receivable) TableName() string {
	return "receivables"
}

// NewReceivable creates a pending receivable
func NewReceivable(tenantID uuid.UUID, number string, customerID uuid.UUID, amount decimal.Decimal, dueDate time.Time) (*Receivable, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	if number == "" {
		return nil, shared.NewValidationError("INVALID_RECEIVABLE_NUMBER", "Receivable number cannot be empty")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Amount must be greater than zero")
	}
	if dueDate.IsZero() {
		return nil, shared.NewValidationError("INVALID_DUE_DATE", "Due date is required")
	}

	r := &Receivable{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ReceivableNumber:    number,
		CustomerID:          customerID,
		Amount:              amount,
		PaidAmount:          decimal.Zero,
		RemainingAmount:     amount,
		DueDate:             dueDate,
		Status:              ReceivableStatusPending,
	}
	r.AddDomainEvent(NewReceivableCreatedEvent(r))
	return r, nil
}

// LinkSource records the order and delivery the receivable bills
func (r *Receivable) LinkSource(orderID, deliveryID *uuid.UUID) {
	r.OrderID = orderID
	r.DeliveryID = deliveryID
}

// ApplyPayment adds a payment. Amounts above the outstanding balance are
// rejected rather than clamped.
func (r *Receivable) ApplyPayment(amount decimal.Decimal, paidAt time.Time) error {
	if !amount.IsPositive() {
		return shared.NewValidationError("INVALID_AMOUNT", "Payment amount must be greater than zero")
	}
	if !r.Status.IsOpen() {
		return shared.NewInvalidStateError(fmt.Sprintf("Cannot record payment on a %s receivable", r.Status))
	}
	if amount.GreaterThan(r.RemainingAmount) {
		return shared.NewValidationError("EXCEEDS_OUTSTANDING",
			fmt.Sprintf("Payment %s exceeds outstanding balance %s", amount, r.RemainingAmount))
	}

	from := r.Status
	r.PaidAmount = r.PaidAmount.Add(amount)
	r.RemainingAmount = r.Amount.Sub(r.PaidAmount)
	if r.RemainingAmount.IsZero() {
		r.Status = ReceivableStatusPaid
	} else {
		r.Status = ReceivableStatusPartial
	}
	r.LastPaymentDate = &paidAt
	r.touch()

	r.AddDomainEvent(NewReceivablePaymentAppliedEvent(r, amount, from))
	return nil
}

// WriteOff closes an open receivable as uncollectable
func (r *Receivable) WriteOff(reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.NewValidationError("REASON_REQUIRED", "A write-off reason is required")
	}
	if !r.Status.IsOpen() {
		return shared.NewInvalidTransitionError("receivable", r.Status, ReceivableStatusWrittenOff)
	}
	now := time.Now()
	r.Status = ReceivableStatusWrittenOff
	r.WriteOffReason = reason
	r.WrittenOffAt = &now
	r.touch()

	r.AddDomainEvent(NewReceivableWrittenOffEvent(r))
	return nil
}

// DaysPastDue returns whole calendar days since the due date; zero or less means not yet due
func (r *Receivable) DaysPastDue(now time.Time) int {
	return daysBetween(r.DueDate, now)
}

// IsOverdue reports whether an open receivable is past its due date
func (r *Receivable) IsOverdue(now time.Time) bool {
	return r.Status.IsOpen() && r.DaysPastDue(now) > 0
}

func (r *Receivable) touch() {
	r.UpdatedAt = time.Now()
	r.IncrementVersion()
}

// daysBetween counts calendar days from a to b in b's location
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.In(b.Location()).Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
