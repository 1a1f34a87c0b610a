package finance

import (
	"strings"
	"time"

	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod is how the customer paid
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCheck        PaymentMethod = "check"
	PaymentMethodOther        PaymentMethod = "other"
)

// IsValid checks if the method is a valid PaymentMethod
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCheck, PaymentMethodOther:
		return true
	}
	return false
}

// Payment is an immutable record of money received against a receivable.
// Reference, when present, is unique per receivable and makes recording idempotent.
type Payment struct {
	shared.BaseEntity
	TenantID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	PaymentNumber string          `gorm:"type:varchar(50);not null;index"`
	ReceivableID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Method        PaymentMethod   `gorm:"type:varchar(20);not null"`
	PaymentDate   time.Time       `gorm:"not null"`
	Reference     *string         `gorm:"type:varchar(100)"`
	CollectedBy   *uuid.UUID      `gorm:"type:uuid"`
	Notes         string          `gorm:"type:text"`
	Latitude      *float64
	Longitude     *float64
	CreatedBy     *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (Payment) TableName() string {
	return "payments"
}

// NewPayment creates a payment row
func NewPayment(tenantID uuid.UUID, number string, receivableID uuid.UUID, amount decimal.Decimal, method PaymentMethod, paidAt time.Time) (*Payment, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Payment amount must be greater than zero")
	}
	if !method.IsValid() {
		return nil, shared.NewValidationError("INVALID_PAYMENT_METHOD", "Payment method must be cash, bank_transfer, check or other")
	}
	if paidAt.IsZero() {
		paidAt = time.Now()
	}
	return &Payment{
		BaseEntity:    shared.NewBaseEntity(),
		TenantID:      tenantID,
		PaymentNumber: number,
		ReceivableID:  receivableID,
		Amount:        amount,
		Method:        method,
		PaymentDate:   paidAt,
	}, nil
}

// WithReference sets the idempotency reference; blank references are ignored
func (p *Payment) WithReference(ref string) *Payment {
	ref = strings.TrimSpace(ref)
	if ref != "" {
		p.Reference = &ref
	}
	return p
}

// WithCollector records who collected the money and where
func (p *Payment) WithCollector(collectedBy uuid.UUID, lat, lng *float64) *Payment {
	if collectedBy != uuid.Nil {
		p.CollectedBy = &collectedBy
	}
	p.Latitude = lat
	p.Longitude = lng
	return p
}
