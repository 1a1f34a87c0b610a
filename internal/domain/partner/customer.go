package partner

import (
	"regexp"
	"strings"
	"time"

	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerStatus represents the status of a customer
type CustomerStatus string

const (
	CustomerStatusActive   CustomerStatus = "active"
	CustomerStatusInactive CustomerStatus = "inactive"
	CustomerStatusBlocked  CustomerStatus = "blocked" // credit hold
)

// CustomerType represents the trading relationship
type CustomerType string

const (
	CustomerTypeDirect      CustomerType = "direct"
	CustomerTypeDistributor CustomerType = "distributor"
	CustomerTypeAgent       CustomerType = "agent"
)

// IsValid reports whether the type is known
func (t CustomerType) IsValid() bool {
	switch t {
	case CustomerTypeDirect, CustomerTypeDistributor, CustomerTypeAgent:
		return true
	}
	return false
}

// Customer is the buyer master record orders, deliveries and receivables point at
type Customer struct {
	shared.TenantAggregateRoot
	Code            string           `gorm:"type:varchar(50);not null;index"`
	Name            string           `gorm:"type:varchar(200);not null"`
	Type            CustomerType     `gorm:"type:varchar(20);not null;default:'direct'"`
	Status          CustomerStatus   `gorm:"type:varchar(20);not null;default:'active'"`
	Phone           string           `gorm:"type:varchar(50)"`
	Email           string           `gorm:"type:varchar(200)"`
	Address         string           `gorm:"type:text"`
	Province        string           `gorm:"type:varchar(100)"`
	TaxID           string           `gorm:"type:varchar(50)"`
	CreditLimit     *decimal.Decimal `gorm:"type:decimal(18,4)"`
	PaymentTermDays int              `gorm:"not null;default:0"`
	SearchText      string           `gorm:"type:varchar(500);not null;default:''"`
}

// TableName returns the table name for GORM
func (Customer) TableName() string {
	return "customers"
}

var phoneRegex = regexp.MustCompile(`^[0-9+\-\s()]{6,20}$`)

// NewCustomer creates a new active customer
func NewCustomer(tenantID uuid.UUID, code, name string, customerType CustomerType) (*Customer, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" || len(code) > 50 {
		return nil, shared.NewValidationError("INVALID_CODE", "Customer code must be 1-50 characters")
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 200 {
		return nil, shared.NewValidationError("INVALID_NAME", "Customer name must be 1-200 characters")
	}
	if !customerType.IsValid() {
		return nil, shared.NewValidationError("INVALID_TYPE", "Customer type must be direct, distributor or agent")
	}

	customer := &Customer{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Code:                strings.ToUpper(code),
		Name:                name,
		Type:                customerType,
		Status:              CustomerStatusActive,
	}
	customer.refreshSearchText()
	customer.AddDomainEvent(NewCustomerCreatedEvent(customer))

	return customer, nil
}

// Rename changes the customer's display name. Orders keep the name they
// were placed under.
func (c *Customer) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 200 {
		return shared.NewValidationError("INVALID_NAME", "Customer name must be 1-200 characters")
	}
	if name == c.Name {
		return nil
	}
	c.Name = name
	c.touch()
	return nil
}

// SetType changes the trading relationship
func (c *Customer) SetType(customerType CustomerType) error {
	if !customerType.IsValid() {
		return shared.NewValidationError("INVALID_TYPE", "Customer type must be direct, distributor or agent")
	}
	if customerType == c.Type {
		return nil
	}
	c.Type = customerType
	c.touch()
	return nil
}

// SetTaxID sets the tax registration number
func (c *Customer) SetTaxID(taxID string) error {
	taxID = strings.TrimSpace(taxID)
	if len(taxID) > 50 {
		return shared.NewValidationError("INVALID_TAX_ID", "Tax ID cannot exceed 50 characters")
	}
	c.TaxID = taxID
	c.touch()
	return nil
}

// SetContact sets phone, email and address
func (c *Customer) SetContact(phone, email, address, province string) error {
	if phone != "" && !phoneRegex.MatchString(phone) {
		return shared.NewValidationError("INVALID_PHONE", "Invalid phone number format")
	}
	if email != "" && !strings.Contains(email, "@") {
		return shared.NewValidationError("INVALID_EMAIL", "Invalid email format")
	}
	c.Phone = phone
	c.Email = email
	c.Address = address
	c.Province = province
	c.touch()
	return nil
}

// SetCreditTerms sets the credit limit (nil means unlimited) and payment term
func (c *Customer) SetCreditTerms(limit *decimal.Decimal, termDays int) error {
	if limit != nil && limit.IsNegative() {
		return shared.NewValidationError("INVALID_CREDIT_LIMIT", "Credit limit cannot be negative")
	}
	if termDays < 0 {
		return shared.NewValidationError("INVALID_PAYMENT_TERM", "Payment term cannot be negative")
	}
	c.CreditLimit = limit
	c.PaymentTermDays = termDays
	c.touch()
	return nil
}

// Block puts the customer on credit hold
func (c *Customer) Block() error {
	if c.Status == CustomerStatusBlocked {
		return shared.NewInvalidStateError("Customer is already blocked")
	}
	c.Status = CustomerStatusBlocked
	c.touch()
	return nil
}

// Activate re-enables a blocked or inactive customer
func (c *Customer) Activate() error {
	if c.Status == CustomerStatusActive {
		return shared.NewInvalidStateError("Customer is already active")
	}
	c.Status = CustomerStatusActive
	c.touch()
	return nil
}

// Deactivate retires the customer
func (c *Customer) Deactivate() error {
	if c.Status == CustomerStatusInactive {
		return shared.NewInvalidStateError("Customer is already inactive")
	}
	c.Status = CustomerStatusInactive
	c.touch()
	return nil
}

// CanOrder reports whether new orders may be placed
func (c *Customer) CanOrder() bool {
	return c.Status == CustomerStatusActive
}

// DueDateFrom returns the receivable due date for an invoice issued at t
func (c *Customer) DueDateFrom(t time.Time, defaultTermDays int) time.Time {
	days := c.PaymentTermDays
	if days == 0 {
		days = defaultTermDays
	}
	return t.AddDate(0, 0, days)
}

func (c *Customer) touch() {
	c.UpdatedAt = time.Now()
	c.IncrementVersion()
	c.refreshSearchText()
}

func (c *Customer) refreshSearchText() {
	c.SearchText = shared.SearchKey(c.Code, c.Name, c.Phone, c.Email)
}
