package partner

import (
	"time"

	"github.com/erp/distribution/internal/domain/partner"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateCustomerRequest represents a request to create a customer
type CreateCustomerRequest struct {
	Code            string           `json:"code" validate:"required,max=50"`
	Name            string           `json:"name" validate:"required,max=200"`
	Type            string           `json:"type" validate:"omitempty,oneof=direct distributor agent"`
	Phone           string           `json:"phone" validate:"max=50"`
	Email           string           `json:"email" validate:"omitempty,email"`
	Address         string           `json:"address"`
	Province        string           `json:"province" validate:"max=100"`
	TaxID           string           `json:"tax_id" validate:"max=50"`
	CreditLimit     *decimal.Decimal `json:"credit_limit"`
	PaymentTermDays int              `json:"payment_term_days" validate:"gte=0,lte=365"`
}

// UpdateCustomerRequest changes the fields that are set. Code is immutable.
// ClearCreditLimit removes the limit, which means unlimited credit.
type UpdateCustomerRequest struct {
	Name             *string          `json:"name" validate:"omitempty,max=200"`
	Type             *string          `json:"type" validate:"omitempty,oneof=direct distributor agent"`
	Phone            *string          `json:"phone" validate:"omitempty,max=50"`
	Email            *string          `json:"email" validate:"omitempty,email"`
	Address          *string          `json:"address"`
	Province         *string          `json:"province" validate:"omitempty,max=100"`
	TaxID            *string          `json:"tax_id" validate:"omitempty,max=50"`
	CreditLimit      *decimal.Decimal `json:"credit_limit"`
	ClearCreditLimit bool             `json:"clear_credit_limit"`
	PaymentTermDays  *int             `json:"payment_term_days" validate:"omitempty,gte=0,lte=365"`
}

// CustomerListFilter represents filter options for customer list
type CustomerListFilter struct {
	Search   string `json:"search"`
	Status   string `json:"status" validate:"omitempty,oneof=active inactive blocked"`
	Type     string `json:"type" validate:"omitempty,oneof=direct distributor agent"`
	Page     int    `json:"page" validate:"gte=0"`
	PageSize int    `json:"page_size" validate:"gte=0,lte=100"`
}

// CustomerResponse represents a customer in API responses
type CustomerResponse struct {
	ID              uuid.UUID              `json:"id"`
	TenantID        uuid.UUID              `json:"tenant_id"`
	Code            string                 `json:"code"`
	Name            string                 `json:"name"`
	Type            partner.CustomerType   `json:"type"`
	Status          partner.CustomerStatus `json:"status"`
	Phone           string                 `json:"phone,omitempty"`
	Email           string                 `json:"email,omitempty"`
	Address         string                 `json:"address,omitempty"`
	Province        string                 `json:"province,omitempty"`
	TaxID           string                 `json:"tax_id,omitempty"`
	CreditLimit     *decimal.Decimal       `json:"credit_limit,omitempty"`
	PaymentTermDays int                    `json:"payment_term_days"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
	Version         int                    `json:"version"`
}

// CustomerStats counts customers by status and type
type CustomerStats struct {
	Total    int                          `json:"total"`
	Active   int                          `json:"active"`
	Inactive int                          `json:"inactive"`
	Blocked  int                          `json:"blocked"`
	ByType   map[partner.CustomerType]int `json:"by_type"`
}

// CreateWarehouseRequest represents a request to create a warehouse.
// An empty code is derived from the name.
type CreateWarehouseRequest struct {
	Name    string `json:"name" validate:"required,max=100"`
	Code    string `json:"code" validate:"max=50"`
	Address string `json:"address"`
}

// WarehouseResponse represents a warehouse in API responses
type WarehouseResponse struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// ToCustomerResponse converts a domain customer to a response
func ToCustomerResponse(c *partner.Customer) CustomerResponse {
	return CustomerResponse{
		ID:              c.ID,
		TenantID:        c.TenantID,
		Code:            c.Code,
		Name:            c.Name,
		Type:            c.Type,
		Status:          c.Status,
		Phone:           c.Phone,
		Email:           c.Email,
		Address:         c.Address,
		Province:        c.Province,
		TaxID:           c.TaxID,
		CreditLimit:     c.CreditLimit,
		PaymentTermDays: c.PaymentTermDays,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
		Version:         c.Version,
	}
}

// ToWarehouseResponse converts a domain warehouse to a response
func ToWarehouseResponse(w *partner.Warehouse) WarehouseResponse {
	return WarehouseResponse{
		ID:        w.ID,
		Code:      w.Code,
		Name:      w.Name,
		Address:   w.Address,
		Active:    w.Active,
		CreatedAt: w.CreatedAt,
	}
}
