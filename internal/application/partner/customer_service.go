package partner

import (
	"context"

	"github.com/erp/distribution/internal/application/validate"
	"github.com/erp/distribution/internal/domain/partner"
	"github.com/erp/distribution/internal/domain/shared"
	"github.com/erp/distribution/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CustomerService handles customer-related business operations. It is also
// the customer reader orders use for snapshots.
type CustomerService struct {
	customerRepo   partner.CustomerRepository
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewCustomerService creates a new CustomerService
func NewCustomerService(customerRepo partner.CustomerRepository, logger *zap.Logger) *CustomerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerService{
		customerRepo: customerRepo,
		logger:       logger.Named("customer_service"),
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *CustomerService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Create creates a new customer
func (s *CustomerService) Create(ctx context.Context, tenantID uuid.UUID, req CreateCustomerRequest) (resp *CustomerResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "customer", "create", tenantID)
	defer func() { telemetry.End(span, err) }()

	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	customerType := partner.CustomerTypeDirect
	if req.Type != "" {
		customerType = partner.CustomerType(req.Type)
	}
	customer, err := partner.NewCustomer(tenantID, req.Code, req.Name, customerType)
	if err != nil {
		return nil, err
	}
	if err := customer.SetContact(req.Phone, req.Email, req.Address, req.Province); err != nil {
		return nil, err
	}
	if err := customer.SetCreditTerms(req.CreditLimit, req.PaymentTermDays); err != nil {
		return nil, err
	}
	if err := customer.SetTaxID(req.TaxID); err != nil {
		return nil, err
	}

	if err := s.customerRepo.Save(ctx, customer); err != nil {
		if shared.IsKind(err, shared.KindConcurrencyConflict) {
			return nil, shared.NewValidationError("DUPLICATE_CODE", "Customer with code "+customer.Code+" already exists").WithCause(err)
		}
		return nil, err
	}

	s.logger.Info("customer created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("customer_id", customer.ID.String()),
		zap.String("code", customer.Code),
	)
	if err := shared.PublishAndClear(ctx, s.eventPublisher, customer); err != nil {
		s.logger.Warn("publish customer events", zap.Error(err))
	}

	out := ToCustomerResponse(customer)
	return &out, nil
}

// GetByID retrieves a customer by ID
func (s *CustomerService) GetByID(ctx context.Context, tenantID, customerID uuid.UUID) (*CustomerResponse, error) {
	customer, err := s.GetCustomer(ctx, tenantID, customerID)
	if err != nil {
		return nil, err
	}
	out := ToCustomerResponse(customer)
	return &out, nil
}

// GetCustomer returns the domain customer, checked against tenantID
func (s *CustomerService) GetCustomer(ctx context.Context, tenantID, customerID uuid.UUID) (*partner.Customer, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	customer, err := s.customerRepo.FindByIDForTenant(ctx, tenantID, customerID)
	if err != nil {
		return nil, err
	}
	if err := customer.BelongsTo(tenantID); err != nil {
		return nil, err
	}
	return customer, nil
}

// List returns a page of customers and the total matching count. Search
// matches code, name, phone or email ignoring case and diacritics.
func (s *CustomerService) List(ctx context.Context, tenantID uuid.UUID, filter CustomerListFilter) ([]CustomerResponse, int64, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, 0, err
	}
	if err := validate.Struct(filter); err != nil {
		return nil, 0, err
	}

	query := partner.CustomerFilter{
		Status:   partner.CustomerStatus(filter.Status),
		Type:     partner.CustomerType(filter.Type),
		Search:   filter.Search,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}
	customers, err := s.customerRepo.FindAllForTenant(ctx, tenantID, query)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.customerRepo.CountForTenant(ctx, tenantID, query)
	if err != nil {
		return nil, 0, err
	}

	out := make([]CustomerResponse, len(customers))
	for i := range customers {
		out[i] = ToCustomerResponse(&customers[i])
	}
	return out, total, nil
}

// Update edits a customer's master data. Orders already placed keep the
// name and address they were created with.
func (s *CustomerService) Update(ctx context.Context, tenantID, customerID uuid.UUID, req UpdateCustomerRequest) (resp *CustomerResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "customer", "update", tenantID)
	defer func() { telemetry.End(span, err) }()

	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	customer, err := s.GetCustomer(ctx, tenantID, customerID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if err := customer.Rename(*req.Name); err != nil {
			return nil, err
		}
	}
	if req.Type != nil {
		if err := customer.SetType(partner.CustomerType(*req.Type)); err != nil {
			return nil, err
		}
	}
	if req.Phone != nil || req.Email != nil || req.Address != nil || req.Province != nil {
		if err := customer.SetContact(
			valueOr(req.Phone, customer.Phone),
			valueOr(req.Email, customer.Email),
			valueOr(req.Address, customer.Address),
			valueOr(req.Province, customer.Province),
		); err != nil {
			return nil, err
		}
	}
	if req.TaxID != nil {
		if err := customer.SetTaxID(*req.TaxID); err != nil {
			return nil, err
		}
	}
	if req.CreditLimit != nil || req.ClearCreditLimit || req.PaymentTermDays != nil {
		limit := customer.CreditLimit
		switch {
		case req.ClearCreditLimit:
			limit = nil
		case req.CreditLimit != nil:
			limit = req.CreditLimit
		}
		if err := customer.SetCreditTerms(limit, valueOr(req.PaymentTermDays, customer.PaymentTermDays)); err != nil {
			return nil, err
		}
	}

	if err := s.customerRepo.SaveWithLock(ctx, customer); err != nil {
		return nil, err
	}

	s.logger.Info("customer updated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("customer_id", customerID.String()),
		zap.Int("version", customer.Version),
	)
	out := ToCustomerResponse(customer)
	return &out, nil
}

func valueOr[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}

// Block puts a customer on credit hold
func (s *CustomerService) Block(ctx context.Context, tenantID, customerID uuid.UUID) (*CustomerResponse, error) {
	return s.changeStatus(ctx, tenantID, customerID, (*partner.Customer).Block)
}

// Activate re-enables a blocked or inactive customer
func (s *CustomerService) Activate(ctx context.Context, tenantID, customerID uuid.UUID) (*CustomerResponse, error) {
	return s.changeStatus(ctx, tenantID, customerID, (*partner.Customer).Activate)
}

// Deactivate retires a customer
func (s *CustomerService) Deactivate(ctx context.Context, tenantID, customerID uuid.UUID) (*CustomerResponse, error) {
	return s.changeStatus(ctx, tenantID, customerID, (*partner.Customer).Deactivate)
}

func (s *CustomerService) changeStatus(ctx context.Context, tenantID, customerID uuid.UUID, change func(*partner.Customer) error) (*CustomerResponse, error) {
	customer, err := s.GetCustomer(ctx, tenantID, customerID)
	if err != nil {
		return nil, err
	}
	if err := change(customer); err != nil {
		return nil, err
	}
	if err := s.customerRepo.SaveWithLock(ctx, customer); err != nil {
		return nil, err
	}

	s.logger.Info("customer status changed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("customer_id", customerID.String()),
		zap.String("status", string(customer.Status)),
	)
	out := ToCustomerResponse(customer)
	return &out, nil
}

// GetStats counts the tenant's customers
func (s *CustomerService) GetStats(ctx context.Context, tenantID uuid.UUID) (*CustomerStats, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	customers, err := s.customerRepo.FindAllForTenant(ctx, tenantID, partner.CustomerFilter{})
	if err != nil {
		return nil, err
	}

	stats := &CustomerStats{Total: len(customers), ByType: make(map[partner.CustomerType]int)}
	for _, c := range customers {
		switch c.Status {
		case partner.CustomerStatusActive:
			stats.Active++
		case partner.CustomerStatusInactive:
			stats.Inactive++
		case partner.CustomerStatusBlocked:
			stats.Blocked++
		}
		stats.ByType[c.Type]++
	}
	return stats, nil
}
