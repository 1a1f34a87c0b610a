package partner

import (
	"context"

	"github.com/erp/distribution/internal/application/validate"
	"github.com/erp/distribution/internal/domain/partner"
	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WarehouseService handles warehouse-related business operations
type WarehouseService struct {
	warehouseRepo partner.WarehouseRepository
	logger        *zap.Logger
}

// NewWarehouseService creates a new WarehouseService
func NewWarehouseService(warehouseRepo partner.WarehouseRepository, logger *zap.Logger) *WarehouseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WarehouseService{
		warehouseRepo: warehouseRepo,
		logger:        logger.Named("warehouse_service"),
	}
}

// Create creates a new warehouse
func (s *WarehouseService) Create(ctx context.Context, tenantID uuid.UUID, req CreateWarehouseRequest) (*WarehouseResponse, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	warehouse, err := partner.NewWarehouse(tenantID, req.Name, req.Code, req.Address)
	if err != nil {
		return nil, err
	}
	if err := s.warehouseRepo.Save(ctx, warehouse); err != nil {
		if shared.IsKind(err, shared.KindConcurrencyConflict) {
			return nil, shared.NewValidationError("DUPLICATE_CODE", "Warehouse with code "+warehouse.Code+" already exists").WithCause(err)
		}
		return nil, err
	}

	s.logger.Info("warehouse created",
		zap.String("tenant_id", tenantID.String()),
		zap.String("warehouse_id", warehouse.ID.String()),
		zap.String("code", warehouse.Code),
	)
	out := ToWarehouseResponse(warehouse)
	return &out, nil
}

// GetByID retrieves a warehouse by ID
func (s *WarehouseService) GetByID(ctx context.Context, tenantID, warehouseID uuid.UUID) (*WarehouseResponse, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	warehouse, err := s.warehouseRepo.FindByIDForTenant(ctx, tenantID, warehouseID)
	if err != nil {
		return nil, err
	}
	out := ToWarehouseResponse(warehouse)
	return &out, nil
}

// List returns the tenant's active warehouses
func (s *WarehouseService) List(ctx context.Context, tenantID uuid.UUID) ([]WarehouseResponse, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	warehouses, err := s.warehouseRepo.FindActive(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]WarehouseResponse, len(warehouses))
	for i := range warehouses {
		out[i] = ToWarehouseResponse(&warehouses[i])
	}
	return out, nil
}
