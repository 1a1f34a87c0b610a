package inventory

import (
	"context"
	"errors"
	"strings"

	"github.com/erp/distribution/internal/application/txscope"
	"github.com/erp/distribution/internal/application/validate"
	"github.com/erp/distribution/internal/domain/catalog"
	"github.com/erp/distribution/internal/domain/inventory"
	"github.com/erp/distribution/internal/domain/shared"
	"github.com/erp/distribution/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const serviceName = "inventory"

// InventoryService posts stock movements through the ledger and serves
// balance and transaction queries
type InventoryService struct {
	scope               txscope.Scope
	balanceRepo         inventory.BalanceRepository
	transactionRepo     inventory.TransactionRepository
	productRepo         catalog.ProductRepository
	defaultReorderPoint decimal.Decimal
	eventPublisher      shared.EventPublisher
	metrics             *telemetry.BusinessMetrics
	logger              *zap.Logger
}

// NewInventoryService creates a new InventoryService
func NewInventoryService(
	scope txscope.Scope,
	balanceRepo inventory.BalanceRepository,
	transactionRepo inventory.TransactionRepository,
	productRepo catalog.ProductRepository,
	defaultReorderPoint decimal.Decimal,
	logger *zap.Logger,
) *InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryService{
		scope:               scope,
		balanceRepo:         balanceRepo,
		transactionRepo:     transactionRepo,
		productRepo:         productRepo,
		defaultReorderPoint: defaultReorderPoint,
		logger:              logger.Named("inventory_service"),
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *InventoryService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetMetrics sets the business metrics recorder
func (s *InventoryService) SetMetrics(metrics *telemetry.BusinessMetrics) {
	s.metrics = metrics
}

// GetBalance returns the on-hand quantity, zero when nothing was ever posted
func (s *InventoryService) GetBalance(ctx context.Context, tenantID, productID, warehouseID uuid.UUID) (decimal.Decimal, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return decimal.Zero, err
	}
	balance, err := s.balanceRepo.FindByKey(ctx, tenantID, productID, warehouseID)
	if errors.Is(err, shared.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	if err := balance.BelongsTo(tenantID); err != nil {
		return decimal.Zero, err
	}
	return balance.Quantity, nil
}

// GetBalanceDetail returns the full balance row for a key
func (s *InventoryService) GetBalanceDetail(ctx context.Context, tenantID, productID, warehouseID uuid.UUID) (*BalanceResponse, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	balance, err := s.balanceRepo.FindByKey(ctx, tenantID, productID, warehouseID)
	if err != nil {
		return nil, err
	}
	resp := ToBalanceResponse(balance)
	return &resp, nil
}

// Adjust posts a manual in, out or adjustment movement. A request carrying
// an idempotency key the tenant already used returns the original movement
// and posts nothing.
func (s *InventoryService) Adjust(ctx context.Context, tenantID, actorID uuid.UUID, req AdjustRequest) (resp *TransactionResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "adjust", tenantID,
		telemetry.WithAttribute("product_id", req.ProductID),
		telemetry.WithAttribute("movement_type", req.Type),
	)
	defer func() { telemetry.End(span, err) }()

	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	txType := inventory.TransactionType(req.Type)
	if !txType.IsManual() {
		return nil, shared.NewValidationError("INVALID_TRANSACTION_TYPE", "Only in, out and adjustment can be posted manually")
	}
	refType := req.ReferenceType
	if refType == "" {
		refType = inventory.ReferenceTypeManual
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	entry := inventory.Entry{
		TenantID:       tenantID,
		ProductID:      req.ProductID,
		WarehouseID:    req.WarehouseID,
		Type:           txType,
		Quantity:       req.Quantity,
		Reason:         req.Reason,
		ReferenceType:  refType,
		ReferenceID:    req.ReferenceID,
		Notes:          req.Notes,
		ActorID:        actorID,
		IdempotencyKey: key,
	}
	if key != "" {
		if replayed, err := s.replay(ctx, tenantID, key, entry); err != nil || replayed != nil {
			return toReplayedResponse(replayed), err
		}
	}

	var posting *inventory.Posting
	err = s.scope.Execute(ctx, func(repos txscope.Repositories) error {
		ledger := inventory.NewLedger(repos.Balances(), repos.StockTransactions(), s.defaultReorderPoint)
		var postErr error
		posting, postErr = ledger.Post(ctx, entry)
		return postErr
	})
	if err != nil {
		// A concurrent request carrying the same key won the insert.
		if key != "" && shared.IsKind(err, shared.KindConcurrencyConflict) {
			if replayed, rerr := s.replay(ctx, tenantID, key, entry); rerr == nil && replayed != nil {
				return toReplayedResponse(replayed), nil
			}
		}
		s.recordFailure(ctx, tenantID, string(txType), err)
		s.logger.Warn("stock adjustment rejected",
			zap.String("tenant_id", tenantID.String()),
			zap.String("product_id", req.ProductID.String()),
			zap.String("warehouse_id", req.WarehouseID.String()),
			zap.String("type", req.Type),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.RecordStockMovement(ctx, tenantID, string(txType), posting.Transaction.SignedDelta())
	s.logger.Info("stock adjusted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("transaction_id", posting.Transaction.ID.String()),
		zap.String("product_id", req.ProductID.String()),
		zap.String("type", req.Type),
		zap.String("quantity_after", posting.Transaction.QuantityAfter.String()),
	)
	s.publish(ctx, posting.Balance, inventory.NewStockAdjustedEvent(posting))

	out := ToTransactionResponse(posting.Transaction)
	return &out, nil
}

// Transfer moves stock between two locations. Both legs post in one
// database transaction and share a transfer ID. Idempotency keys replay as
// in Adjust.
func (s *InventoryService) Transfer(ctx context.Context, tenantID, actorID uuid.UUID, req TransferRequest) (resp *TransferResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, serviceName, "transfer", tenantID,
		telemetry.WithAttribute("product_id", req.ProductID),
	)
	defer func() { telemetry.End(span, err) }()

	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if req.FromWarehouseID == req.ToWarehouseID {
		return nil, shared.NewValidationError("SAME_WAREHOUSE", "Source and destination warehouses must differ")
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	transferID := uuid.New()
	entry := func(warehouseID uuid.UUID, leg inventory.TransferLeg) inventory.Entry {
		e := inventory.Entry{
			TenantID:      tenantID,
			ProductID:     req.ProductID,
			WarehouseID:   warehouseID,
			Type:          inventory.TransactionTypeTransfer,
			Quantity:      req.Quantity,
			Reason:        req.Reason,
			ReferenceType: inventory.ReferenceTypeTransfer,
			ReferenceID:   transferID.String(),
			Notes:         req.Notes,
			ActorID:       actorID,
			TransferID:    transferID,
			TransferLeg:   leg,
		}
		// the outgoing leg carries the key; the incoming one is found by transfer ID
		if leg == inventory.TransferLegOut {
			e.IdempotencyKey = key
		}
		return e
	}
	if key != "" {
		if replayed, err := s.replayTransfer(ctx, tenantID, key, req, entry(req.FromWarehouseID, inventory.TransferLegOut)); err != nil || replayed != nil {
			return replayed, err
		}
	}

	var debit, credit *inventory.Posting
	err = s.scope.Execute(ctx, func(repos txscope.Repositories) error {
		ledger := inventory.NewLedger(repos.Balances(), repos.StockTransactions(), s.defaultReorderPoint)
		var postErr error
		if debit, postErr = ledger.Post(ctx, entry(req.FromWarehouseID, inventory.TransferLegOut)); postErr != nil {
			return postErr
		}
		credit, postErr = ledger.Post(ctx, entry(req.ToWarehouseID, inventory.TransferLegIn))
		return postErr
	})
	if err != nil {
		if key != "" && shared.IsKind(err, shared.KindConcurrencyConflict) {
			if replayed, rerr := s.replayTransfer(ctx, tenantID, key, req, entry(req.FromWarehouseID, inventory.TransferLegOut)); rerr == nil && replayed != nil {
				return replayed, nil
			}
		}
		s.recordFailure(ctx, tenantID, string(inventory.TransactionTypeTransfer), err)
		s.logger.Warn("stock transfer rejected",
			zap.String("tenant_id", tenantID.String()),
			zap.String("product_id", req.ProductID.String()),
			zap.String("from_warehouse_id", req.FromWarehouseID.String()),
			zap.String("to_warehouse_id", req.ToWarehouseID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.RecordStockMovement(ctx, tenantID, string(inventory.TransactionTypeTransfer), req.Quantity)
	s.logger.Info("stock transferred",
		zap.String("tenant_id", tenantID.String()),
		zap.String("transfer_id", transferID.String()),
		zap.String("product_id", req.ProductID.String()),
		zap.String("quantity", req.Quantity.String()),
	)
	s.publish(ctx, debit.Balance, inventory.NewStockTransferredEvent(
		tenantID, transferID, req.ProductID, req.FromWarehouseID, req.ToWarehouseID, req.Quantity,
	))
	s.publish(ctx, credit.Balance)

	return &TransferResponse{
		TransferID: transferID,
		Debit:      ToTransactionResponse(debit.Transaction),
		Credit:     ToTransactionResponse(credit.Transaction),
	}, nil
}

// ListTransactions returns a page of the ledger, newest first, and the total count
func (s *InventoryService) ListTransactions(ctx context.Context, tenantID uuid.UUID, filter TransactionListFilter) ([]TransactionResponse, int64, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, 0, err
	}
	if err := validate.Struct(filter); err != nil {
		return nil, 0, err
	}
	domainFilter := inventory.TransactionFilter{
		ProductID:      filter.ProductID,
		WarehouseID:    filter.WarehouseID,
		Type:           inventory.TransactionType(filter.Type),
		ReferenceType:  filter.ReferenceType,
		ReferenceID:    filter.ReferenceID,
		IdempotencyKey: filter.IdempotencyKey,
		From:           filter.From,
		To:             filter.To,
		Page:           filter.Page,
		PageSize:       filter.PageSize,
	}

	rows, err := s.transactionRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.transactionRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	out := make([]TransactionResponse, len(rows))
	for i := range rows {
		out[i] = ToTransactionResponse(&rows[i])
	}
	return out, total, nil
}

// GetLowStockItems returns balances at or below their reorder point
func (s *InventoryService) GetLowStockItems(ctx context.Context, tenantID uuid.UUID) ([]BalanceResponse, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	balances, err := s.balanceRepo.FindLowStock(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordLowStock(ctx, tenantID, len(balances))
	return ToBalanceResponses(balances), nil
}

// SetThresholds updates reorder and min/max levels. Quantity is left alone;
// a missing row is created empty.
func (s *InventoryService) SetThresholds(ctx context.Context, tenantID uuid.UUID, req SetThresholdsRequest) (*BalanceResponse, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	balance, err := s.balanceRepo.FindByKey(ctx, tenantID, req.ProductID, req.WarehouseID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		balance, err = inventory.NewInventoryBalance(tenantID, req.ProductID, req.WarehouseID, req.ReorderPoint)
		if err != nil {
			return nil, err
		}
		if err := balance.SetThresholds(req.ReorderPoint, req.MinQuantity, req.MaxQuantity); err != nil {
			return nil, err
		}
		if err := s.balanceRepo.Create(ctx, balance); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := balance.BelongsTo(tenantID); err != nil {
			return nil, err
		}
		if err := balance.SetThresholds(req.ReorderPoint, req.MinQuantity, req.MaxQuantity); err != nil {
			return nil, err
		}
		if err := s.balanceRepo.SaveWithLock(ctx, balance); err != nil {
			if shared.IsKind(err, shared.KindConcurrencyConflict) {
				s.metrics.RecordLockConflict(ctx, tenantID, inventory.AggregateTypeInventoryBalance)
			}
			return nil, err
		}
	}

	s.logger.Info("stock thresholds updated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("product_id", req.ProductID.String()),
		zap.String("warehouse_id", req.WarehouseID.String()),
		zap.String("reorder_point", req.ReorderPoint.String()),
	)
	resp := ToBalanceResponse(balance)
	return &resp, nil
}

// GetStats summarises stock quantity and value. Value uses each product's
// current base price.
func (s *InventoryService) GetStats(ctx context.Context, tenantID uuid.UUID) (*InventoryStats, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	balances, err := s.balanceRepo.FindAllForTenant(ctx, tenantID, inventory.BalanceFilter{})
	if err != nil {
		return nil, err
	}

	productIDs := make([]uuid.UUID, 0, len(balances))
	seen := make(map[uuid.UUID]struct{}, len(balances))
	for _, b := range balances {
		if _, ok := seen[b.ProductID]; !ok {
			seen[b.ProductID] = struct{}{}
			productIDs = append(productIDs, b.ProductID)
		}
	}
	prices := make(map[uuid.UUID]decimal.Decimal, len(productIDs))
	if s.productRepo != nil && len(productIDs) > 0 {
		products, err := s.productRepo.FindByIDs(ctx, tenantID, productIDs)
		if err != nil {
			return nil, err
		}
		for _, p := range products {
			prices[p.ID] = p.BasePrice
		}
	}

	stats := &InventoryStats{
		TotalProducts: len(productIDs),
		TotalQuantity: decimal.Zero,
		TotalValue:    decimal.Zero,
	}
	for i := range balances {
		b := &balances[i]
		stats.TotalQuantity = stats.TotalQuantity.Add(b.Quantity)
		stats.TotalValue = stats.TotalValue.Add(b.Quantity.Mul(prices[b.ProductID]))
		switch {
		case b.IsOutOfStock():
			stats.OutOfStockCount++
		case b.IsLowStock():
			stats.LowStockCount++
		}
	}
	return stats, nil
}

// VerifyBalance replays a key's transaction log and compares the result
// with the stored balance. A mismatch is reported in the result, not as an
// error.
func (s *InventoryService) VerifyBalance(ctx context.Context, tenantID, productID, warehouseID uuid.UUID) (*BalanceVerification, error) {
	if err := shared.RequireTenant(tenantID); err != nil {
		return nil, err
	}
	recorded := decimal.Zero
	balance, err := s.balanceRepo.FindByKey(ctx, tenantID, productID, warehouseID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
	case err != nil:
		return nil, err
	default:
		if err := balance.BelongsTo(tenantID); err != nil {
			return nil, err
		}
		recorded = balance.Quantity
	}
	rows, err := s.transactionRepo.FindByKey(ctx, tenantID, productID, warehouseID)
	if err != nil {
		return nil, err
	}

	r, problem := inventory.Reconcile(recorded, rows)
	resp := &BalanceVerification{
		ProductID:    productID,
		WarehouseID:  warehouseID,
		Recorded:     r.Recorded,
		Replayed:     r.Replayed,
		Transactions: r.Transactions,
		Consistent:   problem == nil,
	}
	if problem != nil {
		resp.Problem = problem.Error()
		s.logger.Error("inventory balance does not match its ledger",
			zap.String("tenant_id", tenantID.String()),
			zap.String("product_id", productID.String()),
			zap.String("warehouse_id", warehouseID.String()),
			zap.String("recorded", r.Recorded.String()),
			zap.String("replayed", r.Replayed.String()),
			zap.Error(problem),
		)
	}
	return resp, nil
}

// replay returns the movement a retry key already produced, or nil when the
// key is new. A key reused for a different movement is rejected.
func (s *InventoryService) replay(ctx context.Context, tenantID uuid.UUID, key string, entry inventory.Entry) (*inventory.InventoryTransaction, error) {
	tx, err := s.transactionRepo.FindByIdempotencyKey(ctx, tenantID, key)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !tx.Repeats(entry) {
		return nil, shared.NewValidationError("IDEMPOTENCY_KEY_REUSED", "Idempotency key "+key+" was already used for a different movement")
	}
	s.logger.Info("stock movement replayed",
		zap.String("tenant_id", tenantID.String()),
		zap.String("transaction_id", tx.ID.String()),
		zap.String("idempotency_key", key),
	)
	return tx, nil
}

func (s *InventoryService) replayTransfer(ctx context.Context, tenantID uuid.UUID, key string, req TransferRequest, out inventory.Entry) (*TransferResponse, error) {
	debit, err := s.replay(ctx, tenantID, key, out)
	if err != nil || debit == nil {
		return nil, err
	}
	if debit.TransferID == nil {
		return nil, shared.NewValidationError("IDEMPOTENCY_KEY_REUSED", "Idempotency key "+key+" was already used for a different movement")
	}
	legs, err := s.transactionRepo.FindByTransferID(ctx, tenantID, *debit.TransferID)
	if err != nil {
		return nil, err
	}
	for i := range legs {
		credit := &legs[i]
		if credit.ID == debit.ID {
			continue
		}
		if credit.WarehouseID != req.ToWarehouseID {
			return nil, shared.NewValidationError("IDEMPOTENCY_KEY_REUSED", "Idempotency key "+key+" was already used for a transfer to another warehouse")
		}
		return &TransferResponse{
			TransferID: *debit.TransferID,
			Debit:      ToTransactionResponse(debit),
			Credit:     ToTransactionResponse(credit),
			Replayed:   true,
		}, nil
	}
	return nil, shared.NewNotFoundError("Transfer leg")
}

func toReplayedResponse(tx *inventory.InventoryTransaction) *TransactionResponse {
	if tx == nil {
		return nil
	}
	out := ToTransactionResponse(tx)
	out.Replayed = true
	return &out
}

func (s *InventoryService) recordFailure(ctx context.Context, tenantID uuid.UUID, movementType string, err error) {
	switch shared.KindOf(err) {
	case shared.KindInsufficientStock:
		s.metrics.RecordStockRejected(ctx, tenantID, movementType)
	case shared.KindConcurrencyConflict:
		s.metrics.RecordLockConflict(ctx, tenantID, inventory.AggregateTypeInventoryBalance)
	}
}

// publish sends the balance's pending events plus any extras. The ledger
// change is already committed, so a failing handler is only logged.
func (s *InventoryService) publish(ctx context.Context, balance *inventory.InventoryBalance, extra ...shared.DomainEvent) {
	if err := shared.PublishAndClear(ctx, s.eventPublisher, balance); err != nil {
		s.logger.Warn("publish balance events", zap.String("balance_id", balance.ID.String()), zap.Error(err))
	}
	if s.eventPublisher == nil || len(extra) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, extra...); err != nil {
		s.logger.Warn("publish inventory events", zap.Error(err))
	}
}
