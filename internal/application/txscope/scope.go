// Package txscope defines the unit-of-work boundary application services use
// to make multi-aggregate writes atomic.
package txscope

import (
	"context"

	"github.com/erp/distribution/internal/domain/finance"
	"github.com/erp/distribution/internal/domain/inventory"
	"github.com/erp/distribution/internal/domain/logistics"
	"github.com/erp/distribution/internal/domain/shared"
	"github.com/erp/distribution/internal/domain/trade"
)

// Repositories exposes repositories bound to one database transaction
type Repositories interface {
	Balances() inventory.BalanceRepository
	StockTransactions() inventory.TransactionRepository
	Orders() trade.SalesOrderRepository
	Deliveries() logistics.DeliveryRepository
	Tracking() logistics.TrackingRepository
	Receivables() finance.ReceivableRepository
	Payments() finance.PaymentRepository
	Sequences() shared.SequenceRepository
	Outbox() shared.OutboxRepository
}

// Scope runs fn in a transaction. A non-nil error from fn rolls everything
// back; otherwise the transaction commits.
type Scope interface {
	Execute(ctx context.Context, fn func(repos Repositories) error) error
}
