// Package bootstrap assembles the ledger core from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	catalogapp "github.com/erp/distribution/internal/application/catalog"
	financeapp "github.com/erp/distribution/internal/application/finance"
	inventoryapp "github.com/erp/distribution/internal/application/inventory"
	logisticsapp "github.com/erp/distribution/internal/application/logistics"
	partnerapp "github.com/erp/distribution/internal/application/partner"
	tradeapp "github.com/erp/distribution/internal/application/trade"
	"github.com/erp/distribution/internal/domain/shared"
	"github.com/erp/distribution/internal/infrastructure/cache"
	"github.com/erp/distribution/internal/infrastructure/config"
	"github.com/erp/distribution/internal/infrastructure/event"
	"github.com/erp/distribution/internal/infrastructure/logger"
	"github.com/erp/distribution/internal/infrastructure/persistence"
	"github.com/erp/distribution/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds every service of the ledger core and the infrastructure they share
type App struct {
	Products    *catalogapp.ProductService
	Customers   *partnerapp.CustomerService
	Warehouses  *partnerapp.WarehouseService
	Inventory   *inventoryapp.InventoryService
	Orders      *tradeapp.SalesOrderService
	Deliveries  *logisticsapp.DeliveryService
	Receivables *financeapp.ReceivableService

	DB        *gorm.DB
	Bus       *event.InMemoryEventBus
	Outbox    *event.OutboxProcessor
	Cache     *cache.Backend
	Telemetry *telemetry.Providers
	Logger    *zap.Logger

	handlers []*event.IdempotentHandler
	ownsDB   *persistence.Database
}

// Option customises New
type Option func(*options)

type options struct {
	db     *gorm.DB
	logger *zap.Logger
	clock  shared.Clock
}

// WithDB uses an already opened database instead of connecting to
// cfg.Database. The caller keeps ownership of db.
func WithDB(db *gorm.DB) Option {
	return func(o *options) { o.db = db }
}

// WithLogger replaces the logger built from cfg.Log
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the clock receivables use for due dates and aging
func WithClock(c shared.Clock) Option {
	return func(o *options) { o.clock = c }
}

// New wires the application. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	app := &App{}
	defer func() {
		if err != nil {
			err = errors.Join(err, app.Close(context.WithoutCancel(ctx)))
		}
	}()

	base := o.logger
	if base == nil {
		base, err = logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}
	app.Telemetry, err = telemetry.Setup(ctx, cfg.Telemetry, base)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	app.Logger = base
	if o.logger == nil && app.Telemetry.Logs.IsEnabled() {
		app.Logger, err = logger.New(
			&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output},
			logger.WithCore(app.Telemetry.Logs.ZapCore()),
		)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}
	log := app.Logger.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))

	app.DB = o.db
	if app.DB == nil {
		gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
			logger.WithSlowThreshold(cfg.Database.SlowQueryThresh))
		app.ownsDB, err = persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormLog))
		if err != nil {
			return nil, err
		}
		app.DB = app.ownsDB.DB
		log.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.DBName),
		)
	}
	if err := app.Telemetry.InstrumentDB(app.DB); err != nil {
		return nil, fmt.Errorf("instrument database: %w", err)
	}

	if err := persistence.BackfillSearchText(ctx, app.DB, log); err != nil {
		return nil, err
	}

	app.Cache, err = cache.NewBackend(ctx, cfg.Redis, cache.WithLogger(log))
	if err != nil {
		return nil, err
	}

	app.wireServices(cfg, o, log)
	app.Bus = event.NewInMemoryEventBus(log)
	app.subscribeHandlers(cfg, log)
	app.setPublishers()
	app.wireOutbox(cfg, log)

	if err := app.Bus.Start(ctx); err != nil {
		return nil, fmt.Errorf("start event bus: %w", err)
	}
	if err := app.Outbox.Start(context.WithoutCancel(ctx)); err != nil {
		return nil, fmt.Errorf("start outbox processor: %w", err)
	}
	log.Info("ledger core ready", zap.Bool("distributed_cache", app.Cache.Distributed()))
	return app, nil
}

func (a *App) wireServices(cfg *config.Config, o *options, log *zap.Logger) {
	db := a.DB
	scope := persistence.NewGormTransactionScope(db)
	productRepo := persistence.NewGormProductRepository(db)
	warehouseRepo := persistence.NewGormWarehouseRepository(db)
	ledger := cfg.Ledger

	a.Products = catalogapp.NewProductService(productRepo, persistence.NewGormCategoryRepository(db), log)
	a.Customers = partnerapp.NewCustomerService(persistence.NewGormCustomerRepository(db), log)
	a.Warehouses = partnerapp.NewWarehouseService(warehouseRepo, log)
	a.Inventory = inventoryapp.NewInventoryService(
		scope,
		persistence.NewGormBalanceRepository(db),
		persistence.NewGormInventoryTransactionRepository(db),
		productRepo,
		ledger.DefaultReorderPoint,
		log,
	)
	a.Orders = tradeapp.NewSalesOrderService(
		scope,
		persistence.NewGormSalesOrderRepository(db),
		a.Products,
		a.Customers,
		ledger.OrderPrefix,
		log,
	)
	a.Deliveries = logisticsapp.NewDeliveryService(
		scope,
		persistence.NewGormDeliveryRepository(db),
		persistence.NewGormTrackingRepository(db),
		warehouseRepo,
		ledger.DeliveryPrefix,
		ledger.DefaultReorderPoint,
		log,
	)
	a.Receivables = financeapp.NewReceivableService(
		scope,
		persistence.NewGormReceivableRepository(db),
		persistence.NewGormPaymentRepository(db),
		a.Customers,
		ledger.ReceivablePrefix,
		ledger.PaymentPrefix,
		ledger.DefaultPaymentTermDays,
		log,
	)
	a.Receivables.SetLocker(a.Cache.Locker, 0)
	if o.clock != nil {
		a.Receivables.SetClock(o.clock)
	}
}

func (a *App) subscribeHandlers(cfg *config.Config, log *zap.Logger) {
	idem := shared.IdempotencyConfig{TTL: cfg.Ledger.EventIdempotencyTTL, Enabled: true}
	wrap := func(name string, h shared.EventHandler) {
		ih := event.NewIdempotentHandler(name, h, a.Cache.Store, log,
			event.WithIdempotencyConfig(idem),
			event.WithLocker(a.Cache.Locker, 0),
		)
		a.handlers = append(a.handlers, ih)
		a.Bus.Subscribe(ih)
	}

	wrap("order_on_delivery_started", tradeapp.NewDeliveryStartedHandler(a.Orders, log))
	wrap("order_on_delivery_completed", tradeapp.NewDeliveryCompletedHandler(a.Orders, log))
	wrap("receivable_on_delivery_completed", financeapp.NewDeliveryCompletedHandler(a.Receivables, log))

	alerts := inventoryapp.NewStockBelowReorderPointHandler(log).
		WithNotifier(inventoryapp.NewLoggingStockAlertNotifier(log))
	a.Bus.Subscribe(alerts)
}

func (a *App) setPublishers() {
	metrics := a.Telemetry.Business
	a.Products.SetEventPublisher(a.Bus)
	a.Customers.SetEventPublisher(a.Bus)
	a.Inventory.SetEventPublisher(a.Bus)
	a.Inventory.SetMetrics(metrics)
	a.Orders.SetEventPublisher(a.Bus)
	a.Orders.SetMetrics(metrics)
	a.Deliveries.SetEventPublisher(a.Bus)
	a.Deliveries.SetMetrics(metrics)
	a.Receivables.SetEventPublisher(a.Bus)
	a.Receivables.SetMetrics(metrics)
}

// wireOutbox stages delivery completions in the outbox table so the order
// and receivable handlers see them even when the first dispatch fails
func (a *App) wireOutbox(cfg *config.Config, log *zap.Logger) {
	serializer := event.NewEventSerializer()
	event.RegisterOutboxEvents(serializer)
	a.Outbox = event.NewOutboxProcessor(
		persistence.NewGormOutboxRepository(a.DB),
		a.Bus,
		serializer,
		event.OutboxProcessorConfig{
			BatchSize:        cfg.Outbox.BatchSize,
			PollInterval:     cfg.Outbox.PollInterval,
			ClaimTimeout:     cfg.Outbox.ClaimTimeout,
			CleanupRetention: cfg.Outbox.CleanupRetention,
		},
		log,
	)
	a.Deliveries.SetOutbox(a.Outbox)
}

// HandlerStats reports deduplication counters per wrapped event handler
func (a *App) HandlerStats() map[string]event.IdempotencyStats {
	out := make(map[string]event.IdempotencyStats, len(a.handlers))
	for _, h := range a.handlers {
		out[h.Name()] = h.Metrics().Stats()
	}
	return out
}

// Close stops the outbox and the bus and releases the cache, database and telemetry
// providers. It is safe on a partially built App.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Outbox != nil {
		errs = append(errs, a.Outbox.Stop(ctx))
	}
	if a.Bus != nil {
		errs = append(errs, a.Bus.Stop(ctx))
	}
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.ownsDB != nil {
		errs = append(errs, a.ownsDB.Close())
	}
	if a.Telemetry != nil {
		errs = append(errs, a.Telemetry.Shutdown(ctx))
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}
