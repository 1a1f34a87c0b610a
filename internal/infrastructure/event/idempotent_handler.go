package event

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/erp/distribution/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotencyMetrics counts outcomes of an IdempotentHandler
type IdempotencyMetrics struct {
	EventsProcessed atomic.Int64
	EventsDuplicate atomic.Int64
	EventsFailed    atomic.Int64
}

// IdempotencyStats is a snapshot of IdempotencyMetrics
type IdempotencyStats struct {
	EventsProcessed int64 `json:"events_processed"`
	EventsDuplicate int64 `json:"events_duplicate"`
	EventsFailed    int64 `json:"events_failed"`
}

// Stats returns a snapshot of the counters
func (m *IdempotencyMetrics) Stats() IdempotencyStats {
	return IdempotencyStats{
		EventsProcessed: m.EventsProcessed.Load(),
		EventsDuplicate: m.EventsDuplicate.Load(),
		EventsFailed:    m.EventsFailed.Load(),
	}
}

// IdempotentHandler runs the wrapped handler at most once per event.
//
// The key is "<name>:<event id>", so two handlers subscribed to the same
// event keep separate records. A key is recorded only after the wrapped
// handler succeeds; a failed event stays eligible for redelivery. While the
// handler runs, a lease on the key keeps a concurrent redelivery from running
// it a second time.
type IdempotentHandler struct {
	name    string
	handler shared.EventHandler
	store   shared.IdempotencyStore
	locker  shared.Locker
	config  shared.IdempotencyConfig
	lockTTL time.Duration
	logger  *zap.Logger
	metrics *IdempotencyMetrics
}

// IdempotentHandlerOption configures an IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithIdempotencyConfig sets TTL and the enabled flag
func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.config = config
	}
}

// WithIdempotencyMetrics shares a metrics collector between handlers
func WithIdempotencyMetrics(metrics *IdempotencyMetrics) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.metrics = metrics
	}
}

// WithLocker guards in-flight events with leases of the given ttl
func WithLocker(locker shared.Locker, ttl time.Duration) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.locker = locker
		if ttl > 0 {
			h.lockTTL = ttl
		}
	}
}

// NewIdempotentHandler wraps handler under name
func NewIdempotentHandler(
	name string,
	handler shared.EventHandler,
	store shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...IdempotentHandlerOption,
) *IdempotentHandler {
	h := &IdempotentHandler{
		name:    name,
		handler: handler,
		store:   store,
		config:  shared.DefaultIdempotencyConfig(),
		lockTTL: 30 * time.Second,
		logger:  logger,
		metrics: &IdempotencyMetrics{},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(zap.String("handler", name))
	return h
}

// EventTypes returns the wrapped handler's event types
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle processes event unless it was already handled under this name
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.handler.Handle(ctx, event)
	}

	key := h.name + ":" + event.EventID().String()
	fields := []zap.Field{
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
		zap.String("tenant_id", event.TenantID().String()),
	}

	seen, err := h.store.IsProcessed(ctx, key)
	if err != nil {
		h.logger.Warn("idempotency check failed, processing anyway", append(fields, zap.Error(err))...)
	} else if seen {
		h.metrics.EventsDuplicate.Add(1)
		h.logger.Debug("duplicate event skipped", fields...)
		return nil
	}

	if h.locker != nil {
		lock, err := h.locker.Obtain(ctx, key, h.lockTTL)
		switch {
		case errors.Is(err, shared.ErrLockNotObtained):
			h.metrics.EventsDuplicate.Add(1)
			h.logger.Debug("event already in flight, skipped", fields...)
			return nil
		case err != nil:
			h.logger.Warn("event lock unavailable, processing unguarded", append(fields, zap.Error(err))...)
		default:
			defer func() {
				if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
					h.logger.Warn("release event lock", append(fields, zap.Error(err))...)
				}
			}()
			// A holder that finished between the first check and Obtain has
			// already recorded the key.
			if seen, err := h.store.IsProcessed(ctx, key); err == nil && seen {
				h.metrics.EventsDuplicate.Add(1)
				return nil
			}
		}
	}

	if err := h.handler.Handle(ctx, event); err != nil {
		h.metrics.EventsFailed.Add(1)
		h.logger.Error("event handler failed", append(fields, zap.Error(err))...)
		return err
	}

	if _, err := h.store.MarkProcessed(ctx, key, h.config.TTL); err != nil {
		h.logger.Warn("record processed event", append(fields, zap.Error(err))...)
	}
	h.metrics.EventsProcessed.Add(1)
	return nil
}

// Name returns the key prefix the handler records events under
func (h *IdempotentHandler) Name() string {
	return h.name
}

// Metrics returns the counters for this handler
func (h *IdempotentHandler) Metrics() *IdempotencyMetrics {
	return h.metrics
}

// Unwrap returns the wrapped handler
func (h *IdempotentHandler) Unwrap() shared.EventHandler {
	return h.handler
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
