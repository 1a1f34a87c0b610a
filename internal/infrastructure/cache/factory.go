package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/distribution/internal/domain/shared"
	"github.com/erp/distribution/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Backend bundles the idempotency store and locker event handlers share
type Backend struct {
	Store  shared.IdempotencyStore
	Locker shared.Locker
	client *redis.Client
}

// Distributed reports whether the backend is shared through Redis
func (b *Backend) Distributed() bool {
	return b.client != nil
}

// Close releases the store and the Redis client, if any
func (b *Backend) Close() error {
	err := b.Store.Close()
	if b.client != nil {
		err = errors.Join(err, b.client.Close())
	}
	return err
}

// FactoryOption configures NewBackend
type FactoryOption func(*factory)

type factory struct {
	logger                *zap.Logger
	allowInMemoryFallback bool
	pingTimeout           time.Duration
}

// WithLogger sets the logger used to report the chosen backend
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to
// process memory instead of failing. Default true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewBackend builds a Redis backend when cfg.Enabled, else an in-memory one
func NewBackend(ctx context.Context, cfg config.RedisConfig, opts ...FactoryOption) (*Backend, error) {
	f := &factory{
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		pingTimeout:           5 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}

	if !cfg.Enabled {
		f.logger.Info("using in-memory idempotency store")
		return NewInMemoryBackend(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, f.pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("redis required for idempotency but unavailable: %w", err)
		}
		f.logger.Warn("redis unavailable, falling back to in-memory idempotency store",
			zap.String("addr", cfg.Addr()),
			zap.Error(err),
		)
		return NewInMemoryBackend(), nil
	}

	f.logger.Info("using redis idempotency store", zap.String("addr", cfg.Addr()))
	return &Backend{
		Store:  NewRedisIdempotencyStore(client, ""),
		Locker: NewRedisLocker(client, ""),
		client: client,
	}, nil
}

// NewInMemoryBackend returns a process-local backend
func NewInMemoryBackend() *Backend {
	return &Backend{
		Store:  NewInMemoryIdempotencyStore(0),
		Locker: NewInMemoryLocker(),
	}
}
