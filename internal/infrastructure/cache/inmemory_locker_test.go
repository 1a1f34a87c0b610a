package cache

import (
	"context"
	"testing"
	"time"

	"github.com/erp/distribution/internal/domain/shared"
	"github.com/erp/distribution/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLocker(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	locker := NewInMemoryLocker()
	locker.clock = clock.Now

	first, err := locker.Obtain(ctx, "event:abc", time.Minute)
	require.NoError(t, err)

	_, err = locker.Obtain(ctx, "event:abc", time.Minute)
	assert.ErrorIs(t, err, shared.ErrLockNotObtained)

	other, err := locker.Obtain(ctx, "event:def", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, first.Release(ctx))
	second, err := locker.Obtain(ctx, "event:abc", time.Minute)
	require.NoError(t, err)

	// An expired lease can be taken over; the stale holder's release is a no-op.
	clock.Advance(2 * time.Minute)
	third, err := locker.Obtain(ctx, "event:abc", time.Minute)
	require.NoError(t, err)
	require.NoError(t, second.Release(ctx))

	_, err = locker.Obtain(ctx, "event:abc", time.Minute)
	assert.ErrorIs(t, err, shared.ErrLockNotObtained)
	require.NoError(t, third.Release(ctx))
}

func TestNewBackend_Disabled(t *testing.T) {
	backend, err := NewBackend(context.Background(), configDisabled())
	require.NoError(t, err)
	defer backend.Close()

	assert.False(t, backend.Distributed())
	assert.IsType(t, &InMemoryIdempotencyStore{}, backend.Store)
	assert.IsType(t, &InMemoryLocker{}, backend.Locker)
}

func TestNewBackend_UnreachableRedis(t *testing.T) {
	cfg := configDisabled()
	cfg.Enabled = true
	cfg.Host = "127.0.0.1"
	cfg.Port = 1

	backend, err := NewBackend(context.Background(), cfg)
	require.NoError(t, err)
	defer backend.Close()
	assert.False(t, backend.Distributed())

	_, err = NewBackend(context.Background(), cfg, WithInMemoryFallback(false))
	assert.Error(t, err)
}

func configDisabled() config.RedisConfig {
	return config.RedisConfig{Host: "localhost", Port: 6379}
}
