package shared

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	t.Run("matches by kind", func(t *testing.T) {
		err := NewNotFoundError("Sales order")
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.False(t, errors.Is(err, ErrInvalidState))
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		err := fmt.Errorf("load order: %w", NewConcurrencyConflictError("Sales order"))
		assert.True(t, errors.Is(err, ErrConcurrencyConflict))
		assert.Equal(t, KindConcurrencyConflict, KindOf(err))
	})

	t.Run("cause is preserved", func(t *testing.T) {
		err := NewUpstreamUnavailableError(context.DeadlineExceeded)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
		assert.True(t, IsRetryable(err))
		assert.Contains(t, err.Error(), "deadline exceeded")
	})

	t.Run("foreign errors have no kind", func(t *testing.T) {
		assert.Equal(t, ErrorKind(""), KindOf(errors.New("boom")))
		assert.False(t, IsRetryable(errors.New("boom")))
	})
}

func TestTenantAggregateRoot_BelongsTo(t *testing.T) {
	tenantID := uuid.New()
	root := NewTenantAggregateRoot(tenantID)

	assert.NoError(t, root.BelongsTo(tenantID))
	assert.True(t, IsKind(root.BelongsTo(uuid.New()), KindTenantMismatch))
	assert.True(t, IsKind(root.BelongsTo(uuid.Nil), KindValidation))
}

type stubPublisher struct {
	published []DomainEvent
}

func (p *stubPublisher) Publish(_ context.Context, events ...DomainEvent) error {
	p.published = append(p.published, events...)
	return nil
}

func TestPublishAndClear(t *testing.T) {
	root := NewTenantAggregateRoot(uuid.New())
	ev := NewBaseDomainEvent("Thing", "Thing", root.ID, root.TenantID)
	root.AddDomainEvent(&ev)

	pub := &stubPublisher{}
	assert.NoError(t, PublishAndClear(context.Background(), pub, &root))
	assert.Len(t, pub.published, 1)
	assert.Empty(t, root.GetDomainEvents())

	assert.NoError(t, PublishAndClear(context.Background(), nil, &root))
}

func TestBaseAggregateRoot_LoadedVersion(t *testing.T) {
	a := NewBaseAggregateRoot()
	assert.Equal(t, 1, a.LoadedVersion())

	a.IncrementVersion()
	a.IncrementVersion()
	assert.Equal(t, 3, a.Version)
	assert.Equal(t, 1, a.LoadedVersion())

	a.MarkPersisted()
	assert.Equal(t, 3, a.LoadedVersion())
	a.IncrementVersion()
	assert.Equal(t, 3, a.LoadedVersion())
}
