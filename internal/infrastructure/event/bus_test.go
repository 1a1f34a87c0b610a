package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/erp/distribution/internal/domain/logistics"
	"github.com/erp/distribution/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEvent struct {
	shared.BaseDomainEvent
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, logistics.AggregateTypeDelivery, uuid.New(), uuid.New()),
	}
}

type testHandler struct {
	mu         sync.Mutex
	eventTypes []string
	handled    []shared.DomainEvent
	err        error
	panicWith  any
}

func newTestHandler(eventTypes ...string) *testHandler {
	return &testHandler{eventTypes: eventTypes}
}

func (h *testHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event)
	if h.panicWith != nil {
		panic(h.panicWith)
	}
	return h.err
}

func (h *testHandler) EventTypes() []string { return h.eventTypes }

func (h *testHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func TestInMemoryEventBus_PublishRoutesByType(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	started := newTestHandler(logistics.EventTypeDeliveryStarted)
	completed := newTestHandler(logistics.EventTypeDeliveryCompleted)
	bus.Subscribe(started)
	bus.Subscribe(completed)

	err := bus.Publish(context.Background(),
		newTestEvent(logistics.EventTypeDeliveryStarted),
		newTestEvent(logistics.EventTypeDeliveryCompleted),
		newTestEvent(logistics.EventTypeDeliveryCompleted),
	)

	require.NoError(t, err)
	assert.Equal(t, 1, started.count())
	assert.Equal(t, 2, completed.count())
}

func TestInMemoryEventBus_ExplicitTypesOverrideHandlerTypes(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	h := newTestHandler(logistics.EventTypeDeliveryStarted)
	bus.Subscribe(h, logistics.EventTypeDeliveryCreated)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent(logistics.EventTypeDeliveryStarted)))
	assert.Equal(t, 0, h.count())

	require.NoError(t, bus.Publish(context.Background(), newTestEvent(logistics.EventTypeDeliveryCreated)))
	assert.Equal(t, 1, h.count())
}

func TestInMemoryEventBus_FailuresAreJoinedAndDoNotStopOthers(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	failing := newTestHandler(logistics.EventTypeDeliveryCompleted)
	failing.err = shared.NewConcurrencyConflictError("sales order")
	panicking := newTestHandler(logistics.EventTypeDeliveryCompleted)
	panicking.panicWith = "boom"
	healthy := newTestHandler(logistics.EventTypeDeliveryCompleted)
	bus.Subscribe(failing)
	bus.Subscribe(panicking)
	bus.Subscribe(healthy)

	err := bus.Publish(context.Background(), newTestEvent(logistics.EventTypeDeliveryCompleted))

	require.Error(t, err)
	assert.True(t, shared.IsKind(err, shared.KindConcurrencyConflict))
	assert.Contains(t, err.Error(), "handler panicked: boom")
	assert.Equal(t, 1, healthy.count())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	h := newTestHandler(logistics.EventTypeDeliveryStarted)
	bus.Subscribe(h)

	_ = bus.Publish(context.Background(), newTestEvent(logistics.EventTypeDeliveryStarted))
	bus.Unsubscribe(h)
	_ = bus.Publish(context.Background(), newTestEvent(logistics.EventTypeDeliveryStarted))

	assert.Equal(t, 1, h.count())
}

func TestInMemoryEventBus_StopRejectsPublish(t *testing.T) {
	ctx := context.Background()
	bus := NewInMemoryEventBus(zap.NewNop())
	h := newTestHandler(logistics.EventTypeDeliveryStarted)
	bus.Subscribe(h)

	require.NoError(t, bus.Start(ctx))
	require.NoError(t, bus.Stop(ctx))

	err := bus.Publish(ctx, newTestEvent(logistics.EventTypeDeliveryStarted))
	assert.True(t, errors.Is(err, ErrBusStopped))
	assert.Equal(t, 0, h.count())

	require.NoError(t, bus.Start(ctx))
	require.NoError(t, bus.Publish(ctx, newTestEvent(logistics.EventTypeDeliveryStarted)))
	assert.Equal(t, 1, h.count())
}
