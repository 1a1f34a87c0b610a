package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEventHandler_Handle(t *testing.T) {
	handler := NewMockEventHandler("TestEvent")
	event := NewTestEvent("TestEvent", uuid.New())

	err := handler.Handle(context.Background(), event)

	require.NoError(t, err)
	assert.Equal(t, []string{"TestEvent"}, handler.EventTypes())
	assert.Equal(t, 1, handler.HandledCount())
	assert.Equal(t, event, handler.Handled()[0])
}

func TestMockEventHandler_SetError(t *testing.T) {
	handler := NewMockEventHandler("TestEvent")
	handler.SetError(assert.AnError)

	err := handler.Handle(context.Background(), NewTestEvent("TestEvent", uuid.New()))
	assert.Equal(t, assert.AnError, err)
	assert.Equal(t, 1, handler.HandledCount())
}

func TestRecordingPublisher(t *testing.T) {
	var p RecordingPublisher
	tenantID := uuid.New()

	require.NoError(t, p.Publish(context.Background(),
		NewTestEvent("A", tenantID),
		NewTestEvent("B", tenantID),
	))

	assert.Len(t, p.Events(), 2)
	assert.Equal(t, []string{"A", "B"}, p.Types())
}

func TestNewTestEventWithID(t *testing.T) {
	eventID := uuid.New()
	tenantID := uuid.New()
	event := NewTestEventWithID(eventID, "CustomEvent", tenantID)

	assert.Equal(t, eventID, event.EventID())
	assert.Equal(t, "CustomEvent", event.EventType())
	assert.Equal(t, tenantID, event.TenantID())
	assert.False(t, event.OccurredAt().IsZero())
	assert.Equal(t, "test-data", event.Data)
}
