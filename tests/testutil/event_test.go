package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleEvent struct {
	shared.BaseDomainEvent
}

func newSampleEvent(eventType string) *sampleEvent {
	return &sampleEvent{BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "Order", uuid.New(), uuid.New())}
}

func TestMockEventHandler_Records(t *testing.T) {
	handler := NewMockEventHandler("OrderPlaced", "OrderCancelled")
	assert.Equal(t, []string{"OrderPlaced", "OrderCancelled"}, handler.EventTypes())

	placed := newSampleEvent("OrderPlaced")
	require.NoError(t, handler.Handle(context.Background(), placed))
	require.NoError(t, handler.Handle(context.Background(), newSampleEvent("OrderCancelled")))

	assert.Equal(t, 2, handler.HandledCount())
	assert.Same(t, placed, handler.Handled()[0])
	assert.Equal(t, []string{"OrderPlaced", "OrderCancelled"}, handler.Types())
}

func TestMockEventHandler_ErrorAndReset(t *testing.T) {
	handler := NewMockEventHandler("OrderPlaced")
	handler.SetError(assert.AnError)

	err := handler.Handle(context.Background(), newSampleEvent("OrderPlaced"))
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, handler.HandledCount())

	handler.Reset()
	assert.Zero(t, handler.HandledCount())
	assert.NoError(t, handler.Handle(context.Background(), newSampleEvent("OrderPlaced")))
}
