package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_InvokesAllHandlersAndJoinsErrors(t *testing.T) {
	d := NewInMemoryDispatcher()
	boom := errors.New("boom")

	var calls []string
	d.Subscribe(EventUserRegistered, func(_ context.Context, e Event) error {
		calls = append(calls, "first")
		return boom
	})
	d.Subscribe(EventUserRegistered, func(_ context.Context, e Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventDocumentReviewed, func(_ context.Context, e Event) error {
		calls = append(calls, "other")
		return nil
	})

	err := d.Publish(context.Background(), NewEvent(EventUserRegistered, "u-1", nil, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestDispatcher_NoHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	assert.NoError(t, d.Publish(context.Background(), NewEvent(EventUserStatusChanged, "u-1", nil, nil)))
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "user.registered", EventUserRegistered.RoutingKey())
	assert.Equal(t, "document.reviewed", EventDocumentReviewed.RoutingKey())
	assert.Equal(t, "custom", EventType("custom").RoutingKey())
}
