package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bid2build/bid2build/internal/config"
	"github.com/bid2build/bid2build/internal/events"
	"github.com/bid2build/bid2build/internal/service"
)

type fakeBroker struct {
	mu       sync.Mutex
	failures int
	keys     []string
}

func (b *fakeBroker) PublishJSON(_ context.Context, key string, _ any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures > 0 {
		b.failures--
		return errors.New("channel closed")
	}
	b.keys = append(b.keys, key)
	return nil
}

func (b *fakeBroker) published() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.keys...)
}

func TestNotificationWorker_ForwardsSubscribedEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	broker := &fakeBroker{failures: 1}
	dispatcher := events.NewInMemoryDispatcher()
	forwarder := NewBrokerForwarder(broker, zap.NewNop(), 8)
	forwarder.backoff = time.Millisecond
	notifications := service.NewNotificationService(dispatcher, zap.NewNop(), config.NotificationConfig{})

	StartNotificationWorker(ctx, dispatcher, notifications, forwarder)

	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventUserRegistered, "u-1", nil, nil)))
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventPasswordResetRequested, "u-1", nil, nil)))

	assert.Eventually(t, func() bool { return len(broker.published()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	forwarder.Wait()
	assert.Equal(t, []string{"user.registered"}, broker.published())
}

func TestBrokerForwarder_DropsWhenFull(t *testing.T) {
	forwarder := NewBrokerForwarder(&fakeBroker{}, zap.NewNop(), 1)

	require.NoError(t, forwarder.Enqueue(context.Background(), events.NewEvent(events.EventUserRegistered, "a", nil, nil)))
	require.NoError(t, forwarder.Enqueue(context.Background(), events.NewEvent(events.EventUserRegistered, "b", nil, nil)))
	assert.Len(t, forwarder.queue, 1)
}

func TestBrokerForwarder_DrainsOnShutdown(t *testing.T) {
	broker := &fakeBroker{}
	forwarder := NewBrokerForwarder(broker, zap.NewNop(), 4)
	for i := 0; i < 3; i++ {
		require.NoError(t, forwarder.Enqueue(context.Background(), events.NewEvent(events.EventDocumentReviewed, "u", nil, nil)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	forwarder.Start(ctx)
	forwarder.Wait()

	assert.Len(t, broker.published(), 3)
}
