package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bid2build/bid2build/internal/events"
	"github.com/bid2build/bid2build/internal/service"
)

// Broker is the outbound side of the message bus, satisfied by *mq.Publisher.
type Broker interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// forwardedEvents are the events mirrored to the broker.
var forwardedEvents = []events.EventType{
	events.EventUserRegistered,
	events.EventDocumentReviewed,
	events.EventUserStatusChanged,
}

const (
	defaultQueueSize   = 256
	publishAttempts    = 3
	publishTimeout     = 5 * time.Second
	publishBackoffBase = 200 * time.Millisecond
)

// BrokerForwarder copies dispatched events onto the broker from a background goroutine,
// so request handlers never wait on RabbitMQ.
type BrokerForwarder struct {
	broker  Broker
	logger  *zap.Logger
	queue   chan events.Event
	wg      sync.WaitGroup
	backoff time.Duration
}

// NewBrokerForwarder creates a forwarder with a bounded queue.
func NewBrokerForwarder(broker Broker, logger *zap.Logger, queueSize int) *BrokerForwarder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &BrokerForwarder{
		broker:  broker,
		logger:  logger,
		queue:   make(chan events.Event, queueSize),
		backoff: publishBackoffBase,
	}
}

// Enqueue is an events.EventHandler. A full queue drops the event with a warning.
func (f *BrokerForwarder) Enqueue(_ context.Context, event events.Event) error {
	select {
	case f.queue <- event:
	default:
		f.logger.Warn("broker queue full; dropping event", zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)))
	}
	return nil
}

// Start runs the publishing loop until ctx is cancelled, then drains what is queued.
func (f *BrokerForwarder) Start(ctx context.Context) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for {
			select {
			case event := <-f.queue:
				f.publish(ctx, event)
			case <-ctx.Done():
				f.drain()
				return
			}
		}
	}()
}

// Wait blocks until the loop started by Start has exited.
func (f *BrokerForwarder) Wait() {
	f.wg.Wait()
}

func (f *BrokerForwarder) drain() {
	for {
		select {
		case event := <-f.queue:
			f.publish(context.Background(), event)
		default:
			return
		}
	}
}

func (f *BrokerForwarder) publish(ctx context.Context, event events.Event) {
	var err error
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		err = f.broker.PublishJSON(pubCtx, event.Type.RoutingKey(), event)
		cancel()
		if err == nil {
			return
		}
		if attempt < publishAttempts {
			time.Sleep(f.backoff * time.Duration(attempt))
		}
	}
	f.logger.Error("failed to forward event", zap.String("event_id", event.ID), zap.String("event_type", string(event.Type)), zap.Error(err))
}

// StartNotificationWorker registers notification handlers and, when a forwarder is given,
// subscribes it to the forwarded event types and starts it.
func StartNotificationWorker(ctx context.Context, dispatcher events.Dispatcher, notificationService *service.NotificationService, forwarder *BrokerForwarder) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if forwarder == nil || dispatcher == nil {
		return
	}
	for _, eventType := range forwardedEvents {
		dispatcher.Subscribe(eventType, forwarder.Enqueue)
	}
	forwarder.Start(ctx)
}
