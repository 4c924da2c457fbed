package broker

import (
	"context"
	"sync"

	"reorder-service/internal/models"
	"reorder-service/internal/util"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Publisher delivers domain events
type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

type handlerFunc func(context.Context, models.Event) error

// Bus dispatches events synchronously to explicit per-type subscriber lists
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]handlerFunc
	logger      *zap.Logger
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string][]handlerFunc),
		logger:      util.GetLogger(),
	}
}

// Subscribe registers handler for events of type E
func Subscribe[E models.Event](b *Bus, handler func(context.Context, E) error) {
	var zero E
	kind := zero.Kind()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[kind] = append(b.subscribers[kind], func(ctx context.Context, event models.Event) error {
		typed, ok := event.(E)
		if !ok {
			return nil
		}
		return handler(ctx, typed)
	})
}

// Publish calls every subscriber of the event type in registration order.
// A failing subscriber does not stop the others; all errors are returned combined.
func (b *Bus) Publish(ctx context.Context, event models.Event) error {
	b.mu.RLock()
	handlers := append([]handlerFunc(nil), b.subscribers[event.Kind()]...)
	b.mu.RUnlock()

	var errs error
	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			b.logger.Error("Event subscriber failed",
				zap.String("event_type", event.Kind()),
				zap.String("event_id", event.Envelope().EventID),
				zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// SubscriberCount returns the number of handlers registered for an event type
func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[eventType])
}
