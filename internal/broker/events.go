package broker

import (
	"context"
	"fmt"
	"time"

	"reorder-service/internal/models"
	"reorder-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// eventWriter is the part of Producer the publisher needs
type eventWriter interface {
	PublishEvent(ctx context.Context, key string, event models.Event) error
}

// KafkaPublisher publishes domain events to Kafka
type KafkaPublisher struct {
	producer eventWriter
}

// NewKafkaPublisher creates a publisher over a producer
func NewKafkaPublisher(producer *Producer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

// Publish writes the event keyed by its type so one signal keeps its order
func (kp *KafkaPublisher) Publish(ctx context.Context, event models.Event) error {
	key := fmt.Sprintf("%s-%s", event.Kind(), partitionKey(event))
	return kp.producer.PublishEvent(ctx, key, event)
}

func partitionKey(event models.Event) string {
	switch e := event.(type) {
	case *models.MaterialAvailableEvent:
		return fmt.Sprintf("sku-%d", e.SKUID)
	case *models.InventoryChangedEvent:
		return fmt.Sprintf("sku-%d", e.SKUID)
	case *models.ReorderAlertEvent:
		return fmt.Sprintf("sku-%d", e.SKUID)
	}
	return "broadcast"
}

// Deduplicator claims event ids so redelivered messages are handled once
type Deduplicator interface {
	ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// EventHandler decodes Kafka messages and hands them to the bus
type EventHandler struct {
	bus    *Bus
	dedup  Deduplicator
	ttl    time.Duration
	logger *zap.Logger
}

// NewEventHandler creates a handler dispatching into bus; dedup may be nil
func NewEventHandler(bus *Bus, dedup Deduplicator, ttl time.Duration) *EventHandler {
	return &EventHandler{
		bus:    bus,
		dedup:  dedup,
		ttl:    ttl,
		logger: util.GetLogger(),
	}
}

// HandleMessage routes messages to bus subscribers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	event, err := models.DecodeEvent(msg.Value)
	if err != nil {
		eh.logger.Warn("Dropping undecodable event", zap.Error(err))
		return nil
	}
	base := event.Envelope()

	if eh.dedup != nil {
		first, err := eh.dedup.ClaimIdempotencyKey(ctx, "event:"+base.EventID, eh.ttl)
		if err != nil {
			return fmt.Errorf("failed to check event processed: %w", err)
		}
		if !first {
			eh.logger.Info("Event already processed", zap.String("event_id", base.EventID))
			return nil
		}
	}

	eh.logger.Debug("Handling event",
		zap.String("event_type", base.EventType),
		zap.String("event_id", base.EventID))

	// subscriber failures are logged by the bus; the message is still committed
	_ = eh.bus.Publish(ctx, event)
	return nil
}
