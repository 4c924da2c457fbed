package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"reorder-service/internal/models"
	"reorder-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const eventTypeHeader = "event_type"

// Producer writes domain events to one topic
type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer creates a new Kafka producer. Events sharing a key land on one
// partition, so per-SKU signals stay ordered.
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	return &Producer{writer: writer, logger: util.GetLogger()}
}

// PublishEvent encodes the event with its envelope and writes it under key
func (p *Producer) PublishEvent(ctx context.Context, key string, event models.Event) error {
	ctx, span := util.StartSpan(ctx, "Producer.PublishEvent")
	defer span.End()
	span.SetAttributes(attribute.String("event_type", event.Kind()))

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Kind(), err)
	}

	base := event.Envelope()
	msg := kafka.Message{
		Key:     []byte(key),
		Value:   body,
		Time:    base.Timestamp,
		Headers: []kafka.Header{{Key: eventTypeHeader, Value: []byte(base.EventType)}},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		util.KafkaEventsTotal.WithLabelValues("out", base.EventType, "error").Inc()
		return fmt.Errorf("failed to write %s event to kafka: %w", base.EventType, err)
	}

	util.KafkaEventsTotal.WithLabelValues("out", base.EventType, "ok").Inc()
	p.logger.Debug("Published event",
		zap.String("key", key),
		zap.String("event_type", base.EventType),
		zap.String("event_id", base.EventID))
	return nil
}

// Close flushes pending writes
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer reads domain events as part of a consumer group
type Consumer struct {
	reader     *kafka.Reader
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
	})

	return &Consumer{reader: reader, retryDelay: time.Second, logger: util.GetLogger()}
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// MessageHandler processes one fetched message
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// maxHandleAttempts bounds how often one message is handed to the handler
const maxHandleAttempts = 3

// StartConsuming fetches messages until ctx is cancelled. A message is retried
// up to maxHandleAttempts times and committed once the handler succeeds. A
// message that keeps failing is logged and skipped: the next commit on its
// partition moves the offset past it.
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Starting Kafka consumer",
		zap.String("topic", c.reader.Config().Topic),
		zap.String("group", c.reader.Config().GroupID))

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Consumer context cancelled, stopping")
				return ctx.Err()
			}
			c.logger.Error("Error fetching message", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay):
			}
			continue
		}

		eventType := headerValue(msg, eventTypeHeader)
		if err := c.handle(ctx, handler, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			util.KafkaEventsTotal.WithLabelValues("in", eventType, "skipped").Inc()
			c.logger.Error("Skipping message after failed attempts",
				zap.String("event_type", eventType),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Int("attempts", maxHandleAttempts),
				zap.Error(err))
			continue
		}
		util.KafkaEventsTotal.WithLabelValues("in", eventType, "ok").Inc()

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("Error committing message", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// handle runs handler on msg, waiting retryDelay between failed attempts
func (c *Consumer) handle(ctx context.Context, handler MessageHandler, msg kafka.Message) error {
	var err error
	for attempt := 1; attempt <= maxHandleAttempts; attempt++ {
		if err = handler(ctx, msg); err == nil {
			return nil
		}
		c.logger.Warn("Error handling message",
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt == maxHandleAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
	return err
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return "unknown"
}
