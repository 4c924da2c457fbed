package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"reorder-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func materialEvent(skuID int64) *models.MaterialAvailableEvent {
	return &models.MaterialAvailableEvent{
		BaseEvent:     models.NewBaseEvent(models.EventTypeMaterialAvailable),
		SKUID:         skuID,
		QuantityAdded: 20,
		ItemCode:      "AF-200",
		ItemName:      "Air Filter",
	}
}

func TestBusDeliversOnlyToMatchingSubscribers(t *testing.T) {
	bus := NewBus()
	var material []int64
	refreshes := 0

	Subscribe(bus, func(_ context.Context, e *models.MaterialAvailableEvent) error {
		material = append(material, e.SKUID)
		return nil
	})
	Subscribe(bus, func(_ context.Context, e *models.DashboardRefreshEvent) error {
		refreshes++
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), materialEvent(3)))

	assert.Equal(t, []int64{3}, material)
	assert.Zero(t, refreshes)
	assert.Equal(t, 1, bus.SubscriberCount(models.EventTypeMaterialAvailable))
}

func TestBusKeepsDispatchingAfterFailure(t *testing.T) {
	bus := NewBus()
	boom := errors.New("boom")
	calls := 0

	Subscribe(bus, func(_ context.Context, _ *models.OrdersRefreshEvent) error {
		calls++
		return boom
	})
	Subscribe(bus, func(_ context.Context, _ *models.OrdersRefreshEvent) error {
		calls++
		return nil
	})

	err := bus.Publish(context.Background(), &models.OrdersRefreshEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrdersRefresh),
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

type fakeWriter struct {
	keys   []string
	events []models.Event
}

func (w *fakeWriter) PublishEvent(_ context.Context, key string, event models.Event) error {
	w.keys = append(w.keys, key)
	w.events = append(w.events, event)
	return nil
}

func TestKafkaPublisherKeysBySKU(t *testing.T) {
	w := &fakeWriter{}
	kp := &KafkaPublisher{producer: w}

	require.NoError(t, kp.Publish(context.Background(), materialEvent(12)))
	require.NoError(t, kp.Publish(context.Background(), &models.InventoryRefreshEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeInventoryRefresh),
	}))

	assert.Equal(t, []string{"MATERIAL_AVAILABLE-sku-12", "INVENTORY_REFRESH-broadcast"}, w.keys)
}

type fakeDedup struct {
	seen map[string]bool
}

func (d *fakeDedup) ClaimIdempotencyKey(_ context.Context, key string, _ time.Duration) (bool, error) {
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

func TestEventHandlerDecodesAndDeduplicates(t *testing.T) {
	bus := NewBus()
	var received []*models.MaterialAvailableEvent
	Subscribe(bus, func(_ context.Context, e *models.MaterialAvailableEvent) error {
		received = append(received, e)
		return nil
	})

	handler := NewEventHandler(bus, &fakeDedup{seen: map[string]bool{}}, time.Hour)
	payload, err := json.Marshal(materialEvent(5))
	require.NoError(t, err)
	msg := kafka.Message{Value: payload}

	require.NoError(t, handler.HandleMessage(context.Background(), msg))
	require.NoError(t, handler.HandleMessage(context.Background(), msg))

	require.Len(t, received, 1)
	assert.Equal(t, int64(5), received[0].SKUID)
	assert.Equal(t, "Air Filter", received[0].ItemName)
}

func TestEventHandlerDropsUnknownEvents(t *testing.T) {
	handler := NewEventHandler(NewBus(), nil, time.Hour)

	err := handler.HandleMessage(context.Background(), kafka.Message{Value: []byte(`{"event_type":"SOMETHING_ELSE"}`)})

	assert.NoError(t, err)
}

func TestHeaderValue(t *testing.T) {
	msg := kafka.Message{Headers: []kafka.Header{
		{Key: "trace", Value: []byte("abc")},
		{Key: eventTypeHeader, Value: []byte(models.EventTypeMaterialAvailable)},
	}}

	assert.Equal(t, models.EventTypeMaterialAvailable, headerValue(msg, eventTypeHeader))
	assert.Equal(t, "unknown", headerValue(kafka.Message{}, eventTypeHeader))
}

func TestConsumerRetriesHandlerBeforeSkipping(t *testing.T) {
	c := &Consumer{logger: zap.NewNop()}
	transient := errors.New("redis timeout")

	calls := 0
	err := c.handle(context.Background(), func(context.Context, kafka.Message) error {
		calls++
		if calls < 2 {
			return transient
		}
		return nil
	}, kafka.Message{})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = c.handle(context.Background(), func(context.Context, kafka.Message) error {
		calls++
		return transient
	}, kafka.Message{})
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, maxHandleAttempts, calls)
}
