package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventTypeMaterialAvailable = "MATERIAL_AVAILABLE"
	EventTypeInventoryChanged  = "INVENTORY_CHANGED"
	EventTypeReorderAlert      = "REORDER_ALERT"
	EventTypeNotification      = "NOTIFICATION"
	EventTypeDashboardRefresh  = "DASHBOARD_REFRESH"
	EventTypeInventoryRefresh  = "INVENTORY_REFRESH"
	EventTypeOrdersRefresh     = "ORDERS_REFRESH"
)

// Event is implemented only by the event types of this package.
// Kind must not dereference its receiver so it can be called on a nil pointer.
type Event interface {
	Kind() string
	Envelope() *BaseEvent
}

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// Envelope returns the common event header
func (b *BaseEvent) Envelope() *BaseEvent {
	return b
}

// NewBaseEvent stamps a fresh event header
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// MaterialAvailableEvent published when received goods credit the ledger
type MaterialAvailableEvent struct {
	BaseEvent
	SKUID           int64  `json:"sku_id"`
	QuantityAdded   int    `json:"quantity_added"`
	ItemCode        string `json:"item_code"`
	ItemName        string `json:"item_name"`
	SupplierOrderID int64  `json:"supplier_order_id,omitempty"`
}

func (*MaterialAvailableEvent) Kind() string { return EventTypeMaterialAvailable }

// InventoryChangedEvent published after every ledger delta
type InventoryChangedEvent struct {
	BaseEvent
	SKUID             int64  `json:"sku_id"`
	WarehouseID       int64  `json:"warehouse_id"`
	Delta             int    `json:"delta"`
	Reason            string `json:"reason"`
	RefID             string `json:"ref_id,omitempty"`
	QuantityOnHand    int    `json:"quantity_on_hand"`
	QuantityAvailable int    `json:"quantity_available"`
}

func (*InventoryChangedEvent) Kind() string { return EventTypeInventoryChanged }

// Alert severities
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// ReorderAlertEvent published when a reorder request is raised
type ReorderAlertEvent struct {
	BaseEvent
	RequestID   int64  `json:"request_id"`
	SKUID       int64  `json:"sku_id"`
	WarehouseID int64  `json:"warehouse_id"`
	Reason      string `json:"reason"`
	Severity    string `json:"severity"`
	Quantity    int    `json:"quantity"`
}

func (*ReorderAlertEvent) Kind() string { return EventTypeReorderAlert }

// Notification levels
const (
	NotificationSuccess = "success"
	NotificationWarning = "warning"
	NotificationError   = "error"
)

// NotificationEvent is a user-facing message for the UI layer
type NotificationEvent struct {
	BaseEvent
	Level   string `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

func (*NotificationEvent) Kind() string { return EventTypeNotification }

// DashboardRefreshEvent asks dashboards to reload
type DashboardRefreshEvent struct {
	BaseEvent
	Source string `json:"source,omitempty"`
}

func (*DashboardRefreshEvent) Kind() string { return EventTypeDashboardRefresh }

// InventoryRefreshEvent asks inventory views to reload
type InventoryRefreshEvent struct {
	BaseEvent
	Source string `json:"source,omitempty"`
}

func (*InventoryRefreshEvent) Kind() string { return EventTypeInventoryRefresh }

// OrdersRefreshEvent asks order views to reload
type OrdersRefreshEvent struct {
	BaseEvent
	Source string `json:"source,omitempty"`
}

func (*OrdersRefreshEvent) Kind() string { return EventTypeOrdersRefresh }

// NewEventOfType returns an empty event for a wire event type
func NewEventOfType(eventType string) (Event, error) {
	switch eventType {
	case EventTypeMaterialAvailable:
		return &MaterialAvailableEvent{}, nil
	case EventTypeInventoryChanged:
		return &InventoryChangedEvent{}, nil
	case EventTypeReorderAlert:
		return &ReorderAlertEvent{}, nil
	case EventTypeNotification:
		return &NotificationEvent{}, nil
	case EventTypeDashboardRefresh:
		return &DashboardRefreshEvent{}, nil
	case EventTypeInventoryRefresh:
		return &InventoryRefreshEvent{}, nil
	case EventTypeOrdersRefresh:
		return &OrdersRefreshEvent{}, nil
	}
	return nil, fmt.Errorf("unknown event type: %s", eventType)
}

// DecodeEvent unmarshals a JSON event into its concrete type
func DecodeEvent(data []byte) (Event, error) {
	var base BaseEvent
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("failed to unmarshal base event: %w", err)
	}
	event, err := NewEventOfType(base.EventType)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s event: %w", base.EventType, err)
	}
	return event, nil
}
