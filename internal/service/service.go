package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"reorder-service/internal/broker"
	"reorder-service/internal/models"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Settings holds the business defaults shared by the services
type Settings struct {
	DefaultWarehouseID      int64
	DefaultSupplierID       int64
	SupplierLeadTime        time.Duration
	ProductionLeadTime      time.Duration
	ReorderFallbackQuantity int
	AutoReorder             bool
	PlanLockTTL             time.Duration
}

// DefaultSettings returns the settings used when nothing is configured
func DefaultSettings() Settings {
	return Settings{
		DefaultWarehouseID:      1,
		DefaultSupplierID:       1,
		SupplierLeadTime:        5 * 24 * time.Hour,
		ProductionLeadTime:      14 * 24 * time.Hour,
		ReorderFallbackQuantity: 100,
		AutoReorder:             true,
		PlanLockTTL:             30 * time.Second,
	}
}

// Locker guards work that must not run twice at the same time
type Locker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// MemoryLocker is an in-process Locker for single-instance deployments and tests
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
}

// NewMemoryLocker creates an empty in-process locker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]time.Time)}
}

// AcquireLock takes the lock unless another holder's lease is still valid
func (l *MemoryLocker) AcquireLock(_ context.Context, lockKey string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if expires, held := l.locks[lockKey]; held && now.Before(expires) {
		return false, nil
	}
	l.locks[lockKey] = now.Add(ttl)
	return true, nil
}

// ReleaseLock drops the lock
func (l *MemoryLocker) ReleaseLock(_ context.Context, lockKey string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, lockKey)
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateInput runs struct tag validation and reports the first failure as a ValidationError
func validateInput(input interface{}) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &models.ValidationError{
			Field:   fe.Field(),
			Message: describeTag(fe),
		}
	}
	return &models.ValidationError{Message: err.Error()}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "min":
		return "must contain at least " + fe.Param()
	case "ne":
		return "must not be " + fe.Param()
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

// publishAll delivers events after a committed transaction. Delivery failures are
// logged only; the stored state is already final.
func publishAll(ctx context.Context, publisher broker.Publisher, logger *zap.Logger, events ...models.Event) {
	for _, event := range events {
		if err := publisher.Publish(ctx, event); err != nil {
			logger.Error("Failed to publish event",
				zap.String("event_type", event.Kind()),
				zap.String("event_id", event.Envelope().EventID),
				zap.Error(err))
		}
	}
}

func notification(level, title, message string) *models.NotificationEvent {
	return &models.NotificationEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeNotification),
		Level:     level,
		Title:     title,
		Message:   message,
	}
}

func ordersRefresh(source string) *models.OrdersRefreshEvent {
	return &models.OrdersRefreshEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeOrdersRefresh),
		Source:    source,
	}
}

func inventoryRefresh(source string) *models.InventoryRefreshEvent {
	return &models.InventoryRefreshEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeInventoryRefresh),
		Source:    source,
	}
}

func dashboardRefresh(source string) *models.DashboardRefreshEvent {
	return &models.DashboardRefreshEvent{
		BaseEvent: models.NewBaseEvent(models.EventTypeDashboardRefresh),
		Source:    source,
	}
}
