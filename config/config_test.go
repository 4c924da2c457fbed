package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "reorder-events", cfg.Kafka.TopicEvents)
	assert.Equal(t, int64(1), cfg.Business.DefaultWarehouseID)
	assert.Equal(t, 5, cfg.Business.SupplierLeadTimeDays)
	assert.Equal(t, 14, cfg.Business.ProductionLeadTimeDays)
	assert.Equal(t, 100, cfg.Business.ReorderFallbackQuantity)
	assert.True(t, cfg.Business.AutoReorder)
	assert.Equal(t, 30*time.Second, cfg.Business.PlanLockTTL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("DEFAULT_WAREHOUSE_ID", "3")
	t.Setenv("AUTO_REORDER", "false")
	t.Setenv("PLAN_LOCK_TTL", "2m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, int64(3), cfg.Business.DefaultWarehouseID)
	assert.False(t, cfg.Business.AutoReorder)
	assert.Equal(t, 2*time.Minute, cfg.Business.PlanLockTTL)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("REDIS_DB", "zero")
	t.Setenv("PLAN_LOCK_TTL", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_DRIVER")
	assert.Contains(t, err.Error(), "REDIS_DB")
	assert.Contains(t, err.Error(), "PLAN_LOCK_TTL")
}
