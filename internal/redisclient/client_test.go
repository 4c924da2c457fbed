package redisclient

import (
	"testing"

	"reorder-service/internal/broker"
	"reorder-service/internal/service"

	"github.com/stretchr/testify/assert"
)

var (
	_ service.Locker      = (*Client)(nil)
	_ broker.Deduplicator = (*Client)(nil)
)

func TestKeysAreNamespaced(t *testing.T) {
	assert.Equal(t, "lock:production-plan:7:verify", lockKey("production-plan:7:verify"))
	assert.Equal(t, "idempotency:event:abc", idempotencyKey("event:abc"))
	assert.NotEqual(t, lockKey("x"), idempotencyKey("x"))
}
