// Package counters implements the durable per-key attempt counters behind
// the rate limiter. Every backend increments atomically, so concurrent
// hits on one key never lose an update.
package counters

import (
	"context"
	"time"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/models"
)

// Counter is a windowed attempt counter. The window starts at the first
// increment after the key is fresh; later increments keep its expiry.
type Counter interface {
	Increment(ctx context.Context, key string, window time.Duration) (models.Bucket, error)
	// Get returns a zero Bucket for unknown or expired keys.
	Get(ctx context.Context, key string) (models.Bucket, error)
	Reset(ctx context.Context, key string) error
}
