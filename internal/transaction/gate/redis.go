package gate

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Gate backed by a shared Redis instance. SET NX with an expiry is
// one atomic round trip, which is what makes concurrent duplicate intakes
// safe across processes.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis builds a Redis gate. A non-positive ttl falls back to DefaultTTL.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Redis{client: client, ttl: ttl}
}

// Admit returns true when this call created the marker, false when a marker
// for the identifier already exists within the window.
func (g *Redis) Admit(ctx context.Context, transactionID string) (bool, error) {
	if transactionID == "" {
		return false, ErrEmptyID
	}

	return g.client.SetNX(ctx, markerKey(transactionID), 1, g.ttl).Result()
}
