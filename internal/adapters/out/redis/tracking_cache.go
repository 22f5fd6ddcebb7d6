// Package redis provides the ephemeral side of tracking: the reconciliation
// cache, the write-behind flush buffers and the durable delayed-job queue.
// Everything here is disposable or at-least-once; the relational store stays
// the sole source of truth, so a flushed redis costs extra polling, never
// wrong state.
package redis

import (
	"encoding/json"
	"time"

	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/core/ports"

	"github.com/go-redis/redis"
)

const processingPrefix = "tracking:processing:"
const checkedPrefix = "tracking:checked:"
const retryPrefix = "tracking:retries:"

// TrackingCache implements ports.TrackingCache on redis keys with TTLs.
type TrackingCache struct {
	db *redis.Client
}

// NewTrackingCache creates a redis-backed tracking cache.
func NewTrackingCache(db *redis.Client) *TrackingCache {
	return &TrackingCache{db: db}
}

// AcquireProcessing takes the per-shipment processing marker via SETNX.
// Returns false when another worker holds it. The TTL bounds how long a
// crashed worker can block a shipment.
func (c *TrackingCache) AcquireProcessing(id kernel.UUID, ttl time.Duration) (bool, error) {
	return c.db.SetNX(processingPrefix+id.String(), 1, ttl).Result()
}

// ReleaseProcessing clears the processing marker.
func (c *TrackingCache) ReleaseProcessing(id kernel.UUID) error {
	return c.db.Del(processingPrefix + id.String()).Err()
}

// MarkChecked stores the recently-checked snapshot with the refresh TTL.
func (c *TrackingCache) MarkChecked(id kernel.UUID, snapshot ports.CheckedSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return c.db.Set(checkedPrefix+id.String(), data, ttl).Err()
}

// LastChecked returns the cached snapshot, or nil when the window expired or
// was never set. A corrupt entry is treated as absent: it only costs a poll.
func (c *TrackingCache) LastChecked(id kernel.UUID) (*ports.CheckedSnapshot, error) {
	data, err := c.db.Get(checkedPrefix + id.String()).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snapshot ports.CheckedSnapshot
	if err = json.Unmarshal(data, &snapshot); err != nil {
		return nil, nil
	}
	return &snapshot, nil
}

// IncrRetry increments the shipment's retry counter and returns the new
// attempt count. The TTL is set on first increment so an abandoned counter
// ages out on its own.
func (c *TrackingCache) IncrRetry(id kernel.UUID, ttl time.Duration) (int, error) {
	key := retryPrefix + id.String()

	attempt, err := c.db.Incr(key).Result()
	if err != nil {
		return 0, err
	}
	if attempt == 1 {
		if err = c.db.Expire(key, ttl).Err(); err != nil {
			return 0, err
		}
	}

	return int(attempt), nil
}

// ClearRetry removes the retry counter.
func (c *TrackingCache) ClearRetry(id kernel.UUID) error {
	return c.db.Del(retryPrefix + id.String()).Err()
}
