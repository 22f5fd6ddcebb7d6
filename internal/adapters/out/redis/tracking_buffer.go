package redis

import (
	"encoding/json"

	"tracking/internal/core/ports"

	"github.com/go-redis/redis"
)

const statusQueueKey = "tracking:flush:statuses"
const eventQueueKey = "tracking:flush:events"

// TrackingBuffer implements ports.TrackingBuffer on two redis lists.
// RPUSH appends, LRANGE peeks a chunk oldest first and LTRIM discards it
// once the flush reports the bulk write committed. Entries are never
// removed at read time, so a failed write leaves the chunk queued.
type TrackingBuffer struct {
	db *redis.Client
}

// NewTrackingBuffer creates a redis-backed flush buffer.
func NewTrackingBuffer(db *redis.Client) *TrackingBuffer {
	return &TrackingBuffer{db: db}
}

// PushStatusUpdate appends a pending status change to the flush queue.
func (b *TrackingBuffer) PushStatusUpdate(update ports.StatusUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return b.db.RPush(statusQueueKey, data).Err()
}

// PeekStatusUpdates returns up to limit pending status changes, oldest
// first, without removing them, plus the count of undecodable entries.
func (b *TrackingBuffer) PeekStatusUpdates(limit int) ([]ports.StatusUpdate, int, error) {
	raw, err := b.peek(statusQueueKey, limit)
	if err != nil {
		return nil, 0, err
	}

	updates := make([]ports.StatusUpdate, 0, len(raw))
	malformed := 0
	for _, entry := range raw {
		var update ports.StatusUpdate
		if err = json.Unmarshal([]byte(entry), &update); err != nil {
			malformed++
			continue
		}
		updates = append(updates, update)
	}

	return updates, malformed, nil
}

// DiscardStatusUpdates removes the oldest n status entries.
func (b *TrackingBuffer) DiscardStatusUpdates(n int) error {
	return b.discard(statusQueueKey, n)
}

// PushEvents appends pending events to the flush queue.
func (b *TrackingBuffer) PushEvents(events []ports.PendingEvent) error {
	if len(events) == 0 {
		return nil
	}

	payloads := make([]interface{}, 0, len(events))
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		payloads = append(payloads, data)
	}

	return b.db.RPush(eventQueueKey, payloads...).Err()
}

// PeekEvents returns up to limit pending events, oldest first, without
// removing them, plus the count of undecodable entries.
func (b *TrackingBuffer) PeekEvents(limit int) ([]ports.PendingEvent, int, error) {
	raw, err := b.peek(eventQueueKey, limit)
	if err != nil {
		return nil, 0, err
	}

	events := make([]ports.PendingEvent, 0, len(raw))
	malformed := 0
	for _, entry := range raw {
		var event ports.PendingEvent
		if err = json.Unmarshal([]byte(entry), &event); err != nil {
			malformed++
			continue
		}
		events = append(events, event)
	}

	return events, malformed, nil
}

// DiscardEvents removes the oldest n event entries.
func (b *TrackingBuffer) DiscardEvents(n int) error {
	return b.discard(eventQueueKey, n)
}

// peek reads the first limit entries of a list without removing them.
func (b *TrackingBuffer) peek(key string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	return b.db.LRange(key, 0, int64(limit)-1).Result()
}

// discard drops the first n entries of a list.
func (b *TrackingBuffer) discard(key string, n int) error {
	if n <= 0 {
		return nil
	}
	return b.db.LTrim(key, int64(n), -1).Err()
}
