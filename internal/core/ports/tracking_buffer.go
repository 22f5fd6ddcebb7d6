package ports

import (
	"encoding/json"
	"time"

	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/core/domain/model/shipment"
)

// StatusUpdate is one pending write-behind status change waiting in the
// flush queue.
type StatusUpdate struct {
	ShipmentID kernel.UUID     `json:"shipment_id"`
	Status     shipment.Status `json:"status"`
	ChangedAt  time.Time       `json:"changed_at"`
}

// PendingEvent is one deduplicated carrier scan waiting in the flush queue
// for bulk insertion.
type PendingEvent struct {
	ShipmentID  kernel.UUID     `json:"shipment_id"`
	StatusCode  string          `json:"status_code"`
	Description string          `json:"description"`
	Location    string          `json:"location"`
	Timestamp   time.Time       `json:"timestamp"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// TrackingBuffer is the pair of durable flush queues batching pending status
// changes and new events for chunked bulk writes. Entries stay queued until
// the flush acknowledges the bulk write by discarding them, so a failed
// write leaves the chunk in place for the next pass. The flush job is the
// single consumer (stable job id, concurrency one), which is what makes
// peek-then-discard safe.
type TrackingBuffer interface {
	// PushStatusUpdate appends a pending status change.
	PushStatusUpdate(update StatusUpdate) error

	// PeekStatusUpdates returns up to limit pending status changes, oldest
	// first, without removing them, plus the count of undecodable entries
	// in that range.
	PeekStatusUpdates(limit int) ([]StatusUpdate, int, error)

	// DiscardStatusUpdates removes the oldest n status entries. Called only
	// after the bulk write covering those entries committed.
	DiscardStatusUpdates(n int) error

	// PushEvents appends pending events for bulk insertion.
	PushEvents(events []PendingEvent) error

	// PeekEvents returns up to limit pending events, oldest first, without
	// removing them, plus the count of undecodable entries in that range.
	PeekEvents(limit int) ([]PendingEvent, int, error)

	// DiscardEvents removes the oldest n event entries. Called only after
	// the bulk insert covering those entries succeeded.
	DiscardEvents(n int) error
}
