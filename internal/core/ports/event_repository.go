package ports

import (
	"context"

	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/core/domain/model/shipment"
)

// EventRepository defines the persistence contract for tracking events.
// Events are append-only; there is no update or delete.
type EventRepository interface {
	// AddBatch inserts events in bulk, silently skipping rows whose natural
	// key (shipment, timestamp, description) already exists. Returns the
	// number of rows actually inserted. The duplicate-skip is the durable
	// backstop behind the reconciler's cache-assisted dedupe.
	AddBatch(ctx context.Context, events []*shipment.Event) (int, error)

	// ExistingKeys returns the natural keys of all persisted events for a
	// shipment, for deduplicating an incoming poll before buffering.
	ExistingKeys(ctx context.Context, shipmentID kernel.UUID) (map[string]struct{}, error)

	// GetByShipment retrieves a shipment's events newest-first.
	GetByShipment(ctx context.Context, shipmentID kernel.UUID) ([]*shipment.Event, error)
}
