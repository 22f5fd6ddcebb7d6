// Package ports defines the contracts between the core application and its
// infrastructure: relational repositories, the carrier tracking gateway, the
// redis-backed cache/buffer layers and the durable job queue. These
// interfaces establish dependency inversion and testability boundaries.
package ports

import (
	"context"
	"time"

	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/core/domain/model/shipment"
)

// ShipmentRepository defines the persistence contract for shipment aggregates.
type ShipmentRepository interface {
	// Add persists a new shipment aggregate to storage.
	Add(ctx context.Context, aggregate *shipment.Shipment) error

	// Update persists changes to an existing shipment aggregate.
	Update(ctx context.Context, aggregate *shipment.Shipment) error

	// Get retrieves a shipment aggregate by its unique identifier.
	Get(ctx context.Context, id kernel.UUID) (*shipment.Shipment, error)

	// GetTrackingCandidates selects shipments due for a tracking refresh:
	// AWB present, status not terminal, ordered oldest-updated first so no
	// shipment starves, limited to limit rows. Returns a minimal projection
	// and has no side effects.
	GetTrackingCandidates(ctx context.Context, limit int) ([]shipment.TrackingCandidate, error)

	// BulkUpdateStatus moves every listed shipment to the given status and
	// its derived bucket in a single statement. Used by the flush job, which
	// groups pending updates by target status.
	BulkUpdateStatus(ctx context.Context, ids []kernel.UUID, status shipment.Status) error

	// StampTransitionDate records the transition timestamp a status earns
	// (picked-up, delivered, RTO-delivered) without touching other columns.
	// A no-op for statuses that carry no date.
	StampTransitionDate(ctx context.Context, id kernel.UUID, status shipment.Status, at time.Time) error

	// MarkChargeProcessed sets the settlement flag for one charge type
	// without touching any other column, so settlement never overwrites a
	// status the flush job moved concurrently.
	MarkChargeProcessed(ctx context.Context, id kernel.UUID, chargeType shipment.ChargeType) error

	// GetRTOPendingCharges selects shipments sitting in the RTO bucket that
	// still have unsettled RTO-related charges. Feeds the RTO charge sweep.
	GetRTOPendingCharges(ctx context.Context, limit int) ([]kernel.UUID, error)
}
