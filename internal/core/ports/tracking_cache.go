package ports

import (
	"time"

	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/core/domain/model/shipment"
)

// CheckedSnapshot is the last reconciled state cached for a shipment.
// Its presence suppresses re-polling within the refresh window.
type CheckedSnapshot struct {
	Status    shipment.Status `json:"status"`
	Bucket    shipment.Bucket `json:"bucket"`
	CheckedAt time.Time       `json:"checked_at"`
}

// TrackingCache holds the ephemeral, disposable state around reconciliation:
// the recently-checked window, the per-shipment processing marker, and the
// retry counter driving backoff. The relational store stays the sole source
// of truth; losing this cache only causes extra polling, never wrong state,
// because real idempotency lives at the ledger layer.
type TrackingCache interface {
	// AcquireProcessing takes the short-TTL processing marker for a shipment.
	// Returns false when another worker already holds it, in which case the
	// caller must skip the shipment. This is a soft lock: its loss means
	// duplicate work at worst.
	AcquireProcessing(id kernel.UUID, ttl time.Duration) (bool, error)

	// ReleaseProcessing clears the processing marker. Must run on every
	// reconciliation exit path.
	ReleaseProcessing(id kernel.UUID) error

	// MarkChecked stores the recently-checked snapshot with the refresh TTL.
	MarkChecked(id kernel.UUID, snapshot CheckedSnapshot, ttl time.Duration) error

	// LastChecked returns the cached snapshot, or nil when the window expired
	// or was never set.
	LastChecked(id kernel.UUID) (*CheckedSnapshot, error)

	// IncrRetry increments the shipment's retry counter, setting the counter
	// TTL on first increment, and returns the new attempt count.
	IncrRetry(id kernel.UUID, ttl time.Duration) (int, error)

	// ClearRetry removes the retry counter once attempts are exhausted or a
	// poll succeeds.
	ClearRetry(id kernel.UUID) error
}
