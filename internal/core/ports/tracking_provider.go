package ports

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/core/domain/model/shipment"
)

var (
	// ErrMissingVendorConfig means no adapter is configured for a carrier.
	// Permanent: needs an operator fix, so reconciliation schedules no retry.
	ErrMissingVendorConfig = errors.New("no vendor adapter configured for carrier")

	// ErrProviderUnavailable means the carrier API call failed transiently.
	// Reconciliation retries it with exponential backoff up to the cap.
	ErrProviderUnavailable = errors.New("tracking provider unavailable")

	// ErrInsufficientData means the shipment lacks the AWB or carrier
	// identity needed to poll. Permanently skipped until corrected upstream.
	ErrInsufficientData = errors.New("shipment has no AWB or carrier to track with")
)

// TrackRequest identifies one shipment to poll at its carrier.
type TrackRequest struct {
	CarrierCode string
	AWB         string
	ShipmentID  kernel.UUID
	OrderID     kernel.UUID
}

// ProviderEvent is one raw carrier scan as normalized by a vendor adapter.
// Carrier-specific response parsing happens inside the adapter; the core
// only ever sees this shape.
type ProviderEvent struct {
	Timestamp   time.Time
	StatusCode  string
	Description string
	Location    string

	// Bucket is the carrier's coarse bucket for this scan, when it reports one.
	Bucket *shipment.Bucket

	// RTO is the carrier's return-to-origin flag for this scan.
	RTO bool

	// Raw is the verbatim adapter payload, persisted for audit.
	Raw json.RawMessage
}

// TrackResult is a vendor adapter's answer for one poll.
type TrackResult struct {
	Success bool
	Message string
	Events  []ProviderEvent

	// LatestBucket is the poll-level bucket some carriers report alongside
	// the scan list. Nil when the carrier has nothing to say yet.
	LatestBucket *shipment.Bucket
}

// TrackingProvider is the gateway to one carrier's tracking API.
type TrackingProvider interface {
	Track(ctx context.Context, req TrackRequest) (TrackResult, error)
}

// ProviderRegistry resolves the vendor adapter for a carrier.
type ProviderRegistry interface {
	// Resolve returns the adapter for carrierCode, or ErrMissingVendorConfig
	// when none is registered.
	Resolve(carrierCode string) (TrackingProvider, error)
}
