package shipment

import "tracking/internal/core/domain/model/kernel"

// TrackingCandidate is the minimal projection of a shipment selected for a
// tracking refresh: enough to call the carrier and interpret the response,
// nothing more. Selection itself has no side effects.
type TrackingCandidate struct {
	ID          kernel.UUID
	OrderID     kernel.UUID
	UserID      kernel.UUID
	AWB         string
	CarrierCode string
	Status      Status
	Bucket      Bucket
}
