package shipment

import (
	"fmt"

	"tracking/internal/pkg/errs"
)

// Status represents the fine-grained lifecycle state of a shipment as
// reconciled from carrier tracking feeds.
//
// Forward flow:
//
//	New ──> CourierAssigned ──> PickupScheduled ──> PickedUp ──> InTransit ──> OutForDelivery ──> Delivered
//	                                                                  │              │
//	                                                                  └──> NDR <─────┘
//
// Return flow:
//
//	NDR / InTransit ──> RTOInitiated ──> RTOInTransit ──> RTODelivered
//
// Delivered, RTODelivered, Lost and Cancelled are terminal: shipments in
// these statuses are never polled again.
//
// Status is a value object; the coarse Bucket is always derived from it
// via BucketOf and the two must never disagree after a write.
type Status int

const (
	// Unknown represents an invalid or undefined status.
	// This value (0) helps catch uninitialized Status values.
	Unknown Status = iota

	// New is the initial status after booking, before carrier assignment.
	New

	// CourierAssigned indicates an AWB has been issued by a carrier.
	CourierAssigned

	// PickupScheduled indicates the carrier accepted a pickup request.
	PickupScheduled

	// PickedUp indicates the carrier collected the parcel from the seller.
	PickedUp

	// InTransit indicates the parcel is moving through the carrier network.
	InTransit

	// OutForDelivery indicates the parcel is on a delivery run.
	OutForDelivery

	// Delivered indicates successful delivery to the buyer. Terminal.
	Delivered

	// NDR indicates a failed delivery attempt awaiting seller action.
	NDR

	// RTOInitiated indicates the carrier started a return to origin.
	RTOInitiated

	// RTOInTransit indicates the return parcel is moving back to the seller.
	RTOInTransit

	// RTODelivered indicates the return reached the seller. Terminal.
	RTODelivered

	// Lost indicates the carrier declared the parcel lost. Terminal.
	Lost

	// Cancelled indicates the shipment was cancelled before delivery. Terminal.
	Cancelled
)

// Bucket is the coarse status grouping used by dashboards and charge
// eligibility checks, so callers avoid branching on every fine status.
type Bucket int

const (
	BucketNew            Bucket = 0
	BucketReadyToShip    Bucket = 1
	BucketInTransit      Bucket = 2
	BucketOutForDelivery Bucket = 3
	BucketDelivered      Bucket = 4
	BucketNDR            Bucket = 5
	BucketRTO            Bucket = 6
	BucketLost           Bucket = 7
	BucketCancelled      Bucket = 8
)

// getStatusStrings returns a map of Status values to their string representations.
// All statuses are included for string conversion.
func getStatusStrings() map[Status]string {
	return map[Status]string{
		Unknown:         "UNKNOWN",
		New:             "NEW",
		CourierAssigned: "COURIER_ASSIGNED",
		PickupScheduled: "PICKUP_SCHEDULED",
		PickedUp:        "PICKED_UP",
		InTransit:       "IN_TRANSIT",
		OutForDelivery:  "OUT_FOR_DELIVERY",
		Delivered:       "DELIVERED",
		NDR:             "NDR",
		RTOInitiated:    "RTO_INITIATED",
		RTOInTransit:    "RTO_IN_TRANSIT",
		RTODelivered:    "RTO_DELIVERED",
		Lost:            "LOST",
		Cancelled:       "CANCELLED",
	}
}

// getStatusBuckets returns the bucket assignment for every valid status.
// The mapping is total over valid statuses so BucketOf never has to guess.
func getStatusBuckets() map[Status]Bucket {
	return map[Status]Bucket{
		New:             BucketNew,
		CourierAssigned: BucketReadyToShip,
		PickupScheduled: BucketReadyToShip,
		PickedUp:        BucketInTransit,
		InTransit:       BucketInTransit,
		OutForDelivery:  BucketOutForDelivery,
		Delivered:       BucketDelivered,
		NDR:             BucketNDR,
		RTOInitiated:    BucketRTO,
		RTOInTransit:    BucketRTO,
		RTODelivered:    BucketRTO,
		Lost:            BucketLost,
		Cancelled:       BucketCancelled,
	}
}

// Validate checks if the Status value is valid.
// Unknown (0) and out-of-range values are invalid.
func (s Status) Validate() error {
	if _, ok := getStatusBuckets()[s]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("status is invalid",
			fmt.Errorf("%d is not a valid status", s))
	}
	return nil
}

// String returns the canonical carrier-facing name of the status.
// Safe to call on any Status value, including invalid ones.
func (s Status) String() string {
	if str, ok := getStatusStrings()[s]; ok {
		return str
	}
	return "UNKNOWN"
}

// StatusFromString parses a canonical status name.
// Returns an error for names that do not correspond to a valid status.
func StatusFromString(raw string) (Status, error) {
	for status, str := range getStatusStrings() {
		if str == raw && status != Unknown {
			return status, nil
		}
	}
	return Unknown, errs.NewValueIsInvalidErrorWithCause("status is invalid",
		fmt.Errorf("%q is not a valid status", raw))
}

// BucketOf maps a fine status to its coarse bucket.
// Total and deterministic: invalid statuses map to BucketNew so the
// function never fails, matching the convention that anything not yet
// reconciled sits in the new bucket.
func BucketOf(s Status) Bucket {
	if bucket, ok := getStatusBuckets()[s]; ok {
		return bucket
	}
	return BucketNew
}

// StatusOfBucket returns the canonical representative status for a bucket.
// Used as a tie-break when a carrier reports a bucket with an empty or
// unrecognized raw status string.
func StatusOfBucket(b Bucket) Status {
	switch b {
	case BucketNew:
		return New
	case BucketReadyToShip:
		return PickupScheduled
	case BucketInTransit:
		return InTransit
	case BucketOutForDelivery:
		return OutForDelivery
	case BucketDelivered:
		return Delivered
	case BucketNDR:
		return NDR
	case BucketRTO:
		return RTOInTransit
	case BucketLost:
		return Lost
	case BucketCancelled:
		return Cancelled
	default:
		return Unknown
	}
}

// IsFinal reports whether the status is terminal. Terminal shipments are
// excluded from tracking sweeps and never transition again.
func (s Status) IsFinal() bool {
	switch s {
	case Delivered, RTODelivered, Lost, Cancelled:
		return true
	default:
		return false
	}
}

// IsRTO reports whether the status belongs to the return-to-origin flow.
func (s Status) IsRTO() bool {
	return BucketOf(s) == BucketRTO
}

// FinalStatuses returns the set of terminal statuses.
// Used by candidate selection to exclude finished shipments in queries.
func FinalStatuses() []Status {
	return []Status{Delivered, RTODelivered, Lost, Cancelled}
}
