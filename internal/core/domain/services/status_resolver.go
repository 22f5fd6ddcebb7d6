package services

import (
	"sort"
	"time"

	"tracking/internal/core/domain/model/shipment"
)

// Scan is one carrier tracking event as seen by the resolver: the raw status
// code, the carrier's coarse bucket when it reports one, and the carrier's
// return flag.
type Scan struct {
	Timestamp  time.Time
	StatusCode string
	Bucket     *shipment.Bucket
	RTO        bool
}

// Resolution is the outcome of interpreting one poll against the current
// shipment state.
type Resolution struct {
	// Changed reports whether the poll moved the status at all.
	Changed bool

	NewStatus shipment.Status
	NewBucket shipment.Bucket

	// RTO is set when any scan in the poll carries the carrier's return flag
	// or the resolved status lands in the RTO bucket.
	RTO bool

	// NDR is set when the resolved status is a non-delivery report.
	NDR bool

	// ChangedAt is the carrier timestamp of the scan that determined the new
	// status; zero when the poll carried no scans.
	ChangedAt time.Time
}

// StatusResolver decides a shipment's new status from one poll of carrier
// events. It is a pure domain service: same inputs, same resolution.
//
// Rules:
//   - The newest scan by carrier timestamp determines the status; older scans
//     in the same poll only contribute their RTO flags.
//   - A recognized raw status code wins. An empty or unrecognized code falls
//     back to the bucket the scan (or the poll's latest bucket) reports,
//     mapped to that bucket's canonical status.
//   - A poll that resolves to the current status is reported as unchanged.
type StatusResolver struct{}

// NewStatusResolver creates a new StatusResolver instance.
func NewStatusResolver() StatusResolver {
	return StatusResolver{}
}

// Resolve interprets a poll for a shipment currently in current status.
// latestBucket is the poll-level bucket some carriers report alongside the
// scan list; it is the weakest signal and only used when no scan decides.
func (r StatusResolver) Resolve(
	current shipment.Status,
	scans []Scan,
	latestBucket *shipment.Bucket,
) Resolution {
	ordered := make([]Scan, len(scans))
	copy(ordered, scans)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.After(ordered[j].Timestamp)
	})

	resolution := Resolution{
		NewStatus: current,
		NewBucket: shipment.BucketOf(current),
	}

	for _, scan := range ordered {
		if scan.RTO {
			resolution.RTO = true
			break
		}
	}

	if len(ordered) > 0 {
		newest := ordered[0]
		resolution.ChangedAt = newest.Timestamp

		// Bucket fallbacks can themselves be out of range when a carrier
		// starts reporting buckets we do not know; those map to Unknown and
		// must not regress the current status.
		if status, err := shipment.StatusFromString(newest.StatusCode); err == nil {
			resolution.NewStatus = status
		} else if status := bucketStatus(newest.Bucket); status != shipment.Unknown {
			resolution.NewStatus = status
		} else if status := bucketStatus(latestBucket); status != shipment.Unknown {
			resolution.NewStatus = status
		}
	} else if status := bucketStatus(latestBucket); status != shipment.Unknown {
		resolution.NewStatus = status
	}

	// An RTO flag without an RTO-flow status means the carrier signalled the
	// return before its status feed caught up. Trust the flag.
	if resolution.RTO && !resolution.NewStatus.IsRTO() {
		resolution.NewStatus = shipment.RTOInitiated
	}

	resolution.NewBucket = shipment.BucketOf(resolution.NewStatus)
	resolution.RTO = resolution.RTO || resolution.NewStatus.IsRTO()
	resolution.NDR = resolution.NewStatus == shipment.NDR
	resolution.Changed = resolution.NewStatus != current

	return resolution
}

// bucketStatus maps an optional carrier bucket to its canonical status.
// Returns Unknown when the bucket is absent or not one we recognize.
func bucketStatus(bucket *shipment.Bucket) shipment.Status {
	if bucket == nil {
		return shipment.Unknown
	}
	return shipment.StatusOfBucket(*bucket)
}
