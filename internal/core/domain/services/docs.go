// Package services provides domain services that orchestrate business logic
// across the tracking domain when it doesn't naturally belong to a single
// aggregate root.
//
// The package includes:
//   - StatusResolver: A pure domain service that decides a shipment's new
//     status and bucket from one poll of carrier events, including the
//     tie-break between raw status codes and carrier-reported buckets.
package services
