// Package shipment provides domain entities and business logic for tracking
// the lifecycle of shipments booked with external carriers.
//
// The package includes:
//   - Shipment: The aggregate root holding status, bucket, transition dates and charges
//   - Status/Bucket: The fine status enum and its coarse grouping, with a total mapping
//   - Event: An immutable carrier tracking scan with a (timestamp, description) natural key
//   - ChargeType: The closed set of settleable charges with per-variant eligibility
//   - TrackingCandidate: The minimal projection used by batch candidate selection
//
// Key business rules:
//   - The bucket is strictly derived from the status and may never diverge
//   - Terminal statuses (Delivered, RTODelivered, Lost, Cancelled) never transition again
//   - Transition timestamps are stamped once, on the transition that earns them
//   - Each charge type settles at most once per shipment
//
// The package follows Domain-Driven Design principles, providing rich domain
// behavior, encapsulation, and validation to ensure business rules are enforced.
package shipment
