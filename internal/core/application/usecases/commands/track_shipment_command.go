package commands

import (
	"errors"

	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/pkg/guard"
)

var ErrTrackShipmentCommandIsNotConstructed = errors.New(
	"TrackShipmentCommand must be created via NewTrackShipmentCommand constructor",
)

// TrackShipmentCommand triggers tracking reconciliation for a single shipment:
// poll the carrier, reconcile status and bucket, buffer new events, and fan
// out follow-up jobs for RTO and NDR transitions.
//
// Force bypasses the recently-checked window and is set by the synchronous
// "track now" endpoint; background sweeps leave it unset so the cache bounds
// carrier call volume.
type TrackShipmentCommand struct {
	shipmentID kernel.UUID
	force      bool

	guard guard.ConstructorGuard
}

// NewTrackShipmentCommand creates a command to reconcile one shipment.
func NewTrackShipmentCommand(shipmentID kernel.UUID, force bool) (TrackShipmentCommand, error) {
	if err := shipmentID.Validate(); err != nil {
		return TrackShipmentCommand{}, err
	}

	return TrackShipmentCommand{
		shipmentID: shipmentID,
		force:      force,
		guard:      guard.NewConstructorGuard(),
	}, nil
}

// ShipmentID returns the shipment to reconcile.
func (c *TrackShipmentCommand) ShipmentID() kernel.UUID {
	return c.shipmentID
}

// Force reports whether the recently-checked window should be bypassed.
func (c *TrackShipmentCommand) Force() bool {
	return c.force
}

// Validate ensures the command was created through the constructor.
func (c *TrackShipmentCommand) Validate() error {
	return c.guard.Validate(ErrTrackShipmentCommandIsNotConstructed)
}
