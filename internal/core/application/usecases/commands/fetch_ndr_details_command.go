package commands

import (
	"errors"

	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/pkg/guard"
)

var ErrFetchNDRDetailsCommandIsNotConstructed = errors.New(
	"FetchNDRDetailsCommand must be created via NewFetchNDRDetailsCommand constructor",
)

// FetchNDRDetailsCommand records the carrier's non-delivery reason on a
// shipment that moved into NDR, giving the seller something to act on.
type FetchNDRDetailsCommand struct {
	shipmentID kernel.UUID

	guard guard.ConstructorGuard
}

// NewFetchNDRDetailsCommand creates an NDR detail fetch command.
func NewFetchNDRDetailsCommand(shipmentID kernel.UUID) (FetchNDRDetailsCommand, error) {
	if err := shipmentID.Validate(); err != nil {
		return FetchNDRDetailsCommand{}, err
	}

	return FetchNDRDetailsCommand{
		shipmentID: shipmentID,
		guard:      guard.NewConstructorGuard(),
	}, nil
}

// ShipmentID returns the shipment to fetch NDR details for.
func (c *FetchNDRDetailsCommand) ShipmentID() kernel.UUID {
	return c.shipmentID
}

// Validate ensures the command was created through the constructor.
func (c *FetchNDRDetailsCommand) Validate() error {
	return c.guard.Validate(ErrFetchNDRDetailsCommandIsNotConstructed)
}
