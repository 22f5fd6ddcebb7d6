package commands

import (
	"errors"

	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/pkg/guard"
)

var ErrSettleChargesCommandIsNotConstructed = errors.New(
	"SettleChargesCommand must be created via NewSettleChargesCommand constructor",
)

// SettleChargesCommand triggers charge settlement for one shipment: every
// eligible charge type is applied to the user's wallet exactly once.
type SettleChargesCommand struct {
	shipmentID kernel.UUID

	guard guard.ConstructorGuard
}

// NewSettleChargesCommand creates a settlement command.
func NewSettleChargesCommand(shipmentID kernel.UUID) (SettleChargesCommand, error) {
	if err := shipmentID.Validate(); err != nil {
		return SettleChargesCommand{}, err
	}

	return SettleChargesCommand{
		shipmentID: shipmentID,
		guard:      guard.NewConstructorGuard(),
	}, nil
}

// ShipmentID returns the shipment whose charges should settle.
func (c *SettleChargesCommand) ShipmentID() kernel.UUID {
	return c.shipmentID
}

// Validate ensures the command was created through the constructor.
func (c *SettleChargesCommand) Validate() error {
	return c.guard.Validate(ErrSettleChargesCommandIsNotConstructed)
}
