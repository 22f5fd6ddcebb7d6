package queries

import (
	"errors"
	"time"

	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/core/domain/model/shipment"
	"tracking/internal/pkg/guard"
)

var (
	ErrGetShipmentTrackingQueryIsNotConstructed = errors.New(
		"GetShipmentTrackingQuery must be created via NewGetShipmentTrackingQuery constructor",
	)
)

// GetShipmentTrackingQuery retrieves the tracking view of one shipment:
// its current state plus the ordered scan history.
//
// Example:
//
//	query, err := NewGetShipmentTrackingQuery(shipmentID)
//	if err != nil {
//	    return err
//	}
//	handler := NewGetShipmentTrackingQueryHandler(db)
//
//	view, err := handler.Handle(ctx, query)
//	if err != nil {
//	    return fmt.Errorf("failed to get shipment tracking: %w", err)
//	}
//
//	fmt.Printf("Shipment %s is %s with %d events\n",
//	    view.ID, view.Status, len(view.Events))
type GetShipmentTrackingQuery struct {
	shipmentID kernel.UUID

	guard guard.ConstructorGuard
}

// NewGetShipmentTrackingQuery creates a tracking view query for one shipment.
func NewGetShipmentTrackingQuery(shipmentID kernel.UUID) (GetShipmentTrackingQuery, error) {
	if err := shipmentID.Validate(); err != nil {
		return GetShipmentTrackingQuery{}, err
	}

	return GetShipmentTrackingQuery{
		shipmentID: shipmentID,
		guard:      guard.NewConstructorGuard(),
	}, nil
}

// ShipmentID returns the shipment to read.
func (q GetShipmentTrackingQuery) ShipmentID() kernel.UUID {
	return q.shipmentID
}

// Validate ensures the query was created through the constructor.
// Returns ErrGetShipmentTrackingQueryIsNotConstructed if validation fails.
func (q GetShipmentTrackingQuery) Validate() error {
	return q.guard.Validate(ErrGetShipmentTrackingQueryIsNotConstructed)
}

// GetShipmentTrackingQueryResponse is the tracking view of one shipment.
type GetShipmentTrackingQueryResponse struct {
	ID             kernel.UUID
	OrderID        kernel.UUID
	AWB            *string
	CarrierCode    string
	Status         shipment.Status
	Bucket         shipment.Bucket
	NDRReason      *string
	PickedUpAt     *time.Time
	DeliveredAt    *time.Time
	RTODeliveredAt *time.Time
	Events         []ShipmentEventResponse
}

// ShipmentEventResponse is one scan in the shipment's history.
type ShipmentEventResponse struct {
	StatusCode  string
	Description string
	Location    string
	Timestamp   time.Time
}
