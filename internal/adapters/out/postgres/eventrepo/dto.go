// Package eventrepo provides data transfer objects and mapping functions for
// tracking event persistence. Events are append-only; the composite unique
// index on (shipment_id, event_time, description) is the durable half of the
// event dedup guarantee.
package eventrepo

import (
	"time"

	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/core/domain/model/shipment"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// EventDTO represents the database structure for persisting tracking events.
type EventDTO struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	ShipmentID  uuid.UUID `gorm:"type:uuid;index;uniqueIndex:idx_event_natural_key"`
	StatusCode  string
	Description string         `gorm:"uniqueIndex:idx_event_natural_key"`
	Location    string
	EventTime   time.Time      `gorm:"uniqueIndex:idx_event_natural_key"`
	Raw         datatypes.JSON `gorm:"type:jsonb"`
}

// TableName specifies the database table name for tracking events.
func (EventDTO) TableName() string {
	return "shipment_events"
}

// fromDomain converts a tracking event to its database representation.
func fromDomain(event *shipment.Event) EventDTO {
	return EventDTO{
		ID:          event.ID().Bytes(),
		ShipmentID:  event.ShipmentID().Bytes(),
		StatusCode:  event.StatusCode(),
		Description: event.Description(),
		Location:    event.Location(),
		EventTime:   event.Timestamp(),
		Raw:         datatypes.JSON(event.Raw()),
	}
}

// toDomain converts a database DTO to a tracking event.
func toDomain(dto EventDTO) (*shipment.Event, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}
	shipmentID, err := kernel.UUIDFromBytes(dto.ShipmentID[:])
	if err != nil {
		return nil, err
	}

	return shipment.NewEvent(
		id,
		shipmentID,
		dto.StatusCode,
		dto.Description,
		dto.Location,
		dto.EventTime,
		[]byte(dto.Raw),
	)
}
