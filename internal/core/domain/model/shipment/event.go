package shipment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/pkg/errs"
)

// ErrEventIsNotConstructed is returned when an Event instance was not
// created through NewEvent or RestoreEvent.
var ErrEventIsNotConstructed = errors.New("Event must be created via NewEvent constructor")

// Event is one immutable tracking scan reported by a carrier for a shipment.
// Events are append-only: they are never updated or deleted, and no two
// events with the same natural key (shipment, timestamp, description) may
// persist. The raw carrier payload is kept verbatim for audit.
type Event struct {
	id          kernel.UUID
	shipmentID  kernel.UUID
	statusCode  string
	description string
	location    string
	timestamp   time.Time
	raw         []byte

	isConstructed bool
}

// NewEvent creates a tracking event for a shipment.
// The timestamp is normalized to UTC so natural keys compare consistently
// regardless of the carrier's reporting zone.
func NewEvent(
	id kernel.UUID,
	shipmentID kernel.UUID,
	statusCode string,
	description string,
	location string,
	timestamp time.Time,
	raw []byte,
) (*Event, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	if err := shipmentID.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(description) == "" {
		return nil, errs.NewValueIsRequiredError("description")
	}
	if timestamp.IsZero() {
		return nil, errs.NewValueIsRequiredError("timestamp")
	}

	return &Event{
		id:            id,
		shipmentID:    shipmentID,
		statusCode:    statusCode,
		description:   description,
		location:      location,
		timestamp:     timestamp.UTC(),
		raw:           raw,
		isConstructed: true,
	}, nil
}

// Validate ensures the Event was created through NewEvent.
func (e *Event) Validate() error {
	if e == nil || !e.isConstructed {
		return ErrEventIsNotConstructed
	}
	return nil
}

// ID returns the event's unique identifier.
func (e *Event) ID() kernel.UUID {
	return e.id
}

// ShipmentID returns the shipment this event belongs to.
func (e *Event) ShipmentID() kernel.UUID {
	return e.shipmentID
}

// StatusCode returns the carrier's status code for this scan.
func (e *Event) StatusCode() string {
	return e.statusCode
}

// Description returns the carrier's human-readable scan description.
func (e *Event) Description() string {
	return e.description
}

// Location returns where the scan happened, as reported by the carrier.
func (e *Event) Location() string {
	return e.location
}

// Timestamp returns when the scan happened, in UTC.
func (e *Event) Timestamp() time.Time {
	return e.timestamp
}

// Raw returns the verbatim carrier payload for this scan.
func (e *Event) Raw() []byte {
	return e.raw
}

// NaturalKey returns the dedup identity of the event within its shipment.
// Two scans with the same timestamp and description are the same event, no
// matter how many polls redeliver them.
func (e *Event) NaturalKey() string {
	return EventNaturalKey(e.timestamp, e.description)
}

// EventNaturalKey builds the (timestamp, description) dedup key used to
// compare incoming carrier scans against persisted events. The timestamp is
// truncated to microseconds, the resolution the store keeps, so a key built
// from an in-memory scan matches the key rebuilt from its persisted row.
func EventNaturalKey(timestamp time.Time, description string) string {
	return fmt.Sprintf("%s|%s",
		timestamp.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano),
		description)
}
