package queries

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/core/domain/model/shipment"
	"tracking/internal/pkg/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GetShipmentTrackingQueryHandler reads the tracking view straight from the
// database, bypassing the aggregate. The read model serves dashboards and
// support tooling where a thin snapshot beats a full domain load.
//
// Example:
//
//	handler := NewGetShipmentTrackingQueryHandler(db)
//	query, _ := NewGetShipmentTrackingQuery(shipmentID)
//
//	view, err := handler.Handle(ctx, query)
//	if err != nil {
//	    log.Printf("Failed to get tracking view: %v", err)
//	    return err
//	}
type GetShipmentTrackingQueryHandler struct {
	db *gorm.DB
}

// NewGetShipmentTrackingQueryHandler creates a handler for tracking view queries.
// Requires a GORM database connection for query execution.
func NewGetShipmentTrackingQueryHandler(db *gorm.DB) GetShipmentTrackingQueryHandler {
	return GetShipmentTrackingQueryHandler{db: db}
}

// Handle executes the query for one shipment's tracking view.
// Events come back oldest first so callers can render the scan timeline as is.
func (h GetShipmentTrackingQueryHandler) Handle(
	ctx context.Context,
	query GetShipmentTrackingQuery,
) (GetShipmentTrackingQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return GetShipmentTrackingQueryResponse{}, err
	}

	var response GetShipmentTrackingQueryResponse

	row := h.db.WithContext(ctx).Raw(`
		SELECT
			id,
			order_id,
			awb,
			carrier_code,
			status,
			ndr_reason,
			picked_up_at,
			delivered_at,
			rto_delivered_at
		FROM shipments
		WHERE id = ?
	`, query.ShipmentID().Bytes()).Row()

	var (
		id, orderID              uuid.UUID
		awb, ndrReason           sql.NullString
		status                   string
		pickedUp, delivered, rto sql.NullTime
	)
	err := row.Scan(
		&id,
		&orderID,
		&awb,
		&response.CarrierCode,
		&status,
		&ndrReason,
		&pickedUp,
		&delivered,
		&rto,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return GetShipmentTrackingQueryResponse{},
			errs.NewObjectNotFoundError("shipmentID", query.ShipmentID())
	}
	if err != nil {
		return GetShipmentTrackingQueryResponse{}, err
	}

	if response.ID, err = kernel.UUIDFromBytes(id[:]); err != nil {
		return GetShipmentTrackingQueryResponse{}, err
	}
	if response.OrderID, err = kernel.UUIDFromBytes(orderID[:]); err != nil {
		return GetShipmentTrackingQueryResponse{}, err
	}
	if response.Status, err = shipment.StatusFromString(status); err != nil {
		return GetShipmentTrackingQueryResponse{}, err
	}
	response.Bucket = shipment.BucketOf(response.Status)
	response.AWB = nullableString(awb)
	response.NDRReason = nullableString(ndrReason)
	response.PickedUpAt = nullableTime(pickedUp)
	response.DeliveredAt = nullableTime(delivered)
	response.RTODeliveredAt = nullableTime(rto)

	response.Events, err = h.loadEvents(ctx, query.ShipmentID())
	if err != nil {
		return GetShipmentTrackingQueryResponse{}, err
	}

	return response, nil
}

func (h GetShipmentTrackingQueryHandler) loadEvents(
	ctx context.Context,
	shipmentID kernel.UUID,
) ([]ShipmentEventResponse, error) {
	events := make([]ShipmentEventResponse, 0)

	rows, err := h.db.WithContext(ctx).Raw(`
		SELECT
			status_code,
			description,
			location,
			event_time
		FROM shipment_events
		WHERE shipment_id = ?
		ORDER BY event_time, id
	`, shipmentID.Bytes()).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var event ShipmentEventResponse
		var location sql.NullString

		err = rows.Scan(
			&event.StatusCode,
			&event.Description,
			&location,
			&event.Timestamp,
		)
		if err != nil {
			return nil, err
		}

		event.Location = location.String
		event.Timestamp = event.Timestamp.UTC()
		events = append(events, event)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullableTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	utc := v.Time.UTC()
	return &utc
}
