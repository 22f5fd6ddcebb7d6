// Package shipmentrepo provides data transfer objects and mapping functions
// for shipment persistence. This package implements the repository pattern
// for the shipment domain aggregate, handling the conversion between domain
// entities and database representations.
package shipmentrepo

import (
	"time"

	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/core/domain/model/shipment"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ShipmentDTO represents the database structure for persisting shipment
// aggregates. Status is stored as its canonical name and the bucket as its
// numeric value; both are indexed because sweeps and dashboards filter on
// them constantly. UpdatedAt drives candidate ordering so no shipment starves.
type ShipmentDTO struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID     uuid.UUID `gorm:"type:uuid;index"`
	UserID      uuid.UUID `gorm:"type:uuid;index"`
	CarrierCode string
	AWB         *string `gorm:"uniqueIndex"`
	PaymentMode int

	Status string `gorm:"index"`
	Bucket int    `gorm:"index"`

	PickedUpAt     *time.Time
	DeliveredAt    *time.Time
	RTODeliveredAt *time.Time

	NDRReason   *string
	NDRRaisedAt *time.Time

	Charges   ChargesDTO          `gorm:"embedded;embeddedPrefix:charge_"`
	Processed ProcessedChargesDTO `gorm:"embedded;embeddedPrefix:processed_"`

	UpdatedAt time.Time `gorm:"index"`
}

// TableName specifies the database table name for shipment entities.
func (ShipmentDTO) TableName() string {
	return "shipments"
}

// ChargesDTO holds the configured charge amounts embedded in the shipment row.
type ChargesDTO struct {
	Forward             decimal.Decimal `gorm:"type:numeric(12,2)"`
	COD                 decimal.Decimal `gorm:"type:numeric(12,2)"`
	RTO                 decimal.Decimal `gorm:"type:numeric(12,2)"`
	ForwardExcessWeight decimal.Decimal `gorm:"type:numeric(12,2)"`
	RTOExcessWeight     decimal.Decimal `gorm:"type:numeric(12,2)"`
	CODCollectible      decimal.Decimal `gorm:"type:numeric(12,2)"`
}

// ProcessedChargesDTO holds the per-charge settlement flags embedded in the
// shipment row.
type ProcessedChargesDTO struct {
	Forward             bool
	COD                 bool
	RTO                 bool
	ForwardExcessWeight bool
	RTOExcessWeight     bool
	CODReversal         bool
}

// fromDomain converts a shipment domain aggregate to its database representation.
func fromDomain(aggregate *shipment.Shipment) ShipmentDTO {
	charges := aggregate.Charges()
	processed := aggregate.Processed()

	return ShipmentDTO{
		ID:             aggregate.ID().Bytes(),
		OrderID:        aggregate.OrderID().Bytes(),
		UserID:         aggregate.UserID().Bytes(),
		CarrierCode:    aggregate.CarrierCode(),
		AWB:            aggregate.AWB(),
		PaymentMode:    int(aggregate.PaymentMode()),
		Status:         aggregate.Status().String(),
		Bucket:         int(aggregate.Bucket()),
		PickedUpAt:     aggregate.PickedUpAt(),
		DeliveredAt:    aggregate.DeliveredAt(),
		RTODeliveredAt: aggregate.RTODeliveredAt(),
		NDRReason:      aggregate.NDRReason(),
		NDRRaisedAt:    aggregate.NDRRaisedAt(),
		Charges: ChargesDTO{
			Forward:             charges.Forward,
			COD:                 charges.COD,
			RTO:                 charges.RTO,
			ForwardExcessWeight: charges.ForwardExcessWeight,
			RTOExcessWeight:     charges.RTOExcessWeight,
			CODCollectible:      charges.CODCollectible,
		},
		Processed: ProcessedChargesDTO{
			Forward:             processed.Forward,
			COD:                 processed.COD,
			RTO:                 processed.RTO,
			ForwardExcessWeight: processed.ForwardExcessWeight,
			RTOExcessWeight:     processed.RTOExcessWeight,
			CODReversal:         processed.CODReversal,
		},
	}
}

// toDomain converts a database DTO to a shipment domain aggregate using
// RestoreShipment, which re-derives the bucket from the persisted status.
func toDomain(dto ShipmentDTO) (*shipment.Shipment, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}
	orderID, err := kernel.UUIDFromBytes(dto.OrderID[:])
	if err != nil {
		return nil, err
	}
	userID, err := kernel.UUIDFromBytes(dto.UserID[:])
	if err != nil {
		return nil, err
	}
	status, err := shipment.StatusFromString(dto.Status)
	if err != nil {
		return nil, err
	}

	return shipment.RestoreShipment(
		id,
		orderID,
		userID,
		dto.CarrierCode,
		dto.AWB,
		shipment.PaymentMode(dto.PaymentMode),
		status,
		shipment.Charges{
			Forward:             dto.Charges.Forward,
			COD:                 dto.Charges.COD,
			RTO:                 dto.Charges.RTO,
			ForwardExcessWeight: dto.Charges.ForwardExcessWeight,
			RTOExcessWeight:     dto.Charges.RTOExcessWeight,
			CODCollectible:      dto.Charges.CODCollectible,
		},
		shipment.ProcessedCharges{
			Forward:             dto.Processed.Forward,
			COD:                 dto.Processed.COD,
			RTO:                 dto.Processed.RTO,
			ForwardExcessWeight: dto.Processed.ForwardExcessWeight,
			RTOExcessWeight:     dto.Processed.RTOExcessWeight,
			CODReversal:         dto.Processed.CODReversal,
		},
		dto.PickedUpAt, dto.DeliveredAt, dto.RTODeliveredAt,
		dto.NDRReason,
		dto.NDRRaisedAt,
	)
}
