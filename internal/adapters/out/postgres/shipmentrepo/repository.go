package shipmentrepo

import (
	"context"
	"errors"
	"time"

	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/core/domain/model/shipment"
	"tracking/internal/pkg/errs"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormShipmentRepository implements ShipmentRepository using GORM.
type GormShipmentRepository struct {
	db      *gorm.DB
	tracker aggregateTracker
}

// aggregateTracker defines the interface for tracking aggregates.
type aggregateTracker interface {
	TrackAggregate(id kernel.UUID, aggregate any)
}

// NewGormShipmentRepository creates a new GORM shipment repository.
func NewGormShipmentRepository(db *gorm.DB, tracker aggregateTracker) *GormShipmentRepository {
	return &GormShipmentRepository{
		db:      db,
		tracker: tracker,
	}
}

// Add saves a new shipment to the database.
func (r *GormShipmentRepository) Add(ctx context.Context, aggregate *shipment.Shipment) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	if err := r.db.WithContext(ctx).Create(&dto).Error; err != nil {
		return err
	}

	r.tracker.TrackAggregate(aggregate.ID(), aggregate)
	return nil
}

// Update saves an existing shipment to the database.
func (r *GormShipmentRepository) Update(ctx context.Context, aggregate *shipment.Shipment) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto := fromDomain(aggregate)
	result := r.db.WithContext(ctx).
		Model(&ShipmentDTO{}).
		Where("id = ?", dto.ID).
		Select("*").
		Omit("id").
		Updates(&dto)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	r.tracker.TrackAggregate(aggregate.ID(), aggregate)
	return nil
}

// Get retrieves a shipment by ID.
func (r *GormShipmentRepository) Get(ctx context.Context, id kernel.UUID) (*shipment.Shipment, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var dto ShipmentDTO
	if err := r.db.WithContext(ctx).First(&dto, "id = ?", id.Bytes()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("shipment", id.String())
		}
		return nil, err
	}

	return toDomain(dto)
}

// GetTrackingCandidates selects shipments due for a tracking refresh.
// Only shipments with an AWB and a non-terminal status qualify; ordering by
// update time means the longest-unrefreshed shipments go first.
func (r *GormShipmentRepository) GetTrackingCandidates(
	ctx context.Context,
	limit int,
) ([]shipment.TrackingCandidate, error) {
	var dtos []ShipmentDTO
	err := r.db.WithContext(ctx).
		Select("id", "order_id", "user_id", "awb", "carrier_code", "status", "bucket").
		Where("awb IS NOT NULL").
		Where("status NOT IN ?", finalStatusNames()).
		Order("updated_at ASC").
		Limit(limit).
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}

	candidates := make([]shipment.TrackingCandidate, 0, len(dtos))
	for _, dto := range dtos {
		candidate, candidateErr := toCandidate(dto)
		if candidateErr != nil {
			return nil, candidateErr
		}
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

// BulkUpdateStatus moves every listed shipment to the given status and its
// derived bucket in one statement. The flush job groups pending updates by
// target status before calling this.
func (r *GormShipmentRepository) BulkUpdateStatus(
	ctx context.Context,
	ids []kernel.UUID,
	status shipment.Status,
) error {
	if len(ids) == 0 {
		return nil
	}
	if err := status.Validate(); err != nil {
		return err
	}

	raw := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, id.Bytes())
	}

	return r.db.WithContext(ctx).
		Model(&ShipmentDTO{}).
		Where("id IN ?", raw).
		Updates(map[string]any{
			"status": status.String(),
			"bucket": int(shipment.BucketOf(status)),
		}).Error
}

// StampTransitionDate records the timestamp a status earns, once. The column
// guard keeps a late redelivered scan from overwriting the first stamp.
func (r *GormShipmentRepository) StampTransitionDate(
	ctx context.Context,
	id kernel.UUID,
	status shipment.Status,
	at time.Time,
) error {
	var column string
	switch status {
	case shipment.PickedUp:
		column = "picked_up_at"
	case shipment.Delivered:
		column = "delivered_at"
	case shipment.RTODelivered:
		column = "rto_delivered_at"
	default:
		return nil
	}

	return r.db.WithContext(ctx).
		Model(&ShipmentDTO{}).
		Where("id = ?", id.Bytes()).
		Where(column+" IS NULL").
		Update(column, at.UTC()).Error
}

// MarkChargeProcessed flips the settlement flag for one charge type. It
// touches only that column, so a status moved by a concurrent flush pass
// survives unchanged.
func (r *GormShipmentRepository) MarkChargeProcessed(
	ctx context.Context,
	id kernel.UUID,
	chargeType shipment.ChargeType,
) error {
	if err := id.Validate(); err != nil {
		return err
	}
	if err := chargeType.Validate(); err != nil {
		return err
	}

	var column string
	switch chargeType {
	case shipment.ChargeForward:
		column = "processed_forward"
	case shipment.ChargeCOD:
		column = "processed_cod"
	case shipment.ChargeRTO:
		column = "processed_rto"
	case shipment.ChargeForwardExcessWeight:
		column = "processed_forward_excess_weight"
	case shipment.ChargeRTOExcessWeight:
		column = "processed_rto_excess_weight"
	case shipment.ChargeCODReversal:
		column = "processed_cod_reversal"
	}

	result := r.db.WithContext(ctx).
		Model(&ShipmentDTO{}).
		Where("id = ?", id.Bytes()).
		Update(column, true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetRTOPendingCharges selects shipments in the RTO bucket with at least one
// unsettled RTO-related charge, oldest first. Feeds the RTO charge sweep.
func (r *GormShipmentRepository) GetRTOPendingCharges(
	ctx context.Context,
	limit int,
) ([]kernel.UUID, error) {
	var dtos []ShipmentDTO
	err := r.db.WithContext(ctx).
		Select("id").
		Where("bucket = ?", int(shipment.BucketRTO)).
		Where(`(
			(NOT processed_rto AND charge_rto > 0)
			OR (NOT processed_rto_excess_weight AND charge_rto_excess_weight > 0)
			OR (payment_mode = ? AND NOT processed_cod_reversal)
		)`, int(shipment.COD)).
		Order("updated_at ASC").
		Limit(limit).
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}

	ids := make([]kernel.UUID, 0, len(dtos))
	for _, dto := range dtos {
		id, idErr := kernel.UUIDFromBytes(dto.ID[:])
		if idErr != nil {
			return nil, idErr
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// toCandidate maps the projected columns into the selection projection.
func toCandidate(dto ShipmentDTO) (shipment.TrackingCandidate, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return shipment.TrackingCandidate{}, err
	}
	orderID, err := kernel.UUIDFromBytes(dto.OrderID[:])
	if err != nil {
		return shipment.TrackingCandidate{}, err
	}
	userID, err := kernel.UUIDFromBytes(dto.UserID[:])
	if err != nil {
		return shipment.TrackingCandidate{}, err
	}
	status, err := shipment.StatusFromString(dto.Status)
	if err != nil {
		return shipment.TrackingCandidate{}, err
	}

	var awb string
	if dto.AWB != nil {
		awb = *dto.AWB
	}

	return shipment.TrackingCandidate{
		ID:          id,
		OrderID:     orderID,
		UserID:      userID,
		AWB:         awb,
		CarrierCode: dto.CarrierCode,
		Status:      status,
		Bucket:      shipment.Bucket(dto.Bucket),
	}, nil
}

// finalStatusNames returns the persisted names of terminal statuses.
func finalStatusNames() []string {
	final := shipment.FinalStatuses()
	names := make([]string, 0, len(final))
	for _, status := range final {
		names = append(names, status.String())
	}
	return names
}
