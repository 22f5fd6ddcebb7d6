package eventrepo

import (
	"context"

	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/core/domain/model/shipment"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormEventRepository implements EventRepository using GORM.
type GormEventRepository struct {
	db *gorm.DB
}

// NewGormEventRepository creates a new GORM tracking event repository.
func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

// AddBatch inserts events in bulk. Rows colliding on the natural key index
// (shipment, timestamp, description) are skipped via ON CONFLICT DO NOTHING,
// so redelivered scans never fail the batch. Returns the number of rows
// actually inserted.
func (r *GormEventRepository) AddBatch(ctx context.Context, events []*shipment.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	dtos := make([]EventDTO, 0, len(events))
	for _, event := range events {
		if err := event.Validate(); err != nil {
			return 0, err
		}
		dtos = append(dtos, fromDomain(event))
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "shipment_id"},
				{Name: "event_time"},
				{Name: "description"},
			},
			DoNothing: true,
		}).
		Create(&dtos)
	if result.Error != nil {
		return 0, result.Error
	}

	return int(result.RowsAffected), nil
}

// ExistingKeys returns the natural keys of all persisted events for a
// shipment. The reconciler checks incoming scans against this set before
// buffering them.
func (r *GormEventRepository) ExistingKeys(
	ctx context.Context,
	shipmentID kernel.UUID,
) (map[string]struct{}, error) {
	if err := shipmentID.Validate(); err != nil {
		return nil, err
	}

	var dtos []EventDTO
	err := r.db.WithContext(ctx).
		Select("event_time", "description").
		Where("shipment_id = ?", shipmentID.Bytes()).
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}

	keys := make(map[string]struct{}, len(dtos))
	for _, dto := range dtos {
		keys[shipment.EventNaturalKey(dto.EventTime, dto.Description)] = struct{}{}
	}

	return keys, nil
}

// GetByShipment retrieves a shipment's events newest-first.
func (r *GormEventRepository) GetByShipment(
	ctx context.Context,
	shipmentID kernel.UUID,
) ([]*shipment.Event, error) {
	if err := shipmentID.Validate(); err != nil {
		return nil, err
	}

	var dtos []EventDTO
	err := r.db.WithContext(ctx).
		Where("shipment_id = ?", shipmentID.Bytes()).
		Order("event_time DESC").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}

	events := make([]*shipment.Event, 0, len(dtos))
	for _, dto := range dtos {
		event, eventErr := toDomain(dto)
		if eventErr != nil {
			return nil, eventErr
		}
		events = append(events, event)
	}

	return events, nil
}
