package commands_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"tracking/internal/core/application/usecases/commands"
	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/core/domain/model/shipment"
	"tracking/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestFlushTrackingBuffersCommandHandler_Handle_LastStatusWinsPerShipment(t *testing.T) {
	ctx := t.Context()
	cmd := commands.NewFlushTrackingBuffersCommand()

	shipmentA := kernel.NewUUID()
	shipmentB := kernel.NewUUID()
	base := time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)

	updates := []ports.StatusUpdate{
		{ShipmentID: shipmentA, Status: shipment.OutForDelivery, ChangedAt: base},
		{ShipmentID: shipmentA, Status: shipment.Delivered, ChangedAt: base.Add(time.Hour)},
		{ShipmentID: shipmentB, Status: shipment.InTransit, ChangedAt: base.Add(10 * time.Minute)},
	}

	shipmentRepo := new(MockShipmentRepo)
	uow := new(MockTrackingUoW)
	factory := new(MockTrackingUoWFactory)
	buffer := new(MockTrackingBuffer)

	buffer.On("PeekStatusUpdates", mock.Anything).Return(updates, 0, nil).Once()
	factory.On("Create").Return(uow).Once()
	uow.On("Begin", ctx).Return(nil).Once()
	uow.On("ShipmentRepository").Return(shipmentRepo).Once()
	// Group flush order is map-driven, so no ordering is asserted here.
	shipmentRepo.On("BulkUpdateStatus", ctx, []kernel.UUID{shipmentA}, shipment.Delivered).Return(nil).Once()
	shipmentRepo.On("StampTransitionDate", ctx, shipmentA, shipment.Delivered, base.Add(time.Hour)).Return(nil).Once()
	shipmentRepo.On("BulkUpdateStatus", ctx, []kernel.UUID{shipmentB}, shipment.InTransit).Return(nil).Once()
	shipmentRepo.On("StampTransitionDate", ctx, shipmentB, shipment.InTransit, base.Add(10*time.Minute)).Return(nil).Once()
	uow.On("Commit", ctx).Return(nil).Once()
	uow.On("Rollback", ctx).Return(nil).Once()
	buffer.On("DiscardStatusUpdates", 3).Return(nil).Once()
	buffer.On("PeekEvents", mock.Anything).Return([]ports.PendingEvent{}, 0, nil).Once()

	handler := commands.NewFlushTrackingBuffersCommandHandler(factory, buffer, discardLogger())
	result, err := handler.Handle(ctx, cmd)

	require.NoError(t, err)
	assert.Equal(t, 2, result.StatusesFlushed)
	assert.Equal(t, 0, result.EventsInserted)
	assert.Equal(t, 0, result.Malformed)
	// The superseded A update must not reach the store.
	shipmentRepo.AssertNotCalled(t, "BulkUpdateStatus", ctx, []kernel.UUID{shipmentA}, shipment.OutForDelivery)
	factory.AssertExpectations(t)
	uow.AssertExpectations(t)
	shipmentRepo.AssertExpectations(t)
	buffer.AssertExpectations(t)
}

func TestFlushTrackingBuffersCommandHandler_Handle_FailedWriteKeepsEntriesQueued(t *testing.T) {
	ctx := t.Context()
	cmd := commands.NewFlushTrackingBuffersCommand()

	shipmentID := kernel.NewUUID()
	updates := []ports.StatusUpdate{
		{ShipmentID: shipmentID, Status: shipment.Delivered, ChangedAt: time.Now().UTC()},
	}
	storeErr := errors.New("connection reset")

	shipmentRepo := new(MockShipmentRepo)
	uow := new(MockTrackingUoW)
	factory := new(MockTrackingUoWFactory)
	buffer := new(MockTrackingBuffer)

	buffer.On("PeekStatusUpdates", mock.Anything).Return(updates, 0, nil).Once()
	factory.On("Create").Return(uow).Once()
	uow.On("Begin", ctx).Return(nil).Once()
	uow.On("ShipmentRepository").Return(shipmentRepo).Once()
	shipmentRepo.On("BulkUpdateStatus", ctx, []kernel.UUID{shipmentID}, shipment.Delivered).Return(storeErr).Once()
	uow.On("Rollback", ctx).Return(nil).Once()

	handler := commands.NewFlushTrackingBuffersCommandHandler(factory, buffer, discardLogger())
	_, err := handler.Handle(ctx, cmd)

	require.ErrorIs(t, err, storeErr)
	// The chunk stays queued for the next pass.
	buffer.AssertNotCalled(t, "DiscardStatusUpdates", mock.Anything)
	buffer.AssertExpectations(t)
	uow.AssertExpectations(t)
}

func TestFlushTrackingBuffersCommandHandler_Handle_InvalidStatusDroppedAsMalformed(t *testing.T) {
	ctx := t.Context()
	cmd := commands.NewFlushTrackingBuffersCommand()

	goodID := kernel.NewUUID()
	base := time.Date(2025, 4, 2, 10, 0, 0, 0, time.UTC)

	updates := []ports.StatusUpdate{
		{ShipmentID: kernel.NewUUID(), Status: shipment.Status(99), ChangedAt: base},
		{ShipmentID: goodID, Status: shipment.Delivered, ChangedAt: base.Add(time.Minute)},
	}

	shipmentRepo := new(MockShipmentRepo)
	uow := new(MockTrackingUoW)
	factory := new(MockTrackingUoWFactory)
	buffer := new(MockTrackingBuffer)

	buffer.On("PeekStatusUpdates", mock.Anything).Return(updates, 0, nil).Once()
	factory.On("Create").Return(uow).Once()
	uow.On("Begin", ctx).Return(nil).Once()
	uow.On("ShipmentRepository").Return(shipmentRepo).Once()
	shipmentRepo.On("BulkUpdateStatus", ctx, []kernel.UUID{goodID}, shipment.Delivered).Return(nil).Once()
	shipmentRepo.On("StampTransitionDate", ctx, goodID, shipment.Delivered, base.Add(time.Minute)).Return(nil).Once()
	uow.On("Commit", ctx).Return(nil).Once()
	uow.On("Rollback", ctx).Return(nil).Once()
	buffer.On("DiscardStatusUpdates", 2).Return(nil).Once()
	buffer.On("PeekEvents", mock.Anything).Return([]ports.PendingEvent{}, 0, nil).Once()

	handler := commands.NewFlushTrackingBuffersCommandHandler(factory, buffer, discardLogger())
	result, err := handler.Handle(ctx, cmd)

	require.NoError(t, err)
	assert.Equal(t, 1, result.StatusesFlushed)
	assert.Equal(t, 1, result.Malformed)
	shipmentRepo.AssertExpectations(t)
	buffer.AssertExpectations(t)
}

func TestFlushTrackingBuffersCommandHandler_Handle_AllMalformedChunkDiscardedWithoutWrite(t *testing.T) {
	ctx := t.Context()
	cmd := commands.NewFlushTrackingBuffersCommand()

	factory := new(MockTrackingUoWFactory)
	buffer := new(MockTrackingBuffer)

	mock.InOrder(
		buffer.On("PeekStatusUpdates", mock.Anything).Return([]ports.StatusUpdate{}, 3, nil).Once(),
		buffer.On("DiscardStatusUpdates", 3).Return(nil).Once(),
		buffer.On("PeekEvents", mock.Anything).Return([]ports.PendingEvent{}, 0, nil).Once(),
	)

	handler := commands.NewFlushTrackingBuffersCommandHandler(factory, buffer, discardLogger())
	result, err := handler.Handle(ctx, cmd)

	require.NoError(t, err)
	assert.Equal(t, 3, result.Malformed)
	assert.Equal(t, 0, result.StatusesFlushed)
	factory.AssertNotCalled(t, "Create")
	buffer.AssertExpectations(t)
}

func TestFlushTrackingBuffersCommandHandler_Handle_EventsInsertedWithDuplicateSkip(t *testing.T) {
	ctx := t.Context()
	cmd := commands.NewFlushTrackingBuffersCommand()

	shipmentID := kernel.NewUUID()
	base := time.Date(2025, 4, 2, 12, 0, 0, 0, time.UTC)

	pending := []ports.PendingEvent{
		{ShipmentID: shipmentID, StatusCode: "IN_TRANSIT", Description: "Departed hub", Timestamp: base},
		{ShipmentID: shipmentID, StatusCode: "IN_TRANSIT", Description: "Arrived hub", Timestamp: base.Add(time.Hour)},
		// Fails domain validation, dropped like a malformed queue payload.
		{ShipmentID: shipmentID, StatusCode: "IN_TRANSIT", Description: "", Timestamp: base.Add(2 * time.Hour)},
	}

	eventRepo := new(MockEventRepo)
	uow := new(MockTrackingUoW)
	factory := new(MockTrackingUoWFactory)
	buffer := new(MockTrackingBuffer)

	mock.InOrder(
		buffer.On("PeekStatusUpdates", mock.Anything).Return([]ports.StatusUpdate{}, 0, nil).Once(),
		buffer.On("PeekEvents", mock.Anything).Return(pending, 1, nil).Once(),
		factory.On("Create").Return(uow).Once(),
		uow.On("EventRepository").Return(eventRepo).Once(),
		eventRepo.On("AddBatch", ctx, mock.MatchedBy(func(events []*shipment.Event) bool {
			return len(events) == 2
		})).Return(1, nil).Once(),
		buffer.On("DiscardEvents", 4).Return(nil).Once(),
	)

	handler := commands.NewFlushTrackingBuffersCommandHandler(factory, buffer, discardLogger())
	result, err := handler.Handle(ctx, cmd)

	require.NoError(t, err)
	// One of the two valid rows was a natural-key duplicate in the store.
	assert.Equal(t, 1, result.EventsInserted)
	assert.Equal(t, 2, result.Malformed)
	assert.Equal(t, 0, result.StatusesFlushed)
	factory.AssertExpectations(t)
	uow.AssertExpectations(t)
	eventRepo.AssertExpectations(t)
	buffer.AssertExpectations(t)
}

func TestFlushTrackingBuffersCommandHandler_Handle_FailedEventBatchKeepsChunkQueued(t *testing.T) {
	ctx := t.Context()
	cmd := commands.NewFlushTrackingBuffersCommand()

	pending := []ports.PendingEvent{
		{ShipmentID: kernel.NewUUID(), StatusCode: "NDR", Description: "Address issue", Timestamp: time.Now().UTC()},
	}
	storeErr := errors.New("deadlock detected")

	eventRepo := new(MockEventRepo)
	uow := new(MockTrackingUoW)
	factory := new(MockTrackingUoWFactory)
	buffer := new(MockTrackingBuffer)

	mock.InOrder(
		buffer.On("PeekStatusUpdates", mock.Anything).Return([]ports.StatusUpdate{}, 0, nil).Once(),
		buffer.On("PeekEvents", mock.Anything).Return(pending, 0, nil).Once(),
		factory.On("Create").Return(uow).Once(),
		uow.On("EventRepository").Return(eventRepo).Once(),
		eventRepo.On("AddBatch", ctx, mock.Anything).Return(0, storeErr).Once(),
	)

	handler := commands.NewFlushTrackingBuffersCommandHandler(factory, buffer, discardLogger())
	_, err := handler.Handle(ctx, cmd)

	require.ErrorIs(t, err, storeErr)
	buffer.AssertNotCalled(t, "DiscardEvents", mock.Anything)
	buffer.AssertExpectations(t)
}

func TestFlushTrackingBuffersCommandHandler_Handle_DrainsFullEventChunks(t *testing.T) {
	ctx := t.Context()
	cmd := commands.NewFlushTrackingBuffersCommand()

	shipmentID := kernel.NewUUID()
	base := time.Date(2025, 4, 2, 6, 0, 0, 0, time.UTC)

	chunk := make([]ports.PendingEvent, 100)
	for i := range chunk {
		chunk[i] = ports.PendingEvent{
			ShipmentID:  shipmentID,
			StatusCode:  "IN_TRANSIT",
			Description: fmt.Sprintf("Scan %d", i),
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
		}
	}

	eventRepo := new(MockEventRepo)
	uow := new(MockTrackingUoW)
	factory := new(MockTrackingUoWFactory)
	buffer := new(MockTrackingBuffer)

	mock.InOrder(
		buffer.On("PeekStatusUpdates", mock.Anything).Return([]ports.StatusUpdate{}, 0, nil).Once(),
		buffer.On("PeekEvents", mock.Anything).Return(chunk, 0, nil).Once(),
		factory.On("Create").Return(uow).Once(),
		uow.On("EventRepository").Return(eventRepo).Once(),
		eventRepo.On("AddBatch", ctx, mock.MatchedBy(func(events []*shipment.Event) bool {
			return len(events) == 100
		})).Return(100, nil).Once(),
		buffer.On("DiscardEvents", 100).Return(nil).Once(),
		// A full chunk means there may be more; the next peek ends the loop.
		buffer.On("PeekEvents", mock.Anything).Return([]ports.PendingEvent{}, 0, nil).Once(),
	)

	handler := commands.NewFlushTrackingBuffersCommandHandler(factory, buffer, discardLogger())
	result, err := handler.Handle(ctx, cmd)

	require.NoError(t, err)
	assert.Equal(t, 100, result.EventsInserted)
	factory.AssertExpectations(t)
	eventRepo.AssertExpectations(t)
	buffer.AssertExpectations(t)
}

func TestFlushTrackingBuffersCommandHandler_Handle_EmptyQueues(t *testing.T) {
	ctx := t.Context()
	cmd := commands.NewFlushTrackingBuffersCommand()

	factory := new(MockTrackingUoWFactory)
	buffer := new(MockTrackingBuffer)

	mock.InOrder(
		buffer.On("PeekStatusUpdates", mock.Anything).Return([]ports.StatusUpdate{}, 0, nil).Once(),
		buffer.On("PeekEvents", mock.Anything).Return([]ports.PendingEvent{}, 0, nil).Once(),
	)

	handler := commands.NewFlushTrackingBuffersCommandHandler(factory, buffer, discardLogger())
	result, err := handler.Handle(ctx, cmd)

	require.NoError(t, err)
	assert.Equal(t, commands.FlushTrackingBuffersResult{}, result)
	factory.AssertNotCalled(t, "Create")
	buffer.AssertNotCalled(t, "DiscardStatusUpdates", mock.Anything)
	buffer.AssertNotCalled(t, "DiscardEvents", mock.Anything)
	buffer.AssertExpectations(t)
}
