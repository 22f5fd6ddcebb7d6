package commands

import (
	"context"
	"log/slog"

	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/core/domain/model/shipment"
	"tracking/internal/core/ports"
)

// Chunk sizes for one flush pass. Bounded so a backlog cannot balloon one
// transaction; the flush job runs again a minute later anyway.
const (
	statusFlushLimit = 500
	eventFlushChunk  = 100
)

// FlushTrackingBuffersResult summarizes one flush pass.
type FlushTrackingBuffersResult struct {
	StatusesFlushed int
	EventsInserted  int
	Malformed       int
}

// FlushTrackingBuffersCommandHandler drains the flush queues into the
// relational store: one bulk update per target status value, then event
// chunks bulk-inserted with duplicate-skip on the natural key. Each chunk
// is peeked, written, and only then discarded from the queue, so a failed
// write leaves the entries in place for the next pass. Malformed queue
// entries are logged and discarded with their chunk.
type FlushTrackingBuffersCommandHandler struct {
	uowFactory TrackingUoWFactory
	buffer     ports.TrackingBuffer
	logger     *slog.Logger
}

// NewFlushTrackingBuffersCommandHandler creates a flush handler.
func NewFlushTrackingBuffersCommandHandler(
	uowFactory TrackingUoWFactory,
	buffer ports.TrackingBuffer,
	logger *slog.Logger,
) FlushTrackingBuffersCommandHandler {
	return FlushTrackingBuffersCommandHandler{
		uowFactory: uowFactory,
		buffer:     buffer,
		logger:     logger.With("component", "flush_handler"),
	}
}

// Handle performs one flush pass over both queues.
func (h *FlushTrackingBuffersCommandHandler) Handle(
	ctx context.Context,
	cmd FlushTrackingBuffersCommand,
) (FlushTrackingBuffersResult, error) {
	if err := cmd.Validate(); err != nil {
		return FlushTrackingBuffersResult{}, err
	}

	var result FlushTrackingBuffersResult

	if err := h.flushStatusUpdates(ctx, &result); err != nil {
		return result, err
	}
	if err := h.flushEvents(ctx, &result); err != nil {
		return result, err
	}

	if result.StatusesFlushed > 0 || result.EventsInserted > 0 || result.Malformed > 0 {
		h.logger.InfoContext(ctx, "flushed tracking buffers",
			"statuses", result.StatusesFlushed,
			"events", result.EventsInserted,
			"malformed", result.Malformed,
		)
	}
	return result, nil
}

// flushStatusUpdates groups pending updates by target status and issues one
// bulk update per status value, then stamps per-shipment transition dates
// for the statuses that earn one. The chunk is discarded from the queue
// only after the transaction commits.
func (h *FlushTrackingBuffersCommandHandler) flushStatusUpdates(
	ctx context.Context,
	result *FlushTrackingBuffersResult,
) error {
	updates, malformed, err := h.buffer.PeekStatusUpdates(statusFlushLimit)
	if err != nil {
		return err
	}
	chunk := len(updates) + malformed
	if chunk == 0 {
		return nil
	}
	result.Malformed += malformed

	// Last write per shipment wins within a pass; the queue is oldest-first.
	// Entries carrying a status outside the known range are treated like
	// undecodable payloads rather than written to the store.
	latest := make(map[kernel.UUID]ports.StatusUpdate, len(updates))
	for _, update := range updates {
		if statusErr := update.Status.Validate(); statusErr != nil {
			result.Malformed++
			h.logger.WarnContext(ctx, "dropping status update with invalid status",
				"shipment_id", update.ShipmentID.String(), "error", statusErr)
			continue
		}
		latest[update.ShipmentID] = update
	}

	if len(latest) > 0 {
		byStatus := make(map[shipment.Status][]ports.StatusUpdate)
		for _, update := range latest {
			byStatus[update.Status] = append(byStatus[update.Status], update)
		}

		uow := h.uowFactory.Create()
		if err = uow.Begin(ctx); err != nil {
			return err
		}
		defer func() {
			_ = uow.Rollback(ctx)
		}()

		repo := uow.ShipmentRepository()
		for status, group := range byStatus {
			ids := make([]kernel.UUID, 0, len(group))
			for _, update := range group {
				ids = append(ids, update.ShipmentID)
			}

			if err = repo.BulkUpdateStatus(ctx, ids, status); err != nil {
				return err
			}

			for _, update := range group {
				if err = repo.StampTransitionDate(ctx, update.ShipmentID, status, update.ChangedAt); err != nil {
					return err
				}
			}

			result.StatusesFlushed += len(group)
		}

		if err = uow.Commit(ctx); err != nil {
			return err
		}
	}

	return h.buffer.DiscardStatusUpdates(chunk)
}

// flushEvents drains pending events in fixed chunks and bulk-inserts them,
// skipping duplicates on the natural key. Entries that fail domain
// validation are discarded like malformed queue payloads; each chunk stays
// on the queue until its batch insert succeeds.
func (h *FlushTrackingBuffersCommandHandler) flushEvents(
	ctx context.Context,
	result *FlushTrackingBuffersResult,
) error {
	for {
		pending, malformed, err := h.buffer.PeekEvents(eventFlushChunk)
		if err != nil {
			return err
		}
		chunk := len(pending) + malformed
		if chunk == 0 {
			return nil
		}
		result.Malformed += malformed

		events := make([]*shipment.Event, 0, len(pending))
		for _, entry := range pending {
			event, buildErr := shipment.NewEvent(
				kernel.NewUUID(),
				entry.ShipmentID,
				entry.StatusCode,
				entry.Description,
				entry.Location,
				entry.Timestamp,
				entry.Raw,
			)
			if buildErr != nil {
				result.Malformed++
				h.logger.WarnContext(ctx, "dropping malformed pending event",
					"shipment_id", entry.ShipmentID.String(), "error", buildErr)
				continue
			}
			events = append(events, event)
		}

		if len(events) > 0 {
			uow := h.uowFactory.Create()
			inserted, err := uow.EventRepository().AddBatch(ctx, events)
			if err != nil {
				return err
			}
			result.EventsInserted += inserted
		}

		if err = h.buffer.DiscardEvents(chunk); err != nil {
			return err
		}

		if chunk < eventFlushChunk {
			return nil
		}
	}
}
