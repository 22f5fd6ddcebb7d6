package commands

import (
	"context"
	"log/slog"
	"sync"

	"tracking/internal/core/domain/model/kernel"
)

// ShipmentError records one per-shipment failure inside a sweep.
// Failures never abort the batch; they are collected here instead.
type ShipmentError struct {
	ShipmentID kernel.UUID
	Message    string
}

// TrackBatchResult summarizes one sweep.
type TrackBatchResult struct {
	Selected  int
	Processed int
	Updated   int
	Skipped   int
	Failed    int
	Errors    []ShipmentError
}

// TrackBatchCommandHandler runs one tracking sweep: a candidate page fanned
// out through the reconciler under a bounded concurrency limiter so carrier
// rate limits are respected.
type TrackBatchCommandHandler struct {
	uowFactory   TrackingUoWFactory
	trackHandler *TrackShipmentCommandHandler
	logger       *slog.Logger
}

// NewTrackBatchCommandHandler creates a sweep handler reusing the
// single-shipment reconciler for each candidate.
func NewTrackBatchCommandHandler(
	uowFactory TrackingUoWFactory,
	trackHandler *TrackShipmentCommandHandler,
	logger *slog.Logger,
) TrackBatchCommandHandler {
	return TrackBatchCommandHandler{
		uowFactory:   uowFactory,
		trackHandler: trackHandler,
		logger:       logger.With("component", "track_batch_handler"),
	}
}

// Handle selects candidates and reconciles them concurrently.
// Returns an error only when candidate selection itself fails; per-shipment
// outcomes land in the result.
func (h *TrackBatchCommandHandler) Handle(
	ctx context.Context,
	cmd TrackBatchCommand,
) (TrackBatchResult, error) {
	if err := cmd.Validate(); err != nil {
		return TrackBatchResult{}, err
	}

	uow := h.uowFactory.Create()
	candidates, err := uow.ShipmentRepository().GetTrackingCandidates(ctx, cmd.BatchSize())
	if err != nil {
		return TrackBatchResult{}, err
	}

	result := TrackBatchResult{Selected: len(candidates)}
	if len(candidates) == 0 {
		return result, nil
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		semaphore = make(chan struct{}, cmd.Concurrency())
	)

	for _, candidate := range candidates {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(id kernel.UUID) {
			defer wg.Done()
			defer func() { <-semaphore }()

			trackCmd, cmdErr := NewTrackShipmentCommand(id, false)
			if cmdErr != nil {
				h.record(&mu, &result, id, TrackShipmentResult{}, cmdErr)
				return
			}

			trackResult, trackErr := h.trackHandler.Handle(ctx, trackCmd)
			h.record(&mu, &result, id, trackResult, trackErr)
		}(candidate.ID)
	}

	wg.Wait()

	h.logger.InfoContext(ctx, "tracking sweep finished",
		"selected", result.Selected,
		"processed", result.Processed,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result, nil
}

// record folds one reconciliation outcome into the batch result.
func (h *TrackBatchCommandHandler) record(
	mu *sync.Mutex,
	result *TrackBatchResult,
	id kernel.UUID,
	trackResult TrackShipmentResult,
	err error,
) {
	mu.Lock()
	defer mu.Unlock()

	switch {
	case err != nil:
		result.Failed++
		result.Errors = append(result.Errors, ShipmentError{
			ShipmentID: id,
			Message:    err.Error(),
		})
	case trackResult.Skipped:
		result.Skipped++
	default:
		result.Processed++
		if trackResult.Changed {
			result.Updated++
		}
	}
}
