package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/core/domain/model/shipment"
	"tracking/internal/core/domain/services"
	"tracking/internal/core/ports"
)

// ShipmentJobPayload is the payload carried by every per-shipment follow-up
// job (tracking retry, NDR detail fetch, RTO charge settlement).
type ShipmentJobPayload struct {
	ShipmentID string `json:"shipment_id"`
}

// TrackingPolicy tunes the cache-backed dedup and backoff behavior around
// reconciliation.
type TrackingPolicy struct {
	// ProcessingTTL bounds how long the soft processing marker can outlive a
	// crashed worker.
	ProcessingTTL time.Duration

	// CheckedTTL is the recently-checked window suppressing re-polls
	// independent of sweep cadence.
	CheckedTTL time.Duration

	// RetryTTL is the lifetime of the per-shipment retry counter.
	RetryTTL time.Duration

	// MaxRetries caps scheduled retries per counter lifetime.
	MaxRetries int

	// RetryBaseDelay seeds the exponential backoff: base * 2^attempt.
	RetryBaseDelay time.Duration

	// FollowUpDelay postpones the RTO charge and NDR detail jobs so the
	// write-behind flush lands the new status before those handlers read it.
	// Must exceed the flush interval.
	FollowUpDelay time.Duration
}

// DefaultTrackingPolicy returns the production defaults.
func DefaultTrackingPolicy() TrackingPolicy {
	return TrackingPolicy{
		ProcessingTTL:  2 * time.Minute,
		CheckedTTL:     4 * time.Hour,
		RetryTTL:       24 * time.Hour,
		MaxRetries:     3,
		RetryBaseDelay: 5 * time.Minute,
		FollowUpDelay:  2 * time.Minute,
	}
}

// TrackShipmentResult reports the outcome of one reconciliation.
type TrackShipmentResult struct {
	ShipmentID     kernel.UUID
	Skipped        bool
	Changed        bool
	PreviousStatus shipment.Status
	NewStatus      shipment.Status
	Bucket         shipment.Bucket
	NewEvents      int
	Message        string
}

// TrackShipmentCommandHandler is the tracking reconciler: the core
// per-shipment algorithm converting unreliable carrier polls into exactly
// the state changes the rest of the system acts on.
//
// Per shipment it:
//  1. Skips when another worker holds the processing marker.
//  2. Takes a short-TTL processing marker, cleared on every exit path.
//  3. Resolves the carrier adapter; a missing adapter is a permanent failure
//     with no retry scheduled.
//  4. Polls the carrier; transient failures fall through to backoff
//     scheduling against the retry counter.
//  5. Resolves the new status from the poll and dedupes incoming events
//     against persisted ones.
//  6. Pushes the status change and unseen events onto the flush queues
//     (write-behind, not immediate).
//  7. Enqueues the RTO charge job and the NDR detail job on those transitions.
type TrackShipmentCommandHandler struct {
	uowFactory TrackingUoWFactory
	registry   ports.ProviderRegistry
	cache      ports.TrackingCache
	buffer     ports.TrackingBuffer
	queue      ports.JobQueue
	resolver   services.StatusResolver
	policy     TrackingPolicy
	logger     *slog.Logger
}

// NewTrackShipmentCommandHandler creates the reconciler with its collaborators.
func NewTrackShipmentCommandHandler(
	uowFactory TrackingUoWFactory,
	registry ports.ProviderRegistry,
	cache ports.TrackingCache,
	buffer ports.TrackingBuffer,
	queue ports.JobQueue,
	policy TrackingPolicy,
	logger *slog.Logger,
) TrackShipmentCommandHandler {
	return TrackShipmentCommandHandler{
		uowFactory: uowFactory,
		registry:   registry,
		cache:      cache,
		buffer:     buffer,
		queue:      queue,
		resolver:   services.NewStatusResolver(),
		policy:     policy,
		logger:     logger.With("component", "track_shipment_handler"),
	}
}

// Handle reconciles one shipment against its carrier.
// Returns a benign skip result when the shipment is already being processed,
// recently checked, or terminal; returns an error for failures the caller
// (or the retry scheduler) must care about.
func (h *TrackShipmentCommandHandler) Handle(
	ctx context.Context,
	cmd TrackShipmentCommand,
) (TrackShipmentResult, error) {
	if err := cmd.Validate(); err != nil {
		return TrackShipmentResult{}, err
	}

	id := cmd.ShipmentID()
	result := TrackShipmentResult{ShipmentID: id}

	uow := h.uowFactory.Create()
	aggregate, err := uow.ShipmentRepository().Get(ctx, id)
	if err != nil {
		return result, err
	}

	result.PreviousStatus = aggregate.Status()
	result.NewStatus = aggregate.Status()
	result.Bucket = aggregate.Bucket()

	if aggregate.Status().IsFinal() {
		result.Skipped = true
		result.Message = fmt.Sprintf("shipment is in final status %s", aggregate.Status())
		return result, nil
	}

	if aggregate.AWB() == nil {
		return result, ports.ErrInsufficientData
	}

	if !cmd.Force() {
		snapshot, cacheErr := h.cache.LastChecked(id)
		if cacheErr != nil {
			h.logger.WarnContext(ctx, "recently-checked lookup failed", "shipment_id", id.String(), "error", cacheErr)
		} else if snapshot != nil {
			result.Skipped = true
			result.Message = "recently checked"
			return result, nil
		}
	}

	acquired, err := h.cache.AcquireProcessing(id, h.policy.ProcessingTTL)
	if err != nil {
		return result, err
	}
	if !acquired {
		result.Skipped = true
		result.Message = "shipment is being processed by another worker"
		return result, nil
	}
	defer func() {
		if releaseErr := h.cache.ReleaseProcessing(id); releaseErr != nil {
			h.logger.WarnContext(ctx, "failed to release processing marker",
				"shipment_id", id.String(), "error", releaseErr)
		}
	}()

	provider, err := h.registry.Resolve(aggregate.CarrierCode())
	if err != nil {
		// Permanent: an unconfigured carrier needs an operator, not a retry.
		return result, err
	}

	trackResult, err := provider.Track(ctx, ports.TrackRequest{
		CarrierCode: aggregate.CarrierCode(),
		AWB:         *aggregate.AWB(),
		ShipmentID:  id,
		OrderID:     aggregate.OrderID(),
	})
	if err != nil || !trackResult.Success {
		if err == nil {
			err = fmt.Errorf("%w: %s", ports.ErrProviderUnavailable, trackResult.Message)
		}
		return result, h.scheduleRetry(ctx, id, err)
	}

	if trackResult.LatestBucket == nil && len(trackResult.Events) == 0 {
		// Carrier has nothing yet; remember we looked.
		h.markChecked(ctx, id, aggregate.Status())
		result.Skipped = true
		result.Message = "carrier reported no tracking data"
		return result, nil
	}

	resolution := h.resolver.Resolve(
		aggregate.Status(),
		toScans(trackResult.Events),
		trackResult.LatestBucket,
	)

	newEvents, err := h.dedupeEvents(ctx, uow, id, trackResult.Events)
	if err != nil {
		return result, err
	}

	if !resolution.Changed && len(newEvents) == 0 {
		h.markChecked(ctx, id, aggregate.Status())
		result.Message = "no change"
		return result, nil
	}

	if resolution.Changed {
		changedAt := resolution.ChangedAt
		if changedAt.IsZero() {
			changedAt = time.Now().UTC()
		}
		if err = h.buffer.PushStatusUpdate(ports.StatusUpdate{
			ShipmentID: id,
			Status:     resolution.NewStatus,
			ChangedAt:  changedAt,
		}); err != nil {
			return result, err
		}
	}

	if len(newEvents) > 0 {
		if err = h.buffer.PushEvents(newEvents); err != nil {
			return result, err
		}
	}

	if err = h.enqueueFollowUps(id, resolution); err != nil {
		return result, err
	}

	if clearErr := h.cache.ClearRetry(id); clearErr != nil {
		h.logger.WarnContext(ctx, "failed to clear retry counter",
			"shipment_id", id.String(), "error", clearErr)
	}
	h.markChecked(ctx, id, resolution.NewStatus)

	result.Changed = resolution.Changed
	result.NewStatus = resolution.NewStatus
	result.Bucket = resolution.NewBucket
	result.NewEvents = len(newEvents)
	result.Message = fmt.Sprintf("%s -> %s", result.PreviousStatus, result.NewStatus)
	return result, nil
}

// scheduleRetry implements the backoff side of the cache layer: increment
// the retry counter, schedule a single-shipment retry at base * 2^attempt
// while under the cap, and give up for this cycle at the cap. The shipment
// stays eligible for the next full sweep either way.
func (h *TrackShipmentCommandHandler) scheduleRetry(ctx context.Context, id kernel.UUID, cause error) error {
	attempt, err := h.cache.IncrRetry(id, h.policy.RetryTTL)
	if err != nil {
		return errors.Join(cause, err)
	}

	if attempt > h.policy.MaxRetries {
		if clearErr := h.cache.ClearRetry(id); clearErr != nil {
			h.logger.WarnContext(ctx, "failed to clear exhausted retry counter",
				"shipment_id", id.String(), "error", clearErr)
		}
		return fmt.Errorf("giving up after %d attempts: %w", attempt-1, cause)
	}

	delay := h.policy.RetryBaseDelay * (1 << attempt)
	err = h.queue.Enqueue(ports.QueueTracking, ports.JobTypeTrackRetry,
		ShipmentJobPayload{ShipmentID: id.String()},
		ports.EnqueueOptions{
			Delay: delay,
			JobID: fmt.Sprintf("track-retry-%s-%d", id.String(), attempt),
		})
	if err != nil {
		return errors.Join(cause, err)
	}

	h.logger.InfoContext(ctx, "scheduled tracking retry",
		"shipment_id", id.String(), "attempt", attempt, "delay", delay.String())
	return fmt.Errorf("retry %d scheduled in %s: %w", attempt, delay, cause)
}

// dedupeEvents filters the poll down to events whose natural key is neither
// persisted nor repeated within the poll itself.
func (h *TrackShipmentCommandHandler) dedupeEvents(
	ctx context.Context,
	uow TrackingUoW,
	id kernel.UUID,
	events []ports.ProviderEvent,
) ([]ports.PendingEvent, error) {
	if len(events) == 0 {
		return nil, nil
	}

	existing, err := uow.EventRepository().ExistingKeys(ctx, id)
	if err != nil {
		return nil, err
	}

	pending := make([]ports.PendingEvent, 0, len(events))
	for _, event := range events {
		key := shipment.EventNaturalKey(event.Timestamp, event.Description)
		if _, seen := existing[key]; seen {
			continue
		}
		existing[key] = struct{}{}

		pending = append(pending, ports.PendingEvent{
			ShipmentID:  id,
			StatusCode:  event.StatusCode,
			Description: event.Description,
			Location:    event.Location,
			Timestamp:   event.Timestamp.UTC(),
			Raw:         event.Raw,
		})
	}

	return pending, nil
}

// enqueueFollowUps fans out the RTO charge job and the NDR detail job on
// their transitions. Both handlers are idempotent, so a stable job id per
// shipment is enough to collapse duplicate triggers within a cycle. Both
// jobs run delayed: they read the persisted shipment, which only reflects
// this transition after the next flush pass.
func (h *TrackShipmentCommandHandler) enqueueFollowUps(id kernel.UUID, resolution services.Resolution) error {
	payload := ShipmentJobPayload{ShipmentID: id.String()}

	if resolution.RTO {
		err := h.queue.Enqueue(ports.QueueCharges, ports.JobTypeRTOCharges, payload,
			ports.EnqueueOptions{JobID: "rto-charges-" + id.String(), Delay: h.policy.FollowUpDelay})
		if err != nil {
			return err
		}
	}

	if resolution.NDR {
		err := h.queue.Enqueue(ports.QueueTracking, ports.JobTypeNDRDetails, payload,
			ports.EnqueueOptions{JobID: "ndr-details-" + id.String(), Delay: h.policy.FollowUpDelay})
		if err != nil {
			return err
		}
	}

	return nil
}

// markChecked refreshes the recently-checked window; failures only cost an
// extra poll later, so they are logged and swallowed.
func (h *TrackShipmentCommandHandler) markChecked(ctx context.Context, id kernel.UUID, status shipment.Status) {
	err := h.cache.MarkChecked(id, ports.CheckedSnapshot{
		Status:    status,
		Bucket:    shipment.BucketOf(status),
		CheckedAt: time.Now().UTC(),
	}, h.policy.CheckedTTL)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to mark shipment checked",
			"shipment_id", id.String(), "error", err)
	}
}

// toScans maps provider events into the resolver's input shape.
func toScans(events []ports.ProviderEvent) []services.Scan {
	scans := make([]services.Scan, 0, len(events))
	for _, event := range events {
		scans = append(scans, services.Scan{
			Timestamp:  event.Timestamp,
			StatusCode: event.StatusCode,
			Bucket:     event.Bucket,
			RTO:        event.RTO,
		})
	}
	return scans
}
