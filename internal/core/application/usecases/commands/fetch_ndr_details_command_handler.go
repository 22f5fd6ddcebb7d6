package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"tracking/internal/core/domain/model/shipment"
	"tracking/internal/core/ports"
)

// FetchNDRDetailsResult reports what NDR detail was recorded.
type FetchNDRDetailsResult struct {
	Recorded bool
	Reason   string
}

// FetchNDRDetailsCommandHandler re-polls the carrier for a shipment in NDR
// and records the newest failure description as the NDR reason. The poll is
// separate from reconciliation because some carriers only surface the reason
// on a detail endpoint after the NDR scan appears.
type FetchNDRDetailsCommandHandler struct {
	uowFactory TrackingUoWFactory
	registry   ports.ProviderRegistry
	logger     *slog.Logger
}

// NewFetchNDRDetailsCommandHandler creates the NDR detail handler.
func NewFetchNDRDetailsCommandHandler(
	uowFactory TrackingUoWFactory,
	registry ports.ProviderRegistry,
	logger *slog.Logger,
) FetchNDRDetailsCommandHandler {
	return FetchNDRDetailsCommandHandler{
		uowFactory: uowFactory,
		registry:   registry,
		logger:     logger.With("component", "fetch_ndr_details_handler"),
	}
}

// Handle fetches and records the NDR reason for one shipment. Shipments that
// have already moved past NDR are a benign no-op; a reason already on record
// is kept unless the carrier reports a newer one.
func (h *FetchNDRDetailsCommandHandler) Handle(
	ctx context.Context,
	cmd FetchNDRDetailsCommand,
) (FetchNDRDetailsResult, error) {
	if err := cmd.Validate(); err != nil {
		return FetchNDRDetailsResult{}, err
	}

	uow := h.uowFactory.Create()
	aggregate, err := uow.ShipmentRepository().Get(ctx, cmd.ShipmentID())
	if err != nil {
		return FetchNDRDetailsResult{}, err
	}

	if aggregate.Status() != shipment.NDR {
		h.logger.InfoContext(ctx, "shipment left NDR before detail fetch",
			"shipment_id", cmd.ShipmentID().String(), "status", aggregate.Status().String())
		return FetchNDRDetailsResult{}, nil
	}

	if aggregate.AWB() == nil {
		return FetchNDRDetailsResult{}, ports.ErrInsufficientData
	}

	provider, err := h.registry.Resolve(aggregate.CarrierCode())
	if err != nil {
		return FetchNDRDetailsResult{}, err
	}

	trackResult, err := provider.Track(ctx, ports.TrackRequest{
		CarrierCode: aggregate.CarrierCode(),
		AWB:         *aggregate.AWB(),
		ShipmentID:  aggregate.ID(),
		OrderID:     aggregate.OrderID(),
	})
	if err != nil {
		return FetchNDRDetailsResult{}, err
	}
	if !trackResult.Success {
		return FetchNDRDetailsResult{}, fmt.Errorf("%w: %s", ports.ErrProviderUnavailable, trackResult.Message)
	}

	reason, raisedAt, found := newestNDRReason(trackResult.Events)
	if !found {
		h.logger.InfoContext(ctx, "carrier reported no NDR detail",
			"shipment_id", cmd.ShipmentID().String())
		return FetchNDRDetailsResult{}, nil
	}

	aggregate.RecordNDR(reason, raisedAt)

	if err = uow.Begin(ctx); err != nil {
		return FetchNDRDetailsResult{}, err
	}
	defer uow.Rollback(ctx)

	if err = uow.ShipmentRepository().Update(ctx, aggregate); err != nil {
		return FetchNDRDetailsResult{}, err
	}
	if err = uow.Commit(ctx); err != nil {
		return FetchNDRDetailsResult{}, err
	}

	h.logger.InfoContext(ctx, "recorded NDR reason",
		"shipment_id", cmd.ShipmentID().String(), "reason", reason)
	return FetchNDRDetailsResult{Recorded: true, Reason: reason}, nil
}

// newestNDRReason picks the description of the most recent NDR-coded event.
// Events without a description cannot serve as a reason.
func newestNDRReason(events []ports.ProviderEvent) (string, time.Time, bool) {
	sorted := make([]ports.ProviderEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	for _, event := range sorted {
		status, err := shipment.StatusFromString(event.StatusCode)
		if err != nil || status != shipment.NDR {
			continue
		}
		reason := strings.TrimSpace(event.Description)
		if reason == "" {
			continue
		}
		return reason, event.Timestamp.UTC(), true
	}

	return "", time.Time{}, false
}
