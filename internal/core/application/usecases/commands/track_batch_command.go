package commands

import (
	"errors"

	"tracking/internal/pkg/errs"
	"tracking/internal/pkg/guard"
)

var ErrTrackBatchCommandIsNotConstructed = errors.New(
	"TrackBatchCommand must be created via NewTrackBatchCommand constructor",
)

// TrackBatchCommand triggers one tracking sweep: select a page of shipments
// due for refresh and reconcile each under a bounded concurrency limit.
type TrackBatchCommand struct {
	batchSize   int
	concurrency int

	guard guard.ConstructorGuard
}

// NewTrackBatchCommand creates a sweep command.
// batchSize caps the candidate page; concurrency caps the parallel carrier
// calls within the sweep (the only point of true parallelism).
func NewTrackBatchCommand(batchSize, concurrency int) (TrackBatchCommand, error) {
	if batchSize <= 0 {
		return TrackBatchCommand{}, errs.NewValueIsInvalidError("batchSize must be positive")
	}
	if concurrency <= 0 {
		return TrackBatchCommand{}, errs.NewValueIsInvalidError("concurrency must be positive")
	}

	return TrackBatchCommand{
		batchSize:   batchSize,
		concurrency: concurrency,
		guard:       guard.NewConstructorGuard(),
	}, nil
}

// BatchSize returns the maximum candidate page size.
func (c *TrackBatchCommand) BatchSize() int {
	return c.batchSize
}

// Concurrency returns the parallel reconciliation limit.
func (c *TrackBatchCommand) Concurrency() int {
	return c.concurrency
}

// Validate ensures the command was created through the constructor.
func (c *TrackBatchCommand) Validate() error {
	return c.guard.Validate(ErrTrackBatchCommandIsNotConstructed)
}
