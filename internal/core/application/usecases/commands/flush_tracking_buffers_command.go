package commands

import (
	"errors"

	"tracking/internal/pkg/guard"
)

var ErrFlushTrackingBuffersCommandIsNotConstructed = errors.New(
	"FlushTrackingBuffersCommand must be created via NewFlushTrackingBuffersCommand constructor",
)

// FlushTrackingBuffersCommand drains the write-behind queues: pending status
// changes grouped into bulk updates and pending events bulk-inserted with
// duplicate-skip.
type FlushTrackingBuffersCommand struct {
	guard guard.ConstructorGuard
}

// NewFlushTrackingBuffersCommand creates a flush command.
func NewFlushTrackingBuffersCommand() FlushTrackingBuffersCommand {
	return FlushTrackingBuffersCommand{
		guard: guard.NewConstructorGuard(),
	}
}

// Validate ensures the command was created through the constructor.
func (c *FlushTrackingBuffersCommand) Validate() error {
	return c.guard.Validate(ErrFlushTrackingBuffersCommandIsNotConstructed)
}
