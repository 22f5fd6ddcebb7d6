package jobs

import (
	"context"
	"log/slog"

	"tracking/internal/core/application/usecases/commands"

	"github.com/robfig/cron/v3"
)

// TrackingSweepJob runs the periodic tracking sweep: select due shipments
// and reconcile them against their carriers under bounded concurrency.
type TrackingSweepJob struct {
	handler     commands.TrackBatchCommandHandler
	schedule    string
	batchSize   int
	concurrency int
	cron        *cron.Cron
	logger      *slog.Logger
}

// NewTrackingSweepJob creates the sweep job. The schedule is a six-field
// cron expression with seconds.
func NewTrackingSweepJob(
	handler commands.TrackBatchCommandHandler,
	schedule string,
	batchSize int,
	concurrency int,
	logger *slog.Logger,
) *TrackingSweepJob {
	return &TrackingSweepJob{
		handler:     handler,
		schedule:    schedule,
		batchSize:   batchSize,
		concurrency: concurrency,
		cron:        cron.New(cron.WithSeconds()),
		logger:      logger.With("component", "tracking_sweep_job"),
	}
}

// Start begins the sweep job on its schedule.
func (j *TrackingSweepJob) Start() error {
	_, err := j.cron.AddFunc(j.schedule, func() {
		ctx := context.Background()

		cmd, cmdErr := commands.NewTrackBatchCommand(j.batchSize, j.concurrency)
		if cmdErr != nil {
			j.logger.ErrorContext(ctx, "Tracking sweep misconfigured", "error", cmdErr)
			return
		}

		result, handleErr := j.handler.Handle(ctx, cmd)
		if handleErr != nil {
			j.logger.ErrorContext(ctx, "Tracking sweep failed", "error", handleErr)
			return
		}

		j.logger.InfoContext(ctx, "Tracking sweep completed",
			"selected", result.Selected,
			"updated", result.Updated,
			"skipped", result.Skipped,
			"failed", result.Failed)
	})

	if err != nil {
		return err
	}

	j.cron.Start()
	j.logger.InfoContext(context.Background(), "Tracking sweep job started", "schedule", j.schedule)
	return nil
}

// Stop stops the sweep job.
func (j *TrackingSweepJob) Stop() {
	j.cron.Stop()
	j.logger.InfoContext(context.Background(), "Tracking sweep job stopped")
}
