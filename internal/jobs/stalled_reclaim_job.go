package jobs

import (
	"context"
	"log/slog"
	"time"

	"tracking/internal/core/ports"

	"github.com/robfig/cron/v3"
)

// StalledReclaimJob periodically returns jobs whose worker died past the
// liveness deadline to their scheduled sets. This is the detector behind the
// queue's at-least-once delivery guarantee.
type StalledReclaimJob struct {
	queue  ports.JobQueue
	queues []string
	cron   *cron.Cron
	logger *slog.Logger
}

// NewStalledReclaimJob creates the reclaim job covering the given queues.
func NewStalledReclaimJob(queue ports.JobQueue, queues []string, logger *slog.Logger) *StalledReclaimJob {
	return &StalledReclaimJob{
		queue:  queue,
		queues: queues,
		cron:   cron.New(cron.WithSeconds()),
		logger: logger.With("component", "stalled_reclaim_job"),
	}
}

// Start begins the reclaim job, running every minute.
func (j *StalledReclaimJob) Start() error {
	_, err := j.cron.AddFunc("0 * * * * *", func() {
		ctx := context.Background()
		now := time.Now().UTC()

		for _, queue := range j.queues {
			reclaimed, reclaimErr := j.queue.ReclaimStalled(queue, now)
			if reclaimErr != nil {
				j.logger.ErrorContext(ctx, "Stalled job reclaim failed",
					"queue", queue, "error", reclaimErr)
				continue
			}
			if reclaimed > 0 {
				j.logger.WarnContext(ctx, "Reclaimed stalled jobs",
					"queue", queue, "count", reclaimed)
			}
		}
	})

	if err != nil {
		return err
	}

	j.cron.Start()
	j.logger.InfoContext(context.Background(), "Stalled reclaim job started (running every minute)")
	return nil
}

// Stop stops the reclaim job.
func (j *StalledReclaimJob) Stop() {
	j.cron.Stop()
	j.logger.InfoContext(context.Background(), "Stalled reclaim job stopped")
}
