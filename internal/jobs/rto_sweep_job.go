package jobs

import (
	"context"
	"log/slog"

	"tracking/internal/core/application/usecases/commands"
	"tracking/internal/core/ports"

	"github.com/robfig/cron/v3"
)

// RTOSweepJob periodically finds shipments sitting in the RTO bucket with
// unsettled RTO charges and enqueues their settlement. The per-transition
// trigger in reconciliation normally handles this; the sweep is the catch-up
// for shipments whose trigger was lost.
type RTOSweepJob struct {
	uowFactory commands.TrackingUoWFactory
	queue      ports.JobQueue
	schedule   string
	batchSize  int
	cron       *cron.Cron
	logger     *slog.Logger
}

// NewRTOSweepJob creates the RTO charge sweep job.
func NewRTOSweepJob(
	uowFactory commands.TrackingUoWFactory,
	queue ports.JobQueue,
	schedule string,
	batchSize int,
	logger *slog.Logger,
) *RTOSweepJob {
	return &RTOSweepJob{
		uowFactory: uowFactory,
		queue:      queue,
		schedule:   schedule,
		batchSize:  batchSize,
		cron:       cron.New(cron.WithSeconds()),
		logger:     logger.With("component", "rto_sweep_job"),
	}
}

// Start begins the RTO sweep on its schedule.
func (j *RTOSweepJob) Start() error {
	_, err := j.cron.AddFunc(j.schedule, func() {
		j.run(context.Background())
	})

	if err != nil {
		return err
	}

	j.cron.Start()
	j.logger.InfoContext(context.Background(), "RTO sweep job started", "schedule", j.schedule)
	return nil
}

// Stop stops the RTO sweep job.
func (j *RTOSweepJob) Stop() {
	j.cron.Stop()
	j.logger.InfoContext(context.Background(), "RTO sweep job stopped")
}

// run enqueues one settlement job per pending shipment. The stable job id
// makes re-enqueueing a shipment already queued a no-op, so overlapping
// sweeps cannot double-schedule.
func (j *RTOSweepJob) run(ctx context.Context) {
	uow := j.uowFactory.Create()
	ids, err := uow.ShipmentRepository().GetRTOPendingCharges(ctx, j.batchSize)
	if err != nil {
		j.logger.ErrorContext(ctx, "RTO sweep selection failed", "error", err)
		return
	}

	enqueued := 0
	for _, id := range ids {
		err = j.queue.Enqueue(ports.QueueCharges, ports.JobTypeRTOCharges,
			commands.ShipmentJobPayload{ShipmentID: id.String()},
			ports.EnqueueOptions{JobID: "rto-charges-" + id.String()})
		if err != nil {
			j.logger.ErrorContext(ctx, "RTO sweep enqueue failed",
				"shipment_id", id.String(), "error", err)
			continue
		}
		enqueued++
	}

	if len(ids) > 0 {
		j.logger.InfoContext(ctx, "RTO sweep completed",
			"pending", len(ids), "enqueued", enqueued)
	}
}
