package jobs

import (
	"fmt"
	"log/slog"

	"tracking/internal/core/application/usecases/commands"
	"tracking/internal/core/ports"
)

// JobManager coordinates all background work in the application: the cron
// sweeps, the stalled-job reclaimer and the queue worker loop.
// Provides a unified interface to start and stop everything.
type JobManager struct {
	trackingSweepJob  *TrackingSweepJob
	rtoSweepJob       *RTOSweepJob
	stalledReclaimJob *StalledReclaimJob
	queueWorker       *QueueWorker
}

// ManagerConfig carries the schedules and batch limits for the cron jobs.
type ManagerConfig struct {
	SweepSchedule    string
	RTOSweepSchedule string
	BatchSize        int
	Concurrency      int
	Worker           WorkerConfig
}

// NewJobManager creates a job manager with all required jobs.
// Takes command handlers as dependencies to wire up the job execution.
func NewJobManager(
	uowFactory commands.TrackingUoWFactory,
	queue ports.JobQueue,
	trackBatchHandler commands.TrackBatchCommandHandler,
	trackShipmentHandler commands.TrackShipmentCommandHandler,
	ndrHandler commands.FetchNDRDetailsCommandHandler,
	settleHandler commands.SettleChargesCommandHandler,
	flushHandler commands.FlushTrackingBuffersCommandHandler,
	config ManagerConfig,
	logger *slog.Logger,
) *JobManager {
	return &JobManager{
		trackingSweepJob: NewTrackingSweepJob(
			trackBatchHandler, config.SweepSchedule, config.BatchSize, config.Concurrency, logger),
		rtoSweepJob: NewRTOSweepJob(
			uowFactory, queue, config.RTOSweepSchedule, config.BatchSize, logger),
		stalledReclaimJob: NewStalledReclaimJob(
			queue, []string{ports.QueueTracking, ports.QueueCharges, ports.QueueFlush}, logger),
		queueWorker: NewQueueWorker(
			queue, trackShipmentHandler, ndrHandler, settleHandler, flushHandler,
			config.Worker, logger),
	}
}

// StartAll starts all background jobs.
// Returns an error if any job fails to start, stopping the ones already running.
func (jm *JobManager) StartAll() error {
	if err := jm.queueWorker.Start(); err != nil {
		return fmt.Errorf("failed to start queue worker: %w", err)
	}

	if err := jm.trackingSweepJob.Start(); err != nil {
		jm.queueWorker.Stop()
		return fmt.Errorf("failed to start tracking sweep job: %w", err)
	}

	if err := jm.rtoSweepJob.Start(); err != nil {
		jm.trackingSweepJob.Stop()
		jm.queueWorker.Stop()
		return fmt.Errorf("failed to start RTO sweep job: %w", err)
	}

	if err := jm.stalledReclaimJob.Start(); err != nil {
		jm.rtoSweepJob.Stop()
		jm.trackingSweepJob.Stop()
		jm.queueWorker.Stop()
		return fmt.Errorf("failed to start stalled reclaim job: %w", err)
	}

	return nil
}

// StopAll stops all background jobs gracefully.
func (jm *JobManager) StopAll() {
	jm.stalledReclaimJob.Stop()
	jm.rtoSweepJob.Stop()
	jm.trackingSweepJob.Stop()
	jm.queueWorker.Stop()
}
