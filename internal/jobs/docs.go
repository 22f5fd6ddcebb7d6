// Package jobs provides the background machinery of the tracking system.
//
// Cron-based jobs use github.com/robfig/cron/v3 for periodic operations;
// one-off and retried work flows through the durable redis-backed queue.
//
// # Available Jobs
//
// 1. TrackingSweepJob - Periodically selects due shipments and reconciles them against their carriers
// 2. RTOSweepJob - Periodically enqueues charge settlement for RTO shipments with pending charges
// 3. StalledReclaimJob - Runs every minute to return jobs from dead workers to their queues
// 4. QueueWorker - Polls the durable queues and dispatches claimed jobs to command handlers
//
// # Usage
//
// Jobs are managed through JobManager which provides a unified interface:
//
//	// Create job manager with required handlers
//	jobManager := jobs.NewJobManager(uowFactory, queue, batchHandler,
//		trackHandler, ndrHandler, settleHandler, flushHandler, config, logger)
//
//	// Start all jobs
//	if err := jobManager.StartAll(); err != nil {
//		log.Fatal("Failed to start jobs:", err)
//	}
//
//	// Stop all jobs when shutting down
//	defer jobManager.StopAll()
//
// # Scheduling
//
// The two sweeps take six-field cron expressions (with seconds) from
// configuration. The flush job is not cron-driven: it reschedules itself on
// the queue with a stable job id, so exactly one flush schedule exists no
// matter how many times it is registered.
//
// # Error Handling
//
// - Sweep jobs log failures and wait for the next tick
// - Queue jobs go through Fail with exponential backoff up to the attempt cap
// - Failed job starts will stop any already running jobs
package jobs
