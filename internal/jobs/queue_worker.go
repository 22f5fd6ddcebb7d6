package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tracking/internal/core/application/usecases/commands"
	"tracking/internal/core/domain/model/kernel"
	"tracking/internal/core/ports"
)

// flushJobID is the stable identity of the self-rescheduling flush job.
// Enqueueing it when it is already queued is a no-op, so startup
// registration and self-rescheduling can never stack duplicate schedules.
const flushJobID = "tracking-flush"

// WorkerConfig tunes the queue worker loop.
type WorkerConfig struct {
	// PollInterval is how often each queue is polled for due jobs.
	PollInterval time.Duration

	// BatchSize caps jobs claimed per poll per queue.
	BatchSize int

	// FlushInterval is the delay between flush job runs.
	FlushInterval time.Duration

	// Concurrency caps in-flight jobs per job type. Types absent from the
	// map run with a limit of one.
	Concurrency map[string]int
}

// DefaultWorkerConfig returns the production defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval:  5 * time.Second,
		BatchSize:     20,
		FlushInterval: time.Minute,
		Concurrency: map[string]int{
			ports.JobTypeTrackRetry: 4,
			ports.JobTypeNDRDetails: 2,
			ports.JobTypeRTOCharges: 4,
			ports.JobTypeFlush:      1,
		},
	}
}

// QueueWorker polls the durable queues for due jobs and dispatches them to
// their command handlers. Each job type runs under its own concurrency
// limit, so a burst of one class cannot starve another. Completed jobs are
// acked; failures go back through the queue's backoff until the attempt cap.
type QueueWorker struct {
	queue         ports.JobQueue
	trackHandler  commands.TrackShipmentCommandHandler
	ndrHandler    commands.FetchNDRDetailsCommandHandler
	settleHandler commands.SettleChargesCommandHandler
	flushHandler  commands.FlushTrackingBuffersCommandHandler
	config        WorkerConfig
	logger        *slog.Logger

	limiters       map[string]chan struct{}
	defaultLimiter chan struct{}
	stop           chan struct{}
	wg             sync.WaitGroup
}

// NewQueueWorker creates the worker with its handlers.
func NewQueueWorker(
	queue ports.JobQueue,
	trackHandler commands.TrackShipmentCommandHandler,
	ndrHandler commands.FetchNDRDetailsCommandHandler,
	settleHandler commands.SettleChargesCommandHandler,
	flushHandler commands.FlushTrackingBuffersCommandHandler,
	config WorkerConfig,
	logger *slog.Logger,
) *QueueWorker {
	limiters := make(map[string]chan struct{})
	for jobType, limit := range config.Concurrency {
		if limit < 1 {
			limit = 1
		}
		limiters[jobType] = make(chan struct{}, limit)
	}

	return &QueueWorker{
		queue:          queue,
		trackHandler:   trackHandler,
		ndrHandler:     ndrHandler,
		settleHandler:  settleHandler,
		flushHandler:   flushHandler,
		config:         config,
		logger:         logger.With("component", "queue_worker"),
		limiters:       limiters,
		defaultLimiter: make(chan struct{}, 1),
		stop:           make(chan struct{}),
	}
}

// Start registers the flush job and begins polling every queue.
func (w *QueueWorker) Start() error {
	err := w.queue.Enqueue(ports.QueueFlush, ports.JobTypeFlush, struct{}{},
		ports.EnqueueOptions{JobID: flushJobID})
	if err != nil {
		return fmt.Errorf("failed to register flush job: %w", err)
	}

	for _, queue := range []string{ports.QueueTracking, ports.QueueCharges, ports.QueueFlush} {
		w.wg.Add(1)
		go w.poll(queue)
	}

	w.logger.InfoContext(context.Background(), "Queue worker started",
		"poll_interval", w.config.PollInterval.String())
	return nil
}

// Stop halts polling and waits for in-flight jobs to finish.
func (w *QueueWorker) Stop() {
	close(w.stop)
	w.wg.Wait()
	w.logger.InfoContext(context.Background(), "Queue worker stopped")
}

// poll is the per-queue loop claiming due jobs and fanning them out.
func (w *QueueWorker) poll(queue string) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			jobs, err := w.queue.Dequeue(queue, time.Now().UTC(), w.config.BatchSize)
			if err != nil {
				w.logger.Error("Dequeue failed", "queue", queue, "error", err)
				continue
			}

			// The limiter is acquired inside the goroutine so a saturated
			// job type only parks its own jobs, not the poll loop.
			for _, job := range jobs {
				limiter := w.limiter(job.Type)
				w.wg.Add(1)
				go func(job ports.Job) {
					defer w.wg.Done()
					limiter <- struct{}{}
					defer func() { <-limiter }()
					w.dispatch(queue, job)
				}(job)
			}
		}
	}
}

// dispatch runs one job and settles its queue state.
func (w *QueueWorker) dispatch(queue string, job ports.Job) {
	ctx := context.Background()

	err := w.handle(ctx, job)
	if err == nil {
		if ackErr := w.queue.Ack(queue, job.ID); ackErr != nil {
			w.logger.ErrorContext(ctx, "Ack failed",
				"queue", queue, "job_id", job.ID, "error", ackErr)
		}
		if job.Type == ports.JobTypeFlush {
			w.rescheduleFlush(ctx, w.config.FlushInterval)
		}
		return
	}

	w.logger.WarnContext(ctx, "Job failed",
		"queue", queue, "job_id", job.ID, "type", job.Type,
		"attempt", job.Attempts, "error", err)

	requeued, failErr := w.queue.Fail(queue, job.ID)
	if failErr != nil {
		w.logger.ErrorContext(ctx, "Fail bookkeeping failed",
			"queue", queue, "job_id", job.ID, "error", failErr)
		return
	}
	if !requeued {
		w.logger.ErrorContext(ctx, "Job dropped after exhausting attempts",
			"queue", queue, "job_id", job.ID, "type", job.Type)
		if job.Type == ports.JobTypeFlush {
			// The flush loop must survive even a dropped run.
			w.rescheduleFlush(ctx, 2*w.config.FlushInterval)
		}
	}
}

// handle routes a job to its command handler.
func (w *QueueWorker) handle(ctx context.Context, job ports.Job) error {
	switch job.Type {
	case ports.JobTypeTrackRetry:
		id, err := shipmentIDFromPayload(job.Payload)
		if err != nil {
			return err
		}
		cmd, err := commands.NewTrackShipmentCommand(id, false)
		if err != nil {
			return err
		}
		_, err = w.trackHandler.Handle(ctx, cmd)
		return err

	case ports.JobTypeNDRDetails:
		id, err := shipmentIDFromPayload(job.Payload)
		if err != nil {
			return err
		}
		cmd, err := commands.NewFetchNDRDetailsCommand(id)
		if err != nil {
			return err
		}
		_, err = w.ndrHandler.Handle(ctx, cmd)
		return err

	case ports.JobTypeRTOCharges:
		id, err := shipmentIDFromPayload(job.Payload)
		if err != nil {
			return err
		}
		cmd, err := commands.NewSettleChargesCommand(id)
		if err != nil {
			return err
		}
		_, err = w.settleHandler.Handle(ctx, cmd)
		return err

	case ports.JobTypeFlush:
		_, err := w.flushHandler.Handle(ctx, commands.NewFlushTrackingBuffersCommand())
		return err

	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

// rescheduleFlush queues the next flush run. Idempotent by the stable job id.
func (w *QueueWorker) rescheduleFlush(ctx context.Context, delay time.Duration) {
	err := w.queue.Enqueue(ports.QueueFlush, ports.JobTypeFlush, struct{}{},
		ports.EnqueueOptions{JobID: flushJobID, Delay: delay})
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to reschedule flush job", "error", err)
	}
}

// limiter returns the concurrency gate for a job type. The limiter map is
// built once at construction and only read afterwards.
func (w *QueueWorker) limiter(jobType string) chan struct{} {
	if limiter, ok := w.limiters[jobType]; ok {
		return limiter
	}
	return w.defaultLimiter
}

// shipmentIDFromPayload extracts the shipment id every per-shipment job carries.
func shipmentIDFromPayload(payload json.RawMessage) (kernel.UUID, error) {
	var body commands.ShipmentJobPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return kernel.UUID{}, err
	}
	return kernel.UUIDFromString(body.ShipmentID)
}
