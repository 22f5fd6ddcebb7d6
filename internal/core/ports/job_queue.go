package ports

import (
	"encoding/json"
	"time"
)

// Queue and job type names used across the system. One queue per job class
// keeps concurrency and rate limits independent, so a burst in one class
// cannot starve another.
const (
	QueueTracking = "tracking"
	QueueCharges  = "charges"
	QueueFlush    = "flush"

	JobTypeTrackRetry = "tracking:retry"
	JobTypeNDRDetails = "tracking:ndr"
	JobTypeRTOCharges = "charges:rto"
	JobTypeFlush      = "tracking:flush"
)

// Job is one unit of deferred work pulled from a durable queue.
// Delivery is at least once: every handler must tolerate redelivery.
type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Priority    int             `json:"priority"`
	RunAt       time.Time       `json:"run_at"`
}

// EnqueueOptions tunes a one-off job.
type EnqueueOptions struct {
	// Delay postpones the job's first eligibility.
	Delay time.Duration

	// Priority orders jobs due at the same time; higher runs first.
	Priority int

	// MaxAttempts bounds redelivery after failures. Zero means the queue default.
	MaxAttempts int

	// JobID gives the job a stable identity. Enqueueing an ID already queued
	// is an idempotent no-op, which is how recurring registrations and
	// self-rescheduling jobs avoid duplicate schedules.
	JobID string
}

// JobQueue is a durable delayed-job queue. Payloads are plain serializable
// structs; any broker able to store score-ordered members can back it.
type JobQueue interface {
	// Enqueue schedules a one-off job. Idempotent by EnqueueOptions.JobID.
	Enqueue(queue, jobType string, payload any, opts EnqueueOptions) error

	// Dequeue claims up to limit jobs due at now. A claimed job is invisible
	// to other workers until Ack, Fail or stall reclaim.
	Dequeue(queue string, now time.Time, limit int) ([]Job, error)

	// Ack removes a completed job.
	Ack(queue, jobID string) error

	// Fail records a failed attempt. Below the attempt cap the job is
	// requeued with exponential backoff plus jitter and requeued=true;
	// at the cap it is dropped.
	Fail(queue, jobID string) (requeued bool, err error)

	// ReclaimStalled returns jobs whose liveness deadline passed to the
	// scheduled set, making them eligible for a fresh attempt. This is the
	// stalled-job detector behind at-least-once delivery.
	ReclaimStalled(queue string, now time.Time) (int, error)
}
