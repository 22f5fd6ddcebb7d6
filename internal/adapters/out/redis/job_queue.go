package redis

import (
	"encoding/json"
	"math/rand"
	"strconv"
	"time"

	"tracking/internal/core/ports"

	"github.com/go-redis/redis"
	"github.com/google/uuid"
)

const scheduledPrefix = "jobs:scheduled:"
const runningPrefix = "jobs:running:"
const dataPrefix = "jobs:data:"

const defaultMaxAttempts = 3
const visibilityTimeout = 5 * time.Minute
const failBackoffBase = 30 * time.Second

// JobQueue implements ports.JobQueue on redis. Per logical queue it keeps a
// scheduled ZSET scored by eligibility time, a running ZSET scored by the
// liveness deadline, and a data HASH with the serialized jobs. A worker
// claims a due job by removing it from the scheduled set; only one claimer
// sees a nonzero removal count, so each job runs on one worker at a time.
// Delivery is at least once: a worker dying past its liveness deadline gets
// its jobs reclaimed for a fresh attempt.
type JobQueue struct {
	db *redis.Client
}

// NewJobQueue creates a redis-backed delayed-job queue.
func NewJobQueue(db *redis.Client) *JobQueue {
	return &JobQueue{db: db}
}

// Enqueue schedules a one-off job. When opts.JobID names a job already
// queued or running, the call is an idempotent no-op.
func (q *JobQueue) Enqueue(queue, jobType string, payload any, opts ports.EnqueueOptions) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	jobID := opts.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	job := ports.Job{
		ID:          jobID,
		Type:        jobType,
		Payload:     data,
		MaxAttempts: maxAttempts,
		Priority:    opts.Priority,
		RunAt:       time.Now().UTC().Add(opts.Delay),
	}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}

	created, err := q.db.HSetNX(dataPrefix+queue, jobID, encoded).Result()
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	return q.db.ZAdd(scheduledPrefix+queue, redis.Z{
		Member: jobID,
		Score:  score(job.RunAt, job.Priority),
	}).Err()
}

// Dequeue claims up to limit jobs due at now. Claimed jobs move to the
// running set with a liveness deadline and their attempt count incremented.
func (q *JobQueue) Dequeue(queue string, now time.Time, limit int) ([]ports.Job, error) {
	if limit <= 0 {
		return nil, nil
	}

	ids, err := q.db.ZRangeByScore(scheduledPrefix+queue, redis.ZRangeBy{
		Min:   "-inf",
		Max:   formatScore(now),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, err
	}

	jobs := make([]ports.Job, 0, len(ids))
	for _, id := range ids {
		removed, remErr := q.db.ZRem(scheduledPrefix+queue, id).Result()
		if remErr != nil {
			return jobs, remErr
		}
		if removed == 0 {
			// Another worker claimed it first.
			continue
		}

		job, loadErr := q.load(queue, id)
		if loadErr != nil {
			return jobs, loadErr
		}
		if job == nil {
			continue
		}

		job.Attempts++
		if storeErr := q.store(queue, *job); storeErr != nil {
			return jobs, storeErr
		}

		err = q.db.ZAdd(runningPrefix+queue, redis.Z{
			Member: id,
			Score:  float64(now.Add(visibilityTimeout).Unix()),
		}).Err()
		if err != nil {
			return jobs, err
		}

		jobs = append(jobs, *job)
	}

	return jobs, nil
}

// Ack removes a completed job entirely.
func (q *JobQueue) Ack(queue, jobID string) error {
	pipe := q.db.TxPipeline()
	pipe.ZRem(runningPrefix+queue, jobID)
	pipe.HDel(dataPrefix+queue, jobID)
	_, err := pipe.Exec()
	return err
}

// Fail records a failed attempt. Below the attempt cap the job is requeued
// with exponential backoff plus jitter; at the cap it is dropped.
func (q *JobQueue) Fail(queue, jobID string) (bool, error) {
	job, err := q.load(queue, jobID)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, q.db.ZRem(runningPrefix+queue, jobID).Err()
	}

	if job.Attempts >= job.MaxAttempts {
		return false, q.Ack(queue, jobID)
	}

	delay := failBackoffBase * (1 << uint(job.Attempts))
	delay += time.Duration(rand.Int63n(int64(delay) / 2))
	job.RunAt = time.Now().UTC().Add(delay)

	if err = q.store(queue, *job); err != nil {
		return false, err
	}

	pipe := q.db.TxPipeline()
	pipe.ZRem(runningPrefix+queue, jobID)
	pipe.ZAdd(scheduledPrefix+queue, redis.Z{
		Member: jobID,
		Score:  score(job.RunAt, job.Priority),
	})
	if _, err = pipe.Exec(); err != nil {
		return false, err
	}

	return true, nil
}

// ReclaimStalled moves jobs whose liveness deadline passed back to the
// scheduled set, making them due immediately. Returns how many were moved.
func (q *JobQueue) ReclaimStalled(queue string, now time.Time) (int, error) {
	ids, err := q.db.ZRangeByScore(runningPrefix+queue, redis.ZRangeBy{
		Min: "-inf",
		Max: formatScore(now),
	}).Result()
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for _, id := range ids {
		removed, remErr := q.db.ZRem(runningPrefix+queue, id).Result()
		if remErr != nil {
			return reclaimed, remErr
		}
		if removed == 0 {
			continue
		}

		err = q.db.ZAdd(scheduledPrefix+queue, redis.Z{
			Member: id,
			Score:  float64(now.Unix()),
		}).Err()
		if err != nil {
			return reclaimed, err
		}
		reclaimed++
	}

	return reclaimed, nil
}

// load fetches a job's serialized state, nil when it no longer exists.
func (q *JobQueue) load(queue, jobID string) (*ports.Job, error) {
	data, err := q.db.HGet(dataPrefix+queue, jobID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var job ports.Job
	if err = json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// store writes a job's serialized state back to the data hash.
func (q *JobQueue) store(queue string, job ports.Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.db.HSet(dataPrefix+queue, job.ID, encoded).Err()
}

// score orders jobs by eligibility time, with priority breaking ties inside
// the same second; higher priority sorts earlier.
func score(runAt time.Time, priority int) float64 {
	return float64(runAt.Unix()) - float64(priority)/1000
}

// formatScore renders a time as a ZRANGEBYSCORE bound.
func formatScore(t time.Time) string {
	return formatFloat(float64(t.Unix()))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
