package redis

import (
	"encoding/json"
	"testing"
	"time"

	"tracking/internal/core/ports"

	"github.com/alicebob/miniredis"
	"github.com/go-redis/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	ShipmentID string `json:"shipment_id"`
}

func TestJobQueue_EnqueueDequeue(t *testing.T) {
	withRedis(t, func(mr *miniredis.Miniredis, db *redis.Client) {
		queue := NewJobQueue(db)

		err := queue.Enqueue(ports.QueueTracking, ports.JobTypeTrackRetry,
			testPayload{ShipmentID: "ship-1"},
			ports.EnqueueOptions{JobID: "job-1"})
		require.NoError(t, err)

		jobs, err := queue.Dequeue(ports.QueueTracking, time.Now().Add(time.Second), 10)
		require.NoError(t, err)
		require.Len(t, jobs, 1)

		job := jobs[0]
		assert.Equal(t, "job-1", job.ID)
		assert.Equal(t, ports.JobTypeTrackRetry, job.Type)
		assert.Equal(t, 1, job.Attempts)
		assert.Equal(t, 3, job.MaxAttempts)

		var payload testPayload
		require.NoError(t, json.Unmarshal(job.Payload, &payload))
		assert.Equal(t, "ship-1", payload.ShipmentID)

		// Claimed jobs are invisible to other workers.
		jobs, err = queue.Dequeue(ports.QueueTracking, time.Now().Add(time.Second), 10)
		require.NoError(t, err)
		assert.Empty(t, jobs)
	})
}

func TestJobQueue_EnqueueIsIdempotentByJobID(t *testing.T) {
	withRedis(t, func(mr *miniredis.Miniredis, db *redis.Client) {
		queue := NewJobQueue(db)

		for i := 0; i < 3; i++ {
			err := queue.Enqueue(ports.QueueCharges, ports.JobTypeRTOCharges,
				testPayload{ShipmentID: "ship-1"},
				ports.EnqueueOptions{JobID: "rto-charges-ship-1"})
			require.NoError(t, err)
		}

		jobs, err := queue.Dequeue(ports.QueueCharges, time.Now().Add(time.Second), 10)
		require.NoError(t, err)
		assert.Len(t, jobs, 1)
	})
}

func TestJobQueue_DelayPostponesEligibility(t *testing.T) {
	withRedis(t, func(mr *miniredis.Miniredis, db *redis.Client) {
		queue := NewJobQueue(db)

		err := queue.Enqueue(ports.QueueTracking, ports.JobTypeTrackRetry,
			testPayload{ShipmentID: "ship-1"},
			ports.EnqueueOptions{JobID: "job-1", Delay: time.Hour})
		require.NoError(t, err)

		jobs, err := queue.Dequeue(ports.QueueTracking, time.Now(), 10)
		require.NoError(t, err)
		assert.Empty(t, jobs)

		jobs, err = queue.Dequeue(ports.QueueTracking, time.Now().Add(2*time.Hour), 10)
		require.NoError(t, err)
		assert.Len(t, jobs, 1)
	})
}

func TestJobQueue_PriorityBreaksTies(t *testing.T) {
	withRedis(t, func(mr *miniredis.Miniredis, db *redis.Client) {
		queue := NewJobQueue(db)

		err := queue.Enqueue(ports.QueueTracking, ports.JobTypeTrackRetry,
			testPayload{}, ports.EnqueueOptions{JobID: "low"})
		require.NoError(t, err)
		err = queue.Enqueue(ports.QueueTracking, ports.JobTypeTrackRetry,
			testPayload{}, ports.EnqueueOptions{JobID: "high", Priority: 10})
		require.NoError(t, err)

		jobs, err := queue.Dequeue(ports.QueueTracking, time.Now().Add(time.Second), 10)
		require.NoError(t, err)
		require.Len(t, jobs, 2)
		assert.Equal(t, "high", jobs[0].ID)
		assert.Equal(t, "low", jobs[1].ID)
	})
}

func TestJobQueue_AckRemovesJob(t *testing.T) {
	withRedis(t, func(mr *miniredis.Miniredis, db *redis.Client) {
		queue := NewJobQueue(db)

		err := queue.Enqueue(ports.QueueTracking, ports.JobTypeTrackRetry,
			testPayload{}, ports.EnqueueOptions{JobID: "job-1"})
		require.NoError(t, err)

		jobs, err := queue.Dequeue(ports.QueueTracking, time.Now().Add(time.Second), 10)
		require.NoError(t, err)
		require.Len(t, jobs, 1)

		require.NoError(t, queue.Ack(ports.QueueTracking, "job-1"))

		// Gone for good: not even the stall detector can resurrect it.
		reclaimed, err := queue.ReclaimStalled(ports.QueueTracking, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Zero(t, reclaimed)

		jobs, err = queue.Dequeue(ports.QueueTracking, time.Now().Add(time.Hour), 10)
		require.NoError(t, err)
		assert.Empty(t, jobs)

		// The id is free for a fresh enqueue again.
		err = queue.Enqueue(ports.QueueTracking, ports.JobTypeTrackRetry,
			testPayload{}, ports.EnqueueOptions{JobID: "job-1"})
		require.NoError(t, err)
		jobs, err = queue.Dequeue(ports.QueueTracking, time.Now().Add(time.Second), 10)
		require.NoError(t, err)
		assert.Len(t, jobs, 1)
	})
}

func TestJobQueue_FailRequeuesWithBackoff(t *testing.T) {
	withRedis(t, func(mr *miniredis.Miniredis, db *redis.Client) {
		queue := NewJobQueue(db)

		err := queue.Enqueue(ports.QueueTracking, ports.JobTypeTrackRetry,
			testPayload{}, ports.EnqueueOptions{JobID: "job-1"})
		require.NoError(t, err)

		jobs, err := queue.Dequeue(ports.QueueTracking, time.Now().Add(time.Second), 10)
		require.NoError(t, err)
		require.Len(t, jobs, 1)

		requeued, err := queue.Fail(ports.QueueTracking, "job-1")
		require.NoError(t, err)
		assert.True(t, requeued)

		// Backoff holds the job out of immediate reach.
		jobs, err = queue.Dequeue(ports.QueueTracking, time.Now(), 10)
		require.NoError(t, err)
		assert.Empty(t, jobs)

		// First retry backoff tops out at 90 seconds.
		jobs, err = queue.Dequeue(ports.QueueTracking, time.Now().Add(3*time.Minute), 10)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, 2, jobs[0].Attempts)
	})
}

func TestJobQueue_FailDropsAtAttemptCap(t *testing.T) {
	withRedis(t, func(mr *miniredis.Miniredis, db *redis.Client) {
		queue := NewJobQueue(db)

		err := queue.Enqueue(ports.QueueTracking, ports.JobTypeTrackRetry,
			testPayload{}, ports.EnqueueOptions{JobID: "job-1", MaxAttempts: 1})
		require.NoError(t, err)

		jobs, err := queue.Dequeue(ports.QueueTracking, time.Now().Add(time.Second), 10)
		require.NoError(t, err)
		require.Len(t, jobs, 1)

		requeued, err := queue.Fail(ports.QueueTracking, "job-1")
		require.NoError(t, err)
		assert.False(t, requeued)

		jobs, err = queue.Dequeue(ports.QueueTracking, time.Now().Add(time.Hour), 10)
		require.NoError(t, err)
		assert.Empty(t, jobs)
	})
}

func TestJobQueue_FailUnknownJobClearsRunningEntry(t *testing.T) {
	withRedis(t, func(mr *miniredis.Miniredis, db *redis.Client) {
		queue := NewJobQueue(db)

		requeued, err := queue.Fail(ports.QueueTracking, "never-enqueued")
		require.NoError(t, err)
		assert.False(t, requeued)
	})
}

func TestJobQueue_ReclaimStalled(t *testing.T) {
	withRedis(t, func(mr *miniredis.Miniredis, db *redis.Client) {
		queue := NewJobQueue(db)

		err := queue.Enqueue(ports.QueueTracking, ports.JobTypeTrackRetry,
			testPayload{ShipmentID: "ship-1"},
			ports.EnqueueOptions{JobID: "job-1"})
		require.NoError(t, err)

		now := time.Now()
		jobs, err := queue.Dequeue(ports.QueueTracking, now.Add(time.Second), 10)
		require.NoError(t, err)
		require.Len(t, jobs, 1)

		// Still within the liveness deadline.
		reclaimed, err := queue.ReclaimStalled(ports.QueueTracking, now.Add(time.Minute))
		require.NoError(t, err)
		assert.Zero(t, reclaimed)

		// Past it, the job returns to the scheduled set.
		reclaimed, err = queue.ReclaimStalled(ports.QueueTracking, now.Add(10*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, reclaimed)

		jobs, err = queue.Dequeue(ports.QueueTracking, now.Add(10*time.Minute), 10)
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, "job-1", jobs[0].ID)
		assert.Equal(t, 2, jobs[0].Attempts)
	})
}

func TestJobQueue_QueuesAreIndependent(t *testing.T) {
	withRedis(t, func(mr *miniredis.Miniredis, db *redis.Client) {
		queue := NewJobQueue(db)

		err := queue.Enqueue(ports.QueueTracking, ports.JobTypeTrackRetry,
			testPayload{}, ports.EnqueueOptions{JobID: "job-1"})
		require.NoError(t, err)

		jobs, err := queue.Dequeue(ports.QueueCharges, time.Now().Add(time.Second), 10)
		require.NoError(t, err)
		assert.Empty(t, jobs)

		jobs, err = queue.Dequeue(ports.QueueTracking, time.Now().Add(time.Second), 10)
		require.NoError(t, err)
		assert.Len(t, jobs, 1)
	})
}
