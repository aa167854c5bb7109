package jobqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewQueue tests the queue constructor
func TestNewQueue(t *testing.T) {
	tests := []struct {
		name            string
		workers         int
		expectedWorkers int
	}{
		{"Valid worker count", 5, 5},
		{"Zero workers", 0, 3},
		{"Negative workers", -1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := NewQueueWithClient(nil, tt.workers)

			assert.NotNil(t, queue)
			assert.Equal(t, tt.expectedWorkers, queue.workers)
			assert.Equal(t, tt.expectedWorkers, cap(queue.workerPool))
			assert.Equal(t, DefaultRetryDelay, queue.retryDelay)
			assert.False(t, queue.running)
		})
	}
}

func TestConstants(t *testing.T) {
	assert.Equal(t, "job:", JobKeyPrefix)
	assert.Equal(t, "job_queue", JobQueueKey)
	assert.Equal(t, "job_processing", JobProcessingKey)
	assert.Equal(t, "job_stats", JobStatsKey)

	assert.Equal(t, 3, DefaultMaxRetries)
	assert.Equal(t, 24*time.Hour, JobTTL)
	assert.Equal(t, JobType("payment_succeeded"), JobTypePaymentSucceeded)
}

func TestPaymentEventJobPayload(t *testing.T) {
	p := PaymentEventJobPayload{
		EventID:    "evt_1",
		EventType:  "payment_intent.succeeded",
		RawEvent:   `{"id":"evt_1"}`,
		ReceivedAt: 1700000000,
	}

	back, err := PaymentEventJobPayloadFromMap(p.ToMap())
	require.NoError(t, err)
	assert.Equal(t, p, *back)

	_, err = PaymentEventJobPayloadFromMap(map[string]interface{}{"event_id": "evt_1"})
	assert.Error(t, err)
}

func TestJobLifecycle(t *testing.T) {
	job := newJob(JobTypePaymentSucceeded, nil)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.NotEmpty(t, job.ID)

	job.MarkAsProcessing()
	assert.NotNil(t, job.ProcessedAt)

	for i := 0; i < DefaultMaxRetries-1; i++ {
		job.MarkAsFailed("boom")
		assert.True(t, job.IsRetryable())
		job.MarkAsRetrying()
	}
	job.MarkAsFailed("boom")
	assert.False(t, job.IsRetryable())

	job.MarkAsCompleted()
	assert.Empty(t, job.ErrorMsg)
	assert.NotNil(t, job.CompletedAt)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestMemoryQueue_RunsHandler(t *testing.T) {
	q := NewMemoryQueue(2, 8)
	var got atomic.Value
	q.RegisterHandler(JobTypePaymentSucceeded, func(ctx context.Context, job *Job) error {
		p, err := PaymentEventJobPayloadFromMap(job.Payload)
		if err != nil {
			return err
		}
		got.Store(p.EventID)
		return nil
	})
	q.Start()
	defer q.Stop()

	_, err := q.EnqueueJob(context.Background(), JobTypePaymentSucceeded,
		PaymentEventJobPayload{EventID: "evt_1", RawEvent: "{}"}.ToMap())
	require.NoError(t, err)

	waitFor(t, func() bool { return got.Load() == "evt_1" })
	waitFor(t, func() bool {
		s, _ := q.Stats(context.Background())
		return s.Counts[JobStatusCompleted] == 1
	})
}

func TestMemoryQueue_RetriesThenFails(t *testing.T) {
	q := NewMemoryQueue(1, 8)
	q.retryDelay = time.Millisecond
	var calls atomic.Int32
	q.RegisterHandler(JobTypePaymentSucceeded, func(context.Context, *Job) error {
		calls.Add(1)
		return errors.New("database unavailable")
	})
	q.Start()
	defer q.Stop()

	_, err := q.EnqueueJob(context.Background(), JobTypePaymentSucceeded, nil)
	require.NoError(t, err)

	waitFor(t, func() bool {
		s, _ := q.Stats(context.Background())
		return s.Counts[JobStatusFailed] == 1
	})
	assert.Equal(t, int32(DefaultMaxRetries), calls.Load())
}

func TestMemoryQueue_UnknownTypeAndPanic(t *testing.T) {
	q := NewMemoryQueue(1, 8)
	q.retryDelay = time.Millisecond
	q.RegisterHandler(JobTypePaymentSucceeded, func(context.Context, *Job) error { panic("boom") })
	q.Start()
	defer q.Stop()

	_, err := q.EnqueueJob(context.Background(), JobType("nope"), nil)
	require.NoError(t, err)
	_, err = q.EnqueueJob(context.Background(), JobTypePaymentSucceeded, nil)
	require.NoError(t, err)

	waitFor(t, func() bool {
		s, _ := q.Stats(context.Background())
		return s.Counts[JobStatusFailed] == 2
	})
}

func TestMemoryQueue_Full(t *testing.T) {
	q := NewMemoryQueue(1, 1)

	_, err := q.EnqueueJob(context.Background(), JobTypePaymentSucceeded, nil)
	require.NoError(t, err)
	_, err = q.EnqueueJob(context.Background(), JobTypePaymentSucceeded, nil)
	assert.ErrorIs(t, err, ErrQueueFull)

	s, err := q.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "memory", s.Backend)
	assert.Equal(t, int64(1), s.Pending)
}

func TestManager_SelectsBackend(t *testing.T) {
	m := NewManager(nil, 2)
	_, ok := m.GetQueue().(*MemoryQueue)
	assert.True(t, ok)

	m.Start()
	assert.True(t, m.IsRunning())
	m.Stop()
	assert.False(t, m.IsRunning())
}
