package jobqueue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

const defaultMemoryBuffer = 256

// MemoryQueue runs jobs on in-process workers. Jobs that are still buffered
// when the process stops are lost.
type MemoryQueue struct {
	handlerRegistry

	jobs       chan *Job
	workers    int
	retryDelay time.Duration
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool

	processing atomic.Int64
	statsMu    sync.Mutex
	counts     map[JobStatus]int64
}

// NewMemoryQueue creates an in-memory queue with a bounded buffer.
func NewMemoryQueue(workers, buffer int) *MemoryQueue {
	if workers <= 0 {
		workers = 3
	}
	if buffer <= 0 {
		buffer = defaultMemoryBuffer
	}
	return &MemoryQueue{
		jobs:       make(chan *Job, buffer),
		workers:    workers,
		retryDelay: DefaultRetryDelay,
		stopCh:     make(chan struct{}),
		counts:     make(map[JobStatus]int64),
	}
}

func (q *MemoryQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}
	q.running = true
	q.stopCh = make(chan struct{})
	log.Infof("[JobQueue] Starting %d in-memory workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i, q.stopCh)
	}
}

// Stop waits for running jobs; buffered jobs stay in the channel.
func (q *MemoryQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return
	}
	close(q.stopCh)
	q.running = false
	q.wg.Wait()

	if n := len(q.jobs); n > 0 {
		log.Warnf("[JobQueue] Stopped with %d jobs still buffered", n)
	}
	log.Info("[JobQueue] All workers stopped")
}

func (q *MemoryQueue) EnqueueJob(ctx context.Context, jobType JobType, payload map[string]interface{}) (*Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	job := newJob(jobType, payload)
	select {
	case q.jobs <- job:
	default:
		return nil, ErrQueueFull
	}
	q.count(JobStatusPending, 1)
	log.Infof("[JobQueue] Enqueued job %s (Type: %s)", job.ID, job.Type)
	return job, nil
}

func (q *MemoryQueue) worker(id int, stopCh <-chan struct{}) {
	defer q.wg.Done()
	ctx := context.Background()

	for {
		select {
		case <-stopCh:
			return
		case job := <-q.jobs:
			log.Infof("[JobQueue] Worker %d processing job %s (Type: %s)", id, job.ID, job.Type)
			q.processJob(ctx, job)
		}
	}
}

func (q *MemoryQueue) processJob(ctx context.Context, job *Job) {
	q.processing.Add(1)
	defer q.processing.Add(-1)

	job.MarkAsProcessing()
	err := q.run(ctx, job)
	if err == nil {
		job.MarkAsCompleted()
		q.count(JobStatusCompleted, 1)
		log.Infof("[JobQueue] Job %s completed successfully", job.ID)
		return
	}

	log.Errorf("[JobQueue] Job %s failed: %v", job.ID, err)
	job.MarkAsFailed(err.Error())
	if !job.IsRetryable() {
		log.Errorf("[JobQueue] Job %s permanently failed after %d retries", job.ID, job.RetryCount)
		q.count(JobStatusFailed, 1)
		return
	}

	log.Infof("[JobQueue] Retrying job %s (Attempt %d/%d)", job.ID, job.RetryCount, job.MaxRetries)
	job.MarkAsRetrying()
	time.AfterFunc(q.retryDelay*time.Duration(job.RetryCount), func() {
		select {
		case q.jobs <- job:
		default:
			log.Errorf("[JobQueue] Dropping retry of job %s: queue full", job.ID)
			q.count(JobStatusFailed, 1)
		}
	})
}

func (q *MemoryQueue) count(status JobStatus, delta int64) {
	q.statsMu.Lock()
	q.counts[status] += delta
	q.statsMu.Unlock()
}

func (q *MemoryQueue) Stats(context.Context) (*Stats, error) {
	q.statsMu.Lock()
	counts := make(map[JobStatus]int64, len(q.counts))
	for k, v := range q.counts {
		counts[k] = v
	}
	q.statsMu.Unlock()

	return &Stats{
		Backend:    "memory",
		Workers:    q.workers,
		Pending:    int64(len(q.jobs)),
		Processing: q.processing.Load(),
		Counts:     counts,
	}, nil
}
