package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// jobTimeout bounds a single handler run.
const jobTimeout = 2 * time.Minute

type handlerRegistry struct {
	mu       sync.RWMutex
	handlers map[JobType]Handler
}

// RegisterHandler sets the handler for jobType, replacing any previous one.
func (r *handlerRegistry) RegisterHandler(jobType JobType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handlers == nil {
		r.handlers = make(map[JobType]Handler)
	}
	r.handlers[jobType] = h
}

func (r *handlerRegistry) run(ctx context.Context, job *Job) (err error) {
	r.mu.RLock()
	h, ok := r.handlers[job.Type]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID, rec)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()
	return h(ctx, job)
}

func newJob(jobType JobType, payload map[string]interface{}) *Job {
	now := time.Now()
	return &Job{
		ID:         uuid.New().String(),
		Type:       jobType,
		Status:     JobStatusPending,
		Payload:    payload,
		CreatedAt:  now,
		UpdatedAt:  now,
		RetryCount: 0,
		MaxRetries: DefaultMaxRetries,
	}
}
