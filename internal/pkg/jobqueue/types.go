package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypePaymentSucceeded JobType = "payment_succeeded"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Handler runs one job. A returned error marks the job failed and, while
// retries remain, schedules it again.
type Handler func(ctx context.Context, job *Job) error

// ErrQueueFull is returned by the in-memory backend when its buffer is full.
var ErrQueueFull = errors.New("job queue is full")

// Backend is implemented by the Redis queue and the in-memory queue.
type Backend interface {
	RegisterHandler(jobType JobType, h Handler)
	EnqueueJob(ctx context.Context, jobType JobType, payload map[string]interface{}) (*Job, error)
	Start()
	Stop()
	Stats(ctx context.Context) (*Stats, error)
}

// Stats is a point-in-time view of a queue.
type Stats struct {
	Backend    string              `json:"backend"`
	Workers    int                 `json:"workers"`
	Pending    int64               `json:"pending"`
	Processing int64               `json:"processing"`
	Counts     map[JobStatus]int64 `json:"counts"`
}

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// PaymentEventJobPayload carries a verified webhook body to the worker. Only
// plain values go in here; nothing from the HTTP request outlives it.
type PaymentEventJobPayload struct {
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	RawEvent   string `json:"raw_event"`
	ReceivedAt int64  `json:"received_at"`
}

// ToMap converts the payload to a map for storage
func (p PaymentEventJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"event_id":    p.EventID,
		"event_type":  p.EventType,
		"raw_event":   p.RawEvent,
		"received_at": p.ReceivedAt,
	}
}

// PaymentEventJobPayloadFromMap creates a payload from a map
func PaymentEventJobPayloadFromMap(data map[string]interface{}) (*PaymentEventJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload PaymentEventJobPayload
	if err := json.Unmarshal(jsonData, &payload); err != nil {
		return nil, err
	}
	if payload.RawEvent == "" {
		return nil, errors.New("payment event payload has no raw_event")
	}
	return &payload, nil
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
