// Package job runs deferred work behind the upload API. Uploading a
// document only stores it; the actual ingestion (extract, chunk, embed,
// index) happens later on a worker consuming the durable jobs queue.
// Each queued message is backed by a database row so a job's outcome
// survives worker restarts and can be inspected after the fact.
package job

import (
	"context"
	"encoding/json"
	"time"
)

// JobStatus tracks a job through its lifecycle. A job is created pending,
// moves to running when a worker picks its message up, and ends completed
// or failed. Failed is terminal; re-uploading the document enqueues a
// fresh job rather than retrying the old row.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is the persisted record of one unit of deferred work. Payload is
// opaque here; the handler registered for TaskType decodes it (an ingest
// job carries an IngestPayload). Error holds the failure cause once
// Status is failed, nil otherwise.
type Job struct {
	ID        int             `json:"id"`
	TaskType  string          `json:"task_type"`
	Payload   json.RawMessage `json:"payload"`
	Status    JobStatus       `json:"status"`
	Error     *string         `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// JobRepository persists job rows. UpdateStatus records the error cause
// alongside a failed status; pass nil on success transitions.
type JobRepository interface {
	Create(ctx context.Context, taskType string, payload json.RawMessage) (*Job, error)
	Get(ctx context.Context, id int) (*Job, error)
	UpdateStatus(ctx context.Context, id int, status JobStatus, err *string) error
}
