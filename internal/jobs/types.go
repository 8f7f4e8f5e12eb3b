// Package jobs defines the async parse job model and the queue abstractions
// the API and worker share. The in-memory implementation lives in
// jobs/inmemory; a hosted queue can be swapped in behind the same
// interfaces.
package jobs

import (
	"context"
	"time"
)

// JobType identifies the kind of work a job carries.
type JobType string

const (
	JobTypeParseStatement JobType = "parse_statement"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// ParseStatementJob asks the worker to run the ingestion pipeline over a
// statement document previously uploaded to object storage.
type ParseStatementJob struct {
	JobID string `json:"job_id"`

	DocumentID string `json:"document_id"`
	GCSURI     string `json:"gcs_uri"`

	// Ingestion parameters, passed through to the pipeline unchanged.
	AccountID        string `json:"account_id"`
	Currency         string `json:"currency"`
	MIMEType         string `json:"mime_type,omitempty"`
	ForceRecognition bool   `json:"force_recognition,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is the generic interface all job types satisfy.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *ParseStatementJob) GetID() string        { return j.JobID }
func (j *ParseStatementJob) GetType() JobType     { return JobTypeParseStatement }
func (j *ParseStatementJob) GetStatus() JobStatus { return j.Status }

// Publisher enqueues jobs.
type Publisher interface {
	PublishParseStatement(ctx context.Context, job *ParseStatementJob) error
	Close() error
}

// JobHandler processes one job; a returned error marks the job for retry.
type JobHandler func(ctx context.Context, job Job) error

// Consumer pulls jobs off the queue and feeds them to a handler.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	Stop(ctx context.Context) error
}

// JobStore tracks job state for the status endpoints.
type JobStore interface {
	SaveJob(ctx context.Context, job *ParseStatementJob) error
	GetJob(ctx context.Context, jobID string) (*ParseStatementJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ParseStatementJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter narrows ListJobs results.
type JobFilter struct {
	DocumentID string
	Status     JobStatus
	Limit      int
	Offset     int
}
