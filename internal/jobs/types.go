package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeLoadBatch loads one normalized statement batch.
	JobTypeLoadBatch JobType = "load_batch"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed and will not be retried.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// LoadBatchJob asks a worker to fetch and decode one batch file, either a
// local path or a gs:// URI.
type LoadBatchJob struct {
	JobID string `json:"job_id"`

	// Source is the path or URI of the batch.
	Source string `json:"source"`

	// RunID is the consolidation run the batch belongs to.
	RunID string `json:"run_id,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	// RetryCount is the number of retries already scheduled.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *LoadBatchJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *LoadBatchJob) GetType() JobType {
	return JobTypeLoadBatch
}

// GetStatus implements the Job interface.
func (j *LoadBatchJob) GetStatus() JobStatus {
	return j.Status
}

// FinalAttempt reports whether a failure of the current attempt is terminal.
func (j *LoadBatchJob) FinalAttempt() bool {
	return j.RetryCount >= j.MaxRetries
}

// Publisher enqueues jobs.
type Publisher interface {
	PublishLoadBatch(ctx context.Context, job *LoadBatchJob) error
	Close() error
}

// Consumer runs a handler over queued jobs.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job.
// It should return an error if the job failed and should be retried, or an
// error wrapped with backoff.Permanent if retrying cannot help.
type JobHandler func(ctx context.Context, job Job) error

// JobStore records job state for inspection after a run.
type JobStore interface {
	SaveJob(ctx context.Context, job *LoadBatchJob) error
	GetJob(ctx context.Context, jobID string) (*LoadBatchJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*LoadBatchJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	RunID  string
	Status JobStatus
	Limit  int
	Offset int
}
