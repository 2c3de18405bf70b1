package jobs

import (
	"context"
	"errors"
	"time"
)

// JobStatus represents the current status of a training run job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	// JobStatusRetrying indicates the run failed and will be enqueued again.
	JobStatusRetrying JobStatus = "retrying"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrQueueClosed = errors.New("queue is closed")
)

// TrainingJob asks for one pipeline run over the daily files in [StartDate, EndDate].
type TrainingJob struct {
	JobID     string `json:"job_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`

	// Filled in by the handler on success.
	Result *RunResult `json:"result,omitempty"`
}

// RunResult summarizes a finished pipeline run.
type RunResult struct {
	RunID        string  `json:"run_id"`
	HistoryRows  int     `json:"history_rows"`
	RowsAdded    int     `json:"rows_added"`
	FeatureRows  int     `json:"feature_rows"`
	TestMAE      float64 `json:"test_mae"`
	TestRMSE     float64 `json:"test_rmse"`
	TestR2       float64 `json:"test_r2"`
	TestSamples  int     `json:"test_samples"`
	Features     int     `json:"n_features"`
}

// Publisher enqueues training runs.
type Publisher interface {
	PublishTraining(ctx context.Context, job *TrainingJob) error
	Close() error
}

// Consumer runs queued jobs through a JobHandler.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	// Stop waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error marks the attempt failed and
// may trigger a retry.
type JobHandler func(ctx context.Context, job *TrainingJob) error

// JobStore tracks job state for status queries.
type JobStore interface {
	SaveJob(ctx context.Context, job *TrainingJob) error
	GetJob(ctx context.Context, jobID string) (*TrainingJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*TrainingJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Status JobStatus
	Limit  int
	Offset int
}
