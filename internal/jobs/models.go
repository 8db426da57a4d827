package jobs

import "time"

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusPreparing   Status = "preparing"
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
	StatusCancelled   Status = "cancelled"
)

// Terminal reports whether no execution can be attached to a job in s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// Running reports whether an execution is actively working in s.
func (s Status) Running() bool {
	switch s {
	case StatusPreparing, StatusDownloading, StatusProcessing:
		return true
	default:
		return false
	}
}

// Retryable reports whether a retry may start from s.
func (s Status) Retryable() bool {
	return s == StatusError || s == StatusCancelled
}

const (
	// DefaultFailureMessage is stored when the engine reports an error
	// without text.
	DefaultFailureMessage = "download failed"
	// NoResultMessage is stored when an execution ends without reporting
	// success or failure.
	NoResultMessage = "extraction ended without a result"
	// StuckMessage is stored when a job never leaves preparing.
	StuckMessage = "timed out while preparing"
)

// Job is a snapshot of one download. Store methods hand out copies.
type Job struct {
	ID           string
	SourceURL    string
	DisplayTitle string
	Status       Status
	// Percent is meaningful only while downloading. It is 100 once
	// processing or completed and 0 after a retry.
	Percent      float64
	Speed        string
	ETA          string
	ErrorMessage string
	RetryCount   int
	OutputPath   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	// StartedAt is when the current execution entered preparing.
	StartedAt      time.Time
	DestinationDir string
	OpenFolder     bool
	Phase          string
	PartialBase    string

	execution uint64
	order     uint64
}

// CreateOptions carries submission settings stored on a new job.
type CreateOptions struct {
	DestinationDir string
	OpenFolder     bool
}

// Progress is the polling view of a job.
type Progress struct {
	ID         string
	Status     Status
	Percent    float64
	Speed      string
	ETA        string
	Error      string
	Title      string
	RetryCount int
}

// ProgressOf builds the polling view of job.
func ProgressOf(job Job) Progress {
	return Progress{
		ID:         job.ID,
		Status:     job.Status,
		Percent:    job.Percent,
		Speed:      job.Speed,
		ETA:        job.ETA,
		Error:      job.ErrorMessage,
		Title:      job.DisplayTitle,
		RetryCount: job.RetryCount,
	}
}

// Err returns the failure of an errored job as an *ExtractionError, or nil.
func (j Job) Err() error {
	if j.Status != StatusError {
		return nil
	}
	return &ExtractionError{ID: j.ID, Message: j.ErrorMessage}
}
