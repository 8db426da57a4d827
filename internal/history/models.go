package history

import "time"

// Status is the ledger state of a URL.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// InterruptedReason is recorded for downloads that were in flight when the
// process stopped.
const InterruptedReason = "interrupted by server restart"

// Entry is one ledger row.
type Entry struct {
	ID          int64
	JobID       string
	URL         string
	Title       string
	Status      Status
	Attempts    int
	LastError   string
	OutputPath  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// FileRecord maps a finished filename to its source.
type FileRecord struct {
	Filename   string
	URL        string
	Title      string
	RecordedAt time.Time
}
