package api

import (
	"time"

	"vidsnatch/internal/jobs"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// DownloadRequest is the body of POST /download.
type DownloadRequest struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	OpenFolder  bool   `json:"openFolder"`
	Destination string `json:"destination,omitempty"`
}

// DownloadResponse acknowledges an accepted download.
type DownloadResponse struct {
	Success          bool   `json:"success"`
	DownloadID       string `json:"downloadId"`
	URL              string `json:"url"`
	Title            string `json:"title"`
	Message          string `json:"message"`
	PreviousAttempts int    `json:"previousAttempts,omitempty"`
}

// ProgressResponse is the polling view of one download.
type ProgressResponse struct {
	DownloadID string  `json:"downloadId"`
	Status     string  `json:"status"`
	Percent    float64 `json:"percent"`
	Speed      string  `json:"speed,omitempty"`
	ETA        string  `json:"eta,omitempty"`
	Error      string  `json:"error,omitempty"`
	Title      string  `json:"title"`
	RetryCount int     `json:"retryCount"`
}

// Download is a job as listed by GET /jobs.
type Download struct {
	ProgressResponse
	URL         string `json:"url"`
	OutputPath  string `json:"outputPath,omitempty"`
	Destination string `json:"destination,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// JobsResponse wraps every known download.
type JobsResponse struct {
	Downloads []Download `json:"downloads"`
}

// SuccessResponse is the generic acknowledgement. Error is set only when
// Success is false.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RetryResponse reports the retry count of a restarted download.
type RetryResponse struct {
	Success    bool   `json:"success"`
	RetryCount int    `json:"retry_count"`
	Error      string `json:"error,omitempty"`
}

// DeleteResponse lists the files removed along with a download.
type DeleteResponse struct {
	Success      bool     `json:"success"`
	RemovedFiles []string `json:"removedFiles"`
	Warning      string   `json:"warning,omitempty"`
}

// StatusResponse describes the running server.
type StatusResponse struct {
	Status          string `json:"status"`
	Message         string `json:"message"`
	ActiveDownloads int    `json:"activeDownloads"`
	DownloadDir     string `json:"downloadDir"`
	Version         string `json:"version"`
}

// FolderResponse is returned by GET /current-folder.
type FolderResponse struct {
	Status string `json:"status"`
	Folder string `json:"folder"`
	Path   string `json:"path"`
}

// SelectFolderRequest is the optional body of POST /select-folder. A path
// skips the dialog.
type SelectFolderRequest struct {
	Path string `json:"path,omitempty"`
}

// SelectFolderResponse reports the chosen destination.
type SelectFolderResponse struct {
	Success   bool   `json:"success"`
	Path      string `json:"path,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`
	Error     string `json:"error,omitempty"`
}

// DeletePartialResponse reports a removed partial file.
type DeletePartialResponse struct {
	Success bool   `json:"success"`
	Removed string `json:"removed,omitempty"`
	Error   string `json:"error,omitempty"`
}

// FindFailedResponse names the failed download a file belongs to.
type FindFailedResponse struct {
	Found      bool    `json:"found"`
	DownloadID string  `json:"downloadId,omitempty"`
	URL        string  `json:"url,omitempty"`
	Title      string  `json:"title,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
}

// EventsResponse is one long-poll batch from GET /events.
type EventsResponse struct {
	Events []jobs.Event `json:"events"`
	Next   uint64       `json:"next"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// FromProgress converts the polling view of a job.
func FromProgress(p jobs.Progress) ProgressResponse {
	return ProgressResponse{
		DownloadID: p.ID,
		Status:     string(p.Status),
		Percent:    p.Percent,
		Speed:      p.Speed,
		ETA:        p.ETA,
		Error:      p.Error,
		Title:      p.Title,
		RetryCount: p.RetryCount,
	}
}

// FromJob converts a job snapshot for listing.
func FromJob(job jobs.Job) Download {
	return Download{
		ProgressResponse: FromProgress(jobs.ProgressOf(job)),
		URL:              job.SourceURL,
		OutputPath:       job.OutputPath,
		Destination:      job.DestinationDir,
		CreatedAt:        formatTime(job.CreatedAt),
		UpdatedAt:        formatTime(job.UpdatedAt),
	}
}

// FromJobs converts a list of snapshots, never returning nil.
func FromJobs(list []jobs.Job) []Download {
	out := make([]Download, 0, len(list))
	for _, job := range list {
		out = append(out, FromJob(job))
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// ParseTime reads a timestamp written by the server.
func ParseTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateTimeFormat, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
