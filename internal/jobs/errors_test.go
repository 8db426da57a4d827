package jobs_test

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"vidsnatch/internal/jobs"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     jobs.ErrorKind
		sentinel error
	}{
		{"validation", &jobs.ValidationError{Field: "url", Message: "URL is required"}, jobs.KindValidation, jobs.ErrValidation},
		{"not found", &jobs.NotFoundError{ID: "x"}, jobs.KindNotFound, jobs.ErrNotFound},
		{"invalid state", &jobs.InvalidStateError{ID: "x", Status: jobs.StatusQueued, Op: "retry"}, jobs.KindInvalidState, jobs.ErrInvalidState},
		{"extraction", &jobs.ExtractionError{ID: "x", Message: "boom"}, jobs.KindExtraction, jobs.ErrExtraction},
		{"filesystem", &jobs.FilesystemError{Op: "remove", Path: "/x", Err: fs.ErrPermission}, jobs.KindFilesystem, jobs.ErrFilesystem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("handler: %w", tt.err)
			if got := jobs.KindOf(wrapped); got != tt.kind {
				t.Fatalf("KindOf = %q, want %q", got, tt.kind)
			}
			if !errors.Is(wrapped, tt.sentinel) {
				t.Fatalf("errors.Is(%v, sentinel) = false", wrapped)
			}
		})
	}
	if got := jobs.KindOf(errors.New("plain")); got != "" {
		t.Fatalf("KindOf(plain) = %q", got)
	}
}

func TestErrorMessages(t *testing.T) {
	if got := (&jobs.NotFoundError{ID: "a"}).Error(); got != "download a not found" {
		t.Fatalf("NotFoundError = %q", got)
	}
	if got := (&jobs.NotFoundError{Resource: "file", ID: "x.part"}).Error(); got != "file x.part not found" {
		t.Fatalf("NotFoundError file = %q", got)
	}
	if got := (&jobs.InvalidStateError{ID: "a", Status: jobs.StatusCompleted, Op: "retry"}).Error(); got != "cannot retry download a while completed" {
		t.Fatalf("InvalidStateError = %q", got)
	}
	fsErr := &jobs.FilesystemError{Op: "remove", Path: "/x", Err: fs.ErrPermission}
	if !errors.Is(fsErr, fs.ErrPermission) {
		t.Fatal("FilesystemError does not unwrap")
	}
}

func TestJobErr(t *testing.T) {
	if err := (jobs.Job{Status: jobs.StatusCompleted}).Err(); err != nil {
		t.Fatalf("completed job Err = %v", err)
	}
	err := (jobs.Job{ID: "a", Status: jobs.StatusError, ErrorMessage: "HTTP Error 403"}).Err()
	if !errors.Is(err, jobs.ErrExtraction) || err.Error() != "download a failed: HTTP Error 403" {
		t.Fatalf("error job Err = %v", err)
	}
}
