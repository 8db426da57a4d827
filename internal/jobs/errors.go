package jobs

import (
	"errors"
	"fmt"
)

// ErrorKind classifies errors for status mapping at the API boundary.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindInvalidState ErrorKind = "invalid_state"
	KindExtraction   ErrorKind = "extraction"
	KindFilesystem   ErrorKind = "filesystem"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrExtraction   = errors.New("extraction error")
	ErrFilesystem   = errors.New("filesystem error")
)

// ErrorClassifier is implemented by every error this package returns.
type ErrorClassifier interface {
	ErrorKind() ErrorKind
}

// KindOf returns the classification of err, or "" for foreign errors.
func KindOf(err error) ErrorKind {
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		return classifier.ErrorKind()
	}
	return ""
}

// ValidationError rejects a request before any job is created.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) ErrorKind() ErrorKind {
	return KindValidation
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundError reports an unknown job id or file.
type NotFoundError struct {
	// Resource defaults to "download".
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	resource := e.Resource
	if resource == "" {
		resource = "download"
	}
	return fmt.Sprintf("%s %s not found", resource, e.ID)
}

func (e *NotFoundError) ErrorKind() ErrorKind {
	return KindNotFound
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// InvalidStateError rejects an operation the job's status does not allow.
type InvalidStateError struct {
	ID     string
	Status Status
	Op     string
	Reason string
}

func (e *InvalidStateError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot %s download %s: %s", e.Op, e.ID, e.Reason)
	}
	return fmt.Sprintf("cannot %s download %s while %s", e.Op, e.ID, e.Status)
}

func (e *InvalidStateError) ErrorKind() ErrorKind {
	return KindInvalidState
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// ExtractionError is an engine-reported failure. It is stored on the job and
// never returned across job boundaries.
type ExtractionError struct {
	ID      string
	Message string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("download %s failed: %s", e.ID, e.Message)
}

func (e *ExtractionError) ErrorKind() ErrorKind {
	return KindExtraction
}

func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtraction
}

// FilesystemError wraps a destination or cleanup failure.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}

func (e *FilesystemError) ErrorKind() ErrorKind {
	return KindFilesystem
}

func (e *FilesystemError) Is(target error) bool {
	return target == ErrFilesystem
}
