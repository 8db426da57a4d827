package engine

import "context"

// Phase is the coarse activity an extraction reports.
type Phase string

const (
	PhasePreparing   Phase = "preparing"
	PhaseDownloading Phase = "downloading"
	PhaseProcessing  Phase = "processing"
)

// UnknownPercent marks a progress update that carries no percentage.
const UnknownPercent = -1.0

// Progress is one parsed progress report. Percent is UnknownPercent when the
// engine line did not include one; Speed and ETA are empty when unknown.
type Progress struct {
	Percent float64
	Speed   string
	ETA     string
	Phase   Phase
}

// Request describes one extraction.
type Request struct {
	URL string
	// OutputTemplate is an absolute yt-dlp style template such as
	// "/downloads/Title.%(ext)s".
	OutputTemplate string
}

// Callbacks receive the events of one execution. All callbacks of an
// execution are delivered sequentially from a single goroutine. At most one of
// OnComplete and OnError is called, and nothing follows it. An execution that
// is cancelled through its Handle may end without either.
type Callbacks struct {
	OnProgress func(Progress)
	OnComplete func(outputPath string)
	OnError    func(message string)
}

// Handle controls a running execution.
type Handle interface {
	// Cancel asks the execution to stop. It returns immediately and is safe
	// to call more than once.
	Cancel()
	// Done is closed once the execution has stopped and its last callback
	// has returned.
	Done() <-chan struct{}
}

// Engine starts extractions. Extract returns as soon as the execution is
// running; an error means nothing was started and no callback will fire.
type Engine interface {
	Extract(ctx context.Context, req Request, cb Callbacks) (Handle, error)
}
