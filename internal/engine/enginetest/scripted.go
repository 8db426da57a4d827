// Package enginetest provides a scripted engine for exercising the job
// lifecycle without running yt-dlp.
package enginetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"vidsnatch/internal/engine"
)

// Scripted is an engine.Engine whose executions are driven by the test.
type Scripted struct {
	mu       sync.Mutex
	requests []engine.Request
	startErr error
	stubborn bool
	execs    chan *Execution
}

// New returns a Scripted engine.
func New() *Scripted {
	return &Scripted{execs: make(chan *Execution, 64)}
}

// FailStart makes every following Extract call fail with err. A nil err
// restores normal behaviour.
func (s *Scripted) FailStart(err error) {
	s.mu.Lock()
	s.startErr = err
	s.mu.Unlock()
}

// Stubborn makes following executions ignore Cancel until the test ends them.
func (s *Scripted) Stubborn(on bool) {
	s.mu.Lock()
	s.stubborn = on
	s.mu.Unlock()
}

// Requests returns every request passed to Extract, including failed starts.
func (s *Scripted) Requests() []engine.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]engine.Request(nil), s.requests...)
}

// Extract implements engine.Engine.
func (s *Scripted) Extract(ctx context.Context, req engine.Request, cb engine.Callbacks) (engine.Handle, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	startErr := s.startErr
	stubborn := s.stubborn
	s.mu.Unlock()
	if startErr != nil {
		return nil, startErr
	}

	e := &Execution{
		Request:   req,
		cb:        cb,
		stubborn:  stubborn,
		ops:       make(chan op),
		cancelReq: make(chan struct{}),
		done:      make(chan struct{}),
	}
	go e.loop()
	go func() {
		select {
		case <-ctx.Done():
			e.Cancel()
		case <-e.done:
		}
	}()
	s.execs <- e
	return e, nil
}

// Next waits for the next execution started by Extract.
func (s *Scripted) Next(t testing.TB) *Execution {
	t.Helper()
	select {
	case e := <-s.execs:
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("no execution started")
		return nil
	}
}

// Pending reports how many started executions have not been taken by Next.
func (s *Scripted) Pending() int {
	return len(s.execs)
}

type op struct {
	fn    func()
	final bool
	ack   chan struct{}
}

// Execution is one scripted run. Its callbacks are delivered from a single
// goroutine, and each method returns once the callback has returned.
type Execution struct {
	Request engine.Request

	cb         engine.Callbacks
	stubborn   bool
	ops        chan op
	cancelReq  chan struct{}
	cancelOnce sync.Once
	done       chan struct{}
}

func (e *Execution) loop() {
	cancelReq := e.cancelReq
	for {
		select {
		case o := <-e.ops:
			if o.fn != nil {
				o.fn()
			}
			if o.final {
				close(e.done)
				close(o.ack)
				return
			}
			close(o.ack)
		case <-cancelReq:
			if e.stubborn {
				cancelReq = nil
				continue
			}
			close(e.done)
			return
		}
	}
}

func (e *Execution) deliver(fn func(), final bool) bool {
	o := op{fn: fn, final: final, ack: make(chan struct{})}
	select {
	case e.ops <- o:
		<-o.ack
		return true
	case <-e.done:
		return false
	}
}

// Progress delivers one progress update. It reports false when the execution
// has already stopped.
func (e *Execution) Progress(p engine.Progress) bool {
	return e.deliver(func() {
		if e.cb.OnProgress != nil {
			e.cb.OnProgress(p)
		}
	}, false)
}

// Downloading is shorthand for a downloading progress update.
func (e *Execution) Downloading(percent float64) bool {
	return e.Progress(engine.Progress{Phase: engine.PhaseDownloading, Percent: percent, Speed: "1.00MiB/s", ETA: "00:10"})
}

// Complete reports success and stops the execution.
func (e *Execution) Complete(outputPath string) bool {
	return e.deliver(func() {
		if e.cb.OnComplete != nil {
			e.cb.OnComplete(outputPath)
		}
	}, true)
}

// Fail reports an error and stops the execution.
func (e *Execution) Fail(message string) bool {
	return e.deliver(func() {
		if e.cb.OnError != nil {
			e.cb.OnError(message)
		}
	}, true)
}

// Finish stops the execution without a terminal callback.
func (e *Execution) Finish() bool {
	return e.deliver(nil, true)
}

// Cancel implements engine.Handle.
func (e *Execution) Cancel() {
	e.cancelOnce.Do(func() { close(e.cancelReq) })
}

// Done implements engine.Handle.
func (e *Execution) Done() <-chan struct{} {
	return e.done
}

// Cancelled reports whether Cancel has been requested.
func (e *Execution) Cancelled() bool {
	select {
	case <-e.cancelReq:
		return true
	default:
		return false
	}
}

// WaitCancelled fails the test unless Cancel is requested within five seconds.
func (e *Execution) WaitCancelled(t testing.TB) {
	t.Helper()
	select {
	case <-e.cancelReq:
	case <-time.After(5 * time.Second):
		t.Fatal("execution was not cancelled")
	}
}

// WaitDone fails the test unless the execution stops within five seconds.
func (e *Execution) WaitDone(t testing.TB) {
	t.Helper()
	select {
	case <-e.done:
	case <-time.After(5 * time.Second):
		t.Fatal("execution did not stop")
	}
}
