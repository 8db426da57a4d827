package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"vidsnatch/internal/engine"
	"vidsnatch/internal/logging"
	"vidsnatch/internal/sink"
)

// Observer receives job snapshots from execution goroutines. Calls for one
// job arrive in the order the changes were applied, outside the store lock.
type Observer interface {
	JobStarted(Job)
	JobProgress(Job)
	JobFinished(Job)
}

// RunnerOptions configures execution limits.
type RunnerOptions struct {
	// MaxConcurrent caps running executions; 0 means unlimited.
	MaxConcurrent int
}

// Runner owns the single live execution of each job.
type Runner struct {
	store    *Store
	engine   engine.Engine
	sink     *sink.Sink
	logger   *slog.Logger
	observer Observer
	slots    chan struct{}

	tokens atomic.Uint64
	mu     sync.Mutex
	live   map[string]*execution
	wg     sync.WaitGroup
	ctx    context.Context
	stop   context.CancelFunc
}

type execution struct {
	token  uint64
	jobID  string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger

	mu            sync.Mutex
	handle        engine.Handle
	stopRequested bool
}

// attach records the engine handle. It reports false when a stop was
// requested before the handle existed; the caller must cancel it.
func (e *execution) attach(h engine.Handle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handle = h
	return !e.stopRequested
}

func (e *execution) requestStop() {
	e.mu.Lock()
	e.stopRequested = true
	h := e.handle
	e.mu.Unlock()
	e.cancel()
	if h != nil {
		h.Cancel()
	}
}

// NewRunner wires a runner. observer may be nil.
func NewRunner(store *Store, eng engine.Engine, snk *sink.Sink, logger *slog.Logger, opts RunnerOptions, observer Observer) *Runner {
	ctx, stop := context.WithCancel(context.Background())
	r := &Runner{
		store:    store,
		engine:   eng,
		sink:     snk,
		logger:   logging.NewComponentLogger(logger, "runner"),
		observer: observer,
		live:     make(map[string]*execution),
		ctx:      ctx,
		stop:     stop,
	}
	if opts.MaxConcurrent > 0 {
		r.slots = make(chan struct{}, opts.MaxConcurrent)
	}
	if r.observer == nil {
		r.observer = nopObserver{}
	}
	return r
}

// Start binds a new execution to a queued job and runs it in the background.
// It returns without waiting for a concurrency slot.
func (r *Runner) Start(id string) error {
	token := r.tokens.Add(1)
	bound := false
	r.store.Update(id, func(j *Job) {
		if j.Status != StatusQueued || j.execution != 0 {
			return
		}
		j.execution = token
		bound = true
	})
	if !bound {
		job, err := r.store.Get(id)
		if err != nil {
			return err
		}
		return &InvalidStateError{ID: id, Status: job.Status, Op: "start"}
	}

	ctx, cancel := context.WithCancel(r.ctx)
	exec := &execution{
		token:  token,
		jobID:  id,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: r.logger.With(logging.String(logging.FieldJobID, id)),
	}
	r.mu.Lock()
	r.live[id] = exec
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(exec)
	return nil
}

// Stop asks the execution holding token to stop and returns a channel closed
// once it has. The channel is already closed when no such execution lives.
func (r *Runner) Stop(id string, token uint64) <-chan struct{} {
	r.mu.Lock()
	exec := r.live[id]
	r.mu.Unlock()
	if exec == nil || (token != 0 && exec.token != token) {
		return closedChan
	}
	exec.requestStop()
	return exec.done
}

// Done returns a channel closed when the job's live execution ends, or a
// closed channel when none is running.
func (r *Runner) Done(id string) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if exec := r.live[id]; exec != nil {
		return exec.done
	}
	return closedChan
}

// Alive reports whether an execution goroutine still runs for id.
func (r *Runner) Alive(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live[id] != nil
}

// Shutdown stops every execution and waits for them, bounded by ctx.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.stop()
	r.mu.Lock()
	for _, exec := range r.live {
		exec.requestStop()
	}
	r.mu.Unlock()

	waited := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

func (r *Runner) run(exec *execution) {
	defer r.wg.Done()
	defer close(exec.done)
	defer r.forget(exec)
	defer exec.cancel()

	if !r.acquire(exec) {
		return
	}
	defer r.release()

	job, ok := r.apply(exec, func(j *Job) bool {
		if j.Status != StatusQueued {
			return false
		}
		j.Status = StatusPreparing
		j.Phase = string(engine.PhasePreparing)
		j.StartedAt = r.store.Now()
		return true
	})
	if !ok {
		return
	}
	exec.logger.Info("download started",
		logging.String(logging.FieldURL, job.SourceURL),
		logging.Int("retry_count", job.RetryCount),
		logging.String(logging.FieldEventType, "download_started"),
	)
	r.observe(exec, "start", func() { r.observer.JobStarted(job) })

	target, err := r.sink.Reserve(job.DestinationDir, job.DisplayTitle)
	if err != nil {
		r.fail(exec, fmt.Sprintf("cannot prepare destination: %v", err))
		return
	}
	defer r.sink.Release(target)
	r.apply(exec, func(j *Job) bool {
		j.PartialBase = target.Base
		return true
	})

	handle, err := r.engine.Extract(exec.ctx, engine.Request{
		URL:            job.SourceURL,
		OutputTemplate: target.Template,
	}, r.callbacks(exec))
	if err != nil {
		r.fail(exec, err.Error())
		return
	}
	if !exec.attach(handle) {
		handle.Cancel()
	}
	<-handle.Done()
	r.fail(exec, NoResultMessage)
}

func (r *Runner) acquire(exec *execution) bool {
	if r.slots == nil {
		return true
	}
	select {
	case r.slots <- struct{}{}:
		return true
	case <-exec.ctx.Done():
		return false
	}
}

func (r *Runner) release() {
	if r.slots != nil {
		<-r.slots
	}
}

func (r *Runner) forget(exec *execution) {
	r.mu.Lock()
	if r.live[exec.jobID] == exec {
		delete(r.live, exec.jobID)
	}
	r.mu.Unlock()
}

// apply runs fn on the job only while exec still owns it. fn reports whether
// it changed anything.
func (r *Runner) apply(exec *execution, fn func(*Job) bool) (Job, bool) {
	var (
		snapshot Job
		applied  bool
	)
	r.store.Update(exec.jobID, func(j *Job) {
		if j.execution != exec.token {
			return
		}
		if fn(j) {
			applied = true
			snapshot = *j
		}
	})
	return snapshot, applied
}

func (r *Runner) callbacks(exec *execution) engine.Callbacks {
	return engine.Callbacks{
		OnProgress: func(p engine.Progress) {
			r.guard(exec, "progress", func() { r.onProgress(exec, p) })
		},
		OnComplete: func(path string) {
			r.guard(exec, "complete", func() { r.onComplete(exec, path) })
		},
		OnError: func(message string) {
			r.guard(exec, "error", func() { r.onError(exec, message) })
		},
	}
}

// guard confines a panic in callback handling to the job it belongs to.
func (r *Runner) guard(exec *execution, name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.ErrorWithContext(exec.logger, "callback panicked", "callback_panic",
				logging.String("callback", name),
				logging.Any("panic", rec),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldErrorHint, "report this as a bug"),
			)
			r.fail(exec, fmt.Sprintf("internal error while handling %s: %v", name, rec))
			exec.requestStop()
		}
	}()
	fn()
}

// observe runs an observer call outside callback handling, logging panics.
func (r *Runner) observe(exec *execution, name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.ErrorWithContext(exec.logger, "observer panicked", "observer_panic",
				logging.String("hook", name),
				logging.Any("panic", rec),
			)
		}
	}()
	fn()
}

func (r *Runner) onProgress(exec *execution, p engine.Progress) {
	job, ok := r.apply(exec, func(j *Job) bool { return applyProgress(j, p) })
	if ok {
		r.observer.JobProgress(job)
	}
}

func (r *Runner) onComplete(exec *execution, path string) {
	path = strings.TrimSpace(path)
	job, ok := r.apply(exec, func(j *Job) bool {
		if j.Status.Terminal() {
			return false
		}
		j.Status = StatusCompleted
		j.Percent = 100
		j.OutputPath = path
		j.Speed = ""
		j.ETA = ""
		j.ErrorMessage = ""
		j.Phase = ""
		j.execution = 0
		return true
	})
	if !ok {
		return
	}
	exec.logger.Info("download completed",
		logging.String("output_path", path),
		logging.Duration("elapsed", time.Since(job.StartedAt).Round(time.Millisecond)),
		logging.String(logging.FieldEventType, "download_completed"),
	)
	r.observe(exec, "finished", func() { r.observer.JobFinished(job) })
}

func (r *Runner) onError(exec *execution, message string) {
	r.fail(exec, message)
}

// fail moves a non-terminal job owned by exec to error.
func (r *Runner) fail(exec *execution, message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		message = DefaultFailureMessage
	}
	job, ok := r.apply(exec, func(j *Job) bool {
		if j.Status.Terminal() {
			return false
		}
		markError(j, message)
		return true
	})
	if !ok {
		return
	}
	logging.WarnWithContext(exec.logger, "download failed", "download_failed",
		logging.String(logging.FieldURL, job.SourceURL),
		logging.String("reason", message),
		logging.String(logging.FieldErrorHint, "retry the download or check the URL"),
		logging.String(logging.FieldImpact, "download stopped; partial files kept for retry"),
	)
	r.observe(exec, "finished", func() { r.observer.JobFinished(job) })
}

func markError(j *Job, message string) {
	j.Status = StatusError
	j.ErrorMessage = message
	j.Speed = ""
	j.ETA = ""
	j.OutputPath = ""
	j.Phase = ""
	j.execution = 0
}

// applyProgress folds one engine report into j and reports whether it was
// accepted. Percent only moves forward while downloading and an unknown
// percent keeps the last value; processing pins it to 100. Reports that would
// move the job backwards through the phases are dropped.
func applyProgress(j *Job, p engine.Progress) bool {
	if j.Status.Terminal() || j.Status == StatusQueued {
		return false
	}
	switch p.Phase {
	case engine.PhaseDownloading:
		if j.Status == StatusProcessing {
			return false
		}
		if j.Status == StatusPreparing {
			j.Status = StatusDownloading
			j.Percent = 0
		}
		if pct, ok := clampPercent(p.Percent); ok && pct > j.Percent {
			j.Percent = pct
		}
		if p.Speed != "" {
			j.Speed = p.Speed
		}
		if p.ETA != "" {
			j.ETA = p.ETA
		}
	case engine.PhaseProcessing:
		j.Status = StatusProcessing
		j.Percent = 100
		j.Speed = ""
		j.ETA = ""
	default:
		if j.Status != StatusPreparing {
			return false
		}
	}
	j.Phase = string(p.Phase)
	return true
}

func clampPercent(v float64) (float64, bool) {
	if math.IsNaN(v) || v < 0 {
		return 0, false
	}
	if v > 100 {
		return 100, true
	}
	return v, true
}

type nopObserver struct{}

func (nopObserver) JobStarted(Job)  {}
func (nopObserver) JobProgress(Job) {}
func (nopObserver) JobFinished(Job) {}
