package jobs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"vidsnatch/internal/config"
	"vidsnatch/internal/engine"
	"vidsnatch/internal/history"
	"vidsnatch/internal/logging"
	"vidsnatch/internal/matcher"
	"vidsnatch/internal/notifications"
	"vidsnatch/internal/preflight"
	"vidsnatch/internal/sink"
)

// CancelledReason is recorded in the ledger for downloads stopped by the user.
const CancelledReason = "cancelled"

// Ledger persists per-URL download history. *history.Store implements it.
type Ledger interface {
	RecordAttempt(ctx context.Context, jobID, url, title string) (int, error)
	MarkDownloading(ctx context.Context, url string) error
	MarkCompleted(ctx context.Context, url, outputPath string) error
	MarkFailed(ctx context.Context, url, message string) error
	RecordFile(ctx context.Context, filename, url, title string) error
	LookupFile(ctx context.Context, filename string) (*history.FileRecord, error)
	Failed(ctx context.Context) ([]history.Entry, error)
}

// FolderOpener reveals a directory in the desktop file manager.
type FolderOpener interface {
	Open(path string) error
}

// Deps carries the collaborators of a Service. Engine is required; a nil
// Sink or Matcher gets a default, and the rest are optional.
type Deps struct {
	Engine   engine.Engine
	Sink     *sink.Sink
	Matcher  *matcher.Matcher
	History  Ledger
	Notifier notifications.Service
	Opener   FolderOpener
	Logger   *slog.Logger
	Clock    func() time.Time
}

// SubmitRequest is a new download as received from a client.
type SubmitRequest struct {
	URL        string
	Title      string
	OpenFolder bool
	// Destination overrides the configured download directory.
	Destination string
}

// SubmitResult describes an accepted submission.
type SubmitResult struct {
	Job Job
	// PreviousAttempts counts earlier failed attempts for the same URL.
	PreviousAttempts int
}

// DeleteResult lists what Delete removed from disk. CleanupErr joins file
// removal failures; the job itself is gone either way.
type DeleteResult struct {
	Job          Job
	RemovedFiles []string
	CleanupErr   error
}

// FailedMatch is the failed download a partial file most likely belongs to.
type FailedMatch struct {
	JobID      string
	URL        string
	Title      string
	Similarity float64
}

// Service is the control surface over the job store and runner.
type Service struct {
	cfg      *config.Config
	store    *Store
	runner   *Runner
	events   *EventHub
	sink     *sink.Sink
	matcher  *matcher.Matcher
	history  Ledger
	notifier notifications.Service
	opener   FolderOpener
	logger   *slog.Logger

	grace        time.Duration
	stuckTimeout time.Duration
	evictAfter   time.Duration

	destMu      sync.RWMutex
	destination string

	mu       sync.Mutex
	settled  map[string]chan struct{}
	samplers map[string]*logging.ProgressSampler
	closed   bool
	bg       sync.WaitGroup
	bgCtx    context.Context
	bgCancel context.CancelFunc
}

// NewService wires the store, event hub and runner for cfg.
func NewService(cfg *config.Config, deps Deps) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("jobs: config is required")
	}
	if deps.Engine == nil {
		return nil, errors.New("jobs: engine is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	m := deps.Matcher
	if m == nil {
		m = matcher.New(matcher.ScorerByName(cfg.History.MatchScorer), cfg.History.MatchThreshold)
	}
	snk := deps.Sink
	if snk == nil {
		snk = sink.New(logger, m)
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:          cfg,
		events:       NewEventHub(0),
		sink:         snk,
		matcher:      m,
		history:      deps.History,
		notifier:     deps.Notifier,
		opener:       deps.Opener,
		logger:       logging.NewComponentLogger(logger, "jobs"),
		grace:        cfg.CancelGrace(),
		stuckTimeout: cfg.StuckTimeout(),
		evictAfter:   cfg.EvictAfter(),
		destination:  cfg.Paths.DownloadDir,
		settled:      make(map[string]chan struct{}),
		samplers:     make(map[string]*logging.ProgressSampler),
		bgCtx:        bgCtx,
		bgCancel:     bgCancel,
	}
	storeOpts := []StoreOption{WithChangeListener(s.events.Listener())}
	if deps.Clock != nil {
		storeOpts = append(storeOpts, WithClock(deps.Clock))
	}
	s.store = NewStore(storeOpts...)
	s.runner = NewRunner(s.store, deps.Engine, snk, logger, RunnerOptions{
		MaxConcurrent: cfg.Jobs.MaxConcurrent,
	}, serviceObserver{s: s})
	return s, nil
}

// Events returns the hub fed by every store change.
func (s *Service) Events() *EventHub {
	return s.events
}

// Submit validates req, creates a queued job and starts it. It returns
// before the download begins.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	sourceURL := strings.TrimSpace(req.URL)
	if err := validateURL(sourceURL); err != nil {
		return SubmitResult{}, err
	}

	dir := s.Destination()
	if override := strings.TrimSpace(req.Destination); override != "" {
		expanded, err := config.ExpandPath(override)
		if err != nil {
			return SubmitResult{}, &ValidationError{Field: "destination", Message: err.Error()}
		}
		if err := preflight.DirectoryError(expanded); err != nil {
			return SubmitResult{}, &FilesystemError{Op: "use destination", Path: expanded, Err: err}
		}
		dir = expanded
	}

	title := sink.CleanTitle(req.Title)
	job := s.store.Create(sourceURL, title, CreateOptions{
		DestinationDir: dir,
		OpenFolder:     req.OpenFolder,
	})
	previous := s.recordAttempt(ctx, job)
	if err := s.runner.Start(job.ID); err != nil {
		// A cancel that lands before the start still leaves a job the
		// caller must be able to see, retry or delete.
		current, getErr := s.store.Get(job.ID)
		if getErr != nil || !current.Status.Terminal() {
			return SubmitResult{}, err
		}
		s.logger.Info("download stopped before it started",
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldURL, sourceURL),
			logging.String("status", string(current.Status)),
			logging.String(logging.FieldEventType, "download_preempted"),
		)
		return SubmitResult{Job: current, PreviousAttempts: previous}, nil
	}

	s.logger.Info("download queued",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldURL, sourceURL),
		logging.String("title", title),
		logging.String("destination", dir),
		logging.Int("previous_attempts", previous),
		logging.String(logging.FieldEventType, "download_queued"),
	)
	return SubmitResult{Job: job, PreviousAttempts: previous}, nil
}

func validateURL(raw string) error {
	if raw == "" {
		return &ValidationError{Field: "url", Message: "URL is required"}
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{Field: "url", Message: err.Error()}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &ValidationError{Field: "url", Message: "must be an http or https URL"}
	}
	if parsed.Host == "" {
		return &ValidationError{Field: "url", Message: "host is missing"}
	}
	return nil
}

// Get returns a copy of one job.
func (s *Service) Get(id string) (Job, error) {
	return s.store.Get(id)
}

// List returns every job in submission order.
func (s *Service) List() []Job {
	return s.store.List()
}

// Progress returns the polling view of one job.
func (s *Service) Progress(id string) (Progress, error) {
	job, err := s.store.Get(id)
	if err != nil {
		return Progress{}, err
	}
	return ProgressOf(job), nil
}

// ActiveCount reports jobs that are queued or running.
func (s *Service) ActiveCount() int {
	return s.store.Count(func(j Job) bool { return !j.Status.Terminal() })
}

// Cancel stops an active job. The job reads cancelled immediately; partial
// files are removed in the background once the execution stops or the grace
// period runs out. Cancelling a finished job does nothing.
func (s *Service) Cancel(id string) error {
	job, token, changed, err := s.markCancelled(id)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	settled := make(chan struct{})
	s.mu.Lock()
	s.settled[id] = settled
	s.mu.Unlock()

	stopped := s.runner.Stop(id, token)
	if !s.goBackground(func() { s.cleanupAfterCancel(job, stopped, settled) }) {
		s.mu.Lock()
		delete(s.settled, id)
		s.mu.Unlock()
		close(settled)
	}
	s.logger.Info("download cancelled",
		logging.String(logging.FieldJobID, id),
		logging.String(logging.FieldURL, job.SourceURL),
		logging.String(logging.FieldEventType, "download_cancelled"),
	)
	s.markFailed(job.SourceURL, CancelledReason)
	s.dropSampler(id)
	return nil
}

// CancelAll cancels every active job and returns how many it stopped.
func (s *Service) CancelAll() int {
	n := 0
	for _, job := range s.store.List() {
		if job.Status.Terminal() {
			continue
		}
		if err := s.Cancel(job.ID); err == nil {
			n++
		}
	}
	return n
}

// markCancelled moves a non-terminal job to cancelled and detaches its
// execution, returning the token that execution held.
func (s *Service) markCancelled(id string) (Job, uint64, bool, error) {
	var (
		snapshot Job
		token    uint64
		changed  bool
	)
	ok := s.store.Update(id, func(j *Job) {
		if j.Status.Terminal() {
			return
		}
		token = j.execution
		j.Status = StatusCancelled
		j.Speed = ""
		j.ETA = ""
		j.Phase = ""
		j.ErrorMessage = ""
		j.execution = 0
		changed = true
		snapshot = *j
	})
	if !ok {
		return Job{}, 0, false, &NotFoundError{ID: id}
	}
	return snapshot, token, changed, nil
}

func (s *Service) cleanupAfterCancel(job Job, stopped <-chan struct{}, settled chan struct{}) {
	defer func() {
		close(settled)
		s.mu.Lock()
		if s.settled[job.ID] == settled {
			delete(s.settled, job.ID)
		}
		s.mu.Unlock()
	}()

	timer := time.NewTimer(s.grace)
	defer timer.Stop()
	select {
	case <-stopped:
	case <-timer.C:
		logging.WarnWithContext(s.logger, "execution still running after grace period", "cancel_grace_expired",
			logging.String(logging.FieldJobID, job.ID),
			logging.Duration("grace", s.grace),
			logging.String(logging.FieldErrorHint, "check for a hung yt-dlp process"),
			logging.String(logging.FieldImpact, "partial files removed while the process may still write"),
		)
	}

	current, err := s.store.Get(job.ID)
	if err != nil || current.Status != StatusCancelled || current.PartialBase == "" {
		return
	}
	removed, _ := s.sink.Remove(sink.TargetFor(current.DestinationDir, current.PartialBase), "")
	if len(removed) > 0 {
		s.logger.Debug("cancelled download cleaned up",
			logging.String(logging.FieldJobID, job.ID),
			logging.Int("removed", len(removed)),
		)
	}
}

// Retry restarts a failed or cancelled job under the same id and returns its
// new retry count.
func (s *Service) Retry(ctx context.Context, id string) (int, error) {
	job, err := s.store.Get(id)
	if err != nil {
		return 0, err
	}
	if !job.Status.Retryable() {
		return 0, &InvalidStateError{ID: id, Status: job.Status, Op: "retry"}
	}
	if err := s.awaitStopped(ctx, job); err != nil {
		return 0, err
	}

	var (
		count    int
		rejected *InvalidStateError
	)
	ok := s.store.Update(id, func(j *Job) {
		if !j.Status.Retryable() || j.execution != 0 {
			rejected = &InvalidStateError{ID: id, Status: j.Status, Op: "retry"}
			return
		}
		j.Status = StatusQueued
		j.Percent = 0
		j.Speed = ""
		j.ETA = ""
		j.ErrorMessage = ""
		j.OutputPath = ""
		j.Phase = ""
		j.PartialBase = ""
		j.StartedAt = time.Time{}
		j.RetryCount++
		count = j.RetryCount
	})
	if !ok {
		return 0, &NotFoundError{ID: id}
	}
	if rejected != nil {
		return 0, rejected
	}

	s.recordAttempt(ctx, job)
	if err := s.runner.Start(id); err != nil {
		return 0, err
	}
	s.logger.Info("download retried",
		logging.String(logging.FieldJobID, id),
		logging.String(logging.FieldURL, job.SourceURL),
		logging.Int("retry_count", count),
		logging.String(logging.FieldEventType, "download_retried"),
	)
	return count, nil
}

// awaitStopped waits for a pending cancel cleanup and the previous execution,
// each bounded by the grace period.
func (s *Service) awaitStopped(ctx context.Context, job Job) error {
	s.mu.Lock()
	settled := s.settled[job.ID]
	s.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, 2*s.grace)
	defer cancel()
	if settled != nil {
		select {
		case <-settled:
		case <-waitCtx.Done():
		}
	}
	select {
	case <-s.runner.Done(job.ID):
	case <-waitCtx.Done():
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.runner.Alive(job.ID) {
		return &InvalidStateError{ID: job.ID, Status: job.Status, Op: "retry", Reason: "previous execution still stopping"}
	}
	return nil
}

// Delete cancels the job if it is active, waits up to the grace period for
// its execution to stop, removes it and then deletes its files. File cleanup
// is best effort and reported in the result.
func (s *Service) Delete(ctx context.Context, id string) (DeleteResult, error) {
	job, token, changed, err := s.markCancelled(id)
	if err != nil {
		return DeleteResult{}, err
	}
	stopped := s.runner.Done(id)
	if changed {
		stopped = s.runner.Stop(id, token)
		s.markFailed(job.SourceURL, CancelledReason)
	}
	timer := time.NewTimer(s.grace)
	select {
	case <-stopped:
	case <-timer.C:
	case <-ctx.Done():
	}
	timer.Stop()

	removedJob, err := s.store.Delete(id)
	if err != nil {
		return DeleteResult{}, err
	}
	s.dropSampler(id)

	result := DeleteResult{Job: removedJob}
	target := sink.TargetFor(removedJob.DestinationDir, removedJob.PartialBase)
	removed, cleanupErr := s.sink.Remove(target, removedJob.OutputPath)
	result.RemovedFiles = removed
	if cleanupErr != nil {
		result.CleanupErr = &FilesystemError{Op: "remove files of", Path: removedJob.DestinationDir, Err: cleanupErr}
	}
	s.logger.Info("download deleted",
		logging.String(logging.FieldJobID, id),
		logging.Int("removed_files", len(removed)),
		logging.String(logging.FieldEventType, "download_deleted"),
	)
	return result, nil
}

// Clear forgets a completed job without touching its file.
func (s *Service) Clear(id string) error {
	job, err := s.store.Get(id)
	if err != nil {
		return err
	}
	if job.Status != StatusCompleted {
		return &InvalidStateError{ID: id, Status: job.Status, Op: "clear"}
	}
	if _, ok := s.store.DeleteIf(id, func(j Job) bool { return j.Status == StatusCompleted }); !ok {
		return &NotFoundError{ID: id}
	}
	return nil
}

// Rename changes a job's display title.
func (s *Service) Rename(id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if !s.store.Update(id, func(j *Job) { j.DisplayTitle = title }) {
		return &NotFoundError{ID: id}
	}
	return nil
}

// Destination returns the directory new downloads go to.
func (s *Service) Destination() string {
	s.destMu.RLock()
	defer s.destMu.RUnlock()
	return s.destination
}

// SetDestination switches the download directory for new jobs and persists
// the choice to the settings file.
func (s *Service) SetDestination(dir string) (string, error) {
	expanded, err := config.ExpandPath(strings.TrimSpace(dir))
	if err != nil {
		return "", &ValidationError{Field: "path", Message: err.Error()}
	}
	if err := preflight.DirectoryError(expanded); err != nil {
		return "", &FilesystemError{Op: "use destination", Path: expanded, Err: err}
	}

	s.destMu.Lock()
	defer s.destMu.Unlock()
	if err := s.cfg.PersistDownloadDir(expanded); err != nil {
		return "", &FilesystemError{Op: "persist destination", Path: s.cfg.SettingsPath(), Err: err}
	}
	s.destination = expanded
	s.logger.Info("download folder changed",
		logging.String("path", expanded),
		logging.String(logging.FieldEventType, "destination_changed"),
	)
	return expanded, nil
}

// OpenDestination reveals the download directory in the file manager.
func (s *Service) OpenDestination() error {
	if s.opener == nil {
		return errors.New("opening folders is not supported here")
	}
	dir := s.Destination()
	if err := s.opener.Open(dir); err != nil {
		return &FilesystemError{Op: "open folder", Path: dir, Err: err}
	}
	return nil
}

// FindFailedForFile looks for the failed download a leftover file belongs to.
// Jobs still in memory come first, then the ledger.
func (s *Service) FindFailedForFile(ctx context.Context, filename string) (FailedMatch, bool, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" || filename != filepath.Base(filename) {
		return FailedMatch{}, false, &ValidationError{Field: "filename", Message: "must be a plain file name"}
	}

	var candidates []matcher.Candidate
	seen := make(map[string]struct{})
	for _, job := range s.store.List() {
		if !job.Status.Retryable() {
			continue
		}
		candidates = append(candidates, matcher.Candidate{ID: job.ID, URL: job.SourceURL, Title: job.DisplayTitle})
		seen[job.SourceURL] = struct{}{}
	}

	if s.history != nil {
		if rec, err := s.history.LookupFile(ctx, completedName(filename)); err == nil && rec != nil {
			return FailedMatch{URL: rec.URL, Title: rec.Title, Similarity: 1}, true, nil
		}
		entries, err := s.history.Failed(ctx)
		if err != nil {
			return FailedMatch{}, false, fmt.Errorf("load failed downloads: %w", err)
		}
		for _, entry := range entries {
			if _, dup := seen[entry.URL]; dup {
				continue
			}
			candidates = append(candidates, matcher.Candidate{URL: entry.URL, Title: entry.Title})
		}
	}

	best, ok := s.matcher.Best(filename, candidates)
	if !ok {
		return FailedMatch{}, false, nil
	}
	return FailedMatch{
		JobID:      best.ID,
		URL:        best.URL,
		Title:      best.Title,
		Similarity: best.Score,
	}, true, nil
}

// completedName strips a partial suffix so "Clip.mp4.part" looks up "Clip.mp4".
func completedName(filename string) string {
	for matcher.HasPartialSuffix(filename) {
		ext := filepath.Ext(filename)
		if ext == "" || ext == filename {
			break
		}
		filename = strings.TrimSuffix(filename, ext)
	}
	return filename
}

// DeletePartial removes one partial file from the download directory.
func (s *Service) DeletePartial(filename string) (string, error) {
	dir := s.Destination()
	path, err := s.sink.DeletePartial(dir, filename)
	switch {
	case err == nil:
		return path, nil
	case errors.Is(err, sink.ErrInvalidName), errors.Is(err, sink.ErrNotPartial):
		return "", &ValidationError{Field: "filename", Message: err.Error()}
	case errors.Is(err, fs.ErrNotExist):
		return "", &NotFoundError{Resource: "file", ID: filename}
	default:
		return "", &FilesystemError{Op: "remove partial file", Path: filepath.Join(dir, filename), Err: err}
	}
}

// Shutdown cancels every active job and waits for executions and background
// work, bounded by ctx.
func (s *Service) Shutdown(ctx context.Context) error {
	if n := s.CancelAll(); n > 0 {
		s.logger.Info("cancelled active downloads for shutdown", logging.Int("count", n))
	}
	err := s.runner.Shutdown(ctx)

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	waited := make(chan struct{})
	go func() {
		s.bg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	s.bgCancel()
	return err
}

// goBackground runs fn tracked by Shutdown. It reports false once shutdown
// has started.
func (s *Service) goBackground(fn func()) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.bg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.bg.Done()
		fn()
	}()
	return true
}

func (s *Service) recordAttempt(ctx context.Context, job Job) int {
	if s.history == nil {
		return 0
	}
	previous, err := s.history.RecordAttempt(ctx, job.ID, job.SourceURL, job.DisplayTitle)
	if err != nil {
		s.warnHistory("record attempt", job.SourceURL, err)
		return 0
	}
	return previous
}

func (s *Service) markFailed(sourceURL, reason string) {
	if s.history == nil {
		return
	}
	if err := s.history.MarkFailed(s.bgCtx, sourceURL, reason); err != nil {
		s.warnHistory("mark failed", sourceURL, err)
	}
}

func (s *Service) warnHistory(op, sourceURL string, err error) {
	logging.WarnWithContext(s.logger, "history update failed", "history_write_failed",
		logging.String("op", op),
		logging.String(logging.FieldURL, sourceURL),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the history database path and disk space"),
		logging.String(logging.FieldImpact, "download history is incomplete"),
	)
}

func (s *Service) notify(event notifications.Event, payload notifications.Payload) {
	if s.notifier == nil {
		return
	}
	s.goBackground(func() {
		if err := s.notifier.Publish(s.bgCtx, event, payload); err != nil {
			logging.WarnWithContext(s.logger, "notification failed", "notification_failed",
				logging.String("event", string(event)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
				logging.String(logging.FieldImpact, "no push notification delivered"),
			)
		}
	})
}

func (s *Service) sampler(id string) *logging.ProgressSampler {
	s.mu.Lock()
	defer s.mu.Unlock()
	sampler := s.samplers[id]
	if sampler == nil {
		sampler = logging.NewProgressSampler(5)
		s.samplers[id] = sampler
	}
	return sampler
}

func (s *Service) dropSampler(id string) {
	s.mu.Lock()
	delete(s.samplers, id)
	s.mu.Unlock()
}

// serviceObserver reacts to execution milestones: ledger updates, progress
// logging, notifications and the post-download cleanups.
type serviceObserver struct {
	s *Service
}

func (o serviceObserver) JobStarted(job Job) {
	s := o.s
	s.sampler(job.ID).Reset()
	if s.history != nil {
		if err := s.history.MarkDownloading(s.bgCtx, job.SourceURL); err != nil {
			s.warnHistory("mark downloading", job.SourceURL, err)
		}
	}
}

func (o serviceObserver) JobProgress(job Job) {
	s := o.s
	if !s.sampler(job.ID).ShouldLog(job.Percent, job.Phase) {
		return
	}
	s.logger.Info("download progress",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldStatus, string(job.Status)),
		logging.String(logging.FieldPhase, job.Phase),
		logging.Float64("percent", job.Percent),
		logging.String("speed", job.Speed),
		logging.String("eta", job.ETA),
	)
}

func (o serviceObserver) JobFinished(job Job) {
	s := o.s
	s.dropSampler(job.ID)
	switch job.Status {
	case StatusCompleted:
		s.finishCompleted(job)
	case StatusError:
		s.markFailed(job.SourceURL, job.ErrorMessage)
		s.notify(notifications.EventDownloadFailed, notifications.Payload{
			"title": job.DisplayTitle,
			"url":   job.SourceURL,
			"error": job.ErrorMessage,
		})
	}
}

func (s *Service) finishCompleted(job Job) {
	var filename string
	if job.OutputPath != "" {
		filename = filepath.Base(job.OutputPath)
	}
	if s.history != nil {
		if err := s.history.MarkCompleted(s.bgCtx, job.SourceURL, job.OutputPath); err != nil {
			s.warnHistory("mark completed", job.SourceURL, err)
		}
		if filename != "" {
			if err := s.history.RecordFile(s.bgCtx, filename, job.SourceURL, job.DisplayTitle); err != nil {
				s.warnHistory("record file", job.SourceURL, err)
			}
		}
	}
	s.sink.SweepMatchingPartials(job.DestinationDir, job.DisplayTitle)
	s.notify(notifications.EventDownloadCompleted, notifications.Payload{
		"title": job.DisplayTitle,
		"url":   job.SourceURL,
		"file":  filename,
	})
	if job.OpenFolder && s.opener != nil {
		dir := job.DestinationDir
		s.goBackground(func() {
			if err := s.opener.Open(dir); err != nil {
				logging.WarnWithContext(s.logger, "could not open download folder", "open_folder_failed",
					logging.String("path", dir),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "install xdg-open or disable openFolder"),
					logging.String(logging.FieldImpact, "folder not shown"),
				)
			}
		})
	}
}
