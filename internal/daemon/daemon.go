package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"vidsnatch/internal/config"
	"vidsnatch/internal/jobs"
	"vidsnatch/internal/logging"
)

// FolderPicker asks the desktop user for a directory.
type FolderPicker interface {
	Choose(ctx context.Context, start string) (string, error)
}

// Options carries optional daemon collaborators.
type Options struct {
	Version string
	Picker  FolderPicker
	// Closers are released by Close after the job service has shut down.
	Closers []io.Closer
	// Lock is an instance lock the caller already holds. When nil, Start
	// acquires one at the configured lock path.
	Lock *flock.Flock
}

// ErrAlreadyRunning reports that another server holds the instance lock.
var ErrAlreadyRunning = errors.New("another vidsnatch server instance is already running")

// Daemon owns the job service for the lifetime of the process and enforces
// single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	jobs    *jobs.Service
	picker  FolderPicker
	version string
	closers []io.Closer

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running     atomic.Bool
	ctx         context.Context
	cancel      context.CancelFunc
	monitorDone chan struct{}

	stopOnce sync.Once
	stopCh   chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running         bool
	ActiveDownloads int
	DownloadDir     string
	Version         string
	LockFilePath    string
	Address         string
}

// New constructs a daemon around an already wired job service.
func New(cfg *config.Config, svc *jobs.Service, logger *slog.Logger, opts Options) (*Daemon, error) {
	if cfg == nil || svc == nil {
		return nil, errors.New("daemon requires config and job service")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}
	lockPath := cfg.LockPath()
	lock := opts.Lock
	if lock == nil {
		lock = flock.New(lockPath)
	} else {
		lockPath = lock.Path()
	}
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		jobs:     svc,
		picker:   opts.Picker,
		version:  version,
		closers:  opts.Closers,
		lockPath: lockPath,
		lock:     lock,
		stopCh:   make(chan struct{}),
	}
	d.api = newAPIServer(cfg.Paths.APIBind, d, logger)
	return d, nil
}

// Start acquires the instance lock, starts the HTTP server and the job
// monitor.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if !d.lock.Locked() {
		if err := tryLock(d.lock); err != nil {
			return err
		}
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.api.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	d.monitorDone = make(chan struct{})
	go func(ctx context.Context, done chan struct{}) {
		defer close(done)
		d.jobs.RunMonitor(ctx, d.cfg.MonitorInterval())
	}(d.ctx, d.monitorDone)

	d.running.Store(true)
	d.logger.Info("vidsnatch server started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.addr()),
		logging.String("download_dir", d.jobs.Destination()),
	)
	return nil
}

// AcquireLock takes the single-instance lock at path without blocking. It
// fails when another server already holds it.
func AcquireLock(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	if err := tryLock(lock); err != nil {
		return nil, err
	}
	return lock, nil
}

func tryLock(lock *flock.Flock) error {
	if err := os.MkdirAll(filepath.Dir(lock.Path()), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	return nil
}

// Stop shuts the HTTP server down, cancels every active download and
// releases the lock. ctx bounds the wait for executions to wind down.
func (d *Daemon) Stop(ctx context.Context) {
	if !d.running.Load() {
		return
	}

	// Request contexts derive from d.ctx, so cancelling first releases
	// long-polling clients before the server drains.
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if d.monitorDone != nil {
		<-d.monitorDone
		d.monitorDone = nil
	}
	if err := d.jobs.Shutdown(ctx); err != nil {
		logging.WarnWithContext(d.logger, "job shutdown incomplete", "shutdown_incomplete",
			logging.Error(err),
			logging.String(logging.FieldImpact, "some downloads may leave partial files behind"),
			logging.String(logging.FieldErrorHint, "delete leftover partial files from the download folder"),
		)
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release server lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("vidsnatch server stopped")
}

// Close stops the daemon and releases the registered closers.
func (d *Daemon) Close(ctx context.Context) error {
	d.Stop(ctx)
	var errs []error
	for _, c := range d.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// RequestStop asks the owner of the daemon to shut it down. It is safe to
// call more than once.
func (d *Daemon) RequestStop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
	})
}

// StopRequested is closed once a client asked the server to stop.
func (d *Daemon) StopRequested() <-chan struct{} {
	return d.stopCh
}

// Jobs returns the job service.
func (d *Daemon) Jobs() *jobs.Service {
	return d.jobs
}

// Addr returns the address the HTTP server listens on, or "" before Start.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:         d.running.Load(),
		ActiveDownloads: d.jobs.ActiveCount(),
		DownloadDir:     d.jobs.Destination(),
		Version:         d.version,
		LockFilePath:    d.lockPath,
		Address:         d.api.addr(),
	}
}
