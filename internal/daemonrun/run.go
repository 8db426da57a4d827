package daemonrun

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"vidsnatch/internal/config"
	"vidsnatch/internal/daemon"
	"vidsnatch/internal/engine"
	"vidsnatch/internal/folder"
	"vidsnatch/internal/history"
	"vidsnatch/internal/jobs"
	"vidsnatch/internal/logging"
	"vidsnatch/internal/notifications"
	"vidsnatch/internal/preflight"
)

// Options configures server process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	Version     string
}

// Run starts the VidSnatch server and blocks until a signal arrives or a
// client requests a stop.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	// Lock before touching shared state; a rejected second instance must not
	// modify anything the running server owns.
	lock, err := daemon.AcquireLock(cfg.LockPath())
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("vidsnatch-%s.log", runID))
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logging.LogFileName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "vidsnatch-*.log", Exclude: []string{logPath}},
	)

	results := preflight.RunAll(signalCtx, cfg)
	logPreflight(logger, results)
	if failed := preflight.Failed(results); len(failed) > 0 {
		parts := make([]string, 0, len(failed))
		for _, r := range failed {
			parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
		return fmt.Errorf("preflight failed: %s", strings.Join(parts, "; "))
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	var (
		ledger  jobs.Ledger
		closers []io.Closer
	)
	if cfg.History.Enabled {
		store, err := openHistory(signalCtx, cfg, logger)
		if err != nil {
			logger.Error("open download history", logging.Error(err))
			return err
		}
		ledger = store
		closers = append(closers, store)
	}

	svc, err := jobs.NewService(cfg, jobs.Deps{
		Engine:   engine.NewYTDLP(engine.OptionsFromConfig(cfg), logger),
		History:  ledger,
		Notifier: notifications.NewService(cfg),
		Opener:   folder.NewOpener(),
		Logger:   logger,
	})
	if err != nil {
		closeAll(closers)
		return fmt.Errorf("create job service: %w", err)
	}

	d, err := daemon.New(cfg, svc, logger, daemon.Options{
		Version: opts.Version,
		Picker:  folder.NewPicker(),
		Closers: closers,
		Lock:    lock,
	})
	if err != nil {
		closeAll(closers)
		return fmt.Errorf("create daemon: %w", err)
	}
	shutdownTimeout := 2*cfg.CancelGrace() + 5*time.Second
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := d.Close(ctx); err != nil {
			logger.Warn("release resources", logging.Error(err))
		}
	}()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	select {
	case <-signalCtx.Done():
		logger.Info("vidsnatch server shutting down", logging.String("reason", "signal"))
	case <-d.StopRequested():
		logger.Info("vidsnatch server shutting down", logging.String("reason", "stop requested"))
	}
	return nil
}

// openHistory opens the ledger, fails downloads a previous process left
// running and prunes old completed entries.
func openHistory(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*history.Store, error) {
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return nil, err
	}
	if n, err := store.MarkInterrupted(ctx); err != nil {
		logger.Warn("mark interrupted downloads", logging.Error(err))
	} else if n > 0 {
		logger.Info("interrupted downloads marked failed",
			logging.Int64("count", n),
			logging.String(logging.FieldEventType, "history_interrupted"),
		)
	}
	if n, err := store.PruneCompleted(ctx, cfg.History.RetentionDays); err != nil {
		logger.Warn("prune download history", logging.Error(err))
	} else if n > 0 {
		logger.Info("download history pruned",
			logging.Int64("count", n),
			logging.Int("retention_days", cfg.History.RetentionDays),
		)
	}
	return store, nil
}

func logPreflight(logger *slog.Logger, results []preflight.Result) {
	for _, r := range results {
		if r.Passed {
			logger.Info("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
			)
			continue
		}
		impact := "optional feature unavailable"
		if r.Required {
			impact = "server cannot start"
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldImpact, impact),
			logging.String(logging.FieldErrorHint, "run `vidsnatch status` for dependency details"),
		)
	}
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logging.LogFileName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
