package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"vidsnatch/internal/api"
	"vidsnatch/internal/config"
	"vidsnatch/internal/preflight"
)

// LaunchOptions controls server process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures server start orchestration state.
type StartResult struct {
	State  StartState
	Status api.StatusResponse
}

// ErrNotRunning indicates no server answered.
var ErrNotRunning = errors.New("vidsnatch server not running")

// Launch starts a detached `vidsnatch serve` process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"serve"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch server: %w", err)
	}
	return proc.Process.Release()
}

// WaitForServer polls the status endpoint until the server answers.
func WaitForServer(ctx context.Context, client *api.Client, timeout time.Duration) (api.StatusResponse, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		status, err := client.Status(ctx)
		if err == nil {
			return status, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for server")
	}
	return api.StatusResponse{}, fmt.Errorf("server failed to start: %w", lastErr)
}

// EnsureStarted launches the server unless one already answers.
func EnsureStarted(ctx context.Context, client *api.Client, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if status, err := client.Status(ctx); err == nil {
		return StartResult{State: StartStateAlreadyRunning, Status: status}, nil
	} else if !api.IsUnavailable(err) {
		return StartResult{}, err
	}
	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	status, err := WaitForServer(ctx, client, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, Status: status}, nil
}

// WaitForShutdown waits until the server stops answering.
func WaitForShutdown(ctx context.Context, client *api.Client, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		_, err := client.Status(ctx)
		if api.IsUnavailable(err) {
			return nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("server still running")
		}
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for shutdown")
	}
	return fmt.Errorf("server did not stop: %w", lastErr)
}

// ReadPID returns the process id recorded by a running server.
func ReadPID(pidPath string) (int, error) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file %q", pidPath)
	}
	return pid, nil
}

// ForceKillProcess sends SIGKILL to the server process and cleans pid/lock files.
func ForceKillProcess(pidPath, lockPath string) (int, error) {
	pid, err := ReadPID(pidPath)
	if err != nil {
		return 0, fmt.Errorf("unable to determine server pid (pid file: %s): %w", pidPath, err)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate server process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill server process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, nil
}

// StopResult captures server stop/termination outcome.
type StopResult struct {
	StopAcknowledged bool
	ForcedKill       bool
	PID              int
}

// StopAndTerminate requests a graceful stop and force-kills the process if it
// still answers after gracePeriod.
func StopAndTerminate(ctx context.Context, client *api.Client, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	if err := client.StopServer(ctx); err != nil {
		if api.IsUnavailable(err) {
			return StopResult{}, ErrNotRunning
		}
		return StopResult{}, err
	}
	result := StopResult{StopAcknowledged: true}
	if err := WaitForShutdown(ctx, client, gracePeriod); err == nil {
		return result, nil
	}
	if cfg == nil {
		return result, fmt.Errorf("server still running and no configuration to locate its pid")
	}
	pid, err := ForceKillProcess(cfg.PIDPath(), cfg.LockPath())
	if err != nil {
		return result, fmt.Errorf("failed to stop server process: %w", err)
	}
	result.ForcedKill = true
	result.PID = pid
	return result, nil
}

// DependencyStatus describes one external binary for status output.
type DependencyStatus struct {
	Name      string
	Command   string
	Optional  bool
	Available bool
	Detail    string
	Severity  string
}

// DependencySummary aggregates dependency readiness.
type DependencySummary struct {
	Total           int
	Available       int
	MissingRequired int
	MissingOptional int
	Severity        string
	Detail          string
}

// StatusSnapshot combines the live server status with local checks.
type StatusSnapshot struct {
	Running           bool
	Server            api.StatusResponse
	Dependencies      []DependencyStatus
	DependencySummary DependencySummary
	DownloadDir       preflight.Result
}

// BuildStatusSnapshot collects server status and applies offline fallbacks.
func BuildStatusSnapshot(ctx context.Context, client *api.Client, cfg *config.Config) (StatusSnapshot, error) {
	if cfg == nil {
		return StatusSnapshot{}, errors.New("configuration not available")
	}
	var snap StatusSnapshot
	if client != nil {
		if status, err := client.Status(ctx); err == nil {
			snap.Running = true
			snap.Server = status
		}
	}
	dir := cfg.Paths.DownloadDir
	if snap.Running && snap.Server.DownloadDir != "" {
		dir = snap.Server.DownloadDir
	}
	snap.DownloadDir = preflight.CheckDirectoryAccess("Download directory", dir)
	snap.Dependencies = ResolveDependencies(ctx, cfg)
	snap.DependencySummary = BuildDependencySummary(snap.Dependencies)
	return snap, nil
}

// ResolveDependencies returns current dependency availability for status output.
func ResolveDependencies(ctx context.Context, cfg *config.Config) []DependencyStatus {
	if cfg == nil {
		return nil
	}
	checks := preflight.CheckSystemDeps(ctx, cfg)
	statuses := make([]DependencyStatus, 0, len(checks))
	for _, check := range checks {
		severity := "ok"
		if !check.Available {
			severity = "error"
			if check.Optional {
				severity = "warn"
			}
		}
		detail := check.Detail
		if check.Available && check.Version != "" {
			detail = check.Version
		}
		statuses = append(statuses, DependencyStatus{
			Name:      check.Name,
			Command:   check.Command,
			Optional:  check.Optional,
			Available: check.Available,
			Detail:    detail,
			Severity:  severity,
		})
	}
	return statuses
}

// BuildDependencySummary computes aggregate dependency readiness.
func BuildDependencySummary(deps []DependencyStatus) DependencySummary {
	if len(deps) == 0 {
		return DependencySummary{
			Severity: "info",
			Detail:   "No dependency checks configured",
		}
	}

	missingRequired := 0
	missingOptional := 0
	for _, dep := range deps {
		if dep.Available {
			continue
		}
		if dep.Optional {
			missingOptional++
		} else {
			missingRequired++
		}
	}

	missingCount := missingRequired + missingOptional
	available := len(deps) - missingCount
	severity := "ok"
	if missingRequired > 0 {
		severity = "error"
	} else if missingOptional > 0 {
		severity = "warn"
	}
	detail := fmt.Sprintf("%d/%d available (missing: %d required, %d optional)", available, len(deps), missingRequired, missingOptional)
	if missingCount == 0 {
		detail = fmt.Sprintf("%d/%d available", available, len(deps))
	}

	return DependencySummary{
		Total:           len(deps),
		Available:       available,
		MissingRequired: missingRequired,
		MissingOptional: missingOptional,
		Severity:        severity,
		Detail:          detail,
	}
}
