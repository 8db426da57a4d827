package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vidsnatch/internal/config"
	"vidsnatch/internal/daemonctl"
	"vidsnatch/internal/daemonrun"
)

const (
	startWaitTimeout = 10 * time.Second
	minStopGrace     = 5 * time.Second
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the VidSnatch HTTP server in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
				Version:     version,
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&development, "dev", false, "Enable development logging")
	return cmd
}

func newServerCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the VidSnatch server in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			exe, err := serverExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(cmd.Context(), client, exe, launchOptions(ctx, startLogLevel), startWaitTimeout)
			if err != nil {
				return err
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Server started on %s\n", client.BaseURL())
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Server already running on %s\n", client.BaseURL())
			}
			return nil
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Override logging.level for the launched server")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the VidSnatch server (cancels running downloads)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			cfg := ctx.configValue()
			result, err := daemonctl.StopAndTerminate(cmd.Context(), client, cfg, stopGrace(cfg))
			if errors.Is(err, daemonctl.ErrNotRunning) {
				fmt.Fprintln(stdout, "Server is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Server did not exit in time; killed pid %d\n", result.PID)
			}
			fmt.Fprintln(stdout, "Server stopped")
			return nil
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show server, dependency and download directory status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), client, ctx.configValue())
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, snap)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)
			for _, line := range statusLines(snap, client.BaseURL(), colorize) {
				fmt.Fprintln(stdout, line)
			}
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func statusLines(snap daemonctl.StatusSnapshot, address string, colorize bool) []string {
	var lines []string
	lines = append(lines, renderSectionHeader("Server", colorize)...)
	if snap.Running {
		lines = append(lines, renderStatusLine("VidSnatch", statusOK, fmt.Sprintf("Running on %s (version %s)", address, snap.Server.Version), colorize))
		kind := statusInfo
		if snap.Server.ActiveDownloads > 0 {
			kind = statusOK
		}
		lines = append(lines, renderStatusLine("Active downloads", kind, fmt.Sprintf("%d", snap.Server.ActiveDownloads), colorize))
	} else {
		lines = append(lines, renderStatusLine("VidSnatch", statusError, fmt.Sprintf("Not running (%s)", address), colorize))
	}
	lines = append(lines, "")

	lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
	lines = append(lines, dependencyLines(snap.Dependencies, snap.DependencySummary, colorize)...)
	lines = append(lines, "")

	lines = append(lines, renderSectionHeader("Download Directory", colorize)...)
	dirKind := statusOK
	if !snap.DownloadDir.Passed {
		dirKind = statusError
	}
	lines = append(lines, renderStatusLine("Destination", dirKind, snap.DownloadDir.Detail, colorize))
	return lines
}

func dependencyLines(deps []daemonctl.DependencyStatus, summary daemonctl.DependencySummary, colorize bool) []string {
	lines := make([]string, 0, len(deps)+2)
	lines = append(lines, renderStatusLine("Summary", statusKindFromSeverity(summary.Severity), summary.Detail, colorize))
	missing := make([]string, 0)
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Detail != "" {
				message = fmt.Sprintf("Ready (%s)", dep.Detail)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		lines = append(lines, renderStatusLine(dep.Name, statusKindFromSeverity(dep.Severity), detail, colorize))
		missing = append(missing, dep.Name)
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(missing, ", "), colorize))
	}
	return lines
}

func stopGrace(cfg *config.Config) time.Duration {
	if cfg == nil {
		return minStopGrace
	}
	return 2*cfg.CancelGrace() + minStopGrace
}

func serverExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func launchOptions(ctx *commandContext, logLevel string) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{
		ConfigPath: ctx.configPath(),
		LogLevel:   strings.TrimSpace(logLevel),
	}
}
