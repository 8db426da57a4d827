package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"vidsnatch/internal/config"
	"vidsnatch/internal/logging"
)

var commandContext = exec.CommandContext

// Options configures the yt-dlp invocation.
type Options struct {
	Binary            string
	Format            string
	SocketTimeout     int
	Retries           int
	FragmentRetries   int
	RestrictFilenames bool
	NoPlaylist        bool
	MergeFormat       string
	UserAgent         string
	ExtraArgs         []string
	// Grace bounds how long a cancelled process may take to exit after the
	// interrupt before it is killed.
	Grace time.Duration
}

// OptionsFromConfig maps the [engine] and [jobs] configuration sections.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{Binary: "yt-dlp", NoPlaylist: true, Grace: 5 * time.Second}
	}
	return Options{
		Binary:            cfg.Engine.Binary,
		Format:            cfg.Engine.Format,
		SocketTimeout:     cfg.Engine.SocketTimeout,
		Retries:           cfg.Engine.Retries,
		FragmentRetries:   cfg.Engine.FragmentRetry,
		RestrictFilenames: cfg.Engine.RestrictNames,
		NoPlaylist:        cfg.Engine.NoPlaylist,
		MergeFormat:       cfg.Engine.MergeContainer,
		UserAgent:         cfg.Engine.UserAgent,
		ExtraArgs:         append([]string(nil), cfg.Engine.ExtraArgs...),
		Grace:             cfg.CancelGrace(),
	}
}

// YTDLP runs yt-dlp as a subprocess per execution.
type YTDLP struct {
	opts   Options
	logger *slog.Logger
}

// NewYTDLP constructs a yt-dlp engine.
func NewYTDLP(opts Options, logger *slog.Logger) *YTDLP {
	if strings.TrimSpace(opts.Binary) == "" {
		opts.Binary = "yt-dlp"
	}
	if opts.Grace <= 0 {
		opts.Grace = 5 * time.Second
	}
	return &YTDLP{opts: opts, logger: logging.NewComponentLogger(logger, "engine")}
}

// Args builds the yt-dlp argument list for req.
func (y *YTDLP) Args(req Request) []string {
	args := []string{
		"--newline",
		"--print", "after_move:" + PathMarker + "%(filepath)s",
		"--no-quiet",
		"--progress",
		"-o", req.OutputTemplate,
	}
	if y.opts.NoPlaylist {
		args = append(args, "--no-playlist")
	}
	if y.opts.Format != "" {
		args = append(args, "-f", y.opts.Format)
	}
	if y.opts.SocketTimeout > 0 {
		args = append(args, "--socket-timeout", strconv.Itoa(y.opts.SocketTimeout))
	}
	if y.opts.Retries > 0 {
		args = append(args, "--retries", strconv.Itoa(y.opts.Retries))
	}
	if y.opts.FragmentRetries > 0 {
		args = append(args, "--fragment-retries", strconv.Itoa(y.opts.FragmentRetries))
	}
	if y.opts.RestrictFilenames {
		args = append(args, "--restrict-filenames")
	}
	if y.opts.MergeFormat != "" {
		args = append(args, "--merge-output-format", y.opts.MergeFormat)
	}
	if y.opts.UserAgent != "" {
		args = append(args, "--user-agent", y.opts.UserAgent)
	}
	args = append(args, y.opts.ExtraArgs...)
	return append(args, "--", req.URL)
}

// Extract starts yt-dlp for req.
func (y *YTDLP) Extract(ctx context.Context, req Request, cb Callbacks) (Handle, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, errors.New("extract: url is required")
	}
	if strings.TrimSpace(req.OutputTemplate) == "" {
		return nil, errors.New("extract: output template is required")
	}

	execCtx, cancel := context.WithCancel(ctx)
	cmd := commandContext(execCtx, y.opts.Binary, y.Args(req)...) //nolint:gosec
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = y.opts.Grace

	// Both streams feed one pipe; exec serializes the writes, and Wait
	// returns only after the copy finishes or WaitDelay expires.
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		cancel()
		_ = pw.Close()
		return nil, fmt.Errorf("start %s: %w", y.opts.Binary, err)
	}

	h := &processHandle{cancel: cancel, done: make(chan struct{})}
	y.logger.Debug("yt-dlp started",
		logging.String(logging.FieldURL, req.URL),
		logging.Int("pid", cmd.Process.Pid),
	)

	waitResult := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		_ = pw.Close()
		waitResult <- err
	}()

	go func() {
		defer close(h.done)
		defer cancel()

		var tracker outputTracker
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		scanner.Split(splitByNewlineOrCR)
		for scanner.Scan() {
			line := scanner.Text()
			tracker.observe(line)
			if p, ok := ParseProgress(line); ok && cb.OnProgress != nil {
				cb.OnProgress(p)
			}
		}
		// Keep draining so the copy goroutine never blocks on an oversized line.
		_, _ = io.Copy(io.Discard, pr)
		waitErr := <-waitResult

		switch {
		case execCtx.Err() != nil:
			y.logger.Debug("yt-dlp stopped after cancel", logging.String(logging.FieldURL, req.URL))
		case waitErr != nil:
			msg := tracker.lastError
			if msg == "" {
				msg = fmt.Sprintf("yt-dlp exited: %v", waitErr)
			}
			if cb.OnError != nil {
				cb.OnError(msg)
			}
		case tracker.outputPath() != "":
			if cb.OnComplete != nil {
				cb.OnComplete(tracker.outputPath())
			}
		case tracker.lastError != "":
			if cb.OnError != nil {
				cb.OnError(tracker.lastError)
			}
		}
	}()

	return h, nil
}

// splitByNewlineOrCR treats carriage returns as line breaks so in-place
// progress bars arrive as separate lines.
func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// processHandle cancels one yt-dlp process. Cancellation interrupts the
// process and suppresses the final callback.
type processHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *processHandle) Cancel() {
	h.cancel()
}

func (h *processHandle) Done() <-chan struct{} {
	return h.done
}
