package daemonrun

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"vidsnatch/internal/api"
	"vidsnatch/internal/daemon"
	"vidsnatch/internal/history"
	"vidsnatch/internal/logging"
	"vidsnatch/internal/testsupport"
)

func freeBind(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()
	return addr
}

func TestRunFailsPreflightWithoutEngine(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Engine.Binary = filepath.Join(t.TempDir(), "missing-yt-dlp")

	err := Run(context.Background(), cfg, Options{LogLevel: "error"})
	if err == nil || !strings.Contains(err.Error(), "preflight failed") {
		t.Fatalf("expected preflight failure, got %v", err)
	}
	if _, statErr := os.Stat(cfg.PIDPath()); !os.IsNotExist(statErr) {
		t.Fatalf("pid file must not be written on preflight failure: %v", statErr)
	}
}

func TestRunServesUntilStopRequested(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("yt-dlp"))
	cfg.Engine.Binary = "yt-dlp"
	cfg.Paths.APIBind = freeBind(t)

	done := make(chan error, 1)
	go func() {
		done <- Run(context.Background(), cfg, Options{LogLevel: "error", Version: "test"})
	}()

	client, err := api.NewClient(cfg.Paths.APIBind)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	var status api.StatusResponse
	deadline := time.Now().Add(10 * time.Second)
	for {
		status, err = client.Status(context.Background())
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if status.Version != "test" || status.DownloadDir != cfg.Paths.DownloadDir {
		t.Fatalf("status = %+v", status)
	}

	data, err := os.ReadFile(cfg.PIDPath())
	if err != nil || strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("pid file = %q, %v", data, err)
	}
	if _, err := os.Stat(cfg.HistoryPath()); err != nil {
		t.Fatalf("history database missing: %v", err)
	}

	if err := client.StopServer(context.Background()); err != nil {
		t.Fatalf("StopServer: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after stop request")
	}
	if _, err := os.Stat(cfg.PIDPath()); !os.IsNotExist(err) {
		t.Fatalf("pid file left behind: %v", err)
	}
}

func TestRunRejectsSecondInstanceWithoutSideEffects(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("yt-dlp"))
	cfg.Engine.Binary = "yt-dlp"
	cfg.Paths.APIBind = freeBind(t)

	done := make(chan error, 1)
	go func() {
		done <- Run(context.Background(), cfg, Options{LogLevel: "error", Version: "test"})
	}()
	client, err := api.NewClient(cfg.Paths.APIBind)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	deadline := time.Now().Add(10 * time.Second)
	for {
		if _, err = client.Status(context.Background()); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	defer func() {
		_ = client.StopServer(context.Background())
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Error("first instance did not stop")
		}
	}()

	const url = "https://example.com/watch?v=live"
	ledger, err := history.Open(cfg.HistoryPath())
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer ledger.Close()
	ctx := context.Background()
	if _, err := ledger.RecordAttempt(ctx, "job-live", url, "Live"); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}
	if err := ledger.MarkDownloading(ctx, url); err != nil {
		t.Fatalf("MarkDownloading: %v", err)
	}

	second := *cfg
	second.Paths.APIBind = freeBind(t)
	err = Run(context.Background(), &second, Options{LogLevel: "error"})
	if !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("second Run = %v, want ErrAlreadyRunning", err)
	}

	data, err := os.ReadFile(cfg.PIDPath())
	if err != nil || strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("pid file of the running server = %q, %v", data, err)
	}
	entry, err := ledger.FindByURL(ctx, url)
	if err != nil || entry == nil {
		t.Fatalf("FindByURL = %+v, %v", entry, err)
	}
	if entry.Status != history.StatusDownloading || entry.LastError != "" {
		t.Fatalf("in-flight row rewritten: status=%s last_error=%q", entry.Status, entry.LastError)
	}
	if _, err := client.Status(ctx); err != nil {
		t.Fatalf("first instance stopped answering: %v", err)
	}
}

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "vidsnatch-1.log")
	second := filepath.Join(dir, "vidsnatch-2.log")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, logging.LogFileName))
	if err != nil || string(data) != "vidsnatch-2.log" {
		t.Fatalf("pointer content = %q, %v", data, err)
	}
	if err := ensureCurrentLogPointer("", second); err != nil {
		t.Fatalf("empty dir should be ignored: %v", err)
	}
}
