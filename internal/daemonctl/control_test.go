package daemonctl_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"vidsnatch/internal/api"
	"vidsnatch/internal/daemonctl"
	"vidsnatch/internal/testsupport"
)

func closedClient(t *testing.T) *api.Client {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()
	client, err := api.NewClient(addr)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestBuildDependencySummary(t *testing.T) {
	tests := []struct {
		name     string
		deps     []daemonctl.DependencyStatus
		severity string
		detail   string
	}{
		{"none", nil, "info", "No dependency checks configured"},
		{"all available", []daemonctl.DependencyStatus{{Available: true}, {Available: true, Optional: true}}, "ok", "2/2 available"},
		{"optional missing", []daemonctl.DependencyStatus{{Available: true}, {Optional: true}}, "warn", "1/2 available (missing: 0 required, 1 optional)"},
		{"required missing", []daemonctl.DependencyStatus{{}, {Optional: true}}, "error", "0/2 available (missing: 1 required, 1 optional)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := daemonctl.BuildDependencySummary(tt.deps)
			if got.Severity != tt.severity || got.Detail != tt.detail {
				t.Fatalf("summary = %+v", got)
			}
		})
	}
}

func TestStopAndTerminateNotRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := daemonctl.StopAndTerminate(context.Background(), closedClient(t), cfg, time.Second)
	if !errors.Is(err, daemonctl.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestWaitForShutdownReturnsWhenUnavailable(t *testing.T) {
	if err := daemonctl.WaitForShutdown(context.Background(), closedClient(t), time.Second); err != nil {
		t.Fatalf("WaitForShutdown: %v", err)
	}
}

func TestWaitForServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"running","activeDownloads":2}`))
	}))
	defer srv.Close()
	client, _ := api.NewClient(srv.URL)

	status, err := daemonctl.WaitForServer(context.Background(), client, time.Second)
	if err != nil || status.ActiveDownloads != 2 {
		t.Fatalf("WaitForServer = %+v, %v", status, err)
	}

	res, err := daemonctl.EnsureStarted(context.Background(), client, "/nonexistent", daemonctl.LaunchOptions{}, time.Second)
	if err != nil || res.State != daemonctl.StartStateAlreadyRunning {
		t.Fatalf("EnsureStarted = %+v, %v", res, err)
	}
}

func TestForceKillProcessGuards(t *testing.T) {
	dir := t.TempDir()
	pidPath := filepath.Join(dir, "vidsnatch.pid")

	if _, err := daemonctl.ForceKillProcess(pidPath, ""); err == nil {
		t.Fatal("expected error for missing pid file")
	}

	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
	if _, err := daemonctl.ForceKillProcess(pidPath, ""); err == nil {
		t.Fatal("expected refusal to kill the current process")
	}
	if pid, err := daemonctl.ReadPID(pidPath); err != nil || pid != os.Getpid() {
		t.Fatalf("ReadPID = %d, %v", pid, err)
	}
}

func TestBuildStatusSnapshotOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("yt-dlp"))
	cfg.Engine.Binary = "yt-dlp"

	snap, err := daemonctl.BuildStatusSnapshot(context.Background(), closedClient(t), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snap.Running {
		t.Fatal("expected offline snapshot")
	}
	if !snap.DownloadDir.Passed {
		t.Fatalf("download dir check = %+v", snap.DownloadDir)
	}
	if len(snap.Dependencies) == 0 || !snap.Dependencies[0].Available || snap.Dependencies[0].Severity != "ok" {
		t.Fatalf("dependencies = %+v", snap.Dependencies)
	}
}
