package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vidsnatch/internal/api"
	"vidsnatch/internal/config"
	"vidsnatch/internal/daemon"
	"vidsnatch/internal/engine/enginetest"
	"vidsnatch/internal/jobs"
	"vidsnatch/internal/logging"
	"vidsnatch/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	engine     *enginetest.Scripted
	daemon     *daemon.Daemon
	client     *api.Client
	addr       string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t, testsupport.WithHistoryDisabled())

	eng := enginetest.New()
	svc, err := jobs.NewService(cfg, jobs.Deps{Engine: eng, Logger: logging.NewNop()})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	d, err := daemon.New(cfg, svc, logging.NewNop(), daemon.Options{Version: "test"})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Close(ctx)
	})

	client, err := api.NewClient(d.Addr())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg, d.Addr())

	return &cliTestEnv{
		cfg:        cfg,
		engine:     eng,
		daemon:     d,
		client:     client,
		addr:       d.Addr(),
		configPath: configPath,
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := runCLI(t, args, e.configPath, e.addr)
	return out, err
}

// onlyJobID returns the id of the single download the server knows about.
func (e *cliTestEnv) onlyJobID(t *testing.T) string {
	t.Helper()
	list, err := e.client.Jobs(context.Background())
	if err != nil || len(list) != 1 {
		t.Fatalf("Jobs = %+v, %v", list, err)
	}
	return list[0].DownloadID
}

func (e *cliTestEnv) waitStatus(t *testing.T, id string, status jobs.Status) {
	t.Helper()
	waitFor(t, 5*time.Second, func() bool {
		p, err := e.client.Progress(context.Background(), id)
		return err == nil && p.Status == string(status)
	})
}

func runCLI(t *testing.T, args []string, configPath, addr string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	if addr != "" {
		flags = append(flags, "--api", addr)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config, bind string) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndownload_dir = %q\nstate_dir = %q\nlog_dir = %q\napi_bind = %q\n\n[history]\nenabled = %t\n",
		cfg.Paths.DownloadDir,
		cfg.Paths.StateDir,
		cfg.Paths.LogDir,
		bind,
		cfg.History.Enabled,
	)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// closedAddr returns a loopback address nothing listens on.
func closedAddr(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()
	return addr
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
