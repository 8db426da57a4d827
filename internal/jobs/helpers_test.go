package jobs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vidsnatch/internal/config"
	"vidsnatch/internal/engine/enginetest"
	"vidsnatch/internal/jobs"
	"vidsnatch/internal/notifications"
	"vidsnatch/internal/testsupport"
)

type harness struct {
	cfg    *config.Config
	engine *enginetest.Scripted
	svc    *jobs.Service
}

func newHarness(t *testing.T, deps jobs.Deps, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	eng := enginetest.New()
	deps.Engine = eng
	svc, err := jobs.NewService(cfg, deps)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return &harness{cfg: cfg, engine: eng, svc: svc}
}

func (h *harness) submit(t *testing.T, url, title string) (jobs.Job, *enginetest.Execution) {
	t.Helper()
	res, err := h.svc.Submit(context.Background(), jobs.SubmitRequest{URL: url, Title: title})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	exec := h.engine.Next(t)
	job, err := h.svc.Get(res.Job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return job, exec
}

func (h *harness) job(t *testing.T, id string) jobs.Job {
	t.Helper()
	job, err := h.svc.Get(id)
	if err != nil {
		t.Fatalf("Get %s: %v", id, err)
	}
	return job
}

// waitFor polls cond until it holds or five seconds pass.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (h *harness) waitStatus(t *testing.T, id string, status jobs.Status) jobs.Job {
	t.Helper()
	var job jobs.Job
	waitFor(t, "status "+string(status), func() bool {
		job = h.job(t, id)
		return job.Status == status
	})
	return job
}

func writePartial(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	testsupport.WriteFile(t, path, 16)
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

type published struct {
	event   notifications.Event
	payload notifications.Payload
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []published
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, published{event: event, payload: payload})
	return nil
}

func (n *recordingNotifier) snapshot() []published {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]published(nil), n.events...)
}

type recordingOpener struct {
	mu    sync.Mutex
	paths []string
}

func (o *recordingOpener) Open(path string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paths = append(o.paths, path)
	return nil
}

func (o *recordingOpener) opened() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.paths...)
}
