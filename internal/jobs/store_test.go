package jobs_test

import (
	"errors"
	"testing"
	"time"

	"vidsnatch/internal/jobs"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func TestStoreCreateGetList(t *testing.T) {
	clock := &stepClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := jobs.NewStore(jobs.WithClock(clock.Now))

	first := store.Create("https://example.com/a", "A", jobs.CreateOptions{DestinationDir: "/tmp/a"})
	second := store.Create("https://example.com/b", "B", jobs.CreateOptions{OpenFolder: true})

	if first.ID == "" || first.ID == second.ID {
		t.Fatalf("expected distinct ids, got %q and %q", first.ID, second.ID)
	}
	if first.Status != jobs.StatusQueued || first.Percent != 0 || first.RetryCount != 0 {
		t.Fatalf("unexpected new job %+v", first)
	}

	got, err := store.Get(second.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.OpenFolder || got.SourceURL != "https://example.com/b" {
		t.Fatalf("unexpected job %+v", got)
	}

	list := store.List()
	if len(list) != 2 || list[0].ID != first.ID || list[1].ID != second.ID {
		t.Fatalf("List not in creation order: %+v", list)
	}
}

func TestStoreGetMissing(t *testing.T) {
	store := jobs.NewStore()
	_, err := store.Get("nope")
	if !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var nf *jobs.NotFoundError
	if !errors.As(err, &nf) || nf.ID != "nope" {
		t.Fatalf("expected NotFoundError for nope, got %#v", err)
	}
}

func TestStoreUpdateKeepsIdentity(t *testing.T) {
	clock := &stepClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := jobs.NewStore(jobs.WithClock(clock.Now))
	job := store.Create("https://example.com/a", "A", jobs.CreateOptions{})

	ok := store.Update(job.ID, func(j *jobs.Job) {
		j.ID = "hijacked"
		j.SourceURL = "https://evil.example"
		j.DisplayTitle = "Renamed"
	})
	if !ok {
		t.Fatal("Update reported missing job")
	}
	got, err := store.Get(job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SourceURL != job.SourceURL || got.DisplayTitle != "Renamed" {
		t.Fatalf("unexpected job after update %+v", got)
	}
	if !got.UpdatedAt.After(job.UpdatedAt) {
		t.Fatalf("UpdatedAt did not advance: %v -> %v", job.UpdatedAt, got.UpdatedAt)
	}

	store.Update(job.ID, func(*jobs.Job) {})
	again, _ := store.Get(job.ID)
	if !again.UpdatedAt.Equal(got.UpdatedAt) {
		t.Fatal("no-op update advanced UpdatedAt")
	}

	if store.Update("missing", func(*jobs.Job) { t.Fatal("fn called for missing job") }) {
		t.Fatal("Update reported success for missing job")
	}
}

func TestStoreChangeListener(t *testing.T) {
	var changes []jobs.Change
	store := jobs.NewStore(jobs.WithChangeListener(func(c jobs.Change) {
		changes = append(changes, c)
	}))

	job := store.Create("https://example.com/a", "A", jobs.CreateOptions{})
	store.Update(job.ID, func(j *jobs.Job) { j.Status = jobs.StatusPreparing })
	store.Update(job.ID, func(*jobs.Job) {})
	if _, err := store.Delete(job.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Delete(job.ID); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("second Delete = %v, want ErrNotFound", err)
	}

	want := []jobs.ChangeType{jobs.ChangeCreated, jobs.ChangeUpdated, jobs.ChangeDeleted}
	if len(changes) != len(want) {
		t.Fatalf("got %d changes, want %d: %+v", len(changes), len(want), changes)
	}
	for i, c := range changes {
		if c.Type != want[i] {
			t.Fatalf("change %d = %s, want %s", i, c.Type, want[i])
		}
	}
	if changes[1].Job.Status != jobs.StatusPreparing {
		t.Fatalf("update change carried status %s", changes[1].Job.Status)
	}
}

func TestStoreDeleteIfAndCount(t *testing.T) {
	store := jobs.NewStore()
	a := store.Create("https://example.com/a", "A", jobs.CreateOptions{})
	b := store.Create("https://example.com/b", "B", jobs.CreateOptions{})
	store.Update(b.ID, func(j *jobs.Job) { j.Status = jobs.StatusCompleted })

	if _, ok := store.DeleteIf(a.ID, func(j jobs.Job) bool { return j.Status == jobs.StatusCompleted }); ok {
		t.Fatal("DeleteIf removed a queued job")
	}
	if _, ok := store.DeleteIf(b.ID, func(j jobs.Job) bool { return j.Status == jobs.StatusCompleted }); !ok {
		t.Fatal("DeleteIf kept a completed job")
	}
	if n := store.Count(func(jobs.Job) bool { return true }); n != 1 {
		t.Fatalf("Count = %d, want 1", n)
	}
}
