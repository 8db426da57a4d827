package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"vidsnatch/internal/jobs"
)

func TestEventHubFetch(t *testing.T) {
	hub := jobs.NewEventHub(3)
	for i := 0; i < 5; i++ {
		hub.Publish(jobs.Event{JobID: "job", Type: jobs.ChangeUpdated, Percent: float64(i * 10)})
	}

	events, next, err := hub.Fetch(context.Background(), 0, 0, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 3 || events[0].Sequence != 3 || next != 5 {
		t.Fatalf("unexpected fetch: %d events, first %d, next %d", len(events), events[0].Sequence, next)
	}
	if first := hub.FirstSequence(); first != 3 {
		t.Fatalf("FirstSequence = %d, want 3", first)
	}

	events, next, err = hub.Fetch(context.Background(), 3, 1, false)
	if err != nil || len(events) != 1 || events[0].Sequence != 4 || next != 4 {
		t.Fatalf("limited fetch = %+v next=%d err=%v", events, next, err)
	}

	events, next, _ = hub.Fetch(context.Background(), 5, 0, false)
	if len(events) != 0 || next != 5 {
		t.Fatalf("caught-up fetch = %+v next=%d", events, next)
	}

	// A cursor from a previous process restarts from the beginning.
	events, _, _ = hub.Fetch(context.Background(), 99, 0, false)
	if len(events) != 3 {
		t.Fatalf("stale cursor returned %d events", len(events))
	}
}

func TestEventHubFetchWaits(t *testing.T) {
	hub := jobs.NewEventHub(8)
	go func() {
		time.Sleep(20 * time.Millisecond)
		hub.Publish(jobs.Event{JobID: "job", Type: jobs.ChangeCreated})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	events, next, err := hub.Fetch(ctx, 0, 0, true)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(events) != 1 || next != 1 {
		t.Fatalf("got %d events next=%d", len(events), next)
	}
}

func TestEventHubFetchHonoursContext(t *testing.T) {
	hub := jobs.NewEventHub(8)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := hub.Fetch(ctx, 0, 0, true)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestEventHubTail(t *testing.T) {
	hub := jobs.NewEventHub(8)
	if events, next := hub.Tail(5); events != nil || next != 0 {
		t.Fatalf("empty tail = %v, %d", events, next)
	}
	for i := 0; i < 4; i++ {
		hub.Publish(jobs.Event{JobID: "job"})
	}
	events, next := hub.Tail(2)
	if len(events) != 2 || events[0].Sequence != 3 || next != 4 {
		t.Fatalf("tail = %+v next=%d", events, next)
	}
}

func TestEventFromChange(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	evt := jobs.EventFromChange(jobs.Change{
		Type: jobs.ChangeUpdated,
		Job: jobs.Job{
			ID:           "abc",
			Status:       jobs.StatusError,
			ErrorMessage: "HTTP Error 404",
			DisplayTitle: "Clip",
			RetryCount:   2,
			UpdatedAt:    now,
		},
	})
	if evt.JobID != "abc" || evt.Error != "HTTP Error 404" || evt.RetryCount != 2 || !evt.Timestamp.Equal(now) {
		t.Fatalf("unexpected event %+v", evt)
	}
}
