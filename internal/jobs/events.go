package jobs

import (
	"context"
	"sync"
	"time"
)

// Event is a job change published to long-polling clients.
type Event struct {
	Sequence   uint64     `json:"seq"`
	Timestamp  time.Time  `json:"ts"`
	Type       ChangeType `json:"type"`
	JobID      string     `json:"downloadId"`
	Status     Status     `json:"status"`
	Percent    float64    `json:"percent"`
	Speed      string     `json:"speed,omitempty"`
	ETA        string     `json:"eta,omitempty"`
	Error      string     `json:"error,omitempty"`
	Title      string     `json:"title"`
	RetryCount int        `json:"retryCount"`
}

// EventFromChange converts a store change into an event.
func EventFromChange(change Change) Event {
	job := change.Job
	return Event{
		Timestamp:  job.UpdatedAt.UTC(),
		Type:       change.Type,
		JobID:      job.ID,
		Status:     job.Status,
		Percent:    job.Percent,
		Speed:      job.Speed,
		ETA:        job.ETA,
		Error:      job.ErrorMessage,
		Title:      job.DisplayTitle,
		RetryCount: job.RetryCount,
	}
}

// EventHub stores recent job events and wakes waiters when new ones arrive.
type EventHub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
}

// NewEventHub constructs a bounded in-memory event buffer.
func NewEventHub(capacity int) *EventHub {
	if capacity <= 0 {
		capacity = 512
	}
	h := &EventHub{capacity: capacity}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Listener adapts the hub to WithChangeListener.
func (h *EventHub) Listener() func(Change) {
	return func(change Change) {
		h.Publish(EventFromChange(change))
	}
}

// Publish appends evt, assigning its sequence number.
func (h *EventHub) Publish(evt Event) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
	h.cond.Broadcast()
	h.mu.Unlock()
}

// Fetch returns events with sequence greater than since, at most limit. When
// wait is true, Fetch blocks until at least one event is available or the
// context ends. The returned cursor is the since value for the next call.
func (h *EventHub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.mu.Lock()
				h.cond.Broadcast()
				h.mu.Unlock()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()

	// A cursor from before a restart is ahead of this hub.
	if since > h.nextSeq {
		since = 0
	}
	for {
		events, next := h.snapshotLocked(since, limit)
		if len(events) > 0 || !wait {
			return events, next, contextError(ctx)
		}
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
		if err := contextError(ctx); err != nil {
			return nil, h.nextSeq, err
		}
	}
}

// Tail returns the most recent limit events without blocking.
func (h *EventHub) Tail(limit int) ([]Event, uint64) {
	if h == nil {
		return nil, 0
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buffer) == 0 {
		return nil, h.nextSeq
	}
	start := len(h.buffer) - limit
	if start < 0 {
		start = 0
	}
	out := make([]Event, len(h.buffer)-start)
	copy(out, h.buffer[start:])
	return out, h.nextSeq
}

// FirstSequence reports the smallest sequence number still buffered.
func (h *EventHub) FirstSequence() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buffer) == 0 {
		return h.nextSeq
	}
	return h.buffer[0].Sequence
}

func (h *EventHub) snapshotLocked(since uint64, limit int) ([]Event, uint64) {
	if len(h.buffer) == 0 {
		return nil, h.nextSeq
	}
	startIdx := -1
	for i, evt := range h.buffer {
		if evt.Sequence > since {
			startIdx = i
			break
		}
	}
	if startIdx < 0 {
		return nil, h.nextSeq
	}
	end := startIdx + limit
	if end > len(h.buffer) {
		end = len(h.buffer)
	}
	out := make([]Event, end-startIdx)
	copy(out, h.buffer[startIdx:end])
	return out, out[len(out)-1].Sequence
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
