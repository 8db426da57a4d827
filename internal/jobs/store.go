package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ChangeType names a store mutation.
type ChangeType string

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// Change describes one store mutation. Job is a copy taken after the change
// (before removal for deletions).
type Change struct {
	Type ChangeType
	Job  Job
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides the time source used for CreatedAt and UpdatedAt.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithChangeListener registers fn for every mutation. fn runs under the store
// lock, so changes of one job reach it in the order they were applied; it
// must not call back into the store.
func WithChangeListener(fn func(Change)) StoreOption {
	return func(s *Store) {
		s.listener = fn
	}
}

// Store maps job ids to jobs. It is the only shared mutable job state.
type Store struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	order    uint64
	now      func() time.Time
	listener func(Change)
}

// NewStore constructs an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		jobs: make(map[string]*Job),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts a queued job under a fresh id.
func (s *Store) Create(sourceURL, displayTitle string, opts CreateOptions) Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	for s.jobs[id] != nil {
		id = uuid.NewString()
	}
	now := s.now()
	s.order++
	job := &Job{
		ID:             id,
		SourceURL:      sourceURL,
		DisplayTitle:   displayTitle,
		Status:         StatusQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
		DestinationDir: opts.DestinationDir,
		OpenFolder:     opts.OpenFolder,
		order:          s.order,
	}
	s.jobs[id] = job
	s.notifyLocked(ChangeCreated, *job)
	return *job
}

// Get returns a copy of the job with id.
func (s *Store) Get(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, &NotFoundError{ID: id}
	}
	return *job, nil
}

// Update applies fn to the job atomically. It reports false, without calling
// fn, when the job does not exist; a delete racing an update is expected.
// UpdatedAt advances only when fn changed something.
func (s *Store) Update(id string, fn func(*Job)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	before := *job
	fn(job)
	job.ID = before.ID
	job.SourceURL = before.SourceURL
	job.CreatedAt = before.CreatedAt
	job.order = before.order
	if *job != before {
		job.UpdatedAt = s.now()
		s.notifyLocked(ChangeUpdated, *job)
	}
	return true
}

// Delete removes the job with id and returns its last state.
func (s *Store) Delete(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, &NotFoundError{ID: id}
	}
	delete(s.jobs, id)
	s.notifyLocked(ChangeDeleted, *job)
	return *job, nil
}

// DeleteIf removes the job only when match approves its current state.
func (s *Store) DeleteIf(id string, match func(Job) bool) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || !match(*job) {
		return Job{}, false
	}
	delete(s.jobs, id)
	s.notifyLocked(ChangeDeleted, *job)
	return *job, true
}

// List returns copies of every job in creation order.
func (s *Store) List() []Job {
	s.mu.Lock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].order < out[j].order })
	return out
}

// Count returns how many jobs satisfy match.
func (s *Store) Count(match func(Job) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, job := range s.jobs {
		if match(*job) {
			n++
		}
	}
	return n
}

func (s *Store) notifyLocked(kind ChangeType, job Job) {
	if s.listener != nil {
		s.listener(Change{Type: kind, Job: job})
	}
}

// Now returns the store's current time.
func (s *Store) Now() time.Time {
	return s.now()
}
