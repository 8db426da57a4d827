package jobs

import (
	"context"
	"time"

	"vidsnatch/internal/logging"
)

// SweepResult lists the jobs one sweep acted on.
type SweepResult struct {
	Stuck   []string
	Evicted []string
}

// Sweep fails jobs stuck in preparing longer than the stuck timeout and
// evicts completed jobs idle longer than the eviction age. Errored and
// cancelled jobs stay so they can be retried.
func (s *Service) Sweep(now time.Time) SweepResult {
	var result SweepResult
	for _, job := range s.store.List() {
		switch {
		case job.Status == StatusPreparing && !job.StartedAt.IsZero() && now.Sub(job.StartedAt) > s.stuckTimeout:
			if s.failStuck(job) {
				result.Stuck = append(result.Stuck, job.ID)
			}
		case job.Status == StatusCompleted && now.Sub(job.UpdatedAt) > s.evictAfter:
			if s.runner.Alive(job.ID) {
				continue
			}
			_, ok := s.store.DeleteIf(job.ID, func(current Job) bool {
				return current.Status == job.Status && current.UpdatedAt.Equal(job.UpdatedAt)
			})
			if ok {
				result.Evicted = append(result.Evicted, job.ID)
			}
		}
	}
	if len(result.Stuck) > 0 || len(result.Evicted) > 0 {
		s.logger.Debug("job sweep",
			logging.Int("stuck", len(result.Stuck)),
			logging.Int("evicted", len(result.Evicted)),
		)
	}
	return result
}

func (s *Service) failStuck(job Job) bool {
	var (
		snapshot Job
		token    uint64
		failed   bool
	)
	s.store.Update(job.ID, func(j *Job) {
		if j.Status != StatusPreparing || !j.StartedAt.Equal(job.StartedAt) {
			return
		}
		token = j.execution
		markError(j, StuckMessage)
		failed = true
		snapshot = *j
	})
	if !failed {
		return false
	}
	if token != 0 {
		s.runner.Stop(job.ID, token)
	}
	logging.WarnWithContext(s.logger, "download stuck while preparing", "download_stuck",
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldURL, job.SourceURL),
		logging.Duration("timeout", s.stuckTimeout),
		logging.String(logging.FieldErrorHint, "check network access to the site or update yt-dlp"),
		logging.String(logging.FieldImpact, "download marked failed; retry is available"),
	)
	serviceObserver{s: s}.JobFinished(snapshot)
	return true
}

// RunMonitor sweeps every interval until ctx ends.
func (s *Service) RunMonitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.store.Now())
		}
	}
}
