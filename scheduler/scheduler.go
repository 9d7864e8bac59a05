// Package scheduler runs the periodic metric export. Each run flushes the
// stats client once; the first run waits a full interval after Start.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giygas/apples-stats/interfaces"
	"github.com/giygas/apples-stats/logging"
	"github.com/go-co-op/gocron"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

var ErrAlreadyStarted = errors.New("scheduler already started")

// Scheduler flushes a Flusher on a fixed interval using dependency injection
type Scheduler struct {
	flusher   interfaces.Flusher
	interval  time.Duration
	scheduler *gocron.Scheduler

	mu      sync.Mutex
	job     *gocron.Job
	started bool

	runs     atomic.Uint64
	failures atomic.Uint64
}

// NewScheduler creates a new scheduler instance with injected dependencies
func NewScheduler(flusher interfaces.Flusher, interval time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	return &Scheduler{
		flusher:   flusher,
		interval:  interval,
		scheduler: s,
	}
}

// Start schedules the export job and returns immediately
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	if s.interval <= 0 {
		return fmt.Errorf("export interval must be positive, got %s", s.interval)
	}

	job, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(s.flush)
	if err != nil {
		logging.Error("Failed to schedule metric export", "error", err)
		return fmt.Errorf("failed to schedule metric export: %w", err)
	}

	s.job = job
	s.started = true
	s.scheduler.StartAsync()

	logging.Info("Metric export scheduled", "interval", s.interval.String())
	return nil
}

// Stop stops the scheduler. A flush already running is allowed to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.scheduler.Stop()
	s.started = false
}

// NextRun returns when the next flush is due
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.job == nil {
		return time.Time{}
	}
	return s.job.NextRun()
}

// Runs reports how many flushes ran and how many of them failed
func (s *Scheduler) Runs() (total, failed uint64) {
	return s.runs.Load(), s.failures.Load()
}

// flush is the scheduled job. A run never outlives its interval.
func (s *Scheduler) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	start := time.Now()
	s.runs.Add(1)

	if err := s.flusher.Flush(ctx); err != nil {
		s.failures.Add(1)
		logging.Error("Failed to export metrics", "error", err, "duration", time.Since(start).String())
		return
	}

	logging.Debug("Metrics exported", "duration", time.Since(start).String())
}
