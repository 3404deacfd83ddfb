package cron

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"wikibridge/pkg/store"
)

// LastRunKey is the state key holding the unix time of the last pass.
const LastRunKey = "cron_last_run"

// Scheduler runs its jobs in order, once per interval.
type Scheduler struct {
	interval time.Duration
	state    store.StateStore
	jobs     []Job
	logger   *slog.Logger
}

// NewScheduler creates a scheduler. state may be nil.
func NewScheduler(interval time.Duration, state store.StateStore, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{interval: interval, state: state, logger: logger}
}

// AddJob appends a job. Jobs run in the order they were added.
func (s *Scheduler) AddJob(j Job) {
	s.jobs = append(s.jobs, j)
}

// Start runs a pass right away and then once per interval. It blocks
// until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Scheduler started", "interval", s.interval, "jobs", len(s.jobs))
	_ = s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			_ = s.RunOnce(ctx)
		}
	}
}

// RunOnce runs every job once. A failing job is logged and does not stop
// the jobs after it.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs []error
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := job.Run(ctx); err != nil {
			s.logger.Error("Job failed", "job", job.Name(), "error", err)
			errs = append(errs, err)
		}
	}
	if s.state != nil {
		if err := s.state.SetState(ctx, LastRunKey, strconv.FormatInt(time.Now().Unix(), 10)); err != nil {
			s.logger.Warn("Failed to record cron run", "error", err)
		}
	}
	return errors.Join(errs...)
}

// LastRun returns the time of the last completed pass.
func (s *Scheduler) LastRun(ctx context.Context) (time.Time, bool) {
	if s.state == nil {
		return time.Time{}, false
	}
	v, ok := s.state.GetState(ctx, LastRunKey)
	if !ok {
		return time.Time{}, false
	}
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(sec, 0), true
}
