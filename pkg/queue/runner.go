package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"wikibridge/pkg/tracker"
)

// Worker processes the payload of one queue item. A nil error deletes the
// item; any error leaves it in the queue for a later pass.
type Worker interface {
	ProcessItem(ctx context.Context, item *Item) error
}

// WorkerFunc adapts a function to Worker.
type WorkerFunc func(ctx context.Context, item *Item) error

func (f WorkerFunc) ProcessItem(ctx context.Context, item *Item) error {
	return f(ctx, item)
}

// RunnerOptions tunes a Runner.
type RunnerOptions struct {
	TimeBudget  time.Duration // per pass, default 60s
	MaxAttempts int           // 0 = unlimited
	Tracker     *tracker.Tracker
	Logger      *slog.Logger
}

// Runner drains one queue with one worker, one item at a time.
type Runner struct {
	queue  *Queue
	worker Worker
	opts   RunnerOptions
}

// Stats summarizes one pass.
type Stats struct {
	Processed int
	Failed    int
	Discarded int
}

// NewRunner binds a worker to a queue.
func NewRunner(q *Queue, w Worker, opts RunnerOptions) *Runner {
	if opts.TimeBudget <= 0 {
		opts.TimeBudget = 60 * time.Second
	}
	if opts.Tracker == nil {
		opts.Tracker = tracker.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{queue: q, worker: w, opts: opts}
}

// Name returns the queue name.
func (r *Runner) Name() string {
	return r.queue.Name()
}

// Run claims and processes items until the queue is empty, the time budget
// is spent or ctx ends. A failed item keeps its lease and becomes claimable
// again once the visibility timeout expires.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	var st Stats
	log := r.opts.Logger.With("queue", r.queue.Name())
	deadline := time.Now().Add(r.opts.TimeBudget)

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return st, err
		}

		item, err := r.queue.ClaimItem(ctx)
		if err != nil {
			return st, err
		}
		if item == nil {
			break
		}

		if r.opts.MaxAttempts > 0 && item.Attempts > r.opts.MaxAttempts {
			log.Warn("Queue item exceeded max attempts, discarding", "id", item.ID, "attempts", item.Attempts)
			if err := r.queue.DeleteItem(ctx, item.ID); err != nil && !errors.Is(err, ErrNotFound) {
				return st, err
			}
			st.Discarded++
			r.opts.Tracker.TrackQueueDiscarded(r.queue.Name())
			continue
		}

		if err := r.worker.ProcessItem(ctx, item); err != nil {
			if ctx.Err() != nil {
				// Interrupted, not failed: hand it straight back.
				_ = r.queue.ReleaseItem(context.WithoutCancel(ctx), item.ID)
				return st, ctx.Err()
			}
			log.Warn("Queue item failed, left for retry", "id", item.ID, "attempts", item.Attempts, "error", err)
			st.Failed++
			r.opts.Tracker.TrackQueueFailed(r.queue.Name())
			continue
		}

		if err := r.queue.DeleteItem(ctx, item.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return st, err
		}
		st.Processed++
		r.opts.Tracker.TrackQueueProcessed(r.queue.Name())
	}

	if st.Processed+st.Failed+st.Discarded > 0 {
		log.Info("Queue pass finished", "processed", st.Processed, "failed", st.Failed, "discarded", st.Discarded)
	}
	return st, nil
}
