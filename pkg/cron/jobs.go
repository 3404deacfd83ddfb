// Package cron runs queue passes on a fixed interval.
package cron

import (
	"context"
	"sync/atomic"

	"wikibridge/pkg/queue"
)

// Job is a unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// BaseJob provides atomic running state to prevent re-entry.
type BaseJob struct {
	name    string
	running int32 // 1 if running, 0 otherwise
}

func NewBaseJob(name string) BaseJob {
	return BaseJob{name: name}
}

func (b *BaseJob) Name() string {
	return b.name
}

// TryLock attempts to set running to 1. Returns true if successful.
func (b *BaseJob) TryLock() bool {
	return atomic.CompareAndSwapInt32(&b.running, 0, 1)
}

func (b *BaseJob) Unlock() {
	atomic.StoreInt32(&b.running, 0)
}

// QueueJob drains one queue per pass.
type QueueJob struct {
	BaseJob
	runner *queue.Runner
	last   atomic.Pointer[queue.Stats]
}

func NewQueueJob(r *queue.Runner) *QueueJob {
	return &QueueJob{BaseJob: NewBaseJob(r.Name()), runner: r}
}

// Run is a no-op while a previous pass of the same queue is still running.
func (j *QueueJob) Run(ctx context.Context) error {
	if !j.TryLock() {
		return nil
	}
	defer j.Unlock()

	st, err := j.runner.Run(ctx)
	j.last.Store(&st)
	return err
}

// LastStats returns the result of the latest pass.
func (j *QueueJob) LastStats() queue.Stats {
	if st := j.last.Load(); st != nil {
		return *st
	}
	return queue.Stats{}
}
