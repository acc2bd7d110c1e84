// Package scheduler runs the periodic analytical tasks. Each task has
// skip-if-busy semantics: if a cycle overruns its interval the next tick is
// skipped rather than overlapped, which guarantees at most one in-flight
// cycle and single-writer access to anything the cycle mutates.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// CycleFunc is one analytical cycle. It must honor ctx cancellation; an
// overrunning cycle is abandoned through its deadline, not retried in place.
type CycleFunc func(ctx context.Context) error

// Task is a named periodic job.
type Task struct {
	name         string
	interval     time.Duration
	cycleTimeout time.Duration
	run          CycleFunc
	logger       *slog.Logger

	busy    atomic.Bool
	skipped atomic.Int64
}

// NewTask creates a periodic task. cycleTimeout bounds each cycle; zero
// means the cycle inherits the parent context deadline only.
func NewTask(name string, interval, cycleTimeout time.Duration, run CycleFunc, logger *slog.Logger) *Task {
	return &Task{
		name:         name,
		interval:     interval,
		cycleTimeout: cycleTimeout,
		run:          run,
		logger:       logger.With("task", name),
	}
}

// Run executes the task on its cadence until ctx is cancelled. The first
// cycle runs immediately.
func (t *Task) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

// tick runs one cycle unless the previous one is still in flight.
func (t *Task) tick(ctx context.Context) {
	if !t.busy.CompareAndSwap(false, true) {
		n := t.skipped.Add(1)
		t.logger.Warn("previous cycle still running, skipping tick", "skipped_total", n)
		return
	}
	defer t.busy.Store(false)

	cycleCtx := ctx
	if t.cycleTimeout > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(ctx, t.cycleTimeout)
		defer cancel()
	}

	cycleID := uuid.NewString()
	start := time.Now()
	if err := t.run(cycleCtx); err != nil {
		t.logger.Error("cycle failed", "cycle_id", cycleID,
			"duration", time.Since(start), "error", err)
		return
	}
	t.logger.Debug("cycle complete", "cycle_id", cycleID, "duration", time.Since(start))
}

// SkippedTicks returns how many ticks were skipped because a cycle overran.
func (t *Task) SkippedTicks() int64 {
	return t.skipped.Load()
}
