package engine

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Task outcomes reported to Background.OnDone.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomePanic = "panic"
)

// Background runs detached side effects with bounded concurrency. Failures
// and panics are logged and reported, never returned to the caller.
type Background struct {
	slots chan struct{}
	wg    sync.WaitGroup

	// OnDone, if set, is called once per task with its outcome.
	OnDone func(task, outcome string)
}

// NewBackground creates a pool running at most workers tasks at a time.
func NewBackground(workers int) *Background {
	if workers < 1 {
		workers = 1
	}
	return &Background{slots: make(chan struct{}, workers)}
}

// Go schedules fn. The context passed to fn is detached from ctx's
// cancellation so a finished request does not abort its side effects.
func (b *Background) Go(ctx context.Context, task string, fn func(ctx context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.slots <- struct{}{}
		defer func() { <-b.slots }()

		start := time.Now()
		outcome := b.run(ctx, task, fn)
		slog.Debug("Background task finished",
			"task", task,
			"outcome", outcome,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		if b.OnDone != nil {
			b.OnDone(task, outcome)
		}
	}()
}

func (b *Background) run(ctx context.Context, task string, fn func(ctx context.Context) error) (outcome string) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("Background task panicked", "task", task, "panic", p, "stack", string(debug.Stack()))
			outcome = OutcomePanic
		}
	}()
	if err := fn(ctx); err != nil {
		slog.Error("Background task failed", "task", task, "error", err)
		return OutcomeError
	}
	return OutcomeOK
}

// Wait blocks until every scheduled task has finished.
func (b *Background) Wait() {
	b.wg.Wait()
}
