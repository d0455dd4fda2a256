package state

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/MH0386/containr/internal/metrics"
)

// TaskFunc is the body of a background task. log already carries the task
// name and id.
type TaskFunc func(ctx context.Context, log *slog.Logger)

// Executor runs fire-and-forget tasks, one goroutine each. Tasks are never
// cancelled individually; they all share the executor's context.
type Executor struct {
	ctx      context.Context
	log      *slog.Logger
	metrics  metrics.Recorder
	onPanic  func(name string, v any)
	wg       sync.WaitGroup
	inFlight atomic.Int64
}

// NewExecutor returns an executor whose tasks run under ctx.
func NewExecutor(ctx context.Context, log *slog.Logger, rec metrics.Recorder) *Executor {
	if log == nil {
		log = slog.Default()
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Executor{ctx: ctx, log: log, metrics: rec}
}

// OnPanic sets the hook called after a task panic has been recovered.
// Must be set before the first Go call.
func (e *Executor) OnPanic(fn func(name string, v any)) {
	e.onPanic = fn
}

// Go spawns fn. A panic inside fn is recovered, logged and passed to the
// OnPanic hook; it never reaches the caller.
func (e *Executor) Go(name string, fn TaskFunc) {
	id := uuid.NewString()
	log := e.log.With("task", name, "id", id)

	e.wg.Add(1)
	e.inFlight.Add(1)
	e.metrics.TaskStarted()

	go func() {
		defer func() {
			e.inFlight.Add(-1)
			e.metrics.TaskDone()
			e.wg.Done()
		}()
		defer func() {
			if r := recover(); r != nil {
				log.Error("task panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
				if e.onPanic != nil {
					e.onPanic(name, r)
				}
			}
		}()

		log.Debug("task started")
		fn(e.ctx, log)
		log.Debug("task finished")
	}()
}

// Wait blocks until every spawned task has returned, including tasks
// spawned by other tasks while Wait is blocked.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// InFlight reports the number of tasks currently running.
func (e *Executor) InFlight() int {
	return int(e.inFlight.Load())
}
