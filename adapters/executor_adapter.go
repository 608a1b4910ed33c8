// File: adapters/executor_adapter.go
// Package adapters provides glue between internal concurrency and api.Substrate.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ExecutorSubstrate runs decode tasks on the long-lived worker Executor and
// completes them inline on the worker once Process reports done, so the
// owner only observes aggregate in-flight depth.

package adapters

import (
	"errors"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-decode/api"
	"github.com/momentics/hioload-decode/internal/concurrency"
)

// ExecutorSubstrate satisfies api.Substrate over concurrency.Executor.
// The worker count follows the admission budget through Scale, capped at
// the configured worker count.
type ExecutorSubstrate struct {
	exec       *concurrency.Executor
	maxWorkers int
	inflight   atomic.Int64
}

var _ api.Substrate = (*ExecutorSubstrate)(nil)

// NewExecutorSubstrate starts an executor with the given options.
func NewExecutorSubstrate(opts concurrency.ExecutorOptions) *ExecutorSubstrate {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &ExecutorSubstrate{exec: concurrency.NewExecutor(opts), maxWorkers: opts.Workers}
}

// Launch queues the task on a worker. The worker drives Process to done and
// then calls Finish.
func (es *ExecutorSubstrate) Launch(task api.Task) error {
	es.inflight.Add(1)
	err := es.exec.Submit(func() {
		defer es.inflight.Add(-1)
		task.Finish(drive(task))
	})
	if err != nil {
		es.inflight.Add(-1)
		switch {
		case errors.Is(err, concurrency.ErrExecutorClosed):
			return api.ErrSubstrateClosed
		case errors.Is(err, concurrency.ErrExecutorSaturated):
			return api.ErrSubstrateBusy
		}
		return err
	}
	return nil
}

// Harvest is a no-op; completion happens on the workers.
func (es *ExecutorSubstrate) Harvest(time.Time) int { return 0 }

// InFlight returns launched tasks that have not finished.
func (es *ExecutorSubstrate) InFlight() int {
	return int(es.inflight.Load())
}

// Scale sets the worker count to budget, clamped to [1, maxWorkers].
func (es *ExecutorSubstrate) Scale(budget int) {
	n := min(max(budget, 1), es.maxWorkers)
	if n != es.exec.NumWorkers() {
		es.exec.Resize(n)
	}
}

// Stats returns the executor counters.
func (es *ExecutorSubstrate) Stats() map[string]int64 {
	return es.exec.Stats()
}

// Close stops admissions. Queued tasks still run and finish.
func (es *ExecutorSubstrate) Close() {
	es.exec.Close()
}
