// File: internal/reaper/reaper.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reaper harvests finished decode futures from the owner goroutine without
// blocking on slow decodes.

package reaper

import (
	"time"

	"github.com/momentics/hioload-decode/api"
	"github.com/momentics/hioload-decode/internal/concurrency"
)

// DefaultPollWait is the bounded wait applied to each in-flight future.
const DefaultPollWait = 5 * time.Microsecond

type inflight struct {
	task   api.Task
	future *concurrency.Future[bool]
}

// Reaper tracks in-flight futures. It is not safe for concurrent use; the
// owner serializes Add and Reap.
type Reaper struct {
	wait    time.Duration
	pending []inflight
	now     func() time.Time
}

// New creates a Reaper. A non-positive wait polls without waiting.
func New(wait time.Duration) *Reaper {
	return &Reaper{wait: wait, now: time.Now}
}

// Add tracks a future resolving to the done flag of task.
func (r *Reaper) Add(task api.Task, f *concurrency.Future[bool]) {
	r.pending = append(r.pending, inflight{task: task, future: f})
}

// Len returns the number of tracked futures.
func (r *Reaper) Len() int {
	return len(r.pending)
}

// Reap polls every tracked future once and finishes the ready ones, in
// polling order. Futures not reached before deadline stay for the next
// call; a zero deadline polls all of them. It returns the number finished.
// A future whose function panicked finishes its task as not completed.
func (r *Reaper) Reap(deadline time.Time) int {
	if len(r.pending) == 0 {
		return 0
	}
	n := len(r.pending)
	kept := r.pending[:0]
	reaped := 0
	for i, e := range r.pending {
		if !deadline.IsZero() && i > 0 && r.now().After(deadline) {
			kept = append(kept, r.pending[i:]...)
			break
		}
		done, ok := e.future.WaitFor(r.wait)
		if !ok {
			kept = append(kept, e)
			continue
		}
		e.task.Finish(done && e.future.Panic() == nil)
		reaped++
	}
	for i := len(kept); i < n; i++ {
		r.pending[i] = inflight{}
	}
	r.pending = kept
	return reaped
}
