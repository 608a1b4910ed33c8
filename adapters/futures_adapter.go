// File: adapters/futures_adapter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// FuturesSubstrate launches one goroutine per task and leaves completion to
// the owner, which harvests finished futures through the Reaper.

package adapters

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-decode/api"
	"github.com/momentics/hioload-decode/internal/concurrency"
	"github.com/momentics/hioload-decode/internal/reaper"
)

// FuturesSubstrate satisfies api.Substrate with futures and polling.
type FuturesSubstrate struct {
	mu       sync.Mutex // guards reaper
	reaper   *reaper.Reaper
	inflight atomic.Int64
	closed   atomic.Bool
}

var _ api.Substrate = (*FuturesSubstrate)(nil)

// NewFuturesSubstrate creates a substrate polling each future for at most
// pollWait per harvest.
func NewFuturesSubstrate(pollWait time.Duration) *FuturesSubstrate {
	return &FuturesSubstrate{reaper: reaper.New(pollWait)}
}

// Launch starts task on its own goroutine.
func (fs *FuturesSubstrate) Launch(task api.Task) error {
	if fs.closed.Load() {
		return api.ErrSubstrateClosed
	}
	f := concurrency.Go(func() bool { return drive(task) })
	fs.inflight.Add(1)
	fs.mu.Lock()
	fs.reaper.Add(task, f)
	fs.mu.Unlock()
	return nil
}

// Harvest finishes every ready task on the calling goroutine.
func (fs *FuturesSubstrate) Harvest(deadline time.Time) int {
	fs.mu.Lock()
	n := fs.reaper.Reap(deadline)
	fs.mu.Unlock()
	fs.inflight.Add(int64(-n))
	return n
}

// InFlight returns tasks launched and not yet harvested. It does not take
// the harvest lock, so responders may call it.
func (fs *FuturesSubstrate) InFlight() int {
	return int(fs.inflight.Load())
}

// Close stops admissions. Running goroutines continue and remain harvestable.
func (fs *FuturesSubstrate) Close() {
	fs.closed.Store(true)
}

// drive calls Process until it reports done, yielding between time slices.
func drive(task api.Task) bool {
	for !task.Process() {
		runtime.Gosched()
	}
	return true
}
