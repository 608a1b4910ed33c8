// File: internal/concurrency/executor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor dispatches tasks across a resizable set of worker goroutines fed
// from one bounded lock-free queue. Close stops admissions; workers drain
// what is already queued and exit.

package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// TaskFunc is a unit of work to execute.
type TaskFunc func()

// idleBackoff bounds how long an idle worker sleeps before rechecking the
// queue when a wakeup was coalesced away.
const idleBackoff = time.Millisecond

// ExecutorOptions tunes an Executor.
type ExecutorOptions struct {
	Workers    int  // worker goroutines; <= 0 means runtime.NumCPU()
	QueueSize  int  // queue capacity; <= 0 means Workers*256
	PinWorkers bool // pin each worker to a CPU where supported
}

// Executor manages a pool of worker goroutines.
type Executor struct {
	queue   *LockFreeQueue[TaskFunc]
	wake    chan struct{}
	closeCh chan struct{}
	closed  atomic.Bool
	pin     bool

	mu      sync.Mutex // protects workers
	workers []*worker
	nextID  int
	wg      sync.WaitGroup

	totalTasks     atomic.Int64
	completedTasks atomic.Int64
	panics         atomic.Int64
}

// NewExecutor creates an Executor and starts its workers.
func NewExecutor(opts ExecutorOptions) *Executor {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = opts.Workers * 256
	}
	e := &Executor{
		queue:   NewLockFreeQueue[TaskFunc](opts.QueueSize),
		wake:    make(chan struct{}, opts.Workers),
		closeCh: make(chan struct{}),
		pin:     opts.PinWorkers,
	}
	e.mu.Lock()
	e.spawnLocked(opts.Workers)
	e.mu.Unlock()
	return e
}

// Submit enqueues a task for execution.
func (e *Executor) Submit(task TaskFunc) error {
	if e.closed.Load() {
		return ErrExecutorClosed
	}
	if !e.queue.Enqueue(task) {
		return ErrExecutorSaturated
	}
	e.totalTasks.Add(1)
	select {
	case e.wake <- struct{}{}:
	default:
	}
	return nil
}

// Resize grows or shrinks the worker set. Removed workers finish the task
// they are running before exiting.
func (e *Executor) Resize(newCount int) {
	if newCount <= 0 {
		newCount = 1
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed.Load() {
		return
	}
	current := len(e.workers)
	switch {
	case newCount > current:
		e.spawnLocked(newCount - current)
	case newCount < current:
		for _, w := range e.workers[newCount:] {
			close(w.stopCh)
		}
		e.workers = e.workers[:newCount]
	}
}

// NumWorkers returns the current number of active workers.
func (e *Executor) NumWorkers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.workers)
}

// Queued returns the approximate number of tasks waiting for a worker.
func (e *Executor) Queued() int {
	return e.queue.Len()
}

// Close stops accepting tasks. Workers run what is already queued, then exit.
// Close does not wait; use Wait for that.
func (e *Executor) Close() {
	if e.closed.CompareAndSwap(false, true) {
		close(e.closeCh)
	}
}

// Wait blocks until every worker has exited. It must not be called from a task.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Stats returns basic executor metrics.
func (e *Executor) Stats() map[string]int64 {
	total := e.totalTasks.Load()
	completed := e.completedTasks.Load()
	return map[string]int64{
		"total_tasks":     total,
		"completed_tasks": completed,
		"pending_tasks":   total - completed,
		"panics":          e.panics.Load(),
		"num_workers":     int64(e.NumWorkers()),
	}
}

func (e *Executor) spawnLocked(n int) {
	for i := 0; i < n; i++ {
		w := &worker{id: e.nextID, executor: e, stopCh: make(chan struct{})}
		e.nextID++
		e.workers = append(e.workers, w)
		e.wg.Add(1)
		go w.run()
	}
}

// worker represents a single executor goroutine.
type worker struct {
	id       int
	executor *Executor
	stopCh   chan struct{}
}

func (w *worker) run() {
	defer w.executor.wg.Done()
	if w.executor.pin {
		if err := PinCurrentThread(w.id); err == nil {
			defer UnpinCurrentThread()
		}
	}
	timer := time.NewTimer(idleBackoff)
	defer timer.Stop()
	for {
		if task, ok := w.executor.queue.Dequeue(); ok {
			w.safeExecute(task)
			select {
			case <-w.stopCh:
				return
			default:
			}
			continue
		}
		select {
		case <-w.executor.closeCh:
			// drain: exit only once the queue is empty
			if w.executor.queue.Len() == 0 {
				return
			}
			continue
		default:
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(idleBackoff)
		select {
		case <-w.stopCh:
			return
		case <-w.executor.wake:
		case <-w.executor.closeCh:
		case <-timer.C:
		}
	}
}

// safeExecute runs the task and updates statistics, recovering from panics.
func (w *worker) safeExecute(task TaskFunc) {
	defer func() {
		if r := recover(); r != nil {
			w.executor.panics.Add(1)
		}
		w.executor.completedTasks.Add(1)
	}()
	task()
}
