// Package api
// Author: momentics
//
// Execution substrate contract for decode task dispatch.

package api

import "time"

// Task is a unit of decode work driven by a Substrate.
type Task interface {
	// Process advances the work and reports whether it is done.
	Process() bool

	// Finish runs the terminal step. It is called exactly once, after
	// Process returned true.
	Finish(completed bool)
}

// Substrate runs tasks concurrently and delivers their terminal step.
type Substrate interface {
	// Launch starts the task on a worker. It never blocks on the task itself.
	Launch(task Task) error

	// Harvest finishes completed tasks from the caller's goroutine and
	// returns how many were finished. Substrates that complete tasks on
	// their own workers return 0. A zero deadline means no time limit.
	Harvest(deadline time.Time) int

	// InFlight returns the number of launched tasks not yet finished.
	InFlight() int

	// Close stops accepting new tasks.
	Close()
}
