// Package scheduler implements load-adaptive admission for decode work.
//
// Each tick the [Policy] turns a host load sample into a budget of running
// tasks, and the [Scheduler] promotes pending entries, oldest first, while
// the running count stays below that budget:
//
//	budget := policy.Budget(running)
//	n, err := sched.Promote(running, budget, launch)
//
// An entry the launcher refuses stays at the head of the queue and
// promotion stops until the next tick.
//
// The budget reacts to system-wide load instead of pinning a worker count.
// When nothing is running it never drops below one, so queued work always
// makes progress.
package scheduler
