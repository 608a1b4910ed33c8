// File: api/types.go
// Author: momentics <momentics@gmail.com>
//
// Shared API-level type declarations, DTOs, and constants.

package api

import "time"

// Handle identifies a submission. Only its non-zero-ness is meaningful:
// values are not guaranteed to be unique.
type Handle uint64

// NullHandle is returned for submissions that were not accepted.
const NullHandle Handle = 0

// Valid reports whether h refers to an accepted submission.
func (h Handle) Valid() bool {
	return h != NullHandle
}

// PoolStats is a point-in-time view of decode pool activity.
type PoolStats struct {
	Submitted int64
	Completed int64
	Succeeded int64
	Failed    int64
	Queued    int
	InFlight  int
	Budget    int
	StartedAt time.Time
}
