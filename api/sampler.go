// File: api/sampler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// LoadSampler reports host processor count and recent load.
type LoadSampler interface {
	// NumCPUs returns the logical processor count, or 0 when unknown.
	NumCPUs() int

	// LoadAverage returns the recent load normalized per processor:
	// 0.0 is idle, 1.0 means every processor is busy.
	LoadAverage() float64
}
