//go:build !linux

// File: internal/concurrency/sampler_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// No portable load average: report unknown so schedulers use their fallback.

package concurrency

func platformNumCPUs() int {
	return 0
}

func platformLoadAverage() float64 {
	return 0
}
