//go:build linux

// File: internal/concurrency/sampler_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// sysinfo load values are fixed point with SI_LOAD_SHIFT fractional bits.
const loadScale = 1 << 16

func platformNumCPUs() int {
	return runtime.NumCPU()
}

func platformLoadAverage() float64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0
	}
	cpus := runtime.NumCPU()
	if cpus <= 0 {
		cpus = 1
	}
	return float64(info.Loads[0]) / loadScale / float64(cpus)
}
