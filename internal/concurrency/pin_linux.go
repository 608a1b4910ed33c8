//go:build linux

// File: internal/concurrency/pin_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Worker CPU pinning through sched_setaffinity, no CGO required.

package concurrency

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// PinCurrentThread locks the calling goroutine to its OS thread and binds
// that thread to CPU slot modulo the CPU count.
func PinCurrentThread(slot int) error {
	cpus := runtime.NumCPU()
	if cpus <= 0 {
		return ErrAffinityNotSupported
	}
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(slot % cpus)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		runtime.UnlockOSThread()
		return err
	}
	return nil
}

// UnpinCurrentThread widens the thread affinity back to every CPU and
// releases the OS thread lock.
func UnpinCurrentThread() {
	var set unix.CPUSet
	set.Zero()
	for i := 0; i < runtime.NumCPU(); i++ {
		set.Set(i)
	}
	_ = unix.SchedSetaffinity(0, &set)
	runtime.UnlockOSThread()
}
