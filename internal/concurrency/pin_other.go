//go:build !linux

// File: internal/concurrency/pin_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

// PinCurrentThread is not supported on this platform.
func PinCurrentThread(slot int) error {
	return ErrAffinityNotSupported
}

// UnpinCurrentThread is a no-op on this platform.
func UnpinCurrentThread() {}
