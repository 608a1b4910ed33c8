// File: api/shutdown.go
// Package api defines unified graceful shutdown contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// GracefulShutdown is implemented by components that stop accepting work
// and release their resources.
type GracefulShutdown interface {
	// Shutdown stops the component. Calling it more than once is allowed.
	Shutdown() error
}
