// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime configuration, metrics and debug introspection for hioload-decode.
//
// Provides concurrent-safe state handling primitives including:
//   - Snapshot config reads, merged updates and reload listeners
//   - Counters and gauges for pool telemetry
//   - Named debug probes, including host platform probes
package control
