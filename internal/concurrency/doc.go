// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives for hioload-decode: a bounded MPMC lock-free queue,
// a worker executor used as the native decode pool, single-shot futures with
// bounded polling, host load samplers and optional worker CPU pinning.
//
// Platform-specific pieces (load sampling, pinning) are split by build tags.
package concurrency
