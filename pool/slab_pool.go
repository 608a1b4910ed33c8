// File: pool/slab_pool.go
// Package pool implements lock-free slab allocation with size class support.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pool

import (
	"math/bits"
	"sync/atomic"

	"github.com/momentics/hioload-decode/api"
	"github.com/momentics/hioload-decode/internal/concurrency"
)

const (
	minClassShift = 12 // 4 KiB
	maxClassShift = 26 // 64 MiB
	numClasses    = maxClassShift - minClassShift + 1

	defaultPerClass = 16
)

// SlabPool recycles pixel slices in power-of-two size classes. Requests
// above the largest class are allocated directly and never retained.
type SlabPool struct {
	classes [numClasses]*concurrency.LockFreeQueue[[]byte]

	totalAlloc atomic.Int64
	totalReuse atomic.Int64
	totalFree  atomic.Int64
}

var _ api.BytePool = (*SlabPool)(nil)

// NewSlabPool creates a pool keeping at most perClass slices per size class.
func NewSlabPool(perClass int) *SlabPool {
	if perClass <= 0 {
		perClass = defaultPerClass
	}
	sp := &SlabPool{}
	for i := range sp.classes {
		sp.classes[i] = concurrency.NewLockFreeQueue[[]byte](perClass)
	}
	return sp
}

// classFor returns the size class index for n bytes, or -1 if n is too large.
func classFor(n int) int {
	if n <= 1<<minClassShift {
		return 0
	}
	shift := bits.Len(uint(n - 1))
	if shift > maxClassShift {
		return -1
	}
	return shift - minClassShift
}

// Acquire returns a zeroed slice of length n.
func (sp *SlabPool) Acquire(n int) []byte {
	if n <= 0 {
		return nil
	}
	idx := classFor(n)
	if idx < 0 {
		sp.totalAlloc.Add(1)
		return make([]byte, n)
	}
	if buf, ok := sp.classes[idx].Dequeue(); ok {
		sp.totalReuse.Add(1)
		buf = buf[:n]
		clear(buf)
		return buf
	}
	sp.totalAlloc.Add(1)
	return make([]byte, n, 1<<(idx+minClassShift))
}

// Release hands buf back. Slices that did not come from a size class, or
// that arrive while the class is full, are left to the GC.
func (sp *SlabPool) Release(buf []byte) {
	c := cap(buf)
	if c == 0 {
		return
	}
	sp.totalFree.Add(1)
	idx := classFor(c)
	if idx < 0 || c != 1<<(idx+minClassShift) {
		return
	}
	sp.classes[idx].Enqueue(buf[:c])
}

// Stats returns allocation accounting.
func (sp *SlabPool) Stats() api.BytePoolStats {
	alloc := sp.totalAlloc.Load()
	reuse := sp.totalReuse.Load()
	free := sp.totalFree.Load()
	return api.BytePoolStats{
		TotalAlloc: alloc,
		TotalReuse: reuse,
		TotalFree:  free,
		InUse:      alloc + reuse - free,
	}
}
