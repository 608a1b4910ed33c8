// File: api/pool.go
// Author: momentics <momentics@gmail.com>
//
// Pixel storage pooling contract shared by raw image buffers.

package api

// BytePool provides reusable []byte buffers for pixel storage.
type BytePool interface {
	// Acquire returns a zeroed slice of exactly n bytes.
	Acquire(n int) []byte

	// Release returns a buffer to the pool.
	Release(buf []byte)
}

// BytePoolStats reports pool accounting.
type BytePoolStats struct {
	TotalAlloc int64
	TotalReuse int64
	TotalFree  int64
	InUse      int64
}
