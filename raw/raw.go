// File: raw/raw.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reference-counted raw pixel buffer.

package raw

import (
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-decode/api"
)

// Image is a width x height x components pixel store. Dimensions are fixed
// at construction. Pixel storage is taken from the pool at construction and
// returned to it when the last reference is released.
type Image struct {
	width      int
	height     int
	components int
	pool       api.BytePool

	refs atomic.Int32

	mu   sync.Mutex
	data []byte
}

var _ api.RawImage = (*Image)(nil)

// New creates an image holding one reference, with zeroed storage for
// width*height*components bytes. A nil pool allocates from the heap.
func New(width, height, components int, pool api.BytePool) *Image {
	img := &Image{
		width:      width,
		height:     height,
		components: components,
		pool:       pool,
	}
	img.refs.Store(1)
	if n := img.Size(); n > 0 {
		if pool != nil {
			img.data = pool.Acquire(n)
		} else {
			img.data = make([]byte, n)
		}
	}
	return img
}

func (img *Image) Width() int      { return img.width }
func (img *Image) Height() int     { return img.height }
func (img *Image) Components() int { return img.components }

// Size returns the byte length of the pixel data.
func (img *Image) Size() int {
	return img.width * img.height * img.components
}

// Data returns the pixel bytes, or nil when the image holds none.
func (img *Image) Data() []byte {
	img.mu.Lock()
	defer img.mu.Unlock()
	return img.data
}

// HasData reports whether pixel storage is held.
func (img *Image) HasData() bool {
	img.mu.Lock()
	defer img.mu.Unlock()
	return len(img.data) > 0
}

// Discard drops the pixel storage.
func (img *Image) Discard() {
	img.mu.Lock()
	data := img.data
	img.data = nil
	img.mu.Unlock()
	img.recycle(data)
}

// Retain adds a reference.
func (img *Image) Retain() {
	img.refs.Add(1)
}

// Release drops a reference; the last one recycles the pixel storage.
// Releasing more times than retained is a no-op.
func (img *Image) Release() {
	for {
		n := img.refs.Load()
		if n <= 0 {
			return
		}
		if img.refs.CompareAndSwap(n, n-1) {
			if n == 1 {
				img.Discard()
			}
			return
		}
	}
}

// Refs returns the current reference count.
func (img *Image) Refs() int {
	return int(img.refs.Load())
}

func (img *Image) recycle(data []byte) {
	if data != nil && img.pool != nil {
		img.pool.Release(data)
	}
}
