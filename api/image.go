// File: api/image.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Image collaborator contracts consumed by the decode pool.

package api

import "time"

// FormattedImage is a compressed image payload that can be decoded
// incrementally. Implementations are not required to be safe for concurrent
// use; the pool hands each image to exactly one worker at a time.
type FormattedImage interface {
	// UpdateData parses header metadata. False means the payload is unusable.
	UpdateData() bool

	// Width, Height and Components report the dimensions the next decode
	// will produce, after any discard level has been applied.
	Width() int
	Height() int
	Components() int

	// SetDiscardLevel selects a reduced resolution tier (0 = full resolution).
	SetDiscardLevel(level int)

	// Decode writes all components into out. It may return false to yield
	// once the time slice is used up; a zero slice means decode to completion.
	Decode(out RawImage, slice time.Duration) bool

	// DecodeChannels writes a single component into out. Channel is the
	// 1-based index of the component among "of" components, so 4 of 4
	// selects alpha from an RGBA source.
	DecodeChannels(out RawImage, slice time.Duration, channel, of int) bool
}

// RawImage is a mutable pixel store the decoder writes into.
type RawImage interface {
	Width() int
	Height() int
	Components() int

	// Data returns the pixel bytes, row major, or nil when empty.
	Data() []byte

	// HasData reports whether the buffer currently holds pixels.
	HasData() bool

	// Discard drops pixel contents. Decoders call it on a failed terminal decode.
	Discard()

	// Retain adds a shared reference; Release drops one. The last Release
	// recycles the pixel storage.
	Retain()
	Release()
}

// Responder receives the outcome of a decode job exactly once.
// Buffers passed in are only guaranteed alive for the duration of the call;
// call Retain to keep them.
type Responder interface {
	Completed(success bool, primary, aux RawImage)
}

// ResponderFunc adapts a plain function to Responder.
type ResponderFunc func(success bool, primary, aux RawImage)

// Completed calls f.
func (f ResponderFunc) Completed(success bool, primary, aux RawImage) {
	f(success, primary, aux)
}
