// Package fake
// Author: momentics <momentics@gmail.com>
//
// Scriptable fakes for decode pool tests.

package fake

import (
	"sync"
	"time"

	"github.com/momentics/hioload-decode/api"
)

// Image is a scriptable api.FormattedImage.
type Image struct {
	W, H, C int

	FailUpdate  bool // UpdateData returns false
	Steps       int  // Decode calls needed to finish; <= 1 means one
	AuxSteps    int  // DecodeChannels calls needed to finish; <= 1 means one
	EmptyOnDone bool // primary decode finishes with its data discarded
	AuxEmpty    bool // auxiliary decode finishes with its data discarded
	Fill        byte // value written to decoded pixels
	Panic       bool // Decode panics

	// OnDecode, if set, runs at the start of every Decode call.
	OnDecode func()

	mu           sync.Mutex
	discard      int
	updateCalls  int
	decodeCalls  int
	channelCalls int
	lastSlice    time.Duration
	lastChannel  [2]int
}

var _ api.FormattedImage = (*Image)(nil)

// NewImage returns a decodable image of the given dimensions.
func NewImage(w, h, c int) *Image {
	return &Image{W: w, H: h, C: c, Fill: 0x7f}
}

func (f *Image) UpdateData() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	return !f.FailUpdate
}

func (f *Image) Width() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return reduce(f.W, f.discard)
}

func (f *Image) Height() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return reduce(f.H, f.discard)
}

func (f *Image) Components() int { return f.C }

func (f *Image) SetDiscardLevel(level int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discard = level
}

func (f *Image) Decode(out api.RawImage, slice time.Duration) bool {
	if f.OnDecode != nil {
		f.OnDecode()
	}
	if f.Panic {
		panic("fake decoder failure")
	}
	f.mu.Lock()
	f.decodeCalls++
	f.lastSlice = slice
	done := f.decodeCalls >= f.Steps
	f.mu.Unlock()
	return f.complete(out, done, f.EmptyOnDone)
}

func (f *Image) DecodeChannels(out api.RawImage, slice time.Duration, channel, of int) bool {
	f.mu.Lock()
	f.channelCalls++
	f.lastSlice = slice
	f.lastChannel = [2]int{channel, of}
	done := f.channelCalls >= f.AuxSteps
	f.mu.Unlock()
	return f.complete(out, done, f.AuxEmpty)
}

func (f *Image) complete(out api.RawImage, done, empty bool) bool {
	if !done {
		return false
	}
	if empty {
		out.Discard()
		return true
	}
	data := out.Data()
	for i := range data {
		data[i] = f.Fill
	}
	return true
}

// UpdateCalls returns how many times UpdateData ran.
func (f *Image) UpdateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updateCalls
}

// DecodeCalls returns how many times Decode ran.
func (f *Image) DecodeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.decodeCalls
}

// ChannelCalls returns how many times DecodeChannels ran.
func (f *Image) ChannelCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channelCalls
}

// DiscardLevel returns the last discard level set.
func (f *Image) DiscardLevel() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.discard
}

// LastSlice returns the time slice passed to the latest decode call.
func (f *Image) LastSlice() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSlice
}

// LastChannel returns the (channel, of) pair of the latest DecodeChannels call.
func (f *Image) LastChannel() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastChannel[0], f.lastChannel[1]
}

func reduce(dim, level int) int {
	if level <= 0 || dim == 0 {
		return dim
	}
	dim >>= level
	if dim < 1 {
		dim = 1
	}
	return dim
}
