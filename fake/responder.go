// Package fake
// Author: momentics <momentics@gmail.com>

package fake

import (
	"sync"
	"time"

	"github.com/momentics/hioload-decode/api"
)

// Completion is one recorded Responder call.
type Completion struct {
	Success bool
	Primary api.RawImage
	Aux     api.RawImage

	// Dimensions and data presence captured during the call, while the
	// buffers were still guaranteed alive.
	PrimaryDims [3]int
	AuxDims     [3]int
	PrimaryData bool
	AuxData     bool
}

// Responder records every completion it receives. Buffers are retained so
// tests can inspect them after the job is gone.
type Responder struct {
	mu    sync.Mutex
	calls []Completion
	ch    chan Completion
}

var _ api.Responder = (*Responder)(nil)

// NewResponder creates a recording responder.
func NewResponder() *Responder {
	return &Responder{ch: make(chan Completion, 64)}
}

func (r *Responder) Completed(success bool, primary, aux api.RawImage) {
	c := Completion{Success: success, Primary: primary, Aux: aux}
	if primary != nil {
		primary.Retain()
		c.PrimaryDims = [3]int{primary.Width(), primary.Height(), primary.Components()}
		c.PrimaryData = primary.HasData()
	}
	if aux != nil {
		aux.Retain()
		c.AuxDims = [3]int{aux.Width(), aux.Height(), aux.Components()}
		c.AuxData = aux.HasData()
	}
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
	select {
	case r.ch <- c:
	default:
	}
}

// Calls returns a copy of the recorded completions.
func (r *Responder) Calls() []Completion {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Completion, len(r.calls))
	copy(out, r.calls)
	return out
}

// Count returns how many completions were recorded.
func (r *Responder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// Wait returns the next completion or false after timeout.
func (r *Responder) Wait(timeout time.Duration) (Completion, bool) {
	select {
	case c := <-r.ch:
		return c, true
	case <-time.After(timeout):
		return Completion{}, false
	}
}
