// Package fake
// Author: momentics <momentics@gmail.com>

package fake

import (
	"sync"

	"github.com/momentics/hioload-decode/api"
)

// Sampler is an api.LoadSampler with settable values.
type Sampler struct {
	mu   sync.Mutex
	cpus int
	load float64
}

var _ api.LoadSampler = (*Sampler)(nil)

// NewSampler returns a sampler reporting cpus processors at load.
func NewSampler(cpus int, load float64) *Sampler {
	return &Sampler{cpus: cpus, load: load}
}

// Set replaces the reported values.
func (s *Sampler) Set(cpus int, load float64) {
	s.mu.Lock()
	s.cpus, s.load = cpus, load
	s.mu.Unlock()
}

func (s *Sampler) NumCPUs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cpus
}

func (s *Sampler) LoadAverage() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load
}
