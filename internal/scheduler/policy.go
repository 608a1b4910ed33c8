package scheduler

import (
	"math"
	"sync"

	"github.com/momentics/hioload-decode/api"
)

// Default policy values.
const (
	DefaultTargetLoad    = 0.8
	DefaultFallbackLimit = 4
)

// Option configures a Policy.
type Option func(*Policy)

// WithTargetLoad sets the per-CPU load the pool aims to keep the host under.
func WithTargetLoad(load float64) Option {
	return func(p *Policy) { p.targetLoad = load }
}

// WithFallbackLimit sets the budget used when the host cannot report its
// processor count.
func WithFallbackLimit(n int) Option {
	return func(p *Policy) { p.fallback = n }
}

// WithMaxConcurrency caps the budget. Zero means no cap.
func WithMaxConcurrency(n int) Option {
	return func(p *Policy) { p.maxConcurrency = n }
}

// Policy computes how many decode tasks may run at once.
// It is safe for concurrent use.
type Policy struct {
	sampler api.LoadSampler

	mu             sync.Mutex
	targetLoad     float64
	fallback       int
	maxConcurrency int
}

// NewPolicy creates a Policy reading host load from sampler.
// Unset options use defaults.
func NewPolicy(sampler api.LoadSampler, opts ...Option) *Policy {
	p := &Policy{
		sampler:    sampler,
		targetLoad: DefaultTargetLoad,
		fallback:   DefaultFallbackLimit,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetTargetLoad changes the target load at runtime.
func (p *Policy) SetTargetLoad(load float64) {
	p.mu.Lock()
	p.targetLoad = load
	p.mu.Unlock()
}

// TargetLoad returns the current target load.
func (p *Policy) TargetLoad() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.targetLoad
}

// SetMaxConcurrency changes the budget cap at runtime. Zero removes it.
func (p *Policy) SetMaxConcurrency(n int) {
	p.mu.Lock()
	p.maxConcurrency = n
	p.mu.Unlock()
}

// Budget returns the number of tasks allowed to run given that running are
// already in flight. The result is never negative, and is at least one
// when running is zero.
func (p *Policy) Budget(running int) int {
	p.mu.Lock()
	target, fallback, limit := p.targetLoad, p.fallback, p.maxConcurrency
	p.mu.Unlock()

	budget := fallback
	cpus := 0
	if p.sampler != nil {
		cpus = p.sampler.NumCPUs()
	}
	if cpus > 0 {
		diff := target - p.sampler.LoadAverage()
		if diff <= 0 || math.IsNaN(diff) {
			budget = 0
		} else {
			budget = int(math.Floor(diff * float64(cpus)))
		}
	}
	if budget < 0 {
		budget = 0
	}
	if limit > 0 && budget > limit {
		budget = limit
	}
	if running == 0 && budget == 0 {
		budget = 1
	}
	return budget
}
