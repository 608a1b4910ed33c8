// File: internal/concurrency/sampler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Host load sampling. The platform part lives in sampler_linux.go and
// sampler_other.go.

package concurrency

import (
	"sync"
	"time"

	"github.com/momentics/hioload-decode/api"
)

// HostSampler reads processor count and load average from the running host.
type HostSampler struct{}

var _ api.LoadSampler = HostSampler{}

// NewHostSampler returns a sampler for the current platform.
func NewHostSampler() HostSampler {
	return HostSampler{}
}

// NumCPUs returns the logical CPU count, or 0 when the platform cannot
// report load and the caller should fall back to fixed concurrency.
func (HostSampler) NumCPUs() int {
	return platformNumCPUs()
}

// LoadAverage returns the one minute load average divided by the CPU count.
func (HostSampler) LoadAverage() float64 {
	return platformLoadAverage()
}

// CachedSampler rate-limits an underlying sampler. Values are refreshed at
// most once per interval.
type CachedSampler struct {
	base     api.LoadSampler
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	sampled time.Time
	cpus    int
	load    float64
}

var _ api.LoadSampler = (*CachedSampler)(nil)

// NewCachedSampler wraps base. A non-positive interval disables caching.
func NewCachedSampler(base api.LoadSampler, interval time.Duration) *CachedSampler {
	return &CachedSampler{base: base, interval: interval, now: time.Now}
}

// NumCPUs returns the cached processor count.
func (c *CachedSampler) NumCPUs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshLocked()
	return c.cpus
}

// LoadAverage returns the cached load average.
func (c *CachedSampler) LoadAverage() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshLocked()
	return c.load
}

func (c *CachedSampler) refreshLocked() {
	now := c.now()
	if !c.sampled.IsZero() && c.interval > 0 && now.Sub(c.sampled) < c.interval {
		return
	}
	c.cpus = c.base.NumCPUs()
	c.load = c.base.LoadAverage()
	c.sampled = now
}
