package scheduler

import (
	"testing"

	"github.com/momentics/hioload-decode/fake"
)

func TestNewPolicy_Defaults(t *testing.T) {
	p := NewPolicy(nil)
	if p.targetLoad != DefaultTargetLoad {
		t.Errorf("targetLoad = %v, want %v", p.targetLoad, DefaultTargetLoad)
	}
	if p.fallback != DefaultFallbackLimit {
		t.Errorf("fallback = %d, want %d", p.fallback, DefaultFallbackLimit)
	}
	if p.maxConcurrency != 0 {
		t.Errorf("maxConcurrency = %d, want 0", p.maxConcurrency)
	}
}

func TestPolicy_Budget(t *testing.T) {
	tests := []struct {
		name    string
		cpus    int
		load    float64
		running int
		opts    []Option
		want    int
	}{
		{name: "unknown cpus falls back", cpus: 0, load: 0.99, running: 2, want: 4},
		{name: "idle host", cpus: 8, load: 0, running: 0, want: 6},
		{name: "partial headroom floors", cpus: 8, load: 0.5, running: 3, want: 2},
		{name: "at target is zero", cpus: 8, load: 0.8, running: 1, want: 0},
		{name: "over target is zero", cpus: 8, load: 3.5, running: 4, want: 0},
		{name: "idle floor of one", cpus: 8, load: 1.2, running: 0, want: 1},
		{name: "tiny headroom floor of one", cpus: 1, load: 0.5, running: 0, want: 1},
		{name: "tiny headroom busy", cpus: 1, load: 0.5, running: 1, want: 0},
		{name: "capped", cpus: 64, load: 0, running: 0, opts: []Option{WithMaxConcurrency(3)}, want: 3},
		{name: "custom target", cpus: 10, load: 0, running: 1, opts: []Option{WithTargetLoad(0.5)}, want: 5},
		{name: "custom fallback", cpus: 0, running: 1, opts: []Option{WithFallbackLimit(2)}, want: 2},
		{name: "negative fallback clamps", cpus: 0, running: 1, opts: []Option{WithFallbackLimit(-3)}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPolicy(fake.NewSampler(tt.cpus, tt.load), tt.opts...)
			if got := p.Budget(tt.running); got != tt.want {
				t.Errorf("Budget(%d) = %d, want %d", tt.running, got, tt.want)
			}
		})
	}
}

func TestPolicy_RuntimeAdjustments(t *testing.T) {
	s := fake.NewSampler(10, 0.25)
	p := NewPolicy(s)
	if got := p.Budget(1); got != 5 {
		t.Fatalf("Budget = %d, want 5", got)
	}
	p.SetTargetLoad(0.5)
	if got := p.Budget(1); got != 2 {
		t.Errorf("Budget after SetTargetLoad = %d, want 2", got)
	}
	p.SetMaxConcurrency(1)
	if got := p.Budget(1); got != 1 {
		t.Errorf("Budget after SetMaxConcurrency = %d, want 1", got)
	}
	s.Set(10, 0.9)
	if got := p.Budget(1); got != 0 {
		t.Errorf("Budget under load = %d, want 0", got)
	}
}
