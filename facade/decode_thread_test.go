package facade_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/momentics/hioload-decode/api"
	"github.com/momentics/hioload-decode/facade"
	"github.com/momentics/hioload-decode/fake"
	"github.com/momentics/hioload-decode/pool"
)

var substrates = []string{facade.SubstrateFutures, facade.SubstrateExecutor}

func newThread(t *testing.T, substrate string, sampler api.LoadSampler) *facade.DecodeThread {
	t.Helper()
	cfg := facade.DefaultConfig()
	cfg.Substrate = substrate
	cfg.Workers = 2
	d, err := facade.New(cfg, facade.WithSampler(sampler))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { d.Shutdown() })
	return d
}

// drain ticks until nothing is pending or the timeout expires.
func drain(t *testing.T, d *facade.DecodeThread, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for d.Tick(0) > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("still %d pending after %v", d.PendingCount(), timeout)
		}
		time.Sleep(100 * time.Microsecond)
	}
}

func TestDecodeThreadScenarios(t *testing.T) {
	cases := []struct {
		name     string
		img      func() *fake.Image
		needsAux bool
		success  bool
		primary  bool
		aux      bool
	}{
		{"primary only", func() *fake.Image { return fake.NewImage(8, 4, 3) }, false, true, true, false},
		{"with alpha", func() *fake.Image { return fake.NewImage(8, 4, 4) }, true, true, true, true},
		{"header failure", func() *fake.Image {
			img := fake.NewImage(8, 4, 3)
			img.FailUpdate = true
			return img
		}, false, false, false, false},
		{"zero size", func() *fake.Image { return fake.NewImage(0, 4, 3) }, false, false, false, false},
		{"empty alpha", func() *fake.Image {
			img := fake.NewImage(8, 4, 4)
			img.AuxEmpty = true
			return img
		}, true, false, true, true},
	}
	for _, substrate := range substrates {
		for _, tc := range cases {
			t.Run(substrate+"/"+tc.name, func(t *testing.T) {
				d := newThread(t, substrate, fake.NewSampler(4, 0))
				resp := fake.NewResponder()
				img := tc.img()
				if h := d.Submit(img, -1, tc.needsAux, resp); !h.Valid() {
					t.Fatal("expected a valid handle")
				}
				drain(t, d, 2*time.Second)

				if resp.Count() != 1 {
					t.Fatalf("responder called %d times, want 1", resp.Count())
				}
				c := resp.Calls()[0]
				if c.Success != tc.success {
					t.Errorf("success = %v, want %v", c.Success, tc.success)
				}
				if (c.Primary != nil) != tc.primary {
					t.Errorf("primary present = %v, want %v", c.Primary != nil, tc.primary)
				}
				if (c.Aux != nil) != tc.aux {
					t.Errorf("aux present = %v, want %v", c.Aux != nil, tc.aux)
				}
				if tc.primary && c.PrimaryDims != [3]int{img.W, img.H, img.C} {
					t.Errorf("primary dims = %v", c.PrimaryDims)
				}
				if tc.aux && c.AuxDims != [3]int{img.W, img.H, 1} {
					t.Errorf("aux dims = %v", c.AuxDims)
				}
			})
		}
	}
}

func TestDecodeThreadPromotesInSubmissionOrder(t *testing.T) {
	for _, substrate := range substrates {
		t.Run(substrate, func(t *testing.T) {
			// Saturated host: only the liveness floor admits work, one at a time.
			d := newThread(t, substrate, fake.NewSampler(4, 2.0))
			var mu sync.Mutex
			var order []string
			resp := fake.NewResponder()
			for _, name := range []string{"A", "B", "C"} {
				img := fake.NewImage(2, 2, 3)
				img.OnDecode = func() {
					mu.Lock()
					order = append(order, name)
					mu.Unlock()
				}
				d.Submit(img, -1, false, resp)
			}
			if d.PendingCount() != 3 {
				t.Fatalf("PendingCount = %d, want 3", d.PendingCount())
			}
			drain(t, d, 2*time.Second)

			mu.Lock()
			defer mu.Unlock()
			if len(order) != 3 || order[0] != "A" || order[1] != "B" || order[2] != "C" {
				t.Fatalf("decode order = %v, want [A B C]", order)
			}
			if resp.Count() != 3 {
				t.Errorf("responder called %d times, want 3", resp.Count())
			}
		})
	}
}

func TestDecodeThreadBudgetBoundsInFlight(t *testing.T) {
	for _, substrate := range substrates {
		t.Run(substrate, func(t *testing.T) {
			// 4 CPUs at 0.3 against 0.8 target: floor(0.5*4) = 2.
			d := newThread(t, substrate, fake.NewSampler(4, 0.3))
			release := make(chan struct{})
			resp := fake.NewResponder()
			for i := 0; i < 5; i++ {
				img := fake.NewImage(2, 2, 3)
				img.OnDecode = func() { <-release }
				d.Submit(img, -1, false, resp)
			}
			d.Tick(0)
			if got := d.QueuedCount(); got != 3 {
				t.Errorf("QueuedCount = %d, want 3", got)
			}
			if got := d.Stats().InFlight; got != 2 {
				t.Errorf("InFlight = %d, want 2", got)
			}
			if got := d.Stats().Budget; got != 2 {
				t.Errorf("Budget = %d, want 2", got)
			}
			close(release)
			drain(t, d, 2*time.Second)
			if resp.Count() != 5 {
				t.Errorf("responder called %d times, want 5", resp.Count())
			}
		})
	}
}

func TestDecodeThreadKeepsQueuedWhenExecutorFull(t *testing.T) {
	cfg := facade.DefaultConfig()
	cfg.Substrate = facade.SubstrateExecutor
	cfg.Workers = 1
	cfg.QueueSize = 2
	// 8 idle CPUs: budget floor(0.8*8) = 6, above what the executor holds.
	d, err := facade.New(cfg, facade.WithSampler(fake.NewSampler(8, 0)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Shutdown() })

	release := make(chan struct{})
	resp := fake.NewResponder()
	for i := 0; i < 6; i++ {
		img := fake.NewImage(2, 2, 3)
		img.OnDecode = func() { <-release }
		d.Submit(img, -1, false, resp)
	}
	d.Tick(0)
	if got := d.Stats().Budget; got != 6 {
		t.Fatalf("Budget = %d, want 6", got)
	}
	if got := d.QueuedCount(); got < 3 {
		t.Errorf("QueuedCount = %d, want refused submissions kept queued", got)
	}
	if resp.Count() != 0 {
		t.Fatalf("responder called %d times before any decode finished", resp.Count())
	}

	close(release)
	drain(t, d, 2*time.Second)
	calls := resp.Calls()
	if len(calls) != 6 {
		t.Fatalf("responder called %d times, want 6", len(calls))
	}
	for i, c := range calls {
		if !c.Success {
			t.Errorf("completion %d reported failure for a valid image", i)
		}
	}
}

func TestDecodeThreadExecutorWorkersFollowBudget(t *testing.T) {
	cfg := facade.DefaultConfig()
	cfg.Substrate = facade.SubstrateExecutor
	cfg.Workers = 4
	// 4 CPUs at 0.3 against 0.8 target: floor(0.5*4) = 2.
	d, err := facade.New(cfg, facade.WithSampler(fake.NewSampler(4, 0.3)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Shutdown() })

	workers := func() int64 {
		st, _ := d.Control().Stats()["debug.decode.executor"].(map[string]int64)
		return st["num_workers"]
	}
	if got := workers(); got != 4 {
		t.Fatalf("workers before first tick = %d, want 4", got)
	}
	d.Tick(0)
	if got := workers(); got != 2 {
		t.Errorf("workers after tick = %d, want the budget of 2", got)
	}
	d.Control().SetConfig(map[string]any{facade.KeyTargetLoad: 5.0})
	d.Tick(0)
	if got := workers(); got != 4 {
		t.Errorf("workers with a large budget = %d, want the cap of 4", got)
	}
}

func TestDecodeThreadSharesDefaultPool(t *testing.T) {
	a := newThread(t, facade.SubstrateFutures, fake.NewSampler(4, 0))
	b := newThread(t, facade.SubstrateExecutor, fake.NewSampler(4, 0))
	if a.Pool() != b.Pool() || a.Pool() != api.BytePool(pool.Default()) {
		t.Error("pools built without WithPool do not share pool.Default")
	}

	cfg := facade.DefaultConfig()
	cfg.PoolPerClass = 4
	c, err := facade.New(cfg, facade.WithSampler(fake.NewSampler(4, 0)))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Shutdown()
	if c.Pool() == a.Pool() {
		t.Error("PoolPerClass > 0 should build a private pool")
	}
}

func TestDecodeThreadShutdownThenSubmit(t *testing.T) {
	for _, substrate := range substrates {
		t.Run(substrate, func(t *testing.T) {
			d := newThread(t, substrate, fake.NewSampler(4, 0))
			if err := d.Shutdown(); err != nil {
				t.Fatal(err)
			}
			if err := d.Shutdown(); err != nil {
				t.Fatalf("second Shutdown: %v", err)
			}
			resp := fake.NewResponder()
			if h := d.Submit(fake.NewImage(2, 2, 3), -1, false, resp); h != api.NullHandle {
				t.Errorf("handle = %d, want NullHandle", h)
			}
			if n := d.Tick(0); n != 0 {
				t.Errorf("Tick = %d, want 0", n)
			}
			time.Sleep(5 * time.Millisecond)
			if resp.Count() != 0 {
				t.Errorf("responder called %d times after shutdown", resp.Count())
			}
		})
	}
}

func TestDecodeThreadShutdownFailsQueued(t *testing.T) {
	d := newThread(t, facade.SubstrateFutures, fake.NewSampler(4, 0))
	resp := fake.NewResponder()
	img := fake.NewImage(2, 2, 3)
	d.Submit(img, -1, false, resp)
	d.Submit(img, -1, false, resp)
	if err := d.Shutdown(); err != nil {
		t.Fatal(err)
	}
	calls := resp.Calls()
	if len(calls) != 2 {
		t.Fatalf("responder called %d times, want 2", len(calls))
	}
	for _, c := range calls {
		if c.Success || c.Primary != nil {
			t.Errorf("abandoned submission completed as %+v", c)
		}
	}
	if img.UpdateCalls() != 0 {
		t.Errorf("abandoned submission was decoded")
	}
	if d.PendingCount() != 0 {
		t.Errorf("PendingCount = %d after shutdown", d.PendingCount())
	}
}

func TestDecodeThreadShutdownLetsRunningFinish(t *testing.T) {
	for _, substrate := range substrates {
		t.Run(substrate, func(t *testing.T) {
			d := newThread(t, substrate, fake.NewSampler(4, 0))
			release := make(chan struct{})
			img := fake.NewImage(2, 2, 3)
			img.OnDecode = func() { <-release }
			resp := fake.NewResponder()
			d.Submit(img, -1, false, resp)
			d.Tick(0)
			d.Shutdown()
			close(release)
			drain(t, d, 2*time.Second)
			if resp.Count() != 1 || !resp.Calls()[0].Success {
				t.Fatalf("running job did not complete successfully: %+v", resp.Calls())
			}
		})
	}
}

func TestDecodeThreadSubmitFromResponder(t *testing.T) {
	for _, substrate := range substrates {
		t.Run(substrate, func(t *testing.T) {
			d := newThread(t, substrate, fake.NewSampler(4, 0))
			second := fake.NewResponder()
			first := api.ResponderFunc(func(bool, api.RawImage, api.RawImage) {
				d.Submit(fake.NewImage(2, 2, 3), -1, false, second)
			})
			d.Submit(fake.NewImage(2, 2, 3), -1, false, first)
			drain(t, d, 2*time.Second)
			if second.Count() != 1 {
				t.Fatalf("chained submission completed %d times, want 1", second.Count())
			}
		})
	}
}

func TestDecodeThreadHotReload(t *testing.T) {
	d := newThread(t, facade.SubstrateFutures, fake.NewSampler(10, 0))
	d.Tick(0)
	if got := d.Stats().Budget; got != 8 {
		t.Fatalf("initial budget = %d, want 8", got)
	}
	if err := d.Control().SetConfig(map[string]any{facade.KeyTargetLoad: 0.5}); err != nil {
		t.Fatal(err)
	}
	d.Tick(0)
	if got := d.Stats().Budget; got != 5 {
		t.Errorf("budget after target change = %d, want 5", got)
	}
	d.Control().SetConfig(map[string]any{facade.KeyMaxConcurrency: 3})
	d.Tick(0)
	if got := d.Stats().Budget; got != 3 {
		t.Errorf("budget after cap = %d, want 3", got)
	}

	d.Control().SetConfig(map[string]any{facade.KeyTimeSlice: "2ms"})
	img := fake.NewImage(2, 2, 3)
	img.Steps = 2
	d.Submit(img, -1, false, nil)
	drain(t, d, 2*time.Second)
	if got := img.LastSlice(); got != 2*time.Millisecond {
		t.Errorf("decode slice = %v, want 2ms", got)
	}
}

func TestDecodeThreadStatsAndMetrics(t *testing.T) {
	d := newThread(t, facade.SubstrateExecutor, fake.NewSampler(4, 0))
	bad := fake.NewImage(2, 2, 3)
	bad.FailUpdate = true
	d.Submit(fake.NewImage(2, 2, 3), -1, false, nil)
	d.Submit(bad, -1, false, nil)
	drain(t, d, 2*time.Second)

	st := d.Stats()
	if st.Submitted != 2 || st.Completed != 2 || st.Succeeded != 1 || st.Failed != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
	m := d.Control().Stats()
	if m[facade.MetricSubmitted] != int64(2) || m[facade.MetricFailed] != int64(1) {
		t.Errorf("unexpected metrics: %v", m)
	}
	if m[facade.MetricPending] != 0 {
		t.Errorf("pending metric = %v, want 0", m[facade.MetricPending])
	}
}

func TestDecodeThreadThreaded(t *testing.T) {
	cfg := facade.DefaultConfig()
	cfg.Threaded = true
	cfg.TickInterval = time.Millisecond
	d, err := facade.New(cfg, facade.WithSampler(fake.NewSampler(4, 0)))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Shutdown()
	resp := fake.NewResponder()
	d.Submit(fake.NewImage(4, 4, 3), 1, false, resp)
	c, ok := resp.Wait(2 * time.Second)
	if !ok {
		t.Fatal("owner loop never completed the submission")
	}
	if !c.Success || c.PrimaryDims != [3]int{2, 2, 3} {
		t.Errorf("unexpected completion %+v", c)
	}
	d.Stop()
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := facade.DefaultConfig()
	cfg.Substrate = "gpu"
	if _, err := facade.New(cfg); err == nil {
		t.Fatal("expected an error for an unknown substrate")
	}
}
