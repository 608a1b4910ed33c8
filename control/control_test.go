package control

import (
	"testing"
	"time"
)

type stubSampler struct{}

func (stubSampler) NumCPUs() int         { return 3 }
func (stubSampler) LoadAverage() float64 { return 0.5 }

func TestMetricsRegistry_Basic(t *testing.T) {
	reg := NewMetricsRegistry()
	reg.Set("bar.status", "ok")
	reg.Add("foo.count", 40)
	if got := reg.Add("foo.count", 2); got != 42 {
		t.Errorf("Add returned %d, want 42", got)
	}

	metrics := reg.GetSnapshot()
	if metrics["foo.count"] != int64(42) {
		t.Error("MetricsRegistry: counter mismatch")
	}
	if metrics["bar.status"] != "ok" {
		t.Error("MetricsRegistry: string value mismatch")
	}
	if reg.Updated().IsZero() {
		t.Error("Updated not recorded")
	}
}

func TestConfigStore_ReloadListenersSeeNewValues(t *testing.T) {
	cs := NewConfigStore()
	var seen any
	cs.OnReload(func() { seen = cs.GetSnapshot()["decode.target_load"] })
	cs.SetConfig(map[string]any{"decode.target_load": 0.6})
	if seen != 0.6 {
		t.Errorf("listener saw %v, want 0.6", seen)
	}
}

func TestConfigHelpers(t *testing.T) {
	cfg := map[string]any{
		"f": 0.5, "i": 3, "i64": int64(7), "fi": 2.0, "frac": 2.5,
		"d": "15ms", "dn": int64(time.Second), "bad": "x",
	}
	if v, ok := Float(cfg, "f"); !ok || v != 0.5 {
		t.Errorf("Float(f) = %v, %v", v, ok)
	}
	if v, ok := Float(cfg, "i"); !ok || v != 3 {
		t.Errorf("Float(i) = %v, %v", v, ok)
	}
	if v, ok := Int(cfg, "i64"); !ok || v != 7 {
		t.Errorf("Int(i64) = %v, %v", v, ok)
	}
	if v, ok := Int(cfg, "fi"); !ok || v != 2 {
		t.Errorf("Int(fi) = %v, %v", v, ok)
	}
	if _, ok := Int(cfg, "frac"); ok {
		t.Error("Int accepted a fractional value")
	}
	if v, ok := Duration(cfg, "d"); !ok || v != 15*time.Millisecond {
		t.Errorf("Duration(d) = %v, %v", v, ok)
	}
	if v, ok := Duration(cfg, "dn"); !ok || v != time.Second {
		t.Errorf("Duration(dn) = %v, %v", v, ok)
	}
	if _, ok := Duration(cfg, "bad"); ok {
		t.Error("Duration accepted an unparsable string")
	}
	if _, ok := Float(cfg, "missing"); ok {
		t.Error("Float reported a missing key")
	}
}

func TestPlatformProbes(t *testing.T) {
	dp := NewDebugProbes()
	RegisterPlatformProbes(dp, stubSampler{})
	state := dp.DumpState()
	if state["platform.sampled_cpus"] != 3 || state["platform.load_average"] != 0.5 {
		t.Errorf("sampler probes = %v / %v", state["platform.sampled_cpus"], state["platform.load_average"])
	}
	if _, ok := state["platform.cpus"]; !ok {
		t.Error("platform.cpus probe missing")
	}

	bare := NewDebugProbes()
	RegisterPlatformProbes(bare, nil)
	if _, ok := bare.DumpState()["platform.load_average"]; ok {
		t.Error("load probe registered without sampler")
	}
}
