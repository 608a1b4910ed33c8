// control/platform.go
// Author: momentics <momentics@gmail.com>
//
// Host platform probes.

package control

import (
	"runtime"

	"github.com/momentics/hioload-decode/api"
)

// RegisterPlatformProbes registers host probes. Load probes are added only
// when a sampler is given.
func RegisterPlatformProbes(dp *DebugProbes, sampler api.LoadSampler) {
	dp.RegisterProbe("platform.os", func() any {
		return runtime.GOOS
	})
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.goroutines", func() any {
		return runtime.NumGoroutine()
	})
	if sampler == nil {
		return
	}
	dp.RegisterProbe("platform.sampled_cpus", func() any {
		return sampler.NumCPUs()
	})
	dp.RegisterProbe("platform.load_average", func() any {
		return sampler.LoadAverage()
	})
}
