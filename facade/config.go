// File: facade/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Decode pool configuration: defaults, validation and TOML file loading.

package facade

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/momentics/hioload-decode/api"
	"github.com/momentics/hioload-decode/internal/reaper"
	"github.com/momentics/hioload-decode/internal/scheduler"
)

// Substrate names accepted by Config.Substrate.
const (
	SubstrateFutures  = "futures"
	SubstrateExecutor = "executor"
)

// Config holds parameters fixed for the lifetime of a DecodeThread.
// TargetLoad, MaxConcurrency and DecodeTimeSlice can also be changed at
// runtime through Control under the decode.* keys.
type Config struct {
	Substrate           string        // "futures" or "executor"
	Workers             int           // executor worker cap, 0 = NumCPU; the live count follows the budget
	QueueSize           int           // executor task queue capacity
	PinWorkers          bool          // pin executor workers to CPUs
	TargetLoad          float64       // per-CPU load kept as ceiling
	FallbackConcurrency int           // budget when the CPU count is unknown
	MaxConcurrency      int           // hard cap on the budget, 0 = none
	DecodeTimeSlice     time.Duration // per Process call decode slice, 0 = to completion
	PollWait            time.Duration // reaper wait per in-flight future
	TickInterval        time.Duration // owner loop period in threaded mode
	Threaded            bool          // run the owner loop on its own goroutine
	SampleInterval      time.Duration // load sample cache lifetime, 0 = sample every tick
	PoolPerClass        int           // buffers per size class in a private pool, 0 = shared pool.Default
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	return &Config{
		Substrate:           SubstrateFutures,
		Workers:             0,
		QueueSize:           1024,
		PinWorkers:          false,
		TargetLoad:          scheduler.DefaultTargetLoad,
		FallbackConcurrency: scheduler.DefaultFallbackLimit,
		MaxConcurrency:      0,
		DecodeTimeSlice:     0,
		PollWait:            reaper.DefaultPollWait,
		TickInterval:        10 * time.Millisecond,
		Threaded:            false,
		SampleInterval:      100 * time.Millisecond,
		PoolPerClass:        0,
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Substrate != SubstrateFutures && c.Substrate != SubstrateExecutor:
		return invalid("substrate", c.Substrate)
	case c.Workers < 0:
		return invalid("workers", c.Workers)
	case c.QueueSize <= 0:
		return invalid("queue_size", c.QueueSize)
	case c.TargetLoad <= 0:
		return invalid("target_load", c.TargetLoad)
	case c.FallbackConcurrency <= 0:
		return invalid("fallback_concurrency", c.FallbackConcurrency)
	case c.MaxConcurrency < 0:
		return invalid("max_concurrency", c.MaxConcurrency)
	case c.DecodeTimeSlice < 0:
		return invalid("decode_time_slice", c.DecodeTimeSlice)
	case c.PollWait < 0:
		return invalid("poll_wait", c.PollWait)
	case c.Threaded && c.TickInterval <= 0:
		return invalid("tick_interval", c.TickInterval)
	case c.SampleInterval < 0:
		return invalid("sample_interval", c.SampleInterval)
	case c.PoolPerClass < 0:
		return invalid("pool_per_class", c.PoolPerClass)
	}
	return nil
}

func invalid(field string, value any) error {
	return api.NewError(api.ErrCodeInvalidConfig, "invalid configuration").
		WithContext("field", field).
		WithContext("value", value)
}

// fileConfig mirrors Config for TOML decoding. Absent keys leave defaults.
type fileConfig struct {
	Substrate           *string  `toml:"substrate"`
	Workers             *int     `toml:"workers"`
	QueueSize           *int     `toml:"queue_size"`
	PinWorkers          *bool    `toml:"pin_workers"`
	TargetLoad          *float64 `toml:"target_load"`
	FallbackConcurrency *int     `toml:"fallback_concurrency"`
	MaxConcurrency      *int     `toml:"max_concurrency"`
	DecodeTimeSlice     *string  `toml:"decode_time_slice"`
	PollWait            *string  `toml:"poll_wait"`
	TickInterval        *string  `toml:"tick_interval"`
	Threaded            *bool    `toml:"threaded"`
	SampleInterval      *string  `toml:"sample_interval"`
	PoolPerClass        *int     `toml:"pool_per_class"`
}

// LoadConfig reads a TOML file over DefaultConfig. An empty path or a
// missing file yields the defaults. Durations are Go duration strings
// such as "5us" or "10ms".
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var fc fileConfig
	decoder := toml.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&fc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := fc.apply(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (fc *fileConfig) apply(cfg *Config) error {
	setString(&cfg.Substrate, fc.Substrate)
	setInt(&cfg.Workers, fc.Workers)
	setInt(&cfg.QueueSize, fc.QueueSize)
	setBool(&cfg.PinWorkers, fc.PinWorkers)
	if fc.TargetLoad != nil {
		cfg.TargetLoad = *fc.TargetLoad
	}
	setInt(&cfg.FallbackConcurrency, fc.FallbackConcurrency)
	setInt(&cfg.MaxConcurrency, fc.MaxConcurrency)
	setBool(&cfg.Threaded, fc.Threaded)
	setInt(&cfg.PoolPerClass, fc.PoolPerClass)

	durations := []struct {
		key string
		src *string
		dst *time.Duration
	}{
		{"decode_time_slice", fc.DecodeTimeSlice, &cfg.DecodeTimeSlice},
		{"poll_wait", fc.PollWait, &cfg.PollWait},
		{"tick_interval", fc.TickInterval, &cfg.TickInterval},
		{"sample_interval", fc.SampleInterval, &cfg.SampleInterval},
	}
	for _, d := range durations {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("parse config %s: %w", d.key, err)
		}
		*d.dst = v
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
