// File: facade/decode_thread.go
// Unified facade over the adaptive decode pool.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// DecodeThread aggregates the pending queue, load-adaptive admission policy,
// execution substrate, pixel pool and control plane behind one type. The
// owner goroutine calls Tick periodically (or lets Start run the loop);
// decodes run on the substrate and each submission's Responder is called
// exactly once.

package facade

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-decode/adapters"
	"github.com/momentics/hioload-decode/api"
	"github.com/momentics/hioload-decode/control"
	"github.com/momentics/hioload-decode/internal/concurrency"
	"github.com/momentics/hioload-decode/internal/decode"
	"github.com/momentics/hioload-decode/internal/scheduler"
	"github.com/momentics/hioload-decode/pool"
)

// Runtime-adjustable keys in the Control config store.
const (
	KeyTargetLoad     = "decode.target_load"
	KeyMaxConcurrency = "decode.max_concurrency"
	KeyTimeSlice      = "decode.time_slice"
)

// Metric keys published through Control.
const (
	MetricSubmitted = "decode.submitted"
	MetricCompleted = "decode.completed"
	MetricSucceeded = "decode.succeeded"
	MetricFailed    = "decode.failed"
	MetricPending   = "decode.pending"
	MetricInFlight  = "decode.in_flight"
	MetricBudget    = "decode.budget"
)

// Option customizes collaborators of a DecodeThread.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	sampler   api.LoadSampler
	pool      api.BytePool
	substrate api.Substrate
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSampler replaces the host load sampler.
func WithSampler(s api.LoadSampler) Option {
	return func(o *options) { o.sampler = s }
}

// WithPool replaces the pixel buffer pool.
func WithPool(p api.BytePool) Option {
	return func(o *options) { o.pool = p }
}

// WithSubstrate runs decodes on s instead of the one named by
// Config.Substrate. The DecodeThread takes ownership of s.
func WithSubstrate(s api.Substrate) Option {
	return func(o *options) { o.substrate = s }
}

// DecodeThread is the decode pool facade. Submit, PendingCount, QueuedCount
// and Stats are safe from any goroutine. Tick is serialized internally.
// Responders run either on the goroutine calling Tick (futures substrate)
// or on a worker (executor substrate); they may Submit but must not call
// Tick or Shutdown.
type DecodeThread struct {
	cfg       *Config
	log       *slog.Logger
	pool      api.BytePool
	sampler   api.LoadSampler
	policy    *scheduler.Policy
	pending   *scheduler.Scheduler
	substrate api.Substrate
	control   *adapters.ControlAdapter

	admitMu sync.Mutex // orders Submit against Shutdown
	closed  bool

	tickMu sync.Mutex

	nextHandle atomic.Uint64
	timeSlice  atomic.Int64
	budget     atomic.Int64
	submitted  atomic.Int64
	completed  atomic.Int64
	succeeded  atomic.Int64
	failed     atomic.Int64
	startedAt  time.Time

	loopMu   sync.Mutex
	cancel   context.CancelFunc
	loopDone chan struct{}
}

// Ensure compliance with api.GracefulShutdown.
var _ api.GracefulShutdown = (*DecodeThread)(nil)

// New builds a DecodeThread from cfg (nil means DefaultConfig). With
// cfg.Threaded the owner loop is started immediately.
func New(cfg *Config, opts ...Option) (*DecodeThread, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.sampler == nil {
		o.sampler = concurrency.NewCachedSampler(concurrency.NewHostSampler(), cfg.SampleInterval)
	}
	if o.pool == nil {
		if cfg.PoolPerClass > 0 {
			o.pool = pool.NewSlabPool(cfg.PoolPerClass)
		} else {
			o.pool = pool.Default()
		}
	}

	d := &DecodeThread{
		cfg:     cfg,
		log:     o.logger.With(slog.String("component", "decode")),
		pool:    o.pool,
		sampler: o.sampler,
		pending: scheduler.New(),
		control: adapters.NewControlAdapter(o.sampler),
		policy: scheduler.NewPolicy(o.sampler,
			scheduler.WithTargetLoad(cfg.TargetLoad),
			scheduler.WithFallbackLimit(cfg.FallbackConcurrency),
			scheduler.WithMaxConcurrency(cfg.MaxConcurrency)),
		startedAt: time.Now(),
	}
	d.timeSlice.Store(int64(cfg.DecodeTimeSlice))

	if o.substrate != nil {
		d.substrate = o.substrate
	} else {
		sub, err := newSubstrate(cfg)
		if err != nil {
			return nil, err
		}
		d.substrate = sub
	}

	// Expose runtime knobs via Control for observability and hot-reload.
	d.control.SetConfig(map[string]any{
		KeyTargetLoad:     cfg.TargetLoad,
		KeyMaxConcurrency: cfg.MaxConcurrency,
		KeyTimeSlice:      cfg.DecodeTimeSlice,
		"decode.substrate": cfg.Substrate,
	})
	d.control.OnReload(d.reload)
	d.control.RegisterDebugProbe("decode.queued", func() any { return d.QueuedCount() })
	d.control.RegisterDebugProbe("decode.target_load", func() any { return d.policy.TargetLoad() })
	if st, ok := d.substrate.(interface{ Stats() map[string]int64 }); ok {
		d.control.RegisterDebugProbe("decode.executor", func() any { return st.Stats() })
	}

	d.log.Info("decode pool ready",
		slog.String("substrate", cfg.Substrate),
		slog.Float64("target_load", cfg.TargetLoad),
		slog.Bool("threaded", cfg.Threaded))

	if cfg.Threaded {
		if err := d.Start(context.Background()); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func newSubstrate(cfg *Config) (api.Substrate, error) {
	switch cfg.Substrate {
	case SubstrateFutures:
		return adapters.NewFuturesSubstrate(cfg.PollWait), nil
	case SubstrateExecutor:
		return adapters.NewExecutorSubstrate(concurrency.ExecutorOptions{
			Workers:    cfg.Workers,
			QueueSize:  cfg.QueueSize,
			PinWorkers: cfg.PinWorkers,
		}), nil
	}
	return nil, fmt.Errorf("substrate %q: %w", cfg.Substrate, api.ErrInvalidConfig)
}

// Submit queues img for decoding and returns a non-zero handle. discard >= 0
// selects a discard level; a negative value keeps the image's own. After
// Shutdown the request is dropped and NullHandle returned; the responder is
// not called.
func (d *DecodeThread) Submit(img api.FormattedImage, discard int, needsAux bool, responder api.Responder) api.Handle {
	d.admitMu.Lock()
	defer d.admitMu.Unlock()
	if d.closed {
		d.log.Debug("submit after shutdown dropped")
		return api.NullHandle
	}
	h := d.handle()
	d.pending.Add(scheduler.Entry{
		Handle:    h,
		Image:     img,
		Discard:   discard,
		NeedsAux:  needsAux,
		Responder: responder,
	})
	d.submitted.Add(1)
	d.control.AddMetric(MetricSubmitted, 1)
	return h
}

// handle returns the next non-zero counter value. Values repeat after
// wrap-around.
func (d *DecodeThread) handle() api.Handle {
	for {
		if h := api.Handle(d.nextHandle.Add(1)); h.Valid() {
			return h
		}
	}
}

// Tick harvests finished work, recomputes the concurrency budget and starts
// pending submissions up to it. maxTime bounds the time spent polling
// in-flight work; zero polls everything. It returns PendingCount.
func (d *DecodeThread) Tick(maxTime time.Duration) int {
	d.tickMu.Lock()
	defer d.tickMu.Unlock()

	var deadline time.Time
	if maxTime > 0 {
		deadline = time.Now().Add(maxTime)
	}
	d.substrate.Harvest(deadline)

	if !d.isClosed() {
		running := d.substrate.InFlight()
		budget := d.policy.Budget(running)
		d.budget.Store(int64(budget))
		if sc, ok := d.substrate.(interface{ Scale(int) }); ok {
			sc.Scale(budget)
		}
		n, err := d.pending.Promote(running, budget, d.launch)
		if n > 0 {
			d.log.Debug("promoted", slog.Int("count", n), slog.Int("budget", budget))
		}
		if err != nil {
			d.log.Debug("promotion deferred", slog.Int("queued", d.pending.Len()), slog.Any("error", err))
		}
	}

	queued, inFlight := d.pending.Len(), d.substrate.InFlight()
	d.control.SetMetric(MetricPending, queued)
	d.control.SetMetric(MetricInFlight, inFlight)
	d.control.SetMetric(MetricBudget, int(d.budget.Load()))
	return queued + inFlight
}

// launch turns a pending entry into a job on the substrate. A closed
// substrate completes the job as a failure and consumes the entry; any other
// refusal leaves the entry queued for a later tick.
func (d *DecodeThread) launch(e scheduler.Entry) error {
	job := d.job(e)
	err := d.substrate.Launch(job)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, api.ErrSubstrateClosed):
		d.log.Warn("launch failed",
			slog.Uint64("handle", uint64(e.Handle)), slog.Any("error", err))
		job.Finish(false)
		return nil
	}
	return err
}

func (d *DecodeThread) job(e scheduler.Entry) *decode.Job {
	return decode.New(decode.Params{
		Handle:    e.Handle,
		Source:    e.Image,
		Discard:   e.Discard,
		NeedsAux:  e.NeedsAux,
		Responder: e.Responder,
		TimeSlice: time.Duration(d.timeSlice.Load()),
		Pool:      d.pool,
		Logger:    d.log,
		OnFinish:  d.finished,
	})
}

func (d *DecodeThread) finished(success bool) {
	d.completed.Add(1)
	d.control.AddMetric(MetricCompleted, 1)
	if success {
		d.succeeded.Add(1)
		d.control.AddMetric(MetricSucceeded, 1)
	} else {
		d.failed.Add(1)
		d.control.AddMetric(MetricFailed, 1)
	}
}

// PendingCount returns submissions not yet completed: queued plus running.
func (d *DecodeThread) PendingCount() int {
	return d.pending.Len() + d.substrate.InFlight()
}

// QueuedCount returns submissions not yet started.
func (d *DecodeThread) QueuedCount() int {
	return d.pending.Len()
}

// Shutdown stops admissions, completes never-started submissions with
// success=false and closes the substrate. Work already running still
// completes: on the executor substrate by itself, on the futures substrate
// through later Tick calls, which the owner loop keeps making until nothing
// is left in flight. Calling Shutdown again is a no-op.
func (d *DecodeThread) Shutdown() error {
	d.admitMu.Lock()
	if d.closed {
		d.admitMu.Unlock()
		return nil
	}
	d.closed = true
	d.admitMu.Unlock()

	d.tickMu.Lock()
	drained := d.pending.Drain()
	d.substrate.Close()
	d.tickMu.Unlock()

	for _, e := range drained {
		d.job(e).Finish(false)
	}
	d.log.Info("decode pool shut down",
		slog.Int("abandoned", len(drained)),
		slog.Int("in_flight", d.substrate.InFlight()))
	return nil
}

// Start runs the owner loop on its own goroutine until ctx is done or
// Shutdown is called. Calling Start while the loop runs is a no-op.
func (d *DecodeThread) Start(ctx context.Context) error {
	if d.isClosed() {
		return api.ErrPoolClosed
	}

	d.loopMu.Lock()
	defer d.loopMu.Unlock()
	if d.loopDone != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	d.cancel, d.loopDone = cancel, done
	go func() {
		defer close(done)
		d.Run(ctx)
		d.loopMu.Lock()
		if d.loopDone == done {
			d.cancel, d.loopDone = nil, nil
		}
		d.loopMu.Unlock()
		cancel()
	}()
	return nil
}

// Run ticks every TickInterval until ctx is done. After Shutdown it keeps
// ticking until in-flight work has drained.
func (d *DecodeThread) Run(ctx context.Context) {
	interval := d.cfg.TickInterval
	if interval <= 0 {
		interval = DefaultConfig().TickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if d.Tick(interval) == 0 && d.isClosed() {
				return
			}
		}
	}
}

// Stop ends the owner loop started by Start and waits for it to exit.
// Submissions stay queued for explicit Tick calls.
func (d *DecodeThread) Stop() {
	d.loopMu.Lock()
	cancel, done := d.cancel, d.loopDone
	d.loopMu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (d *DecodeThread) isClosed() bool {
	d.admitMu.Lock()
	defer d.admitMu.Unlock()
	return d.closed
}

// reload applies runtime-adjustable keys from Control.
func (d *DecodeThread) reload() {
	cfg := d.control.GetConfig()
	if v, ok := control.Float(cfg, KeyTargetLoad); ok && v > 0 && v != d.policy.TargetLoad() {
		d.policy.SetTargetLoad(v)
		d.log.Info("target load changed", slog.Float64("target_load", v))
	}
	if v, ok := control.Int(cfg, KeyMaxConcurrency); ok && v >= 0 {
		d.policy.SetMaxConcurrency(v)
	}
	if v, ok := control.Duration(cfg, KeyTimeSlice); ok && v >= 0 {
		d.timeSlice.Store(int64(v))
	}
}

// Stats returns a snapshot of pool activity.
func (d *DecodeThread) Stats() api.PoolStats {
	return api.PoolStats{
		Submitted: d.submitted.Load(),
		Completed: d.completed.Load(),
		Succeeded: d.succeeded.Load(),
		Failed:    d.failed.Load(),
		Queued:    d.pending.Len(),
		InFlight:  d.substrate.InFlight(),
		Budget:    int(d.budget.Load()),
		StartedAt: d.startedAt,
	}
}

// Control returns the Control interface for dynamic config and metrics.
func (d *DecodeThread) Control() api.Control {
	return d.control
}

// Pool returns the pixel buffer pool decodes allocate from.
func (d *DecodeThread) Pool() api.BytePool {
	return d.pool
}
