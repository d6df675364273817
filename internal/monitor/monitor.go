// Package monitor drives the measurement engine: one independent tick loop
// per probe kind, each launching at most one run at a time. A tick that fires
// while the previous run of the same kind is still outstanding is skipped and
// counted, never queued, so a degraded network cannot pile up probe runs.
package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NodePath81/linewatch/internal/history"
	"github.com/NodePath81/linewatch/internal/metrics"
	"github.com/NodePath81/linewatch/internal/sample"
	"github.com/NodePath81/linewatch/internal/util"
	"github.com/jonboulle/clockwork"
)

// ErrAlreadyStarted is returned by Start on a monitor that is running or has
// been stopped; a Monitor instance drives one session.
var ErrAlreadyStarted = errors.New("monitor already started")

type loop struct {
	kind     sample.Kind
	interval time.Duration
	measure  func(ctx context.Context) sample.Sample

	running atomic.Bool
	skipped atomic.Uint64
	lastMu  sync.Mutex
	lastRun time.Time
}

// Monitor owns the two probe cycles. All scheduler state (run flags, skip
// counters) lives on the instance, so independent monitors can coexist in one
// process and in tests.
type Monitor struct {
	clock    clockwork.Clock
	recorder *history.Recorder
	logger   util.Logger

	latency    *loop
	throughput *loop

	started atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status is a point-in-time view of both cycles.
type Status struct {
	Latency    LoopStatus `json:"latency"`
	Throughput LoopStatus `json:"throughput"`
}

type LoopStatus struct {
	Interval time.Duration `json:"interval_ns"`
	Running  bool          `json:"running"`
	Skipped  uint64        `json:"skipped"`
	LastRun  time.Time     `json:"last_run"`
}

// Config wires the monitor. LatencyMeasure and ThroughputMeasure adapt the
// two probes to a uniform sample-producing signature.
type Config struct {
	Clock              clockwork.Clock
	Recorder           *history.Recorder
	Logger             util.Logger
	LatencyInterval    time.Duration
	ThroughputInterval time.Duration
	LatencyMeasure     func(ctx context.Context) sample.Sample
	ThroughputMeasure  func(ctx context.Context) sample.Sample
}

func (cfg Config) validate() error {
	if cfg.Recorder == nil {
		return errors.New("monitor: recorder is required")
	}
	if cfg.LatencyInterval <= 0 || cfg.ThroughputInterval <= 0 {
		return errors.New("monitor: intervals must be positive")
	}
	if cfg.LatencyMeasure == nil || cfg.ThroughputMeasure == nil {
		return errors.New("monitor: both measure functions are required")
	}
	return nil
}

func New(cfg Config) (*Monitor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Monitor{
		clock:    clock,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
		latency: &loop{
			kind:     sample.KindLatency,
			interval: cfg.LatencyInterval,
			measure:  cfg.LatencyMeasure,
		},
		throughput: &loop{
			kind:     sample.KindThroughput,
			interval: cfg.ThroughputInterval,
			measure:  cfg.ThroughputMeasure,
		},
	}, nil
}

// Start launches both tick loops. It returns immediately; probing continues
// until Stop.
func (m *Monitor) Start() error {
	if !m.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(2)
	go m.run(ctx, m.latency)
	go m.run(ctx, m.throughput)
	m.logger.Info("monitor started",
		"latency_interval", m.latency.interval,
		"throughput_interval", m.throughput.interval)
	return nil
}

// Stop cancels both loops and waits for in-flight runs to observe the
// cancellation. No samples are recorded after Stop returns.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
	m.logger.Info("monitor stopped",
		"latency_skipped", m.latency.skipped.Load(),
		"throughput_skipped", m.throughput.skipped.Load())
}

func (m *Monitor) run(ctx context.Context, l *loop) {
	defer m.wg.Done()
	ticker := m.clock.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if !l.running.CompareAndSwap(false, true) {
				l.skipped.Add(1)
				metrics.SkippedTicks.WithLabelValues(string(l.kind)).Inc()
				m.logger.Warn("tick skipped, previous run still outstanding",
					"kind", l.kind, "skipped", l.skipped.Load())
				continue
			}
			m.wg.Add(1)
			go func() {
				defer m.wg.Done()
				defer l.running.Store(false)
				m.runOnce(ctx, l)
			}()
		}
	}
}

func (m *Monitor) runOnce(ctx context.Context, l *loop) {
	s := l.measure(ctx)
	// A run cut short by Stop does not produce a sample.
	if ctx.Err() != nil {
		return
	}
	l.lastMu.Lock()
	l.lastRun = m.clock.Now()
	l.lastMu.Unlock()

	if err := m.recorder.Record(s); err != nil {
		m.logger.Error("record failed", "kind", l.kind, "error", err)
		return
	}
	m.observe(s)
}

func (m *Monitor) observe(s sample.Sample) {
	outcome := "failure"
	if s.OK() {
		outcome = "success"
	}
	metrics.SampleCount.WithLabelValues(string(s.Kind), outcome).Inc()
	switch s.Kind {
	case sample.KindLatency:
		if s.OK() {
			metrics.LastRTT.Set(s.Value())
		}
	case sample.KindThroughput:
		if s.OK() {
			metrics.LastRate.Set(s.Value())
		}
		if s.Throughput != nil {
			metrics.BatchBytes.Add(float64(s.Throughput.Bytes))
		}
	}
	if stats, err := m.recorder.Stats(s.Kind); err == nil {
		metrics.LossRate.WithLabelValues(string(s.Kind)).Set(stats.LossRate)
	}
}

// Status reports run flags, skip counters and last completion times.
func (m *Monitor) Status() Status {
	return Status{
		Latency:    m.loopStatus(m.latency),
		Throughput: m.loopStatus(m.throughput),
	}
}

func (m *Monitor) loopStatus(l *loop) LoopStatus {
	l.lastMu.Lock()
	last := l.lastRun
	l.lastMu.Unlock()
	return LoopStatus{
		Interval: l.interval,
		Running:  l.running.Load(),
		Skipped:  l.skipped.Load(),
		LastRun:  last,
	}
}
