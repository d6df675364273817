package app

import (
	"context"
	"sync"
	"time"

	"github.com/NodePath81/linewatch/internal/config"
	"github.com/NodePath81/linewatch/internal/control"
	"github.com/NodePath81/linewatch/internal/history"
	"github.com/NodePath81/linewatch/internal/monitor"
	"github.com/NodePath81/linewatch/internal/probe"
	"github.com/NodePath81/linewatch/internal/resolver"
	"github.com/NodePath81/linewatch/internal/sample"
	"github.com/NodePath81/linewatch/internal/store"
	"github.com/NodePath81/linewatch/internal/throughput"
	"github.com/NodePath81/linewatch/internal/util"
)

const sinkBuffer = 256

// Runtime wires the engine for one session: probes, recorder, monitor,
// persistence sinks and the control server.
type Runtime struct {
	cfg      config.Config
	ctx      context.Context
	cancel   context.CancelFunc
	logger   util.Logger
	recorder *history.Recorder
	monitor  *monitor.Monitor
	control  *control.Server
	journal  *store.Journal
	archive  *store.Archive
	unsub    func()
	wg       sync.WaitGroup
}

func NewRuntime(cfg config.Config, logger util.Logger) (*Runtime, error) {
	ctx, cancel := context.WithCancel(context.Background())

	res := resolver.NewResolver(cfg.DNS)
	latencyProbe := probe.New(cfg.Latency, res, logger.With("component", "latency"))
	throughputProbe := throughput.New(cfg.Throughput, logger.With("component", "throughput"))
	recorder := history.NewRecorder(cfg.History.RetainedCapacity(), cfg.History.StatsWindow, logger.With("component", "recorder"))

	mon, err := monitor.New(monitor.Config{
		Recorder:           recorder,
		Logger:             logger.With("component", "monitor"),
		LatencyInterval:    cfg.Latency.Interval.Duration(),
		ThroughputInterval: cfg.Throughput.Interval.Duration(),
		LatencyMeasure: func(ctx context.Context) sample.Sample {
			return sample.FromLatency(latencyProbe.Measure(ctx))
		},
		ThroughputMeasure: func(ctx context.Context) sample.Sample {
			return sample.FromThroughput(throughputProbe.Measure(ctx))
		},
	})
	if err != nil {
		cancel()
		return nil, err
	}

	rt := &Runtime{
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
		recorder: recorder,
		monitor:  mon,
	}
	if cfg.Control.IsEnabled() {
		rt.control = control.NewServer(cfg.Control, recorder, mon, logger.With("component", "control"))
	}
	return rt, nil
}

func (rt *Runtime) Start() error {
	now := time.Now()
	if rt.cfg.Store.JournalDir != "" {
		journal, err := store.NewJournal(rt.cfg.Store.JournalDir, now)
		if err != nil {
			return err
		}
		rt.journal = journal
		rt.logger.Info("journal opened", "path", journal.Path())
	}
	if rt.cfg.Store.SQLitePath != "" {
		archive, err := store.OpenArchive(rt.cfg.Store.SQLitePath)
		if err != nil {
			return err
		}
		rt.archive = archive
		rt.logger.Info("archive opened", "path", rt.cfg.Store.SQLitePath)
	}
	if rt.journal != nil || rt.archive != nil {
		samples, cancel := rt.recorder.Subscribe(sinkBuffer)
		rt.unsub = cancel
		rt.wg.Add(1)
		go rt.persistLoop(samples)
	}

	if rt.control != nil {
		if err := rt.control.Start(rt.ctx); err != nil {
			return err
		}
	}
	return rt.monitor.Start()
}

func (rt *Runtime) persistLoop(samples <-chan sample.Sample) {
	defer rt.wg.Done()
	for s := range samples {
		if rt.journal != nil {
			if err := rt.journal.Write(s); err != nil {
				rt.logger.Error("journal write failed", "error", err)
			}
		}
		if rt.archive != nil {
			if err := rt.archive.Insert(s); err != nil {
				rt.logger.Error("archive insert failed", "error", err)
			}
		}
	}
}

// Stop shuts the engine down in dependency order: no new samples, drain the
// persistence stream, then release files and the control listener.
func (rt *Runtime) Stop() {
	rt.monitor.Stop()
	if rt.unsub != nil {
		rt.unsub()
	}
	rt.wg.Wait()
	rt.cancel()
	if rt.journal != nil {
		if err := rt.journal.Close(); err != nil {
			rt.logger.Error("journal close failed", "error", err)
		}
	}
	if rt.archive != nil {
		if err := rt.archive.Close(); err != nil {
			rt.logger.Error("archive close failed", "error", err)
		}
	}
}

// Recorder exposes the query interface for in-process consumers.
func (rt *Runtime) Recorder() *history.Recorder {
	return rt.recorder
}
