// Package metrics exposes engine counters and gauges on the Prometheus
// registry served by the control server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SampleCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linewatch_samples_total",
			Help: "Number of recorded samples per probe kind and outcome.",
		},
		[]string{"kind", "outcome"})
	SkippedTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linewatch_skipped_ticks_total",
			Help: "Scheduler ticks skipped because the previous run of the same kind was still outstanding.",
		},
		[]string{"kind"})
	LastRTT = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "linewatch_last_rtt_ms",
			Help: "Round-trip time of the most recent successful latency sample.",
		})
	LastRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "linewatch_last_download_mbits",
			Help: "Aggregate rate of the most recent successful throughput batch.",
		})
	LossRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "linewatch_loss_rate",
			Help: "Fraction of failed samples in the rolling window, per probe kind.",
		},
		[]string{"kind"})
	BatchBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linewatch_download_bytes_total",
			Help: "Total bytes received across all throughput batches.",
		})
)
