package history

import (
	"time"

	"github.com/NodePath81/linewatch/internal/sample"
)

// Session evaluation over a recorded sample sequence, used by the report
// command and by anything replaying a persisted journal.

// MeanDownloadMbits averages the aggregate rate over all throughput samples;
// failed batches count as zero, matching their measured contribution.
func MeanDownloadMbits(samples []sample.Sample) float64 {
	var sum float64
	var count int
	for _, s := range samples {
		if s.Kind != sample.KindThroughput || s.Throughput == nil {
			continue
		}
		count++
		if s.Throughput.OK {
			sum += s.Throughput.Mbits()
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// MeanLatency averages round-trip time over successful latency samples only.
func MeanLatency(samples []sample.Sample) time.Duration {
	var sum time.Duration
	var count int
	for _, s := range samples {
		if s.Kind != sample.KindLatency || s.Latency == nil || !s.Latency.OK {
			continue
		}
		sum += s.Latency.RTT
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / time.Duration(count)
}

// Timeouts counts failed latency samples.
func Timeouts(samples []sample.Sample) int {
	var count int
	for _, s := range samples {
		if s.Kind == sample.KindLatency && s.Latency != nil && !s.Latency.OK {
			count++
		}
	}
	return count
}

// TimeoutFraction is Timeouts over the total sample count, 0 for perfect
// availability and 1 for complete loss.
func TimeoutFraction(samples []sample.Sample) float64 {
	if len(samples) == 0 {
		return 0
	}
	return float64(Timeouts(samples)) / float64(len(samples))
}

// SessionDuration is the span from the first to the last sample.
func SessionDuration(samples []sample.Sample) time.Duration {
	if len(samples) < 2 {
		return 0
	}
	first := samples[0].Taken()
	last := samples[len(samples)-1].Taken()
	if last.Before(first) {
		return 0
	}
	return last.Sub(first)
}
