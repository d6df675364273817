// Package sample defines the immutable measurement records produced by the
// probes. A sample is created once when a measurement round finishes and is
// never mutated afterwards.
package sample

import (
	"fmt"
	"time"
)

// Kind identifies which probe produced a sample.
type Kind string

const (
	KindLatency    Kind = "latency"
	KindThroughput Kind = "throughput"
)

func (k Kind) Valid() bool {
	return k == KindLatency || k == KindThroughput
}

// FailReason classifies why a measurement attempt produced no value.
type FailReason string

const (
	ReasonNone             FailReason = ""
	ReasonTimeout          FailReason = "timeout"
	ReasonUnreachable      FailReason = "unreachable"
	ReasonPermissionDenied FailReason = "permission_denied"
	ReasonDNSFailure       FailReason = "dns_failure"
	ReasonHTTPStatus       FailReason = "http_status"
	ReasonCanceled         FailReason = "canceled"
)

// LatencySample is one round-trip measurement against a single target.
// Exactly one of RTT or Reason is meaningful, selected by OK.
type LatencySample struct {
	Taken  time.Time     `json:"taken"`
	Target string        `json:"target"`
	RTT    time.Duration `json:"rtt_ns"`
	OK     bool          `json:"ok"`
	Reason FailReason    `json:"reason,omitempty"`
}

// SourceResult is the terminal outcome of one download attempt inside a
// throughput batch. Bytes counts partial data from attempts that timed out
// or errored mid-transfer.
type SourceResult struct {
	URL     string        `json:"url"`
	Bytes   int64         `json:"bytes"`
	Elapsed time.Duration `json:"elapsed_ns"`
	OK      bool          `json:"ok"`
	Reason  FailReason    `json:"reason,omitempty"`
}

// ThroughputSample is the outcome of one parallel download batch. Bytes is
// the sum over all sources, Elapsed the wall-clock duration of the whole
// batch, so the derived rate reflects simultaneous demand rather than any
// single source's best case.
type ThroughputSample struct {
	Taken   time.Time      `json:"taken"`
	BatchID string         `json:"batch_id"`
	Bytes   int64          `json:"bytes"`
	Elapsed time.Duration  `json:"elapsed_ns"`
	Sources []SourceResult `json:"sources"`
	OK      bool           `json:"ok"`
}

// Rate returns the aggregate throughput in bytes per second.
func (s ThroughputSample) Rate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Bytes) / s.Elapsed.Seconds()
}

// Mbits returns the aggregate throughput in megabits per second.
func (s ThroughputSample) Mbits() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Bytes) * 8 / 1e6 / s.Elapsed.Seconds()
}

// Sample is the union of the two sample variants. Exactly one of Latency or
// Throughput is set, selected by Kind; consumers switch on Kind exhaustively.
type Sample struct {
	Kind       Kind              `json:"kind"`
	Latency    *LatencySample    `json:"latency,omitempty"`
	Throughput *ThroughputSample `json:"throughput,omitempty"`
}

func FromLatency(ls LatencySample) Sample {
	return Sample{Kind: KindLatency, Latency: &ls}
}

func FromThroughput(ts ThroughputSample) Sample {
	return Sample{Kind: KindThroughput, Throughput: &ts}
}

// Taken returns the timestamp of the underlying variant.
func (s Sample) Taken() time.Time {
	switch s.Kind {
	case KindLatency:
		if s.Latency != nil {
			return s.Latency.Taken
		}
	case KindThroughput:
		if s.Throughput != nil {
			return s.Throughput.Taken
		}
	}
	return time.Time{}
}

// OK reports whether the underlying measurement succeeded.
func (s Sample) OK() bool {
	switch s.Kind {
	case KindLatency:
		return s.Latency != nil && s.Latency.OK
	case KindThroughput:
		return s.Throughput != nil && s.Throughput.OK
	}
	return false
}

// Value returns the comparable scalar for statistics: RTT in milliseconds for
// latency samples, megabits per second for throughput samples.
func (s Sample) Value() float64 {
	switch s.Kind {
	case KindLatency:
		if s.Latency != nil {
			return float64(s.Latency.RTT.Microseconds()) / 1000.0
		}
	case KindThroughput:
		if s.Throughput != nil {
			return s.Throughput.Mbits()
		}
	}
	return 0
}

// Validate checks that the variant matches the declared kind.
func (s Sample) Validate() error {
	switch s.Kind {
	case KindLatency:
		if s.Latency == nil || s.Throughput != nil {
			return fmt.Errorf("latency sample with mismatched payload")
		}
	case KindThroughput:
		if s.Throughput == nil || s.Latency != nil {
			return fmt.Errorf("throughput sample with mismatched payload")
		}
	default:
		return fmt.Errorf("unknown sample kind %q", s.Kind)
	}
	return nil
}

func (s Sample) String() string {
	switch s.Kind {
	case KindLatency:
		if s.Latency == nil {
			return "latency: <empty>"
		}
		if !s.Latency.OK {
			return fmt.Sprintf("ping %s: %s", s.Latency.Target, s.Latency.Reason)
		}
		return fmt.Sprintf("ping %s: %.2f ms", s.Latency.Target, float64(s.Latency.RTT.Microseconds())/1000.0)
	case KindThroughput:
		if s.Throughput == nil {
			return "throughput: <empty>"
		}
		if !s.Throughput.OK {
			return "download: failed"
		}
		return fmt.Sprintf("download: %.1f Mbit/s", s.Throughput.Mbits())
	}
	return "sample: <unknown kind>"
}
