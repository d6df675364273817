package sample

import (
	"testing"
	"time"
)

func TestThroughputAggregateRate(t *testing.T) {
	// 10MB + 15MB succeed, one source times out at zero bytes: the batch is
	// a success and the rate covers the full wall-clock window.
	s := ThroughputSample{
		Taken:   time.Now(),
		Bytes:   25_000_000,
		Elapsed: 5 * time.Second,
		Sources: []SourceResult{
			{URL: "a", Bytes: 10_000_000, OK: true},
			{URL: "b", Bytes: 15_000_000, OK: true},
			{URL: "c", Bytes: 0, Reason: ReasonTimeout},
		},
		OK: true,
	}
	if got := s.Rate(); got != 5_000_000 {
		t.Fatalf("Rate() = %v, want 5000000", got)
	}
	if got := s.Mbits(); got != 40 {
		t.Fatalf("Mbits() = %v, want 40", got)
	}
}

func TestThroughputZeroElapsed(t *testing.T) {
	s := ThroughputSample{Bytes: 100}
	if s.Rate() != 0 || s.Mbits() != 0 {
		t.Fatalf("zero elapsed must yield zero rate, got %v / %v", s.Rate(), s.Mbits())
	}
}

func TestSampleValidate(t *testing.T) {
	ls := LatencySample{Taken: time.Now(), Target: "8.8.8.8", RTT: 20 * time.Millisecond, OK: true}
	good := FromLatency(ls)
	if err := good.Validate(); err != nil {
		t.Fatalf("valid latency sample rejected: %v", err)
	}

	bad := Sample{Kind: KindLatency}
	if err := bad.Validate(); err == nil {
		t.Fatal("latency sample without payload accepted")
	}
	mixed := Sample{Kind: KindThroughput, Latency: &ls, Throughput: &ThroughputSample{}}
	if err := mixed.Validate(); err == nil {
		t.Fatal("sample with both payloads accepted")
	}
	unknown := Sample{Kind: Kind("weird")}
	if err := unknown.Validate(); err == nil {
		t.Fatal("unknown kind accepted")
	}
}

func TestSampleValue(t *testing.T) {
	ls := FromLatency(LatencySample{RTT: 12500 * time.Microsecond, OK: true})
	if got := ls.Value(); got != 12.5 {
		t.Fatalf("latency Value() = %v, want 12.5", got)
	}
	ts := FromThroughput(ThroughputSample{Bytes: 1_000_000, Elapsed: time.Second, OK: true})
	if got := ts.Value(); got != 8 {
		t.Fatalf("throughput Value() = %v, want 8", got)
	}
}

func TestSampleString(t *testing.T) {
	ok := FromLatency(LatencySample{Target: "8.8.8.8", RTT: 20 * time.Millisecond, OK: true})
	if got := ok.String(); got != "ping 8.8.8.8: 20.00 ms" {
		t.Fatalf("String() = %q", got)
	}
	failed := FromLatency(LatencySample{Target: "8.8.8.8", Reason: ReasonTimeout})
	if got := failed.String(); got != "ping 8.8.8.8: timeout" {
		t.Fatalf("String() = %q", got)
	}
}
