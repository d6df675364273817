package history

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/NodePath81/linewatch/internal/sample"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecorderRejectsCorruptSamples(t *testing.T) {
	r := NewRecorder(10, 5, testLogger())
	err := r.Record(sample.Sample{Kind: sample.Kind("bogus")})
	if !errors.Is(err, ErrCorrupted) {
		t.Fatalf("Record(bogus kind) = %v, want ErrCorrupted", err)
	}
	err = r.Record(sample.Sample{Kind: sample.KindLatency})
	if !errors.Is(err, ErrCorrupted) {
		t.Fatalf("Record(empty payload) = %v, want ErrCorrupted", err)
	}
}

func TestRecorderConcurrentKinds(t *testing.T) {
	// Both kinds record concurrently; each kind's sequence must stay complete
	// and internally ordered.
	r := NewRecorder(0, 10, testLogger())
	const n = 500
	base := time.Unix(1000, 0)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			s := sample.FromLatency(sample.LatencySample{
				Taken:  base.Add(time.Duration(i) * time.Millisecond),
				Target: fmt.Sprintf("l%d", i),
				RTT:    time.Millisecond,
				OK:     true,
			})
			if err := r.Record(s); err != nil {
				t.Errorf("latency record %d: %v", i, err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			s := sample.FromThroughput(sample.ThroughputSample{
				Taken:   base.Add(time.Duration(i) * time.Millisecond),
				BatchID: fmt.Sprintf("b%d", i),
				Bytes:   int64(i),
				Elapsed: time.Second,
				OK:      i > 0,
			})
			if err := r.Record(s); err != nil {
				t.Errorf("throughput record %d: %v", i, err)
				return
			}
		}
	}()
	wg.Wait()

	lat, err := r.Query(sample.KindLatency, 0)
	if err != nil {
		t.Fatalf("Query(latency): %v", err)
	}
	if len(lat) != n {
		t.Fatalf("latency history has %d samples, want %d", len(lat), n)
	}
	for i, s := range lat {
		if s.Latency.Target != fmt.Sprintf("l%d", i) {
			t.Fatalf("latency[%d] = %s, out of order", i, s.Latency.Target)
		}
	}
	tp, err := r.Query(sample.KindThroughput, 0)
	if err != nil {
		t.Fatalf("Query(throughput): %v", err)
	}
	if len(tp) != n {
		t.Fatalf("throughput history has %d samples, want %d", len(tp), n)
	}
	for i, s := range tp {
		if s.Throughput.BatchID != fmt.Sprintf("b%d", i) {
			t.Fatalf("throughput[%d] = %s, out of order", i, s.Throughput.BatchID)
		}
	}
}

func TestRecorderStatsPerKind(t *testing.T) {
	r := NewRecorder(10, 5, testLogger())
	base := time.Unix(1000, 0)
	r.Record(sample.FromLatency(sample.LatencySample{Taken: base, Target: "t", RTT: 10 * time.Millisecond, OK: true}))
	r.Record(sample.FromLatency(sample.LatencySample{Taken: base.Add(time.Second), Target: "t", Reason: sample.ReasonTimeout}))
	r.Record(sample.FromThroughput(sample.ThroughputSample{Taken: base, Bytes: 1_000_000, Elapsed: time.Second, OK: true}))

	lat, err := r.Stats(sample.KindLatency)
	if err != nil {
		t.Fatalf("Stats(latency): %v", err)
	}
	if lat.Count != 2 || lat.LossRate != 0.5 || lat.Mean != 10 {
		t.Fatalf("latency stats = %+v", lat)
	}
	tp, err := r.Stats(sample.KindThroughput)
	if err != nil {
		t.Fatalf("Stats(throughput): %v", err)
	}
	if tp.Count != 1 || tp.LossRate != 0 || tp.Mean != 8 {
		t.Fatalf("throughput stats = %+v", tp)
	}
}

func TestRecorderCapacityBound(t *testing.T) {
	r := NewRecorder(3, 3, testLogger())
	base := time.Unix(1000, 0)
	for i := 0; i < 7; i++ {
		r.Record(sample.FromLatency(sample.LatencySample{
			Taken:  base.Add(time.Duration(i) * time.Second),
			Target: fmt.Sprintf("t%d", i),
			RTT:    time.Millisecond,
			OK:     true,
		}))
	}
	if got := r.Len(sample.KindLatency); got != 3 {
		t.Fatalf("Len = %d, want 3", got)
	}
	samples, _ := r.Query(sample.KindLatency, 0)
	if samples[0].Latency.Target != "t4" {
		t.Fatalf("oldest retained = %s, want t4", samples[0].Latency.Target)
	}
}

func TestRecorderSubscribe(t *testing.T) {
	r := NewRecorder(10, 5, testLogger())
	ch, cancel := r.Subscribe(4)
	defer cancel()

	s := sample.FromLatency(sample.LatencySample{Taken: time.Unix(1000, 0), Target: "t", RTT: time.Millisecond, OK: true})
	if err := r.Record(s); err != nil {
		t.Fatalf("Record: %v", err)
	}
	select {
	case got := <-ch:
		if got.Kind != sample.KindLatency {
			t.Fatalf("subscriber got kind %s", got.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the sample")
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after cancel")
	}
	// Recording after cancel must not panic or block.
	if err := r.Record(s); err != nil {
		t.Fatalf("Record after cancel: %v", err)
	}
}

func TestRecorderQuerySince(t *testing.T) {
	r := NewRecorder(10, 5, testLogger())
	base := time.Unix(1000, 0)
	for i := 0; i < 5; i++ {
		r.Record(sample.FromLatency(sample.LatencySample{
			Taken:  base.Add(time.Duration(i) * time.Second),
			Target: "t",
			RTT:    time.Millisecond,
			OK:     true,
		}))
	}
	got, err := r.QuerySince(sample.KindLatency, base.Add(3*time.Second))
	if err != nil {
		t.Fatalf("QuerySince: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("QuerySince returned %d samples, want 2", len(got))
	}
}
