package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/NodePath81/linewatch/internal/sample"
)

func sessionSamples(base time.Time) []sample.Sample {
	return []sample.Sample{
		sample.FromLatency(sample.LatencySample{Taken: base, Target: "8.8.8.8", RTT: 12 * time.Millisecond, OK: true}),
		sample.FromLatency(sample.LatencySample{Taken: base.Add(7 * time.Second), Target: "8.8.8.8", Reason: sample.ReasonTimeout}),
		sample.FromThroughput(sample.ThroughputSample{
			Taken:   base.Add(14 * time.Second),
			BatchID: "batch-1",
			Bytes:   1_000_000,
			Elapsed: 2 * time.Second,
			Sources: []sample.SourceResult{
				{URL: "https://example.com/a", Bytes: 1_000_000, Elapsed: 2 * time.Second, OK: true},
				{URL: "https://example.com/b", Reason: sample.ReasonDNSFailure},
			},
			OK: true,
		}),
	}
}

func TestJournalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 8, 30, 13, 45, 0, 0, time.UTC)
	j, err := NewJournal(dir, start)
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}
	want := filepath.Join(dir, "2026-8-30-13h45m.ltst")
	if j.Path() != want {
		t.Fatalf("Path() = %s, want %s", j.Path(), want)
	}

	samples := sessionSamples(start)
	for _, s := range samples {
		if err := j.Write(s); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	loaded, err := LoadJournal(j.Path())
	if err != nil {
		t.Fatalf("LoadJournal: %v", err)
	}
	if len(loaded) != len(samples) {
		t.Fatalf("loaded %d samples, want %d", len(loaded), len(samples))
	}
	for i, s := range loaded {
		if s.Kind != samples[i].Kind {
			t.Fatalf("sample %d kind = %s, want %s (order preserved)", i, s.Kind, samples[i].Kind)
		}
	}
	if !loaded[1].Latency.Taken.Equal(samples[1].Latency.Taken) {
		t.Fatalf("timestamp not preserved: %v", loaded[1].Latency.Taken)
	}
	if loaded[2].Throughput.Sources[1].Reason != sample.ReasonDNSFailure {
		t.Fatalf("per-source outcome not preserved: %+v", loaded[2].Throughput.Sources[1])
	}
}

func TestLoadJournalRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	j, err := NewJournal(dir, time.Now())
	if err != nil {
		t.Fatalf("NewJournal: %v", err)
	}
	if err := j.Write(sample.Sample{Kind: sample.KindLatency, Latency: &sample.LatencySample{}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	j.Close()

	loaded, err := LoadJournal(j.Path())
	if err != nil {
		t.Fatalf("LoadJournal: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("loaded %d samples", len(loaded))
	}

	f, err := os.OpenFile(j.Path(), os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("reopen journal: %v", err)
	}
	if _, err := f.WriteString("{not json\n"); err != nil {
		t.Fatalf("append garbage: %v", err)
	}
	f.Close()
	if _, err := LoadJournal(j.Path()); err == nil {
		t.Fatal("journal with garbage line accepted")
	}

	if _, err := LoadJournal(filepath.Join(dir, "missing.ltst")); err == nil {
		t.Fatal("missing journal accepted")
	}
}

func TestArchiveInsertAndQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	a, err := OpenArchive(path)
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	defer a.Close()

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	for _, s := range sessionSamples(base) {
		if err := a.Insert(s); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	lat, err := a.QueryRange(sample.KindLatency, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if len(lat) != 2 {
		t.Fatalf("latency rows = %d, want 2", len(lat))
	}
	if !lat[0].Taken().Equal(base) || lat[0].Taken().After(lat[1].Taken()) {
		t.Fatalf("rows out of order: %v, %v", lat[0].Taken(), lat[1].Taken())
	}

	tp, err := a.QueryRange(sample.KindThroughput, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if len(tp) != 1 || tp[0].Throughput.BatchID != "batch-1" {
		t.Fatalf("throughput rows = %+v", tp)
	}

	none, err := a.QueryRange(sample.KindLatency, base.Add(-2*time.Hour), base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("QueryRange: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("out-of-range query returned %d rows", len(none))
	}
}
