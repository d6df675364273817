package history

import (
	"math"
	"testing"
	"time"

	"github.com/NodePath81/linewatch/internal/sample"
)

func directStats(values []float64) (mean, variance float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))
	if len(values) < 2 {
		return mean, 0
	}
	var m2 float64
	for _, v := range values {
		m2 += (v - mean) * (v - mean)
	}
	return mean, m2 / float64(len(values)-1)
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRollingMatchesDirectComputation(t *testing.T) {
	// Push more values than the window holds; the incremental add/remove
	// updates must agree with a from-scratch computation over the window.
	values := []float64{12, 40, 7.5, 22, 19, 30.25, 3, 41, 18, 27, 11, 9.75}
	const window = 5

	r := newRolling(window)
	base := time.Unix(1000, 0)
	for i, v := range values {
		r.add(v, true, base.Add(time.Duration(i)*time.Second))
	}
	s := r.snapshot(sample.KindLatency)

	tail := values[len(values)-window:]
	wantMean, wantVar := directStats(tail)
	if !approxEqual(s.Mean, wantMean) {
		t.Fatalf("Mean = %v, want %v", s.Mean, wantMean)
	}
	if !approxEqual(s.Variance, wantVar) {
		t.Fatalf("Variance = %v, want %v", s.Variance, wantVar)
	}

	wantMin, wantMax := tail[0], tail[0]
	var wantJitter float64
	for i, v := range tail {
		wantMin = math.Min(wantMin, v)
		wantMax = math.Max(wantMax, v)
		if i > 0 {
			wantJitter += math.Abs(v - tail[i-1])
		}
	}
	wantJitter /= float64(window - 1)
	if s.Min != wantMin || s.Max != wantMax {
		t.Fatalf("Min/Max = %v/%v, want %v/%v", s.Min, s.Max, wantMin, wantMax)
	}
	if !approxEqual(s.Jitter, wantJitter) {
		t.Fatalf("Jitter = %v, want %v", s.Jitter, wantJitter)
	}
}

func TestRollingLossRate(t *testing.T) {
	r := newRolling(4)
	base := time.Unix(1000, 0)
	r.add(10, true, base)
	r.add(0, false, base.Add(time.Second))
	r.add(12, true, base.Add(2*time.Second))
	r.add(0, false, base.Add(3*time.Second))

	s := r.snapshot(sample.KindLatency)
	if s.Count != 4 || s.Successes != 2 {
		t.Fatalf("Count/Successes = %d/%d, want 4/2", s.Count, s.Successes)
	}
	if s.LossRate != 0.5 {
		t.Fatalf("LossRate = %v, want 0.5", s.LossRate)
	}

	// Enough successes push both failures out of the window.
	r.add(14, true, base.Add(4*time.Second))
	r.add(16, true, base.Add(5*time.Second))
	r.add(18, true, base.Add(6*time.Second))
	r.add(20, true, base.Add(7*time.Second))
	s = r.snapshot(sample.KindLatency)
	if s.LossRate != 0 {
		t.Fatalf("LossRate after recovery = %v, want 0", s.LossRate)
	}
	if s.Successes != 4 {
		t.Fatalf("Successes = %d, want 4", s.Successes)
	}
}

func TestRollingAllFailures(t *testing.T) {
	r := newRolling(3)
	base := time.Unix(1000, 0)
	for i := 0; i < 3; i++ {
		r.add(0, false, base.Add(time.Duration(i)*time.Second))
	}
	s := r.snapshot(sample.KindThroughput)
	if s.LossRate != 1 {
		t.Fatalf("LossRate = %v, want 1", s.LossRate)
	}
	if s.Mean != 0 || s.Variance != 0 {
		t.Fatalf("all-failure stats not zeroed: mean=%v var=%v", s.Mean, s.Variance)
	}
	if s.LastTaken != base.Add(2*time.Second) {
		t.Fatalf("LastTaken = %v", s.LastTaken)
	}
}

func TestRollingSingleValue(t *testing.T) {
	r := newRolling(5)
	r.add(42, true, time.Unix(1000, 0))
	s := r.snapshot(sample.KindLatency)
	if s.Mean != 42 || s.Min != 42 || s.Max != 42 {
		t.Fatalf("single value stats wrong: %+v", s)
	}
	if s.Variance != 0 || s.Jitter != 0 {
		t.Fatalf("single value must have zero spread: %+v", s)
	}
}
