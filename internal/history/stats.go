package history

import (
	"math"
	"time"

	"github.com/NodePath81/linewatch/internal/sample"
)

// Stats summarizes the most recent window of one probe kind's samples.
// Latency values are milliseconds, throughput values megabits per second.
type Stats struct {
	Kind      sample.Kind `json:"kind"`
	Window    int         `json:"window"`
	Count     int         `json:"count"`
	Successes int         `json:"successes"`
	Mean      float64     `json:"mean"`
	Variance  float64     `json:"variance"`
	StdDev    float64     `json:"std_dev"`
	Jitter    float64     `json:"jitter"`
	Min       float64     `json:"min"`
	Max       float64     `json:"max"`
	LossRate  float64     `json:"loss_rate"`
	LastTaken time.Time   `json:"last_taken"`
}

type entry struct {
	value float64
	ok    bool
}

// rolling maintains windowed statistics with O(1) amortized updates: Welford
// add/remove for mean and variance, a running sum of consecutive absolute
// differences for jitter, and a loss counter. Min and max come from a scan of
// the retained success values at snapshot time, so only reads pay for them.
type rolling struct {
	window  int
	entries []entry
	head    int
	size    int

	mean float64
	m2   float64
	n    int

	values     []float64
	sumAbsDiff float64

	failures  int
	lastTaken time.Time
}

func newRolling(window int) *rolling {
	return &rolling{
		window:  window,
		entries: make([]entry, window),
	}
}

func (r *rolling) add(value float64, ok bool, taken time.Time) {
	if r.size == r.window {
		r.evictOldest()
	}
	r.entries[(r.head+r.size)%r.window] = entry{value: value, ok: ok}
	r.size++
	r.lastTaken = taken

	if !ok {
		r.failures++
		return
	}
	if len(r.values) > 0 {
		r.sumAbsDiff += math.Abs(value - r.values[len(r.values)-1])
	}
	r.values = append(r.values, value)

	// Welford's incremental mean and M2 update.
	r.n++
	delta := value - r.mean
	r.mean += delta / float64(r.n)
	r.m2 += delta * (value - r.mean)
}

func (r *rolling) evictOldest() {
	e := r.entries[r.head]
	r.head = (r.head + 1) % r.window
	r.size--

	if !e.ok {
		r.failures--
		return
	}
	if len(r.values) > 1 {
		r.sumAbsDiff -= math.Abs(r.values[1] - r.values[0])
	}
	r.values = r.values[1:]

	// Reverse Welford update for the removed value.
	if r.n == 1 {
		r.n, r.mean, r.m2 = 0, 0, 0
		return
	}
	oldMean := (float64(r.n)*r.mean - e.value) / float64(r.n-1)
	r.m2 -= (e.value - r.mean) * (e.value - oldMean)
	if r.m2 < 0 {
		r.m2 = 0
	}
	r.mean = oldMean
	r.n--
}

func (r *rolling) snapshot(kind sample.Kind) Stats {
	s := Stats{
		Kind:      kind,
		Window:    r.window,
		Count:     r.size,
		Successes: r.n,
		LastTaken: r.lastTaken,
	}
	if r.size > 0 {
		s.LossRate = float64(r.failures) / float64(r.size)
	}
	if r.n > 0 {
		s.Mean = r.mean
		s.Min, s.Max = r.values[0], r.values[0]
		for _, v := range r.values {
			if v < s.Min {
				s.Min = v
			}
			if v > s.Max {
				s.Max = v
			}
		}
	}
	if r.n > 1 {
		s.Variance = r.m2 / float64(r.n-1)
		s.StdDev = math.Sqrt(s.Variance)
		s.Jitter = r.sumAbsDiff / float64(r.n-1)
	}
	return s
}
