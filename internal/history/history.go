// Package history is the aggregation core: it retains ordered per-kind sample
// histories with FIFO eviction and maintains rolling statistics incrementally
// so recording cost stays flat as the history grows.
package history

import (
	"time"

	"github.com/NodePath81/linewatch/internal/sample"
)

// History is an insertion-ordered sequence of samples of one kind with an
// optional capacity. When full, the oldest sample is evicted first. Not safe
// for concurrent use; the Recorder serializes access per kind.
type History struct {
	buf      []sample.Sample
	head     int
	size     int
	capacity int
}

// NewHistory creates a history retaining at most capacity samples; capacity 0
// means unbounded.
func NewHistory(capacity int) *History {
	h := &History{capacity: capacity}
	if capacity > 0 {
		h.buf = make([]sample.Sample, capacity)
	}
	return h
}

// Append adds s, evicting the oldest sample when at capacity. It returns the
// evicted sample and whether an eviction happened.
func (h *History) Append(s sample.Sample) (sample.Sample, bool) {
	if h.capacity == 0 {
		h.buf = append(h.buf, s)
		h.size++
		return sample.Sample{}, false
	}
	if h.size < h.capacity {
		h.buf[(h.head+h.size)%h.capacity] = s
		h.size++
		return sample.Sample{}, false
	}
	evicted := h.buf[h.head]
	h.buf[h.head] = s
	h.head = (h.head + 1) % h.capacity
	return evicted, true
}

func (h *History) Len() int {
	return h.size
}

// Tail returns a copy of the newest n samples in insertion order; n <= 0
// returns everything.
func (h *History) Tail(n int) []sample.Sample {
	if n <= 0 || n > h.size {
		n = h.size
	}
	out := make([]sample.Sample, n)
	for i := 0; i < n; i++ {
		out[i] = h.at(h.size - n + i)
	}
	return out
}

// Since returns a copy of all samples taken at or after t, in insertion order.
func (h *History) Since(t time.Time) []sample.Sample {
	// Timestamps are non-decreasing per kind, so binary search would do;
	// a linear scan from the tail keeps this obvious and the windows small.
	var n int
	for i := h.size - 1; i >= 0; i-- {
		if h.at(i).Taken().Before(t) {
			break
		}
		n++
	}
	return h.Tail(n)
}

func (h *History) at(i int) sample.Sample {
	if h.capacity == 0 {
		return h.buf[i]
	}
	return h.buf[(h.head+i)%h.capacity]
}
