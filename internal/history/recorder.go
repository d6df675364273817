package history

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NodePath81/linewatch/internal/sample"
	"github.com/NodePath81/linewatch/internal/util"
)

// ErrCorrupted marks aggregation-state defects: a sample whose payload does
// not match its kind, or an unknown kind. These are programming errors, not
// network conditions, and surface as hard failures.
var ErrCorrupted = errors.New("aggregation state corrupted")

type kindState struct {
	mu      sync.Mutex
	history *History
	stats   *rolling
}

// Recorder owns both per-kind histories and their rolling statistics. Each
// kind has its own lock, so latency and throughput recording never contend,
// and reads return copies rather than views into mutable state.
type Recorder struct {
	latency    kindState
	throughput kindState
	logger     util.Logger

	subMu   sync.Mutex
	subs    map[int]chan sample.Sample
	nextSub int
}

func NewRecorder(capacity, statsWindow int, logger util.Logger) *Recorder {
	return &Recorder{
		latency:    kindState{history: NewHistory(capacity), stats: newRolling(statsWindow)},
		throughput: kindState{history: NewHistory(capacity), stats: newRolling(statsWindow)},
		logger:     logger,
		subs:       make(map[int]chan sample.Sample),
	}
}

func (r *Recorder) state(kind sample.Kind) (*kindState, error) {
	switch kind {
	case sample.KindLatency:
		return &r.latency, nil
	case sample.KindThroughput:
		return &r.throughput, nil
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrCorrupted, kind)
}

// Record appends s to its kind's history, applies eviction, and updates the
// rolling statistics. Safe for concurrent use across kinds; within a kind the
// caller (one scheduler loop per kind) already serializes, and the lock keeps
// readers consistent.
func (r *Recorder) Record(s sample.Sample) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	st, err := r.state(s.Kind)
	if err != nil {
		return err
	}
	st.mu.Lock()
	st.history.Append(s)
	st.stats.add(s.Value(), s.OK(), s.Taken())
	st.mu.Unlock()

	r.publish(s)
	return nil
}

// Query returns a copy of the newest `window` samples of the given kind in
// insertion order; window <= 0 returns the full retained history.
func (r *Recorder) Query(kind sample.Kind, window int) ([]sample.Sample, error) {
	st, err := r.state(kind)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.history.Tail(window), nil
}

// QuerySince returns a copy of all samples of the given kind taken at or
// after t.
func (r *Recorder) QuerySince(kind sample.Kind, t time.Time) ([]sample.Sample, error) {
	st, err := r.state(kind)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.history.Since(t), nil
}

// Stats returns a value copy of the rolling statistics for the given kind.
func (r *Recorder) Stats(kind sample.Kind) (Stats, error) {
	st, err := r.state(kind)
	if err != nil {
		return Stats{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.stats.snapshot(kind), nil
}

// Len reports the retained history length for the given kind.
func (r *Recorder) Len(kind sample.Kind) int {
	st, err := r.state(kind)
	if err != nil {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.history.Len()
}

// Subscribe registers a sample stream for live consumers (persistence sinks,
// the websocket feed). Sends are non-blocking: a subscriber that falls behind
// misses samples instead of stalling the recording path. The returned cancel
// function closes the channel.
func (r *Recorder) Subscribe(buffer int) (<-chan sample.Sample, func()) {
	ch := make(chan sample.Sample, buffer)
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	r.subMu.Unlock()

	cancel := func() {
		r.subMu.Lock()
		if existing, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(existing)
		}
		r.subMu.Unlock()
	}
	return ch, cancel
}

func (r *Recorder) publish(s sample.Sample) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	for id, ch := range r.subs {
		select {
		case ch <- s:
		default:
			r.logger.Warn("subscriber lagging, sample dropped", "subscriber", id, "kind", s.Kind)
		}
	}
}
