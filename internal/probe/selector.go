package probe

import "sync/atomic"

// TargetSelector picks the host for the next round-trip measurement. The
// probe calls Next exactly once per round, so selection policy (fixed host,
// rotation, future multi-host averaging) stays out of the measurement path.
type TargetSelector interface {
	Next() string
}

// StaticTarget always selects the same host.
type StaticTarget string

func (s StaticTarget) Next() string { return string(s) }

// RoundRobin rotates through a candidate list, one host per round.
type RoundRobin struct {
	targets []string
	next    atomic.Uint64
}

func NewRoundRobin(targets []string) *RoundRobin {
	return &RoundRobin{targets: targets}
}

func (r *RoundRobin) Next() string {
	if len(r.targets) == 0 {
		return ""
	}
	idx := r.next.Add(1) - 1
	return r.targets[int(idx%uint64(len(r.targets)))]
}

// NewSelector builds the selector for a target list: round-robin when rotation
// is requested and more than one candidate exists, otherwise the first host.
func NewSelector(targets []string, rotate bool) TargetSelector {
	if rotate && len(targets) > 1 {
		return NewRoundRobin(targets)
	}
	if len(targets) == 0 {
		return StaticTarget("")
	}
	return StaticTarget(targets[0])
}
