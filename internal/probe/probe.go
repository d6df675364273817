// Package probe implements the round-trip latency probe: one call, one
// timestamped sample, success or a classified failure. Repetition is the
// scheduler's job, so inter-sample jitter reflects the configured interval.
package probe

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"github.com/NodePath81/linewatch/internal/config"
	"github.com/NodePath81/linewatch/internal/resolver"
	"github.com/NodePath81/linewatch/internal/sample"
	"github.com/NodePath81/linewatch/internal/util"
)

// Pinger sends one echo round trip to ip and reports the elapsed time.
type Pinger interface {
	Ping(ctx context.Context, ip net.IP, timeout time.Duration) (time.Duration, error)
}

type Probe struct {
	selector TargetSelector
	resolver *resolver.Resolver
	pinger   Pinger
	fallback Pinger
	timeout  time.Duration
	logger   util.Logger
}

func New(cfg config.LatencyConfig, res *resolver.Resolver, logger util.Logger) *Probe {
	p := &Probe{
		selector: NewSelector(cfg.Targets, cfg.Rotate),
		resolver: res,
		timeout:  cfg.Timeout.Duration(),
		logger:   logger,
	}
	switch cfg.Mode {
	case config.PingModeRaw:
		p.pinger = NewICMPPinger()
	case config.PingModeUnprivileged:
		p.pinger = NewProbingPinger()
	default:
		p.pinger = NewICMPPinger()
		p.fallback = NewProbingPinger()
	}
	return p
}

// NewWithPinger wires an explicit pinger and selector, used by tests and by
// callers that bring their own transport.
func NewWithPinger(selector TargetSelector, res *resolver.Resolver, pinger Pinger, timeout time.Duration, logger util.Logger) *Probe {
	return &Probe{
		selector: selector,
		resolver: res,
		pinger:   pinger,
		timeout:  timeout,
		logger:   logger,
	}
}

// Measure performs exactly one round-trip measurement. Network failures are
// returned inside the sample, never as an error.
func (p *Probe) Measure(ctx context.Context) sample.LatencySample {
	target := p.selector.Next()
	taken := time.Now()

	resolveCtx, cancel := context.WithTimeout(ctx, p.timeout)
	ip, err := p.resolver.ResolveHost(resolveCtx, target)
	cancel()
	if err != nil {
		return sample.LatencySample{
			Taken:  taken,
			Target: target,
			Reason: classifyPingError(err),
		}
	}

	rtt, err := p.pinger.Ping(ctx, ip, p.timeout)
	if err != nil && p.fallback != nil && errors.Is(err, os.ErrPermission) {
		p.logger.Debug("raw icmp unavailable, using unprivileged ping", "target", target)
		p.pinger = p.fallback
		p.fallback = nil
		rtt, err = p.pinger.Ping(ctx, ip, p.timeout)
	}
	if err != nil {
		reason := classifyPingError(err)
		p.logger.Debug("ping failed", "target", target, "reason", reason, "error", err)
		return sample.LatencySample{
			Taken:  taken,
			Target: target,
			Reason: reason,
		}
	}
	return sample.LatencySample{
		Taken:  taken,
		Target: target,
		RTT:    rtt,
		OK:     true,
	}
}

func classifyPingError(err error) sample.FailReason {
	switch {
	case errors.Is(err, os.ErrPermission):
		return sample.ReasonPermissionDenied
	case errors.Is(err, context.Canceled):
		return sample.ReasonCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return sample.ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return sample.ReasonTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return sample.ReasonTimeout
		}
		return sample.ReasonUnreachable
	}
	return sample.ReasonUnreachable
}
