package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

const probingPacketSize = 56

// ProbingPinger measures round trips with pro-bing in unprivileged UDP mode,
// for hosts where raw ICMP sockets are unavailable.
type ProbingPinger struct{}

func NewProbingPinger() *ProbingPinger {
	return &ProbingPinger{}
}

func (p *ProbingPinger) Ping(ctx context.Context, ip net.IP, timeout time.Duration) (time.Duration, error) {
	pinger, err := probing.NewPinger(ip.String())
	if err != nil {
		return 0, fmt.Errorf("create pinger: %w", err)
	}
	defer pinger.Stop()
	pinger.SetPrivileged(false)
	pinger.Count = 1
	pinger.Size = probingPacketSize
	pinger.Timeout = timeout

	if err := pinger.RunWithContext(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, context.DeadlineExceeded
		}
		return 0, err
	}
	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return 0, context.DeadlineExceeded
	}
	return stats.AvgRtt, nil
}
