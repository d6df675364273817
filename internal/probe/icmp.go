package probe

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

var icmpPayload = []byte("linewatch")

// ICMPPinger sends raw ICMP echo requests. It needs CAP_NET_RAW (or root);
// without it Ping returns an error wrapping os.ErrPermission.
type ICMPPinger struct {
	mu  sync.Mutex
	id  int
	seq uint16
}

func NewICMPPinger() *ICMPPinger {
	return &ICMPPinger{id: rand.Intn(0xffff)}
}

func (p *ICMPPinger) Ping(ctx context.Context, ip net.IP, timeout time.Duration) (time.Duration, error) {
	isV4 := ip.To4() != nil
	network := "ip4:icmp"
	proto := 1
	echoType := icmp.Type(ipv4.ICMPTypeEcho)
	replyType := icmp.Type(ipv4.ICMPTypeEchoReply)
	if !isV4 {
		network = "ip6:ipv6-icmp"
		proto = 58
		echoType = icmp.Type(ipv6.ICMPTypeEchoRequest)
		replyType = icmp.Type(ipv6.ICMPTypeEchoReply)
	}

	conn, err := icmp.ListenPacket(network, "")
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return 0, fmt.Errorf("icmp socket: %w", os.ErrPermission)
		}
		return 0, fmt.Errorf("icmp socket: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}

	p.mu.Lock()
	p.seq++
	id, seq := p.id, p.seq
	p.mu.Unlock()

	msg := icmp.Message{
		Type: echoType,
		Code: 0,
		Body: &icmp.Echo{
			ID:   id,
			Seq:  int(seq),
			Data: icmpPayload,
		},
	}
	payload, err := msg.Marshal(nil)
	if err != nil {
		return 0, err
	}
	dst := &net.IPAddr{IP: ip}
	start := time.Now()
	if _, err := conn.WriteTo(payload, dst); err != nil {
		return 0, err
	}
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}

	buf := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			return 0, err
		}
		ipAddr, ok := peer.(*net.IPAddr)
		if ok && ipAddr.IP != nil && !ipAddr.IP.Equal(ip) {
			continue
		}
		parsed, err := icmp.ParseMessage(proto, buf[:n])
		if err != nil {
			continue
		}
		if parsed.Type != replyType {
			continue
		}
		echo, ok := parsed.Body.(*icmp.Echo)
		if !ok {
			continue
		}
		if echo.ID == id && echo.Seq == int(seq) {
			return time.Since(start), nil
		}
	}
}
