package netutil

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

const (
	defaultProbeTimeout = 2 * time.Second
	defaultPingCount    = 2
)

// Probe reports whether host answers. A nil error means reachable.
type Probe interface {
	Probe(ctx context.Context, host string) error
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context, host string) error

// Probe implements Probe.
func (f ProbeFunc) Probe(ctx context.Context, host string) error {
	return f(ctx, host)
}

// TCPProbe dials host:Port.
type TCPProbe struct {
	Port    int
	Timeout time.Duration
}

// Probe implements Probe.
func (p TCPProbe) Probe(ctx context.Context, host string) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(p.Port)))
	if err != nil {
		return err
	}
	return conn.Close()
}

// ICMPProbe sends Count echo requests and succeeds if any reply arrives
// within Timeout. Unprivileged mode uses UDP ping sockets, which on Linux
// requires net.ipv4.ping_group_range to include the caller's group.
type ICMPProbe struct {
	Count      int
	Timeout    time.Duration
	Privileged bool
}

// Probe implements Probe.
func (p ICMPProbe) Probe(ctx context.Context, host string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pinger, err := probing.NewPinger(host)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", host, err)
	}
	pinger.Count = p.Count
	if pinger.Count <= 0 {
		pinger.Count = defaultPingCount
	}
	pinger.Timeout = p.Timeout
	if pinger.Timeout <= 0 {
		pinger.Timeout = defaultProbeTimeout
	}
	pinger.SetPrivileged(p.Privileged)

	stop := context.AfterFunc(ctx, pinger.Stop)
	defer stop()

	if err := pinger.Run(); err != nil {
		return fmt.Errorf("ping %s: %w", host, err)
	}
	if stats := pinger.Statistics(); stats.PacketsRecv == 0 {
		return fmt.Errorf("no echo reply from %s", host)
	}
	return nil
}
