package agent

import (
	"context"
	"fmt"
	"net"
	"time"
)

type ipResolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
}

// DNSProbe times one A-record resolution against a fixed resolver.
type DNSProbe struct {
	resolver ipResolver
	timeout  time.Duration
}

// NewDNSProbe pins every lookup to server (host:port), bypassing the system resolver.
func NewDNSProbe(server string, timeout time.Duration) *DNSProbe {
	r := &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := net.Dialer{Timeout: timeout}
			return d.DialContext(ctx, network, server)
		},
	}
	return &DNSProbe{resolver: r, timeout: timeout}
}

// Measure returns the resolution time of domain in milliseconds. A failed
// resolution is an error, never a zero measurement.
func (p *DNSProbe) Measure(ctx context.Context, domain string) (float64, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	start := time.Now()
	ips, err := p.resolver.LookupIP(ctx, "ip4", domain)
	elapsed := time.Since(start)
	if err != nil {
		return 0, fmt.Errorf("resolve %s: %w", domain, err)
	}
	if len(ips) == 0 {
		return 0, fmt.Errorf("resolve %s: empty answer", domain)
	}
	return round2(durationMs(elapsed)), nil
}
