package agent

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	ips   []net.IP
	err   error
	delay time.Duration
	host  string
}

func (f *fakeResolver) LookupIP(ctx context.Context, _ string, host string) ([]net.IP, error) {
	f.host = host
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	return f.ips, f.err
}

func TestDNSProbeMeasure(t *testing.T) {
	r := &fakeResolver{ips: []net.IP{net.ParseIP("142.250.78.14")}, delay: 5 * time.Millisecond}
	p := &DNSProbe{resolver: r, timeout: time.Second}

	ms, err := p.Measure(context.Background(), "google.com")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ms, 5.0)
	assert.Equal(t, "google.com", r.host)
}

func TestDNSProbeFailures(t *testing.T) {
	t.Run("resolver error", func(t *testing.T) {
		p := &DNSProbe{resolver: &fakeResolver{err: errors.New("no such host")}, timeout: time.Second}
		_, err := p.Measure(context.Background(), "google.com")
		assert.Error(t, err)
	})
	t.Run("empty answer", func(t *testing.T) {
		p := &DNSProbe{resolver: &fakeResolver{}, timeout: time.Second}
		_, err := p.Measure(context.Background(), "google.com")
		assert.ErrorContains(t, err, "empty answer")
	})
	t.Run("timeout", func(t *testing.T) {
		p := &DNSProbe{resolver: &fakeResolver{delay: time.Second}, timeout: 20 * time.Millisecond}
		_, err := p.Measure(context.Background(), "google.com")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
