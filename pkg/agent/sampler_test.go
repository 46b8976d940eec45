package agent

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netsentinel/pkg/model"
)

var errTimeout = errors.New("timeout")

type probeResult struct {
	rtt time.Duration
	err error
}

// scriptedProber replays results per host; a host with no remaining results times out.
type scriptedProber struct {
	results  map[string][]probeResult
	timeouts map[string][]time.Duration
}

func newScriptedProber() *scriptedProber {
	return &scriptedProber{results: map[string][]probeResult{}, timeouts: map[string][]time.Duration{}}
}

func (p *scriptedProber) add(host string, n int, rtt time.Duration, err error) {
	for i := 0; i < n; i++ {
		p.results[host] = append(p.results[host], probeResult{rtt: rtt, err: err})
	}
}

func (p *scriptedProber) Probe(_ context.Context, host string, timeout time.Duration) (time.Duration, error) {
	p.timeouts[host] = append(p.timeouts[host], timeout)
	q := p.results[host]
	if len(q) == 0 {
		return 0, errTimeout
	}
	r := q[0]
	p.results[host] = q[1:]
	return r.rtt, r.err
}

func newTestSampler(p Prober) (*HealthSampler, *[]time.Duration) {
	s := NewHealthSampler(p, DefaultSamplerOptions())
	var slept []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) { slept = append(slept, d) }
	return s, &slept
}

const target = "8.8.8.8"

var gw = netip.MustParseAddr("192.168.1.1")

func TestSampleAllProbesSucceed(t *testing.T) {
	p := newScriptedProber()
	p.add(target, 15, 20*time.Millisecond, nil)
	s, slept := newTestSampler(p)

	r, ok := s.Sample(context.Background(), target, netip.Addr{})
	require.True(t, ok)
	assert.Equal(t, 20.0, r.ExternalLatencyMs)
	assert.Equal(t, 0.0, r.JitterMs)
	assert.Equal(t, 0.0, r.PacketLossPct)
	assert.Equal(t, 0.0, r.GatewayLatencyMs)
	assert.Empty(t, r.GatewayAddress)
	assert.Equal(t, target, r.TargetHost)
	assert.Len(t, *slept, 14)
	assert.Equal(t, 100*time.Millisecond, (*slept)[0])
}

func TestSamplePartialLoss(t *testing.T) {
	p := newScriptedProber()
	p.add(target, 10, 30*time.Millisecond, nil)
	p.add(target, 5, 0, errTimeout)
	s, _ := newTestSampler(p)

	r, ok := s.Sample(context.Background(), target, netip.Addr{})
	require.True(t, ok)
	assert.Equal(t, 30.0, r.ExternalLatencyMs)
	assert.Equal(t, 33.33, r.PacketLossPct)
	assert.Len(t, p.timeouts[target], 15)
}

func TestSampleTotalOutageYieldsNoReading(t *testing.T) {
	p := newScriptedProber()
	p.add(gw.String(), 1, 2*time.Millisecond, nil)
	s, _ := newTestSampler(p)

	_, ok := s.Sample(context.Background(), target, gw)
	assert.False(t, ok)
}

func TestSampleSingleSuccessHasZeroJitter(t *testing.T) {
	p := newScriptedProber()
	p.add(target, 1, 45*time.Millisecond, nil)
	s, _ := newTestSampler(p)

	r, ok := s.Sample(context.Background(), target, netip.Addr{})
	require.True(t, ok)
	assert.Equal(t, 0.0, r.JitterMs)
	assert.Equal(t, 45.0, r.ExternalLatencyMs)
	assert.Equal(t, 93.33, r.PacketLossPct)
}

func TestSampleJitterIsSampleStdDev(t *testing.T) {
	p := newScriptedProber()
	for _, ms := range []int{10, 20, 30} {
		p.add(target, 1, time.Duration(ms)*time.Millisecond, nil)
	}
	s := NewHealthSampler(p, SamplerOptions{ProbeCount: 3, ProbeTimeout: time.Second, GatewayTimeout: 500 * time.Millisecond})

	r, ok := s.Sample(context.Background(), target, netip.Addr{})
	require.True(t, ok)
	assert.Equal(t, 20.0, r.ExternalLatencyMs)
	assert.Equal(t, 10.0, r.JitterMs)
	assert.Equal(t, 0.0, r.PacketLossPct)
}

func TestSampleGatewayProbe(t *testing.T) {
	p := newScriptedProber()
	p.add(gw.String(), 1, 3*time.Millisecond+210*time.Microsecond, nil)
	p.add(target, 15, 150*time.Millisecond, nil)
	s, _ := newTestSampler(p)

	r, ok := s.Sample(context.Background(), target, gw)
	require.True(t, ok)
	assert.Equal(t, "192.168.1.1", r.GatewayAddress)
	assert.Equal(t, 3.21, r.GatewayLatencyMs)
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, p.timeouts[gw.String()])
	assert.Equal(t, time.Second, p.timeouts[target][0])
}

func TestSampleUnresponsiveGatewayUsesSentinel(t *testing.T) {
	p := newScriptedProber()
	p.add(target, 15, 20*time.Millisecond, nil)
	s, _ := newTestSampler(p)

	r, ok := s.Sample(context.Background(), target, gw)
	require.True(t, ok)
	assert.Equal(t, float64(model.GatewayUnreachableMs), r.GatewayLatencyMs)
	assert.True(t, r.GatewayUnresponsive())
}

func TestSampleLossAlwaysWithinBounds(t *testing.T) {
	for successes := 1; successes <= 15; successes++ {
		p := newScriptedProber()
		p.add(target, successes, 25*time.Millisecond, nil)
		s, _ := newTestSampler(p)

		r, ok := s.Sample(context.Background(), target, netip.Addr{})
		require.True(t, ok)
		assert.GreaterOrEqual(t, r.PacketLossPct, 0.0)
		assert.LessOrEqual(t, r.PacketLossPct, 100.0)
		if successes <= 1 {
			assert.Zero(t, r.JitterMs)
		}
	}
}

func TestMeanStdev(t *testing.T) {
	mean, std := meanStdev(nil)
	assert.Zero(t, mean)
	assert.Zero(t, std)

	mean, std = meanStdev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, mean, 1e-9)
	assert.InDelta(t, 2.138, std, 1e-3)
}
