package agent

import (
	"context"
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"netsentinel/pkg/metrics"
	"netsentinel/pkg/model"
	"netsentinel/pkg/store"
)

type fakeDiscovery struct {
	addr netip.Addr
}

func (f fakeDiscovery) Discover(context.Context) (netip.Addr, bool) {
	return f.addr, f.addr.IsValid()
}

type fakeSampler struct {
	reading model.HealthReading
	ok      bool
	gateway netip.Addr
	calls   atomic.Int32
}

func (f *fakeSampler) Sample(_ context.Context, host string, gateway netip.Addr) (model.HealthReading, bool) {
	f.calls.Add(1)
	f.gateway = gateway
	r := f.reading
	r.TargetHost = host
	if gateway.IsValid() {
		r.GatewayAddress = gateway.String()
	}
	return r, f.ok
}

type fakeDNS struct {
	ms  float64
	err error
}

func (f fakeDNS) Measure(context.Context, string) (float64, error) { return f.ms, f.err }

type fakeTracer struct {
	calls int
}

func (f *fakeTracer) Trace(context.Context, string) string {
	f.calls++
	return "1  192.168.1.1  1.0 ms"
}

type recordingPublisher struct {
	got []model.Sample
	err error
}

func (p *recordingPublisher) Publish(_ context.Context, s model.Sample) error {
	p.got = append(p.got, s)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type failingStore struct{ store.SampleStore }

func (failingStore) Append(context.Context, *model.Sample) error { return errors.New("disk full") }

type fixture struct {
	agent     *Agent
	sampler   *fakeSampler
	tracer    *fakeTracer
	store     *store.MemoryStore
	publisher *recordingPublisher
	logs      *observer.ObservedLogs
}

func newFixture(reading model.HealthReading, ok bool) *fixture {
	core, logs := observer.New(zap.DebugLevel)
	f := &fixture{
		sampler:   &fakeSampler{reading: reading, ok: ok},
		tracer:    &fakeTracer{},
		store:     store.NewMemoryStore(),
		publisher: &recordingPublisher{},
		logs:      logs,
	}
	f.agent = New(Options{
		TargetHost:   target,
		DNSDomain:    "google.com",
		Interval:     10 * time.Millisecond,
		TraceEnabled: true,
		Thresholds:   DefaultThresholds(),
	}, Deps{
		Discovery: fakeDiscovery{addr: gw},
		Sampler:   f.sampler,
		DNS:       fakeDNS{ms: 12.5},
		Tracer:    f.tracer,
		Store:     f.store,
		Publisher: f.publisher,
		Logger:    zap.New(core),
	})
	return f
}

func stored(t *testing.T, s *store.MemoryStore) []model.Sample {
	t.Helper()
	out, err := s.QueryRecent(context.Background(), 100)
	require.NoError(t, err)
	return out
}

func TestRunCycleHealthy(t *testing.T) {
	f := newFixture(model.HealthReading{ExternalLatencyMs: 20, JitterMs: 1.2, GatewayLatencyMs: 2}, true)

	s, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, model.StatusOK, s.Status)
	assert.Empty(t, s.ForensicTrace)
	assert.Zero(t, f.tracer.calls)
	require.NotNil(t, s.DNSLatencyMs)
	assert.Equal(t, 12.5, *s.DNSLatencyMs)
	assert.Equal(t, gw, f.sampler.gateway)
	assert.Equal(t, "192.168.1.1", s.GatewayAddress)
	assert.Equal(t, time.UTC, s.Timestamp.Location())

	rows := stored(t, f.store)
	require.Len(t, rows, 1)
	assert.Equal(t, s.ID, rows[0].ID)
	require.Len(t, f.publisher.got, 1)
	assert.Equal(t, s.ID, f.publisher.got[0].ID)
	assert.Equal(t, 1, f.logs.FilterMessage("sample recorded").Len())
}

func TestRunCyclePacketLossCapturesTrace(t *testing.T) {
	f := newFixture(model.HealthReading{ExternalLatencyMs: 30, PacketLossPct: 33.33}, true)

	s, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StatusPacketLoss, s.Status)
	assert.Equal(t, 1, f.tracer.calls)
	assert.NotEmpty(t, s.ForensicTrace)
	assert.Equal(t, s.ForensicTrace, stored(t, f.store)[0].ForensicTrace)

	entries := f.logs.FilterMessage("sample recorded").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
}

func TestRunCycleTraceDisabled(t *testing.T) {
	f := newFixture(model.HealthReading{ExternalLatencyMs: 150, GatewayLatencyMs: 80}, true)
	f.agent.opts.TraceEnabled = false

	s, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StatusInternalWiFiIssue, s.Status)
	assert.Empty(t, s.ForensicTrace)
	assert.Zero(t, f.tracer.calls)
}

func TestRunCycleOutageLeavesNoRecord(t *testing.T) {
	f := newFixture(model.HealthReading{}, false)

	s, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Empty(t, stored(t, f.store))
	assert.Empty(t, f.publisher.got)
	assert.Zero(t, f.tracer.calls)
	assert.Equal(t, 1, f.logs.FilterMessage("network unreachable: all probes lost").Len())
}

func TestRunCycleDNSFailureLeavesFieldEmpty(t *testing.T) {
	f := newFixture(model.HealthReading{ExternalLatencyMs: 20}, true)
	f.agent.deps.DNS = fakeDNS{err: errors.New("no such host")}

	s, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Nil(t, s.DNSLatencyMs)
	assert.Nil(t, stored(t, f.store)[0].DNSLatencyMs)
}

func TestRunCycleISPLatencyWithoutGatewayWarns(t *testing.T) {
	f := newFixture(model.HealthReading{ExternalLatencyMs: 150}, true)
	f.agent.deps.Discovery = fakeDiscovery{}

	s, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StatusISPLatency, s.Status)
	assert.False(t, f.sampler.gateway.IsValid())
	assert.Empty(t, s.GatewayAddress)
	assert.Equal(t, 1, f.logs.FilterMessageSnippet("without a gateway reading").Len())
}

func TestRunCyclePublishErrorDoesNotFailCycle(t *testing.T) {
	f := newFixture(model.HealthReading{ExternalLatencyMs: 20}, true)
	f.publisher.err = errors.New("connection refused")

	s, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Len(t, stored(t, f.store), 1)
	assert.Equal(t, 1, f.logs.FilterMessage("publish sample failed").Len())
}

func TestRunCycleStoreError(t *testing.T) {
	f := newFixture(model.HealthReading{ExternalLatencyMs: 20}, true)
	f.agent.deps.Store = failingStore{}

	s, err := f.agent.RunCycle(context.Background())
	assert.Nil(t, s)
	assert.ErrorContains(t, err, "persist sample")
	assert.Empty(t, f.publisher.got)
}

func TestSetThresholdsAppliesToNextCycle(t *testing.T) {
	f := newFixture(model.HealthReading{ExternalLatencyMs: 150, GatewayLatencyMs: 10}, true)

	s, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StatusISPLatency, s.Status)

	f.agent.SetThresholds(Thresholds{LossPct: 2, LatencyMs: 200, GatewayMs: 50})
	s, err = f.agent.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.StatusOK, s.Status)
}

func TestRunCycleWritesMetricsTextfile(t *testing.T) {
	f := newFixture(model.HealthReading{ExternalLatencyMs: 20}, true)
	path := filepath.Join(t.TempDir(), "netsentinel.prom")
	f.agent.deps.Metrics = metrics.New(path)

	_, err := f.agent.RunCycle(context.Background())
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "netsentinel_external_latency_ms 20")
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(model.HealthReading{ExternalLatencyMs: 20}, true)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.agent.Run(ctx) }()

	require.Eventually(t, func() bool { return f.sampler.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
