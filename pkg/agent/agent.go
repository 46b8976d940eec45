package agent

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/zap"

	"netsentinel/pkg/metrics"
	"netsentinel/pkg/model"
	"netsentinel/pkg/publish"
	"netsentinel/pkg/store"
)

// Collaborator seams; the concrete types in this package satisfy them.
type (
	Discoverer interface {
		Discover(ctx context.Context) (netip.Addr, bool)
	}
	Sampler interface {
		Sample(ctx context.Context, host string, gateway netip.Addr) (model.HealthReading, bool)
	}
	DNSMeasurer interface {
		Measure(ctx context.Context, domain string) (float64, error)
	}
	Tracer interface {
		Trace(ctx context.Context, host string) string
	}
)

// Options configure the sampling loop.
type Options struct {
	TargetHost   string
	DNSDomain    string
	Interval     time.Duration
	TraceEnabled bool
	Thresholds   Thresholds
}

// Deps are the injected collaborators. Store is required; Publisher and Metrics may be nil.
type Deps struct {
	Discovery Discoverer
	Sampler   Sampler
	DNS       DNSMeasurer
	Tracer    Tracer
	Store     store.SampleStore
	Publisher publish.Publisher
	Metrics   *metrics.Recorder
	Logger    *zap.Logger
}

// Agent runs one sampling cycle at a time, sequentially, until its context ends.
type Agent struct {
	opts Options
	deps Deps
	log  *zap.Logger
	now  func() time.Time

	mu         sync.RWMutex
	thresholds Thresholds
}

func New(opts Options, deps Deps) *Agent {
	if deps.Publisher == nil {
		deps.Publisher = publish.Nop{}
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Agent{
		opts:       opts,
		deps:       deps,
		log:        log,
		now:        time.Now,
		thresholds: opts.Thresholds,
	}
}

// SetThresholds swaps the classifier thresholds; it takes effect on the next cycle.
func (a *Agent) SetThresholds(t Thresholds) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.thresholds = t
}

func (a *Agent) currentThresholds() Thresholds {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.thresholds
}

// Run loops until ctx is cancelled. The interval sleep between cycles is the
// only point where cancellation is observed; every network call is individually bounded.
func (a *Agent) Run(ctx context.Context) error {
	a.log.Info("sentinel started",
		zap.String("target", a.opts.TargetHost),
		zap.Duration("interval", a.opts.Interval))
	for {
		if _, err := a.RunCycle(ctx); err != nil {
			a.log.Error("cycle failed", zap.Error(err))
		}
		t := time.NewTimer(a.opts.Interval)
		select {
		case <-ctx.Done():
			t.Stop()
			a.log.Info("sentinel stopped")
			return nil
		case <-t.C:
		}
	}
}

// RunCycle performs discovery, sampling, DNS timing, classification, the
// optional trace, and persistence. It returns a nil sample (and nil error) when
// every external probe was lost; such cycles leave no record.
func (a *Agent) RunCycle(ctx context.Context) (*model.Sample, error) {
	gateway, ok := a.deps.Discovery.Discover(ctx)
	if !ok {
		a.log.Debug("default gateway not found")
	}

	reading, ok := a.deps.Sampler.Sample(ctx, a.opts.TargetHost, gateway)
	if !ok {
		a.log.Warn("network unreachable: all probes lost", zap.String("target", a.opts.TargetHost))
		a.deps.Metrics.ObserveOutage()
		a.flushMetrics()
		return nil, nil
	}

	if ms, err := a.deps.DNS.Measure(ctx, a.opts.DNSDomain); err != nil {
		a.log.Debug("dns probe failed", zap.Error(err))
	} else {
		reading.DNSLatencyMs = &ms
	}

	status, needsTrace := Classify(reading, a.currentThresholds())
	if status == model.StatusISPLatency && !reading.HasGateway() {
		a.log.Warn("high latency without a gateway reading; internal/external split is unreliable",
			zap.Float64("externalMs", reading.ExternalLatencyMs))
	}

	sample := &model.Sample{
		Timestamp:     a.now().UTC(),
		HealthReading: reading,
		Status:        status,
	}
	if needsTrace && a.opts.TraceEnabled {
		a.log.Info("capturing forensic trace", zap.String("status", string(status)))
		sample.ForensicTrace = a.deps.Tracer.Trace(ctx, a.opts.TargetHost)
	}

	if err := a.deps.Store.Append(ctx, sample); err != nil {
		return nil, fmt.Errorf("persist sample: %w", err)
	}
	a.logSample(sample)
	a.deps.Metrics.ObserveSample(*sample)
	a.flushMetrics()

	if err := a.deps.Publisher.Publish(ctx, *sample); err != nil {
		a.log.Warn("publish sample failed", zap.Uint64("id", sample.ID), zap.Error(err))
	}
	return sample, nil
}

func (a *Agent) logSample(s *model.Sample) {
	fields := []zap.Field{
		zap.Uint64("id", s.ID),
		zap.String("status", string(s.Status)),
		zap.Float64("externalMs", s.ExternalLatencyMs),
		zap.Float64("gatewayMs", s.GatewayLatencyMs),
		zap.String("gateway", s.GatewayAddress),
		zap.Float64("jitterMs", s.JitterMs),
		zap.Float64("lossPct", s.PacketLossPct),
	}
	if s.DNSLatencyMs != nil {
		fields = append(fields, zap.Float64("dnsMs", *s.DNSLatencyMs))
	}
	if s.Status.IsProblem() {
		a.log.Warn("sample recorded", fields...)
		return
	}
	a.log.Info("sample recorded", fields...)
}

func (a *Agent) flushMetrics() {
	if err := a.deps.Metrics.Flush(); err != nil {
		a.log.Warn("write metrics textfile failed", zap.Error(err))
	}
}
