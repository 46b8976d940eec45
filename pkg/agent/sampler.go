package agent

import (
	"context"
	"math"
	"net/netip"
	"time"

	"netsentinel/pkg/model"
)

// SamplerOptions bounds one probe batch.
type SamplerOptions struct {
	ProbeCount     int
	ProbeTimeout   time.Duration
	GatewayTimeout time.Duration
	Spacing        time.Duration
}

func DefaultSamplerOptions() SamplerOptions {
	return SamplerOptions{
		ProbeCount:     15,
		ProbeTimeout:   time.Second,
		GatewayTimeout: 500 * time.Millisecond,
		Spacing:        100 * time.Millisecond,
	}
}

// HealthSampler turns sequential probes into one HealthReading.
type HealthSampler struct {
	prober Prober
	opts   SamplerOptions
	sleep  func(context.Context, time.Duration)
}

func NewHealthSampler(prober Prober, opts SamplerOptions) *HealthSampler {
	return &HealthSampler{prober: prober, opts: opts, sleep: sleepCtx}
}

// Sample probes the gateway once (when valid) and host ProbeCount times.
// It returns false when every external probe was lost.
func (s *HealthSampler) Sample(ctx context.Context, host string, gateway netip.Addr) (model.HealthReading, bool) {
	reading := model.HealthReading{TargetHost: host}
	if gateway.IsValid() {
		reading.GatewayAddress = gateway.String()
		reading.GatewayLatencyMs = model.GatewayUnreachableMs
		if rtt, err := s.prober.Probe(ctx, reading.GatewayAddress, s.opts.GatewayTimeout); err == nil {
			reading.GatewayLatencyMs = round2(durationMs(rtt))
		}
	}

	count := s.opts.ProbeCount
	latencies := make([]float64, 0, count)
	for i := 0; i < count; i++ {
		if i > 0 && s.opts.Spacing > 0 {
			s.sleep(ctx, s.opts.Spacing)
		}
		rtt, err := s.prober.Probe(ctx, host, s.opts.ProbeTimeout)
		if err != nil {
			continue
		}
		latencies = append(latencies, durationMs(rtt))
	}
	if len(latencies) == 0 {
		return model.HealthReading{}, false
	}

	lost := count - len(latencies)
	mean, stdev := meanStdev(latencies)
	reading.ExternalLatencyMs = round2(mean)
	reading.JitterMs = round2(stdev)
	reading.PacketLossPct = round2(float64(lost) / float64(count) * 100)
	return reading, true
}

// meanStdev returns the mean and the sample standard deviation (n-1); the
// deviation is 0 for fewer than two values.
func meanStdev(vals []float64) (float64, float64) {
	n := float64(len(vals))
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / n
	if len(vals) < 2 {
		return mean, 0
	}
	var sq float64
	for _, v := range vals {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / (n - 1))
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
