// Package report condenses stored samples into an executive summary.
package report

import (
	"fmt"
	"io"
	"math"
	"time"

	"netsentinel/pkg/model"
)

// Summary aggregates a window of samples.
type Summary struct {
	Samples          int
	From, To         time.Time
	AvailabilityPct  float64 // 100 minus the share of samples that lost any probe
	UptimePct        float64 // 100 minus the share of samples that lost probes or had a problem status
	MeanLatencyMs    float64
	MaxJitterMs      float64
	PacketLossEvents int
	ByStatus         map[model.Status]int
}

// Summarize computes a Summary over samples in any order. An empty window has
// zero availability and 100% uptime.
func Summarize(samples []model.Sample) Summary {
	s := Summary{ByStatus: map[model.Status]int{}, UptimePct: 100}
	if len(samples) == 0 {
		return s
	}
	s.Samples = len(samples)
	var latencySum float64
	degraded := 0
	for i, smp := range samples {
		if i == 0 || smp.Timestamp.Before(s.From) {
			s.From = smp.Timestamp
		}
		if i == 0 || smp.Timestamp.After(s.To) {
			s.To = smp.Timestamp
		}
		latencySum += smp.ExternalLatencyMs
		s.MaxJitterMs = math.Max(s.MaxJitterMs, smp.JitterMs)
		s.ByStatus[smp.Status]++
		lossy := smp.PacketLossPct > 0
		if lossy {
			s.PacketLossEvents++
		}
		if lossy || smp.Status.IsProblem() {
			degraded++
		}
	}
	n := float64(s.Samples)
	s.MeanLatencyMs = round2(latencySum / n)
	s.AvailabilityPct = round2(100 - float64(s.PacketLossEvents)/n*100)
	s.UptimePct = round2(100 - float64(degraded)/n*100)
	return s
}

// MeetsSLA reports whether the window's uptime reaches target percent.
func (s Summary) MeetsSLA(target float64) bool {
	return s.UptimePct >= target
}

// Write renders the summary as plain text.
func (s Summary) Write(w io.Writer) error {
	if s.Samples == 0 {
		_, err := fmt.Fprintln(w, "no samples recorded yet")
		return err
	}
	_, err := fmt.Fprintf(w,
		"window:            %s .. %s (%d samples)\n"+
			"availability:      %.2f%%\n"+
			"uptime:            %.2f%%\n"+
			"mean latency:      %.1fms\n"+
			"max jitter:        %.1fms\n"+
			"loss events:       %d\n",
		s.From.Format(time.RFC3339), s.To.Format(time.RFC3339), s.Samples,
		s.AvailabilityPct, s.UptimePct, s.MeanLatencyMs, s.MaxJitterMs, s.PacketLossEvents)
	if err != nil {
		return err
	}
	for _, st := range []model.Status{model.StatusOK, model.StatusPacketLoss, model.StatusInternalWiFiIssue, model.StatusISPLatency} {
		if n := s.ByStatus[st]; n > 0 {
			if _, err := fmt.Fprintf(w, "  %-20s %d\n", st, n); err != nil {
				return err
			}
		}
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
