// Package anomaly flags recent samples whose latency or jitter exceeds a
// baseline learned from stored history (three-sigma rule).
//
// The baseline is recomputed on every call, so cost grows linearly with the
// history size. That is fine for a few thousand rows; larger windows would
// need incremental statistics.
package anomaly

import (
	"context"
	"fmt"
	"math"

	"netsentinel/pkg/model"
	"netsentinel/pkg/store"
)

// Options control the detector. Zero values fall back to the defaults.
type Options struct {
	HistoryLimit int     // samples fetched by Run
	Window       int     // most recent samples scanned
	MinHistory   int     // below this, no baseline is trusted
	Sigma        float64 // threshold = mean + Sigma*stdev
}

func DefaultOptions() Options {
	return Options{HistoryLimit: 2000, Window: 60, MinHistory: 50, Sigma: 3}
}

// Detector is stateless; each call recomputes the baseline from scratch.
type Detector struct {
	opts Options
}

func NewDetector(opts Options) *Detector {
	d := DefaultOptions()
	if opts.HistoryLimit > 0 {
		d.HistoryLimit = opts.HistoryLimit
	}
	if opts.Window > 0 {
		d.Window = opts.Window
	}
	if opts.MinHistory > 0 {
		d.MinHistory = opts.MinHistory
	}
	if opts.Sigma > 0 {
		d.Sigma = opts.Sigma
	}
	return &Detector{opts: d}
}

// Baseline is the learned mean/stdev of one metric.
type Baseline struct {
	Mean      float64
	StdDev    float64
	Threshold float64
}

// Run loads the recent history from st and detects anomalies in it.
func (d *Detector) Run(ctx context.Context, st store.SampleStore) ([]model.AnomalyRecord, error) {
	history, err := st.QueryRecent(ctx, d.opts.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return d.Detect(history), nil
}

// Detect scans the first Window samples of history (newest first) against
// baselines computed over the whole history. The result keeps input order.
func (d *Detector) Detect(history []model.Sample) []model.AnomalyRecord {
	out := []model.AnomalyRecord{}
	if len(history) < d.opts.MinHistory {
		return out
	}
	latency := d.baseline(history, func(s model.Sample) float64 { return s.ExternalLatencyMs })
	jitter := d.baseline(history, func(s model.Sample) float64 { return s.JitterMs })

	recent := history
	if len(recent) > d.opts.Window {
		recent = recent[:d.opts.Window]
	}
	for _, s := range recent {
		var reasons []string
		if s.ExternalLatencyMs > latency.Threshold {
			reasons = append(reasons, fmt.Sprintf("abnormal latency (%.1fms vs mean %.1fms)", s.ExternalLatencyMs, latency.Mean))
		}
		if s.JitterMs > jitter.Threshold {
			reasons = append(reasons, fmt.Sprintf("critical jitter (%.1fms vs mean %.1fms)", s.JitterMs, jitter.Mean))
		}
		if len(reasons) > 0 {
			out = append(out, model.AnomalyRecord{SampleID: s.ID, Timestamp: s.Timestamp, Reasons: reasons})
		}
	}
	return out
}

func (d *Detector) baseline(history []model.Sample, metric func(model.Sample) float64) Baseline {
	n := float64(len(history))
	var sum float64
	for _, s := range history {
		sum += metric(s)
	}
	mean := sum / n
	var sq float64
	for _, s := range history {
		diff := metric(s) - mean
		sq += diff * diff
	}
	var std float64
	if len(history) > 1 {
		std = math.Sqrt(sq / (n - 1))
	}
	return Baseline{Mean: mean, StdDev: std, Threshold: mean + d.opts.Sigma*std}
}
