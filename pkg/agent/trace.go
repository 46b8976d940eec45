package agent

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// TraceOptions bounds a forensic route trace.
type TraceOptions struct {
	MaxHops    int
	HopTimeout time.Duration
	Timeout    time.Duration // overall cap on the trace command
}

func DefaultTraceOptions() TraceOptions {
	return TraceOptions{MaxHops: 10, HopTimeout: 100 * time.Millisecond, Timeout: 30 * time.Second}
}

// ForensicTracer captures a route trace as evidence. It never fails: errors
// are returned as text so the cycle always completes.
type ForensicTracer struct {
	run  commandRunner
	goos string
	opts TraceOptions
}

func NewForensicTracer(opts TraceOptions) *ForensicTracer {
	return &ForensicTracer{run: execCombined, goos: runtime.GOOS, opts: opts}
}

// Trace runs traceroute (tracert on Windows) without reverse DNS.
func (t *ForensicTracer) Trace(ctx context.Context, host string) string {
	if t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}
	name, args := traceCommand(t.goos, host, t.opts.MaxHops, t.opts.HopTimeout)
	out, err := t.run(ctx, name, args...)
	text := strings.TrimSpace(decodeConsole(out))
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w (after %s)", ctx.Err(), t.opts.Timeout)
		}
		if text == "" {
			return fmt.Sprintf("traceroute error: %s: %v", name, err)
		}
		return fmt.Sprintf("%s\ntraceroute error: %s: %v", text, name, err)
	}
	if text == "" {
		return fmt.Sprintf("traceroute error: %s returned no output", name)
	}
	return text
}

// traceCommand builds a numeric-only trace bounded by hops and per-hop wait.
func traceCommand(goos, host string, maxHops int, hopTimeout time.Duration) (string, []string) {
	hops := strconv.Itoa(maxHops)
	if goos == "windows" {
		return "tracert", []string{"-d", "-h", hops, "-w", strconv.FormatInt(hopTimeout.Milliseconds(), 10), host}
	}
	wait := strconv.FormatFloat(hopTimeout.Seconds(), 'f', -1, 64)
	if goos != "linux" {
		// BSD traceroute only accepts whole seconds.
		wait = strconv.Itoa(int(math.Max(1, math.Ceil(hopTimeout.Seconds()))))
	}
	return "traceroute", []string{"-n", "-q", "1", "-m", hops, "-w", wait, host}
}
