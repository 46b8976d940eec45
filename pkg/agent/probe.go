package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Prober sends a single echo request and reports its round-trip time.
// Any error means the probe is counted as lost.
type Prober interface {
	Probe(ctx context.Context, host string, timeout time.Duration) (time.Duration, error)
}

// errNoReply is returned when ping exits without a parseable round-trip time.
var errNoReply = errors.New("no echo reply")

// ExecProber shells out to the system ping binary, falling back to a TCP
// connect when ping is not installed.
type ExecProber struct {
	run      commandRunner
	goos     string
	lookPath func(string) (string, error)
	fallback Prober
}

func NewExecProber() *ExecProber {
	return &ExecProber{
		run:      execCombined,
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		fallback: TCPProber{Port: "443"},
	}
}

func (p *ExecProber) Probe(ctx context.Context, host string, timeout time.Duration) (time.Duration, error) {
	if _, err := p.lookPath("ping"); err != nil {
		return p.fallback.Probe(ctx, host, timeout)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout+250*time.Millisecond)
	defer cancel()
	out, err := p.run(ctx, "ping", pingArgs(p.goos, host, timeout)...)
	if err != nil {
		return 0, fmt.Errorf("ping %s: %w", host, err)
	}
	rtt, ok := parsePingRTT(decodeConsole(out))
	if !ok {
		return 0, errNoReply
	}
	if rtt > timeout {
		return 0, fmt.Errorf("ping %s: reply after %s exceeds timeout", host, rtt)
	}
	return rtt, nil
}

// pingArgs builds a single-echo ping invocation. Linux takes -W in seconds,
// macOS in milliseconds, Windows uses -w in milliseconds.
func pingArgs(goos, host string, timeout time.Duration) []string {
	ms := timeout.Milliseconds()
	switch goos {
	case "windows":
		return []string{"-n", "1", "-w", strconv.FormatInt(ms, 10), host}
	case "darwin", "freebsd", "openbsd", "netbsd":
		return []string{"-n", "-c", "1", "-W", strconv.FormatInt(ms, 10), host}
	default:
		secs := int(math.Ceil(timeout.Seconds()))
		if secs < 1 {
			secs = 1
		}
		return []string{"-n", "-c", "1", "-W", strconv.Itoa(secs), host}
	}
}

// Matches "time=12.3 ms", "time<1ms", and localized Windows output such as "tempo=14ms".
var pingRttRe = regexp.MustCompile(`(?i)(?:time|tempo|zeit|temps|tiempo)\s*([=<])\s*([0-9]+(?:[.,][0-9]+)?)\s*ms`)

func parsePingRTT(s string) (time.Duration, bool) {
	m := pingRttRe.FindStringSubmatch(s)
	if len(m) != 3 {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.Replace(m[2], ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	if m[1] == "<" {
		// "time<1ms" only bounds the value; report half the bound.
		v /= 2
	}
	return time.Duration(v * float64(time.Millisecond)), true
}

// TCPProber measures connect time to Port. It is the best-effort stand-in when ICMP is unavailable.
type TCPProber struct {
	Port string
}

func (p TCPProber) Probe(ctx context.Context, host string, timeout time.Duration) (time.Duration, error) {
	d := net.Dialer{Timeout: timeout}
	start := time.Now()
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(host, p.Port))
	if err != nil {
		return 0, err
	}
	elapsed := time.Since(start)
	_ = conn.Close()
	return elapsed, nil
}
