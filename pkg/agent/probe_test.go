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

func TestPingArgs(t *testing.T) {
	tests := []struct {
		goos    string
		timeout time.Duration
		want    []string
	}{
		{"windows", time.Second, []string{"-n", "1", "-w", "1000", target}},
		{"darwin", time.Second, []string{"-n", "-c", "1", "-W", "1000", target}},
		{"freebsd", 500 * time.Millisecond, []string{"-n", "-c", "1", "-W", "500", target}},
		{"linux", time.Second, []string{"-n", "-c", "1", "-W", "1", target}},
		{"linux", 500 * time.Millisecond, []string{"-n", "-c", "1", "-W", "1", target}},
		{"linux", 1500 * time.Millisecond, []string{"-n", "-c", "1", "-W", "2", target}},
	}
	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.timeout.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, pingArgs(tt.goos, target, tt.timeout))
		})
	}
}

func TestParsePingRTT(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want time.Duration
	}{
		{"linux", "64 bytes from 8.8.8.8: icmp_seq=1 ttl=117 time=12.3 ms", 12300 * time.Microsecond},
		{"windows english", "Reply from 8.8.8.8: bytes=32 time=14ms TTL=117", 14 * time.Millisecond},
		{"windows sub-millisecond", "Reply from 192.168.1.1: bytes=32 time<1ms TTL=64", 500 * time.Microsecond},
		{"windows portuguese", "Resposta de 8.8.8.8: bytes=32 tempo=21ms TTL=117", 21 * time.Millisecond},
		{"windows german", "Antwort von 8.8.8.8: Bytes=32 Zeit=9ms TTL=117", 9 * time.Millisecond},
		{"comma decimal", "Respuesta desde 8.8.8.8: bytes=32 tiempo=3,5 ms TTL=117", 3500 * time.Microsecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parsePingRTT(tt.out)
			require.True(t, ok)
			assert.InDelta(t, float64(tt.want), float64(got), float64(time.Microsecond))
		})
	}
}

func TestParsePingRTTNoReply(t *testing.T) {
	for _, out := range []string{
		"Request timed out.",
		"1 packets transmitted, 0 received, 100% packet loss, time 0ms",
		"",
	} {
		_, ok := parsePingRTT(out)
		assert.False(t, ok, out)
	}
}

type fakeRun struct {
	name string
	args []string
	out  []byte
	err  error
}

func (f *fakeRun) run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.name, f.args = name, args
	return f.out, f.err
}

func foundPing(string) (string, error) { return "/bin/ping", nil }

func TestExecProber(t *testing.T) {
	f := &fakeRun{out: []byte("64 bytes from 8.8.8.8: icmp_seq=1 ttl=117 time=18.0 ms\n")}
	p := &ExecProber{run: f.run, goos: "linux", lookPath: foundPing}

	rtt, err := p.Probe(context.Background(), target, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 18*time.Millisecond, rtt)
	assert.Equal(t, "ping", f.name)
	assert.Equal(t, pingArgs("linux", target, time.Second), f.args)
}

func TestExecProberFailures(t *testing.T) {
	t.Run("command error", func(t *testing.T) {
		p := &ExecProber{run: (&fakeRun{err: errors.New("exit status 1")}).run, goos: "linux", lookPath: foundPing}
		_, err := p.Probe(context.Background(), target, time.Second)
		assert.Error(t, err)
	})
	t.Run("unparseable output", func(t *testing.T) {
		p := &ExecProber{run: (&fakeRun{out: []byte("Request timed out.")}).run, goos: "windows", lookPath: foundPing}
		_, err := p.Probe(context.Background(), target, time.Second)
		assert.ErrorIs(t, err, errNoReply)
	})
	t.Run("late reply", func(t *testing.T) {
		p := &ExecProber{run: (&fakeRun{out: []byte("time=1200 ms")}).run, goos: "linux", lookPath: foundPing}
		_, err := p.Probe(context.Background(), target, time.Second)
		assert.Error(t, err)
	})
}

type constProber struct {
	rtt   time.Duration
	calls int
}

func (c *constProber) Probe(context.Context, string, time.Duration) (time.Duration, error) {
	c.calls++
	return c.rtt, nil
}

func TestExecProberFallsBackWithoutPing(t *testing.T) {
	fb := &constProber{rtt: 7 * time.Millisecond}
	f := &fakeRun{}
	p := &ExecProber{
		run:      f.run,
		goos:     "linux",
		lookPath: func(string) (string, error) { return "", errors.New("not found") },
		fallback: fb,
	}
	rtt, err := p.Probe(context.Background(), target, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Millisecond, rtt)
	assert.Equal(t, 1, fb.calls)
	assert.Empty(t, f.name, "ping must not be invoked")
}

func TestTCPProber(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	_, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)

	rtt, err := TCPProber{Port: port}.Probe(context.Background(), "127.0.0.1", time.Second)
	require.NoError(t, err)
	assert.Greater(t, rtt, time.Duration(0))
}
