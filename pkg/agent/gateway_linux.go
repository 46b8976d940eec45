//go:build linux

package agent

import (
	"context"
	"net/netip"
	"os"
)

type linuxRouteReader struct {
	run       commandRunner
	readFile  func(string) ([]byte, error)
	procRoute string
}

// NewRouteTableReader returns the reader for the current OS.
func NewRouteTableReader() RouteTableReader {
	return &linuxRouteReader{run: execOutput, readFile: os.ReadFile, procRoute: "/proc/net/route"}
}

func (r *linuxRouteReader) DefaultGateway(ctx context.Context) (netip.Addr, bool) {
	if out, err := r.run(ctx, "ip", "-4", "route", "show", "default"); err == nil {
		if a, ok := parseIPRouteDefault(string(out)); ok {
			return a, true
		}
	}
	b, err := r.readFile(r.procRoute)
	if err != nil {
		return netip.Addr{}, false
	}
	return parseProcNetRoute(string(b))
}
