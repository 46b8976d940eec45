//go:build darwin || freebsd || openbsd || netbsd || dragonfly

package agent

import (
	"context"
	"net/netip"
)

type bsdRouteReader struct {
	run commandRunner
}

// NewRouteTableReader returns the reader for the current OS.
func NewRouteTableReader() RouteTableReader {
	return &bsdRouteReader{run: execOutput}
}

func (r *bsdRouteReader) DefaultGateway(ctx context.Context) (netip.Addr, bool) {
	out, err := r.run(ctx, "route", "-n", "get", "default")
	if err != nil {
		return netip.Addr{}, false
	}
	return parseRouteGet(string(out))
}
