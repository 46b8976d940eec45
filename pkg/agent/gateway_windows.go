//go:build windows

package agent

import (
	"context"
	"net/netip"
)

type windowsRouteReader struct {
	run commandRunner
}

// NewRouteTableReader returns the reader for the current OS.
func NewRouteTableReader() RouteTableReader {
	return &windowsRouteReader{run: execOutput}
}

func (r *windowsRouteReader) DefaultGateway(ctx context.Context) (netip.Addr, bool) {
	out, err := r.run(ctx, "ipconfig")
	if err != nil {
		return netip.Addr{}, false
	}
	return parseLabeledGateway(decodeConsole(out), gatewayLabels)
}
