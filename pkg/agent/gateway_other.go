//go:build !linux && !windows && !darwin && !freebsd && !openbsd && !netbsd && !dragonfly

package agent

import (
	"context"
	"net/netip"
)

type noRouteReader struct{}

// NewRouteTableReader returns a reader that never finds a gateway on unsupported platforms.
func NewRouteTableReader() RouteTableReader { return noRouteReader{} }

func (noRouteReader) DefaultGateway(context.Context) (netip.Addr, bool) { return netip.Addr{}, false }
