package agent

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/hex"
	"net/netip"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RouteTableReader extracts the default IPv4 gateway from the OS routing state.
// Implementations are per-OS; none of them report errors, only absence.
type RouteTableReader interface {
	DefaultGateway(ctx context.Context) (netip.Addr, bool)
}

// GatewayDiscovery bounds a RouteTableReader so discovery stays sub-second every cycle.
type GatewayDiscovery struct {
	reader  RouteTableReader
	timeout time.Duration
}

func NewGatewayDiscovery(reader RouteTableReader, timeout time.Duration) *GatewayDiscovery {
	if reader == nil {
		reader = NewRouteTableReader()
	}
	return &GatewayDiscovery{reader: reader, timeout: timeout}
}

// Discover returns the default gateway, or false when it cannot be determined.
func (g *GatewayDiscovery) Discover(ctx context.Context) (netip.Addr, bool) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	addr, ok := g.reader.DefaultGateway(ctx)
	if !ok || !usableGateway(addr) {
		return netip.Addr{}, false
	}
	return addr, true
}

func usableGateway(a netip.Addr) bool {
	return a.IsValid() && a.Is4() && !a.IsUnspecified() && !a.IsLoopback()
}

var ipv4Re = regexp.MustCompile(`\b(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\b`)

// firstIPv4 returns the first well-formed, usable IPv4 address in s.
func firstIPv4(s string) (netip.Addr, bool) {
	for _, m := range ipv4Re.FindAllString(s, -1) {
		if a, err := netip.ParseAddr(m); err == nil && usableGateway(a) {
			return a, true
		}
	}
	return netip.Addr{}, false
}

var ipRouteDefaultRe = regexp.MustCompile(`(?m)^default\s+via\s+(\S+)`)

// parseIPRouteDefault reads `ip -4 route show default` output.
func parseIPRouteDefault(out string) (netip.Addr, bool) {
	for _, m := range ipRouteDefaultRe.FindAllStringSubmatch(out, -1) {
		if a, err := netip.ParseAddr(m[1]); err == nil && usableGateway(a) {
			return a, true
		}
	}
	return netip.Addr{}, false
}

// parseProcNetRoute reads /proc/net/route: the default route has destination
// 00000000 and the RTF_GATEWAY flag, with the gateway in little-endian hex.
func parseProcNetRoute(out string) (netip.Addr, bool) {
	const rtfGateway = 0x2
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || fields[1] != "00000000" {
			continue
		}
		flags, err := strconv.ParseUint(fields[3], 16, 32)
		if err != nil || flags&rtfGateway == 0 {
			continue
		}
		raw, err := hex.DecodeString(fields[2])
		if err != nil || len(raw) != 4 {
			continue
		}
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], binary.LittleEndian.Uint32(raw))
		if a := netip.AddrFrom4(b); usableGateway(a) {
			return a, true
		}
	}
	return netip.Addr{}, false
}

var routeGetGatewayRe = regexp.MustCompile(`(?m)^\s*gateway:\s*(\S+)`)

// parseRouteGet reads BSD/macOS `route -n get default` output.
func parseRouteGet(out string) (netip.Addr, bool) {
	m := routeGetGatewayRe.FindStringSubmatch(out)
	if len(m) != 2 {
		return netip.Addr{}, false
	}
	a, err := netip.ParseAddr(m[1])
	if err != nil || !usableGateway(a) {
		return netip.Addr{}, false
	}
	return a, true
}

// gatewayLabels are the localized ipconfig labels for the default gateway line.
var gatewayLabels = []string{
	"gateway",          // en "Default Gateway", de "Standardgateway"
	"padrão",           // pt-BR "Gateway Padrão"
	"passerelle",       // fr "Passerelle par défaut"
	"puerta de enlace", // es
}

// parseLabeledGateway scans ipconfig-style output for a gateway label and returns
// the first IPv4 on that line or its continuation lines (IPv6 gateways are listed first).
func parseLabeledGateway(out string, labels []string) (netip.Addr, bool) {
	lines := strings.Split(strings.ReplaceAll(out, "\r\n", "\n"), "\n")
	for i, line := range lines {
		if !hasLabel(line, labels) {
			continue
		}
		value := line
		if idx := strings.Index(line, " : "); idx >= 0 {
			value = line[idx+3:]
		}
		if a, ok := firstIPv4(value); ok {
			return a, true
		}
		for j := i + 1; j < len(lines) && isContinuation(lines[j]); j++ {
			if a, ok := firstIPv4(lines[j]); ok {
				return a, true
			}
		}
	}
	return netip.Addr{}, false
}

func hasLabel(line string, labels []string) bool {
	lower := strings.ToLower(line)
	for _, l := range labels {
		if strings.Contains(lower, l) {
			return true
		}
	}
	return false
}

// isContinuation matches the indented value-only lines ipconfig prints under a label.
func isContinuation(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed != "" && line != trimmed && !strings.Contains(line, ". .")
}
