package agent

import "netsentinel/pkg/model"

// Thresholds drive root-cause classification.
type Thresholds struct {
	LossPct   float64 // packet loss above this is PACKET_LOSS
	LatencyMs float64 // external latency above this is a latency problem
	GatewayMs float64 // gateway latency above this blames the local network
}

func DefaultThresholds() Thresholds {
	return Thresholds{LossPct: 2.0, LatencyMs: 100, GatewayMs: 50}
}

// Classify maps a reading to its status and whether forensic evidence should be captured.
// Rules are evaluated in order and the first match wins.
func Classify(r model.HealthReading, t Thresholds) (model.Status, bool) {
	switch {
	case r.PacketLossPct > t.LossPct:
		return model.StatusPacketLoss, true
	case r.ExternalLatencyMs > t.LatencyMs:
		if r.GatewayLatencyMs > t.GatewayMs {
			return model.StatusInternalWiFiIssue, true
		}
		return model.StatusISPLatency, true
	default:
		return model.StatusOK, false
	}
}
