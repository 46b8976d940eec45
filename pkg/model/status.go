package model

import "fmt"

// Status is the root-cause verdict assigned to a sample.
type Status string

const (
	StatusOK                Status = "OK"
	StatusPacketLoss        Status = "PACKET_LOSS"
	StatusInternalWiFiIssue Status = "INTERNAL_WIFI_ISSUE"
	StatusISPLatency        Status = "ISP_LATENCY"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOK, StatusPacketLoss, StatusInternalWiFiIssue, StatusISPLatency:
		return true
	}
	return false
}

// IsProblem is true for every status except OK.
func (s Status) IsProblem() bool {
	return s != StatusOK
}

// ParseStatus converts a stored status string back into a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", v)
	}
	return s, nil
}
