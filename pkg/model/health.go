package model

import "time"

// GatewayUnreachableMs marks a gateway that was discovered but did not answer its probe.
const GatewayUnreachableMs = 999

// HealthReading aggregates one probe batch. It lives for a single cycle and is never stored as-is.
type HealthReading struct {
	TargetHost        string   `gorm:"size:255" json:"targetHost"`
	ExternalLatencyMs float64  `json:"externalLatencyMs"`
	JitterMs          float64  `json:"jitterMs"`
	PacketLossPct     float64  `json:"packetLossPct"`
	GatewayLatencyMs  float64  `json:"gatewayLatencyMs"`
	GatewayAddress    string   `gorm:"size:45" json:"gatewayAddress,omitempty"` // empty when discovery failed
	DNSLatencyMs      *float64 `json:"dnsLatencyMs,omitempty"`                  // nil when resolution failed
}

// HasGateway reports whether a gateway address was discovered for this reading.
func (r HealthReading) HasGateway() bool {
	return r.GatewayAddress != ""
}

// GatewayUnresponsive reports whether the gateway was discovered but did not answer.
func (r HealthReading) GatewayUnresponsive() bool {
	return r.HasGateway() && r.GatewayLatencyMs >= GatewayUnreachableMs
}

// Sample is a persisted, classified reading. It is never updated after Append.
type Sample struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Timestamp     time.Time `gorm:"index;precision:6" json:"timestamp"`
	HealthReading `gorm:"embedded"`
	Status        Status    `gorm:"size:32" json:"status"`
	ForensicTrace string    `gorm:"type:text" json:"forensicTrace,omitempty"`
	DownloadMbps  float64   `json:"downloadMbps"` // reserved, always zero
	UploadMbps    float64   `json:"uploadMbps"`   // reserved, always zero
}

// TableName keeps the table name stable across storage backends.
func (Sample) TableName() string { return "samples" }
