package model

import (
	"strings"
	"time"
)

// AnomalyRecord flags one persisted sample whose metrics exceeded the learned baseline.
type AnomalyRecord struct {
	SampleID  uint64    `json:"sampleId"`
	Timestamp time.Time `json:"timestamp"`
	Reasons   []string  `json:"reasons"`
}

// Reason joins all reasons into a single line.
func (a AnomalyRecord) Reason() string {
	return strings.Join(a.Reasons, ", ")
}
