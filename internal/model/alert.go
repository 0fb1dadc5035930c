package model

import (
	"strings"
	"time"
)

type Origin string

const (
	OriginMonitor   Origin = "monitor"
	OriginTicketing Origin = "ticketing"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
	SeverityUnknown  Severity = "unknown"
)

// AlertRecord is a normalized alert from either external system. Sources are
// expected to hand these over already parsed; the engine never sees raw wire
// payloads.
type AlertRecord struct {
	ExternalID string    `json:"external_id"`
	Origin     Origin    `json:"origin"`
	Alias      string    `json:"alias,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	Severity   Severity  `json:"severity"`
	Status     string    `json:"status,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

var severityGroups = map[Severity][]string{
	SeverityCritical: {"critical", "crit", "p1", "high"},
	SeverityWarning:  {"warning", "warn", "p2", "medium"},
	SeverityInfo:     {"info", "information", "p3", "p4", "p5", "low", "minor"},
}

// ParseSeverity maps source-specific severity labels onto the four known
// levels. Unrecognized labels become SeverityUnknown.
func ParseSeverity(raw string) Severity {
	norm := strings.ToLower(strings.TrimSpace(raw))
	if norm == "" {
		return SeverityUnknown
	}
	for level, labels := range severityGroups {
		for _, label := range labels {
			if norm == label {
				return level
			}
		}
	}
	return SeverityUnknown
}
