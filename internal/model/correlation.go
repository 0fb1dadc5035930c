package model

import (
	"errors"
	"fmt"
	"time"
)

type MatchType string

const (
	MatchNone           MatchType = "none"
	MatchHighConfidence MatchType = "high_confidence"
	MatchContent        MatchType = "content_similarity"
	MatchLowConfidence  MatchType = "low_confidence"
)

var ErrInvariant = errors.New("correlation invariant violated")

type ActionKind string

const (
	ActionAcknowledge ActionKind = "acknowledge"
	ActionResolve     ActionKind = "resolve"
)

// PendingAction is an operator request (or auto-resolve) that has not yet
// been confirmed against the ticketing system.
type PendingAction struct {
	Actor       string    `json:"actor"`
	Note        string    `json:"note,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// CorrelationRecord is the durable mapping between one monitor alert and its
// ticketing counterpart. One record exists per monitor alert ever observed;
// records are never deleted.
type CorrelationRecord struct {
	MonitorID       string         `json:"monitor_id"`
	TicketingID     string         `json:"ticketing_id,omitempty"`
	MatchType       MatchType      `json:"match_type"`
	MatchConfidence int            `json:"match_confidence"`
	AcknowledgedBy  string         `json:"acknowledged_by,omitempty"`
	AcknowledgedAt  *time.Time     `json:"acknowledged_at,omitempty"`
	ResolvedBy      string         `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
	PendingAck      *PendingAction `json:"pending_ack,omitempty"`
	PendingResolve  *PendingAction `json:"pending_resolve,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Matched reports whether the record currently links to a ticketing alert.
func (c CorrelationRecord) Matched() bool {
	return c.TicketingID != ""
}

// Validate checks the record's internal invariants: an unmatched record has
// type none and confidence zero, a matched record has a non-none type and a
// confidence in (0,100].
func (c CorrelationRecord) Validate() error {
	if c.MonitorID == "" {
		return fmt.Errorf("%w: monitor_id is empty", ErrInvariant)
	}
	if c.MatchConfidence < 0 || c.MatchConfidence > 100 {
		return fmt.Errorf("%w: confidence %d out of range", ErrInvariant, c.MatchConfidence)
	}
	switch c.MatchType {
	case MatchNone:
		if c.TicketingID != "" || c.MatchConfidence != 0 {
			return fmt.Errorf("%w: match_type none with ticketing_id %q confidence %d", ErrInvariant, c.TicketingID, c.MatchConfidence)
		}
	case MatchHighConfidence, MatchContent, MatchLowConfidence:
		if c.TicketingID == "" {
			return fmt.Errorf("%w: match_type %s without ticketing_id", ErrInvariant, c.MatchType)
		}
		if c.MatchConfidence == 0 {
			return fmt.Errorf("%w: match_type %s with zero confidence", ErrInvariant, c.MatchType)
		}
	default:
		return fmt.Errorf("%w: unknown match_type %q", ErrInvariant, c.MatchType)
	}
	return nil
}

// CanReplace reports whether next may overwrite the link held by prev.
// A link is only replaced by a strictly higher-confidence candidate;
// re-asserting the same counterpart is always allowed. Explicit clearing
// goes through the store's Clear, never through Upsert.
func CanReplace(prev, next CorrelationRecord) bool {
	if !prev.Matched() {
		return true
	}
	if next.TicketingID == prev.TicketingID {
		return true
	}
	return next.MatchConfidence > prev.MatchConfidence
}
