// Package store holds the durable mapping between monitor alerts and their
// ticketing counterparts. Writes are atomic per record and reject anything
// that would violate the correlation invariants instead of coercing it.
package store

import (
	"context"
	"errors"
	"time"

	"alertsync-backend/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDowngrade is returned when an upsert would replace an existing
	// link with a lower-confidence counterpart.
	ErrDowngrade = errors.New("match downgrade rejected")
)

// CorrelationStore guarantees at most one CorrelationRecord per monitor ID.
// Upsert applies only the link fields (ticketing_id, match_type,
// match_confidence); acknowledgment, resolution and pending actions are
// owned by the action methods and survive re-linking untouched.
type CorrelationStore interface {
	Get(ctx context.Context, monitorID string) (model.CorrelationRecord, error)
	List(ctx context.Context) ([]model.CorrelationRecord, error)
	ListUnresolved(ctx context.Context) ([]model.CorrelationRecord, error)
	ListByTicketingID(ctx context.Context, ticketingID string) ([]model.CorrelationRecord, error)
	ListPendingActions(ctx context.Context) ([]model.CorrelationRecord, error)

	Upsert(ctx context.Context, rec model.CorrelationRecord) error
	// Clear resets the record to unmatched. It is the only way to drop a
	// link without a higher-confidence replacement and exists for the case
	// where the counterpart disappeared from the ticketing system.
	Clear(ctx context.Context, monitorID string) error

	RequestAcknowledge(ctx context.Context, monitorID, actor, note string, at time.Time) error
	RequestResolve(ctx context.Context, monitorID, actor, note string, at time.Time) error
	CompleteAcknowledge(ctx context.Context, monitorID, actor string, at time.Time) error
	CompleteResolve(ctx context.Context, monitorID, actor string, at time.Time) error
}
