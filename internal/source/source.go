// Package source defines the contracts for the two external alert
// inventories. Implementations hand back already-normalized records; how
// they talk to the wire is their business.
package source

import (
	"context"

	"alertsync-backend/internal/model"
)

// MonitorSource is the read-only alerting side (e.g. a metrics platform).
type MonitorSource interface {
	FetchCurrentAlerts(ctx context.Context) ([]model.AlertRecord, error)
}

// TicketingSource is the incident-management side. Acknowledge and
// CloseOrResolve are idempotent: implementations treat "already in target
// state" responses as success, so a retried call never changes the end
// state.
type TicketingSource interface {
	FetchCurrentAlerts(ctx context.Context) ([]model.AlertRecord, error)
	Acknowledge(ctx context.Context, externalID, note, actor string) error
	CloseOrResolve(ctx context.Context, externalID, note, actor string) error
}
