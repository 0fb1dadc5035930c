package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"alertsync-backend/internal/model"
)

// Memory is an in-process CorrelationStore. It backs the engine tests and
// the `storage: memory` dev mode; production runs on Postgres.
type Memory struct {
	mu   sync.RWMutex
	data map[string]model.CorrelationRecord
	now  func() time.Time // injectable for deterministic tests
}

func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]model.CorrelationRecord),
		now:  time.Now,
	}
}

func (m *Memory) Get(_ context.Context, monitorID string) (model.CorrelationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.data[monitorID]
	if !ok {
		return model.CorrelationRecord{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) List(_ context.Context) ([]model.CorrelationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(model.CorrelationRecord) bool { return true }), nil
}

func (m *Memory) ListUnresolved(_ context.Context) ([]model.CorrelationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(rec model.CorrelationRecord) bool { return rec.ResolvedAt == nil }), nil
}

func (m *Memory) ListByTicketingID(_ context.Context, ticketingID string) ([]model.CorrelationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(rec model.CorrelationRecord) bool {
		return ticketingID != "" && rec.TicketingID == ticketingID
	}), nil
}

func (m *Memory) ListPendingActions(_ context.Context) ([]model.CorrelationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collect(func(rec model.CorrelationRecord) bool {
		return rec.PendingAck != nil || rec.PendingResolve != nil
	}), nil
}

func (m *Memory) Upsert(_ context.Context, rec model.CorrelationRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	prev, ok := m.data[rec.MonitorID]
	if !ok {
		// insert only the link fields, like the SQL backend does
		m.data[rec.MonitorID] = model.CorrelationRecord{
			MonitorID:       rec.MonitorID,
			TicketingID:     rec.TicketingID,
			MatchType:       rec.MatchType,
			MatchConfidence: rec.MatchConfidence,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return nil
	}
	if !model.CanReplace(prev, rec) {
		return fmt.Errorf("%w: %s held by %s at %d, offered %d", ErrDowngrade,
			prev.MonitorID, prev.TicketingID, prev.MatchConfidence, rec.MatchConfidence)
	}
	prev.TicketingID = rec.TicketingID
	prev.MatchType = rec.MatchType
	prev.MatchConfidence = rec.MatchConfidence
	prev.UpdatedAt = now
	m.data[prev.MonitorID] = prev
	return nil
}

func (m *Memory) Clear(_ context.Context, monitorID string) error {
	return m.mutate(monitorID, func(rec *model.CorrelationRecord) {
		rec.TicketingID = ""
		rec.MatchType = model.MatchNone
		rec.MatchConfidence = 0
	})
}

func (m *Memory) RequestAcknowledge(_ context.Context, monitorID, actor, note string, at time.Time) error {
	return m.mutate(monitorID, func(rec *model.CorrelationRecord) {
		rec.PendingAck = &model.PendingAction{Actor: actor, Note: note, RequestedAt: at}
	})
}

func (m *Memory) RequestResolve(_ context.Context, monitorID, actor, note string, at time.Time) error {
	return m.mutate(monitorID, func(rec *model.CorrelationRecord) {
		rec.PendingResolve = &model.PendingAction{Actor: actor, Note: note, RequestedAt: at}
	})
}

func (m *Memory) CompleteAcknowledge(_ context.Context, monitorID, actor string, at time.Time) error {
	return m.mutate(monitorID, func(rec *model.CorrelationRecord) {
		rec.AcknowledgedBy = actor
		rec.AcknowledgedAt = &at
		rec.PendingAck = nil
	})
}

func (m *Memory) CompleteResolve(_ context.Context, monitorID, actor string, at time.Time) error {
	return m.mutate(monitorID, func(rec *model.CorrelationRecord) {
		rec.ResolvedBy = actor
		rec.ResolvedAt = &at
		rec.PendingResolve = nil
	})
}

func (m *Memory) mutate(monitorID string, fn func(*model.CorrelationRecord)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.data[monitorID]
	if !ok {
		return ErrNotFound
	}
	fn(&rec)
	rec.UpdatedAt = m.now().UTC()
	m.data[monitorID] = rec
	return nil
}

// collect assumes the caller holds at least a read lock. Results come back
// sorted by monitor ID so listings are stable.
func (m *Memory) collect(keep func(model.CorrelationRecord) bool) []model.CorrelationRecord {
	out := make([]model.CorrelationRecord, 0, len(m.data))
	for _, rec := range m.data {
		if keep(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MonitorID < out[j].MonitorID })
	return out
}
