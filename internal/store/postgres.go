package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"alertsync-backend/internal/model"
)

// Postgres is the durable CorrelationStore. Every write runs in a
// transaction that locks the affected row, so concurrent writers never
// interleave a partial update of one record.
type Postgres struct {
	Pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{Pool: pool}, nil
}

func (p *Postgres) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}

const correlationColumns = `monitor_id, ticketing_id, match_type, match_confidence,
	acknowledged_by, acknowledged_at, resolved_by, resolved_at,
	pending_ack_actor, pending_ack_note, pending_ack_at,
	pending_resolve_actor, pending_resolve_note, pending_resolve_at,
	created_at, updated_at`

func (p *Postgres) Get(ctx context.Context, monitorID string) (model.CorrelationRecord, error) {
	row := p.Pool.QueryRow(ctx, `SELECT `+correlationColumns+` FROM correlations WHERE monitor_id=$1`, monitorID)
	return scanRecord(row)
}

func (p *Postgres) List(ctx context.Context) ([]model.CorrelationRecord, error) {
	return p.query(ctx, `SELECT `+correlationColumns+` FROM correlations ORDER BY monitor_id`)
}

func (p *Postgres) ListUnresolved(ctx context.Context) ([]model.CorrelationRecord, error) {
	return p.query(ctx, `SELECT `+correlationColumns+` FROM correlations WHERE resolved_at IS NULL ORDER BY monitor_id`)
}

func (p *Postgres) ListByTicketingID(ctx context.Context, ticketingID string) ([]model.CorrelationRecord, error) {
	return p.query(ctx, `SELECT `+correlationColumns+` FROM correlations WHERE ticketing_id=$1 ORDER BY monitor_id`, ticketingID)
}

func (p *Postgres) ListPendingActions(ctx context.Context) ([]model.CorrelationRecord, error) {
	return p.query(ctx, `SELECT `+correlationColumns+` FROM correlations
		WHERE pending_ack_at IS NOT NULL OR pending_resolve_at IS NOT NULL ORDER BY monitor_id`)
}

func (p *Postgres) Upsert(ctx context.Context, rec model.CorrelationRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	return p.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+correlationColumns+` FROM correlations WHERE monitor_id=$1 FOR UPDATE`, rec.MonitorID)
		prev, err := scanRecord(row)
		if errors.Is(err, ErrNotFound) {
			_, err = tx.Exec(ctx, `INSERT INTO correlations
				(monitor_id, ticketing_id, match_type, match_confidence, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())`,
				rec.MonitorID, nullable(rec.TicketingID), string(rec.MatchType), rec.MatchConfidence)
			return err
		}
		if err != nil {
			return err
		}
		if !model.CanReplace(prev, rec) {
			return fmt.Errorf("%w: %s held by %s at %d, offered %d", ErrDowngrade,
				prev.MonitorID, prev.TicketingID, prev.MatchConfidence, rec.MatchConfidence)
		}
		_, err = tx.Exec(ctx, `UPDATE correlations
			SET ticketing_id=$2, match_type=$3, match_confidence=$4, updated_at=now()
			WHERE monitor_id=$1`,
			rec.MonitorID, nullable(rec.TicketingID), string(rec.MatchType), rec.MatchConfidence)
		return err
	})
}

func (p *Postgres) Clear(ctx context.Context, monitorID string) error {
	return p.exec(ctx, `UPDATE correlations
		SET ticketing_id=NULL, match_type='none', match_confidence=0, updated_at=now()
		WHERE monitor_id=$1`, monitorID)
}

func (p *Postgres) RequestAcknowledge(ctx context.Context, monitorID, actor, note string, at time.Time) error {
	return p.exec(ctx, `UPDATE correlations
		SET pending_ack_actor=$2, pending_ack_note=$3, pending_ack_at=$4, updated_at=now()
		WHERE monitor_id=$1`, monitorID, actor, note, at)
}

func (p *Postgres) RequestResolve(ctx context.Context, monitorID, actor, note string, at time.Time) error {
	return p.exec(ctx, `UPDATE correlations
		SET pending_resolve_actor=$2, pending_resolve_note=$3, pending_resolve_at=$4, updated_at=now()
		WHERE monitor_id=$1`, monitorID, actor, note, at)
}

func (p *Postgres) CompleteAcknowledge(ctx context.Context, monitorID, actor string, at time.Time) error {
	return p.exec(ctx, `UPDATE correlations
		SET acknowledged_by=$2, acknowledged_at=$3,
		    pending_ack_actor=NULL, pending_ack_note=NULL, pending_ack_at=NULL, updated_at=now()
		WHERE monitor_id=$1`, monitorID, actor, at)
}

func (p *Postgres) CompleteResolve(ctx context.Context, monitorID, actor string, at time.Time) error {
	return p.exec(ctx, `UPDATE correlations
		SET resolved_by=$2, resolved_at=$3,
		    pending_resolve_actor=NULL, pending_resolve_note=NULL, pending_resolve_at=NULL, updated_at=now()
		WHERE monitor_id=$1`, monitorID, actor, at)
}

func (p *Postgres) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := p.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *Postgres) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := p.Pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) query(ctx context.Context, sql string, args ...any) ([]model.CorrelationRecord, error) {
	rows, err := p.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := []model.CorrelationRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

func scanRecord(row pgx.Row) (model.CorrelationRecord, error) {
	var rec model.CorrelationRecord
	var (
		ticketingID, ackBy, resBy                *string
		ackAt, resAt                             *time.Time
		pAckActor, pAckNote, pResActor, pResNote *string
		pAckAt, pResAt                           *time.Time
		matchType                                string
	)
	err := row.Scan(&rec.MonitorID, &ticketingID, &matchType, &rec.MatchConfidence,
		&ackBy, &ackAt, &resBy, &resAt,
		&pAckActor, &pAckNote, &pAckAt,
		&pResActor, &pResNote, &pResAt,
		&rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.CorrelationRecord{}, ErrNotFound
	}
	if err != nil {
		return model.CorrelationRecord{}, err
	}
	rec.MatchType = model.MatchType(matchType)
	rec.TicketingID = deref(ticketingID)
	rec.AcknowledgedBy = deref(ackBy)
	rec.AcknowledgedAt = ackAt
	rec.ResolvedBy = deref(resBy)
	rec.ResolvedAt = resAt
	if pAckAt != nil {
		rec.PendingAck = &model.PendingAction{Actor: deref(pAckActor), Note: deref(pAckNote), RequestedAt: *pAckAt}
	}
	if pResAt != nil {
		rec.PendingResolve = &model.PendingAction{Actor: deref(pResActor), Note: deref(pResNote), RequestedAt: *pResAt}
	}
	return rec, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
