// Package reconciler runs one synchronization pass: fetch both inventories,
// match what is unmatched, apply the results under the no-downgrade rule,
// clear dangling links, and flush pending operator actions to ticketing.
// Passes are resumable, not transactional: whatever a cancelled pass already
// committed per record stands, and the next pass continues from there.
package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"alertsync-backend/internal/bus"
	"alertsync-backend/internal/fingerprint"
	"alertsync-backend/internal/match"
	"alertsync-backend/internal/model"
	"alertsync-backend/internal/source"
	"alertsync-backend/internal/store"
)

// AutoResolveActor marks resolutions queued because the monitor alert
// disappeared, as opposed to explicit operator requests.
const AutoResolveActor = "auto-resolve"

// Publisher is the slice of bus.Publisher the reconciler needs.
type Publisher interface {
	Publish(subject string, payload any) error
}

type Summary struct {
	PassID          string    `json:"pass_id"`
	StartedAt       time.Time `json:"started_at"`
	DurationMillis  int64     `json:"duration_ms"`
	MonitorCount    int       `json:"monitor_count"`
	TicketingCount  int       `json:"ticketing_count"`
	NewMatches      int       `json:"new_matches"`
	UpgradedMatches int       `json:"upgraded_matches"`
	ClearedMatches  int       `json:"cleared_matches"`
	Unmatched       int       `json:"unmatched"`
	ActionSuccesses int       `json:"action_successes"`
	ActionFailures  int       `json:"action_failures"`
	Malformed       int       `json:"malformed"`
	WriteErrors     int       `json:"write_errors"`
	Partial         bool      `json:"partial"`
}

type Reconciler struct {
	Monitor   source.MonitorSource
	Ticketing source.TicketingSource
	Store     store.CorrelationStore
	Match     match.Config
	Logger    *slog.Logger
	Bus       Publisher // optional

	FetchRetries    int
	FetchRetryDelay time.Duration
	AutoClose       bool

	ExcludedClusters     []string
	ExcludedEnvironments []string

	now func() time.Time
}

func (r *Reconciler) clock() time.Time {
	if r.now != nil {
		return r.now()
	}
	return time.Now()
}

// Run executes one pass. The returned error is non-nil only when the pass
// could not make progress at all (both-side fetch or store listing failed);
// per-record trouble is counted in the summary instead.
func (r *Reconciler) Run(ctx context.Context) (Summary, error) {
	start := r.clock()
	sum := Summary{PassID: uuid.NewString(), StartedAt: start.UTC()}
	defer func() {
		sum.DurationMillis = r.clock().Sub(start).Milliseconds()
		if r.Bus != nil {
			if err := r.Bus.Publish(bus.SubjectSyncCompleted, sum); err != nil {
				r.Logger.Warn("summary publish failed", slog.String("error", err.Error()))
			}
		}
	}()

	monitorAlerts, err := source.FetchWithRetry(ctx, r.FetchRetries, r.FetchRetryDelay, r.Monitor.FetchCurrentAlerts)
	if err != nil {
		return sum, err
	}
	ticketingAlerts, err := source.FetchWithRetry(ctx, r.FetchRetries, r.FetchRetryDelay, r.Ticketing.FetchCurrentAlerts)
	if err != nil {
		return sum, err
	}
	sum.MonitorCount = len(monitorAlerts)
	sum.TicketingCount = len(ticketingAlerts)
	monitorAlerts = r.filterExcluded(monitorAlerts)

	monFPs := r.extract(monitorAlerts, &sum)
	candFPs := r.extract(ticketingAlerts, &sum)

	existing, err := r.Store.List(ctx)
	if err != nil {
		return sum, err
	}
	byMonitor := make(map[string]model.CorrelationRecord, len(existing))
	claimed := map[string]int{}
	for _, rec := range existing {
		byMonitor[rec.MonitorID] = rec
		if accepted(rec) && rec.MatchConfidence > claimed[rec.TicketingID] {
			claimed[rec.TicketingID] = rec.MatchConfidence
		}
	}

	r.matchAlerts(ctx, monFPs, candFPs, byMonitor, claimed, &sum)
	r.clearVanished(ctx, ticketingAlerts, &sum)
	if r.AutoClose {
		r.queueAutoResolve(ctx, monitorAlerts, &sum)
	}
	r.flushPendingActions(ctx, &sum)

	if ctx.Err() != nil {
		sum.Partial = true
	}
	return sum, nil
}

func (r *Reconciler) matchAlerts(ctx context.Context, monFPs, candFPs []fingerprint.Fingerprint,
	byMonitor map[string]model.CorrelationRecord, claimed map[string]int, sum *Summary) {
	for _, fp := range monFPs {
		if ctx.Err() != nil {
			sum.Partial = true
			return
		}
		prev, seen := byMonitor[fp.ExternalID]
		if seen && accepted(prev) {
			continue
		}
		candidates := make([]fingerprint.Fingerprint, 0, len(candFPs))
		for _, cand := range candFPs {
			if _, taken := claimed[cand.ExternalID]; taken {
				continue
			}
			candidates = append(candidates, cand)
		}
		res := match.Match(fp, candidates, r.Match)
		if res.Type == model.MatchNone {
			if !seen {
				if err := r.Store.Upsert(ctx, model.CorrelationRecord{
					MonitorID: fp.ExternalID,
					MatchType: model.MatchNone,
				}); err != nil {
					r.countWriteError(err, fp.ExternalID, sum)
					continue
				}
			}
			if !seen || !prev.Matched() {
				sum.Unmatched++
			}
			continue
		}
		if seen && prev.TicketingID == res.TicketingID && prev.MatchType == res.Type && prev.MatchConfidence == res.Confidence {
			// unchanged link, leave the record untouched
			continue
		}
		rec := model.CorrelationRecord{
			MonitorID:       fp.ExternalID,
			TicketingID:     res.TicketingID,
			MatchType:       res.Type,
			MatchConfidence: res.Confidence,
		}
		if err := r.Store.Upsert(ctx, rec); err != nil {
			r.countWriteError(err, fp.ExternalID, sum)
			continue
		}
		if !seen || !prev.Matched() {
			sum.NewMatches++
		} else if res.TicketingID != prev.TicketingID || res.Confidence > prev.MatchConfidence {
			sum.UpgradedMatches++
		}
		byMonitor[fp.ExternalID] = rec
		if accepted(rec) && res.Confidence > claimed[res.TicketingID] {
			claimed[res.TicketingID] = res.Confidence
		}
		r.Logger.Info("matched alert",
			slog.String("monitor_id", fp.ExternalID),
			slog.String("ticketing_id", res.TicketingID),
			slog.String("match_type", string(res.Type)),
			slog.Int("confidence", res.Confidence))
	}
}

// clearVanished resets links whose ticketing counterpart no longer exists
// upstream, instead of leaving a dangling reference.
func (r *Reconciler) clearVanished(ctx context.Context, ticketingAlerts []model.AlertRecord, sum *Summary) {
	present := make(map[string]struct{}, len(ticketingAlerts))
	for _, a := range ticketingAlerts {
		present[a.ExternalID] = struct{}{}
	}
	records, err := r.Store.List(ctx)
	if err != nil {
		r.Logger.Error("list for clearing failed", slog.String("error", err.Error()))
		sum.WriteErrors++
		return
	}
	for _, rec := range records {
		if ctx.Err() != nil {
			sum.Partial = true
			return
		}
		if !rec.Matched() {
			continue
		}
		if _, ok := present[rec.TicketingID]; ok {
			continue
		}
		if err := r.Store.Clear(ctx, rec.MonitorID); err != nil {
			r.countWriteError(err, rec.MonitorID, sum)
			continue
		}
		sum.ClearedMatches++
		r.Logger.Info("cleared vanished counterpart",
			slog.String("monitor_id", rec.MonitorID),
			slog.String("ticketing_id", rec.TicketingID))
	}
}

// queueAutoResolve requests a resolve for matched correlations whose monitor
// alert is no longer active. The request flows through the same pending
// queue as operator actions, so the outbound call happens later this pass
// and retries next pass on failure.
func (r *Reconciler) queueAutoResolve(ctx context.Context, monitorAlerts []model.AlertRecord, sum *Summary) {
	active := make(map[string]struct{}, len(monitorAlerts))
	for _, a := range monitorAlerts {
		active[a.ExternalID] = struct{}{}
	}
	records, err := r.Store.List(ctx)
	if err != nil {
		r.Logger.Error("list for auto-resolve failed", slog.String("error", err.Error()))
		sum.WriteErrors++
		return
	}
	for _, rec := range records {
		if ctx.Err() != nil {
			sum.Partial = true
			return
		}
		if !rec.Matched() || rec.ResolvedAt != nil || rec.PendingResolve != nil {
			continue
		}
		if _, ok := active[rec.MonitorID]; ok {
			continue
		}
		err := r.Store.RequestResolve(ctx, rec.MonitorID, AutoResolveActor, "alert resolved in monitoring source", r.clock().UTC())
		if err != nil {
			r.countWriteError(err, rec.MonitorID, sum)
		}
	}
}

// flushPendingActions issues the queued acknowledge/resolve calls. Failures
// stay queued for the next pass; a record without a ticketing link is
// completed locally, there is nothing to call.
func (r *Reconciler) flushPendingActions(ctx context.Context, sum *Summary) {
	records, err := r.Store.ListPendingActions(ctx)
	if err != nil {
		r.Logger.Error("list pending actions failed", slog.String("error", err.Error()))
		sum.WriteErrors++
		return
	}
	for _, rec := range records {
		if ctx.Err() != nil {
			sum.Partial = true
			return
		}
		if rec.PendingAck != nil {
			r.runAction(ctx, rec, model.ActionAcknowledge, *rec.PendingAck, sum)
		}
		if rec.PendingResolve != nil {
			r.runAction(ctx, rec, model.ActionResolve, *rec.PendingResolve, sum)
		}
	}
}

func (r *Reconciler) runAction(ctx context.Context, rec model.CorrelationRecord, kind model.ActionKind, action model.PendingAction, sum *Summary) {
	if rec.Matched() {
		var err error
		switch kind {
		case model.ActionAcknowledge:
			err = r.Ticketing.Acknowledge(ctx, rec.TicketingID, action.Note, action.Actor)
		case model.ActionResolve:
			err = r.Ticketing.CloseOrResolve(ctx, rec.TicketingID, action.Note, action.Actor)
		}
		if err != nil {
			sum.ActionFailures++
			r.Logger.Warn("ticketing action failed, re-queued",
				slog.String("monitor_id", rec.MonitorID),
				slog.String("kind", string(kind)),
				slog.String("error", err.Error()))
			return
		}
	}
	var err error
	now := r.clock().UTC()
	switch kind {
	case model.ActionAcknowledge:
		err = r.Store.CompleteAcknowledge(ctx, rec.MonitorID, action.Actor, now)
	case model.ActionResolve:
		err = r.Store.CompleteResolve(ctx, rec.MonitorID, action.Actor, now)
	}
	if err != nil {
		r.countWriteError(err, rec.MonitorID, sum)
		return
	}
	sum.ActionSuccesses++
}

func (r *Reconciler) extract(alerts []model.AlertRecord, sum *Summary) []fingerprint.Fingerprint {
	fps := make([]fingerprint.Fingerprint, 0, len(alerts))
	for _, a := range alerts {
		fp, err := fingerprint.Extract(a, r.Match.Window)
		if err != nil {
			sum.Malformed++
			r.Logger.Warn("excluding malformed alert",
				slog.String("external_id", a.ExternalID),
				slog.String("origin", string(a.Origin)),
				slog.String("error", err.Error()))
			continue
		}
		fps = append(fps, fp)
	}
	return fps
}

// filterExcluded drops monitor alerts tagged with a non-production cluster
// or environment.
func (r *Reconciler) filterExcluded(alerts []model.AlertRecord) []model.AlertRecord {
	if len(r.ExcludedClusters) == 0 && len(r.ExcludedEnvironments) == 0 {
		return alerts
	}
	kept := make([]model.AlertRecord, 0, len(alerts))
	for _, a := range alerts {
		if r.excluded(a) {
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

func (r *Reconciler) excluded(a model.AlertRecord) bool {
	for _, tag := range a.Tags {
		key, value, ok := strings.Cut(strings.ToLower(tag), ":")
		if !ok {
			continue
		}
		switch key {
		case "cluster":
			if containsFold(r.ExcludedClusters, value) {
				return true
			}
		case "env", "environment":
			if containsFold(r.ExcludedEnvironments, value) {
				return true
			}
		}
	}
	return false
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}

func (r *Reconciler) countWriteError(err error, monitorID string, sum *Summary) {
	sum.WriteErrors++
	level := slog.LevelError
	if errors.Is(err, store.ErrDowngrade) || errors.Is(err, model.ErrInvariant) {
		level = slog.LevelWarn
	}
	r.Logger.Log(context.Background(), level, "store write rejected",
		slog.String("monitor_id", monitorID),
		slog.String("error", err.Error()))
}

func accepted(rec model.CorrelationRecord) bool {
	return rec.MatchType == model.MatchHighConfidence || rec.MatchType == model.MatchContent
}
