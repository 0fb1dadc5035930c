package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"alertsync-backend/internal/model"
	"alertsync-backend/internal/scheduler"
	"alertsync-backend/internal/store"
)

type fakeTrigger struct {
	err    error
	status scheduler.Status
	calls  int
}

func (f *fakeTrigger) TriggerNow() error {
	f.calls++
	return f.err
}

func (f *fakeTrigger) Status() scheduler.Status { return f.status }

func newTestServer(t *testing.T, mem *store.Memory, trig *fakeTrigger) *httptest.Server {
	t.Helper()
	h := &Handler{
		Store:     mem,
		Scheduler: trig,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Timeout:   5 * time.Second,
	}
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func seed(t *testing.T, mem *store.Memory, rec model.CorrelationRecord) {
	t.Helper()
	if err := mem.Upsert(context.Background(), rec); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestSyncTrigger(t *testing.T) {
	trig := &fakeTrigger{}
	srv := newTestServer(t, store.NewMemory(), trig)

	resp, err := http.Post(srv.URL+"/sync", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted || trig.calls != 1 {
		t.Fatalf("status=%d calls=%d", resp.StatusCode, trig.calls)
	}

	trig.err = scheduler.ErrBusy
	resp, err = http.Post(srv.URL+"/sync", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("busy trigger must return 409, got %d", resp.StatusCode)
	}
}

func TestSyncStatus(t *testing.T) {
	trig := &fakeTrigger{status: scheduler.Status{Running: true}}
	srv := newTestServer(t, store.NewMemory(), trig)

	resp, err := http.Get(srv.URL + "/sync/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var st scheduler.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !st.Running {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestCorrelationsList(t *testing.T) {
	mem := store.NewMemory()
	seed(t, mem, model.CorrelationRecord{MonitorID: "mon-1", TicketingID: "tick-1", MatchType: model.MatchHighConfidence, MatchConfidence: 100})
	seed(t, mem, model.CorrelationRecord{MonitorID: "mon-2", MatchType: model.MatchNone})
	srv := newTestServer(t, mem, &fakeTrigger{})

	for _, tc := range []struct {
		query string
		want  int
	}{
		{"", 2},
		{"?unresolved=1", 2},
		{"?ticketing_id=tick-1", 1},
		{"?ticketing_id=absent", 0},
	} {
		resp, err := http.Get(srv.URL + "/correlations" + tc.query)
		if err != nil {
			t.Fatalf("get %q: %v", tc.query, err)
		}
		var records []model.CorrelationRecord
		if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
			t.Fatalf("decode %q: %v", tc.query, err)
		}
		resp.Body.Close()
		if len(records) != tc.want {
			t.Fatalf("query %q: expected %d records, got %d", tc.query, tc.want, len(records))
		}
	}
}

func TestCorrelationGet(t *testing.T) {
	mem := store.NewMemory()
	seed(t, mem, model.CorrelationRecord{MonitorID: "mon-1", TicketingID: "tick-1", MatchType: model.MatchContent, MatchConfidence: 75})
	srv := newTestServer(t, mem, &fakeTrigger{})

	resp, err := http.Get(srv.URL + "/correlations/mon-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var rec model.CorrelationRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if rec.TicketingID != "tick-1" || rec.MatchConfidence != 75 {
		t.Fatalf("unexpected record %+v", rec)
	}

	resp, err = http.Get(srv.URL + "/correlations/absent")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAcknowledgeQueues(t *testing.T) {
	mem := store.NewMemory()
	seed(t, mem, model.CorrelationRecord{MonitorID: "mon-1", TicketingID: "tick-1", MatchType: model.MatchHighConfidence, MatchConfidence: 100})
	srv := newTestServer(t, mem, &fakeTrigger{})

	body := `{"monitor_ids": ["mon-1", "mon-gone"], "actor": "alice", "note": "on it"}`
	resp, err := http.Post(srv.URL+"/alerts/acknowledge", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var out struct {
		OK      bool     `json:"ok"`
		Queued  int      `json:"queued"`
		Missing []string `json:"missing"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.OK || out.Queued != 1 || len(out.Missing) != 1 || out.Missing[0] != "mon-gone" {
		t.Fatalf("unexpected response %+v", out)
	}

	rec, err := mem.Get(context.Background(), "mon-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.PendingAck == nil || rec.PendingAck.Actor != "alice" || rec.PendingAck.Note != "on it" {
		t.Fatalf("acknowledge not queued: %+v", rec)
	}
	if rec.AcknowledgedAt != nil {
		t.Fatalf("queueing must not complete the action: %+v", rec)
	}
}

func TestResolveQueues(t *testing.T) {
	mem := store.NewMemory()
	seed(t, mem, model.CorrelationRecord{MonitorID: "mon-1", TicketingID: "tick-1", MatchType: model.MatchHighConfidence, MatchConfidence: 100})
	srv := newTestServer(t, mem, &fakeTrigger{})

	body := `{"monitor_ids": ["mon-1"], "actor": "bob"}`
	resp, err := http.Post(srv.URL+"/alerts/resolve", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	rec, _ := mem.Get(context.Background(), "mon-1")
	if rec.PendingResolve == nil || rec.PendingResolve.Actor != "bob" {
		t.Fatalf("resolve not queued: %+v", rec)
	}
}

func TestActionValidation(t *testing.T) {
	srv := newTestServer(t, store.NewMemory(), &fakeTrigger{})

	for name, body := range map[string]string{
		"no actor": `{"monitor_ids": ["mon-1"]}`,
		"no ids":   `{"actor": "alice"}`,
		"bad json": `{`,
	} {
		resp, err := http.Post(srv.URL+"/alerts/acknowledge", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("%s: post: %v", name, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, resp.StatusCode)
		}
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, store.NewMemory(), &fakeTrigger{})
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
