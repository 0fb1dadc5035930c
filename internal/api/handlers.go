package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"alertsync-backend/internal/scheduler"
	"alertsync-backend/internal/store"
)

// Trigger is the slice of the scheduler the handlers need.
type Trigger interface {
	TriggerNow() error
	Status() scheduler.Status
}

type Handler struct {
	Store     store.CorrelationStore
	Scheduler Trigger
	Logger    *slog.Logger
	Timeout   time.Duration
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Post("/sync", h.handleSyncTrigger)
	r.Get("/sync/status", h.handleSyncStatus)
	r.Route("/correlations", func(r chi.Router) {
		r.Get("/", h.handleCorrelationsList)
		r.Get("/{monitorID}", h.handleCorrelationGet)
	})
	r.Post("/alerts/acknowledge", h.handleAcknowledge)
	r.Post("/alerts/resolve", h.handleResolve)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) handleSyncTrigger(w http.ResponseWriter, _ *http.Request) {
	if err := h.Scheduler.TriggerNow(); err != nil {
		writeJSON(w, http.StatusConflict, map[string]any{"ok": false, "message": "busy"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (h *Handler) handleSyncStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Scheduler.Status())
}

func (h *Handler) handleCorrelationsList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	var records any
	var err error
	switch {
	case r.URL.Query().Get("unresolved") == "1":
		records, err = h.Store.ListUnresolved(ctx)
	case r.URL.Query().Get("ticketing_id") != "":
		records, err = h.Store.ListByTicketingID(ctx, r.URL.Query().Get("ticketing_id"))
	default:
		records, err = h.Store.List(ctx)
	}
	if err != nil {
		h.Logger.Error("correlation list failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "message": "store error"})
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) handleCorrelationGet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	rec, err := h.Store.Get(ctx, chi.URLParam(r, "monitorID"))
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "message": "not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "message": "store error"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type actionRequest struct {
	MonitorIDs []string `json:"monitor_ids"`
	Note       string   `json:"note"`
	Actor      string   `json:"actor"`
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	h.handleAction(w, r, h.Store.RequestAcknowledge)
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	h.handleAction(w, r, h.Store.RequestResolve)
}

type requestFunc func(ctx context.Context, monitorID, actor, note string, at time.Time) error

// handleAction queues operator actions; the next sync pass carries them to
// the ticketing system. The actor is always explicit in the request.
func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request, request requestFunc) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "invalid body"})
		return
	}
	if strings.TrimSpace(req.Actor) == "" || len(req.MonitorIDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "actor and monitor_ids are required"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	now := time.Now().UTC()
	queued := 0
	missing := []string{}
	for _, id := range req.MonitorIDs {
		err := request(ctx, id, req.Actor, req.Note, now)
		if errors.Is(err, store.ErrNotFound) {
			missing = append(missing, id)
			continue
		}
		if err != nil {
			h.Logger.Error("action queue failed", slog.String("monitor_id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "message": "store error"})
			return
		}
		queued++
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "queued": queued, "missing": missing})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
