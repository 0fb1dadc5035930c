// Package scheduler drives reconciliation passes on a fixed interval and on
// demand. A single loop goroutine executes passes, so two can never run
// concurrently; triggers arriving mid-pass coalesce into at most one queued
// follow-up.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"alertsync-backend/internal/reconciler"
)

// ErrBusy means a pass is running and a follow-up is already queued.
var ErrBusy = errors.New("sync pass already running and queued")

// PassFunc runs one reconciliation pass.
type PassFunc func(ctx context.Context) (reconciler.Summary, error)

type Status struct {
	Running     bool                `json:"running"`
	LastRun     *time.Time          `json:"last_run,omitempty"`
	LastSummary *reconciler.Summary `json:"last_summary,omitempty"`
	LastError   string              `json:"last_error,omitempty"`
}

type Scheduler struct {
	run         PassFunc
	interval    time.Duration
	passTimeout time.Duration
	logger      *slog.Logger

	// trigger has capacity 1: the buffered slot is the single queued
	// follow-up pass.
	trigger chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}

	mu          sync.Mutex
	running     bool
	lastRun     time.Time
	lastSummary *reconciler.Summary
	lastErr     error
}

func New(run PassFunc, interval, passTimeout time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		run:         run,
		interval:    interval,
		passTimeout: passTimeout,
		logger:      logger,
		trigger:     make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

// Start launches the loop and fires an immediate first pass.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	_ = s.TriggerNow()
	go s.loop(ctx)
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

// TriggerNow requests a pass. If one is running, the request queues as the
// single follow-up; if a follow-up is already queued, it returns ErrBusy.
func (s *Scheduler) TriggerNow() error {
	select {
	case s.trigger <- struct{}{}:
		return nil
	default:
		return ErrBusy
	}
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{Running: s.running, LastSummary: s.lastSummary}
	if !s.lastRun.IsZero() {
		t := s.lastRun
		st.LastRun = &t
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// a dropped tick while a pass runs is fine, the next one fires
			s.execute(ctx)
		case <-s.trigger:
			s.execute(ctx)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context) {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	passCtx, cancel := context.WithTimeout(ctx, s.passTimeout)
	summary, err := s.run(passCtx)
	cancel()

	s.mu.Lock()
	s.running = false
	s.lastRun = time.Now().UTC()
	s.lastSummary = &summary
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("sync pass failed",
			slog.String("pass_id", summary.PassID),
			slog.String("error", err.Error()))
		return
	}
	s.logger.Info("sync pass finished",
		slog.String("pass_id", summary.PassID),
		slog.Int("new_matches", summary.NewMatches),
		slog.Int("upgraded_matches", summary.UpgradedMatches),
		slog.Int("cleared_matches", summary.ClearedMatches),
		slog.Int("unmatched", summary.Unmatched),
		slog.Int("action_successes", summary.ActionSuccesses),
		slog.Int("action_failures", summary.ActionFailures),
		slog.Bool("partial", summary.Partial))
}
