// Package match decides which ticketing alert, if any, corresponds to a
// given monitor alert. Strategies run in priority order and the first one
// that succeeds wins, regardless of the scores lower strategies would give.
package match

import (
	"time"

	"alertsync-backend/internal/fingerprint"
	"alertsync-backend/internal/model"
)

// Config carries every matching knob so threshold changes are reproducible
// in tests instead of hidden in constants.
type Config struct {
	// Window bounds candidate eligibility for the tag and content
	// strategies. Alias matches are exempt: the alias is authoritative.
	Window time.Duration
	// TagSimilarity is the Jaccard floor for the tag strategy.
	TagSimilarity float64
	// ContentAccept and ContentFloor are the content-similarity scores
	// above which a candidate is accepted, respectively retained for
	// operator review.
	ContentAccept int
	ContentFloor  int
	// AcceptThreshold separates accepted matches from ones kept only for
	// review. It feeds default filters, not the strategy decisions above.
	AcceptThreshold int
}

func DefaultConfig() Config {
	return Config{
		Window:          15 * time.Minute,
		TagSimilarity:   0.8,
		ContentAccept:   70,
		ContentFloor:    40,
		AcceptThreshold: 70,
	}
}

const (
	aliasConfidence = 100
	tagConfidence   = 90
)

type Result struct {
	TicketingID string
	Type        model.MatchType
	Confidence  int
}

// Accepted reports whether the result clears the configured acceptance
// threshold. Results below it are retained as low-confidence links for
// operator review rather than discarded.
func (r Result) Accepted(cfg Config) bool {
	return r.Type != model.MatchNone && r.Type != model.MatchLowConfidence && r.Confidence >= cfg.AcceptThreshold
}

// Match evaluates the candidate set against one monitor alert. Ties within a
// strategy break on the smallest absolute time delta from the monitor
// alert's reference time, then on the lexicographically smallest external
// ID, so repeated runs always pick the same counterpart.
func Match(mon fingerprint.Fingerprint, candidates []fingerprint.Fingerprint, cfg Config) Result {
	if r, ok := aliasMatch(mon, candidates); ok {
		return r
	}
	if r, ok := tagMatch(mon, candidates, cfg); ok {
		return r
	}
	if r, ok := contentMatch(mon, candidates, cfg); ok {
		return r
	}
	return Result{Type: model.MatchNone}
}

func aliasMatch(mon fingerprint.Fingerprint, candidates []fingerprint.Fingerprint) (Result, bool) {
	if mon.Alias == "" {
		return Result{}, false
	}
	best := -1
	for i, cand := range candidates {
		if cand.Alias == "" || cand.Alias != mon.Alias {
			continue
		}
		if best < 0 || closer(mon, candidates[i], candidates[best]) {
			best = i
		}
	}
	if best < 0 {
		return Result{}, false
	}
	return Result{TicketingID: candidates[best].ExternalID, Type: model.MatchHighConfidence, Confidence: aliasConfidence}, true
}

func tagMatch(mon fingerprint.Fingerprint, candidates []fingerprint.Fingerprint, cfg Config) (Result, bool) {
	if len(mon.Tags) == 0 {
		return Result{}, false
	}
	best := -1
	for i, cand := range candidates {
		if !withinWindow(mon, cand, cfg.Window) {
			continue
		}
		if !tagSubset(mon.Tags, cand.Tags) && setJaccard(mon.Tags, cand.Tags) < cfg.TagSimilarity {
			continue
		}
		if best < 0 || closer(mon, candidates[i], candidates[best]) {
			best = i
		}
	}
	if best < 0 {
		return Result{}, false
	}
	return Result{TicketingID: candidates[best].ExternalID, Type: model.MatchHighConfidence, Confidence: tagConfidence}, true
}

func contentMatch(mon fingerprint.Fingerprint, candidates []fingerprint.Fingerprint, cfg Config) (Result, bool) {
	if len(mon.Tokens) == 0 {
		return Result{}, false
	}
	best, bestScore := -1, 0
	for i, cand := range candidates {
		if !withinWindow(mon, cand, cfg.Window) {
			continue
		}
		score := Similarity(mon.Tokens, cand.Tokens)
		if score < cfg.ContentFloor {
			continue
		}
		if best < 0 || score > bestScore || (score == bestScore && closer(mon, candidates[i], candidates[best])) {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return Result{}, false
	}
	matchType := model.MatchLowConfidence
	if bestScore >= cfg.ContentAccept {
		matchType = model.MatchContent
	}
	return Result{TicketingID: candidates[best].ExternalID, Type: matchType, Confidence: bestScore}, true
}

func tagSubset(mon, cand map[string]struct{}) bool {
	if len(mon) == 0 {
		return false
	}
	for tag := range mon {
		if _, ok := cand[tag]; !ok {
			return false
		}
	}
	return true
}

func withinWindow(mon, cand fingerprint.Fingerprint, window time.Duration) bool {
	if window <= 0 {
		return true
	}
	return absDelta(mon, cand) <= window
}

func absDelta(mon, cand fingerprint.Fingerprint) time.Duration {
	d := mon.RefTime.Sub(cand.RefTime)
	if d < 0 {
		d = -d
	}
	return d
}

// closer implements the deterministic tie-break: time delta first, then
// external ID.
func closer(mon, a, b fingerprint.Fingerprint) bool {
	da, db := absDelta(mon, a), absDelta(mon, b)
	if da != db {
		return da < db
	}
	return a.ExternalID < b.ExternalID
}
