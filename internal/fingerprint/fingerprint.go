// Package fingerprint derives the comparable features the matcher consumes
// from a normalized alert record. Extraction is pure: no I/O, no clock.
package fingerprint

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"alertsync-backend/internal/model"
)

var ErrMalformed = errors.New("malformed alert record")

type Fingerprint struct {
	ExternalID string
	Origin     model.Origin
	Alias      string
	Tags       map[string]struct{}
	Tokens     []string
	RefTime    time.Time
	TimeBucket time.Time
}

// Extract builds a Fingerprint for matching. The window is the configured
// matching window used to bucket the reference time. It returns ErrMalformed
// when the record has no external ID, no usable timestamp, or nothing to
// compare on (alias, tags and summary all empty).
func Extract(rec model.AlertRecord, window time.Duration) (Fingerprint, error) {
	if strings.TrimSpace(rec.ExternalID) == "" {
		return Fingerprint{}, fmt.Errorf("%w: missing external_id", ErrMalformed)
	}
	ref := rec.StartedAt
	if ref.IsZero() {
		ref = rec.CreatedAt
	}
	if ref.IsZero() {
		return Fingerprint{}, ErrMalformed
	}
	fp := Fingerprint{
		ExternalID: rec.ExternalID,
		Origin:     rec.Origin,
		Alias:      strings.ToLower(strings.TrimSpace(rec.Alias)),
		Tags:       normalizeTags(rec.Tags),
		Tokens:     Tokenize(rec.Summary),
		RefTime:    ref,
	}
	if window > 0 {
		fp.TimeBucket = ref.Truncate(window)
	}
	if fp.Alias == "" && len(fp.Tags) == 0 && len(fp.Tokens) == 0 {
		return Fingerprint{}, ErrMalformed
	}
	return fp, nil
}

// TagSlice returns the normalized tags in sorted order.
func (f Fingerprint) TagSlice() []string {
	out := make([]string, 0, len(f.Tags))
	for tag := range f.Tags {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func normalizeTags(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		norm := strings.ToLower(strings.TrimSpace(tag))
		if norm != "" {
			set[norm] = struct{}{}
		}
	}
	return set
}

// Tokenize lower-cases the summary and splits it into tokens, keeping '-'
// and '_' inside words so identifiers like "api-7" survive intact.
func Tokenize(summary string) []string {
	lower := strings.ToLower(summary)
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return false
		}
		return r != '-' && r != '_'
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "-_")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
