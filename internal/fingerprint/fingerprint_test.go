package fingerprint

import (
	"errors"
	"testing"
	"time"

	"alertsync-backend/internal/model"
)

var testTime = time.Date(2025, 6, 1, 10, 7, 30, 0, time.UTC)

func TestExtract(t *testing.T) {
	rec := model.AlertRecord{
		ExternalID: "mon-1",
		Origin:     model.OriginMonitor,
		Alias:      " CPU-High-Node3 ",
		Tags:       []string{"Cluster:EU", "svc:api", "", "svc:api"},
		Summary:    "Pod api-7 OOMKilled",
		StartedAt:  testTime,
	}
	fp, err := Extract(rec, 15*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fp.Alias != "cpu-high-node3" {
		t.Fatalf("unexpected alias %q", fp.Alias)
	}
	if len(fp.Tags) != 2 {
		t.Fatalf("expected 2 tags, got %v", fp.TagSlice())
	}
	if _, ok := fp.Tags["cluster:eu"]; !ok {
		t.Fatalf("expected normalized tag, got %v", fp.TagSlice())
	}
	want := []string{"pod", "api-7", "oomkilled"}
	if len(fp.Tokens) != len(want) {
		t.Fatalf("unexpected tokens %v", fp.Tokens)
	}
	for i, tok := range want {
		if fp.Tokens[i] != tok {
			t.Fatalf("token %d = %q, want %q", i, fp.Tokens[i], tok)
		}
	}
	if !fp.TimeBucket.Equal(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected bucket %v", fp.TimeBucket)
	}
}

func TestExtractFallsBackToCreatedAt(t *testing.T) {
	rec := model.AlertRecord{ExternalID: "tick-1", Summary: "disk full", CreatedAt: testTime}
	fp, err := Extract(rec, 15*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fp.RefTime.Equal(testTime) {
		t.Fatalf("unexpected ref time %v", fp.RefTime)
	}
}

func TestExtractMalformed(t *testing.T) {
	cases := []model.AlertRecord{
		{Summary: "no id", StartedAt: testTime},
		{ExternalID: "mon-1", Summary: "no timestamp"},
		{ExternalID: "mon-1", StartedAt: testTime}, // nothing to compare on
	}
	for i, rec := range cases {
		if _, err := Extract(rec, 15*time.Minute); !errors.Is(err, ErrMalformed) {
			t.Fatalf("case %d: expected ErrMalformed, got %v", i, err)
		}
	}
}

func TestTokenizeKeepsIdentifiers(t *testing.T) {
	tokens := Tokenize("node_exporter DOWN on api-7 (eu-west)")
	want := []string{"node_exporter", "down", "on", "api-7", "eu-west"}
	if len(tokens) != len(want) {
		t.Fatalf("unexpected tokens %v", tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("token %d = %q, want %q", i, tokens[i], want[i])
		}
	}
}
