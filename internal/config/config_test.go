package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage != "postgres" {
		t.Fatalf("default storage = %q", cfg.Storage)
	}
	if cfg.SyncInterval() != 5*time.Minute || cfg.PassTimeout() != 2*time.Minute {
		t.Fatalf("unexpected sync timing: %+v", cfg.Sync)
	}
	if !cfg.Sync.AutoClose {
		t.Fatalf("auto close must default on")
	}
	mc := cfg.MatcherConfig()
	if mc.Window != 15*time.Minute || mc.ContentAccept != 70 || mc.ContentFloor != 40 {
		t.Fatalf("unexpected matcher defaults: %+v", mc)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
storage: memory
sync:
  interval_seconds: 60
  auto_close: false
match:
  time_window_minutes: 30
filter:
  excluded_clusters: [staging, dev]
sources:
  monitor_url: http://monitor:9090
  ticketing_url: http://ticketing:8080
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage != "memory" || cfg.Sync.IntervalSeconds != 60 || cfg.Sync.AutoClose {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	// untouched keys keep their defaults
	if cfg.Sync.PassTimeoutSeconds != 120 || cfg.Match.ContentAccept != 70 {
		t.Fatalf("defaults lost on partial file: %+v", cfg)
	}
	if cfg.MatcherConfig().Window != 30*time.Minute {
		t.Fatalf("window override lost: %+v", cfg.Match)
	}
	if len(cfg.Filter.ExcludedClusters) != 2 {
		t.Fatalf("filter not loaded: %+v", cfg.Filter)
	}
	if cfg.Sources.MonitorURL != "http://monitor:9090" {
		t.Fatalf("sources not loaded: %+v", cfg.Sources)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad storage":          "storage: sqlite\n",
		"zero interval":        "sync:\n  interval_seconds: 0\n",
		"window negative":      "match:\n  time_window_minutes: -1\n",
		"tag similarity range": "match:\n  tag_similarity: 1.5\n",
		"floor above accept":   "match:\n  content_floor_threshold: 80\n  content_accept_threshold: 70\n",
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
