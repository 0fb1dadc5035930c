// Package config loads the engine's tuning from a yaml file. Connection
// endpoints (database, NATS, listen port) stay in the environment, read by
// main.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"alertsync-backend/internal/match"
)

type Config struct {
	Storage string        `yaml:"storage"` // "postgres" (default) or "memory"
	Sync    SyncConfig    `yaml:"sync"`
	Match   MatchConfig   `yaml:"match"`
	Filter  FilterConfig  `yaml:"filter"`
	Sources SourcesConfig `yaml:"sources"`
}

type SyncConfig struct {
	IntervalSeconds    int  `yaml:"interval_seconds"`
	PassTimeoutSeconds int  `yaml:"pass_timeout_seconds"`
	FetchRetries       int  `yaml:"fetch_retries"`
	FetchRetryDelaySec int  `yaml:"fetch_retry_delay_seconds"`
	AutoClose          bool `yaml:"auto_close"`
}

type MatchConfig struct {
	TimeWindowMinutes int     `yaml:"time_window_minutes"`
	TagSimilarity     float64 `yaml:"tag_similarity"`
	ContentAccept     int     `yaml:"content_accept_threshold"`
	ContentFloor      int     `yaml:"content_floor_threshold"`
	AcceptThreshold   int     `yaml:"accept_threshold"`
}

// FilterConfig drops monitor alerts from non-production environments before
// matching, keyed on "cluster:<name>" / "env:<name>" tags.
type FilterConfig struct {
	ExcludedClusters     []string `yaml:"excluded_clusters"`
	ExcludedEnvironments []string `yaml:"excluded_environments"`
}

type SourcesConfig struct {
	MonitorURL     string `yaml:"monitor_url"`
	TicketingURL   string `yaml:"ticketing_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func Default() Config {
	return Config{
		Storage: "postgres",
		Sync: SyncConfig{
			IntervalSeconds:    300,
			PassTimeoutSeconds: 120,
			FetchRetries:       3,
			FetchRetryDelaySec: 5,
			AutoClose:          true,
		},
		Match: MatchConfig{
			TimeWindowMinutes: 15,
			TagSimilarity:     0.8,
			ContentAccept:     70,
			ContentFloor:      40,
			AcceptThreshold:   70,
		},
		Sources: SourcesConfig{TimeoutSeconds: 30},
	}
}

// Load reads the yaml file at path over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Storage != "postgres" && c.Storage != "memory" {
		return fmt.Errorf("unsupported storage %q", c.Storage)
	}
	if c.Sync.IntervalSeconds <= 0 {
		return fmt.Errorf("sync.interval_seconds must be positive")
	}
	if c.Sync.PassTimeoutSeconds <= 0 {
		return fmt.Errorf("sync.pass_timeout_seconds must be positive")
	}
	m := c.Match
	if m.TimeWindowMinutes <= 0 {
		return fmt.Errorf("match.time_window_minutes must be positive")
	}
	if m.TagSimilarity <= 0 || m.TagSimilarity > 1 {
		return fmt.Errorf("match.tag_similarity must be in (0,1]")
	}
	if m.ContentFloor < 0 || m.ContentAccept > 100 || m.ContentFloor > m.ContentAccept {
		return fmt.Errorf("content thresholds must satisfy 0 <= floor <= accept <= 100")
	}
	return nil
}

// MatcherConfig converts the yaml knobs into the matcher's config struct.
func (c Config) MatcherConfig() match.Config {
	return match.Config{
		Window:          time.Duration(c.Match.TimeWindowMinutes) * time.Minute,
		TagSimilarity:   c.Match.TagSimilarity,
		ContentAccept:   c.Match.ContentAccept,
		ContentFloor:    c.Match.ContentFloor,
		AcceptThreshold: c.Match.AcceptThreshold,
	}
}

func (c Config) SyncInterval() time.Duration {
	return time.Duration(c.Sync.IntervalSeconds) * time.Second
}

func (c Config) PassTimeout() time.Duration {
	return time.Duration(c.Sync.PassTimeoutSeconds) * time.Second
}

func (c Config) FetchRetryDelay() time.Duration {
	return time.Duration(c.Sync.FetchRetryDelaySec) * time.Second
}

func (c Config) SourceTimeout() time.Duration {
	return time.Duration(c.Sources.TimeoutSeconds) * time.Second
}
