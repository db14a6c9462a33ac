package config

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"jupiter/internal/domain"
)

// Config models the per-workspace jupiter.yml stored alongside the workspace.
type Config struct {
	Gen struct {
		DefaultTargets []domain.SyncTarget `yaml:"default_targets"`
	} `yaml:"gen"`
	GC struct {
		CompletedTaskAgeDays int `yaml:"completed_task_age_days"`
	} `yaml:"gc"`
	Sync     SyncConfig      `yaml:"sync"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type SyncConfig struct {
	MaxParallelFetches int           `yaml:"max_parallel_fetches"`
	FetchTimeout       time.Duration `yaml:"fetch_timeout"`
	MaxFetchAttempts   int           `yaml:"max_fetch_attempts"`
}

// WebhookConfig is one receiver of run notifications.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Enabled        *bool    `yaml:"enabled,omitempty"`
	Events         []string `yaml:"events,omitempty"`
	Secret         string   `yaml:"secret,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
}

// IsEnabled treats a missing enabled flag as on.
func (w WebhookConfig) IsEnabled() bool { return w.Enabled == nil || *w.Enabled }

// Webhook event names.
const (
	EventGenClosed   = "gen.closed"
	EventSyncClosed  = "sync.closed"
	EventStatsClosed = "stats.closed"
	EventGCClosed    = "gc.closed"
)

var knownEvents = map[string]bool{EventGenClosed: true, EventSyncClosed: true, EventStatsClosed: true, EventGCClosed: true}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	seen := map[domain.SyncTarget]bool{}
	for _, t := range c.Gen.DefaultTargets {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("config.gen.default_targets: %w", err)
		}
		if seen[t] {
			return fmt.Errorf("config.gen.default_targets lists %s twice", t)
		}
		seen[t] = true
	}
	if c.GC.CompletedTaskAgeDays < 1 {
		return fmt.Errorf("config.gc.completed_task_age_days must be positive")
	}
	if c.Sync.MaxParallelFetches < 1 || c.Sync.MaxParallelFetches > 32 {
		return fmt.Errorf("config.sync.max_parallel_fetches must be between 1 and 32")
	}
	if c.Sync.FetchTimeout <= 0 {
		return fmt.Errorf("config.sync.fetch_timeout must be positive")
	}
	if c.Sync.MaxFetchAttempts < 1 {
		return fmt.Errorf("config.sync.max_fetch_attempts must be at least 1")
	}
	for i, hook := range c.Webhooks {
		u, err := url.Parse(strings.TrimSpace(hook.URL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config.webhooks[%d].url must be an http(s) URL", i)
		}
		for _, evt := range hook.Events {
			if !knownEvents[evt] {
				return fmt.Errorf("config.webhooks[%d] subscribes to unknown event %s", i, evt)
			}
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must not be negative", i)
		}
	}
	return nil
}

// Targets returns the default generation targets, or all of them when none are configured.
func (c *Config) Targets() []domain.SyncTarget {
	if len(c.Gen.DefaultTargets) == 0 {
		return append([]domain.SyncTarget(nil), domain.AllSyncTargets...)
	}
	return append([]domain.SyncTarget(nil), c.Gen.DefaultTargets...)
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string { return defaultTemplate }

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToYAML renders cfg.
func (c *Config) ToYAML() (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const defaultTemplate = `gen:
  default_targets:
    - working-mem
    - time-plans
    - habits
    - chores
    - journals
    - metrics
    - persons
    - slack-tasks
    - email-tasks

gc:
  completed_task_age_days: 30

sync:
  max_parallel_fetches: 4
  fetch_timeout: 30s
  max_fetch_attempts: 3

webhooks: []
`
