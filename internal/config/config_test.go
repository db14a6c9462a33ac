package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jupiter/internal/config"
	"jupiter/internal/domain"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, domain.AllSyncTargets, cfg.Targets())
	assert.Equal(t, 30, cfg.GC.CompletedTaskAgeDays)
	assert.Equal(t, 4, cfg.Sync.MaxParallelFetches)
	assert.Equal(t, 30*time.Second, cfg.Sync.FetchTimeout)
	assert.Equal(t, 3, cfg.Sync.MaxFetchAttempts)
	assert.Empty(t, cfg.Webhooks)
}

func TestFromYAMLKeepsDefaultsForMissingSections(t *testing.T) {
	cfg, err := config.FromYAML([]byte(`
gen:
  default_targets: [habits, chores]
webhooks:
  - url: https://hooks.example.com/jupiter
    events: [gen.closed]
`))
	require.NoError(t, err)
	assert.Equal(t, []domain.SyncTarget{domain.TargetHabits, domain.TargetChores}, cfg.Targets())
	assert.Equal(t, 30, cfg.GC.CompletedTaskAgeDays)
	require.Len(t, cfg.Webhooks, 1)
	assert.True(t, cfg.Webhooks[0].IsEnabled())
}

func TestFromYAMLRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"unknown target":  "gen:\n  default_targets: [laundry]\n",
		"duplicate":       "gen:\n  default_targets: [habits, habits]\n",
		"gc age":          "gc:\n  completed_task_age_days: 0\n",
		"parallel":        "sync:\n  max_parallel_fetches: 100\n",
		"webhook url":     "webhooks:\n  - url: ftp://example.com\n",
		"webhook event":   "webhooks:\n  - url: https://example.com\n    events: [nope]\n",
		"not yaml at all": "gen: [",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.FromYAML([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestToYAMLRoundTrips(t *testing.T) {
	cfg := config.Default()
	off := false
	cfg.Webhooks = append(cfg.Webhooks, config.WebhookConfig{URL: "https://example.com/h", Enabled: &off})
	raw, err := cfg.ToYAML()
	require.NoError(t, err)
	back, err := config.FromYAML([]byte(raw))
	require.NoError(t, err)
	require.Len(t, back.Webhooks, 1)
	assert.False(t, back.Webhooks[0].IsEnabled())
}

func TestLoadSettingsReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("SQLITE_DB_URL=sqlite:////tmp/j.sqlite\nLOG_LEVEL=debug\n"), 0o600))
	t.Setenv("ENV", "local")
	t.Setenv("SQLITE_DB_URL", "")
	os.Unsetenv("SQLITE_DB_URL")
	t.Setenv("LOG_LEVEL", "")
	os.Unsetenv("LOG_LEVEL")

	s, err := config.LoadSettings(file)
	require.NoError(t, err)
	assert.Equal(t, "sqlite:////tmp/j.sqlite", s.SQLiteDBURL)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, "text", s.LogFormatOrDefault())
	assert.NotEmpty(t, s.TokenSecret())
}

func TestSettingsRequireSecretOutsideLocal(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("AUTH_TOKEN_SECRET", "")
	_, err := config.LoadSettings(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)

	t.Setenv("ENV", "moon")
	_, err = config.LoadSettings(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func TestFeatureControlsPerEnvironment(t *testing.T) {
	local := config.FeatureControls(config.EnvLocal)
	flags, err := local.CheckWorkspaceFlags(domain.WorkspaceFeatureFlags{domain.FeatureSlackTasks: true})
	require.NoError(t, err)
	assert.True(t, flags[domain.FeatureSlackTasks])

	prod := config.FeatureControls(config.EnvProduction)
	_, err = prod.CheckWorkspaceFlags(domain.WorkspaceFeatureFlags{domain.FeatureSlackTasks: true})
	require.ErrorIs(t, err, domain.ErrInputValidation)
	_, err = prod.CheckWorkspaceFlags(domain.WorkspaceFeatureFlags{domain.FeatureInboxTasks: false})
	require.ErrorIs(t, err, domain.ErrInputValidation)
	assert.False(t, prod.StandardWorkspaceFlags()[domain.FeatureEmailTasks])

	assert.Equal(t, local, config.FeatureControls("unknown"))
}
