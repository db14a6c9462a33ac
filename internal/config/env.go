package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"jupiter/internal/migrate"
)

// Environments a deployment can run in.
const (
	EnvLocal      = "local"
	EnvStaging    = "staging"
	EnvProduction = "production"
)

type TelemetryOptions struct {
	Enabled bool `env:"OTEL_ENABLED" envDefault:"false"`
	Stdout  bool `env:"OTEL_STDOUT" envDefault:"false"`
}

// Settings is the process environment.
type Settings struct {
	Env                   string `env:"ENV" envDefault:"local"`
	Description           string `env:"DESCRIPTION" envDefault:"Jupiter"`
	Version               string `env:"VERSION" envDefault:"dev"`
	DocsInitWorkspaceURL  string `env:"DOCS_INIT_WORKSPACE_URL" envDefault:"https://docs.jupiter.example/init"`
	SessionInfoPath       string `env:"SESSION_INFO_PATH" envDefault:"~/.jupiter/session.json"`
	SQLiteDBURL           string `env:"SQLITE_DB_URL" envDefault:"sqlite:///jupiter.sqlite"`
	AlembicIniPath        string `env:"ALEMBIC_INI_PATH"`
	AlembicMigrationsPath string `env:"ALEMBIC_MIGRATIONS_PATH"`
	AuthTokenSecret       string `env:"AUTH_TOKEN_SECRET"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat             string `env:"LOG_FORMAT"`
	Telemetry             TelemetryOptions
}

// LoadEnv loads the env files that exist, in order. It returns how many were found.
func LoadEnv(files []string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// LoadSettings reads .env files, then parses the environment.
func LoadSettings(files ...string) (*Settings, error) {
	if len(files) == 0 {
		files = []string{".env", ".env.local"}
	}
	if _, err := LoadEnv(files); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	var s Settings
	if err := env.Parse(&s); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) Validate() error {
	switch s.Env {
	case EnvLocal, EnvStaging, EnvProduction:
	default:
		return fmt.Errorf("ENV must be local, staging or production, got %q", s.Env)
	}
	if s.Env != EnvLocal && strings.TrimSpace(s.AuthTokenSecret) == "" {
		return fmt.Errorf("AUTH_TOKEN_SECRET is required outside local environments")
	}
	return nil
}

// IsLocal reports whether the process runs on a developer machine.
func (s *Settings) IsLocal() bool { return s.Env == EnvLocal }

// LogFormatOrDefault picks text locally and JSON elsewhere unless LOG_FORMAT is set.
func (s *Settings) LogFormatOrDefault() string {
	if s.LogFormat != "" {
		return s.LogFormat
	}
	if s.IsLocal() {
		return "text"
	}
	return "json"
}

// SessionPath expands a leading ~ in SESSION_INFO_PATH.
func (s *Settings) SessionPath() string {
	return expandHome(s.SessionInfoPath)
}

// Migrations returns where migrations are read from.
func (s *Settings) Migrations() migrate.Options {
	return migrate.Options{Dir: expandHome(s.AlembicMigrationsPath), IniPath: expandHome(s.AlembicIniPath)}
}

// TokenSecret is AUTH_TOKEN_SECRET, with a fixed development secret for local runs.
func (s *Settings) TokenSecret() string {
	if s.AuthTokenSecret == "" && s.IsLocal() {
		return "jupiter-local-development-secret"
	}
	return s.AuthTokenSecret
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}
