package main

import (
	"context"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jupiter/internal/app"
	"jupiter/internal/config"
	"jupiter/internal/db"
	"jupiter/internal/domain"
	"jupiter/internal/engine"
	"jupiter/internal/logging"
	"jupiter/internal/migrate"
	"jupiter/internal/progress"
	"jupiter/internal/telemetry"
)

func loadSettings() (*config.Settings, error) {
	return config.LoadSettings(viper.GetStringSlice("env-file")...)
}

func newLogger(s *config.Settings) *logrus.Logger {
	return logging.New(s.LogLevel, s.LogFormatOrDefault())
}

// withEngine opens and migrates the database, then hands an engine to fn.
func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	conn, err := db.Open(db.Config{URL: s.SQLiteDBURL})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.MigrateWith(ctx, conn, s.Migrations()); err != nil {
		return err
	}
	if err := telemetry.Init(ctx, telemetry.Options{
		Enabled: s.Telemetry.Enabled,
		Stdout:  s.Telemetry.Stdout,
		Service: "jupiter-cli",
		Version: s.Version,
	}); err != nil {
		return err
	}
	defer telemetry.Shutdown(context.WithoutCancel(ctx))
	e := engine.New(conn, s, newLogger(s))
	e.Metrics = progress.NewMetricsReporter()
	return fn(ctx, e)
}

// withSession is withEngine for commands that act as the logged-in user.
func withSession(ctx context.Context, fn func(context.Context, engine.Engine, engine.Identity) error) error {
	return withEngine(ctx, func(ctx context.Context, e engine.Engine) error {
		session, err := app.LoadSession(e.Settings.SessionPath())
		if err != nil {
			return err
		}
		id, err := e.Authenticate(ctx, session.AuthToken)
		if err != nil {
			return err
		}
		return fn(ctx, e, id)
	})
}

// run calls one use case as the logged-in user and prints its result.
func run[A, R any](cmd *cobra.Command, uc func(engine.Engine, context.Context, engine.Identity, A) (R, error), args A) error {
	return withSession(cmd.Context(), func(ctx context.Context, e engine.Engine, id engine.Identity) error {
		out, err := uc(e, ctx, id, args)
		if err != nil {
			return err
		}
		return printJSONOrTable(out)
	})
}

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseDay accepts YYYY-MM-DD, RFC3339 or a phrase like "tomorrow" or "next friday".
func parseDay(raw string, now time.Time) (domain.ADate, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.ADate{}, nil
	}
	if d, err := domain.ParseADate(raw); err == nil {
		return d, nil
	}
	switch strings.ToLower(raw) {
	case "today":
		return domain.DateOf(now), nil
	}
	r, err := dateParser.Parse(raw, now)
	if err != nil || r == nil {
		return domain.ADate{}, domain.Invalid("date", "cannot read %q as a day", raw)
	}
	return domain.DateOf(r.Time), nil
}

// today is the --today flag, or the current day.
func today() (domain.ADate, error) {
	raw := viper.GetString("today")
	if raw == "" {
		return domain.DateOf(time.Now()), nil
	}
	return parseDay(raw, time.Now())
}

func day(raw string) (domain.ADate, error) { return parseDay(raw, time.Now()) }

func refID(raw string) (domain.EntityID, error) { return domain.ParseEntityID(strings.TrimSpace(raw)) }

func refIDs(raw []string) ([]domain.EntityID, error) {
	out := make([]domain.EntityID, 0, len(raw))
	for _, r := range raw {
		id, err := refID(r)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func changed(cmd *cobra.Command, name string) bool { return cmd.Flags().Changed(name) }

func optString(cmd *cobra.Command, name, v string) *string {
	if !changed(cmd, name) {
		return nil
	}
	return &v
}

func optInt(cmd *cobra.Command, name string, v int) *int {
	if !changed(cmd, name) {
		return nil
	}
	return &v
}

func optBool(cmd *cobra.Command, name string, v bool) *bool {
	if !changed(cmd, name) {
		return nil
	}
	return &v
}

func optRef(cmd *cobra.Command, name, raw string) (*domain.EntityID, error) {
	if !changed(cmd, name) {
		return nil, nil
	}
	id, err := refID(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func optDay(cmd *cobra.Command, name, raw string) (*domain.ADate, error) {
	if !changed(cmd, name) {
		return nil, nil
	}
	d, err := day(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// optEnum converts a changed string flag into a pointer to its enum type.
func optEnum[T ~string](cmd *cobra.Command, name, v string) *T {
	if !changed(cmd, name) {
		return nil
	}
	out := T(v)
	return &out
}

func enums[T ~string](raw []string) []T {
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		out = append(out, T(r))
	}
	return out
}

// genParamsFlags are the recurrence flags shared by habits, chores, metrics and persons.
type genParamsFlags struct {
	prefix              string
	period              string
	eisen               string
	difficulty          string
	actionableFromDay   int
	actionableFromMonth int
	dueAtDay            int
	dueAtMonth          int
	skipRule            string
}

func (g *genParamsFlags) name(flag string) string { return g.prefix + flag }

func (g *genParamsFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&g.period, g.name("period"), "", "daily, weekly, monthly, quarterly or yearly")
	cmd.Flags().StringVar(&g.eisen, g.name("eisen"), string(domain.EisenRegular), "eisenhower class of generated tasks")
	cmd.Flags().StringVar(&g.difficulty, g.name("difficulty"), string(domain.DifficultyEasy), "difficulty of generated tasks")
	cmd.Flags().IntVar(&g.actionableFromDay, g.name("actionable-from-day"), 0, "day of the period tasks become actionable")
	cmd.Flags().IntVar(&g.actionableFromMonth, g.name("actionable-from-month"), 0, "month of the period tasks become actionable")
	cmd.Flags().IntVar(&g.dueAtDay, g.name("due-at-day"), 0, "day of the period tasks are due")
	cmd.Flags().IntVar(&g.dueAtMonth, g.name("due-at-month"), 0, "month of the period tasks are due")
	cmd.Flags().StringVar(&g.skipRule, g.name("skip-rule"), "", "skip rule, like even, every-other-week or months:1,4,7,10")
}

func (g *genParamsFlags) changed(cmd *cobra.Command) bool {
	for _, f := range []string{"period", "eisen", "difficulty", "actionable-from-day", "actionable-from-month", "due-at-day", "due-at-month", "skip-rule"} {
		if changed(cmd, g.name(f)) {
			return true
		}
	}
	return false
}

func (g *genParamsFlags) params() domain.RecurringTaskGenParams {
	return domain.RecurringTaskGenParams{
		Period:              domain.RecurringTaskPeriod(g.period),
		Eisen:               domain.Eisen(g.eisen),
		Difficulty:          domain.Difficulty(g.difficulty),
		ActionableFromDay:   g.actionableFromDay,
		ActionableFromMonth: g.actionableFromMonth,
		DueAtDay:            g.dueAtDay,
		DueAtMonth:          g.dueAtMonth,
		SkipRule:            g.skipRule,
	}
}

// optParams is params when any recurrence flag was given.
func (g *genParamsFlags) optParams(cmd *cobra.Command) *domain.RecurringTaskGenParams {
	if !g.changed(cmd) {
		return nil
	}
	p := g.params()
	return &p
}
