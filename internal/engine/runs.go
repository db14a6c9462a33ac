package engine

import (
	"context"
	"net/http"
	"slices"

	"jupiter/internal/app"
	"jupiter/internal/config"
	"jupiter/internal/domain"
	"jupiter/internal/gc"
	"jupiter/internal/gen"
	"jupiter/internal/icalsync"
	"jupiter/internal/repo"
	"jupiter/internal/schedule"
	"jupiter/internal/stats"
)

// settle checks id and returns the workspace config. Runs open their own units of work afterwards.
func (e Engine) settle(ctx context.Context, id Identity) (*config.Config, error) {
	var cfg *config.Config
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		var err error
		cfg, err = app.LoadConfig(ctx, s.u, s.ws.RefID)
		return err
	})
	return cfg, err
}

func (e Engine) dayOr(d domain.ADate) domain.ADate {
	if d.IsZero() {
		return e.today()
	}
	return d.ToDate()
}

type GenArgs struct {
	Today                 domain.ADate                 `json:"today"`
	Targets               []domain.SyncTarget          `json:"targets,omitempty"`
	Period                []domain.RecurringTaskPeriod `json:"period,omitempty"`
	GenEvenIfNotModified  bool                         `json:"gen_even_if_not_modified,omitempty"`
	FilterProjectRefIDs   []domain.EntityID            `json:"filter_project_ref_ids,omitempty"`
	FilterHabitRefIDs     []domain.EntityID            `json:"filter_habit_ref_ids,omitempty"`
	FilterChoreRefIDs     []domain.EntityID            `json:"filter_chore_ref_ids,omitempty"`
	FilterMetricRefIDs    []domain.EntityID            `json:"filter_metric_ref_ids,omitempty"`
	FilterPersonRefIDs    []domain.EntityID            `json:"filter_person_ref_ids,omitempty"`
	FilterSlackTaskRefIDs []domain.EntityID            `json:"filter_slack_task_ref_ids,omitempty"`
	FilterEmailTaskRefIDs []domain.EntityID            `json:"filter_email_task_ref_ids,omitempty"`
}

// Gen runs task generation. Without targets it uses the workspace's configured defaults.
func (e Engine) Gen(ctx context.Context, id Identity, args GenArgs) (*domain.GenLogEntry, error) {
	cfg, err := e.settle(ctx, id)
	if err != nil {
		return nil, err
	}
	targets := args.Targets
	if len(targets) == 0 {
		targets = cfg.Targets()
	}
	svc := gen.Service{
		UOW:     e.UOW,
		Locks:   e.Locks,
		Log:     e.log(),
		Now:     e.Now,
		Streaks: stats.StreakRecorder{},
		Reports: stats.ReportService{},
		Metrics: e.Metrics,
	}
	return svc.Run(ctx, gen.Args{
		User:                  id.User,
		Workspace:             id.Workspace,
		Today:                 e.dayOr(args.Today),
		RealToday:             e.today(),
		Source:                e.ectx().Source,
		Targets:               targets,
		Period:                args.Period,
		GenEvenIfNotModified:  args.GenEvenIfNotModified,
		FilterProjectRefIDs:   args.FilterProjectRefIDs,
		FilterHabitRefIDs:     args.FilterHabitRefIDs,
		FilterChoreRefIDs:     args.FilterChoreRefIDs,
		FilterMetricRefIDs:    args.FilterMetricRefIDs,
		FilterPersonRefIDs:    args.FilterPersonRefIDs,
		FilterSlackTaskRefIDs: args.FilterSlackTaskRefIDs,
		FilterEmailTaskRefIDs: args.FilterEmailTaskRefIDs,
	})
}

type SyncArgs struct {
	Today                 domain.ADate      `json:"today"`
	SyncEvenIfNotModified bool              `json:"sync_even_if_not_modified,omitempty"`
	FilterStreamRefIDs    []domain.EntityID `json:"filter_stream_ref_ids,omitempty"`
}

// Sync mirrors the external calendar streams of the workspace.
func (e Engine) Sync(ctx context.Context, id Identity, args SyncArgs) (*domain.ScheduleExternalSyncLogEntry, error) {
	cfg, err := e.settle(ctx, id)
	if err != nil {
		return nil, err
	}
	fetcher := e.Fetcher
	if fetcher == nil {
		fetcher = icalsync.HTTPFetcher{
			Client:   &http.Client{},
			Attempts: cfg.Sync.MaxFetchAttempts,
			Timeout:  cfg.Sync.FetchTimeout,
		}
	}
	svc := icalsync.Service{
		UOW:      e.UOW,
		Locks:    e.Locks,
		Log:      e.log(),
		Now:      e.Now,
		Fetcher:  fetcher,
		Parallel: cfg.Sync.MaxParallelFetches,
		Metrics:  e.Metrics,
	}
	return svc.Run(ctx, icalsync.Args{
		User:                  id.User,
		Workspace:             id.Workspace,
		Today:                 e.dayOr(args.Today),
		Source:                e.ectx().Source,
		SyncEvenIfNotModified: args.SyncEvenIfNotModified,
		FilterStreamRefIDs:    args.FilterStreamRefIDs,
	})
}

type StatsArgs struct {
	Today               domain.ADate         `json:"today"`
	Targets             []domain.StatsTarget `json:"targets,omitempty"`
	FilterBigPlanRefIDs []domain.EntityID    `json:"filter_big_plan_ref_ids,omitempty"`
	FilterJournalRefIDs []domain.EntityID    `json:"filter_journal_ref_ids,omitempty"`
}

func (e Engine) Stats(ctx context.Context, id Identity, args StatsArgs) (*domain.StatsLogEntry, error) {
	if _, err := e.settle(ctx, id); err != nil {
		return nil, err
	}
	svc := stats.Service{UOW: e.UOW, Locks: e.Locks, Log: e.log(), Now: e.Now}
	return svc.Run(ctx, stats.Args{
		User:                id.User,
		Workspace:           id.Workspace,
		Today:               e.dayOr(args.Today),
		Source:              e.ectx().Source,
		Targets:             args.Targets,
		FilterBigPlanRefIDs: args.FilterBigPlanRefIDs,
		FilterJournalRefIDs: args.FilterJournalRefIDs,
	})
}

type GCArgs struct {
	Today   domain.ADate      `json:"today"`
	Targets []domain.GCTarget `json:"targets,omitempty"`
}

func (e Engine) GC(ctx context.Context, id Identity, args GCArgs) (*domain.GCLogEntry, error) {
	if _, err := e.settle(ctx, id); err != nil {
		return nil, err
	}
	svc := gc.Service{UOW: e.UOW, Locks: e.Locks, Log: e.log(), Now: e.Now, Metrics: e.Metrics}
	return svc.Run(ctx, gc.Args{
		User:      id.User,
		Workspace: id.Workspace,
		Today:     e.dayOr(args.Today),
		Source:    e.ectx().Source,
		Targets:   args.Targets,
	})
}

type ReportArgs struct {
	Today   domain.ADate               `json:"today"`
	Period  domain.RecurringTaskPeriod `json:"period,omitempty"`
	Start   domain.ADate               `json:"start"`
	End     domain.ADate               `json:"end"`
	Sources []domain.InboxTaskSource   `json:"sources,omitempty"`
}

// Report summarizes done work in a window. The window is either explicit or the period around today,
// weekly by default.
func (e Engine) Report(ctx context.Context, id Identity, args ReportArgs) (domain.Report, error) {
	today := e.dayOr(args.Today)
	start, end := args.Start, args.End
	if start.IsZero() || end.IsZero() {
		period := orDefault(args.Period, domain.PeriodWeekly)
		if err := period.Validate(); err != nil {
			return domain.Report{}, err
		}
		start, end = schedule.Bounds(period, today)
	}
	if end.Before(start) {
		return domain.Report{}, domain.Invalid("end", "must not be before start")
	}
	sources := args.Sources
	if len(sources) == 0 {
		sources = domain.AllInboxTaskSources
	}
	var out domain.Report
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		available := make([]domain.InboxTaskSource, 0, len(sources))
		for _, src := range sources {
			if s.ws.IsFeatureAvailable(src.Feature()) || src.Feature() == "" {
				available = append(available, src)
			}
		}
		var err error
		out, err = stats.ReportService{}.Report(ctx, s.u, s.ws.RefID, stats.ReportArgs{
			Today:   today,
			Start:   start,
			End:     end,
			Sources: available,
		})
		return err
	})
	return out, err
}

// logKinds are the run logs RecentLogs can read.
var logKinds = []domain.Kind{
	domain.KindGenLogEntry,
	domain.KindGCLogEntry,
	domain.KindStatsLogEntry,
	domain.KindScheduleExternalSyncLogEntry,
}

type RecentLogsArgs struct {
	Kind  domain.Kind `json:"kind,omitempty"`
	Limit int         `json:"limit,omitempty" validate:"omitempty,min=1,max=500"`
}

// RecentLogs lists the newest run log entries, gen log entries by default.
func (e Engine) RecentLogs(ctx context.Context, id Identity, args RecentLogsArgs) (ListView, error) {
	if err := check(args); err != nil {
		return ListView{}, err
	}
	kind := orDefault(args.Kind, domain.KindGenLogEntry)
	if !slices.Contains(logKinds, kind) {
		return ListView{}, domain.Invalid("kind", "%q is not a run log", kind)
	}
	limit := orDefault(args.Limit, 20)
	out := ListView{Kind: kind, Entities: []domain.Entity{}}
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		parent, err := parentOf(ctx, s, kind)
		if err != nil {
			return err
		}
		g, err := s.u.GetFor(kind)
		if err != nil {
			return err
		}
		found, err := g.Find(ctx, repo.Query{Parent: parent, AllowArchived: true})
		if err != nil {
			return err
		}
		slices.Reverse(found)
		if len(found) > limit {
			found = found[:limit]
		}
		out.Entities = append(out.Entities, found...)
		return nil
	})
	return out, err
}

type ScoreArgs struct {
	Period domain.RecurringTaskPeriod `json:"period,omitempty"`
}

type ScoreView struct {
	Period domain.RecurringTaskPeriod `json:"period"`
	Stats  []domain.ScoreStats        `json:"stats"`
}

// Scores lists the gamification scores of the user per period bucket.
func (e Engine) Scores(ctx context.Context, id Identity, args ScoreArgs) (ScoreView, error) {
	period := orDefault(args.Period, domain.PeriodWeekly)
	if err := period.Validate(); err != nil {
		return ScoreView{}, err
	}
	out := ScoreView{Period: period, Stats: []domain.ScoreStats{}}
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if !s.user.IsFeatureAvailable(domain.FeatureGamification) {
			return &domain.FeatureUnavailableError{Feature: string(domain.FeatureGamification)}
		}
		found, err := s.u.ScoreStats().ListForPeriod(ctx, s.user.RefID, period)
		if err != nil {
			return err
		}
		out.Stats = append(out.Stats, found...)
		return nil
	})
	return out, err
}

// Webhooks lists the enabled webhook receivers of the workspace.
func (e Engine) Webhooks(ctx context.Context, id Identity) ([]config.WebhookConfig, error) {
	cfg, err := e.settle(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]config.WebhookConfig, 0, len(cfg.Webhooks))
	for _, w := range cfg.Webhooks {
		if w.IsEnabled() && w.URL != "" {
			out = append(out, w)
		}
	}
	return out, nil
}
