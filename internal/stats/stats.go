// Package stats recomputes big plan counters, journal reports, gamification scores and
// habit streak marks.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"jupiter/internal/domain"
	"jupiter/internal/progress"
	"jupiter/internal/repo"
	"jupiter/internal/telemetry"
	"jupiter/internal/uow"
)

// JournalWindowDays bounds how far back journals get their report refreshed.
const JournalWindowDays = 400

// ScoreWindowDays bounds how far back completions are scored.
const ScoreWindowDays = 365

type Args struct {
	User                domain.EntityID
	Workspace           domain.EntityID
	Today               domain.ADate
	Source              domain.EventSource
	Targets             []domain.StatsTarget
	FilterBigPlanRefIDs []domain.EntityID
	FilterJournalRefIDs []domain.EntityID
}

type Service struct {
	UOW     uow.Provider
	Locks   *uow.Locks
	Log     logrus.FieldLogger
	Now     func() time.Time
	Reports ReportService
	Scores  ScoreRecorder
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s Service) log() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

// Run recomputes the requested targets in one unit of work and returns the closed log entry.
func (s Service) Run(ctx context.Context, args Args) (_ *domain.StatsLogEntry, err error) {
	ctx, span := telemetry.Start(ctx, "stats.Run", attribute.Int64("workspace_ref_id", int64(args.Workspace)))
	defer func() { telemetry.End(span, err) }()

	if args.Source == "" {
		args.Source = domain.EventSourceCLI
	}
	targets := args.Targets
	if len(targets) == 0 {
		targets = domain.AllStatsTargets
	}
	for _, t := range targets {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	ectx := domain.NewCtx(args.Source, s.now())
	today := args.Today
	if today.IsZero() {
		today = domain.DateOf(ectx.Timestamp)
	}
	if s.Locks != nil {
		release, err := s.Locks.Acquire(ctx, args.Workspace)
		if err != nil {
			return nil, err
		}
		defer release()
	}
	log := s.log().WithFields(logrus.Fields{"workspace_ref_id": args.Workspace, "run_id": uuid.NewString()})

	var entry *domain.StatsLogEntry
	err = s.UOW.Do(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		ws, err := uow.For[*domain.Workspace](u).LoadByID(ctx, args.Workspace, false)
		if err != nil {
			return err
		}
		user, err := uow.For[*domain.User](u).LoadByID(ctx, args.User, false)
		if err != nil {
			return err
		}
		for _, t := range targets {
			if err := checkTarget(ws, user, t); err != nil {
				return err
			}
		}
		statsLog, err := uow.For[*domain.StatsLog](u).LoadByParent(ctx, ws.RefID)
		if err != nil {
			return err
		}
		entry = domain.NewStatsLogEntry(ectx, statsLog.RefID, today, targets)
		reporter := progress.EntryReporter{Entry: entry, Ctx: ectx}
		for _, t := range targets {
			var err error
			switch t {
			case domain.StatsTargetBigPlans:
				err = s.bigPlans(ctx, u, ectx, ws, args.FilterBigPlanRefIDs, reporter)
			case domain.StatsTargetJournals:
				err = s.journals(ctx, u, ectx, ws, today, args.FilterJournalRefIDs, reporter)
			case domain.StatsTargetGamification:
				err = s.gamification(ctx, u, ectx, ws, user, today, log)
			}
			if err != nil {
				return fmt.Errorf("stats %s: %w", t, err)
			}
		}
		if err := entry.Close(ectx); err != nil {
			return err
		}
		_, err = uow.For[*domain.StatsLogEntry](u).Create(ctx, entry)
		return err
	})
	if err != nil {
		log.WithError(err).Error("stats run failed")
		return nil, err
	}
	log.WithField("touched", entry.Touched()).Info("stats run done")
	return entry, nil
}

func checkTarget(ws *domain.Workspace, user *domain.User, t domain.StatsTarget) error {
	switch t {
	case domain.StatsTargetBigPlans:
		return ws.CheckFeature(domain.FeatureBigPlans)
	case domain.StatsTargetJournals:
		return ws.CheckFeature(domain.FeatureJournals)
	case domain.StatsTargetGamification:
		if !user.IsFeatureAvailable(domain.FeatureGamification) {
			return &domain.FeatureUnavailableError{Feature: string(domain.FeatureGamification)}
		}
	}
	return nil
}

func (s Service) bigPlans(ctx context.Context, u *uow.UnitOfWork, ectx domain.Ctx, ws *domain.Workspace,
	filter []domain.EntityID, reporter progress.Reporter) error {
	coll, err := uow.For[*domain.BigPlanCollection](u).LoadByParent(ctx, ws.RefID)
	if err != nil {
		return err
	}
	plans, err := uow.For[*domain.BigPlan](u).FindAll(ctx, coll.RefID, false, filter...)
	if err != nil {
		return err
	}
	tasks := uow.For[*domain.InboxTask](u)
	for _, p := range plans {
		found, err := tasks.FindAllGeneric(ctx, repo.Query{
			AllowArchived: true,
			Filter: map[string]any{
				"source":               string(domain.SourceBigPlan),
				"source_entity_ref_id": int64(p.RefID),
			},
		})
		if err != nil {
			return err
		}
		next := domain.BigPlanStats{BigPlanRefID: p.RefID, AllInboxTasksCnt: len(found), CreatedTime: ectx.Timestamp, LastModifiedTime: ectx.Timestamp}
		for _, t := range found {
			if t.Status.IsCompleted() {
				next.CompletedInboxTasksCnt++
			}
		}
		prev, err := u.BigPlanStats().Load(ctx, p.RefID)
		if err == nil {
			if prev.AllInboxTasksCnt == next.AllInboxTasksCnt && prev.CompletedInboxTasksCnt == next.CompletedInboxTasksCnt {
				continue
			}
			next.CreatedTime = prev.CreatedTime
		}
		if err := u.BigPlanStats().Upsert(ctx, next); err != nil {
			return err
		}
		if err := reporter.EntityUpdated(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (s Service) journals(ctx context.Context, u *uow.UnitOfWork, ectx domain.Ctx, ws *domain.Workspace, today domain.ADate,
	filter []domain.EntityID, reporter progress.Reporter) error {
	coll, err := uow.For[*domain.JournalCollection](u).LoadByParent(ctx, ws.RefID)
	if err != nil {
		return err
	}
	journals, err := uow.For[*domain.Journal](u).FindAll(ctx, coll.RefID, false, filter...)
	if err != nil {
		return err
	}
	horizon := today.AddDays(-JournalWindowDays)
	for _, j := range journals {
		if j.EndDate.Before(horizon) {
			continue
		}
		if err := RefreshJournalStats(ctx, u, ectx, s.Reports, ws, j, today); err != nil {
			return err
		}
		if err := reporter.EntityUpdated(ctx, j); err != nil {
			return err
		}
	}
	return nil
}

// RefreshJournalStats stores a fresh report for the journal's period.
func RefreshJournalStats(ctx context.Context, u *uow.UnitOfWork, ectx domain.Ctx, reports ReportService, ws *domain.Workspace,
	j *domain.Journal, today domain.ADate) error {
	report, err := reports.Report(ctx, u, ws.RefID, ReportArgs{
		Today:   today,
		Start:   j.StartDate,
		End:     j.EndDate,
		Sources: EnabledSources(ws),
	})
	if err != nil {
		return err
	}
	stats := domain.JournalStats{JournalRefID: j.RefID, Report: report, CreatedTime: ectx.Timestamp, LastModifiedTime: ectx.Timestamp}
	if prev, err := u.JournalStats().Load(ctx, j.RefID); err == nil {
		stats.CreatedTime = prev.CreatedTime
	}
	return u.JournalStats().Upsert(ctx, stats)
}

func (s Service) gamification(ctx context.Context, u *uow.UnitOfWork, ectx domain.Ctx, ws *domain.Workspace, user *domain.User,
	today domain.ADate, log logrus.FieldLogger) error {
	since := today.AddDays(-ScoreWindowDays)
	tasksColl, err := uow.For[*domain.InboxTaskCollection](u).LoadByParent(ctx, ws.RefID)
	if err != nil {
		return err
	}
	tasks, err := uow.For[*domain.InboxTask](u).FindAllGeneric(ctx, repo.Query{
		Parent:        tasksColl.RefID,
		AllowArchived: true,
		Filter:        map[string]any{"status": []string{string(domain.StatusDone), string(domain.StatusNotDone)}},
	})
	if err != nil {
		return err
	}
	recorded := 0
	for _, t := range tasks {
		if !t.IsCompletedIn(since, today) {
			continue
		}
		c, ok := InboxTaskCompletion(t)
		if !ok {
			continue
		}
		ok, err := s.Scores.RecordTask(ctx, u, ectx, user.RefID, c)
		if err != nil {
			return err
		}
		if ok {
			recorded++
		}
	}
	plansColl, err := uow.For[*domain.BigPlanCollection](u).LoadByParent(ctx, ws.RefID)
	if err != nil {
		return err
	}
	plans, err := uow.For[*domain.BigPlan](u).FindAllGeneric(ctx, repo.Query{
		Parent:        plansColl.RefID,
		AllowArchived: true,
		Filter:        map[string]any{"status": []string{string(domain.BigPlanDone), string(domain.BigPlanNotDone)}},
	})
	if err != nil {
		return err
	}
	for _, p := range plans {
		c, ok := BigPlanCompletion(p)
		if !ok {
			continue
		}
		day := domain.DateOf(c.CompletedAt)
		if day.Before(since) || day.After(today) {
			continue
		}
		ok, err := s.Scores.RecordTask(ctx, u, ectx, user.RefID, c)
		if err != nil {
			return err
		}
		if ok {
			recorded++
		}
	}
	log.WithField("recorded", recorded).Debug("scored completions")
	return nil
}
