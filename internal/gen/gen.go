// Package gen turns recurring sources into inbox tasks, plans, notes and time blocks.
package gen

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"jupiter/internal/cascade"
	"jupiter/internal/domain"
	"jupiter/internal/progress"
	"jupiter/internal/repo"
	"jupiter/internal/stats"
	"jupiter/internal/telemetry"
	"jupiter/internal/uow"
)

// CrashedRunMarker is stored on entries a crashed run left open.
const CrashedRunMarker = "run did not finish"

// BirthdayHorizonYears is how many yearly birthday tasks are kept ahead.
const BirthdayHorizonYears = 5

type Args struct {
	User      domain.EntityID
	Workspace domain.EntityID
	Today     domain.ADate
	// RealToday is the wall-clock day. It defaults to Today.
	RealToday            domain.ADate
	Source               domain.EventSource
	Targets              []domain.SyncTarget
	Period               []domain.RecurringTaskPeriod
	GenEvenIfNotModified bool

	FilterProjectRefIDs   []domain.EntityID
	FilterHabitRefIDs     []domain.EntityID
	FilterChoreRefIDs     []domain.EntityID
	FilterMetricRefIDs    []domain.EntityID
	FilterPersonRefIDs    []domain.EntityID
	FilterSlackTaskRefIDs []domain.EntityID
	FilterEmailTaskRefIDs []domain.EntityID
}

func (a Args) filters() map[string][]int64 {
	out := map[string][]int64{}
	add := func(name string, ids []domain.EntityID) {
		if len(ids) == 0 {
			return
		}
		for _, id := range ids {
			out[name] = append(out[name], int64(id))
		}
	}
	add("project", a.FilterProjectRefIDs)
	add("habit", a.FilterHabitRefIDs)
	add("chore", a.FilterChoreRefIDs)
	add("metric", a.FilterMetricRefIDs)
	add("person", a.FilterPersonRefIDs)
	add("slack_task", a.FilterSlackTaskRefIDs)
	add("email_task", a.FilterEmailTaskRefIDs)
	if len(out) == 0 {
		return nil
	}
	return out
}

// features lists what the filters of a need besides the targets themselves.
func (a Args) features() []domain.WorkspaceFeature {
	var out []domain.WorkspaceFeature
	need := func(ids []domain.EntityID, f domain.WorkspaceFeature) {
		if len(ids) > 0 {
			out = append(out, f)
		}
	}
	need(a.FilterProjectRefIDs, domain.FeatureProjects)
	need(a.FilterHabitRefIDs, domain.FeatureHabits)
	need(a.FilterChoreRefIDs, domain.FeatureChores)
	need(a.FilterMetricRefIDs, domain.FeatureMetrics)
	need(a.FilterPersonRefIDs, domain.FeaturePersons)
	need(a.FilterSlackTaskRefIDs, domain.FeatureSlackTasks)
	need(a.FilterEmailTaskRefIDs, domain.FeatureEmailTasks)
	return out
}

func (a Args) wantsPeriod(p domain.RecurringTaskPeriod) bool {
	return len(a.Period) == 0 || slices.Contains(a.Period, p)
}

// Service runs generation for one workspace at a time.
type Service struct {
	UOW     uow.Provider
	Locks   *uow.Locks
	Log     logrus.FieldLogger
	Now     func() time.Time
	Streaks stats.StreakRecorder
	Reports stats.ReportService
	// Metrics is added to every section's reporters when set.
	Metrics progress.Reporter
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

// Run generates every requested target. Each target commits on its own; when some fail the
// entry stays open and the joined section errors are returned with it.
func (s Service) Run(ctx context.Context, args Args) (_ *domain.GenLogEntry, err error) {
	ctx, span := telemetry.Start(ctx, "gen.Run", attribute.Int64("workspace_ref_id", int64(args.Workspace)))
	defer func() { telemetry.End(span, err) }()

	if args.Source == "" {
		args.Source = domain.EventSourceCLI
	}
	targets := args.Targets
	if len(targets) == 0 {
		targets = domain.AllSyncTargets
	}
	for _, t := range targets {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	for _, p := range args.Period {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	ectx := domain.NewCtx(args.Source, s.now())
	if args.Today.IsZero() {
		args.Today = domain.DateOf(ectx.Timestamp)
	}
	args.Today = args.Today.ToDate()
	if args.RealToday.IsZero() {
		args.RealToday = args.Today
	}
	log := s.log().WithFields(logrus.Fields{
		"workspace_ref_id": args.Workspace,
		"run_id":           uuid.NewString(),
		"today":            args.Today.String(),
	})

	if err := s.preflight(ctx, args, targets); err != nil {
		return nil, err
	}
	if s.Locks != nil {
		release, err := s.Locks.Acquire(ctx, args.Workspace)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	entry, err := s.open(ctx, ectx, args, targets, log)
	if err != nil {
		return nil, err
	}

	var failures []error
	for _, target := range domain.AllSyncTargets {
		if !slices.Contains(targets, target) {
			continue
		}
		section := entry.Clone()
		err := s.section(ctx, ectx, args, target, section, log)
		if err == nil {
			entry = section
			continue
		}
		log.WithError(err).WithField("target", target).Error("generation section failed")
		failures = append(failures, fmt.Errorf("gen %s: %w", target, err))
		msg := err.Error()
		err = s.UOW.Do(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
			failed := entry.Clone()
			if err := failed.AddSectionFailure(ectx, string(target), msg); err != nil {
				return err
			}
			if _, err := uow.For[*domain.GenLogEntry](u).Save(ctx, failed); err != nil {
				return err
			}
			entry = failed
			return nil
		})
		if err != nil {
			return entry, errors.Join(append(failures, err)...)
		}
	}
	if len(failures) > 0 {
		return entry, errors.Join(failures...)
	}

	err = s.UOW.Do(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		closed := entry.Clone()
		if err := closed.Close(ectx); err != nil {
			return err
		}
		if _, err := uow.For[*domain.GenLogEntry](u).Save(ctx, closed); err != nil {
			return err
		}
		entry = closed
		return nil
	})
	if err != nil {
		return entry, err
	}
	log.WithFields(logrus.Fields{
		"created": len(entry.EntityCreated),
		"updated": len(entry.EntityUpdated),
		"removed": len(entry.EntityRemoved),
	}).Info("generation done")
	return entry, nil
}

// preflight fails with a feature error before anything is written.
func (s Service) preflight(ctx context.Context, args Args, targets []domain.SyncTarget) error {
	return s.UOW.Do(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		ws, err := uow.For[*domain.Workspace](u).LoadByID(ctx, args.Workspace, false)
		if err != nil {
			return err
		}
		for _, t := range targets {
			if err := ws.CheckFeature(t.Feature()); err != nil {
				return err
			}
		}
		for _, f := range args.features() {
			if err := ws.CheckFeature(f); err != nil {
				return err
			}
		}
		return nil
	})
}

// open claims the gen log, closes entries a crashed run left behind and opens the run's entry.
func (s Service) open(ctx context.Context, ectx domain.Ctx, args Args, targets []domain.SyncTarget,
	log logrus.FieldLogger) (*domain.GenLogEntry, error) {
	var entry *domain.GenLogEntry
	err := s.UOW.Do(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		genLog, err := uow.For[*domain.GenLog](u).LoadByParent(ctx, args.Workspace)
		if err != nil {
			return err
		}
		genLog.Touch(ectx, "Claimed")
		if _, err := uow.For[*domain.GenLog](u).Save(ctx, genLog); err != nil {
			return err
		}
		entries := uow.For[*domain.GenLogEntry](u)
		stale, err := entries.FindAllGeneric(ctx, repo.Query{Parent: genLog.RefID, Filter: map[string]any{"opened": true}})
		if err != nil {
			return err
		}
		for _, e := range stale {
			if err := e.CloseWithError(ectx, CrashedRunMarker); err != nil {
				return err
			}
			if _, err := entries.Save(ctx, e); err != nil {
				return err
			}
			log.WithField("entry_ref_id", e.RefID).Warn("closed entry of a crashed run")
		}
		var period domain.RecurringTaskPeriod
		if len(args.Period) == 1 {
			period = args.Period[0]
		}
		entry = domain.NewGenLogEntry(ectx, genLog.RefID, args.Today, args.GenEvenIfNotModified, targets, period, args.filters())
		entry, err = entries.Create(ctx, entry)
		return err
	})
	return entry, err
}

func (s Service) section(ctx context.Context, ectx domain.Ctx, args Args, target domain.SyncTarget,
	entry *domain.GenLogEntry, log logrus.FieldLogger) (err error) {
	ctx, span := telemetry.Start(ctx, "gen."+string(target))
	defer func() { telemetry.End(span, err) }()

	log = log.WithField("target", target)
	reporter := progress.Multi{
		progress.EntryReporter{Entry: entry, Ctx: ectx},
		progress.LogReporter{Log: log},
		s.Metrics,
	}
	return s.UOW.Do(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		ws, err := uow.For[*domain.Workspace](u).LoadByID(ctx, args.Workspace, false)
		if err != nil {
			return err
		}
		tasks, err := uow.For[*domain.InboxTaskCollection](u).LoadByParent(ctx, ws.RefID)
		if err != nil {
			return err
		}
		notes, err := uow.For[*domain.NoteCollection](u).LoadByParent(ctx, ws.RefID)
		if err != nil {
			return err
		}
		r := &run{
			args:    args,
			ectx:    ectx,
			u:       u,
			ws:      ws,
			tasks:   tasks.RefID,
			notes:   notes.RefID,
			rep:     reporter,
			cascade: cascade.Service{Reporter: reporter},
			streaks: s.Streaks,
			reports: s.Reports,
			log:     log,
		}
		switch target {
		case domain.TargetWorkingMem:
			err = r.workingMem(ctx)
		case domain.TargetTimePlans:
			err = r.timePlans(ctx)
		case domain.TargetHabits:
			err = r.habits(ctx)
		case domain.TargetChores:
			err = r.chores(ctx)
		case domain.TargetJournals:
			err = r.journals(ctx)
		case domain.TargetMetrics:
			err = r.metrics(ctx)
		case domain.TargetPersons:
			err = r.persons(ctx)
		case domain.TargetSlackTasks:
			err = r.slackTasks(ctx)
		case domain.TargetEmailTasks:
			err = r.emailTasks(ctx)
		}
		if err != nil {
			return err
		}
		_, err = uow.For[*domain.GenLogEntry](u).Save(ctx, entry)
		return err
	})
}
