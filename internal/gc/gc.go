// Package gc archives finished work so that live collections stay small.
package gc

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"jupiter/internal/app"
	"jupiter/internal/cascade"
	"jupiter/internal/domain"
	"jupiter/internal/progress"
	"jupiter/internal/telemetry"
	"jupiter/internal/uow"
)

type Service struct {
	UOW     uow.Provider
	Locks   *uow.Locks
	Log     logrus.FieldLogger
	Now     func() time.Time
	Metrics progress.Reporter
}

type Args struct {
	User      domain.EntityID
	Workspace domain.EntityID
	Today     domain.ADate
	Source    domain.EventSource
	Targets   []domain.GCTarget
}

func (s Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s Service) log() logrus.FieldLogger {
	if s.Log == nil {
		return logrus.StandardLogger()
	}
	return s.Log
}

// archived collects what one section archived, so a rolled back section leaves the entry untouched.
type archived struct{ entities []domain.Entity }

func (a *archived) EntityCreated(context.Context, domain.Entity) error { return nil }
func (a *archived) EntityUpdated(context.Context, domain.Entity) error { return nil }
func (a *archived) EntityRemoved(context.Context, domain.Entity) error { return nil }
func (a *archived) EntityArchived(_ context.Context, e domain.Entity) error {
	a.entities = append(a.entities, e)
	return nil
}

// Run archives every target in its own unit of work. A failing target is
// recorded on the log entry and does not stop the others.
func (s Service) Run(ctx context.Context, args Args) (_ *domain.GCLogEntry, err error) {
	ctx, span := telemetry.Start(ctx, "gc.Run", attribute.Int64("workspace_ref_id", int64(args.Workspace)))
	defer func() { telemetry.End(span, err) }()

	if args.Source == "" {
		args.Source = domain.EventSourceCLI
	}
	targets := args.Targets
	if len(targets) == 0 {
		targets = domain.AllGCTargets
	}
	for _, t := range targets {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	ectx := domain.NewCtx(args.Source, s.now())
	if args.Today.IsZero() {
		args.Today = domain.DateOf(ectx.Timestamp)
	}
	args.Today = args.Today.ToDate()
	if s.Locks != nil {
		release, err := s.Locks.Acquire(ctx, args.Workspace)
		if err != nil {
			return nil, err
		}
		defer release()
	}
	log := s.log().WithFields(logrus.Fields{"workspace_ref_id": args.Workspace, "run_id": uuid.NewString()})

	var entry *domain.GCLogEntry
	var ageDays int
	err = s.UOW.Do(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		ws, err := uow.For[*domain.Workspace](u).LoadByID(ctx, args.Workspace, false)
		if err != nil {
			return err
		}
		for _, t := range targets {
			if err := ws.CheckFeature(feature(t)); err != nil {
				return err
			}
		}
		cfg, err := app.LoadConfig(ctx, u, ws.RefID)
		if err != nil {
			return err
		}
		ageDays = cfg.GC.CompletedTaskAgeDays
		gcLog, err := uow.For[*domain.GCLog](u).LoadByParent(ctx, ws.RefID)
		if err != nil {
			return err
		}
		entry = domain.NewGCLogEntry(ectx, gcLog.RefID, args.Today, targets)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var failures []error
	for _, t := range domain.AllGCTargets {
		if !slices.Contains(targets, t) {
			continue
		}
		got := &archived{}
		err := s.section(ctx, ectx, args, t, ageDays, progress.Multi{got, progress.LogReporter{Log: log}, s.Metrics})
		if err != nil {
			log.WithError(err).WithField("target", t).Error("gc section failed")
			failures = append(failures, fmt.Errorf("gc %s: %w", t, err))
			if err := entry.AddSectionFailure(ectx, string(t), err.Error()); err != nil {
				return nil, err
			}
			continue
		}
		for _, e := range got.entities {
			if err := entry.AddEntityArchived(ectx, e); err != nil {
				return nil, err
			}
		}
	}

	err = s.UOW.Do(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		if err := entry.Close(ectx); err != nil {
			return err
		}
		created, err := uow.For[*domain.GCLogEntry](u).Create(ctx, entry)
		entry = created
		return err
	})
	if err != nil {
		return nil, errors.Join(append(failures, err)...)
	}
	log.WithField("archived", len(entry.EntityArchived)).Info("gc done")
	if len(failures) > 0 {
		return entry, errors.Join(failures...)
	}
	return entry, nil
}

func feature(t domain.GCTarget) domain.WorkspaceFeature {
	switch t {
	case domain.GCTargetBigPlans:
		return domain.FeatureBigPlans
	case domain.GCTargetWorkingMem:
		return domain.FeatureWorkingMem
	default:
		return domain.FeatureInboxTasks
	}
}

func (s Service) section(ctx context.Context, ectx domain.Ctx, args Args, t domain.GCTarget, ageDays int,
	reporter progress.Reporter) (err error) {
	ctx, span := telemetry.Start(ctx, "gc."+string(t))
	defer func() { telemetry.End(span, err) }()

	archiver := cascade.Service{Reporter: reporter}
	return s.UOW.Do(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		switch t {
		case domain.GCTargetInboxTasks:
			coll, err := uow.For[*domain.InboxTaskCollection](u).LoadByParent(ctx, args.Workspace)
			if err != nil {
				return err
			}
			tasks, err := uow.For[*domain.InboxTask](u).FindAll(ctx, coll.RefID, false)
			if err != nil {
				return err
			}
			for _, task := range tasks {
				if !task.Status.IsCompleted() || task.CompletedTime == nil {
					continue
				}
				if domain.DaysBetween(domain.DateOf(task.CompletedTime.UTC()), args.Today) < ageDays {
					continue
				}
				if err := archiver.Archive(ctx, u, ectx, domain.KindInboxTask, task.RefID, domain.ArchivalReasonUser); err != nil {
					return err
				}
			}
		case domain.GCTargetBigPlans:
			coll, err := uow.For[*domain.BigPlanCollection](u).LoadByParent(ctx, args.Workspace)
			if err != nil {
				return err
			}
			plans, err := uow.For[*domain.BigPlan](u).FindAll(ctx, coll.RefID, false)
			if err != nil {
				return err
			}
			for _, p := range plans {
				if !p.Status.IsCompleted() {
					continue
				}
				if err := archiver.Archive(ctx, u, ectx, domain.KindBigPlan, p.RefID, domain.ArchivalReasonUser); err != nil {
					return err
				}
			}
		case domain.GCTargetWorkingMem:
			coll, err := uow.For[*domain.WorkingMemCollection](u).LoadByParent(ctx, args.Workspace)
			if err != nil {
				return err
			}
			mems, err := uow.For[*domain.WorkingMem](u).FindAll(ctx, coll.RefID, false)
			if err != nil {
				return err
			}
			for _, m := range mems {
				if m.CheckArchivable(args.Today) != nil {
					continue
				}
				if err := archiver.Archive(ctx, u, ectx, domain.KindWorkingMem, m.RefID, domain.ArchivalReasonUser); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
