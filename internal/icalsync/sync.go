// Package icalsync mirrors remote iCalendar feeds into schedule events, time blocks and notes.
package icalsync

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"jupiter/internal/cascade"
	"jupiter/internal/domain"
	"jupiter/internal/progress"
	"jupiter/internal/repo"
	"jupiter/internal/telemetry"
	"jupiter/internal/uow"
)

// CrashedRunMarker is stored on entries a crashed sync left open.
const CrashedRunMarker = "sync did not finish"

type Args struct {
	User                  domain.EntityID
	Workspace             domain.EntityID
	Today                 domain.ADate
	Source                domain.EventSource
	SyncEvenIfNotModified bool
	FilterStreamRefIDs    []domain.EntityID
}

type Service struct {
	UOW     uow.Provider
	Locks   *uow.Locks
	Log     logrus.FieldLogger
	Now     func() time.Time
	Fetcher Fetcher
	// Parallel caps concurrent fetches. Zero means one at a time.
	Parallel int
	Metrics  progress.Reporter
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

func (s Service) fetcher() Fetcher {
	if s.Fetcher == nil {
		return HTTPFetcher{Client: http.DefaultClient, Attempts: 3, Timeout: 30 * time.Second}
	}
	return s.Fetcher
}

type fetched struct {
	body []byte
	err  error
}

// Run syncs every external stream of the workspace. Failures of one stream are recorded on the
// entry and never stop the others.
func (s Service) Run(ctx context.Context, args Args) (_ *domain.ScheduleExternalSyncLogEntry, err error) {
	ctx, span := telemetry.Start(ctx, "icalsync.Run", attribute.Int64("workspace_ref_id", int64(args.Workspace)))
	defer func() { telemetry.End(span, err) }()

	if args.Source == "" {
		args.Source = domain.EventSourceCLI
	}
	ectx := domain.NewCtx(args.Source, s.now())
	if args.Today.IsZero() {
		args.Today = domain.DateOf(ectx.Timestamp)
	}
	args.Today = args.Today.ToDate()
	window := WindowFor(args.Today)
	log := s.log().WithFields(logrus.Fields{
		"workspace_ref_id": args.Workspace,
		"run_id":           uuid.NewString(),
		"today":            args.Today.String(),
	})

	var streams []*domain.ScheduleStream
	err = s.UOW.Do(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		ws, err := uow.For[*domain.Workspace](u).LoadByID(ctx, args.Workspace, false)
		if err != nil {
			return err
		}
		if err := ws.CheckFeature(domain.FeatureSchedule); err != nil {
			return err
		}
		sd, err := uow.For[*domain.ScheduleDomain](u).LoadByParent(ctx, ws.RefID)
		if err != nil {
			return err
		}
		q := repo.Query{Parent: sd.RefID, Filter: map[string]any{"source": string(domain.StreamSourceExternalICal)}}
		if len(args.FilterStreamRefIDs) > 0 {
			q.RefIDs = args.FilterStreamRefIDs
		}
		streams, err = uow.For[*domain.ScheduleStream](u).FindAllGeneric(ctx, q)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.Locks != nil {
		release, err := s.Locks.Acquire(ctx, args.Workspace)
		if err != nil {
			return nil, err
		}
		defer release()
	}
	entry, err := s.open(ctx, ectx, args, log)
	if err != nil {
		return nil, err
	}

	bodies := make([]fetched, len(streams))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.Parallel, 1))
	for i, st := range streams {
		g.Go(func() error {
			body, err := s.fetcher().Fetch(gctx, st.FetchURL())
			bodies[i] = fetched{body: body, err: err}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return entry, err
	}

	for i, st := range streams {
		streamLog := log.WithField("stream_ref_id", st.RefID)
		err := bodies[i].err
		var cal Calendar
		if err == nil {
			cal, err = Parse(bodies[i].body, window)
		}
		if err == nil {
			section := entry.Clone()
			if err = s.stream(ctx, ectx, args, window, st.RefID, cal, section, streamLog); err == nil {
				entry = section
				continue
			}
		}
		streamLog.WithError(err).Warn("stream sync failed")
		msg := err
		err = s.UOW.Do(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
			failed := entry.Clone()
			if err := failed.MarkError(ectx, st.RefID, msg); err != nil {
				return err
			}
			if _, err := uow.For[*domain.ScheduleExternalSyncLogEntry](u).Save(ctx, failed); err != nil {
				return err
			}
			entry = failed
			return nil
		})
		if err != nil {
			return entry, err
		}
	}

	err = s.UOW.Do(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		closed := entry.Clone()
		if err := closed.Close(ectx); err != nil {
			return err
		}
		if _, err := uow.For[*domain.ScheduleExternalSyncLogEntry](u).Save(ctx, closed); err != nil {
			return err
		}
		entry = closed
		return nil
	})
	if err != nil {
		return entry, err
	}
	log.WithFields(logrus.Fields{
		"streams":  len(streams),
		"created":  len(entry.EntityCreated),
		"updated":  len(entry.EntityUpdated),
		"archived": len(entry.EntityArchived),
	}).Info("sync done")
	return entry, nil
}

func (s Service) open(ctx context.Context, ectx domain.Ctx, args Args, log logrus.FieldLogger) (*domain.ScheduleExternalSyncLogEntry, error) {
	var entry *domain.ScheduleExternalSyncLogEntry
	err := s.UOW.Do(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		syncLog, err := uow.For[*domain.ScheduleExternalSyncLog](u).LoadByParent(ctx, args.Workspace)
		if err != nil {
			return err
		}
		entries := uow.For[*domain.ScheduleExternalSyncLogEntry](u)
		stale, err := entries.FindAllGeneric(ctx, repo.Query{Parent: syncLog.RefID, Filter: map[string]any{"opened": true}})
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
			log.WithField("entry_ref_id", e.RefID).Warn("closed entry of a crashed sync")
		}
		entry = domain.NewScheduleExternalSyncLogEntry(ectx, syncLog.RefID, args.Today, args.SyncEvenIfNotModified, args.FilterStreamRefIDs)
		entry, err = entries.Create(ctx, entry)
		return err
	})
	return entry, err
}

// stream applies one parsed calendar in a single unit of work and marks the stream done on entry.
func (s Service) stream(ctx context.Context, ectx domain.Ctx, args Args, window Window, streamRefID domain.EntityID,
	cal Calendar, entry *domain.ScheduleExternalSyncLogEntry, log logrus.FieldLogger) (err error) {
	ctx, span := telemetry.Start(ctx, "icalsync.stream", attribute.Int64("stream_ref_id", int64(streamRefID)))
	defer func() { telemetry.End(span, err) }()

	reporter := progress.Multi{
		progress.EntryReporter{Entry: entry, Ctx: ectx},
		progress.LogReporter{Log: log},
		s.Metrics,
	}
	return s.UOW.Do(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		stream, err := uow.For[*domain.ScheduleStream](u).LoadByID(ctx, streamRefID, false)
		if err != nil {
			return err
		}
		timeDomain, err := uow.For[*domain.TimeEventDomain](u).LoadByParent(ctx, args.Workspace)
		if err != nil {
			return err
		}
		notes, err := uow.For[*domain.NoteCollection](u).LoadByParent(ctx, args.Workspace)
		if err != nil {
			return err
		}
		m := &mirror{
			ectx:       ectx,
			u:          u,
			stream:     stream,
			timeDomain: timeDomain.RefID,
			notes:      notes.RefID,
			window:     window,
			syncEven:   args.SyncEvenIfNotModified,
			rep:        reporter,
			cascade:    cascade.Service{Reporter: reporter},
		}
		if err := m.apply(ctx, cal); err != nil {
			return fmt.Errorf("stream %d: %w", streamRefID, err)
		}
		if err := entry.MarkSuccess(ectx, streamRefID); err != nil {
			return err
		}
		_, err = uow.For[*domain.ScheduleExternalSyncLogEntry](u).Save(ctx, entry)
		return err
	})
}
