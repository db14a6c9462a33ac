package gen

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"jupiter/internal/cascade"
	"jupiter/internal/domain"
	"jupiter/internal/progress"
	"jupiter/internal/repo"
	"jupiter/internal/stats"
	"jupiter/internal/uow"
)

// run is the state one section works with inside its unit of work.
type run struct {
	args    Args
	ectx    domain.Ctx
	u       *uow.UnitOfWork
	ws      *domain.Workspace
	tasks   domain.EntityID
	notes   domain.EntityID
	rep     progress.Reporter
	cascade cascade.Service
	streaks stats.StreakRecorder
	reports stats.ReportService
	log     logrus.FieldLogger
}

type taskKey struct {
	source   domain.EntityID
	timeline string
	repeat   int
}

func keyOf(t *domain.InboxTask) taskKey {
	return taskKey{source: t.SourceEntityRefID, timeline: t.RecurringTimeline, repeat: t.RepeatIndex()}
}

// derivedTasks loads the tasks generated from sources, archived ones included.
func (r *run) derivedTasks(ctx context.Context, source domain.InboxTaskSource, sources []domain.EntityID) ([]*domain.InboxTask, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(sources))
	for i, id := range sources {
		ids[i] = int64(id)
	}
	return uow.For[*domain.InboxTask](r.u).FindAllGeneric(ctx, repo.Query{
		Parent:        r.tasks,
		AllowArchived: true,
		Filter: map[string]any{
			"source":               string(source),
			"source_entity_ref_id": ids,
		},
	})
}

func index(tasks []*domain.InboxTask) map[taskKey]*domain.InboxTask {
	out := make(map[taskKey]*domain.InboxTask, len(tasks))
	for _, t := range tasks {
		out[keyOf(t)] = t
	}
	return out
}

// stale reports whether derived must follow a source last changed at modified.
func (r *run) stale(derived domain.Entity, modified time.Time) bool {
	if r.args.GenEvenIfNotModified {
		return true
	}
	return derived.Base().LastModifiedTime.Before(modified)
}

// upsertTask creates the task when existing is nil and otherwise refreshes it if the source
// changed since. Archived tasks are left as the user put them.
func (r *run) upsertTask(ctx context.Context, existing *domain.InboxTask, modified time.Time,
	create func() (*domain.InboxTask, error), update func(*domain.InboxTask) error) (*domain.InboxTask, error) {
	store := uow.For[*domain.InboxTask](r.u)
	if existing != nil {
		if existing.Archived || !r.stale(existing, modified) {
			return existing, nil
		}
		if err := update(existing); err != nil {
			return nil, err
		}
		if _, err := store.Save(ctx, existing); err != nil {
			return nil, err
		}
		return existing, r.rep.EntityUpdated(ctx, existing)
	}
	t, err := create()
	if err != nil {
		return nil, err
	}
	if _, err := store.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, r.rep.EntityCreated(ctx, t)
}

// createNote attaches an empty note to a newly generated plan.
func (r *run) createNote(ctx context.Context, nd domain.NoteDomain, source domain.EntityID) error {
	n, err := domain.NewNote(r.ectx, r.notes, nd, source, nil)
	if err != nil {
		return err
	}
	if _, err := uow.For[*domain.Note](r.u).Create(ctx, n); err != nil {
		return err
	}
	return r.rep.EntityCreated(ctx, n)
}

func latest(ts ...time.Time) time.Time {
	var out time.Time
	for _, t := range ts {
		if t.After(out) {
			out = t
		}
	}
	return out
}

func refIDs[T domain.Entity](es []T) []domain.EntityID {
	out := make([]domain.EntityID, len(es))
	for i, e := range es {
		out[i] = e.Base().RefID
	}
	return out
}
