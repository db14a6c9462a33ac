package engine

import (
	"context"
	"fmt"

	"jupiter/internal/cascade"
	"jupiter/internal/domain"
	"jupiter/internal/progress"
	"jupiter/internal/repo"
	"jupiter/internal/uow"
)

// kindFeatures lists the kinds reachable through the generic use cases and the
// workspace feature each one needs. An empty feature means always on.
var kindFeatures = map[domain.Kind]domain.WorkspaceFeature{
	domain.KindProject:                      domain.FeatureProjects,
	domain.KindInboxTask:                    domain.FeatureInboxTasks,
	domain.KindHabit:                        domain.FeatureHabits,
	domain.KindChore:                        domain.FeatureChores,
	domain.KindBigPlan:                      domain.FeatureBigPlans,
	domain.KindVacation:                     domain.FeatureVacations,
	domain.KindMetric:                       domain.FeatureMetrics,
	domain.KindMetricEntry:                  domain.FeatureMetrics,
	domain.KindPerson:                       domain.FeaturePersons,
	domain.KindSlackTask:                    domain.FeatureSlackTasks,
	domain.KindEmailTask:                    domain.FeatureEmailTasks,
	domain.KindWorkingMem:                   domain.FeatureWorkingMem,
	domain.KindTimePlan:                     domain.FeatureTimePlans,
	domain.KindJournal:                      domain.FeatureJournals,
	domain.KindScheduleStream:               domain.FeatureSchedule,
	domain.KindScheduleEventInDay:           domain.FeatureSchedule,
	domain.KindScheduleEventFullDays:        domain.FeatureSchedule,
	domain.KindTimeEventInDayBlock:          "",
	domain.KindTimeEventFullDaysBlock:       "",
	domain.KindNote:                         "",
	domain.KindGenLogEntry:                  "",
	domain.KindGCLogEntry:                   "",
	domain.KindStatsLogEntry:                "",
	domain.KindScheduleExternalSyncLogEntry: "",
}

// readOnly kinds are written by the runs and the owners only.
var readOnly = map[domain.Kind]bool{
	domain.KindTimeEventInDayBlock:          true,
	domain.KindTimeEventFullDaysBlock:       true,
	domain.KindGenLogEntry:                  true,
	domain.KindGCLogEntry:                   true,
	domain.KindStatsLogEntry:                true,
	domain.KindScheduleExternalSyncLogEntry: true,
}

func checkKind(s scope, kind domain.Kind, write bool) error {
	f, ok := kindFeatures[kind]
	if !ok || (write && readOnly[kind]) {
		return domain.Invalid("kind", "%q is not available here", kind)
	}
	return s.ws.CheckFeature(f)
}

// inWorkspace walks the parent chain of ent up to the workspace and fails with
// ErrEntityNotFound when it ends somewhere else.
func inWorkspace(ctx context.Context, s scope, ent domain.Entity) error {
	cur := ent
	for {
		d, err := repo.Describe(cur.Kind())
		if err != nil {
			return err
		}
		switch d.ParentKind {
		case domain.KindWorkspace:
			if cur.ParentRefID() == s.ws.RefID {
				return nil
			}
			return fmt.Errorf("%s: %w", domain.Describe(ent), domain.ErrEntityNotFound)
		case "":
			return fmt.Errorf("%s: %w", domain.Describe(ent), domain.ErrEntityNotFound)
		}
		g, err := s.u.GetFor(d.ParentKind)
		if err != nil {
			return err
		}
		if cur, err = g.Load(ctx, cur.ParentRefID(), true); err != nil {
			return err
		}
	}
}

// load returns the entity of kind T with refID when it belongs to the workspace.
func load[T domain.Entity](ctx context.Context, s scope, refID domain.EntityID, allowArchived bool) (T, error) {
	var zero T
	ent, err := uow.For[T](s.u).LoadByID(ctx, refID, allowArchived)
	if err != nil {
		return zero, err
	}
	if err := inWorkspace(ctx, s, ent); err != nil {
		return zero, err
	}
	return ent, nil
}

// parentOf resolves the single parent row of kind inside the workspace. Kinds hanging
// off a non-trunk entity need the caller to name the parent.
func parentOf(ctx context.Context, s scope, kind domain.Kind) (domain.EntityID, error) {
	d, err := repo.Describe(kind)
	if err != nil {
		return domain.BadRefID, err
	}
	if d.ParentKind == domain.KindWorkspace {
		return s.ws.RefID, nil
	}
	pd, err := repo.Describe(d.ParentKind)
	if err != nil {
		return domain.BadRefID, err
	}
	if !pd.Trunk {
		return domain.BadRefID, domain.Invalid("parent_ref_id", "listing %s needs a %s", kind, d.ParentKind)
	}
	grand, err := parentOf(ctx, s, d.ParentKind)
	if err != nil {
		return domain.BadRefID, err
	}
	g, err := s.u.GetFor(d.ParentKind)
	if err != nil {
		return domain.BadRefID, err
	}
	p, err := g.LoadByParent(ctx, grand)
	if err != nil {
		return domain.BadRefID, err
	}
	return p.Base().RefID, nil
}

type RefArgs struct {
	Kind          domain.Kind     `json:"kind" validate:"required"`
	RefID         domain.EntityID `json:"ref_id" validate:"required"`
	AllowArchived bool            `json:"allow_archived,omitempty"`
}

type EntityView struct {
	Kind   domain.Kind   `json:"kind"`
	Entity domain.Entity `json:"entity"`
}

// Load returns one entity of any user-facing kind.
func (e Engine) Load(ctx context.Context, id Identity, args RefArgs) (EntityView, error) {
	if err := check(args); err != nil {
		return EntityView{}, err
	}
	var out EntityView
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := checkKind(s, args.Kind, false); err != nil {
			return err
		}
		g, err := s.u.GetFor(args.Kind)
		if err != nil {
			return err
		}
		ent, err := g.Load(ctx, args.RefID, args.AllowArchived)
		if err != nil {
			return err
		}
		if err := inWorkspace(ctx, s, ent); err != nil {
			return err
		}
		out = EntityView{Kind: args.Kind, Entity: ent}
		return nil
	})
	return out, err
}

type ListArgs struct {
	Kind          domain.Kind       `json:"kind" validate:"required"`
	ParentRefID   domain.EntityID   `json:"parent_ref_id,omitempty"`
	AllowArchived bool              `json:"allow_archived,omitempty"`
	RefIDs        []domain.EntityID `json:"ref_ids,omitempty"`
	// Filter matches declared link columns, such as status or project_ref_id.
	Filter map[string]any `json:"filter,omitempty"`
}

type ListView struct {
	Kind     domain.Kind     `json:"kind"`
	Entities []domain.Entity `json:"entities"`
}

// List returns the entities of a kind in the workspace, oldest first.
func (e Engine) List(ctx context.Context, id Identity, args ListArgs) (ListView, error) {
	if err := check(args); err != nil {
		return ListView{}, err
	}
	out := ListView{Kind: args.Kind, Entities: []domain.Entity{}}
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := checkKind(s, args.Kind, false); err != nil {
			return err
		}
		parent := args.ParentRefID
		if parent == domain.BadRefID {
			var err error
			if parent, err = parentOf(ctx, s, args.Kind); err != nil {
				return err
			}
		} else {
			d, err := repo.Describe(args.Kind)
			if err != nil {
				return err
			}
			pg, err := s.u.GetFor(d.ParentKind)
			if err != nil {
				return err
			}
			p, err := pg.Load(ctx, parent, true)
			if err != nil {
				return fmt.Errorf("%w: %v", domain.ErrParentMissing, err)
			}
			if err := inWorkspace(ctx, s, p); err != nil {
				return err
			}
		}
		g, err := s.u.GetFor(args.Kind)
		if err != nil {
			return err
		}
		found, err := g.Find(ctx, repo.Query{Parent: parent, AllowArchived: args.AllowArchived, RefIDs: args.RefIDs, Filter: args.Filter})
		if err != nil {
			return err
		}
		out.Entities = append(out.Entities, found...)
		return nil
	})
	return out, err
}

type ArchiveArgs struct {
	Kind  domain.Kind     `json:"kind" validate:"required"`
	RefID domain.EntityID `json:"ref_id" validate:"required"`
}

// ArchiveResult lists everything the archival touched, the entity itself last.
type ArchiveResult struct {
	Archived []domain.EntitySummary `json:"archived"`
}

// Archive archives an entity together with everything it owns.
func (e Engine) Archive(ctx context.Context, id Identity, args ArchiveArgs) (ArchiveResult, error) {
	if err := check(args); err != nil {
		return ArchiveResult{}, err
	}
	out := ArchiveResult{Archived: []domain.EntitySummary{}}
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := checkKind(s, args.Kind, true); err != nil {
			return err
		}
		ent, err := loadAny(ctx, s, args.Kind, args.RefID)
		if err != nil {
			return err
		}
		rec := &collector{}
		archiver := cascade.Service{Reporter: progress.Multi{rec, progress.LogReporter{Log: e.log()}, e.Metrics}}
		if err := archiver.Archive(ctx, s.u, s.ectx, args.Kind, ent.Base().RefID, domain.ArchivalReasonUser); err != nil {
			return err
		}
		out.Archived = append(out.Archived, rec.archived...)
		return nil
	})
	return out, err
}

type RemoveResult struct {
	Removed []domain.EntitySummary `json:"removed"`
}

// Remove deletes an entity and everything it owns. Guarded owners refuse while they still have live work.
func (e Engine) Remove(ctx context.Context, id Identity, args ArchiveArgs) (RemoveResult, error) {
	if err := check(args); err != nil {
		return RemoveResult{}, err
	}
	out := RemoveResult{Removed: []domain.EntitySummary{}}
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := checkKind(s, args.Kind, true); err != nil {
			return err
		}
		ent, err := loadAny(ctx, s, args.Kind, args.RefID)
		if err != nil {
			return err
		}
		if p, ok := ent.(*domain.Project); ok && p.RefID == s.ws.DefaultProjectRefID {
			return fmt.Errorf("%s is the default project: %w", domain.Describe(p), domain.ErrUnsafeRemoval)
		}
		rec := &collector{}
		remover := cascade.Service{Reporter: progress.Multi{rec, progress.LogReporter{Log: e.log()}, e.Metrics}}
		if err := remover.Remove(ctx, s.u, args.Kind, ent.Base().RefID); err != nil {
			return err
		}
		out.Removed = append(out.Removed, rec.removed...)
		return nil
	})
	return out, err
}

func loadAny(ctx context.Context, s scope, kind domain.Kind, refID domain.EntityID) (domain.Entity, error) {
	g, err := s.u.GetFor(kind)
	if err != nil {
		return nil, err
	}
	ent, err := g.Load(ctx, refID, true)
	if err != nil {
		return nil, err
	}
	return ent, inWorkspace(ctx, s, ent)
}

type HistoryView struct {
	Events []domain.Event `json:"events"`
}

// History returns the mutation log of one entity.
func (e Engine) History(ctx context.Context, id Identity, args RefArgs) (HistoryView, error) {
	if err := check(args); err != nil {
		return HistoryView{}, err
	}
	out := HistoryView{Events: []domain.Event{}}
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := checkKind(s, args.Kind, false); err != nil {
			return err
		}
		if _, err := loadAny(ctx, s, args.Kind, args.RefID); err != nil {
			return err
		}
		g, err := s.u.GetFor(args.Kind)
		if err != nil {
			return err
		}
		evts, err := g.History(ctx, args.RefID)
		if err != nil {
			return err
		}
		out.Events = append(out.Events, evts...)
		return nil
	})
	return out, err
}

// collector keeps summaries of what a cascade touched.
type collector struct {
	created  []domain.EntitySummary
	updated  []domain.EntitySummary
	archived []domain.EntitySummary
	removed  []domain.EntitySummary
}

func (c *collector) EntityCreated(_ context.Context, ent domain.Entity) error {
	c.created = append(c.created, domain.SummaryOf(ent))
	return nil
}

func (c *collector) EntityUpdated(_ context.Context, ent domain.Entity) error {
	c.updated = append(c.updated, domain.SummaryOf(ent))
	return nil
}

func (c *collector) EntityArchived(_ context.Context, ent domain.Entity) error {
	c.archived = append(c.archived, domain.SummaryOf(ent))
	return nil
}

func (c *collector) EntityRemoved(_ context.Context, ent domain.Entity) error {
	c.removed = append(c.removed, domain.SummaryOf(ent))
	return nil
}
