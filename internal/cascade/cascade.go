// Package cascade archives and removes entities together with everything they own.
package cascade

import (
	"context"
	"errors"
	"fmt"

	"jupiter/internal/domain"
	"jupiter/internal/progress"
	"jupiter/internal/repo"
	"jupiter/internal/uow"
)

// Service walks the ownership declarations of domain.EdgesOf depth first,
// children before their owner.
type Service struct {
	Reporter progress.Reporter
}

func (s Service) reporter() progress.Reporter {
	if s.Reporter == nil {
		return progress.Noop{}
	}
	return s.Reporter
}

// Archive archives the entity and, with reason PARENT_ARCHIVED, every live entity it owns.
// Archiving an archived entity is a no-op.
func (s Service) Archive(ctx context.Context, u *uow.UnitOfWork, ectx domain.Ctx, kind domain.Kind, refID domain.EntityID, reason domain.ArchivalReason) error {
	g, err := u.GetFor(kind)
	if err != nil {
		return err
	}
	e, err := g.Load(ctx, refID, true)
	if err != nil {
		return err
	}
	if e.Base().Archived {
		return nil
	}
	if reason == domain.ArchivalReasonUser {
		if guard, ok := e.(domain.ArchiveGuard); ok {
			if err := guard.CheckArchivable(domain.DateOf(ectx.Timestamp)); err != nil {
				return err
			}
		}
	}
	if p, ok := e.(*domain.Project); ok {
		if err := checkNotDefaulting(ctx, u, p); err != nil {
			return err
		}
	}
	for _, edge := range domain.EdgesOf(kind) {
		owned, err := findOwned(ctx, u, e, edge, false)
		if err != nil {
			return err
		}
		for _, child := range owned {
			if err := s.Archive(ctx, u, ectx, edge.Target, child.Base().RefID, domain.ArchivalReasonParentArchived); err != nil {
				return fmt.Errorf("archive %s: %w", domain.Describe(child), err)
			}
		}
	}
	if err := e.Base().MarkArchived(ectx, reason); err != nil {
		return err
	}
	if err := g.Save(ctx, e); err != nil {
		return err
	}
	return s.reporter().EntityArchived(ctx, e)
}

// Remove deletes the entity and everything it owns, archived or not. It fails
// with ErrUnsafeRemoval while a guarding edge still has a live target.
func (s Service) Remove(ctx context.Context, u *uow.UnitOfWork, kind domain.Kind, refID domain.EntityID) error {
	g, err := u.GetFor(kind)
	if err != nil {
		return err
	}
	e, err := g.Load(ctx, refID, true)
	if err != nil {
		return err
	}
	if err := CheckSafeToRemove(ctx, u, e); err != nil {
		return err
	}
	for _, edge := range domain.EdgesOf(kind) {
		owned, err := findOwned(ctx, u, e, edge, true)
		if err != nil {
			return err
		}
		for _, child := range owned {
			err := s.Remove(ctx, u, edge.Target, child.Base().RefID)
			if errors.Is(err, domain.ErrEntityNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("remove %s: %w", domain.Describe(child), err)
			}
		}
	}
	if hook, ok := removeHooks[kind]; ok {
		if err := hook(ctx, u, refID); err != nil {
			return fmt.Errorf("remove records of %s: %w", domain.Describe(e), err)
		}
	}
	removed, err := g.Remove(ctx, refID)
	if err != nil {
		return err
	}
	return s.reporter().EntityRemoved(ctx, removed)
}

// CheckSafeToRemove reports whether e can be removed without losing live work.
func CheckSafeToRemove(ctx context.Context, u *uow.UnitOfWork, e domain.Entity) error {
	if p, ok := e.(*domain.Project); ok {
		if p.IsRoot() {
			return fmt.Errorf("%s is the root project: %w", domain.Describe(e), domain.ErrUnsafeRemoval)
		}
		if err := checkNotDefaulting(ctx, u, p); err != nil {
			return err
		}
	}
	for _, edge := range domain.EdgesOf(e.Kind()) {
		if !edge.Guarded {
			continue
		}
		live, err := findOwned(ctx, u, e, edge, false)
		if err != nil {
			return err
		}
		if len(live) > 0 {
			return fmt.Errorf("%s still owns %d live %s: %w", domain.Describe(e), len(live), edge.Target, domain.ErrUnsafeRemoval)
		}
	}
	return nil
}

func findOwned(ctx context.Context, u *uow.UnitOfWork, owner domain.Entity, edge domain.Edge, allowArchived bool) ([]domain.Entity, error) {
	g, err := u.GetFor(edge.Target)
	if err != nil {
		return nil, err
	}
	q := repo.Query{AllowArchived: allowArchived}
	if edge.ByParent {
		q.Parent = owner.Base().RefID
	}
	if edge.Filter != nil {
		q.Filter = map[string]any(edge.Filter(owner))
	}
	return g.Find(ctx, q)
}

var removeHooks = map[domain.Kind]func(ctx context.Context, u *uow.UnitOfWork, refID domain.EntityID) error{
	domain.KindHabit: func(ctx context.Context, u *uow.UnitOfWork, refID domain.EntityID) error {
		return u.StreakMarks().RemoveForHabit(ctx, refID)
	},
	domain.KindBigPlan: func(ctx context.Context, u *uow.UnitOfWork, refID domain.EntityID) error {
		return u.BigPlanStats().Remove(ctx, refID)
	},
	domain.KindJournal: func(ctx context.Context, u *uow.UnitOfWork, refID domain.EntityID) error {
		return u.JournalStats().Remove(ctx, refID)
	},
}

// Trunk columns that point at a project generated work defaults to.
var defaultingLinks = []struct {
	kind   domain.Kind
	column string
}{
	{domain.KindMetricCollection, "collection_project_ref_id"},
	{domain.KindPersonCollection, "catch_up_project_ref_id"},
	{domain.KindWorkingMemCollection, "cleanup_project_ref_id"},
	{domain.KindTimePlanDomain, "planning_task_project_ref_id"},
	{domain.KindJournalCollection, "writing_task_project_ref_id"},
	{domain.KindSlackTaskCollection, "generation_project_ref_id"},
	{domain.KindEmailTaskCollection, "generation_project_ref_id"},
}

func checkNotDefaulting(ctx context.Context, u *uow.UnitOfWork, p *domain.Project) error {
	coll, err := uow.For[*domain.ProjectCollection](u).LoadByID(ctx, p.ProjectCollectionRefID, true)
	if err != nil {
		return err
	}
	ws, err := uow.For[*domain.Workspace](u).LoadByID(ctx, coll.WorkspaceRefID, true)
	if err != nil {
		return err
	}
	if ws.DefaultProjectRefID == p.RefID {
		return domain.Invalid("archived", "project %q is the workspace default", p.Name)
	}
	for _, l := range defaultingLinks {
		g, err := u.GetFor(l.kind)
		if err != nil {
			return err
		}
		found, err := g.Find(ctx, repo.Query{AllowArchived: true, Filter: map[string]any{l.column: int64(p.RefID)}})
		if err != nil {
			return err
		}
		if len(found) > 0 {
			return domain.Invalid("archived", "project %q is the default project of %s", p.Name, l.kind)
		}
	}
	return nil
}
