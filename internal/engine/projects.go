package engine

import (
	"context"
	"fmt"

	"jupiter/internal/domain"
	"jupiter/internal/uow"
)

// project loads a live project of the workspace.
func (e Engine) project(ctx context.Context, s scope, refID domain.EntityID) (*domain.Project, error) {
	if err := s.ws.CheckFeature(domain.FeatureProjects); err != nil && refID != s.ws.DefaultProjectRefID {
		return nil, err
	}
	return load[*domain.Project](ctx, s, refID, false)
}

// projectOr returns refID when set and checked, or the workspace default project.
func (e Engine) projectOr(ctx context.Context, s scope, refID *domain.EntityID) (domain.EntityID, error) {
	if refID == nil || *refID == domain.BadRefID {
		return s.ws.DefaultProjectRefID, nil
	}
	p, err := e.project(ctx, s, *refID)
	if err != nil {
		return domain.BadRefID, err
	}
	return p.RefID, nil
}

type CreateProjectArgs struct {
	Name               string           `json:"name" validate:"required"`
	ParentProjectRefID *domain.EntityID `json:"parent_project_ref_id,omitempty"`
}

// CreateProject adds a project under the given parent, or under the root project.
func (e Engine) CreateProject(ctx context.Context, id Identity, args CreateProjectArgs) (*domain.Project, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.Project
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureProjects); err != nil {
			return err
		}
		coll, err := trunk[*domain.ProjectCollection](ctx, s)
		if err != nil {
			return err
		}
		parent := s.ws.DefaultProjectRefID
		if args.ParentProjectRefID != nil {
			if parent, err = e.projectOr(ctx, s, args.ParentProjectRefID); err != nil {
				return err
			}
		}
		if parent == domain.BadRefID {
			root, err := rootProject(ctx, s, coll.RefID)
			if err != nil {
				return err
			}
			parent = root.RefID
		}
		p, err := domain.NewProject(s.ectx, coll.RefID, parent, args.Name)
		if err != nil {
			return err
		}
		out, err = uow.For[*domain.Project](s.u).Create(ctx, p)
		return err
	})
	return out, err
}

func rootProject(ctx context.Context, s scope, collection domain.EntityID) (*domain.Project, error) {
	all, err := uow.For[*domain.Project](s.u).FindAll(ctx, collection, false)
	if err != nil {
		return nil, err
	}
	for _, p := range all {
		if p.IsRoot() {
			return p, nil
		}
	}
	return nil, fmt.Errorf("root project: %w", domain.ErrEntityNotFound)
}

type UpdateProjectArgs struct {
	RefID              domain.EntityID  `json:"ref_id" validate:"required"`
	Name               *string          `json:"name,omitempty"`
	ParentProjectRefID *domain.EntityID `json:"parent_project_ref_id,omitempty"`
}

// UpdateProject renames a project or moves it under another one. Moves that would create a cycle are refused.
func (e Engine) UpdateProject(ctx context.Context, id Identity, args UpdateProjectArgs) (*domain.Project, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.Project
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		p, err := e.project(ctx, s, args.RefID)
		if err != nil {
			return err
		}
		if args.Name != nil {
			if err := p.Update(s.ectx, *args.Name); err != nil {
				return err
			}
		}
		if args.ParentProjectRefID != nil && *args.ParentProjectRefID != p.ParentProjectRefID {
			if err := e.checkNoCycle(ctx, s, p.RefID, *args.ParentProjectRefID); err != nil {
				return err
			}
			if err := p.ChangeParent(s.ectx, *args.ParentProjectRefID); err != nil {
				return err
			}
		}
		out, err = uow.For[*domain.Project](s.u).Save(ctx, p)
		return err
	})
	return out, err
}

// checkNoCycle fails when parent is moved or one of its descendants.
func (e Engine) checkNoCycle(ctx context.Context, s scope, moved, parent domain.EntityID) error {
	seen := map[domain.EntityID]bool{}
	for cur := parent; cur != domain.BadRefID; {
		if cur == moved {
			return domain.Invalid("parent_project_ref_id", "a project cannot move under itself")
		}
		if seen[cur] {
			return domain.Invalid("parent_project_ref_id", "project tree has a cycle at %d", cur)
		}
		seen[cur] = true
		p, err := e.project(ctx, s, cur)
		if err != nil {
			return err
		}
		cur = p.ParentProjectRefID
	}
	return nil
}
