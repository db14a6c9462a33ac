package engine

import (
	"context"

	"jupiter/internal/domain"
	"jupiter/internal/repo"
	"jupiter/internal/stats"
	"jupiter/internal/uow"
)

type CreateInboxTaskArgs struct {
	Name           string                 `json:"name" validate:"required"`
	Status         domain.InboxTaskStatus `json:"status,omitempty"`
	ProjectRefID   *domain.EntityID       `json:"project_ref_id,omitempty"`
	BigPlanRefID   *domain.EntityID       `json:"big_plan_ref_id,omitempty"`
	Eisen          domain.Eisen           `json:"eisen,omitempty"`
	Difficulty     domain.Difficulty      `json:"difficulty,omitempty"`
	ActionableDate domain.ADate           `json:"actionable_date"`
	DueDate        domain.ADate           `json:"due_date"`
}

// CreateInboxTask adds a user task. Tasks joining a big plan take the plan's project.
func (e Engine) CreateInboxTask(ctx context.Context, id Identity, args CreateInboxTaskArgs) (*domain.InboxTask, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.InboxTask
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureInboxTasks); err != nil {
			return err
		}
		coll, err := trunk[*domain.InboxTaskCollection](ctx, s)
		if err != nil {
			return err
		}
		project, err := e.projectOr(ctx, s, args.ProjectRefID)
		if err != nil {
			return err
		}
		bigPlan := deref(args.BigPlanRefID, domain.BadRefID)
		if bigPlan != domain.BadRefID {
			if err := s.ws.CheckFeature(domain.FeatureBigPlans); err != nil {
				return err
			}
			plan, err := load[*domain.BigPlan](ctx, s, bigPlan, false)
			if err != nil {
				return err
			}
			project = plan.ProjectRefID
		}
		t, err := domain.NewInboxTask(s.ectx, coll.RefID, args.Name,
			orDefault(args.Status, domain.StatusNotStarted), project, bigPlan,
			orDefault(args.Eisen, domain.EisenRegular), orDefault(args.Difficulty, domain.DifficultyEasy),
			args.ActionableDate, args.DueDate)
		if err != nil {
			return err
		}
		out, err = uow.For[*domain.InboxTask](s.u).Create(ctx, t)
		return err
	})
	return out, err
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

type UpdateInboxTaskArgs struct {
	RefID          domain.EntityID         `json:"ref_id" validate:"required"`
	Name           *string                 `json:"name,omitempty"`
	Status         *domain.InboxTaskStatus `json:"status,omitempty"`
	Eisen          *domain.Eisen           `json:"eisen,omitempty"`
	Difficulty     *domain.Difficulty      `json:"difficulty,omitempty"`
	ActionableDate *domain.ADate           `json:"actionable_date,omitempty"`
	DueDate        *domain.ADate           `json:"due_date,omitempty"`
	ProjectRefID   *domain.EntityID        `json:"project_ref_id,omitempty"`
}

// UpdateInboxTask edits a task. Generated tasks only accept status changes. Completing a habit task refreshes
// the habit's streak marks.
func (e Engine) UpdateInboxTask(ctx context.Context, id Identity, args UpdateInboxTaskArgs) (*domain.InboxTask, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.InboxTask
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureInboxTasks); err != nil {
			return err
		}
		t, err := load[*domain.InboxTask](ctx, s, args.RefID, false)
		if err != nil {
			return err
		}
		err = t.Update(s.ectx, domain.InboxTaskUpdate{
			Name:           args.Name,
			Status:         args.Status,
			Eisen:          args.Eisen,
			Difficulty:     args.Difficulty,
			ActionableDate: args.ActionableDate,
			DueDate:        args.DueDate,
		})
		if err != nil {
			return err
		}
		if args.ProjectRefID != nil {
			project, err := e.projectOr(ctx, s, args.ProjectRefID)
			if err != nil {
				return err
			}
			if err := t.ChangeProject(s.ectx, project); err != nil {
				return err
			}
		}
		if out, err = uow.For[*domain.InboxTask](s.u).Save(ctx, t); err != nil {
			return err
		}
		if t.Source == domain.SourceHabit && args.Status != nil {
			return e.refreshStreak(ctx, s, t)
		}
		return nil
	})
	return out, err
}

// refreshStreak rewrites the streak marks around the day of a habit task.
func (e Engine) refreshStreak(ctx context.Context, s scope, t *domain.InboxTask) error {
	habit, err := load[*domain.Habit](ctx, s, t.SourceEntityRefID, true)
	if err != nil {
		return err
	}
	tasks, err := uow.For[*domain.InboxTask](s.u).FindAllGeneric(ctx, repo.Query{
		Parent:        t.InboxTaskCollectionRefID,
		AllowArchived: true,
		Filter: map[string]any{
			"source":               string(domain.SourceHabit),
			"source_entity_ref_id": int64(habit.RefID),
		},
	})
	if err != nil {
		return err
	}
	day := t.RecurringGenRightNow
	if day.IsZero() {
		day = e.today()
	}
	return stats.StreakRecorder{}.Upsert(ctx, s.u, s.ectx, habit, day, tasks)
}

type AssociateBigPlanArgs struct {
	RefID        domain.EntityID  `json:"ref_id" validate:"required"`
	BigPlanRefID *domain.EntityID `json:"big_plan_ref_id,omitempty"`
}

// AssociateInboxTaskWithBigPlan moves a user task into a big plan, or out of it when no plan is named.
func (e Engine) AssociateInboxTaskWithBigPlan(ctx context.Context, id Identity, args AssociateBigPlanArgs) (*domain.InboxTask, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.InboxTask
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureBigPlans); err != nil {
			return err
		}
		t, err := load[*domain.InboxTask](ctx, s, args.RefID, false)
		if err != nil {
			return err
		}
		plan, project := domain.BadRefID, t.ProjectRefID
		if args.BigPlanRefID != nil && *args.BigPlanRefID != domain.BadRefID {
			bp, err := load[*domain.BigPlan](ctx, s, *args.BigPlanRefID, false)
			if err != nil {
				return err
			}
			plan, project = bp.RefID, bp.ProjectRefID
		}
		if err := t.AssociateWithBigPlan(s.ectx, plan, project); err != nil {
			return err
		}
		out, err = uow.For[*domain.InboxTask](s.u).Save(ctx, t)
		return err
	})
	return out, err
}

type TimeBlockArgs struct {
	RefID          domain.EntityID `json:"ref_id" validate:"required"`
	StartDate      domain.ADate    `json:"start_date"`
	StartTimeInDay string          `json:"start_time_in_day" validate:"required"`
	DurationMins   int             `json:"duration_mins" validate:"required,min=1,max=1440"`
}

// BlockInboxTaskTime puts a task on the calendar as an in-day block.
func (e Engine) BlockInboxTaskTime(ctx context.Context, id Identity, args TimeBlockArgs) (*domain.TimeEventInDayBlock, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.TimeEventInDayBlock
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureInboxTasks); err != nil {
			return err
		}
		t, err := load[*domain.InboxTask](ctx, s, args.RefID, false)
		if err != nil {
			return err
		}
		ted, err := trunk[*domain.TimeEventDomain](ctx, s)
		if err != nil {
			return err
		}
		b, err := domain.NewTimeEventInDayBlock(s.ectx, ted.RefID, domain.NamespaceInboxTask, t.RefID,
			args.StartDate, args.StartTimeInDay, args.DurationMins)
		if err != nil {
			return err
		}
		out, err = uow.For[*domain.TimeEventInDayBlock](s.u).Create(ctx, b)
		return err
	})
	return out, err
}
