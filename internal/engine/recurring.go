package engine

import (
	"context"

	"jupiter/internal/domain"
	"jupiter/internal/stats"
	"jupiter/internal/uow"
)

// IDArgs names one entity whose kind the use case already knows.
type IDArgs struct {
	RefID domain.EntityID `json:"ref_id" validate:"required"`
}

type CreateHabitArgs struct {
	Name                 string                        `json:"name" validate:"required"`
	ProjectRefID         *domain.EntityID              `json:"project_ref_id,omitempty"`
	GenParams            domain.RecurringTaskGenParams `json:"gen_params" validate:"required"`
	RepeatsInPeriodCount *int                          `json:"repeats_in_period_count,omitempty"`
	RepeatsStrategy      domain.HabitRepeatsStrategy   `json:"repeats_strategy,omitempty"`
}

func (e Engine) CreateHabit(ctx context.Context, id Identity, args CreateHabitArgs) (*domain.Habit, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.Habit
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureHabits); err != nil {
			return err
		}
		coll, err := trunk[*domain.HabitCollection](ctx, s)
		if err != nil {
			return err
		}
		project, err := e.projectOr(ctx, s, args.ProjectRefID)
		if err != nil {
			return err
		}
		h, err := domain.NewHabit(s.ectx, coll.RefID, project, args.Name, withGenDefaults(args.GenParams),
			args.RepeatsInPeriodCount, args.RepeatsStrategy)
		if err != nil {
			return err
		}
		out, err = uow.For[*domain.Habit](s.u).Create(ctx, h)
		return err
	})
	return out, err
}

func withGenDefaults(p domain.RecurringTaskGenParams) domain.RecurringTaskGenParams {
	p.Eisen = orDefault(p.Eisen, domain.EisenRegular)
	p.Difficulty = orDefault(p.Difficulty, domain.DifficultyEasy)
	return p
}

type UpdateHabitArgs struct {
	RefID                domain.EntityID                `json:"ref_id" validate:"required"`
	Name                 *string                        `json:"name,omitempty"`
	ProjectRefID         *domain.EntityID               `json:"project_ref_id,omitempty"`
	GenParams            *domain.RecurringTaskGenParams `json:"gen_params,omitempty"`
	RepeatsInPeriodCount *int                           `json:"repeats_in_period_count,omitempty"`
	RepeatsStrategy      *domain.HabitRepeatsStrategy   `json:"repeats_strategy,omitempty"`
	// ClearRepeats drops the repeat count. Generation then removes the extra tasks.
	ClearRepeats bool `json:"clear_repeats,omitempty"`
}

func (e Engine) UpdateHabit(ctx context.Context, id Identity, args UpdateHabitArgs) (*domain.Habit, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.Habit
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureHabits); err != nil {
			return err
		}
		h, err := load[*domain.Habit](ctx, s, args.RefID, false)
		if err != nil {
			return err
		}
		repeats := h.RepeatsInPeriodCount
		if args.RepeatsInPeriodCount != nil {
			repeats = args.RepeatsInPeriodCount
		}
		if args.ClearRepeats {
			repeats = nil
		}
		params := h.GenParams
		if args.GenParams != nil {
			params = withGenDefaults(*args.GenParams)
		}
		err = h.Update(s.ectx, deref(args.Name, h.Name), params, repeats, deref(args.RepeatsStrategy, h.RepeatsStrategy))
		if err != nil {
			return err
		}
		if args.ProjectRefID != nil {
			project, err := e.projectOr(ctx, s, args.ProjectRefID)
			if err != nil {
				return err
			}
			h.ChangeProject(s.ectx, project)
		}
		out, err = uow.For[*domain.Habit](s.u).Save(ctx, h)
		return err
	})
	return out, err
}

// SuspendHabit stops generation for a habit until it is unsuspended.
func (e Engine) SuspendHabit(ctx context.Context, id Identity, args IDArgs) (*domain.Habit, error) {
	return e.toggleHabit(ctx, id, args, (*domain.Habit).Suspend)
}

func (e Engine) UnsuspendHabit(ctx context.Context, id Identity, args IDArgs) (*domain.Habit, error) {
	return e.toggleHabit(ctx, id, args, (*domain.Habit).Unsuspend)
}

func (e Engine) toggleHabit(ctx context.Context, id Identity, args IDArgs, fn func(*domain.Habit, domain.Ctx) error) (*domain.Habit, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.Habit
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureHabits); err != nil {
			return err
		}
		h, err := load[*domain.Habit](ctx, s, args.RefID, false)
		if err != nil {
			return err
		}
		if err := fn(h, s.ectx); err != nil {
			return err
		}
		out, err = uow.For[*domain.Habit](s.u).Save(ctx, h)
		return err
	})
	return out, err
}

type StreakRebuildResult struct {
	RefID domain.EntityID `json:"ref_id"`
	Marks int             `json:"marks"`
}

// RebuildHabitStreak recomputes every streak mark of a habit from its tasks.
func (e Engine) RebuildHabitStreak(ctx context.Context, id Identity, args IDArgs) (StreakRebuildResult, error) {
	if err := check(args); err != nil {
		return StreakRebuildResult{}, err
	}
	out := StreakRebuildResult{RefID: args.RefID}
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureHabits); err != nil {
			return err
		}
		h, err := load[*domain.Habit](ctx, s, args.RefID, true)
		if err != nil {
			return err
		}
		out.Marks, err = stats.StreakRecorder{}.Rebuild(ctx, s.u, s.ectx, h)
		return err
	})
	return out, err
}

type StreakView struct {
	Marks []domain.HabitStreakMark `json:"marks"`
}

type StreakArgs struct {
	RefID domain.EntityID `json:"ref_id" validate:"required"`
	Start domain.ADate    `json:"start"`
	End   domain.ADate    `json:"end"`
}

// HabitStreak lists the streak marks of a habit between two days, the last 30 by default.
func (e Engine) HabitStreak(ctx context.Context, id Identity, args StreakArgs) (StreakView, error) {
	if err := check(args); err != nil {
		return StreakView{}, err
	}
	end := args.End
	if end.IsZero() {
		end = e.today()
	}
	start := args.Start
	if start.IsZero() {
		start = end.AddDays(-29)
	}
	out := StreakView{Marks: []domain.HabitStreakMark{}}
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureHabits); err != nil {
			return err
		}
		h, err := load[*domain.Habit](ctx, s, args.RefID, true)
		if err != nil {
			return err
		}
		marks, err := s.u.StreakMarks().FindForHabit(ctx, h.RefID, start, end)
		if err != nil {
			return err
		}
		out.Marks = append(out.Marks, marks...)
		return nil
	})
	return out, err
}

type CreateChoreArgs struct {
	Name         string                        `json:"name" validate:"required"`
	ProjectRefID *domain.EntityID              `json:"project_ref_id,omitempty"`
	GenParams    domain.RecurringTaskGenParams `json:"gen_params" validate:"required"`
	MustDo       bool                          `json:"must_do,omitempty"`
	StartAtDate  domain.ADate                  `json:"start_at_date"`
	EndAtDate    domain.ADate                  `json:"end_at_date"`
}

func (e Engine) CreateChore(ctx context.Context, id Identity, args CreateChoreArgs) (*domain.Chore, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.Chore
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureChores); err != nil {
			return err
		}
		coll, err := trunk[*domain.ChoreCollection](ctx, s)
		if err != nil {
			return err
		}
		project, err := e.projectOr(ctx, s, args.ProjectRefID)
		if err != nil {
			return err
		}
		c, err := domain.NewChore(s.ectx, coll.RefID, project, args.Name, withGenDefaults(args.GenParams),
			args.MustDo, args.StartAtDate, args.EndAtDate)
		if err != nil {
			return err
		}
		out, err = uow.For[*domain.Chore](s.u).Create(ctx, c)
		return err
	})
	return out, err
}

type UpdateChoreArgs struct {
	RefID        domain.EntityID                `json:"ref_id" validate:"required"`
	Name         *string                        `json:"name,omitempty"`
	ProjectRefID *domain.EntityID               `json:"project_ref_id,omitempty"`
	GenParams    *domain.RecurringTaskGenParams `json:"gen_params,omitempty"`
	MustDo       *bool                          `json:"must_do,omitempty"`
	StartAtDate  *domain.ADate                  `json:"start_at_date,omitempty"`
	EndAtDate    *domain.ADate                  `json:"end_at_date,omitempty"`
	Suspended    *bool                          `json:"suspended,omitempty"`
}

func (e Engine) UpdateChore(ctx context.Context, id Identity, args UpdateChoreArgs) (*domain.Chore, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.Chore
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureChores); err != nil {
			return err
		}
		c, err := load[*domain.Chore](ctx, s, args.RefID, false)
		if err != nil {
			return err
		}
		if args.GenParams != nil {
			p := withGenDefaults(*args.GenParams)
			args.GenParams = &p
		}
		err = c.Update(s.ectx, domain.ChoreUpdate{
			Name:        args.Name,
			GenParams:   args.GenParams,
			MustDo:      args.MustDo,
			StartAtDate: args.StartAtDate,
			EndAtDate:   args.EndAtDate,
		})
		if err != nil {
			return err
		}
		if args.ProjectRefID != nil {
			project, err := e.projectOr(ctx, s, args.ProjectRefID)
			if err != nil {
				return err
			}
			c.ChangeProject(s.ectx, project)
		}
		if args.Suspended != nil && *args.Suspended != c.Suspended {
			toggle := c.Unsuspend
			if *args.Suspended {
				toggle = c.Suspend
			}
			if err := toggle(s.ectx); err != nil {
				return err
			}
		}
		out, err = uow.For[*domain.Chore](s.u).Save(ctx, c)
		return err
	})
	return out, err
}
