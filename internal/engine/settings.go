package engine

import (
	"context"

	"jupiter/internal/domain"
	"jupiter/internal/uow"
)

// SettingsView gathers the per-feature generation settings of a workspace.
type SettingsView struct {
	WorkingMem  *domain.WorkingMemCollection `json:"working_mem"`
	TimePlans   *domain.TimePlanDomain       `json:"time_plans"`
	Journals    *domain.JournalCollection    `json:"journals"`
	Metrics     *domain.MetricCollection     `json:"metrics"`
	Persons     *domain.PersonCollection     `json:"persons"`
	SlackTasks  *domain.SlackTaskCollection  `json:"slack_tasks"`
	EmailTasks  *domain.EmailTaskCollection  `json:"email_tasks"`
	ProjectName string                       `json:"default_project_name"`
}

func (e Engine) LoadSettings(ctx context.Context, id Identity, _ struct{}) (SettingsView, error) {
	var out SettingsView
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		var err error
		if out.WorkingMem, err = trunk[*domain.WorkingMemCollection](ctx, s); err != nil {
			return err
		}
		if out.TimePlans, err = trunk[*domain.TimePlanDomain](ctx, s); err != nil {
			return err
		}
		if out.Journals, err = trunk[*domain.JournalCollection](ctx, s); err != nil {
			return err
		}
		if out.Metrics, err = trunk[*domain.MetricCollection](ctx, s); err != nil {
			return err
		}
		if out.Persons, err = trunk[*domain.PersonCollection](ctx, s); err != nil {
			return err
		}
		if out.SlackTasks, err = pushCollection[*domain.SlackTaskCollection](ctx, s); err != nil {
			return err
		}
		if out.EmailTasks, err = pushCollection[*domain.EmailTaskCollection](ctx, s); err != nil {
			return err
		}
		p, err := load[*domain.Project](ctx, s, s.ws.DefaultProjectRefID, true)
		if err != nil {
			return err
		}
		out.ProjectName = p.Name
		return nil
	})
	return out, err
}

type WorkingMemSettingsArgs struct {
	GenerationPeriod    *domain.RecurringTaskPeriod `json:"generation_period,omitempty"`
	CleanupProjectRefID *domain.EntityID            `json:"cleanup_project_ref_id,omitempty"`
}

func (e Engine) UpdateWorkingMemSettings(ctx context.Context, id Identity, args WorkingMemSettingsArgs) (*domain.WorkingMemCollection, error) {
	var out *domain.WorkingMemCollection
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureWorkingMem); err != nil {
			return err
		}
		c, err := trunk[*domain.WorkingMemCollection](ctx, s)
		if err != nil {
			return err
		}
		project, err := e.optionalProject(ctx, s, args.CleanupProjectRefID)
		if err != nil {
			return err
		}
		if err := c.Update(s.ectx, args.GenerationPeriod, project); err != nil {
			return err
		}
		out, err = uow.For[*domain.WorkingMemCollection](s.u).Save(ctx, c)
		return err
	})
	return out, err
}

// optionalProject checks refID when set and passes it through.
func (e Engine) optionalProject(ctx context.Context, s scope, refID *domain.EntityID) (*domain.EntityID, error) {
	if refID == nil {
		return nil, nil
	}
	p, err := e.project(ctx, s, *refID)
	if err != nil {
		return nil, err
	}
	return &p.RefID, nil
}

type PlanSettingsArgs struct {
	Settings     domain.PlanGenSettings `json:"settings"`
	ProjectRefID *domain.EntityID       `json:"project_ref_id,omitempty"`
}

// UpdateTimePlanSettings replaces the generation settings of time plans.
func (e Engine) UpdateTimePlanSettings(ctx context.Context, id Identity, args PlanSettingsArgs) (*domain.TimePlanDomain, error) {
	var out *domain.TimePlanDomain
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureTimePlans); err != nil {
			return err
		}
		d, err := trunk[*domain.TimePlanDomain](ctx, s)
		if err != nil {
			return err
		}
		project, err := e.optionalProject(ctx, s, args.ProjectRefID)
		if err != nil {
			return err
		}
		if err := d.Update(s.ectx, args.Settings, project); err != nil {
			return err
		}
		out, err = uow.For[*domain.TimePlanDomain](s.u).Save(ctx, d)
		return err
	})
	return out, err
}

func (e Engine) UpdateJournalSettings(ctx context.Context, id Identity, args PlanSettingsArgs) (*domain.JournalCollection, error) {
	var out *domain.JournalCollection
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureJournals); err != nil {
			return err
		}
		c, err := trunk[*domain.JournalCollection](ctx, s)
		if err != nil {
			return err
		}
		project, err := e.optionalProject(ctx, s, args.ProjectRefID)
		if err != nil {
			return err
		}
		if err := c.Update(s.ectx, args.Settings, project); err != nil {
			return err
		}
		out, err = uow.For[*domain.JournalCollection](s.u).Save(ctx, c)
		return err
	})
	return out, err
}

// ProjectSettingArgs names the project a collection generates its tasks into.
type ProjectSettingArgs struct {
	ProjectRefID domain.EntityID `json:"project_ref_id" validate:"required"`
}

func (e Engine) ChangeMetricCollectionProject(ctx context.Context, id Identity, args ProjectSettingArgs) (*domain.MetricCollection, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.MetricCollection
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureMetrics); err != nil {
			return err
		}
		c, err := trunk[*domain.MetricCollection](ctx, s)
		if err != nil {
			return err
		}
		p, err := e.project(ctx, s, args.ProjectRefID)
		if err != nil {
			return err
		}
		c.ChangeCollectionProject(s.ectx, p.RefID)
		out, err = uow.For[*domain.MetricCollection](s.u).Save(ctx, c)
		return err
	})
	return out, err
}

func (e Engine) ChangePersonCatchUpProject(ctx context.Context, id Identity, args ProjectSettingArgs) (*domain.PersonCollection, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.PersonCollection
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeaturePersons); err != nil {
			return err
		}
		c, err := trunk[*domain.PersonCollection](ctx, s)
		if err != nil {
			return err
		}
		p, err := e.project(ctx, s, args.ProjectRefID)
		if err != nil {
			return err
		}
		c.ChangeCatchUpProject(s.ectx, p.RefID)
		out, err = uow.For[*domain.PersonCollection](s.u).Save(ctx, c)
		return err
	})
	return out, err
}

func (e Engine) ChangeSlackTaskGenerationProject(ctx context.Context, id Identity, args ProjectSettingArgs) (*domain.SlackTaskCollection, error) {
	return changePushProject[*domain.SlackTaskCollection](ctx, e, id, args, domain.FeatureSlackTasks)
}

func (e Engine) ChangeEmailTaskGenerationProject(ctx context.Context, id Identity, args ProjectSettingArgs) (*domain.EmailTaskCollection, error) {
	return changePushProject[*domain.EmailTaskCollection](ctx, e, id, args, domain.FeatureEmailTasks)
}

type pushSettings interface {
	domain.Entity
	ChangeGenerationProject(ctx domain.Ctx, project domain.EntityID)
}

func changePushProject[T pushSettings](ctx context.Context, e Engine, id Identity, args ProjectSettingArgs, f domain.WorkspaceFeature) (T, error) {
	var out T
	if err := check(args); err != nil {
		return out, err
	}
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(f); err != nil {
			return err
		}
		c, err := pushCollection[T](ctx, s)
		if err != nil {
			return err
		}
		p, err := e.project(ctx, s, args.ProjectRefID)
		if err != nil {
			return err
		}
		c.ChangeGenerationProject(s.ectx, p.RefID)
		out, err = uow.For[T](s.u).Save(ctx, c)
		return err
	})
	return out, err
}
