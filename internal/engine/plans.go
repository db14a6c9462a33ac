package engine

import (
	"context"

	"jupiter/internal/domain"
	"jupiter/internal/repo"
	"jupiter/internal/uow"
)

type CreateBigPlanArgs struct {
	Name           string               `json:"name" validate:"required"`
	ProjectRefID   *domain.EntityID     `json:"project_ref_id,omitempty"`
	Status         domain.BigPlanStatus `json:"status,omitempty"`
	ActionableDate domain.ADate         `json:"actionable_date"`
	DueDate        domain.ADate         `json:"due_date"`
}

func (e Engine) CreateBigPlan(ctx context.Context, id Identity, args CreateBigPlanArgs) (*domain.BigPlan, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.BigPlan
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureBigPlans); err != nil {
			return err
		}
		coll, err := trunk[*domain.BigPlanCollection](ctx, s)
		if err != nil {
			return err
		}
		project, err := e.projectOr(ctx, s, args.ProjectRefID)
		if err != nil {
			return err
		}
		b, err := domain.NewBigPlan(s.ectx, coll.RefID, project, args.Name, args.Status, args.ActionableDate, args.DueDate)
		if err != nil {
			return err
		}
		out, err = uow.For[*domain.BigPlan](s.u).Create(ctx, b)
		return err
	})
	return out, err
}

type UpdateBigPlanArgs struct {
	RefID          domain.EntityID       `json:"ref_id" validate:"required"`
	Name           *string               `json:"name,omitempty"`
	Status         *domain.BigPlanStatus `json:"status,omitempty"`
	ActionableDate *domain.ADate         `json:"actionable_date,omitempty"`
	DueDate        *domain.ADate         `json:"due_date,omitempty"`
	ProjectRefID   *domain.EntityID      `json:"project_ref_id,omitempty"`
}

// UpdateBigPlan edits a plan. A project change carries over to the plan's live tasks.
func (e Engine) UpdateBigPlan(ctx context.Context, id Identity, args UpdateBigPlanArgs) (*domain.BigPlan, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.BigPlan
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureBigPlans); err != nil {
			return err
		}
		b, err := load[*domain.BigPlan](ctx, s, args.RefID, false)
		if err != nil {
			return err
		}
		err = b.Update(s.ectx, domain.BigPlanUpdate{
			Name:           args.Name,
			Status:         args.Status,
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
			if project != b.ProjectRefID {
				b.ChangeProject(s.ectx, project)
				if err := e.moveBigPlanTasks(ctx, s, b); err != nil {
					return err
				}
			}
		}
		out, err = uow.For[*domain.BigPlan](s.u).Save(ctx, b)
		return err
	})
	return out, err
}

func (e Engine) moveBigPlanTasks(ctx context.Context, s scope, b *domain.BigPlan) error {
	tasks := uow.For[*domain.InboxTask](s.u)
	found, err := tasks.FindAllGeneric(ctx, repo.Query{Filter: map[string]any{
		"source":               string(domain.SourceBigPlan),
		"source_entity_ref_id": int64(b.RefID),
	}})
	if err != nil {
		return err
	}
	for _, t := range found {
		if err := t.AssociateWithBigPlan(s.ectx, b.RefID, b.ProjectRefID); err != nil {
			return err
		}
		if _, err := tasks.Save(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

type CreateVacationArgs struct {
	Name      string       `json:"name" validate:"required"`
	StartDate domain.ADate `json:"start_date"`
	EndDate   domain.ADate `json:"end_date"`
}

// CreateVacation adds a vacation and the full-days block that shows it on the calendar.
func (e Engine) CreateVacation(ctx context.Context, id Identity, args CreateVacationArgs) (*domain.Vacation, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.Vacation
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureVacations); err != nil {
			return err
		}
		coll, err := trunk[*domain.VacationCollection](ctx, s)
		if err != nil {
			return err
		}
		v, err := domain.NewVacation(s.ectx, coll.RefID, args.Name, args.StartDate, args.EndDate)
		if err != nil {
			return err
		}
		if out, err = uow.For[*domain.Vacation](s.u).Create(ctx, v); err != nil {
			return err
		}
		ted, err := trunk[*domain.TimeEventDomain](ctx, s)
		if err != nil {
			return err
		}
		block, err := domain.NewTimeEventFullDaysBlockForVacation(s.ectx, ted.RefID, out)
		if err != nil {
			return err
		}
		_, err = uow.For[*domain.TimeEventFullDaysBlock](s.u).Create(ctx, block)
		return err
	})
	return out, err
}

type UpdateVacationArgs struct {
	RefID     domain.EntityID `json:"ref_id" validate:"required"`
	Name      *string         `json:"name,omitempty"`
	StartDate *domain.ADate   `json:"start_date,omitempty"`
	EndDate   *domain.ADate   `json:"end_date,omitempty"`
}

// UpdateVacation edits a vacation and moves its calendar block along.
func (e Engine) UpdateVacation(ctx context.Context, id Identity, args UpdateVacationArgs) (*domain.Vacation, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.Vacation
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureVacations); err != nil {
			return err
		}
		v, err := load[*domain.Vacation](ctx, s, args.RefID, false)
		if err != nil {
			return err
		}
		err = v.Update(s.ectx, deref(args.Name, v.Name), deref(args.StartDate, v.StartDate), deref(args.EndDate, v.EndDate))
		if err != nil {
			return err
		}
		if out, err = uow.For[*domain.Vacation](s.u).Save(ctx, v); err != nil {
			return err
		}
		blocks := uow.For[*domain.TimeEventFullDaysBlock](s.u)
		block, err := blocks.FindFirst(ctx, repo.Query{Filter: map[string]any{
			"namespace":            string(domain.NamespaceVacation),
			"source_entity_ref_id": int64(v.RefID),
		}})
		if err != nil {
			return err
		}
		changed, err := block.Update(s.ectx, v.StartDate, v.DurationDays())
		if err != nil || !changed {
			return err
		}
		_, err = blocks.Save(ctx, block)
		return err
	})
	return out, err
}

type CreateMetricArgs struct {
	Name             string                         `json:"name" validate:"required"`
	Icon             string                         `json:"icon,omitempty"`
	CollectionParams *domain.RecurringTaskGenParams `json:"collection_params,omitempty"`
}

func (e Engine) CreateMetric(ctx context.Context, id Identity, args CreateMetricArgs) (*domain.Metric, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.Metric
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureMetrics); err != nil {
			return err
		}
		coll, err := trunk[*domain.MetricCollection](ctx, s)
		if err != nil {
			return err
		}
		m, err := domain.NewMetric(s.ectx, coll.RefID, args.Name, args.Icon, genDefaultsPtr(args.CollectionParams))
		if err != nil {
			return err
		}
		out, err = uow.For[*domain.Metric](s.u).Create(ctx, m)
		return err
	})
	return out, err
}

func genDefaultsPtr(p *domain.RecurringTaskGenParams) *domain.RecurringTaskGenParams {
	if p == nil {
		return nil
	}
	v := withGenDefaults(*p)
	return &v
}

type UpdateMetricArgs struct {
	RefID            domain.EntityID                `json:"ref_id" validate:"required"`
	Name             *string                        `json:"name,omitempty"`
	Icon             *string                        `json:"icon,omitempty"`
	CollectionParams *domain.RecurringTaskGenParams `json:"collection_params,omitempty"`
	// ClearCollectionParams stops collection tasks for the metric.
	ClearCollectionParams bool `json:"clear_collection_params,omitempty"`
}

func (e Engine) UpdateMetric(ctx context.Context, id Identity, args UpdateMetricArgs) (*domain.Metric, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.Metric
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureMetrics); err != nil {
			return err
		}
		m, err := load[*domain.Metric](ctx, s, args.RefID, false)
		if err != nil {
			return err
		}
		params := m.CollectionParams
		if args.CollectionParams != nil {
			params = genDefaultsPtr(args.CollectionParams)
		}
		if args.ClearCollectionParams {
			params = nil
		}
		if err := m.Update(s.ectx, deref(args.Name, m.Name), deref(args.Icon, m.Icon), params); err != nil {
			return err
		}
		out, err = uow.For[*domain.Metric](s.u).Save(ctx, m)
		return err
	})
	return out, err
}

type MetricEntryArgs struct {
	MetricRefID    domain.EntityID `json:"metric_ref_id" validate:"required"`
	CollectionTime domain.ADate    `json:"collection_time"`
	Value          float64         `json:"value"`
	Notes          string          `json:"notes,omitempty"`
}

// CreateMetricEntry records a value. A missing collection time means now.
func (e Engine) CreateMetricEntry(ctx context.Context, id Identity, args MetricEntryArgs) (*domain.MetricEntry, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.MetricEntry
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureMetrics); err != nil {
			return err
		}
		m, err := load[*domain.Metric](ctx, s, args.MetricRefID, false)
		if err != nil {
			return err
		}
		entry, err := domain.NewMetricEntry(s.ectx, m.RefID, args.CollectionTime, args.Value, args.Notes)
		if err != nil {
			return err
		}
		out, err = uow.For[*domain.MetricEntry](s.u).Create(ctx, entry)
		return err
	})
	return out, err
}

type UpdateMetricEntryArgs struct {
	RefID          domain.EntityID `json:"ref_id" validate:"required"`
	CollectionTime domain.ADate    `json:"collection_time"`
	Value          *float64        `json:"value,omitempty"`
	Notes          *string         `json:"notes,omitempty"`
}

func (e Engine) UpdateMetricEntry(ctx context.Context, id Identity, args UpdateMetricEntryArgs) (*domain.MetricEntry, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.MetricEntry
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureMetrics); err != nil {
			return err
		}
		entry, err := load[*domain.MetricEntry](ctx, s, args.RefID, false)
		if err != nil {
			return err
		}
		entry.Update(s.ectx, args.CollectionTime, deref(args.Value, entry.Value), deref(args.Notes, entry.Notes))
		out, err = uow.For[*domain.MetricEntry](s.u).Save(ctx, entry)
		return err
	})
	return out, err
}

type CreatePersonArgs struct {
	Name                          string                         `json:"name" validate:"required"`
	Relationship                  domain.PersonRelationship      `json:"relationship,omitempty"`
	CatchUpParams                 *domain.RecurringTaskGenParams `json:"catch_up_params,omitempty"`
	Birthday                      *domain.PersonBirthday         `json:"birthday,omitempty"`
	PreparationDaysCntForBirthday *int                           `json:"preparation_days_cnt_for_birthday,omitempty"`
}

func (e Engine) CreatePerson(ctx context.Context, id Identity, args CreatePersonArgs) (*domain.Person, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.Person
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeaturePersons); err != nil {
			return err
		}
		coll, err := trunk[*domain.PersonCollection](ctx, s)
		if err != nil {
			return err
		}
		p, err := domain.NewPerson(s.ectx, coll.RefID, args.Name, args.Relationship, genDefaultsPtr(args.CatchUpParams),
			args.Birthday, args.PreparationDaysCntForBirthday)
		if err != nil {
			return err
		}
		out, err = uow.For[*domain.Person](s.u).Create(ctx, p)
		return err
	})
	return out, err
}

type UpdatePersonArgs struct {
	RefID                         domain.EntityID                `json:"ref_id" validate:"required"`
	Name                          *string                        `json:"name,omitempty"`
	Relationship                  *domain.PersonRelationship     `json:"relationship,omitempty"`
	CatchUpParams                 *domain.RecurringTaskGenParams `json:"catch_up_params,omitempty"`
	ClearCatchUpParams            bool                           `json:"clear_catch_up_params,omitempty"`
	Birthday                      *domain.PersonBirthday         `json:"birthday,omitempty"`
	ClearBirthday                 bool                           `json:"clear_birthday,omitempty"`
	PreparationDaysCntForBirthday *int                           `json:"preparation_days_cnt_for_birthday,omitempty"`
}

func (e Engine) UpdatePerson(ctx context.Context, id Identity, args UpdatePersonArgs) (*domain.Person, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.Person
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeaturePersons); err != nil {
			return err
		}
		p, err := load[*domain.Person](ctx, s, args.RefID, false)
		if err != nil {
			return err
		}
		params, birthday := p.CatchUpParams, p.Birthday
		if args.CatchUpParams != nil {
			params = genDefaultsPtr(args.CatchUpParams)
		}
		if args.ClearCatchUpParams {
			params = nil
		}
		if args.Birthday != nil {
			birthday = args.Birthday
		}
		if args.ClearBirthday {
			birthday = nil
		}
		err = p.Update(s.ectx, deref(args.Name, p.Name), deref(args.Relationship, p.Relationship), params, birthday,
			deref(args.PreparationDaysCntForBirthday, p.PreparationDaysCntForBirthday))
		if err != nil {
			return err
		}
		out, err = uow.For[*domain.Person](s.u).Save(ctx, p)
		return err
	})
	return out, err
}
