package domain

import "time"

type BigPlan struct {
	EntityBase
	BigPlanCollectionRefID EntityID      `json:"big_plan_collection_ref_id"`
	ProjectRefID           EntityID      `json:"project_ref_id"`
	Name                   string        `json:"name"`
	Status                 BigPlanStatus `json:"status"`
	ActionableDate         ADate         `json:"actionable_date"`
	DueDate                ADate         `json:"due_date"`
	WorkingTime            *time.Time    `json:"working_time,omitempty"`
	CompletedTime          *time.Time    `json:"completed_time,omitempty"`
}

func (*BigPlan) Kind() Kind              { return KindBigPlan }
func (b *BigPlan) ParentRefID() EntityID { return b.BigPlanCollectionRefID }
func (b *BigPlan) DisplayName() string   { return b.Name }

func (b *BigPlan) Links() Links {
	return Links{"project_ref_id": optionalRef(b.ProjectRefID), "status": string(b.Status)}
}

func NewBigPlan(ctx Ctx, collection, project EntityID, name string, status BigPlanStatus, actionable, due ADate) (*BigPlan, error) {
	if err := validateName("name", name); err != nil {
		return nil, err
	}
	if status == "" {
		status = BigPlanNotStarted
	}
	if err := status.Validate(); err != nil {
		return nil, err
	}
	if !actionable.IsZero() && !due.IsZero() && actionable.After(due) {
		return nil, Invalid("actionable_date", "must not be after the due date")
	}
	b := &BigPlan{
		EntityBase:             newBase(ctx),
		BigPlanCollectionRefID: collection,
		ProjectRefID:           project,
		Name:                   name,
		Status:                 status,
		ActionableDate:         actionable,
		DueDate:                due,
	}
	b.trackStatusTimes(ctx, BigPlanNotStarted)
	return b, nil
}

type BigPlanUpdate struct {
	Name           *string
	Status         *BigPlanStatus
	ActionableDate *ADate
	DueDate        *ADate
}

func (b *BigPlan) Update(ctx Ctx, u BigPlanUpdate) error {
	name, status, actionable, due := b.Name, b.Status, b.ActionableDate, b.DueDate
	if u.Name != nil {
		name = *u.Name
	}
	if u.Status != nil {
		status = *u.Status
	}
	if u.ActionableDate != nil {
		actionable = *u.ActionableDate
	}
	if u.DueDate != nil {
		due = *u.DueDate
	}
	if err := validateName("name", name); err != nil {
		return err
	}
	if err := status.Validate(); err != nil {
		return err
	}
	if !actionable.IsZero() && !due.IsZero() && actionable.After(due) {
		return Invalid("actionable_date", "must not be after the due date")
	}
	prev := b.Status
	b.Name, b.Status, b.ActionableDate, b.DueDate = name, status, actionable, due
	b.trackStatusTimes(ctx, prev)
	b.record(ctx, "Updated", map[string]any{"status": string(status)})
	return nil
}

func (b *BigPlan) trackStatusTimes(ctx Ctx, prev BigPlanStatus) {
	ts := ctx.Timestamp
	working := b.Status == BigPlanInProgress || b.Status == BigPlanBlocked
	if working && b.WorkingTime == nil {
		b.WorkingTime = &ts
	}
	switch {
	case b.Status.IsCompleted() && !prev.IsCompleted():
		b.CompletedTime = &ts
	case !b.Status.IsCompleted():
		b.CompletedTime = nil
	}
}

func (b *BigPlan) ChangeProject(ctx Ctx, project EntityID) {
	b.ProjectRefID = project
	b.record(ctx, "ChangeProject", map[string]any{"project_ref_id": project})
}
