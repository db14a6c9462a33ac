package domain

// HabitRepeatsStrategy says how the repeats of a habit are laid out inside one period.
type HabitRepeatsStrategy string

const (
	RepeatsAllSameDay         HabitRepeatsStrategy = "all-same-day"
	RepeatsSpreadOutNoOverlap HabitRepeatsStrategy = "spread-out-no-overlap"
)

func (s HabitRepeatsStrategy) Validate() error {
	switch s {
	case RepeatsAllSameDay, RepeatsSpreadOutNoOverlap:
		return nil
	}
	return Invalid("repeats_strategy", "unknown strategy %q", string(s))
}

type Habit struct {
	EntityBase
	HabitCollectionRefID EntityID               `json:"habit_collection_ref_id"`
	ProjectRefID         EntityID               `json:"project_ref_id"`
	Name                 string                 `json:"name"`
	GenParams            RecurringTaskGenParams `json:"gen_params"`
	Suspended            bool                   `json:"suspended"`
	RepeatsStrategy      HabitRepeatsStrategy   `json:"repeats_strategy,omitempty"`
	RepeatsInPeriodCount *int                   `json:"repeats_in_period_count,omitempty"`
}

func (*Habit) Kind() Kind              { return KindHabit }
func (h *Habit) ParentRefID() EntityID { return h.HabitCollectionRefID }
func (h *Habit) DisplayName() string   { return h.Name }

func (h *Habit) Links() Links {
	return Links{"project_ref_id": optionalRef(h.ProjectRefID)}
}

func validateRepeats(count *int, strategy HabitRepeatsStrategy) error {
	if count == nil {
		return nil
	}
	if *count < 1 || *count > 31 {
		return Invalid("repeats_in_period_count", "%d is out of range", *count)
	}
	if *count > 1 {
		return strategy.Validate()
	}
	return nil
}

func NewHabit(ctx Ctx, collection, project EntityID, name string, params RecurringTaskGenParams,
	repeats *int, strategy HabitRepeatsStrategy) (*Habit, error) {
	if err := validateName("name", name); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if repeats != nil && *repeats > 1 && strategy == "" {
		strategy = RepeatsSpreadOutNoOverlap
	}
	if err := validateRepeats(repeats, strategy); err != nil {
		return nil, err
	}
	return &Habit{
		EntityBase:           newBase(ctx),
		HabitCollectionRefID: collection,
		ProjectRefID:         project,
		Name:                 name,
		GenParams:            params,
		RepeatsStrategy:      strategy,
		RepeatsInPeriodCount: repeats,
	}, nil
}

// RepeatCount is the number of tasks per period, at least one.
func (h *Habit) RepeatCount() int {
	if h.RepeatsInPeriodCount == nil || *h.RepeatsInPeriodCount < 1 {
		return 1
	}
	return *h.RepeatsInPeriodCount
}

// HasRepeats reports whether tasks are partitioned by repeat index.
func (h *Habit) HasRepeats() bool { return h.RepeatsInPeriodCount != nil && *h.RepeatsInPeriodCount > 1 }

func (h *Habit) Update(ctx Ctx, name string, params RecurringTaskGenParams, repeats *int, strategy HabitRepeatsStrategy) error {
	if err := validateName("name", name); err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if repeats != nil && *repeats > 1 && strategy == "" {
		strategy = RepeatsSpreadOutNoOverlap
	}
	if err := validateRepeats(repeats, strategy); err != nil {
		return err
	}
	h.Name, h.GenParams, h.RepeatsInPeriodCount, h.RepeatsStrategy = name, params, repeats, strategy
	h.record(ctx, "Updated", map[string]any{"period": string(params.Period)})
	return nil
}

func (h *Habit) ChangeProject(ctx Ctx, project EntityID) {
	h.ProjectRefID = project
	h.record(ctx, "ChangeProject", map[string]any{"project_ref_id": project})
}

func (h *Habit) Suspend(ctx Ctx) error {
	if h.Suspended {
		return Invalid("suspended", "habit is already suspended")
	}
	h.Suspended = true
	h.record(ctx, "Suspend", nil)
	return nil
}

func (h *Habit) Unsuspend(ctx Ctx) error {
	if !h.Suspended {
		return Invalid("suspended", "habit is not suspended")
	}
	h.Suspended = false
	h.record(ctx, "Unsuspend", nil)
	return nil
}
