package domain

type Chore struct {
	EntityBase
	ChoreCollectionRefID EntityID               `json:"chore_collection_ref_id"`
	ProjectRefID         EntityID               `json:"project_ref_id"`
	Name                 string                 `json:"name"`
	GenParams            RecurringTaskGenParams `json:"gen_params"`
	Suspended            bool                   `json:"suspended"`
	MustDo               bool                   `json:"must_do"`
	StartAtDate          ADate                  `json:"start_at_date"`
	EndAtDate            ADate                  `json:"end_at_date"`
}

func (*Chore) Kind() Kind              { return KindChore }
func (c *Chore) ParentRefID() EntityID { return c.ChoreCollectionRefID }
func (c *Chore) DisplayName() string   { return c.Name }

func (c *Chore) Links() Links {
	return Links{"project_ref_id": optionalRef(c.ProjectRefID)}
}

func validateInterval(start, end ADate) error {
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return Invalid("end_at_date", "must not be before start_at_date")
	}
	return nil
}

// NewChore creates a chore. A zero start date means the chore is active from creation day.
func NewChore(ctx Ctx, collection, project EntityID, name string, params RecurringTaskGenParams,
	mustDo bool, start, end ADate) (*Chore, error) {
	if err := validateName("name", name); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if start.IsZero() {
		start = DateOf(ctx.Timestamp)
	}
	if err := validateInterval(start, end); err != nil {
		return nil, err
	}
	return &Chore{
		EntityBase:           newBase(ctx),
		ChoreCollectionRefID: collection,
		ProjectRefID:         project,
		Name:                 name,
		GenParams:            params,
		MustDo:               mustDo,
		StartAtDate:          start.ToDate(),
		EndAtDate:            end.ToDate(),
	}, nil
}

// ChoreUpdate carries optional edits.
type ChoreUpdate struct {
	Name        *string
	GenParams   *RecurringTaskGenParams
	MustDo      *bool
	StartAtDate *ADate
	EndAtDate   *ADate
}

func (c *Chore) Update(ctx Ctx, u ChoreUpdate) error {
	name, params, mustDo, start, end := c.Name, c.GenParams, c.MustDo, c.StartAtDate, c.EndAtDate
	if u.Name != nil {
		name = *u.Name
	}
	if u.GenParams != nil {
		params = *u.GenParams
	}
	if u.MustDo != nil {
		mustDo = *u.MustDo
	}
	if u.StartAtDate != nil {
		start = *u.StartAtDate
	}
	if u.EndAtDate != nil {
		end = *u.EndAtDate
	}
	if err := validateName("name", name); err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if err := validateInterval(start, end); err != nil {
		return err
	}
	c.Name, c.GenParams, c.MustDo, c.StartAtDate, c.EndAtDate = name, params, mustDo, start.ToDate(), end.ToDate()
	c.record(ctx, "Updated", nil)
	return nil
}

// IsActiveIn reports whether [first, end] intersects the chore's active interval.
func (c *Chore) IsActiveIn(first, end ADate) bool {
	if !c.StartAtDate.IsZero() && end.Before(c.StartAtDate) {
		return false
	}
	if !c.EndAtDate.IsZero() && first.After(c.EndAtDate) {
		return false
	}
	return true
}

func (c *Chore) ChangeProject(ctx Ctx, project EntityID) {
	c.ProjectRefID = project
	c.record(ctx, "ChangeProject", map[string]any{"project_ref_id": project})
}

func (c *Chore) Suspend(ctx Ctx) error {
	if c.Suspended {
		return Invalid("suspended", "chore is already suspended")
	}
	c.Suspended = true
	c.record(ctx, "Suspend", nil)
	return nil
}

func (c *Chore) Unsuspend(ctx Ctx) error {
	if !c.Suspended {
		return Invalid("suspended", "chore is not suspended")
	}
	c.Suspended = false
	c.record(ctx, "Unsuspend", nil)
	return nil
}
