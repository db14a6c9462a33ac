package domain

type Vacation struct {
	EntityBase
	VacationCollectionRefID EntityID `json:"vacation_collection_ref_id"`
	Name                    string   `json:"name"`
	StartDate               ADate    `json:"start_date"`
	EndDate                 ADate    `json:"end_date"`
}

func (*Vacation) Kind() Kind              { return KindVacation }
func (v *Vacation) ParentRefID() EntityID { return v.VacationCollectionRefID }
func (v *Vacation) Links() Links          { return nil }
func (v *Vacation) DisplayName() string   { return v.Name }

func validateVacationDates(start, end ADate) error {
	if start.IsZero() || end.IsZero() {
		return Invalid("start_date", "vacations need both a start and an end date")
	}
	if !start.Before(end) {
		return Invalid("end_date", "must be after start_date")
	}
	return nil
}

func NewVacation(ctx Ctx, collection EntityID, name string, start, end ADate) (*Vacation, error) {
	if err := validateName("name", name); err != nil {
		return nil, err
	}
	start, end = start.ToDate(), end.ToDate()
	if err := validateVacationDates(start, end); err != nil {
		return nil, err
	}
	return &Vacation{EntityBase: newBase(ctx), VacationCollectionRefID: collection, Name: name, StartDate: start, EndDate: end}, nil
}

func (v *Vacation) Update(ctx Ctx, name string, start, end ADate) error {
	if err := validateName("name", name); err != nil {
		return err
	}
	start, end = start.ToDate(), end.ToDate()
	if err := validateVacationDates(start, end); err != nil {
		return err
	}
	v.Name, v.StartDate, v.EndDate = name, start, end
	v.record(ctx, "Updated", nil)
	return nil
}

// Overlaps reports whether the vacation shares at least one day with [first, end].
func (v *Vacation) Overlaps(first, end ADate) bool {
	return !v.EndDate.Before(first) && !v.StartDate.After(end)
}

// DurationDays is the number of calendar days the vacation spans.
func (v *Vacation) DurationDays() int {
	return DaysBetween(v.StartDate, v.EndDate) + 1
}
