package domain

import (
	"fmt"
	"time"
)

const (
	// MaxInDayDurationMins caps an in-day block at one day.
	MaxInDayDurationMins = 24 * 60
	maxFullDaysDuration  = 366 * 5
)

// ParseTimeInDay validates "HH:MM".
func ParseTimeInDay(s string) (string, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return "", Invalid("start_time_in_day", "expected HH:MM, got %q", s)
	}
	return t.Format("15:04"), nil
}

// TimeInDayOf formats the wall clock of t as "HH:MM".
func TimeInDayOf(t time.Time) string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

type TimeEventInDayBlock struct {
	EntityBase
	TimeEventDomainRefID EntityID           `json:"time_event_domain_ref_id"`
	Namespace            TimeEventNamespace `json:"namespace"`
	SourceEntityRefID    EntityID           `json:"source_entity_ref_id"`
	StartDate            ADate              `json:"start_date"`
	StartTimeInDay       string             `json:"start_time_in_day"`
	DurationMins         int                `json:"duration_mins"`
}

func (*TimeEventInDayBlock) Kind() Kind              { return KindTimeEventInDayBlock }
func (b *TimeEventInDayBlock) ParentRefID() EntityID { return b.TimeEventDomainRefID }

func (b *TimeEventInDayBlock) Links() Links {
	return Links{"namespace": string(b.Namespace), "source_entity_ref_id": optionalRef(b.SourceEntityRefID)}
}

func validateInDay(start ADate, timeInDay string, duration int) (string, error) {
	if start.IsZero() {
		return "", Invalid("start_date", "must be set")
	}
	t, err := ParseTimeInDay(timeInDay)
	if err != nil {
		return "", err
	}
	if duration < 1 || duration > MaxInDayDurationMins {
		return "", Invalid("duration_mins", "%d is out of range", duration)
	}
	return t, nil
}

func NewTimeEventInDayBlock(ctx Ctx, domain EntityID, ns TimeEventNamespace, source EntityID,
	start ADate, timeInDay string, duration int) (*TimeEventInDayBlock, error) {
	if ns != NamespaceScheduleEventInDay && ns != NamespaceInboxTask {
		return nil, Invalid("namespace", "%s does not use in-day blocks", ns)
	}
	t, err := validateInDay(start, timeInDay, duration)
	if err != nil {
		return nil, err
	}
	return &TimeEventInDayBlock{
		EntityBase:           newBase(ctx),
		TimeEventDomainRefID: domain,
		Namespace:            ns,
		SourceEntityRefID:    source,
		StartDate:            start.ToDate(),
		StartTimeInDay:       t,
		DurationMins:         duration,
	}, nil
}

// Update moves the block. It reports whether anything changed.
func (b *TimeEventInDayBlock) Update(ctx Ctx, start ADate, timeInDay string, duration int) (bool, error) {
	t, err := validateInDay(start, timeInDay, duration)
	if err != nil {
		return false, err
	}
	start = start.ToDate()
	if b.StartDate.Equal(start) && b.StartTimeInDay == t && b.DurationMins == duration {
		return false, nil
	}
	b.StartDate, b.StartTimeInDay, b.DurationMins = start, t, duration
	b.record(ctx, "Updated", nil)
	return true, nil
}

type TimeEventFullDaysBlock struct {
	EntityBase
	TimeEventDomainRefID EntityID           `json:"time_event_domain_ref_id"`
	Namespace            TimeEventNamespace `json:"namespace"`
	SourceEntityRefID    EntityID           `json:"source_entity_ref_id"`
	StartDate            ADate              `json:"start_date"`
	DurationDays         int                `json:"duration_days"`
	EndDate              ADate              `json:"end_date"`
}

func (*TimeEventFullDaysBlock) Kind() Kind              { return KindTimeEventFullDaysBlock }
func (b *TimeEventFullDaysBlock) ParentRefID() EntityID { return b.TimeEventDomainRefID }

func (b *TimeEventFullDaysBlock) Links() Links {
	return Links{
		"namespace":            string(b.Namespace),
		"source_entity_ref_id": optionalRef(b.SourceEntityRefID),
		"start_date":           optionalDate(b.StartDate),
	}
}

func validateFullDays(start ADate, duration int) error {
	if start.IsZero() {
		return Invalid("start_date", "must be set")
	}
	if duration < 1 || duration > maxFullDaysDuration {
		return Invalid("duration_days", "%d is out of range", duration)
	}
	return nil
}

func NewTimeEventFullDaysBlock(ctx Ctx, domain EntityID, ns TimeEventNamespace, source EntityID, start ADate, duration int) (*TimeEventFullDaysBlock, error) {
	switch ns {
	case NamespaceScheduleFullDaysBlock, NamespacePersonBirthday, NamespaceVacation:
	default:
		return nil, Invalid("namespace", "%s does not use full-days blocks", ns)
	}
	if err := validateFullDays(start, duration); err != nil {
		return nil, err
	}
	start = start.ToDate()
	return &TimeEventFullDaysBlock{
		EntityBase:           newBase(ctx),
		TimeEventDomainRefID: domain,
		Namespace:            ns,
		SourceEntityRefID:    source,
		StartDate:            start,
		DurationDays:         duration,
		EndDate:              start.AddDays(duration - 1),
	}, nil
}

// NewTimeEventFullDaysBlockForVacation covers every day of v.
func NewTimeEventFullDaysBlockForVacation(ctx Ctx, domain EntityID, v *Vacation) (*TimeEventFullDaysBlock, error) {
	return NewTimeEventFullDaysBlock(ctx, domain, NamespaceVacation, v.RefID, v.StartDate, v.DurationDays())
}

// NewTimeEventFullDaysBlockForBirthday covers the single birthday day.
func NewTimeEventFullDaysBlockForBirthday(ctx Ctx, domain, person EntityID, day ADate) (*TimeEventFullDaysBlock, error) {
	return NewTimeEventFullDaysBlock(ctx, domain, NamespacePersonBirthday, person, day, 1)
}

// Update moves the block. It reports whether anything changed.
func (b *TimeEventFullDaysBlock) Update(ctx Ctx, start ADate, duration int) (bool, error) {
	if err := validateFullDays(start, duration); err != nil {
		return false, err
	}
	start = start.ToDate()
	if b.StartDate.Equal(start) && b.DurationDays == duration {
		return false, nil
	}
	b.StartDate, b.DurationDays, b.EndDate = start, duration, start.AddDays(duration-1)
	b.record(ctx, "Updated", nil)
	return true, nil
}
