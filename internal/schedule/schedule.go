// Package schedule maps a period and a day to its recurrence bucket.
package schedule

import (
	"fmt"
	"time"

	"jupiter/internal/domain"
)

// Params is the input of Get.
type Params struct {
	Period              domain.RecurringTaskPeriod
	Name                string
	RightNow            domain.ADate
	SkipRule            string
	ActionableFromDay   int
	ActionableFromMonth int
	DueAtDay            int
	DueAtMonth          int
}

// Schedule is the bucket RightNow falls into for Period.
type Schedule struct {
	Period         domain.RecurringTaskPeriod
	Name           string
	Timeline       string
	Parts          domain.TimelineParts
	FirstDay       domain.ADate
	EndDay         domain.ADate
	ActionableDate domain.ADate
	DueDate        domain.ADate
	FullName       string
	ShouldKeep     bool
}

// FromGenParams builds Params from a source's generation parameters.
func FromGenParams(gp domain.RecurringTaskGenParams, name string, rightNow domain.ADate) Params {
	return Params{
		Period:              gp.Period,
		Name:                name,
		RightNow:            rightNow,
		SkipRule:            gp.SkipRule,
		ActionableFromDay:   gp.ActionableFromDay,
		ActionableFromMonth: gp.ActionableFromMonth,
		DueAtDay:            gp.DueAtDay,
		DueAtMonth:          gp.DueAtMonth,
	}
}

// Get computes the schedule. It fails with an input validation error on out-of-range parameters.
func Get(p Params) (Schedule, error) {
	gp := domain.RecurringTaskGenParams{
		Period:              p.Period,
		Eisen:               domain.EisenRegular,
		Difficulty:          domain.DifficultyEasy,
		ActionableFromDay:   p.ActionableFromDay,
		ActionableFromMonth: p.ActionableFromMonth,
		DueAtDay:            p.DueAtDay,
		DueAtMonth:          p.DueAtMonth,
		SkipRule:            p.SkipRule,
	}
	if err := gp.Validate(); err != nil {
		return Schedule{}, err
	}
	if p.RightNow.IsZero() {
		return Schedule{}, domain.Invalid("right_now", "must be set")
	}
	rule, err := domain.ParseSkipRule(p.Period, p.SkipRule)
	if err != nil {
		return Schedule{}, err
	}
	day := p.RightNow.ToDate()
	first, end := Bounds(p.Period, day)
	parts := partsOf(p.Period, day)
	s := Schedule{
		Period:     p.Period,
		Name:       p.Name,
		Timeline:   Timeline(p.Period, day),
		Parts:      parts,
		FirstDay:   first,
		EndDay:     end,
		DueDate:    end,
		ShouldKeep: rule.Keep(parts),
	}
	s.FullName = fullName(p.Name, p.Period, day, parts)
	if p.ActionableFromDay != 0 || p.ActionableFromMonth != 0 {
		s.ActionableDate = pick(p.Period, first, p.ActionableFromMonth, p.ActionableFromDay, false)
	}
	if p.DueAtDay != 0 || p.DueAtMonth != 0 {
		s.DueDate = pick(p.Period, first, p.DueAtMonth, p.DueAtDay, true)
	}
	if !s.ActionableDate.IsZero() && s.ActionableDate.After(s.DueDate) {
		s.ActionableDate = s.DueDate
	}
	return s, nil
}

// pick selects the day inside the period starting at first. Missing ordinals default to the
// start of the period for actionable dates and to its end for due dates.
func pick(period domain.RecurringTaskPeriod, first domain.ADate, month, day int, due bool) domain.ADate {
	switch period {
	case domain.PeriodDaily:
		return first
	case domain.PeriodWeekly:
		if day == 0 {
			if due {
				return first.AddDays(6)
			}
			return first
		}
		return first.AddDays(day - 1)
	}
	monthsIn := map[domain.RecurringTaskPeriod]int{domain.PeriodMonthly: 1, domain.PeriodQuarterly: 3, domain.PeriodYearly: 12}[period]
	if month == 0 {
		month = 1
		if due {
			month = monthsIn
		}
	}
	start := first.Time().AddDate(0, month-1, 0)
	last := daysIn(start.Year(), start.Month())
	if day == 0 {
		if due {
			day = last
		} else {
			day = 1
		}
	}
	if day > last {
		day = last
	}
	return domain.NewDate(start.Year(), start.Month(), day)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Bounds returns the inclusive first and last day of the bucket containing day.
func Bounds(period domain.RecurringTaskPeriod, day domain.ADate) (domain.ADate, domain.ADate) {
	day = day.ToDate()
	y, m := day.Year(), day.Month()
	switch period {
	case domain.PeriodDaily:
		return day, day
	case domain.PeriodWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		first := day.AddDays(-offset)
		return first, first.AddDays(6)
	case domain.PeriodMonthly:
		return domain.NewDate(y, m, 1), domain.NewDate(y, m, daysIn(y, m))
	case domain.PeriodQuarterly:
		qm := time.Month((int(m)-1)/3*3 + 1)
		return domain.NewDate(y, qm, 1), domain.NewDate(y, qm+2, daysIn(y, qm+2))
	default:
		return domain.NewDate(y, time.January, 1), domain.NewDate(y, time.December, 31)
	}
}

// Timeline renders the canonical bucket name of day for period.
func Timeline(period domain.RecurringTaskPeriod, day domain.ADate) string {
	day = day.ToDate()
	switch period {
	case domain.PeriodDaily:
		return day.String()
	case domain.PeriodWeekly:
		y, w := day.Time().ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	case domain.PeriodMonthly:
		return fmt.Sprintf("%04d-%02d", day.Year(), int(day.Month()))
	case domain.PeriodQuarterly:
		return fmt.Sprintf("%04d-Q%d", day.Year(), (int(day.Month())-1)/3+1)
	default:
		return fmt.Sprintf("%04d", day.Year())
	}
}

func partsOf(period domain.RecurringTaskPeriod, day domain.ADate) domain.TimelineParts {
	switch period {
	case domain.PeriodDaily:
		return domain.TimelineParts{Year: day.Year(), Month: int(day.Month()), Day: day.Day()}
	case domain.PeriodWeekly:
		y, w := day.Time().ISOWeek()
		return domain.TimelineParts{Year: y, Week: w}
	case domain.PeriodMonthly:
		return domain.TimelineParts{Year: day.Year(), Month: int(day.Month())}
	case domain.PeriodQuarterly:
		return domain.TimelineParts{Year: day.Year(), Quarter: (int(day.Month())-1)/3 + 1}
	default:
		return domain.TimelineParts{Year: day.Year()}
	}
}

func fullName(name string, period domain.RecurringTaskPeriod, day domain.ADate, parts domain.TimelineParts) string {
	var suffix string
	switch period {
	case domain.PeriodDaily:
		suffix = day.Time().Format("Jan02")
	case domain.PeriodWeekly:
		suffix = fmt.Sprintf("W%02d", parts.Week)
	case domain.PeriodMonthly:
		suffix = day.Time().Format("Jan")
	case domain.PeriodQuarterly:
		suffix = fmt.Sprintf("Q%d", parts.Quarter)
	default:
		suffix = fmt.Sprintf("%04d", parts.Year)
	}
	if name == "" {
		return suffix
	}
	return domain.TruncateName(name + " " + suffix)
}
