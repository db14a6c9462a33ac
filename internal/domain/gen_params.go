package domain

import (
	"strconv"
	"strings"
)

// RecurringTaskGenParams describes how a recurring source turns into inbox tasks.
type RecurringTaskGenParams struct {
	Period              RecurringTaskPeriod `json:"period"`
	Eisen               Eisen               `json:"eisen"`
	Difficulty          Difficulty          `json:"difficulty"`
	ActionableFromDay   int                 `json:"actionable_from_day,omitempty"`
	ActionableFromMonth int                 `json:"actionable_from_month,omitempty"`
	DueAtDay            int                 `json:"due_at_day,omitempty"`
	DueAtMonth          int                 `json:"due_at_month,omitempty"`
	SkipRule            string              `json:"skip_rule,omitempty"`
}

func (p RecurringTaskGenParams) Validate() error {
	if err := p.Period.Validate(); err != nil {
		return err
	}
	if err := p.Eisen.Validate(); err != nil {
		return err
	}
	if err := p.Difficulty.Validate(); err != nil {
		return err
	}
	maxDay, maxMonth := 0, 0
	switch p.Period {
	case PeriodWeekly:
		maxDay = 7
	case PeriodMonthly:
		maxDay = 31
	case PeriodQuarterly:
		maxDay, maxMonth = 31, 3
	case PeriodYearly:
		maxDay, maxMonth = 31, 12
	}
	for field, v := range map[string]int{"actionable_from_day": p.ActionableFromDay, "due_at_day": p.DueAtDay} {
		if v < 0 || v > maxDay {
			return Invalid(field, "%d is out of range for a %s period", v, p.Period)
		}
	}
	for field, v := range map[string]int{"actionable_from_month": p.ActionableFromMonth, "due_at_month": p.DueAtMonth} {
		if v < 0 || v > maxMonth {
			return Invalid(field, "%d is out of range for a %s period", v, p.Period)
		}
	}
	if p.ActionableFromMonth != 0 && p.DueAtMonth != 0 && p.ActionableFromMonth > p.DueAtMonth {
		return Invalid("actionable_from_month", "must not be after due_at_month")
	}
	if p.ActionableFromMonth == p.DueAtMonth && p.ActionableFromDay != 0 && p.DueAtDay != 0 && p.ActionableFromDay > p.DueAtDay {
		return Invalid("actionable_from_day", "must not be after due_at_day")
	}
	if _, err := ParseSkipRule(p.Period, p.SkipRule); err != nil {
		return err
	}
	return nil
}

// TimelineParts are the ordinals a timeline string carries. Absent parts are zero.
type TimelineParts struct {
	Year    int
	Quarter int
	Month   int
	Week    int
	Day     int
}

type skipUnit string

const (
	unitDay     skipUnit = "day"
	unitWeek    skipUnit = "week"
	unitMonth   skipUnit = "month"
	unitQuarter skipUnit = "quarter"
	unitYear    skipUnit = "year"
)

func ownUnit(p RecurringTaskPeriod) skipUnit {
	switch p {
	case PeriodDaily:
		return unitDay
	case PeriodWeekly:
		return unitWeek
	case PeriodMonthly:
		return unitMonth
	case PeriodQuarterly:
		return unitQuarter
	default:
		return unitYear
	}
}

func unitsOf(p RecurringTaskPeriod) []skipUnit {
	switch p {
	case PeriodDaily:
		return []skipUnit{unitYear, unitMonth, unitDay}
	case PeriodWeekly:
		return []skipUnit{unitYear, unitWeek}
	case PeriodMonthly:
		return []skipUnit{unitYear, unitMonth}
	case PeriodQuarterly:
		return []skipUnit{unitYear, unitQuarter}
	default:
		return []skipUnit{unitYear}
	}
}

func (u skipUnit) of(parts TimelineParts) int {
	switch u {
	case unitDay:
		return parts.Day
	case unitWeek:
		return parts.Week
	case unitMonth:
		return parts.Month
	case unitQuarter:
		return parts.Quarter
	default:
		return parts.Year
	}
}

// SkipRule is a parsed skip rule. The zero value keeps every bucket.
type SkipRule struct {
	unit   skipUnit
	parity int // 0 none, 1 keep odd, 2 keep even
	keep   map[int]bool
}

// ParseSkipRule parses rules like "even-weeks", "every-other-week", "odd" or "months:1,4,7,10".
func ParseSkipRule(period RecurringTaskPeriod, raw string) (SkipRule, error) {
	rule := strings.ToLower(strings.TrimSpace(raw))
	if rule == "" || rule == "none" {
		return SkipRule{}, nil
	}
	allowed := func(u skipUnit) bool {
		for _, x := range unitsOf(period) {
			if x == u {
				return true
			}
		}
		return false
	}
	bad := func(reason string) (SkipRule, error) {
		return SkipRule{}, Invalid("skip_rule", "%q %s", raw, reason)
	}
	switch {
	case rule == "even" || rule == "odd":
		r := SkipRule{unit: ownUnit(period), parity: 1}
		if rule == "even" {
			r.parity = 2
		}
		return r, nil
	case strings.HasPrefix(rule, "every-other-"):
		u := skipUnit(strings.TrimPrefix(rule, "every-other-"))
		if !allowed(u) {
			return bad("is not applicable to a " + string(period) + " period")
		}
		return SkipRule{unit: u, parity: 2}, nil
	case strings.HasPrefix(rule, "even-") || strings.HasPrefix(rule, "odd-"):
		parts := strings.SplitN(rule, "-", 2)
		u := skipUnit(strings.TrimSuffix(parts[1], "s"))
		if !allowed(u) {
			return bad("is not applicable to a " + string(period) + " period")
		}
		r := SkipRule{unit: u, parity: 1}
		if parts[0] == "even" {
			r.parity = 2
		}
		return r, nil
	case strings.Contains(rule, ":"):
		parts := strings.SplitN(rule, ":", 2)
		u := skipUnit(strings.TrimSuffix(parts[0], "s"))
		if !allowed(u) {
			return bad("is not applicable to a " + string(period) + " period")
		}
		r := SkipRule{unit: u, keep: map[int]bool{}}
		for _, item := range strings.Split(parts[1], ",") {
			n, err := strconv.Atoi(strings.TrimSpace(item))
			if err != nil || n <= 0 {
				return bad("has a bad ordinal list")
			}
			r.keep[n] = true
		}
		if len(r.keep) == 0 {
			return bad("has an empty ordinal list")
		}
		return r, nil
	}
	return bad("is not a known skip rule")
}

// Keep reports whether the bucket described by parts survives the rule.
func (r SkipRule) Keep(parts TimelineParts) bool {
	if r.unit == "" {
		return true
	}
	v := r.unit.of(parts)
	switch {
	case r.keep != nil:
		return r.keep[v]
	case r.parity == 2:
		return v%2 == 0
	case r.parity == 1:
		return v%2 == 1
	}
	return true
}
