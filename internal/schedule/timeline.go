package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"jupiter/internal/domain"
)

var (
	dailyRe     = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	weeklyRe    = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)
	monthlyRe   = regexp.MustCompile(`^(\d{4})-(\d{2})$`)
	quarterlyRe = regexp.MustCompile(`^(\d{4})-Q([1-4])$`)
	yearlyRe    = regexp.MustCompile(`^(\d{4})$`)
)

// Bucket is a parsed timeline.
type Bucket struct {
	Period   domain.RecurringTaskPeriod
	FirstDay domain.ADate
	EndDay   domain.ADate
}

// ParseTimeline inverts Timeline.
func ParseTimeline(s string) (Bucket, error) {
	atoi := func(v string) int {
		n, _ := strconv.Atoi(v)
		return n
	}
	bucket := func(p domain.RecurringTaskPeriod, day domain.ADate) (Bucket, error) {
		first, end := Bounds(p, day)
		if Timeline(p, first) != s {
			return Bucket{}, domain.Invalid("timeline", "%q is not canonical", s)
		}
		return Bucket{Period: p, FirstDay: first, EndDay: end}, nil
	}
	switch {
	case dailyRe.MatchString(s):
		m := dailyRe.FindStringSubmatch(s)
		return bucket(domain.PeriodDaily, domain.NewDate(atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3])))
	case weeklyRe.MatchString(s):
		m := weeklyRe.FindStringSubmatch(s)
		year, week := atoi(m[1]), atoi(m[2])
		if week < 1 || week > 53 {
			return Bucket{}, domain.Invalid("timeline", "week %d is out of range", week)
		}
		// January 4th always falls in ISO week 1.
		jan4 := domain.NewDate(year, time.January, 4)
		first, _ := Bounds(domain.PeriodWeekly, jan4)
		return bucket(domain.PeriodWeekly, first.AddDays(7*(week-1)))
	case monthlyRe.MatchString(s):
		m := monthlyRe.FindStringSubmatch(s)
		month := atoi(m[2])
		if month < 1 || month > 12 {
			return Bucket{}, domain.Invalid("timeline", "month %d is out of range", month)
		}
		return bucket(domain.PeriodMonthly, domain.NewDate(atoi(m[1]), time.Month(month), 1))
	case quarterlyRe.MatchString(s):
		m := quarterlyRe.FindStringSubmatch(s)
		return bucket(domain.PeriodQuarterly, domain.NewDate(atoi(m[1]), time.Month((atoi(m[2])-1)*3+1), 1))
	case yearlyRe.MatchString(s):
		return bucket(domain.PeriodYearly, domain.NewDate(atoi(s), time.January, 1))
	}
	return Bucket{}, domain.Invalid("timeline", "unrecognized timeline %q", s)
}

// Window is one actionable/due pair produced by SpreadTasks.
type Window struct {
	ActionableDate domain.ADate
	DueDate        domain.ADate
}

func (w Window) String() string {
	return fmt.Sprintf("(%s, %s)", w.ActionableDate, w.DueDate)
}

// SpreadTasks splits [start, end] into n consecutive windows, larger ones first.
// When n exceeds the number of days the extra windows collapse onto end.
func SpreadTasks(start, end domain.ADate, n int) []Window {
	if n <= 0 {
		return nil
	}
	start, end = start.ToDate(), end.ToDate()
	days := domain.DaysBetween(start, end) + 1
	if days < 1 {
		days = 1
	}
	out := make([]Window, n)
	chunk, extra := days/n, days%n
	for i := 0; i < n; i++ {
		lo := i*chunk + min(i, extra)
		hi := (i+1)*chunk + min(i+1, extra) - 1
		if hi < lo {
			out[i] = Window{ActionableDate: end, DueDate: end}
			continue
		}
		out[i] = Window{ActionableDate: start.AddDays(lo), DueDate: start.AddDays(hi)}
	}
	return out
}

// BirthdayInYear returns the birthday in year. Feb 29 falls back to Feb 28 outside leap years.
func BirthdayInYear(b domain.PersonBirthday, year int) domain.ADate {
	day := b.Day
	if last := daysIn(year, b.Month); day > last {
		day = last
	}
	return domain.NewDate(year, b.Month, day)
}
