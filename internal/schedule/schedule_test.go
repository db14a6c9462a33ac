package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jupiter/internal/domain"
	"jupiter/internal/schedule"
)

func d(s string) domain.ADate { return domain.MustParseDate(s) }

func TestWeeklyHabitSkippingOddWeeks(t *testing.T) {
	s, err := schedule.Get(schedule.Params{
		Period:   domain.PeriodWeekly,
		Name:     "Run",
		RightNow: d("2024-08-12"),
		SkipRule: "even-weeks",
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-W33", s.Timeline)
	assert.Equal(t, d("2024-08-12"), s.FirstDay)
	assert.Equal(t, d("2024-08-18"), s.EndDay)
	assert.Equal(t, d("2024-08-18"), s.DueDate)
	assert.True(t, s.ActionableDate.IsZero())
	assert.False(t, s.ShouldKeep)
	assert.Equal(t, "Run W33", s.FullName)

	next, err := schedule.Get(schedule.Params{Period: domain.PeriodWeekly, Name: "Run", RightNow: d("2024-08-19"), SkipRule: "even-weeks"})
	require.NoError(t, err)
	assert.Equal(t, "2024-W34", next.Timeline)
	assert.True(t, next.ShouldKeep)
}

func TestTimelines(t *testing.T) {
	cases := []struct {
		period   domain.RecurringTaskPeriod
		day      string
		timeline string
		first    string
		end      string
	}{
		{domain.PeriodDaily, "2024-08-12", "2024-08-12", "2024-08-12", "2024-08-12"},
		{domain.PeriodWeekly, "2024-08-12", "2024-W33", "2024-08-12", "2024-08-18"},
		{domain.PeriodWeekly, "2024-08-18", "2024-W33", "2024-08-12", "2024-08-18"},
		{domain.PeriodWeekly, "2021-01-01", "2020-W53", "2020-12-28", "2021-01-03"},
		{domain.PeriodWeekly, "2024-12-30", "2025-W01", "2024-12-30", "2025-01-05"},
		{domain.PeriodMonthly, "2024-02-10", "2024-02", "2024-02-01", "2024-02-29"},
		{domain.PeriodQuarterly, "2024-08-12", "2024-Q3", "2024-07-01", "2024-09-30"},
		{domain.PeriodQuarterly, "2024-12-31", "2024-Q4", "2024-10-01", "2024-12-31"},
		{domain.PeriodYearly, "2024-08-12", "2024", "2024-01-01", "2024-12-31"},
	}
	for _, tc := range cases {
		t.Run(string(tc.period)+"/"+tc.day, func(t *testing.T) {
			s, err := schedule.Get(schedule.Params{Period: tc.period, Name: "x", RightNow: d(tc.day)})
			require.NoError(t, err)
			assert.Equal(t, tc.timeline, s.Timeline)
			assert.Equal(t, d(tc.first), s.FirstDay)
			assert.Equal(t, d(tc.end), s.EndDay)
			assert.True(t, s.ShouldKeep)
		})
	}
}

func TestActionableAndDueDays(t *testing.T) {
	cases := []struct {
		name       string
		params     schedule.Params
		actionable string
		due        string
	}{
		{
			name:       "weekly days are offsets from monday",
			params:     schedule.Params{Period: domain.PeriodWeekly, ActionableFromDay: 2, DueAtDay: 5},
			actionable: "2024-08-13",
			due:        "2024-08-16",
		},
		{
			name:   "monthly due day clamps to month length",
			params: schedule.Params{Period: domain.PeriodMonthly, DueAtDay: 31, RightNow: d("2024-02-10")},
			due:    "2024-02-29",
		},
		{
			name:       "quarterly months select within the quarter",
			params:     schedule.Params{Period: domain.PeriodQuarterly, ActionableFromMonth: 2, DueAtMonth: 3, DueAtDay: 15},
			actionable: "2024-08-01",
			due:        "2024-09-15",
		},
		{
			name:   "quarterly due day without month lands in the last month",
			params: schedule.Params{Period: domain.PeriodQuarterly, DueAtDay: 10},
			due:    "2024-09-10",
		},
		{
			name:       "yearly actionable month defaults the day to the first",
			params:     schedule.Params{Period: domain.PeriodYearly, ActionableFromMonth: 11, DueAtMonth: 12},
			actionable: "2024-11-01",
			due:        "2024-12-31",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := tc.params
			if p.RightNow.IsZero() {
				p.RightNow = d("2024-08-12")
			}
			s, err := schedule.Get(p)
			require.NoError(t, err)
			if tc.actionable == "" {
				assert.True(t, s.ActionableDate.IsZero())
			} else {
				assert.Equal(t, d(tc.actionable), s.ActionableDate)
			}
			assert.Equal(t, d(tc.due), s.DueDate)
		})
	}
}

func TestOutOfRangeParamsAreRejected(t *testing.T) {
	bad := []schedule.Params{
		{Period: domain.PeriodWeekly, DueAtDay: 8},
		{Period: domain.PeriodMonthly, DueAtDay: 32},
		{Period: domain.PeriodQuarterly, DueAtMonth: 4},
		{Period: domain.PeriodYearly, ActionableFromMonth: 13},
		{Period: domain.PeriodDaily, DueAtDay: 1},
		{Period: domain.PeriodWeekly, ActionableFromDay: 5, DueAtDay: 3},
		{Period: domain.PeriodWeekly, SkipRule: "even-months"},
		{Period: "hourly"},
	}
	for _, p := range bad {
		p.RightNow = d("2024-08-12")
		_, err := schedule.Get(p)
		assert.ErrorIs(t, err, domain.ErrInputValidation, "%+v", p)
	}
}

func TestSkipRules(t *testing.T) {
	cases := []struct {
		period domain.RecurringTaskPeriod
		rule   string
		day    string
		keep   bool
	}{
		{domain.PeriodWeekly, "every-other-week", "2024-08-12", false},
		{domain.PeriodWeekly, "every-other-week", "2024-08-19", true},
		{domain.PeriodWeekly, "odd-weeks", "2024-08-12", true},
		{domain.PeriodMonthly, "even-months", "2024-07-15", false},
		{domain.PeriodMonthly, "even-months", "2024-08-15", true},
		{domain.PeriodMonthly, "months:1,4,7,10", "2024-07-15", true},
		{domain.PeriodMonthly, "months:1,4,7,10", "2024-08-15", false},
		{domain.PeriodDaily, "odd-days", "2024-08-13", true},
		{domain.PeriodDaily, "even", "2024-08-13", false},
		{domain.PeriodQuarterly, "quarters:2", "2024-05-01", true},
		{domain.PeriodYearly, "odd-years", "2024-05-01", false},
		{domain.PeriodWeekly, "none", "2024-08-12", true},
	}
	for _, tc := range cases {
		t.Run(tc.rule+"/"+tc.day, func(t *testing.T) {
			s, err := schedule.Get(schedule.Params{Period: tc.period, RightNow: d(tc.day), SkipRule: tc.rule})
			require.NoError(t, err)
			assert.Equal(t, tc.keep, s.ShouldKeep)
		})
	}
}

func TestSpreadTasks(t *testing.T) {
	got := schedule.SpreadTasks(d("2024-08-12"), d("2024-08-18"), 3)
	assert.Equal(t, []schedule.Window{
		{ActionableDate: d("2024-08-12"), DueDate: d("2024-08-14")},
		{ActionableDate: d("2024-08-15"), DueDate: d("2024-08-16")},
		{ActionableDate: d("2024-08-17"), DueDate: d("2024-08-18")},
	}, got)

	single := schedule.SpreadTasks(d("2024-08-12"), d("2024-08-12"), 3)
	require.Len(t, single, 3)
	assert.Equal(t, d("2024-08-12"), single[0].ActionableDate)
	for _, w := range single {
		assert.Equal(t, d("2024-08-12"), w.DueDate)
	}

	assert.Nil(t, schedule.SpreadTasks(d("2024-08-12"), d("2024-08-18"), 0))
}

func TestSpreadTasksCoversTheRange(t *testing.T) {
	start := d("2024-01-01")
	for days := 1; days <= 40; days++ {
		end := start.AddDays(days - 1)
		for n := 1; n <= 10; n++ {
			ws := schedule.SpreadTasks(start, end, n)
			require.Len(t, ws, n)
			assert.Equal(t, start, ws[0].ActionableDate)
			assert.Equal(t, end, ws[n-1].DueDate)
			for i := 1; i < n; i++ {
				assert.False(t, ws[i].DueDate.Before(ws[i-1].DueDate))
			}
		}
	}
}

func TestTimelineRoundTrip(t *testing.T) {
	day := d("2019-12-20")
	for i := 0; i < 3*366; i++ {
		for _, p := range domain.AllPeriods {
			s, err := schedule.Get(schedule.Params{Period: p, RightNow: day})
			require.NoError(t, err)
			b, err := schedule.ParseTimeline(s.Timeline)
			require.NoError(t, err, s.Timeline)
			require.Equal(t, p, b.Period)
			require.Equal(t, s.FirstDay, b.FirstDay)
			require.Equal(t, s.EndDay, b.EndDay)
			require.False(t, day.Before(b.FirstDay))
			require.False(t, day.After(b.EndDay))
		}
		day = day.AddDays(1)
	}
}

func TestParseTimelineRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "2024-W60", "2024-13", "2024-Q5", "24", "2024-02-30"} {
		_, err := schedule.ParseTimeline(s)
		assert.ErrorIs(t, err, domain.ErrInputValidation, s)
	}
}

func TestBirthdayInYear(t *testing.T) {
	leap := domain.PersonBirthday{Month: time.February, Day: 29}
	assert.Equal(t, d("2024-02-29"), schedule.BirthdayInYear(leap, 2024))
	assert.Equal(t, d("2025-02-28"), schedule.BirthdayInYear(leap, 2025))
	assert.Equal(t, d("2026-03-03"), schedule.BirthdayInYear(domain.PersonBirthday{Month: time.March, Day: 3}, 2026))
}
