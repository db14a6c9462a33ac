package domain

import (
	"encoding/json"
	"time"
)

const dateLayout = "2006-01-02"

// ADate is either a calendar date or an instant. The zero value means unset.
type ADate struct {
	t       time.Time
	hasTime bool
}

// NewDate returns the calendar date y-m-d.
func NewDate(y int, m time.Month, d int) ADate {
	return ADate{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the time of day of t, in t's own location.
func DateOf(t time.Time) ADate {
	if t.IsZero() {
		return ADate{}
	}
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// NewInstant returns an instant-typed ADate.
func NewInstant(t time.Time) ADate {
	if t.IsZero() {
		return ADate{}
	}
	return ADate{t: t.UTC(), hasTime: true}
}

func (a ADate) IsZero() bool { return a.t.IsZero() }

// IsDate reports whether a carries only a calendar date.
func (a ADate) IsDate() bool { return !a.IsZero() && !a.hasTime }

// Time returns the instant, or UTC midnight for dates.
func (a ADate) Time() time.Time { return a.t }

// ToDate converts instants to their UTC calendar date.
func (a ADate) ToDate() ADate {
	if a.IsZero() {
		return a
	}
	return DateOf(a.t)
}

func (a ADate) Year() int         { return a.t.Year() }
func (a ADate) Month() time.Month { return a.t.Month() }
func (a ADate) Day() int          { return a.t.Day() }

func (a ADate) Weekday() time.Weekday { return a.t.Weekday() }

func (a ADate) AddDays(n int) ADate {
	if a.IsZero() {
		return a
	}
	return ADate{t: a.t.AddDate(0, 0, n), hasTime: a.hasTime}
}

func (a ADate) Before(b ADate) bool { return a.t.Before(b.t) }
func (a ADate) After(b ADate) bool  { return a.t.After(b.t) }
func (a ADate) Equal(b ADate) bool  { return a.t.Equal(b.t) && a.hasTime == b.hasTime }

// Compare orders by instant.
func (a ADate) Compare(b ADate) int { return a.t.Compare(b.t) }

// DaysBetween returns the number of whole days from a to b.
func DaysBetween(a, b ADate) int {
	return int(b.ToDate().t.Sub(a.ToDate().t).Hours() / 24)
}

// MinDate returns the earlier of a and b.
func MinDate(a, b ADate) ADate {
	if b.Before(a) {
		return b
	}
	return a
}

// MaxDate returns the later of a and b.
func MaxDate(a, b ADate) ADate {
	if b.After(a) {
		return b
	}
	return a
}

func (a ADate) String() string {
	switch {
	case a.IsZero():
		return ""
	case a.hasTime:
		return a.t.Format(time.RFC3339)
	default:
		return a.t.Format(dateLayout)
	}
}

// ParseADate accepts YYYY-MM-DD dates and RFC3339 instants.
func ParseADate(s string) (ADate, error) {
	if s == "" {
		return ADate{}, nil
	}
	if len(s) == len(dateLayout) {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return ADate{}, Invalid("date", "invalid date %q", s)
		}
		return DateOf(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return ADate{}, Invalid("date", "invalid timestamp %q", s)
	}
	return NewInstant(t), nil
}

// MustParseDate is ParseADate for literals known to be valid.
func MustParseDate(s string) ADate {
	a, err := ParseADate(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a ADate) MarshalJSON() ([]byte, error) {
	if a.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(a.String())
}

func (a *ADate) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = ADate{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseADate(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
