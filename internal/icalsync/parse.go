package icalsync

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"jupiter/internal/domain"
)

const (
	dateLayout     = "20060102"
	dateTimeLayout = "20060102T150405"
	utcLayout      = "20060102T150405Z"
)

// Window is the span of time a sync looks at. End is exclusive.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowFor covers the previous year, the current one and 30 days past its end.
func WindowFor(today domain.ADate) Window {
	y := today.Year()
	return Window{
		Start: time.Date(y-1, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(y+1, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 30),
	}
}

func (w Window) overlaps(start, end time.Time) bool {
	if end.Before(start) {
		end = start
	}
	return start.Before(w.End) && !end.Before(w.Start)
}

// Contains reports whether day falls inside the window.
func (w Window) Contains(day domain.ADate) bool {
	t := day.Time()
	return !t.Before(w.Start) && t.Before(w.End)
}

// Event is one concrete occurrence of a remote calendar event.
type Event struct {
	// UID is the event's own identifier; Key is the stable external uid of the occurrence.
	UID          string
	Key          string
	Name         string
	Description  string
	FullDay      bool
	Start        time.Time
	End          time.Time
	LastModified time.Time
}

// Calendar is a parsed and expanded remote calendar.
type Calendar struct {
	Name   string
	Color  string
	Events []Event
}

type stamp struct {
	t    time.Time
	date bool
}

func (s stamp) key() string {
	if s.date {
		return s.t.Format(dateLayout)
	}
	return s.t.UTC().Format(utcLayout)
}

var unescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

// Parse reads an iCalendar document and expands its events inside w. Events that mix
// date and date-time bounds fail the whole calendar.
func Parse(body []byte, w Window) (Calendar, error) {
	cal, err := ics.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return Calendar{}, fmt.Errorf("%w: %v", domain.ErrExternalParse, err)
	}
	var out Calendar
	for _, p := range cal.CalendarProperties {
		switch strings.ToUpper(p.IANAToken) {
		case "X-WR-CALNAME":
			out.Name = strings.TrimSpace(unescaper.Replace(p.Value))
		case "COLOR", "X-APPLE-CALENDAR-COLOR":
			out.Color = strings.TrimSpace(p.Value)
		}
	}

	var masters []*ics.VEvent
	overrides := map[string]Event{}
	for _, ev := range cal.Events() {
		rid := ev.GetProperty(ics.ComponentProperty("RECURRENCE-ID"))
		if rid == nil {
			masters = append(masters, ev)
			continue
		}
		occ, err := single(ev)
		if err != nil {
			return Calendar{}, err
		}
		at, err := parseStamp(rid)
		if err != nil {
			return Calendar{}, fmt.Errorf("%w: event %s: recurrence-id: %v", domain.ErrExternalParse, occ.UID, err)
		}
		occ.Key = occ.UID + ":" + at.key()
		overrides[occ.Key] = occ
	}

	seen := map[string]bool{}
	for _, ev := range masters {
		occ, err := single(ev)
		if err != nil {
			return Calendar{}, err
		}
		rule := ev.GetProperty(ics.ComponentPropertyRrule)
		if rule == nil {
			if w.overlaps(occ.Start, occ.End) && !seen[occ.Key] {
				seen[occ.Key] = true
				out.Events = append(out.Events, occ)
			}
			continue
		}
		starts, err := expand(ev, occ, rule.Value, w)
		if err != nil {
			return Calendar{}, err
		}
		length := occ.End.Sub(occ.Start)
		for _, at := range starts {
			key := occ.UID + ":" + stamp{t: at, date: occ.FullDay}.key()
			if _, moved := overrides[key]; moved || seen[key] {
				continue
			}
			seen[key] = true
			next := occ
			next.Key, next.Start, next.End = key, at, at.Add(length)
			out.Events = append(out.Events, next)
		}
	}
	for key, occ := range overrides {
		if seen[key] || !w.overlaps(occ.Start, occ.End) {
			continue
		}
		seen[key] = true
		out.Events = append(out.Events, occ)
	}
	sort.SliceStable(out.Events, func(i, j int) bool {
		if !out.Events[i].Start.Equal(out.Events[j].Start) {
			return out.Events[i].Start.Before(out.Events[j].Start)
		}
		return out.Events[i].Key < out.Events[j].Key
	})
	return out, nil
}

// single reads the fields of one VEVENT without expanding it.
func single(ev *ics.VEvent) (Event, error) {
	uid := strings.TrimSpace(ev.Id())
	if uid == "" {
		return Event{}, fmt.Errorf("%w: event without UID", domain.ErrExternalParse)
	}
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: event %s: %s", domain.ErrExternalParse, uid, fmt.Sprintf(format, args...))
	}
	dtstart := ev.GetProperty(ics.ComponentPropertyDtStart)
	if dtstart == nil {
		return Event{}, bad("missing DTSTART")
	}
	start, err := parseStamp(dtstart)
	if err != nil {
		return Event{}, bad("DTSTART: %v", err)
	}
	end := stamp{t: start.t, date: start.date}
	if start.date {
		end.t = start.t.AddDate(0, 0, 1)
	}
	switch {
	case ev.GetProperty(ics.ComponentPropertyDtEnd) != nil:
		if end, err = parseStamp(ev.GetProperty(ics.ComponentPropertyDtEnd)); err != nil {
			return Event{}, bad("DTEND: %v", err)
		}
	case ev.GetProperty(ics.ComponentPropertyDuration) != nil:
		d, err := parseDuration(ev.GetProperty(ics.ComponentPropertyDuration).Value)
		if err != nil {
			return Event{}, bad("DURATION: %v", err)
		}
		end.t = start.t.Add(d)
	}
	if start.date != end.date {
		return Event{}, bad("DTSTART and DTEND mix date and date-time values")
	}

	out := Event{UID: uid, Key: uid, FullDay: start.date, Start: start.t, End: end.t}
	if p := ev.GetProperty(ics.ComponentPropertySummary); p != nil {
		out.Name = strings.TrimSpace(unescaper.Replace(p.Value))
	}
	if out.Name == "" {
		out.Name = "Untitled event"
	}
	if p := ev.GetProperty(ics.ComponentPropertyDescription); p != nil {
		out.Description = strings.TrimSpace(unescaper.Replace(p.Value))
	}
	if p := ev.GetProperty(ics.ComponentPropertyLastModified); p != nil {
		if lm, err := parseStamp(p); err == nil {
			out.LastModified = lm.t.UTC()
		}
	}
	return out, nil
}

func expand(ev *ics.VEvent, occ Event, rule string, w Window) ([]time.Time, error) {
	opt, err := rrule.StrToROption(rule)
	if err != nil {
		return nil, fmt.Errorf("%w: event %s: RRULE: %v", domain.ErrExternalParse, occ.UID, err)
	}
	opt.Dtstart = occ.Start
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("%w: event %s: RRULE: %v", domain.ErrExternalParse, occ.UID, err)
	}
	set := rrule.Set{}
	set.RRule(r)
	for _, p := range ev.Properties {
		if !strings.EqualFold(p.IANAToken, "EXDATE") {
			continue
		}
		for _, v := range strings.Split(p.Value, ",") {
			ex, err := parseStampValue(strings.TrimSpace(v), p.ICalParameters)
			if err != nil {
				return nil, fmt.Errorf("%w: event %s: EXDATE: %v", domain.ErrExternalParse, occ.UID, err)
			}
			set.ExDate(ex.t)
		}
	}
	// Occurrences that started before the window but still run into it count too.
	from := w.Start.Add(-occ.End.Sub(occ.Start))
	return set.Between(from, w.End, true), nil
}

func parseStamp(p *ics.IANAProperty) (stamp, error) {
	return parseStampValue(strings.TrimSpace(p.Value), p.ICalParameters)
}

func parseStampValue(v string, params map[string][]string) (stamp, error) {
	isDate := len(v) == len(dateLayout)
	for _, kind := range params["VALUE"] {
		if strings.EqualFold(kind, "DATE") {
			isDate = true
		}
	}
	if isDate {
		t, err := time.ParseInLocation(dateLayout, v, time.UTC)
		return stamp{t: t, date: true}, err
	}
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse(utcLayout, v)
		return stamp{t: t}, err
	}
	loc := time.UTC
	if tzid := params["TZID"]; len(tzid) > 0 {
		if l, err := time.LoadLocation(strings.Trim(tzid[0], `"`)); err == nil {
			loc = l
		}
	}
	t, err := time.ParseInLocation(dateTimeLayout, v, loc)
	return stamp{t: t}, err
}

var durationPattern = regexp.MustCompile(`^([+-])?P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// parseDuration reads an RFC 5545 dur-value such as P1D or PT1H30M.
func parseDuration(v string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(v)))
	if m == nil || v == "P" || v == "PT" {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	units := []time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, unit := range units {
		if m[i+2] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+2])
		if err != nil {
			return 0, err
		}
		d += time.Duration(n) * unit
	}
	if m[1] == "-" {
		d = -d
	}
	return d, nil
}
