package icalsync_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jupiter/internal/domain"
	"jupiter/internal/icalsync"
)

func calendar(events ...string) []byte {
	lines := []string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//jupiter//test//EN", "X-WR-CALNAME:Work"}
	for _, ev := range events {
		lines = append(lines, "BEGIN:VEVENT")
		lines = append(lines, strings.Split(ev, "\n")...)
		lines = append(lines, "END:VEVENT")
	}
	lines = append(lines, "END:VCALENDAR", "")
	return []byte(strings.Join(lines, "\r\n"))
}

func utc(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

var window = icalsync.WindowFor(domain.MustParseDate("2024-08-12"))

func TestWindowCoversPreviousYearAndThirtyDaysAhead(t *testing.T) {
	assert.Equal(t, utc("2023-01-01 00:00"), window.Start)
	assert.Equal(t, utc("2025-01-31 00:00"), window.End)
	assert.True(t, window.Contains(domain.MustParseDate("2025-01-30")))
	assert.False(t, window.Contains(domain.MustParseDate("2025-01-31")))
	assert.False(t, window.Contains(domain.MustParseDate("2022-12-31")))
}

func TestParseExpandsRecurrenceWithExdateAndOverride(t *testing.T) {
	cal, err := icalsync.Parse(calendar(
		"UID:R\nDTSTART:20240812T100000Z\nDTEND:20240812T103000Z\nSUMMARY:Standup\nRRULE:FREQ=WEEKLY;COUNT=4\nEXDATE:20240819T100000Z",
		"UID:R\nRECURRENCE-ID:20240826T100000Z\nDTSTART:20240826T120000Z\nDTEND:20240826T123000Z\nSUMMARY:Standup (moved)",
	), window)
	require.NoError(t, err)
	assert.Equal(t, "Work", cal.Name)
	require.Len(t, cal.Events, 3)

	assert.Equal(t, "R:20240812T100000Z", cal.Events[0].Key)
	assert.Equal(t, utc("2024-08-12 10:00"), cal.Events[0].Start)
	assert.Equal(t, utc("2024-08-12 10:30"), cal.Events[0].End)

	assert.Equal(t, "R:20240826T100000Z", cal.Events[1].Key)
	assert.Equal(t, "Standup (moved)", cal.Events[1].Name)
	assert.Equal(t, utc("2024-08-26 12:00"), cal.Events[1].Start)

	assert.Equal(t, "R:20240902T100000Z", cal.Events[2].Key)
	for _, ev := range cal.Events {
		assert.Equal(t, "R", ev.UID)
		assert.False(t, ev.FullDay)
	}
}

func TestParseSingleEvents(t *testing.T) {
	cal, err := icalsync.Parse(calendar(
		"UID:holiday\nDTSTART;VALUE=DATE:20240815\nSUMMARY:Holiday",
		"UID:call\nDTSTART:20240813T090000Z\nDURATION:PT1H30M\nSUMMARY:Call\nDESCRIPTION:Agenda\\, notes\nLAST-MODIFIED:20240801T120000Z",
		"UID:ancient\nDTSTART:20200101T090000Z\nDTEND:20200101T100000Z\nSUMMARY:Old",
	), window)
	require.NoError(t, err)
	require.Len(t, cal.Events, 2)

	call := cal.Events[0]
	assert.Equal(t, "call", call.Key)
	assert.Equal(t, utc("2024-08-13 10:30"), call.End)
	assert.Equal(t, "Agenda, notes", call.Description)
	assert.Equal(t, utc("2024-08-01 12:00"), call.LastModified)

	holiday := cal.Events[1]
	assert.Equal(t, "holiday", holiday.Key)
	assert.True(t, holiday.FullDay)
	assert.Equal(t, utc("2024-08-16 00:00"), holiday.End)
}

func TestParseRejectsMixedBounds(t *testing.T) {
	_, err := icalsync.Parse(calendar("UID:mixed\nDTSTART;VALUE=DATE:20240812\nDTEND:20240812T100000Z\nSUMMARY:Broken"), window)
	require.ErrorIs(t, err, domain.ErrExternalParse)
	assert.Contains(t, err.Error(), "mix date")

	_, err = icalsync.Parse(calendar("DTSTART:20240812T100000Z\nSUMMARY:No uid"), window)
	require.ErrorIs(t, err, domain.ErrExternalParse)
}
