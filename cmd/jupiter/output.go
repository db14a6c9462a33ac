package main

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/viper"

	"jupiter/internal/domain"
	"jupiter/internal/engine"
)

// printJSONOrTable renders entities and run results as tables, everything else as indented JSON.
func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	switch out := v.(type) {
	case engine.ListView:
		rows := make([]domain.EntitySummary, 0, len(out.Entities))
		for _, e := range out.Entities {
			rows = append(rows, domain.SummaryOf(e))
		}
		printSummaries(rows)
	case engine.EntityView:
		printSummaries([]domain.EntitySummary{domain.SummaryOf(out.Entity)})
	case engine.ArchiveResult:
		printSummaries(out.Archived)
	case engine.RemoveResult:
		printSummaries(out.Removed)
	case engine.HistoryView:
		printEvents(out.Events)
	case engine.CalendarView:
		printCalendar(out)
	case interface{ Records() domain.LogRecords }:
		if isNil(v) {
			return printJSON(v)
		}
		printRecords(out.Records())
	case domain.Entity:
		if isNil(v) {
			return printJSON(v)
		}
		printSummaries([]domain.EntitySummary{domain.SummaryOf(out)})
	default:
		return printJSON(v)
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func isNil(v any) bool {
	rv := reflect.ValueOf(v)
	return !rv.IsValid() || (rv.Kind() == reflect.Pointer && rv.IsNil())
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	return tw
}

func printSummaries(rows []domain.EntitySummary) {
	tw := newTable()
	tw.AppendHeader(table.Row{"Kind", "ID", "Parent", "Name", "Archived"})
	for _, r := range rows {
		tw.AppendRow(table.Row{r.EntityTag, r.RefID, r.ParentRef, r.Name, r.Archived})
	}
	tw.Render()
}

func printEvents(events []domain.Event) {
	tw := newTable()
	tw.AppendHeader(table.Row{"Version", "Event", "Source", "When"})
	for _, ev := range events {
		tw.AppendRow(table.Row{ev.Version, ev.Name, ev.Source, ev.Timestamp.Format("2006-01-02 15:04:05")})
	}
	tw.Render()
}

func printCalendar(cal engine.CalendarView) {
	tw := newTable()
	tw.AppendHeader(table.Row{"Day", "Start", "Length", "Namespace", "Source"})
	for _, b := range cal.FullDays {
		tw.AppendRow(table.Row{b.StartDate, "all day", fmt.Sprintf("%dd", b.DurationDays), b.Namespace, b.SourceEntityRefID})
	}
	for _, b := range cal.InDay {
		tw.AppendRow(table.Row{b.StartDate, b.StartTimeInDay, fmt.Sprintf("%dm", b.DurationMins), b.Namespace, b.SourceEntityRefID})
	}
	tw.Render()
}

func printRecords(r domain.LogRecords) {
	tw := newTable()
	tw.AppendHeader(table.Row{"Change", "Kind", "ID", "Name"})
	add := func(change string, rows []domain.EntitySummary) {
		for _, s := range rows {
			tw.AppendRow(table.Row{change, s.EntityTag, s.RefID, s.Name})
		}
	}
	add("created", r.EntityCreated)
	add("updated", r.EntityUpdated)
	add("archived", r.EntityArchived)
	add("removed", r.EntityRemoved)
	tw.AppendFooter(table.Row{"", "", "total", r.Touched()})
	tw.Render()
	for i, section := range r.FailedSections {
		msg := ""
		if i < len(r.SectionMessages) {
			msg = r.SectionMessages[i]
		}
		fmt.Fprintf(os.Stderr, "section %s failed: %s\n", section, strings.TrimSpace(msg))
	}
}
