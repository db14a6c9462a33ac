package main

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"jupiter/internal/domain"
	"jupiter/internal/engine"
)

func scheduleCmd() *cobra.Command {
	s := &cobra.Command{Use: "schedule", Short: "Manage schedule streams, events and the calendar"}
	s.AddCommand(scheduleStreamCmd(), scheduleEventCmd(), scheduleFullDaysCmd(), calendarCmd())
	return s
}

func scheduleStreamCmd() *cobra.Command {
	st := &cobra.Command{Use: "stream", Short: "Manage schedule streams"}

	var args engine.CreateScheduleStreamArgs
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a stream. With --ical-url it mirrors a remote calendar on sync",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, engine.Engine.CreateScheduleStream, args)
		},
	}
	create.Flags().StringVar(&args.Name, "name", "", "stream name (external streams take the calendar name)")
	create.Flags().StringVar(&args.Color, "color", "", "display color")
	create.Flags().StringVar(&args.SourceICalURL, "ical-url", "", "iCal URL to mirror")

	var name, color string
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename or recolor a stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			id, err := refID(a[0])
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.UpdateScheduleStream, engine.UpdateScheduleStreamArgs{
				RefID: id,
				Name:  optString(cmd, "name", name),
				Color: optString(cmd, "color", color),
			})
		},
	}
	update.Flags().StringVar(&name, "name", "", "new name")
	update.Flags().StringVar(&color, "color", "", "new color")

	st.AddCommand(create, update)
	st.AddCommand(entityCmds(domain.KindScheduleStream)...)
	return st
}

func scheduleEventCmd() *cobra.Command {
	ev := &cobra.Command{Use: "event", Short: "Manage in-day events"}

	var stream, name, date, at string
	var minutes int
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an in-day event",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := refID(stream)
			if err != nil {
				return err
			}
			d, err := day(date)
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.CreateScheduleEventInDay, engine.CreateScheduleEventInDayArgs{
				StreamRefID:    id,
				Name:           name,
				StartDate:      d,
				StartTimeInDay: at,
				DurationMins:   minutes,
			})
		},
	}
	create.Flags().StringVar(&stream, "stream", "", "stream id")
	create.Flags().StringVar(&name, "name", "", "event name")
	create.Flags().StringVar(&date, "date", "today", "day of the event")
	create.Flags().StringVar(&at, "at", "", "start time, HH:MM")
	create.Flags().IntVar(&minutes, "minutes", 60, "length in minutes")
	for _, f := range []string{"stream", "name", "at"} {
		_ = create.MarkFlagRequired(f)
	}

	var uName, uDate, uAt string
	var uMinutes int
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an in-day event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			id, err := refID(a[0])
			if err != nil {
				return err
			}
			d, err := optDay(cmd, "date", uDate)
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.UpdateScheduleEventInDay, engine.UpdateScheduleEventInDayArgs{
				RefID:          id,
				Name:           optString(cmd, "name", uName),
				StartDate:      d,
				StartTimeInDay: optString(cmd, "at", uAt),
				DurationMins:   optInt(cmd, "minutes", uMinutes),
			})
		},
	}
	update.Flags().StringVar(&uName, "name", "", "new name")
	update.Flags().StringVar(&uDate, "date", "", "new day")
	update.Flags().StringVar(&uAt, "at", "", "new start time, HH:MM")
	update.Flags().IntVar(&uMinutes, "minutes", 0, "new length in minutes")

	ev.AddCommand(create, update)
	ev.AddCommand(entityCmds(domain.KindScheduleEventInDay)...)
	return ev
}

func scheduleFullDaysCmd() *cobra.Command {
	ev := &cobra.Command{Use: "full-days", Short: "Manage full-days events"}

	var stream, name, date string
	var days int
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a full-days event",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := refID(stream)
			if err != nil {
				return err
			}
			d, err := day(date)
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.CreateScheduleEventFullDays, engine.CreateScheduleEventFullDaysArgs{
				StreamRefID:  id,
				Name:         name,
				StartDate:    d,
				DurationDays: days,
			})
		},
	}
	create.Flags().StringVar(&stream, "stream", "", "stream id")
	create.Flags().StringVar(&name, "name", "", "event name")
	create.Flags().StringVar(&date, "date", "today", "first day")
	create.Flags().IntVar(&days, "days", 1, "length in days")
	_ = create.MarkFlagRequired("stream")
	_ = create.MarkFlagRequired("name")

	var uName, uDate string
	var uDays int
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a full-days event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			id, err := refID(a[0])
			if err != nil {
				return err
			}
			d, err := optDay(cmd, "date", uDate)
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.UpdateScheduleEventFullDays, engine.UpdateScheduleEventFullDaysArgs{
				RefID:        id,
				Name:         optString(cmd, "name", uName),
				StartDate:    d,
				DurationDays: optInt(cmd, "days", uDays),
			})
		},
	}
	update.Flags().StringVar(&uName, "name", "", "new name")
	update.Flags().StringVar(&uDate, "date", "", "new first day")
	update.Flags().IntVar(&uDays, "days", 0, "new length in days")

	ev.AddCommand(create, update)
	ev.AddCommand(entityCmds(domain.KindScheduleEventFullDays)...)
	return ev
}

func calendarCmd() *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show the time blocks between two days, the coming week by default",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := day(start)
			if err != nil {
				return err
			}
			e, err := day(end)
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.Calendar, engine.CalendarArgs{Start: s, End: e})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "first day")
	cmd.Flags().StringVar(&end, "end", "", "last day")
	return cmd
}

func settingsCmd() *cobra.Command {
	s := &cobra.Command{Use: "settings", Short: "Show and change generation settings"}
	s.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the generation settings of every collection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, e engine.Engine, id engine.Identity) error {
				v, err := e.LoadSettings(ctx, id, struct{}{})
				if err != nil {
					return err
				}
				return printJSON(v)
			})
		},
	})

	var period, cleanupProject string
	wm := &cobra.Command{
		Use:   "working-mem",
		Short: "Change the working memory period or its cleanup project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := optRef(cmd, "cleanup-project", cleanupProject)
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.UpdateWorkingMemSettings, engine.WorkingMemSettingsArgs{
				GenerationPeriod:    optEnum[domain.RecurringTaskPeriod](cmd, "period", period),
				CleanupProjectRefID: p,
			})
		},
	}
	wm.Flags().StringVar(&period, "period", "", "daily or weekly")
	wm.Flags().StringVar(&cleanupProject, "cleanup-project", "", "project of cleanup tasks")

	s.AddCommand(wm)
	s.AddCommand(planSettingsCmd("time-plan", "Change time plan generation", engine.Engine.UpdateTimePlanSettings))
	s.AddCommand(planSettingsCmd("journal", "Change journal generation", engine.Engine.UpdateJournalSettings))
	return s
}

func planSettingsCmd[R any](use, short string, uc func(engine.Engine, context.Context, engine.Identity, engine.PlanSettingsArgs) (R, error)) *cobra.Command {
	var periods []string
	var approach, project string
	var inAdvance map[string]string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := optRef(cmd, "project", project)
			if err != nil {
				return err
			}
			days := map[domain.RecurringTaskPeriod]int{}
			for k, v := range inAdvance {
				n, err := strconv.Atoi(v)
				if err != nil {
					return domain.Invalid("generation_in_advance_days", "%s=%s is not a number of days", k, v)
				}
				days[domain.RecurringTaskPeriod(k)] = n
			}
			return run(cmd, uc, engine.PlanSettingsArgs{
				Settings: domain.PlanGenSettings{
					Periods:                 enums[domain.RecurringTaskPeriod](periods),
					GenerationApproach:      domain.GenerationApproach(approach),
					GenerationInAdvanceDays: days,
				},
				ProjectRefID: p,
			})
		},
	}
	cmd.Flags().StringSliceVar(&periods, "periods", nil, "periods to generate for")
	cmd.Flags().StringVar(&approach, "approach", string(domain.GenApproachBoth), "none, plan-only, task-only or both")
	cmd.Flags().StringToStringVar(&inAdvance, "in-advance", nil, "days ahead to generate, like weekly=2")
	cmd.Flags().StringVar(&project, "project", "", "project of the generated writing tasks")
	return cmd
}
