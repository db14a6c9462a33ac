package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"jupiter/internal/domain"
	"jupiter/internal/engine"
)

// runAs is run with the mutations tagged as coming from source.
func runAs[A, R any](cmd *cobra.Command, source domain.EventSource, uc func(engine.Engine, context.Context, engine.Identity, A) (R, error), args A) error {
	return withSession(cmd.Context(), func(ctx context.Context, e engine.Engine, id engine.Identity) error {
		if source != "" {
			e = e.WithSource(source)
		}
		out, err := uc(e, ctx, id, args)
		if err != nil {
			return err
		}
		return printJSONOrTable(out)
	})
}

func sourceFlag(cron bool) domain.EventSource {
	if cron {
		return domain.EventSourceCron
	}
	return ""
}

func genCmd() *cobra.Command {
	var targets, periods []string
	var force, cron bool
	filters := map[string]*[]string{}
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate the inbox tasks of the period for every recurring source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := today()
			if err != nil {
				return err
			}
			ids := map[string][]domain.EntityID{}
			for name, raw := range filters {
				if ids[name], err = refIDs(*raw); err != nil {
					return err
				}
			}
			return runAs(cmd, sourceFlag(cron), engine.Engine.Gen, engine.GenArgs{
				Today:                 t,
				Targets:               enums[domain.SyncTarget](targets),
				Period:                enums[domain.RecurringTaskPeriod](periods),
				GenEvenIfNotModified:  force,
				FilterProjectRefIDs:   ids["project"],
				FilterHabitRefIDs:     ids["habit"],
				FilterChoreRefIDs:     ids["chore"],
				FilterMetricRefIDs:    ids["metric"],
				FilterPersonRefIDs:    ids["person"],
				FilterSlackTaskRefIDs: ids["slack-task"],
				FilterEmailTaskRefIDs: ids["email-task"],
			})
		},
	}
	cmd.Flags().StringSliceVar(&targets, "target", nil, "what to generate for: "+joinEnums(domain.AllSyncTargets))
	cmd.Flags().StringSliceVar(&periods, "period", nil, "only these periods")
	cmd.Flags().BoolVar(&force, "force", false, "regenerate tasks even when their source did not change")
	cmd.Flags().BoolVar(&cron, "cron", false, "record the run as scheduled")
	for _, name := range []string{"project", "habit", "chore", "metric", "person", "slack-task", "email-task"} {
		filters[name] = cmd.Flags().StringSlice(name, nil, "only these "+name+" ids")
	}
	return cmd
}

func joinEnums[T ~string](values []T) string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	return strings.Join(out, ", ")
}

func syncCmd() *cobra.Command {
	var streams []string
	var force, cron bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror the remote calendars of external schedule streams",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := today()
			if err != nil {
				return err
			}
			ids, err := refIDs(streams)
			if err != nil {
				return err
			}
			return runAs(cmd, sourceFlag(cron), engine.Engine.Sync, engine.SyncArgs{
				Today:                 t,
				SyncEvenIfNotModified: force,
				FilterStreamRefIDs:    ids,
			})
		},
	}
	cmd.Flags().StringSliceVar(&streams, "stream", nil, "only these stream ids")
	cmd.Flags().BoolVar(&force, "force", false, "sync even when the calendar did not change")
	cmd.Flags().BoolVar(&cron, "cron", false, "record the run as scheduled")
	return cmd
}

func statsCmd() *cobra.Command {
	var targets, bigPlans, journals []string
	var cron bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Recompute big plan, journal and gamification statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := today()
			if err != nil {
				return err
			}
			bp, err := refIDs(bigPlans)
			if err != nil {
				return err
			}
			j, err := refIDs(journals)
			if err != nil {
				return err
			}
			return runAs(cmd, sourceFlag(cron), engine.Engine.Stats, engine.StatsArgs{
				Today:               t,
				Targets:             enums[domain.StatsTarget](targets),
				FilterBigPlanRefIDs: bp,
				FilterJournalRefIDs: j,
			})
		},
	}
	cmd.Flags().StringSliceVar(&targets, "target", nil, "big-plans, journals or gamification")
	cmd.Flags().StringSliceVar(&bigPlans, "big-plan", nil, "only these big plan ids")
	cmd.Flags().StringSliceVar(&journals, "journal", nil, "only these journal ids")
	cmd.Flags().BoolVar(&cron, "cron", false, "record the run as scheduled")
	return cmd
}

func gcCmd() *cobra.Command {
	var targets []string
	var cron bool
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Archive done tasks and finished plans",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := today()
			if err != nil {
				return err
			}
			return runAs(cmd, sourceFlag(cron), engine.Engine.GC, engine.GCArgs{
				Today:   t,
				Targets: enums[domain.GCTarget](targets),
			})
		},
	}
	cmd.Flags().StringSliceVar(&targets, "target", nil, "what to collect: "+joinEnums(domain.AllGCTargets))
	cmd.Flags().BoolVar(&cron, "cron", false, "record the run as scheduled")
	return cmd
}

func reportCmd() *cobra.Command {
	var period, start, end string
	var sources []string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the work done in a period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := today()
			if err != nil {
				return err
			}
			s, err := day(start)
			if err != nil {
				return err
			}
			e, err := day(end)
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.Report, engine.ReportArgs{
				Today:   t,
				Period:  domain.RecurringTaskPeriod(period),
				Start:   s,
				End:     e,
				Sources: enums[domain.InboxTaskSource](sources),
			})
		},
	}
	cmd.Flags().StringVar(&period, "period", "", "period around today (default weekly)")
	cmd.Flags().StringVar(&start, "start", "", "first day, instead of a period")
	cmd.Flags().StringVar(&end, "end", "", "last day, instead of a period")
	cmd.Flags().StringSliceVar(&sources, "source", nil, "only tasks from these sources")
	return cmd
}

func scoresCmd() *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "scores",
		Short: "Show gamification scores",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, engine.Engine.Scores, engine.ScoreArgs{Period: domain.RecurringTaskPeriod(period)})
		},
	}
	cmd.Flags().StringVar(&period, "period", "", "bucket period (default weekly)")
	return cmd
}

func genLogCmd() *cobra.Command {
	var kind string
	var limit int
	cmd := &cobra.Command{
		Use:   "gen-log",
		Short: "Show the newest run log entries, gen runs by default",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, engine.Engine.RecentLogs, engine.RecentLogsArgs{
				Kind:  domain.Kind(strings.ReplaceAll(kind, "-", "_")),
				Limit: limit,
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(domain.KindGenLogEntry), "gen_log_entry, gc_log_entry, stats_log_entry or schedule_external_sync_log_entry")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	return cmd
}
