package main

import (
	"context"

	"github.com/spf13/cobra"

	"jupiter/internal/domain"
	"jupiter/internal/engine"
)

// projectSettingCmd points the generated tasks of a collection at another project.
func projectSettingCmd[R any](short string, uc func(engine.Engine, context.Context, engine.Identity, engine.ProjectSettingArgs) (R, error)) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "change-project",
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := refID(project)
			if err != nil {
				return err
			}
			return run(cmd, uc, engine.ProjectSettingArgs{ProjectRefID: id})
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project id")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

// idCmd runs a use case that only needs the entity id.
func idCmd[R any](use, short string, uc func(engine.Engine, context.Context, engine.Identity, engine.IDArgs) (R, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := refID(args[0])
			if err != nil {
				return err
			}
			return run(cmd, uc, engine.IDArgs{RefID: id})
		},
	}
}

func habitCmd() *cobra.Command {
	h := &cobra.Command{Use: "habit", Short: "Manage habits"}
	h.AddCommand(habitCreateCmd(), habitUpdateCmd())
	h.AddCommand(idCmd("suspend", "Stop generating tasks for a habit", engine.Engine.SuspendHabit))
	h.AddCommand(idCmd("unsuspend", "Resume generating tasks for a habit", engine.Engine.UnsuspendHabit))
	h.AddCommand(idCmd("streak-rebuild", "Recompute the streak marks of a habit", engine.Engine.RebuildHabitStreak))
	h.AddCommand(habitStreakCmd())
	h.AddCommand(entityCmds(domain.KindHabit)...)
	return h
}

func habitCreateCmd() *cobra.Command {
	var name, project, strategy string
	var repeats int
	var gen genParamsFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a habit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := optRef(cmd, "project", project)
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.CreateHabit, engine.CreateHabitArgs{
				Name:                 name,
				ProjectRefID:         p,
				GenParams:            gen.params(),
				RepeatsInPeriodCount: optInt(cmd, "repeats", repeats),
				RepeatsStrategy:      domain.HabitRepeatsStrategy(strategy),
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "habit name")
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().IntVar(&repeats, "repeats", 0, "tasks per period")
	cmd.Flags().StringVar(&strategy, "repeats-strategy", "", "all-same-day or spread-out-no-overlap")
	gen.bind(cmd)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func habitUpdateCmd() *cobra.Command {
	var name, project, strategy string
	var repeats int
	var clearRepeats bool
	var gen genParamsFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a habit. Recurrence flags replace the whole recurrence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := refID(args[0])
			if err != nil {
				return err
			}
			p, err := optRef(cmd, "project", project)
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.UpdateHabit, engine.UpdateHabitArgs{
				RefID:                id,
				Name:                 optString(cmd, "name", name),
				ProjectRefID:         p,
				GenParams:            gen.optParams(cmd),
				RepeatsInPeriodCount: optInt(cmd, "repeats", repeats),
				RepeatsStrategy:      optEnum[domain.HabitRepeatsStrategy](cmd, "repeats-strategy", strategy),
				ClearRepeats:         clearRepeats,
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&project, "project", "", "new project id")
	cmd.Flags().IntVar(&repeats, "repeats", 0, "tasks per period")
	cmd.Flags().StringVar(&strategy, "repeats-strategy", "", "all-same-day or spread-out-no-overlap")
	cmd.Flags().BoolVar(&clearRepeats, "clear-repeats", false, "go back to one task per period")
	gen.bind(cmd)
	return cmd
}

func habitStreakCmd() *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "streak <id>",
		Short: "Show the streak marks of a habit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := refID(args[0])
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
			return run(cmd, engine.Engine.HabitStreak, engine.StreakArgs{RefID: id, Start: s, End: e})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "first day")
	cmd.Flags().StringVar(&end, "end", "", "last day")
	return cmd
}

func choreCmd() *cobra.Command {
	c := &cobra.Command{Use: "chore", Short: "Manage chores"}

	var name, project, startAt, endAt string
	var mustDo bool
	var gen genParamsFlags
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a chore",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := optRef(cmd, "project", project)
			if err != nil {
				return err
			}
			s, err := day(startAt)
			if err != nil {
				return err
			}
			e, err := day(endAt)
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.CreateChore, engine.CreateChoreArgs{
				Name:         name,
				ProjectRefID: p,
				GenParams:    gen.params(),
				MustDo:       mustDo,
				StartAtDate:  s,
				EndAtDate:    e,
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "chore name")
	create.Flags().StringVar(&project, "project", "", "project id")
	create.Flags().BoolVar(&mustDo, "must-do", false, "generate even during vacations")
	create.Flags().StringVar(&startAt, "start-at", "", "first day to generate for")
	create.Flags().StringVar(&endAt, "end-at", "", "last day to generate for")
	gen.bind(create)
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("period")

	var uName, uProject, uStartAt, uEndAt string
	var uMustDo, uSuspended bool
	var uGen genParamsFlags
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a chore. Recurrence flags replace the whole recurrence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := refID(args[0])
			if err != nil {
				return err
			}
			p, err := optRef(cmd, "project", uProject)
			if err != nil {
				return err
			}
			s, err := optDay(cmd, "start-at", uStartAt)
			if err != nil {
				return err
			}
			e, err := optDay(cmd, "end-at", uEndAt)
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.UpdateChore, engine.UpdateChoreArgs{
				RefID:        id,
				Name:         optString(cmd, "name", uName),
				ProjectRefID: p,
				GenParams:    uGen.optParams(cmd),
				MustDo:       optBool(cmd, "must-do", uMustDo),
				StartAtDate:  s,
				EndAtDate:    e,
				Suspended:    optBool(cmd, "suspended", uSuspended),
			})
		},
	}
	update.Flags().StringVar(&uName, "name", "", "new name")
	update.Flags().StringVar(&uProject, "project", "", "new project id")
	update.Flags().BoolVar(&uMustDo, "must-do", false, "generate even during vacations")
	update.Flags().StringVar(&uStartAt, "start-at", "", "first day to generate for")
	update.Flags().StringVar(&uEndAt, "end-at", "", "last day to generate for")
	update.Flags().BoolVar(&uSuspended, "suspended", false, "stop generating tasks")
	uGen.bind(update)

	c.AddCommand(create, update)
	c.AddCommand(entityCmds(domain.KindChore)...)
	return c
}

func metricCmd() *cobra.Command {
	m := &cobra.Command{Use: "metric", Short: "Manage metrics and their entries"}

	var name, icon string
	gen := genParamsFlags{prefix: "collect-"}
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a metric, optionally with collection tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, engine.Engine.CreateMetric, engine.CreateMetricArgs{
				Name:             name,
				Icon:             icon,
				CollectionParams: gen.optParams(cmd),
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "metric name")
	create.Flags().StringVar(&icon, "icon", "", "icon")
	gen.bind(create)
	_ = create.MarkFlagRequired("name")

	var uName, uIcon string
	var clearCollection bool
	uGen := genParamsFlags{prefix: "collect-"}
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a metric",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := refID(args[0])
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.UpdateMetric, engine.UpdateMetricArgs{
				RefID:                 id,
				Name:                  optString(cmd, "name", uName),
				Icon:                  optString(cmd, "icon", uIcon),
				CollectionParams:      uGen.optParams(cmd),
				ClearCollectionParams: clearCollection,
			})
		},
	}
	update.Flags().StringVar(&uName, "name", "", "new name")
	update.Flags().StringVar(&uIcon, "icon", "", "new icon")
	update.Flags().BoolVar(&clearCollection, "no-collection", false, "stop generating collection tasks")
	uGen.bind(update)

	m.AddCommand(create, update, metricEntryCreateCmd(), metricEntryUpdateCmd())
	m.AddCommand(projectSettingCmd("Change the project of metric collection tasks", engine.Engine.ChangeMetricCollectionProject))
	m.AddCommand(entityCmds(domain.KindMetric)...)
	return m
}

func metricEntryCreateCmd() *cobra.Command {
	var metric, at, notes string
	var value float64
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a metric value",
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := refID(metric)
			if err != nil {
				return err
			}
			when, err := day(at)
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.CreateMetricEntry, engine.MetricEntryArgs{
				MetricRefID:    id,
				CollectionTime: when,
				Value:          value,
				Notes:          notes,
			})
		},
	}
	cmd.Flags().StringVar(&metric, "metric", "", "metric id")
	cmd.Flags().Float64Var(&value, "value", 0, "value")
	cmd.Flags().StringVar(&at, "at", "today", "collection day")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	_ = cmd.MarkFlagRequired("metric")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func metricEntryUpdateCmd() *cobra.Command {
	var at, notes string
	var value float64
	cmd := &cobra.Command{
		Use:   "entry-update <id>",
		Short: "Update a recorded metric value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := refID(args[0])
			if err != nil {
				return err
			}
			when, err := day(at)
			if err != nil {
				return err
			}
			var v *float64
			if changed(cmd, "value") {
				v = &value
			}
			return run(cmd, engine.Engine.UpdateMetricEntry, engine.UpdateMetricEntryArgs{
				RefID:          id,
				CollectionTime: when,
				Value:          v,
				Notes:          optString(cmd, "notes", notes),
			})
		},
	}
	cmd.Flags().Float64Var(&value, "value", 0, "new value")
	cmd.Flags().StringVar(&at, "at", "", "new collection day")
	cmd.Flags().StringVar(&notes, "notes", "", "new notes")
	return cmd
}

func personCmd() *cobra.Command {
	p := &cobra.Command{Use: "person", Short: "Manage persons"}

	var name, relationship, birthday string
	var prepDays int
	gen := genParamsFlags{prefix: "catch-up-"}
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a person, optionally with catch-up and birthday tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			args := engine.CreatePersonArgs{
				Name:                          name,
				Relationship:                  domain.PersonRelationship(relationship),
				CatchUpParams:                 gen.optParams(cmd),
				PreparationDaysCntForBirthday: optInt(cmd, "birthday-prep-days", prepDays),
			}
			if birthday != "" {
				b, err := domain.ParsePersonBirthday(birthday)
				if err != nil {
					return err
				}
				args.Birthday = &b
			}
			return run(cmd, engine.Engine.CreatePerson, args)
		},
	}
	create.Flags().StringVar(&name, "name", "", "person name")
	create.Flags().StringVar(&relationship, "relationship", string(domain.RelationshipFriend), "family, friend, colleague and so on")
	create.Flags().StringVar(&birthday, "birthday", "", "birthday, MM-DD")
	create.Flags().IntVar(&prepDays, "birthday-prep-days", 0, "days before the birthday the task becomes actionable")
	gen.bind(create)
	_ = create.MarkFlagRequired("name")

	var uName, uRelationship, uBirthday string
	var uPrepDays int
	var clearCatchUp, clearBirthday bool
	uGen := genParamsFlags{prefix: "catch-up-"}
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := refID(args[0])
			if err != nil {
				return err
			}
			in := engine.UpdatePersonArgs{
				RefID:                         id,
				Name:                          optString(cmd, "name", uName),
				Relationship:                  optEnum[domain.PersonRelationship](cmd, "relationship", uRelationship),
				CatchUpParams:                 uGen.optParams(cmd),
				ClearCatchUpParams:            clearCatchUp,
				ClearBirthday:                 clearBirthday,
				PreparationDaysCntForBirthday: optInt(cmd, "birthday-prep-days", uPrepDays),
			}
			if changed(cmd, "birthday") {
				b, err := domain.ParsePersonBirthday(uBirthday)
				if err != nil {
					return err
				}
				in.Birthday = &b
			}
			return run(cmd, engine.Engine.UpdatePerson, in)
		},
	}
	update.Flags().StringVar(&uName, "name", "", "new name")
	update.Flags().StringVar(&uRelationship, "relationship", "", "new relationship")
	update.Flags().StringVar(&uBirthday, "birthday", "", "new birthday, MM-DD")
	update.Flags().IntVar(&uPrepDays, "birthday-prep-days", 0, "days before the birthday the task becomes actionable")
	update.Flags().BoolVar(&clearCatchUp, "no-catch-up", false, "stop generating catch-up tasks")
	update.Flags().BoolVar(&clearBirthday, "no-birthday", false, "forget the birthday")
	uGen.bind(update)

	p.AddCommand(create, update)
	p.AddCommand(projectSettingCmd("Change the project of catch-up and birthday tasks", engine.Engine.ChangePersonCatchUpProject))
	p.AddCommand(entityCmds(domain.KindPerson)...)
	return p
}

// pushInfoFlags describe the inbox task a pushed message turns into.
type pushInfoFlags struct {
	name, status, eisen, difficulty, actionable, due string
}

func (f *pushInfoFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "task-name", "", "name of the generated task")
	cmd.Flags().StringVar(&f.status, "task-status", "", "status of the generated task")
	cmd.Flags().StringVar(&f.eisen, "task-eisen", "", "eisenhower class of the generated task")
	cmd.Flags().StringVar(&f.difficulty, "task-difficulty", "", "difficulty of the generated task")
	cmd.Flags().StringVar(&f.actionable, "task-actionable", "", "actionable day of the generated task")
	cmd.Flags().StringVar(&f.due, "task-due", "", "due day of the generated task")
}

func (f *pushInfoFlags) info() (domain.PushGenerationExtraInfo, error) {
	a, err := day(f.actionable)
	if err != nil {
		return domain.PushGenerationExtraInfo{}, err
	}
	d, err := day(f.due)
	if err != nil {
		return domain.PushGenerationExtraInfo{}, err
	}
	return domain.PushGenerationExtraInfo{
		Name:           f.name,
		Status:         domain.InboxTaskStatus(f.status),
		Eisen:          domain.Eisen(f.eisen),
		Difficulty:     domain.Difficulty(f.difficulty),
		ActionableDate: a,
		DueDate:        d,
	}, nil
}

func slackTaskCmd() *cobra.Command {
	st := &cobra.Command{Use: "slack-task", Short: "Manage pushed Slack messages"}

	var args engine.SlackTaskArgs
	var info pushInfoFlags
	bind := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&args.User, "user", "", "who sent the message")
		cmd.Flags().StringVar(&args.Channel, "channel", "", "channel of the message")
		cmd.Flags().StringVar(&args.Message, "message", "", "message text")
		info.bind(cmd)
	}
	create := &cobra.Command{
		Use:   "create",
		Short: "Push a Slack message. Gen turns it into an inbox task",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if args.GenerationExtraInfo, err = info.info(); err != nil {
				return err
			}
			return run(cmd, engine.Engine.CreateSlackTask, args)
		},
	}
	bind(create)
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace a pushed Slack message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			id, err := refID(a[0])
			if err != nil {
				return err
			}
			if args.GenerationExtraInfo, err = info.info(); err != nil {
				return err
			}
			return run(cmd, engine.Engine.UpdateSlackTask, engine.UpdateSlackTaskArgs{RefID: id, SlackTaskArgs: args})
		},
	}
	bind(update)

	st.AddCommand(create, update)
	st.AddCommand(projectSettingCmd("Change the project of Slack tasks", engine.Engine.ChangeSlackTaskGenerationProject))
	st.AddCommand(entityCmds(domain.KindSlackTask)...)
	return st
}

func emailTaskCmd() *cobra.Command {
	et := &cobra.Command{Use: "email-task", Short: "Manage pushed emails"}

	var args engine.EmailTaskArgs
	var info pushInfoFlags
	bind := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&args.FromAddress, "from", "", "sender address")
		cmd.Flags().StringVar(&args.FromName, "from-name", "", "sender name")
		cmd.Flags().StringVar(&args.ToAddress, "to", "", "recipient address")
		cmd.Flags().StringVar(&args.Subject, "subject", "", "subject")
		cmd.Flags().StringVar(&args.Body, "body", "", "body")
		info.bind(cmd)
	}
	create := &cobra.Command{
		Use:   "create",
		Short: "Push an email. Gen turns it into an inbox task",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if args.GenerationExtraInfo, err = info.info(); err != nil {
				return err
			}
			return run(cmd, engine.Engine.CreateEmailTask, args)
		},
	}
	bind(create)
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace a pushed email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, a []string) error {
			id, err := refID(a[0])
			if err != nil {
				return err
			}
			if args.GenerationExtraInfo, err = info.info(); err != nil {
				return err
			}
			return run(cmd, engine.Engine.UpdateEmailTask, engine.UpdateEmailTaskArgs{RefID: id, EmailTaskArgs: args})
		},
	}
	bind(update)

	et.AddCommand(create, update)
	et.AddCommand(projectSettingCmd("Change the project of email tasks", engine.Engine.ChangeEmailTaskGenerationProject))
	et.AddCommand(entityCmds(domain.KindEmailTask)...)
	return et
}
