package main

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"jupiter/internal/domain"
	"jupiter/internal/engine"
)

// entityCmds are the show, list, archive and remove commands every kind shares.
func entityCmds(kind domain.Kind) []*cobra.Command {
	var showArchived bool
	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one " + string(kind),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := refID(args[0])
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.Load, engine.RefArgs{Kind: kind, RefID: id, AllowArchived: showArchived})
		},
	}
	show.Flags().BoolVar(&showArchived, "archived", false, "also find archived entities")

	var (
		listArchived bool
		parent       string
		ids          []string
		filter       map[string]string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List " + string(kind) + " entities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			args := engine.ListArgs{Kind: kind, AllowArchived: listArchived, Filter: filterValues(filter)}
			if parent != "" {
				id, err := refID(parent)
				if err != nil {
					return err
				}
				args.ParentRefID = id
			}
			refs, err := refIDs(ids)
			if err != nil {
				return err
			}
			args.RefIDs = refs
			return run(cmd, engine.Engine.List, args)
		},
	}
	list.Flags().BoolVar(&listArchived, "archived", false, "include archived entities")
	list.Flags().StringVar(&parent, "parent", "", "only entities under this parent id")
	list.Flags().StringSliceVar(&ids, "id", nil, "only these ids")
	list.Flags().StringToStringVar(&filter, "filter", nil, "link filters, like status=done or project_ref_id=3")

	archive := &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive a " + string(kind) + " and what it owns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := refID(args[0])
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.Archive, engine.ArchiveArgs{Kind: kind, RefID: id})
		},
	}
	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a " + string(kind) + " and what it owns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := refID(args[0])
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.Remove, engine.ArchiveArgs{Kind: kind, RefID: id})
		},
	}
	return []*cobra.Command{show, list, archive, remove}
}

// filterValues reads integers as numbers so that ref id links match.
func filterValues(raw map[string]string) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			out[k] = n
			continue
		}
		out[k] = v
	}
	return out
}

func historyCmd() *cobra.Command {
	var archived bool
	cmd := &cobra.Command{
		Use:   "history <kind> <id>",
		Short: "Show the mutation history of an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := refID(args[1])
			if err != nil {
				return err
			}
			kind := domain.Kind(strings.ReplaceAll(args[0], "-", "_"))
			return run(cmd, engine.Engine.History, engine.RefArgs{Kind: kind, RefID: id, AllowArchived: archived})
		},
	}
	cmd.Flags().BoolVar(&archived, "archived", true, "also find archived entities")
	return cmd
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}

	var name, parent string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := optRef(cmd, "parent", parent)
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.CreateProject, engine.CreateProjectArgs{Name: name, ParentProjectRefID: p})
		},
	}
	create.Flags().StringVar(&name, "name", "", "project name")
	create.Flags().StringVar(&parent, "parent", "", "parent project id (default: the root project)")
	_ = create.MarkFlagRequired("name")

	var newName, newParent string
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename or move a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := refID(args[0])
			if err != nil {
				return err
			}
			p, err := optRef(cmd, "parent", newParent)
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.UpdateProject, engine.UpdateProjectArgs{
				RefID:              id,
				Name:               optString(cmd, "name", newName),
				ParentProjectRefID: p,
			})
		},
	}
	update.Flags().StringVar(&newName, "name", "", "new name")
	update.Flags().StringVar(&newParent, "parent", "", "new parent project id")

	prj.AddCommand(create, update)
	prj.AddCommand(entityCmds(domain.KindProject)...)
	return prj
}

func inboxTaskCmd() *cobra.Command {
	it := &cobra.Command{Use: "inbox-task", Short: "Manage inbox tasks"}
	it.AddCommand(inboxTaskCreateCmd(), inboxTaskUpdateCmd(), inboxTaskAssociateCmd(), inboxTaskBlockCmd())
	it.AddCommand(entityCmds(domain.KindInboxTask)...)
	return it
}

func inboxTaskCreateCmd() *cobra.Command {
	var name, status, project, bigPlan, eisen, difficulty, actionable, due string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an inbox task",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := optRef(cmd, "project", project)
			if err != nil {
				return err
			}
			bp, err := optRef(cmd, "big-plan", bigPlan)
			if err != nil {
				return err
			}
			a, err := day(actionable)
			if err != nil {
				return err
			}
			d, err := day(due)
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.CreateInboxTask, engine.CreateInboxTaskArgs{
				Name:           name,
				Status:         domain.InboxTaskStatus(status),
				ProjectRefID:   p,
				BigPlanRefID:   bp,
				Eisen:          domain.Eisen(eisen),
				Difficulty:     domain.Difficulty(difficulty),
				ActionableDate: a,
				DueDate:        d,
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "task name")
	cmd.Flags().StringVar(&status, "status", "", "initial status (default not-started)")
	cmd.Flags().StringVar(&project, "project", "", "project id (default: the workspace default)")
	cmd.Flags().StringVar(&bigPlan, "big-plan", "", "big plan id; the task takes the plan's project")
	cmd.Flags().StringVar(&eisen, "eisen", "", "regular, important, urgent or important-and-urgent")
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "easy, medium or hard")
	cmd.Flags().StringVar(&actionable, "actionable", "", "actionable day")
	cmd.Flags().StringVar(&due, "due", "", "due day")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func inboxTaskUpdateCmd() *cobra.Command {
	var name, status, project, eisen, difficulty, actionable, due string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update an inbox task",
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
			a, err := optDay(cmd, "actionable", actionable)
			if err != nil {
				return err
			}
			d, err := optDay(cmd, "due", due)
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.UpdateInboxTask, engine.UpdateInboxTaskArgs{
				RefID:          id,
				Name:           optString(cmd, "name", name),
				Status:         optEnum[domain.InboxTaskStatus](cmd, "status", status),
				Eisen:          optEnum[domain.Eisen](cmd, "eisen", eisen),
				Difficulty:     optEnum[domain.Difficulty](cmd, "difficulty", difficulty),
				ActionableDate: a,
				DueDate:        d,
				ProjectRefID:   p,
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&project, "project", "", "new project id")
	cmd.Flags().StringVar(&eisen, "eisen", "", "new eisenhower class")
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "new difficulty")
	cmd.Flags().StringVar(&actionable, "actionable", "", "new actionable day")
	cmd.Flags().StringVar(&due, "due", "", "new due day")
	return cmd
}

func inboxTaskAssociateCmd() *cobra.Command {
	var bigPlan string
	cmd := &cobra.Command{
		Use:   "associate <id>",
		Short: "Move an inbox task into a big plan, or out of it without --big-plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := refID(args[0])
			if err != nil {
				return err
			}
			bp, err := optRef(cmd, "big-plan", bigPlan)
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.AssociateInboxTaskWithBigPlan, engine.AssociateBigPlanArgs{RefID: id, BigPlanRefID: bp})
		},
	}
	cmd.Flags().StringVar(&bigPlan, "big-plan", "", "big plan id")
	return cmd
}

func inboxTaskBlockCmd() *cobra.Command {
	var startDate, startTime string
	var duration int
	cmd := &cobra.Command{
		Use:   "block <id>",
		Short: "Put an inbox task on the calendar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := refID(args[0])
			if err != nil {
				return err
			}
			d, err := day(startDate)
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.BlockInboxTaskTime, engine.TimeBlockArgs{
				RefID:          id,
				StartDate:      d,
				StartTimeInDay: startTime,
				DurationMins:   duration,
			})
		},
	}
	cmd.Flags().StringVar(&startDate, "date", "today", "day of the block")
	cmd.Flags().StringVar(&startTime, "at", "", "start time, HH:MM")
	cmd.Flags().IntVar(&duration, "minutes", 30, "length in minutes")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func bigPlanCmd() *cobra.Command {
	bp := &cobra.Command{Use: "big-plan", Short: "Manage big plans"}

	var name, project, status, actionable, due string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a big plan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := optRef(cmd, "project", project)
			if err != nil {
				return err
			}
			a, err := day(actionable)
			if err != nil {
				return err
			}
			d, err := day(due)
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.CreateBigPlan, engine.CreateBigPlanArgs{
				Name:           name,
				ProjectRefID:   p,
				Status:         domain.BigPlanStatus(status),
				ActionableDate: a,
				DueDate:        d,
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "plan name")
	create.Flags().StringVar(&project, "project", "", "project id")
	create.Flags().StringVar(&status, "status", "", "initial status")
	create.Flags().StringVar(&actionable, "actionable", "", "actionable day")
	create.Flags().StringVar(&due, "due", "", "due day")
	_ = create.MarkFlagRequired("name")

	var uName, uProject, uStatus, uActionable, uDue string
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a big plan. Moving it moves its tasks too",
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
			a, err := optDay(cmd, "actionable", uActionable)
			if err != nil {
				return err
			}
			d, err := optDay(cmd, "due", uDue)
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.UpdateBigPlan, engine.UpdateBigPlanArgs{
				RefID:          id,
				Name:           optString(cmd, "name", uName),
				Status:         optEnum[domain.BigPlanStatus](cmd, "status", uStatus),
				ActionableDate: a,
				DueDate:        d,
				ProjectRefID:   p,
			})
		},
	}
	update.Flags().StringVar(&uName, "name", "", "new name")
	update.Flags().StringVar(&uProject, "project", "", "new project id")
	update.Flags().StringVar(&uStatus, "status", "", "new status")
	update.Flags().StringVar(&uActionable, "actionable", "", "new actionable day")
	update.Flags().StringVar(&uDue, "due", "", "new due day")

	bp.AddCommand(create, update)
	bp.AddCommand(entityCmds(domain.KindBigPlan)...)
	return bp
}

func vacationCmd() *cobra.Command {
	vac := &cobra.Command{Use: "vacation", Short: "Manage vacations"}

	var name, start, end string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a vacation. Generation skips tasks that fall inside it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := day(start)
			if err != nil {
				return err
			}
			e, err := day(end)
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.CreateVacation, engine.CreateVacationArgs{Name: name, StartDate: s, EndDate: e})
		},
	}
	create.Flags().StringVar(&name, "name", "", "vacation name")
	create.Flags().StringVar(&start, "start", "", "first day")
	create.Flags().StringVar(&end, "end", "", "last day")
	for _, f := range []string{"name", "start", "end"} {
		_ = create.MarkFlagRequired(f)
	}

	var uName, uStart, uEnd string
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a vacation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := refID(args[0])
			if err != nil {
				return err
			}
			s, err := optDay(cmd, "start", uStart)
			if err != nil {
				return err
			}
			e, err := optDay(cmd, "end", uEnd)
			if err != nil {
				return err
			}
			return run(cmd, engine.Engine.UpdateVacation, engine.UpdateVacationArgs{
				RefID:     id,
				Name:      optString(cmd, "name", uName),
				StartDate: s,
				EndDate:   e,
			})
		},
	}
	update.Flags().StringVar(&uName, "name", "", "new name")
	update.Flags().StringVar(&uStart, "start", "", "new first day")
	update.Flags().StringVar(&uEnd, "end", "", "new last day")

	vac.AddCommand(create, update)
	vac.AddCommand(entityCmds(domain.KindVacation)...)
	return vac
}

func noteCmd() *cobra.Command {
	notes := &cobra.Command{Use: "note", Short: "Read and write entity notes"}

	var ref engine.NoteRefArgs
	var noteDomain, source string
	parseRef := func() error {
		id, err := refID(source)
		if err != nil {
			return err
		}
		ref = engine.NoteRefArgs{Domain: domain.NoteDomain(noteDomain), SourceRefID: id}
		return nil
	}
	bindRef := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&noteDomain, "domain", string(domain.NoteDomainInboxTask), "what the note belongs to, like inbox-task or person")
		cmd.Flags().StringVar(&source, "source", "", "id of the entity the note belongs to")
		_ = cmd.MarkFlagRequired("source")
	}

	var text, file string
	set := &cobra.Command{
		Use:   "set",
		Short: "Create or replace a note with plain text",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := parseRef(); err != nil {
				return err
			}
			if file != "" {
				raw, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				text = string(raw)
			}
			return run(cmd, engine.Engine.SetNote, engine.SetNoteArgs{NoteRefArgs: ref, Text: &text})
		},
	}
	bindRef(set)
	set.Flags().StringVar(&text, "text", "", "note text; blank lines separate paragraphs")
	set.Flags().StringVarP(&file, "file", "f", "", "read the note text from a file")

	show := &cobra.Command{
		Use:   "show",
		Short: "Show a note",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := parseRef(); err != nil {
				return err
			}
			return withSession(cmd.Context(), func(ctx context.Context, e engine.Engine, id engine.Identity) error {
				n, err := e.LoadNote(ctx, id, ref)
				if err != nil {
					return err
				}
				return printJSON(n)
			})
		},
	}
	bindRef(show)

	notes.AddCommand(set, show)
	return notes
}
