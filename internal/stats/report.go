package stats

import (
	"context"
	"slices"

	"jupiter/internal/domain"
	"jupiter/internal/repo"
	"jupiter/internal/schedule"
	"jupiter/internal/uow"
)

// ReportArgs selects the window and the task sources a report covers.
type ReportArgs struct {
	Today   domain.ADate
	Start   domain.ADate
	End     domain.ADate
	Sources []domain.InboxTaskSource
}

// ReportService summarizes what happened to inbox tasks and big plans in a window.
type ReportService struct{}

func (ReportService) Report(ctx context.Context, u *uow.UnitOfWork, workspace domain.EntityID, args ReportArgs) (domain.Report, error) {
	start, end := args.Start.ToDate(), args.End.ToDate()
	report := domain.Report{
		Today:          args.Today,
		PeriodStart:    start,
		PeriodEnd:      end,
		Sources:        slices.Clone(args.Sources),
		PerSource:      map[domain.InboxTaskSource]int{},
		PerHabitDone:   map[domain.EntityID]int{},
		PerChoreDone:   map[domain.EntityID]int{},
		PerProjectDone: map[domain.EntityID]int{},
		PerPeriod:      map[domain.RecurringTaskPeriod]int{},
	}
	coll, err := uow.For[*domain.InboxTaskCollection](u).LoadByParent(ctx, workspace)
	if err != nil {
		return report, err
	}
	sources := make([]string, 0, len(args.Sources))
	for _, s := range args.Sources {
		sources = append(sources, string(s))
	}
	q := repo.Query{Parent: coll.RefID, AllowArchived: true}
	if args.Sources != nil {
		q.Filter = map[string]any{"source": sources}
	}
	tasks, err := uow.For[*domain.InboxTask](u).FindAllGeneric(ctx, q)
	if err != nil {
		return report, err
	}
	in := func(day domain.ADate) bool { return !day.Before(start) && !day.After(end) }
	for _, t := range tasks {
		counted := false
		if in(domain.DateOf(t.CreatedTime)) {
			report.InboxTasks.Created++
			counted = true
		}
		switch {
		case t.IsCompletedIn(start, end):
			counted = true
			if t.Status == domain.StatusNotDone {
				report.InboxTasks.NotDone++
				break
			}
			report.InboxTasks.Done++
			report.PerSource[t.Source]++
			report.PerProjectDone[t.ProjectRefID]++
			switch t.Source {
			case domain.SourceHabit:
				report.PerHabitDone[t.SourceEntityRefID]++
			case domain.SourceChore:
				report.PerChoreDone[t.SourceEntityRefID]++
			}
			if t.RecurringTimeline != "" {
				if b, err := schedule.ParseTimeline(t.RecurringTimeline); err == nil {
					report.PerPeriod[b.Period]++
				}
			}
		case t.Status.IsWorking() && t.WorkingTime != nil && in(domain.DateOf(*t.WorkingTime)):
			report.InboxTasks.Working++
			counted = true
		case t.Status.IsAccepted() && !t.Status.IsCompleted() && in(domain.DateOf(t.LastModifiedTime)):
			report.InboxTasks.Accepted++
			counted = true
		}
		if counted {
			report.InboxTasks.TotalCount++
		}
	}

	plansColl, err := uow.For[*domain.BigPlanCollection](u).LoadByParent(ctx, workspace)
	if err != nil {
		return report, err
	}
	plans, err := uow.For[*domain.BigPlan](u).FindAll(ctx, plansColl.RefID, true)
	if err != nil {
		return report, err
	}
	for _, p := range plans {
		if p.Status == domain.BigPlanDone && p.CompletedTime != nil && in(domain.DateOf(*p.CompletedTime)) {
			report.BigPlansDone++
		}
		if p.WorkingTime != nil && in(domain.DateOf(*p.WorkingTime)) {
			report.BigPlansStarted++
		}
	}
	return report, nil
}

// EnabledSources lists the task sources whose feature is on in ws.
func EnabledSources(ws *domain.Workspace) []domain.InboxTaskSource {
	var out []domain.InboxTaskSource
	for _, s := range domain.AllInboxTaskSources {
		if f := s.Feature(); f == "" || ws.IsFeatureAvailable(f) {
			out = append(out, s)
		}
	}
	return out
}
