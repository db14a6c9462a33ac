package gen

import (
	"context"
	"fmt"

	"jupiter/internal/domain"
	"jupiter/internal/repo"
	"jupiter/internal/schedule"
	"jupiter/internal/stats"
	"jupiter/internal/uow"
)

func bucketFor(period domain.RecurringTaskPeriod, day, rightNow domain.ADate) domain.PeriodBucket {
	first, end := schedule.Bounds(period, day.ToDate())
	if rightNow.IsZero() {
		rightNow = first
	}
	return domain.PeriodBucket{
		Period:    period,
		Timeline:  schedule.Timeline(period, day.ToDate()),
		RightNow:  rightNow,
		StartDate: first,
		EndDate:   end,
	}
}

func (r *run) workingMem(ctx context.Context) error {
	coll, err := uow.For[*domain.WorkingMemCollection](r.u).LoadByParent(ctx, r.ws.RefID)
	if err != nil {
		return err
	}
	if !r.args.wantsPeriod(coll.GenerationPeriod) {
		return nil
	}
	bucket := bucketFor(coll.GenerationPeriod, r.args.Today, r.args.RealToday)
	mems := uow.For[*domain.WorkingMem](r.u)
	found, err := mems.FindAllGeneric(ctx, repo.Query{
		Parent:        coll.RefID,
		AllowArchived: true,
		Filter:        map[string]any{"timeline": bucket.Timeline},
	})
	if err != nil {
		return err
	}
	var mem *domain.WorkingMem
	if len(found) > 0 {
		mem = found[0]
	} else {
		if mem, err = domain.NewWorkingMem(r.ectx, coll.RefID, bucket); err != nil {
			return err
		}
		if _, err := mems.Create(ctx, mem); err != nil {
			return err
		}
		if err := r.rep.EntityCreated(ctx, mem); err != nil {
			return err
		}
		if err := r.createNote(ctx, domain.NoteDomainWorkingMem, mem.RefID); err != nil {
			return err
		}
	}
	if mem.Archived {
		return nil
	}

	existing, err := r.derivedTasks(ctx, domain.SourceWorkingMemCleanup, []domain.EntityID{mem.RefID})
	if err != nil {
		return err
	}
	g := domain.GeneratedTask{
		Project:        coll.CleanupProjectRefID,
		Name:           mem.CleanupTaskName(),
		Eisen:          domain.EisenRegular,
		Difficulty:     domain.DifficultyEasy,
		ActionableDate: mem.EndDate,
		DueDate:        mem.EndDate,
		Timeline:       mem.Timeline,
		GenRightNow:    r.args.Today,
	}
	_, err = r.upsertTask(ctx, index(existing)[taskKey{source: mem.RefID, timeline: mem.Timeline}],
		latest(mem.LastModifiedTime, coll.LastModifiedTime),
		func() (*domain.InboxTask, error) {
			return domain.NewInboxTaskForWorkingMemCleanup(r.ectx, r.tasks, mem.RefID, g)
		},
		func(t *domain.InboxTask) error { return t.UpdateLinkToWorkingMemCleanup(r.ectx, g) })
	return err
}

func (r *run) timePlans(ctx context.Context) error {
	d, err := uow.For[*domain.TimePlanDomain](r.u).LoadByParent(ctx, r.ws.RefID)
	if err != nil {
		return err
	}
	plans := uow.For[*domain.TimePlan](r.u)
	for _, period := range d.Periods {
		if !r.args.wantsPeriod(period) {
			continue
		}
		advance := d.InAdvanceDays(period)
		bucket := bucketFor(period, r.args.Today.AddDays(advance), domain.ADate{})
		found, err := plans.FindAllGeneric(ctx, repo.Query{
			Parent:        d.RefID,
			AllowArchived: true,
			Filter:        map[string]any{"period": string(period), "timeline": bucket.Timeline},
		})
		if err != nil {
			return err
		}
		plan := pickPlan(found)
		if plan == nil && d.GenerationApproach.ShouldGeneratePlan() {
			if plan, err = domain.NewTimePlan(r.ectx, d.RefID, domain.PlanSourceGenerated, bucket); err != nil {
				return err
			}
			if _, err := plans.Create(ctx, plan); err != nil {
				return err
			}
			if err := r.rep.EntityCreated(ctx, plan); err != nil {
				return err
			}
			if err := r.createNote(ctx, domain.NoteDomainTimePlan, plan.RefID); err != nil {
				return err
			}
		}
		if plan == nil || plan.Archived || !d.GenerationApproach.ShouldGenerateTask() {
			continue
		}
		existing, err := r.derivedTasks(ctx, domain.SourceTimePlan, []domain.EntityID{plan.RefID})
		if err != nil {
			return err
		}
		g := domain.GeneratedTask{
			Project:        d.PlanningTaskProjectRefID,
			Name:           plan.PlanningTaskName(),
			Eisen:          domain.EisenImportant,
			Difficulty:     domain.DifficultyEasy,
			ActionableDate: plan.StartDate.AddDays(-advance),
			DueDate:        plan.StartDate,
			Timeline:       plan.Timeline,
			GenRightNow:    plan.RightNow,
		}
		_, err = r.upsertTask(ctx, index(existing)[taskKey{source: plan.RefID, timeline: plan.Timeline}],
			latest(plan.LastModifiedTime, d.LastModifiedTime),
			func() (*domain.InboxTask, error) { return domain.NewInboxTaskForTimePlan(r.ectx, r.tasks, plan.RefID, g) },
			func(t *domain.InboxTask) error { return t.UpdateLinkToTimePlan(r.ectx, g) })
		if err != nil {
			return fmt.Errorf("time plan %s: %w", plan.Timeline, err)
		}
	}
	return nil
}

// pickPlan prefers a live plan of the bucket over an archived one.
func pickPlan[T domain.Entity](found []T) T {
	var out T
	for _, p := range found {
		if !p.Base().Archived {
			return p
		}
		out = p
	}
	return out
}

func (r *run) journals(ctx context.Context) error {
	coll, err := uow.For[*domain.JournalCollection](r.u).LoadByParent(ctx, r.ws.RefID)
	if err != nil {
		return err
	}
	journals := uow.For[*domain.Journal](r.u)
	for _, period := range coll.Periods {
		if !r.args.wantsPeriod(period) {
			continue
		}
		advance := coll.InAdvanceDays(period)
		bucket := bucketFor(period, r.args.Today.AddDays(advance), domain.ADate{})
		found, err := journals.FindAllGeneric(ctx, repo.Query{
			Parent:        coll.RefID,
			AllowArchived: true,
			Filter:        map[string]any{"period": string(period), "timeline": bucket.Timeline},
		})
		if err != nil {
			return err
		}
		j := pickPlan(found)
		if j == nil && coll.GenerationApproach.ShouldGeneratePlan() {
			if j, err = domain.NewJournal(r.ectx, coll.RefID, domain.PlanSourceGenerated, bucket); err != nil {
				return err
			}
			if _, err := journals.Create(ctx, j); err != nil {
				return err
			}
			if err := r.rep.EntityCreated(ctx, j); err != nil {
				return err
			}
			if err := r.createNote(ctx, domain.NoteDomainJournal, j.RefID); err != nil {
				return err
			}
			if err := stats.RefreshJournalStats(ctx, r.u, r.ectx, r.reports, r.ws, j, r.args.RealToday); err != nil {
				return err
			}
		}
		if j == nil || j.Archived || !coll.GenerationApproach.ShouldGenerateTask() {
			continue
		}
		existing, err := r.derivedTasks(ctx, domain.SourceJournal, []domain.EntityID{j.RefID})
		if err != nil {
			return err
		}
		g := domain.GeneratedTask{
			Project:        coll.WritingTaskProjectRefID,
			Name:           j.WritingTaskName(),
			Eisen:          domain.EisenRegular,
			Difficulty:     domain.DifficultyEasy,
			ActionableDate: j.EndDate,
			DueDate:        j.EndDate,
			Timeline:       j.Timeline,
			GenRightNow:    j.RightNow,
		}
		_, err = r.upsertTask(ctx, index(existing)[taskKey{source: j.RefID, timeline: j.Timeline}],
			latest(j.LastModifiedTime, coll.LastModifiedTime),
			func() (*domain.InboxTask, error) { return domain.NewInboxTaskForJournal(r.ectx, r.tasks, j.RefID, g) },
			func(t *domain.InboxTask) error { return t.UpdateLinkToJournal(r.ectx, g) })
		if err != nil {
			return fmt.Errorf("journal %s: %w", j.Timeline, err)
		}
	}
	return nil
}
