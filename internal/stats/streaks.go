package stats

import (
	"context"
	"errors"
	"fmt"

	"jupiter/internal/domain"
	"jupiter/internal/repo"
	"jupiter/internal/schedule"
	"jupiter/internal/uow"
)

// StreakRecorder keeps habit streak marks in line with the habit's inbox tasks.
type StreakRecorder struct{}

// Upsert rewrites the marks of every day in the habit's period around today from tasks.
// Tasks no longer in the list drop out of the marks. Archived tasks count: collected
// done tasks still belong to the streak.
func (StreakRecorder) Upsert(ctx context.Context, u *uow.UnitOfWork, ectx domain.Ctx, habit *domain.Habit, today domain.ADate, tasks []*domain.InboxTask) error {
	first, end := schedule.Bounds(habit.GenParams.Period, today.ToDate())
	byDay := statusesByDay(tasks, first, end)
	marks := u.StreakMarks()
	for day := first; !day.After(end); day = day.AddDays(1) {
		statuses := byDay[day.String()]
		mark, err := marks.Load(ctx, habit.RefID, day)
		switch {
		case errors.Is(err, domain.ErrEntityNotFound):
			if len(statuses) == 0 {
				continue
			}
			mark = domain.NewHabitStreakMark(ectx, habit.RefID, day)
		case err != nil:
			return err
		}
		if statuses == nil {
			statuses = map[domain.EntityID]domain.InboxTaskStatus{}
		}
		next, changed := mark.WithStatuses(ectx, statuses)
		if !changed {
			continue
		}
		if err := marks.Upsert(ctx, next); err != nil {
			return fmt.Errorf("streak mark %d/%s: %w", habit.RefID, day, err)
		}
	}
	return nil
}

// Rebuild drops every mark of the habit and derives them again from its stored tasks,
// archived ones included.
func (StreakRecorder) Rebuild(ctx context.Context, u *uow.UnitOfWork, ectx domain.Ctx, habit *domain.Habit) (int, error) {
	tasks, err := uow.For[*domain.InboxTask](u).FindAllGeneric(ctx, repo.Query{
		AllowArchived: true,
		Filter: map[string]any{
			"source":               string(domain.SourceHabit),
			"source_entity_ref_id": int64(habit.RefID),
		},
	})
	if err != nil {
		return 0, err
	}
	marks := u.StreakMarks()
	if err := marks.RemoveForHabit(ctx, habit.RefID); err != nil {
		return 0, err
	}
	byDay := map[string]domain.HabitStreakMark{}
	var order []string
	for _, t := range tasks {
		day := attributedDay(t)
		if day.IsZero() {
			continue
		}
		key := day.String()
		m, ok := byDay[key]
		if !ok {
			m = domain.NewHabitStreakMark(ectx, habit.RefID, day)
			order = append(order, key)
		}
		m.Statuses[t.RefID] = t.Status
		byDay[key] = m
	}
	for _, key := range order {
		if err := marks.Upsert(ctx, byDay[key]); err != nil {
			return 0, err
		}
	}
	return len(order), nil
}

// attributedDay is the day a habit task counts for: its due date, falling back to
// the actionable date and then to the day it was generated for.
func attributedDay(t *domain.InboxTask) domain.ADate {
	switch {
	case !t.DueDate.IsZero():
		return t.DueDate.ToDate()
	case !t.ActionableDate.IsZero():
		return t.ActionableDate.ToDate()
	}
	return t.RecurringGenRightNow.ToDate()
}

func statusesByDay(tasks []*domain.InboxTask, first, end domain.ADate) map[string]map[domain.EntityID]domain.InboxTaskStatus {
	out := map[string]map[domain.EntityID]domain.InboxTaskStatus{}
	for _, t := range tasks {
		day := attributedDay(t)
		if day.IsZero() || day.Before(first) || day.After(end) {
			continue
		}
		key := day.String()
		if out[key] == nil {
			out[key] = map[domain.EntityID]domain.InboxTaskStatus{}
		}
		out[key][t.RefID] = t.Status
	}
	return out
}
