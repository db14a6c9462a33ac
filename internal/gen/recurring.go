package gen

import (
	"context"
	"fmt"
	"time"

	"jupiter/internal/domain"
	"jupiter/internal/repo"
	"jupiter/internal/schedule"
	"jupiter/internal/uow"
)

// sourceQuery selects the live sources under parent, narrowed by ref ids and projects.
func (r *run) sourceQuery(parent domain.EntityID, ids []domain.EntityID, byProject bool) repo.Query {
	q := repo.Query{Parent: parent, RefIDs: ids}
	if byProject && len(r.args.FilterProjectRefIDs) > 0 {
		projects := make([]int64, len(r.args.FilterProjectRefIDs))
		for i, id := range r.args.FilterProjectRefIDs {
			projects[i] = int64(id)
		}
		q.Filter = map[string]any{"project_ref_id": projects}
	}
	return q
}

func (r *run) habits(ctx context.Context) error {
	coll, err := uow.For[*domain.HabitCollection](r.u).LoadByParent(ctx, r.ws.RefID)
	if err != nil {
		return err
	}
	habits, err := uow.For[*domain.Habit](r.u).FindAllGeneric(ctx, r.sourceQuery(coll.RefID, r.args.FilterHabitRefIDs, true))
	if err != nil {
		return err
	}
	existing, err := r.derivedTasks(ctx, domain.SourceHabit, refIDs(habits))
	if err != nil {
		return err
	}
	byKey := index(existing)
	bySource := map[domain.EntityID][]*domain.InboxTask{}
	for _, t := range existing {
		bySource[t.SourceEntityRefID] = append(bySource[t.SourceEntityRefID], t)
	}

	for _, h := range habits {
		if h.Suspended || !r.args.wantsPeriod(h.GenParams.Period) {
			continue
		}
		sched, err := schedule.Get(schedule.FromGenParams(h.GenParams, h.Name, r.args.Today))
		if err != nil {
			return fmt.Errorf("habit %d: %w", h.RefID, err)
		}
		if sched.ShouldKeep {
			if err := r.habitTasks(ctx, h, sched, byKey, bySource); err != nil {
				return err
			}
		}
		if err := r.streaks.Upsert(ctx, r.u, r.ectx, h, r.args.Today, bySource[h.RefID]); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) habitTasks(ctx context.Context, h *domain.Habit, sched schedule.Schedule,
	byKey map[taskKey]*domain.InboxTask, bySource map[domain.EntityID][]*domain.InboxTask) error {
	n := h.RepeatCount()
	windows := make([]schedule.Window, n)
	start := sched.ActionableDate
	if start.IsZero() {
		start = sched.FirstDay
	}
	switch {
	case !h.HasRepeats():
		windows[0] = schedule.Window{ActionableDate: sched.ActionableDate, DueDate: sched.DueDate}
	case h.RepeatsStrategy == domain.RepeatsAllSameDay:
		for i := range windows {
			windows[i] = schedule.Window{ActionableDate: sched.ActionableDate, DueDate: sched.DueDate}
		}
	default:
		windows = schedule.SpreadTasks(start, sched.DueDate, n)
	}

	for i, w := range windows {
		g := domain.GeneratedTask{
			Project:        h.ProjectRefID,
			Name:           sched.FullName,
			Eisen:          h.GenParams.Eisen,
			Difficulty:     h.GenParams.Difficulty,
			ActionableDate: w.ActionableDate,
			DueDate:        w.DueDate,
			Timeline:       sched.Timeline,
			GenRightNow:    r.args.Today,
		}
		if h.HasRepeats() {
			idx := i
			g.RepeatIndex = &idx
			g.Name = fmt.Sprintf("%s [%d/%d]", sched.FullName, i+1, n)
		}
		existing := byKey[taskKey{source: h.RefID, timeline: sched.Timeline, repeat: i}]
		t, err := r.upsertTask(ctx, existing, h.LastModifiedTime,
			func() (*domain.InboxTask, error) { return domain.NewInboxTaskForHabit(r.ectx, r.tasks, h.RefID, g) },
			func(t *domain.InboxTask) error { return t.UpdateLinkToHabit(r.ectx, g) })
		if err != nil {
			return err
		}
		if existing == nil {
			bySource[h.RefID] = append(bySource[h.RefID], t)
		}
	}

	// Repeats beyond the current count go through the regular removal path.
	kept := bySource[h.RefID][:0]
	for _, t := range bySource[h.RefID] {
		if t.RecurringTimeline == sched.Timeline && t.RepeatIndex() >= n {
			if err := r.cascade.Remove(ctx, r.u, domain.KindInboxTask, t.RefID); err != nil {
				return err
			}
			continue
		}
		kept = append(kept, t)
	}
	bySource[h.RefID] = kept
	return nil
}

func (r *run) chores(ctx context.Context) error {
	coll, err := uow.For[*domain.ChoreCollection](r.u).LoadByParent(ctx, r.ws.RefID)
	if err != nil {
		return err
	}
	chores, err := uow.For[*domain.Chore](r.u).FindAllGeneric(ctx, r.sourceQuery(coll.RefID, r.args.FilterChoreRefIDs, true))
	if err != nil {
		return err
	}
	var vacations []*domain.Vacation
	if r.ws.IsFeatureAvailable(domain.FeatureVacations) {
		vc, err := uow.For[*domain.VacationCollection](r.u).LoadByParent(ctx, r.ws.RefID)
		if err != nil {
			return err
		}
		if vacations, err = uow.For[*domain.Vacation](r.u).FindAll(ctx, vc.RefID, false); err != nil {
			return err
		}
	}
	existing, err := r.derivedTasks(ctx, domain.SourceChore, refIDs(chores))
	if err != nil {
		return err
	}
	byKey := index(existing)

	for _, c := range chores {
		if c.Suspended || !r.args.wantsPeriod(c.GenParams.Period) {
			continue
		}
		sched, err := schedule.Get(schedule.FromGenParams(c.GenParams, c.Name, r.args.Today))
		if err != nil {
			return fmt.Errorf("chore %d: %w", c.RefID, err)
		}
		if !sched.ShouldKeep || !c.IsActiveIn(sched.FirstDay, sched.EndDay) {
			continue
		}
		if !c.MustDo && onVacation(vacations, sched) {
			r.log.WithField("chore_ref_id", c.RefID).Debug("chore skipped for vacation")
			continue
		}
		g := domain.GeneratedTask{
			Project:        c.ProjectRefID,
			Name:           sched.FullName,
			Eisen:          c.GenParams.Eisen,
			Difficulty:     c.GenParams.Difficulty,
			ActionableDate: sched.ActionableDate,
			DueDate:        sched.DueDate,
			Timeline:       sched.Timeline,
			GenRightNow:    r.args.Today,
		}
		_, err = r.upsertTask(ctx, byKey[taskKey{source: c.RefID, timeline: sched.Timeline}], c.LastModifiedTime,
			func() (*domain.InboxTask, error) { return domain.NewInboxTaskForChore(r.ectx, r.tasks, c.RefID, g) },
			func(t *domain.InboxTask) error { return t.UpdateLinkToChore(r.ectx, g) })
		if err != nil {
			return err
		}
	}
	return nil
}

func onVacation(vacations []*domain.Vacation, sched schedule.Schedule) bool {
	for _, v := range vacations {
		if v.Overlaps(sched.FirstDay, sched.EndDay) {
			return true
		}
	}
	return false
}

func (r *run) metrics(ctx context.Context) error {
	coll, err := uow.For[*domain.MetricCollection](r.u).LoadByParent(ctx, r.ws.RefID)
	if err != nil {
		return err
	}
	metrics, err := uow.For[*domain.Metric](r.u).FindAll(ctx, coll.RefID, false, r.args.FilterMetricRefIDs...)
	if err != nil {
		return err
	}
	existing, err := r.derivedTasks(ctx, domain.SourceMetric, refIDs(metrics))
	if err != nil {
		return err
	}
	byKey := index(existing)

	for _, m := range metrics {
		params := m.CollectionParams
		if params == nil || !r.args.wantsPeriod(params.Period) {
			continue
		}
		sched, err := schedule.Get(schedule.FromGenParams(*params, "Collect value for "+m.Name, r.args.Today))
		if err != nil {
			return fmt.Errorf("metric %d: %w", m.RefID, err)
		}
		if !sched.ShouldKeep {
			continue
		}
		g := domain.GeneratedTask{
			Project:        coll.CollectionProjectRefID,
			Name:           sched.FullName,
			Eisen:          params.Eisen,
			Difficulty:     params.Difficulty,
			ActionableDate: sched.ActionableDate,
			DueDate:        sched.DueDate,
			Timeline:       sched.Timeline,
			GenRightNow:    r.args.Today,
		}
		_, err = r.upsertTask(ctx, byKey[taskKey{source: m.RefID, timeline: sched.Timeline}],
			latest(m.LastModifiedTime, coll.LastModifiedTime),
			func() (*domain.InboxTask, error) { return domain.NewInboxTaskForMetricCollection(r.ectx, r.tasks, m.RefID, g) },
			func(t *domain.InboxTask) error { return t.UpdateLinkToMetric(r.ectx, g) })
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *run) persons(ctx context.Context) error {
	coll, err := uow.For[*domain.PersonCollection](r.u).LoadByParent(ctx, r.ws.RefID)
	if err != nil {
		return err
	}
	persons, err := uow.For[*domain.Person](r.u).FindAll(ctx, coll.RefID, false, r.args.FilterPersonRefIDs...)
	if err != nil {
		return err
	}
	ids := refIDs(persons)
	catchUps, err := r.derivedTasks(ctx, domain.SourcePersonCatchUp, ids)
	if err != nil {
		return err
	}
	birthdays, err := r.derivedTasks(ctx, domain.SourcePersonBirthday, ids)
	if err != nil {
		return err
	}
	blocks, err := r.birthdayBlocks(ctx, ids)
	if err != nil {
		return err
	}
	catchUpByKey, birthdayByKey := index(catchUps), index(birthdays)

	for _, p := range persons {
		modified := latest(p.LastModifiedTime, coll.LastModifiedTime)
		if p.CatchUpParams != nil && r.args.wantsPeriod(p.CatchUpParams.Period) {
			if err := r.catchUp(ctx, coll, p, modified, catchUpByKey); err != nil {
				return err
			}
		}
		if p.Birthday != nil && r.args.wantsPeriod(domain.PeriodYearly) {
			if err := r.birthdays(ctx, coll, p, modified, birthdayByKey, blocks); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *run) catchUp(ctx context.Context, coll *domain.PersonCollection, p *domain.Person, modified time.Time,
	byKey map[taskKey]*domain.InboxTask) error {
	params := *p.CatchUpParams
	sched, err := schedule.Get(schedule.FromGenParams(params, "Catch up with "+p.Name, r.args.Today))
	if err != nil {
		return fmt.Errorf("person %d: %w", p.RefID, err)
	}
	if !sched.ShouldKeep {
		return nil
	}
	g := domain.GeneratedTask{
		Project:        coll.CatchUpProjectRefID,
		Name:           sched.FullName,
		Eisen:          params.Eisen,
		Difficulty:     params.Difficulty,
		ActionableDate: sched.ActionableDate,
		DueDate:        sched.DueDate,
		Timeline:       sched.Timeline,
		GenRightNow:    r.args.Today,
	}
	_, err = r.upsertTask(ctx, byKey[taskKey{source: p.RefID, timeline: sched.Timeline}], modified,
		func() (*domain.InboxTask, error) { return domain.NewInboxTaskForPersonCatchUp(r.ectx, r.tasks, p.RefID, g) },
		func(t *domain.InboxTask) error { return t.UpdateLinkToPersonCatchUp(r.ectx, g) })
	return err
}

// birthdayBlocks indexes the birthday blocks of persons by person and year.
func (r *run) birthdayBlocks(ctx context.Context, persons []domain.EntityID) (map[blockKey]*domain.TimeEventFullDaysBlock, error) {
	out := map[blockKey]*domain.TimeEventFullDaysBlock{}
	if len(persons) == 0 {
		return out, nil
	}
	ted, err := uow.For[*domain.TimeEventDomain](r.u).LoadByParent(ctx, r.ws.RefID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(persons))
	for i, id := range persons {
		ids[i] = int64(id)
	}
	found, err := uow.For[*domain.TimeEventFullDaysBlock](r.u).FindAllGeneric(ctx, repo.Query{
		Parent:        ted.RefID,
		AllowArchived: true,
		Filter: map[string]any{
			"namespace":            string(domain.NamespacePersonBirthday),
			"source_entity_ref_id": ids,
		},
	})
	if err != nil {
		return nil, err
	}
	for _, b := range found {
		out[blockKey{person: b.SourceEntityRefID, year: b.StartDate.Year()}] = b
	}
	return out, nil
}

type blockKey struct {
	person domain.EntityID
	year   int
}

// birthdays keeps a wishing task and a full-days block for each of the next BirthdayHorizonYears birthdays.
func (r *run) birthdays(ctx context.Context, coll *domain.PersonCollection, p *domain.Person, modified time.Time,
	byKey map[taskKey]*domain.InboxTask, blocks map[blockKey]*domain.TimeEventFullDaysBlock) error {
	ted, err := uow.For[*domain.TimeEventDomain](r.u).LoadByParent(ctx, r.ws.RefID)
	if err != nil {
		return err
	}
	store := uow.For[*domain.TimeEventFullDaysBlock](r.u)
	for i := 0; i < BirthdayHorizonYears; i++ {
		year := r.args.Today.Year() + i
		due := schedule.BirthdayInYear(*p.Birthday, year)
		timeline := schedule.Timeline(domain.PeriodYearly, due)
		g := domain.GeneratedTask{
			Project:        coll.CatchUpProjectRefID,
			Name:           "Wish happy birthday to " + p.Name,
			Eisen:          domain.EisenRegular,
			Difficulty:     domain.DifficultyEasy,
			ActionableDate: due.AddDays(-p.PreparationDaysCntForBirthday),
			DueDate:        due,
			Timeline:       timeline,
			GenRightNow:    due,
		}
		key := taskKey{source: p.RefID, timeline: timeline}
		t, err := r.upsertTask(ctx, byKey[key], modified,
			func() (*domain.InboxTask, error) { return domain.NewInboxTaskForPersonBirthday(r.ectx, r.tasks, p.RefID, g) },
			func(t *domain.InboxTask) error { return t.UpdateLinkToPersonBirthday(r.ectx, g) })
		if err != nil {
			return err
		}
		byKey[key] = t

		b, ok := blocks[blockKey{person: p.RefID, year: year}]
		if !ok {
			b, err = domain.NewTimeEventFullDaysBlockForBirthday(r.ectx, ted.RefID, p.RefID, due)
			if err != nil {
				return err
			}
			if _, err := store.Create(ctx, b); err != nil {
				return err
			}
			if err := r.rep.EntityCreated(ctx, b); err != nil {
				return err
			}
			blocks[blockKey{person: p.RefID, year: year}] = b
			continue
		}
		if b.Archived {
			continue
		}
		changed, err := b.Update(r.ectx, due, 1)
		if err != nil {
			return err
		}
		if !changed {
			continue
		}
		if _, err := store.Save(ctx, b); err != nil {
			return err
		}
		if err := r.rep.EntityUpdated(ctx, b); err != nil {
			return err
		}
	}
	return nil
}
