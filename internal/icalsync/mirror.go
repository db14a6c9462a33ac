package icalsync

import (
	"context"
	"time"

	"jupiter/internal/cascade"
	"jupiter/internal/domain"
	"jupiter/internal/progress"
	"jupiter/internal/repo"
	"jupiter/internal/uow"
)

// mirror upserts the events of one calendar into one stream.
type mirror struct {
	ectx       domain.Ctx
	u          *uow.UnitOfWork
	stream     *domain.ScheduleStream
	timeDomain domain.EntityID
	notes      domain.EntityID
	window     Window
	syncEven   bool
	rep        progress.Reporter
	cascade    cascade.Service

	inDay       map[string]*domain.ScheduleEventInDay
	fullDays    map[string]*domain.ScheduleEventFullDays
	inDayBlocks map[domain.EntityID]*domain.TimeEventInDayBlock
	fullBlocks  map[domain.EntityID]*domain.TimeEventFullDaysBlock
	eventNotes  map[domain.EntityID]*domain.Note
}

func (m *mirror) apply(ctx context.Context, cal Calendar) error {
	if m.stream.UpdateFromCalendar(m.ectx, cal.Name) {
		if _, err := uow.For[*domain.ScheduleStream](m.u).Save(ctx, m.stream); err != nil {
			return err
		}
		if err := m.rep.EntityUpdated(ctx, m.stream); err != nil {
			return err
		}
	}
	if err := m.load(ctx); err != nil {
		return err
	}

	seenInDay := map[string]bool{}
	seenFullDays := map[string]bool{}
	for _, ev := range cal.Events {
		var err error
		if ev.FullDay {
			seenFullDays[ev.Key] = true
			err = m.upsertFullDays(ctx, ev)
		} else {
			seenInDay[ev.Key] = true
			err = m.upsertInDay(ctx, ev)
		}
		if err != nil {
			return err
		}
	}

	for uid, e := range m.inDay {
		if seenInDay[uid] {
			continue
		}
		if b := m.inDayBlocks[e.RefID]; b != nil && !m.window.Contains(b.StartDate) {
			continue
		}
		if err := m.cascade.Archive(ctx, m.u, m.ectx, domain.KindScheduleEventInDay, e.RefID, domain.ArchivalReasonExternalRemoved); err != nil {
			return err
		}
	}
	for uid, e := range m.fullDays {
		if seenFullDays[uid] {
			continue
		}
		if b := m.fullBlocks[e.RefID]; b != nil && !m.window.Contains(b.StartDate) {
			continue
		}
		if err := m.cascade.Archive(ctx, m.u, m.ectx, domain.KindScheduleEventFullDays, e.RefID, domain.ArchivalReasonExternalRemoved); err != nil {
			return err
		}
	}
	return nil
}

// load indexes the live events of the stream with their blocks and notes.
func (m *mirror) load(ctx context.Context) error {
	byStream := repo.Query{
		Parent: m.stream.ScheduleDomainRefID,
		Filter: map[string]any{"schedule_stream_ref_id": int64(m.stream.RefID)},
	}
	inDay, err := uow.For[*domain.ScheduleEventInDay](m.u).FindAllGeneric(ctx, byStream)
	if err != nil {
		return err
	}
	fullDays, err := uow.For[*domain.ScheduleEventFullDays](m.u).FindAllGeneric(ctx, byStream)
	if err != nil {
		return err
	}
	m.inDay = make(map[string]*domain.ScheduleEventInDay, len(inDay))
	for _, e := range inDay {
		m.inDay[e.ExternalUID] = e
	}
	m.fullDays = make(map[string]*domain.ScheduleEventFullDays, len(fullDays))
	for _, e := range fullDays {
		m.fullDays[e.ExternalUID] = e
	}

	inDayIDs, fullIDs := ids(inDay), ids(fullDays)
	m.inDayBlocks = map[domain.EntityID]*domain.TimeEventInDayBlock{}
	if len(inDayIDs) > 0 {
		blocks, err := uow.For[*domain.TimeEventInDayBlock](m.u).FindAllGeneric(ctx, repo.Query{
			Parent: m.timeDomain,
			Filter: map[string]any{"namespace": string(domain.NamespaceScheduleEventInDay), "source_entity_ref_id": inDayIDs},
		})
		if err != nil {
			return err
		}
		for _, b := range blocks {
			m.inDayBlocks[b.SourceEntityRefID] = b
		}
	}
	m.fullBlocks = map[domain.EntityID]*domain.TimeEventFullDaysBlock{}
	if len(fullIDs) > 0 {
		blocks, err := uow.For[*domain.TimeEventFullDaysBlock](m.u).FindAllGeneric(ctx, repo.Query{
			Parent: m.timeDomain,
			Filter: map[string]any{"namespace": string(domain.NamespaceScheduleFullDaysBlock), "source_entity_ref_id": fullIDs},
		})
		if err != nil {
			return err
		}
		for _, b := range blocks {
			m.fullBlocks[b.SourceEntityRefID] = b
		}
	}

	m.eventNotes = map[domain.EntityID]*domain.Note{}
	for nd, sources := range map[domain.NoteDomain][]int64{
		domain.NoteDomainScheduleEventInDay:    inDayIDs,
		domain.NoteDomainScheduleEventFullDays: fullIDs,
	} {
		if len(sources) == 0 {
			continue
		}
		notes, err := uow.For[*domain.Note](m.u).FindAllGeneric(ctx, repo.Query{
			Parent: m.notes,
			Filter: map[string]any{"domain": string(nd), "source_entity_ref_id": sources},
		})
		if err != nil {
			return err
		}
		for _, n := range notes {
			m.eventNotes[n.SourceEntityRefID] = n
		}
	}
	return nil
}

func ids[T domain.Entity](es []T) []int64 {
	out := make([]int64, len(es))
	for i, e := range es {
		out[i] = int64(e.Base().RefID)
	}
	return out
}

// unchanged reports whether the remote says nothing moved since the stored copy was written.
func (m *mirror) unchanged(stored domain.Entity, ev Event) bool {
	if m.syncEven || ev.LastModified.IsZero() {
		return false
	}
	return !ev.LastModified.After(stored.Base().LastModifiedTime)
}

func inDayShape(ev Event) (domain.ADate, string, int) {
	start := ev.Start.UTC()
	mins := int(ev.End.Sub(ev.Start) / time.Minute)
	mins = min(max(mins, 1), domain.MaxInDayDurationMins)
	return domain.DateOf(start), domain.TimeInDayOf(start), mins
}

func fullDaysShape(ev Event) (domain.ADate, int) {
	days := int(ev.End.Sub(ev.Start).Hours() / 24)
	return domain.DateOf(ev.Start), max(days, 1)
}

func (m *mirror) upsertInDay(ctx context.Context, ev Event) error {
	day, at, mins := inDayShape(ev)
	events := uow.For[*domain.ScheduleEventInDay](m.u)
	blocks := uow.For[*domain.TimeEventInDayBlock](m.u)
	e := m.inDay[ev.Key]
	if e == nil {
		e, err := domain.NewScheduleEventInDayFromExternalICal(m.ectx, m.stream.ScheduleDomainRefID, m.stream.RefID, ev.Name, ev.Key)
		if err != nil {
			return err
		}
		if _, err := events.Create(ctx, e); err != nil {
			return err
		}
		if err := m.rep.EntityCreated(ctx, e); err != nil {
			return err
		}
		b, err := domain.NewTimeEventInDayBlock(m.ectx, m.timeDomain, domain.NamespaceScheduleEventInDay, e.RefID, day, at, mins)
		if err != nil {
			return err
		}
		if _, err := blocks.Create(ctx, b); err != nil {
			return err
		}
		if err := m.rep.EntityCreated(ctx, b); err != nil {
			return err
		}
		_, err = m.syncNote(ctx, domain.NoteDomainScheduleEventInDay, e.RefID, ev.Description)
		return err
	}
	if m.unchanged(e, ev) {
		return nil
	}

	changed := false
	if b := m.inDayBlocks[e.RefID]; b != nil {
		moved, err := b.Update(m.ectx, day, at, mins)
		if err != nil {
			return err
		}
		if moved {
			if _, err := blocks.Save(ctx, b); err != nil {
				return err
			}
			if err := m.rep.EntityUpdated(ctx, b); err != nil {
				return err
			}
			changed = true
		}
	} else {
		b, err := domain.NewTimeEventInDayBlock(m.ectx, m.timeDomain, domain.NamespaceScheduleEventInDay, e.RefID, day, at, mins)
		if err != nil {
			return err
		}
		if _, err := blocks.Create(ctx, b); err != nil {
			return err
		}
		if err := m.rep.EntityCreated(ctx, b); err != nil {
			return err
		}
		changed = true
	}
	noted, err := m.syncNote(ctx, domain.NoteDomainScheduleEventInDay, e.RefID, ev.Description)
	if err != nil {
		return err
	}
	if !changed && !noted && e.Name == domain.TruncateName(ev.Name) {
		return nil
	}
	if err := e.UpdateFromExternalICal(m.ectx, ev.Name); err != nil {
		return err
	}
	if _, err := events.Save(ctx, e); err != nil {
		return err
	}
	return m.rep.EntityUpdated(ctx, e)
}

func (m *mirror) upsertFullDays(ctx context.Context, ev Event) error {
	day, days := fullDaysShape(ev)
	events := uow.For[*domain.ScheduleEventFullDays](m.u)
	blocks := uow.For[*domain.TimeEventFullDaysBlock](m.u)
	e := m.fullDays[ev.Key]
	if e == nil {
		e, err := domain.NewScheduleEventFullDaysFromExternalICal(m.ectx, m.stream.ScheduleDomainRefID, m.stream.RefID, ev.Name, ev.Key)
		if err != nil {
			return err
		}
		if _, err := events.Create(ctx, e); err != nil {
			return err
		}
		if err := m.rep.EntityCreated(ctx, e); err != nil {
			return err
		}
		b, err := domain.NewTimeEventFullDaysBlock(m.ectx, m.timeDomain, domain.NamespaceScheduleFullDaysBlock, e.RefID, day, days)
		if err != nil {
			return err
		}
		if _, err := blocks.Create(ctx, b); err != nil {
			return err
		}
		if err := m.rep.EntityCreated(ctx, b); err != nil {
			return err
		}
		_, err = m.syncNote(ctx, domain.NoteDomainScheduleEventFullDays, e.RefID, ev.Description)
		return err
	}
	if m.unchanged(e, ev) {
		return nil
	}

	changed := false
	if b := m.fullBlocks[e.RefID]; b != nil {
		moved, err := b.Update(m.ectx, day, days)
		if err != nil {
			return err
		}
		if moved {
			if _, err := blocks.Save(ctx, b); err != nil {
				return err
			}
			if err := m.rep.EntityUpdated(ctx, b); err != nil {
				return err
			}
			changed = true
		}
	} else {
		b, err := domain.NewTimeEventFullDaysBlock(m.ectx, m.timeDomain, domain.NamespaceScheduleFullDaysBlock, e.RefID, day, days)
		if err != nil {
			return err
		}
		if _, err := blocks.Create(ctx, b); err != nil {
			return err
		}
		if err := m.rep.EntityCreated(ctx, b); err != nil {
			return err
		}
		changed = true
	}
	noted, err := m.syncNote(ctx, domain.NoteDomainScheduleEventFullDays, e.RefID, ev.Description)
	if err != nil {
		return err
	}
	if !changed && !noted && e.Name == domain.TruncateName(ev.Name) {
		return nil
	}
	if err := e.UpdateFromExternalICal(m.ectx, ev.Name); err != nil {
		return err
	}
	if _, err := events.Save(ctx, e); err != nil {
		return err
	}
	return m.rep.EntityUpdated(ctx, e)
}

// syncNote keeps the event's note in line with its description. A description that went
// empty blanks the note instead of archiving it. It reports whether anything was written.
func (m *mirror) syncNote(ctx context.Context, nd domain.NoteDomain, event domain.EntityID, description string) (bool, error) {
	notes := uow.For[*domain.Note](m.u)
	n := m.eventNotes[event]
	if n == nil {
		if description == "" {
			return false, nil
		}
		n, err := domain.NewNote(m.ectx, m.notes, nd, event, domain.TextContent(description))
		if err != nil {
			return false, err
		}
		if _, err := notes.Create(ctx, n); err != nil {
			return false, err
		}
		m.eventNotes[event] = n
		return true, m.rep.EntityCreated(ctx, n)
	}
	changed, err := n.UpdateContent(m.ectx, domain.TextContent(description))
	if err != nil || !changed {
		return false, err
	}
	if _, err := notes.Save(ctx, n); err != nil {
		return false, err
	}
	return true, m.rep.EntityUpdated(ctx, n)
}
