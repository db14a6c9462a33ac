package engine

import (
	"context"

	"jupiter/internal/domain"
	"jupiter/internal/repo"
	"jupiter/internal/uow"
)

type CreateScheduleStreamArgs struct {
	Name  string `json:"name,omitempty"`
	Color string `json:"color,omitempty"`
	// SourceICalURL makes the stream a mirror of a remote calendar.
	SourceICalURL string `json:"source_ical_url,omitempty" validate:"omitempty,url"`
}

func (e Engine) CreateScheduleStream(ctx context.Context, id Identity, args CreateScheduleStreamArgs) (*domain.ScheduleStream, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.ScheduleStream
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureSchedule); err != nil {
			return err
		}
		sd, err := trunk[*domain.ScheduleDomain](ctx, s)
		if err != nil {
			return err
		}
		var st *domain.ScheduleStream
		if args.SourceICalURL != "" {
			st, err = domain.NewScheduleStreamFromExternalICal(s.ectx, sd.RefID, args.Name, args.Color, args.SourceICalURL)
		} else {
			st, err = domain.NewScheduleStreamForUser(s.ectx, sd.RefID, args.Name, args.Color)
		}
		if err != nil {
			return err
		}
		out, err = uow.For[*domain.ScheduleStream](s.u).Create(ctx, st)
		return err
	})
	return out, err
}

type UpdateScheduleStreamArgs struct {
	RefID domain.EntityID `json:"ref_id" validate:"required"`
	Name  *string         `json:"name,omitempty"`
	Color *string         `json:"color,omitempty"`
}

func (e Engine) UpdateScheduleStream(ctx context.Context, id Identity, args UpdateScheduleStreamArgs) (*domain.ScheduleStream, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.ScheduleStream
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureSchedule); err != nil {
			return err
		}
		st, err := load[*domain.ScheduleStream](ctx, s, args.RefID, false)
		if err != nil {
			return err
		}
		if err := st.Update(s.ectx, deref(args.Name, st.Name), deref(args.Color, st.Color)); err != nil {
			return err
		}
		out, err = uow.For[*domain.ScheduleStream](s.u).Save(ctx, st)
		return err
	})
	return out, err
}

// userStream loads a stream the user may add events to.
func userStream(ctx context.Context, s scope, refID domain.EntityID) (*domain.ScheduleStream, error) {
	st, err := load[*domain.ScheduleStream](ctx, s, refID, false)
	if err != nil {
		return nil, err
	}
	if st.Source != domain.StreamSourceUser {
		return nil, domain.ErrCannotModifyLinked
	}
	return st, nil
}

type CreateScheduleEventInDayArgs struct {
	StreamRefID    domain.EntityID `json:"schedule_stream_ref_id" validate:"required"`
	Name           string          `json:"name" validate:"required"`
	StartDate      domain.ADate    `json:"start_date"`
	StartTimeInDay string          `json:"start_time_in_day" validate:"required"`
	DurationMins   int             `json:"duration_mins" validate:"required,min=1,max=1440"`
}

type ScheduleEventInDayView struct {
	Event *domain.ScheduleEventInDay  `json:"event"`
	Block *domain.TimeEventInDayBlock `json:"block"`
}

// CreateScheduleEventInDay adds an event and its in-day block to a user stream.
func (e Engine) CreateScheduleEventInDay(ctx context.Context, id Identity, args CreateScheduleEventInDayArgs) (ScheduleEventInDayView, error) {
	if err := check(args); err != nil {
		return ScheduleEventInDayView{}, err
	}
	var out ScheduleEventInDayView
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureSchedule); err != nil {
			return err
		}
		st, err := userStream(ctx, s, args.StreamRefID)
		if err != nil {
			return err
		}
		ted, err := trunk[*domain.TimeEventDomain](ctx, s)
		if err != nil {
			return err
		}
		ev, err := domain.NewScheduleEventInDay(s.ectx, st.ScheduleDomainRefID, st.RefID, args.Name)
		if err != nil {
			return err
		}
		if out.Event, err = uow.For[*domain.ScheduleEventInDay](s.u).Create(ctx, ev); err != nil {
			return err
		}
		b, err := domain.NewTimeEventInDayBlock(s.ectx, ted.RefID, domain.NamespaceScheduleEventInDay, out.Event.RefID,
			args.StartDate, args.StartTimeInDay, args.DurationMins)
		if err != nil {
			return err
		}
		out.Block, err = uow.For[*domain.TimeEventInDayBlock](s.u).Create(ctx, b)
		return err
	})
	return out, err
}

type UpdateScheduleEventInDayArgs struct {
	RefID          domain.EntityID `json:"ref_id" validate:"required"`
	Name           *string         `json:"name,omitempty"`
	StartDate      *domain.ADate   `json:"start_date,omitempty"`
	StartTimeInDay *string         `json:"start_time_in_day,omitempty"`
	DurationMins   *int            `json:"duration_mins,omitempty"`
}

// UpdateScheduleEventInDay edits a user event. Events mirrored from a calendar refuse edits.
func (e Engine) UpdateScheduleEventInDay(ctx context.Context, id Identity, args UpdateScheduleEventInDayArgs) (ScheduleEventInDayView, error) {
	if err := check(args); err != nil {
		return ScheduleEventInDayView{}, err
	}
	var out ScheduleEventInDayView
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureSchedule); err != nil {
			return err
		}
		ev, err := load[*domain.ScheduleEventInDay](ctx, s, args.RefID, false)
		if err != nil {
			return err
		}
		if err := ev.Update(s.ectx, deref(args.Name, ev.Name)); err != nil {
			return err
		}
		if out.Event, err = uow.For[*domain.ScheduleEventInDay](s.u).Save(ctx, ev); err != nil {
			return err
		}
		blocks := uow.For[*domain.TimeEventInDayBlock](s.u)
		b, err := blocks.FindFirst(ctx, blockOf(domain.NamespaceScheduleEventInDay, ev.RefID))
		if err != nil {
			return err
		}
		changed, err := b.Update(s.ectx, deref(args.StartDate, b.StartDate), deref(args.StartTimeInDay, b.StartTimeInDay),
			deref(args.DurationMins, b.DurationMins))
		if err != nil {
			return err
		}
		if changed {
			if b, err = blocks.Save(ctx, b); err != nil {
				return err
			}
		}
		out.Block = b
		return nil
	})
	return out, err
}

type CreateScheduleEventFullDaysArgs struct {
	StreamRefID  domain.EntityID `json:"schedule_stream_ref_id" validate:"required"`
	Name         string          `json:"name" validate:"required"`
	StartDate    domain.ADate    `json:"start_date"`
	DurationDays int             `json:"duration_days" validate:"required,min=1"`
}

type ScheduleEventFullDaysView struct {
	Event *domain.ScheduleEventFullDays  `json:"event"`
	Block *domain.TimeEventFullDaysBlock `json:"block"`
}

func (e Engine) CreateScheduleEventFullDays(ctx context.Context, id Identity, args CreateScheduleEventFullDaysArgs) (ScheduleEventFullDaysView, error) {
	if err := check(args); err != nil {
		return ScheduleEventFullDaysView{}, err
	}
	var out ScheduleEventFullDaysView
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureSchedule); err != nil {
			return err
		}
		st, err := userStream(ctx, s, args.StreamRefID)
		if err != nil {
			return err
		}
		ted, err := trunk[*domain.TimeEventDomain](ctx, s)
		if err != nil {
			return err
		}
		ev, err := domain.NewScheduleEventFullDays(s.ectx, st.ScheduleDomainRefID, st.RefID, args.Name)
		if err != nil {
			return err
		}
		if out.Event, err = uow.For[*domain.ScheduleEventFullDays](s.u).Create(ctx, ev); err != nil {
			return err
		}
		b, err := domain.NewTimeEventFullDaysBlock(s.ectx, ted.RefID, domain.NamespaceScheduleFullDaysBlock, out.Event.RefID,
			args.StartDate, args.DurationDays)
		if err != nil {
			return err
		}
		out.Block, err = uow.For[*domain.TimeEventFullDaysBlock](s.u).Create(ctx, b)
		return err
	})
	return out, err
}

type UpdateScheduleEventFullDaysArgs struct {
	RefID        domain.EntityID `json:"ref_id" validate:"required"`
	Name         *string         `json:"name,omitempty"`
	StartDate    *domain.ADate   `json:"start_date,omitempty"`
	DurationDays *int            `json:"duration_days,omitempty"`
}

func (e Engine) UpdateScheduleEventFullDays(ctx context.Context, id Identity, args UpdateScheduleEventFullDaysArgs) (ScheduleEventFullDaysView, error) {
	if err := check(args); err != nil {
		return ScheduleEventFullDaysView{}, err
	}
	var out ScheduleEventFullDaysView
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if err := s.ws.CheckFeature(domain.FeatureSchedule); err != nil {
			return err
		}
		ev, err := load[*domain.ScheduleEventFullDays](ctx, s, args.RefID, false)
		if err != nil {
			return err
		}
		if err := ev.Update(s.ectx, deref(args.Name, ev.Name)); err != nil {
			return err
		}
		if out.Event, err = uow.For[*domain.ScheduleEventFullDays](s.u).Save(ctx, ev); err != nil {
			return err
		}
		blocks := uow.For[*domain.TimeEventFullDaysBlock](s.u)
		b, err := blocks.FindFirst(ctx, blockOf(domain.NamespaceScheduleFullDaysBlock, ev.RefID))
		if err != nil {
			return err
		}
		changed, err := b.Update(s.ectx, deref(args.StartDate, b.StartDate), deref(args.DurationDays, b.DurationDays))
		if err != nil {
			return err
		}
		if changed {
			if b, err = blocks.Save(ctx, b); err != nil {
				return err
			}
		}
		out.Block = b
		return nil
	})
	return out, err
}

func blockOf(ns domain.TimeEventNamespace, source domain.EntityID) repo.Query {
	return repo.Query{Filter: map[string]any{"namespace": string(ns), "source_entity_ref_id": int64(source)}}
}

type CalendarArgs struct {
	Start domain.ADate `json:"start"`
	End   domain.ADate `json:"end"`
}

type CalendarView struct {
	InDay    []*domain.TimeEventInDayBlock    `json:"in_day"`
	FullDays []*domain.TimeEventFullDaysBlock `json:"full_days"`
}

// Calendar returns the time blocks between two days, the coming week by default.
func (e Engine) Calendar(ctx context.Context, id Identity, args CalendarArgs) (CalendarView, error) {
	start := args.Start
	if start.IsZero() {
		start = e.today()
	}
	end := args.End
	if end.IsZero() {
		end = start.AddDays(6)
	}
	if end.Before(start) {
		return CalendarView{}, domain.Invalid("end", "must not be before start")
	}
	out := CalendarView{InDay: []*domain.TimeEventInDayBlock{}, FullDays: []*domain.TimeEventFullDaysBlock{}}
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		ted, err := trunk[*domain.TimeEventDomain](ctx, s)
		if err != nil {
			return err
		}
		inDay, err := uow.For[*domain.TimeEventInDayBlock](s.u).FindAll(ctx, ted.RefID, false)
		if err != nil {
			return err
		}
		for _, b := range inDay {
			if !b.StartDate.Before(start) && !b.StartDate.After(end) {
				out.InDay = append(out.InDay, b)
			}
		}
		fullDays, err := uow.For[*domain.TimeEventFullDaysBlock](s.u).FindAll(ctx, ted.RefID, false)
		if err != nil {
			return err
		}
		for _, b := range fullDays {
			if !b.EndDate.Before(start) && !b.StartDate.After(end) {
				out.FullDays = append(out.FullDays, b)
			}
		}
		return nil
	})
	return out, err
}
