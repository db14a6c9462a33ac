package domain

import (
	"net/url"
	"regexp"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

const defaultStreamColor = "#3b82f6"

type ScheduleStream struct {
	EntityBase
	ScheduleDomainRefID EntityID             `json:"schedule_domain_ref_id"`
	Source              ScheduleStreamSource `json:"source"`
	Name                string               `json:"name"`
	Color               string               `json:"color"`
	SourceICalURL       string               `json:"source_ical_url,omitempty"`
}

func (*ScheduleStream) Kind() Kind              { return KindScheduleStream }
func (s *ScheduleStream) ParentRefID() EntityID { return s.ScheduleDomainRefID }
func (s *ScheduleStream) DisplayName() string   { return s.Name }

func (s *ScheduleStream) Links() Links {
	return Links{"source": string(s.Source)}
}

func validateColor(color string) (string, error) {
	if color == "" {
		return defaultStreamColor, nil
	}
	if !colorPattern.MatchString(color) {
		return "", Invalid("color", "expected #rrggbb, got %q", color)
	}
	return color, nil
}

func NewScheduleStreamForUser(ctx Ctx, domain EntityID, name, color string) (*ScheduleStream, error) {
	if err := validateName("name", name); err != nil {
		return nil, err
	}
	color, err := validateColor(color)
	if err != nil {
		return nil, err
	}
	return &ScheduleStream{EntityBase: newBase(ctx), ScheduleDomainRefID: domain, Source: StreamSourceUser, Name: name, Color: color}, nil
}

// NewScheduleStreamFromExternalICal creates a stream fed by a remote calendar. Its name is replaced on first sync.
func NewScheduleStreamFromExternalICal(ctx Ctx, domain EntityID, name, color, sourceURL string) (*ScheduleStream, error) {
	u, err := url.Parse(sourceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "webcal") || u.Host == "" {
		return nil, Invalid("source_ical_url", "invalid calendar url %q", sourceURL)
	}
	if name == "" {
		name = u.Host
	}
	if err := validateName("name", name); err != nil {
		return nil, err
	}
	color, err = validateColor(color)
	if err != nil {
		return nil, err
	}
	return &ScheduleStream{
		EntityBase:          newBase(ctx),
		ScheduleDomainRefID: domain,
		Source:              StreamSourceExternalICal,
		Name:                name,
		Color:               color,
		SourceICalURL:       sourceURL,
	}, nil
}

// FetchURL maps webcal:// to https:// for fetching.
func (s *ScheduleStream) FetchURL() string {
	u, err := url.Parse(s.SourceICalURL)
	if err != nil {
		return s.SourceICalURL
	}
	if u.Scheme == "webcal" {
		u.Scheme = "https"
	}
	return u.String()
}

func (s *ScheduleStream) Update(ctx Ctx, name, color string) error {
	if err := validateName("name", name); err != nil {
		return err
	}
	color, err := validateColor(color)
	if err != nil {
		return err
	}
	s.Name, s.Color = name, color
	s.record(ctx, "Updated", nil)
	return nil
}

// UpdateFromCalendar refreshes the name carried by X-WR-CALNAME. It reports whether anything changed.
func (s *ScheduleStream) UpdateFromCalendar(ctx Ctx, calName string) bool {
	calName = TruncateName(calName)
	if calName == "" || calName == s.Name {
		return false
	}
	s.Name = calName
	s.record(ctx, "UpdateFromCalendar", map[string]any{"name": calName})
	return true
}

// ScheduleEvent holds what in-day and full-days events share.
type ScheduleEvent struct {
	ScheduleDomainRefID EntityID             `json:"schedule_domain_ref_id"`
	ScheduleStreamRefID EntityID             `json:"schedule_stream_ref_id"`
	Source              ScheduleStreamSource `json:"source"`
	Name                string               `json:"name"`
	ExternalUID         string               `json:"external_uid,omitempty"`
}

func (e ScheduleEvent) links() Links {
	var uid any
	if e.ExternalUID != "" {
		uid = e.ExternalUID
	}
	return Links{"schedule_stream_ref_id": optionalRef(e.ScheduleStreamRefID), "external_uid": uid}
}

// CanBeModifiedIndependently is false for events mirrored from an external calendar.
func (e ScheduleEvent) CanBeModifiedIndependently() bool {
	return e.Source != StreamSourceExternalICal
}

func newScheduleEvent(domain, stream EntityID, source ScheduleStreamSource, name, uid string) (ScheduleEvent, error) {
	if err := validateName("name", name); err != nil {
		return ScheduleEvent{}, err
	}
	if source == StreamSourceExternalICal && uid == "" {
		return ScheduleEvent{}, Invalid("external_uid", "external events need a uid")
	}
	return ScheduleEvent{ScheduleDomainRefID: domain, ScheduleStreamRefID: stream, Source: source, Name: name, ExternalUID: uid}, nil
}

type ScheduleEventInDay struct {
	EntityBase
	ScheduleEvent
}

func (*ScheduleEventInDay) Kind() Kind              { return KindScheduleEventInDay }
func (e *ScheduleEventInDay) ParentRefID() EntityID { return e.ScheduleDomainRefID }
func (e *ScheduleEventInDay) Links() Links          { return e.ScheduleEvent.links() }
func (e *ScheduleEventInDay) DisplayName() string   { return e.Name }

func NewScheduleEventInDay(ctx Ctx, domain, stream EntityID, name string) (*ScheduleEventInDay, error) {
	ev, err := newScheduleEvent(domain, stream, StreamSourceUser, name, "")
	if err != nil {
		return nil, err
	}
	return &ScheduleEventInDay{EntityBase: newBase(ctx), ScheduleEvent: ev}, nil
}

func NewScheduleEventInDayFromExternalICal(ctx Ctx, domain, stream EntityID, name, uid string) (*ScheduleEventInDay, error) {
	ev, err := newScheduleEvent(domain, stream, StreamSourceExternalICal, TruncateName(name), uid)
	if err != nil {
		return nil, err
	}
	return &ScheduleEventInDay{EntityBase: newBase(ctx), ScheduleEvent: ev}, nil
}

// Update is the user edit path. External events refuse it.
func (e *ScheduleEventInDay) Update(ctx Ctx, name string) error {
	if !e.CanBeModifiedIndependently() {
		return ErrCannotModifyLinked
	}
	if err := validateName("name", name); err != nil {
		return err
	}
	e.Name = name
	e.record(ctx, "Updated", nil)
	return nil
}

func (e *ScheduleEventInDay) UpdateFromExternalICal(ctx Ctx, name string) error {
	name = TruncateName(name)
	if err := validateName("name", name); err != nil {
		return err
	}
	e.Name = name
	e.record(ctx, "UpdateFromExternalICal", nil)
	return nil
}

type ScheduleEventFullDays struct {
	EntityBase
	ScheduleEvent
}

func (*ScheduleEventFullDays) Kind() Kind              { return KindScheduleEventFullDays }
func (e *ScheduleEventFullDays) ParentRefID() EntityID { return e.ScheduleDomainRefID }
func (e *ScheduleEventFullDays) Links() Links          { return e.ScheduleEvent.links() }
func (e *ScheduleEventFullDays) DisplayName() string   { return e.Name }

func NewScheduleEventFullDays(ctx Ctx, domain, stream EntityID, name string) (*ScheduleEventFullDays, error) {
	ev, err := newScheduleEvent(domain, stream, StreamSourceUser, name, "")
	if err != nil {
		return nil, err
	}
	return &ScheduleEventFullDays{EntityBase: newBase(ctx), ScheduleEvent: ev}, nil
}

func NewScheduleEventFullDaysFromExternalICal(ctx Ctx, domain, stream EntityID, name, uid string) (*ScheduleEventFullDays, error) {
	ev, err := newScheduleEvent(domain, stream, StreamSourceExternalICal, TruncateName(name), uid)
	if err != nil {
		return nil, err
	}
	return &ScheduleEventFullDays{EntityBase: newBase(ctx), ScheduleEvent: ev}, nil
}

func (e *ScheduleEventFullDays) Update(ctx Ctx, name string) error {
	if !e.CanBeModifiedIndependently() {
		return ErrCannotModifyLinked
	}
	if err := validateName("name", name); err != nil {
		return err
	}
	e.Name = name
	e.record(ctx, "Updated", nil)
	return nil
}

func (e *ScheduleEventFullDays) UpdateFromExternalICal(ctx Ctx, name string) error {
	name = TruncateName(name)
	if err := validateName("name", name); err != nil {
		return err
	}
	e.Name = name
	e.record(ctx, "UpdateFromExternalICal", nil)
	return nil
}
