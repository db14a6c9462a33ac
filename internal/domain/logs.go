package domain

import "slices"

// EntitySummary is what a log entry remembers about a touched entity.
type EntitySummary struct {
	EntityTag Kind     `json:"entity_tag"`
	RefID     EntityID `json:"ref_id"`
	ParentRef EntityID `json:"parent_ref_id"`
	Name      string   `json:"name"`
	Archived  bool     `json:"archived"`
}

// SummaryOf captures e as it is now.
func SummaryOf(e Entity) EntitySummary {
	b := e.Base()
	return EntitySummary{EntityTag: e.Kind(), RefID: b.RefID, ParentRef: e.ParentRefID(), Name: EntityName(e), Archived: b.Archived}
}

// LogRecords is the OPENED -> CLOSED body shared by every run log entry.
type LogRecords struct {
	Opened          bool            `json:"opened"`
	ErrorMarker     string          `json:"error_marker,omitempty"`
	EntityCreated   []EntitySummary `json:"entity_created_records"`
	EntityUpdated   []EntitySummary `json:"entity_updated_records"`
	EntityRemoved   []EntitySummary `json:"entity_removed_records"`
	EntityArchived  []EntitySummary `json:"entity_archived_records"`
	FailedSections  []string        `json:"failed_sections,omitempty"`
	SectionMessages []string        `json:"section_messages,omitempty"`
}

func openRecords() LogRecords {
	return LogRecords{
		Opened:         true,
		EntityCreated:  []EntitySummary{},
		EntityUpdated:  []EntitySummary{},
		EntityRemoved:  []EntitySummary{},
		EntityArchived: []EntitySummary{},
	}
}

func (r LogRecords) clone() LogRecords {
	r.EntityCreated = slices.Clone(r.EntityCreated)
	r.EntityUpdated = slices.Clone(r.EntityUpdated)
	r.EntityRemoved = slices.Clone(r.EntityRemoved)
	r.EntityArchived = slices.Clone(r.EntityArchived)
	r.FailedSections = slices.Clone(r.FailedSections)
	r.SectionMessages = slices.Clone(r.SectionMessages)
	return r
}

// Touched counts every record of the entry.
func (r LogRecords) Touched() int {
	return len(r.EntityCreated) + len(r.EntityUpdated) + len(r.EntityRemoved) + len(r.EntityArchived)
}

// logEntry gives every run log entry its state machine.
type logEntry struct {
	EntityBase
	LogRecords
}

func (l *logEntry) add(ctx Ctx, name string, list *[]EntitySummary, e Entity) error {
	if !l.Opened {
		return ErrGenLogClosed
	}
	*list = append(*list, SummaryOf(e))
	l.record(ctx, name, map[string]any{"entity": Describe(e)})
	return nil
}

// Records returns what the run touched.
func (l *logEntry) Records() LogRecords { return l.LogRecords }

func (l *logEntry) AddEntityCreated(ctx Ctx, e Entity) error {
	return l.add(ctx, "AddEntityCreated", &l.EntityCreated, e)
}

func (l *logEntry) AddEntityUpdated(ctx Ctx, e Entity) error {
	return l.add(ctx, "AddEntityUpdated", &l.EntityUpdated, e)
}

func (l *logEntry) AddEntityRemoved(ctx Ctx, e Entity) error {
	return l.add(ctx, "AddEntityRemoved", &l.EntityRemoved, e)
}

func (l *logEntry) AddEntityArchived(ctx Ctx, e Entity) error {
	return l.add(ctx, "AddEntityArchived", &l.EntityArchived, e)
}

// AddSectionFailure notes a section that rolled back.
func (l *logEntry) AddSectionFailure(ctx Ctx, section, message string) error {
	if !l.Opened {
		return ErrGenLogClosed
	}
	l.FailedSections = append(l.FailedSections, section)
	l.SectionMessages = append(l.SectionMessages, message)
	l.record(ctx, "AddSectionFailure", map[string]any{"section": section})
	return nil
}

func (l *logEntry) Close(ctx Ctx) error {
	if !l.Opened {
		return ErrGenLogClosed
	}
	l.Opened = false
	l.record(ctx, "Close", nil)
	return nil
}

// CloseWithError closes an entry abandoned by a crashed run.
func (l *logEntry) CloseWithError(ctx Ctx, marker string) error {
	if !l.Opened {
		return ErrGenLogClosed
	}
	l.Opened = false
	l.ErrorMarker = marker
	l.record(ctx, "CloseWithError", map[string]any{"marker": marker})
	return nil
}

// GenLogEntry is the audit record of one generation run.
type GenLogEntry struct {
	logEntry
	GenLogRefID          EntityID            `json:"gen_log_ref_id"`
	Source               EventSource         `json:"source"`
	Today                ADate               `json:"today"`
	GenEvenIfNotModified bool                `json:"gen_even_if_not_modified"`
	Targets              []SyncTarget        `json:"gen_targets"`
	Period               RecurringTaskPeriod `json:"period,omitempty"`
	Filters              map[string][]int64  `json:"filters,omitempty"`
}

func (*GenLogEntry) Kind() Kind              { return KindGenLogEntry }
func (e *GenLogEntry) ParentRefID() EntityID { return e.GenLogRefID }

func (e *GenLogEntry) Links() Links {
	return Links{"opened": e.Opened}
}

func NewGenLogEntry(ctx Ctx, log EntityID, today ADate, genEven bool, targets []SyncTarget,
	period RecurringTaskPeriod, filters map[string][]int64) *GenLogEntry {
	return &GenLogEntry{
		logEntry:             logEntry{EntityBase: newBase(ctx), LogRecords: openRecords()},
		GenLogRefID:          log,
		Source:               ctx.Source,
		Today:                today,
		GenEvenIfNotModified: genEven,
		Targets:              slices.Clone(targets),
		Period:               period,
		Filters:              filters,
	}
}

// Clone returns a deep enough copy for a section to mutate and discard on rollback.
func (e *GenLogEntry) Clone() *GenLogEntry {
	c := *e
	c.LogRecords = e.LogRecords.clone()
	c.events = slices.Clone(e.events)
	return &c
}

// GCLogEntry is the audit record of one garbage collection run.
type GCLogEntry struct {
	logEntry
	GCLogRefID EntityID    `json:"gc_log_ref_id"`
	Source     EventSource `json:"source"`
	Today      ADate       `json:"today"`
	Targets    []GCTarget  `json:"gc_targets"`
}

func (*GCLogEntry) Kind() Kind              { return KindGCLogEntry }
func (e *GCLogEntry) ParentRefID() EntityID { return e.GCLogRefID }
func (e *GCLogEntry) Links() Links          { return Links{"opened": e.Opened} }

func NewGCLogEntry(ctx Ctx, log EntityID, today ADate, targets []GCTarget) *GCLogEntry {
	return &GCLogEntry{
		logEntry:   logEntry{EntityBase: newBase(ctx), LogRecords: openRecords()},
		GCLogRefID: log,
		Source:     ctx.Source,
		Today:      today,
		Targets:    slices.Clone(targets),
	}
}

// StatsLogEntry is the audit record of one stats run.
type StatsLogEntry struct {
	logEntry
	StatsLogRefID EntityID      `json:"stats_log_ref_id"`
	Source        EventSource   `json:"source"`
	Today         ADate         `json:"today"`
	Targets       []StatsTarget `json:"stats_targets"`
}

func (*StatsLogEntry) Kind() Kind              { return KindStatsLogEntry }
func (e *StatsLogEntry) ParentRefID() EntityID { return e.StatsLogRefID }
func (e *StatsLogEntry) Links() Links          { return Links{"opened": e.Opened} }

func NewStatsLogEntry(ctx Ctx, log EntityID, today ADate, targets []StatsTarget) *StatsLogEntry {
	return &StatsLogEntry{
		logEntry:      logEntry{EntityBase: newBase(ctx), LogRecords: openRecords()},
		StatsLogRefID: log,
		Source:        ctx.Source,
		Today:         today,
		Targets:       slices.Clone(targets),
	}
}

// StreamSyncResult is the outcome of syncing one external stream.
type StreamSyncResult struct {
	StreamRefID EntityID `json:"stream_ref_id"`
	Success     bool     `json:"success"`
	Error       string   `json:"error,omitempty"`
}

// ScheduleExternalSyncLogEntry is the audit record of one iCal sync run.
type ScheduleExternalSyncLogEntry struct {
	logEntry
	ScheduleExternalSyncLogRefID EntityID           `json:"schedule_external_sync_log_ref_id"`
	Source                       EventSource        `json:"source"`
	Today                        ADate              `json:"today"`
	SyncEvenIfNotModified        bool               `json:"sync_even_if_not_modified"`
	FilterStreamRefIDs           []EntityID         `json:"filter_stream_ref_ids,omitempty"`
	PerStreamResults             []StreamSyncResult `json:"per_stream_results"`
}

func (*ScheduleExternalSyncLogEntry) Kind() Kind { return KindScheduleExternalSyncLogEntry }

func (e *ScheduleExternalSyncLogEntry) ParentRefID() EntityID { return e.ScheduleExternalSyncLogRefID }
func (e *ScheduleExternalSyncLogEntry) Links() Links          { return Links{"opened": e.Opened} }

func NewScheduleExternalSyncLogEntry(ctx Ctx, log EntityID, today ADate, syncEven bool, streams []EntityID) *ScheduleExternalSyncLogEntry {
	return &ScheduleExternalSyncLogEntry{
		logEntry:                     logEntry{EntityBase: newBase(ctx), LogRecords: openRecords()},
		ScheduleExternalSyncLogRefID: log,
		Source:                       ctx.Source,
		Today:                        today,
		SyncEvenIfNotModified:        syncEven,
		FilterStreamRefIDs:           slices.Clone(streams),
		PerStreamResults:             []StreamSyncResult{},
	}
}

func (e *ScheduleExternalSyncLogEntry) MarkSuccess(ctx Ctx, stream EntityID) error {
	return e.markStream(ctx, StreamSyncResult{StreamRefID: stream, Success: true})
}

func (e *ScheduleExternalSyncLogEntry) MarkError(ctx Ctx, stream EntityID, err error) error {
	return e.markStream(ctx, StreamSyncResult{StreamRefID: stream, Error: err.Error()})
}

func (e *ScheduleExternalSyncLogEntry) markStream(ctx Ctx, res StreamSyncResult) error {
	if !e.Opened {
		return ErrGenLogClosed
	}
	e.PerStreamResults = append(e.PerStreamResults, res)
	e.record(ctx, "MarkStream", map[string]any{"stream_ref_id": res.StreamRefID, "success": res.Success})
	return nil
}

// Clone returns a copy a stream can mutate and discard on rollback.
func (e *ScheduleExternalSyncLogEntry) Clone() *ScheduleExternalSyncLogEntry {
	c := *e
	c.LogRecords = e.LogRecords.clone()
	c.PerStreamResults = slices.Clone(e.PerStreamResults)
	c.events = slices.Clone(e.events)
	return &c
}
