package domain

import (
	"fmt"
	"strconv"
	"time"
)

// EntityID is the surrogate key of a persisted entity.
type EntityID int64

// BadRefID marks an entity that has not been persisted yet.
const BadRefID EntityID = 0

func (id EntityID) String() string { return strconv.FormatInt(int64(id), 10) }

func ParseEntityID(s string) (EntityID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return BadRefID, Invalid("ref_id", "invalid entity id %q", s)
	}
	return EntityID(v), nil
}

// Kind names an entity type. It doubles as the storage table name.
type Kind string

const (
	KindUser                         Kind = "user"
	KindWorkspace                    Kind = "workspace"
	KindProjectCollection            Kind = "project_collection"
	KindProject                      Kind = "project"
	KindInboxTaskCollection          Kind = "inbox_task_collection"
	KindInboxTask                    Kind = "inbox_task"
	KindHabitCollection              Kind = "habit_collection"
	KindHabit                        Kind = "habit"
	KindChoreCollection              Kind = "chore_collection"
	KindChore                        Kind = "chore"
	KindBigPlanCollection            Kind = "big_plan_collection"
	KindBigPlan                      Kind = "big_plan"
	KindVacationCollection           Kind = "vacation_collection"
	KindVacation                     Kind = "vacation"
	KindMetricCollection             Kind = "metric_collection"
	KindMetric                       Kind = "metric"
	KindMetricEntry                  Kind = "metric_entry"
	KindPersonCollection             Kind = "person_collection"
	KindPerson                       Kind = "person"
	KindWorkingMemCollection         Kind = "working_mem_collection"
	KindWorkingMem                   Kind = "working_mem"
	KindTimePlanDomain               Kind = "time_plan_domain"
	KindTimePlan                     Kind = "time_plan"
	KindJournalCollection            Kind = "journal_collection"
	KindJournal                      Kind = "journal"
	KindPushIntegrationGroup         Kind = "push_integration_group"
	KindSlackTaskCollection          Kind = "slack_task_collection"
	KindSlackTask                    Kind = "slack_task"
	KindEmailTaskCollection          Kind = "email_task_collection"
	KindEmailTask                    Kind = "email_task"
	KindScheduleDomain               Kind = "schedule_domain"
	KindScheduleStream               Kind = "schedule_stream"
	KindScheduleEventInDay           Kind = "schedule_event_in_day"
	KindScheduleEventFullDays        Kind = "schedule_event_full_days"
	KindTimeEventDomain              Kind = "time_event_domain"
	KindTimeEventInDayBlock          Kind = "time_event_in_day_block"
	KindTimeEventFullDaysBlock       Kind = "time_event_full_days_block"
	KindNoteCollection               Kind = "note_collection"
	KindNote                         Kind = "note"
	KindGenLog                       Kind = "gen_log"
	KindGenLogEntry                  Kind = "gen_log_entry"
	KindGCLog                        Kind = "gc_log"
	KindGCLogEntry                   Kind = "gc_log_entry"
	KindStatsLog                     Kind = "stats_log"
	KindStatsLogEntry                Kind = "stats_log_entry"
	KindScheduleExternalSyncLog      Kind = "schedule_external_sync_log"
	KindScheduleExternalSyncLogEntry Kind = "schedule_external_sync_log_entry"
)

// Ctx carries who and when for a mutation.
type Ctx struct {
	Source    EventSource
	Timestamp time.Time
}

func NewCtx(source EventSource, ts time.Time) Ctx {
	return Ctx{Source: source, Timestamp: ts.UTC()}
}

// Event is one entry of an entity's append-only history.
type Event struct {
	Name      string         `json:"name"`
	Source    EventSource    `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
	Version   int            `json:"version"`
	Data      map[string]any `json:"data,omitempty"`
}

// Links maps indexed link columns to their values.
type Links map[string]any

// Entity is implemented by every versioned domain type.
type Entity interface {
	Kind() Kind
	Base() *EntityBase
	ParentRefID() EntityID
	Links() Links
}

// Named is implemented by entities with a display name.
type Named interface {
	DisplayName() string
}

// EntityBase holds the bookkeeping fields shared by all versioned entities.
type EntityBase struct {
	RefID            EntityID       `json:"ref_id"`
	Version          int            `json:"version"`
	Archived         bool           `json:"archived"`
	ArchivalReason   ArchivalReason `json:"archival_reason,omitempty"`
	CreatedTime      time.Time      `json:"created_time"`
	LastModifiedTime time.Time      `json:"last_modified_time"`
	ArchivedTime     *time.Time     `json:"archived_time,omitempty"`

	events []Event
	dirty  bool
}

func newBase(ctx Ctx) EntityBase {
	b := EntityBase{
		RefID:            BadRefID,
		Version:          1,
		CreatedTime:      ctx.Timestamp,
		LastModifiedTime: ctx.Timestamp,
	}
	b.events = []Event{{Name: "Created", Source: ctx.Source, Timestamp: ctx.Timestamp, Version: 1}}
	b.dirty = true
	return b
}

func (b *EntityBase) Base() *EntityBase { return b }

// record appends an event. The version moves once between two saves.
func (b *EntityBase) record(ctx Ctx, name string, data map[string]any) {
	if !b.dirty {
		b.Version++
		b.dirty = true
	}
	b.LastModifiedTime = ctx.Timestamp
	b.events = append(b.events, Event{Name: name, Source: ctx.Source, Timestamp: ctx.Timestamp, Version: b.Version, Data: data})
}

// Touch records a no-op modification. Generation uses it to claim log rows.
func (b *EntityBase) Touch(ctx Ctx, name string) {
	b.record(ctx, name, nil)
}

// MarkArchived archives the entity with reason.
func (b *EntityBase) MarkArchived(ctx Ctx, reason ArchivalReason) error {
	if b.Archived {
		return nil
	}
	switch reason {
	case ArchivalReasonUser, ArchivalReasonGenerationReplaced, ArchivalReasonParentArchived, ArchivalReasonExternalRemoved:
	default:
		return Invalid("archival_reason", "unknown reason %q", string(reason))
	}
	ts := ctx.Timestamp
	b.Archived = true
	b.ArchivalReason = reason
	b.ArchivedTime = &ts
	b.record(ctx, "Archived", map[string]any{"reason": string(reason)})
	return nil
}

// Events returns the events accumulated since the entity was loaded.
func (b *EntityBase) Events() []Event { return b.events }

// MarkSaved drops accumulated events once the repository persisted them.
func (b *EntityBase) MarkSaved() {
	b.events = nil
	b.dirty = false
}

// IsDirty reports whether the entity changed since it was loaded or saved.
func (b *EntityBase) IsDirty() bool { return b.dirty }

// IsPersisted reports whether the entity has a storage id.
func (b *EntityBase) IsPersisted() bool { return b.RefID != BadRefID }

// Describe renders "kind#ref_id" for logs and error messages.
func Describe(e Entity) string {
	return fmt.Sprintf("%s#%d", e.Kind(), e.Base().RefID)
}

// EntityName returns the display name of e, or its description when unnamed.
func EntityName(e Entity) string {
	if n, ok := e.(Named); ok {
		return n.DisplayName()
	}
	return Describe(e)
}

func validateName(field, name string) error {
	if len([]rune(name)) == 0 {
		return Invalid(field, "must not be empty")
	}
	if len([]rune(name)) > 500 {
		return Invalid(field, "must be at most 500 characters")
	}
	return nil
}

func optionalRef(id EntityID) any {
	if id == BadRefID {
		return nil
	}
	return int64(id)
}

func optionalDate(d ADate) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

// TruncateName cuts s to the longest name validateName accepts.
func TruncateName(s string) string {
	r := []rune(s)
	if len(r) <= 500 {
		return s
	}
	return string(r[:500])
}
