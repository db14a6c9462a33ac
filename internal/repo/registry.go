package repo

import (
	"fmt"
	"sort"

	"jupiter/internal/domain"
)

// Descriptor declares how one entity kind is stored.
type Descriptor struct {
	Kind       domain.Kind
	ParentKind domain.Kind
	// Links are the indexed columns filled from Entity.Links.
	Links []string
	New   func() domain.Entity
	// Trunk kinds have exactly one row per parent.
	Trunk bool
}

// Table is the storage table of the kind.
func (d Descriptor) Table() string { return string(d.Kind) }

func (d Descriptor) hasColumn(col string) bool {
	switch col {
	case "ref_id", "parent_ref_id", "archived", "version":
		return true
	}
	for _, l := range d.Links {
		if l == col {
			return true
		}
	}
	return false
}

var (
	bucketLinks = []string{"period", "timeline", "right_now"}
	eventLinks  = []string{"schedule_stream_ref_id", "external_uid"}
	blockLinks  = []string{"namespace", "source_entity_ref_id"}
	logLinks    = []string{"opened"}
)

func trunk(kind domain.Kind, newFn func() domain.Entity, links ...string) Descriptor {
	return Descriptor{Kind: kind, ParentKind: domain.KindWorkspace, Links: links, New: newFn, Trunk: true}
}

var registry = map[domain.Kind]Descriptor{}

func register(ds ...Descriptor) {
	for _, d := range ds {
		if _, dup := registry[d.Kind]; dup {
			panic(fmt.Sprintf("repo: kind %s registered twice", d.Kind))
		}
		registry[d.Kind] = d
	}
}

func init() {
	register(
		Descriptor{Kind: domain.KindUser, Links: []string{"email_address"}, New: func() domain.Entity { return &domain.User{} }},
		Descriptor{Kind: domain.KindWorkspace, Links: []string{"owner_ref_id"}, New: func() domain.Entity { return &domain.Workspace{} }},

		trunk(domain.KindProjectCollection, func() domain.Entity { return &domain.ProjectCollection{} }),
		trunk(domain.KindInboxTaskCollection, func() domain.Entity { return &domain.InboxTaskCollection{} }),
		trunk(domain.KindHabitCollection, func() domain.Entity { return &domain.HabitCollection{} }),
		trunk(domain.KindChoreCollection, func() domain.Entity { return &domain.ChoreCollection{} }),
		trunk(domain.KindBigPlanCollection, func() domain.Entity { return &domain.BigPlanCollection{} }),
		trunk(domain.KindVacationCollection, func() domain.Entity { return &domain.VacationCollection{} }),
		trunk(domain.KindMetricCollection, func() domain.Entity { return &domain.MetricCollection{} }, "collection_project_ref_id"),
		trunk(domain.KindPersonCollection, func() domain.Entity { return &domain.PersonCollection{} }, "catch_up_project_ref_id"),
		trunk(domain.KindWorkingMemCollection, func() domain.Entity { return &domain.WorkingMemCollection{} }, "cleanup_project_ref_id"),
		trunk(domain.KindTimePlanDomain, func() domain.Entity { return &domain.TimePlanDomain{} }, "planning_task_project_ref_id"),
		trunk(domain.KindJournalCollection, func() domain.Entity { return &domain.JournalCollection{} }, "writing_task_project_ref_id"),
		trunk(domain.KindPushIntegrationGroup, func() domain.Entity { return &domain.PushIntegrationGroup{} }),
		trunk(domain.KindScheduleDomain, func() domain.Entity { return &domain.ScheduleDomain{} }),
		trunk(domain.KindTimeEventDomain, func() domain.Entity { return &domain.TimeEventDomain{} }),
		trunk(domain.KindNoteCollection, func() domain.Entity { return &domain.NoteCollection{} }),
		trunk(domain.KindGenLog, func() domain.Entity { return &domain.GenLog{} }),
		trunk(domain.KindGCLog, func() domain.Entity { return &domain.GCLog{} }),
		trunk(domain.KindStatsLog, func() domain.Entity { return &domain.StatsLog{} }),
		trunk(domain.KindScheduleExternalSyncLog, func() domain.Entity { return &domain.ScheduleExternalSyncLog{} }),
		Descriptor{Kind: domain.KindSlackTaskCollection, ParentKind: domain.KindPushIntegrationGroup, Trunk: true,
			Links: []string{"generation_project_ref_id"}, New: func() domain.Entity { return &domain.SlackTaskCollection{} }},
		Descriptor{Kind: domain.KindEmailTaskCollection, ParentKind: domain.KindPushIntegrationGroup, Trunk: true,
			Links: []string{"generation_project_ref_id"}, New: func() domain.Entity { return &domain.EmailTaskCollection{} }},

		Descriptor{Kind: domain.KindProject, ParentKind: domain.KindProjectCollection,
			Links: []string{"parent_project_ref_id"}, New: func() domain.Entity { return &domain.Project{} }},
		Descriptor{Kind: domain.KindInboxTask, ParentKind: domain.KindInboxTaskCollection,
			Links: []string{"source", "source_entity_ref_id", "project_ref_id", "status", "recurring_timeline", "recurring_repeat_index"},
			New:   func() domain.Entity { return &domain.InboxTask{} }},
		Descriptor{Kind: domain.KindHabit, ParentKind: domain.KindHabitCollection,
			Links: []string{"project_ref_id"}, New: func() domain.Entity { return &domain.Habit{} }},
		Descriptor{Kind: domain.KindChore, ParentKind: domain.KindChoreCollection,
			Links: []string{"project_ref_id"}, New: func() domain.Entity { return &domain.Chore{} }},
		Descriptor{Kind: domain.KindBigPlan, ParentKind: domain.KindBigPlanCollection,
			Links: []string{"project_ref_id", "status"}, New: func() domain.Entity { return &domain.BigPlan{} }},
		Descriptor{Kind: domain.KindVacation, ParentKind: domain.KindVacationCollection,
			New: func() domain.Entity { return &domain.Vacation{} }},
		Descriptor{Kind: domain.KindMetric, ParentKind: domain.KindMetricCollection,
			New: func() domain.Entity { return &domain.Metric{} }},
		Descriptor{Kind: domain.KindMetricEntry, ParentKind: domain.KindMetric,
			New: func() domain.Entity { return &domain.MetricEntry{} }},
		Descriptor{Kind: domain.KindPerson, ParentKind: domain.KindPersonCollection,
			New: func() domain.Entity { return &domain.Person{} }},
		Descriptor{Kind: domain.KindWorkingMem, ParentKind: domain.KindWorkingMemCollection,
			Links: bucketLinks, New: func() domain.Entity { return &domain.WorkingMem{} }},
		Descriptor{Kind: domain.KindTimePlan, ParentKind: domain.KindTimePlanDomain,
			Links: append(append([]string{}, bucketLinks...), "source"), New: func() domain.Entity { return &domain.TimePlan{} }},
		Descriptor{Kind: domain.KindJournal, ParentKind: domain.KindJournalCollection,
			Links: append(append([]string{}, bucketLinks...), "source"), New: func() domain.Entity { return &domain.Journal{} }},
		Descriptor{Kind: domain.KindSlackTask, ParentKind: domain.KindSlackTaskCollection,
			New: func() domain.Entity { return &domain.SlackTask{} }},
		Descriptor{Kind: domain.KindEmailTask, ParentKind: domain.KindEmailTaskCollection,
			New: func() domain.Entity { return &domain.EmailTask{} }},
		Descriptor{Kind: domain.KindScheduleStream, ParentKind: domain.KindScheduleDomain,
			Links: []string{"source"}, New: func() domain.Entity { return &domain.ScheduleStream{} }},
		Descriptor{Kind: domain.KindScheduleEventInDay, ParentKind: domain.KindScheduleDomain,
			Links: eventLinks, New: func() domain.Entity { return &domain.ScheduleEventInDay{} }},
		Descriptor{Kind: domain.KindScheduleEventFullDays, ParentKind: domain.KindScheduleDomain,
			Links: eventLinks, New: func() domain.Entity { return &domain.ScheduleEventFullDays{} }},
		Descriptor{Kind: domain.KindTimeEventInDayBlock, ParentKind: domain.KindTimeEventDomain,
			Links: blockLinks, New: func() domain.Entity { return &domain.TimeEventInDayBlock{} }},
		Descriptor{Kind: domain.KindTimeEventFullDaysBlock, ParentKind: domain.KindTimeEventDomain,
			Links: append(append([]string{}, blockLinks...), "start_date"), New: func() domain.Entity { return &domain.TimeEventFullDaysBlock{} }},
		Descriptor{Kind: domain.KindNote, ParentKind: domain.KindNoteCollection,
			Links: []string{"domain", "source_entity_ref_id"}, New: func() domain.Entity { return &domain.Note{} }},
		Descriptor{Kind: domain.KindGenLogEntry, ParentKind: domain.KindGenLog,
			Links: logLinks, New: func() domain.Entity { return &domain.GenLogEntry{} }},
		Descriptor{Kind: domain.KindGCLogEntry, ParentKind: domain.KindGCLog,
			Links: logLinks, New: func() domain.Entity { return &domain.GCLogEntry{} }},
		Descriptor{Kind: domain.KindStatsLogEntry, ParentKind: domain.KindStatsLog,
			Links: logLinks, New: func() domain.Entity { return &domain.StatsLogEntry{} }},
		Descriptor{Kind: domain.KindScheduleExternalSyncLogEntry, ParentKind: domain.KindScheduleExternalSyncLog,
			Links: logLinks, New: func() domain.Entity { return &domain.ScheduleExternalSyncLogEntry{} }},
	)
}

// Describe returns the storage declaration of kind.
func Describe(kind domain.Kind) (Descriptor, error) {
	d, ok := registry[kind]
	if !ok {
		return Descriptor{}, fmt.Errorf("no storage declared for kind %q", kind)
	}
	return d, nil
}

// Kinds lists every declared kind in a stable order.
func Kinds() []domain.Kind {
	out := make([]domain.Kind, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
