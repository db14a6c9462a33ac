package domain

// EdgeKind is the cardinality of an ownership edge.
type EdgeKind int

const (
	ContainsMany EdgeKind = iota
	ContainsOne
	OwnsOne
	OwnsAtMostOne
)

func (k EdgeKind) String() string {
	switch k {
	case ContainsMany:
		return "contains-many"
	case ContainsOne:
		return "contains-one"
	case OwnsOne:
		return "owns-one"
	default:
		return "owns-at-most-one"
	}
}

// Edge declares that an owner kind owns the Target entities matching Filter.
// ByParent selects targets whose parent link is the owner.
// A Guarded edge makes its owner unsafe to remove while any live target remains.
type Edge struct {
	Kind     EdgeKind
	Target   Kind
	ByParent bool
	Filter   func(owner Entity) Links
	Guarded  bool
}

// ArchiveGuard is implemented by entities with extra rules on user archival.
type ArchiveGuard interface {
	CheckArchivable(today ADate) error
}

func bySource(sources ...InboxTaskSource) func(Entity) Links {
	return func(owner Entity) Links {
		values := make([]string, len(sources))
		for i, s := range sources {
			values[i] = string(s)
		}
		var source any = values
		if len(values) == 1 {
			source = values[0]
		}
		return Links{"source": source, "source_entity_ref_id": int64(owner.Base().RefID)}
	}
}

func byProject(owner Entity) Links {
	return Links{"project_ref_id": int64(owner.Base().RefID)}
}

func noteIn(domain NoteDomain) func(Entity) Links {
	return func(owner Entity) Links {
		return Links{"domain": string(domain), "source_entity_ref_id": int64(owner.Base().RefID)}
	}
}

func blockIn(ns TimeEventNamespace) func(Entity) Links {
	return func(owner Entity) Links {
		return Links{"namespace": string(ns), "source_entity_ref_id": int64(owner.Base().RefID)}
	}
}

func byStream(owner Entity) Links {
	return Links{"schedule_stream_ref_id": int64(owner.Base().RefID)}
}

var ownership = map[Kind][]Edge{
	KindProject: {
		{Kind: ContainsMany, Target: KindProject, Filter: func(owner Entity) Links {
			return Links{"parent_project_ref_id": int64(owner.Base().RefID)}
		}},
		{Kind: ContainsMany, Target: KindHabit, Filter: byProject},
		{Kind: ContainsMany, Target: KindChore, Filter: byProject},
		{Kind: ContainsMany, Target: KindBigPlan, Filter: byProject},
		{Kind: ContainsMany, Target: KindInboxTask, Filter: byProject, Guarded: true},
	},
	KindHabit: {
		{Kind: ContainsMany, Target: KindInboxTask, Filter: bySource(SourceHabit), Guarded: true},
	},
	KindChore: {
		{Kind: ContainsMany, Target: KindInboxTask, Filter: bySource(SourceChore), Guarded: true},
	},
	KindBigPlan: {
		{Kind: ContainsMany, Target: KindInboxTask, Filter: bySource(SourceBigPlan), Guarded: true},
		{Kind: OwnsAtMostOne, Target: KindNote, Filter: noteIn(NoteDomainBigPlan)},
	},
	KindMetric: {
		{Kind: ContainsMany, Target: KindMetricEntry, ByParent: true},
		{Kind: ContainsMany, Target: KindInboxTask, Filter: bySource(SourceMetric)},
	},
	KindPerson: {
		{Kind: ContainsMany, Target: KindInboxTask, Filter: bySource(SourcePersonCatchUp, SourcePersonBirthday)},
		{Kind: ContainsMany, Target: KindTimeEventFullDaysBlock, Filter: blockIn(NamespacePersonBirthday)},
		{Kind: OwnsAtMostOne, Target: KindNote, Filter: noteIn(NoteDomainPerson)},
	},
	KindInboxTask: {
		{Kind: OwnsAtMostOne, Target: KindNote, Filter: noteIn(NoteDomainInboxTask)},
		{Kind: ContainsMany, Target: KindTimeEventInDayBlock, Filter: blockIn(NamespaceInboxTask)},
	},
	KindWorkingMem: {
		{Kind: OwnsOne, Target: KindNote, Filter: noteIn(NoteDomainWorkingMem)},
		{Kind: ContainsMany, Target: KindInboxTask, Filter: bySource(SourceWorkingMemCleanup)},
	},
	KindTimePlan: {
		{Kind: OwnsOne, Target: KindNote, Filter: noteIn(NoteDomainTimePlan)},
		{Kind: ContainsMany, Target: KindInboxTask, Filter: bySource(SourceTimePlan)},
	},
	KindJournal: {
		{Kind: OwnsOne, Target: KindNote, Filter: noteIn(NoteDomainJournal)},
		{Kind: ContainsMany, Target: KindInboxTask, Filter: bySource(SourceJournal)},
	},
	KindSlackTask: {
		{Kind: OwnsAtMostOne, Target: KindInboxTask, Filter: bySource(SourceSlackTask)},
	},
	KindEmailTask: {
		{Kind: OwnsAtMostOne, Target: KindInboxTask, Filter: bySource(SourceEmailTask)},
	},
	KindVacation: {
		{Kind: OwnsOne, Target: KindTimeEventFullDaysBlock, Filter: blockIn(NamespaceVacation)},
	},
	KindScheduleStream: {
		{Kind: ContainsMany, Target: KindScheduleEventInDay, Filter: byStream},
		{Kind: ContainsMany, Target: KindScheduleEventFullDays, Filter: byStream},
	},
	KindScheduleEventInDay: {
		{Kind: OwnsOne, Target: KindTimeEventInDayBlock, Filter: blockIn(NamespaceScheduleEventInDay)},
		{Kind: OwnsAtMostOne, Target: KindNote, Filter: noteIn(NoteDomainScheduleEventInDay)},
	},
	KindScheduleEventFullDays: {
		{Kind: OwnsOne, Target: KindTimeEventFullDaysBlock, Filter: blockIn(NamespaceScheduleFullDaysBlock)},
		{Kind: OwnsAtMostOne, Target: KindNote, Filter: noteIn(NoteDomainScheduleEventFullDays)},
	},
}

// EdgesOf returns the ownership edges declared for kind, in declaration order.
func EdgesOf(kind Kind) []Edge { return ownership[kind] }

// Owners lists the kinds that declare at least one edge.
func Owners() []Kind {
	out := make([]Kind, 0, len(ownership))
	for k := range ownership {
		out = append(out, k)
	}
	return out
}
