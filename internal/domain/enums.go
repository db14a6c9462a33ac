package domain

import "strings"

// RecurringTaskPeriod is the size of a recurrence bucket.
type RecurringTaskPeriod string

const (
	PeriodDaily     RecurringTaskPeriod = "daily"
	PeriodWeekly    RecurringTaskPeriod = "weekly"
	PeriodMonthly   RecurringTaskPeriod = "monthly"
	PeriodQuarterly RecurringTaskPeriod = "quarterly"
	PeriodYearly    RecurringTaskPeriod = "yearly"
)

// AllPeriods lists periods from smallest to largest.
var AllPeriods = []RecurringTaskPeriod{PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodQuarterly, PeriodYearly}

func (p RecurringTaskPeriod) Validate() error {
	if p.ordinal() < 0 {
		return Invalid("period", "unknown period %q", string(p))
	}
	return nil
}

func (p RecurringTaskPeriod) ordinal() int {
	for i, x := range AllPeriods {
		if x == p {
			return i
		}
	}
	return -1
}

// SmallerThan orders periods by bucket size.
func (p RecurringTaskPeriod) SmallerThan(o RecurringTaskPeriod) bool { return p.ordinal() < o.ordinal() }

// Adjective renders the period for task names ("weekly").
func (p RecurringTaskPeriod) Adjective() string { return string(p) }

// ParsePeriod accepts any letter case.
func ParsePeriod(s string) (RecurringTaskPeriod, error) {
	p := RecurringTaskPeriod(strings.ToLower(strings.TrimSpace(s)))
	return p, p.Validate()
}

type Eisen string

const (
	EisenRegular            Eisen = "regular"
	EisenImportant          Eisen = "important"
	EisenUrgent             Eisen = "urgent"
	EisenImportantAndUrgent Eisen = "important-and-urgent"
)

func (e Eisen) Validate() error {
	switch e {
	case EisenRegular, EisenImportant, EisenUrgent, EisenImportantAndUrgent:
		return nil
	}
	return Invalid("eisen", "unknown eisen %q", string(e))
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Validate() error {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return nil
	}
	return Invalid("difficulty", "unknown difficulty %q", string(d))
}

// InboxTaskSource tells what created an inbox task.
type InboxTaskSource string

const (
	SourceUser              InboxTaskSource = "user"
	SourceHabit             InboxTaskSource = "habit"
	SourceChore             InboxTaskSource = "chore"
	SourceBigPlan           InboxTaskSource = "big-plan"
	SourceMetric            InboxTaskSource = "metric"
	SourcePersonCatchUp     InboxTaskSource = "person-catch-up"
	SourcePersonBirthday    InboxTaskSource = "person-birthday"
	SourceSlackTask         InboxTaskSource = "slack-task"
	SourceEmailTask         InboxTaskSource = "email-task"
	SourceWorkingMemCleanup InboxTaskSource = "working-mem-cleanup"
	SourceJournal           InboxTaskSource = "journal"
	SourceTimePlan          InboxTaskSource = "time-plan"
)

var AllInboxTaskSources = []InboxTaskSource{
	SourceUser, SourceHabit, SourceChore, SourceBigPlan, SourceMetric, SourcePersonCatchUp, SourcePersonBirthday,
	SourceSlackTask, SourceEmailTask, SourceWorkingMemCleanup, SourceJournal, SourceTimePlan,
}

// Feature returns the workspace feature a source depends on. Empty means always available.
func (s InboxTaskSource) Feature() WorkspaceFeature {
	switch s {
	case SourceHabit:
		return FeatureHabits
	case SourceChore:
		return FeatureChores
	case SourceBigPlan:
		return FeatureBigPlans
	case SourceMetric:
		return FeatureMetrics
	case SourcePersonCatchUp, SourcePersonBirthday:
		return FeaturePersons
	case SourceSlackTask:
		return FeatureSlackTasks
	case SourceEmailTask:
		return FeatureEmailTasks
	case SourceWorkingMemCleanup:
		return FeatureWorkingMem
	case SourceJournal:
		return FeatureJournals
	case SourceTimePlan:
		return FeatureTimePlans
	default:
		return ""
	}
}

// AllowUserChanges reports whether the user may edit generated fields directly.
func (s InboxTaskSource) AllowUserChanges() bool {
	return s == SourceUser || s == SourceBigPlan
}

type InboxTaskStatus string

const (
	StatusNotStartedGen InboxTaskStatus = "not-started-gen"
	StatusNotStarted    InboxTaskStatus = "not-started"
	StatusInProgress    InboxTaskStatus = "in-progress"
	StatusBlocked       InboxTaskStatus = "blocked"
	StatusNotDone       InboxTaskStatus = "not-done"
	StatusDone          InboxTaskStatus = "done"
)

var AllInboxTaskStatuses = []InboxTaskStatus{
	StatusNotStartedGen, StatusNotStarted, StatusInProgress, StatusBlocked, StatusNotDone, StatusDone,
}

func (s InboxTaskStatus) Validate() error {
	for _, x := range AllInboxTaskStatuses {
		if x == s {
			return nil
		}
	}
	return Invalid("status", "unknown status %q", string(s))
}

func (s InboxTaskStatus) IsCompleted() bool { return s == StatusDone || s == StatusNotDone }
func (s InboxTaskStatus) IsWorking() bool   { return s == StatusInProgress || s == StatusBlocked }
func (s InboxTaskStatus) IsAccepted() bool  { return s != StatusNotStartedGen }

type BigPlanStatus string

const (
	BigPlanNotStarted BigPlanStatus = "not-started"
	BigPlanInProgress BigPlanStatus = "in-progress"
	BigPlanBlocked    BigPlanStatus = "blocked"
	BigPlanNotDone    BigPlanStatus = "not-done"
	BigPlanDone       BigPlanStatus = "done"
)

func (s BigPlanStatus) Validate() error {
	switch s {
	case BigPlanNotStarted, BigPlanInProgress, BigPlanBlocked, BigPlanNotDone, BigPlanDone:
		return nil
	}
	return Invalid("status", "unknown big plan status %q", string(s))
}

func (s BigPlanStatus) IsCompleted() bool { return s == BigPlanDone || s == BigPlanNotDone }

type ArchivalReason string

const (
	ArchivalReasonUser               ArchivalReason = "user"
	ArchivalReasonGenerationReplaced ArchivalReason = "generation-replaced"
	ArchivalReasonParentArchived     ArchivalReason = "parent-archived"
	ArchivalReasonExternalRemoved    ArchivalReason = "external-removed"
)

// EventSource names the surface that caused a mutation.
type EventSource string

const (
	EventSourceCLI   EventSource = "cli"
	EventSourceWeb   EventSource = "web"
	EventSourceCron  EventSource = "cron"
	EventSourceSlack EventSource = "slack"
	EventSourceEmail EventSource = "email"
)

type ScheduleStreamSource string

const (
	StreamSourceUser         ScheduleStreamSource = "user"
	StreamSourceExternalICal ScheduleStreamSource = "external-ical"
)

type NoteDomain string

const (
	NoteDomainInboxTask             NoteDomain = "inbox-task"
	NoteDomainBigPlan               NoteDomain = "big-plan"
	NoteDomainPerson                NoteDomain = "person"
	NoteDomainWorkingMem            NoteDomain = "working-mem"
	NoteDomainTimePlan              NoteDomain = "time-plan"
	NoteDomainJournal               NoteDomain = "journal"
	NoteDomainScheduleEventInDay    NoteDomain = "schedule-event-in-day"
	NoteDomainScheduleEventFullDays NoteDomain = "schedule-event-full-days"
)

type TimeEventNamespace string

const (
	NamespaceScheduleEventInDay    TimeEventNamespace = "schedule-event-in-day"
	NamespaceScheduleFullDaysBlock TimeEventNamespace = "schedule-full-days-block"
	NamespaceInboxTask             TimeEventNamespace = "inbox-task"
	NamespacePersonBirthday        TimeEventNamespace = "person-birthday"
	NamespaceVacation              TimeEventNamespace = "vacation"
)

// GenerationApproach controls what a time plan domain or journal collection generates.
type GenerationApproach string

const (
	GenApproachNone     GenerationApproach = "none"
	GenApproachPlanOnly GenerationApproach = "plan-only"
	GenApproachTaskOnly GenerationApproach = "task-only"
	GenApproachBoth     GenerationApproach = "both"
)

func (g GenerationApproach) Validate() error {
	switch g {
	case GenApproachNone, GenApproachPlanOnly, GenApproachTaskOnly, GenApproachBoth:
		return nil
	}
	return Invalid("generation_approach", "unknown approach %q", string(g))
}

func (g GenerationApproach) ShouldGeneratePlan() bool {
	return g == GenApproachPlanOnly || g == GenApproachBoth
}

func (g GenerationApproach) ShouldGenerateTask() bool {
	return g == GenApproachTaskOnly || g == GenApproachBoth
}

// SyncTarget is a generation section.
type SyncTarget string

const (
	TargetWorkingMem SyncTarget = "working-mem"
	TargetTimePlans  SyncTarget = "time-plans"
	TargetHabits     SyncTarget = "habits"
	TargetChores     SyncTarget = "chores"
	TargetJournals   SyncTarget = "journals"
	TargetMetrics    SyncTarget = "metrics"
	TargetPersons    SyncTarget = "persons"
	TargetSlackTasks SyncTarget = "slack-tasks"
	TargetEmailTasks SyncTarget = "email-tasks"
)

// AllSyncTargets is the order in which generation visits sections.
var AllSyncTargets = []SyncTarget{
	TargetWorkingMem, TargetTimePlans, TargetHabits, TargetChores, TargetJournals,
	TargetMetrics, TargetPersons, TargetSlackTasks, TargetEmailTasks,
}

func (t SyncTarget) Feature() WorkspaceFeature {
	switch t {
	case TargetWorkingMem:
		return FeatureWorkingMem
	case TargetTimePlans:
		return FeatureTimePlans
	case TargetHabits:
		return FeatureHabits
	case TargetChores:
		return FeatureChores
	case TargetJournals:
		return FeatureJournals
	case TargetMetrics:
		return FeatureMetrics
	case TargetPersons:
		return FeaturePersons
	case TargetSlackTasks:
		return FeatureSlackTasks
	case TargetEmailTasks:
		return FeatureEmailTasks
	}
	return ""
}

func (t SyncTarget) Validate() error {
	if t.Feature() == "" {
		return Invalid("target", "unknown sync target %q", string(t))
	}
	return nil
}

// StatsTarget is a stats section.
type StatsTarget string

const (
	StatsTargetBigPlans     StatsTarget = "big-plans"
	StatsTargetJournals     StatsTarget = "journals"
	StatsTargetGamification StatsTarget = "gamification"
)

var AllStatsTargets = []StatsTarget{StatsTargetBigPlans, StatsTargetJournals, StatsTargetGamification}

func (t StatsTarget) Validate() error {
	switch t {
	case StatsTargetBigPlans, StatsTargetJournals, StatsTargetGamification:
		return nil
	}
	return Invalid("target", "unknown stats target %q", string(t))
}

// GCTarget is a garbage collection section.
type GCTarget string

const (
	GCTargetInboxTasks GCTarget = "inbox-tasks"
	GCTargetBigPlans   GCTarget = "big-plans"
	GCTargetWorkingMem GCTarget = "working-mem"
)

var AllGCTargets = []GCTarget{GCTargetInboxTasks, GCTargetBigPlans, GCTargetWorkingMem}

func (t GCTarget) Validate() error {
	switch t {
	case GCTargetInboxTasks, GCTargetBigPlans, GCTargetWorkingMem:
		return nil
	}
	return Invalid("target", "unknown gc target %q", string(t))
}
