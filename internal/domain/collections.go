package domain

// TrunkBase is embedded by per-workspace collections.
type TrunkBase struct {
	EntityBase
	WorkspaceRefID EntityID `json:"workspace_ref_id"`
}

func newTrunk(ctx Ctx, workspace EntityID) TrunkBase {
	return TrunkBase{EntityBase: newBase(ctx), WorkspaceRefID: workspace}
}

func (t *TrunkBase) ParentRefID() EntityID { return t.WorkspaceRefID }
func (t *TrunkBase) Links() Links          { return nil }

type ProjectCollection struct{ TrunkBase }

func (*ProjectCollection) Kind() Kind { return KindProjectCollection }

func NewProjectCollection(ctx Ctx, workspace EntityID) *ProjectCollection {
	return &ProjectCollection{newTrunk(ctx, workspace)}
}

type InboxTaskCollection struct{ TrunkBase }

func (*InboxTaskCollection) Kind() Kind { return KindInboxTaskCollection }

func NewInboxTaskCollection(ctx Ctx, workspace EntityID) *InboxTaskCollection {
	return &InboxTaskCollection{newTrunk(ctx, workspace)}
}

type HabitCollection struct{ TrunkBase }

func (*HabitCollection) Kind() Kind { return KindHabitCollection }

func NewHabitCollection(ctx Ctx, workspace EntityID) *HabitCollection {
	return &HabitCollection{newTrunk(ctx, workspace)}
}

type ChoreCollection struct{ TrunkBase }

func (*ChoreCollection) Kind() Kind { return KindChoreCollection }

func NewChoreCollection(ctx Ctx, workspace EntityID) *ChoreCollection {
	return &ChoreCollection{newTrunk(ctx, workspace)}
}

type BigPlanCollection struct{ TrunkBase }

func (*BigPlanCollection) Kind() Kind { return KindBigPlanCollection }

func NewBigPlanCollection(ctx Ctx, workspace EntityID) *BigPlanCollection {
	return &BigPlanCollection{newTrunk(ctx, workspace)}
}

type VacationCollection struct{ TrunkBase }

func (*VacationCollection) Kind() Kind { return KindVacationCollection }

func NewVacationCollection(ctx Ctx, workspace EntityID) *VacationCollection {
	return &VacationCollection{newTrunk(ctx, workspace)}
}

type MetricCollection struct {
	TrunkBase
	CollectionProjectRefID EntityID `json:"collection_project_ref_id"`
}

func (*MetricCollection) Kind() Kind { return KindMetricCollection }

func (c *MetricCollection) Links() Links {
	return Links{"collection_project_ref_id": optionalRef(c.CollectionProjectRefID)}
}

func NewMetricCollection(ctx Ctx, workspace, project EntityID) *MetricCollection {
	return &MetricCollection{TrunkBase: newTrunk(ctx, workspace), CollectionProjectRefID: project}
}

func (c *MetricCollection) ChangeCollectionProject(ctx Ctx, project EntityID) {
	c.CollectionProjectRefID = project
	c.record(ctx, "ChangeCollectionProject", map[string]any{"project_ref_id": project})
}

type PersonCollection struct {
	TrunkBase
	CatchUpProjectRefID EntityID `json:"catch_up_project_ref_id"`
}

func (*PersonCollection) Kind() Kind { return KindPersonCollection }

func (c *PersonCollection) Links() Links {
	return Links{"catch_up_project_ref_id": optionalRef(c.CatchUpProjectRefID)}
}

func NewPersonCollection(ctx Ctx, workspace, project EntityID) *PersonCollection {
	return &PersonCollection{TrunkBase: newTrunk(ctx, workspace), CatchUpProjectRefID: project}
}

func (c *PersonCollection) ChangeCatchUpProject(ctx Ctx, project EntityID) {
	c.CatchUpProjectRefID = project
	c.record(ctx, "ChangeCatchUpProject", map[string]any{"project_ref_id": project})
}

type WorkingMemCollection struct {
	TrunkBase
	GenerationPeriod    RecurringTaskPeriod `json:"generation_period"`
	CleanupProjectRefID EntityID            `json:"cleanup_project_ref_id"`
}

func (*WorkingMemCollection) Kind() Kind { return KindWorkingMemCollection }

func (c *WorkingMemCollection) Links() Links {
	return Links{"cleanup_project_ref_id": optionalRef(c.CleanupProjectRefID)}
}

func NewWorkingMemCollection(ctx Ctx, workspace, project EntityID) *WorkingMemCollection {
	return &WorkingMemCollection{TrunkBase: newTrunk(ctx, workspace), GenerationPeriod: PeriodDaily, CleanupProjectRefID: project}
}

func (c *WorkingMemCollection) Update(ctx Ctx, period *RecurringTaskPeriod, cleanupProject *EntityID) error {
	if period != nil {
		if *period != PeriodDaily && *period != PeriodWeekly {
			return Invalid("generation_period", "working mem rotates daily or weekly, not %s", *period)
		}
		c.GenerationPeriod = *period
	}
	if cleanupProject != nil {
		c.CleanupProjectRefID = *cleanupProject
	}
	c.record(ctx, "Updated", nil)
	return nil
}

// PlanGenSettings configures how periodic plans (time plans, journals) are generated.
type PlanGenSettings struct {
	Periods                 []RecurringTaskPeriod       `json:"periods"`
	GenerationApproach      GenerationApproach          `json:"generation_approach"`
	GenerationInAdvanceDays map[RecurringTaskPeriod]int `json:"generation_in_advance_days"`
}

func (s PlanGenSettings) Validate() error {
	if err := s.GenerationApproach.Validate(); err != nil {
		return err
	}
	seen := map[RecurringTaskPeriod]bool{}
	for _, p := range s.Periods {
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p] {
			return Invalid("periods", "duplicate period %s", p)
		}
		seen[p] = true
	}
	for p, d := range s.GenerationInAdvanceDays {
		if err := p.Validate(); err != nil {
			return err
		}
		if d < 0 || d > 365 {
			return Invalid("generation_in_advance_days", "%d days for %s is out of range", d, p)
		}
	}
	return nil
}

// InAdvanceDays returns the lead time configured for period.
func (s PlanGenSettings) InAdvanceDays(p RecurringTaskPeriod) int {
	return s.GenerationInAdvanceDays[p]
}

func (s PlanGenSettings) HasPeriod(p RecurringTaskPeriod) bool {
	for _, x := range s.Periods {
		if x == p {
			return true
		}
	}
	return false
}

type TimePlanDomain struct {
	TrunkBase
	PlanGenSettings
	PlanningTaskProjectRefID EntityID `json:"planning_task_project_ref_id"`
}

func (*TimePlanDomain) Kind() Kind { return KindTimePlanDomain }

func (d *TimePlanDomain) Links() Links {
	return Links{"planning_task_project_ref_id": optionalRef(d.PlanningTaskProjectRefID)}
}

func NewTimePlanDomain(ctx Ctx, workspace, project EntityID) *TimePlanDomain {
	return &TimePlanDomain{
		TrunkBase: newTrunk(ctx, workspace),
		PlanGenSettings: PlanGenSettings{
			Periods:                 []RecurringTaskPeriod{PeriodWeekly},
			GenerationApproach:      GenApproachBoth,
			GenerationInAdvanceDays: map[RecurringTaskPeriod]int{},
		},
		PlanningTaskProjectRefID: project,
	}
}

func (d *TimePlanDomain) Update(ctx Ctx, settings PlanGenSettings, project *EntityID) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	d.PlanGenSettings = settings
	if project != nil {
		d.PlanningTaskProjectRefID = *project
	}
	d.record(ctx, "Updated", nil)
	return nil
}

type JournalCollection struct {
	TrunkBase
	PlanGenSettings
	WritingTaskProjectRefID EntityID `json:"writing_task_project_ref_id"`
}

func (*JournalCollection) Kind() Kind { return KindJournalCollection }

func (c *JournalCollection) Links() Links {
	return Links{"writing_task_project_ref_id": optionalRef(c.WritingTaskProjectRefID)}
}

func NewJournalCollection(ctx Ctx, workspace, project EntityID) *JournalCollection {
	return &JournalCollection{
		TrunkBase: newTrunk(ctx, workspace),
		PlanGenSettings: PlanGenSettings{
			Periods:                 []RecurringTaskPeriod{PeriodWeekly, PeriodMonthly},
			GenerationApproach:      GenApproachBoth,
			GenerationInAdvanceDays: map[RecurringTaskPeriod]int{},
		},
		WritingTaskProjectRefID: project,
	}
}

func (c *JournalCollection) Update(ctx Ctx, settings PlanGenSettings, project *EntityID) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	c.PlanGenSettings = settings
	if project != nil {
		c.WritingTaskProjectRefID = *project
	}
	c.record(ctx, "Updated", nil)
	return nil
}

type PushIntegrationGroup struct{ TrunkBase }

func (*PushIntegrationGroup) Kind() Kind { return KindPushIntegrationGroup }

func NewPushIntegrationGroup(ctx Ctx, workspace EntityID) *PushIntegrationGroup {
	return &PushIntegrationGroup{newTrunk(ctx, workspace)}
}

// PushTaskCollection is embedded by the slack and email task collections.
type PushTaskCollection struct {
	EntityBase
	PushIntegrationGroupRefID EntityID `json:"push_integration_group_ref_id"`
	GenerationProjectRefID    EntityID `json:"generation_project_ref_id"`
}

func (c *PushTaskCollection) ParentRefID() EntityID { return c.PushIntegrationGroupRefID }

func (c *PushTaskCollection) Links() Links {
	return Links{"generation_project_ref_id": optionalRef(c.GenerationProjectRefID)}
}

func (c *PushTaskCollection) ChangeGenerationProject(ctx Ctx, project EntityID) {
	c.GenerationProjectRefID = project
	c.record(ctx, "ChangeGenerationProject", map[string]any{"project_ref_id": project})
}

type SlackTaskCollection struct{ PushTaskCollection }

func (*SlackTaskCollection) Kind() Kind { return KindSlackTaskCollection }

func NewSlackTaskCollection(ctx Ctx, group, project EntityID) *SlackTaskCollection {
	return &SlackTaskCollection{PushTaskCollection{EntityBase: newBase(ctx), PushIntegrationGroupRefID: group, GenerationProjectRefID: project}}
}

type EmailTaskCollection struct{ PushTaskCollection }

func (*EmailTaskCollection) Kind() Kind { return KindEmailTaskCollection }

func NewEmailTaskCollection(ctx Ctx, group, project EntityID) *EmailTaskCollection {
	return &EmailTaskCollection{PushTaskCollection{EntityBase: newBase(ctx), PushIntegrationGroupRefID: group, GenerationProjectRefID: project}}
}

type ScheduleDomain struct{ TrunkBase }

func (*ScheduleDomain) Kind() Kind { return KindScheduleDomain }

func NewScheduleDomain(ctx Ctx, workspace EntityID) *ScheduleDomain {
	return &ScheduleDomain{newTrunk(ctx, workspace)}
}

type TimeEventDomain struct{ TrunkBase }

func (*TimeEventDomain) Kind() Kind { return KindTimeEventDomain }

func NewTimeEventDomain(ctx Ctx, workspace EntityID) *TimeEventDomain {
	return &TimeEventDomain{newTrunk(ctx, workspace)}
}

type NoteCollection struct{ TrunkBase }

func (*NoteCollection) Kind() Kind { return KindNoteCollection }

func NewNoteCollection(ctx Ctx, workspace EntityID) *NoteCollection {
	return &NoteCollection{newTrunk(ctx, workspace)}
}

type GenLog struct{ TrunkBase }

func (*GenLog) Kind() Kind { return KindGenLog }

func NewGenLog(ctx Ctx, workspace EntityID) *GenLog { return &GenLog{newTrunk(ctx, workspace)} }

type GCLog struct{ TrunkBase }

func (*GCLog) Kind() Kind { return KindGCLog }

func NewGCLog(ctx Ctx, workspace EntityID) *GCLog { return &GCLog{newTrunk(ctx, workspace)} }

type StatsLog struct{ TrunkBase }

func (*StatsLog) Kind() Kind { return KindStatsLog }

func NewStatsLog(ctx Ctx, workspace EntityID) *StatsLog { return &StatsLog{newTrunk(ctx, workspace)} }

type ScheduleExternalSyncLog struct{ TrunkBase }

func (*ScheduleExternalSyncLog) Kind() Kind { return KindScheduleExternalSyncLog }

func NewScheduleExternalSyncLog(ctx Ctx, workspace EntityID) *ScheduleExternalSyncLog {
	return &ScheduleExternalSyncLog{newTrunk(ctx, workspace)}
}
