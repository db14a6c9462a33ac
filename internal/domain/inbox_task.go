package domain

import (
	"fmt"
	"time"
)

// InboxTask is the unit of actionable work, typed by what created it.
type InboxTask struct {
	EntityBase
	InboxTaskCollectionRefID EntityID        `json:"inbox_task_collection_ref_id"`
	Source                   InboxTaskSource `json:"source"`
	SourceEntityRefID        EntityID        `json:"source_entity_ref_id,omitempty"`
	ProjectRefID             EntityID        `json:"project_ref_id"`
	Name                     string          `json:"name"`
	Status                   InboxTaskStatus `json:"status"`
	Eisen                    Eisen           `json:"eisen"`
	Difficulty               Difficulty      `json:"difficulty"`
	ActionableDate           ADate           `json:"actionable_date"`
	DueDate                  ADate           `json:"due_date"`
	RecurringTimeline        string          `json:"recurring_timeline,omitempty"`
	RecurringRepeatIndex     *int            `json:"recurring_repeat_index,omitempty"`
	RecurringGenRightNow     ADate           `json:"recurring_gen_right_now"`
	WorkingTime              *time.Time      `json:"working_time,omitempty"`
	CompletedTime            *time.Time      `json:"completed_time,omitempty"`
}

func (*InboxTask) Kind() Kind              { return KindInboxTask }
func (t *InboxTask) ParentRefID() EntityID { return t.InboxTaskCollectionRefID }
func (t *InboxTask) DisplayName() string   { return t.Name }

func (t *InboxTask) Links() Links {
	var repeat any
	if t.RecurringRepeatIndex != nil {
		repeat = *t.RecurringRepeatIndex
	}
	var timeline any
	if t.RecurringTimeline != "" {
		timeline = t.RecurringTimeline
	}
	return Links{
		"source":                 string(t.Source),
		"source_entity_ref_id":   optionalRef(t.SourceEntityRefID),
		"project_ref_id":         optionalRef(t.ProjectRefID),
		"status":                 string(t.Status),
		"recurring_timeline":     timeline,
		"recurring_repeat_index": repeat,
	}
}

// RepeatIndex returns the repeat index, treating a missing one as 0.
func (t *InboxTask) RepeatIndex() int {
	if t.RecurringRepeatIndex == nil {
		return 0
	}
	return *t.RecurringRepeatIndex
}

// NewInboxTask creates a task entered directly by the user, optionally linked to a big plan.
func NewInboxTask(ctx Ctx, collection EntityID, name string, status InboxTaskStatus, project EntityID,
	bigPlan EntityID, eisen Eisen, difficulty Difficulty, actionable, due ADate) (*InboxTask, error) {
	if err := validateName("name", name); err != nil {
		return nil, err
	}
	if err := status.Validate(); err != nil {
		return nil, err
	}
	if status == StatusNotStartedGen {
		return nil, Invalid("status", "user tasks cannot start in %s", status)
	}
	if err := validateTaskShape(eisen, difficulty, actionable, due); err != nil {
		return nil, err
	}
	source := SourceUser
	if bigPlan != BadRefID {
		source = SourceBigPlan
	}
	t := &InboxTask{
		EntityBase:               newBase(ctx),
		InboxTaskCollectionRefID: collection,
		Source:                   source,
		SourceEntityRefID:        bigPlan,
		ProjectRefID:             project,
		Name:                     name,
		Status:                   status,
		Eisen:                    eisen,
		Difficulty:               difficulty,
		ActionableDate:           actionable,
		DueDate:                  due,
	}
	t.trackStatusTimes(ctx, "")
	return t, nil
}

// GeneratedTask bundles the fields generation computes for a derived inbox task.
type GeneratedTask struct {
	Project        EntityID
	Name           string
	Eisen          Eisen
	Difficulty     Difficulty
	ActionableDate ADate
	DueDate        ADate
	Timeline       string
	RepeatIndex    *int
	GenRightNow    ADate
}

func (g GeneratedTask) validate() error {
	if err := validateName("name", g.Name); err != nil {
		return err
	}
	return validateTaskShape(g.Eisen, g.Difficulty, g.ActionableDate, g.DueDate)
}

func validateTaskShape(eisen Eisen, difficulty Difficulty, actionable, due ADate) error {
	if err := eisen.Validate(); err != nil {
		return err
	}
	if err := difficulty.Validate(); err != nil {
		return err
	}
	if !actionable.IsZero() && !due.IsZero() && actionable.After(due) {
		return Invalid("actionable_date", "must not be after the due date")
	}
	return nil
}

func newGeneratedTask(ctx Ctx, collection EntityID, source InboxTaskSource, sourceRef EntityID, g GeneratedTask) (*InboxTask, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	if sourceRef == BadRefID {
		return nil, Invalid("source_entity_ref_id", "generated tasks need a source entity")
	}
	return &InboxTask{
		EntityBase:               newBase(ctx),
		InboxTaskCollectionRefID: collection,
		Source:                   source,
		SourceEntityRefID:        sourceRef,
		ProjectRefID:             g.Project,
		Name:                     g.Name,
		Status:                   StatusNotStartedGen,
		Eisen:                    g.Eisen,
		Difficulty:               g.Difficulty,
		ActionableDate:           g.ActionableDate,
		DueDate:                  g.DueDate,
		RecurringTimeline:        g.Timeline,
		RecurringRepeatIndex:     g.RepeatIndex,
		RecurringGenRightNow:     g.GenRightNow,
	}, nil
}

func NewInboxTaskForHabit(ctx Ctx, collection, habit EntityID, g GeneratedTask) (*InboxTask, error) {
	return newGeneratedTask(ctx, collection, SourceHabit, habit, g)
}

func NewInboxTaskForChore(ctx Ctx, collection, chore EntityID, g GeneratedTask) (*InboxTask, error) {
	return newGeneratedTask(ctx, collection, SourceChore, chore, g)
}

func NewInboxTaskForMetricCollection(ctx Ctx, collection, metric EntityID, g GeneratedTask) (*InboxTask, error) {
	return newGeneratedTask(ctx, collection, SourceMetric, metric, g)
}

func NewInboxTaskForPersonCatchUp(ctx Ctx, collection, person EntityID, g GeneratedTask) (*InboxTask, error) {
	return newGeneratedTask(ctx, collection, SourcePersonCatchUp, person, g)
}

func NewInboxTaskForPersonBirthday(ctx Ctx, collection, person EntityID, g GeneratedTask) (*InboxTask, error) {
	return newGeneratedTask(ctx, collection, SourcePersonBirthday, person, g)
}

func NewInboxTaskForWorkingMemCleanup(ctx Ctx, collection, workingMem EntityID, g GeneratedTask) (*InboxTask, error) {
	return newGeneratedTask(ctx, collection, SourceWorkingMemCleanup, workingMem, g)
}

func NewInboxTaskForTimePlan(ctx Ctx, collection, timePlan EntityID, g GeneratedTask) (*InboxTask, error) {
	return newGeneratedTask(ctx, collection, SourceTimePlan, timePlan, g)
}

func NewInboxTaskForJournal(ctx Ctx, collection, journal EntityID, g GeneratedTask) (*InboxTask, error) {
	return newGeneratedTask(ctx, collection, SourceJournal, journal, g)
}

// NewInboxTaskForPushTask creates the task for a slack or email push task.
func NewInboxTaskForPushTask(ctx Ctx, collection EntityID, source InboxTaskSource, pushTask EntityID, status InboxTaskStatus, g GeneratedTask) (*InboxTask, error) {
	if source != SourceSlackTask && source != SourceEmailTask {
		return nil, Invalid("source", "%s is not a push source", source)
	}
	t, err := newGeneratedTask(ctx, collection, source, pushTask, g)
	if err != nil {
		return nil, err
	}
	if status != "" {
		if err := status.Validate(); err != nil {
			return nil, err
		}
		t.Status = status
		t.trackStatusTimes(ctx, StatusNotStartedGen)
	}
	return t, nil
}

func (t *InboxTask) updateLink(ctx Ctx, source InboxTaskSource, g GeneratedTask) error {
	if t.Source != source {
		return Invalid("source", "task %d is linked to %s, not %s", t.RefID, t.Source, source)
	}
	if err := g.validate(); err != nil {
		return err
	}
	t.ProjectRefID = g.Project
	t.Name = g.Name
	t.Eisen = g.Eisen
	t.Difficulty = g.Difficulty
	t.ActionableDate = g.ActionableDate
	t.DueDate = g.DueDate
	t.RecurringTimeline = g.Timeline
	t.RecurringRepeatIndex = g.RepeatIndex
	t.RecurringGenRightNow = g.GenRightNow
	t.record(ctx, "UpdateLinkTo"+string(source), map[string]any{"timeline": g.Timeline})
	return nil
}

func (t *InboxTask) UpdateLinkToHabit(ctx Ctx, g GeneratedTask) error {
	return t.updateLink(ctx, SourceHabit, g)
}

func (t *InboxTask) UpdateLinkToChore(ctx Ctx, g GeneratedTask) error {
	return t.updateLink(ctx, SourceChore, g)
}

func (t *InboxTask) UpdateLinkToMetric(ctx Ctx, g GeneratedTask) error {
	return t.updateLink(ctx, SourceMetric, g)
}

func (t *InboxTask) UpdateLinkToPersonCatchUp(ctx Ctx, g GeneratedTask) error {
	return t.updateLink(ctx, SourcePersonCatchUp, g)
}

func (t *InboxTask) UpdateLinkToPersonBirthday(ctx Ctx, g GeneratedTask) error {
	return t.updateLink(ctx, SourcePersonBirthday, g)
}

func (t *InboxTask) UpdateLinkToWorkingMemCleanup(ctx Ctx, g GeneratedTask) error {
	return t.updateLink(ctx, SourceWorkingMemCleanup, g)
}

func (t *InboxTask) UpdateLinkToTimePlan(ctx Ctx, g GeneratedTask) error {
	return t.updateLink(ctx, SourceTimePlan, g)
}

func (t *InboxTask) UpdateLinkToJournal(ctx Ctx, g GeneratedTask) error {
	return t.updateLink(ctx, SourceJournal, g)
}

// UpdateLinkToPushTask refreshes a push-derived task, including the status the push task asks for.
func (t *InboxTask) UpdateLinkToPushTask(ctx Ctx, status InboxTaskStatus, g GeneratedTask) error {
	prev := t.Status
	if err := t.updateLink(ctx, t.Source, g); err != nil {
		return err
	}
	if t.Source != SourceSlackTask && t.Source != SourceEmailTask {
		return Invalid("source", "task %d is not a push task", t.RefID)
	}
	if status != "" && status != prev {
		if err := status.Validate(); err != nil {
			return err
		}
		t.Status = status
		t.trackStatusTimes(ctx, prev)
	}
	return nil
}

// InboxTaskUpdate carries optional user edits.
type InboxTaskUpdate struct {
	Name           *string
	Status         *InboxTaskStatus
	Eisen          *Eisen
	Difficulty     *Difficulty
	ActionableDate *ADate
	DueDate        *ADate
}

func (t *InboxTask) Update(ctx Ctx, u InboxTaskUpdate) error {
	if !t.Source.AllowUserChanges() && (u.Name != nil || u.Eisen != nil || u.Difficulty != nil || u.ActionableDate != nil || u.DueDate != nil) {
		return Invalid("source", "only the status of a %s task can be changed", t.Source)
	}
	name, eisen, difficulty, actionable, due := t.Name, t.Eisen, t.Difficulty, t.ActionableDate, t.DueDate
	if u.Name != nil {
		name = *u.Name
	}
	if u.Eisen != nil {
		eisen = *u.Eisen
	}
	if u.Difficulty != nil {
		difficulty = *u.Difficulty
	}
	if u.ActionableDate != nil {
		actionable = *u.ActionableDate
	}
	if u.DueDate != nil {
		due = *u.DueDate
	}
	if err := validateName("name", name); err != nil {
		return err
	}
	if err := validateTaskShape(eisen, difficulty, actionable, due); err != nil {
		return err
	}
	prev := t.Status
	if u.Status != nil {
		if err := u.Status.Validate(); err != nil {
			return err
		}
		t.Status = *u.Status
	}
	t.Name, t.Eisen, t.Difficulty, t.ActionableDate, t.DueDate = name, eisen, difficulty, actionable, due
	t.trackStatusTimes(ctx, prev)
	t.record(ctx, "Updated", map[string]any{"status": string(t.Status)})
	return nil
}

func (t *InboxTask) trackStatusTimes(ctx Ctx, prev InboxTaskStatus) {
	ts := ctx.Timestamp
	if t.Status.IsWorking() && !prev.IsWorking() && t.WorkingTime == nil {
		t.WorkingTime = &ts
	}
	switch {
	case t.Status.IsCompleted() && !prev.IsCompleted():
		t.CompletedTime = &ts
	case !t.Status.IsCompleted():
		t.CompletedTime = nil
	}
}

func (t *InboxTask) ChangeProject(ctx Ctx, project EntityID) error {
	if !t.Source.AllowUserChanges() {
		return Invalid("project_ref_id", "the project of a %s task follows its source", t.Source)
	}
	t.ProjectRefID = project
	t.record(ctx, "ChangeProject", map[string]any{"project_ref_id": project})
	return nil
}

// AssociateWithBigPlan turns a user task into a big plan task, or back with BadRefID.
func (t *InboxTask) AssociateWithBigPlan(ctx Ctx, bigPlan, project EntityID) error {
	if !t.Source.AllowUserChanges() {
		return Invalid("source", "a %s task cannot join a big plan", t.Source)
	}
	if bigPlan == BadRefID {
		t.Source, t.SourceEntityRefID = SourceUser, BadRefID
	} else {
		t.Source, t.SourceEntityRefID, t.ProjectRefID = SourceBigPlan, bigPlan, project
	}
	t.record(ctx, "AssociateWithBigPlan", map[string]any{"big_plan_ref_id": bigPlan})
	return nil
}

// IsCompletedIn reports whether t was completed on a day inside [start, end].
func (t *InboxTask) IsCompletedIn(start, end ADate) bool {
	if t.CompletedTime == nil || !t.Status.IsCompleted() {
		return false
	}
	day := DateOf(t.CompletedTime.UTC())
	return !day.Before(start) && !day.After(end)
}

func (t *InboxTask) String() string {
	return fmt.Sprintf("%s [%s]", t.Name, t.Status)
}
