package domain

import "fmt"

// WorkingMemArchiveAfterDays is how long a working mem must live before it can be archived.
const WorkingMemArchiveAfterDays = 14

// PlanSource says whether a periodic plan was written by hand or generated.
type PlanSource string

const (
	PlanSourceUser      PlanSource = "user"
	PlanSourceGenerated PlanSource = "generated"
)

// PeriodBucket is the period, timeline and bounds a periodic plan covers.
type PeriodBucket struct {
	Period    RecurringTaskPeriod `json:"period"`
	Timeline  string              `json:"timeline"`
	RightNow  ADate               `json:"right_now"`
	StartDate ADate               `json:"start_date"`
	EndDate   ADate               `json:"end_date"`
}

func (b PeriodBucket) validate() error {
	if err := b.Period.Validate(); err != nil {
		return err
	}
	if b.Timeline == "" {
		return Invalid("timeline", "must not be empty")
	}
	if b.RightNow.IsZero() || b.StartDate.IsZero() || b.EndDate.IsZero() {
		return Invalid("right_now", "period bounds must be set")
	}
	if b.EndDate.Before(b.StartDate) {
		return Invalid("end_date", "must not be before start_date")
	}
	return nil
}

func (b PeriodBucket) links() Links {
	return Links{"period": string(b.Period), "timeline": b.Timeline, "right_now": optionalDate(b.RightNow)}
}

// WorkingMem is the scratch pad of one generation period.
type WorkingMem struct {
	EntityBase
	PeriodBucket
	WorkingMemCollectionRefID EntityID `json:"working_mem_collection_ref_id"`
	Name                      string   `json:"name"`
}

func (*WorkingMem) Kind() Kind              { return KindWorkingMem }
func (w *WorkingMem) ParentRefID() EntityID { return w.WorkingMemCollectionRefID }
func (w *WorkingMem) Links() Links          { return w.PeriodBucket.links() }
func (w *WorkingMem) DisplayName() string   { return w.Name }

func NewWorkingMem(ctx Ctx, collection EntityID, bucket PeriodBucket) (*WorkingMem, error) {
	if err := bucket.validate(); err != nil {
		return nil, err
	}
	return &WorkingMem{
		EntityBase:                newBase(ctx),
		PeriodBucket:              bucket,
		WorkingMemCollectionRefID: collection,
		Name:                      fmt.Sprintf("Working mem for %s", bucket.Timeline),
	}, nil
}

// CheckArchivable refuses to archive a working mem younger than WorkingMemArchiveAfterDays.
func (w *WorkingMem) CheckArchivable(today ADate) error {
	if DaysBetween(w.RightNow.ToDate(), today) < WorkingMemArchiveAfterDays {
		return Invalid("archived", "working mem %s can be archived only after %d days", w.Timeline, WorkingMemArchiveAfterDays)
	}
	return nil
}

// CleanupTaskName names the task that asks to empty a working mem.
func (w *WorkingMem) CleanupTaskName() string {
	return fmt.Sprintf("Clean up working mem for %s", w.Timeline)
}

type TimePlan struct {
	EntityBase
	PeriodBucket
	TimePlanDomainRefID EntityID   `json:"time_plan_domain_ref_id"`
	Source              PlanSource `json:"source"`
	Name                string     `json:"name"`
}

func (*TimePlan) Kind() Kind              { return KindTimePlan }
func (p *TimePlan) ParentRefID() EntityID { return p.TimePlanDomainRefID }
func (p *TimePlan) DisplayName() string   { return p.Name }

func (p *TimePlan) Links() Links {
	l := p.PeriodBucket.links()
	l["source"] = string(p.Source)
	return l
}

func NewTimePlan(ctx Ctx, domain EntityID, source PlanSource, bucket PeriodBucket) (*TimePlan, error) {
	if err := bucket.validate(); err != nil {
		return nil, err
	}
	return &TimePlan{
		EntityBase:          newBase(ctx),
		PeriodBucket:        bucket,
		TimePlanDomainRefID: domain,
		Source:              source,
		Name:                fmt.Sprintf("%s plan for %s", capitalize(bucket.Period.Adjective()), bucket.Timeline),
	}, nil
}

// PlanningTaskName names the companion task of a generated time plan.
func (p *TimePlan) PlanningTaskName() string {
	return fmt.Sprintf("Make %s plan for %s", p.Period.Adjective(), p.Timeline)
}

func (p *TimePlan) ChangeTimeConfig(ctx Ctx, bucket PeriodBucket) error {
	if err := bucket.validate(); err != nil {
		return err
	}
	p.PeriodBucket = bucket
	p.Name = fmt.Sprintf("%s plan for %s", capitalize(bucket.Period.Adjective()), bucket.Timeline)
	p.record(ctx, "ChangeTimeConfig", map[string]any{"timeline": bucket.Timeline})
	return nil
}

type Journal struct {
	EntityBase
	PeriodBucket
	JournalCollectionRefID EntityID   `json:"journal_collection_ref_id"`
	Source                 PlanSource `json:"source"`
	Name                   string     `json:"name"`
}

func (*Journal) Kind() Kind              { return KindJournal }
func (j *Journal) ParentRefID() EntityID { return j.JournalCollectionRefID }
func (j *Journal) DisplayName() string   { return j.Name }

func (j *Journal) Links() Links {
	l := j.PeriodBucket.links()
	l["source"] = string(j.Source)
	return l
}

func NewJournal(ctx Ctx, collection EntityID, source PlanSource, bucket PeriodBucket) (*Journal, error) {
	if err := bucket.validate(); err != nil {
		return nil, err
	}
	return &Journal{
		EntityBase:             newBase(ctx),
		PeriodBucket:           bucket,
		JournalCollectionRefID: collection,
		Source:                 source,
		Name:                   fmt.Sprintf("%s journal for %s", capitalize(bucket.Period.Adjective()), bucket.Timeline),
	}, nil
}

// WritingTaskName names the companion task of a generated journal.
func (j *Journal) WritingTaskName() string {
	return fmt.Sprintf("Write %s journal for %s", j.Period.Adjective(), j.Timeline)
}

func (j *Journal) ChangeTimeConfig(ctx Ctx, bucket PeriodBucket) error {
	if err := bucket.validate(); err != nil {
		return err
	}
	j.PeriodBucket = bucket
	j.Name = fmt.Sprintf("%s journal for %s", capitalize(bucket.Period.Adjective()), bucket.Timeline)
	j.record(ctx, "ChangeTimeConfig", map[string]any{"timeline": bucket.Timeline})
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
