package domain

import "time"

// HabitStreakMark records, for one habit and day, the status of the tasks attributed to that day.
type HabitStreakMark struct {
	HabitRefID       EntityID                     `json:"habit_ref_id"`
	Date             ADate                        `json:"date"`
	Year             int                          `json:"year"`
	Statuses         map[EntityID]InboxTaskStatus `json:"statuses"`
	CreatedTime      time.Time                    `json:"created_time"`
	LastModifiedTime time.Time                    `json:"last_modified_time"`
}

func NewHabitStreakMark(ctx Ctx, habit EntityID, date ADate) HabitStreakMark {
	date = date.ToDate()
	return HabitStreakMark{
		HabitRefID:       habit,
		Date:             date,
		Year:             date.Year(),
		Statuses:         map[EntityID]InboxTaskStatus{},
		CreatedTime:      ctx.Timestamp,
		LastModifiedTime: ctx.Timestamp,
	}
}

// WithStatuses replaces the status map. The second result is false when nothing changed.
func (m HabitStreakMark) WithStatuses(ctx Ctx, statuses map[EntityID]InboxTaskStatus) (HabitStreakMark, bool) {
	if len(statuses) == len(m.Statuses) {
		same := true
		for k, v := range statuses {
			if m.Statuses[k] != v {
				same = false
				break
			}
		}
		if same {
			return m, false
		}
	}
	m.Statuses = statuses
	m.LastModifiedTime = ctx.Timestamp
	return m, true
}

// IsDone reports whether any attributed task was done on that day.
func (m HabitStreakMark) IsDone() bool {
	for _, s := range m.Statuses {
		if s == StatusDone {
			return true
		}
	}
	return false
}

type BigPlanStats struct {
	BigPlanRefID           EntityID  `json:"big_plan_ref_id"`
	AllInboxTasksCnt       int       `json:"all_inbox_tasks_cnt"`
	CompletedInboxTasksCnt int       `json:"completed_inbox_tasks_cnt"`
	CreatedTime            time.Time `json:"created_time"`
	LastModifiedTime       time.Time `json:"last_modified_time"`
}

// InboxTasksSummary counts tasks of a window by where they ended up.
type InboxTasksSummary struct {
	Created    int `json:"created"`
	Accepted   int `json:"accepted"`
	Working    int `json:"working"`
	NotDone    int `json:"not_done"`
	Done       int `json:"done"`
	TotalCount int `json:"total_count"`
}

// Report is a snapshot of activity over a window.
type Report struct {
	Today           ADate                       `json:"today"`
	PeriodStart     ADate                       `json:"period_start"`
	PeriodEnd       ADate                       `json:"period_end"`
	Sources         []InboxTaskSource           `json:"sources"`
	InboxTasks      InboxTasksSummary           `json:"inbox_tasks_summary"`
	PerSource       map[InboxTaskSource]int     `json:"done_per_source"`
	BigPlansDone    int                         `json:"big_plans_done"`
	BigPlansStarted int                         `json:"big_plans_started"`
	PerHabitDone    map[EntityID]int            `json:"done_per_habit,omitempty"`
	PerChoreDone    map[EntityID]int            `json:"done_per_chore,omitempty"`
	PerProjectDone  map[EntityID]int            `json:"done_per_project,omitempty"`
	PerPeriod       map[RecurringTaskPeriod]int `json:"done_per_period,omitempty"`
}

type JournalStats struct {
	JournalRefID     EntityID  `json:"journal_ref_id"`
	Report           Report    `json:"report"`
	CreatedTime      time.Time `json:"created_time"`
	LastModifiedTime time.Time `json:"last_modified_time"`
}

// ScoreSource tells what kind of work earned a score.
type ScoreSource string

const (
	ScoreSourceInboxTask ScoreSource = "inbox-task"
	ScoreSourceBigPlan   ScoreSource = "big-plan"
)

// PointsFor returns the points a completion is worth. Failures subtract.
func PointsFor(source ScoreSource, difficulty Difficulty, success bool) int {
	pts := 1
	switch difficulty {
	case DifficultyMedium:
		pts = 2
	case DifficultyHard:
		pts = 5
	}
	if source == ScoreSourceBigPlan {
		pts *= 10
	}
	if !success {
		return -pts
	}
	return pts
}

// ScoreLogEntry is the idempotence record of one scored completion.
type ScoreLogEntry struct {
	UserRefID   EntityID    `json:"user_ref_id"`
	Source      ScoreSource `json:"source"`
	TaskRefID   EntityID    `json:"task_ref_id"`
	Difficulty  Difficulty  `json:"difficulty"`
	Success     bool        `json:"success"`
	Score       int         `json:"score"`
	CreatedTime time.Time   `json:"created_time"`
}

// ScoreStats is the running total of one user for one period bucket. An empty period means lifetime.
type ScoreStats struct {
	UserRefID        EntityID            `json:"user_ref_id"`
	Period           RecurringTaskPeriod `json:"period,omitempty"`
	Timeline         string              `json:"timeline"`
	TotalScore       int                 `json:"total_score"`
	InboxTaskCnt     int                 `json:"inbox_task_cnt"`
	BigPlanCnt       int                 `json:"big_plan_cnt"`
	CreatedTime      time.Time           `json:"created_time"`
	LastModifiedTime time.Time           `json:"last_modified_time"`
}

// Add folds one scored completion into the totals.
func (s ScoreStats) Add(entry ScoreLogEntry, ts time.Time) ScoreStats {
	s.TotalScore += entry.Score
	switch entry.Source {
	case ScoreSourceInboxTask:
		s.InboxTaskCnt++
	case ScoreSourceBigPlan:
		s.BigPlanCnt++
	}
	s.LastModifiedTime = ts
	return s
}

// ScorePeriodBest keeps the best sub-period total seen inside a period bucket.
type ScorePeriodBest struct {
	UserRefID        EntityID            `json:"user_ref_id"`
	Period           RecurringTaskPeriod `json:"period,omitempty"`
	Timeline         string              `json:"timeline"`
	SubPeriod        RecurringTaskPeriod `json:"sub_period"`
	TotalScore       int                 `json:"total_score"`
	InboxTaskCnt     int                 `json:"inbox_task_cnt"`
	BigPlanCnt       int                 `json:"big_plan_cnt"`
	CreatedTime      time.Time           `json:"created_time"`
	LastModifiedTime time.Time           `json:"last_modified_time"`
}

// Improve replaces the best when candidate scored higher. It reports whether it did.
func (b ScorePeriodBest) Improve(candidate ScoreStats, ts time.Time) (ScorePeriodBest, bool) {
	if candidate.TotalScore <= b.TotalScore {
		return b, false
	}
	b.TotalScore, b.InboxTaskCnt, b.BigPlanCnt = candidate.TotalScore, candidate.InboxTaskCnt, candidate.BigPlanCnt
	b.LastModifiedTime = ts
	return b, true
}
