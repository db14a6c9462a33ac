package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"jupiter/internal/domain"
)

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

func parseTimes(created, modified string) (time.Time, time.Time, error) {
	c, err := parseTime(created)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	m, err := parseTime(modified)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return c, m, nil
}

// HabitStreakMarks stores one mark per (habit, day).
type HabitStreakMarks struct {
	tx *sql.Tx
}

func NewHabitStreakMarks(tx *sql.Tx) HabitStreakMarks { return HabitStreakMarks{tx: tx} }

func (r HabitStreakMarks) Upsert(ctx context.Context, m domain.HabitStreakMark) error {
	statuses, err := json.Marshal(m.Statuses)
	if err != nil {
		return err
	}
	_, err = r.tx.ExecContext(ctx, `
INSERT INTO habit_streak_mark(habit_ref_id,date,year,statuses,created_time,last_modified_time) VALUES (?,?,?,?,?,?)
ON CONFLICT(habit_ref_id,date) DO UPDATE SET statuses=excluded.statuses, last_modified_time=excluded.last_modified_time`,
		int64(m.HabitRefID), m.Date.String(), m.Year, string(statuses), formatTime(m.CreatedTime), formatTime(m.LastModifiedTime))
	return err
}

// Load returns the mark of habit on date, or ErrEntityNotFound.
func (r HabitStreakMarks) Load(ctx context.Context, habit domain.EntityID, date domain.ADate) (domain.HabitStreakMark, error) {
	marks, err := r.query(ctx, `WHERE habit_ref_id=? AND date=?`, int64(habit), date.ToDate().String())
	if err != nil {
		return domain.HabitStreakMark{}, err
	}
	if len(marks) == 0 {
		return domain.HabitStreakMark{}, fmt.Errorf("streak mark %d/%s: %w", habit, date, domain.ErrEntityNotFound)
	}
	return marks[0], nil
}

// FindForHabit returns the marks of habit between start and end inclusive, by date.
func (r HabitStreakMarks) FindForHabit(ctx context.Context, habit domain.EntityID, start, end domain.ADate) ([]domain.HabitStreakMark, error) {
	return r.query(ctx, `WHERE habit_ref_id=? AND date>=? AND date<=?`, int64(habit), start.ToDate().String(), end.ToDate().String())
}

// RemoveForHabit drops every mark of habit.
func (r HabitStreakMarks) RemoveForHabit(ctx context.Context, habit domain.EntityID) error {
	_, err := r.tx.ExecContext(ctx, `DELETE FROM habit_streak_mark WHERE habit_ref_id=?`, int64(habit))
	return err
}

func (r HabitStreakMarks) query(ctx context.Context, where string, args ...any) ([]domain.HabitStreakMark, error) {
	rows, err := r.tx.QueryContext(ctx, `SELECT habit_ref_id,date,year,statuses,created_time,last_modified_time FROM habit_streak_mark `+where+` ORDER BY date`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.HabitStreakMark
	for rows.Next() {
		var (
			m                          domain.HabitStreakMark
			habit                      int64
			date, statuses, c, updated string
		)
		if err := rows.Scan(&habit, &date, &m.Year, &statuses, &c, &updated); err != nil {
			return nil, err
		}
		m.HabitRefID = domain.EntityID(habit)
		if m.Date, err = domain.ParseADate(date); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(statuses), &m.Statuses); err != nil {
			return nil, err
		}
		if m.CreatedTime, m.LastModifiedTime, err = parseTimes(c, updated); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// BigPlanStatsStore keeps the task counters of each big plan.
type BigPlanStatsStore struct {
	tx *sql.Tx
}

func NewBigPlanStats(tx *sql.Tx) BigPlanStatsStore { return BigPlanStatsStore{tx: tx} }

func (r BigPlanStatsStore) Upsert(ctx context.Context, s domain.BigPlanStats) error {
	_, err := r.tx.ExecContext(ctx, `
INSERT INTO big_plan_stats(big_plan_ref_id,all_inbox_tasks_cnt,completed_inbox_tasks_cnt,created_time,last_modified_time) VALUES (?,?,?,?,?)
ON CONFLICT(big_plan_ref_id) DO UPDATE SET all_inbox_tasks_cnt=excluded.all_inbox_tasks_cnt,
  completed_inbox_tasks_cnt=excluded.completed_inbox_tasks_cnt, last_modified_time=excluded.last_modified_time`,
		int64(s.BigPlanRefID), s.AllInboxTasksCnt, s.CompletedInboxTasksCnt, formatTime(s.CreatedTime), formatTime(s.LastModifiedTime))
	return err
}

func (r BigPlanStatsStore) Load(ctx context.Context, bigPlan domain.EntityID) (domain.BigPlanStats, error) {
	var s domain.BigPlanStats
	var c, m string
	err := r.tx.QueryRowContext(ctx, `SELECT all_inbox_tasks_cnt,completed_inbox_tasks_cnt,created_time,last_modified_time FROM big_plan_stats WHERE big_plan_ref_id=?`,
		int64(bigPlan)).Scan(&s.AllInboxTasksCnt, &s.CompletedInboxTasksCnt, &c, &m)
	if errors.Is(err, sql.ErrNoRows) {
		return s, fmt.Errorf("big plan stats %d: %w", bigPlan, domain.ErrEntityNotFound)
	}
	if err != nil {
		return s, err
	}
	s.BigPlanRefID = bigPlan
	s.CreatedTime, s.LastModifiedTime, err = parseTimes(c, m)
	return s, err
}

func (r BigPlanStatsStore) Remove(ctx context.Context, bigPlan domain.EntityID) error {
	_, err := r.tx.ExecContext(ctx, `DELETE FROM big_plan_stats WHERE big_plan_ref_id=?`, int64(bigPlan))
	return err
}

// JournalStatsStore keeps the report snapshot of each journal.
type JournalStatsStore struct {
	tx *sql.Tx
}

func NewJournalStats(tx *sql.Tx) JournalStatsStore { return JournalStatsStore{tx: tx} }

func (r JournalStatsStore) Upsert(ctx context.Context, s domain.JournalStats) error {
	report, err := json.Marshal(s.Report)
	if err != nil {
		return err
	}
	_, err = r.tx.ExecContext(ctx, `
INSERT INTO journal_stats(journal_ref_id,report,created_time,last_modified_time) VALUES (?,?,?,?)
ON CONFLICT(journal_ref_id) DO UPDATE SET report=excluded.report, last_modified_time=excluded.last_modified_time`,
		int64(s.JournalRefID), string(report), formatTime(s.CreatedTime), formatTime(s.LastModifiedTime))
	return err
}

func (r JournalStatsStore) Load(ctx context.Context, journal domain.EntityID) (domain.JournalStats, error) {
	var s domain.JournalStats
	var report, c, m string
	err := r.tx.QueryRowContext(ctx, `SELECT report,created_time,last_modified_time FROM journal_stats WHERE journal_ref_id=?`,
		int64(journal)).Scan(&report, &c, &m)
	if errors.Is(err, sql.ErrNoRows) {
		return s, fmt.Errorf("journal stats %d: %w", journal, domain.ErrEntityNotFound)
	}
	if err != nil {
		return s, err
	}
	s.JournalRefID = journal
	if err := json.Unmarshal([]byte(report), &s.Report); err != nil {
		return s, err
	}
	s.CreatedTime, s.LastModifiedTime, err = parseTimes(c, m)
	return s, err
}

func (r JournalStatsStore) Remove(ctx context.Context, journal domain.EntityID) error {
	_, err := r.tx.ExecContext(ctx, `DELETE FROM journal_stats WHERE journal_ref_id=?`, int64(journal))
	return err
}

// ScoreLog remembers which completions were already scored.
type ScoreLog struct {
	tx *sql.Tx
}

func NewScoreLog(tx *sql.Tx) ScoreLog { return ScoreLog{tx: tx} }

// Insert records e. A second insert for the same task fails with ErrEntityAlreadyExists.
func (r ScoreLog) Insert(ctx context.Context, e domain.ScoreLogEntry) error {
	_, err := r.tx.ExecContext(ctx, `INSERT INTO score_log_entry(user_ref_id,source,task_ref_id,difficulty,success,score,created_time) VALUES (?,?,?,?,?,?,?)`,
		int64(e.UserRefID), string(e.Source), int64(e.TaskRefID), string(e.Difficulty), sqlValue(e.Success), e.Score, formatTime(e.CreatedTime))
	if isUniqueViolation(err) {
		return fmt.Errorf("score for %s %d: %w", e.Source, e.TaskRefID, domain.ErrEntityAlreadyExists)
	}
	return err
}

func (r ScoreLog) Exists(ctx context.Context, user domain.EntityID, source domain.ScoreSource, task domain.EntityID) (bool, error) {
	var one int
	err := r.tx.QueryRowContext(ctx, `SELECT 1 FROM score_log_entry WHERE user_ref_id=? AND source=? AND task_ref_id=?`,
		int64(user), string(source), int64(task)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// ScoreStatsStore keeps per-period running totals.
type ScoreStatsStore struct {
	tx *sql.Tx
}

func NewScoreStats(tx *sql.Tx) ScoreStatsStore { return ScoreStatsStore{tx: tx} }

// Load returns the totals for the bucket. Missing buckets come back zeroed with ok false.
func (r ScoreStatsStore) Load(ctx context.Context, user domain.EntityID, period domain.RecurringTaskPeriod, timeline string) (domain.ScoreStats, bool, error) {
	s := domain.ScoreStats{UserRefID: user, Period: period, Timeline: timeline}
	var c, m string
	err := r.tx.QueryRowContext(ctx, `SELECT total_score,inbox_task_cnt,big_plan_cnt,created_time,last_modified_time FROM score_stats WHERE user_ref_id=? AND period=? AND timeline=?`,
		int64(user), string(period), timeline).Scan(&s.TotalScore, &s.InboxTaskCnt, &s.BigPlanCnt, &c, &m)
	if errors.Is(err, sql.ErrNoRows) {
		return s, false, nil
	}
	if err != nil {
		return s, false, err
	}
	s.CreatedTime, s.LastModifiedTime, err = parseTimes(c, m)
	return s, err == nil, err
}

func (r ScoreStatsStore) Upsert(ctx context.Context, s domain.ScoreStats) error {
	_, err := r.tx.ExecContext(ctx, `
INSERT INTO score_stats(user_ref_id,period,timeline,total_score,inbox_task_cnt,big_plan_cnt,created_time,last_modified_time) VALUES (?,?,?,?,?,?,?,?)
ON CONFLICT(user_ref_id,period,timeline) DO UPDATE SET total_score=excluded.total_score, inbox_task_cnt=excluded.inbox_task_cnt,
  big_plan_cnt=excluded.big_plan_cnt, last_modified_time=excluded.last_modified_time`,
		int64(s.UserRefID), string(s.Period), s.Timeline, s.TotalScore, s.InboxTaskCnt, s.BigPlanCnt, formatTime(s.CreatedTime), formatTime(s.LastModifiedTime))
	return err
}

// ListForPeriod returns the buckets of one period, most recent timeline first.
func (r ScoreStatsStore) ListForPeriod(ctx context.Context, user domain.EntityID, period domain.RecurringTaskPeriod) ([]domain.ScoreStats, error) {
	rows, err := r.tx.QueryContext(ctx, `SELECT timeline,total_score,inbox_task_cnt,big_plan_cnt,created_time,last_modified_time FROM score_stats WHERE user_ref_id=? AND period=? ORDER BY timeline DESC`,
		int64(user), string(period))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ScoreStats
	for rows.Next() {
		s := domain.ScoreStats{UserRefID: user, Period: period}
		var c, m string
		if err := rows.Scan(&s.Timeline, &s.TotalScore, &s.InboxTaskCnt, &s.BigPlanCnt, &c, &m); err != nil {
			return nil, err
		}
		if s.CreatedTime, s.LastModifiedTime, err = parseTimes(c, m); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ScorePeriodBests keeps the best sub-period per period bucket.
type ScorePeriodBests struct {
	tx *sql.Tx
}

func NewScorePeriodBests(tx *sql.Tx) ScorePeriodBests { return ScorePeriodBests{tx: tx} }

func (r ScorePeriodBests) Load(ctx context.Context, user domain.EntityID, period domain.RecurringTaskPeriod, timeline string,
	sub domain.RecurringTaskPeriod) (domain.ScorePeriodBest, bool, error) {
	b := domain.ScorePeriodBest{UserRefID: user, Period: period, Timeline: timeline, SubPeriod: sub}
	var c, m string
	err := r.tx.QueryRowContext(ctx, `SELECT total_score,inbox_task_cnt,big_plan_cnt,created_time,last_modified_time FROM score_period_best
WHERE user_ref_id=? AND period=? AND timeline=? AND sub_period=?`,
		int64(user), string(period), timeline, string(sub)).Scan(&b.TotalScore, &b.InboxTaskCnt, &b.BigPlanCnt, &c, &m)
	if errors.Is(err, sql.ErrNoRows) {
		return b, false, nil
	}
	if err != nil {
		return b, false, err
	}
	b.CreatedTime, b.LastModifiedTime, err = parseTimes(c, m)
	return b, err == nil, err
}

func (r ScorePeriodBests) Upsert(ctx context.Context, b domain.ScorePeriodBest) error {
	_, err := r.tx.ExecContext(ctx, `
INSERT INTO score_period_best(user_ref_id,period,timeline,sub_period,total_score,inbox_task_cnt,big_plan_cnt,created_time,last_modified_time)
VALUES (?,?,?,?,?,?,?,?,?)
ON CONFLICT(user_ref_id,period,timeline,sub_period) DO UPDATE SET total_score=excluded.total_score,
  inbox_task_cnt=excluded.inbox_task_cnt, big_plan_cnt=excluded.big_plan_cnt, last_modified_time=excluded.last_modified_time`,
		int64(b.UserRefID), string(b.Period), b.Timeline, string(b.SubPeriod), b.TotalScore, b.InboxTaskCnt, b.BigPlanCnt,
		formatTime(b.CreatedTime), formatTime(b.LastModifiedTime))
	return err
}

// WorkspaceConfigs stores the YAML settings document of each workspace.
type WorkspaceConfigs struct {
	tx *sql.Tx
}

func NewWorkspaceConfigs(tx *sql.Tx) WorkspaceConfigs { return WorkspaceConfigs{tx: tx} }

// Load returns the stored document, or ErrEntityNotFound when none was saved yet.
func (r WorkspaceConfigs) Load(ctx context.Context, workspace domain.EntityID) (string, error) {
	var body string
	err := r.tx.QueryRowContext(ctx, `SELECT body FROM workspace_config WHERE workspace_ref_id=?`, int64(workspace)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("workspace config %d: %w", workspace, domain.ErrEntityNotFound)
	}
	return body, err
}

func (r WorkspaceConfigs) Save(ctx context.Context, workspace domain.EntityID, body string, now time.Time) error {
	_, err := r.tx.ExecContext(ctx, `
INSERT INTO workspace_config(workspace_ref_id,body,last_modified_time) VALUES (?,?,?)
ON CONFLICT(workspace_ref_id) DO UPDATE SET body=excluded.body, last_modified_time=excluded.last_modified_time`,
		int64(workspace), body, formatTime(now))
	return err
}
