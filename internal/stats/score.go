package stats

import (
	"context"
	"fmt"
	"time"

	"jupiter/internal/domain"
	"jupiter/internal/schedule"
	"jupiter/internal/uow"
)

// LifetimeTimeline is the timeline of the all-time score bucket.
const LifetimeTimeline = "lifetime"

// Completion is one finished inbox task or big plan to score.
type Completion struct {
	Source      domain.ScoreSource
	RefID       domain.EntityID
	Difficulty  domain.Difficulty
	Success     bool
	CompletedAt time.Time
}

// InboxTaskCompletion describes a completed task. ok is false while it is still open.
func InboxTaskCompletion(t *domain.InboxTask) (Completion, bool) {
	if !t.Status.IsCompleted() || t.CompletedTime == nil {
		return Completion{}, false
	}
	return Completion{
		Source:      domain.ScoreSourceInboxTask,
		RefID:       t.RefID,
		Difficulty:  t.Difficulty,
		Success:     t.Status == domain.StatusDone,
		CompletedAt: *t.CompletedTime,
	}, true
}

func BigPlanCompletion(p *domain.BigPlan) (Completion, bool) {
	if !p.Status.IsCompleted() || p.CompletedTime == nil {
		return Completion{}, false
	}
	return Completion{
		Source:      domain.ScoreSourceBigPlan,
		RefID:       p.RefID,
		Difficulty:  domain.DifficultyMedium,
		Success:     p.Status == domain.BigPlanDone,
		CompletedAt: *p.CompletedTime,
	}, true
}

// ScoreRecorder folds completions into the per-period score rollups of a user.
type ScoreRecorder struct{}

// RecordTask scores c once per (user, source, ref id). It reports whether c was new.
func (ScoreRecorder) RecordTask(ctx context.Context, u *uow.UnitOfWork, ectx domain.Ctx, user domain.EntityID, c Completion) (bool, error) {
	seen, err := u.ScoreLog().Exists(ctx, user, c.Source, c.RefID)
	if err != nil || seen {
		return false, err
	}
	entry := domain.ScoreLogEntry{
		UserRefID:   user,
		Source:      c.Source,
		TaskRefID:   c.RefID,
		Difficulty:  c.Difficulty,
		Success:     c.Success,
		Score:       domain.PointsFor(c.Source, c.Difficulty, c.Success),
		CreatedTime: ectx.Timestamp,
	}
	if err := u.ScoreLog().Insert(ctx, entry); err != nil {
		return false, fmt.Errorf("score log %s#%d: %w", c.Source, c.RefID, err)
	}

	day := domain.DateOf(c.CompletedAt.UTC())
	buckets := map[domain.RecurringTaskPeriod]domain.ScoreStats{}
	for _, p := range domain.AllPeriods {
		s, err := bump(ctx, u, ectx, user, p, schedule.Timeline(p, day), entry)
		if err != nil {
			return false, err
		}
		buckets[p] = s
	}
	if _, err := bump(ctx, u, ectx, user, "", LifetimeTimeline, entry); err != nil {
		return false, err
	}

	// Every bucket that contains smaller buckets remembers its best one.
	outer := append([]domain.RecurringTaskPeriod{}, domain.AllPeriods[1:]...)
	outer = append(outer, "")
	for _, p := range outer {
		timeline := LifetimeTimeline
		if p != "" {
			timeline = schedule.Timeline(p, day)
		}
		for _, sub := range domain.AllPeriods {
			if p != "" && !sub.SmallerThan(p) {
				break
			}
			best, ok, err := u.ScorePeriodBests().Load(ctx, user, p, timeline, sub)
			if err != nil {
				return false, err
			}
			if !ok {
				best.CreatedTime = ectx.Timestamp
			}
			next, improved := best.Improve(buckets[sub], ectx.Timestamp)
			if !improved {
				continue
			}
			if err := u.ScorePeriodBests().Upsert(ctx, next); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}

func bump(ctx context.Context, u *uow.UnitOfWork, ectx domain.Ctx, user domain.EntityID, period domain.RecurringTaskPeriod,
	timeline string, entry domain.ScoreLogEntry) (domain.ScoreStats, error) {
	s, ok, err := u.ScoreStats().Load(ctx, user, period, timeline)
	if err != nil {
		return s, err
	}
	if !ok {
		s.CreatedTime = ectx.Timestamp
	}
	s = s.Add(entry, ectx.Timestamp)
	if err := u.ScoreStats().Upsert(ctx, s); err != nil {
		return s, fmt.Errorf("score stats %s/%s: %w", period, timeline, err)
	}
	return s, nil
}
