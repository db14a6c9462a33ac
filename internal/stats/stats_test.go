package stats_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jupiter/internal/app"
	"jupiter/internal/config"
	"jupiter/internal/db"
	"jupiter/internal/domain"
	"jupiter/internal/migrate"
	"jupiter/internal/stats"
	"jupiter/internal/uow"
)

var seeded = time.Date(2024, 8, 12, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	Ctx   context.Context
	UOW   uow.Provider
	ECtx  domain.Ctx
	Boot  app.Bootstrap
	Stats stats.Service
}

func newTestEnv(t *testing.T, flags domain.WorkspaceFeatureFlags) *testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{URL: "sqlite:///" + filepath.Join(t.TempDir(), "jupiter.sqlite")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	logger, _ := test.NewNullLogger()
	env := &testEnv{
		Ctx:  context.Background(),
		UOW:  uow.Provider{DB: conn},
		ECtx: domain.NewCtx(domain.EventSourceCLI, seeded),
	}
	env.Stats = stats.Service{UOW: env.UOW, Locks: uow.NewLocks(), Log: logger, Now: func() time.Time { return seeded }}
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		boot, err := app.InitWorkspace(ctx, u, env.ECtx, config.FeatureControls(config.EnvLocal), app.InitArgs{
			UserName: "Ada", UserEmail: "ada@example.com", WorkspaceName: "Home", WorkspaceFlags: flags,
		})
		env.Boot = boot
		return err
	})
	return env
}

func (env *testEnv) do(t *testing.T, fn func(ctx context.Context, u *uow.UnitOfWork) error) {
	t.Helper()
	require.NoError(t, env.UOW.Do(env.Ctx, fn))
}

func (env *testEnv) run(t *testing.T, targets ...domain.StatsTarget) *domain.StatsLogEntry {
	t.Helper()
	entry, err := env.Stats.Run(env.Ctx, stats.Args{
		User:      env.Boot.User.RefID,
		Workspace: env.Boot.Workspace.RefID,
		Today:     day("2024-08-12"),
		Targets:   targets,
	})
	require.NoError(t, err)
	return entry
}

func (env *testEnv) createTask(t *testing.T, name string, status domain.InboxTaskStatus, difficulty domain.Difficulty, bigPlan domain.EntityID) *domain.InboxTask {
	t.Helper()
	var task *domain.InboxTask
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		coll, err := uow.For[*domain.InboxTaskCollection](u).LoadByParent(ctx, env.Boot.Workspace.RefID)
		require.NoError(t, err)
		task, err = domain.NewInboxTask(env.ECtx, coll.RefID, name, status, env.Boot.RootProject.RefID, bigPlan,
			domain.EisenRegular, difficulty, domain.ADate{}, domain.ADate{})
		require.NoError(t, err)
		_, err = uow.For[*domain.InboxTask](u).Create(ctx, task)
		return err
	})
	return task
}

func (env *testEnv) createBigPlan(t *testing.T, status domain.BigPlanStatus) *domain.BigPlan {
	t.Helper()
	var plan *domain.BigPlan
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		coll, err := uow.For[*domain.BigPlanCollection](u).LoadByParent(ctx, env.Boot.Workspace.RefID)
		require.NoError(t, err)
		plan, err = domain.NewBigPlan(env.ECtx, coll.RefID, env.Boot.RootProject.RefID, "Move house", status, domain.ADate{}, domain.ADate{})
		require.NoError(t, err)
		_, err = uow.For[*domain.BigPlan](u).Create(ctx, plan)
		return err
	})
	return plan
}

func day(s string) domain.ADate { return domain.MustParseDate(s) }

func TestBigPlanStatsCountTasksAndSkipUnchanged(t *testing.T) {
	env := newTestEnv(t, nil)
	plan := env.createBigPlan(t, domain.BigPlanInProgress)
	env.createTask(t, "Pack books", domain.StatusDone, domain.DifficultyEasy, plan.RefID)
	env.createTask(t, "Book van", domain.StatusNotStarted, domain.DifficultyEasy, plan.RefID)
	env.createTask(t, "Unrelated", domain.StatusDone, domain.DifficultyEasy, domain.BadRefID)

	entry := env.run(t, domain.StatsTargetBigPlans)
	assert.Len(t, entry.EntityUpdated, 1)
	assert.False(t, entry.Opened)

	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		s, err := u.BigPlanStats().Load(ctx, plan.RefID)
		require.NoError(t, err)
		assert.Equal(t, 2, s.AllInboxTasksCnt)
		assert.Equal(t, 1, s.CompletedInboxTasksCnt)
		return nil
	})

	again := env.run(t, domain.StatsTargetBigPlans)
	assert.Empty(t, again.EntityUpdated)
}

func TestGamificationScoresEachCompletionOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createTask(t, "Hard thing", domain.StatusDone, domain.DifficultyHard, domain.BadRefID)
	env.createTask(t, "Skipped", domain.StatusNotDone, domain.DifficultyEasy, domain.BadRefID)
	env.createTask(t, "Open", domain.StatusInProgress, domain.DifficultyMedium, domain.BadRefID)
	env.createBigPlan(t, domain.BigPlanDone)

	check := func() {
		env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
			user := env.Boot.User.RefID
			daily, ok, err := u.ScoreStats().Load(ctx, user, domain.PeriodDaily, "2024-08-12")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, 5-1+20, daily.TotalScore)
			assert.Equal(t, 2, daily.InboxTaskCnt)
			assert.Equal(t, 1, daily.BigPlanCnt)

			lifetime, ok, err := u.ScoreStats().Load(ctx, user, "", stats.LifetimeTimeline)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, daily.TotalScore, lifetime.TotalScore)

			best, ok, err := u.ScorePeriodBests().Load(ctx, user, domain.PeriodWeekly, "2024-W33", domain.PeriodDaily)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, daily.TotalScore, best.TotalScore)
			return nil
		})
	}
	env.run(t, domain.StatsTargetGamification)
	check()
	env.run(t, domain.StatsTargetGamification)
	check()
}

func TestReportCountsTasksInWindow(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createTask(t, "Done", domain.StatusDone, domain.DifficultyEasy, domain.BadRefID)
	env.createTask(t, "Not done", domain.StatusNotDone, domain.DifficultyEasy, domain.BadRefID)
	env.createTask(t, "Working", domain.StatusInProgress, domain.DifficultyEasy, domain.BadRefID)
	env.createTask(t, "Accepted", domain.StatusNotStarted, domain.DifficultyEasy, domain.BadRefID)
	env.createBigPlan(t, domain.BigPlanDone)

	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		report, err := stats.ReportService{}.Report(ctx, u, env.Boot.Workspace.RefID, stats.ReportArgs{
			Today: day("2024-08-12"),
			Start: day("2024-08-12"),
			End:   day("2024-08-18"),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.InboxTasksSummary{Created: 4, Accepted: 1, Working: 1, NotDone: 1, Done: 1, TotalCount: 4}, report.InboxTasks)
		assert.Equal(t, 1, report.PerSource[domain.SourceUser])
		assert.Equal(t, 1, report.PerProjectDone[env.Boot.RootProject.RefID])
		assert.Equal(t, 1, report.BigPlansDone)
		assert.Zero(t, report.BigPlansStarted)

		later, err := stats.ReportService{}.Report(ctx, u, env.Boot.Workspace.RefID, stats.ReportArgs{
			Today: day("2024-09-02"),
			Start: day("2024-09-02"),
			End:   day("2024-09-08"),
		})
		require.NoError(t, err)
		assert.Zero(t, later.InboxTasks.TotalCount)
		assert.Zero(t, later.BigPlansDone)
		return nil
	})
}

func TestStreakMarksFollowHabitTasks(t *testing.T) {
	env := newTestEnv(t, nil)
	var habit *domain.Habit
	var task *domain.InboxTask
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		habits, err := uow.For[*domain.HabitCollection](u).LoadByParent(ctx, env.Boot.Workspace.RefID)
		require.NoError(t, err)
		params := domain.RecurringTaskGenParams{Period: domain.PeriodDaily, Eisen: domain.EisenRegular, Difficulty: domain.DifficultyEasy}
		habit, err = domain.NewHabit(env.ECtx, habits.RefID, env.Boot.RootProject.RefID, "Stretch", params, nil, "")
		require.NoError(t, err)
		_, err = uow.For[*domain.Habit](u).Create(ctx, habit)
		require.NoError(t, err)

		tasks, err := uow.For[*domain.InboxTaskCollection](u).LoadByParent(ctx, env.Boot.Workspace.RefID)
		require.NoError(t, err)
		task, err = domain.NewInboxTaskForHabit(env.ECtx, tasks.RefID, habit.RefID, domain.GeneratedTask{
			Project:     env.Boot.RootProject.RefID,
			Name:        "Stretch",
			Eisen:       domain.EisenRegular,
			Difficulty:  domain.DifficultyEasy,
			DueDate:     day("2024-08-12"),
			Timeline:    "2024-08-12",
			GenRightNow: day("2024-08-12"),
		})
		require.NoError(t, err)
		_, err = uow.For[*domain.InboxTask](u).Create(ctx, task)
		return err
	})

	var recorder stats.StreakRecorder
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		require.NoError(t, recorder.Upsert(ctx, u, env.ECtx, habit, day("2024-08-12"), []*domain.InboxTask{task}))
		mark, err := u.StreakMarks().Load(ctx, habit.RefID, day("2024-08-12"))
		require.NoError(t, err)
		assert.Equal(t, domain.StatusNotStartedGen, mark.Statuses[task.RefID])
		assert.Equal(t, 2024, mark.Year)

		done := domain.StatusDone
		require.NoError(t, task.Update(env.ECtx, domain.InboxTaskUpdate{Status: &done}))
		_, err = uow.For[*domain.InboxTask](u).Save(ctx, task)
		require.NoError(t, err)
		require.NoError(t, recorder.Upsert(ctx, u, env.ECtx, habit, day("2024-08-12"), []*domain.InboxTask{task}))
		mark, err = u.StreakMarks().Load(ctx, habit.RefID, day("2024-08-12"))
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDone, mark.Statuses[task.RefID])

		require.NoError(t, recorder.Upsert(ctx, u, env.ECtx, habit, day("2024-08-12"), nil))
		mark, err = u.StreakMarks().Load(ctx, habit.RefID, day("2024-08-12"))
		require.NoError(t, err)
		assert.Empty(t, mark.Statuses)

		n, err := recorder.Rebuild(ctx, u, env.ECtx, habit)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		mark, err = u.StreakMarks().Load(ctx, habit.RefID, day("2024-08-12"))
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDone, mark.Statuses[task.RefID])

		require.NoError(t, task.MarkArchived(env.ECtx, domain.ArchivalReasonUser))
		_, err = uow.For[*domain.InboxTask](u).Save(ctx, task)
		require.NoError(t, err)
		require.NoError(t, recorder.Upsert(ctx, u, env.ECtx, habit, day("2024-08-12"), []*domain.InboxTask{task}))
		mark, err = u.StreakMarks().Load(ctx, habit.RefID, day("2024-08-12"))
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDone, mark.Statuses[task.RefID], "collected tasks stay in the streak")
		return nil
	})
}

func TestInboxTaskCompletionNeedsACompletedTask(t *testing.T) {
	env := newTestEnv(t, nil)
	open := env.createTask(t, "Open", domain.StatusInProgress, domain.DifficultyMedium, domain.BadRefID)
	done := env.createTask(t, "Done", domain.StatusDone, domain.DifficultyHard, domain.BadRefID)

	_, ok := stats.InboxTaskCompletion(open)
	assert.False(t, ok)

	c, ok := stats.InboxTaskCompletion(done)
	require.True(t, ok)
	assert.True(t, c.Success)
	assert.Equal(t, done.RefID, c.RefID)

	done.CompletedTime = nil
	_, ok = stats.InboxTaskCompletion(done)
	assert.False(t, ok)
}

func TestStatsRespectFeatureFlags(t *testing.T) {
	env := newTestEnv(t, domain.WorkspaceFeatureFlags{domain.FeatureBigPlans: false})
	_, err := env.Stats.Run(env.Ctx, stats.Args{
		User:      env.Boot.User.RefID,
		Workspace: env.Boot.Workspace.RefID,
		Targets:   []domain.StatsTarget{domain.StatsTargetBigPlans},
	})
	require.ErrorIs(t, err, domain.ErrFeatureUnavailable)

	_, err = env.Stats.Run(env.Ctx, stats.Args{
		User:      env.Boot.User.RefID,
		Workspace: env.Boot.Workspace.RefID,
		Targets:   []domain.StatsTarget{"velocity"},
	})
	require.ErrorIs(t, err, domain.ErrInputValidation)
}
