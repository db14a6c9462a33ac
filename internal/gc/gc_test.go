package gc_test

import (
	"context"
	"errors"
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
	"jupiter/internal/gc"
	"jupiter/internal/migrate"
	"jupiter/internal/uow"
)

var seeded = time.Date(2024, 8, 12, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	Ctx  context.Context
	UOW  uow.Provider
	ECtx domain.Ctx
	Boot app.Bootstrap
	GC   gc.Service
}

func newTestEnv(t *testing.T) *testEnv {
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
	env.GC = gc.Service{UOW: env.UOW, Locks: uow.NewLocks(), Log: logger, Now: func() time.Time { return seeded }}
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		boot, err := app.InitWorkspace(ctx, u, env.ECtx, config.FeatureControls(config.EnvLocal), app.InitArgs{
			UserName: "Ada", UserEmail: "ada@example.com", WorkspaceName: "Home",
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

func (env *testEnv) createTask(t *testing.T, ectx domain.Ctx, name string, status domain.InboxTaskStatus) *domain.InboxTask {
	t.Helper()
	var task *domain.InboxTask
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		coll, err := uow.For[*domain.InboxTaskCollection](u).LoadByParent(ctx, env.Boot.Workspace.RefID)
		require.NoError(t, err)
		task, err = domain.NewInboxTask(ectx, coll.RefID, name, status, env.Boot.RootProject.RefID, domain.BadRefID,
			domain.EisenRegular, domain.DifficultyEasy, domain.ADate{}, domain.ADate{})
		require.NoError(t, err)
		_, err = uow.For[*domain.InboxTask](u).Create(ctx, task)
		return err
	})
	return task
}

func (env *testEnv) load(t *testing.T, kind domain.Kind, refID domain.EntityID) domain.Entity {
	t.Helper()
	var e domain.Entity
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		g, err := u.GetFor(kind)
		require.NoError(t, err)
		e, err = g.Load(ctx, refID, true)
		return err
	})
	return e
}

func day(s string) domain.ADate { return domain.MustParseDate(s) }

func TestGCArchivesOldCompletedTasksOnly(t *testing.T) {
	env := newTestEnv(t)
	old := env.createTask(t, env.ECtx, "File taxes", domain.StatusDone)
	oldFailed := env.createTask(t, env.ECtx, "Call bank", domain.StatusNotDone)
	open := env.createTask(t, env.ECtx, "Paint fence", domain.StatusInProgress)
	recent := env.createTask(t, domain.NewCtx(domain.EventSourceCLI, seeded.AddDate(0, 0, 30)), "Water plants", domain.StatusDone)

	entry, err := env.GC.Run(env.Ctx, gc.Args{
		User:      env.Boot.User.RefID,
		Workspace: env.Boot.Workspace.RefID,
		Today:     day("2024-09-20"),
		Targets:   []domain.GCTarget{domain.GCTargetInboxTasks},
	})
	require.NoError(t, err)
	assert.False(t, entry.Opened)
	assert.Len(t, entry.EntityArchived, 2)

	assert.True(t, env.load(t, domain.KindInboxTask, old.RefID).Base().Archived)
	assert.True(t, env.load(t, domain.KindInboxTask, oldFailed.RefID).Base().Archived)
	assert.False(t, env.load(t, domain.KindInboxTask, open.RefID).Base().Archived)
	assert.False(t, env.load(t, domain.KindInboxTask, recent.RefID).Base().Archived)
}

func TestGCArchivesCompletedBigPlansAndOldWorkingMems(t *testing.T) {
	env := newTestEnv(t)
	var done, running *domain.BigPlan
	var stale, fresh *domain.WorkingMem
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		plans, err := uow.For[*domain.BigPlanCollection](u).LoadByParent(ctx, env.Boot.Workspace.RefID)
		require.NoError(t, err)
		done, err = domain.NewBigPlan(env.ECtx, plans.RefID, env.Boot.RootProject.RefID, "Move house", domain.BigPlanDone, domain.ADate{}, domain.ADate{})
		require.NoError(t, err)
		running, err = domain.NewBigPlan(env.ECtx, plans.RefID, env.Boot.RootProject.RefID, "Learn Go", domain.BigPlanInProgress, domain.ADate{}, domain.ADate{})
		require.NoError(t, err)
		for _, p := range []*domain.BigPlan{done, running} {
			if _, err := uow.For[*domain.BigPlan](u).Create(ctx, p); err != nil {
				return err
			}
		}

		mems, err := uow.For[*domain.WorkingMemCollection](u).LoadByParent(ctx, env.Boot.Workspace.RefID)
		require.NoError(t, err)
		stale, err = domain.NewWorkingMem(env.ECtx, mems.RefID, domain.PeriodBucket{
			Period: domain.PeriodWeekly, Timeline: "2024/Q3/Aug/W33",
			RightNow: day("2024-08-12"), StartDate: day("2024-08-12"), EndDate: day("2024-08-18"),
		})
		require.NoError(t, err)
		fresh, err = domain.NewWorkingMem(env.ECtx, mems.RefID, domain.PeriodBucket{
			Period: domain.PeriodWeekly, Timeline: "2024/Q3/Aug/W35",
			RightNow: day("2024-08-26"), StartDate: day("2024-08-26"), EndDate: day("2024-09-01"),
		})
		require.NoError(t, err)
		for _, m := range []*domain.WorkingMem{stale, fresh} {
			if _, err := uow.For[*domain.WorkingMem](u).Create(ctx, m); err != nil {
				return err
			}
		}
		return nil
	})

	entry, err := env.GC.Run(env.Ctx, gc.Args{
		User:      env.Boot.User.RefID,
		Workspace: env.Boot.Workspace.RefID,
		Today:     day("2024-09-01"),
		Targets:   []domain.GCTarget{domain.GCTargetBigPlans, domain.GCTargetWorkingMem},
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.GCTarget{domain.GCTargetBigPlans, domain.GCTargetWorkingMem}, entry.Targets)

	assert.True(t, env.load(t, domain.KindBigPlan, done.RefID).Base().Archived)
	assert.False(t, env.load(t, domain.KindBigPlan, running.RefID).Base().Archived)
	assert.True(t, env.load(t, domain.KindWorkingMem, stale.RefID).Base().Archived)
	assert.False(t, env.load(t, domain.KindWorkingMem, fresh.RefID).Base().Archived)

	var entries []*domain.GCLogEntry
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		gcLog, err := uow.For[*domain.GCLog](u).LoadByParent(ctx, env.Boot.Workspace.RefID)
		require.NoError(t, err)
		entries, err = uow.For[*domain.GCLogEntry](u).FindAll(ctx, gcLog.RefID, false)
		return err
	})
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Opened)
}

func TestGCRejectsUnknownTarget(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.GC.Run(env.Ctx, gc.Args{
		User:      env.Boot.User.RefID,
		Workspace: env.Boot.Workspace.RefID,
		Targets:   []domain.GCTarget{"journals"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInputValidation))
}
