package cascade_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jupiter/internal/app"
	"jupiter/internal/cascade"
	"jupiter/internal/config"
	"jupiter/internal/db"
	"jupiter/internal/domain"
	"jupiter/internal/migrate"
	"jupiter/internal/progress"
	"jupiter/internal/repo"
	"jupiter/internal/uow"
)

type testEnv struct {
	Ctx      context.Context
	UOW      uow.Provider
	ECtx     domain.Ctx
	Boot     app.Bootstrap
	Counter  *progress.Counter
	Cascade  cascade.Service
	Projects domain.EntityID
	Tasks    domain.EntityID
	Notes    domain.EntityID
	Habits   domain.EntityID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{URL: "sqlite:///" + filepath.Join(t.TempDir(), "jupiter.sqlite")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	counter := &progress.Counter{}
	env := &testEnv{
		Ctx:     context.Background(),
		UOW:     uow.Provider{DB: conn},
		ECtx:    domain.NewCtx(domain.EventSourceCLI, time.Date(2024, 8, 12, 9, 0, 0, 0, time.UTC)),
		Counter: counter,
		Cascade: cascade.Service{Reporter: counter},
	}
	err = env.UOW.Do(env.Ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		boot, err := app.InitWorkspace(ctx, u, env.ECtx, config.FeatureControls(config.EnvLocal), app.InitArgs{
			UserName: "Ada", UserEmail: "ada@example.com", WorkspaceName: "Home",
		})
		if err != nil {
			return err
		}
		env.Boot = boot
		ws := boot.Workspace.RefID
		projects, err := uow.For[*domain.ProjectCollection](u).LoadByParent(ctx, ws)
		if err != nil {
			return err
		}
		tasks, err := uow.For[*domain.InboxTaskCollection](u).LoadByParent(ctx, ws)
		if err != nil {
			return err
		}
		notes, err := uow.For[*domain.NoteCollection](u).LoadByParent(ctx, ws)
		if err != nil {
			return err
		}
		habits, err := uow.For[*domain.HabitCollection](u).LoadByParent(ctx, ws)
		if err != nil {
			return err
		}
		env.Projects, env.Tasks, env.Notes, env.Habits = projects.RefID, tasks.RefID, notes.RefID, habits.RefID
		return nil
	})
	require.NoError(t, err)
	return env
}

func (env *testEnv) do(t *testing.T, fn func(ctx context.Context, u *uow.UnitOfWork) error) {
	t.Helper()
	require.NoError(t, env.UOW.Do(env.Ctx, fn))
}

type habitTree struct {
	Project *domain.Project
	Habit   *domain.Habit
	Task    *domain.InboxTask
	Note    *domain.Note
}

func (env *testEnv) seedHabitTree(t *testing.T) habitTree {
	t.Helper()
	var tree habitTree
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		p, err := domain.NewProject(env.ECtx, env.Projects, env.Boot.RootProject.RefID, "Health")
		require.NoError(t, err)
		tree.Project, err = uow.For[*domain.Project](u).Create(ctx, p)
		require.NoError(t, err)

		params := domain.RecurringTaskGenParams{Period: domain.PeriodDaily, Eisen: domain.EisenRegular, Difficulty: domain.DifficultyEasy}
		h, err := domain.NewHabit(env.ECtx, env.Habits, p.RefID, "Stretch", params, nil, "")
		require.NoError(t, err)
		tree.Habit, err = uow.For[*domain.Habit](u).Create(ctx, h)
		require.NoError(t, err)

		task, err := domain.NewInboxTaskForHabit(env.ECtx, env.Tasks, h.RefID, domain.GeneratedTask{
			Project: p.RefID, Name: "Stretch", Eisen: domain.EisenRegular, Difficulty: domain.DifficultyEasy,
			DueDate: domain.NewDate(2024, 8, 12), Timeline: "2024-08-12", GenRightNow: domain.NewDate(2024, 8, 12),
		})
		require.NoError(t, err)
		tree.Task, err = uow.For[*domain.InboxTask](u).Create(ctx, task)
		require.NoError(t, err)

		n, err := domain.NewNote(env.ECtx, env.Notes, domain.NoteDomainInboxTask, task.RefID, domain.TextContent("slowly"))
		require.NoError(t, err)
		tree.Note, err = uow.For[*domain.Note](u).Create(ctx, n)
		require.NoError(t, err)
		return u.StreakMarks().Upsert(ctx, domain.NewHabitStreakMark(env.ECtx, h.RefID, domain.NewDate(2024, 8, 12)))
	})
	return tree
}

func TestArchiveProjectArchivesOwnedEntities(t *testing.T) {
	env := newTestEnv(t)
	tree := env.seedHabitTree(t)

	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		return env.Cascade.Archive(ctx, u, env.ECtx, domain.KindProject, tree.Project.RefID, domain.ArchivalReasonUser)
	})

	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		p, err := uow.For[*domain.Project](u).LoadByID(ctx, tree.Project.RefID, true)
		require.NoError(t, err)
		assert.True(t, p.Archived)
		assert.Equal(t, domain.ArchivalReasonUser, p.ArchivalReason)

		h, err := uow.For[*domain.Habit](u).LoadByID(ctx, tree.Habit.RefID, true)
		require.NoError(t, err)
		assert.True(t, h.Archived)
		assert.Equal(t, domain.ArchivalReasonParentArchived, h.ArchivalReason)

		task, err := uow.For[*domain.InboxTask](u).LoadByID(ctx, tree.Task.RefID, true)
		require.NoError(t, err)
		assert.True(t, task.Archived)

		n, err := uow.For[*domain.Note](u).LoadByID(ctx, tree.Note.RefID, true)
		require.NoError(t, err)
		assert.True(t, n.Archived)

		root, err := uow.For[*domain.Project](u).LoadByID(ctx, env.Boot.RootProject.RefID, false)
		require.NoError(t, err)
		assert.False(t, root.Archived)
		assert.Equal(t, 1, root.Version)
		return nil
	})
	assert.Len(t, env.Counter.Archived, 4)
	assert.Equal(t, domain.KindNote, env.Counter.Archived[0].EntityTag)
	assert.Equal(t, domain.KindProject, env.Counter.Archived[3].EntityTag)
}

func TestArchiveTwiceIsNoop(t *testing.T) {
	env := newTestEnv(t)
	tree := env.seedHabitTree(t)
	for i := 0; i < 2; i++ {
		env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
			return env.Cascade.Archive(ctx, u, env.ECtx, domain.KindHabit, tree.Habit.RefID, domain.ArchivalReasonUser)
		})
	}
	assert.Len(t, env.Counter.Archived, 3)
}

func TestArchiveRootProjectFails(t *testing.T) {
	env := newTestEnv(t)
	err := env.UOW.Do(env.Ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		return env.Cascade.Archive(ctx, u, env.ECtx, domain.KindProject, env.Boot.RootProject.RefID, domain.ArchivalReasonUser)
	})
	require.ErrorIs(t, err, domain.ErrInputValidation)
}

func TestArchiveDefaultingProjectFails(t *testing.T) {
	env := newTestEnv(t)
	tree := env.seedHabitTree(t)
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		metrics, err := uow.For[*domain.MetricCollection](u).LoadByParent(ctx, env.Boot.Workspace.RefID)
		require.NoError(t, err)
		metrics.ChangeCollectionProject(env.ECtx, tree.Project.RefID)
		_, err = uow.For[*domain.MetricCollection](u).Save(ctx, metrics)
		return err
	})

	err := env.UOW.Do(env.Ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		return env.Cascade.Archive(ctx, u, env.ECtx, domain.KindProject, tree.Project.RefID, domain.ArchivalReasonUser)
	})
	require.ErrorIs(t, err, domain.ErrInputValidation)

	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		h, err := uow.For[*domain.Habit](u).LoadByID(ctx, tree.Habit.RefID, false)
		require.NoError(t, err)
		assert.False(t, h.Archived)
		return nil
	})
}

func TestRemoveRefusesLiveGeneratedTasks(t *testing.T) {
	env := newTestEnv(t)
	tree := env.seedHabitTree(t)

	err := env.UOW.Do(env.Ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		return env.Cascade.Remove(ctx, u, domain.KindHabit, tree.Habit.RefID)
	})
	require.ErrorIs(t, err, domain.ErrUnsafeRemoval)

	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		if err := env.Cascade.Archive(ctx, u, env.ECtx, domain.KindHabit, tree.Habit.RefID, domain.ArchivalReasonUser); err != nil {
			return err
		}
		return env.Cascade.Remove(ctx, u, domain.KindHabit, tree.Habit.RefID)
	})

	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		_, err := uow.For[*domain.Habit](u).LoadByID(ctx, tree.Habit.RefID, true)
		assert.ErrorIs(t, err, domain.ErrEntityNotFound)
		_, err = uow.For[*domain.InboxTask](u).LoadByID(ctx, tree.Task.RefID, true)
		assert.ErrorIs(t, err, domain.ErrEntityNotFound)
		_, err = uow.For[*domain.Note](u).LoadByID(ctx, tree.Note.RefID, true)
		assert.ErrorIs(t, err, domain.ErrEntityNotFound)
		marks, err := u.StreakMarks().FindForHabit(ctx, tree.Habit.RefID, domain.NewDate(2024, 1, 1), domain.NewDate(2024, 12, 31))
		require.NoError(t, err)
		assert.Empty(t, marks)
		history, err := uow.For[*domain.Habit](u).History(ctx, tree.Habit.RefID)
		require.NoError(t, err)
		assert.Empty(t, history)
		return nil
	})
	assert.Len(t, env.Counter.Removed, 3)
}

func TestRemoveRootProjectIsUnsafe(t *testing.T) {
	env := newTestEnv(t)
	err := env.UOW.Do(env.Ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		return env.Cascade.Remove(ctx, u, domain.KindProject, env.Boot.RootProject.RefID)
	})
	require.ErrorIs(t, err, domain.ErrUnsafeRemoval)
}

func TestFailedArchiveLeavesNothingBehind(t *testing.T) {
	env := newTestEnv(t)
	tree := env.seedHabitTree(t)
	err := env.UOW.Do(env.Ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		if err := env.Cascade.Archive(ctx, u, env.ECtx, domain.KindHabit, tree.Habit.RefID, domain.ArchivalReasonUser); err != nil {
			return err
		}
		return env.Cascade.Archive(ctx, u, env.ECtx, domain.KindProject, env.Boot.RootProject.RefID, domain.ArchivalReasonUser)
	})
	require.Error(t, err)
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		live, err := uow.For[*domain.InboxTask](u).FindAllGeneric(ctx, repo.Query{Filter: map[string]any{"source": string(domain.SourceHabit)}})
		require.NoError(t, err)
		assert.Len(t, live, 1)
		return nil
	})
}
