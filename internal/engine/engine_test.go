package engine_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jupiter/internal/config"
	"jupiter/internal/db"
	"jupiter/internal/domain"
	"jupiter/internal/engine"
	"jupiter/internal/engine/auth"
	"jupiter/internal/migrate"
)

var seeded = time.Date(2024, 8, 12, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	Ctx     context.Context
	Engine  engine.Engine
	Session engine.Session
	ID      engine.Identity
	Logs    *test.Hook
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{URL: "sqlite:///" + filepath.Join(t.TempDir(), "jupiter.sqlite")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	eng := engine.New(conn, &config.Settings{Env: config.EnvLocal}, logger)
	eng.Now = func() time.Time { return seeded }
	eng.Tokens.Now = eng.Now

	env := &testEnv{Ctx: context.Background(), Engine: eng, Logs: hook}
	env.Session, err = eng.Init(env.Ctx, engine.InitArgs{
		UserName:      "Ada",
		UserEmail:     "ada@example.com",
		WorkspaceName: "Home",
	})
	require.NoError(t, err)
	env.ID = engine.Identity{User: env.Session.User.RefID, Workspace: env.Session.Workspace.RefID}
	return env
}

func (env *testEnv) task(t *testing.T, name string) *domain.InboxTask {
	t.Helper()
	task, err := env.Engine.CreateInboxTask(env.Ctx, env.ID, engine.CreateInboxTaskArgs{Name: name})
	require.NoError(t, err)
	return task
}

func ref[T any](v T) *T { return &v }

func TestInitIssuesUsableToken(t *testing.T) {
	env := newTestEnv(t)

	id, err := env.Engine.Authenticate(env.Ctx, env.Session.AuthToken)
	require.NoError(t, err)
	assert.Equal(t, env.ID.User, id.User)
	assert.Equal(t, env.ID.Workspace, id.Workspace)

	_, err = env.Engine.Init(env.Ctx, engine.InitArgs{UserName: "Ada", UserEmail: "ada@example.com", WorkspaceName: "Other"})
	require.ErrorIs(t, err, domain.ErrEntityAlreadyExists)
}

func TestLoginByEmail(t *testing.T) {
	env := newTestEnv(t)

	s, err := env.Engine.Login(env.Ctx, engine.LoginArgs{EmailAddress: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, env.Session.Workspace.RefID, s.Workspace.RefID)

	_, err = env.Engine.Login(env.Ctx, engine.LoginArgs{EmailAddress: "bob@example.com"})
	require.ErrorIs(t, err, domain.ErrEntityNotFound)

	_, err = env.Engine.Login(env.Ctx, engine.LoginArgs{EmailAddress: "not-an-email"})
	require.ErrorIs(t, err, domain.ErrInputValidation)
}

func TestAPIKeyRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.Engine.CreateAPIKey(env.Ctx, env.ID, engine.CreateAPIKeyArgs{Name: "ci"})
	require.NoError(t, err)
	assert.Contains(t, created.Key, auth.APIKeyPrefix)

	id, err := env.Engine.AuthenticateAPIKey(env.Ctx, created.Key)
	require.NoError(t, err)
	assert.Equal(t, env.ID.Workspace, id.Workspace)

	_, err = env.Engine.DeleteAPIKey(env.Ctx, env.ID, engine.DeleteAPIKeyArgs{ID: created.ID})
	require.NoError(t, err)
	_, err = env.Engine.AuthenticateAPIKey(env.Ctx, created.Key)
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestUnknownIdentityIsRejected(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Engine.LoadWorkspace(env.Ctx, engine.Identity{}, struct{}{})
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = env.Engine.LoadWorkspace(env.Ctx, engine.Identity{User: env.ID.User, Workspace: env.ID.Workspace + 100}, struct{}{})
	require.ErrorIs(t, err, domain.ErrEntityNotFound)
}

func TestProjectsRefuseCycles(t *testing.T) {
	env := newTestEnv(t)

	work, err := env.Engine.CreateProject(env.Ctx, env.ID, engine.CreateProjectArgs{Name: "Work"})
	require.NoError(t, err)
	assert.Equal(t, env.Session.Workspace.DefaultProjectRefID, work.ParentProjectRefID)

	ops, err := env.Engine.CreateProject(env.Ctx, env.ID, engine.CreateProjectArgs{Name: "Ops", ParentProjectRefID: &work.RefID})
	require.NoError(t, err)

	_, err = env.Engine.UpdateProject(env.Ctx, env.ID, engine.UpdateProjectArgs{RefID: work.RefID, ParentProjectRefID: &ops.RefID})
	require.ErrorIs(t, err, domain.ErrInputValidation)

	renamed, err := env.Engine.UpdateProject(env.Ctx, env.ID, engine.UpdateProjectArgs{RefID: ops.RefID, Name: ref("Operations")})
	require.NoError(t, err)
	assert.Equal(t, "Operations", renamed.Name)
}

func TestInboxTaskLifecycle(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, "File taxes")
	assert.Equal(t, domain.SourceUser, task.Source)
	assert.Equal(t, env.Session.Workspace.DefaultProjectRefID, task.ProjectRefID)

	task, err := env.Engine.UpdateInboxTask(env.Ctx, env.ID, engine.UpdateInboxTaskArgs{
		RefID:  task.RefID,
		Status: ref(domain.StatusDone),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, task.Status)
	require.NotNil(t, task.CompletedTime)

	hist, err := env.Engine.History(env.Ctx, env.ID, engine.RefArgs{Kind: domain.KindInboxTask, RefID: task.RefID})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(hist.Events), 2)

	list, err := env.Engine.List(env.Ctx, env.ID, engine.ListArgs{
		Kind:   domain.KindInboxTask,
		Filter: map[string]any{"status": string(domain.StatusDone)},
	})
	require.NoError(t, err)
	require.Len(t, list.Entities, 1)
	assert.Equal(t, task.RefID, list.Entities[0].Base().RefID)
}

func TestBigPlanTasksFollowProjectChange(t *testing.T) {
	env := newTestEnv(t)
	plan, err := env.Engine.CreateBigPlan(env.Ctx, env.ID, engine.CreateBigPlanArgs{Name: "Move house"})
	require.NoError(t, err)

	task := env.task(t, "Pack boxes")
	task, err = env.Engine.AssociateInboxTaskWithBigPlan(env.Ctx, env.ID, engine.AssociateBigPlanArgs{RefID: task.RefID, BigPlanRefID: &plan.RefID})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceBigPlan, task.Source)

	other, err := env.Engine.CreateProject(env.Ctx, env.ID, engine.CreateProjectArgs{Name: "Home"})
	require.NoError(t, err)
	_, err = env.Engine.UpdateBigPlan(env.Ctx, env.ID, engine.UpdateBigPlanArgs{RefID: plan.RefID, ProjectRefID: &other.RefID})
	require.NoError(t, err)

	view, err := env.Engine.Load(env.Ctx, env.ID, engine.RefArgs{Kind: domain.KindInboxTask, RefID: task.RefID})
	require.NoError(t, err)
	assert.Equal(t, other.RefID, view.Entity.(*domain.InboxTask).ProjectRefID)
}

func TestArchiveBigPlanArchivesItsTasks(t *testing.T) {
	env := newTestEnv(t)
	plan, err := env.Engine.CreateBigPlan(env.Ctx, env.ID, engine.CreateBigPlanArgs{Name: "Launch"})
	require.NoError(t, err)
	task := env.task(t, "Write post")
	_, err = env.Engine.AssociateInboxTaskWithBigPlan(env.Ctx, env.ID, engine.AssociateBigPlanArgs{RefID: task.RefID, BigPlanRefID: &plan.RefID})
	require.NoError(t, err)

	res, err := env.Engine.Archive(env.Ctx, env.ID, engine.ArchiveArgs{Kind: domain.KindBigPlan, RefID: plan.RefID})
	require.NoError(t, err)
	kinds := map[domain.Kind]int{}
	for _, s := range res.Archived {
		kinds[s.EntityTag]++
	}
	assert.Equal(t, 1, kinds[domain.KindBigPlan])
	assert.Equal(t, 1, kinds[domain.KindInboxTask])

	_, err = env.Engine.Load(env.Ctx, env.ID, engine.RefArgs{Kind: domain.KindInboxTask, RefID: task.RefID})
	require.ErrorIs(t, err, domain.ErrEntityNotFound)
	view, err := env.Engine.Load(env.Ctx, env.ID, engine.RefArgs{Kind: domain.KindInboxTask, RefID: task.RefID, AllowArchived: true})
	require.NoError(t, err)
	assert.True(t, view.Entity.Base().Archived)
}

func TestRemoveDefaultProjectIsUnsafe(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Engine.Remove(env.Ctx, env.ID, engine.ArchiveArgs{Kind: domain.KindProject, RefID: env.Session.Workspace.DefaultProjectRefID})
	require.ErrorIs(t, err, domain.ErrUnsafeRemoval)
}

func TestRemoveDeletesTask(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, "Throwaway")

	res, err := env.Engine.Remove(env.Ctx, env.ID, engine.ArchiveArgs{Kind: domain.KindInboxTask, RefID: task.RefID})
	require.NoError(t, err)
	require.Len(t, res.Removed, 1)

	_, err = env.Engine.Load(env.Ctx, env.ID, engine.RefArgs{Kind: domain.KindInboxTask, RefID: task.RefID, AllowArchived: true})
	require.ErrorIs(t, err, domain.ErrEntityNotFound)
}

func TestLogEntriesAreReadOnly(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Engine.Archive(env.Ctx, env.ID, engine.ArchiveArgs{Kind: domain.KindGenLogEntry, RefID: 1})
	require.ErrorIs(t, err, domain.ErrInputValidation)
}

func TestVacationShowsOnCalendar(t *testing.T) {
	env := newTestEnv(t)
	v, err := env.Engine.CreateVacation(env.Ctx, env.ID, engine.CreateVacationArgs{
		Name:      "Beach",
		StartDate: domain.NewDate(2024, 8, 14),
		EndDate:   domain.NewDate(2024, 8, 16),
	})
	require.NoError(t, err)

	cal, err := env.Engine.Calendar(env.Ctx, env.ID, engine.CalendarArgs{})
	require.NoError(t, err)
	require.Len(t, cal.FullDays, 1)
	assert.Equal(t, domain.NamespaceVacation, cal.FullDays[0].Namespace)
	assert.Equal(t, v.RefID, cal.FullDays[0].SourceEntityRefID)

	_, err = env.Engine.UpdateVacation(env.Ctx, env.ID, engine.UpdateVacationArgs{
		RefID:     v.RefID,
		StartDate: ref(domain.NewDate(2024, 9, 1)),
		EndDate:   ref(domain.NewDate(2024, 9, 3)),
	})
	require.NoError(t, err)

	cal, err = env.Engine.Calendar(env.Ctx, env.ID, engine.CalendarArgs{})
	require.NoError(t, err)
	assert.Empty(t, cal.FullDays)
	cal, err = env.Engine.Calendar(env.Ctx, env.ID, engine.CalendarArgs{Start: domain.NewDate(2024, 9, 1), End: domain.NewDate(2024, 9, 7)})
	require.NoError(t, err)
	assert.Len(t, cal.FullDays, 1)
}

func TestNotesCreateThenReplace(t *testing.T) {
	env := newTestEnv(t)
	task := env.task(t, "Call bank")
	target := engine.NoteRefArgs{Domain: domain.NoteDomainInboxTask, SourceRefID: task.RefID}

	_, err := env.Engine.LoadNote(env.Ctx, env.ID, target)
	require.ErrorIs(t, err, domain.ErrEntityNotFound)

	first, err := env.Engine.SetNote(env.Ctx, env.ID, engine.SetNoteArgs{NoteRefArgs: target, Text: ref("Ask about fees")})
	require.NoError(t, err)
	second, err := env.Engine.SetNote(env.Ctx, env.ID, engine.SetNoteArgs{NoteRefArgs: target, Text: ref("Ask about rates")})
	require.NoError(t, err)
	assert.Equal(t, first.RefID, second.RefID)

	loaded, err := env.Engine.LoadNote(env.Ctx, env.ID, target)
	require.NoError(t, err)
	assert.Equal(t, "Ask about rates", loaded.Content.PlainText())
}

func TestFeatureFlagsGateUseCases(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.ChangeWorkspaceFeatureFlags(env.Ctx, env.ID, engine.WorkspaceFeatureFlagsArgs{
		FeatureFlags: domain.WorkspaceFeatureFlags{domain.FeatureHabits: false},
	})
	require.NoError(t, err)

	_, err = env.Engine.CreateHabit(env.Ctx, env.ID, engine.CreateHabitArgs{
		Name:      "Stretch",
		GenParams: domain.RecurringTaskGenParams{Period: domain.PeriodDaily},
	})
	require.ErrorIs(t, err, domain.ErrFeatureUnavailable)

	_, err = env.Engine.ChangeWorkspaceFeatureFlags(env.Ctx, env.ID, engine.WorkspaceFeatureFlagsArgs{
		FeatureFlags: domain.WorkspaceFeatureFlags{domain.FeatureInboxTasks: false},
	})
	require.ErrorIs(t, err, domain.ErrInputValidation)
}

func TestSettingsPointAtProjects(t *testing.T) {
	env := newTestEnv(t)
	p, err := env.Engine.CreateProject(env.Ctx, env.ID, engine.CreateProjectArgs{Name: "Admin"})
	require.NoError(t, err)

	_, err = env.Engine.ChangeMetricCollectionProject(env.Ctx, env.ID, engine.ProjectSettingArgs{ProjectRefID: p.RefID})
	require.NoError(t, err)
	_, err = env.Engine.UpdateWorkingMemSettings(env.Ctx, env.ID, engine.WorkingMemSettingsArgs{
		GenerationPeriod:    ref(domain.PeriodWeekly),
		CleanupProjectRefID: &p.RefID,
	})
	require.NoError(t, err)

	view, err := env.Engine.LoadSettings(env.Ctx, env.ID, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, p.RefID, view.Metrics.CollectionProjectRefID)
	assert.Equal(t, domain.PeriodWeekly, view.WorkingMem.GenerationPeriod)

	_, err = env.Engine.ChangePersonCatchUpProject(env.Ctx, env.ID, engine.ProjectSettingArgs{ProjectRefID: 9999})
	require.ErrorIs(t, err, domain.ErrEntityNotFound)
}

func TestGenCreatesHabitTasksOnce(t *testing.T) {
	env := newTestEnv(t)
	h, err := env.Engine.CreateHabit(env.Ctx, env.ID, engine.CreateHabitArgs{
		Name:      "Stretch",
		GenParams: domain.RecurringTaskGenParams{Period: domain.PeriodDaily},
	})
	require.NoError(t, err)

	entry, err := env.Engine.Gen(env.Ctx, env.ID, engine.GenArgs{Targets: []domain.SyncTarget{domain.TargetHabits}})
	require.NoError(t, err)
	assert.False(t, entry.Opened)
	assert.Len(t, entry.EntityCreated, 1)

	_, err = env.Engine.Gen(env.Ctx, env.ID, engine.GenArgs{Targets: []domain.SyncTarget{domain.TargetHabits}})
	require.NoError(t, err)

	list, err := env.Engine.List(env.Ctx, env.ID, engine.ListArgs{
		Kind:   domain.KindInboxTask,
		Filter: map[string]any{"source": string(domain.SourceHabit), "source_entity_ref_id": int64(h.RefID)},
	})
	require.NoError(t, err)
	assert.Len(t, list.Entities, 1)

	logs, err := env.Engine.RecentLogs(env.Ctx, env.ID, engine.RecentLogsArgs{})
	require.NoError(t, err)
	assert.Len(t, logs.Entities, 2)
}

func TestScoresNeedGamification(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.UpdateUser(env.Ctx, env.ID, engine.UpdateUserArgs{
		FeatureFlags: domain.UserFeatureFlags{domain.FeatureGamification: false},
	})
	require.NoError(t, err)

	_, err = env.Engine.Scores(env.Ctx, env.ID, engine.ScoreArgs{})
	require.ErrorIs(t, err, domain.ErrFeatureUnavailable)
}
