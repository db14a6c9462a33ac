package gen_test

import (
	"context"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jupiter/internal/app"
	"jupiter/internal/config"
	"jupiter/internal/db"
	"jupiter/internal/domain"
	"jupiter/internal/gen"
	"jupiter/internal/migrate"
	"jupiter/internal/repo"
	"jupiter/internal/uow"
)

var seeded = time.Date(2024, 8, 12, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	Ctx   context.Context
	UOW   uow.Provider
	ECtx  domain.Ctx
	Boot  app.Bootstrap
	Clock time.Time
	Gen   gen.Service
	Logs  *test.Hook
}

func newTestEnv(t *testing.T, flags domain.WorkspaceFeatureFlags) *testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{URL: "sqlite:///" + filepath.Join(t.TempDir(), "jupiter.sqlite")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	env := &testEnv{
		Ctx:   context.Background(),
		UOW:   uow.Provider{DB: conn},
		ECtx:  domain.NewCtx(domain.EventSourceCLI, seeded),
		Clock: seeded,
		Logs:  hook,
	}
	env.Gen = gen.Service{
		UOW:   env.UOW,
		Locks: uow.NewLocks(),
		Log:   logger,
		Now:   func() time.Time { return env.Clock },
	}
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

func (env *testEnv) gen(t *testing.T, today domain.ADate, targets ...domain.SyncTarget) *domain.GenLogEntry {
	t.Helper()
	entry, err := env.Gen.Run(env.Ctx, gen.Args{
		User:      env.Boot.User.RefID,
		Workspace: env.Boot.Workspace.RefID,
		Today:     today,
		Targets:   targets,
	})
	require.NoError(t, err)
	return entry
}

func (env *testEnv) ws() domain.EntityID { return env.Boot.Workspace.RefID }

func (env *testEnv) tasks(t *testing.T, source domain.InboxTaskSource) []*domain.InboxTask {
	t.Helper()
	var out []*domain.InboxTask
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		var err error
		out, err = uow.For[*domain.InboxTask](u).FindAllGeneric(ctx, repo.Query{
			AllowArchived: true,
			Filter:        map[string]any{"source": string(source)},
		})
		return err
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].RecurringTimeline != out[j].RecurringTimeline {
			return out[i].RecurringTimeline < out[j].RecurringTimeline
		}
		return out[i].RepeatIndex() < out[j].RepeatIndex()
	})
	return out
}

func (env *testEnv) createHabit(t *testing.T, params domain.RecurringTaskGenParams, repeats *int) *domain.Habit {
	t.Helper()
	var h *domain.Habit
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		coll, err := uow.For[*domain.HabitCollection](u).LoadByParent(ctx, env.ws())
		require.NoError(t, err)
		h, err = domain.NewHabit(env.ECtx, coll.RefID, env.Boot.RootProject.RefID, "Stretch", params, repeats, "")
		require.NoError(t, err)
		_, err = uow.For[*domain.Habit](u).Create(ctx, h)
		return err
	})
	return h
}

func weekly() domain.RecurringTaskGenParams {
	return domain.RecurringTaskGenParams{Period: domain.PeriodWeekly, Eisen: domain.EisenRegular, Difficulty: domain.DifficultyEasy}
}

func daily() domain.RecurringTaskGenParams {
	return domain.RecurringTaskGenParams{Period: domain.PeriodDaily, Eisen: domain.EisenRegular, Difficulty: domain.DifficultyEasy}
}

func ptr[T any](v T) *T { return &v }

func day(s string) domain.ADate { return domain.MustParseDate(s) }

func TestHabitSkippedInOddWeek(t *testing.T) {
	env := newTestEnv(t, nil)
	params := weekly()
	params.SkipRule = "even-weeks"
	env.createHabit(t, params, nil)

	entry := env.gen(t, day("2024-08-12"), domain.TargetHabits)
	assert.Empty(t, entry.EntityCreated)
	assert.False(t, entry.Opened)
	assert.Empty(t, env.tasks(t, domain.SourceHabit))
}

func TestHabitRepeatsSpreadAndShrink(t *testing.T) {
	env := newTestEnv(t, nil)
	h := env.createHabit(t, weekly(), ptr(3))

	entry := env.gen(t, day("2024-08-12"), domain.TargetHabits)
	assert.Len(t, entry.EntityCreated, 3)
	tasks := env.tasks(t, domain.SourceHabit)
	require.Len(t, tasks, 3)
	want := [][2]string{{"2024-08-12", "2024-08-14"}, {"2024-08-15", "2024-08-16"}, {"2024-08-17", "2024-08-18"}}
	for i, task := range tasks {
		assert.Equal(t, "2024-W33", task.RecurringTimeline)
		assert.Equal(t, i, task.RepeatIndex())
		assert.Equal(t, want[i][0], task.ActionableDate.String())
		assert.Equal(t, want[i][1], task.DueDate.String())
		assert.Equal(t, domain.StatusNotStartedGen, task.Status)
	}

	env.Clock = seeded.Add(time.Hour)
	later := domain.NewCtx(domain.EventSourceCLI, env.Clock)
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		habit, err := uow.For[*domain.Habit](u).LoadByID(ctx, h.RefID, false)
		require.NoError(t, err)
		require.NoError(t, habit.Update(later, habit.Name, habit.GenParams, ptr(2), ""))
		_, err = uow.For[*domain.Habit](u).Save(ctx, habit)
		return err
	})

	entry = env.gen(t, day("2024-08-12"), domain.TargetHabits)
	assert.Empty(t, entry.EntityCreated)
	assert.Len(t, entry.EntityUpdated, 2)
	require.Len(t, entry.EntityRemoved, 1)
	assert.Equal(t, tasks[2].RefID, entry.EntityRemoved[0].RefID)

	left := env.tasks(t, domain.SourceHabit)
	require.Len(t, left, 2)
	assert.Equal(t, "2024-08-15", left[0].DueDate.String())
	assert.Equal(t, "2024-08-18", left[1].DueDate.String())

	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		marks, err := u.StreakMarks().FindForHabit(ctx, h.RefID, day("2024-08-12"), day("2024-08-18"))
		require.NoError(t, err)
		byDay := map[string]domain.HabitStreakMark{}
		for _, m := range marks {
			byDay[m.Date.String()] = m
		}
		assert.Equal(t, map[domain.EntityID]domain.InboxTaskStatus{left[1].RefID: domain.StatusNotStartedGen}, byDay["2024-08-18"].Statuses)
		assert.Empty(t, byDay["2024-08-14"].Statuses)
		return nil
	})
}

func TestRerunIsIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createHabit(t, daily(), nil)

	first := env.gen(t, day("2024-08-12"), domain.TargetHabits)
	assert.Len(t, first.EntityCreated, 1)

	second := env.gen(t, day("2024-08-12"), domain.TargetHabits)
	assert.Empty(t, second.EntityCreated)
	assert.Empty(t, second.EntityUpdated)
	assert.Len(t, env.tasks(t, domain.SourceHabit), 1)
}

func TestGenEvenIfNotModifiedRefreshesTasks(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createHabit(t, daily(), nil)
	env.gen(t, day("2024-08-12"), domain.TargetHabits)

	entry, err := env.Gen.Run(env.Ctx, gen.Args{
		User:                 env.Boot.User.RefID,
		Workspace:            env.ws(),
		Today:                day("2024-08-12"),
		Targets:              []domain.SyncTarget{domain.TargetHabits},
		GenEvenIfNotModified: true,
	})
	require.NoError(t, err)
	assert.Len(t, entry.EntityUpdated, 1)
	assert.True(t, entry.GenEvenIfNotModified)
}

func TestNextDayCreatesNextTask(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createHabit(t, daily(), nil)
	env.gen(t, day("2024-08-12"), domain.TargetHabits)
	env.gen(t, day("2024-08-13"), domain.TargetHabits)

	tasks := env.tasks(t, domain.SourceHabit)
	require.Len(t, tasks, 2)
	assert.Equal(t, "2024-08-12", tasks[0].RecurringTimeline)
	assert.Equal(t, "2024-08-13", tasks[1].RecurringTimeline)
	assert.Equal(t, "2024-08-13", tasks[1].RecurringGenRightNow.String())
}

func TestSuspendedHabitIsSkipped(t *testing.T) {
	env := newTestEnv(t, nil)
	h := env.createHabit(t, daily(), nil)
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		habit, err := uow.For[*domain.Habit](u).LoadByID(ctx, h.RefID, false)
		require.NoError(t, err)
		require.NoError(t, habit.Suspend(env.ECtx))
		_, err = uow.For[*domain.Habit](u).Save(ctx, habit)
		return err
	})
	env.gen(t, day("2024-08-12"), domain.TargetHabits)
	assert.Empty(t, env.tasks(t, domain.SourceHabit))
}

func (env *testEnv) createBirthdayPerson(t *testing.T, name string, month time.Month, dayOfMonth int) *domain.Person {
	t.Helper()
	var person *domain.Person
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		coll, err := uow.For[*domain.PersonCollection](u).LoadByParent(ctx, env.ws())
		require.NoError(t, err)
		bday, err := domain.NewPersonBirthday(month, dayOfMonth)
		require.NoError(t, err)
		person, err = domain.NewPerson(env.ECtx, coll.RefID, name, "", nil, &bday, ptr(7))
		require.NoError(t, err)
		_, err = uow.For[*domain.Person](u).Create(ctx, person)
		return err
	})
	return person
}

func TestPersonBirthdayHorizon(t *testing.T) {
	env := newTestEnv(t, nil)
	person := env.createBirthdayPerson(t, "Grace", time.March, 3)

	env.gen(t, day("2024-08-12"), domain.TargetPersons)

	tasks := env.tasks(t, domain.SourcePersonBirthday)
	require.Len(t, tasks, 5)
	for i, task := range tasks {
		year := 2024 + i
		due := domain.NewDate(year, time.March, 3)
		assert.Equal(t, due.String()[:4], task.RecurringTimeline)
		assert.Equal(t, due.String(), task.DueDate.String())
		assert.Equal(t, due.AddDays(-7).String(), task.ActionableDate.String())
		assert.Equal(t, "Wish happy birthday to Grace", task.Name)
		assert.Equal(t, person.RefID, task.SourceEntityRefID)
	}

	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		blocks, err := uow.For[*domain.TimeEventFullDaysBlock](u).FindAllGeneric(ctx, repo.Query{
			Filter: map[string]any{"namespace": string(domain.NamespacePersonBirthday)},
		})
		require.NoError(t, err)
		var days []string
		for _, b := range blocks {
			days = append(days, b.StartDate.String())
			assert.Equal(t, 1, b.DurationDays)
		}
		sort.Strings(days)
		assert.Equal(t, []string{"2024-03-03", "2025-03-03", "2026-03-03", "2027-03-03", "2028-03-03"}, days)
		return nil
	})

	entry := env.gen(t, day("2024-08-12"), domain.TargetPersons)
	assert.Empty(t, entry.EntityCreated)
	assert.Empty(t, entry.EntityUpdated)
}

func TestPersonBirthdaysFromNewYearsDay(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createBirthdayPerson(t, "Grace", time.March, 3)

	env.gen(t, day("2024-01-01"), domain.TargetPersons)

	var timelines []string
	for _, task := range env.tasks(t, domain.SourcePersonBirthday) {
		timelines = append(timelines, task.RecurringTimeline)
	}
	assert.Equal(t, []string{"2024", "2025", "2026", "2027", "2028"}, timelines)

	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		blocks, err := uow.For[*domain.TimeEventFullDaysBlock](u).FindAllGeneric(ctx, repo.Query{
			Filter: map[string]any{"namespace": string(domain.NamespacePersonBirthday)},
		})
		require.NoError(t, err)
		assert.Len(t, blocks, 5)
		return nil
	})

	again := env.gen(t, day("2024-12-31"), domain.TargetPersons)
	assert.Empty(t, again.EntityCreated)
}

func TestChoreSkippedDuringVacation(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		chores, err := uow.For[*domain.ChoreCollection](u).LoadByParent(ctx, env.ws())
		require.NoError(t, err)
		c, err := domain.NewChore(env.ECtx, chores.RefID, env.Boot.RootProject.RefID, "Water plants", daily(), false, day("2024-08-01"), domain.ADate{})
		require.NoError(t, err)
		if _, err := uow.For[*domain.Chore](u).Create(ctx, c); err != nil {
			return err
		}
		vacations, err := uow.For[*domain.VacationCollection](u).LoadByParent(ctx, env.ws())
		require.NoError(t, err)
		v, err := domain.NewVacation(env.ECtx, vacations.RefID, "Sea", day("2024-08-10"), day("2024-08-15"))
		require.NoError(t, err)
		_, err = uow.For[*domain.Vacation](u).Create(ctx, v)
		return err
	})

	entry := env.gen(t, day("2024-08-12"), domain.TargetChores)
	assert.Empty(t, entry.EntityCreated)
	assert.Empty(t, entry.EntityUpdated)
	assert.Empty(t, env.tasks(t, domain.SourceChore))

	entry = env.gen(t, day("2024-08-16"), domain.TargetChores)
	assert.Len(t, entry.EntityCreated, 1)
}

func TestMustDoChoreIgnoresVacation(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		chores, err := uow.For[*domain.ChoreCollection](u).LoadByParent(ctx, env.ws())
		require.NoError(t, err)
		c, err := domain.NewChore(env.ECtx, chores.RefID, env.Boot.RootProject.RefID, "Feed cat", daily(), true, domain.ADate{}, domain.ADate{})
		require.NoError(t, err)
		if _, err := uow.For[*domain.Chore](u).Create(ctx, c); err != nil {
			return err
		}
		vacations, err := uow.For[*domain.VacationCollection](u).LoadByParent(ctx, env.ws())
		require.NoError(t, err)
		v, err := domain.NewVacation(env.ECtx, vacations.RefID, "Sea", day("2024-08-10"), day("2024-08-15"))
		require.NoError(t, err)
		_, err = uow.For[*domain.Vacation](u).Create(ctx, v)
		return err
	})
	env.gen(t, day("2024-08-12"), domain.TargetChores)
	assert.Len(t, env.tasks(t, domain.SourceChore), 1)
}

func TestChoreOutsideActiveIntervalIsSkipped(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		chores, err := uow.For[*domain.ChoreCollection](u).LoadByParent(ctx, env.ws())
		require.NoError(t, err)
		c, err := domain.NewChore(env.ECtx, chores.RefID, env.Boot.RootProject.RefID, "Rake leaves", daily(), false, day("2024-09-01"), day("2024-11-30"))
		require.NoError(t, err)
		_, err = uow.For[*domain.Chore](u).Create(ctx, c)
		return err
	})
	env.gen(t, day("2024-08-12"), domain.TargetChores)
	assert.Empty(t, env.tasks(t, domain.SourceChore))
}

func TestGeneratedTimePlanPair(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		d, err := uow.For[*domain.TimePlanDomain](u).LoadByParent(ctx, env.ws())
		require.NoError(t, err)
		require.NoError(t, d.Update(env.ECtx, domain.PlanGenSettings{
			Periods:                 []domain.RecurringTaskPeriod{domain.PeriodWeekly},
			GenerationApproach:      domain.GenApproachBoth,
			GenerationInAdvanceDays: map[domain.RecurringTaskPeriod]int{domain.PeriodWeekly: 2},
		}, nil))
		_, err = uow.For[*domain.TimePlanDomain](u).Save(ctx, d)
		return err
	})

	run := func() *domain.GenLogEntry {
		entry, err := env.Gen.Run(env.Ctx, gen.Args{
			User:      env.Boot.User.RefID,
			Workspace: env.ws(),
			Today:     day("2024-08-12"),
			RealToday: day("2024-08-14"),
			Targets:   []domain.SyncTarget{domain.TargetTimePlans},
		})
		require.NoError(t, err)
		return entry
	}
	entry := run()
	assert.Len(t, entry.EntityCreated, 3)

	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		plans, err := uow.For[*domain.TimePlan](u).FindAllGeneric(ctx, repo.Query{})
		require.NoError(t, err)
		require.Len(t, plans, 1)
		p := plans[0]
		assert.Equal(t, domain.PeriodWeekly, p.Period)
		assert.Equal(t, "2024-W33", p.Timeline)
		assert.Equal(t, "2024-08-12", p.StartDate.String())
		assert.Equal(t, "2024-08-18", p.EndDate.String())
		assert.Equal(t, domain.PlanSourceGenerated, p.Source)

		notes, err := uow.For[*domain.Note](u).FindAllGeneric(ctx, repo.Query{
			Filter: map[string]any{"domain": string(domain.NoteDomainTimePlan), "source_entity_ref_id": int64(p.RefID)},
		})
		require.NoError(t, err)
		assert.Len(t, notes, 1)
		return nil
	})
	tasks := env.tasks(t, domain.SourceTimePlan)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Make weekly plan for 2024-W33", tasks[0].Name)
	assert.Equal(t, "2024-08-12", tasks[0].DueDate.String())

	again := run()
	assert.Empty(t, again.EntityCreated)
	assert.Empty(t, again.EntityUpdated)
}

func TestWorkingMemWithNoteAndCleanupTask(t *testing.T) {
	env := newTestEnv(t, nil)
	entry := env.gen(t, day("2024-08-12"), domain.TargetWorkingMem)
	require.Len(t, entry.EntityCreated, 3)
	assert.Equal(t, domain.KindWorkingMem, entry.EntityCreated[0].EntityTag)
	assert.Equal(t, domain.KindNote, entry.EntityCreated[1].EntityTag)
	assert.Equal(t, domain.KindInboxTask, entry.EntityCreated[2].EntityTag)

	tasks := env.tasks(t, domain.SourceWorkingMemCleanup)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Clean up working mem for 2024-08-12", tasks[0].Name)
	assert.Equal(t, "2024-08-12", tasks[0].DueDate.String())
}

func TestJournalSeedsStats(t *testing.T) {
	env := newTestEnv(t, nil)
	entry := env.gen(t, day("2024-08-12"), domain.TargetJournals)
	assert.NotEmpty(t, entry.EntityCreated)

	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		journals, err := uow.For[*domain.Journal](u).FindAllGeneric(ctx, repo.Query{})
		require.NoError(t, err)
		require.Len(t, journals, 2)
		for _, j := range journals {
			st, err := u.JournalStats().Load(ctx, j.RefID)
			require.NoError(t, err)
			assert.Equal(t, j.StartDate.String(), st.Report.PeriodStart.String())
		}
		return nil
	})
	tasks := env.tasks(t, domain.SourceJournal)
	require.Len(t, tasks, 2)
	assert.Equal(t, "2024-08", tasks[0].RecurringTimeline)
	assert.Equal(t, "2024-08-31", tasks[0].DueDate.String())
	assert.Equal(t, "2024-W33", tasks[1].RecurringTimeline)
	assert.Equal(t, "2024-08-18", tasks[1].DueDate.String())
}

func TestSlackTaskGetsOneInboxTask(t *testing.T) {
	env := newTestEnv(t, nil)
	var slack *domain.SlackTask
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		group, err := uow.For[*domain.PushIntegrationGroup](u).LoadByParent(ctx, env.ws())
		require.NoError(t, err)
		coll, err := uow.For[*domain.SlackTaskCollection](u).LoadByParent(ctx, group.RefID)
		require.NoError(t, err)
		slack, err = domain.NewSlackTask(env.ECtx, coll.RefID, "bob", "ops", "disk full", domain.PushGenerationExtraInfo{
			Status: domain.StatusInProgress, Eisen: domain.EisenUrgent,
		})
		require.NoError(t, err)
		_, err = uow.For[*domain.SlackTask](u).Create(ctx, slack)
		return err
	})

	env.gen(t, day("2024-08-12"), domain.TargetSlackTasks)
	env.gen(t, day("2024-08-13"), domain.TargetSlackTasks)

	tasks := env.tasks(t, domain.SourceSlackTask)
	require.Len(t, tasks, 1)
	assert.Equal(t, slack.TaskName(), tasks[0].Name)
	assert.Equal(t, domain.StatusInProgress, tasks[0].Status)
	assert.Equal(t, domain.EisenUrgent, tasks[0].Eisen)
	assert.Empty(t, tasks[0].RecurringTimeline)
}

func TestDisabledFeatureFailsBeforeWriting(t *testing.T) {
	env := newTestEnv(t, domain.WorkspaceFeatureFlags{domain.FeatureHabits: false})
	_, err := env.Gen.Run(env.Ctx, gen.Args{
		User:      env.Boot.User.RefID,
		Workspace: env.ws(),
		Today:     day("2024-08-12"),
		Targets:   []domain.SyncTarget{domain.TargetChores, domain.TargetHabits},
	})
	var unavailable *domain.FeatureUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, string(domain.FeatureHabits), unavailable.Feature)

	_, err = env.Gen.Run(env.Ctx, gen.Args{
		User:              env.Boot.User.RefID,
		Workspace:         env.ws(),
		Targets:           []domain.SyncTarget{domain.TargetChores},
		FilterHabitRefIDs: []domain.EntityID{1},
	})
	require.ErrorAs(t, err, &unavailable)

	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		entries, err := uow.For[*domain.GenLogEntry](u).FindAllGeneric(ctx, repo.Query{})
		require.NoError(t, err)
		assert.Empty(t, entries)
		return nil
	})
}

func TestCrashedEntryIsClosedOnNextRun(t *testing.T) {
	env := newTestEnv(t, nil)
	var crashed *domain.GenLogEntry
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		genLog, err := uow.For[*domain.GenLog](u).LoadByParent(ctx, env.ws())
		require.NoError(t, err)
		crashed = domain.NewGenLogEntry(env.ECtx, genLog.RefID, day("2024-08-11"), false, domain.AllSyncTargets, "", nil)
		_, err = uow.For[*domain.GenLogEntry](u).Create(ctx, crashed)
		return err
	})

	entry := env.gen(t, day("2024-08-12"), domain.TargetHabits)
	assert.False(t, entry.Opened)

	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		old, err := uow.For[*domain.GenLogEntry](u).LoadByID(ctx, crashed.RefID, false)
		require.NoError(t, err)
		assert.False(t, old.Opened)
		assert.Equal(t, gen.CrashedRunMarker, old.ErrorMarker)
		return nil
	})
	var warned bool
	for _, e := range env.Logs.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestFailingSectionKeepsOthersAndLeavesEntryOpen(t *testing.T) {
	env := newTestEnv(t, nil)
	h := env.createHabit(t, weekly(), nil)
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		habit, err := uow.For[*domain.Habit](u).LoadByID(ctx, h.RefID, false)
		require.NoError(t, err)
		habit.GenParams.DueAtDay = 40
		habit.ChangeProject(env.ECtx, habit.ProjectRefID)
		_, err = uow.For[*domain.Habit](u).Save(ctx, habit)
		return err
	})
	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		chores, err := uow.For[*domain.ChoreCollection](u).LoadByParent(ctx, env.ws())
		require.NoError(t, err)
		c, err := domain.NewChore(env.ECtx, chores.RefID, env.Boot.RootProject.RefID, "Dishes", daily(), false, domain.ADate{}, domain.ADate{})
		require.NoError(t, err)
		_, err = uow.For[*domain.Chore](u).Create(ctx, c)
		return err
	})

	entry, err := env.Gen.Run(env.Ctx, gen.Args{
		User:      env.Boot.User.RefID,
		Workspace: env.ws(),
		Today:     day("2024-08-12"),
		Targets:   []domain.SyncTarget{domain.TargetHabits, domain.TargetChores},
	})
	require.ErrorIs(t, err, domain.ErrInputValidation)
	require.NotNil(t, entry)
	assert.True(t, entry.Opened)
	assert.Equal(t, []string{string(domain.TargetHabits)}, entry.FailedSections)
	assert.Len(t, entry.EntityCreated, 1)
	assert.Len(t, env.tasks(t, domain.SourceChore), 1)
	assert.Empty(t, env.tasks(t, domain.SourceHabit))

	env.do(t, func(ctx context.Context, u *uow.UnitOfWork) error {
		stored, err := uow.For[*domain.GenLogEntry](u).LoadByID(ctx, entry.RefID, false)
		require.NoError(t, err)
		assert.True(t, stored.Opened)
		assert.Len(t, stored.EntityCreated, 1)
		return nil
	})
}

func TestPeriodFilterRestrictsSources(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createHabit(t, daily(), nil)
	env.createHabit(t, weekly(), nil)

	entry, err := env.Gen.Run(env.Ctx, gen.Args{
		User:      env.Boot.User.RefID,
		Workspace: env.ws(),
		Today:     day("2024-08-12"),
		Targets:   []domain.SyncTarget{domain.TargetHabits},
		Period:    []domain.RecurringTaskPeriod{domain.PeriodWeekly},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PeriodWeekly, entry.Period)
	tasks := env.tasks(t, domain.SourceHabit)
	require.Len(t, tasks, 1)
	assert.Equal(t, "2024-W33", tasks[0].RecurringTimeline)
}
