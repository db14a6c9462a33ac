package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"jupiter/internal/config"
	"jupiter/internal/engine"
)

// useCaseErrors are the statuses any use case can answer with.
var useCaseErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusNotFound,
	http.StatusNotAcceptable,
	http.StatusConflict,
	http.StatusUnprocessableEntity,
	http.StatusInternalServerError,
}

// register exposes fn as POST /v1/{name}. The caller is resolved by the auth middleware.
func register[A, R any](api huma.API, m *metrics, name, summary string, fn func(context.Context, engine.Identity, A) (R, error)) {
	huma.Register(api, huma.Operation{
		OperationID:      name,
		Method:           http.MethodPost,
		Path:             "/" + name,
		Summary:          summary,
		Errors:           useCaseErrors,
		SkipValidateBody: true,
	}, func(ctx context.Context, in *input[A]) (*output[R], error) {
		start := time.Now()
		id, authErr := identityFrom(ctx)
		if authErr != nil {
			m.observe(name, start, authErr.GetStatus())
			return nil, authErr
		}
		out, err := fn(ctx, id, in.Body)
		if err != nil {
			se := handleError(err)
			m.observe(name, start, se.GetStatus())
			return nil, se
		}
		m.observe(name, start, http.StatusOK)
		return &output[R]{Body: out}, nil
	})
}

// registerPublic exposes a use case that runs before there is a caller.
func registerPublic[A, R any](api huma.API, m *metrics, name, summary string, fn func(context.Context, A) (R, error)) {
	huma.Register(api, huma.Operation{
		OperationID:      name,
		Method:           http.MethodPost,
		Path:             "/" + name,
		Summary:          summary,
		Errors:           useCaseErrors,
		SkipValidateBody: true,
	}, func(ctx context.Context, in *input[A]) (*output[R], error) {
		start := time.Now()
		out, err := fn(ctx, in.Body)
		if err != nil {
			se := handleError(err)
			m.observe(name, start, se.GetStatus())
			return nil, se
		}
		m.observe(name, start, http.StatusOK)
		return &output[R]{Body: out}, nil
	})
}

func registerUseCases(api huma.API, e engine.Engine, m *metrics, hooks *Dispatcher, local bool) {
	registerPublic(api, m, "init", "Create a user with their workspace", e.Init)
	if local {
		registerPublic(api, m, "login", "Issue a token by email address (local only)", e.Login)
	}

	register(api, m, "api-key-create", "Create an API key", e.CreateAPIKey)
	register(api, m, "api-key-list", "List API keys", e.ListAPIKeys)
	register(api, m, "api-key-delete", "Delete an API key", e.DeleteAPIKey)

	register(api, m, "workspace-load", "Load the user and workspace", e.LoadWorkspace)
	register(api, m, "workspace-update", "Rename the workspace or change its default project", e.UpdateWorkspace)
	register(api, m, "workspace-change-feature-flags", "Change workspace feature flags", e.ChangeWorkspaceFeatureFlags)
	register(api, m, "user-update", "Update the user", e.UpdateUser)
	register(api, m, "config-show", "Show the workspace config", e.ShowConfig)
	register(api, m, "config-import", "Replace the workspace config", e.ImportConfig)

	register(api, m, "entity-load", "Load any entity", e.Load)
	register(api, m, "entity-list", "List entities of a kind", e.List)
	register(api, m, "entity-archive", "Archive an entity and what it owns", e.Archive)
	register(api, m, "entity-remove", "Remove an entity and what it owns", e.Remove)
	register(api, m, "entity-history", "Mutation history of an entity", e.History)

	register(api, m, "project-create", "Create a project", e.CreateProject)
	register(api, m, "project-update", "Rename or move a project", e.UpdateProject)

	register(api, m, "inbox-task-create", "Create an inbox task", e.CreateInboxTask)
	register(api, m, "inbox-task-update", "Update an inbox task", e.UpdateInboxTask)
	register(api, m, "inbox-task-associate-with-big-plan", "Move an inbox task into or out of a big plan", e.AssociateInboxTaskWithBigPlan)
	register(api, m, "inbox-task-block-time", "Put an inbox task on the calendar", e.BlockInboxTaskTime)

	register(api, m, "habit-create", "Create a habit", e.CreateHabit)
	register(api, m, "habit-update", "Update a habit", e.UpdateHabit)
	register(api, m, "habit-suspend", "Suspend a habit", e.SuspendHabit)
	register(api, m, "habit-unsuspend", "Unsuspend a habit", e.UnsuspendHabit)
	register(api, m, "habit-streak-rebuild", "Rebuild the streak marks of a habit", e.RebuildHabitStreak)
	register(api, m, "habit-streak", "Streak marks of a habit", e.HabitStreak)

	register(api, m, "chore-create", "Create a chore", e.CreateChore)
	register(api, m, "chore-update", "Update a chore", e.UpdateChore)

	register(api, m, "big-plan-create", "Create a big plan", e.CreateBigPlan)
	register(api, m, "big-plan-update", "Update a big plan", e.UpdateBigPlan)

	register(api, m, "vacation-create", "Create a vacation", e.CreateVacation)
	register(api, m, "vacation-update", "Update a vacation", e.UpdateVacation)

	register(api, m, "metric-create", "Create a metric", e.CreateMetric)
	register(api, m, "metric-update", "Update a metric", e.UpdateMetric)
	register(api, m, "metric-entry-create", "Record a metric value", e.CreateMetricEntry)
	register(api, m, "metric-entry-update", "Update a metric value", e.UpdateMetricEntry)

	register(api, m, "person-create", "Create a person", e.CreatePerson)
	register(api, m, "person-update", "Update a person", e.UpdatePerson)

	register(api, m, "slack-task-create", "Push a Slack message", e.CreateSlackTask)
	register(api, m, "slack-task-update", "Update a pushed Slack message", e.UpdateSlackTask)
	register(api, m, "email-task-create", "Push an email", e.CreateEmailTask)
	register(api, m, "email-task-update", "Update a pushed email", e.UpdateEmailTask)

	register(api, m, "schedule-stream-create", "Create a schedule stream", e.CreateScheduleStream)
	register(api, m, "schedule-stream-update", "Update a schedule stream", e.UpdateScheduleStream)
	register(api, m, "schedule-event-in-day-create", "Create an in-day event", e.CreateScheduleEventInDay)
	register(api, m, "schedule-event-in-day-update", "Update an in-day event", e.UpdateScheduleEventInDay)
	register(api, m, "schedule-event-full-days-create", "Create a full-days event", e.CreateScheduleEventFullDays)
	register(api, m, "schedule-event-full-days-update", "Update a full-days event", e.UpdateScheduleEventFullDays)
	register(api, m, "calendar", "Time blocks between two days", e.Calendar)

	register(api, m, "note-set", "Create or replace the note of an entity", e.SetNote)
	register(api, m, "note-load", "Load the note of an entity", e.LoadNote)

	register(api, m, "settings-load", "Load generation settings", e.LoadSettings)
	register(api, m, "working-mem-settings-update", "Update working memory settings", e.UpdateWorkingMemSettings)
	register(api, m, "time-plan-settings-update", "Update time plan settings", e.UpdateTimePlanSettings)
	register(api, m, "journal-settings-update", "Update journal settings", e.UpdateJournalSettings)
	register(api, m, "metric-change-collection-project", "Change the project of metric collection tasks", e.ChangeMetricCollectionProject)
	register(api, m, "person-change-catch-up-project", "Change the project of catch-up tasks", e.ChangePersonCatchUpProject)
	register(api, m, "slack-task-change-generation-project", "Change the project of Slack tasks", e.ChangeSlackTaskGenerationProject)
	register(api, m, "email-task-change-generation-project", "Change the project of email tasks", e.ChangeEmailTaskGenerationProject)

	register(api, m, "gen", "Run task generation", announce(hooks, config.EventGenClosed, e.Gen))
	register(api, m, "sync", "Mirror external calendars", announce(hooks, config.EventSyncClosed, e.Sync))
	register(api, m, "stats", "Recompute statistics", announce(hooks, config.EventStatsClosed, e.Stats))
	register(api, m, "gc", "Archive finished work", announce(hooks, config.EventGCClosed, e.GC))
	register(api, m, "report", "Summarize done work", e.Report)
	register(api, m, "logs-recent", "Newest run log entries", e.RecentLogs)
	register(api, m, "scores", "Gamification scores", e.Scores)
}
