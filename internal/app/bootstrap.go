package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"jupiter/internal/config"
	"jupiter/internal/domain"
	"jupiter/internal/uow"
)

// InitArgs describes a new user and the workspace created for them.
type InitArgs struct {
	UserName        string
	UserEmail       string
	UserTimezone    string
	UserFlags       domain.UserFeatureFlags
	WorkspaceName   string
	RootProjectName string
	WorkspaceFlags  domain.WorkspaceFeatureFlags
}

// Bootstrap is what InitWorkspace created.
type Bootstrap struct {
	User        *domain.User
	Workspace   *domain.Workspace
	RootProject *domain.Project
}

// InitWorkspace creates the user, the workspace, every trunk, the root project and the default
// workspace config. Generated work defaults to the root project.
func InitWorkspace(ctx context.Context, u *uow.UnitOfWork, ectx domain.Ctx, controls domain.FeatureFlagsControls, args InitArgs) (Bootstrap, error) {
	userFlags, err := controls.CheckUserFlags(args.UserFlags)
	if err != nil {
		return Bootstrap{}, err
	}
	user, err := domain.NewUser(ectx, args.UserName, strings.TrimSpace(args.UserEmail), args.UserTimezone, userFlags)
	if err != nil {
		return Bootstrap{}, err
	}
	if _, err := uow.For[*domain.User](u).Create(ctx, user); err != nil {
		return Bootstrap{}, fmt.Errorf("create user: %w", err)
	}
	ws, err := domain.NewWorkspace(ectx, args.WorkspaceName, user.RefID, controls, args.WorkspaceFlags)
	if err != nil {
		return Bootstrap{}, err
	}
	if _, err := uow.For[*domain.Workspace](u).Create(ctx, ws); err != nil {
		return Bootstrap{}, fmt.Errorf("create workspace: %w", err)
	}

	projects := domain.NewProjectCollection(ectx, ws.RefID)
	if _, err := uow.For[*domain.ProjectCollection](u).Create(ctx, projects); err != nil {
		return Bootstrap{}, err
	}
	rootName := args.RootProjectName
	if rootName == "" {
		rootName = "Work"
	}
	root, err := domain.NewProject(ectx, projects.RefID, domain.BadRefID, rootName)
	if err != nil {
		return Bootstrap{}, err
	}
	if _, err := uow.For[*domain.Project](u).Create(ctx, root); err != nil {
		return Bootstrap{}, err
	}
	ws.ChangeDefaultProject(ectx, root.RefID)
	if _, err := uow.For[*domain.Workspace](u).Save(ctx, ws); err != nil {
		return Bootstrap{}, err
	}

	trunks := []domain.Entity{
		domain.NewInboxTaskCollection(ectx, ws.RefID),
		domain.NewHabitCollection(ectx, ws.RefID),
		domain.NewChoreCollection(ectx, ws.RefID),
		domain.NewBigPlanCollection(ectx, ws.RefID),
		domain.NewVacationCollection(ectx, ws.RefID),
		domain.NewMetricCollection(ectx, ws.RefID, root.RefID),
		domain.NewPersonCollection(ectx, ws.RefID, root.RefID),
		domain.NewWorkingMemCollection(ectx, ws.RefID, root.RefID),
		domain.NewTimePlanDomain(ectx, ws.RefID, root.RefID),
		domain.NewJournalCollection(ectx, ws.RefID, root.RefID),
		domain.NewScheduleDomain(ectx, ws.RefID),
		domain.NewTimeEventDomain(ectx, ws.RefID),
		domain.NewNoteCollection(ectx, ws.RefID),
		domain.NewGenLog(ectx, ws.RefID),
		domain.NewGCLog(ectx, ws.RefID),
		domain.NewStatsLog(ectx, ws.RefID),
		domain.NewScheduleExternalSyncLog(ectx, ws.RefID),
	}
	for _, trunk := range trunks {
		if err := create(ctx, u, trunk); err != nil {
			return Bootstrap{}, err
		}
	}
	group := domain.NewPushIntegrationGroup(ectx, ws.RefID)
	if err := create(ctx, u, group); err != nil {
		return Bootstrap{}, err
	}
	if err := create(ctx, u, domain.NewSlackTaskCollection(ectx, group.RefID, root.RefID)); err != nil {
		return Bootstrap{}, err
	}
	if err := create(ctx, u, domain.NewEmailTaskCollection(ectx, group.RefID, root.RefID)); err != nil {
		return Bootstrap{}, err
	}

	if err := u.WorkspaceConfigs().Save(ctx, ws.RefID, config.GenerateDefault(), ectx.Timestamp); err != nil {
		return Bootstrap{}, fmt.Errorf("seed workspace config: %w", err)
	}
	return Bootstrap{User: user, Workspace: ws, RootProject: root}, nil
}

func create(ctx context.Context, u *uow.UnitOfWork, e domain.Entity) error {
	g, err := u.GetFor(e.Kind())
	if err != nil {
		return err
	}
	if err := g.Create(ctx, e); err != nil {
		return fmt.Errorf("create %s: %w", e.Kind(), err)
	}
	return nil
}

// LoadConfig returns the workspace config, or the defaults when none was stored.
func LoadConfig(ctx context.Context, u *uow.UnitOfWork, workspace domain.EntityID) (*config.Config, error) {
	body, err := u.WorkspaceConfigs().Load(ctx, workspace)
	if errors.Is(err, domain.ErrEntityNotFound) {
		return config.Default(), nil
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" {
		return config.Default(), nil
	}
	return config.FromYAML([]byte(body))
}
