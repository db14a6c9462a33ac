package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"jupiter/internal/app"
	"jupiter/internal/config"
	"jupiter/internal/domain"
	"jupiter/internal/engine/auth"
	"jupiter/internal/repo"
	"jupiter/internal/uow"
)

type InitArgs struct {
	UserName        string                       `json:"user_name" validate:"required"`
	UserEmail       string                       `json:"user_email" validate:"required,email"`
	UserTimezone    string                       `json:"user_timezone,omitempty"`
	UserFlags       domain.UserFeatureFlags      `json:"user_feature_flags,omitempty"`
	WorkspaceName   string                       `json:"workspace_name" validate:"required"`
	RootProjectName string                       `json:"root_project_name,omitempty"`
	WorkspaceFlags  domain.WorkspaceFeatureFlags `json:"workspace_feature_flags,omitempty"`
}

type Session struct {
	AuthToken string            `json:"auth_token"`
	User      *domain.User      `json:"user"`
	Workspace *domain.Workspace `json:"workspace"`
}

// Init creates a user with their workspace and returns a token for them.
func (e Engine) Init(ctx context.Context, args InitArgs) (Session, error) {
	if err := check(args); err != nil {
		return Session{}, err
	}
	var out Session
	err := e.UOW.Do(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		existing, err := uow.For[*domain.User](u).FindAllGeneric(ctx, repo.Query{
			AllowArchived: true,
			Filter:        map[string]any{"email_address": strings.TrimSpace(args.UserEmail)},
		})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return fmt.Errorf("user %s: %w", args.UserEmail, domain.ErrEntityAlreadyExists)
		}
		boot, err := app.InitWorkspace(ctx, u, e.ectx(), e.Controls, app.InitArgs{
			UserName:        args.UserName,
			UserEmail:       args.UserEmail,
			UserTimezone:    args.UserTimezone,
			UserFlags:       args.UserFlags,
			WorkspaceName:   args.WorkspaceName,
			RootProjectName: args.RootProjectName,
			WorkspaceFlags:  args.WorkspaceFlags,
		})
		if err != nil {
			return err
		}
		out.User, out.Workspace = boot.User, boot.Workspace
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	if out.AuthToken, err = e.Tokens.Issue(out.User.RefID, out.Workspace.RefID); err != nil {
		return Session{}, err
	}
	e.log().WithFields(logrus.Fields{"user_ref_id": out.User.RefID, "workspace_ref_id": out.Workspace.RefID}).Info("workspace initialized")
	return out, nil
}

type LoginArgs struct {
	EmailAddress string `json:"email_address" validate:"required,email"`
}

// Login issues a token for the user with the given email address.
func (e Engine) Login(ctx context.Context, args LoginArgs) (Session, error) {
	if err := check(args); err != nil {
		return Session{}, err
	}
	var out Session
	err := e.UOW.Do(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		user, err := uow.For[*domain.User](u).FindFirst(ctx, repo.Query{
			Filter: map[string]any{"email_address": strings.TrimSpace(args.EmailAddress)},
		})
		if err != nil {
			return err
		}
		ws, err := app.ResolveWorkspace(ctx, u, user.RefID)
		if err != nil {
			return err
		}
		out.User, out.Workspace = user, ws
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	if out.AuthToken, err = e.Tokens.Issue(out.User.RefID, out.Workspace.RefID); err != nil {
		return Session{}, err
	}
	return out, nil
}

// Authenticate resolves a bearer token.
func (e Engine) Authenticate(_ context.Context, token string) (Identity, error) {
	return e.Tokens.Verify(token)
}

// AuthenticateAPIKey resolves an API key to its user and that user's workspace.
func (e Engine) AuthenticateAPIKey(ctx context.Context, key string) (Identity, error) {
	if !strings.HasPrefix(strings.TrimSpace(key), auth.APIKeyPrefix) {
		return Identity{}, auth.ErrInvalidCredentials
	}
	var id Identity
	err := e.UOW.Do(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		k, err := u.APIKeys().GetByHash(ctx, repo.HashAPIKey(key))
		if err != nil {
			return err
		}
		ws, err := app.ResolveWorkspace(ctx, u, k.UserRefID)
		if err != nil {
			return err
		}
		id = Identity{User: k.UserRefID, Workspace: ws.RefID, Source: "api_key"}
		return nil
	})
	if errors.Is(err, domain.ErrEntityNotFound) {
		return Identity{}, auth.ErrInvalidCredentials
	}
	return id, err
}

type CreateAPIKeyArgs struct {
	Name string `json:"name,omitempty"`
}

type CreatedAPIKey struct {
	repo.APIKey
	// Key is only ever returned here.
	Key string `json:"key"`
}

func (e Engine) CreateAPIKey(ctx context.Context, id Identity, args CreateAPIKeyArgs) (CreatedAPIKey, error) {
	var out CreatedAPIKey
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		keyID, key := auth.NewAPIKey()
		out.APIKey = repo.APIKey{
			ID:          keyID,
			UserRefID:   s.user.RefID,
			Name:        strings.TrimSpace(args.Name),
			KeyHash:     repo.HashAPIKey(key),
			CreatedTime: s.ectx.Timestamp,
		}
		out.Key = key
		return s.u.APIKeys().Insert(ctx, out.APIKey)
	})
	return out, err
}

func (e Engine) ListAPIKeys(ctx context.Context, id Identity, _ struct{}) ([]repo.APIKey, error) {
	var out []repo.APIKey
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		var err error
		out, err = s.u.APIKeys().List(ctx, s.user.RefID)
		return err
	})
	return out, err
}

type DeleteAPIKeyArgs struct {
	ID string `json:"id" validate:"required"`
}

func (e Engine) DeleteAPIKey(ctx context.Context, id Identity, args DeleteAPIKeyArgs) (struct{}, error) {
	if err := check(args); err != nil {
		return struct{}{}, err
	}
	return struct{}{}, e.do(ctx, id, func(ctx context.Context, s scope) error {
		return s.u.APIKeys().Delete(ctx, s.user.RefID, args.ID)
	})
}

type WorkspaceView struct {
	User      *domain.User      `json:"user"`
	Workspace *domain.Workspace `json:"workspace"`
}

func (e Engine) LoadWorkspace(ctx context.Context, id Identity, _ struct{}) (WorkspaceView, error) {
	var out WorkspaceView
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		out = WorkspaceView{User: s.user, Workspace: s.ws}
		return nil
	})
	return out, err
}

type UpdateWorkspaceArgs struct {
	Name                *string          `json:"name,omitempty"`
	DefaultProjectRefID *domain.EntityID `json:"default_project_ref_id,omitempty"`
}

func (e Engine) UpdateWorkspace(ctx context.Context, id Identity, args UpdateWorkspaceArgs) (*domain.Workspace, error) {
	var out *domain.Workspace
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if args.Name != nil {
			if err := s.ws.Update(s.ectx, *args.Name); err != nil {
				return err
			}
		}
		if args.DefaultProjectRefID != nil {
			if _, err := e.project(ctx, s, *args.DefaultProjectRefID); err != nil {
				return err
			}
			s.ws.ChangeDefaultProject(s.ectx, *args.DefaultProjectRefID)
		}
		var err error
		out, err = uow.For[*domain.Workspace](s.u).Save(ctx, s.ws)
		return err
	})
	return out, err
}

type WorkspaceFeatureFlagsArgs struct {
	FeatureFlags domain.WorkspaceFeatureFlags `json:"feature_flags" validate:"required"`
}

// ChangeWorkspaceFeatureFlags merges flags into the current ones, subject to the environment controls.
func (e Engine) ChangeWorkspaceFeatureFlags(ctx context.Context, id Identity, args WorkspaceFeatureFlagsArgs) (*domain.Workspace, error) {
	if err := check(args); err != nil {
		return nil, err
	}
	var out *domain.Workspace
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		merged := domain.WorkspaceFeatureFlags{}
		for f, on := range s.ws.FeatureFlags {
			merged[f] = on
		}
		for f, on := range args.FeatureFlags {
			merged[f] = on
		}
		if err := s.ws.ChangeFeatureFlags(s.ectx, e.Controls, merged); err != nil {
			return err
		}
		var err error
		out, err = uow.For[*domain.Workspace](s.u).Save(ctx, s.ws)
		return err
	})
	return out, err
}

type UpdateUserArgs struct {
	Name         *string                 `json:"name,omitempty"`
	Timezone     *string                 `json:"timezone,omitempty"`
	FeatureFlags domain.UserFeatureFlags `json:"feature_flags,omitempty"`
}

func (e Engine) UpdateUser(ctx context.Context, id Identity, args UpdateUserArgs) (*domain.User, error) {
	var out *domain.User
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		if args.Name != nil || args.Timezone != nil {
			if err := s.user.Update(s.ectx, args.Name, args.Timezone); err != nil {
				return err
			}
		}
		if len(args.FeatureFlags) > 0 {
			merged := domain.UserFeatureFlags{}
			for f, on := range s.user.FeatureFlags {
				merged[f] = on
			}
			for f, on := range args.FeatureFlags {
				merged[f] = on
			}
			if err := s.user.ChangeFeatureFlags(s.ectx, e.Controls, merged); err != nil {
				return err
			}
		}
		var err error
		out, err = uow.For[*domain.User](s.u).Save(ctx, s.user)
		return err
	})
	return out, err
}

type ConfigView struct {
	YAML string `json:"yaml"`
}

// ShowConfig returns the stored workspace config, or the defaults.
func (e Engine) ShowConfig(ctx context.Context, id Identity, _ struct{}) (ConfigView, error) {
	var out ConfigView
	err := e.do(ctx, id, func(ctx context.Context, s scope) error {
		cfg, err := app.LoadConfig(ctx, s.u, s.ws.RefID)
		if err != nil {
			return err
		}
		out.YAML, err = cfg.ToYAML()
		return err
	})
	return out, err
}

type ImportConfigArgs struct {
	YAML string `json:"yaml" validate:"required"`
}

// ImportConfig validates and stores a workspace config.
func (e Engine) ImportConfig(ctx context.Context, id Identity, args ImportConfigArgs) (ConfigView, error) {
	if err := check(args); err != nil {
		return ConfigView{}, err
	}
	cfg, err := config.FromYAML([]byte(args.YAML))
	if err != nil {
		return ConfigView{}, domain.Invalid("yaml", "%v", err)
	}
	body, err := cfg.ToYAML()
	if err != nil {
		return ConfigView{}, err
	}
	err = e.do(ctx, id, func(ctx context.Context, s scope) error {
		return s.u.WorkspaceConfigs().Save(ctx, s.ws.RefID, body, s.ectx.Timestamp)
	})
	return ConfigView{YAML: body}, err
}
