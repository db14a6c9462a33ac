package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"jupiter/internal/domain"
	"jupiter/internal/repo"
	"jupiter/internal/uow"
)

// ErrNoSession is returned when the CLI has not logged in.
var ErrNoSession = errors.New("not logged in; run `jupiter login`")

// Session is what `jupiter login` stores at SESSION_INFO_PATH.
type Session struct {
	AuthToken      string          `json:"auth_token"`
	UserRefID      domain.EntityID `json:"user_ref_id"`
	WorkspaceRefID domain.EntityID `json:"workspace_ref_id"`
	EmailAddress   string          `json:"email_address"`
}

func LoadSession(path string) (Session, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("read session %s: %w", path, err)
	}
	if s.AuthToken == "" {
		return Session{}, ErrNoSession
	}
	return s, nil
}

func SaveSession(path string, s Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

// ClearSession removes the stored session. A missing file is not an error.
func ClearSession(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// ResolveWorkspace returns the live workspace owned by user.
func ResolveWorkspace(ctx context.Context, u *uow.UnitOfWork, user domain.EntityID) (*domain.Workspace, error) {
	ws, err := uow.For[*domain.Workspace](u).FindFirst(ctx, repo.Query{Filter: map[string]any{"owner_ref_id": int64(user)}})
	if err != nil {
		return nil, fmt.Errorf("workspace of user %d: %w", user, err)
	}
	return ws, nil
}
