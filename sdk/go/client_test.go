package jupitersdk_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jupiter/internal/config"
	"jupiter/internal/db"
	"jupiter/internal/engine"
	"jupiter/internal/migrate"
	"jupiter/internal/server"
	jupitersdk "jupiter/sdk/go"
)

func newClient(t *testing.T) *jupitersdk.Client {
	t.Helper()
	conn, err := db.Open(db.Config{URL: "sqlite:///" + filepath.Join(t.TempDir(), "jupiter.sqlite")})
	require.NoError(t, err)
	require.NoError(t, migrate.Migrate(conn))
	t.Cleanup(func() { conn.Close() })

	logger, _ := test.NewNullLogger()
	e := engine.New(conn, &config.Settings{Env: config.EnvLocal}, logger)
	now := time.Date(2024, 8, 12, 9, 0, 0, 0, time.UTC)
	e.Now = func() time.Time { return now }
	e.Tokens.Now = e.Now

	handler, err := server.New(server.Config{Engine: e, Log: logger, Local: true})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return jupitersdk.New(srv.URL)
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	s, err := c.Init(ctx, "Ada", "ada@example.com", "Home")
	require.NoError(t, err)
	assert.Equal(t, "Home", s.Workspace.Name)
	assert.NotEmpty(t, c.BearerToken)

	task, err := c.CreateInboxTask(ctx, "File taxes", "2024-08-20")
	require.NoError(t, err)
	assert.Equal(t, "2024-08-20", task.DueDate)
	assert.Equal(t, s.Workspace.DefaultProjectRefID, task.ProjectRefID)

	_, err = c.SetInboxTaskStatus(ctx, task.RefID, "done")
	require.NoError(t, err)
	done, err := c.InboxTasks(ctx, "done")
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "File taxes", done[0].Name)

	entry, err := c.Gen(ctx, "2024-08-12", "habits")
	require.NoError(t, err)
	assert.False(t, entry.Opened)
}

func TestClientDecodesErrorEnvelope(t *testing.T) {
	ctx := context.Background()
	c := newClient(t)

	_, err := c.InboxTasks(ctx, "")
	var apiErr *jupitersdk.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "unauthorized", apiErr.Code)

	_, err = c.Init(ctx, "Ada", "ada@example.com", "Home")
	require.NoError(t, err)
	_, err = c.Login(ctx, "nobody@example.com")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "not_found", apiErr.Code)
}
