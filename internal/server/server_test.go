package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jupiter/internal/config"
	"jupiter/internal/db"
	"jupiter/internal/domain"
	"jupiter/internal/engine"
	"jupiter/internal/migrate"
)

var seeded = time.Date(2024, 8, 12, 9, 0, 0, 0, time.UTC)

type testServer struct {
	URL    string
	Engine engine.Engine
	Hooks  *Dispatcher
	client *http.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn, err := db.Open(db.Config{URL: "sqlite:///" + filepath.Join(t.TempDir(), "jupiter.sqlite")})
	require.NoError(t, err)
	require.NoError(t, migrate.Migrate(conn))

	logger, _ := test.NewNullLogger()
	e := engine.New(conn, &config.Settings{Env: config.EnvLocal}, logger)
	e.Now = func() time.Time { return seeded }
	e.Tokens.Now = e.Now
	hooks := &Dispatcher{Engine: e, Log: logger, InitialInterval: 10 * time.Millisecond}

	handler, err := New(Config{Engine: e, Log: logger, Hooks: hooks, Local: true})
	require.NoError(t, err)
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		hooks.Wait()
		conn.Close()
	})
	return &testServer{URL: "http://" + ln.Addr().String(), Engine: e, Hooks: hooks, client: &http.Client{}}
}

func (s *testServer) call(t *testing.T, name string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(http.MethodPost, s.URL+BasePath+"/"+name, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := s.client.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

func (s *testServer) init(t *testing.T) map[string]string {
	t.Helper()
	res, data := s.call(t, "init", map[string]any{
		"user_name":      "Ada",
		"user_email":     "ada@example.com",
		"workspace_name": "Home",
	}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var session struct {
		AuthToken string `json:"auth_token"`
	}
	require.NoError(t, json.Unmarshal(data, &session))
	require.NotEmpty(t, session.AuthToken)
	return map[string]string{"Authorization": "Bearer " + session.AuthToken}
}

type errorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, data []byte) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(data, &env), string(data))
	return env
}

func TestUseCasesRequireCredentials(t *testing.T) {
	srv := newTestServer(t)

	res, data := srv.call(t, "workspace-load", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "unauthorized", decodeError(t, data).Error.Code)

	res, data = srv.call(t, "workspace-load", nil, map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "invalid_credentials", decodeError(t, data).Error.Code)
}

func TestInboxTaskOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	auth := srv.init(t)

	res, data := srv.call(t, "inbox-task-create", map[string]any{"name": "File taxes", "due_date": "2024-08-20"}, auth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var task domain.InboxTask
	require.NoError(t, json.Unmarshal(data, &task))
	assert.Equal(t, "File taxes", task.Name)
	assert.Equal(t, domain.NewDate(2024, 8, 20), task.DueDate)

	res, data = srv.call(t, "inbox-task-update", map[string]any{"ref_id": task.RefID, "status": "done"}, auth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	res, data = srv.call(t, "entity-list", map[string]any{"kind": "inbox_task", "filter": map[string]any{"status": "done"}}, auth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var list struct {
		Entities []json.RawMessage `json:"entities"`
	}
	require.NoError(t, json.Unmarshal(data, &list))
	assert.Len(t, list.Entities, 1)
}

func TestErrorTaxonomyMapsToStatuses(t *testing.T) {
	srv := newTestServer(t)
	auth := srv.init(t)

	res, data := srv.call(t, "inbox-task-create", map[string]any{}, auth)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	env := decodeError(t, data)
	assert.Equal(t, "input_validation", env.Error.Code)
	assert.Equal(t, "name", env.Error.Details["field"])

	res, data = srv.call(t, "entity-load", map[string]any{"kind": "inbox_task", "ref_id": 999}, auth)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "not_found", decodeError(t, data).Error.Code)

	res, data = srv.call(t, "slack-task-create", map[string]any{"user": "ada", "message": "hi"}, auth)
	assert.Equal(t, http.StatusNotAcceptable, res.StatusCode)
	assert.Equal(t, "feature_unavailable", decodeError(t, data).Error.Code)

	ws, err := srv.Engine.Login(context.Background(), engine.LoginArgs{EmailAddress: "ada@example.com"})
	require.NoError(t, err)
	res, data = srv.call(t, "entity-remove", map[string]any{"kind": "project", "ref_id": ws.Workspace.DefaultProjectRefID}, auth)
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Equal(t, "unsafe_removal", decodeError(t, data).Error.Code)

	res, data = srv.call(t, "init", map[string]any{"user_name": "Ada", "user_email": "ada@example.com", "workspace_name": "Again"}, nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Equal(t, "already_exists", decodeError(t, data).Error.Code)
}

func TestAPIKeyAuthenticates(t *testing.T) {
	srv := newTestServer(t)
	auth := srv.init(t)

	res, data := srv.call(t, "api-key-create", map[string]any{"name": "ci"}, auth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var key struct {
		Key string `json:"key"`
	}
	require.NoError(t, json.Unmarshal(data, &key))

	res, data = srv.call(t, "workspace-load", nil, map[string]string{APIKeyHeader: key.Key})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	assert.Contains(t, string(data), `"name":"Home"`)
}

func TestGenNotifiesWebhooks(t *testing.T) {
	var (
		mu       sync.Mutex
		received []RunNotification
		headers  []string
	)
	calls := 0
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var n struct {
			RunNotification
			Entry json.RawMessage `json:"entry"`
		}
		if err := json.NewDecoder(r.Body).Decode(&n); err == nil {
			received = append(received, n.RunNotification)
		}
		headers = append(headers, r.Header.Get("X-Jupiter-Event"))
	}))
	defer receiver.Close()

	srv := newTestServer(t)
	auth := srv.init(t)
	cfg := "webhooks:\n  - url: " + receiver.URL + "\n    events: [gen.closed]\n"
	res, data := srv.call(t, "config-import", map[string]any{"yaml": cfg}, auth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	res, data = srv.call(t, "gc", map[string]any{}, auth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	res, data = srv.call(t, "gen", map[string]any{"targets": []string{"habits"}}, auth)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	srv.Hooks.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls)
	require.Len(t, received, 1)
	assert.Equal(t, config.EventGenClosed, received[0].Event)
	assert.NotEmpty(t, received[0].DeliveryID)
	assert.Equal(t, []string{config.EventGenClosed}, headers)
}

func TestHealthDocsAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	for _, p := range []string{"/health", "/docs", BasePath + "/openapi.json"} {
		res, err := srv.client.Get(srv.URL + p)
		require.NoError(t, err)
		res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode, p)
	}

	srv.call(t, "workspace-load", nil, nil)
	res, err := srv.client.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `jupiter_api_calls_total{status="401",use_case="workspace-load"}`)
}
