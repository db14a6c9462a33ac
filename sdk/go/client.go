package jupitersdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a minimal Jupiter HTTP API client. Every use case is POST /v1/{name}.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Session is what init and login return.
type Session struct {
	AuthToken string    `json:"auth_token"`
	User      User      `json:"user"`
	Workspace Workspace `json:"workspace"`
}

type User struct {
	RefID        int64  `json:"ref_id"`
	Name         string `json:"name"`
	EmailAddress string `json:"email_address"`
	Timezone     string `json:"timezone"`
}

type Workspace struct {
	RefID               int64           `json:"ref_id"`
	Name                string          `json:"name"`
	DefaultProjectRefID int64           `json:"default_project_ref_id"`
	FeatureFlags        map[string]bool `json:"feature_flags"`
}

// InboxTask represents the API inbox task model (partial).
type InboxTask struct {
	RefID          int64  `json:"ref_id"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	Source         string `json:"source"`
	ProjectRefID   int64  `json:"project_ref_id"`
	Eisen          string `json:"eisen"`
	Difficulty     string `json:"difficulty"`
	ActionableDate string `json:"actionable_date,omitempty"`
	DueDate        string `json:"due_date,omitempty"`
	Archived       bool   `json:"archived"`
}

// RunEntry is the log entry a gen, sync, stats or gc run closes with.
type RunEntry struct {
	RefID          int64           `json:"ref_id"`
	Opened         bool            `json:"opened"`
	EntityCreated  []EntitySummary `json:"entity_created_records"`
	EntityUpdated  []EntitySummary `json:"entity_updated_records"`
	EntityRemoved  []EntitySummary `json:"entity_removed_records"`
	EntityArchived []EntitySummary `json:"entity_archived_records"`
}

type EntitySummary struct {
	EntityTag string `json:"entity_tag"`
	RefID     int64  `json:"ref_id"`
	Name      string `json:"name"`
	Archived  bool   `json:"archived"`
}

// APIError is the error envelope of a non-2xx response.
type APIError struct {
	StatusCode int            `json:"-"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
}

// Init creates a user with their workspace and keeps the returned token.
func (c *Client) Init(ctx context.Context, userName, email, workspaceName string) (Session, error) {
	var resp Session
	err := c.Call(ctx, "init", map[string]any{
		"user_name":      userName,
		"user_email":     email,
		"workspace_name": workspaceName,
	}, &resp)
	if err == nil {
		c.BearerToken = resp.AuthToken
	}
	return resp, err
}

// Login keeps a token for an existing user. Only local servers offer it.
func (c *Client) Login(ctx context.Context, email string) (Session, error) {
	var resp Session
	err := c.Call(ctx, "login", map[string]any{"email_address": email}, &resp)
	if err == nil {
		c.BearerToken = resp.AuthToken
	}
	return resp, err
}

// CreateInboxTask creates an inbox task in the default project. Dates are YYYY-MM-DD or empty.
func (c *Client) CreateInboxTask(ctx context.Context, name, dueDate string) (InboxTask, error) {
	body := map[string]any{"name": name}
	if dueDate != "" {
		body["due_date"] = dueDate
	}
	var resp InboxTask
	err := c.Call(ctx, "inbox-task-create", body, &resp)
	return resp, err
}

// SetInboxTaskStatus moves an inbox task to status.
func (c *Client) SetInboxTaskStatus(ctx context.Context, refID int64, status string) (InboxTask, error) {
	var resp InboxTask
	err := c.Call(ctx, "inbox-task-update", map[string]any{"ref_id": refID, "status": status}, &resp)
	return resp, err
}

// InboxTasks lists the live inbox tasks, optionally by status.
func (c *Client) InboxTasks(ctx context.Context, status string) ([]InboxTask, error) {
	body := map[string]any{"kind": "inbox_task"}
	if status != "" {
		body["filter"] = map[string]any{"status": status}
	}
	var resp struct {
		Entities []InboxTask `json:"entities"`
	}
	err := c.Call(ctx, "entity-list", body, &resp)
	return resp.Entities, err
}

// Gen runs task generation for today, or for the given YYYY-MM-DD day.
func (c *Client) Gen(ctx context.Context, today string, targets ...string) (RunEntry, error) {
	body := map[string]any{}
	if today != "" {
		body["today"] = today
	}
	if len(targets) > 0 {
		body["targets"] = targets
	}
	var resp RunEntry
	err := c.Call(ctx, "gen", body, &resp)
	return resp, err
}

// Call invokes any use case by name and decodes its result into out.
func (c *Client) Call(ctx context.Context, name string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v1/" + strings.TrimLeft(name, "/")
	var buf bytes.Buffer
	if body == nil {
		body = struct{}{}
	}
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var env struct {
			Error *APIError `json:"error"`
		}
		env.Error = apiErr
		if json.Unmarshal(b, &env) != nil || apiErr.Code == "" {
			apiErr.Message = strings.TrimSpace(string(b))
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
