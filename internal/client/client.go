// Package client is the HTTP client for the TaskFlow REST API. It is
// stateless: the bearer token is read from a TokenSource on every request and
// credentials returned by Login are never persisted here.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valter-silva-au/taskflow/pkg/models"
	"go.uber.org/zap"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 1 << 20

// RequestIDHeader carries a per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// TokenSource supplies the current bearer token, or "" when signed out.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a plain function to TokenSource.
type TokenFunc func() string

// Token returns f().
func (f TokenFunc) Token() string { return f() }

// LoginResult holds the credentials returned by a successful login.
type LoginResult struct {
	Token  string `json:"token"`
	UserID int64  `json:"user_id"`
}

// Client issues requests against a fixed base URL.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds every request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client for baseURL. tokens may be nil for unauthenticated use.
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	if tokens == nil {
		tokens = TokenFunc(func() string { return "" })
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		tokens:  tokens,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges a username and password for a bearer token. Any non-2xx
// response is reported as *models.AuthError.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	body := map[string]string{"username": username, "password": password}
	var out LoginResult
	err := c.do(ctx, "login", http.MethodPost, "/api/auth/login", body, false, &out)
	if err != nil {
		var apiErr *models.APIError
		if errors.As(err, &apiErr) {
			return LoginResult{}, &models.AuthError{Status: apiErr.Status, Message: apiErr.Message}
		}
		return LoginResult{}, err
	}
	return out, nil
}

// Register creates an account and returns credentials for it.
func (c *Client) Register(ctx context.Context, username, email, password string) (LoginResult, error) {
	body := map[string]string{"username": username, "email": email, "password": password}
	var out LoginResult
	if err := c.do(ctx, "register", http.MethodPost, "/api/auth/register", body, false, &out); err != nil {
		return LoginResult{}, err
	}
	return out, nil
}

// ListTasks returns every task owned by the signed-in user. A payload that
// is not a JSON array is treated as an empty list.
func (c *Client) ListTasks(ctx context.Context) ([]models.Task, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "list tasks", http.MethodGet, "/api/tasks", nil, true, &raw); err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		c.logger.Warn("unexpected task list payload", zap.Int("bytes", len(trimmed)))
		return []models.Task{}, nil
	}
	tasks := []models.Task{}
	if err := json.Unmarshal(trimmed, &tasks); err != nil {
		return nil, fmt.Errorf("decoding task list: %w", err)
	}
	return tasks, nil
}

// taskResponse covers both a full task echo and the {message, id} ack.
type taskResponse struct {
	models.Task
	Message string `json:"message"`
}

// CreateTask persists a new task. When the server only acknowledges with an
// id, the returned task is the submitted fields under that id.
func (c *Client) CreateTask(ctx context.Context, fields models.TaskFields) (models.Task, error) {
	if fields.Status == "" {
		fields.Status = models.StatusPending
	}
	var out taskResponse
	if err := c.do(ctx, "create task", http.MethodPost, "/api/tasks", fields, true, &out); err != nil {
		return models.Task{}, err
	}
	return reconcile(out, fields, out.ID), nil
}

// UpdateTask replaces the task's fields.
func (c *Client) UpdateTask(ctx context.Context, id int64, fields models.TaskFields) (models.Task, error) {
	var out taskResponse
	path := fmt.Sprintf("/api/tasks/%d", id)
	if err := c.do(ctx, "update task", http.MethodPut, path, fields, true, &out); err != nil {
		return models.Task{}, err
	}
	return reconcile(out, fields, id), nil
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/api/tasks/%d", id)
	return c.do(ctx, "delete task", http.MethodDelete, path, nil, true, nil)
}

// AnalyzeTask asks the server for a priority and deadline suggestion.
func (c *Client) AnalyzeTask(ctx context.Context, title, description string) (models.AISuggestion, error) {
	body := map[string]string{"title": title, "description": description}
	var out models.AISuggestion
	if err := c.do(ctx, "analyze task", http.MethodPost, "/api/tasks/analyze", body, true, &out); err != nil {
		return models.AISuggestion{}, err
	}
	return out, nil
}

func reconcile(resp taskResponse, fields models.TaskFields, id int64) models.Task {
	if resp.Title != "" {
		t := resp.Task
		if t.ID == 0 {
			t.ID = id
		}
		return t
	}
	return fields.ToTask(id)
}

// do sends one request and decodes a 2xx JSON body into out. Failures map
// onto the error taxonomy: 401 -> AuthError, no response -> NetworkError,
// other non-2xx -> APIError. A cancelled ctx is returned as ctx.Err().
func (c *Client) do(ctx context.Context, op, method, path string, body any, auth bool, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: building request: %w", op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if auth {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	log := c.logger.With(
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
	)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.Debug("request abandoned", zap.Error(ctxErr))
			return ctxErr
		}
		log.Warn("request failed", zap.Error(err))
		return &models.NetworkError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &models.NetworkError{Op: op, Err: fmt.Errorf("reading response: %w", err)}
	}

	log = log.With(zap.Int("status", resp.StatusCode), zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode == http.StatusUnauthorized {
		log.Info("request unauthorized")
		return &models.AuthError{Status: resp.StatusCode, Message: serverMessage(data)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := serverMessage(data)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		log.Warn("request rejected", zap.String("server_message", msg))
		return &models.APIError{Status: resp.StatusCode, Message: msg}
	}
	log.Debug("request completed")

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", op, err)
	}
	return nil
}

// serverMessage extracts a human-readable message from an error body.
func serverMessage(data []byte) string {
	var body struct {
		Msg     string `json:"msg"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	switch {
	case body.Msg != "":
		return body.Msg
	case body.Error != "":
		return body.Error
	default:
		return body.Message
	}
}
