package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/taskflow/internal/core"
	"github.com/valter-silva-au/taskflow/internal/observability"
	"github.com/valter-silva-au/taskflow/pkg/models"
)

// --- Fake implementations ---

type fakeAPI struct {
	mu      sync.Mutex
	tasks   []models.Task
	nextID  int64
	listErr error
}

func (f *fakeAPI) ListTasks(_ context.Context) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.Task(nil), f.tasks...), nil
}

func (f *fakeAPI) CreateTask(_ context.Context, fields models.TaskFields) (models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t := fields.ToTask(f.nextID)
	f.tasks = append(f.tasks, t)
	return t, nil
}

func (f *fakeAPI) UpdateTask(_ context.Context, id int64, fields models.TaskFields) (models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i] = fields.ToTask(id)
			return f.tasks[i], nil
		}
	}
	return models.Task{}, &models.APIError{Status: 404, Message: "Task not found"}
}

func (f *fakeAPI) DeleteTask(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return &models.APIError{Status: 404, Message: "Task not found"}
}

type fakeSession struct{ cleared bool }

func (f *fakeSession) Get() (models.Session, error) {
	if f.cleared {
		return models.Session{}, nil
	}
	return models.Session{Token: "tok", User: &models.User{ID: 1, Username: "alice"}}, nil
}

func (f *fakeSession) Clear() error {
	f.cleared = true
	return nil
}

type fakeSummarizer struct {
	summary *observability.Summary
}

func (f *fakeSummarizer) Summarize(_ time.Time) (*observability.Summary, error) {
	return f.summary, nil
}

// --- Test helpers ---

func sampleTasks() []models.Task {
	deadline := models.NewDate(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	return []models.Task{
		{ID: 1, Title: "add-auth", Priority: 5, Status: models.StatusInProgress, Deadline: &deadline},
		{ID: 2, Title: "fix-login", Priority: 2, Status: models.StatusPending},
	}
}

func newTestServer(api *fakeAPI, sess *fakeSession) *Server {
	fixed := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	sug := core.KeywordSuggester{Now: func() time.Time { return fixed }}
	return NewServer(core.TaskListConfig{API: api, Session: sess}, sug, nil, "test")
}

func callTool(t *testing.T, srv *Server, toolName string, args map[string]any) *gomcp.CallToolResult {
	t.Helper()

	ctx := context.Background()
	client := gomcp.NewClient(&gomcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	t1, t2 := gomcp.NewInMemoryTransports()

	go func() {
		_ = srv.MCPServer().Run(ctx, t1)
	}()

	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	result, err := session.CallTool(ctx, &gomcp.CallToolParams{Name: toolName, Arguments: args})
	if err != nil {
		t.Fatalf("call tool %s: %v", toolName, err)
	}
	return result
}

// decode reads the structured output, falling back to the text content.
func decode(t *testing.T, result *gomcp.CallToolResult, out any) {
	t.Helper()
	if result.StructuredContent != nil {
		data, _ := json.Marshal(result.StructuredContent)
		if err := json.Unmarshal(data, out); err == nil {
			return
		}
	}
	if err := json.Unmarshal([]byte(extractText(result)), out); err != nil {
		t.Fatalf("decoding tool output: %v (text was: %s)", err, extractText(result))
	}
}

func extractText(result *gomcp.CallToolResult) string {
	for _, c := range result.Content {
		if tc, ok := c.(*gomcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// --- Tests ---

func TestListTasksAll(t *testing.T) {
	srv := newTestServer(&fakeAPI{tasks: sampleTasks()}, &fakeSession{})

	result := callTool(t, srv, "list_tasks", map[string]any{})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}

	var out listTasksOutput
	decode(t, result, &out)
	if out.Count != 2 {
		t.Fatalf("expected 2 tasks, got %d", out.Count)
	}
	if out.Tasks[0].Deadline != "2025-02-01" || out.Tasks[0].Priority != 5 {
		t.Errorf("first task = %+v", out.Tasks[0])
	}
}

func TestListTasksWithFilter(t *testing.T) {
	srv := newTestServer(&fakeAPI{tasks: sampleTasks()}, &fakeSession{})

	result := callTool(t, srv, "list_tasks", map[string]any{"status": "pending"})
	var out listTasksOutput
	decode(t, result, &out)
	if out.Count != 1 || out.Tasks[0].ID != 2 {
		t.Errorf("filtered output = %+v", out)
	}

	bad := callTool(t, srv, "list_tasks", map[string]any{"status": "done"})
	if !bad.IsError {
		t.Error("expected error for invalid status filter")
	}
}

func TestListTasksUnauthorized(t *testing.T) {
	sess := &fakeSession{}
	srv := newTestServer(&fakeAPI{listErr: &models.AuthError{Status: 401}}, sess)

	result := callTool(t, srv, "list_tasks", map[string]any{})
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if !sess.cleared {
		t.Error("401 on list must clear the session")
	}
}

func TestCreateTask(t *testing.T) {
	api := &fakeAPI{nextID: 40}
	srv := newTestServer(api, &fakeSession{})

	result := callTool(t, srv, "create_task", map[string]any{"title": "Write report"})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	var out taskOutput
	decode(t, result, &out)
	if out.ID != 41 || out.Status != "pending" || out.Priority != 3 || out.AIPriorityScore != 0 {
		t.Errorf("created = %+v", out)
	}
}

func TestCreateTaskIgnoresLocalCreate(t *testing.T) {
	api := &fakeAPI{nextID: 9}
	srv := NewServer(core.TaskListConfig{API: api, Session: &fakeSession{}, LocalCreate: true}, nil, nil, "test")

	result := callTool(t, srv, "create_task", map[string]any{"title": "Write report"})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	if len(api.tasks) != 1 || api.tasks[0].ID != 10 {
		t.Fatalf("server tasks = %+v, want the created task", api.tasks)
	}

	var listed listTasksOutput
	decode(t, callTool(t, srv, "list_tasks", map[string]any{}), &listed)
	if listed.Count != 1 || listed.Tasks[0].Title != "Write report" {
		t.Errorf("list_tasks after create = %+v", listed)
	}
}

func TestCreateTaskWithAnalysis(t *testing.T) {
	srv := newTestServer(&fakeAPI{}, &fakeSession{})

	result := callTool(t, srv, "create_task", map[string]any{"title": "urgent: patch", "analyze": true})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	var out taskOutput
	decode(t, result, &out)
	if out.Priority != 5 || out.AIPriorityScore != 5 {
		t.Errorf("priority/ai score = %d/%d, want 5/5", out.Priority, out.AIPriorityScore)
	}
	if out.Deadline != "2025-01-16" {
		t.Errorf("deadline = %q, want 2025-01-16", out.Deadline)
	}
}

func TestCreateTaskRejectsBlankTitle(t *testing.T) {
	api := &fakeAPI{}
	srv := newTestServer(api, &fakeSession{})

	result := callTool(t, srv, "create_task", map[string]any{"title": "  "})
	if !result.IsError {
		t.Fatal("expected error for blank title")
	}
	if len(api.tasks) != 0 {
		t.Error("no task should be created")
	}
}

func TestUpdateTaskStatus(t *testing.T) {
	api := &fakeAPI{tasks: sampleTasks()}
	srv := newTestServer(api, &fakeSession{})

	result := callTool(t, srv, "update_task_status", map[string]any{"task_id": 2, "status": "completed"})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	if api.tasks[1].Status != models.StatusCompleted || api.tasks[1].Title != "fix-login" {
		t.Errorf("remote task = %+v", api.tasks[1])
	}

	missing := callTool(t, srv, "update_task_status", map[string]any{"task_id": 99, "status": "completed"})
	if !missing.IsError {
		t.Error("expected error for unknown task")
	}
}

func TestDeleteTask(t *testing.T) {
	api := &fakeAPI{tasks: sampleTasks()}
	srv := newTestServer(api, &fakeSession{})

	result := callTool(t, srv, "delete_task", map[string]any{"task_id": 1})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	if len(api.tasks) != 1 || api.tasks[0].ID != 2 {
		t.Errorf("remaining = %+v", api.tasks)
	}
}

func TestAnalyzeTask(t *testing.T) {
	srv := newTestServer(&fakeAPI{}, &fakeSession{})

	result := callTool(t, srv, "analyze_task", map[string]any{"title": "minor docs fix"})
	var out analyzeTaskOutput
	decode(t, result, &out)
	if out.SuggestedPriority != 2 || out.SuggestedDeadline != "2025-01-25" {
		t.Errorf("analysis = %+v", out)
	}
}

func TestGetActivity(t *testing.T) {
	sum := &observability.Summary{TasksCreated: 3, Logins: 1, StatusChanged: map[string]int{"completed": 2}}
	srv := NewServer(core.TaskListConfig{API: &fakeAPI{}, Session: &fakeSession{}}, nil, &fakeSummarizer{summary: sum}, "test")

	result := callTool(t, srv, "get_activity", map[string]any{"since": "24h"})
	if result.IsError {
		t.Fatalf("expected success, got error: %s", extractText(result))
	}
	var out activityOutput
	decode(t, result, &out)
	if out.TasksCreated != 3 || out.Logins != 1 || out.StatusChangedTo["completed"] != 2 {
		t.Errorf("activity = %+v", out)
	}

	noLog := newTestServer(&fakeAPI{}, &fakeSession{})
	if r := callTool(t, noLog, "get_activity", map[string]any{}); !r.IsError {
		t.Error("expected error when no activity log is configured")
	}
}

func TestParseSince(t *testing.T) {
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	got, err := ParseSince("7d", now)
	if err != nil || !got.Equal(now.AddDate(0, 0, -7)) {
		t.Errorf("7d = %v, %v", got, err)
	}
	got, err = ParseSince("24h", now)
	if err != nil || !got.Equal(now.Add(-24*time.Hour)) {
		t.Errorf("24h = %v, %v", got, err)
	}
	for _, bad := range []string{"", "d", "7w", "xd"} {
		if _, err := ParseSince(bad, now); err == nil {
			t.Errorf("ParseSince(%q) expected error", bad)
		}
	}
}

func TestDescribe(t *testing.T) {
	if got := describe("listing tasks", &models.NetworkError{Op: "x", Err: errors.New("down")}); got != "listing tasks: "+core.MsgCannotConnect {
		t.Errorf("network = %q", got)
	}
	if got := describe("x", &models.AuthError{Status: 401}); got == "" {
		t.Error("auth description empty")
	}
}
