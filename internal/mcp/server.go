// Package mcp provides an MCP (Model Context Protocol) server that exposes
// TaskFlow task operations as tools for AI assistants.
package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/taskflow/internal/core"
	"github.com/valter-silva-au/taskflow/internal/observability"
	"github.com/valter-silva-au/taskflow/pkg/models"
)

// Server wraps the task services and exposes them as MCP tools.
type Server struct {
	server     *gomcp.Server
	listCfg    core.TaskListConfig
	suggester  core.Suggester
	summarizer observability.ActivitySummarizer
}

// NewServer creates an MCP server. Every tool call works on a fresh
// core.TaskList built from listCfg, so mutations follow the same
// server-confirmed rules as the CLI. suggester and summarizer may be nil.
// LocalCreate is ignored: a list that lives for one call cannot hold a
// task that was never sent to the server.
func NewServer(listCfg core.TaskListConfig, suggester core.Suggester, summarizer observability.ActivitySummarizer, version string) *Server {
	if version == "" {
		version = "dev"
	}
	listCfg.LocalCreate = false
	s := &Server{
		listCfg:    listCfg,
		suggester:  suggester,
		summarizer: summarizer,
	}
	s.server = gomcp.NewServer(&gomcp.Implementation{Name: "taskflow", Version: version}, nil)
	s.registerTools()
	return s
}

// Run serves MCP over stdio until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type taskOutput struct {
	ID                  int64  `json:"id"`
	Title               string `json:"title"`
	Description         string `json:"description,omitempty"`
	Priority            int    `json:"priority"`
	Deadline            string `json:"deadline,omitempty"`
	Status              string `json:"status"`
	AIPriorityScore     int    `json:"ai_priority_score,omitempty"`
	AISuggestedDeadline string `json:"ai_suggested_deadline,omitempty"`
	CreatedAt           string `json:"created_at,omitempty"`
}

type listTasksInput struct {
	Status string `json:"status,omitempty" jsonschema:"filter tasks by status (pending, in_progress, completed)"`
}

type listTasksOutput struct {
	Tasks []taskOutput `json:"tasks"`
	Count int          `json:"count"`
}

type createTaskInput struct {
	Title       string `json:"title" jsonschema:"the task title"`
	Description string `json:"description,omitempty" jsonschema:"optional longer description"`
	Priority    int    `json:"priority,omitempty" jsonschema:"priority from 1 (lowest) to 5 (highest); defaults to 3"`
	Deadline    string `json:"deadline,omitempty" jsonschema:"optional deadline as YYYY-MM-DD"`
	Analyze     bool   `json:"analyze,omitempty" jsonschema:"ask the configured suggester for priority and deadline before creating"`
}

type updateTaskStatusInput struct {
	TaskID int64  `json:"task_id" jsonschema:"the numeric task id"`
	Status string `json:"status" jsonschema:"the new status (pending, in_progress, completed)"`
}

type taskIDInput struct {
	TaskID int64 `json:"task_id" jsonschema:"the numeric task id"`
}

type messageOutput struct {
	Message string `json:"message"`
}

type analyzeTaskInput struct {
	Title       string `json:"title" jsonschema:"the task title"`
	Description string `json:"description,omitempty" jsonschema:"optional longer description"`
}

type analyzeTaskOutput struct {
	SuggestedPriority int    `json:"suggested_priority"`
	SuggestedDeadline string `json:"suggested_deadline"`
}

type getActivityInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window (e.g. 7d, 24h). Defaults to 7d."`
}

type activityOutput struct {
	Logins          int            `json:"logins"`
	Logouts         int            `json:"logouts"`
	Expirations     int            `json:"expirations"`
	TasksCreated    int            `json:"tasks_created"`
	TasksDeleted    int            `json:"tasks_deleted"`
	StatusChanges   int            `json:"status_changes"`
	TasksCompleted  int            `json:"tasks_completed"`
	StatusChangedTo map[string]int `json:"status_changed_to"`
	EventCount      int            `json:"event_count"`
	OldestEvent     string         `json:"oldest_event,omitempty"`
	NewestEvent     string         `json:"newest_event,omitempty"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_tasks",
		Description: "List the signed-in user's tasks with an optional status filter.",
	}, s.handleListTasks)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "create_task",
		Description: "Create a task. Status starts as pending; priority defaults to 3.",
	}, s.handleCreateTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "update_task_status",
		Description: "Change a task's status. Valid statuses: pending, in_progress, completed.",
	}, s.handleUpdateTaskStatus)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "delete_task",
		Description: "Delete a task by id.",
	}, s.handleDeleteTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "analyze_task",
		Description: "Suggest a priority and deadline for a task title.",
	}, s.handleAnalyzeTask)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_activity",
		Description: "Summarize local activity: logins, created, deleted and status-changed tasks.",
	}, s.handleGetActivity)
}

// --- Tool handlers ---

func (s *Server) handleListTasks(ctx context.Context, _ *gomcp.CallToolRequest, input listTasksInput) (*gomcp.CallToolResult, listTasksOutput, error) {
	var filter models.TaskStatus
	if input.Status != "" {
		st, err := models.ParseStatus(input.Status)
		if err != nil {
			return errorResult(err.Error()), listTasksOutput{}, nil
		}
		filter = st
	}

	list, err := s.loadList(ctx)
	if err != nil {
		return errorResult(describe("listing tasks", err)), listTasksOutput{}, nil
	}
	defer list.Close()

	out := listTasksOutput{Tasks: []taskOutput{}}
	for _, t := range list.Tasks() {
		if filter != "" && t.Status != filter {
			continue
		}
		out.Tasks = append(out.Tasks, taskToOutput(t))
	}
	out.Count = len(out.Tasks)
	return nil, out, nil
}

func (s *Server) handleCreateTask(ctx context.Context, _ *gomcp.CallToolRequest, input createTaskInput) (*gomcp.CallToolResult, taskOutput, error) {
	list := core.NewTaskList(s.listCfg)
	defer list.Close()

	form := core.NewTaskForm(s.suggester, nil)
	form.SetTitle(input.Title)
	form.SetDescription(input.Description)
	if input.Priority != 0 {
		form.SetPriority(models.Priority(input.Priority))
	}
	if err := form.SetDeadlineText(input.Deadline); err != nil {
		return errorResult(err.Error()), taskOutput{}, nil
	}
	if input.Analyze {
		if _, err := form.Analyze(ctx); err != nil {
			return errorResult(describe("analyzing task", err)), taskOutput{}, nil
		}
	}
	task, err := form.Submit()
	if err != nil {
		return errorResult(err.Error()), taskOutput{}, nil
	}
	created, err := list.Create(ctx, task)
	if err != nil {
		return errorResult(describe("creating task", err)), taskOutput{}, nil
	}
	return nil, taskToOutput(created), nil
}

func (s *Server) handleUpdateTaskStatus(ctx context.Context, _ *gomcp.CallToolRequest, input updateTaskStatusInput) (*gomcp.CallToolResult, messageOutput, error) {
	status, err := models.ParseStatus(input.Status)
	if err != nil {
		return errorResult(err.Error()), messageOutput{}, nil
	}

	list, err := s.loadList(ctx)
	if err != nil {
		return errorResult(describe("loading tasks", err)), messageOutput{}, nil
	}
	defer list.Close()

	if err := list.ChangeStatus(ctx, input.TaskID, status); err != nil {
		return errorResult(describe(fmt.Sprintf("updating task %d", input.TaskID), err)), messageOutput{}, nil
	}
	return nil, messageOutput{Message: fmt.Sprintf("task %d status updated to %s", input.TaskID, status)}, nil
}

func (s *Server) handleDeleteTask(ctx context.Context, _ *gomcp.CallToolRequest, input taskIDInput) (*gomcp.CallToolResult, messageOutput, error) {
	list := core.NewTaskList(s.listCfg)
	defer list.Close()

	if err := list.Delete(ctx, input.TaskID); err != nil {
		return errorResult(describe(fmt.Sprintf("deleting task %d", input.TaskID), err)), messageOutput{}, nil
	}
	return nil, messageOutput{Message: fmt.Sprintf("task %d deleted", input.TaskID)}, nil
}

func (s *Server) handleAnalyzeTask(ctx context.Context, _ *gomcp.CallToolRequest, input analyzeTaskInput) (*gomcp.CallToolResult, analyzeTaskOutput, error) {
	if s.suggester == nil {
		return errorResult("no suggester configured"), analyzeTaskOutput{}, nil
	}
	if strings.TrimSpace(input.Title) == "" {
		return errorResult("title is required"), analyzeTaskOutput{}, nil
	}
	sug, err := s.suggester.Suggest(ctx, input.Title, input.Description)
	if err != nil {
		return errorResult(describe("analyzing task", err)), analyzeTaskOutput{}, nil
	}
	return nil, analyzeTaskOutput{
		SuggestedPriority: int(sug.SuggestedPriority.Clamp()),
		SuggestedDeadline: models.NewDate(sug.SuggestedDeadline.Time).String(),
	}, nil
}

func (s *Server) handleGetActivity(_ context.Context, _ *gomcp.CallToolRequest, input getActivityInput) (*gomcp.CallToolResult, activityOutput, error) {
	empty := activityOutput{StatusChangedTo: map[string]int{}}
	if s.summarizer == nil {
		return errorResult("activity log not available"), empty, nil
	}
	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}
	since, err := ParseSince(sinceStr, time.Now().UTC())
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), empty, nil
	}
	sum, err := s.summarizer.Summarize(since)
	if err != nil {
		return errorResult(fmt.Sprintf("summarizing activity: %s", err)), empty, nil
	}

	out := activityOutput{
		Logins:          sum.Logins,
		Logouts:         sum.Logouts,
		Expirations:     sum.Expirations,
		TasksCreated:    sum.TasksCreated,
		TasksDeleted:    sum.TasksDeleted,
		StatusChanges:   sum.StatusChanges,
		TasksCompleted:  sum.TasksCompleted,
		StatusChangedTo: sum.StatusChanged,
		EventCount:      sum.EventCount,
	}
	if sum.OldestEvent != nil {
		out.OldestEvent = sum.OldestEvent.Format(time.RFC3339)
	}
	if sum.NewestEvent != nil {
		out.NewestEvent = sum.NewestEvent.Format(time.RFC3339)
	}
	return nil, out, nil
}

// --- Helpers ---

func (s *Server) loadList(ctx context.Context) (*core.TaskList, error) {
	list := core.NewTaskList(s.listCfg)
	if err := list.Load(ctx); err != nil {
		list.Close()
		return nil, err
	}
	return list, nil
}

// describe turns an operation error into a message an assistant can act on.
func describe(op string, err error) string {
	switch models.Classify(err) {
	case models.KindAuth:
		return op + ": not signed in or session expired; run `taskflow login`"
	case models.KindNetwork:
		return op + ": " + core.MsgCannotConnect
	default:
		return fmt.Sprintf("%s: %s", op, err)
	}
}

func taskToOutput(t models.Task) taskOutput {
	out := taskOutput{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    int(t.Priority),
		Status:      string(t.Status),
	}
	if t.Deadline != nil {
		out.Deadline = t.Deadline.String()
	}
	if t.AIPriorityScore != nil {
		out.AIPriorityScore = int(*t.AIPriorityScore)
	}
	if t.AISuggestedDeadline != nil {
		out.AISuggestedDeadline = t.AISuggestedDeadline.Format(time.RFC3339)
	}
	if t.CreatedAt != nil {
		out.CreatedAt = t.CreatedAt.Format(time.RFC3339)
	}
	return out
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// ParseSince parses a duration like "7d" or "24h" into the time that far
// before now.
func ParseSince(s string, now time.Time) (time.Time, error) {
	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}
	suffix := s[len(s)-1]
	var num int
	if _, err := fmt.Sscanf(s[:len(s)-1], "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
