package cli

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/golang-jwt/jwt/v5"
	"github.com/valter-silva-au/taskflow/internal/client"
	"github.com/valter-silva-au/taskflow/internal/core"
	"github.com/valter-silva-au/taskflow/internal/storage"
	"github.com/valter-silva-au/taskflow/pkg/models"
)

var testNow = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

// fakeAPI is an in-memory APIClient.
type fakeAPI struct {
	mu     sync.Mutex
	tasks  []models.Task
	nextID int64

	listErr   error
	createErr error
	updateErr error
	deleteErr error
	loginErr  error

	loginToken    string
	loginCalls    int
	loginPassword string
	updates    []models.TaskFields
	deleted    []int64
}

func newFakeAPI(tasks ...models.Task) *fakeAPI {
	return &fakeAPI{tasks: tasks, nextID: 100, loginToken: "tok-abc"}
}

func (f *fakeAPI) Login(_ context.Context, _, password string) (client.LoginResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	f.loginPassword = password
	if f.loginErr != nil {
		return client.LoginResult{}, f.loginErr
	}
	return client.LoginResult{Token: f.loginToken, UserID: 7}, nil
}

func (f *fakeAPI) Register(ctx context.Context, username, _, password string) (client.LoginResult, error) {
	return f.Login(ctx, username, password)
}

func (f *fakeAPI) ListTasks(context.Context) ([]models.Task, error) {
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
	if f.createErr != nil {
		return models.Task{}, f.createErr
	}
	f.nextID++
	t := fields.ToTask(f.nextID)
	f.tasks = append([]models.Task{t}, f.tasks...)
	return t, nil
}

func (f *fakeAPI) UpdateTask(_ context.Context, id int64, fields models.TaskFields) (models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return models.Task{}, f.updateErr
	}
	f.updates = append(f.updates, fields)
	t := fields.ToTask(id)
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i] = t
		}
	}
	return t, nil
}

func (f *fakeAPI) DeleteTask(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			break
		}
	}
	return nil
}

// eventRecorder captures activity events.
type eventRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *eventRecorder) LogEvent(eventType string, _ map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	return nil
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type testEnv struct {
	api      *fakeAPI
	sessions storage.SessionStoreManager
	events   *eventRecorder
}

// setupCLI points the package variables at fakes and a real session store
// in a temp dir, restoring the originals when the test ends.
func setupCLI(t *testing.T, tasks ...models.Task) *testEnv {
	t.Helper()
	origCfg, origAPI, origSessions, origSuggester, origEvents := Cfg, API, Sessions, Suggester, Events
	origEventLog, origSummarizer, origBase := EventLog, Summarizer, BasePath
	t.Cleanup(func() {
		Cfg, API, Sessions, Suggester, Events = origCfg, origAPI, origSessions, origSuggester, origEvents
		EventLog, Summarizer, BasePath = origEventLog, origSummarizer, origBase
	})

	env := &testEnv{
		api:      newFakeAPI(tasks...),
		sessions: storage.NewSessionStoreManager(t.TempDir(), nil),
		events:   &eventRecorder{},
	}
	Cfg = core.DefaultConfig()
	API = env.api
	Sessions = env.sessions
	Suggester = core.KeywordSuggester{Now: func() time.Time { return testNow }}
	Events = env.events
	EventLog = nil
	Summarizer = nil
	return env
}

func (e *testEnv) signIn(t *testing.T, token string) {
	t.Helper()
	if err := e.sessions.Set(token, models.User{ID: 7, Username: "alice"}); err != nil {
		t.Fatalf("signing in: %v", err)
	}
}

func expiredToken(t *testing.T) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "7",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func resetFlags() {
	taskListStatus, taskListJSON = "", false
	taskAddDescription, taskAddPriority, taskAddDeadline, taskAddAnalyze = "", int(models.DefaultPriority), "", false
	taskDeleteYes = false
	taskAnalyzeDescription = ""
	loginUsername, loginPassword, registerEmail = "", "", ""
	activityJSON, activitySince, activityType, activityLevel, activityLimit, activitySummary = false, "7d", "", "", 0, false
}

// runCLI executes the root command with args and stdin, returning stdout
// and stderr.
func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func sampleTasks() []models.Task {
	deadline := models.NewDate(time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC))
	score := models.Priority(4)
	return []models.Task{
		{ID: 1, Title: "Write report", Description: "Quarterly numbers", Priority: 3, Deadline: &deadline, Status: models.StatusPending},
		{ID: 2, Title: "Fix login bug", Priority: 5, Status: models.StatusInProgress, AIPriorityScore: &score},
		{ID: 3, Title: "Water plants", Priority: 1, Status: models.StatusCompleted},
	}
}

// runCmd executes cmd and, for a batch, each member once. Follow-up
// commands (spinner ticks) are not run.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var msgs []tea.Msg
	for _, c := range batch {
		if c == nil {
			continue
		}
		msgs = append(msgs, runCmd(c)...)
	}
	return msgs
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "ctrl+a":
		return tea.KeyMsg{Type: tea.KeyCtrlA}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newReader(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}
