package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/valter-silva-au/taskflow/pkg/models"
)

// Notice messages shown by the task list.
const (
	MsgSessionExpired  = "Session expired. Please login again."
	MsgCannotConnect   = "Cannot connect to server. Is the backend running?"
	MsgFetchFailedFmt  = "Failed to fetch tasks: %s"
	MsgTaskDeleted     = "Task deleted"
	MsgDeleteFailed    = "Failed to delete task"
	MsgTaskUpdated     = "Task updated"
	MsgUpdateFailed    = "Failed to update task"
	MsgTaskCreated     = "Task created successfully!"
	MsgCreateFailed    = "Failed to create task"
	MsgLoggedOut       = "Logged out successfully"
	MsgUnexpectedError = "Error: %s"
)

// ErrListClosed is returned by operations that complete after Close; their
// results have been discarded.
var ErrListClosed = errors.New("task list closed")

// ErrTaskNotFound is returned when an operation names a task id that is not
// in the local collection.
var ErrTaskNotFound = errors.New("task not found")

// TaskAPI is the subset of the API client that TaskList needs. Defining it
// here keeps core independent of the client package.
type TaskAPI interface {
	ListTasks(ctx context.Context) ([]models.Task, error)
	CreateTask(ctx context.Context, fields models.TaskFields) (models.Task, error)
	UpdateTask(ctx context.Context, id int64, fields models.TaskFields) (models.Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

// SessionStore is the subset of storage.SessionStoreManager that TaskList
// needs.
type SessionStore interface {
	Get() (models.Session, error)
	Clear() error
}

// NoticeLevel is the severity of a user-facing notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeSuccess
	NoticeError
)

// Notice is a transient message for the user.
type Notice struct {
	Level   NoticeLevel
	Message string
}

// Notifier displays notices.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// Navigator switches the visible view.
type Navigator interface {
	Navigate(r Route)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(Route)

func (f NavigatorFunc) Navigate(r Route) { f(r) }

// TaskListConfig wires a TaskList to its collaborators. Notifier, Navigator
// and Events may be nil.
type TaskListConfig struct {
	API       TaskAPI
	Session   SessionStore
	Notifier  Notifier
	Navigator Navigator
	Events    EventLogger
	// LocalCreate prepends form-built tasks without calling the API.
	LocalCreate bool
}

// TaskList owns the in-memory task collection for one list view. Every
// mutation is confirmed by the server before it is reflected locally. After
// Close, in-flight requests are cancelled and their results discarded.
type TaskList struct {
	cfg    TaskListConfig
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	tasks   []models.Task
	loading bool
}

// NewTaskList creates an empty task list bound to cfg.
func NewTaskList(cfg TaskListConfig) *TaskList {
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskList{cfg: cfg, ctx: ctx, cancel: cancel}
}

// Close tears the list down. Pending operations are cancelled and any
// result that arrives later is ignored.
func (l *TaskList) Close() {
	l.cancel()
}

func (l *TaskList) closed() bool {
	return l.ctx.Err() != nil
}

// opContext derives a context cancelled by either ctx or Close.
func (l *TaskList) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	opCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(l.ctx, cancel)
	return opCtx, func() {
		stop()
		cancel()
	}
}

// Tasks returns a copy of the current collection.
func (l *TaskList) Tasks() []models.Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.tasks)
}

// Loading reports whether a fetch is in flight.
func (l *TaskList) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loading
}

// Empty reports whether the list has finished loading with no tasks.
func (l *TaskList) Empty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.loading && len(l.tasks) == 0
}

// Load fetches the task list from the server and replaces the collection.
// A 401 clears the session and routes to login; other failures leave the
// collection as it was.
func (l *TaskList) Load(ctx context.Context) error {
	if l.closed() {
		return ErrListClosed
	}
	l.mu.Lock()
	l.loading = true
	l.mu.Unlock()

	opCtx, done := l.opContext(ctx)
	tasks, err := l.cfg.API.ListTasks(opCtx)
	done()

	if l.closed() {
		return ErrListClosed
	}

	l.mu.Lock()
	l.loading = false
	if err == nil {
		l.tasks = slices.Clone(tasks)
	}
	l.mu.Unlock()

	if err != nil {
		l.handleLoadError(err)
		return fmt.Errorf("loading tasks: %w", err)
	}
	return nil
}

func (l *TaskList) handleLoadError(err error) {
	switch models.Classify(err) {
	case models.KindAuth:
		if clearErr := l.cfg.Session.Clear(); clearErr != nil {
			l.notify(NoticeError, fmt.Sprintf(MsgUnexpectedError, clearErr.Error()))
		}
		l.mu.Lock()
		l.tasks = nil
		l.mu.Unlock()
		l.logEvent(EventSessionExpired, nil)
		l.navigate(RouteLogin)
		l.notify(NoticeError, MsgSessionExpired)
	case models.KindNetwork:
		l.notify(NoticeError, MsgCannotConnect)
	case models.KindAPI:
		var apiErr *models.APIError
		errors.As(err, &apiErr)
		l.notify(NoticeError, fmt.Sprintf(MsgFetchFailedFmt, apiErr.Message))
	case models.KindCanceled:
	default:
		l.notify(NoticeError, fmt.Sprintf(MsgUnexpectedError, err.Error()))
	}
}

// Delete removes the task with the given id once the server confirms it.
// Asking the user for confirmation is the caller's job.
func (l *TaskList) Delete(ctx context.Context, id int64) error {
	if l.closed() {
		return ErrListClosed
	}
	opCtx, done := l.opContext(ctx)
	err := l.cfg.API.DeleteTask(opCtx, id)
	done()

	if l.closed() {
		return ErrListClosed
	}
	if err != nil {
		l.notifyFailure(err, MsgDeleteFailed)
		return fmt.Errorf("deleting task %d: %w", id, err)
	}

	l.mu.Lock()
	if i := l.indexOf(id); i >= 0 {
		l.tasks = slices.Delete(l.tasks, i, i+1)
	}
	l.mu.Unlock()

	l.logEvent(EventTaskDeleted, map[string]any{"task_id": id})
	l.notify(NoticeSuccess, MsgTaskDeleted)
	return nil
}

// ChangeStatus sends the full task record with the new status and updates
// the local copy only after the server accepts it. Setting the current
// status still issues the request.
func (l *TaskList) ChangeStatus(ctx context.Context, id int64, status models.TaskStatus) error {
	if !status.Valid() {
		return &models.ValidationError{Field: "status", Message: fmt.Sprintf("invalid status %q", status)}
	}
	if l.closed() {
		return ErrListClosed
	}

	l.mu.Lock()
	i := l.indexOf(id)
	if i < 0 {
		l.mu.Unlock()
		return fmt.Errorf("changing status of task %d: %w", id, ErrTaskNotFound)
	}
	current := l.tasks[i]
	l.mu.Unlock()

	fields := current.Fields()
	fields.Status = status

	opCtx, done := l.opContext(ctx)
	_, err := l.cfg.API.UpdateTask(opCtx, id, fields)
	done()

	if l.closed() {
		return ErrListClosed
	}
	if err != nil {
		l.notifyFailure(err, MsgUpdateFailed)
		return fmt.Errorf("changing status of task %d: %w", id, err)
	}

	l.mu.Lock()
	if i := l.indexOf(id); i >= 0 {
		l.tasks[i].Status = status
	}
	l.mu.Unlock()

	l.logEvent(EventStatusChanged, map[string]any{
		"task_id": id,
		"from":    string(current.Status),
		"to":      string(status),
	})
	l.notify(NoticeSuccess, MsgTaskUpdated)
	return nil
}

// Create persists a task built by the task form and prepends the
// server-confirmed record. With LocalCreate set, the task is prepended as
// given and no request is made.
func (l *TaskList) Create(ctx context.Context, task models.Task) (models.Task, error) {
	if err := task.Validate(); err != nil {
		return models.Task{}, err
	}
	if l.closed() {
		return models.Task{}, ErrListClosed
	}

	created := task
	if !l.cfg.LocalCreate {
		opCtx, done := l.opContext(ctx)
		var err error
		created, err = l.cfg.API.CreateTask(opCtx, task.Fields())
		done()

		if l.closed() {
			return models.Task{}, ErrListClosed
		}
		if err != nil {
			l.notifyFailure(err, MsgCreateFailed)
			return models.Task{}, fmt.Errorf("creating task: %w", err)
		}
	}

	l.mu.Lock()
	l.tasks = slices.Insert(l.tasks, 0, created)
	l.mu.Unlock()

	l.logEvent(EventTaskCreated, map[string]any{
		"task_id":  created.ID,
		"title":    created.Title,
		"priority": int(created.Priority),
		"local":    l.cfg.LocalCreate,
	})
	l.notify(NoticeSuccess, MsgTaskCreated)
	return created, nil
}

// Logout clears the session and routes to login.
func (l *TaskList) Logout() error {
	if err := l.cfg.Session.Clear(); err != nil {
		l.notify(NoticeError, fmt.Sprintf(MsgUnexpectedError, err.Error()))
		return fmt.Errorf("logging out: %w", err)
	}
	l.mu.Lock()
	l.tasks = nil
	l.mu.Unlock()

	l.logEvent(EventSessionLogout, nil)
	l.navigate(RouteLogin)
	l.notify(NoticeSuccess, MsgLoggedOut)
	return nil
}

// notifyFailure reports a mutation failure. Only the list fetch forces a
// logout on 401; here it is just another failed request.
func (l *TaskList) notifyFailure(err error, msg string) {
	if models.Classify(err) == models.KindCanceled {
		return
	}
	if models.Classify(err) == models.KindNetwork {
		msg = MsgCannotConnect
	}
	l.notify(NoticeError, msg)
}

// indexOf must be called with l.mu held.
func (l *TaskList) indexOf(id int64) int {
	return slices.IndexFunc(l.tasks, func(t models.Task) bool { return t.ID == id })
}

func (l *TaskList) notify(level NoticeLevel, msg string) {
	if l.cfg.Notifier != nil {
		l.cfg.Notifier.Notify(Notice{Level: level, Message: msg})
	}
}

func (l *TaskList) navigate(r Route) {
	if l.cfg.Navigator != nil {
		l.cfg.Navigator.Navigate(r)
	}
}

func (l *TaskList) logEvent(eventType string, data map[string]any) {
	if l.cfg.Events == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	if sess, err := l.cfg.Session.Get(); err == nil && sess.Username() != "" {
		data["username"] = sess.Username()
	}
	_ = l.cfg.Events.LogEvent(eventType, data)
}
