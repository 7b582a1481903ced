package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/valter-silva-au/taskflow/pkg/models"
)

// FormState is the task form's position in its edit/analyze/submit cycle.
type FormState int

const (
	FormEditing FormState = iota
	FormAnalyzing
	FormSubmitted
)

func (s FormState) String() string {
	switch s {
	case FormEditing:
		return "editing"
	case FormAnalyzing:
		return "analyzing"
	case FormSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("FormState(%d)", int(s))
	}
}

// ErrAnalysisInProgress is returned when Analyze is called while a previous
// analysis has not finished.
var ErrAnalysisInProgress = errors.New("analysis already in progress")

// Draft holds the task fields being edited.
type Draft struct {
	Title       string
	Description string
	Priority    models.Priority
	Deadline    *models.Date
}

// TaskForm collects task input, optionally asks a Suggester for a priority
// and deadline, and hands a complete Task to OnTaskCreated on submit. It
// never calls the API; persisting the task is the caller's job.
type TaskForm struct {
	suggester     Suggester
	onTaskCreated func(models.Task)
	now           func() time.Time

	mu         sync.Mutex
	draft      Draft
	suggestion *models.AISuggestion
	state      FormState
	// generation is bumped by Reset so a late analysis result is dropped.
	generation int
}

// NewTaskForm creates a form in the editing state with the default priority.
// onTaskCreated may be nil.
func NewTaskForm(suggester Suggester, onTaskCreated func(models.Task)) *TaskForm {
	return &TaskForm{
		suggester:     suggester,
		onTaskCreated: onTaskCreated,
		now:           time.Now,
		draft:         Draft{Priority: models.DefaultPriority},
	}
}

// SetClock replaces the clock used for task IDs.
func (f *TaskForm) SetClock(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// Draft returns a copy of the fields being edited.
func (f *TaskForm) Draft() Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.draft
}

// State returns the current form state.
func (f *TaskForm) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Suggestion returns the applied AI suggestion, if any.
func (f *TaskForm) Suggestion() (models.AISuggestion, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.suggestion == nil {
		return models.AISuggestion{}, false
	}
	return *f.suggestion, true
}

func (f *TaskForm) SetTitle(title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft.Title = title
}

func (f *TaskForm) SetDescription(desc string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft.Description = desc
}

// SetPriority stores p as-is; range is checked on submit.
func (f *TaskForm) SetPriority(p models.Priority) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft.Priority = p
}

// SetPriorityText parses a decimal priority.
func (f *TaskForm) SetPriorityText(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return &models.ValidationError{Field: "priority", Message: fmt.Sprintf("priority %q is not a number", s)}
	}
	f.SetPriority(models.Priority(n))
	return nil
}

// SetDeadline stores d; nil clears the deadline.
func (f *TaskForm) SetDeadline(d *models.Date) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft.Deadline = d
}

// SetDeadlineText parses YYYY-MM-DD; blank clears the deadline.
func (f *TaskForm) SetDeadlineText(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		f.SetDeadline(nil)
		return nil
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return &models.ValidationError{Field: "deadline", Message: fmt.Sprintf("deadline %q must be YYYY-MM-DD", s)}
	}
	f.SetDeadline(&d)
	return nil
}

// Analyze asks the Suggester for a priority and deadline and, on success,
// overwrites the draft's priority and deadline (truncated to a date) and
// keeps the suggestion for display and for the submitted task. The title
// must be non-empty.
func (f *TaskForm) Analyze(ctx context.Context) (models.AISuggestion, error) {
	f.mu.Lock()
	if strings.TrimSpace(f.draft.Title) == "" {
		f.mu.Unlock()
		return models.AISuggestion{}, &models.ValidationError{Field: "title", Message: "Please enter a title first"}
	}
	if f.state == FormAnalyzing {
		f.mu.Unlock()
		return models.AISuggestion{}, ErrAnalysisInProgress
	}
	if f.suggester == nil {
		f.mu.Unlock()
		return models.AISuggestion{}, fmt.Errorf("no suggester configured")
	}
	f.state = FormAnalyzing
	gen := f.generation
	title, desc := f.draft.Title, f.draft.Description
	f.mu.Unlock()

	s, err := f.suggester.Suggest(ctx, title, desc)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.generation || f.state != FormAnalyzing {
		return models.AISuggestion{}, context.Canceled
	}
	f.state = FormEditing
	if err != nil {
		return models.AISuggestion{}, fmt.Errorf("AI analysis failed: %w", err)
	}

	s.SuggestedPriority = s.SuggestedPriority.Clamp()
	deadline := models.NewDate(s.SuggestedDeadline.Time)
	f.draft.Priority = s.SuggestedPriority
	f.draft.Deadline = &deadline
	f.suggestion = &s
	return s, nil
}

// Submit validates the draft, builds a pending Task with a client-side
// timestamp ID and any AI annotations, and passes it to OnTaskCreated.
func (f *TaskForm) Submit() (models.Task, error) {
	f.mu.Lock()
	if strings.TrimSpace(f.draft.Title) == "" {
		f.mu.Unlock()
		return models.Task{}, &models.ValidationError{Field: "title", Message: "Title is required"}
	}

	task := models.Task{
		ID:          f.now().UnixMilli(),
		Title:       strings.TrimSpace(f.draft.Title),
		Description: f.draft.Description,
		Priority:    f.draft.Priority,
		Deadline:    f.draft.Deadline,
		Status:      models.StatusPending,
	}
	if f.suggestion != nil {
		score := f.suggestion.SuggestedPriority
		suggested := f.suggestion.SuggestedDeadline
		task.AIPriorityScore = &score
		task.AISuggestedDeadline = &suggested
	}
	if err := task.Validate(); err != nil {
		f.mu.Unlock()
		return models.Task{}, err
	}

	f.state = FormSubmitted
	callback := f.onTaskCreated
	f.mu.Unlock()

	if callback != nil {
		callback(task)
	}
	return task, nil
}

// Reset discards the draft and any suggestion, abandoning a running analysis.
func (f *TaskForm) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = Draft{Priority: models.DefaultPriority}
	f.suggestion = nil
	f.state = FormEditing
	f.generation++
}
