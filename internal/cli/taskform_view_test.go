package cli

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/valter-silva-au/taskflow/internal/core"
	"github.com/valter-silva-au/taskflow/pkg/models"
)

func newTestFormModel() *taskFormModel {
	form := core.NewTaskForm(core.KeywordSuggester{Now: func() time.Time { return testNow }}, nil)
	form.SetClock(func() time.Time { return testNow })
	m := newTaskFormModel(form)
	m.now = func() time.Time { return testNow }
	return m
}

func TestTaskFormView_Defaults(t *testing.T) {
	m := newTestFormModel()
	if got := m.inputs[formFieldPriority].Value(); got != "3" {
		t.Errorf("priority input = %q, want 3", got)
	}
	if !m.inputs[formFieldTitle].Focused() {
		t.Error("title input should start focused")
	}
}

func TestTaskFormView_TabCyclesFocus(t *testing.T) {
	m := newTestFormModel()
	for i := 0; i < formFieldCount; i++ {
		m.Update(keyMsg("tab"))
	}
	if m.focus != formFieldTitle {
		t.Errorf("focus = %d, want wrap to title", m.focus)
	}
	m.Update(keyMsg("enter"))
	if m.focus != formFieldDescription {
		t.Errorf("enter on title should move to description, focus = %d", m.focus)
	}
}

func TestTaskFormView_AnalyzeFillsFields(t *testing.T) {
	m := newTestFormModel()
	m.inputs[formFieldTitle].SetValue("Critical outage")

	cmd := m.Update(keyMsg("ctrl+a"))
	if !m.analyzing {
		t.Fatal("analyzing flag not set")
	}
	if !strings.Contains(m.View(), "Analyzing...") {
		t.Errorf("view missing spinner text:\n%s", m.View())
	}

	var done *analyzeDoneMsg
	for _, msg := range runCmd(cmd) {
		if d, ok := msg.(analyzeDoneMsg); ok {
			done = &d
		}
	}
	if done == nil {
		t.Fatal("analysis produced no result")
	}
	m.Update(*done)

	if m.analyzing {
		t.Error("still analyzing")
	}
	if got := m.inputs[formFieldPriority].Value(); got != "5" {
		t.Errorf("priority input = %q, want 5", got)
	}
	if got := m.inputs[formFieldDeadline].Value(); got != "2025-03-15" {
		t.Errorf("deadline input = %q, want 2025-03-15", got)
	}
	if !strings.Contains(m.View(), "suggested priority 5") || !strings.Contains(m.View(), "tomorrow") {
		t.Errorf("suggestion not shown:\n%s", m.View())
	}
}

func TestTaskFormView_AnalyzeNeedsTitle(t *testing.T) {
	m := newTestFormModel()
	for _, msg := range runCmd(m.Update(keyMsg("ctrl+a"))) {
		m.Update(msg)
	}
	if !strings.Contains(m.View(), "Please enter a title first") {
		t.Errorf("view missing title error:\n%s", m.View())
	}
}

func TestTaskFormView_SubmitValidation(t *testing.T) {
	m := newTestFormModel()
	if cmd := m.Update(keyMsg("ctrl+s")); cmd != nil {
		t.Error("submit with empty title produced a command")
	}
	if !strings.Contains(m.View(), "Title is required") {
		t.Errorf("view missing error:\n%s", m.View())
	}

	m.inputs[formFieldTitle].SetValue("ok")
	m.inputs[formFieldPriority].SetValue("x")
	if cmd := m.Update(keyMsg("ctrl+s")); cmd != nil {
		t.Error("submit with bad priority produced a command")
	}
	if !strings.Contains(m.errMsg, "not a number") {
		t.Errorf("errMsg = %q", m.errMsg)
	}
}

func TestTaskFormView_SubmitBuildsTask(t *testing.T) {
	m := newTestFormModel()
	m.inputs[formFieldTitle].SetValue("  Plan trip ")
	m.inputs[formFieldDescription].SetValue("book flights")
	m.inputs[formFieldPriority].SetValue("4")
	m.inputs[formFieldDeadline].SetValue("2025-05-01")

	msgs := runCmd(m.Update(keyMsg("ctrl+s")))
	if len(msgs) != 1 {
		t.Fatalf("msgs = %v, want one submit", msgs)
	}
	sub, ok := msgs[0].(formSubmitMsg)
	if !ok {
		t.Fatalf("msg = %T, want formSubmitMsg", msgs[0])
	}
	task := sub.task
	if task.Title != "Plan trip" || task.Description != "book flights" || task.Priority != 4 {
		t.Errorf("task = %+v", task)
	}
	if task.ID != testNow.UnixMilli() {
		t.Errorf("id = %d, want clock millis", task.ID)
	}
	if task.AIPriorityScore != nil {
		t.Error("AI score set without analysis")
	}
}

// suggesterFunc adapts a function to core.Suggester.
type suggesterFunc func(ctx context.Context, title, desc string) (models.AISuggestion, error)

func (f suggesterFunc) Suggest(ctx context.Context, title, desc string) (models.AISuggestion, error) {
	return f(ctx, title, desc)
}

func TestTaskFormView_ResetDropsLateAnalysis(t *testing.T) {
	var m *taskFormModel
	form := core.NewTaskForm(suggesterFunc(func(ctx context.Context, _, _ string) (models.AISuggestion, error) {
		// The user cancels the form while the analysis is in flight.
		m.reset()
		return core.KeywordSuggester{Now: func() time.Time { return testNow }}.Suggest(ctx, "urgent", "")
	}), nil)
	m = newTaskFormModel(form)
	m.inputs[formFieldTitle].SetValue("urgent")

	for _, msg := range runCmd(m.Update(keyMsg("ctrl+a"))) {
		m.Update(msg)
	}
	if _, ok := m.form.Suggestion(); ok {
		t.Error("suggestion kept after reset")
	}
	if m.errMsg != "" {
		t.Errorf("cancelled analysis surfaced an error: %q", m.errMsg)
	}
	if m.analyzing {
		t.Error("still analyzing after the late result arrived")
	}
}

func TestDeadlineFromNow(t *testing.T) {
	now := time.Date(2025, 3, 14, 18, 30, 0, 0, time.UTC)
	day := func(d int) *models.Date {
		v := models.NewDate(time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC))
		return &v
	}
	tests := []struct {
		d    *models.Date
		want string
	}{
		{nil, ""},
		{day(14), "today"},
		{day(15), "tomorrow"},
		{day(17), "in 3 days"},
		{day(13), "yesterday"},
		{day(10), "4 days ago"},
	}
	for _, tt := range tests {
		if got := deadlineFromNow(tt.d, now); got != tt.want {
			t.Errorf("deadlineFromNow(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestDeadlineFromNow_AcrossDSTChange(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	// Clocks spring forward on 2025-03-09 in New York.
	now := time.Date(2025, 3, 7, 12, 0, 0, 0, ny)
	local := models.NewDate(time.Date(2025, 3, 10, 0, 0, 0, 0, ny))
	if got := deadlineFromNow(&local, now); got != "in 3 days" {
		t.Errorf("local deadline = %q, want in 3 days", got)
	}
	wire := models.NewDate(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	if got := deadlineFromNow(&wire, now); got != "in 3 days" {
		t.Errorf("UTC deadline = %q, want in 3 days", got)
	}
}
