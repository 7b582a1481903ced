package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/valter-silva-au/taskflow/internal/core"
	"github.com/valter-silva-au/taskflow/pkg/models"
)

const (
	formFieldTitle = iota
	formFieldDescription
	formFieldPriority
	formFieldDeadline
	formFieldCount
)

type (
	analyzeDoneMsg struct {
		sug models.AISuggestion
		err error
	}
	formSubmitMsg struct{ task models.Task }
	formCancelMsg struct{}
)

// taskFormModel edits a core.TaskForm. Submitting hands the built task to
// the list, which persists it.
type taskFormModel struct {
	form      *core.TaskForm
	inputs    []textinput.Model
	focus     int
	analyzing bool
	spinner   spinner.Model
	errMsg    string
	now       func() time.Time
}

func newTaskFormModel(form *core.TaskForm) *taskFormModel {
	mk := func(prompt, placeholder string, limit int) textinput.Model {
		in := textinput.New()
		in.Prompt = prompt
		in.Placeholder = placeholder
		in.CharLimit = limit
		return in
	}
	inputs := []textinput.Model{
		mk("Title:       ", "What needs doing?", 200),
		mk("Description: ", "optional", 1000),
		mk("Priority:    ", "1-5", 1),
		mk("Deadline:    ", "YYYY-MM-DD", 10),
	}
	inputs[formFieldPriority].SetValue(strconv.Itoa(int(models.DefaultPriority)))
	inputs[formFieldTitle].Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &taskFormModel{form: form, inputs: inputs, spinner: sp, now: time.Now}
}

func (m *taskFormModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *taskFormModel) resize(width int) {
	w := width - 20
	if w < 20 {
		w = 20
	}
	for i := range m.inputs {
		m.inputs[i].Width = w
	}
}

func (m *taskFormModel) reset() {
	m.form.Reset()
}

func (m *taskFormModel) setFocus(i int) {
	m.focus = (i + formFieldCount) % formFieldCount
	for j := range m.inputs {
		if j == m.focus {
			m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
}

// sync copies the inputs into the form.
func (m *taskFormModel) sync() error {
	m.form.SetTitle(m.inputs[formFieldTitle].Value())
	m.form.SetDescription(m.inputs[formFieldDescription].Value())
	if err := m.form.SetPriorityText(m.inputs[formFieldPriority].Value()); err != nil {
		return err
	}
	return m.form.SetDeadlineText(m.inputs[formFieldDeadline].Value())
}

func (m *taskFormModel) analyze() tea.Cmd {
	if err := m.sync(); err != nil {
		m.errMsg = err.Error()
		return nil
	}
	m.errMsg = ""
	m.analyzing = true
	form := m.form
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		sug, err := form.Analyze(context.Background())
		return analyzeDoneMsg{sug: sug, err: err}
	})
}

func (m *taskFormModel) submit() tea.Cmd {
	if err := m.sync(); err != nil {
		m.errMsg = err.Error()
		return nil
	}
	task, err := m.form.Submit()
	if err != nil {
		m.errMsg = err.Error()
		return nil
	}
	m.errMsg = ""
	return func() tea.Msg { return formSubmitMsg{task: task} }
}

func (m *taskFormModel) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case analyzeDoneMsg:
		m.analyzing = false
		if msg.err != nil {
			if !errors.Is(msg.err, context.Canceled) {
				m.errMsg = msg.err.Error()
			}
			return nil
		}
		d := m.form.Draft()
		m.inputs[formFieldPriority].SetValue(strconv.Itoa(int(d.Priority)))
		if d.Deadline != nil {
			m.inputs[formFieldDeadline].SetValue(d.Deadline.String())
		}
		return nil

	case spinner.TickMsg:
		if !m.analyzing {
			return nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return func() tea.Msg { return formCancelMsg{} }
		case "tab", "down":
			m.setFocus(m.focus + 1)
			return nil
		case "shift+tab", "up":
			m.setFocus(m.focus - 1)
			return nil
		case "ctrl+a":
			if m.analyzing {
				return nil
			}
			return m.analyze()
		case "ctrl+s":
			return m.submit()
		case "enter":
			if m.focus < formFieldCount-1 {
				m.setFocus(m.focus + 1)
				return nil
			}
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return cmd
}

func (m *taskFormModel) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Create New Task"))
	b.WriteString("\n")
	for _, in := range m.inputs {
		b.WriteString(in.View())
		b.WriteString("\n")
	}

	if sug, ok := m.form.Suggestion(); ok {
		d := models.NewDate(sug.SuggestedDeadline.Time)
		b.WriteString("\n")
		b.WriteString(aiBadgeStyle.Render("AI"))
		b.WriteString(" suggested priority " + strconv.Itoa(int(sug.SuggestedPriority)) +
			", deadline " + d.Format(DeadlineLayout) + " (" + deadlineFromNow(&d, m.now()) + ")")
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.analyzing:
		b.WriteString(m.spinner.View() + " Analyzing...")
	case m.errMsg != "":
		b.WriteString(noticeStyles[core.NoticeError].Render(m.errMsg))
	default:
		b.WriteString(helpStyle.Render("ctrl+a: analyze with AI | enter/ctrl+s: create | esc: cancel"))
	}
	return panelStyle.Render(b.String())
}

// deadlineFromNow describes d relative to now's calendar day.
func deadlineFromNow(d *models.Date, now time.Time) string {
	if d == nil {
		return ""
	}
	day := func(y int, m time.Month, dd int) time.Time { return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC) }
	days := int(day(d.Date()).Sub(day(now.Date())).Hours() / 24)
	switch {
	case days == 0:
		return "today"
	case days == 1:
		return "tomorrow"
	case days > 1:
		return fmt.Sprintf("in %d days", days)
	case days == -1:
		return "yesterday"
	default:
		return fmt.Sprintf("%d days ago", -days)
	}
}
