package cli

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/valter-silva-au/taskflow/internal/core"
	"github.com/valter-silva-au/taskflow/pkg/models"
)

type (
	tasksLoadedMsg struct{ err error }
	taskOpMsg      struct{ err error }
	taskCreatedMsg struct {
		task models.Task
		err  error
	}
)

type taskListModel struct {
	list    *core.TaskList
	loaded  bool
	busy    bool
	cursor  int
	spinner spinner.Model

	// confirmID is the task awaiting delete confirmation, 0 when none.
	confirmID int64
	form      *taskFormModel

	width  int
	height int
}

func newTaskListModel(list *core.TaskList) *taskListModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &taskListModel{list: list, spinner: sp}
}

func (m *taskListModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.load())
}

func (m *taskListModel) close() {
	m.list.Close()
}

func (m *taskListModel) resize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form.resize(width)
	}
}

func (m *taskListModel) load() tea.Cmd {
	list := m.list
	return func() tea.Msg {
		return tasksLoadedMsg{err: list.Load(context.Background())}
	}
}

func (m *taskListModel) run(op func(ctx context.Context) error) tea.Cmd {
	m.busy = true
	return func() tea.Msg {
		return taskOpMsg{err: op(context.Background())}
	}
}

func (m *taskListModel) selected() (models.Task, bool) {
	tasks := m.list.Tasks()
	if m.cursor < 0 || m.cursor >= len(tasks) {
		return models.Task{}, false
	}
	return tasks[m.cursor], true
}

func (m *taskListModel) clampCursor() {
	n := len(m.list.Tasks())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *taskListModel) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tasksLoadedMsg:
		m.loaded = true
		m.clampCursor()
		return nil

	case taskOpMsg:
		m.busy = false
		m.clampCursor()
		return nil

	case formSubmitMsg:
		list := m.list
		task := msg.task
		m.busy = true
		return func() tea.Msg {
			created, err := list.Create(context.Background(), task)
			return taskCreatedMsg{task: created, err: err}
		}

	case taskCreatedMsg:
		m.busy = false
		if msg.err == nil && m.form != nil {
			m.form.reset()
			m.form = nil
			m.cursor = 0
		}
		return nil

	case formCancelMsg:
		if m.form != nil {
			m.form.reset()
			m.form = nil
		}
		return nil

	case spinner.TickMsg:
		if m.loaded && !m.busy {
			if m.form != nil {
				return m.form.Update(msg)
			}
			return nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return cmd
	}

	if m.form != nil {
		return m.form.Update(msg)
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	if m.confirmID != 0 {
		id := m.confirmID
		m.confirmID = 0
		if key.String() == "y" || key.String() == "Y" {
			return m.run(func(ctx context.Context) error { return m.list.Delete(ctx, id) })
		}
		return nil
	}

	switch key.String() {
	case "q", "esc":
		return requestQuit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.list.Tasks())-1 {
			m.cursor++
		}
	case "r":
		if m.busy {
			return nil
		}
		return tea.Batch(m.spinner.Tick, m.load())
	case "n":
		m.form = newTaskFormModel(core.NewTaskForm(Suggester, nil))
		m.form.resize(m.width)
		return m.form.Init()
	case "s":
		t, ok := m.selected()
		if !ok || m.busy {
			return nil
		}
		next := t.Status.Next()
		return tea.Batch(m.spinner.Tick, m.run(func(ctx context.Context) error {
			return m.list.ChangeStatus(ctx, t.ID, next)
		}))
	case "d":
		if t, ok := m.selected(); ok && !m.busy {
			m.confirmID = t.ID
		}
	case "L":
		return m.run(func(context.Context) error { return m.list.Logout() })
	}
	return nil
}

func (m *taskListModel) View() string {
	if m.form != nil {
		return m.form.View()
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("My Tasks"))
	b.WriteString("\n")

	tasks := m.list.Tasks()
	switch {
	case !m.loaded:
		b.WriteString(m.spinner.View() + " Loading tasks...")
	case len(tasks) == 0:
		b.WriteString(helpStyle.Render(MsgNoTasks))
	default:
		width := m.width - 4
		for i, t := range tasks {
			b.WriteString(renderTaskItem(t, i == m.cursor, width))
			b.WriteString("\n\n")
		}
	}

	b.WriteString("\n")
	switch {
	case m.confirmID != 0:
		b.WriteString("Are you sure you want to delete this task? (y/n)")
	case m.busy:
		b.WriteString(m.spinner.View() + " Working...")
	default:
		b.WriteString(helpStyle.Render("j/k: move | n: new | s: status | d: delete | r: reload | L: logout | q: quit"))
	}
	return b.String()
}
