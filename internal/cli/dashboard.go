package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/taskflow/internal/core"
	"github.com/valter-silva-au/taskflow/pkg/models"
)

// Messages delivered to the root model from outside the update loop.
type (
	noticeMsg   core.Notice
	navigateMsg core.Route
	sessionMsg  models.Session
)

// quitMsg asks the root model to release the task list and exit.
type quitMsg struct{}

func requestQuit() tea.Msg { return quitMsg{} }

// busSize bounds the notices and navigations queued between renders.
const busSize = 64

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	noticeStyles = map[core.NoticeLevel]lipgloss.Style{
		core.NoticeInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("69")),
		core.NoticeSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
		core.NoticeError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)

// appModel is the root of the interactive UI. It owns routing: the current
// path is resolved through the gate on every session change, so signing in
// or out in another process moves this one too.
type appModel struct {
	gate    core.Gate
	path    string
	route   core.Route
	session models.Session

	sessCh      <-chan models.Session
	unsubscribe func()
	bus         chan tea.Msg

	login *loginModel
	tasks *taskListModel

	notice core.Notice
	width  int
	height int
}

func newAppModel(sess models.Session, sessCh <-chan models.Session, unsubscribe func()) appModel {
	m := appModel{
		path:        string(core.RouteRoot),
		session:     sess,
		sessCh:      sessCh,
		unsubscribe: unsubscribe,
		bus:         make(chan tea.Msg, busSize),
		login:       newLoginModel(),
	}
	m.route = m.gate.Resolve(m.path, sess)
	if m.route == core.RouteTasks {
		m.tasks = newTaskListModel(m.newTaskList())
	}
	return m
}

func (m appModel) newTaskList() *core.TaskList {
	bus := m.bus
	send := func(msg tea.Msg) {
		select {
		case bus <- msg:
		default:
		}
	}
	notifier := core.NotifierFunc(func(n core.Notice) { send(noticeMsg(n)) })
	nav := core.NavigatorFunc(func(r core.Route) { send(navigateMsg(r)) })
	return core.NewTaskList(taskListConfig(notifier, nav))
}

func waitForBus(bus <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-bus
	}
}

func waitForSession(ch <-chan models.Session) tea.Cmd {
	return func() tea.Msg {
		sess, ok := <-ch
		if !ok {
			return nil
		}
		return sessionMsg(sess)
	}
}

func (m appModel) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForBus(m.bus)}
	if m.sessCh != nil {
		cmds = append(cmds, waitForSession(m.sessCh))
	}
	switch m.route {
	case core.RouteTasks:
		cmds = append(cmds, m.tasks.Init())
	case core.RouteLogin:
		cmds = append(cmds, m.login.Init())
	}
	return tea.Batch(cmds...)
}

// setRoute re-resolves the current path and swaps views when the result
// changes. Leaving the task list closes it so late results are dropped.
func (m *appModel) setRoute() tea.Cmd {
	next := m.gate.Resolve(m.path, m.session)
	if next == m.route {
		return nil
	}
	if m.route == core.RouteTasks && m.tasks != nil {
		m.tasks.close()
		m.tasks = nil
	}
	m.route = next

	switch next {
	case core.RouteTasks:
		m.tasks = newTaskListModel(m.newTaskList())
		m.tasks.resize(m.width, m.height)
		return m.tasks.Init()
	case core.RouteLogin:
		m.login = newLoginModel()
		return m.login.Init()
	}
	return nil
}

func (m appModel) quit() (tea.Model, tea.Cmd) {
	if m.tasks != nil {
		m.tasks.close()
	}
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	return m, tea.Quit
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}

	case quitMsg:
		return m.quit()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.tasks != nil {
			m.tasks.resize(msg.Width, msg.Height)
		}
		return m, nil

	case sessionMsg:
		m.session = models.Session(msg)
		return m, tea.Batch(m.setRoute(), waitForSession(m.sessCh))

	case noticeMsg:
		m.notice = core.Notice(msg)
		return m, waitForBus(m.bus)

	case navigateMsg:
		m.path = string(msg)
		if Sessions != nil {
			if sess, err := Sessions.Get(); err == nil {
				m.session = sess
			}
		}
		return m, tea.Batch(m.setRoute(), waitForBus(m.bus))

	case loginDoneMsg:
		if msg.notice.Message != "" {
			m.notice = msg.notice
		}
		cmd := m.login.Update(msg)
		if msg.err != nil {
			return m, cmd
		}
		if sess, err := Sessions.Get(); err == nil {
			m.session = sess
		}
		m.path = string(core.RouteTasks)
		return m, tea.Batch(cmd, m.setRoute())
	}

	switch m.route {
	case core.RouteTasks:
		if m.tasks != nil {
			return m, m.tasks.Update(msg)
		}
	case core.RouteLogin:
		return m, m.login.Update(msg)
	}
	return m, nil
}

func (m appModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(" TaskFlow "))
	if name := m.session.Username(); name != "" && m.route == core.RouteTasks {
		b.WriteString(helpStyle.Render("  signed in as " + name))
	}
	b.WriteString("\n\n")

	switch m.route {
	case core.RouteTasks:
		if m.tasks != nil {
			b.WriteString(m.tasks.View())
		}
	default:
		b.WriteString(m.login.View())
	}

	if m.notice.Message != "" {
		b.WriteString("\n\n")
		b.WriteString(noticeStyles[m.notice.Level].Render(m.notice.Message))
	}
	return b.String()
}

var uiCmd = &cobra.Command{
	Use:     "ui",
	Aliases: []string{"dashboard"},
	Short:   "Open the interactive task manager",
	Long: `Open the full-screen task manager. Shows the login form when no valid
session is stored, otherwise the task list.

Keys: j/k move, n new task, s cycle status, d delete, r reload, L logout,
q quit.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if API == nil || Sessions == nil {
			return errNotInitialized
		}
		sess, err := Sessions.Get()
		if err != nil {
			return fmt.Errorf("reading session: %w", err)
		}
		sessCh, unsubscribe := Sessions.Subscribe()
		defer unsubscribe()

		p := tea.NewProgram(newAppModel(sess, sessCh, unsubscribe), tea.WithAltScreen(), tea.WithContext(commandContext(cmd)))
		_, err = p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(uiCmd)
}
