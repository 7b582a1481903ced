package cli

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/valter-silva-au/taskflow/internal/core"
)

const (
	loginFieldUsername = iota
	loginFieldPassword
	loginFieldCount
)

// loginDoneMsg carries the outcome of a login attempt.
type loginDoneMsg struct {
	notice core.Notice
	err    error
}

type loginModel struct {
	inputs     []textinput.Model
	focus      int
	submitting bool
	spinner    spinner.Model
}

func newLoginModel() *loginModel {
	username := textinput.New()
	username.Placeholder = "username"
	username.Prompt = "Username: "
	username.CharLimit = 64
	username.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = "Password: "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &loginModel{
		inputs:  []textinput.Model{username, password},
		spinner: sp,
	}
}

func (m *loginModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *loginModel) setFocus(i int) {
	m.focus = (i + loginFieldCount) % loginFieldCount
	for j := range m.inputs {
		if j == m.focus {
			m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
}

func (m *loginModel) credentials() (string, string) {
	return strings.TrimSpace(m.inputs[loginFieldUsername].Value()), m.inputs[loginFieldPassword].Value()
}

func submitLogin(username, password string) tea.Cmd {
	return func() tea.Msg {
		notice, err := performLogin(context.Background(), username, password)
		return loginDoneMsg{notice: notice, err: err}
	}
}

func (m *loginModel) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.submitting {
			return nil
		}
		switch msg.String() {
		case "esc":
			return requestQuit
		case "tab", "down":
			m.setFocus(m.focus + 1)
			return nil
		case "shift+tab", "up":
			m.setFocus(m.focus - 1)
			return nil
		case "enter":
			if m.focus == loginFieldUsername {
				m.setFocus(loginFieldPassword)
				return nil
			}
			m.submitting = true
			username, password := m.credentials()
			return tea.Batch(m.spinner.Tick, submitLogin(username, password))
		}

	case loginDoneMsg:
		m.submitting = false
		if msg.err != nil {
			m.inputs[loginFieldPassword].SetValue("")
			m.setFocus(loginFieldPassword)
		}
		return nil

	case spinner.TickMsg:
		if !m.submitting {
			return nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return cmd
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return cmd
}

func (m *loginModel) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Sign in"))
	b.WriteString("\n")
	for _, in := range m.inputs {
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if m.submitting {
		b.WriteString(m.spinner.View() + " Signing in...")
	} else {
		b.WriteString(helpStyle.Render("enter: sign in | tab: next field | esc: quit"))
	}
	return panelStyle.Render(b.String())
}
