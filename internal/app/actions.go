package app

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/notehub/internal/model"
	"github.com/nhle/notehub/internal/session"
)

// actionResultMsg is sent after a session action finishes.
type actionResultMsg struct {
	action string
	err    error
}

// loginResultMsg is sent after the sign-in form has been submitted.
type loginResultMsg struct {
	identity model.Identity
	err      error
}

// logoutResultMsg is sent after the session credential has been dropped.
type logoutResultMsg struct {
	last *model.Identity
	err  error
}

func (m *Model) markRead(id string) tea.Cmd {
	s := m.session
	return func() tea.Msg {
		return actionResultMsg{action: "mark read", err: s.MarkRead(context.Background(), id)}
	}
}

func (m *Model) clearAll() tea.Cmd {
	s := m.session
	return func() tea.Msg {
		return actionResultMsg{action: "clear", err: s.ClearAll(context.Background())}
	}
}

func (m *Model) refresh() tea.Cmd {
	s := m.session
	return func() tea.Msg {
		return actionResultMsg{action: "refresh", err: s.Refresh()}
	}
}

func (m *Model) reconnect() tea.Cmd {
	s := m.session
	return func() tea.Msg {
		return actionResultMsg{action: "reconnect", err: s.Reconnect()}
	}
}

func (m *Model) login(identity model.Identity, token string) tea.Cmd {
	a := m.auth
	return func() tea.Msg {
		return loginResultMsg{identity: identity, err: a.Login(identity, token)}
	}
}

func (m *Model) logout() tea.Cmd {
	a := m.auth
	return func() tea.Msg {
		last := a.Current()
		return logoutResultMsg{last: last, err: a.Logout()}
	}
}

// actionNotice returns the notice to show for a failed action. Failures
// the session already reported return "".
func actionNotice(msg actionResultMsg) string {
	switch {
	case msg.err == nil:
		return ""
	case errors.Is(msg.err, session.ErrNoIdentity):
		return "Sign in to " + msg.action
	default:
		return ""
	}
}
