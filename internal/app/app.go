package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/notehub/internal/keys"
	"github.com/nhle/notehub/internal/logging"
	"github.com/nhle/notehub/internal/model"
	"github.com/nhle/notehub/internal/notify"
	"github.com/nhle/notehub/internal/realtime"
	gosync "github.com/nhle/notehub/internal/sync"
	"github.com/nhle/notehub/internal/theme"
	"github.com/nhle/notehub/internal/ui"
	"github.com/nhle/notehub/internal/ui/command"
	"github.com/nhle/notehub/internal/ui/detail"
	helpview "github.com/nhle/notehub/internal/ui/help"
	"github.com/nhle/notehub/internal/ui/login"
	"github.com/nhle/notehub/internal/ui/notifications"
)

// Session is the part of the session controller the UI drives.
type Session interface {
	MarkRead(ctx context.Context, id string) error
	ClearAll(ctx context.Context) error
	Refresh() error
	Reconnect() error
	Snapshot() notify.Snapshot
	Presence() (int, bool)
	State() realtime.State
}

// Auth signs the user in and out.
type Auth interface {
	Current() *model.Identity
	Login(identity model.Identity, token string) error
	Logout() error
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewList
	ViewDetail
	ViewHelp
	ViewCommand
)

type toastKind int

const (
	toastAlert toastKind = iota
	toastNotice
)

type toast struct {
	id   int
	kind toastKind
	text string
}

// toastExpiredMsg clears the toast with the given id if it is still shown.
type toastExpiredMsg struct {
	id int
}

// Options wires the root model to the rest of the client.
type Options struct {
	Session Session
	Auth    Auth
	Bridge  *gosync.Bridge
	Logger  *logging.Logger

	// AlertDuration is how long a toast stays on screen.
	AlertDuration time.Duration

	// LastIdentity prefills the sign-in form.
	LastIdentity *model.Identity

	// OnLogin runs after a successful sign-in, e.g. to remember the identity.
	OnLogin func(model.Identity)
}

// Model is the root Bubble Tea model that manages view routing,
// layout and the live notification state.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap

	session Session
	auth    Auth
	bridge  *gosync.Bridge
	logg    *logging.Logger
	onLogin func(model.Identity)

	list        notifications.Model
	detail      detail.Model
	loginView   login.Model
	helpView    helpview.Model
	commandView command.Model

	lastIdentity  *model.Identity
	alertDuration time.Duration
	unread        int
	presence      int
	presenceKnown bool
	state         realtime.State
	attempt       int
	toast         *toast
	toastSeq      int
	ready         bool
}

// New creates the root application model.
func New(opts Options) Model {
	k := keys.DefaultKeyMap()
	logg := opts.Logger
	if logg == nil {
		logg = logging.Nop()
	}
	duration := opts.AlertDuration
	if duration <= 0 {
		duration = 4 * time.Second
	}

	m := Model{
		currentView:   ViewList,
		keys:          k,
		session:       opts.Session,
		auth:          opts.Auth,
		bridge:        opts.Bridge,
		logg:          logg,
		onLogin:       opts.OnLogin,
		list:          notifications.New(k, 80, 24),
		detail:        detail.New(k, 80, 24),
		loginView:     login.New(80, 24),
		helpView:      helpview.New(k, 80, 24),
		commandView:   command.New(80, 24),
		lastIdentity:  opts.LastIdentity,
		alertDuration: duration,
		state:         opts.Session.State(),
	}

	snap := opts.Session.Snapshot()
	m.list.SetSnapshot(snap)
	m.unread = snap.UnreadCount
	m.presence, m.presenceKnown = opts.Session.Presence()

	if opts.Auth.Current() == nil {
		m.currentView = ViewLogin
	}
	return m
}

// Init starts listening to the session and shows the sign-in form when
// nobody is signed in.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.bridge.WaitForNext()}
	if m.currentView == ViewLogin {
		cmds = append(cmds, m.loginView.Start(m.lastIdentity))
	}
	return tea.Batch(cmds...)
}

// CurrentView returns the active view.
func (m Model) CurrentView() ViewState {
	return m.currentView
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.list.SetSize(contentWidth, contentHeight)
		m.detail.SetSize(contentWidth, contentHeight)
		m.loginView.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		// Forward to active view so the huh form can calculate its layout.
		return m.updateActiveView(msg)

	case gosync.NotificationsMsg:
		m.unread = msg.Snapshot.UnreadCount
		cmd := m.list.SetSnapshot(msg.Snapshot)
		if m.currentView == ViewDetail && !m.detail.SetSnapshot(msg.Snapshot) {
			m.currentView = ViewList
		}
		return m, tea.Batch(cmd, m.bridge.WaitForNext())

	case gosync.PresenceMsg:
		m.presence = msg.Count
		m.presenceKnown = true
		return m, m.bridge.WaitForNext()

	case gosync.ConnectionMsg:
		m.state = msg.State
		m.attempt = msg.Attempt
		if msg.State == realtime.StateClosed {
			m.presenceKnown = false
		}
		return m, m.bridge.WaitForNext()

	case gosync.AlertMsg:
		return m, tea.Batch(m.showToast(toastAlert, msg.Message), m.bridge.WaitForNext())

	case gosync.NoticeMsg:
		return m, tea.Batch(m.showToast(toastNotice, msg.Message), m.bridge.WaitForNext())

	case toastExpiredMsg:
		if m.toast != nil && m.toast.id == msg.id {
			m.toast = nil
		}
		return m, nil

	case login.SubmittedMsg:
		return m, m.login(msg.Identity, msg.Token)

	case loginResultMsg:
		if msg.err != nil {
			m.logg.Error(context.Background(), "sign-in failed", msg.err)
			m.loginView.SetError(fmt.Sprintf("Sign-in failed: %v", msg.err))
			return m, m.loginView.Start(&msg.identity)
		}
		id := msg.identity
		m.lastIdentity = &id
		m.currentView = ViewList
		if m.onLogin != nil {
			m.onLogin(id)
		}
		return m, nil

	case logoutResultMsg:
		if msg.err != nil {
			m.logg.Error(context.Background(), "sign-out failed", msg.err)
			return m, m.showToast(toastNotice, "Could not sign out")
		}
		if msg.last != nil {
			m.lastIdentity = msg.last
		}
		m.currentView = ViewLogin
		m.loginView.SetError("")
		return m, m.loginView.Start(m.lastIdentity)

	case actionResultMsg:
		if text := actionNotice(msg); text != "" {
			return m, m.showToast(toastNotice, text)
		}
		return m, nil

	case notifications.MarkReadMsg:
		return m, m.markRead(msg.ID)

	case notifications.OpenMsg:
		m.detail.SetNotification(msg.Notification)
		m.currentView = ViewDetail
		return m, nil

	case detail.BackMsg:
		m.currentView = ViewList
		return m, nil

	case notifications.ClearAllMsg:
		return m, m.clearAll()

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}
		// The sign-in form owns every other key.
		if m.currentView == ViewLogin {
			break
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.currentView == ViewList || m.currentView == ViewDetail {
				return m, m.quit()
			}

		case key.Matches(msg, m.keys.Back):
			if m.currentView == ViewHelp || m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			if m.currentView == ViewList {
				m.previousView = m.currentView
				m.currentView = ViewHelp
				return m, nil
			}

		case key.Matches(msg, m.keys.Command):
			if m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}
			if m.currentView == ViewList {
				m.previousView = m.currentView
				m.currentView = ViewCommand
				return m, m.commandView.Focus()
			}

		case key.Matches(msg, m.keys.Refresh):
			if m.currentView == ViewList {
				return m, m.refresh()
			}

		case key.Matches(msg, m.keys.Reconnect):
			if m.currentView == ViewList {
				return m, m.reconnect()
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewList:
		m.list, cmd = m.list.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.headerTitle(), m.connectionStatus())
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, m.renderToast(), m.renderContent(), statusBar)
}

func (m Model) headerTitle() string {
	if m.unread > 0 {
		return fmt.Sprintf("Notifications [%d unread]", m.unread)
	}
	return "Notifications"
}

// connectionStatus renders the online count and live channel state.
func (m Model) connectionStatus() string {
	var parts []string
	if m.presenceKnown {
		parts = append(parts, fmt.Sprintf("%d online", m.presence))
	}

	state := m.state.String()
	if m.state == realtime.StateReconnecting && m.attempt > 0 {
		state = fmt.Sprintf("reconnecting (%d)", m.attempt)
	}
	if m.currentView == ViewLogin {
		state = "signed out"
	}
	parts = append(parts, state)

	return theme.ConnectionStyle(m.state.String()).Render(strings.Join(parts, " · "))
}

func (m Model) renderToast() string {
	if m.toast == nil {
		return ""
	}
	if m.toast.kind == toastAlert {
		return theme.AlertStyle.Render(m.toast.text)
	}
	return theme.NoticeStyle.Render(m.toast.text)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLogin:
		return m.loginView.View()
	case ViewList:
		return m.list.View()
	case ViewDetail:
		return m.detail.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewLogin:
		return "enter next | ctrl+c quit"
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | esc back"
	case ViewDetail:
		return "esc back | m mark read | j/k scroll"
	default:
		if m.state == realtime.StateOffline {
			return "offline | R reconnect | r refresh | q quit"
		}
		return "q quit | ? help | o open | enter mark read | C clear all | : command"
	}
}

// showToast displays text and schedules its removal.
func (m *Model) showToast(kind toastKind, text string) tea.Cmd {
	m.toastSeq++
	id := m.toastSeq
	m.toast = &toast{id: id, kind: kind, text: text}
	return tea.Tick(m.alertDuration, func(time.Time) tea.Msg {
		return toastExpiredMsg{id: id}
	})
}

func (m *Model) quit() tea.Cmd {
	m.bridge.Stop()
	return tea.Quit
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(input string) tea.Cmd {
	c, ok := command.Lookup(input)
	if !ok {
		return m.showToast(toastNotice, fmt.Sprintf("Unknown command %q", input))
	}

	switch c.Name {
	case "refresh":
		return m.refresh()
	case "reconnect":
		return m.reconnect()
	case "clear":
		return m.clearAll()
	case "logout":
		return m.logout()
	case "quit":
		return m.quit()
	default:
		return nil
	}
}
