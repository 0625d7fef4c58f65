package notifications

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notehub/internal/keys"
	"github.com/nhle/notehub/internal/model"
	"github.com/nhle/notehub/internal/notify"
	"github.com/nhle/notehub/internal/theme"
)

// MarkReadMsg is sent when the user marks the selected notification read.
type MarkReadMsg struct {
	ID string
}

// OpenMsg is sent when the user opens the selected notification.
type OpenMsg struct {
	Notification model.Notification
}

// ClearAllMsg is sent when the user clears every notification.
type ClearAllMsg struct{}

// Model is the notification list view.
type Model struct {
	list   list.Model
	keys   *keys.KeyMap
	unread int
	width  int
	height int
}

// New creates an empty notification list.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	return Model{
		list:   l,
		keys:   k,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// SetSnapshot replaces the displayed notifications, keeping the cursor on
// the same notification when it is still present.
func (m *Model) SetSnapshot(snap notify.Snapshot) tea.Cmd {
	selectedID := ""
	if n, ok := m.Selected(); ok {
		selectedID = n.ID
	}

	items := make([]list.Item, len(snap.Notifications))
	index := 0
	for i, n := range snap.Notifications {
		items[i] = Item{Notification: n}
		if n.ID == selectedID {
			index = i
		}
	}
	m.unread = snap.UnreadCount

	cmd := m.list.SetItems(items)
	if selectedID != "" {
		m.list.Select(index)
	}
	return cmd
}

// Selected returns the notification under the cursor.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Len returns how many notifications are shown.
func (m Model) Len() int {
	return len(m.list.Items())
}

// Update handles messages for the notification list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Open):
			n, ok := m.Selected()
			if !ok {
				return m, nil
			}
			return m, func() tea.Msg {
				return OpenMsg{Notification: n}
			}

		case key.Matches(msg, m.keys.MarkRead):
			n, ok := m.Selected()
			if !ok || n.Read {
				return m, nil
			}
			return m, func() tea.Msg {
				return MarkReadMsg{ID: n.ID}
			}

		case key.Matches(msg, m.keys.ClearAll):
			if m.unread == 0 {
				return m, nil
			}
			return m, func() tea.Msg {
				return ClearAllMsg{}
			}
		}
	}

	// Delegate to the list for navigation keys (up/down/pgup/pgdn)
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the list or an empty state.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No notifications yet.\nNew ones appear here as they arrive.")
	}
	return m.list.View()
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}
