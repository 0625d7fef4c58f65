package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notehub/internal/theme"
)

// CommandMsg is emitted when the user executes a command.
type CommandMsg string

// Command describes one palette entry.
type Command struct {
	Name        string
	Description string
}

// Commands lists everything the palette understands.
var Commands = []Command{
	{Name: "refresh", Description: "reload notifications from the portal"},
	{Name: "reconnect", Description: "reopen the live channel"},
	{Name: "clear", Description: "mark every notification read"},
	{Name: "logout", Description: "sign out and forget the session"},
	{Name: "quit", Description: "exit notehub"},
}

// Lookup resolves a typed command, accepting any unique prefix.
func Lookup(input string) (Command, bool) {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return Command{}, false
	}
	var found []Command
	for _, c := range Commands {
		if c.Name == input {
			return c, true
		}
		if strings.HasPrefix(c.Name, input) {
			found = append(found, c)
		}
	}
	if len(found) != 1 {
		return Command{}, false
	}
	return found[0], true
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			cmd := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if cmd != "" {
				return m, func() tea.Msg {
					return CommandMsg(cmd)
				}
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Command Palette")
	input := m.input.View()

	lines := []string{title, input, ""}
	for _, c := range Commands {
		lines = append(lines, theme.HelpStyle.Render(c.Name+"  "+c.Description))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, lines...)

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
