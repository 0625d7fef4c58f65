package login

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notehub/internal/model"
	"github.com/nhle/notehub/internal/theme"
)

// SubmittedMsg is sent when the user completes the sign-in form.
type SubmittedMsg struct {
	Identity model.Identity
	Token    string
}

// fields holds the values huh binds to. It lives on the heap so copies
// of Model keep writing to the same place.
type fields struct {
	recipientID string
	displayName string
	token       string
}

// Model is the sign-in view.
type Model struct {
	form   *huh.Form
	values *fields
	err    string
	width  int
	height int
}

// New creates a sign-in view. Call Start before showing it.
func New(width, height int) Model {
	return Model{
		values: &fields{},
		width:  width,
		height: height,
	}
}

// Start resets the form, prefilled with last when it is not nil.
func (m *Model) Start(last *model.Identity) tea.Cmd {
	m.values = &fields{}
	if last != nil {
		m.values.recipientID = last.RecipientID
		m.values.displayName = last.DisplayName
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// SetError shows msg above the form.
func (m *Model) SetError(msg string) {
	m.err = msg
}

func (m Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Recipient ID").
				Description("Your portal user id").
				Placeholder("u-1024").
				Value(&m.values.recipientID).
				Validate(validateRequired("Recipient ID")),
			huh.NewInput().
				Title("Display name").
				Description("Shown to the portal when you connect").
				Value(&m.values.displayName),
			huh.NewInput().
				Title("Session token").
				Description("Copy the notehub_session cookie from the portal").
				EchoMode(huh.EchoModePassword).
				Value(&m.values.token).
				Validate(validateRequired("Session token")),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false)
}

// Update forwards messages to the form and reports completion.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		submitted := SubmittedMsg{
			Identity: model.Identity{
				RecipientID: strings.TrimSpace(m.values.recipientID),
				DisplayName: strings.TrimSpace(m.values.displayName),
			},
			Token: strings.TrimSpace(m.values.token),
		}
		if submitted.Identity.DisplayName == "" {
			submitted.Identity.DisplayName = submitted.Identity.RecipientID
		}
		m.err = ""
		return m, func() tea.Msg { return submitted }
	case huh.StateAborted:
		return m, m.Start(nil)
	}

	return m, cmd
}

// View renders the sign-in panel.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	parts := []string{titleStyle.Render("Sign in to notehub")}
	if m.err != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.err))
	}
	if m.form != nil {
		parts = append(parts, m.form.View())
	}

	return theme.PanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth())
	}
}

func (m Model) formWidth() int {
	w := m.width - 8
	if w < 40 {
		w = 40
	}
	if w > 80 {
		w = 80
	}
	return w
}

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}
