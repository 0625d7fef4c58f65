package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/notehub/internal/theme"
)

// Layout manages the terminal layout dimensions: a header, a toast line,
// the content area and a status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	ToastHeight     int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// The header, toast line and status bar are one line each.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		ToastHeight:     1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.ToastHeight - l.StatusBarHeight
	if h < 0 {
		return 0
	}
	return h
}

// fill pads rendered with style's background up to the full width.
func (l Layout) fill(style lipgloss.Style, parts ...string) string {
	used := 0
	for _, p := range parts {
		used += lipgloss.Width(p)
	}
	gap := l.Width - used
	if gap < 0 {
		gap = 0
	}

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")

	if len(parts) < 2 {
		return lipgloss.JoinHorizontal(lipgloss.Top, append(parts, filler)...)
	}
	last := len(parts) - 1
	row := append(append([]string{}, parts[:last]...), filler, parts[last])
	return lipgloss.JoinHorizontal(lipgloss.Top, row...)
}

// RenderHeader renders the top bar: title on the left, status on the right.
// status is rendered by the caller so it can carry its own color.
func (l Layout) RenderHeader(title string, status string) string {
	return l.fill(theme.HeaderStyle, theme.HeaderStyle.Render(title), status)
}

// RenderToast renders the toast line. An empty toast keeps the line blank
// so the content does not jump.
func (l Layout) RenderToast(toast string) string {
	if toast == "" {
		return lipgloss.NewStyle().Width(l.Width).Render("")
	}
	return toast
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	return l.fill(theme.StatusBarStyle, theme.StatusBarStyle.Render(hints))
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, toast line, content area and status bar.
func (l Layout) RenderWithFrame(
	header string,
	toast string,
	content string,
	statusBar string,
) string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		l.RenderToast(toast),
		content,
		statusBar,
	)
}
