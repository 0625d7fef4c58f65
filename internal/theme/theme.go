package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

var (
	// HeaderStyle is used for the top bar with the unread count.
	HeaderStyle lipgloss.Style
	// StatusBarStyle is used for the bottom key hint bar.
	StatusBarStyle lipgloss.Style
	// PanelStyle wraps overlays such as help, login and the command palette.
	PanelStyle lipgloss.Style
	// ListItemStyle is the base style for items in a list.
	ListItemStyle lipgloss.Style
	// SelectedItemStyle highlights the currently focused list item.
	SelectedItemStyle lipgloss.Style
	// DimmedStyle renders read notifications.
	DimmedStyle lipgloss.Style
	// UnreadMarkerStyle renders the dot in front of unread notifications.
	UnreadMarkerStyle lipgloss.Style
	// AlertStyle renders the toast for a newly pushed notification.
	AlertStyle lipgloss.Style
	// NoticeStyle renders transient failure notices.
	NoticeStyle lipgloss.Style
	// HelpStyle is used for keyboard shortcut hints and help text.
	HelpStyle lipgloss.Style
	// ErrorStyle is used for inline form errors.
	ErrorStyle lipgloss.Style
)

func init() {
	Apply("default")
}

// Apply switches every style to the named theme. "plain" drops all colors
// for terminals that render them badly; anything else is the default.
func Apply(name string) {
	if name == "plain" {
		plain := lipgloss.NewStyle()
		HeaderStyle = plain.Bold(true).Padding(0, 1)
		StatusBarStyle = plain.Padding(0, 1)
		PanelStyle = plain.Padding(1, 2).Border(lipgloss.NormalBorder())
		ListItemStyle = plain.PaddingLeft(2)
		SelectedItemStyle = plain.PaddingLeft(1).Bold(true).
			Border(lipgloss.NormalBorder(), false, false, false, true)
		DimmedStyle = plain.Faint(true)
		UnreadMarkerStyle = plain.Bold(true)
		AlertStyle = plain.Bold(true).Padding(0, 1)
		NoticeStyle = plain.Italic(true).Padding(0, 1)
		HelpStyle = plain.Italic(true)
		ErrorStyle = plain.Bold(true)
		return
	}

	HeaderStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorWhite).
		Background(ColorBlue).
		Padding(0, 1)
	StatusBarStyle = lipgloss.NewStyle().
		Foreground(ColorWhite).
		Background(ColorSubtle).
		Padding(0, 1)
	PanelStyle = lipgloss.NewStyle().
		Padding(1, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)
	ListItemStyle = lipgloss.NewStyle().
		PaddingLeft(2)
	SelectedItemStyle = lipgloss.NewStyle().
		PaddingLeft(1).
		Bold(true).
		Foreground(ColorBlue).
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(ColorBlue)
	DimmedStyle = lipgloss.NewStyle().
		Foreground(ColorGray)
	UnreadMarkerStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorOrange)
	AlertStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorWhite).
		Background(ColorMagenta).
		Padding(0, 1)
	NoticeStyle = lipgloss.NewStyle().
		Foreground(ColorWhite).
		Background(ColorRed).
		Padding(0, 1)
	HelpStyle = lipgloss.NewStyle().
		Foreground(ColorGray).
		Italic(true)
	ErrorStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorRed)
}

// KindStyle returns a color-coded style for a notification kind.
func KindStyle(kind string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch kind {
	case "new_comment", "comment_reply":
		return base.Foreground(ColorBlue)
	case "rating_received", "reaction_received":
		return base.Foreground(ColorGreen)
	case "report_filed":
		return base.Foreground(ColorOrange)
	case "report_resolved":
		return base.Foreground(ColorMagenta)
	default:
		return base.Foreground(ColorGray)
	}
}

// ConnectionStyle returns a color-coded style for a live channel state.
func ConnectionStyle(state string) lipgloss.Style {
	base := HeaderStyle

	switch state {
	case "live":
		return base.Foreground(ColorGreen)
	case "connecting", "reconnecting":
		return base.Foreground(ColorYellow)
	case "offline":
		return base.Foreground(ColorRed)
	default:
		return base
	}
}
