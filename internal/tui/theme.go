package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/tturner/madscope/internal/mad/tree"
)

// Theme defines the color palette for the browser.
// Tokyo Night tones.
type Theme struct {
	BgDark   lipgloss.Color
	BgAccent lipgloss.Color

	TextPrimary lipgloss.Color
	TextDim     lipgloss.Color
	TextMuted   lipgloss.Color

	Border        lipgloss.Color
	BorderFocused lipgloss.Color

	Accent  lipgloss.Color // blue
	Success lipgloss.Color // green
	Warning lipgloss.Color // amber
	Error   lipgloss.Color // red/pink
	Info    lipgloss.Color // cyan
	Purple  lipgloss.Color
}

// DefaultTheme is the dark theme.
var DefaultTheme = Theme{
	BgDark:   lipgloss.Color("#1a1b26"),
	BgAccent: lipgloss.Color("#414868"),

	TextPrimary: lipgloss.Color("#c0caf5"),
	TextDim:     lipgloss.Color("#565f89"),
	TextMuted:   lipgloss.Color("#414868"),

	Border:        lipgloss.Color("#414868"),
	BorderFocused: lipgloss.Color("#7aa2f7"),

	Accent:  lipgloss.Color("#7aa2f7"),
	Success: lipgloss.Color("#9ece6a"),
	Warning: lipgloss.Color("#e0af68"),
	Error:   lipgloss.Color("#f7768e"),
	Info:    lipgloss.Color("#7dcfff"),
	Purple:  lipgloss.Color("#bb9af7"),
}

// Styles provides pre-configured lipgloss styles using the theme.
type Styles struct {
	Base  lipgloss.Style
	Dim   lipgloss.Style
	Bold  lipgloss.Style
	Title lipgloss.Style

	// Field tree
	Group lipgloss.Style
	Field lipgloss.Style
	Value lipgloss.Style

	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style

	Selected   lipgloss.Style
	KeyBinding lipgloss.Style
	KeyHint    lipgloss.Style

	Box        lipgloss.Style
	BoxFocused lipgloss.Style

	Footer lipgloss.Style
}

// NewStyles creates a new Styles instance from a Theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Base: lipgloss.NewStyle().Foreground(t.TextPrimary),
		Dim:  lipgloss.NewStyle().Foreground(t.TextDim),
		Bold: lipgloss.NewStyle().Foreground(t.TextPrimary).Bold(true),
		Title: lipgloss.NewStyle().
			Foreground(t.Accent).
			Bold(true).
			Padding(0, 1),

		Group: lipgloss.NewStyle().Foreground(t.Purple).Bold(true),
		Field: lipgloss.NewStyle().Foreground(t.Info),
		Value: lipgloss.NewStyle().Foreground(t.TextPrimary),

		Success: lipgloss.NewStyle().Foreground(t.Success),
		Warning: lipgloss.NewStyle().Foreground(t.Warning),
		Error:   lipgloss.NewStyle().Foreground(t.Error).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(t.Info),

		Selected: lipgloss.NewStyle().
			Foreground(t.BgDark).
			Background(t.Accent),
		KeyBinding: lipgloss.NewStyle().
			Foreground(t.Accent).
			Bold(true),
		KeyHint: lipgloss.NewStyle().
			Foreground(t.TextDim),

		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1),
		BoxFocused: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.BorderFocused).
			Padding(0, 1),

		Footer: lipgloss.NewStyle().
			Foreground(t.TextDim),
	}
}

// DefaultStyles returns styles using the default theme.
var DefaultStyles = NewStyles(DefaultTheme)

// Severity returns the style for an annotation severity.
func (s Styles) Severity(sev tree.Severity) lipgloss.Style {
	switch sev {
	case tree.SeverityError:
		return s.Error
	case tree.SeverityWarn:
		return s.Warning
	}
	return s.Info
}

// StatusIcon marks a datagram by its worst annotation. worst is -1 for a
// clean datagram.
func StatusIcon(worst tree.Severity, s Styles) string {
	if worst < 0 {
		return s.Success.Render("●")
	}
	return s.Severity(worst).Render("●")
}
