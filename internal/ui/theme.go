package ui

import "github.com/charmbracelet/lipgloss"

var (
	// Primary colors
	AccentRed  = lipgloss.Color("#ef233c")
	Background = lipgloss.Color("#2b2d42")
	Foreground = lipgloss.Color("#edf2f4")
	Muted      = lipgloss.Color("#8d99ae")

	// Semantic colors
	ColorSuccess = lipgloss.Color("#2ecc71")
	ColorWarning = lipgloss.Color("#f39c12")
)

// Styles for TUI components
var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Foreground).
			Background(AccentRed).
			Padding(0, 1).
			Width(80)

	FooterStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Background(Background).
			Padding(0, 1).
			Width(80)

	ContentStyle = lipgloss.NewStyle().
			Foreground(Foreground)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	HighlightStyle = lipgloss.NewStyle().
			Foreground(Background).
			Background(AccentRed).
			Bold(true)

	AcceptedStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Bold(true)

	PendingStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)
)

// FormatKeybinding formats a keybinding for display in footer
func FormatKeybinding(key, description string) string {
	keyStyle := lipgloss.NewStyle().
		Foreground(AccentRed).
		Bold(true)

	descStyle := lipgloss.NewStyle().
		Foreground(Muted)

	return keyStyle.Render(key) + " " + descStyle.Render(description)
}

// FormatFooter formats footer with keybindings
func FormatFooter(keybindings ...string) string {
	footer := ""
	for i, kb := range keybindings {
		if i > 0 {
			footer += "  "
		}
		footer += kb
	}
	return FooterStyle.Render(footer)
}
