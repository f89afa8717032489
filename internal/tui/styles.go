package tui

import (
	"github.com/charmbracelet/lipgloss"
)

type AppTheme struct {
	Primary   string
	Secondary string
	Accent    string
	Text      string
	Subtle    string
	Error     string
	Warning   string
	Success   string
}

func PurpleTheme() AppTheme {
	return AppTheme{
		Primary:   "#ccbeff",
		Secondary: "#4a3e76",
		Accent:    "#e7deff",
		Text:      "#e6e1e9",
		Subtle:    "#cac4cf",
		Error:     "#ffb4ab",
		Warning:   "#eeb8ca",
		Success:   "#ccbeff",
	}
}

func NewStyles(theme AppTheme) Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Primary)).
			Bold(true).
			MarginBottom(1),

		Normal: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Text)),

		Subtle: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Subtle)),

		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Error)),

		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Warning)),

		Badge: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#33275e")).
			Background(lipgloss.Color(theme.Primary)).
			Padding(0, 1),

		Key: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Accent)).
			Bold(true),

		SpinnerStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Primary)),

		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color(theme.Success)).
			Bold(true),

		LogBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(theme.Secondary)).
			Padding(0, 1),
	}
}

type Styles struct {
	Title        lipgloss.Style
	Normal       lipgloss.Style
	Subtle       lipgloss.Style
	Warning      lipgloss.Style
	Error        lipgloss.Style
	Badge        lipgloss.Style
	Key          lipgloss.Style
	SpinnerStyle lipgloss.Style
	Success      lipgloss.Style
	LogBox       lipgloss.Style
}
