// Package styles holds the colours and lipgloss styles of the TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme is the palette. Every colour adapts to light and dark terminals.
type Theme struct {
	Primary    lipgloss.AdaptiveColor
	Secondary  lipgloss.AdaptiveColor
	Foreground lipgloss.AdaptiveColor
	Muted      lipgloss.AdaptiveColor
	Success    lipgloss.AdaptiveColor
	Warning    lipgloss.AdaptiveColor
	Error      lipgloss.AdaptiveColor
	Border     lipgloss.AdaptiveColor
	Bar        lipgloss.AdaptiveColor
}

func adaptive(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

// DefaultTheme is pharmacy green with a blue accent for questions.
func DefaultTheme() *Theme {
	return &Theme{
		Primary:    adaptive("#1F7A50", "#2E9E6B"),
		Secondary:  adaptive("#1F6FB2", "#4AA3DF"),
		Foreground: adaptive("#1F2328", "#E6EDF3"),
		Muted:      adaptive("#656D76", "#7D8590"),
		Success:    adaptive("#2F7D32", "#A6E3A1"),
		Warning:    adaptive("#9A6700", "#F9E2AF"),
		Error:      adaptive("#CF222E", "#F38BA8"),
		Border:     adaptive("#D0D7DE", "#3D444D"),
		Bar:        adaptive("#F6F8FA", "#161B22"),
	}
}

// Styles are the rendered styles derived from a Theme.
type Styles struct {
	theme *Theme

	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Normal   lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style

	// Transcript turns in the chat view.
	Question lipgloss.Style
	Answer   lipgloss.Style
	Citation lipgloss.Style

	Error   lipgloss.Style
	Warning lipgloss.Style

	InputField lipgloss.Style
	StatusBar  lipgloss.Style
	Border     lipgloss.Style
}

// NewStyles derives styles from theme, or from DefaultTheme when nil.
func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}

	fg := func(c lipgloss.AdaptiveColor) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }
	rounded := lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(theme.Border)

	return &Styles{
		theme:      theme,
		Title:      fg(theme.Primary).Bold(true),
		Subtitle:   fg(theme.Secondary).Bold(true),
		Normal:     fg(theme.Foreground),
		Muted:      fg(theme.Muted),
		Selected:   fg(theme.Foreground).Background(theme.Primary).Bold(true),
		Question:   fg(theme.Secondary).Bold(true),
		Answer:     fg(theme.Foreground).PaddingLeft(2),
		Citation:   fg(theme.Success).PaddingLeft(4),
		Error:      fg(theme.Error),
		Warning:    fg(theme.Warning),
		InputField: rounded.Padding(0, 1),
		StatusBar:  fg(theme.Muted).Background(theme.Bar).Padding(0, 1),
		Border:     rounded,
	}
}

// DefaultStyles returns styles for the default theme.
func DefaultStyles() *Styles {
	return NewStyles(DefaultTheme())
}

// Theme returns the palette the styles were built from.
func (s *Styles) Theme() *Theme {
	return s.theme
}
