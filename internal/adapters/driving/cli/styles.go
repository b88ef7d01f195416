package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/docreview/internal/core/domain"
)

// Theme defines the colour palette for command output.
type Theme struct {
	// Primary is the main accent colour.
	Primary lipgloss.Color

	// Muted is for less important text.
	Muted lipgloss.Color

	// Success indicates a passing review.
	Success lipgloss.Color

	// Warning indicates caution.
	Warning lipgloss.Color

	// Error indicates problems.
	Error lipgloss.Color

	// Severity colours, lowest to highest.
	Low      lipgloss.Color
	Medium   lipgloss.Color
	High     lipgloss.Color
	Critical lipgloss.Color
}

// DefaultTheme returns the default colour theme.
func DefaultTheme() *Theme {
	return &Theme{
		Primary:  lipgloss.Color("#7C3AED"), // Purple
		Muted:    lipgloss.Color("#6C7086"), // Medium gray
		Success:  lipgloss.Color("#A6E3A1"), // Green
		Warning:  lipgloss.Color("#F9E2AF"), // Yellow
		Error:    lipgloss.Color("#F38BA8"), // Red
		Low:      lipgloss.Color("#89B4FA"), // Blue
		Medium:   lipgloss.Color("#F9E2AF"), // Yellow
		High:     lipgloss.Color("#FAB387"), // Peach
		Critical: lipgloss.Color("#F38BA8"), // Red
	}
}

// Styles contains pre-configured lipgloss styles bound to one output.
type Styles struct {
	Title   lipgloss.Style
	Heading lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style

	severity map[domain.Severity]lipgloss.Style
}

// NewStyles creates styles for w. Colours are dropped automatically when w
// is not a terminal.
func NewStyles(w io.Writer, theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}
	r := lipgloss.NewRenderer(w)

	return &Styles{
		Title: r.NewStyle().
			Bold(true).
			Foreground(theme.Primary),

		Heading: r.NewStyle().
			Bold(true),

		Muted: r.NewStyle().
			Foreground(theme.Muted),

		Success: r.NewStyle().
			Bold(true).
			Foreground(theme.Success),

		Warning: r.NewStyle().
			Foreground(theme.Warning),

		Error: r.NewStyle().
			Bold(true).
			Foreground(theme.Error),

		Box: r.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Muted).
			Padding(0, 1),

		severity: map[domain.Severity]lipgloss.Style{
			domain.SeverityLow:      r.NewStyle().Foreground(theme.Low),
			domain.SeverityMedium:   r.NewStyle().Foreground(theme.Medium),
			domain.SeverityHigh:     r.NewStyle().Bold(true).Foreground(theme.High),
			domain.SeverityCritical: r.NewStyle().Bold(true).Foreground(theme.Critical),
		},
	}
}

// Severity returns the style for an issue severity.
func (s *Styles) Severity(sev domain.Severity) lipgloss.Style {
	if st, ok := s.severity[sev]; ok {
		return st
	}
	return s.Muted
}
