package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ---------------------------------------------------------------------------
// Color Palette
// ---------------------------------------------------------------------------

// ColorPrimary is the accent used for titles and the spinner.
var ColorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7B78FF"}

// ColorSuccess marks passed phases and tests.
var ColorSuccess = lipgloss.AdaptiveColor{Light: "#16A34A", Dark: "#4ADE80"}

// ColorWarning marks advisories.
var ColorWarning = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// ColorError marks failures.
var ColorError = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#F87171"}

// ColorMuted is used for pending phases and secondary text.
var ColorMuted = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}

// ColorBorder is the panel border color.
var ColorBorder = lipgloss.AdaptiveColor{Light: "#E5E7EB", Dark: "#374151"}

// ---------------------------------------------------------------------------
// Theme
// ---------------------------------------------------------------------------

// Theme holds the styles of the progress view, the summary and the code
// preview.
type Theme struct {
	Title lipgloss.Style

	PhasePending lipgloss.Style
	PhaseRunning lipgloss.Style
	PhaseDone    lipgloss.Style
	PhaseDetail  lipgloss.Style

	Attempt  lipgloss.Style
	Advisory lipgloss.Style

	Success   lipgloss.Style
	ErrorText lipgloss.Style
	Label     lipgloss.Style
	Value     lipgloss.Style

	CodeBox lipgloss.Style
	Help    lipgloss.Style
}

// DefaultTheme returns the adaptive-color theme.
func DefaultTheme() Theme {
	return Theme{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1),

		PhasePending: lipgloss.NewStyle().Foreground(ColorMuted),
		PhaseRunning: lipgloss.NewStyle().Bold(true),
		PhaseDone:    lipgloss.NewStyle().Foreground(ColorSuccess),
		PhaseDetail:  lipgloss.NewStyle().Foreground(ColorMuted).Italic(true),

		Attempt:  lipgloss.NewStyle().Foreground(ColorPrimary),
		Advisory: lipgloss.NewStyle().Foreground(ColorWarning),

		Success:   lipgloss.NewStyle().Bold(true).Foreground(ColorSuccess),
		ErrorText: lipgloss.NewStyle().Bold(true).Foreground(ColorError),
		Label:     lipgloss.NewStyle().Foreground(ColorMuted),
		Value:     lipgloss.NewStyle().Bold(true),

		CodeBox: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1),

		Help: lipgloss.NewStyle().Foreground(ColorMuted),
	}
}

// Status icons rendered in front of each phase.
const (
	IconPending = "○"
	IconDone    = "✓"
	IconFailed  = "✗"
	IconWarning = "!"
)

// indent prefixes every line of s with n spaces.
func indent(s string, n int) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = pad + l
		}
	}
	return strings.Join(lines, "\n")
}
