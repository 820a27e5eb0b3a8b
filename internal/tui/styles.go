package tui

import "github.com/charmbracelet/lipgloss"

// Palette shared with the web dashboard's dark theme.
const (
	ColorBg     = "#0d1117"
	ColorCard   = "#161b22"
	ColorBorder = "#30363d"
	ColorBlue   = "#58a6ff"
	ColorGreen  = "#3fb950"
	ColorRed    = "#f85149"
	ColorYellow = "#d29922"
	ColorGray   = "#8b949e"
	ColorText   = "#c9d1d9"
	ColorBright = "#f0f6fc"
)

// Styles bundles the lipgloss styles used by the results browser.
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Help     lipgloss.Style

	BadgeGood lipgloss.Style
	BadgeWarn lipgloss.Style
	BadgeBad  lipgloss.Style

	Tab       lipgloss.Style
	ActiveTab lipgloss.Style
}

// badgeStyle is inverted bold text on the given background.
func badgeStyle(bg string) lipgloss.Style {
	return lipgloss.NewStyle().
		Background(lipgloss.Color(bg)).
		Foreground(lipgloss.Color(ColorBg)).
		Padding(0, 1).
		Bold(true)
}

func fgStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

// DefaultStyles creates the default style set.
func DefaultStyles() *Styles {
	return &Styles{
		Title:    fgStyle(ColorBright).Bold(true),
		Subtitle: fgStyle(ColorText),
		Help:     fgStyle(ColorGray).Italic(true),

		BadgeGood: badgeStyle(ColorGreen),
		BadgeWarn: badgeStyle(ColorYellow),
		BadgeBad:  badgeStyle(ColorRed),

		Tab: fgStyle(ColorGray).Padding(0, 2),

		ActiveTab: fgStyle(ColorBlue).
			Bold(true).
			Padding(0, 2).
			BorderStyle(lipgloss.Border{Bottom: "─"}).
			BorderBottom(true).
			BorderForeground(lipgloss.Color(ColorBlue)),
	}
}

// CouplingColor picks the badge for a module's total degree: green
// within the limit, yellow above it, red past double the limit.
func CouplingColor(total, limit int) lipgloss.Style {
	switch {
	case total <= limit:
		return badgeStyle(ColorGreen)
	case total <= limit*2:
		return badgeStyle(ColorYellow)
	default:
		return badgeStyle(ColorRed)
	}
}
