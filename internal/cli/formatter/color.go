package formatter

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Gruvbox-inspired color palette.
var (
	ColorGreen  = lipgloss.Color("#8ec07c")
	ColorYellow = lipgloss.Color("#fabd2f")
	ColorRed    = lipgloss.Color("#fb4934")
	ColorBlue   = lipgloss.Color("#83a598")
	ColorPurple = lipgloss.Color("#d3869b")
	ColorDim    = lipgloss.Color("#928374")
	ColorFg     = lipgloss.Color("#ebdbb2")
	ColorHeader = lipgloss.Color("#fe8019")
)

var (
	StyleGreen      = lipgloss.NewStyle().Foreground(ColorGreen)
	StyleYellow     = lipgloss.NewStyle().Foreground(ColorYellow)
	StyleYellowBold = lipgloss.NewStyle().Foreground(ColorYellow).Bold(true)
	StyleRed        = lipgloss.NewStyle().Foreground(ColorRed)
	StyleBlue       = lipgloss.NewStyle().Foreground(ColorBlue)
	StylePurple     = lipgloss.NewStyle().Foreground(ColorPurple)
	StyleDim        = lipgloss.NewStyle().Foreground(ColorDim)
	StyleFg         = lipgloss.NewStyle().Foreground(ColorFg)
	StyleHeader     = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	StyleBold       = lipgloss.NewStyle().Foreground(ColorFg).Bold(true)
)

// VarianceStyle colors a variance: red when over budget, green when under.
func VarianceStyle(v float64) lipgloss.Style {
	switch {
	case v < 0:
		return StyleRed
	case v > 0:
		return StyleGreen
	default:
		return StyleDim
	}
}

// Header renders a title underlined to its display width. Identifiers are
// case sensitive, so the title is printed as given.
func Header(title string) string {
	return fmt.Sprintf("%s\n%s", StyleHeader.Render(title), Rule(lipgloss.Width(title)))
}

// Rule is a dim horizontal line of n cells.
func Rule(n int) string {
	if n <= 0 {
		return ""
	}
	return StyleDim.Render(strings.Repeat("─", n))
}

func Dim(text string) string {
	return StyleDim.Render(text)
}

func Bold(text string) string {
	return StyleBold.Render(text)
}

// Swatch renders a small block in a user-chosen hex color. Invalid or empty
// colors render as a dim dot.
func Swatch(hex string) string {
	if !strings.HasPrefix(hex, "#") || (len(hex) != 4 && len(hex) != 7) {
		return StyleDim.Render("·")
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Render("■")
}
