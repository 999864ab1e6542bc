package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Color palette
var (
	Accent     = lipgloss.Color("#21B573")
	SlateDark  = lipgloss.Color("#1F2937")
	SlateLight = lipgloss.Color("#374151")
	DimGray    = lipgloss.Color("#6B7280")
	LightGray  = lipgloss.Color("#9CA3AF")
	White      = lipgloss.Color("#F9FAFB")
	Red        = lipgloss.Color("#EF4444")
	Amber      = lipgloss.Color("#F59E0B")
)

// Text styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(White).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(LightGray)

	DimStyle = lipgloss.NewStyle().
			Foreground(DimGray)

	AccentStyle = lipgloss.NewStyle().
			Foreground(Accent)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red)

	// Matched characters in filter results
	MatchStyle = lipgloss.NewStyle().
			Foreground(Accent).
			Underline(true)
)

// Badges shown next to content names
var (
	FreeBadge = lipgloss.NewStyle().Foreground(Accent).Render("free")
	ProBadge  = lipgloss.NewStyle().Foreground(Amber).Render("pro")
)

// Panel styles
var (
	BrowserStyle = lipgloss.NewStyle().
			Padding(1, 2)

	InspectorBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(DimGray)

	GroupHeaderStyle = lipgloss.NewStyle().
				Foreground(Accent).
				Bold(true).
				MarginTop(1)
)

// List item styles
var (
	SelectedItemStyle = lipgloss.NewStyle().
				Foreground(White).
				Background(SlateLight).
				Padding(0, 1)

	NormalItemStyle = lipgloss.NewStyle().
			Foreground(LightGray).
			Padding(0, 1)
)

// Help styles
var (
	HelpKeyStyle = lipgloss.NewStyle().
			Foreground(Accent)

	HelpDescStyle = lipgloss.NewStyle().
			Foreground(DimGray)
)

// Truncate shortens s to width cells, marking the cut with "..."
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if ansi.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return ansi.Truncate(s, width, "")
	}
	return ansi.Truncate(s, width, "...")
}
