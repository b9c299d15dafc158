// Package ui provides the visual styling for the DigiBox terminal client.
// Two themes mirror the club site: "stereo" (deep, colorful, dimensional)
// and "flat" (thin, monochrome, airy).
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	// Stereo
	StereoBackground = lipgloss.Color("#0f1424")
	StereoForeground = lipgloss.Color("#eef1f8")
	StereoPrimary    = lipgloss.Color("#7c5cff") // violet
	StereoAccent     = lipgloss.Color("#22d3ee") // cyan
	StereoSecondary  = lipgloss.Color("#1c2340")
	StereoMuted      = lipgloss.Color("#8a93b2")
	StereoBorder     = lipgloss.Color("#3b4470")
	StereoCard       = lipgloss.Color("#161d36")

	// Flat
	FlatBackground = lipgloss.Color("#ffffff")
	FlatForeground = lipgloss.Color("#111111")
	FlatPrimary    = lipgloss.Color("#000000")
	FlatAccent     = lipgloss.Color("#6b7280")
	FlatSecondary  = lipgloss.Color("#f3f4f6")
	FlatMuted      = lipgloss.Color("#9ca3af")
	FlatBorder     = lipgloss.Color("#e5e7eb")
	FlatCard       = lipgloss.Color("#fafafa")

	// Semantic colors (same in both themes)
	Destructive = lipgloss.Color("#e53935")
	Success     = lipgloss.Color("#8BC34A")
	Warning     = lipgloss.Color("#FFC107")
	Info        = lipgloss.Color("#2196F3")
)

// Theme holds one color scheme.
type Theme struct {
	Name       string
	Background lipgloss.Color
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Secondary  lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	Card       lipgloss.Color
	IsDark     bool
}

// StereoTheme returns the primary theme.
func StereoTheme() Theme {
	return Theme{
		Name:       "stereo",
		Background: StereoBackground,
		Foreground: StereoForeground,
		Primary:    StereoPrimary,
		Accent:     StereoAccent,
		Secondary:  StereoSecondary,
		Muted:      StereoMuted,
		Border:     StereoBorder,
		Card:       StereoCard,
		IsDark:     true,
	}
}

// FlatTheme returns the minimal theme.
func FlatTheme() Theme {
	return Theme{
		Name:       "flat",
		Background: FlatBackground,
		Foreground: FlatForeground,
		Primary:    FlatPrimary,
		Accent:     FlatAccent,
		Secondary:  FlatSecondary,
		Muted:      FlatMuted,
		Border:     FlatBorder,
		Card:       FlatCard,
		IsDark:     false,
	}
}

// ThemeByName resolves "stereo" or "flat"; anything else is stereo.
func ThemeByName(name string) Theme {
	if name == "flat" {
		return FlatTheme()
	}
	return StereoTheme()
}

// Styles holds all the styled components
type Styles struct {
	Theme Theme

	// Layout
	App     lipgloss.Style
	Header  lipgloss.Style
	Footer  lipgloss.Style
	Content lipgloss.Style

	// Navigation
	NavItem   lipgloss.Style
	NavActive lipgloss.Style

	// Text
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Body     lipgloss.Style
	Muted    lipgloss.Style
	Bold     lipgloss.Style
	Faded    lipgloss.Style

	// Status
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	// Components
	Card        lipgloss.Style
	Selected    lipgloss.Style
	Key         lipgloss.Style
	KeyShake    lipgloss.Style
	Dot         lipgloss.Style
	DotFilled   lipgloss.Style
	Spinner     lipgloss.Style
	Divider     lipgloss.Style
	Badge       lipgloss.Style
	ProgressBar lipgloss.Style
}

// NewStyles creates a new Styles instance with the given theme
func NewStyles(theme Theme) Styles {
	border := lipgloss.RoundedBorder()
	titleWeight := true
	if !theme.IsDark {
		border = lipgloss.NormalBorder()
		titleWeight = false
	}

	return Styles{
		Theme: theme,

		App: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Header: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Padding(0, 2).
			Bold(true),

		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 2),

		Content: lipgloss.NewStyle().
			Padding(1, 2),

		NavItem: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 1),

		NavActive: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Underline(true).
			Padding(0, 1).
			Bold(titleWeight),

		Title: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(titleWeight).
			MarginBottom(1),

		Subtitle: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Italic(true),

		Body: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Bold: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Bold(true),

		Faded: lipgloss.NewStyle().
			Foreground(theme.Border).
			Faint(true),

		Success: lipgloss.NewStyle().
			Foreground(Success).
			Bold(true),

		Error: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),

		Warning: lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true),

		Info: lipgloss.NewStyle().
			Foreground(Info),

		Card: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Padding(0, 2).
			Border(border).
			BorderForeground(theme.Border),

		Selected: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true),

		Key: lipgloss.NewStyle().
			Foreground(theme.Foreground).
			Border(border).
			BorderForeground(theme.Border).
			Padding(0, 1),

		KeyShake: lipgloss.NewStyle().
			Foreground(Destructive).
			Border(border).
			BorderForeground(Destructive).
			Padding(0, 1),

		Dot: lipgloss.NewStyle().
			Foreground(theme.Border),

		DotFilled: lipgloss.NewStyle().
			Foreground(theme.Accent),

		Spinner: lipgloss.NewStyle().
			Foreground(theme.Accent),

		Divider: lipgloss.NewStyle().
			Foreground(theme.Border),

		Badge: lipgloss.NewStyle().
			Background(theme.Accent).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 1).
			Bold(true),

		ProgressBar: lipgloss.NewStyle().
			Foreground(theme.Accent),
	}
}

// Logo returns the DigiBox wordmark.
func Logo(s Styles) string {
	logo := `
 ___  _      _ ___
|   \(_)__ _(_) _ ) _____ __
| |) | / _` + "`" + ` | | _ \/ _ \ \ /
|___/|_\__, |_|___/\___/_\_\
       |___/                `
	return s.Title.Render(logo)
}

// RenderDivider returns a horizontal divider
func (s Styles) RenderDivider(width int) string {
	if width < 1 {
		width = 1
	}
	return s.Divider.Render(strings.Repeat("─", width))
}

// Bar renders a confidence bar of the given width for a 0-100 value.
func (s Styles) Bar(value, width int) string {
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}
	filled := value * width / 100
	return s.ProgressBar.Render(strings.Repeat("█", filled)) + s.Divider.Render(strings.Repeat("░", width-filled))
}
