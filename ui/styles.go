package ui

import "github.com/charmbracelet/lipgloss"

// Colors.
var (
	gray    = lipgloss.AdaptiveColor{Light: "#909090", Dark: "#626262"}
	fuchsia = lipgloss.Color("#EE6FF8")
	yellow  = lipgloss.Color("#ECFD65")
	orange  = lipgloss.Color("#FF8800")
	blue    = lipgloss.Color("#00AAFF")
	red     = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
	green   = lipgloss.Color("#04B575")

	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
)

// Styles.
var (
	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ECFD65")).
			Background(fuchsia).
			Bold(true)

	segmentStyle = lipgloss.NewStyle().Foreground(gray).Italic(true)
)

func logoView() string {
	return logoStyle.Render(" narrate ")
}
