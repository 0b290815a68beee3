package ui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/dgnsrekt/narrate/tts"
)

const progressBarWidth = 16

// modeIndicator returns the icon and color shown for a playback mode.
func modeIndicator(mode tts.Mode) (string, lipgloss.TerminalColor) {
	switch mode {
	case tts.ModePlaying:
		return "▶", green
	case tts.ModePaused:
		return "⏸", yellow
	case tts.ModeQueued:
		return "⟳", blue
	case tts.ModeErroring:
		return "✗", red
	case tts.ModeStopped:
		return "◼", orange
	case tts.ModeDone:
		return "✓", gray
	default:
		return "■", gray
	}
}

// compactStatus renders the snapshot for the status bar, e.g.
// "▶ Playing segment 2 of 5 · 1.25x".
func compactStatus(s tts.Snapshot) string {
	icon, color := modeIndicator(s.Mode)
	status := lipgloss.NewStyle().Foreground(color).Render(icon) + " " + s.Status

	if s.Rate > 0 && s.Rate != tts.DefaultRate {
		status += " · " + formatRate(s.Rate)
	}
	if s.Voice != "" {
		status += " · " + s.Voice
	}
	return status
}

// formatRate renders a rate multiplier, e.g. "1.25x".
func formatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', -1, 64) + "x"
}

func newProgressBar() progress.Model {
	return progress.New(
		progress.WithSolidFill(string(green)),
		progress.WithWidth(progressBarWidth),
		progress.WithoutPercentage(),
	)
}

// segmentView renders the segment being narrated on a single line.
func segmentView(s tts.Snapshot, width int) string {
	if width <= 0 {
		return ""
	}
	if s.Segment == "" || !s.Mode.IsActive() {
		return strings.Repeat(" ", width)
	}

	line := "› " + strings.Join(strings.Fields(s.Segment), " ")
	line = truncate.StringWithTail(line, uint(max(0, width-1)), ellipsis) //nolint:gosec
	return segmentStyle.Render(line)
}
