package tts

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dgnsrekt/narrate/tts/voice"
)

// Messages for Bubble Tea communication between the controller and the UI.

// StateChangedMsg carries a snapshot published by the controller.
type StateChangedMsg struct {
	Snapshot
}

// ClosedMsg indicates the controller's update channel was closed.
type ClosedMsg struct{}

// ErrorMsg indicates an operation was rejected.
type ErrorMsg struct {
	Err         error
	Recoverable bool
	Action      string // what was being attempted (play, set_rate, ...)
}

// Error implements the error interface.
func (m ErrorMsg) Error() string {
	return m.Action + ": " + m.Err.Error()
}

// VoicesMsg carries the engine's voice registry.
type VoicesMsg struct {
	Voices   []voice.Voice
	Selected string
}

// Commands for async controller operations. Controller methods wait on
// the controller's loop, so they run as commands rather than inside
// Update.

// WaitForUpdateCmd waits for the next snapshot on updates.
func WaitForUpdateCmd(updates <-chan Snapshot) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-updates
		if !ok {
			return ClosedMsg{}
		}
		return StateChangedMsg{Snapshot: s}
	}
}

// PlayCmd starts narrating text from the beginning.
func PlayCmd(c *Controller, text string, maxChars int) tea.Cmd {
	return func() tea.Msg {
		if err := c.Play(text, maxChars); err != nil {
			return ErrorMsg{Err: err, Recoverable: IsRecoverable(err), Action: "play"}
		}
		return nil
	}
}

// TogglePauseCmd pauses a playing session or resumes a paused one.
func TogglePauseCmd(c *Controller) tea.Cmd {
	return func() tea.Msg {
		switch c.Mode() {
		case ModePaused:
			c.Resume()
		case ModePlaying:
			c.Pause()
		}
		return nil
	}
}

// ResumeCmd resumes playback, re-issuing the current segment if the
// engine stalled.
func ResumeCmd(c *Controller) tea.Cmd {
	return func() tea.Msg {
		c.Resume()
		return nil
	}
}

// StopCmd stops playback.
func StopCmd(c *Controller) tea.Cmd {
	return func() tea.Msg {
		c.Stop()
		return nil
	}
}

// SetRateCmd changes the speech rate.
func SetRateCmd(c *Controller, rate float64) tea.Cmd {
	return func() tea.Msg {
		if err := c.SetRate(rate); err != nil {
			return ErrorMsg{Err: err, Recoverable: true, Action: "set_rate"}
		}
		return nil
	}
}

// SetVoiceCmd selects a voice by ID.
func SetVoiceCmd(c *Controller, id string) tea.Cmd {
	return func() tea.Msg {
		c.SetVoice(id)
		return nil
	}
}

// LoadVoicesCmd reads the controller's view of the voice registry.
func LoadVoicesCmd(c *Controller) tea.Cmd {
	return func() tea.Msg {
		return VoicesMsg{Voices: c.Voices(), Selected: c.Voice()}
	}
}
