package tts

import "fmt"

// Mode is the playback state of a narration session.
type Mode int

const (
	// ModeIdle is the initial mode, and the mode after a play request
	// that produced nothing to narrate.
	ModeIdle Mode = iota
	// ModeQueued means segments are ready and the first request is about
	// to be issued.
	ModeQueued
	// ModePlaying means a request is outstanding or about to be issued.
	ModePlaying
	// ModePaused means the engine paused an utterance mid-way.
	ModePaused
	// ModeStopped is entered by Stop from any mode.
	ModeStopped
	// ModeDone means every segment was narrated or skipped.
	ModeDone
	// ModeErroring is held only while a segment failure is handled.
	ModeErroring
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeQueued:
		return "queued"
	case ModePlaying:
		return "playing"
	case ModePaused:
		return "paused"
	case ModeStopped:
		return "stopped"
	case ModeDone:
		return "done"
	case ModeErroring:
		return "erroring"
	default:
		return "unknown"
	}
}

// IsActive returns true while a session is playing or paused.
func (m Mode) IsActive() bool {
	return m == ModeQueued || m == ModePlaying || m == ModePaused || m == ModeErroring
}

// IsTerminal returns true once a session has ended.
func (m Mode) IsTerminal() bool {
	return m == ModeStopped || m == ModeDone
}

// Snapshot is an immutable view of the controller, published after every
// transition.
type Snapshot struct {
	Mode     Mode
	Status   string  // human readable state label
	Narrated int     // segments finished or skipped
	Total    int     // segments in the session
	Segment  string  // text of the segment being narrated, if any
	Voice    string  // selected voice ID
	Rate     float64 // speech rate multiplier
	Err      error   // last segment failure in this session
}

// Progress returns the narrated fraction in [0, 1].
func (s Snapshot) Progress() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Narrated) / float64(s.Total)
}

// String renders the snapshot as a one-line summary.
func (s Snapshot) String() string {
	if s.Total == 0 {
		return s.Status
	}
	return fmt.Sprintf("%s (%d/%d)", s.Status, s.Narrated, s.Total)
}

// status labels
const (
	statusIdle    = "Idle"
	statusEmpty   = "Nothing to narrate"
	statusPaused  = "Paused"
	statusStopped = "Stopped"
	statusDone    = "Done"
)

func playingStatus(cursor, total int) string {
	return fmt.Sprintf("Playing segment %d of %d", min(cursor+1, total), total)
}

func failedStatus(index int) string {
	return fmt.Sprintf("Segment %d failed, skipping", index+1)
}
