package tts

import (
	"errors"
	"fmt"

	"github.com/dgnsrekt/narrate/tts/chunk"
)

// Errors reported by the narration controller.
var (
	// ErrInvalidArgument is returned for caller errors such as a
	// non-positive chunk size or speech rate. It is the same value the
	// chunker reports, so errors.Is works across both packages.
	ErrInvalidArgument = chunk.ErrInvalidArgument

	// ErrEngineSegmentFailure wraps an error the engine reported for a
	// single segment. Playback skips the segment and continues.
	ErrEngineSegmentFailure = errors.New("engine failed to narrate segment")

	// ErrEngineStall marks an engine that reports neither speaking nor
	// paused while playback should be active. The controller recovers by
	// re-issuing the current segment.
	ErrEngineStall = errors.New("engine stalled")

	// ErrEmptyInput means the text produced no segments. Play does not
	// return it; it shows up in the snapshot and status instead.
	ErrEmptyInput = errors.New("nothing to narrate")

	// ErrEngineUnavailable is returned by engine constructors when the
	// backing binary, model or device cannot be used.
	ErrEngineUnavailable = errors.New("speech engine not available")

	// ErrClosed is returned by operations on a closed controller.
	ErrClosed = errors.New("controller closed")
)

// SegmentError describes one failed segment.
type SegmentError struct {
	Index int   // zero-based segment index
	Err   error // error reported by the engine
}

// Error implements the error interface.
func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %d: %v", e.Index+1, e.Err)
}

// Unwrap exposes both the segment failure sentinel and the engine error.
func (e *SegmentError) Unwrap() []error {
	return []error{ErrEngineSegmentFailure, e.Err}
}

// IsRecoverable reports whether playback can continue after err. Every
// engine-side failure is recoverable; only caller errors and a closed
// controller are not.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	return !errors.Is(err, ErrInvalidArgument) && !errors.Is(err, ErrClosed)
}
