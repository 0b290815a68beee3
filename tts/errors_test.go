package tts

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dgnsrekt/narrate/tts/chunk"
)

func TestInvalidArgumentSharedWithChunker(t *testing.T) {
	_, err := chunk.Split("text", 0)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Expected chunker error to match ErrInvalidArgument, got %v", err)
	}
}

func TestSegmentError(t *testing.T) {
	engineErr := errors.New("synthesis failed")
	err := fmt.Errorf("narrate: %w", &SegmentError{Index: 2, Err: engineErr})

	if !errors.Is(err, ErrEngineSegmentFailure) {
		t.Error("Expected segment error to match ErrEngineSegmentFailure")
	}
	if !errors.Is(err, engineErr) {
		t.Error("Expected segment error to wrap the engine error")
	}

	var se *SegmentError
	if !errors.As(err, &se) || se.Index != 2 {
		t.Fatalf("Expected SegmentError with index 2, got %v", se)
	}
	if got, want := se.Error(), "segment 3: synthesis failed"; got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"segment failure", &SegmentError{Err: errors.New("boom")}, true},
		{"stall", ErrEngineStall, true},
		{"invalid argument", fmt.Errorf("rate: %w", ErrInvalidArgument), false},
		{"closed", ErrClosed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecoverable(tt.err); got != tt.want {
				t.Errorf("IsRecoverable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
