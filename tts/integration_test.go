package tts_test

import (
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/narrate/tts"
	"github.com/dgnsrekt/narrate/tts/engines/mock"
)

// waitFor reads snapshots until one satisfies done or the timeout hits.
func waitFor(t *testing.T, c *tts.Controller, timeout time.Duration, done func(tts.Snapshot) bool) tts.Snapshot {
	t.Helper()
	deadline := time.After(timeout)
	for {
		if s := c.Snapshot(); done(s) {
			return s
		}
		select {
		case s, ok := <-c.Updates():
			if !ok {
				t.Fatal("Updates closed before condition was met")
			}
			if done(s) {
				return s
			}
		case <-deadline:
			t.Fatalf("Timed out waiting, last snapshot %+v", c.Snapshot())
		}
	}
}

// TestSimulatedNarrationOnEventLoop drives a full session through the real
// event loop and a simulated engine.
func TestSimulatedNarrationOnEventLoop(t *testing.T) {
	engine := mock.NewSimulated(tts.MockConfig{WordsPerMinute: 500})
	defer engine.Close()

	c := tts.NewController(engine, tts.WithLogger(log.New(io.Discard)))
	defer c.Close()

	if c.Voice() != "mock-en-us" {
		t.Errorf("Expected default voice mock-en-us, got %q", c.Voice())
	}

	if err := c.Play("one two six", 4); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	s := waitFor(t, c, 5*time.Second, func(s tts.Snapshot) bool {
		return s.Mode == tts.ModeDone
	})
	if s.Narrated != 3 || s.Total != 3 {
		t.Errorf("Expected progress (3,3), got (%d,%d)", s.Narrated, s.Total)
	}
	if got := engine.Spoken(); len(got) != 3 || got[2] != "six" {
		t.Errorf("Unexpected utterances %v", got)
	}
	if engine.Overlaps() != 0 {
		t.Errorf("Expected no overlapping requests, got %d", engine.Overlaps())
	}
}

// TestSimulatedFailuresAreSkipped checks that a failing engine still
// completes the session.
func TestSimulatedFailuresAreSkipped(t *testing.T) {
	engine := mock.NewSimulated(tts.MockConfig{WordsPerMinute: 500, FailureRate: 1})
	defer engine.Close()

	c := tts.NewController(engine, tts.WithLogger(log.New(io.Discard)))
	defer c.Close()

	if err := c.Play("one two", 4); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	s := waitFor(t, c, 5*time.Second, func(s tts.Snapshot) bool {
		return s.Mode == tts.ModeDone
	})
	if s.Err == nil {
		t.Error("Expected the last failure in the snapshot")
	}
	if engine.CallCount() != 2 {
		t.Errorf("Expected 2 requests, got %d", engine.CallCount())
	}
}

// TestStopDuringSimulatedPlayback stops a running session from another
// goroutine.
func TestStopDuringSimulatedPlayback(t *testing.T) {
	engine := mock.NewSimulated(tts.MockConfig{WordsPerMinute: 60})
	defer engine.Close()

	c := tts.NewController(engine, tts.WithLogger(log.New(io.Discard)))
	defer c.Close()

	if err := c.Play("a long sentence that takes a while to read", 1000); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	c.Pause()
	if c.Mode() != tts.ModePaused {
		t.Errorf("Expected paused, got %s", c.Mode())
	}

	c.Stop()
	if c.Mode() != tts.ModeStopped {
		t.Errorf("Expected stopped, got %s", c.Mode())
	}
	if engine.IsSpeaking() {
		t.Error("Engine should not be speaking after stop")
	}
}
