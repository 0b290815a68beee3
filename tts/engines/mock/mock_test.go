package mock

import (
	"errors"
	"testing"
	"time"

	"github.com/dgnsrekt/narrate/tts"
	"github.com/dgnsrekt/narrate/tts/voice"
)

var _ tts.Engine = (*Engine)(nil)

type recorder struct {
	started, ended int
	err            error
	done           chan struct{}
}

func newRecorder() *recorder {
	return &recorder{done: make(chan struct{}, 4)}
}

func (r *recorder) utterance(text string) tts.Utterance {
	return tts.Utterance{
		Text:    text,
		Rate:    1,
		OnStart: func() { r.started++ },
		OnEnd: func() {
			r.ended++
			r.done <- struct{}{}
		},
		OnError: func(err error) {
			r.err = err
			r.done <- struct{}{}
		},
	}
}

// TestSpeakRecordsAndStarts tests that Speak records the utterance and
// reports it started.
func TestSpeakRecordsAndStarts(t *testing.T) {
	e := New()
	r := newRecorder()

	e.Speak(r.utterance("hello"))

	if r.started != 1 {
		t.Errorf("Expected OnStart once, got %d", r.started)
	}
	if !e.IsSpeaking() || e.IsPaused() {
		t.Error("Expected speaking and not paused")
	}
	if got := e.Spoken(); len(got) != 1 || got[0] != "hello" {
		t.Errorf("Expected [hello], got %v", got)
	}
	if e.CallCount() != 1 {
		t.Errorf("Expected 1 call, got %d", e.CallCount())
	}
}

func TestFinishAndFail(t *testing.T) {
	e := New()
	r := newRecorder()

	if e.Finish() {
		t.Error("Finish with nothing in progress should report false")
	}

	e.Speak(r.utterance("one"))
	if !e.Finish() {
		t.Fatal("Finish should report true")
	}
	if r.ended != 1 || e.IsSpeaking() {
		t.Errorf("Expected ended once and silent, got ended=%d speaking=%v", r.ended, e.IsSpeaking())
	}

	boom := errors.New("boom")
	e.Speak(r.utterance("two"))
	e.Fail(boom)
	if r.err != boom {
		t.Errorf("Expected %v, got %v", boom, r.err)
	}
}

func TestOverlapAndCancelCounters(t *testing.T) {
	e := New()
	r := newRecorder()

	e.Speak(r.utterance("one"))
	e.Speak(r.utterance("two"))
	if e.Overlaps() != 1 {
		t.Errorf("Expected 1 overlap, got %d", e.Overlaps())
	}

	e.Cancel()
	e.Cancel()
	if e.Cancels() != 2 {
		t.Errorf("Expected 2 cancels, got %d", e.Cancels())
	}
	if e.IsSpeaking() {
		t.Error("Cancel should stop speaking")
	}

	e.Speak(r.utterance("three"))
	if e.Overlaps() != 1 {
		t.Errorf("Speak after Cancel is not an overlap, got %d", e.Overlaps())
	}
	if r.ended != 0 {
		t.Error("Cancel must not report the utterance ended")
	}
}

func TestPauseResume(t *testing.T) {
	tests := []struct {
		name          string
		ignorePause   bool
		stallOnResume bool
		wantPaused    bool
		wantSpeaking  bool
	}{
		{"normal", false, false, true, true},
		{"ignored pause", true, false, false, true},
		{"stall on resume", false, true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New()
			e.IgnorePause(tt.ignorePause)
			e.StallOnResume(tt.stallOnResume)
			e.Speak(newRecorder().utterance("text"))

			e.Pause()
			if e.IsPaused() != tt.wantPaused {
				t.Errorf("IsPaused() = %v, want %v", e.IsPaused(), tt.wantPaused)
			}
			if !e.IsSpeaking() {
				t.Error("A paused utterance is still speaking")
			}

			e.Resume()
			if e.IsPaused() {
				t.Error("Expected not paused after resume")
			}
			if e.IsSpeaking() != tt.wantSpeaking {
				t.Errorf("IsSpeaking() = %v, want %v", e.IsSpeaking(), tt.wantSpeaking)
			}
			if e.Pauses() != 1 || e.Resumes() != 1 {
				t.Errorf("Expected 1 pause and 1 resume, got %d and %d", e.Pauses(), e.Resumes())
			}
		})
	}
}

func TestPauseWhenSilentIsNoOp(t *testing.T) {
	e := New()
	e.Pause()
	if e.IsPaused() {
		t.Error("Pause with nothing in progress must not pause")
	}
}

func TestStallAndFireStale(t *testing.T) {
	e := New()
	r := newRecorder()

	e.Speak(r.utterance("one"))
	e.Stall()
	if e.IsSpeaking() || e.IsPaused() {
		t.Error("A stalled engine reports neither speaking nor paused")
	}
	if r.ended != 0 || r.err != nil {
		t.Error("A stall must not call back")
	}

	e.FireStale(0)
	if r.ended != 1 {
		t.Errorf("Expected the stale end callback, got %d", r.ended)
	}
	e.FireStale(5)
}

func TestSetVoicesNotifies(t *testing.T) {
	e := New()
	calls := 0
	e.OnVoicesChanged(func() { calls++ })

	e.SetVoices(voice.Voice{ID: "a", Name: "A", Language: "en-US"})
	if calls != 1 {
		t.Errorf("Expected 1 notification, got %d", calls)
	}
	if got := e.Voices(); len(got) != 1 || got[0].ID != "a" {
		t.Errorf("Unexpected voices %v", got)
	}
}

func TestCloseFailsLaterRequests(t *testing.T) {
	e := New()
	r := newRecorder()
	if err := e.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	e.Speak(r.utterance("late"))
	if !errors.Is(r.err, tts.ErrEngineUnavailable) {
		t.Errorf("Expected ErrEngineUnavailable, got %v", r.err)
	}
}

func TestSimulatedCompletes(t *testing.T) {
	e := NewSimulated(tts.MockConfig{WordsPerMinute: 500})
	defer e.Close()

	if len(e.Voices()) != len(DefaultVoices) {
		t.Errorf("Expected default voices, got %v", e.Voices())
	}

	r := newRecorder()
	e.Speak(r.utterance("quick"))

	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("Simulated utterance did not complete")
	}
	if r.err != nil {
		t.Errorf("Unexpected failure %v", r.err)
	}
}

func TestSimulatedFailureRate(t *testing.T) {
	e := NewSimulated(tts.MockConfig{WordsPerMinute: 500, FailureRate: 1})
	defer e.Close()

	r := newRecorder()
	e.Speak(r.utterance("quick"))

	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("Simulated utterance did not complete")
	}
	if !errors.Is(r.err, ErrSimulatedFailure) {
		t.Errorf("Expected ErrSimulatedFailure, got %v", r.err)
	}
}

func TestSimulatedPauseFreezesTimer(t *testing.T) {
	e := NewSimulated(tts.MockConfig{WordsPerMinute: 500})
	defer e.Close()

	r := newRecorder()
	e.Speak(r.utterance("quick"))
	e.Pause()

	select {
	case <-r.done:
		t.Fatal("A paused utterance must not complete")
	case <-time.After(400 * time.Millisecond):
	}

	e.Resume()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("Resumed utterance did not complete")
	}
}

func TestEstimateScalesWithRate(t *testing.T) {
	e := NewSimulated(tts.MockConfig{WordsPerMinute: 60})
	words := "one two three four five six"

	normal := e.estimate(tts.Utterance{Text: words, Rate: 1})
	fast := e.estimate(tts.Utterance{Text: words, Rate: 2})

	if normal != 6*time.Second {
		t.Errorf("Expected 6s at rate 1, got %v", normal)
	}
	if fast != 3*time.Second {
		t.Errorf("Expected 3s at rate 2, got %v", fast)
	}
}
