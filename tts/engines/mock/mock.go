// Package mock provides a speech engine for tests and demos.
//
// A scriptable engine never finishes an utterance on its own: tests call
// Finish, Fail or Stall to drive it, and inspect what the controller asked
// for through the recorded utterances and counters. A simulated engine
// finishes each utterance after a reading-time estimate instead.
package mock

import (
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/narrate/tts"
	"github.com/dgnsrekt/narrate/tts/voice"
)

// ErrSimulatedFailure is reported by a simulated engine when a segment
// is chosen to fail.
var ErrSimulatedFailure = errors.New("simulated engine failure")

// DefaultVoices is the registry of a simulated engine.
var DefaultVoices = []voice.Voice{
	{ID: "mock-en-us", Name: "Mock American English", Language: "en-US"},
	{ID: "mock-en-gb", Name: "Mock British English", Language: "en-GB"},
	{ID: "mock-de", Name: "Mock German", Language: "de-DE"},
}

// Engine implements tts.Engine without producing audio.
type Engine struct {
	mu sync.Mutex

	voices        []voice.Voice
	voicesChanged []func()

	current  *tts.Utterance
	speaking bool
	paused   bool
	gen      int

	history  []tts.Utterance
	overlaps int
	cancels  int
	pauses   int
	resumes  int

	stallOnResume bool
	ignorePause   bool

	// simulation
	simulate    bool
	wpm         int
	failureRate float64
	timer       *time.Timer
	remaining   time.Duration
	startedAt   time.Time

	closed bool
}

// New creates a scriptable engine with the given voice registry.
func New(voices ...voice.Voice) *Engine {
	return &Engine{voices: voices}
}

// NewSimulated creates an engine that completes utterances on its own
// after an estimate based on cfg.WordsPerMinute and the utterance rate,
// failing a cfg.FailureRate fraction of them.
func NewSimulated(cfg tts.MockConfig) *Engine {
	e := New(DefaultVoices...)
	e.simulate = true
	e.wpm = cfg.WordsPerMinute
	if e.wpm <= 0 {
		e.wpm = tts.DefaultMockConfig().WordsPerMinute
	}
	e.failureRate = cfg.FailureRate
	return e
}

// Name implements tts.Engine.
func (e *Engine) Name() string {
	return "mock"
}

// Speak records u and reports it started. A previous utterance still in
// progress counts as an overlap.
func (e *Engine) Speak(u tts.Utterance) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		u.Failed(tts.ErrEngineUnavailable)
		return
	}
	if e.current != nil {
		e.overlaps++
	}
	e.stopTimer()
	e.gen++
	e.current = &u
	e.speaking = true
	e.paused = false
	e.history = append(e.history, u)
	if e.simulate {
		e.remaining = e.estimate(u)
		e.startTimer()
	}
	e.mu.Unlock()

	u.Started()
}

// Pause implements tts.Engine.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pauses++
	if !e.speaking || e.paused || e.ignorePause {
		return
	}
	e.paused = true
	if e.simulate && e.stopTimer() {
		e.remaining -= time.Since(e.startedAt)
	}
}

// Resume implements tts.Engine.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.resumes++
	if !e.paused {
		return
	}
	e.paused = false
	if e.stallOnResume {
		e.drop()
		return
	}
	if e.simulate {
		e.startTimer()
	}
}

// Cancel drops the current utterance without reporting back.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancels++
	e.drop()
}

// IsSpeaking implements tts.Engine.
func (e *Engine) IsSpeaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speaking
}

// IsPaused implements tts.Engine.
func (e *Engine) IsPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Voices implements tts.Engine.
func (e *Engine) Voices() []voice.Voice {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]voice.Voice, len(e.voices))
	copy(out, e.voices)
	return out
}

// OnVoicesChanged implements tts.Engine.
func (e *Engine) OnVoicesChanged(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.voicesChanged = append(e.voicesChanged, fn)
}

// Close implements tts.Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.drop()
	e.closed = true
	return nil
}

// SetVoices replaces the registry and fires the change notification.
func (e *Engine) SetVoices(voices ...voice.Voice) {
	e.mu.Lock()
	e.voices = voices
	callbacks := append([]func(){}, e.voicesChanged...)
	e.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// Finish completes the current utterance successfully. It reports false
// if nothing was in progress.
func (e *Engine) Finish() bool {
	u, ok := e.take()
	if ok {
		u.Ended()
	}
	return ok
}

// Fail completes the current utterance with err.
func (e *Engine) Fail(err error) bool {
	u, ok := e.take()
	if ok {
		u.Failed(err)
	}
	return ok
}

// Stall silently loses the current utterance: the engine reports neither
// speaking nor paused and never calls back.
func (e *Engine) Stall() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drop()
}

// FireStale replays the end callback of the i-th recorded utterance, as a
// misbehaving engine might after a cancel.
func (e *Engine) FireStale(i int) {
	e.mu.Lock()
	if i < 0 || i >= len(e.history) {
		e.mu.Unlock()
		return
	}
	u := e.history[i]
	e.mu.Unlock()

	u.Ended()
}

// StallOnResume makes Resume clear the paused flag without continuing
// the utterance.
func (e *Engine) StallOnResume(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stallOnResume = v
}

// IgnorePause makes Pause a no-op at the engine.
func (e *Engine) IgnorePause(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ignorePause = v
}

// Utterances returns every utterance passed to Speak, in order.
func (e *Engine) Utterances() []tts.Utterance {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]tts.Utterance, len(e.history))
	copy(out, e.history)
	return out
}

// Spoken returns the text of every utterance passed to Speak.
func (e *Engine) Spoken() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]string, len(e.history))
	for i, u := range e.history {
		out[i] = u.Text
	}
	return out
}

// CallCount returns the number of Speak calls.
func (e *Engine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.history)
}

// Overlaps returns how many times Speak was called while another
// utterance was still in progress.
func (e *Engine) Overlaps() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.overlaps
}

// Cancels returns the number of Cancel calls.
func (e *Engine) Cancels() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancels
}

// Pauses returns the number of Pause calls.
func (e *Engine) Pauses() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pauses
}

// Resumes returns the number of Resume calls.
func (e *Engine) Resumes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resumes
}

func (e *Engine) take() (tts.Utterance, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return tts.Utterance{}, false
	}
	u := *e.current
	e.drop()
	return u, true
}

// drop forgets the current utterance. Callers hold e.mu.
func (e *Engine) drop() {
	e.stopTimer()
	e.gen++
	e.current = nil
	e.speaking = false
	e.paused = false
}

func (e *Engine) estimate(u tts.Utterance) time.Duration {
	words := len(strings.Fields(u.Text))
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	d := time.Duration(float64(words) * float64(time.Minute) / (float64(e.wpm) * rate))
	return max(d, 200*time.Millisecond)
}

// startTimer arms completion of the current utterance. Callers hold e.mu.
func (e *Engine) startTimer() {
	gen := e.gen
	e.startedAt = time.Now()
	e.timer = time.AfterFunc(e.remaining, func() {
		e.mu.Lock()
		if gen != e.gen || e.current == nil {
			e.mu.Unlock()
			return
		}
		u := *e.current
		e.drop()
		fail := e.failureRate > 0 && rand.Float64() < e.failureRate
		e.mu.Unlock()

		if fail {
			u.Failed(ErrSimulatedFailure)
			return
		}
		u.Ended()
	})
}

// stopTimer reports whether a running timer was stopped. Callers hold
// e.mu.
func (e *Engine) stopTimer() bool {
	if e.timer == nil {
		return false
	}
	stopped := e.timer.Stop()
	e.timer = nil
	return stopped
}
