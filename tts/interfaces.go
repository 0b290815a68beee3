package tts

import (
	"time"

	"github.com/dgnsrekt/narrate/tts/voice"
)

// Engine is an asynchronous, stateful speech engine. Speak returns
// immediately; the utterance reports back through its callbacks, possibly
// from another goroutine and possibly before Speak returns.
type Engine interface {
	// Name identifies the engine in logs and the UI.
	Name() string

	// Speak starts narrating one utterance. Any current utterance is
	// replaced.
	Speak(u Utterance)

	// Pause and Resume suspend and continue the current utterance.
	Pause()
	Resume()

	// Cancel stops the current utterance. It is idempotent and the
	// cancelled utterance must not report back afterwards.
	Cancel()

	// IsSpeaking stays true while an utterance is paused.
	IsSpeaking() bool
	IsPaused() bool

	// Voices returns the current voice registry. Engines often fill it
	// asynchronously after construction.
	Voices() []voice.Voice

	// OnVoicesChanged registers fn to be called whenever the registry is
	// (re)populated.
	OnVoicesChanged(fn func())

	// Close releases processes and devices held by the engine.
	Close() error
}

// Utterance is a single narration request.
type Utterance struct {
	Text  string
	Voice string  // voice ID, may be empty for the engine default
	Rate  float64 // speech rate multiplier, 1.0 is normal

	OnStart func()
	OnEnd   func()
	OnError func(error)
}

// Started invokes OnStart if set.
func (u Utterance) Started() {
	if u.OnStart != nil {
		u.OnStart()
	}
}

// Ended invokes OnEnd if set.
func (u Utterance) Ended() {
	if u.OnEnd != nil {
		u.OnEnd()
	}
}

// Failed invokes OnError if set.
func (u Utterance) Failed(err error) {
	if u.OnError != nil {
		u.OnError(err)
	}
}

// Scheduler is the single logical thread the controller runs on.
// internal/loop provides a goroutine backed implementation and a manual
// one for tests.
type Scheduler interface {
	// Post queues fn without blocking.
	Post(fn func())
	// Call runs fn on the scheduler and waits for it.
	Call(fn func())
	// AfterFunc posts fn once d has elapsed. stop reports whether the
	// timer was cancelled before it fired.
	AfterFunc(d time.Duration, fn func()) (stop func() bool)
}
