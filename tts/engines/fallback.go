package engines

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/tts"
	"github.com/dgnsrekt/narrate/tts/voice"
)

// FallbackEngine wraps a primary engine with automatic fallback to a
// secondary engine when the primary fails consistently.
type FallbackEngine struct {
	primary     tts.Engine
	fallback    tts.Engine
	maxFailures int
	logger      *log.Logger

	mu            sync.RWMutex
	failures      int
	usingFallback bool
	voicesChanged []func()
}

// NewFallbackEngine creates an engine that switches from primary to
// fallback after maxFailures consecutive failed utterances.
func NewFallbackEngine(primary, fallback tts.Engine, maxFailures int, logger *log.Logger) *FallbackEngine {
	if logger == nil {
		logger = log.Default()
	}
	f := &FallbackEngine{
		primary:     primary,
		fallback:    fallback,
		maxFailures: max(maxFailures, 1),
		logger:      logger,
	}
	primary.OnVoicesChanged(func() { f.relayVoices(false) })
	fallback.OnVoicesChanged(func() { f.relayVoices(true) })
	return f
}

func (f *FallbackEngine) active() tts.Engine {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.usingFallback {
		return f.fallback
	}
	return f.primary
}

// Name implements tts.Engine.
func (f *FallbackEngine) Name() string {
	return f.active().Name()
}

// Speak sends u to the active engine. A failure on the primary engine
// counts towards the switch; a success resets the count.
func (f *FallbackEngine) Speak(u tts.Utterance) {
	f.mu.RLock()
	onFallback := f.usingFallback
	f.mu.RUnlock()

	if onFallback {
		f.fallback.Speak(u)
		return
	}

	onEnd, onError := u.OnEnd, u.OnError
	u.OnEnd = func() {
		f.recordSuccess()
		if onEnd != nil {
			onEnd()
		}
	}
	u.OnError = func(err error) {
		f.recordFailure(err)
		if onError != nil {
			onError(err)
		}
	}
	f.primary.Speak(u)
}

func (f *FallbackEngine) recordSuccess() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failures > 0 && !f.usingFallback {
		f.logger.Info("Primary engine recovered", "failures", f.failures)
		f.failures = 0
	}
}

func (f *FallbackEngine) recordFailure(err error) {
	f.mu.Lock()
	if f.usingFallback {
		f.mu.Unlock()
		return
	}
	f.failures++
	f.logger.Warn("Primary engine failed", "engine", f.primary.Name(),
		"attempt", f.failures, "max", f.maxFailures, "err", err)

	switched := f.failures >= f.maxFailures
	if switched {
		f.usingFallback = true
		f.logger.Warn("Switching to fallback engine", "engine", f.fallback.Name())
	}
	callbacks := append([]func(){}, f.voicesChanged...)
	f.mu.Unlock()

	if switched {
		for _, fn := range callbacks {
			fn()
		}
	}
}

// relayVoices forwards a voices-changed notification from the engine
// that is currently active.
func (f *FallbackEngine) relayVoices(fromFallback bool) {
	f.mu.RLock()
	relevant := fromFallback == f.usingFallback
	callbacks := append([]func(){}, f.voicesChanged...)
	f.mu.RUnlock()

	if !relevant {
		return
	}
	for _, fn := range callbacks {
		fn()
	}
}

// Pause implements tts.Engine.
func (f *FallbackEngine) Pause() { f.active().Pause() }

// Resume implements tts.Engine.
func (f *FallbackEngine) Resume() { f.active().Resume() }

// Cancel cancels both engines, so an utterance started on the primary
// before a switch is dropped too.
func (f *FallbackEngine) Cancel() {
	f.primary.Cancel()
	f.fallback.Cancel()
}

// IsSpeaking implements tts.Engine.
func (f *FallbackEngine) IsSpeaking() bool { return f.active().IsSpeaking() }

// IsPaused implements tts.Engine.
func (f *FallbackEngine) IsPaused() bool { return f.active().IsPaused() }

// Voices returns the voices of the active engine.
func (f *FallbackEngine) Voices() []voice.Voice { return f.active().Voices() }

// OnVoicesChanged registers fn for voice list changes, including the
// switch to the fallback engine.
func (f *FallbackEngine) OnVoicesChanged(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voicesChanged = append(f.voicesChanged, fn)
}

// Close shuts down both engines.
func (f *FallbackEngine) Close() error {
	var errs []error
	if err := f.primary.Close(); err != nil {
		errs = append(errs, fmt.Errorf("primary shutdown: %w", err))
	}
	if err := f.fallback.Close(); err != nil {
		errs = append(errs, fmt.Errorf("fallback shutdown: %w", err))
	}
	return errors.Join(errs...)
}

// Status describes which engine is in use.
func (f *FallbackEngine) Status() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.usingFallback {
		return fmt.Sprintf("Using fallback engine (primary failed %d times)", f.failures)
	}
	return fmt.Sprintf("Using primary engine (failures: %d/%d)", f.failures, f.maxFailures)
}
