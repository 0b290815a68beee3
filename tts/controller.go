// Package tts narrates long text by feeding it, one segment at a time, to
// an asynchronous speech engine.
package tts

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/narrate/internal/loop"
	"github.com/dgnsrekt/narrate/tts/chunk"
	"github.com/dgnsrekt/narrate/tts/voice"
)

// Fixed scheduling intervals. The next request is never issued from
// inside an engine callback; the error path waits a little longer so it
// does not race the engine's own cleanup.
const (
	SuccessAdvanceDelay = 100 * time.Millisecond
	ErrorAdvanceDelay   = 250 * time.Millisecond
	ResumeCheckDelay    = 300 * time.Millisecond
)

// DefaultRate is the speech rate used when none is configured.
const DefaultRate = 1.0

// Controller owns a playback session and drives an Engine through it.
// All state changes run on the scheduler; the exported methods are safe
// to call from any goroutine other than the scheduler's own.
type Controller struct {
	engine Engine
	sched  Scheduler
	owned  *loop.Loop
	logger *log.Logger

	// Session state, touched only on the scheduler.
	segments []string
	cursor   int
	mode     Mode
	status   string
	lastErr  error
	session  uint64 // bumped by Play and Stop
	request  uint64 // ID of the outstanding request, zero if none
	nextID   uint64

	voices    []voice.Voice
	voiceID   string
	wantVoice string
	rate      float64

	stopAdvance func() bool
	stopCheck   func() bool
	closed      bool

	// Published state, readable from any goroutine.
	mu      sync.RWMutex
	snap    Snapshot
	updates chan Snapshot
}

// Option configures a Controller.
type Option func(*Controller)

// WithScheduler runs the controller on s instead of a private loop.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) {
		c.sched = s
	}
}

// WithLogger sets the logger. The default is log.Default().
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithRate sets the initial speech rate. Non-positive values are ignored.
func WithRate(rate float64) Option {
	return func(c *Controller) {
		if validRate(rate) {
			c.rate = rate
		}
	}
}

// WithVoice asks for a voice by ID or name. It is resolved with
// voice.Find once the engine's registry contains a match; until then the
// default voice policy applies.
func WithVoice(query string) Option {
	return func(c *Controller) {
		c.wantVoice = query
	}
}

// NewController creates a controller for engine.
func NewController(engine Engine, opts ...Option) *Controller {
	c := &Controller{
		engine:  engine,
		logger:  log.Default(),
		rate:    DefaultRate,
		mode:    ModeIdle,
		status:  statusIdle,
		updates: make(chan Snapshot, 1),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.sched == nil {
		c.owned = loop.New()
		c.owned.Start()
		c.sched = c.owned
	}

	engine.OnVoicesChanged(func() {
		c.sched.Post(c.refreshVoices)
	})
	c.sched.Call(func() {
		c.refreshVoices()
		c.publish()
	})

	return c
}

// Play starts a fresh session narrating text in segments of at most
// maxChars runes. Any current session is cancelled first. An invalid
// maxChars is rejected before the current session is touched. Text that
// yields no segments leaves the controller Idle with a "Nothing to
// narrate" status.
func (c *Controller) Play(text string, maxChars int) error {
	segments, err := chunk.Split(text, maxChars)
	if err != nil {
		return err
	}

	err = ErrClosed
	c.sched.Call(func() {
		if c.closed {
			return
		}
		err = nil
		c.playFromStart(segments)
	})
	return err
}

// Pause suspends the current utterance. It does nothing unless the
// engine is audibly speaking and not already paused.
func (c *Controller) Pause() {
	c.sched.Call(c.pause)
}

// Resume continues a paused utterance, or re-issues the current segment
// if the engine has stalled.
func (c *Controller) Resume() {
	c.sched.Call(c.resume)
}

// Stop ends the session from any mode. It always succeeds.
func (c *Controller) Stop() {
	c.sched.Call(c.stop)
}

// SetVoice selects the voice for segments requested after the call.
func (c *Controller) SetVoice(id string) {
	c.sched.Call(func() {
		c.voiceID = id
		c.wantVoice = ""
		c.logger.Debug("voice selected", "voice", id)
		c.publish()
	})
}

// SetRate changes the speech rate for segments requested after the call.
func (c *Controller) SetRate(rate float64) error {
	if !validRate(rate) {
		return fmt.Errorf("%w: rate must be positive, got %v", ErrInvalidArgument, rate)
	}
	c.sched.Call(func() {
		c.rate = rate
		c.logger.Debug("rate changed", "rate", rate)
		c.publish()
	})
	return nil
}

// Snapshot returns the most recently published state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Status returns the human readable state label.
func (c *Controller) Status() string {
	return c.Snapshot().Status
}

// Mode returns the playback mode.
func (c *Controller) Mode() Mode {
	return c.Snapshot().Mode
}

// Progress returns how many segments have been narrated or skipped, and
// how many the session has. narrated never exceeds total.
func (c *Controller) Progress() (narrated, total int) {
	s := c.Snapshot()
	return s.Narrated, s.Total
}

// Voice returns the selected voice ID.
func (c *Controller) Voice() string {
	return c.Snapshot().Voice
}

// Rate returns the speech rate multiplier.
func (c *Controller) Rate() float64 {
	return c.Snapshot().Rate
}

// Voices returns the engine's voice registry as last observed, sorted
// for display.
func (c *Controller) Voices() []voice.Voice {
	var out []voice.Voice
	c.sched.Call(func() {
		out = voice.Sorted(c.voices)
	})
	return out
}

// EngineName returns the name of the engine being driven.
func (c *Controller) EngineName() string {
	return c.engine.Name()
}

// Updates delivers a snapshot after every transition. Only the newest
// snapshot is buffered; a slow reader skips intermediate ones. The
// channel is closed by Close.
func (c *Controller) Updates() <-chan Snapshot {
	return c.updates
}

// Close stops playback and releases the controller's own loop. The
// engine is left to its owner.
func (c *Controller) Close() error {
	c.sched.Call(func() {
		if c.closed {
			return
		}
		c.stop()
		c.closed = true
		close(c.updates)
	})
	if c.owned != nil {
		c.owned.Close()
	}
	return nil
}

func (c *Controller) playFromStart(segments []string) {
	c.cancelTimers()
	c.engine.Cancel()
	c.request = 0
	c.session++

	c.segments = segments
	c.cursor = 0
	c.lastErr = nil

	if len(segments) == 0 {
		c.segments = nil
		c.mode = ModeIdle
		c.status = statusEmpty
		c.lastErr = ErrEmptyInput
		c.logger.Debug("nothing to narrate")
		c.publish()
		return
	}

	c.logger.Debug("session started", "session", c.session, "segments", len(segments))
	c.mode = ModeQueued
	c.publish()

	c.mode = ModePlaying
	c.issue()
}

// issue sends the segment at the cursor to the engine.
func (c *Controller) issue() {
	if c.cursor >= len(c.segments) {
		c.finish()
		return
	}

	c.nextID++
	id := c.nextID
	c.request = id
	c.status = playingStatus(c.cursor, len(c.segments))
	c.publish()

	c.logger.Debug("speaking segment", "segment", c.cursor, "request", id, "voice", c.voiceID, "rate", c.rate)
	c.engine.Speak(Utterance{
		Text:  c.segments[c.cursor],
		Voice: c.voiceID,
		Rate:  c.rate,
		OnStart: func() {
			c.sched.Post(func() { c.handleStart(id) })
		},
		OnEnd: func() {
			c.sched.Post(func() { c.handleEnd(id) })
		},
		OnError: func(err error) {
			c.sched.Post(func() { c.handleError(id, err) })
		},
	})
}

func (c *Controller) current(id uint64, event string) bool {
	if id == 0 || id != c.request {
		c.logger.Debug("ignoring stale callback", "event", event, "request", id, "current", c.request)
		return false
	}
	return true
}

func (c *Controller) handleStart(id uint64) {
	if !c.current(id, "start") {
		return
	}
	c.logger.Debug("segment started", "segment", c.cursor, "request", id)
}

func (c *Controller) handleEnd(id uint64) {
	if !c.current(id, "end") {
		return
	}
	c.request = 0
	c.cursor++
	if c.mode == ModePaused {
		c.mode = ModePlaying
	}

	if c.cursor >= len(c.segments) {
		c.finish()
		return
	}
	c.publish()
	c.scheduleAdvance(SuccessAdvanceDelay)
}

func (c *Controller) handleError(id uint64, err error) {
	if !c.current(id, "error") {
		return
	}
	c.request = 0
	c.mode = ModeErroring

	segErr := &SegmentError{Index: c.cursor, Err: err}
	c.lastErr = segErr
	c.logger.Warn("segment failed", "segment", c.cursor, "err", err)
	c.status = failedStatus(c.cursor)

	c.cursor++
	c.mode = ModePlaying
	if c.cursor >= len(c.segments) {
		c.finish()
		return
	}
	c.publish()
	c.scheduleAdvance(ErrorAdvanceDelay)
}

// scheduleAdvance issues the next request after d, unless the session has
// moved on in the meantime.
func (c *Controller) scheduleAdvance(d time.Duration) {
	session := c.session
	c.stopTimer(&c.stopAdvance)
	c.stopAdvance = c.sched.AfterFunc(d, func() {
		c.stopAdvance = nil
		if session != c.session || c.mode != ModePlaying || c.request != 0 {
			return
		}
		c.issue()
	})
}

func (c *Controller) finish() {
	c.cancelTimers()
	c.request = 0
	c.cursor = len(c.segments)
	c.mode = ModeDone
	c.status = statusDone
	c.logger.Debug("session done", "session", c.session, "segments", len(c.segments))
	c.publish()
}

func (c *Controller) pause() {
	if c.mode != ModePlaying {
		return
	}
	if !c.engine.IsSpeaking() || c.engine.IsPaused() {
		return
	}
	c.engine.Pause()
	c.mode = ModePaused
	c.status = statusPaused
	c.publish()
}

func (c *Controller) resume() {
	if c.mode != ModePlaying && c.mode != ModePaused {
		return
	}

	if c.engine.IsPaused() {
		c.engine.Resume()
		c.mode = ModePlaying
		c.status = playingStatus(c.cursor, len(c.segments))
		c.publish()
		c.scheduleResumeCheck()
		return
	}

	if c.engine.IsSpeaking() {
		// The engine resumed on its own.
		if c.mode == ModePaused {
			c.mode = ModePlaying
			c.status = playingStatus(c.cursor, len(c.segments))
			c.publish()
		}
		return
	}

	c.recoverStall()
}

// scheduleResumeCheck verifies that narration actually continued after a
// resume and re-issues the current segment if it did not.
func (c *Controller) scheduleResumeCheck() {
	session := c.session
	request := c.request
	c.stopTimer(&c.stopCheck)
	c.stopCheck = c.sched.AfterFunc(ResumeCheckDelay, func() {
		c.stopCheck = nil
		if session != c.session || request != c.request || c.request == 0 {
			return
		}
		if c.mode != ModePlaying {
			return
		}
		if c.engine.IsSpeaking() || c.engine.IsPaused() {
			return
		}
		c.recoverStall()
	})
}

func (c *Controller) recoverStall() {
	if c.cursor >= len(c.segments) {
		c.finish()
		return
	}
	c.logger.Warn("re-issuing segment", "segment", c.cursor, "err", ErrEngineStall)

	c.stopTimer(&c.stopAdvance)
	c.stopTimer(&c.stopCheck)
	if c.request != 0 {
		c.engine.Cancel()
		c.request = 0
	}
	c.mode = ModePlaying
	c.issue()
}

func (c *Controller) stop() {
	c.cancelTimers()
	c.engine.Cancel()
	c.request = 0
	c.session++

	c.segments = nil
	c.cursor = 0
	c.mode = ModeStopped
	c.status = statusStopped
	c.publish()
}

func (c *Controller) refreshVoices() {
	c.voices = c.engine.Voices()
	if len(c.voices) == 0 {
		return
	}

	if c.wantVoice != "" {
		if v, ok := voice.Find(c.voices, c.wantVoice); ok {
			c.voiceID = v.ID
			c.wantVoice = ""
			c.logger.Debug("voice resolved", "query", v.Name, "voice", v.ID)
			c.publish()
			return
		}
	}

	if _, ok := voice.Lookup(c.voices, c.voiceID); ok {
		return
	}
	if v, ok := voice.SelectDefault(c.voices); ok {
		c.logger.Debug("default voice selected", "voice", v.ID, "name", v.Name)
		c.voiceID = v.ID
		c.publish()
	}
}

func (c *Controller) cancelTimers() {
	c.stopTimer(&c.stopAdvance)
	c.stopTimer(&c.stopCheck)
}

func (c *Controller) stopTimer(stop *func() bool) {
	if *stop != nil {
		(*stop)()
		*stop = nil
	}
}

// publish copies the session into a snapshot and notifies subscribers.
func (c *Controller) publish() {
	s := Snapshot{
		Mode:     c.mode,
		Status:   c.status,
		Narrated: min(c.cursor, len(c.segments)),
		Total:    len(c.segments),
		Voice:    c.voiceID,
		Rate:     c.rate,
		Err:      c.lastErr,
	}
	if c.cursor < len(c.segments) && c.mode.IsActive() {
		s.Segment = c.segments[c.cursor]
	}

	c.mu.Lock()
	c.snap = s
	c.mu.Unlock()

	if c.closed {
		return
	}
	select {
	case c.updates <- s:
	default:
		select {
		case <-c.updates:
		default:
		}
		select {
		case c.updates <- s:
		default:
		}
	}
}

func validRate(rate float64) bool {
	return rate > 0 && !math.IsInf(rate, 0) && !math.IsNaN(rate)
}
