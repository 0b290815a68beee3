// Package espeak speaks through a system synthesizer program: espeak-ng
// or espeak on Linux, say on macOS. Each utterance runs one process;
// pause and resume stop and continue it with signals.
package espeak

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/tts"
	"github.com/dgnsrekt/narrate/tts/voice"
	"github.com/mitchellh/go-homedir"
)

// Programs are tried in this order when no binary is configured.
var Programs = []string{"espeak-ng", "espeak", "say"}

// Speed bounds in words per minute.
const (
	MinWPM = 80
	MaxWPM = 500
)

// Flavor selects the command line dialect.
type Flavor int

const (
	FlavorEspeak Flavor = iota
	FlavorSay
)

// FlavorOf infers the dialect from a program path.
func FlavorOf(binary string) Flavor {
	if filepath.Base(binary) == "say" {
		return FlavorSay
	}
	return FlavorEspeak
}

// Engine implements tts.Engine with a synthesizer program.
type Engine struct {
	binary string
	flavor Flavor
	wpm    int
	logger *log.Logger

	mu            sync.Mutex
	cmd           *exec.Cmd
	gen           int
	speaking      bool
	paused        bool
	closed        bool
	voices        []voice.Voice
	voicesChanged []func()
	cancelList    context.CancelFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New finds the synthesizer program and starts loading its voice list in
// the background. OnVoicesChanged callbacks fire once the list is in.
func New(cfg tts.EspeakConfig, opts ...Option) (*Engine, error) {
	bin, err := findBinary(cfg.Binary)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		binary: bin,
		flavor: FlavorOf(bin),
		wpm:    cfg.WordsPerMinute,
		logger: log.Default(),
	}
	if e.wpm <= 0 {
		e.wpm = tts.DefaultEspeakConfig().WordsPerMinute
	}
	for _, opt := range opts {
		opt(e)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	e.cancelList = cancel
	go e.loadVoices(ctx)

	return e, nil
}

func findBinary(configured string) (string, error) {
	if configured != "" {
		name, err := homedir.Expand(configured)
		if err != nil {
			return "", err
		}
		path, err := exec.LookPath(name)
		if err != nil {
			return "", fmt.Errorf("%w: %v", tts.ErrEngineUnavailable, err)
		}
		return path, nil
	}

	for _, name := range Programs {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: none of %s found", tts.ErrEngineUnavailable, strings.Join(Programs, ", "))
}

func (e *Engine) loadVoices(ctx context.Context) {
	defer e.cancelList()

	var args []string
	parse := ParseEspeakVoices
	if e.flavor == FlavorSay {
		args = []string{"-v", "?"}
		parse = ParseSayVoices
	} else {
		args = []string{"--voices"}
	}

	out, err := exec.CommandContext(ctx, e.binary, args...).Output()
	if err != nil {
		e.logger.Warn("Could not list voices", "binary", e.binary, "err", err)
		return
	}
	list := parse(out)
	e.logger.Debug("voices loaded", "binary", e.binary, "count", len(list))

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.voices = list
	callbacks := append([]func(){}, e.voicesChanged...)
	e.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}

// Name implements tts.Engine.
func (e *Engine) Name() string {
	return tts.EngineEspeak
}

// Args returns the command line for one utterance.
func Args(f Flavor, voiceID string, wpm int, text string) []string {
	var args []string
	switch f {
	case FlavorSay:
		if voiceID != "" {
			args = append(args, "-v", voiceID)
		}
		args = append(args, "-r", strconv.Itoa(wpm), text)
	default:
		if voiceID != "" {
			args = append(args, "-v", voiceID)
		}
		args = append(args, "-s", strconv.Itoa(wpm), "--", text)
	}
	return args
}

// WordsPerMinute scales base by rate within MinWPM and MaxWPM.
func WordsPerMinute(base int, rate float64) int {
	if rate <= 0 {
		rate = tts.DefaultRate
	}
	wpm := int(math.Round(float64(base) * rate))
	return min(max(wpm, MinWPM), MaxWPM)
}

// Speak implements tts.Engine. A previous utterance is killed first.
func (e *Engine) Speak(u tts.Utterance) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		u.Failed(tts.ErrEngineUnavailable)
		return
	}
	e.killLocked()

	cmd := exec.Command(e.binary, Args(e.flavor, u.Voice, WordsPerMinute(e.wpm, u.Rate), u.Text)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		e.mu.Unlock()
		u.Failed(fmt.Errorf("start %s: %w", filepath.Base(e.binary), err))
		return
	}
	e.cmd = cmd
	e.speaking = true
	gen := e.gen
	e.mu.Unlock()

	u.Started()
	go e.wait(cmd, gen, u, &stderr)
}

func (e *Engine) wait(cmd *exec.Cmd, gen int, u tts.Utterance, stderr *bytes.Buffer) {
	err := cmd.Wait()

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.cmd = nil
	e.speaking = false
	e.paused = false
	e.mu.Unlock()

	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		u.Failed(fmt.Errorf("%s: %w", filepath.Base(e.binary), err))
		return
	}
	u.Ended()
}

// Pause stops the running process. Platforms without job control signals
// leave the utterance running.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd == nil || e.paused {
		return
	}
	if err := suspend(e.cmd.Process); err != nil {
		e.logger.Debug("pause failed", "err", err)
		return
	}
	e.paused = true
}

// Resume implements tts.Engine.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd == nil || !e.paused {
		return
	}
	if err := resume(e.cmd.Process); err != nil {
		e.logger.Debug("resume failed", "err", err)
		return
	}
	e.paused = false
}

// Cancel kills the running process without calling back.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.killLocked()
}

func (e *Engine) killLocked() {
	e.gen++
	if e.cmd != nil {
		if err := e.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			e.logger.Debug("kill failed", "err", err)
		}
	}
	e.cmd = nil
	e.speaking = false
	e.paused = false
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

// Voices implements tts.Engine. The list is empty until loading finishes.
func (e *Engine) Voices() []voice.Voice {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]voice.Voice(nil), e.voices...)
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

	e.killLocked()
	e.closed = true
	e.cancelList()
	return nil
}
