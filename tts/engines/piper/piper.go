// Package piper drives the Piper neural text-to-speech program. Each
// utterance is synthesized to raw PCM by a fresh piper process, cached on
// disk, and played through the audio output.
package piper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/internal/audio"
	"github.com/dgnsrekt/narrate/internal/cache"
	"github.com/dgnsrekt/narrate/tts"
	"github.com/dgnsrekt/narrate/tts/voice"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/time/rate"
)

// Synthesizer turns text into 16-bit mono PCM at the model's sample rate.
type Synthesizer func(ctx context.Context, m Model, text string, speed float64) ([]byte, error)

// Store caches synthesized audio.
type Store interface {
	Get(k cache.Key) ([]byte, bool)
	Put(k cache.Key, pcm []byte) error
	Close() error
}

// Engine implements tts.Engine with Piper.
type Engine struct {
	cfg    tts.PiperConfig
	models []Model
	output audio.Output
	store  Store
	synth  Synthesizer
	limit  *rate.Limiter
	logger *log.Logger

	mu       sync.Mutex
	gen      int
	cancel   context.CancelFunc
	speaking bool
	paused   bool
	closed   bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithOutput plays audio through o instead of the sound card.
func WithOutput(o audio.Output) Option {
	return func(e *Engine) { e.output = o }
}

// WithStore caches synthesized audio in s. The engine closes s on Close.
func WithStore(s Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithSynthesizer replaces the piper subprocess.
func WithSynthesizer(s Synthesizer) Option {
	return func(e *Engine) { e.synth = s }
}

// WithModels uses models instead of scanning the data directory.
func WithModels(models ...Model) Option {
	return func(e *Engine) { e.models = models }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates a Piper engine. It fails with tts.ErrEngineUnavailable when
// the piper binary or any voice model is missing.
func New(cfg tts.PiperConfig, opts ...Option) (*Engine, error) {
	e := &Engine{
		cfg:    cfg,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.synth == nil {
		bin := findBinary(cfg.Binary)
		if bin == "" {
			return nil, fmt.Errorf("%w: piper binary %q not found", tts.ErrEngineUnavailable, cfg.Binary)
		}
		e.synth = commandSynthesizer(bin, cfg)
	}

	if e.models == nil {
		dir, err := homedir.Expand(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		models, err := ScanModels(dir)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", tts.ErrEngineUnavailable, err)
		}
		e.models = models
	}
	if len(e.models) == 0 {
		return nil, fmt.Errorf("%w: no piper voice models in %s", tts.ErrEngineUnavailable, cfg.DataDir)
	}

	if e.output == nil {
		pc := audio.DefaultPlayerConfig()
		pc.Volume = cfg.Volume
		p, err := audio.NewPlayer(pc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", tts.ErrEngineUnavailable, err)
		}
		e.output = p
	}

	rpm := max(cfg.RequestsPerMinute, 1)
	e.limit = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 3)

	e.logger.Debug("piper ready", "models", len(e.models), "sample_rate", e.output.SampleRate())
	return e, nil
}

// Name implements tts.Engine.
func (e *Engine) Name() string {
	return tts.EnginePiper
}

// Speak synthesizes u in the background and plays it. IsSpeaking is true
// from the call until the clip ends or the utterance is cancelled.
func (e *Engine) Speak(u tts.Utterance) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		u.Failed(tts.ErrEngineUnavailable)
		return
	}
	e.stopLocked()
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.speaking = true
	gen := e.gen
	e.mu.Unlock()

	go e.run(ctx, gen, u)
}

func (e *Engine) run(ctx context.Context, gen int, u tts.Utterance) {
	m, ok := findModel(e.models, u.Voice)
	if !ok {
		m = e.models[0]
	}

	pcm, err := e.audioFor(ctx, m, u)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e.fail(gen, u, err)
		return
	}

	if !e.current(gen) {
		return
	}
	u.Started()

	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	err = e.output.Play(pcm, func(err error) { e.done(gen, u, err) })
	if err == nil && e.paused {
		e.output.Pause()
	}
	e.mu.Unlock()

	if err != nil {
		e.fail(gen, u, err)
	}
}

// audioFor returns cached audio for u or synthesizes it.
func (e *Engine) audioFor(ctx context.Context, m Model, u tts.Utterance) ([]byte, error) {
	key := cache.Key{
		Text:       u.Text,
		Voice:      m.Voice.ID,
		Rate:       u.Rate,
		SampleRate: e.output.SampleRate(),
	}
	if e.store != nil {
		if pcm, ok := e.store.Get(key); ok {
			e.logger.Debug("audio cache hit", "voice", m.Voice.ID, "bytes", len(pcm))
			return pcm, nil
		}
	}

	if err := e.limit.Wait(ctx); err != nil {
		return nil, err
	}

	timeout := e.cfg.Timeout
	if timeout <= 0 {
		timeout = tts.DefaultPiperConfig().Timeout
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	pcm, err := e.synth(sctx, m, u.Text, u.Rate)
	if err != nil {
		return nil, err
	}
	if len(pcm) == 0 {
		return nil, errors.New("piper produced no audio")
	}
	pcm = audio.Resample(pcm, m.SampleRate, e.output.SampleRate())
	e.logger.Debug("synthesized", "voice", m.Voice.ID, "bytes", len(pcm), "took", time.Since(start))

	if e.store != nil {
		if err := e.store.Put(key, pcm); err != nil {
			e.logger.Warn("could not cache audio", "err", err)
		}
	}
	return pcm, nil
}

func (e *Engine) current(gen int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return gen == e.gen
}

func (e *Engine) done(gen int, u tts.Utterance, err error) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.speaking = false
	e.paused = false
	e.mu.Unlock()

	if err != nil {
		u.Failed(err)
		return
	}
	u.Ended()
}

func (e *Engine) fail(gen int, u tts.Utterance, err error) {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return
	}
	e.speaking = false
	e.paused = false
	e.mu.Unlock()

	u.Failed(err)
}

// Pause implements tts.Engine. Pausing during synthesis holds the clip
// once it is ready.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.speaking || e.paused {
		return
	}
	e.paused = true
	e.output.Pause()
}

// Resume implements tts.Engine.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.paused {
		return
	}
	e.paused = false
	e.output.Resume()
}

// Cancel aborts synthesis and stops playback without calling back.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *Engine) stopLocked() {
	e.gen++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.output.Stop()
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

// Voices implements tts.Engine.
func (e *Engine) Voices() []voice.Voice {
	return voices(e.models)
}

// OnVoicesChanged implements tts.Engine. The model list is read once at
// construction, so fn is never called.
func (e *Engine) OnVoicesChanged(func()) {}

// Close implements tts.Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.stopLocked()
	e.closed = true

	var errs []error
	if err := e.output.Close(); err != nil {
		errs = append(errs, fmt.Errorf("audio: %w", err))
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
	}
	return errors.Join(errs...)
}

// commandSynthesizer runs one piper process per utterance.
func commandSynthesizer(bin string, cfg tts.PiperConfig) Synthesizer {
	return func(ctx context.Context, m Model, text string, speed float64) ([]byte, error) {
		cmd := exec.CommandContext(ctx, bin, Args(cfg, m, speed)...)
		cmd.Stdin = strings.NewReader(text + "\n")
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		out, err := cmd.Output()
		if err != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg != "" {
				return nil, fmt.Errorf("piper failed: %w: %s", err, lastLine(msg))
			}
			return nil, fmt.Errorf("piper failed: %w", err)
		}
		return out, nil
	}
}

// Args returns the piper command line for one utterance.
func Args(cfg tts.PiperConfig, m Model, speed float64) []string {
	if speed <= 0 {
		speed = tts.DefaultRate
	}
	args := []string{
		"--model", m.Path,
		"--output-raw",
		"--length_scale", strconv.FormatFloat(1/speed, 'f', 3, 64),
		"--noise_scale", strconv.FormatFloat(cfg.NoiseScale, 'f', 3, 64),
		"--noise_w", strconv.FormatFloat(cfg.NoiseW, 'f', 3, 64),
		"--sentence_silence", strconv.FormatFloat(cfg.SentenceSilence.Seconds(), 'f', 3, 64),
	}
	if cfg.SpeakerID > 0 {
		args = append(args, "--speaker", strconv.Itoa(cfg.SpeakerID))
	}
	return args
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// findBinary resolves name on PATH, then in the usual user install
// locations.
func findBinary(name string) string {
	if name == "" {
		name = "piper"
	}
	name, _ = homedir.Expand(name)
	if path, err := exec.LookPath(name); err == nil {
		return path
	}

	for _, dir := range []string{"~/.local/bin", "~/bin", "/usr/local/bin", "/usr/bin"} {
		dir, err := homedir.Expand(dir)
		if err != nil {
			continue
		}
		if path, err := exec.LookPath(filepath.Join(dir, name)); err == nil {
			return path
		}
	}
	return ""
}
