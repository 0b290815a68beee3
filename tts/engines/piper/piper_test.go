package piper

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/internal/audio"
	"github.com/dgnsrekt/narrate/internal/cache"
	"github.com/dgnsrekt/narrate/tts"
	"github.com/dgnsrekt/narrate/tts/voice"
)

var testModels = []Model{
	{Path: "/models/a.onnx", SampleRate: 22050, Voice: voiceOf("en_US-a-medium", "en-US")},
	{Path: "/models/b.onnx", SampleRate: 22050, Voice: voiceOf("de_DE-b-low", "de-DE")},
}

func voiceOf(id, lang string) voice.Voice {
	return voice.Voice{ID: id, Name: id, Language: lang}
}

// fakeSynth records requests and returns one sample per rune of text.
type fakeSynth struct {
	mu    sync.Mutex
	calls []string
	err   error
	block chan struct{}
}

func (f *fakeSynth) synthesize(ctx context.Context, m Model, text string, _ float64) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, m.Voice.ID+":"+text)
	block, err := f.block, f.err
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return bytes.Repeat([]byte{1, 0}, len(text)), nil
}

func (f *fakeSynth) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// events collects utterance callbacks.
type events struct {
	ch chan string
}

func newEvents() *events {
	return &events{ch: make(chan string, 16)}
}

func (ev *events) utterance(text, voice string) tts.Utterance {
	return tts.Utterance{
		Text:    text,
		Voice:   voice,
		Rate:    1,
		OnStart: func() { ev.ch <- "start" },
		OnEnd:   func() { ev.ch <- "end" },
		OnError: func(err error) { ev.ch <- "error: " + err.Error() },
	}
}

func (ev *events) expect(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-ev.ch:
		if got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func (ev *events) expectNone(t *testing.T) {
	t.Helper()
	select {
	case got := <-ev.ch:
		t.Fatalf("unexpected event %q", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func newTestEngine(t *testing.T, synth *fakeSynth, opts ...Option) (*Engine, *audio.MockPlayer) {
	t.Helper()

	out := audio.NewMockPlayer(22050)
	cfg := tts.DefaultPiperConfig()
	cfg.RequestsPerMinute = 6000

	opts = append([]Option{
		WithModels(testModels...),
		WithOutput(out),
		WithSynthesizer(synth.synthesize),
		WithLogger(log.New(io.Discard)),
	}, opts...)

	e, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e, out
}

// waitActive waits for the mock output to receive a clip.
func waitActive(t *testing.T, out *audio.MockPlayer) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !out.IsActive() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for playback")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSpeakPlaysToEnd(t *testing.T) {
	synth := &fakeSynth{}
	e, out := newTestEngine(t, synth)
	ev := newEvents()

	e.Speak(ev.utterance("hello", "de_DE-b-low"))
	if !e.IsSpeaking() {
		t.Error("expected speaking during synthesis")
	}

	ev.expect(t, "start")
	waitActive(t, out)
	if got := synth.Calls(); len(got) != 1 || got[0] != "de_DE-b-low:hello" {
		t.Errorf("unexpected synth calls %v", got)
	}

	out.Complete(nil)
	ev.expect(t, "end")
	if e.IsSpeaking() {
		t.Error("expected not speaking after the clip ends")
	}
}

func TestSpeakUnknownVoiceUsesFirstModel(t *testing.T) {
	synth := &fakeSynth{}
	e, _ := newTestEngine(t, synth)
	ev := newEvents()

	e.Speak(ev.utterance("hi", "missing"))
	ev.expect(t, "start")

	if got := synth.Calls(); len(got) != 1 || got[0] != "en_US-a-medium:hi" {
		t.Errorf("unexpected synth calls %v", got)
	}
}

func TestSpeakSynthesisFailure(t *testing.T) {
	synth := &fakeSynth{err: errors.New("model crashed")}
	e, _ := newTestEngine(t, synth)
	ev := newEvents()

	e.Speak(ev.utterance("hello", ""))
	ev.expect(t, "error: model crashed")
	if e.IsSpeaking() {
		t.Error("expected not speaking after a failure")
	}
}

func TestSpeakPlaybackFailure(t *testing.T) {
	synth := &fakeSynth{}
	e, out := newTestEngine(t, synth)
	ev := newEvents()

	e.Speak(ev.utterance("hello", ""))
	ev.expect(t, "start")
	waitActive(t, out)

	out.Complete(errors.New("device lost"))
	ev.expect(t, "error: device lost")
}

func TestCancelDuringSynthesis(t *testing.T) {
	synth := &fakeSynth{block: make(chan struct{})}
	e, out := newTestEngine(t, synth)
	ev := newEvents()

	e.Speak(ev.utterance("hello", ""))
	e.Cancel()

	ev.expectNone(t)
	if e.IsSpeaking() {
		t.Error("expected not speaking after cancel")
	}
	if len(out.Clips()) != 0 {
		t.Error("a cancelled utterance must not play")
	}
}

func TestCancelDuringPlayback(t *testing.T) {
	synth := &fakeSynth{}
	e, out := newTestEngine(t, synth)
	ev := newEvents()

	e.Speak(ev.utterance("hello", ""))
	ev.expect(t, "start")
	waitActive(t, out)

	e.Cancel()
	if out.IsActive() {
		t.Error("expected playback to stop")
	}
	if out.Complete(nil) {
		t.Error("a stopped clip cannot complete")
	}
	ev.expectNone(t)
}

func TestPauseResume(t *testing.T) {
	synth := &fakeSynth{}
	e, out := newTestEngine(t, synth)
	ev := newEvents()

	e.Speak(ev.utterance("hello", ""))
	ev.expect(t, "start")
	waitActive(t, out)

	e.Pause()
	if !e.IsPaused() || !e.IsSpeaking() || !out.IsPaused() {
		t.Error("expected a paused, speaking engine")
	}

	e.Resume()
	if e.IsPaused() || out.IsPaused() {
		t.Error("expected playback to continue")
	}

	out.Complete(nil)
	ev.expect(t, "end")
}

func TestPauseDuringSynthesisHoldsClip(t *testing.T) {
	synth := &fakeSynth{block: make(chan struct{})}
	e, out := newTestEngine(t, synth)
	ev := newEvents()

	e.Speak(ev.utterance("hello", ""))
	e.Pause()
	if !e.IsPaused() {
		t.Fatal("expected paused during synthesis")
	}

	close(synth.block)
	ev.expect(t, "start")
	waitActive(t, out)
	if !out.IsPaused() {
		t.Error("expected the clip to start paused")
	}
}

func TestPauseWhenIdle(t *testing.T) {
	e, out := newTestEngine(t, &fakeSynth{})

	e.Pause()
	if e.IsPaused() {
		t.Error("pausing an idle engine must do nothing")
	}
	if out.Metrics().PauseCount != 0 {
		t.Error("expected no pause at the output")
	}
}

func TestSpeakUsesCache(t *testing.T) {
	store, err := cache.Open(t.TempDir(), 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	synth := &fakeSynth{}
	e, out := newTestEngine(t, synth, WithStore(store))
	ev := newEvents()

	for range 2 {
		e.Speak(ev.utterance("cached text", ""))
		ev.expect(t, "start")
		waitActive(t, out)
		out.Complete(nil)
		ev.expect(t, "end")
	}

	if n := len(synth.Calls()); n != 1 {
		t.Errorf("expected 1 synthesis, got %d", n)
	}
	clips := out.Clips()
	if len(clips) != 2 || !bytes.Equal(clips[0], clips[1]) {
		t.Error("expected the cached clip to be replayed")
	}
}

func TestSpeakAfterClose(t *testing.T) {
	e, _ := newTestEngine(t, &fakeSynth{})
	ev := newEvents()

	if err := e.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	e.Speak(ev.utterance("hello", ""))
	ev.expect(t, "error: "+tts.ErrEngineUnavailable.Error())
}

func TestNewWithoutModels(t *testing.T) {
	cfg := tts.DefaultPiperConfig()
	cfg.DataDir = t.TempDir()

	_, err := New(cfg,
		WithSynthesizer((&fakeSynth{}).synthesize),
		WithOutput(audio.NewMockPlayer(22050)),
		WithLogger(log.New(io.Discard)))
	if !errors.Is(err, tts.ErrEngineUnavailable) {
		t.Errorf("expected ErrEngineUnavailable, got %v", err)
	}
}

func TestVoices(t *testing.T) {
	e, _ := newTestEngine(t, &fakeSynth{})

	got := e.Voices()
	if len(got) != 2 || got[0].ID != "en_US-a-medium" || got[1].Language != "de-DE" {
		t.Errorf("unexpected voices %+v", got)
	}
	if e.Name() != tts.EnginePiper {
		t.Errorf("expected name %q, got %q", tts.EnginePiper, e.Name())
	}
}

func TestArgs(t *testing.T) {
	cfg := tts.DefaultPiperConfig()
	m := Model{Path: "/m.onnx"}

	tests := []struct {
		name    string
		speed   float64
		speaker int
		want    []string
	}{
		{"normal speed", 1, 0, []string{"--length_scale", "1.000"}},
		{"double speed", 2, 0, []string{"--length_scale", "0.500"}},
		{"invalid speed", 0, 0, []string{"--length_scale", "1.000"}},
		{"speaker", 1, 3, []string{"--speaker", "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg
			c.SpeakerID = tt.speaker
			args := Args(c, m, tt.speed)

			if args[0] != "--model" || args[1] != "/m.onnx" || !slices.Contains(args, "--output-raw") {
				t.Errorf("missing model or raw output in %v", args)
			}
			i := slices.Index(args, tt.want[0])
			if i < 0 || i+1 >= len(args) || args[i+1] != tt.want[1] {
				t.Errorf("expected %v in %v", tt.want, args)
			}
		})
	}
}
