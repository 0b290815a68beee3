package audio

import (
	"errors"
	"testing"
)

var (
	_ Output = (*MockPlayer)(nil)
	_ Output = (*Player)(nil)
)

func TestMockPlayerCompletes(t *testing.T) {
	mp := NewMockPlayer(22050)

	var got error = errors.New("not called")
	if err := mp.Play([]byte{1, 2}, func(err error) { got = err }); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if !mp.IsActive() {
		t.Error("expected active clip")
	}

	if !mp.Complete(nil) {
		t.Fatal("Complete() should report an active clip")
	}
	if got != nil {
		t.Errorf("expected nil completion, got %v", got)
	}
	if mp.IsActive() {
		t.Error("expected no active clip after completion")
	}
	if mp.Complete(nil) {
		t.Error("Complete() with nothing active should report false")
	}
}

func TestMockPlayerStopSuppressesCompletion(t *testing.T) {
	mp := NewMockPlayer(22050)

	called := false
	_ = mp.Play([]byte{1, 2}, func(error) { called = true })
	mp.Stop()

	if mp.Complete(nil) {
		t.Error("a stopped clip cannot complete")
	}
	if called {
		t.Error("stop must not report completion")
	}
}

func TestMockPlayerPauseResume(t *testing.T) {
	tests := []struct {
		name       string
		play       bool
		wantPaused bool
	}{
		{"with clip", true, true},
		{"without clip", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mp := NewMockPlayer(22050)
			if tt.play {
				_ = mp.Play([]byte{1, 2}, nil)
			}

			mp.Pause()
			if mp.IsPaused() != tt.wantPaused {
				t.Errorf("IsPaused() = %v, want %v", mp.IsPaused(), tt.wantPaused)
			}
			mp.Resume()
			if mp.IsPaused() {
				t.Error("expected not paused after resume")
			}

			m := mp.Metrics()
			if m.PauseCount != 1 || m.ResumeCount != 1 {
				t.Errorf("unexpected metrics %+v", m)
			}
		})
	}
}

func TestMockPlayerErrors(t *testing.T) {
	mp := NewMockPlayer(22050)

	if err := mp.Play(nil, nil); err == nil {
		t.Error("expected error for empty audio")
	}

	boom := errors.New("device lost")
	mp.FailPlay(boom)
	if err := mp.Play([]byte{1, 2}, nil); !errors.Is(err, boom) {
		t.Errorf("expected %v, got %v", boom, err)
	}

	mp.FailPlay(nil)
	_ = mp.Close()
	if err := mp.Play([]byte{1, 2}, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestMockPlayerCopiesClips(t *testing.T) {
	mp := NewMockPlayer(16000)
	pcm := []byte{1, 2, 3, 4}
	_ = mp.Play(pcm, nil)
	pcm[0] = 9

	clips := mp.Clips()
	if len(clips) != 1 || clips[0][0] != 1 {
		t.Errorf("expected the clip to be copied, got %v", clips)
	}
	if mp.SampleRate() != 16000 {
		t.Errorf("expected sample rate 16000, got %d", mp.SampleRate())
	}
}
