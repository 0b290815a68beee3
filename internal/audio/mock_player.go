package audio

import (
	"errors"
	"sync"
)

// MockPlayer implements Output for tests. Clips never end on their own;
// call Complete to finish the current one.
type MockPlayer struct {
	mu sync.Mutex

	sampleRate int
	clips      [][]byte
	onDone     func(error)
	active     bool
	paused     bool
	closed     bool
	playErr    error

	pauseCount  int
	resumeCount int
	stopCount   int
}

// NewMockPlayer creates a mock player reporting the given sample rate.
func NewMockPlayer(sampleRate int) *MockPlayer {
	return &MockPlayer{sampleRate: sampleRate}
}

// Play implements Output.
func (mp *MockPlayer) Play(pcm []byte, onDone func(error)) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.closed {
		return ErrClosed
	}
	if mp.playErr != nil {
		return mp.playErr
	}
	if len(pcm) == 0 {
		return errors.New("audio data is empty")
	}

	data := make([]byte, len(pcm))
	copy(data, pcm)
	mp.clips = append(mp.clips, data)
	mp.onDone = onDone
	mp.active = true
	mp.paused = false
	return nil
}

// Pause implements Output.
func (mp *MockPlayer) Pause() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pauseCount++
	if mp.active {
		mp.paused = true
	}
}

// Resume implements Output.
func (mp *MockPlayer) Resume() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.resumeCount++
	mp.paused = false
}

// Stop implements Output.
func (mp *MockPlayer) Stop() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.stopCount++
	mp.active = false
	mp.paused = false
	mp.onDone = nil
}

// IsActive implements Output.
func (mp *MockPlayer) IsActive() bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.active
}

// IsPaused implements Output.
func (mp *MockPlayer) IsPaused() bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.paused
}

// SampleRate implements Output.
func (mp *MockPlayer) SampleRate() int {
	return mp.sampleRate
}

// Close implements Output.
func (mp *MockPlayer) Close() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.closed = true
	mp.active = false
	mp.onDone = nil
	return nil
}

// Complete ends the current clip with err. It reports false when no clip
// is active.
func (mp *MockPlayer) Complete(err error) bool {
	mp.mu.Lock()
	if !mp.active {
		mp.mu.Unlock()
		return false
	}
	done := mp.onDone
	mp.active = false
	mp.paused = false
	mp.onDone = nil
	mp.mu.Unlock()

	if done != nil {
		done(err)
	}
	return true
}

// FailPlay makes subsequent Play calls return err.
func (mp *MockPlayer) FailPlay(err error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.playErr = err
}

// Clips returns every clip passed to Play.
func (mp *MockPlayer) Clips() [][]byte {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return append([][]byte(nil), mp.clips...)
}

// MockPlayerMetrics counts the calls made on a MockPlayer.
type MockPlayerMetrics struct {
	PlayCount   int
	PauseCount  int
	ResumeCount int
	StopCount   int
}

// Metrics returns call counts.
func (mp *MockPlayer) Metrics() MockPlayerMetrics {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	return MockPlayerMetrics{
		PlayCount:   len(mp.clips),
		PauseCount:  mp.pauseCount,
		ResumeCount: mp.resumeCount,
		StopCount:   mp.stopCount,
	}
}
