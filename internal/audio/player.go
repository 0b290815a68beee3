package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// ErrClosed is returned by Play after Close.
var ErrClosed = errors.New("audio player is closed")

// Output plays one clip at a time. onDone runs once per clip when it has
// been played to the end, with a non-nil error if the device failed. A
// clip replaced by Play or ended by Stop never reports.
type Output interface {
	Play(pcm []byte, onDone func(error)) error
	Pause()
	Resume()
	Stop()
	IsActive() bool // a clip is loaded, playing or paused
	IsPaused() bool
	SampleRate() int
	Close() error
}

// PlayerConfig contains configuration for the audio player.
type PlayerConfig struct {
	SampleRate   int           // device rate; clips are resampled to it
	Channels     int           // 1 = mono, 2 = stereo
	BufferSize   time.Duration // device buffer
	PollInterval time.Duration // end-of-clip detection interval
	Volume       float64       // 0.0 to 1.0
}

// DefaultPlayerConfig returns the default player configuration. 22050 Hz
// mono matches the output of most piper voices.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate:   22050,
		Channels:     1,
		BufferSize:   100 * time.Millisecond,
		PollInterval: 20 * time.Millisecond,
		Volume:       1.0,
	}
}

// supportedRates are the rates oto handles reliably across backends.
var supportedRates = []int{16000, 22050, 24000, 44100, 48000}

func validateConfig(config PlayerConfig) error {
	ok := false
	for _, r := range supportedRates {
		if config.SampleRate == r {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("sample rate must be one of %v, got %d", supportedRates, config.SampleRate)
	}

	if config.Channels != 1 && config.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", config.Channels)
	}

	if config.BufferSize <= 0 {
		return errors.New("buffer size must be positive")
	}

	if config.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}

	if config.Volume < 0.0 || config.Volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", config.Volume)
	}

	return nil
}

// oto allows a single context per process.
var (
	contextOnce   sync.Once
	sharedContext *oto.Context
	contextConfig PlayerConfig
	contextErr    error
)

func otoContext(config PlayerConfig) (*oto.Context, error) {
	contextOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   config.SampleRate,
			ChannelCount: config.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   config.BufferSize,
		})
		if err != nil {
			contextErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		sharedContext = ctx
		contextConfig = config
	})
	if contextErr != nil {
		return nil, contextErr
	}
	if contextConfig.SampleRate != config.SampleRate || contextConfig.Channels != config.Channels {
		return nil, fmt.Errorf("audio device already opened at %d Hz, %d channels",
			contextConfig.SampleRate, contextConfig.Channels)
	}
	return sharedContext, nil
}

// Player implements Output on the system audio device.
type Player struct {
	context *oto.Context
	config  PlayerConfig

	mu     sync.Mutex
	cur    *clip
	volume float64
	closed bool
}

// clip is one Play call. Its data stays referenced until the clip ends so
// the device never reads freed memory.
type clip struct {
	data    []byte
	reader  *eofReader
	player  *oto.Player
	paused  bool
	onDone  func(error)
	stopped chan struct{}
}

// eofReader records when the device has consumed every byte.
type eofReader struct {
	mu  sync.Mutex
	r   io.Reader
	eof bool
}

func (e *eofReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err == io.EOF {
		e.mu.Lock()
		e.eof = true
		e.mu.Unlock()
	}
	return n, err
}

func (e *eofReader) drained() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.eof
}

// NewPlayer opens the audio device.
func NewPlayer(config PlayerConfig) (*Player, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ctx, err := otoContext(config)
	if err != nil {
		return nil, err
	}

	return &Player{
		context: ctx,
		config:  config,
		volume:  config.Volume,
	}, nil
}

// Play replaces the current clip with pcm, which must be signed 16-bit
// little endian at the player's sample rate and channel count.
func (p *Player) Play(pcm []byte, onDone func(error)) error {
	if len(pcm) == 0 {
		return errors.New("audio data is empty")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	p.stopLocked()

	data := make([]byte, len(pcm))
	copy(data, pcm)

	c := &clip{
		data:    data,
		reader:  &eofReader{r: bytes.NewReader(data)},
		onDone:  onDone,
		stopped: make(chan struct{}),
	}
	c.player = p.context.NewPlayer(c.reader)
	c.player.SetVolume(p.volume)
	c.player.Play()
	p.cur = c

	go p.watch(c)
	return nil
}

// watch reports the end of c once the device has drained it.
func (p *Player) watch(c *clip) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopped:
			return
		case <-ticker.C:
		}

		p.mu.Lock()
		if p.cur != c {
			p.mu.Unlock()
			return
		}
		err := c.player.Err()
		finished := err != nil || (!c.paused && c.reader.drained() && !c.player.IsPlaying())
		if !finished {
			p.mu.Unlock()
			continue
		}
		p.cur = nil
		_ = c.player.Close()
		p.mu.Unlock()

		if c.onDone != nil {
			c.onDone(err)
		}
		return
	}
}

// Pause suspends the current clip.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cur == nil || p.cur.paused {
		return
	}
	p.cur.player.Pause()
	p.cur.paused = true
}

// Resume continues a paused clip.
func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cur == nil || !p.cur.paused {
		return
	}
	p.cur.player.Play()
	p.cur.paused = false
}

// Stop discards the current clip without reporting it.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Player) stopLocked() {
	if p.cur == nil {
		return
	}
	close(p.cur.stopped)
	p.cur.player.Pause()
	_ = p.cur.player.Close()
	p.cur = nil
}

// IsActive implements Output.
func (p *Player) IsActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur != nil
}

// IsPaused implements Output.
func (p *Player) IsPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur != nil && p.cur.paused
}

// SampleRate returns the device sample rate.
func (p *Player) SampleRate() int {
	return p.config.SampleRate
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (p *Player) SetVolume(volume float64) error {
	if volume < 0.0 || volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", volume)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.volume = volume
	if p.cur != nil {
		p.cur.player.SetVolume(volume)
	}
	return nil
}

// Volume returns the current volume.
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Close stops playback. The device itself stays open for the life of the
// process, as oto cannot reopen it.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.closed = true
	return nil
}
