package tts

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Engine names accepted in the configuration. EngineAuto tries piper,
// then espeak, then falls back to the mock engine.
const (
	EngineAuto   = "auto"
	EnginePiper  = "piper"
	EngineEspeak = "espeak"
	EngineMock   = "mock"
)

// Engines lists every valid engine setting.
var Engines = []string{EngineAuto, EnginePiper, EngineEspeak, EngineMock}

// Rate bounds accepted from configuration and the UI.
const (
	MinRate = 0.25
	MaxRate = 4.0
)

// DefaultChunkSize is the segment size, in runes, used when none is
// configured.
const DefaultChunkSize = 1000

// Config contains all narration options.
type Config struct {
	Engine    string  `yaml:"engine"`
	Voice     string  `yaml:"voice"`
	Rate      float64 `yaml:"rate"`
	ChunkSize int     `yaml:"chunk_size"`

	// Text extraction
	SkipCodeBlocks bool `yaml:"skip_code_blocks"`

	// Engine-specific configurations
	Piper  PiperConfig  `yaml:"piper"`
	Espeak EspeakConfig `yaml:"espeak"`
	Mock   MockConfig   `yaml:"mock"`
	Cache  CacheConfig  `yaml:"cache"`
}

// PiperConfig contains Piper engine specific settings.
type PiperConfig struct {
	Binary            string        `yaml:"binary"`
	DataDir           string        `yaml:"data_dir"`
	SpeakerID         int           `yaml:"speaker_id"`
	NoiseScale        float64       `yaml:"noise_scale"`
	NoiseW            float64       `yaml:"noise_w"`
	SentenceSilence   time.Duration `yaml:"sentence_silence"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Volume            float64       `yaml:"volume"`
}

// EspeakConfig contains settings for the espeak-ng / say engine.
type EspeakConfig struct {
	// Binary overrides the detected program. Empty means espeak-ng,
	// espeak or say, whichever is found first.
	Binary         string `yaml:"binary"`
	WordsPerMinute int    `yaml:"words_per_minute"`
}

// MockConfig contains settings for the simulated engine.
type MockConfig struct {
	WordsPerMinute int     `yaml:"words_per_minute"`
	FailureRate    float64 `yaml:"failure_rate"`
}

// CacheConfig controls the synthesized audio cache.
type CacheConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Dir              string `yaml:"dir"`
	MaxSize          int64  `yaml:"max_size"`
	CompressionLevel int    `yaml:"compression_level"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Engine:    EngineAuto,
		Rate:      DefaultRate,
		ChunkSize: DefaultChunkSize,

		Piper:  DefaultPiperConfig(),
		Espeak: DefaultEspeakConfig(),
		Mock:   DefaultMockConfig(),
		Cache:  DefaultCacheConfig(),
	}
}

// DefaultPiperConfig returns default Piper configuration.
func DefaultPiperConfig() PiperConfig {
	cfg := PiperConfig{
		Binary:            "piper",
		NoiseScale:        0.667,
		NoiseW:            0.8,
		SentenceSilence:   200 * time.Millisecond,
		Timeout:           30 * time.Second,
		RequestsPerMinute: 120,
		Volume:            1.0,
	}

	// Try to detect common Piper installation paths
	if runtime.GOOS == "linux" {
		cfg.DataDir = filepath.Join("/usr", "share", "piper")
	} else if runtime.GOOS == "darwin" {
		cfg.DataDir = filepath.Join("/usr", "local", "share", "piper")
	}

	return cfg
}

// DefaultEspeakConfig returns default espeak configuration.
func DefaultEspeakConfig() EspeakConfig {
	return EspeakConfig{
		WordsPerMinute: 175,
	}
}

// DefaultMockConfig returns default mock configuration.
func DefaultMockConfig() MockConfig {
	return MockConfig{
		WordsPerMinute: 150,
		FailureRate:    0.0,
	}
}

// DefaultCacheConfig returns default cache configuration. An empty Dir
// means the user cache directory.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:          true,
		MaxSize:          100 << 20,
		CompressionLevel: 3,
	}
}

// Validate checks if the configuration is valid. Engine names are
// lower-cased in place.
func (c *Config) Validate() error {
	engineValid := false
	for _, e := range Engines {
		if strings.EqualFold(c.Engine, e) {
			engineValid = true
			c.Engine = e
			break
		}
	}
	if !engineValid {
		return fmt.Errorf("invalid engine '%s': must be one of %v", c.Engine, Engines)
	}

	if c.Rate < MinRate || c.Rate > MaxRate {
		return fmt.Errorf("rate must be between %.2f and %.2f, got %f", MinRate, MaxRate, c.Rate)
	}

	if c.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}

	if err := c.Piper.Validate(); err != nil {
		return fmt.Errorf("piper config: %w", err)
	}
	if err := c.Espeak.Validate(); err != nil {
		return fmt.Errorf("espeak config: %w", err)
	}
	if err := c.Mock.Validate(); err != nil {
		return fmt.Errorf("mock config: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	return nil
}

// Validate checks if the Piper configuration is valid.
func (c *PiperConfig) Validate() error {
	if c.Binary == "" {
		return fmt.Errorf("piper binary path cannot be empty")
	}

	if c.NoiseScale < 0 || c.NoiseScale > 2.0 {
		return fmt.Errorf("noise_scale must be between 0.0 and 2.0, got %f", c.NoiseScale)
	}

	if c.NoiseW < 0 || c.NoiseW > 2.0 {
		return fmt.Errorf("noise_w must be between 0.0 and 2.0, got %f", c.NoiseW)
	}

	if c.Timeout < time.Second {
		return fmt.Errorf("timeout must be at least 1 second, got %v", c.Timeout)
	}

	if c.RequestsPerMinute < 1 {
		return fmt.Errorf("requests_per_minute must be positive, got %d", c.RequestsPerMinute)
	}

	if c.Volume < 0.0 || c.Volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", c.Volume)
	}

	return nil
}

// Validate checks if the espeak configuration is valid.
func (c *EspeakConfig) Validate() error {
	if c.WordsPerMinute < 80 || c.WordsPerMinute > 450 {
		return fmt.Errorf("words_per_minute must be between 80 and 450, got %d", c.WordsPerMinute)
	}
	return nil
}

// Validate checks if the mock configuration is valid.
func (c *MockConfig) Validate() error {
	if c.WordsPerMinute < 50 || c.WordsPerMinute > 500 {
		return fmt.Errorf("words_per_minute must be between 50 and 500, got %d", c.WordsPerMinute)
	}

	if c.FailureRate < 0.0 || c.FailureRate > 1.0 {
		return fmt.Errorf("failure_rate must be between 0.0 and 1.0, got %f", c.FailureRate)
	}

	return nil
}

// Validate checks if the cache configuration is valid.
func (c *CacheConfig) Validate() error {
	if c.MaxSize < 0 {
		return fmt.Errorf("max_size cannot be negative, got %d", c.MaxSize)
	}
	if c.CompressionLevel < 1 || c.CompressionLevel > 22 {
		return fmt.Errorf("compression_level must be between 1 and 22, got %d", c.CompressionLevel)
	}
	return nil
}
