package tts

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// TestDefaultConfig tests that default configuration is valid.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}

	if cfg.Engine != EngineAuto {
		t.Errorf("Default engine should be auto, got %s", cfg.Engine)
	}
	if cfg.ChunkSize != DefaultChunkSize {
		t.Errorf("Default chunk size should be %d, got %d", DefaultChunkSize, cfg.ChunkSize)
	}
	if cfg.Rate != DefaultRate {
		t.Errorf("Default rate should be %v, got %v", DefaultRate, cfg.Rate)
	}
}

// TestConfigValidation tests configuration validation.
func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			modify: func(c *Config) {},
		},
		{
			name: "engine name is case insensitive",
			modify: func(c *Config) {
				c.Engine = "ESpeak"
			},
		},
		{
			name: "invalid engine",
			modify: func(c *Config) {
				c.Engine = "invalid"
			},
			wantErr: true,
			errMsg:  "invalid engine",
		},
		{
			name: "rate too high",
			modify: func(c *Config) {
				c.Rate = 5
			},
			wantErr: true,
			errMsg:  "rate must be between",
		},
		{
			name: "zero rate",
			modify: func(c *Config) {
				c.Rate = 0
			},
			wantErr: true,
			errMsg:  "rate must be between",
		},
		{
			name: "zero chunk size",
			modify: func(c *Config) {
				c.ChunkSize = 0
			},
			wantErr: true,
			errMsg:  "chunk_size must be positive",
		},
		{
			name: "empty piper binary",
			modify: func(c *Config) {
				c.Piper.Binary = ""
			},
			wantErr: true,
			errMsg:  "piper config",
		},
		{
			name: "espeak words per minute too low",
			modify: func(c *Config) {
				c.Espeak.WordsPerMinute = 10
			},
			wantErr: true,
			errMsg:  "espeak config",
		},
		{
			name: "mock failure rate too high",
			modify: func(c *Config) {
				c.Mock.FailureRate = 2
			},
			wantErr: true,
			errMsg:  "mock config",
		},
		{
			name: "cache compression level out of range",
			modify: func(c *Config) {
				c.Cache.CompressionLevel = 30
			},
			wantErr: true,
			errMsg:  "cache config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %v, want message containing %q", err, tt.errMsg)
			}
		})
	}
}

func TestConfigValidationNormalizesEngine(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine = "PIPER"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Engine != EnginePiper {
		t.Errorf("Engine = %q, want %q", cfg.Engine, EnginePiper)
	}
}

// TestPiperConfigValidation tests Piper configuration validation.
func TestPiperConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*PiperConfig)
		wantErr bool
	}{
		{"valid config", func(c *PiperConfig) {}, false},
		{"noise scale too high", func(c *PiperConfig) { c.NoiseScale = 3 }, true},
		{"negative noise w", func(c *PiperConfig) { c.NoiseW = -1 }, true},
		{"timeout too short", func(c *PiperConfig) { c.Timeout = time.Millisecond }, true},
		{"no throttle budget", func(c *PiperConfig) { c.RequestsPerMinute = 0 }, true},
		{"volume too loud", func(c *PiperConfig) { c.Volume = 1.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultPiperConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestMockConfigValidation tests mock configuration validation.
func TestMockConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  MockConfig
		wantErr bool
	}{
		{
			name:   "valid config",
			config: DefaultMockConfig(),
		},
		{
			name:    "wpm too low",
			config:  MockConfig{WordsPerMinute: 30},
			wantErr: true,
		},
		{
			name:    "wpm too high",
			config:  MockConfig{WordsPerMinute: 600},
			wantErr: true,
		},
		{
			name:    "failure rate negative",
			config:  MockConfig{WordsPerMinute: 150, FailureRate: -0.1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

// TestLoadConfigFromViper tests loading configuration from Viper.
func TestLoadConfigFromViper(t *testing.T) {
	resetViper(t)

	viper.Set("engine", "espeak")
	viper.Set("voice", "en-gb")
	viper.Set("rate", 1.5)
	viper.Set("chunk_size", 500)
	viper.Set("skip_code_blocks", true)
	viper.Set("piper.data_dir", "/opt/voices")
	viper.Set("espeak.words_per_minute", 200)
	viper.Set("mock.failure_rate", 0.5)
	viper.Set("cache.enabled", false)
	viper.Set("cache.max_size", 1024)

	cfg, err := LoadConfigFromViper()
	if err != nil {
		t.Fatalf("LoadConfigFromViper() error = %v", err)
	}

	if cfg.Engine != EngineEspeak {
		t.Errorf("Engine = %v, want espeak", cfg.Engine)
	}
	if cfg.Voice != "en-gb" {
		t.Errorf("Voice = %v, want en-gb", cfg.Voice)
	}
	if cfg.Rate != 1.5 {
		t.Errorf("Rate = %v, want 1.5", cfg.Rate)
	}
	if cfg.ChunkSize != 500 {
		t.Errorf("ChunkSize = %v, want 500", cfg.ChunkSize)
	}
	if !cfg.SkipCodeBlocks {
		t.Error("SkipCodeBlocks should be true")
	}
	if cfg.Piper.DataDir != "/opt/voices" {
		t.Errorf("Piper.DataDir = %v, want /opt/voices", cfg.Piper.DataDir)
	}
	if cfg.Espeak.WordsPerMinute != 200 {
		t.Errorf("Espeak.WordsPerMinute = %v, want 200", cfg.Espeak.WordsPerMinute)
	}
	if cfg.Mock.FailureRate != 0.5 {
		t.Errorf("Mock.FailureRate = %v, want 0.5", cfg.Mock.FailureRate)
	}
	if cfg.Cache.Enabled {
		t.Error("Cache should be disabled")
	}
	if cfg.Cache.MaxSize != 1024 {
		t.Errorf("Cache.MaxSize = %v, want 1024", cfg.Cache.MaxSize)
	}
}

// TestLoadConfigDurationParsing tests duration parsing from Viper.
func TestLoadConfigDurationParsing(t *testing.T) {
	resetViper(t)

	viper.Set("piper.sentence_silence", "500ms")
	viper.Set("piper.timeout", "1m")

	cfg, err := LoadConfigFromViper()
	if err != nil {
		t.Fatalf("LoadConfigFromViper() error = %v", err)
	}

	if cfg.Piper.SentenceSilence != 500*time.Millisecond {
		t.Errorf("Piper.SentenceSilence = %v, want 500ms", cfg.Piper.SentenceSilence)
	}
	if cfg.Piper.Timeout != time.Minute {
		t.Errorf("Piper.Timeout = %v, want 1m", cfg.Piper.Timeout)
	}
}

func TestLoadConfigFromViperInvalid(t *testing.T) {
	resetViper(t)

	viper.Set("chunk_size", -1)

	if _, err := LoadConfigFromViper(); err == nil {
		t.Error("Expected an error for a negative chunk size")
	}
}

// TestSetDefaults tests that SetDefaults properly sets Viper defaults.
func TestSetDefaults(t *testing.T) {
	resetViper(t)

	SetDefaults()

	if got := viper.GetString("engine"); got != EngineAuto {
		t.Errorf("engine = %v, want auto", got)
	}
	if got := viper.GetInt("chunk_size"); got != DefaultChunkSize {
		t.Errorf("chunk_size = %v, want %d", got, DefaultChunkSize)
	}
	if got := viper.GetString("piper.binary"); got != "piper" {
		t.Errorf("piper.binary = %v, want piper", got)
	}
	if got := viper.GetInt("espeak.words_per_minute"); got != 175 {
		t.Errorf("espeak.words_per_minute = %v, want 175", got)
	}

	cfg, err := LoadConfigFromViper()
	if err != nil {
		t.Fatalf("LoadConfigFromViper() with defaults error = %v", err)
	}
	if cfg.Piper.Timeout != 30*time.Second {
		t.Errorf("Piper.Timeout = %v, want 30s", cfg.Piper.Timeout)
	}
}
