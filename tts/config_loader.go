package tts

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// LoadConfigFromViper loads narration configuration from Viper. Keys live
// at the top level of the config file, engine sections below their name.
func LoadConfigFromViper() (Config, error) {
	cfg := DefaultConfig()

	if viper.IsSet("engine") {
		cfg.Engine = viper.GetString("engine")
	}
	if viper.IsSet("voice") {
		cfg.Voice = viper.GetString("voice")
	}
	if viper.IsSet("rate") {
		cfg.Rate = viper.GetFloat64("rate")
	}
	if viper.IsSet("chunk_size") {
		cfg.ChunkSize = viper.GetInt("chunk_size")
	}
	if viper.IsSet("skip_code_blocks") {
		cfg.SkipCodeBlocks = viper.GetBool("skip_code_blocks")
	}

	cfg.Piper = loadPiperConfig()
	cfg.Espeak = loadEspeakConfig()
	cfg.Mock = loadMockConfig()
	cfg.Cache = loadCacheConfig()

	// Validate the loaded configuration
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadPiperConfig loads Piper-specific configuration from Viper.
func loadPiperConfig() PiperConfig {
	cfg := DefaultPiperConfig()

	if viper.IsSet("piper.binary") {
		cfg.Binary = viper.GetString("piper.binary")
	}
	if viper.IsSet("piper.data_dir") {
		cfg.DataDir = viper.GetString("piper.data_dir")
	}
	if viper.IsSet("piper.speaker_id") {
		cfg.SpeakerID = viper.GetInt("piper.speaker_id")
	}
	if viper.IsSet("piper.noise_scale") {
		cfg.NoiseScale = viper.GetFloat64("piper.noise_scale")
	}
	if viper.IsSet("piper.noise_w") {
		cfg.NoiseW = viper.GetFloat64("piper.noise_w")
	}
	if viper.IsSet("piper.sentence_silence") {
		if d, err := time.ParseDuration(viper.GetString("piper.sentence_silence")); err == nil {
			cfg.SentenceSilence = d
		}
	}
	if viper.IsSet("piper.timeout") {
		if d, err := time.ParseDuration(viper.GetString("piper.timeout")); err == nil {
			cfg.Timeout = d
		}
	}
	if viper.IsSet("piper.requests_per_minute") {
		cfg.RequestsPerMinute = viper.GetInt("piper.requests_per_minute")
	}
	if viper.IsSet("piper.volume") {
		cfg.Volume = viper.GetFloat64("piper.volume")
	}

	return cfg
}

// loadEspeakConfig loads espeak-specific configuration from Viper.
func loadEspeakConfig() EspeakConfig {
	cfg := DefaultEspeakConfig()

	if viper.IsSet("espeak.binary") {
		cfg.Binary = viper.GetString("espeak.binary")
	}
	if viper.IsSet("espeak.words_per_minute") {
		cfg.WordsPerMinute = viper.GetInt("espeak.words_per_minute")
	}

	return cfg
}

// loadMockConfig loads mock engine configuration from Viper.
func loadMockConfig() MockConfig {
	cfg := DefaultMockConfig()

	if viper.IsSet("mock.words_per_minute") {
		cfg.WordsPerMinute = viper.GetInt("mock.words_per_minute")
	}
	if viper.IsSet("mock.failure_rate") {
		cfg.FailureRate = viper.GetFloat64("mock.failure_rate")
	}

	return cfg
}

// loadCacheConfig loads audio cache configuration from Viper.
func loadCacheConfig() CacheConfig {
	cfg := DefaultCacheConfig()

	if viper.IsSet("cache.enabled") {
		cfg.Enabled = viper.GetBool("cache.enabled")
	}
	if viper.IsSet("cache.dir") {
		cfg.Dir = viper.GetString("cache.dir")
	}
	if viper.IsSet("cache.max_size") {
		cfg.MaxSize = viper.GetInt64("cache.max_size")
	}
	if viper.IsSet("cache.compression_level") {
		cfg.CompressionLevel = viper.GetInt("cache.compression_level")
	}

	return cfg
}

// SetDefaults sets default values in Viper for every configuration key.
func SetDefaults() {
	defaults := DefaultConfig()

	viper.SetDefault("engine", defaults.Engine)
	viper.SetDefault("voice", defaults.Voice)
	viper.SetDefault("rate", defaults.Rate)
	viper.SetDefault("chunk_size", defaults.ChunkSize)
	viper.SetDefault("skip_code_blocks", defaults.SkipCodeBlocks)

	// Piper defaults
	viper.SetDefault("piper.binary", defaults.Piper.Binary)
	viper.SetDefault("piper.data_dir", defaults.Piper.DataDir)
	viper.SetDefault("piper.speaker_id", defaults.Piper.SpeakerID)
	viper.SetDefault("piper.noise_scale", defaults.Piper.NoiseScale)
	viper.SetDefault("piper.noise_w", defaults.Piper.NoiseW)
	viper.SetDefault("piper.sentence_silence", defaults.Piper.SentenceSilence.String())
	viper.SetDefault("piper.timeout", defaults.Piper.Timeout.String())
	viper.SetDefault("piper.requests_per_minute", defaults.Piper.RequestsPerMinute)
	viper.SetDefault("piper.volume", defaults.Piper.Volume)

	// espeak defaults
	viper.SetDefault("espeak.binary", defaults.Espeak.Binary)
	viper.SetDefault("espeak.words_per_minute", defaults.Espeak.WordsPerMinute)

	// Mock defaults
	viper.SetDefault("mock.words_per_minute", defaults.Mock.WordsPerMinute)
	viper.SetDefault("mock.failure_rate", defaults.Mock.FailureRate)

	// Cache defaults
	viper.SetDefault("cache.enabled", defaults.Cache.Enabled)
	viper.SetDefault("cache.dir", defaults.Cache.Dir)
	viper.SetDefault("cache.max_size", defaults.Cache.MaxSize)
	viper.SetDefault("cache.compression_level", defaults.Cache.CompressionLevel)
}
