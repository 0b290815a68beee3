// Package engines builds the configured speech engine, falling back along
// piper, espeak and the simulated mock engine when one is unavailable.
package engines

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/internal/cache"
	"github.com/dgnsrekt/narrate/tts"
	"github.com/dgnsrekt/narrate/tts/engines/espeak"
	"github.com/dgnsrekt/narrate/tts/engines/mock"
	"github.com/dgnsrekt/narrate/tts/engines/piper"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
)

// MaxPrimaryFailures is how many consecutive piper failures switch an
// auto-selected engine to its fallback.
const MaxPrimaryFailures = 3

// Builder constructs one kind of engine.
type Builder func(cfg tts.Config, logger *log.Logger) (tts.Engine, error)

var builders = map[string]Builder{
	tts.EnginePiper:  buildPiper,
	tts.EngineEspeak: buildEspeak,
	tts.EngineMock:   buildMock,
}

// chains lists the engines tried, in order, for each setting.
var chains = map[string][]string{
	tts.EngineAuto:   {tts.EnginePiper, tts.EngineEspeak, tts.EngineMock},
	tts.EnginePiper:  {tts.EnginePiper, tts.EngineEspeak, tts.EngineMock},
	tts.EngineEspeak: {tts.EngineEspeak, tts.EngineMock},
	tts.EngineMock:   {tts.EngineMock},
}

// New builds the engine named by cfg.Engine. When it is unavailable the
// next engine of its chain is tried and the reason logged. With the auto
// setting a working piper engine is wrapped so that repeated synthesis
// failures switch to the next available engine at runtime.
func New(cfg tts.Config, logger *log.Logger) (tts.Engine, error) {
	if logger == nil {
		logger = log.Default()
	}

	chain, ok := chains[cfg.Engine]
	if !ok {
		return nil, fmt.Errorf("%w: unknown engine %q", tts.ErrInvalidArgument, cfg.Engine)
	}

	var errs []error
	for i, name := range chain {
		engine, err := builders[name](cfg, logger)
		if err != nil {
			logger.Warn("Engine unavailable", "engine", name, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if i > 0 {
			logger.Info("Using fallback engine", "engine", name, "wanted", cfg.Engine)
		}

		if cfg.Engine == tts.EngineAuto && name == tts.EnginePiper {
			if fb := first(cfg, logger, chain[i+1:]); fb != nil {
				return NewFallbackEngine(engine, fb, MaxPrimaryFailures, logger), nil
			}
		}
		return engine, nil
	}

	return nil, fmt.Errorf("no speech engine available: %w", errors.Join(errs...))
}

// first returns the first engine of names that builds.
func first(cfg tts.Config, logger *log.Logger, names []string) tts.Engine {
	for _, name := range names {
		engine, err := builders[name](cfg, logger)
		if err == nil {
			return engine
		}
		logger.Debug("Fallback engine unavailable", "engine", name, "err", err)
	}
	return nil
}

func buildPiper(cfg tts.Config, logger *log.Logger) (tts.Engine, error) {
	opts := []piper.Option{piper.WithLogger(logger)}

	var store *cache.DiskCache
	if cfg.Cache.Enabled {
		dir, err := CacheDir(cfg.Cache)
		if err != nil {
			return nil, err
		}
		store, err = cache.Open(dir, cfg.Cache.MaxSize, cfg.Cache.CompressionLevel)
		if err != nil {
			logger.Warn("Audio cache disabled", "err", err)
		} else {
			opts = append(opts, piper.WithStore(store))
		}
	}

	e, err := piper.New(cfg.Piper, opts...)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}
	return e, nil
}

func buildEspeak(cfg tts.Config, logger *log.Logger) (tts.Engine, error) {
	e, err := espeak.New(cfg.Espeak, espeak.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return e, nil
}

func buildMock(cfg tts.Config, _ *log.Logger) (tts.Engine, error) {
	return mock.NewSimulated(cfg.Mock), nil
}

// CacheDir returns the audio cache directory: the configured one with ~
// expanded, or "audio" below the user cache directory.
func CacheDir(cfg tts.CacheConfig) (string, error) {
	if cfg.Dir != "" {
		return homedir.Expand(cfg.Dir)
	}
	dir, err := gap.NewScope(gap.User, "narrate").CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "audio"), nil
}
