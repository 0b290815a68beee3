package piper

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dgnsrekt/narrate/tts/voice"
)

// Model is one installed Piper voice.
type Model struct {
	Path       string
	SampleRate int
	Voice      voice.Voice
}

// modelConfig is the subset of the .onnx.json file we read.
type modelConfig struct {
	Dataset  string `json:"dataset"`
	Language struct {
		Code string `json:"code"`
	} `json:"language"`
	Audio struct {
		SampleRate int    `json:"sample_rate"`
		Quality    string `json:"quality"`
	} `json:"audio"`
}

// ScanModels finds every *.onnx model below dir that has a readable
// sibling .onnx.json config. Models are sorted by ID.
func ScanModels(dir string) ([]Model, error) {
	var models []Model

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".onnx") {
			return nil
		}
		m, err := loadModel(path)
		if err != nil {
			// A model without a usable config cannot be played back.
			return nil
		}
		models = append(models, m)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	sort.Slice(models, func(i, j int) bool {
		return models[i].Voice.ID < models[j].Voice.ID
	})
	return models, nil
}

func loadModel(path string) (Model, error) {
	data, err := os.ReadFile(path + ".json")
	if err != nil {
		return Model{}, err
	}

	var cfg modelConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Model{}, fmt.Errorf("%s: %w", path+".json", err)
	}
	if cfg.Audio.SampleRate <= 0 {
		return Model{}, fmt.Errorf("%s: missing audio.sample_rate", path+".json")
	}

	id := strings.TrimSuffix(filepath.Base(path), ".onnx")
	return Model{
		Path:       path,
		SampleRate: cfg.Audio.SampleRate,
		Voice: voice.Voice{
			ID:       id,
			Name:     displayName(id, cfg),
			Language: voice.CanonicalTag(cfg.Language.Code),
		},
	}, nil
}

// displayName turns "en_US-lessac-medium" into "Lessac (medium)".
func displayName(id string, cfg modelConfig) string {
	name := cfg.Dataset
	quality := cfg.Audio.Quality

	parts := strings.Split(id, "-")
	if name == "" && len(parts) >= 2 {
		name = parts[1]
	}
	if quality == "" && len(parts) >= 3 {
		quality = parts[2]
	}
	if name == "" {
		return id
	}

	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ToUpper(name[:1]) + name[1:]
	if quality != "" {
		name += " (" + quality + ")"
	}
	return name
}

func findModel(models []Model, id string) (Model, bool) {
	for _, m := range models {
		if m.Voice.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

func voices(models []Model) []voice.Voice {
	out := make([]voice.Voice, len(models))
	for i, m := range models {
		out[i] = m.Voice
	}
	return out
}
