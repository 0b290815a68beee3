package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const defaultConfig = `# speech engine: auto, piper, espeak or mock
engine: "auto"
# voice ID or name; empty picks the best English voice
voice: ""
# speech rate, 0.25 to 4.0
rate: 1.0
# maximum characters per spoken segment
chunk_size: 1000
# do not read markdown code blocks aloud
skip_code_blocks: false

# style name or JSON path (default "auto")
style: "auto"
# word-wrap at width, 0 fits the terminal
width: 0
# display with tui; narrate headless when false
tui: true
# mouse support (TUI-mode only)
mouse: false

# Piper neural voices
piper:
  binary: "piper"
  # directory searched for *.onnx voice models
  # data_dir: "~/.local/share/piper"
  speaker_id: 0
  noise_scale: 0.667
  noise_w: 0.8
  sentence_silence: "200ms"
  timeout: "30s"
  requests_per_minute: 120
  volume: 1.0

# espeak-ng, espeak or say
espeak:
  # binary: "espeak-ng"
  words_per_minute: 175

# simulated engine, for demos
mock:
  words_per_minute: 150
  failure_rate: 0.0

# synthesized audio cache
cache:
  enabled: true
  # dir: "~/.cache/narrate/audio"
  max_size: 104857600
  compression_level: 3
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the narrate config file",
	Long:    paragraph(fmt.Sprintf("\n%s the narrate config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("narrate config\nnarrate config --config path/to/config.yml\nnarrate config dump"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("Narrate", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the effective narration config as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return dumpConfig(cmd.OutOrStdout())
	},
}

func init() {
	configCmd.AddCommand(configDumpCmd)
}

func dumpConfig(w io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("unable to encode config: %w", err)
	}
	return enc.Close() //nolint:wrapcheck
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
	}
	if configFile == "" {
		configFile = defaultConfigFile
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
