// Package main provides the entry point for the narrate CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/caarlos0/env/v11"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/narrate/internal/source"
	"github.com/dgnsrekt/narrate/tts"
	"github.com/dgnsrekt/narrate/tts/engines"
	"github.com/dgnsrekt/narrate/ui"
)

const appName = "narrate"

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile        string
	defaultConfigFile string
	tui               bool
	style             string
	width             uint
	showLineNumbers   bool
	preserveNewLines  bool
	mouse             bool
	fromClipboard     bool
	watch             bool
	autoplay          bool
	debug             bool

	rootCmd = &cobra.Command{
		Use:   appName + " [SOURCE|DIR]",
		Short: "Read text and markdown aloud in the terminal",
		Long: paragraph(
			fmt.Sprintf("\nRead files, URLs and piped text %s, one segment at a time.", keyword("aloud")),
		),
		Example: paragraph(
			"narrate README.md\nnarrate https://example.com/notes.md --rate 1.25\ncat notes.txt | narrate --tui=false",
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

// validateStyle checks if the style is a default style, if not, checks that
// the custom style exists.
func validateStyle(style string) error {
	if style != styles.AutoStyle && styles.DefaultStyles[style] == nil {
		style, _ = homedir.Expand(style)
		if _, err := os.Stat(style); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("specified style does not exist: %s", style)
		} else if err != nil {
			return fmt.Errorf("unable to stat file: %w", err)
		}
	}
	return nil
}

func validateOptions(cmd *cobra.Command) error {
	if f := cmd.Flag("config"); f != nil && f.Changed {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
		log.Debug("Using configuration file", "path", configFile)
	}

	// grab config values from Viper
	width = viper.GetUint("width")
	mouse = viper.GetBool("mouse")
	tui = viper.GetBool("tui")
	watch = viper.GetBool("watch")
	autoplay = viper.GetBool("autoplay")
	preserveNewLines = viper.GetBool("preserveNewLines")
	showLineNumbers = viper.GetBool("showLineNumbers")

	if viper.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}

	// validate the glamour style
	style = viper.GetString("style")
	if err := validateStyle(style); err != nil {
		return err
	}

	if !cmd.Flags().Changed("width") && width == 0 {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil { //nolint:gosec
			width = uint(min(max(w, 0), 120)) //nolint:gosec
		}
	}
	return nil
}

// loadConfig builds the narration config from the config file,
// environment and flags.
func loadConfig() (tts.Config, error) {
	cfg, err := tts.LoadConfigFromViper()
	if err != nil {
		return cfg, err //nolint:wrapcheck
	}
	if cfg.Cache.Dir != "" {
		if dir, err := homedir.Expand(cfg.Cache.Dir); err == nil {
			cfg.Cache.Dir = dir
		}
	}
	return cfg, nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// sourceFromArgs picks the text to narrate: the clipboard, the argument,
// piped standard input, or the README of the working directory.
func sourceFromArgs(ctx context.Context, args []string) (*source.Source, error) {
	if fromClipboard {
		return source.FromClipboard() //nolint:wrapcheck
	}
	if len(args) > 0 {
		return source.Load(ctx, args[0]) //nolint:wrapcheck
	}

	// if stdin is a pipe then use stdin for input. note that you can also
	// explicitly use a - to read from stdin.
	if yes, err := stdinIsPipe(); err != nil {
		return nil, err
	} else if yes {
		return source.Load(ctx, "-") //nolint:wrapcheck
	}
	return source.Load(ctx, ".") //nolint:wrapcheck
}

func execute(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	src, err := sourceFromArgs(ctx, args)
	if err != nil {
		return err
	}
	log.Debug("Loaded source", "origin", src.Origin, "bytes", len(src.Body))

	engine, err := engines.New(cfg, log.Default())
	if err != nil {
		return err //nolint:wrapcheck
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Warn("Unable to close engine", "err", err)
		}
	}()

	ctrl := tts.NewController(engine,
		tts.WithLogger(log.Default()),
		tts.WithRate(cfg.Rate),
		tts.WithVoice(cfg.Voice),
	)
	defer ctrl.Close() //nolint:errcheck

	isTerminal := term.IsTerminal(int(os.Stdout.Fd())) //nolint:gosec
	if !tui || !isTerminal {
		return narrate(ctx, ctrl, src.Text(cfg.SkipCodeBlocks), cfg.ChunkSize, os.Stdout)
	}
	return runTUI(ctx, cfg, ctrl, src)
}

func runTUI(ctx context.Context, narration tts.Config, ctrl *tts.Controller, src *source.Source) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	// use style set in env, or the configured one if unset
	if err := validateStyle(cfg.GlamourStyle); err != nil || os.Getenv("GLAMOUR_STYLE") == "" {
		cfg.GlamourStyle = style
	}

	cfg.ShowLineNumbers = showLineNumbers
	cfg.GlamourMaxWidth = width
	cfg.EnableMouse = mouse
	cfg.PreserveNewLines = preserveNewLines
	cfg.ChunkSize = narration.ChunkSize
	cfg.SkipCodeBlocks = narration.SkipCodeBlocks
	cfg.Watch = watch
	cfg.AutoPlay = cfg.AutoPlay || autoplay

	// Run Bubble Tea program
	_, err = ui.NewProgram(ctx, cfg, ctrl, src).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("unable to run tui program: %w", err)
	}

	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	defaults := tts.DefaultConfig()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().String("engine", defaults.Engine, fmt.Sprintf("speech engine %v", tts.Engines))
	rootCmd.PersistentFlags().String("voice", "", "voice ID or name (default: best English voice)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "write debug messages to the log file")
	rootCmd.Flags().Float64P("rate", "r", defaults.Rate, fmt.Sprintf("speech rate, %.2f to %.2f", tts.MinRate, tts.MaxRate))
	rootCmd.Flags().Int("chunk-size", defaults.ChunkSize, "maximum characters per spoken segment")
	rootCmd.Flags().Bool("skip-code", defaults.SkipCodeBlocks, "do not read markdown code blocks aloud")
	rootCmd.Flags().BoolVarP(&fromClipboard, "clipboard", "c", false, "narrate the clipboard contents")
	rootCmd.Flags().BoolVarP(&tui, "tui", "t", true, "display with tui (narrate headless when false)")
	rootCmd.Flags().BoolVar(&watch, "watch", false, "reload the document when it changes (TUI-mode only)")
	rootCmd.Flags().BoolVarP(&autoplay, "play", "p", false, "start narrating right away (TUI-mode only)")
	rootCmd.Flags().StringVarP(&style, "style", "s", styles.AutoStyle, "style name or JSON path")
	rootCmd.Flags().UintVarP(&width, "width", "w", 0, "word-wrap at width (set to 0 to fit the terminal)")
	rootCmd.Flags().BoolVarP(&showLineNumbers, "line-numbers", "l", false, "show line numbers (TUI-mode only)")
	rootCmd.Flags().BoolVarP(&preserveNewLines, "preserve-new-lines", "n", false, "preserve newlines in the output")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel (TUI-mode only)")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("engine", rootCmd.PersistentFlags().Lookup("engine"))
	_ = viper.BindPFlag("voice", rootCmd.PersistentFlags().Lookup("voice"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("rate", rootCmd.Flags().Lookup("rate"))
	_ = viper.BindPFlag("chunk_size", rootCmd.Flags().Lookup("chunk-size"))
	_ = viper.BindPFlag("skip_code_blocks", rootCmd.Flags().Lookup("skip-code"))
	_ = viper.BindPFlag("tui", rootCmd.Flags().Lookup("tui"))
	_ = viper.BindPFlag("watch", rootCmd.Flags().Lookup("watch"))
	_ = viper.BindPFlag("autoplay", rootCmd.Flags().Lookup("play"))
	_ = viper.BindPFlag("style", rootCmd.Flags().Lookup("style"))
	_ = viper.BindPFlag("width", rootCmd.Flags().Lookup("width"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))
	_ = viper.BindPFlag("preserveNewLines", rootCmd.Flags().Lookup("preserve-new-lines"))
	_ = viper.BindPFlag("showLineNumbers", rootCmd.Flags().Lookup("line-numbers"))

	viper.SetDefault("style", styles.AutoStyle)
	viper.SetDefault("width", 0)
	viper.SetDefault("tui", true)
	tts.SetDefaults()

	rootCmd.AddCommand(configCmd, voicesCmd, cacheCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, appName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, appName)}, dirs...)
	}

	if c := os.Getenv("NARRATE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(appName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(appName)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	defaultConfigFile = filepath.Join(dirs[0], appName+".yml")
}
