package ui

// Config contains TUI-specific configuration.
type Config struct {
	ShowLineNumbers  bool
	GlamourMaxWidth  uint
	GlamourStyle     string `env:"GLAMOUR_STYLE" envDefault:"auto"`
	EnableMouse      bool
	PreserveNewLines bool

	// Narration
	ChunkSize      int
	SkipCodeBlocks bool
	Watch          bool
	AutoPlay       bool `env:"NARRATE_AUTOPLAY"`

	// For debugging the UI
	GlamourEnabled bool `env:"NARRATE_ENABLE_GLAMOUR" envDefault:"true"`
}
