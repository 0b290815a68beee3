package main

import (
	"fmt"

	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
)

var manCmd = &cobra.Command{
	Use:                   "man",
	Short:                 "Generates manpages",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Hidden:                true,
	Args:                  cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		page, err := mcobra.NewManPage(1, rootCmd)
		if err != nil {
			return err //nolint:wrapcheck
		}

		page = page.WithSection("Environment", "NARRATE_CONFIG_HOME overrides the configuration directory.\n"+
			"NARRATE_ENGINE, NARRATE_VOICE and NARRATE_RATE override the configuration file.\n"+
			"GLAMOUR_STYLE selects the document style in the TUI.")
		fmt.Println(page.Build(roff.NewDocument()))
		return nil
	},
}
