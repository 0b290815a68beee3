package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/narrate/tts"
	"github.com/dgnsrekt/narrate/tts/engines"
	"github.com/dgnsrekt/narrate/tts/voice"
)

// voiceLoadTimeout bounds the wait for engines that list voices in the
// background.
const voiceLoadTimeout = 5 * time.Second

var voicesCmd = &cobra.Command{
	Use:     "voices",
	Short:   "List the voices of the speech engine",
	Long:    paragraph(fmt.Sprintf("\nList the voices offered by the configured engine. The voice narrate would pick is %s.", keyword("marked"))),
	Example: paragraph("narrate voices\nnarrate voices --engine espeak"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		engine, err := engines.New(cfg, log.Default())
		if err != nil {
			return err //nolint:wrapcheck
		}
		defer engine.Close() //nolint:errcheck

		ctx, cancel := context.WithTimeout(cmd.Context(), voiceLoadTimeout)
		defer cancel()

		return printVoices(cmd.OutOrStdout(), engine.Name(), waitForVoices(ctx, engine), cfg.Voice)
	},
}

// waitForVoices returns the engine's voices, waiting for the first change
// notification while the list is empty.
func waitForVoices(ctx context.Context, engine tts.Engine) []voice.Voice {
	changed := make(chan struct{}, 1)
	engine.OnVoicesChanged(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	for {
		if voices := engine.Voices(); len(voices) > 0 {
			return voices
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return nil
		}
	}
}

// chosenVoice is the voice the controller would start with for query.
func chosenVoice(voices []voice.Voice, query string) (voice.Voice, bool) {
	if v, ok := voice.Find(voices, query); ok {
		return v, true
	}
	return voice.SelectDefault(voices)
}

func printVoices(w io.Writer, engineName string, voices []voice.Voice, query string) error {
	if len(voices) == 0 {
		_, err := fmt.Fprintf(w, "The %s engine offers no voices.\n", engineName)
		return err //nolint:wrapcheck
	}

	chosen, _ := chosenVoice(voices, query)

	t := table.New().
		Border(lipgloss.HiddenBorder()).
		Headers("", "ID", "NAME", "LANGUAGE")
	for _, v := range voice.Sorted(voices) {
		mark := ""
		if v.ID == chosen.ID {
			mark = keyword("*")
		}
		t.Row(mark, v.ID, v.Name, voice.CanonicalTag(v.Language))
	}

	_, err := fmt.Fprintf(w, "%s voices:\n%s\n", keyword(engineName), t.Render())
	return err //nolint:wrapcheck
}
