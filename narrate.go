package main

import (
	"context"
	"fmt"
	"io"

	"github.com/muesli/termenv"

	"github.com/dgnsrekt/narrate/tts"
)

// narrate plays text without a TUI, printing a line whenever the status
// changes. It returns once the session is done or stopped, or after
// stopping playback when ctx ends.
func narrate(ctx context.Context, ctrl *tts.Controller, text string, chunkSize int, w io.Writer) error {
	out := termenv.NewOutput(w)
	updates := ctrl.Updates()

	if err := ctrl.Play(text, chunkSize); err != nil {
		return err //nolint:wrapcheck
	}

	p := progressPrinter{out: out}
	if s := ctrl.Snapshot(); s.Mode == tts.ModeIdle {
		// nothing to narrate
		p.print(s)
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			ctrl.Stop()
			p.print(ctrl.Snapshot())
			return nil

		case s, ok := <-updates:
			if !ok {
				return nil
			}
			// left over from before Play
			if s.Mode == tts.ModeIdle {
				continue
			}
			p.print(s)
			if s.Mode.IsTerminal() {
				return nil
			}
		}
	}
}

type progressPrinter struct {
	out      *termenv.Output
	lastLine string
	lastErr  string
}

func (p *progressPrinter) print(s tts.Snapshot) {
	if s.Err != nil && s.Err.Error() != p.lastErr {
		p.lastErr = s.Err.Error()
		fmt.Fprintln(p.out, p.out.String("✗ "+p.lastErr).Foreground(p.out.Color("#ED567A")))
	}

	line := s.String()
	if line == p.lastLine {
		return
	}
	p.lastLine = line

	icon := "■"
	color := "#626262"
	switch s.Mode {
	case tts.ModePlaying:
		icon, color = "▶", "#04B575"
	case tts.ModePaused:
		icon, color = "⏸", "#ECFD65"
	case tts.ModeStopped:
		icon, color = "◼", "#FF8800"
	case tts.ModeDone:
		icon = "✓"
	}
	fmt.Fprintln(p.out, p.out.String(icon).Foreground(p.out.Color(color)).String()+" "+line)
}
