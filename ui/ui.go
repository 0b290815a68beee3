// Package ui provides the terminal interface for narrate.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/narrate/internal/source"
	"github.com/dgnsrekt/narrate/tts"
)

const (
	statusMessageTimeout = time.Second * 3 // how long to show status messages like "Copied segment"
	ellipsis             = "…"
	rateStep             = 0.25
)

// NewProgram returns a new Tea program narrating src through ctrl. The
// caller owns ctrl and closes it after the program exits.
func NewProgram(ctx context.Context, cfg Config, ctrl *tts.Controller, src *source.Source) *tea.Program {
	log.Debug(
		"Starting narrate",
		"glamour",
		cfg.GlamourEnabled,
		"engine",
		ctrl.EngineName(),
	)

	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	m := newModel(ctx, cfg, ctrl, src)
	return tea.NewProgram(m, opts...)
}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

type sourceLoadedMsg struct{ src *source.Source }

// state is the top-level application state.
type state int

const (
	stateShowDocument state = iota
	stateShowVoices
)

func (s state) String() string {
	return map[state]string{
		stateShowDocument: "showing document",
		stateShowVoices:   "choosing voice",
	}[s]
}

// Common stuff we'll need to access in all models.
type commonModel struct {
	cfg    Config
	ctx    context.Context
	ctrl   *tts.Controller
	loader source.Loader
	width  int
	height int

	// newest controller snapshot
	snapshot tts.Snapshot
}

type model struct {
	common *commonModel
	state  state

	// Sub-models
	pager  pagerModel
	voices voiceModel

	// Notifications of changes to the document on disk
	changes <-chan struct{}
}

func newModel(ctx context.Context, cfg Config, ctrl *tts.Controller, src *source.Source) model {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = tts.DefaultChunkSize
	}

	common := &commonModel{
		cfg:      cfg,
		ctx:      ctx,
		ctrl:     ctrl,
		snapshot: ctrl.Snapshot(),
	}

	m := model{
		common: common,
		state:  stateShowDocument,
		pager:  newPagerModel(common, newDocument(src, cfg.SkipCodeBlocks)),
		voices: newVoiceModel(common),
	}

	if cfg.Watch && src.IsFile() {
		changes, err := source.Watch(ctx, src.Origin)
		if err != nil {
			log.Error("unable to watch document", "path", src.Origin, "error", err)
		} else {
			m.changes = changes
		}
	}

	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tts.WaitForUpdateCmd(m.common.ctrl.Updates()),
		tts.LoadVoicesCmd(m.common.ctrl),
	}
	if m.changes != nil {
		cmds = append(cmds, waitForChange(m.changes))
	}
	if m.common.cfg.AutoPlay {
		cmds = append(cmds, m.pager.play())
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "v":
			if m.state == stateShowDocument {
				m.state = stateShowVoices
				return m, tts.LoadVoicesCmd(m.common.ctrl)
			}
		}

		var cmd tea.Cmd
		if m.state == stateShowVoices {
			m.voices, cmd = m.voices.update(msg)
		} else {
			m.pager, cmd = m.pager.update(msg)
		}
		return m, cmd

	case tea.WindowSizeMsg:
		m.common.width = msg.Width
		m.common.height = msg.Height
		m.pager.setSize(msg.Width, msg.Height)
		m.voices.setSize(msg.Width, msg.Height)

	case tts.StateChangedMsg:
		prev := m.common.snapshot
		m.common.snapshot = msg.Snapshot
		cmds = append(cmds, tts.WaitForUpdateCmd(m.common.ctrl.Updates()))

		switch {
		case msg.Err != nil && (prev.Err == nil || msg.Err.Error() != prev.Err.Error()):
			cmds = append(cmds, m.pager.showStatusMessage(pagerStatusMessage{msg.Err.Error(), true}))
		case msg.Mode == tts.ModeDone && prev.Mode != tts.ModeDone:
			cmds = append(cmds, m.pager.showStatusMessage(pagerStatusMessage{"Finished narrating", false}))
		}
		return m, tea.Batch(cmds...)

	case tts.ClosedMsg:
		return m, nil

	case tts.ErrorMsg:
		cmd := m.pager.showStatusMessage(pagerStatusMessage{msg.Error(), true})
		return m, cmd

	case tts.VoicesMsg:
		cmd := m.voices.setVoices(msg)
		return m, cmd

	case voiceSelectedMsg:
		m.state = stateShowDocument
		m.common.snapshot.Voice = msg.voice.ID
		cmd := m.pager.showStatusMessage(pagerStatusMessage{"Voice: " + voiceItem{Voice: msg.voice}.Title(), false})
		return m, tea.Batch(tts.SetVoiceCmd(m.common.ctrl, msg.voice.ID), cmd)

	case voicePickerClosedMsg:
		m.state = stateShowDocument
		return m, nil

	case reloadMsg:
		return m, tea.Batch(
			reloadSource(m.common, m.pager.currentDocument.src),
			waitForChange(m.changes),
		)

	case errMsg:
		cmd := m.pager.showStatusMessage(pagerStatusMessage{msg.Error(), true})
		return m, cmd
	}

	// Process children
	var cmd tea.Cmd
	m.pager, cmd = m.pager.update(msg)
	cmds = append(cmds, cmd)

	if m.state == stateShowVoices {
		m.voices, cmd = m.voices.update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	switch m.state {
	case stateShowVoices:
		return m.voices.View()
	default:
		return m.pager.View()
	}
}

// COMMANDS

// waitForChange waits for the watched document to change. A closed
// channel means watching ended.
func waitForChange(changes <-chan struct{}) tea.Cmd {
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return reloadMsg{}
	}
}

func reloadSource(common *commonModel, src *source.Source) tea.Cmd {
	return func() tea.Msg {
		s, err := common.loader.Reload(common.ctx, src)
		if err != nil {
			log.Error("unable to reload document", "origin", src.Origin, "error", err)
			return errMsg{err}
		}
		return sourceLoadedMsg{s}
	}
}

// ETC

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}
