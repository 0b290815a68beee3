package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"

	"github.com/dgnsrekt/narrate/internal/source"
	"github.com/dgnsrekt/narrate/tts"
)

const (
	statusBarHeight  = 1
	segmentBarHeight = 1
	lineNumberWidth  = 4
)

var (
	pagerHelpHeight int

	lineNumberFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}

	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}
	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}

	statusBarScrollPosStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#949494", Dark: "#5A5A5A"}).
				Background(statusBarBg).
				Render

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarHelpStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#323232"}).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	statusBarErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#F1F1F1")).
				Background(red).
				Render

	statusBarMessageScrollPosStyle = lipgloss.NewStyle().
					Foreground(mintGreen).
					Background(darkGreen).
					Render

	statusBarMessageHelpStyle = lipgloss.NewStyle().
					Foreground(lipgloss.Color("#B6FFE4")).
					Background(green).
					Render

	helpViewStyle = lipgloss.NewStyle().
			Foreground(statusBarNoteFg).
			Background(lipgloss.AdaptiveColor{Light: "#f2f2f2", Dark: "#1B1B1B"}).
			Render

	lineNumberStyle = lipgloss.NewStyle().
			Foreground(lineNumberFg).
			Render
)

type (
	contentRenderedMsg string
	reloadMsg          struct{}
)

type pagerState int

const (
	pagerStateBrowse pagerState = iota
	pagerStateStatusMessage
)

// document is the loaded source together with the text handed to the
// controller.
type document struct {
	src  *source.Source
	text string
}

func newDocument(src *source.Source, skipCodeBlocks bool) document {
	return document{src: src, text: src.Text(skipCodeBlocks)}
}

type pagerModel struct {
	common   *commonModel
	viewport viewport.Model
	progress progress.Model
	state    pagerState
	showHelp bool

	statusMessage      string
	statusMessageError bool
	statusMessageSeq   int

	// Current document being rendered, sans-glamour rendering. We cache
	// it here so we can re-render it on resize.
	currentDocument document
}

func newPagerModel(common *commonModel, doc document) pagerModel {
	vp := viewport.New(0, 0)
	vp.YPosition = 0
	// space belongs to playback
	vp.KeyMap.PageDown = key.NewBinding(key.WithKeys("pgdown", "f"))

	return pagerModel{
		common:          common,
		state:           pagerStateBrowse,
		viewport:        vp,
		progress:        newProgressBar(),
		currentDocument: doc,
	}
}

func (m *pagerModel) setSize(w, h int) {
	m.viewport.Width = w
	m.viewport.Height = max(0, h-statusBarHeight-segmentBarHeight)

	if m.showHelp {
		if pagerHelpHeight == 0 {
			pagerHelpHeight = strings.Count(m.helpView(), "\n")
		}
		m.viewport.Height = max(0, m.viewport.Height-(statusBarHeight+pagerHelpHeight))
	}
}

func (m *pagerModel) setContent(s string) {
	m.viewport.SetContent(s)
}

func (m *pagerModel) toggleHelp() {
	m.showHelp = !m.showHelp
	m.setSize(m.common.width, m.common.height)
	if m.viewport.PastBottom() {
		m.viewport.GotoBottom()
	}
}

type pagerStatusMessage struct {
	message string
	isError bool
}

type statusMessageTimeoutMsg struct{ seq int }

func (m *pagerModel) showStatusMessage(msg pagerStatusMessage) tea.Cmd {
	m.state = pagerStateStatusMessage
	m.statusMessage = msg.message
	m.statusMessageError = msg.isError
	m.statusMessageSeq++

	seq := m.statusMessageSeq
	return tea.Tick(statusMessageTimeout, func(time.Time) tea.Msg {
		return statusMessageTimeoutMsg{seq}
	})
}

// nextRate steps the current rate by delta within the accepted bounds. It
// reports false when the rate is already at the bound.
func (m pagerModel) nextRate(delta float64) (float64, bool) {
	cur := m.common.snapshot.Rate
	if cur <= 0 {
		cur = tts.DefaultRate
	}
	next := math.Round((cur+delta)*100) / 100
	next = math.Max(tts.MinRate, math.Min(tts.MaxRate, next))
	return next, next != cur
}

func (m pagerModel) changeRate(delta float64) (pagerModel, tea.Cmd) {
	rate, ok := m.nextRate(delta)
	if !ok {
		cmd := m.showStatusMessage(pagerStatusMessage{"Rate is already " + formatRate(rate), false})
		return m, cmd
	}
	// Shown right away; the snapshot catches up once the controller has it.
	m.common.snapshot.Rate = rate
	cmd := m.showStatusMessage(pagerStatusMessage{"Rate " + formatRate(rate), false})
	return m, tea.Batch(tts.SetRateCmd(m.common.ctrl, rate), cmd)
}

// play starts narrating the document from the beginning.
func (m pagerModel) play() tea.Cmd {
	return tts.PlayCmd(m.common.ctrl, m.currentDocument.text, m.common.cfg.ChunkSize)
}

func (m pagerModel) copySegment() (pagerModel, tea.Cmd) {
	text := m.common.snapshot.Segment
	what := "segment"
	if text == "" {
		text = m.currentDocument.text
		what = "text"
	}

	// Copy using OSC 52
	termenv.Copy(text)
	// Copy using native system clipboard
	if err := clipboard.WriteAll(text); err != nil {
		log.Debug("clipboard unavailable", "err", err)
	}
	cmd := m.showStatusMessage(pagerStatusMessage{"Copied " + what, false})
	return m, cmd
}

func (m pagerModel) update(msg tea.Msg) (pagerModel, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q":
			return m, tea.Quit

		case "esc":
			if m.showHelp {
				m.toggleHelp()
			}
			return m, nil

		case "home", "g":
			m.viewport.GotoTop()
			return m, nil

		case "end", "G":
			m.viewport.GotoBottom()
			return m, nil

		case "enter":
			return m, m.play()

		case " ":
			switch m.common.snapshot.Mode {
			case tts.ModePlaying, tts.ModePaused:
				return m, tts.TogglePauseCmd(m.common.ctrl)
			case tts.ModeQueued, tts.ModeErroring:
				return m, nil
			default:
				return m, m.play()
			}

		case "s":
			return m, tts.StopCmd(m.common.ctrl)

		case "+", "=":
			return m.changeRate(rateStep)

		case "-", "_":
			return m.changeRate(-rateStep)

		case "c":
			return m.copySegment()

		case "r":
			return m, reloadSource(m.common, m.currentDocument.src)

		case "?":
			m.toggleHelp()
			return m, nil
		}

	// Glamour rendering has completed
	case contentRenderedMsg:
		m.setContent(string(msg))

	case sourceLoadedMsg:
		m.currentDocument = newDocument(msg.src, m.common.cfg.SkipCodeBlocks)
		cmds = append(cmds,
			renderWithGlamour(m, m.currentDocument),
			m.showStatusMessage(pagerStatusMessage{"Reloaded " + msg.src.Name(), false}),
		)

	// We've received terminal dimensions, either for the first time or
	// after a resize
	case tea.WindowSizeMsg:
		return m, renderWithGlamour(m, m.currentDocument)

	case statusMessageTimeoutMsg:
		if msg.seq == m.statusMessageSeq {
			m.state = pagerStateBrowse
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m pagerModel) View() string {
	var b strings.Builder
	fmt.Fprint(&b, m.viewport.View()+"\n")
	fmt.Fprint(&b, segmentView(m.common.snapshot, m.common.width)+"\n")

	// Footer
	m.statusBarView(&b)

	if m.showHelp {
		fmt.Fprint(&b, "\n"+m.helpView())
	}

	return b.String()
}

func (m pagerModel) statusBarView(b *strings.Builder) {
	const (
		minPercent               float64 = 0.0
		maxPercent               float64 = 1.0
		percentToStringMagnitude float64 = 100.0
	)

	showStatusMessage := m.state == pagerStateStatusMessage
	messageStyle := statusBarMessageStyle
	if m.statusMessageError {
		messageStyle = statusBarErrorStyle
	}

	// Logo
	logo := logoView()

	// Scroll percent
	percent := math.Max(minPercent, math.Min(maxPercent, m.viewport.ScrollPercent()))
	scrollPercent := fmt.Sprintf(" %3.f%% ", percent*percentToStringMagnitude)
	if showStatusMessage {
		scrollPercent = statusBarMessageScrollPosStyle(scrollPercent)
	} else {
		scrollPercent = statusBarScrollPosStyle(scrollPercent)
	}

	// Narration progress
	bar := statusBarNoteStyle(" ") + m.progress.ViewAs(m.common.snapshot.Progress())

	// "Help" note
	var helpNote string
	if showStatusMessage {
		helpNote = statusBarMessageHelpStyle(" ? Help ")
	} else {
		helpNote = statusBarHelpStyle(" ? Help ")
	}

	// Note
	var note string
	if showStatusMessage {
		note = m.statusMessage
	} else {
		note = m.currentDocument.src.Name() + " | " + compactStatus(m.common.snapshot)
	}
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.common.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(bar)-
			ansi.PrintableRuneWidth(scrollPercent)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)
	if showStatusMessage {
		note = messageStyle(note)
	} else {
		note = statusBarNoteStyle(note)
	}

	// Empty space
	padding := max(0,
		m.common.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(bar)-
			ansi.PrintableRuneWidth(scrollPercent)-
			ansi.PrintableRuneWidth(helpNote),
	)
	emptySpace := strings.Repeat(" ", padding)
	if showStatusMessage {
		emptySpace = messageStyle(emptySpace)
	} else {
		emptySpace = statusBarNoteStyle(emptySpace)
	}

	fmt.Fprintf(b, "%s%s%s%s%s%s",
		logo,
		note,
		emptySpace,
		bar,
		scrollPercent,
		helpNote,
	)
}

func (m pagerModel) helpView() (s string) {
	col1 := []string{
		"enter    narrate from start",
		"space    pause/resume",
		"s        stop",
		"+/-      faster/slower",
		"v        choose voice",
		"c        copy segment",
		"r        reload",
	}

	s += "\n"
	s += "k/↑      up                  " + col1[0] + "\n"
	s += "j/↓      down                " + col1[1] + "\n"
	s += "b/pgup   page up             " + col1[2] + "\n"
	s += "f/pgdn   page down           " + col1[3] + "\n"
	s += "u        ½ page up           " + col1[4] + "\n"
	s += "d        ½ page down         " + col1[5] + "\n"
	s += "g/home   go to top           " + col1[6] + "\n"
	s += "G/end    go to bottom        q        quit"

	s = indent(s, 2)

	// Fill up empty cells with spaces for background coloring
	if m.common.width > 0 {
		lines := strings.Split(s, "\n")
		for i := 0; i < len(lines); i++ {
			l := runewidth.StringWidth(lines[i])
			n := max(m.common.width-l, 0)
			lines[i] += strings.Repeat(" ", n)
		}

		s = strings.Join(lines, "\n")
	}

	return helpViewStyle(s)
}

// COMMANDS

func renderWithGlamour(m pagerModel, doc document) tea.Cmd {
	return func() tea.Msg {
		s, err := glamourRender(m, doc)
		if err != nil {
			log.Error("error rendering with Glamour", "error", err)
			return errMsg{err}
		}
		return contentRenderedMsg(s)
	}
}

// glamourStyle resolves a configured style name: "auto", one of glamour's
// standard styles, or a path to a JSON style file.
func glamourStyle(style string) glamour.TermRendererOption {
	if style == "" || style == styles.AutoStyle {
		return glamour.WithAutoStyle()
	}
	if _, ok := styles.DefaultStyles[style]; ok {
		return glamour.WithStandardStyle(style)
	}
	return glamour.WithStylePath(style)
}

func glamourRender(m pagerModel, doc document) (string, error) {
	body := string(source.RemoveFrontmatter(doc.src.Body))
	width := max(0, min(int(m.common.cfg.GlamourMaxWidth), m.viewport.Width)) //nolint:gosec
	if m.common.cfg.GlamourMaxWidth == 0 {
		width = m.viewport.Width
	}

	var out string
	switch {
	case !doc.src.IsMarkdown():
		out = wordwrap.String(body, max(0, width-lineNumberWidth))
	case !m.common.cfg.GlamourEnabled:
		return body, nil
	default:
		options := []glamour.TermRendererOption{
			glamourStyle(m.common.cfg.GlamourStyle),
			glamour.WithWordWrap(width),
		}
		if m.common.cfg.PreserveNewLines {
			options = append(options, glamour.WithPreservedNewLines())
		}
		r, err := glamour.NewTermRenderer(options...)
		if err != nil {
			return "", fmt.Errorf("error creating glamour renderer: %w", err)
		}
		out, err = r.Render(body)
		if err != nil {
			return "", fmt.Errorf("error rendering markdown: %w", err)
		}
	}

	if !m.common.cfg.ShowLineNumbers {
		return out, nil
	}

	trunc := lipgloss.NewStyle().MaxWidth(max(0, m.viewport.Width-lineNumberWidth)).Render
	lines := strings.Split(out, "\n")

	var content strings.Builder
	for i, s := range lines {
		content.WriteString(lineNumberStyle(fmt.Sprintf("%"+fmt.Sprint(lineNumberWidth)+"d", i+1)))
		content.WriteString(trunc(s))

		// don't add an artificial newline after the last split
		if i+1 < len(lines) {
			content.WriteRune('\n')
		}
	}

	return content.String(), nil
}
