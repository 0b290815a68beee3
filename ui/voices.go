package ui

import (
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dgnsrekt/narrate/tts"
	"github.com/dgnsrekt/narrate/tts/voice"
)

type (
	voiceSelectedMsg     struct{ voice voice.Voice }
	voicePickerClosedMsg struct{}
)

// voiceItem is a list entry for one voice.
type voiceItem struct {
	voice.Voice
	selected bool
}

func (i voiceItem) Title() string {
	title := i.Name
	if title == "" {
		title = i.ID
	}
	if i.selected {
		title += " ✓"
	}
	return title
}

func (i voiceItem) Description() string {
	if i.Language == "" {
		return i.ID
	}
	return i.Language + " · " + i.ID
}

func (i voiceItem) FilterValue() string {
	return i.Name + " " + i.Language
}

type voiceModel struct {
	common *commonModel
	list   list.Model
}

func newVoiceModel(common *commonModel) voiceModel {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Voices"
	l.SetStatusBarItemName("voice", "voices")
	l.DisableQuitKeybindings()
	l.Styles.Title = l.Styles.Title.Background(fuchsia)

	return voiceModel{common: common, list: l}
}

func (m *voiceModel) setSize(w, h int) {
	m.list.SetSize(w, h)
}

// setVoices fills the list, English voices first, with the cursor on the
// selected voice.
func (m *voiceModel) setVoices(msg tts.VoicesMsg) tea.Cmd {
	sorted := voice.Sorted(msg.Voices)
	items := make([]list.Item, len(sorted))
	cursor := 0
	for i, v := range sorted {
		items[i] = voiceItem{Voice: v, selected: v.ID == msg.Selected}
		if v.ID == msg.Selected {
			cursor = i
		}
	}

	cmd := m.list.SetItems(items)
	m.list.Select(cursor)
	return cmd
}

func (m voiceModel) update(msg tea.Msg) (voiceModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		switch msg.String() {
		case "enter":
			item, ok := m.list.SelectedItem().(voiceItem)
			if !ok {
				return m, closeVoicePicker
			}
			return m, func() tea.Msg { return voiceSelectedMsg{item.Voice} }

		case "esc":
			if m.list.FilterState() == list.FilterApplied {
				break
			}
			return m, closeVoicePicker

		case "q", "v":
			return m, closeVoicePicker
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m voiceModel) View() string {
	return m.list.View()
}

func closeVoicePicker() tea.Msg {
	return voicePickerClosedMsg{}
}
