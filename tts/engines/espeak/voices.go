package espeak

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"

	"github.com/dgnsrekt/narrate/tts/voice"
)

// ParseEspeakVoices reads the table printed by `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  en-us           --/M      English_(America)  gmw/en-US     (en 3)
//
// The language column is used as the voice ID; the first entry for a
// language wins.
func ParseEspeakVoices(out []byte) []voice.Voice {
	var list []voice.Voice
	seen := make(map[string]bool)

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		id := fields[1]
		if seen[id] {
			continue
		}
		seen[id] = true
		list = append(list, voice.Voice{
			ID:       id,
			Name:     strings.ReplaceAll(fields[3], "_", " "),
			Language: voice.CanonicalTag(id),
		})
	}
	return list
}

var sayLine = regexp.MustCompile(`^(.+?)\s+([a-z]{2,3}[_-][A-Za-z0-9]+)\s+#`)

// ParseSayVoices reads the list printed by `say -v ?`:
//
//	Alex                en_US    # Most people recognize me by my voice.
//	Eddy (English (US)) en_US    # Hello! My name is Eddy.
func ParseSayVoices(out []byte) []voice.Voice {
	var list []voice.Voice

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		m := sayLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		list = append(list, voice.Voice{
			ID:       name,
			Name:     name,
			Language: voice.CanonicalTag(m[2]),
		})
	}
	return list
}
