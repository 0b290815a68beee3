// Package voice models the voices a speech engine offers and picks a
// sensible default among them.
package voice

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Voice is one entry of an engine's voice registry. ID is the lookup key
// the controller holds on to; the entry itself is owned by the engine and
// may disappear when the registry refreshes.
type Voice struct {
	ID       string
	Name     string
	Language string
}

// qualityMarkers flag higher quality system voices by display name.
var qualityMarkers = []string{"enhanced", "premium"}

// CanonicalTag normalizes a language tag so that "en_us", "en-us" and
// "en-US" compare equal. Tags that do not parse are returned trimmed but
// otherwise untouched.
func CanonicalTag(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	t, err := language.Parse(strings.ReplaceAll(tag, "_", "-"))
	if err != nil {
		return tag
	}
	return t.String()
}

// IsEnglish reports whether the voice speaks some variant of English.
func (v Voice) IsEnglish() bool {
	return strings.HasPrefix(CanonicalTag(v.Language), "en")
}

func (v Voice) isUSEnglish() bool {
	return strings.HasPrefix(CanonicalTag(v.Language), "en-US")
}

func (v Voice) isHighQuality() bool {
	name := strings.ToLower(v.Name)
	for _, m := range qualityMarkers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

// Sorted returns a copy of voices with English voices first, each group
// ordered alphabetically by display name.
func Sorted(voices []Voice) []Voice {
	out := make([]Voice, len(voices))
	copy(out, voices)

	c := collate.New(language.English, collate.IgnoreCase)
	sort.SliceStable(out, func(i, j int) bool {
		ei, ej := out[i].IsEnglish(), out[j].IsEnglish()
		if ei != ej {
			return ei
		}
		return c.CompareString(out[i].Name, out[j].Name) < 0
	})
	return out
}

// SelectDefault applies the default voice policy: a US English voice
// marked enhanced or premium, then any US English voice, then any English
// voice, then the first voice in sorted order. It reports false only when
// voices is empty.
func SelectDefault(voices []Voice) (Voice, bool) {
	if len(voices) == 0 {
		return Voice{}, false
	}

	for _, v := range voices {
		if v.isUSEnglish() && v.isHighQuality() {
			return v, true
		}
	}
	for _, v := range voices {
		if v.isUSEnglish() {
			return v, true
		}
	}
	for _, v := range voices {
		if v.IsEnglish() {
			return v, true
		}
	}
	return Sorted(voices)[0], true
}

// Lookup returns the voice with the given ID.
func Lookup(voices []Voice, id string) (Voice, bool) {
	for _, v := range voices {
		if v.ID == id {
			return v, true
		}
	}
	return Voice{}, false
}

// Find resolves a user supplied query against voices: an exact ID, then a
// case-insensitive name, then the best fuzzy match on name and language.
func Find(voices []Voice, query string) (Voice, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Voice{}, false
	}

	if v, ok := Lookup(voices, query); ok {
		return v, true
	}
	for _, v := range voices {
		if strings.EqualFold(v.ID, query) || strings.EqualFold(v.Name, query) {
			return v, true
		}
	}

	matches := fuzzy.FindFrom(query, searchable(voices))
	if len(matches) == 0 {
		return Voice{}, false
	}
	return voices[matches[0].Index], true
}

// searchable adapts a voice list to fuzzy.Source.
type searchable []Voice

func (s searchable) String(i int) string {
	return s[i].Name + " " + s[i].Language
}

func (s searchable) Len() int {
	return len(s)
}
