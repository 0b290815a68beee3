package chunk

import (
	"errors"
	"strings"
	"testing"
	"unicode"
	"unicode/utf8"
)

func TestSplitInvalidMaxChars(t *testing.T) {
	for _, max := range []int{0, -1, -500} {
		_, err := Split("hello", max)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Split(_, %d) error = %v, want ErrInvalidArgument", max, err)
		}
	}
}

func TestSplitEmptyInput(t *testing.T) {
	for _, in := range []string{"", "   ", "\r\n\t \n"} {
		got, err := Split(in, 100)
		if err != nil {
			t.Fatalf("Split(%q) unexpected error: %v", in, err)
		}
		if len(got) != 0 {
			t.Errorf("Split(%q) = %q, want no segments", in, got)
		}
	}
}

func TestSplitShortInputHardCuts(t *testing.T) {
	// The window never extends past MinBreak, so boundaries are ignored
	// and every cut is a hard one.
	got, err := Split("One sentence here. Another one follows. ", 25)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"One sentence here. Anothe", "r one follows."}
	assertSegments(t, got, want)
}

func TestSplitFitsInOneWindow(t *testing.T) {
	got, err := Split("  a. b. c.  ", 100)
	if err != nil {
		t.Fatal(err)
	}
	assertSegments(t, got, []string{"a. b. c."})
}

func TestSplitBoundaryPastFloor(t *testing.T) {
	first := strings.Repeat("a", 210) + "."
	second := strings.Repeat("b", 100) + "."
	text := first + " " + second + " "

	got, err := Split(text, 300)
	if err != nil {
		t.Fatal(err)
	}
	assertSegments(t, got, []string{first, second})
}

func TestSplitBoundaryBeforeFloorIgnored(t *testing.T) {
	text := strings.Repeat("a", 50) + ". " + strings.Repeat("b", 300)

	got, err := Split(text, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 hard-cut segments, got %d: %q", len(got), got)
	}
	if utf8.RuneCountInString(got[0]) != 100 {
		t.Errorf("first segment should be a hard cut at 100 runes, got %d", utf8.RuneCountInString(got[0]))
	}
}

func TestSplitRightmostBoundaryWins(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		first string
	}{
		{
			name:  "newline after sentence end",
			text:  strings.Repeat("a", 210) + ". " + strings.Repeat("b", 38) + "\n" + strings.Repeat("c", 200),
			first: strings.Repeat("a", 210) + ". " + strings.Repeat("b", 38),
		},
		{
			name:  "sentence end after newline",
			text:  strings.Repeat("a", 205) + "\n" + strings.Repeat("b", 54) + "! " + strings.Repeat("c", 200),
			first: strings.Repeat("a", 205) + "\n" + strings.Repeat("b", 54) + "!",
		},
		{
			name:  "question mark",
			text:  strings.Repeat("a", 220) + "? " + strings.Repeat("c", 200),
			first: strings.Repeat("a", 220) + "?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Split(tt.text, 300)
			if err != nil {
				t.Fatal(err)
			}
			if got[0] != tt.first {
				t.Errorf("first segment = %q (len %d), want len %d", got[0], len(got[0]), len(tt.first))
			}
		})
	}
}

func TestSplitNormalizesLineEndings(t *testing.T) {
	text := strings.Repeat("a", 210) + "\r\n" + strings.Repeat("b", 200) + "\r" + "tail"

	got, err := Split(text, 300)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range got {
		if strings.ContainsRune(s, '\r') {
			t.Errorf("segment still contains a carriage return: %q", s)
		}
	}
	if got[0] != strings.Repeat("a", 210) {
		t.Errorf("expected a break at the normalized newline, got %q", got[0])
	}
}

func TestSplitCountsRunes(t *testing.T) {
	text := strings.Repeat("é", 250)
	got, err := Split(text, 100)
	if err != nil {
		t.Fatal(err)
	}
	assertSegments(t, got, []string{
		strings.Repeat("é", 100),
		strings.Repeat("é", 100),
		strings.Repeat("é", 50),
	})
}

func TestSplitProperties(t *testing.T) {
	var b strings.Builder
	sentences := []string{
		"The quick brown fox jumps over the lazy dog.",
		"Is this the real life?",
		"Is this just fantasy!",
		"Caught in a landslide, no escape from reality",
	}
	for i := 0; i < 120; i++ {
		b.WriteString(sentences[i%len(sentences)])
		if i%7 == 0 {
			b.WriteString("\n")
		} else {
			b.WriteString(" ")
		}
	}
	text := b.String()

	for _, max := range []int{1, 7, 50, 199, 201, 250, 400, 1000, 5000} {
		got, err := Split(text, max)
		if err != nil {
			t.Fatalf("max=%d: %v", max, err)
		}

		// No content is lost or duplicated between segments.
		if stripSpace(strings.Join(got, "")) != stripSpace(Normalize(text)) {
			t.Errorf("max=%d: rejoined segments do not reconstruct the input", max)
		}

		for i, s := range got {
			if s == "" {
				t.Errorf("max=%d: segment %d is empty", max, i)
			}
			if n := utf8.RuneCountInString(s); n > max {
				t.Errorf("max=%d: segment %d has %d runes", max, i, n)
			}

			// A segment already fits in one window, so splitting it
			// again yields the same segment.
			again, err := Split(s, max)
			if err != nil {
				t.Fatal(err)
			}
			if len(again) != 1 || again[0] != s {
				t.Errorf("max=%d: re-splitting segment %d changed it: %q", max, i, again)
			}
		}

		// Deterministic.
		again, _ := Split(text, max)
		assertSegments(t, again, got)
	}
}

func assertSegments(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d segments %q, want %d %q", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
