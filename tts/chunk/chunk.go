// Package chunk splits long text into segments small enough to hand to a
// speech engine one request at a time.
package chunk

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidArgument is returned for a non-positive maximum segment size.
var ErrInvalidArgument = errors.New("invalid argument")

// MinBreak is the number of runes a window must extend past before a
// sentence or line boundary is preferred over a hard cut.
const MinBreak = 200

// breaks are the boundaries a segment may end on. A segment that ends on
// one includes it; the trailing space or newline is trimmed afterwards.
var breaks = []string{". ", "? ", "! ", "\n"}

// Split normalizes text and cuts it into segments of at most maxChars
// runes. Within each window the rightmost boundary wins, regardless of
// its kind, as long as it lies past MinBreak and the window does not
// already reach the end of the text.
func Split(text string, maxChars int) ([]string, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("%w: max chars must be positive, got %d", ErrInvalidArgument, maxChars)
	}

	runes := []rune(Normalize(text))
	n := len(runes)

	var segments []string
	for i := 0; i < n; {
		end := min(i+maxChars, n)

		if end < n {
			if at, width := lastBreak(runes[i:end]); at > MinBreak {
				end = i + at + width
			}
		}

		if s := strings.TrimSpace(string(runes[i:end])); s != "" {
			segments = append(segments, s)
		}
		i = end
	}

	return segments, nil
}

// Normalize unifies line endings to "\n" and trims surrounding
// whitespace.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(text)
}

// lastBreak returns the rune offset and rune width of the rightmost
// boundary in window, or -1 when there is none.
func lastBreak(window []rune) (int, int) {
	for j := len(window) - 1; j >= 0; j-- {
		for _, b := range breaks {
			if hasPrefix(window[j:], b) {
				return j, len([]rune(b))
			}
		}
	}
	return -1, 0
}

func hasPrefix(rs []rune, prefix string) bool {
	i := 0
	for _, r := range prefix {
		if i >= len(rs) || rs[i] != r {
			return false
		}
		i++
	}
	return true
}
