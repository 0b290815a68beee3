// Package source loads the text to narrate from files, directories,
// standard input, URLs and the clipboard.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/mitchellh/go-homedir"
)

// MaxSize caps how much of a source is read.
const MaxSize = 16 << 20

// ClipboardOrigin is the origin of text read from the clipboard.
const ClipboardOrigin = "clipboard"

// StdinOrigin is the origin of text read from standard input.
const StdinOrigin = "stdin"

var (
	readmeNames = []string{"README.md", "README", "Readme.md", "Readme", "readme.md", "readme"}

	markdownExtensions = []string{".md", ".mdown", ".mkdn", ".mkd", ".markdown"}

	// ErrNoReadme is returned for a directory without a README.
	ErrNoReadme = errors.New("missing markdown source")
)

// Source is loaded document content.
type Source struct {
	// Origin is an absolute path, a URL, StdinOrigin or ClipboardOrigin.
	Origin string
	Body   []byte
}

// Name returns a short display name.
func (s *Source) Name() string {
	if IsURL(s.Origin) {
		return s.Origin
	}
	if filepath.IsAbs(s.Origin) {
		return filepath.Base(s.Origin)
	}
	return s.Origin
}

// IsFile reports whether the source was read from a local file, and so
// can be watched.
func (s *Source) IsFile() bool {
	return filepath.IsAbs(s.Origin)
}

// IsMarkdown reports whether the source should be read as markdown: files
// with a markdown extension, READMEs without one, and everything that is
// not a file.
func (s *Source) IsMarkdown() bool {
	if !s.IsFile() && !IsURL(s.Origin) {
		return true
	}
	return IsMarkdownFile(s.Origin)
}

// Text returns the speakable text of the source.
func (s *Source) Text(skipCodeBlocks bool) string {
	if s.IsMarkdown() {
		return PlainText(s.Body, skipCodeBlocks)
	}
	return strings.TrimSpace(string(s.Body))
}

// IsMarkdownFile reports whether name has a markdown extension or no
// extension at all.
func IsMarkdownFile(name string) bool {
	if u, err := url.Parse(name); err == nil && u.Scheme != "" {
		name = u.Path
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return true
	}
	for _, v := range markdownExtensions {
		if ext == v {
			return true
		}
	}
	return false
}

// IsURL reports whether s is an http or https URL.
func IsURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Loader reads sources. The zero value uses http.DefaultClient and
// os.Stdin.
type Loader struct {
	Client *http.Client
	Stdin  io.Reader
}

// Load reads arg with a zero Loader.
func Load(ctx context.Context, arg string) (*Source, error) {
	return Loader{}.Load(ctx, arg)
}

// Load reads arg: "-" for standard input, an http(s) URL, a directory
// (its first README), or a file. An empty arg means the current directory.
func (l Loader) Load(ctx context.Context, arg string) (*Source, error) {
	if arg == "-" {
		stdin := l.Stdin
		if stdin == nil {
			stdin = os.Stdin
		}
		b, err := readAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("unable to read stdin: %w", err)
		}
		return &Source{Origin: StdinOrigin, Body: b}, nil
	}

	if strings.Contains(arg, "://") {
		u, err := url.ParseRequestURI(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("%s is not a supported protocol", u.Scheme)
		}
		return l.fetch(ctx, u)
	}

	if arg == "" {
		arg = "."
	}
	arg, err := homedir.Expand(arg)
	if err != nil {
		return nil, err
	}

	st, err := os.Stat(arg)
	if err == nil && st.IsDir() {
		path, err := findReadme(arg)
		if err != nil {
			return nil, err
		}
		arg = path
	}

	return readFile(arg)
}

// fetch downloads u, bypassing intermediate caches.
func (l Loader) fetch(ctx context.Context, u *url.URL) (*Source, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, CacheBust(u, time.Now()), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to get url: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP status %d", resp.StatusCode)
	}

	b, err := readAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read response: %w", err)
	}
	return &Source{Origin: u.String(), Body: b}, nil
}

// CacheBust returns u with a query parameter unique to now.
func CacheBust(u *url.URL, now time.Time) string {
	c := *u
	q := c.Query()
	q.Set("_", strconv.FormatInt(now.UnixNano(), 10))
	c.RawQuery = q.Encode()
	return c.String()
}

// FromClipboard reads the clipboard.
func FromClipboard() (*Source, error) {
	s, err := clipboard.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("unable to read clipboard: %w", err)
	}
	return &Source{Origin: ClipboardOrigin, Body: []byte(s)}, nil
}

// Reload reads a file or URL source again. Other sources are returned
// unchanged.
func (l Loader) Reload(ctx context.Context, s *Source) (*Source, error) {
	if !s.IsFile() && !IsURL(s.Origin) {
		return s, nil
	}
	return l.Load(ctx, s.Origin)
}

func findReadme(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, v := range readmeNames {
		for _, e := range entries {
			if !e.IsDir() && e.Name() == v {
				return filepath.Join(dir, v), nil
			}
		}
	}

	var found string
	errFound := errors.New("source found")

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		for _, v := range readmeNames {
			if strings.EqualFold(d.Name(), v) {
				found = path
				return errFound
			}
		}
		return nil
	})
	if found != "" {
		return found, nil
	}
	if err != nil && !errors.Is(err, errFound) {
		return "", err
	}
	return "", ErrNoReadme
}

func readFile(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("unable to get absolute path: %w", err)
	}

	b, err := readAll(f)
	if err != nil {
		return nil, fmt.Errorf("unable to read file: %w", err)
	}
	return &Source{Origin: abs, Body: b}, nil
}

func readAll(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, MaxSize))
}
