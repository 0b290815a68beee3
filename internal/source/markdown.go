package source

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// RemoveFrontmatter strips a leading "---" delimited YAML block.
func RemoveFrontmatter(content []byte) []byte {
	content = bytes.TrimPrefix(content, []byte("\ufeff"))
	if !bytes.HasPrefix(content, []byte("---\n")) && !bytes.HasPrefix(content, []byte("---\r\n")) {
		return content
	}

	rest := content[3:]
	for {
		i := bytes.Index(rest, []byte("\n---"))
		if i < 0 {
			return content
		}
		after := rest[i+4:]
		if len(after) == 0 {
			return nil
		}
		if after[0] == '\n' {
			return after[1:]
		}
		if bytes.HasPrefix(after, []byte("\r\n")) {
			return after[2:]
		}
		rest = rest[i+4:]
	}
}

// PlainText extracts speakable text from markdown. Headings, paragraphs,
// list items and table rows each end with a newline; markup, HTML and
// link targets are dropped. Code blocks are kept unless skipCodeBlocks is
// set.
func PlainText(markdown []byte, skipCodeBlocks bool) string {
	src := RemoveFrontmatter(markdown)
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(src))

	w := &walker{source: src, skipCode: skipCodeBlocks}
	w.walk(doc)
	return tidy(w.buf.String())
}

type walker struct {
	source   []byte
	skipCode bool
	buf      strings.Builder
}

func (w *walker) children(n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		w.walk(c)
	}
}

func (w *walker) newline() {
	w.buf.WriteByte('\n')
}

func (w *walker) walk(node ast.Node) {
	switch n := node.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock:
		if w.skipCode {
			return
		}
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			w.buf.Write(seg.Value(w.source))
		}
		w.newline()

	case *ast.HTMLBlock, *ast.RawHTML:
		return

	case *ast.Heading:
		start := w.buf.Len()
		w.children(n)
		// A heading reads as its own sentence.
		if w.buf.Len() > start && !endsSentence(w.buf.String()) {
			w.buf.WriteByte('.')
		}
		w.newline()

	case *ast.Paragraph, *ast.TextBlock:
		w.children(n)
		w.newline()

	case *ast.ThematicBreak:
		w.newline()

	case *ast.Text:
		w.buf.Write(n.Segment.Value(w.source))
		switch {
		case n.HardLineBreak():
			w.newline()
		case n.SoftLineBreak():
			w.buf.WriteByte(' ')
		}

	case *ast.String:
		w.buf.Write(n.Value)

	case *ast.AutoLink:
		w.buf.Write(n.Label(w.source))

	case *ast.Image:
		// alt text only
		w.children(n)

	case *east.TableRow, *east.TableHeader:
		var cells []string
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			cell := &walker{source: w.source, skipCode: w.skipCode}
			cell.children(c)
			cells = append(cells, strings.TrimSpace(cell.buf.String()))
		}
		w.buf.WriteString(strings.Join(cells, ", "))
		w.newline()

	case *east.TaskCheckBox:
		return

	default:
		w.children(n)
	}
}

func endsSentence(s string) bool {
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	if s == "" {
		return true
	}
	switch s[len(s)-1] {
	case '.', '!', '?', ':':
		return true
	}
	return false
}

// tidy trims every line and drops blank ones.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
