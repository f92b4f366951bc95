// Package document provides the submitted statement (path + bytes) and the
// page text every extraction strategy and the classifier read from.
package document

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrDocumentNotFound is returned when the source path does not exist.
var ErrDocumentNotFound = errors.New("document not found")

// Document is a submitted PDF. Identity is the absolute source path.
type Document struct {
	Path    string
	Content []byte
}

// Open reads the file at path into a Document with an absolute path.
func Open(path string) (Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to resolve path %q: %w", path, err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Document{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, abs)
		}
		return Document{}, fmt.Errorf("failed to read document: %w", err)
	}

	return Document{Path: abs, Content: data}, nil
}

// Name returns the file name, e.g. "statement.pdf".
func (d Document) Name() string {
	return filepath.Base(d.Path)
}

// Stem returns the file name without its extension.
func (d Document) Stem() string {
	return Stem(d.Path)
}

// Stem returns the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Text is the per-page text of a document.
type Text struct {
	Pages []string
}

// NewText builds a Text from page strings.
func NewText(pages ...string) Text {
	return Text{Pages: pages}
}

// Joined returns all pages separated by newlines.
func (t Text) Joined() string {
	return strings.Join(t.Pages, "\n")
}

// Lines returns every line of every page in order.
func (t Text) Lines() []string {
	var lines []string
	for _, page := range t.Pages {
		lines = append(lines, splitLines(page)...)
	}
	return lines
}

// PageLines returns the lines of page i.
func (t Text) PageLines(i int) []string {
	if i < 0 || i >= len(t.Pages) {
		return nil
	}
	return splitLines(t.Pages[i])
}

// Head returns the first n pages.
func (t Text) Head(n int) Text {
	if n < 0 || n >= len(t.Pages) {
		return t
	}
	return Text{Pages: t.Pages[:n]}
}

func splitLines(page string) []string {
	page = strings.ReplaceAll(page, "\r\n", "\n")
	page = strings.ReplaceAll(page, "\r", "\n")
	return strings.Split(page, "\n")
}
