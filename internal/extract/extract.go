// Package extract turns corpus files into page-tagged text.
package extract

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Page is the text of one page of a source file. Number is 1-based.
type Page struct {
	Source string
	Number int
	Text   string
}

// Extractor reads one file into pages.
type Extractor interface {
	Extract(path string) ([]Page, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(path string) ([]Page, error)

func (f ExtractorFunc) Extract(path string) ([]Page, error) { return f(path) }

// Registry maps lower-case file extensions to extractors.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry returns a registry with the plain text and PDF extractors.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]Extractor)}
	r.Register(".txt", ExtractorFunc(PlainText))
	r.Register(".md", ExtractorFunc(PlainText))
	r.Register(".pdf", ExtractorFunc(PDF))
	return r
}

func (r *Registry) Register(ext string, e Extractor) {
	r.byExt[strings.ToLower(ext)] = e
}

// Supports reports whether path has a registered extension.
func (r *Registry) Supports(path string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extract dispatches on the file extension.
func (r *Registry) Extract(path string) ([]Page, error) {
	e, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("no extractor for %s", path)
	}
	return e.Extract(path)
}

// Discover lists the supported files directly inside dir, sorted by name.
func (r *Registry) Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || e.Type()&fs.ModeSymlink != 0 {
			continue
		}
		if r.Supports(e.Name()) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// PlainText reads a text file. Form feeds separate pages.
func PlainText(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	name := filepath.Base(path)
	var pages []Page
	for i, part := range bytes.Split(data, []byte{'\f'}) {
		pages = append(pages, Page{Source: name, Number: i + 1, Text: string(part)})
	}
	return pages, nil
}

// PDF extracts the plain text of each page. Pages that fail to decode are skipped.
func PDF(path string) ([]Page, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	var pages []Page
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		text, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}
		pages = append(pages, Page{Source: name, Number: i, Text: text})
	}
	return pages, nil
}
