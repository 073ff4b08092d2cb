package chunker

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"docrag/internal/domain"
	"docrag/internal/textutil"
)

// Defaults for the paragraph chunker.
const (
	DefaultChunkSize = 300
	DefaultOverlap   = 50
	DefaultMinLength = 10
)

var blankLineRe = regexp.MustCompile(`\n[ \t]*\n`)

// Paragraph splits text on blank lines and breaks oversized paragraphs into
// sentence-packed chunks, carrying the last words of each chunk into the next.
// Sizes are in characters, overlap is in words.
type Paragraph struct {
	chunkSize int
	overlap   int
	minLength int
}

// NewParagraph creates a paragraph chunker. Non-positive sizes select defaults
// and a negative overlap disables overlap.
func NewParagraph(chunkSize, overlapWords, minLength int) *Paragraph {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlapWords < 0 {
		overlapWords = 0
	}
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	return &Paragraph{chunkSize: chunkSize, overlap: overlapWords, minLength: minLength}
}

// Piece is a chunk of text with its paragraph provenance.
type Piece struct {
	Text      string
	Paragraph int
	Span      domain.Span
}

// Chunk splits the document into chunks with ids of the form <document>_chunk_<n>.
func (c *Paragraph) Chunk(document domain.Document) ([]domain.Chunk, error) {
	pieces := c.Split(document.Content)
	chunks := make([]domain.Chunk, 0, len(pieces))
	for i, p := range pieces {
		chunks = append(chunks, domain.Chunk{
			ID:   document.ID + "_chunk_" + strconv.Itoa(i),
			Text: p.Text,
			Provenance: domain.Provenance{
				DocumentID: document.ID,
				Paragraph:  p.Paragraph,
				Sequence:   i,
			},
			Span: p.Span,
		})
	}
	return chunks, nil
}

// Split returns the pieces for text. Any text with non-whitespace content
// yields at least one piece.
func (c *Paragraph) Split(text string) []Piece {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	paragraphs := nonEmpty(blankLineRe.Split(text, -1))
	if len(paragraphs) == 0 {
		paragraphs = nonEmpty(strings.Split(text, "\n"))
	}

	var pieces []Piece
	for i, para := range paragraphs {
		n := i + 1
		if utf8.RuneCountInString(para) <= c.chunkSize {
			pieces = append(pieces, Piece{Text: para, Paragraph: n, Span: domain.Span{End: len(para)}})
			continue
		}
		pieces = append(pieces, c.splitSentences(para, n)...)
	}

	kept := pieces[:0]
	for _, p := range pieces {
		p.Text = textutil.Normalize(p.Text)
		if utf8.RuneCountInString(p.Text) < c.minLength {
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) == 0 {
		trimmed := textutil.Normalize(text)
		if trimmed == "" {
			return nil
		}
		head := textutil.Prefix(trimmed, c.chunkSize*2)
		return []Piece{{Text: head, Paragraph: 1, Span: domain.Span{End: len(head)}}}
	}
	return kept
}

func (c *Paragraph) splitSentences(para string, n int) []Piece {
	var (
		pieces []Piece
		buf    string
		start  int
	)
	for _, s := range textutil.Sentences(para) {
		s = terminate(s)
		if buf != "" && utf8.RuneCountInString(buf)+utf8.RuneCountInString(s) > c.chunkSize {
			pieces = append(pieces, Piece{
				Text:      strings.TrimSpace(buf),
				Paragraph: n,
				Span:      domain.Span{Start: start, End: start + len(buf)},
			})
			carry := overlapWords(buf, c.overlap)
			start += len(buf) - len(carry)
			if carry != "" {
				buf = carry + " " + s + " "
			} else {
				buf = s + " "
			}
			continue
		}
		buf += s + " "
	}
	if strings.TrimSpace(buf) != "" {
		pieces = append(pieces, Piece{
			Text:      strings.TrimSpace(buf),
			Paragraph: n,
			Span:      domain.Span{Start: start, End: start + len(buf)},
		})
	}
	return pieces
}

// overlapWords returns the last n words of buf, or all of it when it is shorter.
func overlapWords(buf string, n int) string {
	if n == 0 {
		return ""
	}
	words := strings.Fields(buf)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[len(words)-n:], " ")
}

func terminate(s string) string {
	switch s[len(s)-1] {
	case '.', '!', '?':
		return s
	}
	return s + "."
}

func nonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
