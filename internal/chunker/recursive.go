package chunker

import (
	"strings"
	"unicode/utf8"

	"docrag/internal/textutil"
)

// Defaults for the recursive corpus splitter.
const (
	DefaultCorpusChunkSize = 1000
	DefaultCorpusOverlap   = 200
	DefaultCorpusMinLength = 50
	DefaultSnippetLength   = 200
)

// DefaultSeparators are tried in priority order: paragraph, line, sentence, word, character.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Recursive splits text by the highest-priority separator present and recurses
// into pieces that are still too long, then merges small pieces back together
// up to chunkSize characters with overlap characters shared between neighbours.
type Recursive struct {
	chunkSize  int
	overlap    int
	separators []string
}

// NewRecursive creates a recursive splitter. A non-positive size selects the
// default and a negative overlap disables overlap.
func NewRecursive(chunkSize, overlap int, separators ...string) *Recursive {
	if chunkSize <= 0 {
		chunkSize = DefaultCorpusChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	return &Recursive{chunkSize: chunkSize, overlap: overlap, separators: separators}
}

// Split returns the chunk texts for text in document order.
func (r *Recursive) Split(text string) []string {
	return r.split(text, r.separators)
}

func (r *Recursive) split(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" {
			sep = s
			break
		}
		if strings.Contains(text, s) {
			sep = s
			rest = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, part := range splitKeep(text, sep) {
		if runeLen(part) < r.chunkSize {
			good = append(good, part)
			continue
		}
		if len(good) > 0 {
			final = append(final, r.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			final = append(final, part)
		} else {
			final = append(final, r.split(part, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, r.merge(good)...)
	}
	return final
}

// merge packs consecutive splits into documents no longer than chunkSize,
// dropping leading splits until at most overlap characters are carried over.
// Separators are already attached to the splits so they are joined directly.
func (r *Recursive) merge(splits []string) []string {
	var (
		docs    []string
		current []string
		total   int
	)
	for _, s := range splits {
		n := runeLen(s)
		if total+n > r.chunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				docs = append(docs, doc)
			}
			for total > r.overlap || (total+n > r.chunkSize && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, s)
		total += n
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// splitKeep splits text on sep keeping the separator at the start of each
// following piece. An empty separator splits into characters.
func splitKeep(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Snippet is a display excerpt of at most n characters.
func Snippet(text string, n int) string {
	if n <= 0 {
		n = DefaultSnippetLength
	}
	return textutil.Truncate(text, n)
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
