// Package textutil holds the tokenisation and sentence helpers shared by the
// chunker, the encoders and the ranking and answer code.
package textutil

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	wordRe = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)
	// A definition term matches as a whole word or phrase.
	definitionRe = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(?:` + strings.Join(quoteAll(DefinitionTerms), "|") + `)(?:$|[^\p{L}\p{N}])`)
)

// DefinitionTerms signal definitional content in English and Albanian.
var DefinitionTerms = []string{
	"is", "are", "means", "refers to", "definition", "defined as",
	"është", "përkufizim", "do të thotë",
}

// Tokens returns lower-cased word tokens in input order.
func Tokens(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}

// ContentTokens returns Tokens with stopwords removed.
func ContentTokens(text string) []string {
	raw := Tokens(text)
	out := raw[:0]
	for _, t := range raw {
		if _, ok := stopwords[t]; ok {
			continue
		}
		out = append(out, t)
	}
	return out
}

// QueryTerms returns the distinct lower-cased tokens of the query longer than
// two characters, in first-seen order.
func QueryTerms(query string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range Tokens(query) {
		if utf8.RuneCountInString(t) <= 2 {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// CountMatches counts how many of terms occur in text, case-insensitively.
func CountMatches(terms []string, text string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			n++
		}
	}
	return n
}

// HasDefinition reports whether text contains a definition-signalling term.
func HasDefinition(text string) bool {
	return definitionRe.MatchString(text)
}

// Sentences splits text on period-plus-space after turning newlines into spaces.
// Empty pieces are dropped and each piece is trimmed.
func Sentences(text string) []string {
	flat := strings.ReplaceAll(text, "\r\n", " ")
	flat = strings.ReplaceAll(flat, "\n", " ")
	var out []string
	for _, s := range strings.Split(flat, ". ") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Normalize collapses all runs of whitespace to single spaces.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Truncate returns at most n runes of text, appending "..." when it cut.
func Truncate(text string, n int) string {
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	r := []rune(text)
	return string(r[:n]) + "..."
}

// Prefix returns at most n runes of text.
func Prefix(text string, n int) string {
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n])
}

// IsStopword reports whether the lower-cased token is a stopword.
func IsStopword(tok string) bool {
	_, ok := stopwords[tok]
	return ok
}

func quoteAll(terms []string) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = regexp.QuoteMeta(t)
	}
	return out
}

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()
