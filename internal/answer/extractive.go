package answer

import (
	"sort"
	"strings"
	"unicode/utf8"

	"docrag/internal/textutil"
)

const (
	extractiveChunks    = 5
	extractiveSentences = 5
	dedupePrefix        = 50
	minChunkLength      = 20
	minSentenceLength   = 30
	fallbackSentences   = 3
	fallbackLimit       = 600
	lastResortLimit     = 500
)

// Extractive answers by picking the question-relevant sentences of the top chunks.
// limit caps the answer length in characters.
func Extractive(question string, chunks []string, limit int) string {
	if len(chunks) == 0 {
		return NoInformation
	}
	if limit <= 0 {
		limit = 800
	}
	terms := textutil.QueryTerms(question)

	type scored struct {
		text  string
		score int
	}
	var candidates []scored
	for _, chunk := range chunks[:min(len(chunks), extractiveChunks)] {
		if utf8.RuneCountInString(strings.TrimSpace(chunk)) < minChunkLength {
			continue
		}
		for _, sentence := range textutil.Sentences(chunk) {
			if utf8.RuneCountInString(sentence) < minSentenceLength {
				continue
			}
			score := sentenceScore(terms, sentence)
			if score > 0 || textutil.HasDefinition(sentence) {
				candidates = append(candidates, scored{sentence, score})
			}
		}
	}

	if len(candidates) > 0 {
		sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
		seen := make(map[string]struct{})
		var picked []string
		for _, c := range candidates[:min(len(candidates), extractiveSentences)] {
			key := textutil.Prefix(strings.ToLower(c.text), dedupePrefix)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			picked = append(picked, c.text)
		}
		return textutil.Truncate(terminate(strings.Join(picked, ". ")), limit)
	}

	first := chunks[0]
	var lead []string
	sentences := textutil.Sentences(first)
	for _, s := range sentences[:min(len(sentences), fallbackSentences)] {
		if utf8.RuneCountInString(s) > minSentenceLength {
			lead = append(lead, s)
		}
	}
	if len(lead) > 0 {
		return textutil.Truncate(terminate(strings.Join(lead, ". ")), fallbackLimit)
	}
	if rest := strings.TrimSpace(first); rest != "" {
		return textutil.Truncate(rest, lastResortLimit)
	}
	return NoInformation
}

// sentenceScore counts distinct question terms among the sentence's words,
// plus two when a question term longer than three characters appears anywhere in it.
func sentenceScore(terms []string, sentence string) int {
	words := make(map[string]struct{})
	for _, w := range textutil.Tokens(sentence) {
		if utf8.RuneCountInString(w) > 2 {
			words[w] = struct{}{}
		}
	}
	score := 0
	for _, t := range terms {
		if _, ok := words[t]; ok {
			score++
		}
	}
	lower := strings.ToLower(sentence)
	for _, t := range terms {
		if utf8.RuneCountInString(t) > 3 && strings.Contains(lower, t) {
			score += 2
			break
		}
	}
	return score
}

func terminate(s string) string {
	if strings.HasSuffix(s, ".") {
		return s
	}
	return s + "."
}
