package answer

import (
	"sort"
	"strings"
	"unicode/utf8"

	"docrag/internal/domain"
	"docrag/internal/textutil"
)

// Replies used when no chunk text can be used.
const (
	NoDocuments  = "I couldn't find information in the documents. Please make sure documents are loaded and contain text."
	NoReadable   = "The document doesn't contain readable text for this question. Please try a different question."
	lastResort   = "Information from documents."
	heuristicTop = 3
)

// Kind is the surface class of a question.
type Kind int

const (
	Other Kind = iota
	Summary
	WhQuestion
	YesNo
)

var (
	summaryWords = set("summary", "summarize", "summarise", "what", "describe", "overview", "explain", "çfarë")
	whWords      = set("how", "when", "where", "why", "who", "which", "whom", "whose")
	yesNoWords   = set("is", "are", "does", "do", "can", "will", "should", "must", "was", "were", "has", "have")
	affirmative  = set("yes", "is", "are", "does", "do", "can", "will")
)

// Classify sorts a question into summary, wh, yes/no or other by its words.
func Classify(question string) Kind {
	tokens := textutil.Tokens(question)
	if strings.Contains(strings.ToLower(question), "tell me") || anyIn(tokens, summaryWords) {
		return Summary
	}
	if anyIn(tokens, whWords) {
		return WhQuestion
	}
	if anyIn(tokens, yesNoWords) {
		return YesNo
	}
	return Other
}

// Heuristic assembles an answer from the top session results without a model.
// The reply always names its sources and is never empty.
func Heuristic(question string, results []domain.Result) string {
	if len(results) == 0 {
		return NoDocuments
	}
	ranked := append([]domain.Result(nil), results...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Similarity > ranked[j].Similarity })

	var unique []string
	seen := make(map[string]struct{})
	for _, r := range ranked[:min(len(ranked), heuristicTop)] {
		text := strings.TrimSpace(r.Chunk.Text)
		if _, dup := seen[text]; dup || utf8.RuneCountInString(text) <= 10 {
			continue
		}
		seen[text] = struct{}{}
		unique = append(unique, text)
	}
	if len(unique) == 0 {
		for _, r := range results {
			if text := strings.TrimSpace(r.Chunk.Text); utf8.RuneCountInString(text) > 10 {
				unique = append(unique, text)
				break
			}
		}
	}
	if len(unique) == 0 {
		return NoReadable
	}
	combined := strings.Join(unique, "\n\n")
	sources := sourceList(results)

	var body string
	switch Classify(question) {
	case Summary:
		body = summaryAnswer(combined)
	case WhQuestion:
		body = whAnswer(question, combined, unique[0])
	case YesNo:
		body = yesNoAnswer(combined, unique[0])
	default:
		body = "Based on the documents, here's what I found:\n\n" + otherAnswer(combined, unique[0])
	}
	if len(sources) > 0 {
		body += "\n\nSources: " + strings.Join(sources, ", ")
	}
	return body
}

func summaryAnswer(combined string) string {
	var key []string
	for _, s := range textutil.Sentences(combined) {
		n := utf8.RuneCountInString(s)
		if n > 30 && n < 300 {
			key = append(key, s)
		}
		if len(key) >= 5 {
			break
		}
	}
	if len(key) > 0 {
		return "Based on the documents, here's the key information:\n\n" + terminate(strings.Join(key, ". "))
	}
	return "Based on the documents:\n\n" + textutil.Truncate(combined, 500)
}

func whAnswer(question, combined, first string) string {
	var terms []string
	for _, t := range textutil.QueryTerms(question) {
		if _, wh := whWords[t]; !wh && !textutil.IsStopword(t) {
			terms = append(terms, t)
		}
	}
	var relevant []string
	for _, s := range textutil.Sentences(combined) {
		if utf8.RuneCountInString(s) > 20 && textutil.CountMatches(terms, s) > 0 {
			relevant = append(relevant, s)
		}
		if len(relevant) == 3 {
			break
		}
	}
	if len(relevant) > 0 {
		return "Based on the documents:\n\n" + terminate(strings.Join(relevant, ". "))
	}
	return "Based on the documents:\n\n" + textutil.Truncate(first, 400)
}

func yesNoAnswer(combined, first string) string {
	if anyIn(textutil.Tokens(combined), affirmative) {
		return "Based on the documents, yes:\n\n" + textutil.Truncate(first, 300)
	}
	return "Based on the documents:\n\n" + textutil.Truncate(first, 300)
}

func otherAnswer(combined, first string) string {
	cleaned := textutil.Normalize(combined)
	if utf8.RuneCountInString(cleaned) < 10 {
		cleaned = first
	}
	answer := cleaned
	if utf8.RuneCountInString(cleaned) > 600 {
		var parts []string
		total := 0
		for _, s := range strings.Split(cleaned, ". ") {
			n := utf8.RuneCountInString(s)
			if total+n >= 600 {
				break
			}
			parts = append(parts, s)
			total += n
		}
		answer = terminate(strings.Join(parts, ". "))
		if len(parts) == 0 {
			answer = textutil.Truncate(cleaned, 600)
		}
	}
	if utf8.RuneCountInString(strings.TrimSpace(answer)) < 5 {
		answer = lastResort
	}
	return answer
}

// sourceList is the distinct source labels of the first results, in order.
func sourceList(results []domain.Result) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, r := range results[:min(len(results), heuristicTop)] {
		if r.Source == "" {
			continue
		}
		if _, ok := seen[r.Source]; ok {
			continue
		}
		seen[r.Source] = struct{}{}
		out = append(out, r.Source)
	}
	return out
}

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func anyIn(tokens []string, words map[string]struct{}) bool {
	for _, t := range tokens {
		if _, ok := words[t]; ok {
			return true
		}
	}
	return false
}
