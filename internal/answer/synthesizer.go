// Package answer writes the reply text for a question from ranked chunks.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"docrag/internal/domain"
	"docrag/internal/llm"
	"docrag/internal/logger"
	"docrag/internal/metrics"
)

// NoInformation is returned when there is nothing to answer from.
const NoInformation = "I couldn't find relevant information in the documents for your question."

const systemPrompt = `You are a document assistant. Answer questions using ONLY the context passages supplied with the question.

Rules:
1. Use only information found in the context. Do not invent facts.
2. Give a complete explanation in several sentences. Never just restate the question.
3. For "what is X" questions, explain what X is, its purpose and its key characteristics as described in the context.
4. If the context is incomplete, give the best answer the context supports. Do not ask clarifying questions.
5. Start with a short definition or overview, then add details. You may refer to the sources by name.

Answer in the same language as the question.`

// Options tunes synthesis.
type Options struct {
	// MaxChunks is how many top results are sent to the generator.
	MaxChunks int
	// AnswerLimit caps the extractive answer length in characters.
	AnswerLimit int
}

// Synthesizer prefers the generator and falls back to extraction when the
// generator is missing or fails.
type Synthesizer struct {
	gen     llm.Generator
	opts    Options
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewSynthesizer accepts a nil generator, which means extractive answers only.
func NewSynthesizer(gen llm.Generator, opts Options, log *slog.Logger, m *metrics.Metrics) *Synthesizer {
	if opts.MaxChunks <= 0 {
		opts.MaxChunks = 5
	}
	if opts.AnswerLimit <= 0 {
		opts.AnswerLimit = 800
	}
	return &Synthesizer{gen: gen, opts: opts, log: logger.OrDiscard(log), metrics: m}
}

// Synthesize never returns an empty string.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, results []domain.Result) string {
	if len(results) == 0 {
		return NoInformation
	}
	top := results[:min(len(results), s.opts.MaxChunks)]
	if s.gen == nil {
		s.metrics.AnswerFallback("no_backend")
		return Extractive(question, texts(top), s.opts.AnswerLimit)
	}
	out, err := s.gen.Generate(ctx, systemPrompt, Prompt(question, top))
	if err != nil || strings.TrimSpace(out) == "" {
		s.log.Warn("generative answer failed, using extractive answer", "backend", s.gen.Name(), "error", err)
		s.metrics.AnswerFallback("error")
		return Extractive(question, texts(top), s.opts.AnswerLimit)
	}
	return strings.TrimSpace(out)
}

// Prompt builds the user message: each passage tagged with its source, then the question.
func Prompt(question string, results []domain.Result) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("[Source %d: %s, %s]\n%s", i+1, sourceName(r), location(r), r.Chunk.Text)
	}
	var sb strings.Builder
	sb.WriteString("Context from the documents:\n\n")
	sb.WriteString(strings.Join(parts, "\n\n"))
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\n\nWrite a complete, detailed answer based on the context above. " +
		"If the question asks what something is, explain what it is, its purpose and key details. " +
		"Answer directly without asking clarifying questions.")
	return sb.String()
}

func sourceName(r domain.Result) string {
	if r.Source != "" {
		return r.Source
	}
	if r.Chunk.Provenance.DocumentID != "" {
		return r.Chunk.Provenance.DocumentID
	}
	return "Document"
}

func location(r domain.Result) string {
	switch {
	case r.Page > 0:
		return fmt.Sprintf("Page %d", r.Page)
	case r.Paragraph > 0:
		return fmt.Sprintf("Paragraph %d", r.Paragraph)
	default:
		return "Page ?"
	}
}

func texts(results []domain.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Chunk.Text
	}
	return out
}
