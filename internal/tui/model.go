package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docrag/internal/domain"
	"docrag/internal/service"
	"docrag/internal/textutil"
)

// SessionPort is the TUI-facing subset of the session pipeline.
type SessionPort interface {
	Query(ctx context.Context, text string, topK int, scope string) (service.Response, error)
	Remove(ctx context.Context, documentID string) (int, error)
}

type queryDoneMsg struct {
	query string
	resp  service.Response
	err   error
}

type removeDoneMsg struct {
	document string
	removed  int
	err      error
}

// Model is the Bubble Tea model for the session browser.
//
// Input lines are questions, except:
//
//	/scope NAME   restrict queries to one document
//	/scope        clear the restriction
//	/remove NAME  drop a document from the session
type Model struct {
	ctx       context.Context
	service   SessionPort
	topK      int
	input     textinput.Model
	viewport  viewport.Model
	resp      service.Response
	summary   string
	status    string
	scope     string
	cursor    int
	ready     bool
	busy      bool
	lastQuery string
}

// New creates a model. The context bounds every query the model issues.
func New(ctx context.Context, svc SessionPort, summary string, topK int) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, /scope NAME or /remove NAME"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{ctx: ctx, service: svc, topK: topK, input: ti, viewport: vp, summary: summary, status: "Loaded. Type to search."}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+summary, status, spacer
		vh := max(3, msg.Height-reserved)
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case queryDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.status = service.Message(msg.err)
			m.resp = service.Response{}
		} else {
			m.resp = msg.resp
			m.cursor = 0
			m.lastQuery = msg.query
			m.status = fmt.Sprintf("%d results for %q", len(msg.resp.Results), msg.query)
			if msg.resp.LowConfidence {
				m.status += " (low confidence)"
			}
		}
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case removeDoneMsg:
		m.busy = false
		switch {
		case msg.err != nil:
			m.status = service.Message(msg.err)
		case msg.removed == 0:
			m.status = fmt.Sprintf("No chunks found for %q", msg.document)
		default:
			m.status = fmt.Sprintf("Removed %d chunks of %q", msg.removed, msg.document)
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			if line == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			return m.submit(line)
		case "down":
			if n := len(m.resp.Results); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		case "up":
			if n := len(m.resp.Results); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderCurrentResult())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(line string) (tea.Model, tea.Cmd) {
	switch {
	case line == "/scope":
		m.scope = ""
		m.status = "Searching all documents"
		return m, nil
	case strings.HasPrefix(line, "/scope "):
		m.scope = strings.TrimSpace(strings.TrimPrefix(line, "/scope "))
		m.status = fmt.Sprintf("Searching only %q", m.scope)
		return m, nil
	case strings.HasPrefix(line, "/remove "):
		doc := strings.TrimSpace(strings.TrimPrefix(line, "/remove "))
		m.busy = true
		m.status = "Removing " + doc + "..."
		ctx, svc := m.ctx, m.service
		return m, func() tea.Msg {
			n, err := svc.Remove(ctx, doc)
			return removeDoneMsg{document: doc, removed: n, err: err}
		}
	}
	m.busy = true
	m.status = "Searching..."
	ctx, svc, topK, scope := m.ctx, m.service, m.topK, m.scope
	return m, func() tea.Msg {
		resp, err := svc.Query(ctx, line, topK, scope)
		return queryDoneMsg{query: line, resp: resp, err: err}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	title := "docrag"
	if m.scope != "" {
		title += "  [" + m.scope + "]"
	}
	header := lipgloss.NewStyle().Bold(true).Render(title)
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrentResult() string {
	if len(m.resp.Results) == 0 {
		if m.resp.Answer != "" {
			return m.resp.Answer
		}
		return "No results yet."
	}
	r := m.resp.Results[m.cursor]
	answer := answerStyle.Render(m.resp.Answer)
	title := fmt.Sprintf("Result %d/%d  %s  score=%.3f", m.cursor+1, len(m.resp.Results), r.Source, r.Score)
	return answer + "\n\n" + title + "\n\n" + highlightBestSentence(r.Chunk.Text, m.lastQuery)
}

// Current returns the result under the cursor.
func (m Model) Current() (domain.Result, bool) {
	if len(m.resp.Results) == 0 {
		return domain.Result{}, false
	}
	return m.resp.Results[m.cursor], true
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

// highlightBestSentence renders the sentence sharing the most words with
// query in the highlight style.
func highlightBestSentence(text, query string) string {
	sentences := textutil.Sentences(text)
	if len(sentences) == 0 {
		return text
	}
	terms := toTokenSet(query)
	if len(terms) == 0 {
		return strings.Join(sentences, ". ")
	}
	best, bestScore := 0, -1
	for i, s := range sentences {
		if score := tokenOverlapScore(terms, s); score > bestScore {
			best, bestScore = i, score
		}
	}
	out := make([]string, len(sentences))
	for i, s := range sentences {
		if i == best {
			s = highlightStyle.Render(s)
		}
		out[i] = s
	}
	return strings.Join(out, ". ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := textutil.Tokens(s)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

func tokenOverlapScore(terms map[string]struct{}, sentence string) int {
	score := 0
	seen := make(map[string]struct{})
	for _, t := range textutil.Tokens(sentence) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := terms[t]; ok {
			score++
		}
	}
	return score
}
