package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragchat/internal/domain"
	"ragchat/internal/embedding/vocab"
	"ragchat/internal/summarizer"
)

// ChatPort is the TUI-facing subset of the RAG service.
type ChatPort interface {
	Ask(ctx context.Context, question string) (domain.Answer, error)
	Info() domain.IndexInfo
}

type answerMsg struct {
	answer domain.Answer
	err    error
}

// Model is the Bubble Tea model for the chat shell.
type Model struct {
	service  ChatPort
	input    textinput.Model
	viewport viewport.Model
	turns    []domain.Answer
	info     domain.IndexInfo
	status   string
	cursor   int
	busy     bool
	ready    bool
	copy     func(string) error
}

// New creates a new TUI model instance.
func New(service ChatPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	info := service.Info()
	status := "Ready. Ask about your documents."
	if !info.Exists {
		status = "The index is empty. Add documents with `ragchat add` first."
	}
	return Model{service: service, input: ti, viewport: vp, info: info, status: status, copy: clipboard.WriteAll}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func ask(service ChatPort, question string) tea.Cmd {
	return func() tea.Msg {
		a, err := service.Ask(context.Background(), question)
		return answerMsg{answer: a, err: err}
	}
}

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around answer and query boxes
		_, rh := answerBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + info, status, input, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.refresh()
		return m, nil
	case answerMsg:
		m.busy = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.turns = append(m.turns, msg.answer)
		m.cursor = 0
		m.info = m.service.Info()
		m.status = fmt.Sprintf("Answered from %d sources", len(msg.answer.Sources))
		m.refresh()
		m.viewport.GotoTop()
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.busy = true
			m.status = "Thinking..."
			m.input.Reset()
			return m, ask(m.service, q)
		case "down":
			if src := m.sources(); len(src) > 0 {
				m.cursor = (m.cursor + 1) % len(src)
				m.refresh()
				return m, nil
			}
		case "up":
			if src := m.sources(); len(src) > 0 {
				m.cursor = (m.cursor - 1 + len(src)) % len(src)
				m.refresh()
				return m, nil
			}
		case "ctrl+y":
			src := m.sources()
			if len(src) == 0 {
				m.status = "Nothing to copy."
				return m, nil
			}
			if err := m.copy(src[m.cursor].Content); err != nil {
				m.status = "Copy failed: " + err.Error()
			} else {
				m.status = fmt.Sprintf("Copied source %d to clipboard", m.cursor+1)
			}
			return m, nil
		case "ctrl+l":
			m.turns = nil
			m.cursor = 0
			m.status = "Cleared."
			m.refresh()
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("RAG Chat")
	info := infoStyle.Render(fmt.Sprintf("%d entries · dimension %d · %d questions", m.info.Count, m.info.Dimension, len(m.turns)))
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	body := answerBoxStyle.Render(m.viewport.View())
	return header + "\n" + info + "\n" + body + "\n" + input + "\n" + status
}

func (m Model) sources() []domain.SearchResult {
	if len(m.turns) == 0 {
		return nil
	}
	return m.turns[len(m.turns)-1].Sources
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderCurrent())
}

func (m Model) renderCurrent() string {
	if len(m.turns) == 0 {
		return "No questions yet."
	}
	last := m.turns[len(m.turns)-1]
	width := max(10, m.viewport.Width-4)
	var b strings.Builder
	b.WriteString(questionStyle.Render("Q: " + last.Question))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Width(width).Render(last.Text))
	if len(last.Sources) > 0 {
		r := last.Sources[m.cursor]
		b.WriteString("\n\n")
		b.WriteString(infoStyle.Render(fmt.Sprintf("Source %d/%d  %s  similarity=%.3f", m.cursor+1, len(last.Sources), r.Source, r.Similarity)))
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(width).Render(highlightBestSentence(r.Content, last.Question)))
	}
	if len(m.turns) > 1 {
		b.WriteString("\n\n")
		b.WriteString(infoStyle.Render("Earlier"))
		// newest first
		for i := len(m.turns) - 2; i >= 0; i-- {
			t := m.turns[i]
			b.WriteString("\n")
			b.WriteString(questionStyle.Render("Q: " + t.Question))
			b.WriteString("\n")
			b.WriteString(lipgloss.NewStyle().Width(width).Render(t.Text))
		}
	}
	return b.String()
}

var (
	answerBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	questionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	infoStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := summarizer.Sentences(text)
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := bestSentence(sentences, qTokens)
	out := make([]string, len(sentences))
	for i, sent := range sentences {
		if i == bestIdx {
			out[i] = highlightStyle.Render(sent)
		} else {
			out[i] = sent
		}
	}
	return strings.Join(out, " ")
}

func bestSentence(sentences []string, qTokens map[string]struct{}) int {
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	return bestIdx
}

func toTokenSet(s string) map[string]struct{} {
	tokens := vocab.Tokenize(s)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := make(map[string]struct{})
	for _, t := range vocab.Tokenize(sentence) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
