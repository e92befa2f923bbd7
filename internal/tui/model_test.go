package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"ragchat/internal/domain"
)

type fakeChat struct {
	answer domain.Answer
	err    error
	asked  []string
}

func (f *fakeChat) Ask(_ context.Context, q string) (domain.Answer, error) {
	f.asked = append(f.asked, q)
	a := f.answer
	a.Question = q
	return a, f.err
}

func (f *fakeChat) Info() domain.IndexInfo {
	return domain.IndexInfo{Exists: true, Count: 2, Dimension: 384}
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(Model)
}

func submit(t *testing.T, m Model, q string) Model {
	t.Helper()
	m.input.SetValue(q)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if cmd == nil {
		t.Fatal("enter should start a request")
	}
	next, _ = m.Update(cmd())
	return next.(Model)
}

var twoSources = domain.Answer{
	Text: "Plants convert sunlight.",
	Sources: []domain.SearchResult{
		{Chunk: domain.Chunk{Content: "Leaves are green. Plants convert sunlight into energy.", Source: "bio.pdf"}, Similarity: 0.9},
		{Chunk: domain.Chunk{Content: "Second source text.", Source: "web"}, Similarity: 0.2},
	},
}

func TestAskFlow(t *testing.T) {
	chat := &fakeChat{answer: twoSources}
	m := sized(t, New(chat))
	m = submit(t, m, "  how do plants get energy?  ")

	if len(chat.asked) != 1 || chat.asked[0] != "how do plants get energy?" {
		t.Fatalf("asked = %q", chat.asked)
	}
	view := m.View()
	for _, want := range []string{"RAG Chat", "Plants convert sunlight.", "Source 1/2", "bio.pdf", "Answered from 2 sources"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if m.input.Value() != "" {
		t.Errorf("input not cleared: %q", m.input.Value())
	}
}

func TestSourceNavigationAndCopy(t *testing.T) {
	m := sized(t, New(&fakeChat{answer: twoSources}))
	m = submit(t, m, "plants")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	if m.cursor != 1 || !strings.Contains(m.View(), "Source 2/2") {
		t.Fatalf("cursor = %d", m.cursor)
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	if m.cursor != 0 {
		t.Fatalf("cursor should wrap, got %d", m.cursor)
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(Model)
	if m.cursor != 1 {
		t.Fatalf("cursor should wrap backwards, got %d", m.cursor)
	}

	var copied string
	m.copy = func(s string) error { copied = s; return nil }
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	m = next.(Model)
	if copied != "Second source text." || !strings.Contains(m.status, "Copied source 2") {
		t.Fatalf("copied %q, status %q", copied, m.status)
	}
}

func TestAskError(t *testing.T) {
	m := sized(t, New(&fakeChat{err: errors.New("index unavailable")}))
	m = submit(t, m, "anything")
	if !strings.Contains(m.status, "index unavailable") || len(m.turns) != 0 {
		t.Fatalf("status = %q turns = %d", m.status, len(m.turns))
	}
}

func TestEnterIgnoredWhenEmptyOrBusy(t *testing.T) {
	m := sized(t, New(&fakeChat{answer: twoSources}))
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Fatal("empty input should not start a request")
	}
	m.busy = true
	m.input.SetValue("question")
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Fatal("busy model should not start another request")
	}
}

func TestTranscriptKeepsEarlierTurns(t *testing.T) {
	m := sized(t, New(&fakeChat{answer: twoSources}))
	m = submit(t, m, "first question")
	m = submit(t, m, "second question")
	if len(m.turns) != 2 {
		t.Fatalf("turns = %d", len(m.turns))
	}
	content := m.renderCurrent()
	if !strings.Contains(content, "Q: second question") || !strings.Contains(content, "Earlier") || !strings.Contains(content, "Q: first question") {
		t.Fatalf("transcript missing turns:\n%s", content)
	}
	if strings.Index(content, "second question") > strings.Index(content, "first question") {
		t.Fatal("newest turn should render first")
	}
}

func TestClear(t *testing.T) {
	m := sized(t, New(&fakeChat{answer: twoSources}))
	m = submit(t, m, "plants")
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	m = next.(Model)
	if len(m.turns) != 0 || !strings.Contains(m.View(), "No questions yet.") {
		t.Fatal("transcript not cleared")
	}
}

func TestBestSentence(t *testing.T) {
	sentences := []string{"Leaves are green.", "Plants convert sunlight into energy.", "Roots absorb water."}
	if got := bestSentence(sentences, toTokenSet("how do plants use sunlight")); got != 1 {
		t.Fatalf("bestSentence = %d", got)
	}
	if got := highlightBestSentence("One. Two.", ""); got != "One. Two." {
		t.Fatalf("no-query highlight = %q", got)
	}
}
