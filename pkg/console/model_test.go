package console

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/loupelabs/loupe/pkg/api"
	"github.com/loupelabs/loupe/pkg/catalog"
)

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return model, cmd
}

func testAnswer() *api.Answer {
	return &api.Answer{
		ID:       "q-1",
		Question: "what is loupe",
		Text:     "Loupe is a retrieval engine [1].",
		Citations: []api.Citation{
			{ChunkID: "c1", Source: api.SourceRef{Collection: "docs", Document: "intro.md"}},
		},
		Iterations: []api.IterationRecord{
			{
				Iteration:   1,
				SubQueries:  []string{"what is loupe"},
				Retrievals:  []api.RetrievalRecord{{SubQuery: "what is loupe", Matches: 4}},
				NewEvidence: 3,
				Reflection:  &api.ReflectionRecord{Sufficient: false, KnowledgeGap: "no release date"},
			},
			{
				Iteration:   2,
				SubQueries:  []string{"loupe release date"},
				Retrievals:  []api.RetrievalRecord{{SubQuery: "loupe release date", Matches: 2}},
				NewEvidence: 1,
				Reflection:  &api.ReflectionRecord{Sufficient: true},
			},
		},
		IterationsUsed: 2,
		Termination:    api.TerminationSufficient,
		Usage:          api.Usage{TotalTokens: 1234},
		DurationMS:     8200,
	}
}

func TestSubmitStartsQuery(t *testing.T) {
	m := New(NewClient("http://localhost:0", ""), "docs")
	m.input.SetValue("  what is loupe  ")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if !m.busy {
		t.Fatal("expected model to be busy after submit")
	}
	if cmd == nil {
		t.Fatal("expected a command to run the query")
	}
}

func TestSubmitIgnoredWhileBusy(t *testing.T) {
	m := New(NewClient("http://localhost:0", ""), "")
	m.busy = true
	m.input.SetValue("again")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if cmd != nil {
		t.Fatal("expected no command while a query is in flight")
	}
	if !m.busy {
		t.Fatal("busy flag should be unchanged")
	}
}

func TestSubmitIgnoredWhenEmpty(t *testing.T) {
	m := New(NewClient("http://localhost:0", ""), "")
	m.input.SetValue("   ")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if cmd != nil {
		t.Fatal("expected no command for an empty question")
	}
	if m.busy {
		t.Fatal("empty submit must not mark the model busy")
	}
}

func TestTabTogglesMode(t *testing.T) {
	m := New(NewClient("http://localhost:0", ""), "")
	if m.naive {
		t.Fatal("model should start in deep mode")
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if !m.naive {
		t.Fatal("tab should switch to naive mode")
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.naive {
		t.Fatal("tab should switch back to deep mode")
	}
}

func TestAnswerClearsBusyAndRenders(t *testing.T) {
	m := New(NewClient("http://localhost:0", ""), "")
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m.busy = true

	m, _ = update(t, m, answerMsg{answer: testAnswer()})

	if m.busy {
		t.Fatal("answer should clear the busy flag")
	}
	for _, want := range []string{"2 pass", "sufficient", "1234 tokens", "8.2s"} {
		if !strings.Contains(m.status, want) {
			t.Errorf("status %q missing %q", m.status, want)
		}
	}

	view := m.View()
	if !strings.Contains(view, "Loupe is a retrieval engine [1].") {
		t.Errorf("view missing answer text:\n%s", view)
	}
}

func TestErrorShownInStatus(t *testing.T) {
	m := New(NewClient("http://localhost:0", ""), "")
	m.busy = true

	m, _ = update(t, m, errMsg{errors.New("connection refused")})

	if m.busy {
		t.Fatal("error should clear the busy flag")
	}
	if !strings.Contains(m.status, "connection refused") {
		t.Errorf("status %q missing error text", m.status)
	}
}

func TestCollectionsShownInModeLine(t *testing.T) {
	m := New(NewClient("http://localhost:0", ""), "")

	m, _ = update(t, m, collectionsMsg{collections: []catalog.Collection{
		{Name: "docs"}, {Name: "papers"},
	}})

	line := m.modeLine()
	if !strings.Contains(line, "docs, papers") {
		t.Errorf("mode line %q missing collection names", line)
	}
}

func TestScopedCollectionWinsModeLine(t *testing.T) {
	m := New(NewClient("http://localhost:0", ""), "docs")
	m.collections = []string{"docs", "papers"}

	line := m.modeLine()
	if !strings.Contains(line, "searching: docs") {
		t.Errorf("mode line %q should show the scoped collection", line)
	}
}

func TestRenderAnswerSections(t *testing.T) {
	m := New(NewClient("http://localhost:0", ""), "")
	m.answer = testAnswer()

	out := m.renderAnswer()

	for _, want := range []string{
		"Sources",
		"[1] docs/intro.md",
		"Trace",
		"pass 1: 1 sub-queries, 4 matches, +3 evidence",
		"gap: no release date",
		"pass 2: 1 sub-queries, 2 matches, +1 evidence",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered answer missing %q:\n%s", want, out)
		}
	}
}

func TestRenderAnswerEmpty(t *testing.T) {
	m := New(NewClient("http://localhost:0", ""), "")
	if out := m.renderAnswer(); !strings.Contains(out, "No answer yet") {
		t.Errorf("unexpected empty-state render: %q", out)
	}
}
