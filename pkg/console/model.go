package console

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/loupelabs/loupe/pkg/api"
	"github.com/loupelabs/loupe/pkg/catalog"
)

type answerMsg struct {
	answer *api.Answer
}

type errMsg struct {
	err error
}

type collectionsMsg struct {
	collections []catalog.Collection
}

// Model is the Bubble Tea model for the console.
type Model struct {
	client *Client

	input    textinput.Model
	viewport viewport.Model
	spin     spinner.Model

	collection  string
	collections []string
	naive       bool
	busy        bool
	ready       bool
	status      string
	answer      *api.Answer
}

// New creates the console model. When collection is non-empty every query
// is scoped to it; otherwise the server searches all collections.
func New(client *Client, collection string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		client:     client,
		input:      ti,
		viewport:   viewport.New(0, 0),
		spin:       sp,
		collection: collection,
		status:     "Ready. Tab switches deep/naive mode.",
	}
}

// Init starts the cursor blink and loads the collection list.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, fetchCollectionsCmd(m.client))
}

// Update handles key, window, and query lifecycle events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ah := answerBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 + 1 // header + mode line, status, input frame, input line, spacer
		vh := msg.Height - reserved - ah
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = vh
		m.viewport.SetContent(m.renderAnswer())
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case answerMsg:
		m.busy = false
		m.answer = msg.answer
		m.status = fmt.Sprintf("%d pass(es) · %s · %d tokens · %.1fs",
			msg.answer.IterationsUsed,
			msg.answer.Termination,
			msg.answer.Usage.TotalTokens,
			float64(msg.answer.DurationMS)/1000,
		)
		m.viewport.SetContent(m.renderAnswer())
		m.viewport.GotoTop()
		return m, nil

	case errMsg:
		m.busy = false
		m.status = "Error: " + msg.err.Error()
		return m, nil

	case collectionsMsg:
		names := make([]string, 0, len(msg.collections))
		for _, c := range msg.collections {
			names = append(names, c.Name)
		}
		m.collections = names
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if m.busy {
				return m, nil
			}
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			m.busy = true
			m.status = ""
			return m, tea.Batch(
				queryCmd(m.client, QueryParams{
					Question:   q,
					Collection: m.collection,
					Naive:      m.naive,
				}),
				m.spin.Tick,
			)
		case "tab":
			m.naive = !m.naive
			return m, nil
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the console layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := headerStyle.Render("loupe")
	answer := answerBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())

	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spin.View() + dimStyle.Render(" querying…")
	}

	return header + "\n" + m.modeLine() + "\n" + answer + "\n" + input + "\n" + status
}

func (m Model) modeLine() string {
	mode := "deep"
	if m.naive {
		mode = "naive"
	}
	line := "mode: " + mode
	if m.collection != "" {
		line += " · searching: " + m.collection
	} else if len(m.collections) > 0 {
		line += " · collections: " + strings.Join(m.collections, ", ")
	}
	return dimStyle.Render(line)
}

// renderAnswer lays out the current answer with its sources and the
// iteration trace.
func (m Model) renderAnswer() string {
	if m.answer == nil {
		return "No answer yet. Ask something."
	}
	a := m.answer

	var b strings.Builder
	b.WriteString(a.Text)

	if len(a.Citations) > 0 {
		b.WriteString("\n\n" + sectionStyle.Render("Sources") + "\n")
		for i, c := range a.Citations {
			ref := c.Source.Collection
			if c.Source.Document != "" {
				ref += "/" + c.Source.Document
			}
			fmt.Fprintf(&b, "  [%d] %s\n", i+1, ref)
		}
	}

	if len(a.Iterations) > 0 {
		b.WriteString("\n" + sectionStyle.Render("Trace") + "\n")
		for _, it := range a.Iterations {
			matches := 0
			for _, r := range it.Retrievals {
				matches += r.Matches
			}
			line := fmt.Sprintf("  pass %d: %d sub-queries, %d matches, +%d evidence",
				it.Iteration, len(it.SubQueries), matches, it.NewEvidence)
			b.WriteString(dimStyle.Render(line) + "\n")
			if it.Reflection != nil && it.Reflection.KnowledgeGap != "" {
				b.WriteString(dimStyle.Render("          gap: "+it.Reflection.KnowledgeGap) + "\n")
			}
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func queryCmd(c *Client, p QueryParams) tea.Cmd {
	return func() tea.Msg {
		answer, err := c.Query(context.Background(), p)
		if err != nil {
			return errMsg{err}
		}
		return answerMsg{answer: answer}
	}
}

// fetchCollectionsCmd loads the collection names for the mode line.
// Failures leave the line empty; the console still works.
func fetchCollectionsCmd(c *Client) tea.Cmd {
	return func() tea.Msg {
		cols, err := c.Collections(context.Background())
		if err != nil {
			return collectionsMsg{}
		}
		return collectionsMsg{collections: cols}
	}
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	answerBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	sectionStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	spinnerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)
