package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"argmatch/internal/domain"
)

// MatchPort is the TUI-facing subset of the match service.
type MatchPort interface {
	Match(ctx context.Context, argument string, topK int) ([]domain.KeyPointMatch, error)
}

// Model is the Bubble Tea model for the argument to key point browser.
type Model struct {
	service      MatchPort
	topK         int
	input        textinput.Model
	viewport     viewport.Model
	results      []domain.KeyPointMatch
	summary      string
	status       string
	cursor       int
	ready        bool
	lastArgument string
}

// New creates a new TUI model instance. summary is shown under the header.
func New(service MatchPort, topK int, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type an argument and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	if topK <= 0 {
		topK = 5
	}
	return Model{service: service, topK: topK, input: ti, viewport: vp, summary: summary, status: "Ready. Type an argument to rank key points."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+summary, status, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderResults())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			arg := strings.TrimSpace(m.input.Value())
			if arg != "" {
				res, err := m.service.Match(context.Background(), arg, m.topK)
				if err != nil {
					m.status = "Error: " + err.Error()
					m.results = nil
				} else {
					m.status = fmt.Sprintf("%d key points for %q", len(res), arg)
					m.results = res
					m.cursor = 0
					m.lastArgument = arg
				}
				m.viewport.SetContent(m.renderResults())
				return m, nil
			}
		case "down":
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.renderResults())
				return m, nil
			}
		case "up":
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.renderResults())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the TUI layout and current results.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Key Point Matching")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderResults() string {
	if len(m.results) == 0 {
		return "No results yet."
	}
	qTokens := toTokenSet(m.lastArgument)
	var b strings.Builder
	for i, r := range m.results {
		marker := "  "
		if i == m.cursor {
			marker = "> "
		}
		line := fmt.Sprintf("%s%2d. %.3f  %s", marker, i+1, r.Score, highlightShared(r.KeyPoint, qTokens))
		if i == m.cursor {
			line = cursorStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	cursorStyle    = lipgloss.NewStyle().Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
)

// highlightShared renders the words of keyPoint that also occur in the argument.
func highlightShared(keyPoint string, argTokens map[string]struct{}) string {
	if len(argTokens) == 0 {
		return keyPoint
	}
	return unicodeWordRe.ReplaceAllStringFunc(keyPoint, func(w string) string {
		if _, ok := argTokens[strings.ToLower(w)]; ok {
			return highlightStyle.Render(w)
		}
		return w
	})
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}
