package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"argmatch/internal/domain"
)

type stubPort struct {
	res  []domain.KeyPointMatch
	err  error
	args []string
}

func (s *stubPort) Match(_ context.Context, argument string, topK int) ([]domain.KeyPointMatch, error) {
	s.args = append(s.args, argument)
	if s.err != nil {
		return nil, s.err
	}
	if topK < len(s.res) {
		return s.res[:topK], nil
	}
	return s.res, nil
}

func submit(t *testing.T, m Model, text string) Model {
	t.Helper()
	m.input.SetValue(text)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model)
}

func TestEnterRanksKeyPoints(t *testing.T) {
	port := &stubPort{res: []domain.KeyPointMatch{
		{KeyPoint: "uniforms reduce bullying", Score: 0.8},
		{KeyPoint: "uniforms limit expression", Score: 0.3},
	}}
	m := New(port, 5, "2 key points")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(Model)

	m = submit(t, m, "  bullying hurts  ")
	if len(port.args) != 1 || port.args[0] != "bullying hurts" {
		t.Fatalf("Match called with %v", port.args)
	}
	if len(m.results) != 2 || m.cursor != 0 {
		t.Fatalf("results = %+v, cursor = %d", m.results, m.cursor)
	}
	if !strings.Contains(m.status, "2 key points") {
		t.Fatalf("status = %q", m.status)
	}
	view := m.View()
	if !strings.Contains(view, "0.800") || !strings.Contains(view, "limit expression") {
		t.Fatalf("view misses results:\n%s", view)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	if m.cursor != 1 {
		t.Fatalf("cursor after down = %d, want 1", m.cursor)
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	if m.cursor != 0 {
		t.Fatalf("cursor after wrap = %d, want 0", m.cursor)
	}
}

func TestEnterShowsErrors(t *testing.T) {
	port := &stubPort{err: errors.New("index empty")}
	m := submit(t, New(port, 5, ""), "anything")
	if !strings.HasPrefix(m.status, "Error: index empty") || m.results != nil {
		t.Fatalf("status = %q, results = %v", m.status, m.results)
	}
}

func TestEmptyInputIgnored(t *testing.T) {
	port := &stubPort{}
	submit(t, New(port, 5, ""), "   ")
	if len(port.args) != 0 {
		t.Fatalf("Match called for blank input: %v", port.args)
	}
}

func TestViewBeforeResize(t *testing.T) {
	if got := New(&stubPort{}, 0, "").View(); got != "Loading..." {
		t.Fatalf("View() = %q, want Loading...", got)
	}
}

func TestHighlightSharedKeepsText(t *testing.T) {
	got := highlightShared("Uniforms reduce bullying", toTokenSet("bullying"))
	if !strings.Contains(got, "Uniforms reduce") || !strings.Contains(got, "bullying") {
		t.Fatalf("highlightShared = %q", got)
	}
}
