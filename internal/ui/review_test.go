package ui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"scenekeeper/internal/matcher"
)

func sampleCandidates() []matcher.Candidate {
	return []matcher.Candidate{
		{ForeignID: "guid-1", Title: "Pilot", Path: "/lib/pilot.mp4", TitleScore: 97},
		{ForeignID: "guid-2", Title: "Finale", Path: "/lib/finale.mp4", TitleScore: 96},
	}
}

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestReviewToggleAccept(t *testing.T) {
	m := NewReviewModel(sampleCandidates())

	next, _ := m.Update(key(" "))
	m = next.(ReviewModel)
	if got := m.Accepted(); len(got) != 1 || got[0].ForeignID != "guid-1" {
		t.Fatalf("Accepted = %+v", got)
	}

	next, _ = m.Update(key(" "))
	m = next.(ReviewModel)
	if got := m.Accepted(); len(got) != 0 {
		t.Fatalf("toggle off failed: %+v", got)
	}
}

func TestReviewAcceptAllAndNone(t *testing.T) {
	m := NewReviewModel(sampleCandidates())

	next, _ := m.Update(key("a"))
	m = next.(ReviewModel)
	if got := m.Accepted(); len(got) != 2 {
		t.Fatalf("accept all = %+v", got)
	}

	next, _ = m.Update(key("n"))
	m = next.(ReviewModel)
	if got := m.Accepted(); len(got) != 0 {
		t.Fatalf("none = %+v", got)
	}
}

func TestReviewCursorBounds(t *testing.T) {
	m := NewReviewModel(sampleCandidates())

	next, _ := m.Update(key("k"))
	m = next.(ReviewModel)
	if m.cursor != 0 {
		t.Errorf("cursor moved above first row: %d", m.cursor)
	}

	for i := 0; i < 5; i++ {
		next, _ = m.Update(key("j"))
		m = next.(ReviewModel)
	}
	if m.cursor != 1 {
		t.Errorf("cursor ran past last row: %d", m.cursor)
	}
}

func TestReviewViewListsCandidates(t *testing.T) {
	m := NewReviewModel(sampleCandidates())
	view := m.View()
	for _, want := range []string{"Pilot", "Finale", "/lib/pilot.mp4"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestReviewEmptyView(t *testing.T) {
	m := NewReviewModel(nil)
	if !strings.Contains(m.View(), "No candidates") {
		t.Error("empty view missing placeholder")
	}
}
