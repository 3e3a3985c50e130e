package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"scenekeeper/internal/matcher"
)

// ReviewModel lets the user walk the match candidates and decide which to
// accept. Candidates the matcher could not auto-apply (ambiguous or below
// the auto threshold) land here.
type ReviewModel struct {
	candidates []matcher.Candidate
	accepted   map[int]bool
	cursor     int
	viewport   viewport.Model
	width      int
	height     int
	done       bool
}

// NewReviewModel builds the review screen over the given candidates.
func NewReviewModel(candidates []matcher.Candidate) ReviewModel {
	return ReviewModel{
		candidates: candidates,
		accepted:   make(map[int]bool),
		viewport:   viewport.New(80, 20),
	}
}

// Accepted returns the candidates the user approved, valid once the program
// has finished.
func (m ReviewModel) Accepted() []matcher.Candidate {
	var out []matcher.Candidate
	for i, c := range m.candidates {
		if m.accepted[i] {
			out = append(out, c)
		}
	}
	return out
}

// Init implements tea.Model.
func (m ReviewModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m ReviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 4
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.done = true
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < len(m.candidates)-1 {
				m.cursor++
			}

		case " ", "enter":
			if len(m.candidates) > 0 {
				m.accepted[m.cursor] = !m.accepted[m.cursor]
			}

		case "a":
			for i := range m.candidates {
				m.accepted[i] = true
			}

		case "n":
			m.accepted = make(map[int]bool)
		}
	}

	m.viewport.SetContent(m.renderList())
	return m, nil
}

// View implements tea.Model.
func (m ReviewModel) View() string {
	if len(m.candidates) == 0 {
		return ContentStyle.Render("No candidates to review.\n") +
			FormatFooter(FormatKeybinding("q", "quit"))
	}

	header := HeaderStyle.Render(fmt.Sprintf("MATCH REVIEW  %d candidates, %d accepted",
		len(m.candidates), len(m.Accepted())))

	footer := FormatFooter(
		FormatKeybinding("space", "toggle"),
		FormatKeybinding("a", "accept all"),
		FormatKeybinding("n", "none"),
		FormatKeybinding("q", "finish"),
	)

	return header + "\n" + m.renderList() + "\n" + footer
}

func (m ReviewModel) renderList() string {
	var sb strings.Builder
	for i, c := range m.candidates {
		marker := "[ ]"
		style := MutedStyle
		if m.accepted[i] {
			marker = "[x]"
			style = AcceptedStyle
		}

		line := fmt.Sprintf("%s %s  (title %d%s)", marker, c.Title, c.TitleScore, signalSummary(c))
		if i == m.cursor {
			line = HighlightStyle.Render(line)
		} else {
			line = style.Render(line)
		}
		sb.WriteString(line + "\n")
		sb.WriteString(MutedStyle.Render("    "+c.Path) + "\n")
	}
	return sb.String()
}

func signalSummary(c matcher.Candidate) string {
	var parts []string
	if c.DateScore > 0 {
		parts = append(parts, "date "+c.MatchedDate)
	}
	if c.DurationScore > 0 {
		parts = append(parts, fmt.Sprintf("duration %.1fm", c.ProbedDuration))
	}
	if c.PerformersScore > 0 {
		parts = append(parts, fmt.Sprintf("performers %d", c.PerformersScore))
	}
	if len(parts) == 0 {
		return ""
	}
	return ", " + strings.Join(parts, ", ")
}

// RunReview drives the review TUI and returns the accepted candidates.
func RunReview(candidates []matcher.Candidate) ([]matcher.Candidate, error) {
	program := tea.NewProgram(NewReviewModel(candidates), tea.WithAltScreen())
	final, err := program.Run()
	if err != nil {
		return nil, fmt.Errorf("review ui: %w", err)
	}
	model, ok := final.(ReviewModel)
	if !ok {
		return nil, fmt.Errorf("review ui: unexpected model type")
	}
	return model.Accepted(), nil
}
