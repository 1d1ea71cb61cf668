// Package history shows the learner's past exchanges with the tutor.
package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/dustin/go-humanize"

	"github.com/abhisek/dsatutor/internal/router"
	"github.com/abhisek/dsatutor/internal/screen"
	"github.com/abhisek/dsatutor/internal/store"
	"github.com/abhisek/dsatutor/internal/ui/components"
	"github.com/abhisek/dsatutor/internal/ui/layout"
	"github.com/abhisek/dsatutor/internal/ui/theme"
)

// Loader reads the persisted conversation.
type Loader interface {
	LoadHistory(ctx context.Context, userID, chatID string) ([]store.Message, error)
}

// exchange is a learner message with the tutor reply that followed it.
type exchange struct {
	asked    string
	images   int
	answer   string
	askedAt  time.Time
	answered bool
}

type historyLoadedMsg struct {
	Messages []store.Message
	Err      error
}

// HistoryScreen lists past exchanges, newest first.
type HistoryScreen struct {
	loader    Loader
	userID    string
	exchanges []exchange
	selected  int
	expanded  map[int]bool
	loaded    bool
	errMsg    string
	now       func() time.Time
}

var _ screen.Screen = (*HistoryScreen)(nil)
var _ screen.KeyHintProvider = (*HistoryScreen)(nil)

// New creates a new HistoryScreen.
func New(loader Loader, userID string) *HistoryScreen {
	return &HistoryScreen{
		loader:   loader,
		userID:   userID,
		expanded: make(map[int]bool),
		now:      time.Now,
	}
}

func (s *HistoryScreen) Init() tea.Cmd {
	return func() tea.Msg {
		msgs, err := s.loader.LoadHistory(context.Background(), s.userID, store.ChatID(s.userID))
		return historyLoadedMsg{Messages: msgs, Err: err}
	}
}

func (s *HistoryScreen) Title() string {
	return "History"
}

func (s *HistoryScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Expand"},
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *HistoryScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
		} else {
			s.exchanges = pair(msg.Messages)
		}
		s.loaded = true
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		case "up", "k":
			if s.selected > 0 {
				s.selected--
			}
			return s, nil
		case "down", "j":
			if s.selected < len(s.exchanges)-1 {
				s.selected++
			}
			return s, nil
		case "enter":
			s.expanded[s.selected] = !s.expanded[s.selected]
			return s, nil
		}
	}
	return s, nil
}

// pair groups chronological messages into exchanges and reverses them so
// the latest comes first. A trailing learner message has no answer.
func pair(msgs []store.Message) []exchange {
	var out []exchange
	for _, m := range msgs {
		switch m.Role {
		case store.RoleUser:
			out = append(out, exchange{asked: m.Content, images: len(m.Images()), askedAt: m.Timestamp})
		case store.RoleAssistant:
			if n := len(out); n > 0 && !out[n-1].answered {
				out[n-1].answer = m.Content
				out[n-1].answered = true
				continue
			}
			out = append(out, exchange{answer: m.Content, askedAt: m.Timestamp, answered: true})
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (s *HistoryScreen) View(width, height int) string {
	if s.errMsg != "" {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.Error).
			Render(fmt.Sprintf("\n\nError: %s", s.errMsg))
	}
	if !s.loaded {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).
			Render("\n\n  Loading history...")
	}
	if len(s.exchanges) == 0 {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).Italic(true).
			Render("\n\n  No conversations yet. Ask your first question!")
	}

	cw := components.ContentWidth(width)
	var b strings.Builder
	b.WriteString("\n")

	for i, ex := range s.exchanges {
		prefix := "  "
		style := lipgloss.NewStyle().Foreground(theme.Text)
		if i == s.selected {
			prefix = "> "
			style = style.Foreground(theme.Primary).Bold(true)
		}

		asked := ex.asked
		if asked == "" && ex.images > 0 {
			asked = fmt.Sprintf("(%d image%s)", ex.images, plural(ex.images))
		}
		when := humanize.RelTime(ex.askedAt, s.now(), "ago", "from now")
		line := fmt.Sprintf("%s%-14s %s", prefix, when, truncate(firstLine(asked), cw-18))
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, style.Width(cw).Render(line)))
		b.WriteString("\n")

		if s.expanded[i] {
			answer := ex.answer
			if !ex.answered {
				answer = "(no reply was saved)"
			}
			detail := theme.Body.Width(cw - 4).Render(answer)
			b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
				lipgloss.NewStyle().PaddingLeft(4).Width(cw).Render(detail)))
			b.WriteString("\n\n")
		}
	}

	return b.String()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n < 2 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
