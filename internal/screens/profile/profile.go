// Package profile shows the learner's level, topics and recommended next
// steps.
package profile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/dustin/go-humanize"

	"github.com/abhisek/dsatutor/internal/recommend"
	"github.com/abhisek/dsatutor/internal/router"
	"github.com/abhisek/dsatutor/internal/screen"
	"github.com/abhisek/dsatutor/internal/tutor"
	"github.com/abhisek/dsatutor/internal/ui/components"
	"github.com/abhisek/dsatutor/internal/ui/layout"
	"github.com/abhisek/dsatutor/internal/ui/theme"
)

// Source loads the profile and its recommendations.
type Source interface {
	Profile(ctx context.Context, userID string) (*tutor.Profile, error)
	Recommendations(ctx context.Context, userID string) ([]recommend.Recommendation, error)
}

type profileLoadedMsg struct {
	profile *tutor.Profile
	err     error
}

type recsLoadedMsg struct {
	recs []recommend.Recommendation
	err  error
}

// ProfileScreen renders the learner profile. Recommendations take an LLM
// call, so they load after the profile itself.
type ProfileScreen struct {
	source  Source
	userID  string
	profile *tutor.Profile
	recs    []recommend.Recommendation
	recsErr string
	recsOK  bool
	errMsg  string
}

var _ screen.Screen = (*ProfileScreen)(nil)

// New creates a ProfileScreen.
func New(source Source, userID string) *ProfileScreen {
	return &ProfileScreen{source: source, userID: userID}
}

func (s *ProfileScreen) Init() tea.Cmd {
	return func() tea.Msg {
		p, err := s.source.Profile(context.Background(), s.userID)
		return profileLoadedMsg{profile: p, err: err}
	}
}

func (s *ProfileScreen) loadRecommendations() tea.Cmd {
	return func() tea.Msg {
		recs, err := s.source.Recommendations(context.Background(), s.userID)
		return recsLoadedMsg{recs: recs, err: err}
	}
}

func (s *ProfileScreen) Title() string {
	return "Profile"
}

func (s *ProfileScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case profileLoadedMsg:
		if msg.err != nil {
			s.errMsg = msg.err.Error()
			return s, nil
		}
		s.profile = msg.profile
		if !s.profile.Level.Assessed() {
			return s, nil
		}
		return s, s.loadRecommendations()

	case recsLoadedMsg:
		s.recsOK = true
		switch {
		case errors.Is(msg.err, tutor.ErrNotAssessed):
		case msg.err != nil:
			s.recsErr = msg.err.Error()
		default:
			s.recs = msg.recs
		}
		return s, nil

	case tea.KeyMsg:
		if msg.String() == "esc" {
			return s, func() tea.Msg { return router.PopScreenMsg{} }
		}
	}
	return s, nil
}

func (s *ProfileScreen) View(width, height int) string {
	if s.errMsg != "" {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.Error).
			Render(fmt.Sprintf("\n\nError: %s", s.errMsg))
	}
	if s.profile == nil {
		return lipgloss.NewStyle().
			Width(width).Align(lipgloss.Center).Foreground(theme.TextDim).
			Render("\n\n  Loading profile...")
	}

	cw := components.ContentWidth(width)
	p := s.profile
	sections := []string{s.renderSummary(cw)}

	if !p.Level.Assessed() {
		sections = append(sections, theme.Hint.Width(cw).Render(
			"You haven't been assessed yet. Start a chat and the tutor will ask about your background."))
		return components.Frame(strings.Join(sections, "\n\n"), width, height)
	}

	sections = append(sections, renderTopics(p, cw))
	if p.Recommendation != "" {
		sections = append(sections, components.Card(
			theme.Subtitle.Render("Tutor's note")+"\n"+theme.Body.Width(cw-4).Render(p.Recommendation), cw))
	}
	sections = append(sections, s.renderRecommendations(cw))

	return components.Frame(strings.Join(sections, "\n\n"), width, height)
}

func (s *ProfileScreen) renderSummary(cw int) string {
	p := s.profile
	level := "Not assessed"
	if p.Level.Assessed() {
		level = p.Level.Title()
	}

	lines := []string{
		theme.Title.Render(p.User.Username),
		theme.Hint.Render(p.User.Email),
		"",
		lipgloss.NewStyle().Foreground(theme.Highlight).Bold(true).Render("◆ " + level),
	}
	if p.LastAnalysisAt != nil {
		lines = append(lines, theme.Hint.Render("Last analysed "+humanize.Time(*p.LastAnalysisAt)))
		lines = append(lines, components.Meter{Label: "Confidence", Value: p.Confidence, Width: min(cw, 48)}.View())
	}
	return lipgloss.NewStyle().Width(cw).Render(strings.Join(lines, "\n"))
}

func renderTopics(p *tutor.Profile, cw int) string {
	head := theme.Subtitle.Render("Topics you've worked on")
	if len(p.Topics) == 0 {
		return head + "\n" + theme.Hint.Render("None yet.")
	}

	names := make([]string, 0, len(p.Topics))
	for name := range p.Topics {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(head)
	for _, name := range names {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(theme.Secondary).Bold(true).Render("▸ " + name))
		if subs := p.Topics[name]; len(subs) > 0 {
			b.WriteString(theme.Hint.Render("  " + strings.Join(subs, ", ")))
		}
	}
	return lipgloss.NewStyle().Width(cw).Render(b.String())
}

func (s *ProfileScreen) renderRecommendations(cw int) string {
	head := theme.Subtitle.Render("What to study next")
	switch {
	case !s.recsOK:
		return head + "\n" + theme.Hint.Render("Thinking about recommendations...")
	case s.recsErr != "":
		return head + "\n" + theme.Notice.Width(cw).Render("Could not load recommendations: "+s.recsErr)
	case len(s.recs) == 0:
		return head + "\n" + theme.Hint.Render("No recommendations right now.")
	}

	var b strings.Builder
	b.WriteString(head)
	for i, r := range s.recs {
		b.WriteString("\n\n")
		title := fmt.Sprintf("%d. %s", i+1, r.Topic)
		if r.Difficulty != "" {
			title += theme.Hint.Render("  [" + r.Difficulty + "]")
		}
		b.WriteString(theme.Body.Bold(true).Render(title))
		b.WriteString("\n")
		b.WriteString(theme.Body.Width(cw).Render(r.Description))
		if r.Rationale != "" {
			b.WriteString("\n")
			b.WriteString(theme.Hint.Width(cw).Render(r.Rationale))
		}
	}
	return b.String()
}

func (s *ProfileScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{{Key: "Esc", Description: "Back"}}
}
