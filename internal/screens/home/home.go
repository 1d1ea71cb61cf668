package home

import (
	"context"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/dustin/go-humanize"

	"github.com/abhisek/dsatutor/internal/learner"
	"github.com/abhisek/dsatutor/internal/router"
	"github.com/abhisek/dsatutor/internal/screen"
	"github.com/abhisek/dsatutor/internal/tutor"
	"github.com/abhisek/dsatutor/internal/ui/components"
)

// Profiler loads the learner profile shown in the stats bar.
type Profiler interface {
	Profile(ctx context.Context, userID string) (*tutor.Profile, error)
}

// Options wires the home screen. The factories build the screens behind
// each menu entry.
type Options struct {
	UserID   string
	Profiler Profiler
	Chat     func() screen.Screen
	Profile  func() screen.Screen
	History  func() screen.Screen
}

type stats struct {
	level    string
	topics   int
	analysed string
}

type profileLoadedMsg struct {
	profile *tutor.Profile
	err     error
}

// HomeScreen is the main menu.
type HomeScreen struct {
	opts   Options
	menu   components.Menu
	stats  stats
	mascot MascotVariant
	errMsg string
}

var _ screen.Screen = (*HomeScreen)(nil)
var _ screen.Resumer = (*HomeScreen)(nil)

// New creates a HomeScreen.
func New(opts Options) *HomeScreen {
	push := func(factory func() screen.Screen) func() tea.Cmd {
		return func() tea.Cmd {
			return func() tea.Msg { return router.PushScreenMsg{Screen: factory()} }
		}
	}
	items := []components.MenuItem{
		{Label: "CHAT", Key: "c", Hint: "Ask the tutor about data structures and algorithms", Action: push(opts.Chat)},
		{Label: "PROFILE", Key: "p", Hint: "Your level, topics and what to study next", Action: push(opts.Profile)},
		{Label: "HISTORY", Key: "h", Hint: "Browse past questions and answers", Action: push(opts.History)},
		{Label: "QUIT", Key: "q", Hint: "Leave the tutor", Action: func() tea.Cmd { return tea.Quit }},
	}

	return &HomeScreen{
		opts:   opts,
		menu:   components.NewMenu(items),
		mascot: MascotCurious,
	}
}

func (h *HomeScreen) Init() tea.Cmd {
	return h.loadProfile()
}

// Resume reloads the profile; a chat may have changed the level.
func (h *HomeScreen) Resume() tea.Cmd {
	return h.loadProfile()
}

func (h *HomeScreen) loadProfile() tea.Cmd {
	if h.opts.Profiler == nil {
		return nil
	}
	return func() tea.Msg {
		p, err := h.opts.Profiler.Profile(context.Background(), h.opts.UserID)
		return profileLoadedMsg{profile: p, err: err}
	}
}

func (h *HomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if msg, ok := msg.(profileLoadedMsg); ok {
		return h, h.applyProfile(msg)
	}
	var cmd tea.Cmd
	h.menu, cmd = h.menu.Update(msg)
	return h, cmd
}

func (h *HomeScreen) applyProfile(msg profileLoadedMsg) tea.Cmd {
	if msg.err != nil {
		h.errMsg = "Could not load your profile: " + msg.err.Error()
		return nil
	}
	h.errMsg = ""
	p := msg.profile
	h.stats = stats{topics: len(p.Topics)}
	if p.Level.Assessed() {
		h.stats.level = p.Level.Title()
	}
	if p.LastAnalysisAt != nil {
		h.stats.analysed = humanize.Time(*p.LastAnalysisAt)
	}

	switch {
	case !p.Level.Assessed():
		h.mascot = MascotCurious
	case p.Level == learner.LevelAdvanced:
		h.mascot = MascotProud
	default:
		h.mascot = MascotIdle
	}

	level := h.stats.level
	return func() tea.Msg { return screen.LevelMsg{Level: level} }
}

func (h *HomeScreen) View(width, height int) string {
	// height is the content area; header and footer take about 8 rows.
	compact := height+8 < 30 || width < 100
	cw := components.ContentWidth(width)

	sections := []string{renderTitle(cw)}
	if !compact {
		sections = append(sections, lipgloss.NewStyle().Width(cw).Align(lipgloss.Center).Render(RenderMascot(h.mascot)))
	}
	sections = append(sections, renderStatsBar(h.stats, cw, compact))
	switch {
	case h.errMsg != "":
		sections = append(sections, renderNote(h.errMsg, cw))
	case h.stats.level == "":
		sections = append(sections, renderNote("Open CHAT to answer a few quick questions about your background.", cw))
	}
	sections = append(sections, renderMenu(h.menu, cw, compact))

	return components.Frame(strings.Join(sections, "\n\n"), width, height)
}

func (h *HomeScreen) Title() string {
	return "Home"
}
