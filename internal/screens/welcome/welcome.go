package welcome

import (
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/dsatutor/internal/router"
	"github.com/abhisek/dsatutor/internal/screen"
	"github.com/abhisek/dsatutor/internal/ui/theme"
)

const (
	tickInterval = 100 * time.Millisecond
	phase1End    = 500 * time.Millisecond
	phase2End    = 1500 * time.Millisecond
	totalDur     = 3000 * time.Millisecond
)

// Tagline is shown under the banner.
const Tagline = "Learn data structures and algorithms, one question at a time."

// treeArt is a binary tree whose nodes light up one by one.
var treeArt = []string{
	"        (8)        ",
	"       /   \\       ",
	"    (3)     (10)   ",
	"    / \\        \\   ",
	" (1)   (6)     (14)",
}

// nodeOrder is the in-order traversal of treeArt, as (row, label) pairs.
var nodeOrder = []struct {
	row   int
	label string
}{
	{4, "(1)"}, {2, "(3)"}, {4, "(6)"}, {0, "(8)"}, {2, "(10)"}, {4, "(14)"},
}

type tickMsg time.Time

// WelcomeScreen shows a splash animation before transitioning to the home
// screen. Any key skips it.
type WelcomeScreen struct {
	homeFactory  func() screen.Screen
	elapsed      time.Duration
	tickCount    int
	transitioned bool
}

var _ screen.Screen = (*WelcomeScreen)(nil)

// New creates a WelcomeScreen that will transition to the screen produced by homeFactory.
func New(homeFactory func() screen.Screen) *WelcomeScreen {
	return &WelcomeScreen{
		homeFactory: homeFactory,
	}
}

func (w *WelcomeScreen) Title() string {
	return ""
}

func (w *WelcomeScreen) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (w *WelcomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg.(type) {
	case tickMsg:
		if w.transitioned {
			return w, nil
		}
		if w.elapsed < totalDur {
			w.elapsed += tickInterval
		}
		w.tickCount++
		return w, tick()

	case tea.KeyPressMsg:
		return w, w.transition()
	}

	return w, nil
}

func (w *WelcomeScreen) transition() tea.Cmd {
	if w.transitioned {
		return nil
	}
	w.transitioned = true
	homeScreen := w.homeFactory()
	return func() tea.Msg {
		return router.ReplaceScreenMsg{Screen: homeScreen}
	}
}

// visitedNodes is how many tree nodes are lit at the current time.
func (w *WelcomeScreen) visitedNodes() int {
	if w.elapsed < phase1End {
		return 0
	}
	span := phase2End - phase1End
	n := int((w.elapsed - phase1End) * time.Duration(len(nodeOrder)) / span)
	return min(n+1, len(nodeOrder))
}

func (w *WelcomeScreen) renderTree() string {
	dim := lipgloss.NewStyle().Foreground(theme.TextDim)
	lit := lipgloss.NewStyle().Foreground(theme.Highlight).Bold(true)

	rows := make([]string, len(treeArt))
	copy(rows, treeArt)
	styled := make([]string, len(rows))
	for i, r := range rows {
		styled[i] = dim.Render(r)
	}

	for _, n := range nodeOrder[:w.visitedNodes()] {
		styled[n.row] = strings.Replace(styled[n.row], n.label, lit.Render(n.label), 1)
	}
	return strings.Join(styled, "\n")
}

func (w *WelcomeScreen) View(width, height int) string {
	sections := []string{w.renderTree()}

	if w.elapsed >= phase2End {
		sections = append(sections, "", RenderBanner(width), "")

		tagline := lipgloss.NewStyle().
			Foreground(theme.Text).
			Bold(true).
			Render(Tagline)
		sections = append(sections, tagline)

		hint := lipgloss.NewStyle().
			Foreground(theme.TextDim).
			Italic(true).
			Render("press any key to continue")
		sections = append(sections, "", hint)
	}

	content := strings.Join(sections, "\n")

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}
