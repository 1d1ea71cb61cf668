package app

import (
	"context"
	"fmt"
	"os"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/dsatutor/internal/attachment"
	"github.com/abhisek/dsatutor/internal/recommend"
	"github.com/abhisek/dsatutor/internal/router"
	"github.com/abhisek/dsatutor/internal/screen"
	"github.com/abhisek/dsatutor/internal/screens/chat"
	"github.com/abhisek/dsatutor/internal/screens/history"
	"github.com/abhisek/dsatutor/internal/screens/home"
	"github.com/abhisek/dsatutor/internal/screens/profile"
	"github.com/abhisek/dsatutor/internal/screens/welcome"
	"github.com/abhisek/dsatutor/internal/store"
	"github.com/abhisek/dsatutor/internal/tutor"
	"github.com/abhisek/dsatutor/internal/ui/layout"
)

// Tutor is everything the screens need from the turn processor.
type Tutor interface {
	ProcessTurn(ctx context.Context, userID, text string, atts []attachment.Attachment) (*tutor.Reply, error)
	ClearHistory(ctx context.Context, userID string) error
	Profile(ctx context.Context, userID string) (*tutor.Profile, error)
	Recommendations(ctx context.Context, userID string) ([]recommend.Recommendation, error)
}

// Options wires the terminal app for one learner.
type Options struct {
	Tutor       Tutor
	History     history.Loader
	User        *store.User
	Attachments *attachment.Preprocessor
}

// AppModel is the root Bubble Tea model.
type AppModel struct {
	router  *router.Router
	learner string
	level   string
	width  int
	height int
}

// newAppModel creates an AppModel starting at the welcome screen.
func newAppModel(opts Options) AppModel {
	userID := opts.User.UserID
	// The tray outlives chat screens so staged files survive a trip to the menu.
	tray := attachment.NewTray(opts.Attachments)

	homeFactory := func() screen.Screen {
		return home.New(home.Options{
			UserID:   userID,
			Profiler: opts.Tutor,
			Chat: func() screen.Screen {
				return chat.New(chat.Options{
					UserID:  userID,
					Tester:  opts.User.HasRole(store.RoleTester),
					Tutor:   opts.Tutor,
					History: opts.History,
					Tray:    tray,
				})
			},
			Profile: func() screen.Screen { return profile.New(opts.Tutor, userID) },
			History: func() screen.Screen { return history.New(opts.History, userID) },
		})
	}

	m := AppModel{
		router:  router.New(welcome.New(homeFactory)),
		learner: opts.User.Username,
	}
	if opts.User.Level.Assessed() {
		m.level = opts.User.Level.Title()
	}
	return m
}

func (m AppModel) Init() tea.Cmd {
	return m.router.Active().Init()
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case screen.LevelMsg:
		m.level = msg.Level
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if c, ok := m.router.Active().(screen.Closer); ok {
				c.Close()
			}
			return m, tea.Quit
		case "esc":
			if h, ok := m.router.Active().(screen.EscapeHandler); ok && h.HandlesEscape() {
				break
			}
			if m.router.Depth() > 1 {
				return m, func() tea.Msg { return router.PopScreenMsg{} }
			}
			return m, nil
		}
	}

	cmd := m.router.Update(msg)
	return m, cmd
}

func (m AppModel) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true

	if m.width == 0 || m.height == 0 {
		return v
	}

	if layout.IsTooSmall(m.width, m.height) {
		v.SetContent(layout.RenderMinSizeMessage(m.width, m.height))
		return v
	}

	active := m.router.Active()
	title := ""
	if active != nil {
		title = active.Title()
	}

	header := layout.Header{Title: title, Learner: m.learner, Level: m.level}.Render(m.width)
	footer := layout.RenderFooter(m.footerHints(active), m.width)

	contentHeight := max(m.height-lipgloss.Height(header)-lipgloss.Height(footer), 0)

	content := m.router.View(m.width, contentHeight)
	frame := layout.RenderFrame(header, content, footer, m.width, m.height)

	v.SetContent(frame)
	return v
}

func (m AppModel) footerHints(active screen.Screen) []layout.KeyHint {
	if p, ok := active.(screen.KeyHintProvider); ok {
		return p.KeyHints()
	}
	if m.router.Depth() > 1 {
		return []layout.KeyHint{
			{Key: "Esc", Description: "Back"},
			{Key: "Ctrl+C", Description: "Quit"},
		}
	}
	return []layout.KeyHint{
		{Key: "↑↓", Description: "Navigate"},
		{Key: "Enter", Description: "Select"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	p := tea.NewProgram(newAppModel(opts))
	_, err := p.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error running program:", err)
		return err
	}
	return nil
}
