// Package chat is the terminal conversation screen.
package chat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/dsatutor/internal/attachment"
	"github.com/abhisek/dsatutor/internal/router"
	"github.com/abhisek/dsatutor/internal/screen"
	"github.com/abhisek/dsatutor/internal/store"
	"github.com/abhisek/dsatutor/internal/tutor"
	"github.com/abhisek/dsatutor/internal/ui/components"
	"github.com/abhisek/dsatutor/internal/ui/layout"
)

// Tutor runs turns for the chat screen.
type Tutor interface {
	ProcessTurn(ctx context.Context, userID, text string, atts []attachment.Attachment) (*tutor.Reply, error)
	ClearHistory(ctx context.Context, userID string) error
}

// HistoryLoader reads the persisted conversation.
type HistoryLoader interface {
	LoadHistory(ctx context.Context, userID, chatID string) ([]store.Message, error)
}

// Options wires the chat screen.
type Options struct {
	UserID  string
	Tester  bool // show the state trace under each reply
	Tutor   Tutor
	History HistoryLoader
	Tray    *attachment.Tray

	// ReadFile loads files named by /attach. Defaults to os.ReadFile.
	ReadFile func(name string) ([]byte, error)
}

type entryRole int

const (
	roleLearner entryRole = iota
	roleTutor
	roleNotice
	roleTrace
)

type entry struct {
	role entryRole
	text string
	kind tutor.Kind
}

const thinkInterval = 300 * time.Millisecond

type historyLoadedMsg struct {
	msgs []store.Message
	err  error
}

type turnDoneMsg struct {
	reply *tutor.Reply
	err   error
}

type clearedMsg struct {
	err error
}

// thinkTickMsg drives the thinking animation. Ticks carry the screen id so
// a popped screen's chain stops when another chat screen is active.
type thinkTickMsg struct {
	id int64
}

var screenIDs atomic.Int64

// ChatScreen is the conversation view. Input is disabled while a turn runs,
// so at most one turn per learner is in flight.
type ChatScreen struct {
	id      int64
	opts    Options
	input   components.TextInput
	entries []entry
	busy    bool
	cancel  context.CancelFunc
	dots    int
	scroll  int // lines scrolled up from the bottom
}

var (
	_ screen.Screen          = (*ChatScreen)(nil)
	_ screen.KeyHintProvider = (*ChatScreen)(nil)
	_ screen.EscapeHandler   = (*ChatScreen)(nil)
)

// New creates a ChatScreen.
func New(opts Options) *ChatScreen {
	if opts.ReadFile == nil {
		opts.ReadFile = os.ReadFile
	}
	if opts.Tray == nil {
		opts.Tray = attachment.NewTray(attachment.New(0))
	}
	return &ChatScreen{
		id:    screenIDs.Add(1),
		opts:  opts,
		input: components.NewTextInput("Ask about data structures or algorithms…  (/help for commands)", 4000),
	}
}

func (c *ChatScreen) Init() tea.Cmd {
	return tea.Batch(c.loadHistory(), c.input.Init(), thinkTick(c.id))
}

func (c *ChatScreen) Title() string {
	return "Chat"
}

// HandlesEscape reports that Esc is handled here: it cancels a running turn.
func (c *ChatScreen) HandlesEscape() bool {
	return true
}

// Busy reports whether a turn is in flight.
func (c *ChatScreen) Busy() bool {
	return c.busy
}

func (c *ChatScreen) KeyHints() []layout.KeyHint {
	if c.busy {
		return []layout.KeyHint{
			{Key: "Esc", Description: "Cancel turn"},
			{Key: "Ctrl+C", Description: "Quit"},
		}
	}
	return []layout.KeyHint{
		{Key: "Enter", Description: "Send"},
		{Key: "PgUp/PgDn", Description: "Scroll"},
		{Key: "Esc", Description: "Back"},
	}
}

func thinkTick(id int64) tea.Cmd {
	return tea.Tick(thinkInterval, func(time.Time) tea.Msg { return thinkTickMsg{id: id} })
}

func (c *ChatScreen) loadHistory() tea.Cmd {
	if c.opts.History == nil {
		return nil
	}
	return func() tea.Msg {
		msgs, err := c.opts.History.LoadHistory(context.Background(), c.opts.UserID, store.ChatID(c.opts.UserID))
		return historyLoadedMsg{msgs: msgs, err: err}
	}
}

func (c *ChatScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		c.applyHistory(msg)
		return c, nil

	case turnDoneMsg:
		return c, c.finishTurn(msg)

	case clearedMsg:
		if msg.err != nil {
			c.notice("Could not clear the conversation: " + msg.err.Error())
			return c, nil
		}
		c.entries = nil
		c.scroll = 0
		c.notice("Conversation cleared. Your level and topics are kept.")
		return c, nil

	case thinkTickMsg:
		if msg.id != c.id {
			return c, nil
		}
		if c.busy {
			c.dots = (c.dots + 1) % 4
		}
		return c, thinkTick(c.id)

	case tea.KeyPressMsg:
		return c.handleKey(msg)
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return c, cmd
}

// Close cancels an in-flight turn when the screen leaves the stack or the
// app quits.
func (c *ChatScreen) Close() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *ChatScreen) handleKey(msg tea.KeyPressMsg) (screen.Screen, tea.Cmd) {
	switch msg.String() {
	case "esc":
		if c.busy {
			if c.cancel != nil {
				c.cancel()
			}
			return c, nil
		}
		return c, func() tea.Msg { return router.PopScreenMsg{} }
	case "pgup":
		c.scroll += 5
		return c, nil
	case "pgdown":
		c.scroll = max(0, c.scroll-5)
		return c, nil
	case "enter":
		if c.busy {
			return c, nil
		}
		return c, c.submit()
	}

	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return c, cmd
}

func (c *ChatScreen) applyHistory(msg historyLoadedMsg) {
	if msg.err != nil {
		c.notice("Could not load earlier messages: " + msg.err.Error())
		return
	}
	loaded := make([]entry, 0, len(msg.msgs))
	for _, m := range msg.msgs {
		e := entry{role: roleTutor, text: m.Content}
		if m.Role == store.RoleUser {
			e.role = roleLearner
		}
		loaded = append(loaded, e)
	}
	c.entries = append(loaded, c.entries...)
}

// submit sends the input as a turn, or runs it as a slash command.
func (c *ChatScreen) submit() tea.Cmd {
	text := strings.TrimSpace(c.input.Value())
	if strings.HasPrefix(text, "/") {
		c.input.Reset()
		return c.command(text)
	}
	if text == "" && c.opts.Tray.Len() == 0 {
		return nil
	}
	c.input.Reset()

	atts := c.opts.Tray.Take()
	shown := text
	if len(atts) > 0 {
		names := make([]string, len(atts))
		for i, a := range atts {
			names[i] = a.Name
		}
		shown = strings.TrimSpace(shown + "\n[Attached: " + strings.Join(names, ", ") + "]")
	}
	c.entries = append(c.entries, entry{role: roleLearner, text: shown})
	c.scroll = 0

	ctx, cancel := context.WithCancel(context.Background())
	c.busy = true
	c.cancel = cancel
	c.input.SetDisabled(true)

	t, userID := c.opts.Tutor, c.opts.UserID
	return func() tea.Msg {
		reply, err := t.ProcessTurn(ctx, userID, text, atts)
		return turnDoneMsg{reply: reply, err: err}
	}
}

func (c *ChatScreen) finishTurn(msg turnDoneMsg) tea.Cmd {
	if c.cancel != nil {
		c.cancel()
	}
	c.busy = false
	c.cancel = nil
	c.dots = 0
	c.input.SetDisabled(false)

	if msg.err != nil {
		if errors.Is(msg.err, context.Canceled) {
			c.notice("Turn cancelled. Nothing was saved.")
		} else {
			c.notice("Something went wrong: " + msg.err.Error())
		}
		return nil
	}

	r := msg.reply
	c.entries = append(c.entries, entry{role: roleTutor, text: r.Text, kind: r.Kind})
	if c.opts.Tester && len(r.Trace) > 0 {
		steps := make([]string, len(r.Trace))
		for i, s := range r.Trace {
			steps[i] = string(s.State)
			if s.Note != "" {
				steps[i] += " (" + s.Note + ")"
			}
		}
		c.entries = append(c.entries, entry{role: roleTrace, text: strings.Join(steps, " → ")})
	}

	lc := r.LevelChange
	if lc == nil {
		return nil
	}
	if lc.From.Assessed() {
		c.notice(fmt.Sprintf("Level updated: %s → %s", lc.From.Title(), lc.To.Title()))
	} else {
		c.notice("Level set to " + lc.To.Title())
	}
	level := lc.To.Title()
	return func() tea.Msg { return screen.LevelMsg{Level: level} }
}

func (c *ChatScreen) command(line string) tea.Cmd {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/attach":
		if arg == "" {
			c.notice("Usage: /attach <path to image or PDF>")
			return nil
		}
		c.attach(arg)
	case "/detach":
		c.opts.Tray.Clear()
		c.notice("Attachment tray emptied.")
	case "/clear":
		t, userID := c.opts.Tutor, c.opts.UserID
		return func() tea.Msg {
			return clearedMsg{err: t.ClearHistory(context.Background(), userID)}
		}
	case "/help":
		c.notice("/attach <path>  stage an image or PDF for your next message\n" +
			"/detach         empty the attachment tray\n" +
			"/clear          delete this conversation")
	default:
		c.notice("Unknown command " + name + ". Try /help.")
	}
	return nil
}

func (c *ChatScreen) attach(path string) {
	data, err := c.opts.ReadFile(path)
	if err != nil {
		c.notice("Could not read " + path + ": " + err.Error())
		return
	}
	name := filepath.Base(path)
	a := attachment.Attachment{Name: name, MIMEType: attachment.DetectMIME(name, data), Data: data}
	if err := c.opts.Tray.Add(a); err != nil {
		c.notice("Could not attach " + name + ": " + err.Error())
		return
	}
	c.notice(fmt.Sprintf("Attached %s. It will be sent with your next message.", name))
}

func (c *ChatScreen) notice(text string) {
	c.entries = append(c.entries, entry{role: roleNotice, text: text})
}
