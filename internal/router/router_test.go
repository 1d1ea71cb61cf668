package router

import (
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/dsatutor/internal/screen"
)

// fakeScreen records the lifecycle calls the router makes.
type fakeScreen struct {
	title   string
	inits   int
	resumes int
	closes  int
	got     []tea.Msg
}

func (f *fakeScreen) Init() tea.Cmd {
	f.inits++
	return nil
}

func (f *fakeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	f.got = append(f.got, msg)
	return f, nil
}

func (f *fakeScreen) View(int, int) string { return f.title }

func (f *fakeScreen) Title() string { return f.title }

func (f *fakeScreen) Resume() tea.Cmd {
	f.resumes++
	return nil
}

func (f *fakeScreen) Close() { f.closes++ }

// plainScreen implements only screen.Screen.
type plainScreen struct{ title string }

func (p plainScreen) Init() tea.Cmd { return nil }

func (p plainScreen) Update(tea.Msg) (screen.Screen, tea.Cmd) { return p, nil }

func (p plainScreen) View(int, int) string { return p.title }

func (p plainScreen) Title() string { return p.title }

func TestRouter_PushPop(t *testing.T) {
	home := &fakeScreen{title: "Home"}
	chat := &fakeScreen{title: "Chat"}
	r := New(home)

	r.Update(PushScreenMsg{Screen: chat})
	if r.Depth() != 2 || r.Active() != chat || chat.inits != 1 {
		t.Fatalf("after push: depth %d, active %q, inits %d", r.Depth(), r.Active().Title(), chat.inits)
	}

	r.Update(PopScreenMsg{})
	if r.Depth() != 1 || r.Active() != home {
		t.Fatalf("after pop: depth %d, active %q", r.Depth(), r.Active().Title())
	}
	if chat.closes != 1 {
		t.Errorf("popped screen closes = %d, want 1", chat.closes)
	}
	if home.resumes != 1 {
		t.Errorf("uncovered screen resumes = %d, want 1", home.resumes)
	}
}

func TestRouter_RootNeverPops(t *testing.T) {
	home := &fakeScreen{title: "Home"}
	r := New(home)
	if cmd := r.Pop(); cmd != nil {
		t.Error("popping the root should be a no-op")
	}
	if r.Depth() != 1 || home.closes != 0 {
		t.Errorf("depth %d, closes %d", r.Depth(), home.closes)
	}
}

func TestRouter_ReplaceKeepsDepth(t *testing.T) {
	welcome := &fakeScreen{title: "Welcome"}
	home := &fakeScreen{title: "Home"}
	r := New(welcome)

	r.Update(ReplaceScreenMsg{Screen: home})
	if r.Depth() != 1 || r.Active() != home {
		t.Fatalf("depth %d, active %q", r.Depth(), r.Active().Title())
	}
	if welcome.closes != 1 || home.inits != 1 {
		t.Errorf("welcome closes %d, home inits %d", welcome.closes, home.inits)
	}
}

func TestRouter_NilScreensIgnored(t *testing.T) {
	r := New(plainScreen{title: "Home"})
	r.Push(nil)
	r.Replace(nil)
	if r.Depth() != 1 || r.Active().Title() != "Home" {
		t.Errorf("depth %d, active %q", r.Depth(), r.Active().Title())
	}
}

func TestRouter_ForwardsToActiveOnly(t *testing.T) {
	home := &fakeScreen{title: "Home"}
	chat := &fakeScreen{title: "Chat"}
	r := New(home)
	r.Push(chat)

	r.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if len(chat.got) != 1 || len(home.got) != 0 {
		t.Errorf("chat got %d, home got %d", len(chat.got), len(home.got))
	}
	if r.View(80, 24) != "Chat" {
		t.Errorf("view = %q", r.View(80, 24))
	}
}

func TestRouter_PlainScreensNeedNoHooks(t *testing.T) {
	r := New(plainScreen{title: "Home"})
	r.Push(plainScreen{title: "History"})
	if cmd := r.Pop(); cmd != nil {
		t.Error("no resume command expected")
	}
	if r.Active().Title() != "Home" {
		t.Errorf("active = %q", r.Active().Title())
	}
}
