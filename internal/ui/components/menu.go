package components

import (
	"strings"

	tea "charm.land/bubbletea/v2"
)

// MenuItem is one entry of a Menu. Key is an optional single-key shortcut
// that activates the item directly; Hint is a one-line description of
// where the item leads.
type MenuItem struct {
	Label    string
	Key      string
	Hint     string
	Action   func() tea.Cmd
	Disabled bool
}

// Menu tracks the selection over a list of items. Rendering is left to the
// owning screen.
type Menu struct {
	Items    []MenuItem
	Selected int
}

// NewMenu selects the first enabled item.
func NewMenu(items []MenuItem) Menu {
	m := Menu{Items: items, Selected: -1}
	m.move(1)
	return m
}

// Current returns the selected item, or false when every item is disabled.
func (m Menu) Current() (MenuItem, bool) {
	if m.Selected < 0 || m.Selected >= len(m.Items) {
		return MenuItem{}, false
	}
	return m.Items[m.Selected], true
}

// Labels returns the item labels in order.
func (m Menu) Labels() []string {
	out := make([]string, len(m.Items))
	for i, it := range m.Items {
		out[i] = it.Label
	}
	return out
}

// Update moves the selection with the arrow keys (wrapping at both ends)
// and activates items on enter or their shortcut key.
func (m Menu) Update(msg tea.Msg) (Menu, tea.Cmd) {
	kmsg, ok := msg.(tea.KeyPressMsg)
	if !ok {
		return m, nil
	}

	switch key := kmsg.String(); key {
	case "up", "k", "shift+tab":
		m.move(-1)
	case "down", "j", "tab":
		m.move(1)
	case "enter":
		return m, m.activate(m.Selected)
	default:
		for i, it := range m.Items {
			if it.Key != "" && strings.EqualFold(it.Key, key) {
				return m, m.activate(i)
			}
		}
	}
	return m, nil
}

func (m *Menu) move(step int) {
	n := len(m.Items)
	if n == 0 {
		return
	}
	for i := 1; i <= n; i++ {
		next := ((m.Selected+step*i)%n + n) % n
		if !m.Items[next].Disabled {
			m.Selected = next
			return
		}
	}
}

func (m *Menu) activate(i int) tea.Cmd {
	if i < 0 || i >= len(m.Items) {
		return nil
	}
	it := m.Items[i]
	if it.Disabled || it.Action == nil {
		return nil
	}
	m.Selected = i
	return it.Action()
}
