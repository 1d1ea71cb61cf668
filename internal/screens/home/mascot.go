package home

import (
	"charm.land/lipgloss/v2"

	"github.com/abhisek/dsatutor/internal/ui/theme"
)

// MascotVariant selects which mascot art to display.
type MascotVariant int

const (
	MascotIdle     MascotVariant = iota // Default blue
	MascotCurious                       // Amber, question mark: not yet assessed
	MascotProud                         // Yellow, star eyes: advanced learner
)

const mascotIdle = `┌─────┐
│ ◉ ◉ │
│  ▽  │
│ { } │
└─────┘`

const mascotCurious = `┌─────┐
│ ◉ ◉ │ ?
│  ○  │
│ { } │
└─────┘`

const mascotProud = `┌─────┐
│ ★ ★ │
│  ▿  │
│ { } │
└─╥═╥─┘
  ╚═╝`

// RenderMascot returns the mascot ASCII art for the given variant.
func RenderMascot(v MascotVariant) string {
	art := mascotIdle
	fg := theme.Primary

	switch v {
	case MascotCurious:
		art = mascotCurious
		fg = theme.Accent
	case MascotProud:
		art = mascotProud
		fg = theme.Highlight
	}

	return lipgloss.NewStyle().
		Foreground(fg).
		Render(art)
}
