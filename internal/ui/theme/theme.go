// Package theme holds the palette and shared lipgloss styles. The palette
// leans on editor-like accents over a dark navy background.
package theme

import (
	"image/color"

	"charm.land/lipgloss/v2"
)

var (
	Primary   = lipgloss.Color("#60A5FA") // blue: tutor, frames
	Secondary = lipgloss.Color("#34D399") // emerald: learner
	Accent    = lipgloss.Color("#FBBF24") // amber: notices
	Highlight = lipgloss.Color("#FDE047") // yellow: selection
	Info      = lipgloss.Color("#22D3EE") // cyan: traces
	Success   = lipgloss.Color("#22C55E")
	Error     = lipgloss.Color("#F43F5E")
	Text      = lipgloss.Color("#F8FAFC")
	TextDim   = lipgloss.Color("#94A3B8")
	BgDark    = lipgloss.Color("#0F172A")
	BgCard    = lipgloss.Color("#1E293B")
	Border    = lipgloss.Color("#334155")
)

func fg(c color.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

var (
	Title    = fg(Primary).Bold(true).Align(lipgloss.Center)
	Subtitle = fg(TextDim).Align(lipgloss.Center)
	Body     = fg(Text)
	Hint     = fg(TextDim).Italic(true)
)

// Transcript styles.
var (
	LearnerLabel = fg(Secondary).Bold(true)
	TutorLabel   = fg(Primary).Bold(true)
	Notice       = fg(Accent).Italic(true)
	Refusal      = fg(TextDim)
	Trace        = fg(Info).Faint(true)
)

var Card = lipgloss.NewStyle().
	Background(BgCard).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Border).
	Padding(1, 2)
