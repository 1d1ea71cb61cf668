package layout

import (
	"fmt"
	"image/color"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/dsatutor/internal/ui/theme"
)

// The chat transcript stays readable down to this size.
const (
	MinWidth  = 60
	MinHeight = 18
)

// KeyHint is a key binding shown in the footer.
type KeyHint struct {
	Key         string
	Description string
}

// Header is the top bar: app name, the active screen and who is learning.
type Header struct {
	Title   string
	Learner string
	Level   string // display form, e.g. "Intermediate"; empty when unassessed
}

var (
	brandStyle = lipgloss.NewStyle().Foreground(theme.Primary).Bold(true)
	titleStyle = lipgloss.NewStyle().Foreground(theme.Text)
	dimStyle   = lipgloss.NewStyle().Foreground(theme.TextDim)
	keyStyle   = lipgloss.NewStyle().Foreground(theme.Text).Bold(true)
)

func bar(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Background(theme.BgCard).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border)
}

// IsTooSmall reports whether the terminal is below the minimum size.
func IsTooSmall(width, height int) bool {
	return width < MinWidth || height < MinHeight
}

// RenderMinSizeMessage asks the user to resize.
func RenderMinSizeMessage(width, height int) string {
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.Text).
		Render(fmt.Sprintf("The tutor needs at least %d×%d.\nThis terminal is %d×%d.",
			MinWidth, MinHeight, width, height))
}

// LevelColor maps a level badge to its colour. Unknown levels are dim.
func LevelColor(level string) color.Color {
	switch strings.ToLower(level) {
	case "beginner":
		return theme.Secondary
	case "intermediate":
		return theme.Info
	case "advanced":
		return theme.Accent
	}
	return theme.TextDim
}

// Render draws the header across width columns. The title is centred; the
// learner badge sits on the right and is dropped first when space runs out.
func (h Header) Render(width int) string {
	inner := max(width-4, 0)

	left := brandStyle.Render(" DSA Tutor")
	center := titleStyle.Render(h.Title)

	var badge []string
	if h.Learner != "" {
		badge = append(badge, dimStyle.Render(h.Learner))
	}
	if h.Level != "" {
		badge = append(badge, lipgloss.NewStyle().Foreground(LevelColor(h.Level)).Render("◆ "+h.Level))
	}
	right := strings.Join(badge, " ")

	lw, cw, rw := lipgloss.Width(left), lipgloss.Width(center), lipgloss.Width(right)
	if lw+cw+rw+2 > inner {
		right, rw = "", 0
	}

	pad := max((inner-cw)/2-lw, 1)
	tail := max(inner-lw-pad-cw-rw, 1)
	line := left + strings.Repeat(" ", pad) + center + strings.Repeat(" ", tail) + right

	return bar(width).Render(line)
}

// RenderFooter lays hints out left to right and stops at the first hint
// that no longer fits.
func RenderFooter(hints []KeyHint, width int) string {
	room := max(width-6, 0)
	var b strings.Builder
	b.WriteString(" ")
	used := 0
	for i, h := range hints {
		part := keyStyle.Render(h.Key) + " " + dimStyle.Render(h.Description)
		sep := ""
		if i > 0 {
			sep = "   "
		}
		w := lipgloss.Width(sep + part)
		if used+w > room {
			break
		}
		b.WriteString(sep + part)
		used += w
	}
	return bar(width).Render(b.String())
}

// RenderFrame stacks header, content and footer, sizing the content to the
// rows left between the two bars.
func RenderFrame(header, content, footer string, width, height int) string {
	rows := max(height-lipgloss.Height(header)-lipgloss.Height(footer), 0)
	body := lipgloss.NewStyle().Width(width).Height(rows).MaxHeight(rows).Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}
