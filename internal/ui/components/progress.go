package components

import (
	"fmt"
	"image/color"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/dsatutor/internal/ui/theme"
)

// eighths draws the partially filled cell at the end of a meter.
var eighths = []string{"", "▏", "▎", "▍", "▌", "▋", "▊", "▉"}

// Meter is a labelled horizontal gauge for a fraction in [0,1], such as the
// confidence of a proficiency analysis. It fills in eighth-cell steps and
// is tinted by how high the value is.
type Meter struct {
	Label string
	Value float64
	Width int // total width including label and percentage
}

// Tint returns the meter colour for v: low values warn, high values pass.
func Tint(v float64) color.Color {
	switch {
	case v < 0.4:
		return theme.Error
	case v < 0.7:
		return theme.Accent
	default:
		return theme.Success
	}
}

func (m Meter) View() string {
	v := min(max(m.Value, 0), 1)

	label := ""
	if m.Label != "" {
		label = theme.Body.Render(m.Label) + "  "
	}
	pct := fmt.Sprintf(" %3d%%", int(v*100+0.5))

	cells := max(m.Width-lipgloss.Width(label)-len(pct), 4)
	units := int(v*float64(cells*8) + 0.5)
	full, part := units/8, units%8

	bar := strings.Repeat("█", full) + eighths[part]
	rest := cells - full
	if part > 0 {
		rest--
	}

	fill := lipgloss.NewStyle().Foreground(Tint(v)).Render(bar)
	track := lipgloss.NewStyle().Foreground(theme.Border).Render(strings.Repeat("░", rest))
	return label + fill + track + theme.Hint.Render(pct)
}
