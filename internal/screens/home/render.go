package home

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/dsatutor/internal/ui/components"
	"github.com/abhisek/dsatutor/internal/ui/theme"
)

const titleCompact = "D S A · T U T O R"

// buttonWidth is the fixed width for menu buttons.
const buttonWidth = 22

func renderTitle(cw int) string {
	return lipgloss.NewStyle().
		Width(cw).
		Align(lipgloss.Center).
		Render(lipgloss.NewStyle().Foreground(theme.Highlight).Bold(true).Render(titleCompact))
}

// renderStatsBar shows the learner's level, topic count and last analysis.
func renderStatsBar(s stats, cw int, compact bool) string {
	levelStyle := lipgloss.NewStyle().Foreground(theme.Highlight).Bold(true)
	topicStyle := lipgloss.NewStyle().Foreground(theme.Secondary).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(theme.TextDim)

	level := strings.ToUpper(s.level)
	if level == "" {
		level = "NOT ASSESSED"
	}

	var parts []string
	if compact {
		parts = []string{
			levelStyle.Render(level),
			topicStyle.Render(fmt.Sprintf("%d topics", s.topics)),
		}
	} else {
		parts = []string{
			levelStyle.Render("◆ " + level),
			topicStyle.Render(fmt.Sprintf("▤ %d TOPICS", s.topics)),
		}
		if s.analysed != "" {
			parts = append(parts, dimStyle.Render("analysed "+s.analysed))
		}
	}

	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(theme.Info).
		Width(cw - 2).
		Align(lipgloss.Center).
		Padding(0, 1).
		Render(strings.Join(parts, "  "))
}

// renderMenu renders each menu item as a fixed-width button, or as plain
// lines when the terminal is short.
func renderMenu(m components.Menu, cw int, compact bool) string {
	selected := m.Selected
	var lines []string
	for i, label := range m.Labels() {
		if compact {
			if i == selected {
				lines = append(lines, lipgloss.NewStyle().
					Foreground(theme.BgDark).
					Background(theme.Highlight).
					Bold(true).
					Render(" ▸ "+label+" "))
			} else {
				lines = append(lines, lipgloss.NewStyle().Foreground(theme.Text).Render("   "+label))
			}
			continue
		}
		lines = append(lines, components.Button(label, i == selected, buttonWidth))
	}
	if it, ok := m.Current(); ok && it.Hint != "" && !compact {
		hint := it.Hint
		if it.Key != "" {
			hint += "  [" + it.Key + "]"
		}
		lines = append(lines, "", lipgloss.NewStyle().Foreground(theme.TextDim).Render(hint))
	}

	return lipgloss.NewStyle().
		Width(cw).
		Align(lipgloss.Center).
		Render(strings.Join(lines, "\n"))
}

func renderNote(text string, cw int) string {
	return lipgloss.NewStyle().
		Foreground(theme.Accent).
		Width(cw).
		Align(lipgloss.Center).
		Render(text)
}
