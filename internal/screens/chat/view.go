package chat

import (
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/dsatutor/internal/tutor"
	"github.com/abhisek/dsatutor/internal/ui/components"
	"github.com/abhisek/dsatutor/internal/ui/theme"
)

func (c *ChatScreen) View(width, height int) string {
	cw := components.ContentWidth(width)
	c.input.SetWidth(cw - 4)

	footer := c.renderFooter(cw)
	avail := max(1, height-lipgloss.Height(footer)-1)

	lines := c.transcriptLines(cw)
	c.scroll = min(c.scroll, max(0, len(lines)-avail))
	end := len(lines) - c.scroll
	start := max(0, end-avail)
	visible := lines[start:end]
	for len(visible) < avail {
		visible = append([]string{""}, visible...)
	}

	body := strings.Join(visible, "\n") + "\n" + footer
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Bottom, body)
}

func (c *ChatScreen) transcriptLines(cw int) []string {
	if len(c.entries) == 0 && !c.busy {
		hint := theme.Hint.Width(cw).Render("Say hello, or ask about any data structure or algorithm.")
		return strings.Split(hint, "\n")
	}

	var lines []string
	for _, e := range c.entries {
		lines = append(lines, strings.Split(renderEntry(e, cw), "\n")...)
		lines = append(lines, "")
	}
	if c.busy {
		lines = append(lines, theme.TutorLabel.Render("Tutor")+" "+theme.Hint.Render("thinking"+strings.Repeat(".", c.dots)))
	}
	return lines
}

func renderEntry(e entry, cw int) string {
	switch e.role {
	case roleLearner:
		return theme.LearnerLabel.Render("You") + "\n" + theme.Body.Width(cw).Render(e.text)
	case roleNotice:
		return theme.Notice.Width(cw).Render(e.text)
	case roleTrace:
		return theme.Trace.Width(cw).Render("trace: " + e.text)
	}

	style := theme.Body
	if e.kind == tutor.KindRefusal {
		style = theme.Refusal
	}
	return theme.TutorLabel.Render("Tutor") + "\n" + style.Width(cw).Render(e.text)
}

func (c *ChatScreen) renderFooter(cw int) string {
	var b strings.Builder
	if items := c.opts.Tray.Items(); len(items) > 0 {
		names := make([]string, len(items))
		for i, a := range items {
			names[i] = a.Name
		}
		b.WriteString(theme.Hint.Render("📎 " + strings.Join(names, ", ")))
		b.WriteString("\n")
	}
	b.WriteString(theme.Card.Width(cw).Render(c.input.View()))
	return b.String()
}
