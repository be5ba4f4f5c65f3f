package watch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func renderEventStream(eventLog []agentEvent, theme Theme, width int) string {
	innerWidth := width - 4

	if len(eventLog) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("EVENT STREAM"),
			theme.Dim.Render("  Waiting for events..."),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	var lines []string
	for i, e := range eventLog {
		if i >= 10 {
			break
		}
		lines = append(lines, formatEvent(e, theme))
	}

	eventsText := lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("EVENT STREAM"),
		eventsText,
	)
	return theme.Border.Width(innerWidth).Render(content)
}

func formatEvent(e agentEvent, theme Theme) string {
	ts := theme.Dim.Render(e.At.Format("15:04:05"))

	var typeStyle lipgloss.Style
	switch {
	case strings.HasSuffix(e.Type, ".completed"):
		typeStyle = theme.StatusCompleted
	case strings.HasSuffix(e.Type, ".errored"), strings.HasSuffix(e.Type, ".terminated"):
		typeStyle = theme.StatusErrored
	case strings.HasSuffix(e.Type, ".dispatched"):
		typeStyle = theme.StatusRunning
	case strings.HasSuffix(e.Type, ".reasoning"):
		typeStyle = theme.Highlight
	default:
		typeStyle = theme.Dim
	}
	typeName := typeStyle.Render(fmt.Sprintf("%-18s", e.Type))

	return fmt.Sprintf("%s %s [%s] %s", ts, typeName, shortID(e.AgentID), eventDesc(e))
}

// eventDesc pulls a one-line summary out of the event payload.
func eventDesc(e agentEvent) string {
	data := make(map[string]any)
	_ = json.Unmarshal(e.Data, &data)

	if text, ok := data["text"].(string); ok && text != "" {
		return truncate(text, 60)
	}

	var parts []string
	if p, ok := data["profile"].(string); ok && p != "" {
		parts = append(parts, p)
	}
	if s, ok := data["status"].(string); ok && s != "" {
		parts = append(parts, s)
	}
	if r, ok := data["reason"].(string); ok && r != "" {
		parts = append(parts, r)
	}
	if len(parts) == 0 {
		return truncate(string(e.Data), 60)
	}
	return strings.Join(parts, " ")
}
