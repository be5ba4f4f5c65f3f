package watch

import (
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/muster-io/muster/internal/api"
)

// newAgentTable builds the fleet table: one row per tracked agent.
func newAgentTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ST", Width: 2},
			{Title: "Agent", Width: 10},
			{Title: "Profile", Width: 14},
			{Title: "Status", Width: 11},
			{Title: "Age", Width: 8},
			{Title: "Last Activity", Width: 40},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return t
}

// agentRows converts the agent list to table rows, running agents first,
// then newest by start time.
func agentRows(agents []api.AgentResponse, theme Theme) []table.Row {
	sorted := make([]api.AgentResponse, len(agents))
	copy(sorted, agents)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := sorted[i].Status == "running", sorted[j].Status == "running"
		if ri != rj {
			return ri
		}
		return sorted[i].StartTime.After(sorted[j].StartTime)
	})

	rows := make([]table.Row, 0, len(sorted))
	for _, a := range sorted {
		activity := a.LastReasoning
		if a.Status != "running" && a.Result != "" {
			activity = a.Result
		}

		rows = append(rows, table.Row{
			statusSymbol(a.Status, theme),
			shortID(a.AgentID),
			truncate(a.Profile, 14),
			a.Status,
			formatDuration(time.Since(a.StartTime).Round(time.Second)),
			truncate(activity, 40),
		})
	}
	return rows
}

func statusSymbol(status string, theme Theme) string {
	switch status {
	case "pending":
		return theme.StatusTerminated.Render("○")
	case "running":
		return theme.StatusRunning.Render("◉")
	case "completed":
		return theme.StatusCompleted.Render("●")
	case "errored":
		return theme.StatusErrored.Render("∅")
	case "terminated":
		return theme.StatusTerminated.Render("◑")
	}
	return "○"
}

func renderAgents(t table.Model, count int, theme Theme, width int) string {
	innerWidth := width - 4

	body := t.View()
	if count == 0 {
		body = theme.Dim.Render("  No agents dispatched...")
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("AGENTS"),
		body,
	)
	return theme.Border.Width(innerWidth).Render(content)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	if max < 4 {
		max = 4
	}
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
