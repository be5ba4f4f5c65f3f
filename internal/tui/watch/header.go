package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// HealthState tracks controller health from /healthz polling.
type HealthState struct {
	Status        string
	UptimeSeconds int64
	AgentsRunning int
	AgentsTotal   int
	Profiles      int
	Connected     bool
	LastCheck     time.Time
}

func renderHeader(health HealthState, pulse Pulse, theme Theme, width int) string {
	innerWidth := width - 4

	statusText := theme.StatusCompleted.Render("HEALTHY")
	statusIcon := "✅"
	if !health.Connected {
		statusText = theme.StatusErrored.Render("CONNECTING")
		statusIcon = "🔌"
	} else if health.Status != "ok" && health.Status != "" {
		statusText = theme.StatusErrored.Render("DEGRADED")
		statusIcon = "⚠️"
	}

	uptime := formatDuration(time.Duration(health.UptimeSeconds) * time.Second)

	lastEventStr := "never"
	if !pulse.LastEvent().IsZero() {
		lastEventStr = fmt.Sprintf("%s ago", time.Since(pulse.LastEvent()).Round(time.Second))
	}

	clock := theme.Dim.Render(time.Now().Format("15:04:05"))
	titleText := " MUSTER WATCH"
	pad := innerWidth - lipgloss.Width(titleText) - lipgloss.Width(clock) - 4
	if pad < 1 {
		pad = 1
	}
	titleLine := titleText + strings.Repeat(" ", pad) + clock + " "

	statsLine := fmt.Sprintf(" %s %s  ⏱ %s  Running: %d/%d  Profiles: %d",
		statusIcon, statusText,
		uptime,
		health.AgentsRunning, health.AgentsTotal,
		health.Profiles,
	)

	activityLine := fmt.Sprintf(" Last event: %s %s", lastEventStr, pulse.Render(theme))

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleLine,
		statsLine,
		activityLine,
	)
	return theme.Border.Width(innerWidth).Render(content)
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
