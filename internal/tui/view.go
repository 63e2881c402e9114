package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/charliek/sidecarhost/internal/domain"
)

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	if m.mode == ModeHelp {
		return helpView()
	}

	var sb strings.Builder
	sb.WriteString(m.header())
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	sb.WriteString(m.statusBar())
	return sb.String()
}

// updateViewport updates the viewport content
func (m *Model) updateViewport() {
	lines := m.filteredLines()
	rendered := make([]string, 0, len(lines))
	for _, line := range lines {
		rendered = append(rendered, formatLine(line))
	}
	m.viewport.SetContent(strings.Join(rendered, "\n"))
}

// header renders the sidecar status line
func (m Model) header() string {
	info := m.info
	items := []string{
		stateStyle(info.State).Render(fmt.Sprintf("%s: %s", info.Name, info.State)),
	}

	if info.State.IsRunning() {
		items = append(items,
			fmt.Sprintf("pid %d", info.PID),
			dimStyle.Render(shortInstance(info.Instance)),
			fmt.Sprintf("up %ds", info.UptimeSeconds()),
		)
	} else if info.ExitCode != nil {
		items = append(items, fmt.Sprintf("exit %d", *info.ExitCode))
	}
	if info.Health != "" && info.HealthDetails != nil {
		items = append(items, healthStyle(info.Health).Render("health: "+string(info.Health)))
	}
	items = append(items, dimStyle.Render(fmt.Sprintf("%d lines", info.Lines)))

	return headerStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top, strings.Join(items, "  ")))
}

// statusBar renders the bottom status bar
func (m Model) statusBar() string {
	var left string

	switch {
	case m.mode == ModeFilter:
		left = "Filter: " + m.textInput.View()
	case m.lastAction != "" && m.lastActionErr != nil:
		left = fmt.Sprintf("%s failed: %s", m.lastAction, truncateError(m.lastActionErr, maxErrorDisplayLen))
	case m.lastAction != "":
		left = "Sidecar " + m.lastAction + " done"
	case m.filterPattern != "":
		left = fmt.Sprintf("Filter: %s (ESC to clear)", m.filterPattern)
	default:
		left = "? for help"
	}
	if m.stderrOnly {
		left += " [stderr]"
	}

	followIndicator := "[FOLLOW]"
	if !m.followMode {
		followIndicator = "[PAUSED]"
	}
	right := fmt.Sprintf("%s %d/%d lines", followIndicator, len(m.filteredLines()), len(m.lines))

	leftWidth := m.width - len(right) - 4
	if leftWidth < 0 {
		leftWidth = 0
	}

	return lipgloss.JoinHorizontal(lipgloss.Top,
		statusStyle.Width(leftWidth).Render(left), "  ", statusStyle.Render(right))
}

// formatLine formats a single output line for display
func formatLine(line domain.OutputLine) string {
	ts := dimStyle.Render(line.Timestamp.Format("15:04:05"))
	prefix := sourceStyle.Render("[" + line.Source + "]")

	streamIndicator := ""
	if line.Stream == domain.StreamStderr {
		streamIndicator = errorStyle.Render(" ERR ")
	}

	return fmt.Sprintf("%s %s%s %s", ts, prefix, streamIndicator, line.Line)
}

// helpView renders the help overlay
func helpView() string {
	help := `
sidecarhost - sidecar output

Navigation:
  j/↓        Scroll down
  k/↑        Scroll up (pauses auto-follow)
  g/Home     Go to top (pauses auto-follow)
  G/End      Go to bottom (resumes auto-follow)
  PgUp/PgDn  Page up/down
  F          Toggle auto-follow mode

Filtering:
  / or s     Substring filter
  e          Toggle stderr only
  ESC        Clear filters

Sidecar:
  S          Start
  x          Stop
  r          Restart

Other:
  ?          Toggle help
  q/Ctrl+C   Quit (stops the sidecar)

Press any key to close help...
`
	return helpStyle.Render(help)
}

// stateStyle returns style based on sidecar state
func stateStyle(state domain.SidecarState) lipgloss.Style {
	switch state {
	case domain.SidecarStateRunning:
		return runningStyle
	case domain.SidecarStateStopped:
		return stoppedStyle
	default:
		return unstartedStyle
	}
}

// healthStyle returns style based on health status
func healthStyle(status domain.HealthStatus) lipgloss.Style {
	switch status {
	case domain.HealthStatusHealthy:
		return runningStyle
	case domain.HealthStatusUnhealthy:
		return stoppedStyle
	default:
		return unknownStyle
	}
}

// shortInstance trims an instance id for the header
func shortInstance(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// containsIgnoreCase performs a case-insensitive substring search
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// truncateError truncates an error message to maxLen characters
func truncateError(err error, maxLen int) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > maxLen {
		return msg[:maxLen-3] + "..."
	}
	return msg
}
