package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/charliek/sidecarhost/internal/domain"
)

// nearBottomThreshold is the scroll percentage (0.0-1.0) at which we consider
// the viewport to be "near" the bottom for auto-follow purposes.
const nearBottomThreshold = 0.98

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.handleWindowSize(msg)
		m.updateViewport()

	case OutputLineMsg:
		m.handleOutputLine(domain.OutputLine(msg))

	case TickMsg:
		m.info = m.sidecar.Info()
		cmds = append(cmds, tickCmd())

	case ActionResultMsg:
		m.lastAction = msg.Action
		m.lastActionErr = msg.Err
		m.info = m.sidecar.Info()
		cmds = append(cmds, actionResultClearCmd())

	case ActionResultClearMsg:
		m.lastAction = ""
		m.lastActionErr = nil
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKey processes keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case ModeFilter:
		cmd := m.handleFilterKey(msg)
		return m, cmd
	case ModeHelp:
		// Any key closes help
		m.mode = ModeNormal
		return m, nil
	}

	sc := m.sidecar
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "S":
		return m, sidecarAction("start", sc.StartSidecar)

	case "x":
		return m, sidecarAction("stop", func(ctx context.Context) error {
			sc.StopSidecar(ctx)
			return nil
		})

	case "r":
		return m, sidecarAction("restart", func(ctx context.Context) error {
			sc.StopSidecar(ctx)
			return sc.StartSidecar(ctx)
		})
	}

	m.handleNavigationKey(msg)
	return m, nil
}

// handleFilterKey handles keys while the filter input is focused
func (m *Model) handleFilterKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		m.mode = ModeNormal
		m.textInput.Blur()
		m.filterPattern = ""
		m.updateViewport()
		return nil

	case "enter":
		m.filterPattern = m.textInput.Value()
		m.mode = ModeNormal
		m.textInput.Blur()
		m.updateViewport()
		return nil
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	// Live update filter
	m.filterPattern = m.textInput.Value()
	m.updateViewport()
	return cmd
}

// handleNavigationKey handles mode switches, filters and scrolling.
// Returns true if the key was handled
func (m *Model) handleNavigationKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "?":
		m.mode = ModeHelp
		return true

	case "/", "s":
		m.mode = ModeFilter
		m.textInput.SetValue("")
		m.textInput.Focus()
		return true

	case "e":
		m.stderrOnly = !m.stderrOnly
		m.updateViewport()
		return true

	case "esc":
		m.stderrOnly = false
		m.filterPattern = ""
		m.updateViewport()
		return true

	case "up", "k":
		m.viewport.LineUp(1)
		m.followMode = false
		return true

	case "down", "j":
		m.viewport.LineDown(1)
		return true

	case "pgup":
		m.viewport.HalfViewUp()
		m.followMode = false
		return true

	case "pgdown":
		m.viewport.HalfViewDown()
		return true

	case "home", "g":
		m.viewport.GotoTop()
		m.followMode = false
		return true

	case "end", "G":
		m.viewport.GotoBottom()
		m.followMode = true
		return true

	case "F":
		m.followMode = !m.followMode
		if m.followMode {
			m.viewport.GotoBottom()
		}
		return true
	}

	return false
}

// handleWindowSize handles window resize messages
func (m *Model) handleWindowSize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height

	headerHeight := 3 // Sidecar header
	footerHeight := 2 // Status bar
	viewportHeight := msg.Height - headerHeight - footerHeight
	if viewportHeight < 1 {
		viewportHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(msg.Width, viewportHeight)
		m.viewport.YPosition = headerHeight
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
	}
}

// handleOutputLine appends a line and keeps the view pinned when following
func (m *Model) handleOutputLine(line domain.OutputLine) {
	// Check if we're at/near bottom BEFORE adding new content
	wasNearBottom := m.isNearBottom()

	m.lines = append(m.lines, line)
	// Keep only last lines - create new slice to release memory from old lines
	if len(m.lines) > maxLines {
		kept := make([]domain.OutputLine, maxLines)
		copy(kept, m.lines[len(m.lines)-maxLines:])
		m.lines = kept
	}
	m.updateViewport()

	if wasNearBottom {
		m.followMode = true
		m.viewport.GotoBottom()
	} else if m.followMode {
		m.viewport.GotoBottom()
	}
}

// isNearBottom checks if the viewport is at or near the bottom
func (m *Model) isNearBottom() bool {
	if m.viewport.AtBottom() {
		return true
	}
	return m.viewport.ScrollPercent() >= nearBottomThreshold
}

// filteredLines returns output lines after applying filters
func (m *Model) filteredLines() []domain.OutputLine {
	var result []domain.OutputLine

	for _, line := range m.lines {
		if m.stderrOnly && line.Stream != domain.StreamStderr {
			continue
		}
		if m.filterPattern != "" && !containsIgnoreCase(line.Line, m.filterPattern) {
			continue
		}
		result = append(result, line)
	}

	return result
}
