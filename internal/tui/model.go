package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/charliek/sidecarhost/internal/domain"
)

// maxLines is the maximum number of output lines to keep in memory
const maxLines = 1000

// maxErrorDisplayLen is the maximum length of error messages in the status bar
const maxErrorDisplayLen = 60

// Sidecar is the host surface the viewer drives. *host.Host implements it.
type Sidecar interface {
	Info() domain.SidecarInfo
	StartSidecar(ctx context.Context) error
	StopSidecar(ctx context.Context)
}

// Mode represents the current TUI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeFilter
	ModeHelp
)

// Model is the bubbletea model for the TUI
type Model struct {
	sidecar Sidecar
	info    domain.SidecarInfo

	lines []domain.OutputLine

	// UI components
	viewport  viewport.Model
	textInput textinput.Model

	mode Mode

	// Filtering
	stderrOnly    bool
	filterPattern string

	// Auto-scroll to bottom on new lines
	followMode bool

	// Last start/stop/restart result for feedback
	lastAction    string
	lastActionErr error

	// Dimensions
	width  int
	height int
	ready  bool
}

// NewModel creates a new TUI model
func NewModel(sc Sidecar) Model {
	ti := textinput.New()
	ti.Placeholder = "Type to filter..."
	ti.CharLimit = 100
	ti.Width = 40

	return Model{
		sidecar:    sc,
		info:       sc.Info(),
		lines:      make([]domain.OutputLine, 0),
		textInput:  ti,
		mode:       ModeNormal,
		followMode: true,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// OutputLineMsg is sent when the sidecar writes a line
type OutputLineMsg domain.OutputLine

// TickMsg is sent periodically to refresh the sidecar header
type TickMsg time.Time

// ActionResultMsg is sent when a start, stop or restart completes
type ActionResultMsg struct {
	Action string
	Err    error
}

// ActionResultClearMsg is sent to clear the action result after a delay
type ActionResultClearMsg struct{}

// actionResultClearDelay is how long to show an action result before clearing
const actionResultClearDelay = 3 * time.Second

// actionTimeout is the maximum time to wait for a sidecar action
const actionTimeout = 30 * time.Second

// actionResultClearCmd returns a command that clears the action result after a delay
func actionResultClearCmd() tea.Cmd {
	return tea.Tick(actionResultClearDelay, func(t time.Time) tea.Msg {
		return ActionResultClearMsg{}
	})
}

// tickCmd returns a command that ticks periodically
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// sidecarAction runs a sidecar operation off the UI goroutine
func sidecarAction(action string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return ActionResultMsg{Action: action, Err: fn(ctx)}
	}
}
