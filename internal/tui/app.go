package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/charliek/sidecarhost/internal/domain"
	"github.com/charliek/sidecarhost/internal/logs"
)

// Run starts the TUI and blocks until the user quits or ctx is done
func Run(ctx context.Context, sc Sidecar, logMgr *logs.Manager, opts ...tea.ProgramOption) error {
	model := NewModel(sc)
	p := tea.NewProgram(model, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)

	ctx, cancel := context.WithCancel(ctx)
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	// Seed with the history so lines written before the TUI opened are visible
	history, _, _ := logMgr.QueryLast(domain.LineFilter{}, maxLines)

	subID, ch, err := logMgr.Subscribe(domain.LineFilter{})
	if err != nil {
		// Send blocks until the program is running
		go p.Send(OutputLineMsg(systemLine("Error subscribing to output: " + err.Error())))
	} else {
		go forwardLines(ctx, p, history, ch)
	}

	_, runErr := p.Run()

	cancel()
	if subID != "" {
		logMgr.Unsubscribe(subID)
	}

	return runErr
}

// forwardLines sends the history and then live lines to the TUI program.
// It exits when the context is cancelled or the channel is closed.
func forwardLines(ctx context.Context, p *tea.Program, history []domain.OutputLine, ch <-chan domain.OutputLine) {
	for _, line := range history {
		p.Send(OutputLineMsg(line))
	}
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-ch:
			if !ok {
				return
			}
			p.Send(OutputLineMsg(line))
		}
	}
}

func systemLine(text string) domain.OutputLine {
	return domain.OutputLine{
		Timestamp: time.Now(),
		Source:    "sidecarhost",
		Stream:    domain.StreamStderr,
		Line:      text,
	}
}
