package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/charliek/sidecarhost/internal/api"
	"github.com/charliek/sidecarhost/internal/domain"
)

var (
	sourceStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("14")) // Cyan
	stderrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // Red
	tsStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))  // Gray
)

// LogPrinter prints sidecar output as "HH:MM:SS [source] line"
type LogPrinter struct {
	w io.Writer
}

// NewLogPrinter creates a new LogPrinter
func NewLogPrinter(w io.Writer) *LogPrinter {
	return &LogPrinter{w: w}
}

// PrintLine prints a line received from the API
func (lp *LogPrinter) PrintLine(entry api.LogLineResponse) {
	ts, err := time.Parse(time.RFC3339Nano, entry.Timestamp)
	if err != nil {
		ts = time.Now()
	}
	lp.print(ts, entry.Source, domain.Stream(entry.Stream), entry.Line)
}

func (lp *LogPrinter) print(ts time.Time, source string, stream domain.Stream, line string) {
	text := line
	if stream == domain.StreamStderr {
		text = stderrStyle.Render(line)
	}
	fmt.Fprintf(lp.w, "%s %s %s\n",
		tsStyle.Render(ts.Format("15:04:05")),
		sourceStyle.Render("["+source+"]"),
		text)
}
