package domain

import "time"

// Stream represents the output stream type
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// String returns the string representation of Stream
func (s Stream) String() string {
	return string(s)
}

// OutputLine is a single decoded line read from the sidecar.
// Line is always valid UTF-8; invalid input bytes have been replaced.
type OutputLine struct {
	Timestamp time.Time `json:"timestamp"`
	Instance  string    `json:"instance"`
	Source    string    `json:"source"`
	Stream    Stream    `json:"stream"`
	Line      string    `json:"line"`
}

// Prefixed returns the line tagged with its source, e.g. "[backend] listening"
func (l OutputLine) Prefixed() string {
	return "[" + l.Source + "] " + l.Line
}

// LineFilter defines criteria for filtering output lines
type LineFilter struct {
	Streams []Stream // Restrict to these streams; empty means all
	Pattern string   // Filter by pattern match
	IsRegex bool     // If true, Pattern is a regex; otherwise substring match
}

// IsEmpty returns true if no filters are set
func (f LineFilter) IsEmpty() bool {
	return len(f.Streams) == 0 && f.Pattern == ""
}

// MatchesStream returns true if the stream passes the filter
func (f LineFilter) MatchesStream(s Stream) bool {
	if len(f.Streams) == 0 {
		return true
	}
	for _, want := range f.Streams {
		if want == s {
			return true
		}
	}
	return false
}

// LogStats contains statistics about the output buffer
type LogStats struct {
	TotalEntries int
	BufferSize   int
	Subscribers  int
}
