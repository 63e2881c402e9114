// Package logs is the sink for sidecar output: a bounded history of recent
// lines plus live subscriptions, optionally mirrored to a structured logger.
package logs

import (
	"context"
	"log/slog"

	"github.com/charliek/sidecarhost/internal/domain"
)

// ManagerConfig holds configuration for the log manager
type ManagerConfig struct {
	BufferSize         int // Number of lines to keep in ring buffer
	SubscriptionBuffer int // Buffer size for subscription channels

	// Mirror, when set, receives every line as "[source] line" at info level
	// (stderr lines at warn)
	Mirror *slog.Logger
}

// DefaultManagerConfig returns the default configuration
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		BufferSize:         1000,
		SubscriptionBuffer: 100,
	}
}

// Manager manages output storage and subscriptions
type Manager struct {
	buffer        *RingBuffer
	subscriptions *SubscriptionManager
	mirror        *slog.Logger
}

// NewManager creates a new log manager
func NewManager(config ManagerConfig) *Manager {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultManagerConfig().BufferSize
	}
	if config.SubscriptionBuffer <= 0 {
		config.SubscriptionBuffer = DefaultManagerConfig().SubscriptionBuffer
	}

	return &Manager{
		buffer:        NewRingBuffer(config.BufferSize),
		subscriptions: NewSubscriptionManager(config.SubscriptionBuffer, config.Mirror),
		mirror:        config.Mirror,
	}
}

// Write stores a line and broadcasts it to subscribers
func (m *Manager) Write(line domain.OutputLine) {
	m.buffer.Write(line)
	m.subscriptions.Broadcast(line)

	if m.mirror != nil {
		level := slog.LevelInfo
		if line.Stream == domain.StreamStderr {
			level = slog.LevelWarn
		}
		m.mirror.LogAttrs(context.Background(), level, line.Prefixed(),
			slog.String("instance", line.Instance),
			slog.String("stream", line.Stream.String()),
		)
	}
}

// Query retrieves every buffered line matching the filter, oldest first
func (m *Manager) Query(filter domain.LineFilter) ([]domain.OutputLine, error) {
	return FilterLines(m.buffer.Read(), filter)
}

// QueryLast retrieves the last n lines matching the filter (all when n <= 0).
// Returns the lines and the matching count before limiting.
func (m *Manager) QueryLast(filter domain.LineFilter, n int) ([]domain.OutputLine, int, error) {
	return FilterLinesLimit(m.buffer.Read(), filter, n)
}

// Subscribe creates a subscription for lines matching the filter
func (m *Manager) Subscribe(filter domain.LineFilter) (string, <-chan domain.OutputLine, error) {
	return m.subscriptions.Subscribe(filter)
}

// Unsubscribe removes a subscription
func (m *Manager) Unsubscribe(id string) {
	m.subscriptions.Unsubscribe(id)
}

// Stats returns statistics about the log manager
func (m *Manager) Stats() domain.LogStats {
	return domain.LogStats{
		TotalEntries: m.buffer.Count(),
		BufferSize:   m.buffer.Capacity(),
		Subscribers:  m.subscriptions.Count(),
	}
}

// Close closes the manager and all subscriptions
func (m *Manager) Close() {
	m.subscriptions.Close()
}
